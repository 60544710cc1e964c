package domain

import "time"

// PhotoStatus is the server-side lifecycle of a stored photo. The pre-upload
// states (pending, uploading) exist only on the client; a row is created the
// moment the bytes are persisted.
type PhotoStatus string

const (
	PhotoUploaded  PhotoStatus = "uploaded"
	PhotoAnalyzing PhotoStatus = "analyzing"
	PhotoAnalyzed  PhotoStatus = "analyzed"
	PhotoFailed    PhotoStatus = "failed"
)

type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityMinor    Severity = "minor"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

// Analysis is the structured result of a vision assessment of one photo.
type Analysis struct {
	Description       string   `json:"description"`
	Tags              []string `json:"tags,omitempty"`
	DamageDetected    bool     `json:"damage_detected"`
	Severity          Severity `json:"severity"`
	Confidence        float64  `json:"confidence"`
	RecommendedAction string   `json:"recommended_action,omitempty"`
}

// Empty reports whether the analysis carries no usable content. A photo must
// never be marked analyzed with an empty payload.
func (a *Analysis) Empty() bool {
	return a == nil || (a.Description == "" && len(a.Tags) == 0 && !a.DamageDetected)
}

// Photo is a stored inspection photo. ClientID is the client-supplied upload
// id, unique within a report and kept for reconciliation only; the server id
// is authoritative once the row exists.
type Photo struct {
	ID           string      `gorm:"column:id;primaryKey" json:"id"`
	ReportID     string      `gorm:"column:report_id;index;uniqueIndex:uniq_report_client" json:"report_id"`
	ClientID     string      `gorm:"column:client_id;uniqueIndex:uniq_report_client" json:"client_id,omitempty"`
	ContractorID int64       `gorm:"column:contractor_id;index" json:"contractor_id"`
	OriginalName string      `gorm:"column:original_name" json:"original_name"`
	ContentType  string      `gorm:"column:content_type" json:"content_type"`
	Size         int64       `gorm:"column:size" json:"size"`
	StorageKey   string      `gorm:"column:storage_key" json:"-"`
	OptimizedKey string      `gorm:"column:optimized_key" json:"-"`
	ThumbKey     string      `gorm:"column:thumb_key" json:"-"`
	Status       PhotoStatus `gorm:"column:status;index" json:"status"`
	Analysis     *Analysis   `gorm:"column:analysis;serializer:json" json:"analysis,omitempty"`
	AnalyzedAt   *time.Time  `gorm:"column:analyzed_at" json:"analyzed_at,omitempty"`
	Error        string      `gorm:"column:error" json:"error,omitempty"`
	CreatedAt    time.Time   `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    time.Time   `gorm:"column:updated_at" json:"updated_at"`
}

func (Photo) TableName() string { return "photos" }
