package domain

import "time"

type ReportStatus string

const (
	ReportDraft      ReportStatus = "draft"
	ReportInProgress ReportStatus = "in_progress"
	ReportCompleted  ReportStatus = "completed"
)

// Report is an inspection report owned by a contractor. Photos reference it
// by ReportID; deleting a report cascades to its photos (handled in the
// service layer so stored objects are removed together with the records).
type Report struct {
	ID            string       `gorm:"column:id;primaryKey" json:"id"`
	ContractorID  int64        `gorm:"column:contractor_id;index" json:"contractor_id"`
	Title         string       `gorm:"column:title" json:"title"`
	SiteAddress   string       `gorm:"column:site_address" json:"site_address,omitempty"`
	InspectorName string       `gorm:"column:inspector_name" json:"inspector_name,omitempty"`
	Notes         string       `gorm:"column:notes" json:"notes,omitempty"`
	Status        ReportStatus `gorm:"column:status" json:"status"`
	CreatedAt     time.Time    `gorm:"column:created_at" json:"created_at"`
	UpdatedAt     time.Time    `gorm:"column:updated_at" json:"updated_at"`
}

func (Report) TableName() string { return "reports" }
