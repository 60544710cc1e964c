package report

import "siteproof/internal/domain"

type CreateReportRequest struct {
	Title         string `json:"title" binding:"required,min=2,max=200"`
	SiteAddress   string `json:"site_address" binding:"max=300"`
	InspectorName string `json:"inspector_name" binding:"max=120"`
	Notes         string `json:"notes" binding:"max=5000"`
}

// UpdateReportRequest patches a report. Nil fields are left untouched.
type UpdateReportRequest struct {
	Title         *string `json:"title" binding:"omitempty,min=2,max=200"`
	SiteAddress   *string `json:"site_address" binding:"omitempty,max=300"`
	InspectorName *string `json:"inspector_name" binding:"omitempty,max=120"`
	Notes         *string `json:"notes" binding:"omitempty,max=5000"`
	Status        *string `json:"status" binding:"omitempty,oneof=draft in_progress completed"`
}

type ListReportsQuery struct {
	Status string `form:"status" binding:"omitempty,oneof=draft in_progress completed"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=100"`
	Offset int    `form:"offset" binding:"omitempty,min=0"`
}

// AnalysisRollup is the aggregate the report detail carries in place of the
// rendered PDF: photo counts by status and severity plus how many photos show
// damage.
type AnalysisRollup struct {
	TotalPhotos    int            `json:"total_photos"`
	ByStatus       map[string]int `json:"by_status"`
	BySeverity     map[string]int `json:"by_severity"`
	DamageDetected int            `json:"damage_detected"`
}

type ReportDetail struct {
	Report domain.Report  `json:"report"`
	Photos []domain.Photo `json:"photos"`
	Rollup AnalysisRollup `json:"rollup"`
}
