package analysis

import "siteproof/internal/domain"

// AnalyzeRequest selects which photos to assess. An empty list means every
// analyzable photo of the report.
type AnalyzeRequest struct {
	PhotoIDs []string `json:"photo_ids" binding:"omitempty,max=200"`
}

// Result is the per-photo outcome. Failed photos carry Error; analyzed ones
// carry the stored Analysis.
type Result struct {
	PhotoID  string           `json:"photo_id"`
	Status   string           `json:"status"`
	Analysis *domain.Analysis `json:"analysis,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// Summary aggregates one analysis run.
type Summary struct {
	Results  []Result `json:"results"`
	Analyzed int      `json:"analyzed"`
	Failed   int      `json:"failed"`
}
