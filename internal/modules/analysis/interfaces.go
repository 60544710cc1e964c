package analysis

import (
	"context"

	"siteproof/internal/domain"
)

// PhotoRepository is the slice of photo persistence the analysis run needs.
type PhotoRepository interface {
	ListByReport(ctx context.Context, reportID string) ([]domain.Photo, error)
	ListByIDs(ctx context.Context, ids []string) ([]domain.Photo, error)
	UpdateStatus(ctx context.Context, id string, status domain.PhotoStatus) error
	SetAnalysis(ctx context.Context, id string, analysis *domain.Analysis) error
	SetAnalysisError(ctx context.Context, id string, msg string) error
}

type ReportRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Report, error)
}

// PhotoSource hands back the stored bytes used as vision input. Implemented
// by the photo service, which prefers the optimized variant.
type PhotoSource interface {
	OptimizedBytes(ctx context.Context, p *domain.Photo) ([]byte, string, error)
}

// StatusNotifier pushes per-photo transitions and the run summary to live
// subscribers. Implemented by the events hub.
type StatusNotifier interface {
	PhotoStatus(reportID, photoID, status, errMsg string)
	AnalysisSummary(reportID string, analyzed, failed int)
}
