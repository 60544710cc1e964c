package photo

import (
	"context"

	"siteproof/internal/domain"
)

// PhotoRepository defines the persistence operations the service needs.
type PhotoRepository interface {
	Create(ctx context.Context, photo *domain.Photo) error
	GetByID(ctx context.Context, id string) (*domain.Photo, error)
	ListByReport(ctx context.Context, reportID string) ([]domain.Photo, error)
	Delete(ctx context.Context, id string) error
	DeleteByReport(ctx context.Context, reportID string) error
}

// ReportRepository is the read slice used to resolve upload targets.
type ReportRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Report, error)
}

// ChunkSessionRepository tracks chunked uploads in progress.
type ChunkSessionRepository interface {
	Create(ctx context.Context, session *domain.ChunkSession) error
	GetByID(ctx context.Context, id string) (*domain.ChunkSession, error)
	Update(ctx context.Context, session *domain.ChunkSession) error
	Delete(ctx context.Context, id string) error
}

// StatusNotifier pushes photo lifecycle transitions to live subscribers.
// Implemented by the events hub.
type StatusNotifier interface {
	PhotoStatus(reportID, photoID, status, errMsg string)
}
