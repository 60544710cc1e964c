package report

import (
	"context"

	"siteproof/internal/domain"
	"siteproof/internal/repository"
)

// ReportRepository defines the persistence operations the service needs.
type ReportRepository interface {
	Create(ctx context.Context, report *domain.Report) error
	GetByID(ctx context.Context, id string) (*domain.Report, error)
	ListByContractor(ctx context.Context, contractorID int64, f repository.ReportFilters) ([]domain.Report, int64, error)
	Update(ctx context.Context, report *domain.Report) error
	Delete(ctx context.Context, id string) error
}

// PhotoRepository is the read-only slice used to build report details.
type PhotoRepository interface {
	ListByReport(ctx context.Context, reportID string) ([]domain.Photo, error)
}

// PhotoPurger removes a report's photos, records and stored objects both,
// when the report is deleted. Implemented by the photo service.
type PhotoPurger interface {
	PurgeReport(ctx context.Context, reportID string) error
}
