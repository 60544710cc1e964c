package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"siteproof/internal/domain"
	"siteproof/internal/repository"
)

type Service struct {
	reports ReportRepository
	photos  PhotoRepository
	purger  PhotoPurger
	log     *slog.Logger
}

func NewService(reports ReportRepository, photos PhotoRepository, purger PhotoPurger, log *slog.Logger) *Service {
	return &Service{reports: reports, photos: photos, purger: purger, log: log}
}

func (s *Service) Create(ctx context.Context, contractorID int64, req CreateReportRequest) (*domain.Report, error) {
	now := time.Now()
	r := &domain.Report{
		ID:            uuid.New().String(),
		ContractorID:  contractorID,
		Title:         req.Title,
		SiteAddress:   req.SiteAddress,
		InspectorName: req.InspectorName,
		Notes:         req.Notes,
		Status:        domain.ReportDraft,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.reports.Create(ctx, r); err != nil {
		return nil, fmt.Errorf("create report: %w", err)
	}
	s.log.Info("report created", "report_id", r.ID, "contractor_id", contractorID)
	return r, nil
}

func (s *Service) List(ctx context.Context, contractorID int64, q ListReportsQuery) ([]domain.Report, int64, error) {
	limit := q.Limit
	if limit == 0 {
		limit = 20
	}
	return s.reports.ListByContractor(ctx, contractorID, repository.ReportFilters{
		Status: q.Status,
		Limit:  limit,
		Offset: q.Offset,
	})
}

// Get returns the report with its photos and the analysis rollup. Ownership is
// enforced by middleware before the handler calls this.
func (s *Service) Get(ctx context.Context, id string) (*ReportDetail, error) {
	r, err := s.reports.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	photos, err := s.photos.ListByReport(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list report photos: %w", err)
	}

	return &ReportDetail{
		Report: *r,
		Photos: photos,
		Rollup: buildRollup(photos),
	}, nil
}

func (s *Service) Update(ctx context.Context, id string, req UpdateReportRequest) (*domain.Report, error) {
	r, err := s.reports.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if req.Title != nil {
		r.Title = *req.Title
	}
	if req.SiteAddress != nil {
		r.SiteAddress = *req.SiteAddress
	}
	if req.InspectorName != nil {
		r.InspectorName = *req.InspectorName
	}
	if req.Notes != nil {
		r.Notes = *req.Notes
	}
	if req.Status != nil {
		status := domain.ReportStatus(*req.Status)
		switch status {
		case domain.ReportDraft, domain.ReportInProgress, domain.ReportCompleted:
			r.Status = status
		default:
			return nil, ErrInvalidStatus
		}
	}
	r.UpdatedAt = time.Now()

	if err := s.reports.Update(ctx, r); err != nil {
		return nil, fmt.Errorf("update report: %w", err)
	}
	return r, nil
}

// Delete removes the report and cascades to its photos: stored objects first,
// then records, then the report row itself.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.reports.GetByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	if err := s.purger.PurgeReport(ctx, id); err != nil {
		return fmt.Errorf("purge report photos: %w", err)
	}

	if err := s.reports.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	s.log.Info("report deleted", "report_id", id)
	return nil
}

func buildRollup(photos []domain.Photo) AnalysisRollup {
	rollup := AnalysisRollup{
		TotalPhotos: len(photos),
		ByStatus:    map[string]int{},
		BySeverity:  map[string]int{},
	}
	for _, p := range photos {
		rollup.ByStatus[string(p.Status)]++
		if p.Analysis == nil {
			continue
		}
		rollup.BySeverity[string(p.Analysis.Severity)]++
		if p.Analysis.DamageDetected {
			rollup.DamageDetected++
		}
	}
	return rollup
}
