package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"siteproof/internal/domain"
	"siteproof/internal/repository"
	"siteproof/internal/vision"
)

// Config carries the service knobs; main fills it from the app config.
type Config struct {
	// Workers bounds concurrent provider calls per analysis run.
	Workers int
}

// Service runs vision assessments over a report's photos. Photos are assessed
// through a bounded worker pool; each photo succeeds or fails on its own and
// never takes the run down with it.
type Service struct {
	photos   PhotoRepository
	reports  ReportRepository
	source   PhotoSource
	provider vision.Provider
	notifier StatusNotifier
	workers  int
	log      *slog.Logger
}

func NewService(
	photos PhotoRepository,
	reports ReportRepository,
	source PhotoSource,
	provider vision.Provider,
	notifier StatusNotifier,
	cfg Config,
	log *slog.Logger,
) *Service {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	return &Service{
		photos:   photos,
		reports:  reports,
		source:   source,
		provider: provider,
		notifier: notifier,
		workers:  cfg.Workers,
		log:      log,
	}
}

// Analyze assesses the requested photos of a report, or every analyzable one
// when no ids are given. Requested ids that do not resolve to a photo of this
// report appear in the results as failed without touching stored state.
func (s *Service) Analyze(ctx context.Context, contractorID int64, reportID string, req AnalyzeRequest) (*Summary, error) {
	report, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrReportNotFound
		}
		return nil, err
	}
	if report.ContractorID != contractorID {
		return nil, ErrNotOwner
	}

	photos, unresolved, err := s.selectPhotos(ctx, report.ID, req.PhotoIDs)
	if err != nil {
		return nil, err
	}
	if len(photos) == 0 && len(unresolved) == 0 {
		return nil, ErrNoPhotos
	}

	s.log.Info("analysis run started",
		"report_id", report.ID,
		"photos", len(photos),
		"workers", s.workers,
	)

	results := make([]Result, len(photos), len(photos)+len(unresolved))
	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup
	for i := range photos {
		wg.Add(1)
		go func(i int, p domain.Photo) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = s.analyzeOne(ctx, &p)
		}(i, photos[i])
	}
	wg.Wait()

	results = append(results, unresolved...)

	summary := &Summary{Results: results}
	for _, r := range results {
		switch r.Status {
		case string(domain.PhotoAnalyzed):
			summary.Analyzed++
		default:
			summary.Failed++
		}
	}

	s.notifier.AnalysisSummary(report.ID, summary.Analyzed, summary.Failed)
	s.log.Info("analysis run finished",
		"report_id", report.ID,
		"analyzed", summary.Analyzed,
		"failed", summary.Failed,
	)

	return summary, nil
}

// selectPhotos resolves the run's photo set. With explicit ids any photo of
// the report qualifies, so re-running an analyzed photo is allowed; without
// ids only photos still waiting for a result (uploaded or failed) are picked.
func (s *Service) selectPhotos(ctx context.Context, reportID string, ids []string) ([]domain.Photo, []Result, error) {
	if len(ids) == 0 {
		all, err := s.photos.ListByReport(ctx, reportID)
		if err != nil {
			return nil, nil, fmt.Errorf("list report photos: %w", err)
		}
		var eligible []domain.Photo
		for _, p := range all {
			if p.Status == domain.PhotoUploaded || p.Status == domain.PhotoFailed {
				eligible = append(eligible, p)
			}
		}
		return eligible, nil, nil
	}

	found, err := s.photos.ListByIDs(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve photo ids: %w", err)
	}
	byID := make(map[string]domain.Photo, len(found))
	for _, p := range found {
		if p.ReportID == reportID {
			byID[p.ID] = p
		}
	}

	var photos []domain.Photo
	var unresolved []Result
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if p, ok := byID[id]; ok {
			photos = append(photos, p)
			continue
		}
		unresolved = append(unresolved, Result{
			PhotoID: id,
			Status:  string(domain.PhotoFailed),
			Error:   "photo not found",
		})
	}
	return photos, unresolved, nil
}

func (s *Service) analyzeOne(ctx context.Context, p *domain.Photo) Result {
	if err := s.photos.UpdateStatus(ctx, p.ID, domain.PhotoAnalyzing); err != nil {
		return s.fail(ctx, p, fmt.Errorf("mark analyzing: %w", err))
	}
	s.notifier.PhotoStatus(p.ReportID, p.ID, string(domain.PhotoAnalyzing), "")

	data, mediaType, err := s.source.OptimizedBytes(ctx, p)
	if err != nil {
		return s.fail(ctx, p, fmt.Errorf("load photo bytes: %w", err))
	}

	result, err := s.provider.Assess(ctx, vision.Image{Data: data, MediaType: mediaType})
	if err != nil {
		return s.fail(ctx, p, err)
	}
	// A photo is never marked analyzed on an empty payload, whatever the
	// provider thought of it.
	if result.Empty() {
		return s.fail(ctx, p, vision.ErrEmptyAssessment)
	}

	if err := s.photos.SetAnalysis(ctx, p.ID, result); err != nil {
		return s.fail(ctx, p, fmt.Errorf("store analysis: %w", err))
	}
	s.notifier.PhotoStatus(p.ReportID, p.ID, string(domain.PhotoAnalyzed), "")

	return Result{
		PhotoID:  p.ID,
		Status:   string(domain.PhotoAnalyzed),
		Analysis: result,
	}
}

func (s *Service) fail(ctx context.Context, p *domain.Photo, cause error) Result {
	msg := cause.Error()
	if err := s.photos.SetAnalysisError(ctx, p.ID, msg); err != nil {
		s.log.Error("failed to record analysis error",
			"photo_id", p.ID,
			"cause", msg,
			"error", err,
		)
	}
	s.notifier.PhotoStatus(p.ReportID, p.ID, string(domain.PhotoFailed), msg)
	s.log.Warn("photo analysis failed", "photo_id", p.ID, "error", msg)

	return Result{
		PhotoID: p.ID,
		Status:  string(domain.PhotoFailed),
		Error:   msg,
	}
}
