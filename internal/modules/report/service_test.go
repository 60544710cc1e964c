package report

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"siteproof/internal/domain"
	"siteproof/internal/repository"
)

// Mock repositories

type MockReportRepository struct {
	mock.Mock
}

func (m *MockReportRepository) Create(ctx context.Context, r *domain.Report) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *MockReportRepository) GetByID(ctx context.Context, id string) (*domain.Report, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Report), args.Error(1)
}

func (m *MockReportRepository) ListByContractor(ctx context.Context, contractorID int64, f repository.ReportFilters) ([]domain.Report, int64, error) {
	args := m.Called(ctx, contractorID, f)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]domain.Report), args.Get(1).(int64), args.Error(2)
}

func (m *MockReportRepository) Update(ctx context.Context, r *domain.Report) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *MockReportRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockPhotoRepository struct {
	mock.Mock
}

func (m *MockPhotoRepository) ListByReport(ctx context.Context, reportID string) ([]domain.Photo, error) {
	args := m.Called(ctx, reportID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Photo), args.Error(1)
}

type MockPhotoPurger struct {
	mock.Mock
}

func (m *MockPhotoPurger) PurgeReport(ctx context.Context, reportID string) error {
	args := m.Called(ctx, reportID)
	return args.Error(0)
}

func newTestService(reports *MockReportRepository, photos *MockPhotoRepository, purger *MockPhotoPurger) *Service {
	return NewService(reports, photos, purger, slog.Default())
}

func TestCreate_AssignsIDAndDraftStatus(t *testing.T) {
	reports := new(MockReportRepository)
	reports.On("Create", mock.Anything, mock.AnythingOfType("*domain.Report")).Return(nil)

	svc := newTestService(reports, new(MockPhotoRepository), new(MockPhotoPurger))

	r, err := svc.Create(context.Background(), 42, CreateReportRequest{
		Title:       "Roof inspection",
		SiteAddress: "12 Main St",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, r.ID)
	assert.Equal(t, int64(42), r.ContractorID)
	assert.Equal(t, domain.ReportDraft, r.Status)
	reports.AssertExpectations(t)
}

func TestGet_BuildsRollup(t *testing.T) {
	reports := new(MockReportRepository)
	photos := new(MockPhotoRepository)

	reports.On("GetByID", mock.Anything, "rep-1").Return(&domain.Report{ID: "rep-1", ContractorID: 1}, nil)
	photos.On("ListByReport", mock.Anything, "rep-1").Return([]domain.Photo{
		{ID: "p1", Status: domain.PhotoAnalyzed, Analysis: &domain.Analysis{
			Description: "crack", DamageDetected: true, Severity: domain.SeverityModerate,
		}},
		{ID: "p2", Status: domain.PhotoAnalyzed, Analysis: &domain.Analysis{
			Description: "clean", Severity: domain.SeverityNone,
		}},
		{ID: "p3", Status: domain.PhotoUploaded},
		{ID: "p4", Status: domain.PhotoFailed},
	}, nil)

	svc := newTestService(reports, photos, new(MockPhotoPurger))

	detail, err := svc.Get(context.Background(), "rep-1")
	require.NoError(t, err)

	assert.Equal(t, 4, detail.Rollup.TotalPhotos)
	assert.Equal(t, 2, detail.Rollup.ByStatus["analyzed"])
	assert.Equal(t, 1, detail.Rollup.ByStatus["uploaded"])
	assert.Equal(t, 1, detail.Rollup.ByStatus["failed"])
	assert.Equal(t, 1, detail.Rollup.BySeverity["moderate"])
	assert.Equal(t, 1, detail.Rollup.BySeverity["none"])
	assert.Equal(t, 1, detail.Rollup.DamageDetected)
}

func TestGet_NotFound(t *testing.T) {
	reports := new(MockReportRepository)
	reports.On("GetByID", mock.Anything, "missing").Return(nil, repository.ErrNotFound)

	svc := newTestService(reports, new(MockPhotoRepository), new(MockPhotoPurger))

	_, err := svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdate_PatchesOnlyGivenFields(t *testing.T) {
	reports := new(MockReportRepository)
	existing := &domain.Report{
		ID:          "rep-1",
		Title:       "Old title",
		SiteAddress: "Old address",
		Status:      domain.ReportDraft,
	}
	reports.On("GetByID", mock.Anything, "rep-1").Return(existing, nil)
	reports.On("Update", mock.Anything, mock.AnythingOfType("*domain.Report")).Return(nil)

	svc := newTestService(reports, new(MockPhotoRepository), new(MockPhotoPurger))

	title := "New title"
	status := "in_progress"
	r, err := svc.Update(context.Background(), "rep-1", UpdateReportRequest{
		Title:  &title,
		Status: &status,
	})
	require.NoError(t, err)

	assert.Equal(t, "New title", r.Title)
	assert.Equal(t, "Old address", r.SiteAddress)
	assert.Equal(t, domain.ReportInProgress, r.Status)
}

func TestUpdate_RejectsUnknownStatus(t *testing.T) {
	reports := new(MockReportRepository)
	reports.On("GetByID", mock.Anything, "rep-1").Return(&domain.Report{ID: "rep-1"}, nil)

	svc := newTestService(reports, new(MockPhotoRepository), new(MockPhotoPurger))

	bogus := "archived"
	_, err := svc.Update(context.Background(), "rep-1", UpdateReportRequest{Status: &bogus})
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestDelete_PurgesPhotosFirst(t *testing.T) {
	reports := new(MockReportRepository)
	purger := new(MockPhotoPurger)

	reports.On("GetByID", mock.Anything, "rep-1").Return(&domain.Report{ID: "rep-1"}, nil)
	purger.On("PurgeReport", mock.Anything, "rep-1").Return(nil)
	reports.On("Delete", mock.Anything, "rep-1").Return(nil)

	svc := newTestService(reports, new(MockPhotoRepository), purger)

	require.NoError(t, svc.Delete(context.Background(), "rep-1"))
	purger.AssertCalled(t, "PurgeReport", mock.Anything, "rep-1")
	reports.AssertCalled(t, "Delete", mock.Anything, "rep-1")
}

func TestDelete_PurgeFailureAbortsDelete(t *testing.T) {
	reports := new(MockReportRepository)
	purger := new(MockPhotoPurger)

	reports.On("GetByID", mock.Anything, "rep-1").Return(&domain.Report{ID: "rep-1"}, nil)
	purger.On("PurgeReport", mock.Anything, "rep-1").Return(assert.AnError)

	svc := newTestService(reports, new(MockPhotoRepository), purger)

	err := svc.Delete(context.Background(), "rep-1")
	assert.Error(t, err)
	reports.AssertNotCalled(t, "Delete", mock.Anything, "rep-1")
}
