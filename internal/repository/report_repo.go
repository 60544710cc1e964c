package repository

import (
	"context"
	"errors"

	"siteproof/internal/domain"

	"gorm.io/gorm"
)

type ReportFilters struct {
	Status string
	Limit  int
	Offset int
}

type ReportRepository struct {
	db *gorm.DB
}

func NewReportRepository(db *gorm.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

func (r *ReportRepository) Create(ctx context.Context, report *domain.Report) error {
	return r.db.WithContext(ctx).Create(report).Error
}

func (r *ReportRepository) GetByID(ctx context.Context, id string) (*domain.Report, error) {
	var report domain.Report
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&report).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// ListByContractor returns the contractor's reports, newest first.
func (r *ReportRepository) ListByContractor(ctx context.Context, contractorID int64, f ReportFilters) ([]domain.Report, int64, error) {
	var reports []domain.Report
	var total int64

	q := r.db.WithContext(ctx).
		Model(&domain.Report{}).
		Where("contractor_id = ?", contractorID)

	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if f.Limit > 0 {
		q = q.Limit(f.Limit).Offset(f.Offset)
	}

	err := q.Order("created_at DESC").Find(&reports).Error
	return reports, total, err
}

func (r *ReportRepository) Update(ctx context.Context, report *domain.Report) error {
	return r.db.WithContext(ctx).Save(report).Error
}

func (r *ReportRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Report{}).Error
}
