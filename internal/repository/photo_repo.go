package repository

import (
	"context"
	"errors"
	"time"

	"siteproof/internal/domain"

	"gorm.io/gorm"
)

type PhotoRepository struct {
	db *gorm.DB
}

func NewPhotoRepository(db *gorm.DB) *PhotoRepository {
	return &PhotoRepository{db: db}
}

func (r *PhotoRepository) Create(ctx context.Context, photo *domain.Photo) error {
	if err := r.db.WithContext(ctx).Create(photo).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *PhotoRepository) GetByID(ctx context.Context, id string) (*domain.Photo, error) {
	var photo domain.Photo
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&photo).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &photo, nil
}

func (r *PhotoRepository) ListByReport(ctx context.Context, reportID string) ([]domain.Photo, error) {
	var photos []domain.Photo
	err := r.db.WithContext(ctx).
		Where("report_id = ?", reportID).
		Order("created_at ASC").
		Find(&photos).Error
	return photos, err
}

// ListByIDs preserves no particular order; callers reconcile by id.
func (r *PhotoRepository) ListByIDs(ctx context.Context, ids []string) ([]domain.Photo, error) {
	var photos []domain.Photo
	if len(ids) == 0 {
		return photos, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&photos).Error
	return photos, err
}

func (r *PhotoRepository) UpdateStatus(ctx context.Context, id string, status domain.PhotoStatus) error {
	return r.db.WithContext(ctx).
		Model(&domain.Photo{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// SetAnalysis stores the vision result and flips the photo to analyzed in one write.
func (r *PhotoRepository) SetAnalysis(ctx context.Context, id string, analysis *domain.Analysis) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&domain.Photo{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      domain.PhotoAnalyzed,
			"analysis":    analysis,
			"analyzed_at": &now,
			"error":       "",
		}).Error
}

// SetAnalysisError records a failed analysis without touching any stored result.
func (r *PhotoRepository) SetAnalysisError(ctx context.Context, id string, msg string) error {
	return r.db.WithContext(ctx).
		Model(&domain.Photo{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status": domain.PhotoFailed,
			"error":  msg,
		}).Error
}

func (r *PhotoRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Photo{}).Error
}

func (r *PhotoRepository) DeleteByReport(ctx context.Context, reportID string) error {
	return r.db.WithContext(ctx).Where("report_id = ?", reportID).Delete(&domain.Photo{}).Error
}
