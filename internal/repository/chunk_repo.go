package repository

import (
	"context"
	"errors"
	"time"

	"siteproof/internal/domain"

	"gorm.io/gorm"
)

type ChunkSessionRepository struct {
	db *gorm.DB
}

func NewChunkSessionRepository(db *gorm.DB) *ChunkSessionRepository {
	return &ChunkSessionRepository{db: db}
}

func (r *ChunkSessionRepository) Create(ctx context.Context, session *domain.ChunkSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *ChunkSessionRepository) GetByID(ctx context.Context, id string) (*domain.ChunkSession, error) {
	var session domain.ChunkSession
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *ChunkSessionRepository) Update(ctx context.Context, session *domain.ChunkSession) error {
	return r.db.WithContext(ctx).Save(session).Error
}

func (r *ChunkSessionRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.ChunkSession{}).Error
}

// ListExpired returns sessions whose deadline has passed so the owning
// service can remove their staged chunks before the rows go.
func (r *ChunkSessionRepository) ListExpired(ctx context.Context, now time.Time) ([]domain.ChunkSession, error) {
	var sessions []domain.ChunkSession
	err := r.db.WithContext(ctx).
		Where("expires_at < ?", now).
		Find(&sessions).Error
	return sessions, err
}
