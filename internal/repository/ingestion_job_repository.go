package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"vidyai-rag/internal/model"
)

type IngestionJobRepository struct {
	db *gorm.DB
}

func NewIngestionJobRepository(db *gorm.DB) *IngestionJobRepository {
	return &IngestionJobRepository{db: db}
}

func (r *IngestionJobRepository) Create(ctx context.Context, job *model.IngestionJob) error {
	if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
		return fmt.Errorf("create ingestion job failed: %w", err)
	}
	return nil
}

func (r *IngestionJobRepository) GetByID(ctx context.Context, id string) (*model.IngestionJob, error) {
	var job model.IngestionJob
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get ingestion job failed: %w", err)
	}
	return &job, nil
}

// Save writes every column of the job, including zero values.
func (r *IngestionJobRepository) Save(ctx context.Context, job *model.IngestionJob) error {
	if err := r.db.WithContext(ctx).Save(job).Error; err != nil {
		return fmt.Errorf("save ingestion job failed: %w", err)
	}
	return nil
}

func (r *IngestionJobRepository) ListByChapter(ctx context.Context, chapterID uint, limit int) ([]model.IngestionJob, error) {
	if limit <= 0 {
		limit = 20
	}
	var jobs []model.IngestionJob
	if err := r.db.WithContext(ctx).Where("chapter_id = ?", chapterID).
		Order("created_at DESC").Limit(limit).Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("list ingestion jobs failed: %w", err)
	}
	return jobs, nil
}
