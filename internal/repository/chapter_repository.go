package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"vidyai-rag/internal/model"
)

type ChapterRepository struct {
	db *gorm.DB
}

func NewChapterRepository(db *gorm.DB) *ChapterRepository {
	return &ChapterRepository{db: db}
}

func (r *ChapterRepository) Create(ctx context.Context, chapter *model.Chapter) error {
	if err := r.db.WithContext(ctx).Create(chapter).Error; err != nil {
		return fmt.Errorf("create chapter failed: %w", err)
	}
	return nil
}

func (r *ChapterRepository) GetByID(ctx context.Context, id uint) (*model.Chapter, error) {
	var chapter model.Chapter
	if err := r.db.WithContext(ctx).First(&chapter, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get chapter failed: %w", err)
	}
	return &chapter, nil
}

// UpdateStatus sets the status and error message; a nil message clears it.
func (r *ChapterRepository) UpdateStatus(ctx context.Context, id uint, status string, errMsg *string) error {
	if err := r.db.WithContext(ctx).Model(&model.Chapter{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        status,
			"error_message": errMsg,
		}).Error; err != nil {
		return fmt.Errorf("update chapter status failed: %w", err)
	}
	return nil
}

func (r *ChapterRepository) SetPending(ctx context.Context, id uint, sourceRef string) error {
	if err := r.db.WithContext(ctx).Model(&model.Chapter{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        model.ChapterStatusPending,
			"source_ref":    sourceRef,
			"error_message": nil,
		}).Error; err != nil {
		return fmt.Errorf("set chapter pending failed: %w", err)
	}
	return nil
}
