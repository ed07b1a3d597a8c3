package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"vidyai-rag/internal/model"
)

type QuestionCacheRepository struct {
	db *gorm.DB
}

func NewQuestionCacheRepository(db *gorm.DB) *QuestionCacheRepository {
	return &QuestionCacheRepository{db: db}
}

// GetLive returns the unexpired entry for (chapter, count), or nil.
func (r *QuestionCacheRepository) GetLive(ctx context.Context, chapterID uint, numQuestions int, now time.Time) (*model.QuestionCache, error) {
	var entry model.QuestionCache
	if err := r.db.WithContext(ctx).
		Where("chapter_id = ? AND num_questions = ? AND expires_at > ?", chapterID, numQuestions, now).
		First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get question cache failed: %w", err)
	}
	return &entry, nil
}

// Upsert overwrites the entry for (chapter, count) in place, inserting it if absent.
// It reports inserted=false, err=nil when a concurrent writer inserted the row first.
func (r *QuestionCacheRepository) Upsert(ctx context.Context, chapterID uint, numQuestions int, payload []byte, expiresAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.QuestionCache{}).
		Where("chapter_id = ? AND num_questions = ?", chapterID, numQuestions).
		Updates(map[string]interface{}{
			"questions_json": datatypes.JSON(payload),
			"expires_at":     expiresAt,
		})
	if res.Error != nil {
		return false, fmt.Errorf("update question cache failed: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return false, nil
	}

	entry := model.QuestionCache{
		ChapterID:     chapterID,
		NumQuestions:  numQuestions,
		QuestionsJSON: datatypes.JSON(payload),
		ExpiresAt:     expiresAt,
	}
	if err := r.db.WithContext(ctx).Create(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, fmt.Errorf("insert question cache failed: %w", err)
	}
	return true, nil
}

func (r *QuestionCacheRepository) CountByKey(ctx context.Context, chapterID uint, numQuestions int) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.QuestionCache{}).
		Where("chapter_id = ? AND num_questions = ?", chapterID, numQuestions).
		Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count question cache failed: %w", err)
	}
	return n, nil
}
