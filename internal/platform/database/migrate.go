package database

import (
	"fmt"

	"gorm.io/gorm"

	"vidyai-rag/internal/model"
)

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Chapter{},
		&model.TextChunk{},
		&model.IngestionJob{},
		&model.QuestionCache{},
	); err != nil {
		return fmt.Errorf("auto migrate tables failed: %w", err)
	}
	return nil
}
