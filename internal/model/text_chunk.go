package model

import "time"

// TextChunk is one window of chapter text. Content is never edited after creation;
// re-ingestion deletes and recreates the chapter's chunks instead.
type TextChunk struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ChapterID  uint      `gorm:"not null;uniqueIndex:uq_chunk_chapter_index,priority:1" json:"chapter_id"`
	ChunkIndex int       `gorm:"not null;uniqueIndex:uq_chunk_chapter_index,priority:2" json:"chunk_index"`
	PageNumber *int      `json:"page_number,omitempty"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	Embedding  Vector    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}
