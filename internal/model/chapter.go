package model

import "time"

const (
	ChapterStatusPending    = "pending"
	ChapterStatusProcessing = "processing"
	ChapterStatusReady      = "ready"
	ChapterStatusFailed     = "failed"
	// ChapterStatusEmpty marks a source document that yielded no extractable text.
	ChapterStatusEmpty = "empty"
)

// Chapter is the catalog entry the engine reads names and source references from.
// Only Status, ErrorMessage and SourceRef are written here.
type Chapter struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	SubjectID     uint      `gorm:"index" json:"subject_id"`
	ChapterNumber int       `json:"chapter_number"`
	Name          string    `gorm:"size:255;not null" json:"chapter_name"`
	Status        string    `gorm:"size:20;not null;default:ready" json:"status"`
	SourceRef     string    `gorm:"type:text" json:"source_ref,omitempty"`
	ErrorMessage  *string   `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
