package model

import "time"

const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// IngestionJob tracks one enqueued ingestion. Rows are kept as an audit trail.
//
// ChunksWritten is set once the job has replaced the chapter's chunks; later
// attempts resume embedding instead of downloading the source again.
type IngestionJob struct {
	ID            string     `gorm:"primaryKey;size:36" json:"id"`
	ChapterID     uint       `gorm:"not null;index" json:"chapter_id"`
	SourceRef     string     `gorm:"type:text;not null" json:"source_ref"`
	Status        string     `gorm:"size:20;not null;default:pending;index" json:"status"`
	ErrorMessage  *string    `gorm:"type:text" json:"error_message,omitempty"`
	Attempts      int        `gorm:"not null;default:0" json:"attempts"`
	ChunksWritten bool       `gorm:"not null;default:false" json:"-"`
	ChunkCount    int        `gorm:"not null;default:0" json:"chunk_count"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// IngestionMessage is the queue payload for one job.
type IngestionMessage struct {
	JobID     string `json:"job_id"`
	ChapterID uint   `json:"chapter_id"`
	SourceRef string `json:"source_ref"`
}
