package model

import (
	"time"

	"gorm.io/datatypes"
)

// QuestionCache is the shared question bank for a (chapter, question count) pair.
// Expired rows stay in the table and are ignored by reads.
type QuestionCache struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	ChapterID     uint           `gorm:"not null;uniqueIndex:uq_question_cache,priority:1" json:"chapter_id"`
	NumQuestions  int            `gorm:"not null;uniqueIndex:uq_question_cache,priority:2" json:"num_questions"`
	QuestionsJSON datatypes.JSON `gorm:"not null" json:"questions_json"`
	ExpiresAt     time.Time      `gorm:"not null;index" json:"expires_at"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

func (QuestionCache) TableName() string {
	return "question_cache"
}

// QuestionSet is the generator's structured output.
type QuestionSet struct {
	Questions []Question `json:"questions"`
}

type Question struct {
	ID            int      `json:"id"`
	Question      string   `json:"question"`
	Options       []Option `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Explanation   string   `json:"explanation"`
}

type Option struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}
