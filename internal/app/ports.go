package app

import (
	"context"

	"vidyai-rag/internal/chunker"
	"vidyai-rag/internal/model"
)

type Embedder interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)
	BatchSize() int
}

type DocumentSource interface {
	Download(ctx context.Context, ref string) ([]byte, error)
}

type TextExtractor interface {
	Extract(raw []byte) ([]chunker.Page, error)
}

type QuestionGenerator interface {
	Generate(ctx context.Context, chapterContext, chapterName string, count int) (*model.QuestionSet, error)
}

type JobPublisher interface {
	Publish(ctx context.Context, msg model.IngestionMessage) error
}
