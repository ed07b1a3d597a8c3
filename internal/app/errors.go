package app

import "errors"

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrChapterNotFound    = errors.New("chapter not found")
	ErrJobNotFound        = errors.New("ingestion job not found")
	ErrJobLookup          = errors.New("ingestion job lookup failed")
	ErrNoEmbeddings       = errors.New("no embeddings available, ingest the source first")
	ErrEmbeddingPrepare   = errors.New("failed to prepare chapter embeddings")
	ErrNoContext          = errors.New("no relevant content found for chapter")
	ErrGeneration         = errors.New("question generation failed")
	ErrUnreadableDocument = errors.New("source document is unreadable")
	ErrEnqueue            = errors.New("ingestion job enqueue failed")
	ErrQueueUnavailable   = errors.New("ingestion queue is not connected")
)
