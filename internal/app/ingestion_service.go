package app

import (
	"context"
	"fmt"

	"vidyai-rag/internal/chunker"
	"vidyai-rag/internal/model"
	"vidyai-rag/internal/platform/logger"
	"vidyai-rag/internal/repository"
)

type Outcome string

const (
	OutcomeNoop       Outcome = "noop"
	OutcomeBackfilled Outcome = "backfilled"
	OutcomeIngested   Outcome = "ingested"
	OutcomeEmpty      Outcome = "empty"
	OutcomeNoSource   Outcome = "no_source"
)

// IngestResult reports how many of the chapter's chunks carry an embedding afterwards.
type IngestResult struct {
	Embedded int
	Outcome  Outcome
}

// WriteHook runs after a chapter's chunk set has been replaced and before embedding starts.
type WriteHook func(ctx context.Context, chunkCount int) error

type IngestionService struct {
	chunkRepo *repository.ChunkRepository
	embedder  Embedder
	source    DocumentSource
	extractor TextExtractor
	chunker   *chunker.Chunker
	log       *logger.Logger
}

func NewIngestionService(
	chunkRepo *repository.ChunkRepository,
	embedder Embedder,
	source DocumentSource,
	extractor TextExtractor,
	splitter *chunker.Chunker,
	log *logger.Logger,
) *IngestionService {
	if splitter == nil {
		splitter = chunker.New()
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &IngestionService{
		chunkRepo: chunkRepo,
		embedder:  embedder,
		source:    source,
		extractor: extractor,
		chunker:   splitter,
		log:       log.With("component", "ingestion"),
	}
}

// EnsureRetrievable makes every chunk of the chapter embedded, doing the least work needed:
// nothing when all chunks are embedded, a backfill when some are missing, and a full
// ingestion from sourceRef when the chapter has no chunks at all.
func (s *IngestionService) EnsureRetrievable(ctx context.Context, chapterID uint, sourceRef string) (IngestResult, error) {
	if chapterID == 0 {
		return IngestResult{}, ErrInvalidInput
	}
	total, err := s.chunkRepo.CountByChapter(ctx, chapterID)
	if err != nil {
		return IngestResult{}, err
	}
	if total > 0 {
		embedded, err := s.chunkRepo.CountEmbeddedByChapter(ctx, chapterID)
		if err != nil {
			return IngestResult{}, err
		}
		if embedded == total {
			return IngestResult{Embedded: int(embedded), Outcome: OutcomeNoop}, nil
		}
		s.log.Info("backfilling missing embeddings", "chapter_id", chapterID, "total", total, "embedded", embedded)
		n, err := s.backfill(ctx, chapterID)
		if err != nil {
			return IngestResult{}, err
		}
		return IngestResult{Embedded: n, Outcome: OutcomeBackfilled}, nil
	}
	if sourceRef == "" {
		return IngestResult{Outcome: OutcomeNoSource}, nil
	}
	return s.ingest(ctx, chapterID, sourceRef, nil)
}

// Reingest rebuilds the chapter from sourceRef, replacing any existing chunks.
func (s *IngestionService) Reingest(ctx context.Context, chapterID uint, sourceRef string, hook WriteHook) (IngestResult, error) {
	if chapterID == 0 || sourceRef == "" {
		return IngestResult{}, ErrInvalidInput
	}
	return s.ingest(ctx, chapterID, sourceRef, hook)
}

func (s *IngestionService) ingest(ctx context.Context, chapterID uint, sourceRef string, hook WriteHook) (IngestResult, error) {
	raw, err := s.source.Download(ctx, sourceRef)
	if err != nil {
		return IngestResult{}, fmt.Errorf("download source failed: %w", err)
	}
	pages, err := s.extractor.Extract(raw)
	if err != nil {
		return IngestResult{}, fmt.Errorf("%w: %v", ErrUnreadableDocument, err)
	}

	parts := s.chunker.Split(pages)
	chunks := make([]model.TextChunk, len(parts))
	for i, p := range parts {
		page := p.PageNumber
		chunks[i] = model.TextChunk{
			ChapterID:  chapterID,
			ChunkIndex: p.Index,
			PageNumber: &page,
			Content:    p.Content,
		}
	}
	if err := s.chunkRepo.ReplaceForChapter(ctx, chapterID, chunks); err != nil {
		return IngestResult{}, err
	}
	if hook != nil {
		if err := hook(ctx, len(chunks)); err != nil {
			return IngestResult{}, err
		}
	}
	if len(chunks) == 0 {
		s.log.Warn("source yielded no text", "chapter_id", chapterID, "source_ref", sourceRef, "pages", len(pages))
		return IngestResult{Outcome: OutcomeEmpty}, nil
	}

	n, err := s.backfill(ctx, chapterID)
	if err != nil {
		return IngestResult{}, err
	}
	s.log.Info("chapter ingested", "chapter_id", chapterID, "pages", len(pages), "chunks", n)
	return IngestResult{Embedded: n, Outcome: OutcomeIngested}, nil
}

// backfill embeds chunks without a vector in index order, committing each batch on its own
// so a failure keeps the batches already stored.
func (s *IngestionService) backfill(ctx context.Context, chapterID uint) (int, error) {
	missing, err := s.chunkRepo.ListMissingEmbedding(ctx, chapterID)
	if err != nil {
		return 0, err
	}
	batch := s.embedder.BatchSize()
	if batch <= 0 {
		batch = len(missing)
	}
	for start := 0; start < len(missing); start += batch {
		end := start + batch
		if end > len(missing) {
			end = len(missing)
		}
		group := missing[start:end]
		texts := make([]string, len(group))
		for i := range group {
			texts[i] = group[i].Content
		}
		vectors, err := s.embedder.EmbedMany(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("embed chunks failed: %w", err)
		}
		if len(vectors) != len(group) {
			return 0, fmt.Errorf("embed chunks failed: got %d vectors for %d chunks", len(vectors), len(group))
		}
		updates := make(map[uint][]float32, len(group))
		for i := range group {
			updates[group[i].ID] = vectors[i]
		}
		if _, err := s.chunkRepo.SetEmbeddings(ctx, updates); err != nil {
			return 0, err
		}
	}

	embedded, err := s.chunkRepo.CountEmbeddedByChapter(ctx, chapterID)
	if err != nil {
		return 0, err
	}
	return int(embedded), nil
}

// ChapterStats is the chunk coverage of one chapter.
type ChapterStats struct {
	ChapterID     uint   `json:"chapter_id"`
	Status        string `json:"status"`
	ChunkCount    int64  `json:"chunk_count"`
	EmbeddedCount int64  `json:"embedded_count"`

	RecentJobs []model.IngestionJob `json:"recent_jobs,omitempty"`
}

func (s *IngestionService) Stats(ctx context.Context, chapter *model.Chapter) (*ChapterStats, error) {
	total, embedded, err := s.chunkRepo.ChapterStats(ctx, chapter.ID)
	if err != nil {
		return nil, err
	}
	return &ChapterStats{
		ChapterID:     chapter.ID,
		Status:        chapter.Status,
		ChunkCount:    total,
		EmbeddedCount: embedded,
	}, nil
}
