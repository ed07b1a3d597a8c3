package app

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/singleflight"

	"vidyai-rag/internal/cache"
	"vidyai-rag/internal/platform/logger"
	"vidyai-rag/internal/repository"
)

const defaultTopK = 6

const contextSeparator = "\n\n---\n\n"

type RetrievalService struct {
	chunkRepo *repository.ChunkRepository
	embedder  Embedder
	cache     *cache.ContextCache
	topK      int
	group     singleflight.Group
	log       *logger.Logger
}

func NewRetrievalService(
	chunkRepo *repository.ChunkRepository,
	embedder Embedder,
	contextCache *cache.ContextCache,
	topK int,
	log *logger.Logger,
) *RetrievalService {
	if topK <= 0 {
		topK = defaultTopK
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &RetrievalService{
		chunkRepo: chunkRepo,
		embedder:  embedder,
		cache:     contextCache,
		topK:      topK,
		log:       log.With("component", "retrieval"),
	}
}

// Retrieve returns the chapter's topK chunks closest to query. No match is not an error.
func (s *RetrievalService) Retrieve(ctx context.Context, chapterID uint, query string, topK int) ([]repository.ScoredChunk, error) {
	if chapterID == 0 || strings.TrimSpace(query) == "" {
		return nil, ErrInvalidInput
	}
	if topK <= 0 {
		topK = s.topK
	}
	vec, err := s.embedder.EmbedOne(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query failed: %w", err)
	}
	return s.chunkRepo.SearchSimilar(ctx, chapterID, vec, topK)
}

// BuildContext numbers chunks from 1 in the given order and joins them with a separator line.
func BuildContext(chunks []repository.ScoredChunk) string {
	parts := make([]string, 0, len(chunks))
	for i, c := range chunks {
		parts = append(parts, fmt.Sprintf("[Chunk %d]\n%s", i+1, c.Content))
	}
	return strings.Join(parts, contextSeparator)
}

// RetrieveContext serves the assembled context for (chapter, query), consulting the
// context cache first. Concurrent misses for the same key share one computation.
func (s *RetrievalService) RetrieveContext(ctx context.Context, chapterID uint, query string) (string, error) {
	if chapterID == 0 || strings.TrimSpace(query) == "" {
		return "", ErrInvalidInput
	}
	key := cache.Key(chapterID, query)
	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, key); ok {
			s.log.Debug("context cache hit", "chapter_id", chapterID)
			return cached, nil
		}
	}

	// the shared computation outlives any single caller's cancellation
	shared := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (interface{}, error) {
		chunks, err := s.Retrieve(shared, chapterID, query, s.topK)
		if err != nil {
			return "", err
		}
		text := BuildContext(chunks)
		if text != "" && s.cache != nil {
			s.cache.Set(shared, key, text)
		}
		return text, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}
