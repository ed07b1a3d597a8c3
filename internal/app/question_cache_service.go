package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"vidyai-rag/internal/model"
	"vidyai-rag/internal/platform/logger"
	"vidyai-rag/internal/repository"
)

const defaultQuestionCacheTTL = 7 * 24 * time.Hour

// GenerateFunc produces a fresh question set on a cache miss.
type GenerateFunc func(ctx context.Context) (*model.QuestionSet, error)

type QuestionCacheService struct {
	repo  *repository.QuestionCacheRepository
	ttl   time.Duration
	group singleflight.Group
	log   *logger.Logger
	now   func() time.Time
}

func NewQuestionCacheService(repo *repository.QuestionCacheRepository, ttl time.Duration, log *logger.Logger) *QuestionCacheService {
	if ttl <= 0 {
		ttl = defaultQuestionCacheTTL
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &QuestionCacheService{
		repo: repo,
		ttl:  ttl,
		log:  log.With("component", "question_cache"),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Get returns the live set for (chapter, count). Read failures and unparsable rows are misses.
func (s *QuestionCacheService) Get(ctx context.Context, chapterID uint, count int) (*model.QuestionSet, bool) {
	entry, err := s.repo.GetLive(ctx, chapterID, count, s.now())
	if err != nil {
		s.log.Warn("question cache read failed", "chapter_id", chapterID, "num_questions", count, "error", err)
		return nil, false
	}
	if entry == nil {
		return nil, false
	}
	var set model.QuestionSet
	if err := json.Unmarshal(entry.QuestionsJSON, &set); err != nil {
		s.log.Warn("question cache entry unreadable", "chapter_id", chapterID, "num_questions", count, "error", err)
		return nil, false
	}
	return &set, true
}

// Put overwrites the entry for (chapter, count). Losing an insert race to another writer is not an error.
func (s *QuestionCacheService) Put(ctx context.Context, chapterID uint, count int, set *model.QuestionSet) error {
	payload, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("marshal question set failed: %w", err)
	}
	if _, err := s.repo.Upsert(ctx, chapterID, count, payload, s.now().Add(s.ttl)); err != nil {
		return err
	}
	return nil
}

// GetOrGenerate returns the cached set or generates and stores a new one. The bool
// reports a cache hit. A failed cache write is logged and the generated set still returned.
// Concurrent misses share one generation, which is not cancelled when one caller gives up.
func (s *QuestionCacheService) GetOrGenerate(ctx context.Context, chapterID uint, count int, generate GenerateFunc) (*model.QuestionSet, bool, error) {
	if chapterID == 0 || count <= 0 {
		return nil, false, ErrInvalidInput
	}
	if set, ok := s.Get(ctx, chapterID, count); ok {
		return set, true, nil
	}

	key := fmt.Sprintf("%d:%d", chapterID, count)
	shared := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (interface{}, error) {
		set, err := generate(shared)
		if err != nil {
			return nil, err
		}
		if err := s.Put(shared, chapterID, count, set); err != nil {
			s.log.Warn("question cache write failed", "chapter_id", chapterID, "num_questions", count, "error", err)
		}
		return set, nil
	})

	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		return res.Val.(*model.QuestionSet), false, nil
	}
}
