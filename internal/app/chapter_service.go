package app

import (
	"context"

	"vidyai-rag/internal/model"
	"vidyai-rag/internal/platform/logger"
	"vidyai-rag/internal/repository"
)

const recentJobsLimit = 5

// ChapterService exposes the admin operations that start from a chapter id.
type ChapterService struct {
	chapterRepo *repository.ChapterRepository
	jobRepo     *repository.IngestionJobRepository
	ingestion   *IngestionService
	log         *logger.Logger
}

func NewChapterService(
	chapterRepo *repository.ChapterRepository,
	jobRepo *repository.IngestionJobRepository,
	ingestion *IngestionService,
	log *logger.Logger,
) *ChapterService {
	if log == nil {
		log = logger.NewNop()
	}
	return &ChapterService{
		chapterRepo: chapterRepo,
		jobRepo:     jobRepo,
		ingestion:   ingestion,
		log:         log.With("component", "chapters"),
	}
}

func (s *ChapterService) Get(ctx context.Context, chapterID uint) (*model.Chapter, error) {
	if chapterID == 0 {
		return nil, ErrInvalidInput
	}
	chapter, err := s.chapterRepo.GetByID(ctx, chapterID)
	if err != nil {
		return nil, err
	}
	if chapter == nil {
		return nil, ErrChapterNotFound
	}
	return chapter, nil
}

// Ensure runs EnsureRetrievable synchronously with the chapter's stored source reference
// and marks the chapter ready once it has embedded chunks.
func (s *ChapterService) Ensure(ctx context.Context, chapterID uint) (IngestResult, error) {
	chapter, err := s.Get(ctx, chapterID)
	if err != nil {
		return IngestResult{}, err
	}
	res, err := s.ingestion.EnsureRetrievable(ctx, chapter.ID, chapter.SourceRef)
	if err != nil {
		return IngestResult{}, err
	}

	status := ""
	switch {
	case res.Embedded > 0:
		status = model.ChapterStatusReady
	case res.Outcome == OutcomeEmpty:
		status = model.ChapterStatusEmpty
	}
	if status != "" && status != chapter.Status {
		if err := s.chapterRepo.UpdateStatus(ctx, chapter.ID, status, nil); err != nil {
			s.log.Warn("update chapter status failed", "chapter_id", chapter.ID, "error", err)
		}
	}
	return res, nil
}

// Stats reports chunk coverage along with the chapter's most recent ingestion jobs.
func (s *ChapterService) Stats(ctx context.Context, chapterID uint) (*ChapterStats, error) {
	chapter, err := s.Get(ctx, chapterID)
	if err != nil {
		return nil, err
	}
	stats, err := s.ingestion.Stats(ctx, chapter)
	if err != nil {
		return nil, err
	}
	jobs, err := s.jobRepo.ListByChapter(ctx, chapter.ID, recentJobsLimit)
	if err != nil {
		return nil, err
	}
	stats.RecentJobs = jobs
	return stats, nil
}
