package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"vidyai-rag/internal/model"
	"vidyai-rag/internal/platform/logger"
	"vidyai-rag/internal/repository"
)

const (
	defaultMaxAttempts  = 3
	defaultRetryBackoff = 60 * time.Second
)

type JobService struct {
	jobRepo      *repository.IngestionJobRepository
	chapterRepo  *repository.ChapterRepository
	ingestion    *IngestionService
	publisher    JobPublisher
	maxAttempts  int
	retryBackoff time.Duration
	log          *logger.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewJobService(
	jobRepo *repository.IngestionJobRepository,
	chapterRepo *repository.ChapterRepository,
	ingestion *IngestionService,
	publisher JobPublisher,
	maxAttempts int,
	retryBackoff time.Duration,
	log *logger.Logger,
) *JobService {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	if retryBackoff < 0 {
		retryBackoff = defaultRetryBackoff
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &JobService{
		jobRepo:      jobRepo,
		chapterRepo:  chapterRepo,
		ingestion:    ingestion,
		publisher:    publisher,
		maxAttempts:  maxAttempts,
		retryBackoff: retryBackoff,
		log:          log.With("component", "jobs"),
		now:          func() time.Time { return time.Now().UTC() },
		sleep:        sleepContext,
	}
}

// Enqueue records a pending job for the chapter and publishes it to the worker queue.
// An empty sourceRef falls back to the chapter's stored reference.
func (s *JobService) Enqueue(ctx context.Context, chapterID uint, sourceRef string) (*model.IngestionJob, error) {
	if chapterID == 0 {
		return nil, ErrInvalidInput
	}
	if s.publisher == nil {
		return nil, ErrQueueUnavailable
	}
	chapter, err := s.chapterRepo.GetByID(ctx, chapterID)
	if err != nil {
		return nil, err
	}
	if chapter == nil {
		return nil, ErrChapterNotFound
	}
	sourceRef = strings.TrimSpace(sourceRef)
	if sourceRef == "" {
		sourceRef = chapter.SourceRef
	}
	if sourceRef == "" {
		return nil, ErrInvalidInput
	}

	job := &model.IngestionJob{
		ID:        uuid.NewString(),
		ChapterID: chapterID,
		SourceRef: sourceRef,
		Status:    model.JobStatusPending,
	}
	if err := s.jobRepo.Create(ctx, job); err != nil {
		return nil, err
	}
	if err := s.chapterRepo.SetPending(ctx, chapterID, sourceRef); err != nil {
		return nil, err
	}

	msg := model.IngestionMessage{JobID: job.ID, ChapterID: chapterID, SourceRef: sourceRef}
	if err := s.publisher.Publish(ctx, msg); err != nil {
		s.log.Error("publish ingestion job failed", "job_id", job.ID, "chapter_id", chapterID, "error", err)
		s.markFailed(ctx, job, err)
		return nil, fmt.Errorf("%w: %v", ErrEnqueue, err)
	}

	s.log.Info("ingestion job enqueued", "job_id", job.ID, "chapter_id", chapterID)
	return job, nil
}

func (s *JobService) GetJobStatus(ctx context.Context, jobID string) (*model.IngestionJob, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, ErrInvalidInput
	}
	job, err := s.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// Execute runs the job to a terminal state, retrying failed attempts after a fixed backoff.
// A job that is already completed is left untouched. The returned error is the last
// attempt's failure; the job row holds the same message. Errors loading the job or its
// chapter wrap ErrJobLookup and leave the row unchanged, so the delivery can be retried.
func (s *JobService) Execute(ctx context.Context, jobID string) error {
	job, err := s.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrJobLookup, err)
	}
	if job == nil {
		return ErrJobNotFound
	}
	if job.Status == model.JobStatusCompleted {
		s.log.Info("job already completed, skipping", "job_id", job.ID)
		return nil
	}

	chapter, err := s.chapterRepo.GetByID(ctx, job.ChapterID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrJobLookup, err)
	}
	if chapter == nil {
		s.markFailed(ctx, job, ErrChapterNotFound)
		return ErrChapterNotFound
	}

	log := s.log.With("job_id", job.ID, "chapter_id", job.ChapterID)
	for {
		if job.Attempts >= s.maxAttempts {
			err := fmt.Errorf("giving up after %d attempts", job.Attempts)
			if job.ErrorMessage != nil {
				err = fmt.Errorf("giving up after %d attempts: %s", job.Attempts, *job.ErrorMessage)
			}
			s.markFailed(ctx, job, err)
			return err
		}

		res, runErr := s.attempt(ctx, job, chapter)
		if runErr == nil {
			return s.markCompleted(ctx, job, res)
		}

		log.Warn("ingestion attempt failed", "attempt", job.Attempts, "error", runErr)
		s.markFailed(ctx, job, runErr)
		if isPermanent(runErr) || job.Attempts >= s.maxAttempts {
			return runErr
		}
		if err := s.sleep(ctx, s.retryBackoff); err != nil {
			return fmt.Errorf("wait retry backoff failed: %w", err)
		}
	}
}

// attempt re-ingests from source until the chunk set has been written once; after that,
// attempts only embed what is still missing.
func (s *JobService) attempt(ctx context.Context, job *model.IngestionJob, chapter *model.Chapter) (IngestResult, error) {
	now := s.now()
	job.Attempts++
	job.Status = model.JobStatusProcessing
	job.StartedAt = &now
	job.ErrorMessage = nil
	if err := s.jobRepo.Save(ctx, job); err != nil {
		return IngestResult{}, err
	}
	if err := s.chapterRepo.UpdateStatus(ctx, chapter.ID, model.ChapterStatusProcessing, nil); err != nil {
		return IngestResult{}, err
	}

	if job.ChunksWritten {
		return s.ingestion.EnsureRetrievable(ctx, job.ChapterID, job.SourceRef)
	}
	return s.ingestion.Reingest(ctx, job.ChapterID, job.SourceRef, func(ctx context.Context, chunkCount int) error {
		job.ChunksWritten = true
		job.ChunkCount = chunkCount
		return s.jobRepo.Save(ctx, job)
	})
}

func (s *JobService) markCompleted(ctx context.Context, job *model.IngestionJob, res IngestResult) error {
	now := s.now()
	job.Status = model.JobStatusCompleted
	job.CompletedAt = &now
	job.ErrorMessage = nil
	job.ChunkCount = res.Embedded
	if err := s.jobRepo.Save(ctx, job); err != nil {
		return err
	}

	status := model.ChapterStatusReady
	if res.Outcome == OutcomeEmpty || res.Embedded == 0 {
		status = model.ChapterStatusEmpty
	}
	if err := s.chapterRepo.UpdateStatus(ctx, job.ChapterID, status, nil); err != nil {
		return err
	}
	s.log.Info("ingestion job completed", "job_id", job.ID, "chapter_id", job.ChapterID,
		"attempts", job.Attempts, "embedded", res.Embedded, "outcome", res.Outcome)
	return nil
}

// markFailed is best effort; the caller already holds the error being recorded.
func (s *JobService) markFailed(ctx context.Context, job *model.IngestionJob, cause error) {
	msg := cause.Error()
	job.Status = model.JobStatusFailed
	job.ErrorMessage = &msg
	if err := s.jobRepo.Save(ctx, job); err != nil {
		s.log.Error("save failed job status failed", "job_id", job.ID, "error", err)
	}
	if err := s.chapterRepo.UpdateStatus(ctx, job.ChapterID, model.ChapterStatusFailed, &msg); err != nil {
		s.log.Error("save failed chapter status failed", "chapter_id", job.ChapterID, "error", err)
	}
}

func isPermanent(err error) bool {
	return errors.Is(err, ErrUnreadableDocument) ||
		errors.Is(err, ErrChapterNotFound) ||
		errors.Is(err, ErrInvalidInput)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
