package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidyai-rag/internal/chunker"
	"vidyai-rag/internal/model"
	"vidyai-rag/internal/repository"
)

type jobFixture struct {
	*ingestionFixture
	jobs      *repository.IngestionJobRepository
	chapters  *repository.ChapterRepository
	publisher *fakePublisher
	svc       *JobService
	sleeps    []time.Duration
}

func newJobFixture(t *testing.T) *jobFixture {
	base := newIngestionFixture(t, 20)
	f := &jobFixture{
		ingestionFixture: base,
		jobs:             repository.NewIngestionJobRepository(base.db),
		chapters:         repository.NewChapterRepository(base.db),
		publisher:        &fakePublisher{},
	}
	f.svc = NewJobService(f.jobs, f.chapters, base.svc, f.publisher, 3, time.Minute, nil)
	f.svc.sleep = func(_ context.Context, d time.Duration) error {
		f.sleeps = append(f.sleeps, d)
		return nil
	}
	return f
}

func (f *jobFixture) chapter(t *testing.T, name, sourceRef string) *model.Chapter {
	ch := &model.Chapter{Name: name, SourceRef: sourceRef}
	require.NoError(t, f.chapters.Create(context.Background(), ch))
	return ch
}

func (f *jobFixture) reload(t *testing.T, jobID string, chapterID uint) (*model.IngestionJob, *model.Chapter) {
	job, err := f.jobs.GetByID(context.Background(), jobID)
	require.NoError(t, err)
	require.NotNil(t, job)
	ch, err := f.chapters.GetByID(context.Background(), chapterID)
	require.NoError(t, err)
	require.NotNil(t, ch)
	return job, ch
}

func TestEnqueue(t *testing.T) {
	ctx := context.Background()
	f := newJobFixture(t)
	ch := f.chapter(t, "Acids", "")

	job, err := f.svc.Enqueue(ctx, ch.ID, "pdfs/acids.pdf")
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, model.JobStatusPending, job.Status)

	require.Len(t, f.publisher.msgs, 1)
	assert.Equal(t, model.IngestionMessage{JobID: job.ID, ChapterID: ch.ID, SourceRef: "pdfs/acids.pdf"}, f.publisher.msgs[0])

	_, reloaded := f.reload(t, job.ID, ch.ID)
	assert.Equal(t, model.ChapterStatusPending, reloaded.Status)
	assert.Equal(t, "pdfs/acids.pdf", reloaded.SourceRef)

	// falls back to the stored source reference
	again, err := f.svc.Enqueue(ctx, ch.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "pdfs/acids.pdf", again.SourceRef)
}

func TestEnqueueErrors(t *testing.T) {
	ctx := context.Background()
	f := newJobFixture(t)

	_, err := f.svc.Enqueue(ctx, 404, "x")
	assert.ErrorIs(t, err, ErrChapterNotFound)

	ch := f.chapter(t, "No Source", "")
	_, err = f.svc.Enqueue(ctx, ch.ID, " ")
	assert.ErrorIs(t, err, ErrInvalidInput)

	f.publisher.err = errors.New("channel closed")
	_, err = f.svc.Enqueue(ctx, ch.ID, "pdfs/a.pdf")
	assert.ErrorIs(t, err, ErrEnqueue)

	var jobs []model.IngestionJob
	require.NoError(t, f.db.Find(&jobs).Error)
	require.Len(t, jobs, 1)
	assert.Equal(t, model.JobStatusFailed, jobs[0].Status)
}

func TestEnqueueWithoutQueue(t *testing.T) {
	ctx := context.Background()
	f := newJobFixture(t)
	ch := f.chapter(t, "Acids", "pdfs/acids.pdf")
	svc := NewJobService(f.jobs, f.chapters, f.ingestionFixture.svc, nil, 3, time.Minute, nil)

	_, err := svc.Enqueue(ctx, ch.ID, "")
	assert.ErrorIs(t, err, ErrQueueUnavailable)

	var n int64
	require.NoError(t, f.db.Model(&model.IngestionJob{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestGetJobStatus(t *testing.T) {
	f := newJobFixture(t)
	_, err := f.svc.GetJobStatus(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
	_, err = f.svc.GetJobStatus(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestExecuteCompletes(t *testing.T) {
	ctx := context.Background()
	f := newJobFixture(t)
	f.source.docs["pdfs/light.pdf"] = pagesOf(3)
	ch := f.chapter(t, "Light", "")

	job, err := f.svc.Enqueue(ctx, ch.ID, "pdfs/light.pdf")
	require.NoError(t, err)
	require.NoError(t, f.svc.Execute(ctx, job.ID))

	got, chapter := f.reload(t, job.ID, ch.ID)
	assert.Equal(t, model.JobStatusCompleted, got.Status)
	assert.Equal(t, 1, got.Attempts)
	assert.Equal(t, 3, got.ChunkCount)
	assert.NotNil(t, got.StartedAt)
	assert.NotNil(t, got.CompletedAt)
	assert.Nil(t, got.ErrorMessage)
	assert.Equal(t, model.ChapterStatusReady, chapter.Status)

	// redelivery of a completed job does nothing
	calls := f.embedder.callCount()
	require.NoError(t, f.svc.Execute(ctx, job.ID))
	assert.Equal(t, calls, f.embedder.callCount())
	assert.Equal(t, 1, f.source.downloads)
}

// A job failing twice then succeeding ends completed with the chapter ready and its error cleared.
func TestExecuteRetriesTransientFailures(t *testing.T) {
	ctx := context.Background()
	f := newJobFixture(t)
	f.source.docs["pdfs/motion.pdf"] = pagesOf(4)
	ch := f.chapter(t, "Motion", "")
	f.embedder.failCalls[1] = errors.New("503 service unavailable")
	f.embedder.failCalls[2] = errors.New("503 service unavailable")

	job, err := f.svc.Enqueue(ctx, ch.ID, "pdfs/motion.pdf")
	require.NoError(t, err)
	require.NoError(t, f.svc.Execute(ctx, job.ID))

	got, chapter := f.reload(t, job.ID, ch.ID)
	assert.Equal(t, model.JobStatusCompleted, got.Status)
	assert.Equal(t, 3, got.Attempts)
	assert.Equal(t, 4, got.ChunkCount)
	assert.Nil(t, got.ErrorMessage)
	assert.Equal(t, model.ChapterStatusReady, chapter.Status)
	assert.Nil(t, chapter.ErrorMessage)
	assert.Equal(t, []time.Duration{time.Minute, time.Minute}, f.sleeps)

	// the source was fetched once; later attempts resumed from stored chunks
	assert.Equal(t, 1, f.source.downloads)
}

func TestExecuteGivesUpAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	f := newJobFixture(t)
	ch := f.chapter(t, "Missing Source", "")

	job, err := f.svc.Enqueue(ctx, ch.ID, "pdfs/nowhere.pdf")
	require.NoError(t, err)
	err = f.svc.Execute(ctx, job.ID)
	require.Error(t, err)

	got, chapter := f.reload(t, job.ID, ch.ID)
	assert.Equal(t, model.JobStatusFailed, got.Status)
	assert.Equal(t, 3, got.Attempts)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, model.ChapterStatusFailed, chapter.Status)
	require.NotNil(t, chapter.ErrorMessage)
	assert.Len(t, f.sleeps, 2)
}

func TestExecuteUnreadableDocumentIsNotRetried(t *testing.T) {
	ctx := context.Background()
	f := newJobFixture(t)
	f.source.docs["pdfs/broken.pdf"] = []byte("BAD")
	ch := f.chapter(t, "Broken", "")

	job, err := f.svc.Enqueue(ctx, ch.ID, "pdfs/broken.pdf")
	require.NoError(t, err)
	err = f.svc.Execute(ctx, job.ID)
	assert.ErrorIs(t, err, ErrUnreadableDocument)

	got, _ := f.reload(t, job.ID, ch.ID)
	assert.Equal(t, model.JobStatusFailed, got.Status)
	assert.Equal(t, 1, got.Attempts)
	assert.Empty(t, f.sleeps)
}

// An empty document completes the job without recording a failure.
func TestExecuteEmptyDocument(t *testing.T) {
	ctx := context.Background()
	f := newJobFixture(t)
	f.source.docs["pdfs/scan.pdf"] = []byte("\f\f")
	ch := f.chapter(t, "Scanned", "")

	job, err := f.svc.Enqueue(ctx, ch.ID, "pdfs/scan.pdf")
	require.NoError(t, err)
	require.NoError(t, f.svc.Execute(ctx, job.ID))

	got, chapter := f.reload(t, job.ID, ch.ID)
	assert.Equal(t, model.JobStatusCompleted, got.Status)
	assert.Nil(t, got.ErrorMessage)
	assert.Zero(t, got.ChunkCount)
	assert.Equal(t, model.ChapterStatusEmpty, chapter.Status)
	assert.Nil(t, chapter.ErrorMessage)
}

// A redelivered job whose chunks were already written resumes by embedding the rest.
func TestExecuteResumesAfterCrash(t *testing.T) {
	ctx := context.Background()
	f := newJobFixture(t)
	ch := f.chapter(t, "Resumed", "pdfs/resumed.pdf")

	splitter := chunker.New(chunker.WithSize(10), chunker.WithOverlap(0))
	for i, p := range splitter.Split([]chunker.Page{{Number: 1, Text: string(pagesOf(1))}, {Number: 2, Text: "second...."}}) {
		c := &model.TextChunk{ChapterID: ch.ID, ChunkIndex: p.Index, Content: p.Content}
		if i == 0 {
			c.Embedding = model.Vector{1, 1}
		}
		require.NoError(t, f.chunks.Create(ctx, c))
	}
	job := &model.IngestionJob{
		ID:            "3f0c1a52-7d0e-4bd4-9b0c-5d3f2c1e9a77",
		ChapterID:     ch.ID,
		SourceRef:     "pdfs/resumed.pdf",
		Status:        model.JobStatusProcessing,
		Attempts:      1,
		ChunksWritten: true,
	}
	require.NoError(t, f.jobs.Create(ctx, job))

	require.NoError(t, f.svc.Execute(ctx, job.ID))

	got, chapter := f.reload(t, job.ID, ch.ID)
	assert.Equal(t, model.JobStatusCompleted, got.Status)
	assert.Equal(t, 2, got.Attempts)
	assert.Equal(t, 2, got.ChunkCount)
	assert.Equal(t, model.ChapterStatusReady, chapter.Status)
	assert.Zero(t, f.source.downloads)
	assert.Equal(t, []string{"second...."}, f.embedder.embedded)
}

func TestExecuteUnknownJob(t *testing.T) {
	f := newJobFixture(t)
	assert.ErrorIs(t, f.svc.Execute(context.Background(), "nope"), ErrJobNotFound)
}

func TestExecuteLookupFailureLeavesJobPending(t *testing.T) {
	ctx := context.Background()
	f := newJobFixture(t)
	ch := f.chapter(t, "Light", "pdfs/light.pdf")
	job, err := f.svc.Enqueue(ctx, ch.ID, "")
	require.NoError(t, err)

	require.NoError(t, f.db.Migrator().RenameTable(&model.Chapter{}, "chapters_offline"))

	err = f.svc.Execute(ctx, job.ID)
	require.ErrorIs(t, err, ErrJobLookup)

	got, err := f.jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.JobStatusPending, got.Status)
	assert.Zero(t, got.Attempts)
	assert.Zero(t, f.source.downloads)
}
