package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidyai-rag/internal/model"
	"vidyai-rag/internal/repository"
)

func TestChapterServiceEnsureAndStats(t *testing.T) {
	ctx := context.Background()
	f := newIngestionFixture(t, 20)
	chapters := repository.NewChapterRepository(f.db)
	jobs := repository.NewIngestionJobRepository(f.db)
	svc := NewChapterService(chapters, jobs, f.svc, nil)

	f.source.docs["pdfs/sound.pdf"] = pagesOf(3)
	ch := &model.Chapter{Name: "Sound", SourceRef: "pdfs/sound.pdf", Status: model.ChapterStatusPending}
	require.NoError(t, chapters.Create(ctx, ch))

	res, err := svc.Ensure(ctx, ch.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIngested, res.Outcome)
	assert.Equal(t, 3, res.Embedded)

	stats, err := svc.Stats(ctx, ch.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ChapterStatusReady, stats.Status)
	assert.EqualValues(t, 3, stats.ChunkCount)
	assert.EqualValues(t, 3, stats.EmbeddedCount)
	assert.Empty(t, stats.RecentJobs)

	require.NoError(t, jobs.Create(ctx, &model.IngestionJob{
		ID: "job-sound", ChapterID: ch.ID, SourceRef: "pdfs/sound.pdf", Status: model.JobStatusCompleted,
	}))
	stats, err = svc.Stats(ctx, ch.ID)
	require.NoError(t, err)
	require.Len(t, stats.RecentJobs, 1)
	assert.Equal(t, "job-sound", stats.RecentJobs[0].ID)

	_, err = svc.Ensure(ctx, 999)
	assert.ErrorIs(t, err, ErrChapterNotFound)
	_, err = svc.Stats(ctx, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
}
