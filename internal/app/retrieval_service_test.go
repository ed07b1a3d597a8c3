package app

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidyai-rag/internal/cache"
	"vidyai-rag/internal/model"
	"vidyai-rag/internal/platform/logger"
	"vidyai-rag/internal/repository"
)

// topicVector places texts about light on the x axis and texts about sound on the y axis.
func topicVector(text string) []float32 {
	light := float32(strings.Count(text, "light"))
	sound := float32(strings.Count(text, "sound"))
	return []float32{light + 0.01, sound + 0.01}
}

func newRetrievalFixture(t *testing.T, store cache.Store) (*RetrievalService, *repository.ChunkRepository, *fakeEmbedder) {
	db := newTestDB(t)
	chunks := repository.NewChunkRepository(db)
	embedder := newFakeEmbedder(20)
	embedder.vectorFor = topicVector

	ctx := context.Background()
	contents := []string{
		"sound travels as waves",
		"light reflects from mirrors",
		"light refracts in glass light",
		"echo is reflected sound",
	}
	for i, c := range contents {
		require.NoError(t, chunks.Create(ctx, &model.TextChunk{
			ChapterID:  1,
			ChunkIndex: i,
			Content:    c,
			Embedding:  topicVector(c),
		}))
	}

	cc := cache.NewContextCache(store, 0, logger.NewNop())
	return NewRetrievalService(chunks, embedder, cc, 2, nil), chunks, embedder
}

func TestRetrieveRanksByRelevance(t *testing.T) {
	svc, _, _ := newRetrievalFixture(t, newMemStore())

	hits, err := svc.Retrieve(context.Background(), 1, "light", 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Contains(t, hits[0].Content, "light")
	assert.Contains(t, hits[1].Content, "light")

	none, err := svc.Retrieve(context.Background(), 2, "light", 2)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = svc.Retrieve(context.Background(), 1, "  ", 2)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestBuildContext(t *testing.T) {
	chunks := []repository.ScoredChunk{
		{TextChunk: model.TextChunk{Content: "first"}},
		{TextChunk: model.TextChunk{Content: "second"}},
	}
	assert.Equal(t, "[Chunk 1]\nfirst\n\n---\n\n[Chunk 2]\nsecond", BuildContext(chunks))
	assert.Equal(t, "", BuildContext(nil))
}

func TestRetrieveContextUsesCache(t *testing.T) {
	store := newMemStore()
	svc, _, embedder := newRetrievalFixture(t, store)
	ctx := context.Background()

	first, err := svc.RetrieveContext(ctx, 1, "sound")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(first, "[Chunk 1]\n"))
	assert.Contains(t, first, "sound")
	assert.Equal(t, 1, embedder.callCount())
	assert.Equal(t, 1, store.sets)

	second, err := svc.RetrieveContext(ctx, 1, "sound")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, embedder.callCount())

	cached, ok := store.data[cache.Key(1, "sound")]
	require.True(t, ok)
	assert.Equal(t, first, cached)
}

func TestRetrieveContextEmptyIsNotCached(t *testing.T) {
	store := newMemStore()
	svc, _, _ := newRetrievalFixture(t, store)

	text, err := svc.RetrieveContext(context.Background(), 99, "light")
	require.NoError(t, err)
	assert.Empty(t, text)
	assert.Zero(t, store.sets)
}

func TestRetrieveContextSurvivesCacheOutage(t *testing.T) {
	store := newMemStore()
	store.failAll = true
	svc, _, embedder := newRetrievalFixture(t, store)

	text, err := svc.RetrieveContext(context.Background(), 1, "light")
	require.NoError(t, err)
	assert.Contains(t, text, "light")

	_, err = svc.RetrieveContext(context.Background(), 1, "light")
	require.NoError(t, err)
	assert.Equal(t, 2, embedder.callCount())
}

func TestRetrieveContextSharedCallSurvivesCallerCancel(t *testing.T) {
	svc, _, embedder := newRetrievalFixture(t, newMemStore())
	embedder.hold = make(chan struct{})
	embedder.entered = make(chan struct{}, 4)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := svc.RetrieveContext(ctxA, 1, "light")
		errA <- err
	}()
	<-embedder.entered

	type result struct {
		text string
		err  error
	}
	resB := make(chan result, 1)
	go func() {
		text, err := svc.RetrieveContext(context.Background(), 1, "light")
		resB <- result{text: text, err: err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancelA()
	assert.ErrorIs(t, <-errA, context.Canceled)
	close(embedder.hold)

	b := <-resB
	require.NoError(t, b.err)
	assert.Contains(t, b.text, "light")
	assert.Equal(t, 1, embedder.callCount())
}
