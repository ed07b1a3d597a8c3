package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"vidyai-rag/internal/chunker"
	"vidyai-rag/internal/model"
	"vidyai-rag/internal/platform/database"
	"vidyai-rag/internal/source"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := database.New(context.Background(), "sqlite", dsn)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

type fakeEmbedder struct {
	mu        sync.Mutex
	batchSize int
	calls     int
	embedded  []string
	failCalls map[int]error
	vectorFor func(text string) []float32

	// hold, when set, parks every call until closed and signals entered on arrival.
	// A call whose context is done by then fails with the context error.
	hold    chan struct{}
	entered chan struct{}
}

func newFakeEmbedder(batchSize int) *fakeEmbedder {
	return &fakeEmbedder{batchSize: batchSize, failCalls: map[int]error{}}
}

func (f *fakeEmbedder) vector(text string) []float32 {
	if f.vectorFor != nil {
		return f.vectorFor(text)
	}
	return []float32{float32(len(text)), 1}
}

func (f *fakeEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	out, err := f.EmbedMany(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (f *fakeEmbedder) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	if f.hold != nil {
		f.entered <- struct{}{}
		<-f.hold
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err, ok := f.failCalls[f.calls]; ok {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = f.vector(t)
	}
	f.embedded = append(f.embedded, texts...)
	return out, nil
}

func (f *fakeEmbedder) BatchSize() int { return f.batchSize }

func (f *fakeEmbedder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSource struct {
	mu        sync.Mutex
	docs      map[string][]byte
	downloads int
}

func (s *fakeSource) Download(_ context.Context, ref string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.downloads++
	b, ok := s.docs[ref]
	if !ok {
		return nil, source.ErrNotFound
	}
	return b, nil
}

// pageExtractor treats form feeds as page breaks; input starting with "BAD" is unreadable.
type pageExtractor struct{}

func (pageExtractor) Extract(raw []byte) ([]chunker.Page, error) {
	s := string(raw)
	if strings.HasPrefix(s, "BAD") {
		return nil, errors.New("malformed xref table")
	}
	var pages []chunker.Page
	for i, p := range strings.Split(s, "\f") {
		pages = append(pages, chunker.Page{Number: i + 1, Text: p})
	}
	return pages, nil
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []model.IngestionMessage
	err  error
}

func (p *fakePublisher) Publish(_ context.Context, msg model.IngestionMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

type fakeGenerator struct {
	mu      sync.Mutex
	calls   int
	delay   time.Duration
	err     error
	context string
}

func (g *fakeGenerator) Generate(_ context.Context, chapterContext, chapterName string, count int) (*model.QuestionSet, error) {
	time.Sleep(g.delay)
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.context = chapterContext
	if g.err != nil {
		return nil, g.err
	}
	set := &model.QuestionSet{}
	for i := 1; i <= count; i++ {
		set.Questions = append(set.Questions, model.Question{
			ID:       i,
			Question: chapterName + " question",
			Options: []model.Option{
				{Key: "A", Text: "a"}, {Key: "B", Text: "b"}, {Key: "C", Text: "c"}, {Key: "D", Text: "d"},
			},
			CorrectAnswer: "A",
		})
	}
	return set, nil
}

type memStore struct {
	mu      sync.Mutex
	data    map[string]string
	sets    int
	failAll bool
}

func newMemStore() *memStore {
	return &memStore{data: map[string]string{}}
}

func (m *memStore) Get(_ context.Context, key string) (string, bool, error) {
	if m.failAll {
		return "", false, errors.New("dial tcp: connection refused")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memStore) Set(_ context.Context, key, value string, _ time.Duration) error {
	if m.failAll {
		return errors.New("dial tcp: connection refused")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.sets++
	return nil
}
