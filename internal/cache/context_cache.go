package cache

import (
	"context"
	"crypto/md5"
	"fmt"
	"time"

	"vidyai-rag/internal/platform/logger"
)

const DefaultContextTTL = 7 * 24 * time.Hour

// ContextCache stores assembled retrieval context per (chapter, query).
// It never fails a caller: store errors are logged and read as a miss.
type ContextCache struct {
	store Store
	ttl   time.Duration
	log   *logger.Logger
}

func NewContextCache(store Store, ttl time.Duration, log *logger.Logger) *ContextCache {
	if ttl <= 0 {
		ttl = DefaultContextTTL
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &ContextCache{
		store: store,
		ttl:   ttl,
		log:   log.With("component", "context_cache"),
	}
}

// Key is rag_ctx:<chapter>:<md5 of query>. The query is hashed as given.
func Key(chapterID uint, query string) string {
	return fmt.Sprintf("rag_ctx:%d:%x", chapterID, md5.Sum([]byte(query)))
}

func (c *ContextCache) Get(ctx context.Context, key string) (string, bool) {
	if c.store == nil {
		return "", false
	}
	value, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.log.Warn("context cache read failed", "key", key, "error", err)
		return "", false
	}
	return value, ok
}

func (c *ContextCache) Set(ctx context.Context, key, value string) {
	if c.store == nil {
		return
	}
	if err := c.store.Set(ctx, key, value, c.ttl); err != nil {
		c.log.Warn("context cache write failed", "key", key, "error", err)
	}
}
