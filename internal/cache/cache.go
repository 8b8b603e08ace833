// Package cache provides the exact-match response cache and the per-client
// rate limiter, both backed by a remote key-value store. Every operation has
// a soft failure contract: a broken or absent backend degrades the feature
// instead of failing the request.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"
	"time"
)

// Store is the remote key-value capability the cache and rate limiter need.
// The Upstash REST client implements it; tests substitute failing fakes.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	SetEx(ctx context.Context, key, value string, ttl time.Duration) error
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

// ResponseCache stores full generated responses keyed by a digest of the
// normalized user message, qualified by response language.
type ResponseCache struct {
	store Store
	ttl   time.Duration
}

// NewResponseCache creates a ResponseCache. store may be nil, in which case
// every lookup misses and every write is a no-op.
func NewResponseCache(store Store, ttl time.Duration) *ResponseCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ResponseCache{store: store, ttl: ttl}
}

// Key returns the cache key for a message in a given language. The message is
// lowercased, trimmed, and whitespace-collapsed before hashing so that
// surface variations of the same question share an entry; the language prefix
// keeps English and German answers apart.
func Key(message, lang string) string {
	sum := sha256.Sum256([]byte(normalize(message)))
	return "cache:" + lang + ":" + hex.EncodeToString(sum[:])
}

func normalize(message string) string {
	return strings.Join(strings.Fields(strings.ToLower(message)), " ")
}

// Get looks up a cached response. It never fails: backend errors are logged
// and reported as a miss.
func (c *ResponseCache) Get(ctx context.Context, message, lang string) (string, bool) {
	if c.store == nil {
		return "", false
	}
	val, ok, err := c.store.Get(ctx, Key(message, lang))
	if err != nil {
		slog.Warn("cache get failed", "error", err)
		return "", false
	}
	return val, ok
}

// Set writes a response to the cache. Callers run it detached; the error is
// returned only so the caller can log it.
func (c *ResponseCache) Set(ctx context.Context, message, lang, response string) error {
	if c.store == nil {
		return nil
	}
	return c.store.SetEx(ctx, Key(message, lang), response, c.ttl)
}
