package cache

import (
	"context"
	"log/slog"
	"time"
)

// failOpenRemaining is reported when the backend is unreachable and the
// request is allowed through without a real count.
const failOpenRemaining = 99

// RateLimiter enforces a per-identifier request quota using a rolling window
// counter in the remote store. When the store errors or is not configured the
// limiter fails open: availability wins over strict enforcement.
type RateLimiter struct {
	store  Store
	quota  int
	window time.Duration
}

// LimitResult is the outcome of a rate limit check.
type LimitResult struct {
	Allowed   bool
	Remaining int
}

// NewRateLimiter creates a RateLimiter. store may be nil (always fails open).
func NewRateLimiter(store Store, quota int, window time.Duration) *RateLimiter {
	if quota <= 0 {
		quota = 10
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{store: store, quota: quota, window: window}
}

// Check increments the window counter for the identifier and reports whether
// the request is within quota. The window TTL is set when the counter is
// fresh, so the key expires and the count restarts window seconds after the
// first request.
func (l *RateLimiter) Check(ctx context.Context, identifier string) LimitResult {
	if l.store == nil {
		return LimitResult{Allowed: true, Remaining: failOpenRemaining}
	}

	key := "rl:chat:ip_" + identifier
	count, err := l.store.Incr(ctx, key)
	if err != nil {
		slog.Warn("rate limit check failed, allowing request", "error", err)
		return LimitResult{Allowed: true, Remaining: failOpenRemaining}
	}

	if count == 1 {
		if err := l.store.Expire(ctx, key, l.window); err != nil {
			slog.Warn("rate limit window expire failed", "error", err)
		}
	}

	remaining := l.quota - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return LimitResult{Allowed: count <= int64(l.quota), Remaining: remaining}
}
