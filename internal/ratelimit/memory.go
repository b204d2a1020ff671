// internal/ratelimit/memory.go
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// memLimiter counts true request timestamps in the trailing window,
// recomputed on each check. Entries older than the window are evicted
// lazily, so a bucket never outgrows one window per key.
type memLimiter struct {
	window time.Duration
	limit  int
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string][]time.Time
}

// NewMemoryLimiter returns an in-process sliding-window limiter.
func NewMemoryLimiter(window time.Duration, limit int) Limiter {
	return &memLimiter{window: window, limit: limit, now: time.Now, buckets: map[string][]time.Time{}}
}

func (l *memLimiter) Allow(ctx context.Context, shop, action string) error {
	now := l.now()
	k := key(shop, action)

	l.mu.Lock()
	defer l.mu.Unlock()

	entries := l.buckets[k]
	kept := entries[:0]
	for _, ts := range entries {
		if now.Sub(ts) <= l.window {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.limit {
		l.buckets[k] = kept
		return ErrRateLimited
	}
	l.buckets[k] = append(kept, now)
	return nil
}
