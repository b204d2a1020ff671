// internal/ratelimit/limiter.go
package ratelimit

import (
	"context"
	"errors"
)

// ErrRateLimited is returned when a (shop, action) bucket is full.
// Recoverable by client backoff; handlers map it to 429.
var ErrRateLimited = errors.New("rate limit exceeded")

// Limiter admits or denies one request for a (shop, action) pair. This is
// a soft abuse guard, not a hard quota: the in-memory implementation resets
// on restart and is only correct for single-process deployments. Use the
// Redis implementation when running multiple instances.
type Limiter interface {
	Allow(ctx context.Context, shop, action string) error
}

func key(shop, action string) string { return shop + ":" + action }
