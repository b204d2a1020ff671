// internal/ratelimit/redis.go
package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// allowScript trims the trailing window, counts, and conditionally admits
// in one server-side step, so two concurrent checks cannot both observe
// the same count and overfill the bucket.
var allowScript = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], 0, ARGV[1])
if redis.call('ZCARD', KEYS[1]) >= tonumber(ARGV[2]) then
  return 0
end
redis.call('ZADD', KEYS[1], ARGV[3], ARGV[3])
redis.call('PEXPIRE', KEYS[1], ARGV[4])
return 1
`)

// redisLimiter is the shared-counter variant for multi-instance
// deployments: a sorted set per key scored by request time, trimmed to the
// trailing window on each check.
type redisLimiter struct {
	rdb    redis.Scripter
	window time.Duration
	limit  int
	now    func() time.Time
}

// NewRedisLimiter returns a Limiter backed by a shared Redis instance.
func NewRedisLimiter(rdb *redis.Client, window time.Duration, limit int) Limiter {
	return &redisLimiter{rdb: rdb, window: window, limit: limit, now: time.Now}
}

func (l *redisLimiter) Allow(ctx context.Context, shop, action string) error {
	now := l.now()
	k := "ratelimit:" + key(shop, action)
	admitted, err := allowScript.Run(ctx, l.rdb, []string{k},
		now.Add(-l.window).UnixNano(),
		l.limit,
		now.UnixNano(),
		l.window.Milliseconds(),
	).Int64()
	if err != nil {
		return err
	}
	if admitted == 0 {
		return ErrRateLimited
	}
	return nil
}
