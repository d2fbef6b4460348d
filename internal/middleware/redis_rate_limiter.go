package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/vidtube/backend/internal/logging"
)

// RedisRateLimiter shares a fixed-window request budget between every
// instance of the service through Redis.
type RedisRateLimiter struct {
	rdb    goredis.Cmdable
	clock  clockwork.Clock
	limit  int64
	window time.Duration
	prefix string
}

// NewRedisRateLimiter allows `requests` plus `burst` calls per key within each window.
func NewRedisRateLimiter(rdb goredis.Cmdable, clock clockwork.Clock, requests, burst int, window time.Duration) *RedisRateLimiter {
	if requests <= 0 {
		requests = 1
	}
	if burst < 0 {
		burst = 0
	}
	if window <= 0 {
		window = time.Minute
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &RedisRateLimiter{
		rdb:    rdb,
		clock:  clock,
		limit:  int64(requests + burst),
		window: window,
		prefix: "rate_limit",
	}
}

// Allow counts the call against the current window. When Redis cannot be
// reached the request is allowed and the failure logged.
func (l *RedisRateLimiter) Allow(ctx context.Context, key string) bool {
	if key == "" {
		key = "unknown"
	}

	bucket := l.clock.Now().UnixNano() / int64(l.window)
	redisKey := fmt.Sprintf("%s:%s:%d", l.prefix, key, bucket)

	pipe := l.rdb.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		logging.FromContext(ctx).Error("rate limiter unavailable, allowing request", "key", key, "error", err)
		return true
	}

	return incr.Val() <= l.limit
}

var (
	_ RateLimiter = (*IPRateLimiter)(nil)
	_ RateLimiter = (*RedisRateLimiter)(nil)
)
