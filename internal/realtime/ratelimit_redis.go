package realtime

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// redisRateLimiter enforces a fixed-window request count per connection
// using Redis INCR+EXPIRE, so the limit is shared across every hub process
// reading from the same Redis instance instead of being tracked
// per-process like the default *rate.Limiter.
type redisRateLimiter struct {
	client *redis.Client
	key    string
	limit  int
	window time.Duration
}

// newRedisRateLimiter builds a limiter keyed by a fresh connection id so
// distinct connections never share a counter. perSecond/burst mirror
// Config.RateLimitPerSecond/RateLimitBurst: burst requests are allowed per
// fixed window of burst/perSecond seconds (perSecond <= 0 falls back to a
// one-second window).
func newRedisRateLimiter(client *redis.Client, perSecond float64, burst int) *redisRateLimiter {
	window := time.Second
	if perSecond > 0 {
		window = time.Duration(float64(time.Second) / perSecond * float64(burst))
	}
	return &redisRateLimiter{
		client: client,
		key:    "syncengine:ratelimit:" + uuid.NewString(),
		limit:  burst,
		window: window,
	}
}

// Allow increments the current window's counter and reports whether the
// connection is still within its budget. Redis errors fail open (the
// connection is allowed) so a Redis outage degrades to unlimited rather
// than refusing every connection.
func (l *redisRateLimiter) Allow() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	count, err := l.client.Incr(ctx, l.key).Result()
	if err != nil {
		return true
	}
	if count == 1 {
		l.client.Expire(ctx, l.key, l.window)
	}
	return count <= int64(l.limit)
}
