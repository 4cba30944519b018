package queue

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisDedupStore implements dedupStore against a shared Redis instance, so
// multiple queue processes observe the same dedup window for a given
// key. Each key's first observation is written with SET NX EX; the
// window's expiry is entirely Redis's TTL, so sweep is a no-op.
type redisDedupStore struct {
	client *redis.Client
	window time.Duration
}

func newRedisDedupStore(client *redis.Client, window time.Duration) *redisDedupStore {
	return &redisDedupStore{client: client, window: window}
}

// seenRecently fails open (reports not-seen) on a Redis error, so a Redis
// outage degrades to no deduplication rather than refusing every enqueue.
func (d *redisDedupStore) seenRecently(key string, now time.Time) bool {
	if d.window <= 0 {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	ok, err := d.client.SetNX(ctx, "syncengine:dedup:"+key, now.UnixNano(), d.window).Result()
	if err != nil {
		return false
	}
	return !ok
}

func (d *redisDedupStore) sweep(time.Time) int { return 0 }
