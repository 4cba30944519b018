package queue

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestRedisDedupStore_SuppressesWithinWindow(t *testing.T) {
	client := newTestRedisClient(t)
	store := newRedisDedupStore(client, time.Minute)

	now := time.Now()
	require.False(t, store.seenRecently("task:T1:completed:tracker", now))
	require.True(t, store.seenRecently("task:T1:completed:tracker", now.Add(time.Second)))
}

func TestRedisDedupStore_DistinctKeysDontCollide(t *testing.T) {
	client := newTestRedisClient(t)
	store := newRedisDedupStore(client, time.Minute)

	now := time.Now()
	require.False(t, store.seenRecently("task:T1:completed:tracker", now))
	require.False(t, store.seenRecently("task:T2:completed:tracker", now))
}

func TestRedisDedupStore_ZeroWindowNeverSuppresses(t *testing.T) {
	client := newTestRedisClient(t)
	store := newRedisDedupStore(client, 0)

	now := time.Now()
	require.False(t, store.seenRecently("task:T1:completed:tracker", now))
	require.False(t, store.seenRecently("task:T1:completed:tracker", now))
}
