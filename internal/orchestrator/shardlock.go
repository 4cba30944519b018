package orchestrator

import (
	"hash/fnv"
	"sync"
)

// numLockShards fixes the per-entity serialization lock table size, per
// spec.md §5's "sharded map (fixed shard count, e.g., 64)".
const numLockShards = 64

// keyLockTable serializes synchronize() calls per logical entity
// (entityType:entityId) without a single global lock. Entities hash onto a
// fixed number of shards, each an independent mutex; two different entities
// only contend when they happen to land on the same shard.
type keyLockTable struct {
	shards [numLockShards]sync.Mutex
}

func (t *keyLockTable) shardFor(key string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &t.shards[h.Sum32()%numLockShards]
}

// lock blocks until the shard guarding key is acquired, returning an unlock
// function the caller must invoke exactly once.
func (t *keyLockTable) lock(key string) func() {
	m := t.shardFor(key)
	m.Lock()
	return m.Unlock
}
