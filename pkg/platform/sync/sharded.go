// Package sync provides fine-grained locking primitives for hot shared state.
package sync

import (
	"sync"
)

const shardCount = 32

// ShardedMap is a string-keyed map distributed across fixed shards, each with
// its own mutex. Operations on different shards proceed in parallel, so
// unrelated keys never serialize behind a single global lock; operations on
// the same key are mutually exclusive.
type ShardedMap[V any] struct {
	shards [shardCount]mapShard[V]
}

type mapShard[V any] struct {
	mu    sync.Mutex
	items map[string]V
}

// NewShardedMap creates a ShardedMap with all shards initialized.
func NewShardedMap[V any]() *ShardedMap[V] {
	m := &ShardedMap[V]{}
	for i := range m.shards {
		m.shards[i].items = make(map[string]V)
	}
	return m
}

// Update runs fn for key under that key's shard lock. fn receives the current
// value (and whether it exists) and returns the new value plus keep=true to
// store it or keep=false to delete the entry. The whole read-modify-write is
// atomic with respect to other operations on the same key.
func (m *ShardedMap[V]) Update(key string, fn func(v V, ok bool) (V, bool)) {
	shard := m.shardFor(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	v, ok := shard.items[key]
	next, keep := fn(v, ok)
	if keep {
		shard.items[key] = next
		return
	}
	delete(shard.items, key)
}

// Get returns the value stored for key.
func (m *ShardedMap[V]) Get(key string) (V, bool) {
	shard := m.shardFor(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	v, ok := shard.items[key]
	return v, ok
}

// Delete removes key from the map.
func (m *ShardedMap[V]) Delete(key string) {
	shard := m.shardFor(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	delete(shard.items, key)
}

// Len returns the total number of entries across all shards.
// The count is a snapshot; shards are locked one at a time.
func (m *ShardedMap[V]) Len() int {
	total := 0
	for i := range m.shards {
		shard := &m.shards[i]
		shard.mu.Lock()
		total += len(shard.items)
		shard.mu.Unlock()
	}
	return total
}

// Sweep deletes every entry for which pred returns true and reports how many
// were removed. Each shard is swept under its own lock, so a sweep never
// blocks operations on other shards for its full duration.
func (m *ShardedMap[V]) Sweep(pred func(key string, v V) bool) int {
	removed := 0
	for i := range m.shards {
		shard := &m.shards[i]
		shard.mu.Lock()
		for k, v := range shard.items {
			if pred(k, v) {
				delete(shard.items, k)
				removed++
			}
		}
		shard.mu.Unlock()
	}
	return removed
}

func (m *ShardedMap[V]) shardFor(key string) *mapShard[V] {
	return &m.shards[hashString(key)%shardCount]
}

// hashString is FNV-1a, chosen for cheap, well-distributed shard selection.
func hashString(s string) uint32 {
	h := uint32(2166136261)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}
