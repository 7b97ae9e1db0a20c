package window

import (
	"context"
	"time"

	"meridian/internal/ratelimit/models"
	platformsync "meridian/pkg/platform/sync"
)

// MemoryStore keeps sliding windows in a sharded in-process map. Each
// check-and-record runs atomically under its key's shard lock, so two
// concurrent requests from one identifier can never both claim the last
// slot, while requests from different identifiers proceed in parallel.
type MemoryStore struct {
	windows *platformsync.ShardedMap[*windowState]
}

// windowState is the per-identifier sliding log. The window length is
// stored alongside the timestamps so the pruning sweep knows when an
// entry is fully expired without consulting policy configuration.
type windowState struct {
	stamps []time.Time
	window time.Duration
}

// prune drops timestamps at or before now minus the window. A timestamp
// exactly one window old no longer counts.
func (ws *windowState) prune(now time.Time) {
	cutoff := now.Add(-ws.window)
	i := 0
	for ; i < len(ws.stamps); i++ {
		if ws.stamps[i].After(cutoff) {
			break
		}
	}
	ws.stamps = ws.stamps[i:]
}

// expired reports whether every recorded timestamp has left the window.
func (ws *windowState) expired(now time.Time) bool {
	if len(ws.stamps) == 0 {
		return true
	}
	newest := ws.stamps[len(ws.stamps)-1]
	return !newest.Add(ws.window).After(now)
}

// NewMemoryStore creates an empty in-memory sliding window store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		windows: platformsync.NewShardedMap[*windowState](),
	}
}

// Allow implements Store.
func (s *MemoryStore) Allow(_ context.Context, key string, policy models.Policy, now time.Time) (models.Decision, error) {
	var decision models.Decision

	s.windows.Update(key, func(ws *windowState, ok bool) (*windowState, bool) {
		if !ok {
			ws = &windowState{window: policy.Window}
		}
		ws.window = policy.Window
		ws.prune(now)

		if len(ws.stamps) >= policy.MaxRequests {
			decision = models.DeniedDecision(policy, ws.stamps[0].Add(policy.Window))
			return ws, true
		}

		ws.stamps = append(ws.stamps, now)
		decision = models.AllowedDecision(policy, len(ws.stamps), ws.stamps[0].Add(policy.Window))
		return ws, true
	})

	return decision, nil
}

// Reset implements Store.
func (s *MemoryStore) Reset(_ context.Context, key string) error {
	s.windows.Delete(key)
	return nil
}

// Count returns the number of live timestamps for a key.
func (s *MemoryStore) Count(key string, now time.Time) int {
	n := 0
	s.windows.Update(key, func(ws *windowState, ok bool) (*windowState, bool) {
		if !ok {
			return nil, false
		}
		ws.prune(now)
		n = len(ws.stamps)
		return ws, len(ws.stamps) > 0
	})
	return n
}

// Prune implements Pruner, evicting identifiers whose windows have fully
// expired so idle clients do not pin memory forever.
func (s *MemoryStore) Prune(_ context.Context, now time.Time) (int, error) {
	evicted := s.windows.Sweep(func(_ string, ws *windowState) bool {
		return ws.expired(now)
	})
	return evicted, nil
}

// Len implements Pruner.
func (s *MemoryStore) Len() int {
	return s.windows.Len()
}
