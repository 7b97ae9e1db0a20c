// Package window provides sliding window rate limit stores. Each key
// tracks the timestamps of its recent requests; a request is allowed when
// fewer than the policy limit fall inside the rolling window ending now.
package window

import (
	"context"
	"time"

	"meridian/internal/ratelimit/models"
)

// Store decides and records rate limit consumption.
type Store interface {
	// Allow checks the key against the policy at the given instant and,
	// only if the request is allowed, records it. Denied requests leave
	// no trace, so a burst of rejections cannot extend the lockout.
	Allow(ctx context.Context, key string, policy models.Policy, now time.Time) (models.Decision, error)

	// Reset forgets all state for a key.
	Reset(ctx context.Context, key string) error
}

// Pruner is implemented by stores that need periodic eviction of
// identifiers whose windows have fully expired.
type Pruner interface {
	// Prune drops fully expired entries and reports how many were evicted.
	Prune(ctx context.Context, now time.Time) (int, error)

	// Len reports the number of identifiers currently tracked.
	Len() int
}
