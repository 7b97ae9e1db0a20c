package window

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"meridian/internal/ratelimit/models"
)

// allowScript prunes, checks, and conditionally records in one atomic
// step on the Redis side, mirroring the memory store's per-key atomicity
// across multiple service instances. Scores are unix microseconds; each
// member is unique so simultaneous requests never collapse into one entry.
//
// Returns {allowed, live_count, reset_score}.
var allowScript = redis.NewScript(`
local key     = KEYS[1]
local now     = tonumber(ARGV[1])
local window  = tonumber(ARGV[2])
local limit   = tonumber(ARGV[3])
local member  = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, 0, now - window)

local count = redis.call('ZCARD', key)
if count >= limit then
    local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
    local reset = now + window
    if oldest[2] then
        reset = tonumber(oldest[2]) + window
    end
    return {0, count, reset}
end

redis.call('ZADD', key, now, member)
redis.call('PEXPIRE', key, math.ceil(window / 1000) + 1000)

local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
return {1, count + 1, tonumber(oldest[2]) + window}
`)

// Cmdable is the subset of the go-redis API the store needs. Both
// *redis.Client and *redis.ClusterClient satisfy it.
type Cmdable interface {
	redis.Scripter
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisStore implements Store on a shared Redis, letting every instance
// behind a load balancer enforce one combined limit per identifier.
type RedisStore struct {
	client    Cmdable
	keyPrefix string
}

// NewRedisStore creates a Redis-backed sliding window store.
func NewRedisStore(client Cmdable) *RedisStore {
	return &RedisStore{
		client:    client,
		keyPrefix: "meridian:ratelimit:",
	}
}

// Allow implements Store.
func (s *RedisStore) Allow(ctx context.Context, key string, policy models.Policy, now time.Time) (models.Decision, error) {
	res, err := allowScript.Run(ctx, s.client,
		[]string{s.keyPrefix + key},
		now.UnixMicro(),
		policy.Window.Microseconds(),
		policy.MaxRequests,
		uuid.NewString(),
	).Result()
	if err != nil {
		return models.Decision{}, fmt.Errorf("ratelimit script: %w", err)
	}

	reply, ok := res.([]interface{})
	if !ok || len(reply) != 3 {
		return models.Decision{}, fmt.Errorf("ratelimit script: unexpected reply %v", res)
	}

	allowed, _ := reply[0].(int64)
	used, _ := reply[1].(int64)
	resetMicro, _ := reply[2].(int64)
	resetAt := time.UnixMicro(resetMicro).UTC()

	if allowed == 1 {
		return models.AllowedDecision(policy, int(used), resetAt), nil
	}
	return models.DeniedDecision(policy, resetAt), nil
}

// Reset implements Store.
func (s *RedisStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("ratelimit reset: %w", err)
	}
	return nil
}
