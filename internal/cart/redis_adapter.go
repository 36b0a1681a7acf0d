package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "lumenmarket:"

// RedisAdapter stores snapshots as JSON values in Redis with a TTL so
// abandoned anonymous carts eventually expire.
type RedisAdapter struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisAdapter constructs a Redis-backed snapshot adapter.
func NewRedisAdapter(client *redis.Client, ttl time.Duration) (*RedisAdapter, error) {
	if client == nil {
		return nil, errors.New("cart: redis client is required")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &RedisAdapter{client: client, ttl: ttl}, nil
}

// Load fetches and decodes the snapshot, returning an empty snapshot for
// unknown keys.
func (a *RedisAdapter) Load(ctx context.Context, key string) (Snapshot, error) {
	payload, err := a.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Snapshot{}, nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("cart: load snapshot %s: %w", key, err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return Snapshot{}, fmt.Errorf("cart: decode snapshot %s: %w", key, err)
	}
	return snapshot, nil
}

// Save encodes and stores the snapshot, refreshing the TTL.
func (a *RedisAdapter) Save(ctx context.Context, key string, snapshot Snapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("cart: encode snapshot %s: %w", key, err)
	}
	if err := a.client.Set(ctx, redisKeyPrefix+key, payload, a.ttl).Err(); err != nil {
		return fmt.Errorf("cart: save snapshot %s: %w", key, err)
	}
	return nil
}

// Delete removes the snapshot.
func (a *RedisAdapter) Delete(ctx context.Context, key string) error {
	if err := a.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("cart: delete snapshot %s: %w", key, err)
	}
	return nil
}
