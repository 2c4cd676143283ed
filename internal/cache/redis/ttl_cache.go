package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/domain"
)

// TTLCache implements domain.Cache with plain string keys and SET EX.
type TTLCache struct {
	c *Client
}

// NewTTLCache creates a TTLCache backed by the given Client.
func NewTTLCache(c *Client) *TTLCache {
	return &TTLCache{c: c}
}

// Get returns the cached value, or domain.ErrNotFound on a miss.
func (tc *TTLCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := tc.c.rdb.Get(ctx, tc.c.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get %s: %w", key, err)
	}
	return val, nil
}

// Set stores value for ttl. A non-positive ttl is ignored.
func (tc *TTLCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := tc.c.rdb.Set(ctx, tc.c.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set %s: %w", key, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.Cache = (*TTLCache)(nil)
