package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/domain"
)

// RateLimiter implements domain.RateLimiter with fixed windows: one counter
// per key and window start, incremented and expired in a single pipeline.
type RateLimiter struct {
	c   *Client
	now func() time.Time
}

// NewRateLimiter returns a limiter on c's namespace.
func NewRateLimiter(c *Client) *RateLimiter {
	return &RateLimiter{c: c, now: time.Now}
}

func (rl *RateLimiter) windowKey(key string, window time.Duration) string {
	start := rl.now().UnixMilli() / window.Milliseconds()
	return rl.c.key("ratelimit:" + key + ":" + strconv.FormatInt(start, 10))
}

// Allow counts one request for key and reports whether it fits in limit for
// the current window.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 || window <= 0 {
		return true, nil
	}
	wk := rl.windowKey(key, window)

	var incr *redis.IntCmd
	_, err := rl.c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, wk)
		p.Expire(ctx, wk, window)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("redis: rate limit allow %s: %w", key, err)
	}
	return incr.Val() <= int64(limit), nil
}

var _ domain.RateLimiter = (*RateLimiter)(nil)
