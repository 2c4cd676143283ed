package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/domain"
)

// releaseTimeout bounds the release round trip. Release runs on its own
// context because the caller's may already be done.
const releaseTimeout = 5 * time.Second

// release deletes the key only while it still holds our token.
var release = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`)

// LockManager serialises vault transitions across processes with SET NX PX
// and a token-checked release.
type LockManager struct {
	c *Client
}

// NewLockManager returns a lock manager on c's namespace.
func NewLockManager(c *Client) *LockManager {
	return &LockManager{c: c}
}

// Acquire takes key for ttl or fails with domain.ErrLockHeld. The returned
// func releases it and may be called more than once.
func (lm *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	k := lm.c.key("lock:" + key)
	token := uuid.NewString()

	ok, err := lm.c.rdb.SetNX(ctx, k, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: lock %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("redis: lock %s: %w", key, domain.ErrLockHeld)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			rctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
			defer cancel()
			_ = release.Run(rctx, lm.c.rdb, []string{k}, token).Err()
		})
	}, nil
}

var _ domain.LockManager = (*LockManager)(nil)
