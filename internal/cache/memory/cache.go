// Package memory provides in-process implementations of the cache ports for
// single-instance runs and tests. The clock is injectable.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/domain"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

// Cache is a TTL map safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     domain.Clock
}

// NewCache returns an empty cache. A nil clock means time.Now.
func NewCache(now domain.Clock) *Cache {
	if now == nil {
		now = time.Now
	}
	return &Cache{entries: make(map[string]entry), now: now}
}

// Get returns a copy of the value, or domain.ErrNotFound on a miss or expiry.
func (c *Cache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || !c.now().Before(e.expiresAt) {
		return nil, domain.ErrNotFound
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

// Set stores value for ttl. A non-positive ttl is ignored.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	buf := make([]byte, len(value))
	copy(buf, value)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{value: buf, expiresAt: c.now().Add(ttl)}
	return nil
}

// Sweep drops expired entries and returns how many were removed.
func (c *Cache) Sweep() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

var _ domain.Cache = (*Cache)(nil)

// LockManager is a process-local domain.LockManager.
type LockManager struct {
	mu   sync.Mutex
	held map[string]time.Time
	now  domain.Clock
}

// NewLockManager returns a lock manager. A nil clock means time.Now.
func NewLockManager(now domain.Clock) *LockManager {
	if now == nil {
		now = time.Now
	}
	return &LockManager{held: make(map[string]time.Time), now: now}
}

// Acquire takes the lock for key until ttl elapses or unlock is called.
func (lm *LockManager) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	now := lm.now()
	if until, ok := lm.held[key]; ok && now.Before(until) {
		return nil, domain.ErrLockHeld
	}
	until := now.Add(ttl)
	lm.held[key] = until

	var once sync.Once
	return func() {
		once.Do(func() {
			lm.mu.Lock()
			defer lm.mu.Unlock()
			if lm.held[key].Equal(until) {
				delete(lm.held, key)
			}
		})
	}, nil
}

var _ domain.LockManager = (*LockManager)(nil)
