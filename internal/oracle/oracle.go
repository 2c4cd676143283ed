// Package oracle prices DeepBook pools. Every lookup walks an ordered chain
// of sources (fresh cache, live venue, last known good, static fallback) and
// returns the first success, tagged with where it came from.
package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/domain"
)

const (
	MinTTL              = 30 * time.Second
	MaxTTL              = 300 * time.Second
	DefaultFetchTimeout = 3 * time.Second
	DefaultDepthLevels  = 20

	// lastKnownGoodFactor scales a pool's TTL for the stale copy.
	lastKnownGoodFactor = 10
	rateLimitKey        = "deepbook"
)

type kind string

const (
	kindMid   kind = "mid"
	kindDepth kind = "depth"
)

// PoolConfig describes one pool on the active network. An empty ID means the
// pool is not deployed there and only the fallback price is available.
type PoolConfig struct {
	ID            string
	TTL           time.Duration
	FallbackPrice decimal.Decimal // quote per base
}

// Config holds oracle settings.
type Config struct {
	Network      domain.Network
	Pools        map[string]PoolConfig
	DefaultTTL   time.Duration
	FetchTimeout time.Duration
	DepthLevels  int
	// RateLimit caps live venue calls per RateWindow. Zero disables it.
	RateLimit  int
	RateWindow time.Duration
}

// Oracle serves pool rates and depth-aware quotes.
type Oracle struct {
	cfg      Config
	venue    domain.MarketData
	cache    domain.Cache
	limiter  domain.RateLimiter
	notifier domain.Notifier
	now      domain.Clock
	logger   *slog.Logger
}

// Option customises an Oracle.
type Option func(*Oracle)

// WithRateLimiter bounds live venue calls.
func WithRateLimiter(rl domain.RateLimiter) Option { return func(o *Oracle) { o.limiter = rl } }

// WithNotifier reports fallbacks to operators.
func WithNotifier(n domain.Notifier) Option { return func(o *Oracle) { o.notifier = n } }

// WithClock pins the clock.
func WithClock(now domain.Clock) Option { return func(o *Oracle) { o.now = now } }

// New creates an Oracle.
func New(cfg Config, venue domain.MarketData, cache domain.Cache, logger *slog.Logger, opts ...Option) *Oracle {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.DepthLevels <= 0 {
		cfg.DepthLevels = DefaultDepthLevels
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = time.Minute
	}
	o := &Oracle{
		cfg:      cfg,
		venue:    venue,
		cache:    cache,
		notifier: domain.NopNotifier{},
		now:      time.Now,
		logger:   logger.With(slog.String("component", "oracle")),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Network returns the network the oracle prices.
func (o *Oracle) Network() domain.Network { return o.cfg.Network }

// HasPool reports whether pair is configured, deployed or not.
func (o *Oracle) HasPool(pair string) bool {
	_, ok := o.cfg.Pools[pair]
	return ok
}

// GetRate returns the pool's mid price. It only fails when every source,
// including the static fallback, is unavailable.
func (o *Oracle) GetRate(ctx context.Context, pair string) (domain.Rate, error) {
	return o.resolve(ctx, pair, kindMid)
}

// GetDepth returns the pool's mid price together with a depth snapshot. A
// fallback result carries no depth.
func (o *Oracle) GetDepth(ctx context.Context, pair string) (domain.Rate, error) {
	return o.resolve(ctx, pair, kindDepth)
}

// TTL returns the clamped fresh TTL for pair.
func (o *Oracle) TTL(pair string) time.Duration {
	ttl := o.cfg.DefaultTTL
	if pc, ok := o.cfg.Pools[pair]; ok && pc.TTL > 0 {
		ttl = pc.TTL
	}
	return clampTTL(ttl)
}

func clampTTL(ttl time.Duration) time.Duration {
	switch {
	case ttl < MinTTL:
		return MinTTL
	case ttl > MaxTTL:
		return MaxTTL
	default:
		return ttl
	}
}

func (o *Oracle) cacheKey(pair string, k kind) string {
	return fmt.Sprintf("oracle:%s:%s:%s", o.cfg.Network, k, pair)
}

func (o *Oracle) lastKnownGoodKey(pair string, k kind) string {
	return o.cacheKey(pair, k) + ":lkg"
}

func (o *Oracle) readCached(ctx context.Context, key string) (domain.Rate, error) {
	raw, err := o.cache.Get(ctx, key)
	if err != nil {
		return domain.Rate{}, err
	}
	var r domain.Rate
	if err := json.Unmarshal(raw, &r); err != nil {
		return domain.Rate{}, fmt.Errorf("decode cached rate: %w", err)
	}
	return r, nil
}

func (o *Oracle) store(ctx context.Context, pair string, k kind, r domain.Rate) {
	raw, err := json.Marshal(r)
	if err != nil {
		return
	}
	ttl := o.TTL(pair)
	if err := o.cache.Set(ctx, o.cacheKey(pair, k), raw, ttl); err != nil {
		o.logger.WarnContext(ctx, "cache write failed",
			slog.String("pair", pair),
			slog.String("error", err.Error()),
		)
	}
	if err := o.cache.Set(ctx, o.lastKnownGoodKey(pair, k), raw, ttl*lastKnownGoodFactor); err != nil {
		o.logger.WarnContext(ctx, "last-known-good write failed",
			slog.String("pair", pair),
			slog.String("error", err.Error()),
		)
	}
}

func errorsIsMiss(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
