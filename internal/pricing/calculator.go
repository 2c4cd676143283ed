// Package pricing turns a name and a period into exact base-unit amounts:
// what paying directly in the base asset costs, and what the discounted
// reward-token path costs.
package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/domain"
	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/premium"
	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/quotemath"
	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/registry"
)

const (
	DefaultDiscountBps = 2500
	DefaultBufferBps   = 100
	MaxBufferBps       = 2000
	DefaultCacheTTL    = 30 * time.Second

	expirationBucket = 60 * time.Second
)

// RateSource is the part of the oracle the calculator needs.
type RateSource interface {
	GetRate(ctx context.Context, pair string) (domain.Rate, error)
}

// Config holds calculator settings.
type Config struct {
	Coins domain.CoinSet
	// BaseStablePool quotes stable per base (SUI_USDC).
	BaseStablePool string
	// RewardBasePool quotes base per reward token (NS_SUI).
	RewardBasePool string
	// DiscountBps must exceed BufferBps so the swap path stays below the
	// direct price.
	DiscountBps int64
	// BufferBps is added when converting the reward need back into base
	// asset. It is clamped to [DefaultBufferBps, MaxBufferBps].
	BufferBps int64
	CacheTTL  time.Duration
}

// Calculator prices registrations and renewals.
type Calculator struct {
	cfg     Config
	rates   RateSource
	table   domain.PriceTableSource
	premium premium.Model
	cache   domain.Cache
	now     domain.Clock
	logger  *slog.Logger
}

// NewCalculator creates a Calculator. cache may be nil.
func NewCalculator(cfg Config, rates RateSource, table domain.PriceTableSource, cache domain.Cache, now domain.Clock, logger *slog.Logger) *Calculator {
	if cfg.DiscountBps < 0 || cfg.DiscountBps >= quotemath.BpsDenominator {
		cfg.DiscountBps = DefaultDiscountBps
	}
	if cfg.BufferBps < DefaultBufferBps {
		cfg.BufferBps = DefaultBufferBps
	}
	if cfg.BufferBps > MaxBufferBps {
		cfg.BufferBps = MaxBufferBps
	}
	if cfg.DiscountBps > 0 && cfg.DiscountBps <= cfg.BufferBps {
		logger.Warn("discount does not exceed the swap buffer, using defaults",
			slog.Int64("discount_bps", cfg.DiscountBps),
			slog.Int64("buffer_bps", cfg.BufferBps),
		)
		cfg.DiscountBps, cfg.BufferBps = DefaultDiscountBps, DefaultBufferBps
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Calculator{
		cfg:     cfg,
		rates:   rates,
		table:   table,
		premium: premium.Default(),
		cache:   cache,
		now:     now,
		logger:  logger.With(slog.String("component", "pricing")),
	}
}

// Coins returns the asset set prices are expressed in.
func (c *Calculator) Coins() domain.CoinSet { return c.cfg.Coins }

// CalculateRegistrationPrice prices a new registration. A lapsed name inside
// its grace window carries the decaying premium.
func (c *Calculator) CalculateRegistrationPrice(ctx context.Context, req domain.PricingRequest) (domain.PricingResult, error) {
	return c.calculate(ctx, req, domain.PricingRegister)
}

// CalculateRenewalPrice prices an extension. Renewals never pay a premium.
func (c *Calculator) CalculateRenewalPrice(ctx context.Context, req domain.PricingRequest) (domain.PricingResult, error) {
	req.ExpirationMs = nil
	return c.calculate(ctx, req, domain.PricingRenew)
}

func (c *Calculator) calculate(ctx context.Context, req domain.PricingRequest, kind domain.PricingKind) (domain.PricingResult, error) {
	label, err := NormalizeLabel(req.Domain)
	if err != nil {
		return domain.PricingResult{}, err
	}
	if err := ValidateYears(req.Years); err != nil {
		return domain.PricingResult{}, err
	}

	key := cacheKey(kind, label, req.Years, req.ExpirationMs)
	if res, ok := c.cached(ctx, key); ok {
		return res, nil
	}

	table, err := c.table.PriceTable(ctx)
	if err != nil {
		return domain.PricingResult{}, fmt.Errorf("pricing: price table: %w", err)
	}
	annual, err := registry.AnnualPrice(table, len(label))
	if err != nil {
		return domain.PricingResult{}, err
	}

	rates, err := c.fetchRates(ctx)
	if err != nil {
		return domain.PricingResult{}, err
	}

	now := c.now()
	res := c.compute(kind, label, req, annual, rates, now)

	if raw, err := json.Marshal(res); err == nil && c.cache != nil {
		if err := c.cache.Set(ctx, key, raw, c.cfg.CacheTTL); err != nil {
			c.logger.WarnContext(ctx, "cache pricing result failed", slog.String("error", err.Error()))
		}
	}

	c.logger.DebugContext(ctx, "priced",
		slog.String("kind", string(kind)),
		slog.String("domain", res.Domain),
		slog.Int("years", res.Years),
		slog.String("direct", res.DirectAmount.String()),
		slog.String("discounted", res.DiscountedAmount.String()),
		slog.Bool("fallback", res.UsedFallback),
	)
	return res, nil
}

// fetchRates reads both pools concurrently.
func (c *Calculator) fetchRates(ctx context.Context) (domain.ExchangeRates, error) {
	var baseStable, rewardBase domain.Rate
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := c.rates.GetRate(gctx, c.cfg.BaseStablePool)
		if err != nil {
			return fmt.Errorf("pricing: rate %s: %w", c.cfg.BaseStablePool, err)
		}
		baseStable = r
		return nil
	})
	g.Go(func() error {
		r, err := c.rates.GetRate(gctx, c.cfg.RewardBasePool)
		if err != nil {
			return fmt.Errorf("pricing: rate %s: %w", c.cfg.RewardBasePool, err)
		}
		rewardBase = r
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.ExchangeRates{}, err
	}
	if !baseStable.Forward.IsPositive() || !rewardBase.Forward.IsPositive() {
		return domain.ExchangeRates{}, fmt.Errorf("pricing: non-positive rate")
	}
	return domain.ExchangeRates{
		BaseUSD:          baseStable.Forward,
		RewardPerBase:    rewardBase.Inverse,
		BasePerReward:    rewardBase.Forward,
		BaseUSDSource:    baseStable.Source,
		RewardBaseSource: rewardBase.Source,
	}, nil
}

func (c *Calculator) compute(kind domain.PricingKind, label string, req domain.PricingRequest,
	annual decimal.Decimal, rates domain.ExchangeRates, now time.Time) domain.PricingResult {

	base, reward := c.cfg.Coins.Base, c.cfg.Coins.Reward
	baseUSD := annual.Mul(decimal.NewFromInt(int64(req.Years)))

	premiumUSD, rewardPremiumUSD := decimal.Zero, decimal.Zero
	inGrace := false
	if kind == domain.PricingRegister && req.ExpirationMs != nil {
		expiry := time.UnixMilli(*req.ExpirationMs)
		if c.premium.InGrace(expiry, now) {
			inGrace = true
			p := c.premium.Compute(expiry, now, rates.BaseUSD)
			premiumUSD = p.StableValue
			rewardPremiumUSD = p.RewardStableValue
		}
	}

	totalUSD := baseUSD.Add(premiumUSD)
	discountedUSD := baseUSD.Add(rewardPremiumUSD).Mul(quotemath.DiscountFactor(c.cfg.DiscountBps))

	rewardPrice := rates.BasePerReward

	direct := usdToUnits(totalUSD, rates.BaseUSD, base.Decimals)
	discountedBase := usdToUnits(discountedUSD, rates.BaseUSD, base.Decimals)
	rewardNeeded := quotemath.ConvertInverse(discountedBase, base.Decimals, rewardPrice, reward.Decimals)
	swapAmount := quotemath.ApplyBpsUp(
		quotemath.Convert(rewardNeeded, reward.Decimals, rewardPrice, base.Decimals),
		c.cfg.BufferBps,
	).Min(direct)

	savings := direct.Sub(swapAmount)
	return domain.PricingResult{
		Kind:              kind,
		Domain:            FullName(label),
		Years:             req.Years,
		DirectAmount:      direct,
		DiscountedAmount:  swapAmount,
		RewardTokenNeeded: rewardNeeded,
		SavingsAmount:     savings,
		SavingsPercent:    quotemath.Percent(savings, direct),
		ExchangeRates:     rates,
		IsInGracePeriod:   inGrace,
		UsedFallback:      rates.BaseUSDSource.Degraded() || rates.RewardBaseSource.Degraded(),
		Breakdown: domain.Breakdown{
			BaseUSD:           baseUSD,
			PremiumUSD:        premiumUSD,
			TotalUSD:          totalUSD,
			DiscountedUSD:     discountedUSD,
			DiscountPercent:   decimal.NewFromInt(c.cfg.DiscountBps).Div(decimal.NewFromInt(100)),
			SlippageBudgetBps: c.cfg.BufferBps,
		},
		ComputedAt: now,
	}
}

func usdToUnits(usd, usdPerBase decimal.Decimal, decimals int32) domain.Amount {
	return quotemath.ToUnitsCeil(usd.DivRound(usdPerBase, 24), decimals)
}

func (c *Calculator) cached(ctx context.Context, key string) (domain.PricingResult, bool) {
	if c.cache == nil {
		return domain.PricingResult{}, false
	}
	raw, err := c.cache.Get(ctx, key)
	if err != nil {
		return domain.PricingResult{}, false
	}
	var res domain.PricingResult
	if err := json.Unmarshal(raw, &res); err != nil {
		c.logger.WarnContext(ctx, "discarding corrupt cached price", slog.String("error", err.Error()))
		return domain.PricingResult{}, false
	}
	return res, true
}

func cacheKey(kind domain.PricingKind, label string, years int, expirationMs *int64) string {
	bucket := "none"
	if expirationMs != nil {
		bucket = strconv.FormatInt(*expirationMs/expirationBucket.Milliseconds(), 10)
	}
	return fmt.Sprintf("pricing:%s:%s:%d:%s", kind, label, years, bucket)
}
