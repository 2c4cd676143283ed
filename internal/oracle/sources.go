package oracle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/domain"
)

// source is one strategy of the lookup chain.
type source struct {
	name  string
	fetch func(ctx context.Context, pair string, k kind) (domain.Rate, error)
}

func (o *Oracle) chain() []source {
	return []source{
		{name: "cache", fetch: o.fromCache},
		{name: "live", fetch: o.fromVenue},
		{name: "last_known_good", fetch: o.fromLastKnownGood},
		{name: "fallback", fetch: o.fromFallback},
	}
}

func (o *Oracle) resolve(ctx context.Context, pair string, k kind) (domain.Rate, error) {
	var errs []error
	for _, s := range o.chain() {
		r, err := s.fetch(ctx, pair, k)
		if err == nil {
			return r, nil
		}
		if s.name == "live" {
			o.logger.WarnContext(ctx, "live rate unavailable",
				slog.String("pair", pair),
				slog.String("kind", string(k)),
				slog.String("error", err.Error()),
			)
		}
		errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
	}
	return domain.Rate{}, fmt.Errorf("oracle: %s %s: %w", k, pair, errors.Join(errs...))
}

func (o *Oracle) fromCache(ctx context.Context, pair string, k kind) (domain.Rate, error) {
	r, err := o.readCached(ctx, o.cacheKey(pair, k))
	if err != nil && !errorsIsMiss(err) {
		o.logger.WarnContext(ctx, "cache read failed",
			slog.String("pair", pair),
			slog.String("error", err.Error()),
		)
	}
	return r, err
}

func (o *Oracle) fromVenue(ctx context.Context, pair string, k kind) (domain.Rate, error) {
	pc, ok := o.cfg.Pools[pair]
	if !ok || pc.ID == "" {
		return domain.Rate{}, fmt.Errorf("%w: pool %s not on %s", domain.ErrNotFound, pair, o.cfg.Network)
	}
	if o.limiter != nil && o.cfg.RateLimit > 0 {
		allowed, err := o.limiter.Allow(ctx, rateLimitKey, o.cfg.RateLimit, o.cfg.RateWindow)
		if err == nil && !allowed {
			return domain.Rate{}, domain.ErrRateLimited
		}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, o.cfg.FetchTimeout)
	defer cancel()

	r := domain.Rate{Pair: pair, Network: o.cfg.Network, Source: domain.RateSourceLive}
	switch k {
	case kindDepth:
		depth, err := o.venue.Depth(fetchCtx, pair, o.cfg.DepthLevels)
		if err != nil {
			return domain.Rate{}, err
		}
		r.Forward = depth.Mid()
		r.Depth = &depth
		r.Timestamp = depth.Timestamp
	default:
		mid, ts, err := o.venue.MidPrice(fetchCtx, pair)
		if err != nil {
			return domain.Rate{}, err
		}
		r.Forward = mid
		r.Timestamp = ts
	}
	if !r.Forward.IsPositive() {
		return domain.Rate{}, fmt.Errorf("%w: no price for %s", domain.ErrNotFound, pair)
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = o.now()
	}
	r.Inverse = invert(r.Forward)

	o.store(ctx, pair, k, r)
	return r, nil
}

func (o *Oracle) fromLastKnownGood(ctx context.Context, pair string, k kind) (domain.Rate, error) {
	r, err := o.readCached(ctx, o.lastKnownGoodKey(pair, k))
	if err != nil {
		return domain.Rate{}, err
	}
	r.Source = domain.RateSourceStale
	return r, nil
}

func (o *Oracle) fromFallback(ctx context.Context, pair string, _ kind) (domain.Rate, error) {
	pc, ok := o.cfg.Pools[pair]
	if !ok || !pc.FallbackPrice.IsPositive() {
		return domain.Rate{}, fmt.Errorf("%w: no fallback price for %s", domain.ErrNotFound, pair)
	}
	r := domain.Rate{
		Pair:      pair,
		Network:   o.cfg.Network,
		Forward:   pc.FallbackPrice,
		Inverse:   invert(pc.FallbackPrice),
		Source:    domain.RateSourceFallback,
		Timestamp: o.now(),
	}

	o.logger.WarnContext(ctx, "using fallback rate",
		slog.String("pair", pair),
		slog.String("rate", r.Forward.String()),
	)
	msg := fmt.Sprintf("%s on %s priced at static fallback %s", pair, o.cfg.Network, r.Forward)
	if err := o.notifier.Notify(ctx, domain.EventOracleFallback, "Oracle fallback", msg); err != nil {
		o.logger.WarnContext(ctx, "fallback notification failed", slog.String("error", err.Error()))
	}
	return r, nil
}

func invert(p decimal.Decimal) decimal.Decimal {
	if !p.IsPositive() {
		return decimal.Zero
	}
	return decimal.NewFromInt(1).DivRound(p, 18)
}
