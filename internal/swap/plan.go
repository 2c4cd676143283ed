package swap

import (
	"context"
	"fmt"
	"time"

	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/domain"
	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/onchain"
	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/oracle"
	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/quotemath"
)

// Leg is one sized swap of a plan.
type Leg struct {
	Pool        onchain.Pool  `json:"-"`
	PoolName    string        `json:"pool"`
	BuyBase     bool          `json:"buy_base"`
	In          domain.Coin   `json:"in"`
	Out         domain.Coin   `json:"out"`
	AmountIn    domain.Amount `json:"amount_in"`
	MinOut      domain.Amount `json:"min_out"`
	SlippageBps int64         `json:"slippage_bps"`
	Quote       domain.Quote  `json:"quote"`
}

// Plan is a sized acquisition of the reward token.
type Plan struct {
	Source domain.Coin `json:"source"`
	// Need is the exact reward-token amount the plan must deliver.
	Need domain.Amount `json:"need"`
	// SourceSpend is what the first leg (or the payment itself) takes from
	// the payer's source coins.
	SourceSpend domain.Amount `json:"source_spend"`
	FeeLeg      *Leg          `json:"fee_leg,omitempty"`
	Legs        []Leg         `json:"legs"`
	SlippageBps int64         `json:"slippage_bps"`
	Warnings    []string      `json:"warnings,omitempty"`
	QuotedAt    time.Time     `json:"quoted_at"`
	ValidUntil  time.Time     `json:"valid_until"`
}

// BaseSpend is the base asset the payer's gas coin funds: the first leg when
// the source is the base asset, plus the fee leg.
func (p *Plan) BaseSpend(base domain.Coin) domain.Amount {
	total := domain.NewAmount(0)
	if p.Source.Symbol == base.Symbol {
		total = total.Add(p.SourceSpend)
	}
	if p.FeeLeg != nil {
		total = total.Add(p.FeeLeg.AmountIn)
	}
	return total
}

func (c *Composer) slippageFor(q domain.Quote, requested int64, pool string, warnings *[]string) int64 {
	bps := requested
	if q.Source.Degraded() || q.DepthLevels < c.cfg.MinDepthLevels {
		if bps < c.cfg.WeakDepthSlippageBps {
			bps = c.cfg.WeakDepthSlippageBps
		}
		*warnings = append(*warnings, fmt.Sprintf("%s: weak depth (%s, %d levels), slippage widened to %d bps",
			pool, q.Source, q.DepthLevels, bps))
	}
	if q.Extrapolated && !q.Source.Degraded() {
		if bps < c.cfg.ThinBookSlippageBps {
			bps = c.cfg.ThinBookSlippageBps
		}
		*warnings = append(*warnings, fmt.Sprintf("%s: book cannot fill the target, buffer widened to %d bps", pool, bps))
	}
	return bps
}

func (c *Composer) sizeLeg(ctx context.Context, h hop, target domain.Amount, slippage int64, warnings *[]string) (Leg, error) {
	q, err := c.quoter.SimulateBuy(ctx, oracle.BuyRequest{
		Pair:        h.pool.Name,
		Side:        h.side(),
		Target:      target,
		OutDecimals: h.out.Decimals,
		InDecimals:  h.in.Decimals,
	})
	if err != nil {
		return Leg{}, fmt.Errorf("swap: quote %s: %w", h.pool.Name, err)
	}
	bps := c.slippageFor(q, slippage, h.pool.Name, warnings)
	return Leg{
		Pool:        h.pool,
		PoolName:    h.pool.Name,
		BuyBase:     h.buyBase(),
		In:          h.in,
		Out:         h.out,
		AmountIn:    quotemath.ApplyBpsUp(q.RequiredInput, bps),
		MinOut:      target,
		SlippageBps: bps,
		Quote:       q,
	}, nil
}

// PlanAcquisition sizes the route from source to need reward tokens,
// walking the legs backwards so each leg's minimum output is exactly what the
// next consumes.
func (c *Composer) PlanAcquisition(ctx context.Context, source domain.Coin, need domain.Amount, slippage int64) (*Plan, error) {
	now := c.now()
	p := &Plan{
		Source:      source,
		Need:        need,
		SourceSpend: need,
		SlippageBps: slippage,
		QuotedAt:    now,
		ValidUntil:  now.Add(oracle.MaxTTL),
	}
	hops, err := c.route(source)
	if err != nil {
		return nil, err
	}
	if len(hops) == 0 {
		return p, nil
	}

	legs := make([]Leg, len(hops))
	target := need
	for i := len(hops) - 1; i >= 0; i-- {
		leg, err := c.sizeLeg(ctx, hops[i], target, slippage, &p.Warnings)
		if err != nil {
			return nil, err
		}
		legs[i] = leg
		target = leg.AmountIn
		c.tighten(p, hops[i].pool.Name, leg.SlippageBps)
	}
	p.Legs = legs
	p.SourceSpend = legs[0].AmountIn

	if c.needsFeeToken(legs) {
		fee, err := c.sizeFeeLeg(ctx, legs, slippage, &p.Warnings)
		if err != nil {
			return nil, err
		}
		if fee != nil {
			p.FeeLeg = fee
			c.tighten(p, fee.PoolName, fee.SlippageBps)
		}
	}
	return p, nil
}

// tighten folds a pool's TTL into ValidUntil and keeps the widest slippage.
func (c *Composer) tighten(p *Plan, pool string, bps int64) {
	if until := p.QuotedAt.Add(c.quoter.TTL(pool)); until.Before(p.ValidUntil) {
		p.ValidUntil = until
	}
	if bps > p.SlippageBps {
		p.SlippageBps = bps
	}
}

func (c *Composer) needsFeeToken(legs []Leg) bool {
	for _, l := range legs {
		if !l.Pool.Whitelisted {
			return true
		}
	}
	return false
}

// sizeFeeLeg buys fee_fraction_bps of the route's base-asset spend worth of
// the fee token. It returns nil when the fraction rounds to nothing.
func (c *Composer) sizeFeeLeg(ctx context.Context, legs []Leg, slippage int64, warnings *[]string) (*Leg, error) {
	coins := c.cfg.Coins
	if c.cfg.FeeFractionBps <= 0 {
		return nil, nil
	}
	var baseSpend domain.Amount
	for _, l := range legs {
		if l.In.Symbol == coins.Base.Symbol {
			baseSpend = l.AmountIn
		}
	}
	budget := quotemath.FractionBps(baseSpend, c.cfg.FeeFractionBps)
	if budget.IsZero() {
		return nil, nil
	}
	h, err := c.hop(coins.Base, coins.Fee)
	if err != nil {
		return nil, err
	}
	rate, err := c.quoter.GetRate(ctx, h.pool.Name)
	if err != nil {
		return nil, fmt.Errorf("swap: fee token rate: %w", err)
	}
	price := rate.Forward // base per fee token when fee is the pool's base
	if !h.buyBase() {
		price = rate.Inverse
	}
	if !price.IsPositive() {
		return nil, fmt.Errorf("swap: fee token rate %s: %w", h.pool.Name, domain.ErrNotFound)
	}
	target := quotemath.ToUnitsFloor(quotemath.FromUnits(budget, coins.Base.Decimals).Div(price), coins.Fee.Decimals)
	if target.IsZero() {
		return nil, nil
	}
	leg, err := c.sizeLeg(ctx, h, target, slippage, warnings)
	if err != nil {
		return nil, err
	}
	return &leg, nil
}
