package oracle

import (
	"context"
	"fmt"

	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/domain"
	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/quotemath"
)

// Side says which asset of the pool is being bought.
type Side string

const (
	// SideBuyBase spends quote for base and walks the asks.
	SideBuyBase Side = "buy_base"
	// SideBuyQuote spends base for quote and walks the bids.
	SideBuyQuote Side = "buy_quote"
)

// BuyRequest asks how much input acquires Target units of output.
type BuyRequest struct {
	Pair        string
	Side        Side
	Target      domain.Amount
	OutDecimals int32
	InDecimals  int32
}

// SimulateBuy sizes a swap against a depth snapshot. Without depth (fallback
// or an empty book) the input is priced linearly at the mid rate and the
// quote is marked Extrapolated.
func (o *Oracle) SimulateBuy(ctx context.Context, req BuyRequest) (domain.Quote, error) {
	r, err := o.GetDepth(ctx, req.Pair)
	if err != nil {
		return domain.Quote{}, err
	}

	q := domain.Quote{
		Pair:      req.Pair,
		Source:    r.Source,
		Timestamp: r.Timestamp,
	}
	if req.Target.IsZero() {
		q.RequiredInput = domain.NewAmount(0)
		q.ExpectedOutput = domain.NewAmount(0)
		return q, nil
	}

	var levels []domain.PriceLevel
	if r.Depth != nil {
		if req.Side == SideBuyQuote {
			levels = r.Depth.SellSide()
		} else {
			levels = r.Depth.Asks
		}
	}
	target := quotemath.FromUnits(req.Target, req.OutDecimals)

	if len(levels) == 0 {
		price := r.Forward
		if req.Side == SideBuyQuote {
			price = r.Inverse
		}
		if !price.IsPositive() {
			return domain.Quote{}, fmt.Errorf("oracle: simulate %s: %w: no price", req.Pair, domain.ErrNotFound)
		}
		q.RequiredInput = quotemath.ToUnitsCeil(target.Mul(price), req.InDecimals)
		q.ExpectedOutput = req.Target
		q.Extrapolated = true
		return q, nil
	}

	est := quotemath.SimulateBuy(target, levels)
	q.RequiredInput = quotemath.ToUnitsCeil(est.InputNeeded, req.InDecimals)
	q.PriceImpactBps = est.ImpactBps
	q.Extrapolated = est.Extrapolated
	q.DepthLevels = len(levels)
	if est.Extrapolated {
		q.ExpectedOutput = req.Target
	} else {
		out := quotemath.OutputForInput(quotemath.FromUnits(q.RequiredInput, req.InDecimals), levels)
		q.ExpectedOutput = quotemath.ToUnitsFloor(out, req.OutDecimals)
	}
	return q, nil
}
