package quotemath

import (
	"github.com/shopspring/decimal"

	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/domain"
)

// BuyEstimate is the result of walking an ask book for a target output.
type BuyEstimate struct {
	// InputNeeded is the quote amount (human units) that buys Target.
	InputNeeded decimal.Decimal
	Target      decimal.Decimal
	// Available is the total quantity resting in the snapshot.
	Available    decimal.Decimal
	BestPrice    decimal.Decimal
	AveragePrice decimal.Decimal
	ImpactBps    int64
	// Extrapolated is set when the book could not fill Target and the rest
	// was priced linearly at the last level. Callers treat it as a warning.
	Extrapolated bool
	Levels       int
}

// SimulateBuy walks asks from the best price upward, accumulating quantity
// until target is met, with a partial fill on the last level.
func SimulateBuy(target decimal.Decimal, asks []domain.PriceLevel) BuyEstimate {
	est := BuyEstimate{Target: target, InputNeeded: decimal.Zero, Available: decimal.Zero}
	for _, lvl := range asks {
		if lvl.Quantity.IsPositive() && lvl.Price.IsPositive() {
			est.Available = est.Available.Add(lvl.Quantity)
		}
	}
	if !target.IsPositive() {
		return est
	}

	remaining := target
	var lastPrice decimal.Decimal
	for _, lvl := range asks {
		if !lvl.Quantity.IsPositive() || !lvl.Price.IsPositive() {
			continue
		}
		if est.BestPrice.IsZero() {
			est.BestPrice = lvl.Price
		}
		lastPrice = lvl.Price
		fill := decimal.Min(remaining, lvl.Quantity)
		est.InputNeeded = est.InputNeeded.Add(fill.Mul(lvl.Price))
		remaining = remaining.Sub(fill)
		est.Levels++
		if !remaining.IsPositive() {
			break
		}
	}

	if remaining.IsPositive() {
		est.Extrapolated = true
		if lastPrice.IsPositive() {
			est.InputNeeded = est.InputNeeded.Add(remaining.Mul(lastPrice))
		}
	}

	if est.InputNeeded.IsPositive() {
		est.AveragePrice = est.InputNeeded.DivRound(target, divPrecision)
	}
	est.ImpactBps = ImpactBps(est.AveragePrice, est.BestPrice)
	return est
}

// OutputForInput spends input (quote, human units) against asks and returns
// the base quantity received. Input beyond the book's depth buys nothing.
func OutputForInput(input decimal.Decimal, asks []domain.PriceLevel) decimal.Decimal {
	out := decimal.Zero
	remaining := input
	for _, lvl := range asks {
		if !remaining.IsPositive() {
			break
		}
		if !lvl.Quantity.IsPositive() || !lvl.Price.IsPositive() {
			continue
		}
		cost := lvl.Quantity.Mul(lvl.Price)
		if remaining.GreaterThanOrEqual(cost) {
			out = out.Add(lvl.Quantity)
			remaining = remaining.Sub(cost)
			continue
		}
		out = out.Add(remaining.DivRound(lvl.Price, divPrecision))
		remaining = decimal.Zero
	}
	return out
}

// ImpactBps returns (avg - best) / best in basis points, rounded up.
func ImpactBps(avg, best decimal.Decimal) int64 {
	if !best.IsPositive() || !avg.GreaterThan(best) {
		return 0
	}
	return avg.Sub(best).Mul(decimal.NewFromInt(BpsDenominator)).DivRound(best, divPrecision).Ceil().IntPart()
}
