package quotemath

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/domain"
)

func level(price, qty string) domain.PriceLevel {
	return domain.PriceLevel{Price: d(price), Quantity: d(qty)}
}

func TestSimulateBuySingleLevel(t *testing.T) {
	asks := []domain.PriceLevel{level("0.095", "2000000"), level("0.10", "5000000")}

	est := SimulateBuy(d("1000000"), asks)
	require.True(t, est.InputNeeded.Equal(d("95000")), "got %s", est.InputNeeded)
	require.Equal(t, int64(0), est.ImpactBps)
	require.False(t, est.Extrapolated)
	require.Equal(t, 1, est.Levels)
	require.True(t, est.Available.Equal(d("7000000")))
}

func TestSimulateBuyAcrossLevels(t *testing.T) {
	asks := []domain.PriceLevel{level("0.095", "2000000"), level("0.10", "5000000")}

	est := SimulateBuy(d("3000000"), asks)
	// 2,000,000 * 0.095 + 1,000,000 * 0.10
	require.True(t, est.InputNeeded.Equal(d("290000")), "got %s", est.InputNeeded)
	require.Equal(t, 2, est.Levels)
	// vwap 0.09666.. vs best 0.095 is 175.4 bps, rounded up
	require.Equal(t, int64(176), est.ImpactBps)
}

func TestSimulateBuyExtrapolates(t *testing.T) {
	asks := []domain.PriceLevel{level("2", "10")}

	est := SimulateBuy(d("15"), asks)
	require.True(t, est.Extrapolated)
	require.True(t, est.InputNeeded.Equal(d("30")))
}

func TestSimulateBuyEmptyBook(t *testing.T) {
	est := SimulateBuy(d("15"), nil)
	require.True(t, est.Extrapolated)
	require.True(t, est.InputNeeded.IsZero())
}

func TestSimulateBuyNeverUnderQuotes(t *testing.T) {
	asks := []domain.PriceLevel{
		level("0.0931", "1234.5"),
		level("0.0942", "877.25"),
		level("0.0977", "15000"),
		level("0.1013", "40000"),
	}
	targets := []string{"1", "0.000001", "1234.5", "1234.500001", "2111.75", "9999.99", "17000", "57000"}
	for _, target := range targets {
		tgt := d(target)
		est := SimulateBuy(tgt, asks)
		require.False(t, est.Extrapolated, target)

		// The input is spent in 6-decimal base units, so round it up first.
		units := ToUnitsCeil(est.InputNeeded, 6)
		got := OutputForInput(FromUnits(units, 6), asks)
		require.True(t, got.GreaterThanOrEqual(tgt), "target %s got %s", target, got)
	}
}

func TestOutputForInputStopsAtDepth(t *testing.T) {
	asks := []domain.PriceLevel{level("1", "5")}
	require.True(t, OutputForInput(d("100"), asks).Equal(d("5")))
	require.True(t, OutputForInput(decimal.Zero, asks).IsZero())
}

func TestSellSideInvertsBids(t *testing.T) {
	depth := domain.Depth{Bids: []domain.PriceLevel{level("2", "10"), level("1", "10")}}

	side := depth.SellSide()
	require.Len(t, side, 2)
	require.True(t, side[0].Price.Equal(d("0.5")))
	require.True(t, side[0].Quantity.Equal(d("20")))

	// Raising 25 quote: 20 from the first bid (10 base) + 5 from the second (5 base).
	est := SimulateBuy(d("25"), side)
	require.True(t, est.InputNeeded.Equal(d("15")), "got %s", est.InputNeeded)
}
