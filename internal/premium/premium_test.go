package premium

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var lapse = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func TestComputeAtLapseIsMaxSupply(t *testing.T) {
	p := Compute(lapse, lapse, decimal.NewFromInt(2))
	require.True(t, p.BaseAssetPremium.Equal(decimal.NewFromInt(5_000_000)), "got %s", p.BaseAssetPremium)
	require.True(t, p.StableValue.Equal(decimal.NewFromInt(10_000_000)))
	require.True(t, p.Progress.IsZero())
}

func TestComputeBeforeLapseIsFullPremium(t *testing.T) {
	p := Compute(lapse, lapse.Add(-time.Hour), decimal.NewFromInt(2))
	require.True(t, p.BaseAssetPremium.Equal(decimal.NewFromInt(5_000_000)))
}

func TestComputeAtWindowEndDecaysToOne(t *testing.T) {
	p := Compute(lapse, lapse.Add(DefaultGraceWindow), decimal.NewFromInt(2))
	require.True(t, p.BaseAssetPremium.Equal(decimal.NewFromInt(1)), "got %s", p.BaseAssetPremium)
	require.True(t, p.RewardTokenPremium.Equal(decimal.NewFromInt(1)))
}

func TestComputeHalfway(t *testing.T) {
	p := Compute(lapse, lapse.Add(DefaultGraceWindow/2), decimal.NewFromInt(2))
	require.True(t, p.Progress.Equal(decimal.RequireFromString("0.5")))

	// 5,000,000 * e^(-ln(5,000,000)/2) is about 2,236-2,245 depending on rounding of ln.
	require.True(t, p.BaseAssetPremium.GreaterThanOrEqual(decimal.NewFromInt(2225)), "got %s", p.BaseAssetPremium)
	require.True(t, p.BaseAssetPremium.LessThanOrEqual(decimal.NewFromInt(2255)), "got %s", p.BaseAssetPremium)
}

func TestRewardCurveIsNeverMoreExpensive(t *testing.T) {
	price := decimal.RequireFromString("3.17")
	for day := 0; day <= 30; day++ {
		p := Compute(lapse, lapse.Add(time.Duration(day)*24*time.Hour), price)
		require.True(t, p.RewardTokenPremium.LessThanOrEqual(p.BaseAssetPremium), "day %d", day)
		require.True(t, p.RewardStableValue.LessThanOrEqual(p.StableValue), "day %d", day)
	}
}

func TestComputeNonPositivePrice(t *testing.T) {
	for _, price := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-1)} {
		p := Compute(lapse, lapse.Add(time.Hour), price)
		require.True(t, p.BaseAssetPremium.IsZero())
		require.True(t, p.StableValue.IsZero())
	}
}

func TestInGrace(t *testing.T) {
	m := Default()
	require.False(t, m.InGrace(lapse, lapse.Add(-time.Second)))
	require.True(t, m.InGrace(lapse, lapse))
	require.True(t, m.InGrace(lapse, lapse.Add(DefaultGraceWindow-time.Second)))
	require.False(t, m.InGrace(lapse, lapse.Add(DefaultGraceWindow)))
}
