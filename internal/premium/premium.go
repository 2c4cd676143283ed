// Package premium prices names that are past expiry but still inside their
// grace window. The premium is a Dutch auction that decays exponentially from
// a fixed USD target at lapse to about one base-asset unit at the end of the
// window.
package premium

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/quotemath"
)

const (
	// DefaultUSDTarget is the premium's USD value at the moment of lapse.
	DefaultUSDTarget = 10_000_000
	// DefaultGraceWindow is how long a lapsed name stays reclaimable.
	DefaultGraceWindow = 30 * 24 * time.Hour
)

// DefaultHeadStart advances the reward-token curve by 3/30 of the window.
var DefaultHeadStart = decimal.NewFromInt(3).Div(decimal.NewFromInt(30))

// Premium is the decayed premium at one instant. Asset premiums are whole
// base-asset units (not base units); stable values are USD.
type Premium struct {
	BaseAssetPremium   decimal.Decimal `json:"base_asset_premium"`
	RewardTokenPremium decimal.Decimal `json:"reward_token_premium"`
	StableValue        decimal.Decimal `json:"stable_value"`
	RewardStableValue  decimal.Decimal `json:"reward_stable_value"`
	Progress           decimal.Decimal `json:"progress"`
}

// Model holds the curve parameters.
type Model struct {
	USDTarget   decimal.Decimal
	GraceWindow time.Duration
	HeadStart   decimal.Decimal
}

// Default returns the production curve.
func Default() Model {
	return Model{
		USDTarget:   decimal.NewFromInt(DefaultUSDTarget),
		GraceWindow: DefaultGraceWindow,
		HeadStart:   DefaultHeadStart,
	}
}

// Compute evaluates the curve. It never fails: a non-positive price or an
// empty window yields a zero premium, and now before lapse is progress 0.
func (m Model) Compute(lapse, now time.Time, basePriceInStable decimal.Decimal) Premium {
	out := Premium{
		BaseAssetPremium:   decimal.Zero,
		RewardTokenPremium: decimal.Zero,
		StableValue:        decimal.Zero,
		RewardStableValue:  decimal.Zero,
		Progress:           decimal.Zero,
	}
	if !basePriceInStable.IsPositive() || m.GraceWindow <= 0 || !m.USDTarget.IsPositive() {
		return out
	}

	maxSupply := m.USDTarget.DivRound(basePriceInStable, 18)
	out.Progress = m.progress(lapse, now)
	rewardProgress := quotemath.Clamp01(out.Progress.Add(m.HeadStart))

	out.BaseAssetPremium = quotemath.ExpDecay(maxSupply, out.Progress)
	out.RewardTokenPremium = quotemath.ExpDecay(maxSupply, rewardProgress)
	out.StableValue = out.BaseAssetPremium.Mul(basePriceInStable)
	out.RewardStableValue = out.RewardTokenPremium.Mul(basePriceInStable)
	return out
}

func (m Model) progress(lapse, now time.Time) decimal.Decimal {
	elapsed := now.Sub(lapse)
	if elapsed <= 0 {
		return decimal.Zero
	}
	p := decimal.NewFromInt(elapsed.Milliseconds()).
		DivRound(decimal.NewFromInt(m.GraceWindow.Milliseconds()), 18)
	return quotemath.Clamp01(p)
}

// InGrace reports whether a name that expired at expiration is still inside
// its grace window at now. Names past the window are simply available.
func (m Model) InGrace(expiration, now time.Time) bool {
	return !now.Before(expiration) && now.Before(expiration.Add(m.GraceWindow))
}

// Compute evaluates the default curve.
func Compute(lapse, now time.Time, basePriceInStable decimal.Decimal) Premium {
	return Default().Compute(lapse, now, basePriceInStable)
}
