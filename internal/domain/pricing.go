package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// PricingKind distinguishes registration quotes from renewals.
type PricingKind string

const (
	PricingRegister PricingKind = "register"
	PricingRenew    PricingKind = "renew"
)

// PricingRequest is the validated input to the price calculator.
type PricingRequest struct {
	Domain string
	Years  int
	// ExpirationMs is the lapsed name's expiry in Unix milliseconds. It only
	// matters for registrations of names inside their grace window.
	ExpirationMs *int64
}

// ExchangeRates records the rates a pricing result was computed with.
type ExchangeRates struct {
	BaseUSD          decimal.Decimal `json:"base_usd"`        // stable per base
	RewardPerBase    decimal.Decimal `json:"reward_per_base"` // reward tokens per base asset
	BasePerReward    decimal.Decimal `json:"base_per_reward"` // the reward pool's quote
	BaseUSDSource    RateSource      `json:"base_usd_source"`
	RewardBaseSource RateSource      `json:"reward_base_source"`
}

// Breakdown is the human-facing part of a pricing result.
type Breakdown struct {
	BaseUSD           decimal.Decimal `json:"base_usd"`
	PremiumUSD        decimal.Decimal `json:"premium_usd"`
	TotalUSD          decimal.Decimal `json:"total_usd"`
	DiscountedUSD     decimal.Decimal `json:"discounted_usd"`
	DiscountPercent   decimal.Decimal `json:"discount_percent"`
	SlippageBudgetBps int64           `json:"slippage_budget_bps"`
}

// PricingResult is the output of the price calculator. All money fields are
// integer base-unit amounts.
type PricingResult struct {
	Kind              PricingKind     `json:"kind"`
	Domain            string          `json:"domain"`
	Years             int             `json:"years"`
	DirectAmount      Amount          `json:"direct_amount"`       // base asset, pay with no discount
	DiscountedAmount  Amount          `json:"discounted_amount"`   // base asset committed to the reward swap leg
	RewardTokenNeeded Amount          `json:"reward_token_needed"` // reward token units spent on the registry
	SavingsAmount     Amount          `json:"savings_amount"`
	SavingsPercent    decimal.Decimal `json:"savings_percent"`
	ExchangeRates     ExchangeRates   `json:"exchange_rates"`
	IsInGracePeriod   bool            `json:"is_in_grace_period"`
	UsedFallback      bool            `json:"used_fallback"`
	Breakdown         Breakdown       `json:"breakdown"`
	ComputedAt        time.Time       `json:"computed_at"`
}

// PriceTier is one row of the registry's price table.
type PriceTier struct {
	MinLength int             `json:"min_length"`
	MaxLength int             `json:"max_length"`
	AnnualUSD decimal.Decimal `json:"annual_usd"`
}

// PriceTable is the tiered annual price list for label lengths.
type PriceTable struct {
	Tiers []PriceTier `json:"tiers"`
}

// Lookup returns the annual USD price for a label length.
func (t PriceTable) Lookup(length int) (decimal.Decimal, bool) {
	for _, tier := range t.Tiers {
		if length >= tier.MinLength && length <= tier.MaxLength {
			return tier.AnnualUSD, true
		}
	}
	return decimal.Zero, false
}

// PriceTableSource provides the registry's current price table.
type PriceTableSource interface {
	PriceTable(ctx context.Context) (PriceTable, error)
}

// MarketData is the order-book venue the oracle queries.
type MarketData interface {
	// MidPrice returns the pool's mid price in quote per base.
	MidPrice(ctx context.Context, pool string) (decimal.Decimal, time.Time, error)
	// Depth returns resting asks and bids for the pool.
	Depth(ctx context.Context, pool string, levels int) (Depth, error)
}

// NameService resolves human-readable names.
type NameService interface {
	ResolveAddress(ctx context.Context, name string) (string, error)
	ReverseResolve(ctx context.Context, address string) ([]string, error)
}

// Clock returns the current time. Components take a Clock so tests can pin it.
type Clock func() time.Time
