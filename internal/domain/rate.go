package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RateSource tells callers how much to trust a rate.
type RateSource string

const (
	RateSourceLive     RateSource = "live"
	RateSourceStale    RateSource = "stale"
	RateSourceFallback RateSource = "fallback"
)

// Degraded reports whether composers should widen their safety buffers.
func (s RateSource) Degraded() bool {
	return s == RateSourceFallback
}

// Rate is the price of a pool's base asset in its quote asset.
type Rate struct {
	Pair      string          `json:"pair"`
	Network   Network         `json:"network"`
	Forward   decimal.Decimal `json:"forward"` // quote per base
	Inverse   decimal.Decimal `json:"inverse"` // base per quote
	Source    RateSource      `json:"source"`
	Depth     *Depth          `json:"depth,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Quote is a depth-aware estimate for acquiring a target output amount.
type Quote struct {
	Pair           string     `json:"pair"`
	RequiredInput  Amount     `json:"required_input"`
	ExpectedOutput Amount     `json:"expected_output"`
	PriceImpactBps int64      `json:"price_impact_bps"`
	Extrapolated   bool       `json:"extrapolated"`
	DepthLevels    int        `json:"depth_levels"`
	Source         RateSource `json:"source"`
	Timestamp      time.Time  `json:"timestamp"`
}
