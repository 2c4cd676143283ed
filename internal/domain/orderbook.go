package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceLevel is a single resting order level. Price is quote units per one
// base unit and Quantity is in base units, both in human (decimal) units.
type PriceLevel struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

// Depth is an immutable order book snapshot for a pool. Asks are ascending by
// price, bids descending. It is only valid for the instant it was fetched.
type Depth struct {
	Pool      string       `json:"pool"`
	Asks      []PriceLevel `json:"asks"`
	Bids      []PriceLevel `json:"bids"`
	Timestamp time.Time    `json:"timestamp"`
}

// BestAsk returns the lowest ask, or zero when the book has no asks.
func (d Depth) BestAsk() decimal.Decimal {
	if len(d.Asks) == 0 {
		return decimal.Zero
	}
	return d.Asks[0].Price
}

// BestBid returns the highest bid, or zero when the book has no bids.
func (d Depth) BestBid() decimal.Decimal {
	if len(d.Bids) == 0 {
		return decimal.Zero
	}
	return d.Bids[0].Price
}

// Mid returns the mid price, falling back to whichever side is present.
func (d Depth) Mid() decimal.Decimal {
	bid, ask := d.BestBid(), d.BestAsk()
	switch {
	case bid.IsPositive() && ask.IsPositive():
		return bid.Add(ask).Div(decimal.NewFromInt(2))
	case ask.IsPositive():
		return ask
	default:
		return bid
	}
}

// SellSide returns the bids re-expressed as asks for buying quote with base:
// a bid (p, q) becomes an ask priced 1/p base per quote with p*q quote
// available. Levels stay ascending by the new price.
func (d Depth) SellSide() []PriceLevel {
	out := make([]PriceLevel, 0, len(d.Bids))
	for _, lvl := range d.Bids {
		if !lvl.Price.IsPositive() || !lvl.Quantity.IsPositive() {
			continue
		}
		out = append(out, PriceLevel{
			Price:    decimal.NewFromInt(1).DivRound(lvl.Price, 18),
			Quantity: lvl.Quantity.Mul(lvl.Price),
		})
	}
	return out
}
