package deepbook

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/domain"
)

// Pool is one entry of /get_pools.
type Pool struct {
	PoolID             string `json:"pool_id"`
	PoolName           string `json:"pool_name"`
	BaseAssetID        string `json:"base_asset_id"`
	BaseAssetDecimals  int32  `json:"base_asset_decimals"`
	BaseAssetSymbol    string `json:"base_asset_symbol"`
	QuoteAssetID       string `json:"quote_asset_id"`
	QuoteAssetDecimals int32  `json:"quote_asset_decimals"`
	QuoteAssetSymbol   string `json:"quote_asset_symbol"`
	MinSize            int64  `json:"min_size"`
	LotSize            int64  `json:"lot_size"`
	TickSize           int64  `json:"tick_size"`
}

// Orderbook is the level-2 response. Levels are [price, quantity] pairs of
// decimal strings in human units.
type Orderbook struct {
	Timestamp json.Number `json:"timestamp"`
	Bids      [][2]string `json:"bids"`
	Asks      [][2]string `json:"asks"`
}

// ToDomain parses the levels and orders asks ascending, bids descending.
// A missing timestamp is replaced with fetchedAt.
func (o Orderbook) ToDomain(pool string, fetchedAt time.Time) (domain.Depth, error) {
	asks, err := parseLevels(o.Asks)
	if err != nil {
		return domain.Depth{}, fmt.Errorf("asks: %w", err)
	}
	bids, err := parseLevels(o.Bids)
	if err != nil {
		return domain.Depth{}, fmt.Errorf("bids: %w", err)
	}
	sort.SliceStable(asks, func(i, j int) bool { return asks[i].Price.LessThan(asks[j].Price) })
	sort.SliceStable(bids, func(i, j int) bool { return bids[i].Price.GreaterThan(bids[j].Price) })

	ts := fetchedAt
	if ms, err := strconv.ParseInt(o.Timestamp.String(), 10, 64); err == nil && ms > 0 {
		ts = time.UnixMilli(ms)
	}
	return domain.Depth{Pool: pool, Asks: asks, Bids: bids, Timestamp: ts}, nil
}

func parseLevels(raw [][2]string) ([]domain.PriceLevel, error) {
	out := make([]domain.PriceLevel, 0, len(raw))
	for _, lvl := range raw {
		price, err := decimal.NewFromString(lvl[0])
		if err != nil {
			return nil, fmt.Errorf("price %q: %w", lvl[0], err)
		}
		qty, err := decimal.NewFromString(lvl[1])
		if err != nil {
			return nil, fmt.Errorf("quantity %q: %w", lvl[1], err)
		}
		if !price.IsPositive() || !qty.IsPositive() {
			continue
		}
		out = append(out, domain.PriceLevel{Price: price, Quantity: qty})
	}
	return out, nil
}
