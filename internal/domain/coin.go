package domain

import (
	"fmt"
	"strings"
)

// Network selects the Sui network whose pools and packages are used.
type Network string

const (
	NetworkMainnet Network = "mainnet"
	NetworkTestnet Network = "testnet"
)

// Coin identifies an asset and how many decimals its smallest unit has.
type Coin struct {
	Symbol   string `json:"symbol"`
	Type     string `json:"type"`
	Decimals int32  `json:"decimals"`
}

// CoinSet holds the four assets the settlement engine works with.
type CoinSet struct {
	Base   Coin // network settlement token (SUI)
	Reward Coin // discount-unlocking token (NS)
	Stable Coin // USD-pegged token (USDC)
	Fee    Coin // exchange fee token (DEEP)
}

// All returns the known coins in a fixed order.
func (s CoinSet) All() []Coin {
	return []Coin{s.Base, s.Reward, s.Stable, s.Fee}
}

// Lookup finds a coin by symbol (case-insensitive) or by full coin type.
func (s CoinSet) Lookup(symbolOrType string, extra []Coin) (Coin, error) {
	key := strings.TrimSpace(symbolOrType)
	for _, c := range append(s.All(), extra...) {
		if strings.EqualFold(c.Symbol, key) || NormalizeCoinType(c.Type) == NormalizeCoinType(key) {
			return c, nil
		}
	}
	return Coin{}, fmt.Errorf("%w: %q", ErrUnknownAsset, symbolOrType)
}

// NormalizeCoinType pads the address part of a Move type tag so that
// "0x2::sui::SUI" and its long form compare equal.
func NormalizeCoinType(t string) string {
	parts := strings.SplitN(strings.TrimSpace(t), "::", 2)
	if len(parts) != 2 {
		return strings.TrimSpace(t)
	}
	addr, err := NormalizeAddress(parts[0])
	if err != nil {
		return strings.TrimSpace(t)
	}
	return addr + "::" + parts[1]
}
