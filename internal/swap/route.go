package swap

import (
	"fmt"

	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/domain"
	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/onchain"
	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/oracle"
)

// hop is one swap along a route.
type hop struct {
	pool onchain.Pool
	in   domain.Coin
	out  domain.Coin
}

// buyBase reports whether the hop buys the pool's base coin.
func (h hop) buyBase() bool { return h.pool.Base.Symbol == h.out.Symbol }

func (h hop) side() oracle.Side {
	if h.buyBase() {
		return oracle.SideBuyBase
	}
	return oracle.SideBuyQuote
}

// findPool returns a pool trading a against b in either orientation.
func (c *Composer) findPool(a, b domain.Coin) (onchain.Pool, bool) {
	for _, p := range c.cfg.Pools {
		if p.Has(a) && p.Has(b) && a.Symbol != b.Symbol {
			return p, true
		}
	}
	return onchain.Pool{}, false
}

func (c *Composer) hop(from, to domain.Coin) (hop, error) {
	p, ok := c.findPool(from, to)
	if !ok {
		return hop{}, fmt.Errorf("%w: %s/%s", domain.ErrNoPool, from.Symbol, to.Symbol)
	}
	return hop{pool: p, in: from, out: to}, nil
}

// route finds the swaps from source to the reward token: a direct pool into
// the base asset, or a bridge through the stable asset, then base to reward.
func (c *Composer) route(source domain.Coin) ([]hop, error) {
	coins := c.cfg.Coins
	if source.Symbol == coins.Reward.Symbol {
		return nil, nil
	}
	final, err := c.hop(coins.Base, coins.Reward)
	if err != nil {
		return nil, err
	}
	if source.Symbol == coins.Base.Symbol {
		return []hop{final}, nil
	}
	if direct, err := c.hop(source, coins.Base); err == nil {
		return []hop{direct, final}, nil
	}
	if source.Symbol == coins.Stable.Symbol {
		return nil, fmt.Errorf("%w: %s/%s", domain.ErrNoPool, source.Symbol, coins.Base.Symbol)
	}
	toStable, err := c.hop(source, coins.Stable)
	if err != nil {
		return nil, fmt.Errorf("%w: no route from %s", domain.ErrNoPool, source.Symbol)
	}
	bridge, err := c.hop(coins.Stable, coins.Base)
	if err != nil {
		return nil, err
	}
	return []hop{toStable, bridge, final}, nil
}
