package swap

import (
	"fmt"

	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/domain"
	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/ptb"
)

// ObjectRef pins an owned object. Version and digest may be left empty for
// the wallet to fill in.
type ObjectRef struct {
	ID      string `json:"id"`
	Version string `json:"version,omitempty"`
	Digest  string `json:"digest,omitempty"`
}

// SourceCoin is a payer coin offered for the source leg.
type SourceCoin struct {
	ObjectRef
	Balance *domain.Amount `json:"balance,omitempty"`
}

// Funds are the coins a plan leaves in the transaction.
type Funds struct {
	// Payment holds exactly Plan.Need reward tokens.
	Payment ptb.Handle
	// Dust is what the last swap bought beyond Need, if there was a swap.
	Dust *ptb.Handle
	// Sweep are the leftovers that go back to the payer.
	Sweep []ptb.Value
}

// CheckFunds compares the balances the caller declared with what the plan
// spends. Base-asset spend includes the gas budget. Coins without a declared
// balance are not checked.
func (c *Composer) CheckFunds(p *Plan, coins []SourceCoin) error {
	base := c.cfg.Coins.Base
	if p.Source.Symbol == base.Symbol {
		need := p.BaseSpend(base).Add(domain.NewAmount(int64(c.cfg.GasBudget)))
		return checkBalance(base, coins, need)
	}
	return checkBalance(p.Source, coins, p.SourceSpend)
}

func checkBalance(coin domain.Coin, coins []SourceCoin, need domain.Amount) error {
	total := domain.NewAmount(0)
	known := false
	for _, c := range coins {
		if c.Balance != nil {
			known = true
			total = total.Add(*c.Balance)
		}
	}
	if known && total.Cmp(need) < 0 {
		return fmt.Errorf("%w: %s %s offered, %s needed", domain.ErrInsufficientBalance, total, coin.Symbol, need)
	}
	return nil
}

// sourceCoin returns the coin the first leg spends. Base-asset sources come
// out of the gas coin and ignore coins.
func (c *Composer) sourceCoin(b *ptb.Builder, p *Plan, coins []SourceCoin) (ptb.Handle, error) {
	if p.Source.Symbol == c.cfg.Coins.Base.Symbol {
		return b.Split(b.Gas(), p.Source.Type, "source", p.SourceSpend), nil
	}
	if len(coins) == 0 {
		return ptb.Handle{}, fmt.Errorf("%w: no %s coins supplied", domain.ErrInsufficientBalance, p.Source.Symbol)
	}
	primary := b.OwnedObject(coins[0].ID, coins[0].Version, coins[0].Digest)
	rest := make([]ptb.Value, 0, len(coins)-1)
	for _, sc := range coins[1:] {
		rest = append(rest, b.OwnedObject(sc.ID, sc.Version, sc.Digest))
	}
	b.MergeCoins(primary, rest...)
	return b.Split(primary, p.Source.Type, "source", p.SourceSpend), nil
}

// Emit appends the plan's commands: the fee-token leg, every route leg with
// the fee coin threaded through, and the exact payment split.
func (c *Composer) Emit(b *ptb.Builder, p *Plan, coins []SourceCoin) (Funds, error) {
	env := c.cfg.Env
	src, err := c.sourceCoin(b, p, coins)
	if err != nil {
		return Funds{}, err
	}
	if len(p.Legs) == 0 {
		return Funds{Payment: src}, nil
	}

	var funds Funds
	var feeCoin ptb.Handle
	if p.FeeLeg != nil {
		leg := p.FeeLeg
		budget := b.Split(b.Gas(), leg.In.Type, "fee-budget", leg.AmountIn)
		res := env.Swap(b, leg.Pool, leg.BuyBase, budget, env.ZeroCoin(b, c.cfg.Coins.Fee), leg.MinOut)
		feeCoin = res.Out(leg.BuyBase)
		b.MergeCoins(feeCoin, res.Deep)
		funds.Sweep = append(funds.Sweep, res.Leftover(leg.BuyBase))
	} else {
		feeCoin = env.ZeroCoin(b, c.cfg.Coins.Fee)
	}

	cur := src
	for _, leg := range p.Legs {
		res := env.Swap(b, leg.Pool, leg.BuyBase, cur, feeCoin, leg.MinOut)
		funds.Sweep = append(funds.Sweep, res.Leftover(leg.BuyBase))
		feeCoin = res.Deep
		cur = res.Out(leg.BuyBase)
	}
	funds.Sweep = append(funds.Sweep, feeCoin)
	funds.Payment = b.Split(cur, c.cfg.Coins.Reward.Type, "payment", p.Need)
	funds.Dust = &cur
	return funds, nil
}
