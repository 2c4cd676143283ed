// Package onchain holds the Move call contracts the settlement engine emits:
// DeepBook swaps, name registration and the settlement vault. The composer,
// the vault service and the simulator all go through these helpers so the
// argument order is defined once.
package onchain

import (
	"fmt"

	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/domain"
	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/ptb"
)

// Module and function names.
const (
	ModulePool     = "pool"
	FnQuoteForBase = "swap_exact_quote_for_base"
	FnBaseForQuote = "swap_exact_base_for_quote"

	ModuleCoin = "coin"
	FnZero     = "zero"

	ModuleRegister = "register"
	FnRegister     = "register"
	ModuleRenew    = "renew"
	FnRenew        = "renew"

	ModuleVault     = "vault"
	FnVaultCreate   = "create"
	FnVaultBegin    = "begin_execution"
	FnVaultFinalize = "finalize"
	FnVaultCancel   = "cancel"

	FrameworkPackage = "0x2"
	ClockObjectID    = "0x6"
)

// SharedRef identifies a shared object.
type SharedRef struct {
	ID                   string `toml:"id" json:"id"`
	InitialSharedVersion uint64 `toml:"initial_shared_version" json:"initial_shared_version"`
}

// Packages are the Move packages calls are made against.
type Packages struct {
	DeepBook     string
	Registration string // register and renew entry points
	NFTType      string // full type of the registration NFT
	Vault        string
}

// Env is everything needed to address the on-chain collaborators.
type Env struct {
	Packages Packages
	SuiNS    SharedRef
	Clock    SharedRef
	FeeCoin  domain.Coin
}

// Pool is a DeepBook pool. Price is quote per base.
type Pool struct {
	Name                 string
	ID                   string
	InitialSharedVersion uint64
	Base                 domain.Coin
	Quote                domain.Coin
	// Whitelisted pools charge no DEEP fees.
	Whitelisted bool
}

// Has reports whether the pool trades coin.
func (p Pool) Has(c domain.Coin) bool {
	return p.Base.Symbol == c.Symbol || p.Quote.Symbol == c.Symbol
}

// Other returns the pool's other coin.
func (p Pool) Other(c domain.Coin) domain.Coin {
	if p.Base.Symbol == c.Symbol {
		return p.Quote
	}
	return p.Base
}

// SwapResult is the three coins every DeepBook swap returns.
type SwapResult struct {
	Base  ptb.Handle
	Quote ptb.Handle
	Deep  ptb.Handle
}

// Out returns the coin bought.
func (r SwapResult) Out(buyBase bool) ptb.Handle {
	if buyBase {
		return r.Base
	}
	return r.Quote
}

// Leftover returns the unspent input coin.
func (r SwapResult) Leftover(buyBase bool) ptb.Handle {
	if buyBase {
		return r.Quote
	}
	return r.Base
}

func (e Env) clock(b *ptb.Builder) ptb.Argument {
	id := e.Clock.ID
	if id == "" {
		id = ClockObjectID
	}
	v := e.Clock.InitialSharedVersion
	if v == 0 {
		v = 1
	}
	return b.SharedObject(id, v, false)
}

func target(pkg, module, fn string) string {
	return fmt.Sprintf("%s::%s::%s", pkg, module, fn)
}

// Swap emits a DeepBook swap of the whole coinIn. buyBase selects
// swap_exact_quote_for_base; otherwise swap_exact_base_for_quote.
func (e Env) Swap(b *ptb.Builder, pool Pool, buyBase bool, coinIn, deepIn ptb.Value, minOut domain.Amount) SwapResult {
	fn := FnBaseForQuote
	if buyBase {
		fn = FnQuoteForBase
	}
	out := b.MoveCall(target(e.Packages.DeepBook, ModulePool, fn),
		[]string{pool.Base.Type, pool.Quote.Type},
		[]ptb.Value{
			b.SharedObject(pool.ID, pool.InitialSharedVersion, true),
			coinIn,
			deepIn,
			b.PureAmount(minOut),
			e.clock(b),
		},
		ptb.Coin(pool.Base.Type, pool.Name+":"+pool.Base.Symbol),
		ptb.Coin(pool.Quote.Type, pool.Name+":"+pool.Quote.Symbol),
		ptb.Coin(e.FeeCoin.Type, pool.Name+":"+e.FeeCoin.Symbol),
	)
	return SwapResult{Base: out[0], Quote: out[1], Deep: out[2]}
}

// ZeroCoin emits 0x2::coin::zero<T>().
func (e Env) ZeroCoin(b *ptb.Builder, c domain.Coin) ptb.Handle {
	return b.MoveCall(target(FrameworkPackage, ModuleCoin, FnZero), []string{c.Type}, nil,
		ptb.Coin(c.Type, "zero:"+c.Symbol))[0]
}

// Register emits register(suins, name, years, payment, clock) and returns
// the registration NFT.
func (e Env) Register(b *ptb.Builder, name string, years int, payment ptb.Value) ptb.Handle {
	return b.MoveCall(target(e.Packages.Registration, ModuleRegister, FnRegister), nil,
		[]ptb.Value{
			b.SharedObject(e.SuiNS.ID, e.SuiNS.InitialSharedVersion, true),
			b.PureString(name),
			b.PureU8(uint8(years)),
			payment,
			e.clock(b),
		},
		ptb.Object(e.Packages.NFTType, "nft:"+name),
	)[0]
}

// Renew emits renew(suins, nft, years, payment, clock). The NFT is an owned
// input passed by mutable reference.
func (e Env) Renew(b *ptb.Builder, nft ptb.Argument, years int, payment ptb.Value) {
	b.MoveCall(target(e.Packages.Registration, ModuleRenew, FnRenew), nil,
		[]ptb.Value{
			b.SharedObject(e.SuiNS.ID, e.SuiNS.InitialSharedVersion, true),
			nft,
			b.PureU8(uint8(years)),
			payment,
			e.clock(b),
		},
	)
}

// VaultTerms are the escrow parameters of vault::create.
type VaultTerms struct {
	Beneficiary  string
	FeeRecipient string
	Domain       string
	Years        int
	Budget       domain.Amount
	Reward       domain.Amount
	Fee          domain.Amount
	ExpiresAtMs  uint64
}

// CreateVault emits vault::create<T>(funds, beneficiary, fee_recipient,
// domain, years, budget, reward, fee, expires_at_ms, clock). The vault is
// shared by the call; funds must equal budget + reward + fee.
func (e Env) CreateVault(b *ptb.Builder, coinType string, funds ptb.Value, t VaultTerms) {
	b.MoveCall(target(e.Packages.Vault, ModuleVault, FnVaultCreate), []string{coinType},
		[]ptb.Value{
			funds,
			b.PureAddress(t.Beneficiary),
			b.PureAddress(t.FeeRecipient),
			b.PureString(t.Domain),
			b.PureU8(uint8(t.Years)),
			b.PureAmount(t.Budget),
			b.PureAmount(t.Reward),
			b.PureAmount(t.Fee),
			b.PureU64(t.ExpiresAtMs),
			e.clock(b),
		},
	)
}

// BeginExecution emits vault::begin_execution<T>(vault, clock) and returns
// the budget coin and the execution ticket, which only finalize consumes.
func (e Env) BeginExecution(b *ptb.Builder, coinType string, vault SharedRef) (budget, ticket ptb.Handle) {
	out := b.MoveCall(target(e.Packages.Vault, ModuleVault, FnVaultBegin), []string{coinType},
		[]ptb.Value{b.SharedObject(vault.ID, vault.InitialSharedVersion, true), e.clock(b)},
		ptb.Coin(coinType, "vault:budget"),
		ptb.Object(e.Packages.Vault+"::vault::ExecutionTicket", "vault:ticket"),
	)
	return out[0], out[1]
}

// Finalize emits vault::finalize<T>(vault, ticket, nft). The vault sends the
// NFT to the beneficiary and the fee to the fee recipient and returns the
// executor reward.
func (e Env) Finalize(b *ptb.Builder, coinType string, vault SharedRef, ticket, nft ptb.Value) ptb.Handle {
	return b.MoveCall(target(e.Packages.Vault, ModuleVault, FnVaultFinalize), []string{coinType},
		[]ptb.Value{b.SharedObject(vault.ID, vault.InitialSharedVersion, true), ticket, nft},
		ptb.Coin(coinType, "vault:reward"),
	)[0]
}

// CancelVault emits vault::cancel<T>(vault, clock) and returns the refund.
// The call aborts unless the sender owns the vault.
func (e Env) CancelVault(b *ptb.Builder, coinType string, vault SharedRef) ptb.Handle {
	return b.MoveCall(target(e.Packages.Vault, ModuleVault, FnVaultCancel), []string{coinType},
		[]ptb.Value{b.SharedObject(vault.ID, vault.InitialSharedVersion, true), e.clock(b)},
		ptb.Coin(coinType, "vault:refund"),
	)[0]
}
