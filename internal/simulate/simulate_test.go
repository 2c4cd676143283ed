package simulate

import (
	"math/big"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/domain"
	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/onchain"
	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/ptb"
)

var (
	sui  = domain.Coin{Symbol: "SUI", Type: "0x2::sui::SUI", Decimals: 9}
	ns   = domain.Coin{Symbol: "NS", Type: "0x5145::ns::NS", Decimals: 6}
	deep = domain.Coin{Symbol: "DEEP", Type: "0xdeeb::deep::DEEP", Decimals: 6}

	payer        = "0xa11ce"
	executorAddr = "0xe1ec"
	beneficiary  = "0xbe4e"
	feeAddr      = "0xfee"

	env = onchain.Env{
		Packages: onchain.Packages{
			DeepBook:     "0xdb",
			Registration: "0x5e",
			NFTType:      "0x5e::suins_registration::SuinsRegistration",
			Vault:        "0xfa",
		},
		SuiNS:   onchain.SharedRef{ID: "0x5c", InitialSharedVersion: 1},
		FeeCoin: deep,
	}

	nsPool = onchain.Pool{Name: "NS_SUI", ID: "0xa1", InitialSharedVersion: 7, Base: ns, Quote: sui}
)

func lvl(p, q string) domain.PriceLevel {
	return domain.PriceLevel{Price: decimal.RequireFromString(p), Quantity: decimal.RequireFromString(q)}
}

func addr(t *testing.T, s string) string {
	t.Helper()
	norm, err := domain.NormalizeAddress(s)
	require.NoError(t, err)
	return norm
}

func requireDelta(t *testing.T, res Result, owner, coinType string, want int64) {
	t.Helper()
	require.Equal(t, big.NewInt(want).String(), res.Delta(owner, coinType).String(), "%s %s", owner, coinType)
}

type fixture struct {
	ledger *Ledger
	now    time.Time
	deepID string
	nsID   string
}

func newFixture(t *testing.T, price int64) *fixture {
	t.Helper()
	f := &fixture{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	f.ledger = NewLedger(Config{
		Env:          env,
		RewardCoin:   ns,
		BaseCoin:     sui,
		RegistryFee:  func(string, int) domain.Amount { return domain.NewAmount(price) },
		Now:          func() time.Time { return f.now },
		DeepFeePerTx: domain.NewAmount(1_000),
	})
	require.NoError(t, f.ledger.AddPool(nsPool, domain.Depth{
		Asks: []domain.PriceLevel{lvl("0.1", "1000")},
		Bids: []domain.PriceLevel{lvl("0.09", "1000")},
	}))
	_, err := f.ledger.Fund(payer, sui, domain.NewAmount(10_000_000_000))
	require.NoError(t, err)
	f.deepID, err = f.ledger.Fund(payer, deep, domain.NewAmount(1_000_000))
	require.NoError(t, err)
	f.nsID, err = f.ledger.Fund(payer, ns, domain.NewAmount(2_000_000_000))
	require.NoError(t, err)
	return f
}

func (f *fixture) swapAndRegister(t *testing.T, minOut int64) *ptb.Transaction {
	t.Helper()
	b := ptb.NewBuilder(payer, 50_000_000)
	in := b.Split(b.Gas(), sui.Type, "sui", domain.NewAmount(5_000_000_000))
	deepIn := b.Split(b.OwnedObject(f.deepID, "", ""), deep.Type, "deep", domain.NewAmount(10_000))
	res := env.Swap(b, nsPool, true, in, deepIn, domain.NewAmount(minOut))
	payment := b.Split(res.Base, ns.Type, "payment", domain.NewAmount(20_000_000))
	nft := env.Register(b, "abc.sui", 1, payment)
	b.TransferObjects(payer, nft, res.Base, res.Quote, res.Deep)
	tx, err := b.Finish()
	require.NoError(t, err)
	return tx
}

func TestSwapAndRegister(t *testing.T) {
	f := newFixture(t, 20_000_000)
	supplyBefore := map[string]*big.Int{}
	for _, c := range []domain.Coin{sui, ns, deep} {
		supplyBefore[c.Type] = f.ledger.Supply(c.Type)
	}

	res, err := f.ledger.Execute(f.swapAndRegister(t, 50_000_000))
	require.NoError(t, err)

	requireDelta(t, res, payer, sui.Type, -5_000_000_000)
	requireDelta(t, res, payer, ns.Type, 30_000_000)
	requireDelta(t, res, payer, deep.Type, -1_000)
	require.Equal(t, []string{"abc.sui"}, res.Registered)

	nft, ok := f.ledger.Registration("abc.sui")
	require.True(t, ok)
	require.Equal(t, addr(t, payer), nft.Owner)
	require.Equal(t, f.now.Add(year), nft.Expires)
	require.Equal(t, "20000000", f.ledger.Treasury(ns.Type).String())

	for typ, before := range supplyBefore {
		require.Equal(t, before.String(), f.ledger.Supply(typ).String(), typ)
	}
}

func TestMinOutAbortsAtomically(t *testing.T) {
	f := newFixture(t, 20_000_000)
	before := f.ledger.Balance(payer, sui.Type)

	_, err := f.ledger.Execute(f.swapAndRegister(t, 50_000_001))
	require.ErrorIs(t, err, ErrAbort)
	require.Contains(t, err.Error(), "below minimum")

	require.Equal(t, before.String(), f.ledger.Balance(payer, sui.Type).String())
	_, ok := f.ledger.Registration("abc.sui")
	require.False(t, ok)
}

func TestUnderpaidRegistrationAborts(t *testing.T) {
	f := newFixture(t, 60_000_000)
	_, err := f.ledger.Execute(f.swapAndRegister(t, 50_000_000))
	require.ErrorIs(t, err, ErrAbort)
	require.Contains(t, err.Error(), "below price")
}

func TestUnusedResultAborts(t *testing.T) {
	f := newFixture(t, 0)
	tx := &ptb.Transaction{
		Version: ptb.TransactionVersion,
		Sender:  addr(t, payer),
		Inputs:  []ptb.Input{{Pure: &ptb.PureArg{Bytes: ptb.EncodeU64(5)}}},
		Commands: []ptb.Command{{SplitCoins: &ptb.SplitCoins{
			Coin:    ptb.Argument{Kind: ptb.ArgGasCoin},
			Amounts: []ptb.Argument{{Kind: ptb.ArgInput, Index: 0}},
		}}},
	}
	_, err := f.ledger.Execute(tx)
	require.ErrorIs(t, err, ErrAbort)
	require.Contains(t, err.Error(), "unused value")
}

func TestForeignCoinRejected(t *testing.T) {
	f := newFixture(t, 0)
	b := ptb.NewBuilder(executorAddr, 1)
	c := b.Split(b.OwnedObject(f.nsID, "", ""), ns.Type, "steal", domain.NewAmount(1))
	b.TransferObjects(executorAddr, c)
	tx, err := b.Finish()
	require.NoError(t, err)

	_, err = f.ledger.Execute(tx)
	require.ErrorIs(t, err, ErrAbort)
	require.Contains(t, err.Error(), "owned by")
}

func TestRenewExtendsFromExpiry(t *testing.T) {
	f := newFixture(t, 20_000_000)
	_, err := f.ledger.Execute(f.swapAndRegister(t, 50_000_000))
	require.NoError(t, err)
	reg, _ := f.ledger.Registration("abc.sui")

	b := ptb.NewBuilder(payer, 1)
	pay := b.Split(b.OwnedObject(f.nsID, "", ""), ns.Type, "renew", domain.NewAmount(40_000_000))
	env.Renew(b, b.OwnedObject(reg.ID, "", ""), 2, pay)
	tx, err := b.Finish()
	require.NoError(t, err)

	res, err := f.ledger.Execute(tx)
	require.NoError(t, err)
	requireDelta(t, res, payer, ns.Type, -40_000_000)
	renewed, _ := f.ledger.Registration("abc.sui")
	require.Equal(t, reg.Expires.Add(2*year), renewed.Expires)
}

func createVault(t *testing.T, f *fixture, expires time.Time) onchain.SharedRef {
	t.Helper()
	b := ptb.NewBuilder(payer, 1)
	funds := b.Split(b.OwnedObject(f.nsID, "", ""), ns.Type, "funds", domain.NewAmount(1_060_000_000))
	env.CreateVault(b, ns.Type, funds, onchain.VaultTerms{
		Beneficiary:  beneficiary,
		FeeRecipient: feeAddr,
		Domain:       "abc.sui",
		Years:        1,
		Budget:       domain.NewAmount(1_000_000_000),
		Reward:       domain.NewAmount(50_000_000),
		Fee:          domain.NewAmount(10_000_000),
		ExpiresAtMs:  uint64(expires.UnixMilli()),
	})
	tx, err := b.Finish()
	require.NoError(t, err)
	res, err := f.ledger.Execute(tx)
	require.NoError(t, err)
	require.Len(t, res.Vaults, 1)
	return onchain.SharedRef{ID: res.Vaults[0], InitialSharedVersion: 1}
}

func executeVaultTx(t *testing.T, ref onchain.SharedRef) *ptb.Transaction {
	t.Helper()
	b := ptb.NewBuilder(executorAddr, 1)
	budget, ticket := env.BeginExecution(b, ns.Type, ref)
	nft := env.Register(b, "abc.sui", 1, budget)
	reward := env.Finalize(b, ns.Type, ref, ticket, nft)
	b.TransferObjects(executorAddr, reward)
	tx, err := b.Finish()
	require.NoError(t, err)
	return tx
}

func TestVaultExecution(t *testing.T) {
	f := newFixture(t, 1_000_000_000)
	ref := createVault(t, f, f.now.Add(24*time.Hour))

	res, err := f.ledger.Execute(executeVaultTx(t, ref))
	require.NoError(t, err)
	requireDelta(t, res, executorAddr, ns.Type, 50_000_000)
	requireDelta(t, res, feeAddr, ns.Type, 10_000_000)

	nft, ok := f.ledger.Registration("abc.sui")
	require.True(t, ok)
	require.Equal(t, addr(t, beneficiary), nft.Owner)

	v, ok := f.ledger.Vault(ref.ID)
	require.True(t, ok)
	require.Equal(t, domain.VaultStatusExecuted, v.Status)
	require.Zero(t, v.Escrow.Sign())

	_, err = f.ledger.Execute(executeVaultTx(t, ref))
	require.ErrorIs(t, err, ErrAbort)
}

func TestVaultExpiredCannotExecute(t *testing.T) {
	f := newFixture(t, 1_000_000_000)
	ref := createVault(t, f, f.now.Add(time.Hour))
	f.now = f.now.Add(2 * time.Hour)

	_, err := f.ledger.Execute(executeVaultTx(t, ref))
	require.ErrorIs(t, err, ErrAbort)
	require.Contains(t, err.Error(), "expired")
}

func TestVaultCancelOwnerOnly(t *testing.T) {
	f := newFixture(t, 1_000_000_000)
	ref := createVault(t, f, f.now.Add(time.Hour))

	cancel := func(sender string) *ptb.Transaction {
		b := ptb.NewBuilder(sender, 1)
		refund := env.CancelVault(b, ns.Type, ref)
		b.TransferObjects(sender, refund)
		tx, err := b.Finish()
		require.NoError(t, err)
		return tx
	}

	_, err := f.ledger.Execute(cancel(executorAddr))
	require.ErrorIs(t, err, ErrAbort)
	require.Contains(t, err.Error(), "owner")

	res, err := f.ledger.Execute(cancel(payer))
	require.NoError(t, err)
	requireDelta(t, res, payer, ns.Type, 1_060_000_000)

	_, err = f.ledger.Execute(executeVaultTx(t, ref))
	require.ErrorIs(t, err, ErrAbort)
}

func TestSellSideFill(t *testing.T) {
	levels := []domain.PriceLevel{lvl("2", "10"), lvl("1", "10")}
	out, spent := fill(&levels, big.NewInt(15_000_000), 6, 6, true)
	require.Equal(t, "25000000", out.String())
	require.Equal(t, "15000000", spent.String())
	require.Len(t, levels, 1)
	require.Equal(t, "5", levels[0].Quantity.String())
}
