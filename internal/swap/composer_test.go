package swap

import (
	"context"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/cache/memory"
	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/domain"
	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/onchain"
	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/oracle"
	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/pricing"
	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/registry"
	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/resolver"
	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/simulate"
)

var (
	coins = domain.CoinSet{
		Base:   domain.Coin{Symbol: "SUI", Type: "0x2::sui::SUI", Decimals: 9},
		Reward: domain.Coin{Symbol: "NS", Type: "0x5145::ns::NS", Decimals: 6},
		Stable: domain.Coin{Symbol: "USDC", Type: "0xdba3::usdc::USDC", Decimals: 6},
		Fee:    domain.Coin{Symbol: "DEEP", Type: "0xdeeb::deep::DEEP", Decimals: 6},
	}
	wal = domain.Coin{Symbol: "WAL", Type: "0x356a::wal::WAL", Decimals: 9}
	foo = domain.Coin{Symbol: "FOO", Type: "0xf00::foo::FOO", Decimals: 6}

	payerAddr = "0xa11ce"
	feeAddr   = "0xfee"

	testEnv = onchain.Env{
		Packages: onchain.Packages{
			DeepBook:     "0xdb",
			Registration: "0x5e",
			NFTType:      "0x5e::suins_registration::SuinsRegistration",
			Vault:        "0xfa",
		},
		SuiNS:   onchain.SharedRef{ID: "0x5c", InitialSharedVersion: 1},
		FeeCoin: coins.Fee,
	}

	testPools = []onchain.Pool{
		{Name: "NS_SUI", ID: "0xa1", InitialSharedVersion: 3, Base: coins.Reward, Quote: coins.Base},
		{Name: "SUI_USDC", ID: "0xa2", InitialSharedVersion: 3, Base: coins.Base, Quote: coins.Stable},
		{Name: "DEEP_SUI", ID: "0xa3", InitialSharedVersion: 3, Base: coins.Fee, Quote: coins.Base, Whitelisted: true},
		{Name: "WAL_USDC", ID: "0xa4", InitialSharedVersion: 3, Base: wal, Quote: coins.Stable},
	}
)

func lvl(p, q string) domain.PriceLevel {
	return domain.PriceLevel{Price: decimal.RequireFromString(p), Quantity: decimal.RequireFromString(q)}
}

func books() map[string]domain.Depth {
	return map[string]domain.Depth{
		"NS_SUI": {
			Asks: []domain.PriceLevel{lvl("0.1", "1000"), lvl("0.101", "1000000")},
			Bids: []domain.PriceLevel{lvl("0.099", "1000000"), lvl("0.098", "1000000")},
		},
		"SUI_USDC": {
			Asks: []domain.PriceLevel{lvl("2", "100000"), lvl("2.01", "100000")},
			Bids: []domain.PriceLevel{lvl("1.99", "100000"), lvl("1.98", "100000")},
		},
		"DEEP_SUI": {
			Asks: []domain.PriceLevel{lvl("0.05", "1000000"), lvl("0.051", "1000000")},
			Bids: []domain.PriceLevel{lvl("0.049", "1000000"), lvl("0.048", "1000000")},
		},
		"WAL_USDC": {
			Asks: []domain.PriceLevel{lvl("0.52", "1000000"), lvl("0.53", "1000000")},
			Bids: []domain.PriceLevel{lvl("0.5", "1000000"), lvl("0.49", "1000000")},
		},
	}
}

type fakeVenue struct {
	mu    sync.Mutex
	depth map[string]domain.Depth
}

func (f *fakeVenue) MidPrice(ctx context.Context, pool string) (decimal.Decimal, time.Time, error) {
	d, err := f.Depth(ctx, pool, 1)
	if err != nil {
		return decimal.Zero, time.Time{}, err
	}
	return d.Mid(), d.Timestamp, nil
}

func (f *fakeVenue) Depth(_ context.Context, pool string, _ int) (domain.Depth, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.depth[pool]
	if !ok {
		return domain.Depth{}, domain.ErrNotFound
	}
	return d, nil
}

type staticTable struct{}

func (staticTable) PriceTable(context.Context) (domain.PriceTable, error) {
	return registry.DefaultTable(), nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingNotifier) Notify(_ context.Context, event, _, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

type recordingArchive struct {
	ids []string
}

func (r *recordingArchive) ArchiveBuild(_ context.Context, kind, id string, _ any) error {
	r.ids = append(r.ids, kind+"/"+id)
	return nil
}

type harness struct {
	composer *Composer
	ledger   *simulate.Ledger
	notes    *recordingNotifier
	archive  *recordingArchive
	now      time.Time
	fee      domain.Amount
	walCoin  string
	nsCoin   string
}

type harnessOpts struct {
	depth        map[string]domain.Depth
	feeRecipient string
}

func newHarness(t *testing.T, opts harnessOpts) *harness {
	t.Helper()
	h := &harness{
		notes:   &recordingNotifier{},
		archive: &recordingArchive{},
		now:     time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return h.now }
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if opts.depth == nil {
		opts.depth = books()
	}

	poolCfg := map[string]oracle.PoolConfig{}
	for _, p := range testPools {
		poolCfg[p.Name] = oracle.PoolConfig{ID: p.ID, TTL: 60 * time.Second, FallbackPrice: opts.depth[p.Name].Mid()}
	}
	orc := oracle.New(oracle.Config{Network: domain.NetworkMainnet, Pools: poolCfg},
		&fakeVenue{depth: opts.depth}, memory.NewCache(clock), logger, oracle.WithClock(clock))
	calc := pricing.NewCalculator(pricing.Config{
		Coins:          coins,
		BaseStablePool: "SUI_USDC",
		RewardBasePool: "NS_SUI",
	}, orc, staticTable{}, nil, clock, logger)

	recipient := opts.feeRecipient
	if recipient == "" {
		recipient = feeAddr
	}
	h.composer = New(Config{
		Coins:        coins,
		ExtraCoins:   []domain.Coin{wal, foo},
		Env:          testEnv,
		Pools:        testPools,
		FeeRecipient: recipient,
	}, calc, orc, resolver.New(logger), logger,
		WithClock(clock), WithNotifier(h.notes), WithArchiver(h.archive))

	h.ledger = simulate.NewLedger(simulate.Config{
		Env:          testEnv,
		RewardCoin:   coins.Reward,
		BaseCoin:     coins.Base,
		RegistryFee:  func(string, int) domain.Amount { return h.fee },
		Now:          clock,
		DeepFeePerTx: domain.NewAmount(1_000_000),
	})
	for _, p := range testPools {
		require.NoError(t, h.ledger.AddPool(p, opts.depth[p.Name]))
	}
	var err error
	_, err = h.ledger.Fund(payerAddr, coins.Base, domain.NewAmount(1_000_000_000_000))
	require.NoError(t, err)
	h.walCoin, err = h.ledger.Fund(payerAddr, wal, domain.NewAmount(2_000_000_000_000))
	require.NoError(t, err)
	h.nsCoin, err = h.ledger.Fund(payerAddr, coins.Reward, domain.NewAmount(5_000_000_000))
	require.NoError(t, err)
	return h
}

func (h *harness) supply() map[string]string {
	out := map[string]string{}
	for _, c := range append(coins.All(), wal) {
		out[c.Type] = h.ledger.Supply(c.Type).String()
	}
	return out
}

func (h *harness) execute(t *testing.T, res *BuildResult) simulate.Result {
	t.Helper()
	h.fee = res.Pricing.RewardTokenNeeded
	before := h.supply()
	out, err := h.ledger.Execute(res.Transaction)
	require.NoError(t, err)
	require.Equal(t, before, h.supply(), "supply conserved")
	return out
}

func norm(t *testing.T, s string) string {
	t.Helper()
	a, err := domain.NormalizeAddress(s)
	require.NoError(t, err)
	return a
}

func TestRegisterFromBaseAsset(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	res, err := h.composer.BuildRegisterOrRenewTx(context.Background(), BuildRequest{
		Domain: "abc.sui", Years: 1, Payer: payerAddr,
	})
	require.NoError(t, err)
	require.Len(t, res.Plan.Legs, 1)
	require.NotNil(t, res.Plan.FeeLeg)
	require.Equal(t, res.Pricing.RewardTokenNeeded, res.Plan.Legs[0].MinOut)
	require.Equal(t, norm(t, feeAddr), res.DustRecipient)
	require.NotEmpty(t, res.Digest)
	require.NotEmpty(t, res.TxBytes)

	out := h.execute(t, res)

	reg, ok := h.ledger.Registration("abc.sui")
	require.True(t, ok)
	require.Equal(t, norm(t, payerAddr), reg.Owner)
	require.Equal(t, res.Pricing.RewardTokenNeeded.String(), h.ledger.Treasury(coins.Reward.Type).String())

	spent := new(big.Int).Neg(out.Delta(payerAddr, coins.Base.Type))
	require.Positive(t, spent.Sign())
	require.LessOrEqual(t, spent.Cmp(res.Plan.BaseSpend(coins.Base).Big()), 0)
	require.Less(t, spent.Cmp(res.Pricing.DirectAmount.Big()), 0, "discount path is cheaper than paying directly")
	require.GreaterOrEqual(t, out.Delta(feeAddr, coins.Reward.Type).Sign(), 0)
	require.Zero(t, out.Delta(payerAddr, coins.Reward.Type).Sign(), "no reward-token dust for the payer")
	require.GreaterOrEqual(t, out.Delta(payerAddr, coins.Fee.Type).Sign(), 0)

	require.Contains(t, h.notes.events, domain.EventTxBuilt)
	require.Equal(t, []string{"register/" + res.Digest}, h.archive.ids)
}

func TestRegisterBridgedThroughStable(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	res, err := h.composer.BuildRegisterOrRenewTx(context.Background(), BuildRequest{
		Domain:      "abcd",
		Years:       2,
		Payer:       payerAddr,
		Target:      "0xbe4e",
		SourceAsset: "WAL",
		SourceCoins: []SourceCoin{{ObjectRef: ObjectRef{ID: h.walCoin}}},
	})
	require.NoError(t, err)
	require.Len(t, res.Plan.Legs, 3)
	require.Equal(t, "WAL_USDC", res.Plan.Legs[0].PoolName)
	require.False(t, res.Plan.Legs[0].BuyBase)
	require.Equal(t, "SUI_USDC", res.Plan.Legs[1].PoolName)
	require.Equal(t, "NS_SUI", res.Plan.Legs[2].PoolName)
	for i := 0; i < 2; i++ {
		require.Equal(t, res.Plan.Legs[i+1].AmountIn, res.Plan.Legs[i].MinOut)
	}

	out := h.execute(t, res)
	reg, ok := h.ledger.Registration("abcd.sui")
	require.True(t, ok)
	require.Equal(t, norm(t, "0xbe4e"), reg.Owner)
	require.Equal(t, new(big.Int).Neg(res.Plan.SourceSpend.Big()).String(), out.Delta(payerAddr, wal.Type).String())
	require.GreaterOrEqual(t, out.Delta(payerAddr, coins.Stable.Type).Sign(), 0)
}

func TestRegisterWithRewardTokenSkipsSwaps(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	res, err := h.composer.BuildRegisterOrRenewTx(context.Background(), BuildRequest{
		Domain:      "abcde",
		Years:       1,
		Payer:       payerAddr,
		SourceAsset: "NS",
		SourceCoins: []SourceCoin{{ObjectRef: ObjectRef{ID: h.nsCoin}}},
	})
	require.NoError(t, err)
	require.Empty(t, res.Plan.Legs)
	require.Nil(t, res.Plan.FeeLeg)
	require.Empty(t, res.DustRecipient)
	for _, cmd := range res.Transaction.Commands {
		if cmd.MoveCall != nil {
			require.NotEqual(t, onchain.ModulePool, cmd.MoveCall.Module)
		}
	}

	out := h.execute(t, res)
	require.Equal(t, new(big.Int).Neg(res.Pricing.RewardTokenNeeded.Big()).String(), out.Delta(payerAddr, coins.Reward.Type).String())
}

func TestDustBurnedWhenFeeRecipientIsPayer(t *testing.T) {
	h := newHarness(t, harnessOpts{feeRecipient: payerAddr})
	res, err := h.composer.BuildRegisterOrRenewTx(context.Background(), BuildRequest{
		Domain: "abc", Years: 1, Payer: payerAddr,
	})
	require.NoError(t, err)
	require.Equal(t, domain.BurnAddress, res.DustRecipient)
	h.execute(t, res)
}

func TestRenewSpendsExactPrice(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	ctx := context.Background()
	first, err := h.composer.BuildRegisterOrRenewTx(ctx, BuildRequest{Domain: "abc", Years: 1, Payer: payerAddr})
	require.NoError(t, err)
	h.execute(t, first)
	reg, _ := h.ledger.Registration("abc.sui")

	res, err := h.composer.BuildRegisterOrRenewTx(ctx, BuildRequest{
		Domain: "abc", Years: 2, Payer: payerAddr, RenewNFT: &ObjectRef{ID: reg.ID},
	})
	require.NoError(t, err)
	require.Equal(t, string(domain.PricingRenew), res.Kind)
	require.False(t, res.Pricing.IsInGracePeriod)

	treasury := h.ledger.Treasury(coins.Reward.Type)
	h.execute(t, res)
	require.Equal(t, treasury.Add(res.Pricing.RewardTokenNeeded).String(), h.ledger.Treasury(coins.Reward.Type).String())
	renewed, _ := h.ledger.Registration("abc.sui")
	require.True(t, renewed.Expires.After(reg.Expires))
}

func TestWeakDepthWidensSlippage(t *testing.T) {
	depth := books()
	ns := depth["NS_SUI"]
	ns.Asks = ns.Asks[1:]
	depth["NS_SUI"] = ns
	h := newHarness(t, harnessOpts{depth: depth})

	res, err := h.composer.BuildRegisterOrRenewTx(context.Background(), BuildRequest{Domain: "abc", Years: 1, Payer: payerAddr})
	require.NoError(t, err)
	require.Equal(t, int64(WeakDepthSlippageBps), res.Plan.Legs[0].SlippageBps)
	require.Equal(t, int64(WeakDepthSlippageBps), res.SlippageBps)
	require.NotEmpty(t, res.Warnings)
	h.execute(t, res)
}

func TestThinBookWidensBuffer(t *testing.T) {
	depth := books()
	depth["NS_SUI"] = domain.Depth{
		Asks: []domain.PriceLevel{lvl("0.1", "100"), lvl("0.11", "100")},
		Bids: []domain.PriceLevel{lvl("0.099", "100"), lvl("0.098", "100")},
	}
	h := newHarness(t, harnessOpts{depth: depth})

	res, err := h.composer.BuildRegisterOrRenewTx(context.Background(), BuildRequest{Domain: "abc", Years: 1, Payer: payerAddr})
	require.NoError(t, err)
	leg := res.Plan.Legs[0]
	require.True(t, leg.Quote.Extrapolated)
	require.Equal(t, int64(ThinBookSlippageBps), leg.SlippageBps)
	require.Equal(t, res.Pricing.RewardTokenNeeded, leg.MinOut)

	_, err = h.ledger.Execute(res.Transaction)
	require.ErrorIs(t, err, simulate.ErrAbort, "a book that cannot fill aborts instead of underpaying")
}

func TestEmptyAskSideWidensBuffer(t *testing.T) {
	depth := books()
	ns := depth["NS_SUI"]
	ns.Asks = nil
	depth["NS_SUI"] = ns
	h := newHarness(t, harnessOpts{depth: depth})

	res, err := h.composer.BuildRegisterOrRenewTx(context.Background(), BuildRequest{Domain: "abc", Years: 1, Payer: payerAddr})
	require.NoError(t, err)
	leg := res.Plan.Legs[0]
	require.Equal(t, "NS_SUI", leg.PoolName)
	require.Equal(t, domain.RateSourceLive, leg.Quote.Source)
	require.True(t, leg.Quote.Extrapolated)
	require.Zero(t, leg.Quote.DepthLevels)
	require.Equal(t, int64(ThinBookSlippageBps), leg.SlippageBps)
	require.GreaterOrEqual(t, leg.SlippageBps, int64(3000))
}

func TestInputErrorsRejectedBeforeBuilding(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	ctx := context.Background()
	cases := []struct {
		name string
		req  BuildRequest
		want error
	}{
		{"bad domain", BuildRequest{Domain: "a_b", Years: 1, Payer: payerAddr}, domain.ErrInvalidDomain},
		{"bad years", BuildRequest{Domain: "abc", Years: 6, Payer: payerAddr}, domain.ErrInvalidYears},
		{"bad payer", BuildRequest{Domain: "abc", Years: 1, Payer: "alice"}, domain.ErrInvalidAddress},
		{"slippage high", BuildRequest{Domain: "abc", Years: 1, Payer: payerAddr, SlippageBps: ptrI64(5001)}, domain.ErrInvalidSlippage},
		{"slippage negative", BuildRequest{Domain: "abc", Years: 1, Payer: payerAddr, SlippageBps: ptrI64(-1)}, domain.ErrInvalidSlippage},
		{"unknown asset", BuildRequest{Domain: "abc", Years: 1, Payer: payerAddr, SourceAsset: "XYZ"}, domain.ErrUnknownAsset},
		{"no pool", BuildRequest{Domain: "abc", Years: 1, Payer: payerAddr, SourceAsset: "FOO"}, domain.ErrNoPool},
		{"no coins", BuildRequest{Domain: "abc", Years: 1, Payer: payerAddr, SourceAsset: "WAL"}, domain.ErrInsufficientBalance},
		{"short balance", BuildRequest{Domain: "abc", Years: 1, Payer: payerAddr, SourceAsset: "WAL",
			SourceCoins: []SourceCoin{{ObjectRef: ObjectRef{ID: "0x1"}, Balance: ptrAmount(1)}}}, domain.ErrInsufficientBalance},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.composer.BuildRegisterOrRenewTx(ctx, tc.req)
			require.ErrorIs(t, err, tc.want)
			require.True(t, domain.IsInputError(err))
		})
	}
	require.NotContains(t, h.notes.events, domain.EventBuildFailed)
}

func TestStaleAfterValidUntil(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	res, err := h.composer.BuildRegisterOrRenewTx(context.Background(), BuildRequest{Domain: "abc", Years: 1, Payer: payerAddr})
	require.NoError(t, err)
	require.Equal(t, h.now.Add(60*time.Second), res.ValidUntil)
	require.False(t, res.Stale(h.now))
	require.True(t, res.Stale(res.ValidUntil))
}

func ptrI64(v int64) *int64 { return &v }

func ptrAmount(v int64) *domain.Amount {
	a := domain.NewAmount(v)
	return &a
}
