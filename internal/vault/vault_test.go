package vault

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/cache/memory"
	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/domain"
	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/onchain"
	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/resolver"
	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/simulate"
	store "github.com/arbuthnot-eth/Sui-ski-sub000/internal/store/memory"
	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/swap"
)

var (
	coins = domain.CoinSet{
		Base:   domain.Coin{Symbol: "SUI", Type: "0x2::sui::SUI", Decimals: 9},
		Reward: domain.Coin{Symbol: "NS", Type: "0x5145::ns::NS", Decimals: 6},
		Stable: domain.Coin{Symbol: "USDC", Type: "0xdba3::usdc::USDC", Decimals: 6},
		Fee:    domain.Coin{Symbol: "DEEP", Type: "0xdeeb::deep::DEEP", Decimals: 6},
	}

	ownerAddr    = "0xa11ce"
	executorAddr = "0xe1ec"
	beneficiary  = "0xbe4e"
	feeAddr      = "0xfee"

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

	// 1000 NS, the registry price of every name in these tests.
	price = domain.NewAmount(1_000_000_000)
)

type fixedPricer struct{}

func (fixedPricer) CalculateRegistrationPrice(_ context.Context, req domain.PricingRequest) (domain.PricingResult, error) {
	return domain.PricingResult{Kind: domain.PricingRegister, Domain: req.Domain, Years: req.Years, RewardTokenNeeded: price}, nil
}

func (fixedPricer) CalculateRenewalPrice(_ context.Context, req domain.PricingRequest) (domain.PricingResult, error) {
	return domain.PricingResult{Kind: domain.PricingRenew, Domain: req.Domain, Years: req.Years, RewardTokenNeeded: price}, nil
}

type recordingNotifier struct{ events []string }

func (r *recordingNotifier) Notify(_ context.Context, event, _, _ string) error {
	r.events = append(r.events, event)
	return nil
}

type harness struct {
	svc    *Service
	ledger *simulate.Ledger
	locks  *memory.LockManager
	audit  *store.AuditStore
	notes  *recordingNotifier
	now    time.Time
	nsCoin string
}

func newHarness(t *testing.T, feeRecipient string) *harness {
	t.Helper()
	h := &harness{notes: &recordingNotifier{}, now: time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return h.now }
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	composer := swap.New(swap.Config{
		Coins:        coins,
		Env:          testEnv,
		FeeRecipient: feeRecipient,
	}, fixedPricer{}, nil, resolver.New(logger), logger, swap.WithClock(clock))
	h.locks = memory.NewLockManager(clock)
	h.audit = store.NewAuditStore(clock)
	h.svc = New(Config{}, composer, fixedPricer{}, store.NewVaultStore(), h.locks, logger,
		WithClock(clock), WithAuditStore(h.audit), WithNotifier(h.notes))

	h.ledger = simulate.NewLedger(simulate.Config{
		Env:         testEnv,
		RewardCoin:  coins.Reward,
		BaseCoin:    coins.Base,
		RegistryFee: func(string, int) domain.Amount { return price },
		Now:         clock,
	})
	var err error
	_, err = h.ledger.Fund(ownerAddr, coins.Base, domain.NewAmount(10_000_000_000))
	require.NoError(t, err)
	h.nsCoin, err = h.ledger.Fund(ownerAddr, coins.Reward, domain.NewAmount(5_000_000_000))
	require.NoError(t, err)
	return h
}

func amount(n int64) *domain.Amount {
	a := domain.NewAmount(n)
	return &a
}

func norm(t *testing.T, s string) string {
	t.Helper()
	a, err := domain.NormalizeAddress(s)
	require.NoError(t, err)
	return a
}

func (h *harness) request(name string) CreateRequest {
	return CreateRequest{
		Domain:      name,
		Years:       1,
		Owner:       ownerAddr,
		Beneficiary: beneficiary,
		SourceAsset: "NS",
		SourceCoins: []swap.SourceCoin{{ObjectRef: swap.ObjectRef{ID: h.nsCoin}, Balance: amount(2_000_000_000)}},
	}
}

// create builds a vault, lands it on the ledger and confirms the object.
func (h *harness) create(t *testing.T, req CreateRequest) domain.VaultRecord {
	t.Helper()
	ctx := context.Background()
	res, err := h.svc.CreateVault(ctx, req)
	require.NoError(t, err)

	out, err := h.ledger.Execute(res.Build.Transaction)
	require.NoError(t, err)
	require.Len(t, out.Vaults, 1)

	rec, err := h.svc.ConfirmCreated(ctx, res.Vault.ID, out.Vaults[0], 1)
	require.NoError(t, err)
	return rec
}

func TestVaultLifecycle(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, feeAddr)

	req := h.request("abcdef")
	req.Budget = amount(1_000_000_000)
	req.Reward = amount(50_000_000)
	req.Fee = amount(10_000_000)
	rec := h.create(t, req)
	require.Equal(t, "abcdef.sui", rec.Domain)
	require.Equal(t, "1060000000", rec.TotalEscrowed().String())
	require.Equal(t, norm(t, feeAddr), rec.FeeRecipient)
	require.Equal(t, "3940000000", h.ledger.Balance(ownerAddr, coins.Reward.Type).String())

	build, err := h.svc.ExecuteVault(ctx, rec.ID, executorAddr)
	require.NoError(t, err)
	require.Equal(t, KindExecute, build.Kind)

	out, err := h.ledger.Execute(build.Transaction)
	require.NoError(t, err)
	require.Equal(t, "50000000", out.Delta(executorAddr, coins.Reward.Type).String())
	require.Equal(t, "10000000", out.Delta(feeAddr, coins.Reward.Type).String())
	require.Equal(t, price.String(), h.ledger.Treasury(coins.Reward.Type).String())

	nft, ok := h.ledger.Registration("abcdef.sui")
	require.True(t, ok)
	require.Equal(t, norm(t, beneficiary), nft.Owner)

	done, err := h.svc.ConfirmExecuted(ctx, rec.ID, norm(t, executorAddr), build.Digest)
	require.NoError(t, err)
	require.Equal(t, domain.VaultStatusExecuted, done.Status)

	_, err = h.svc.ExecuteVault(ctx, rec.ID, executorAddr)
	require.ErrorIs(t, err, domain.ErrVaultTerminal)
	_, err = h.ledger.Execute(build.Transaction)
	require.ErrorIs(t, err, simulate.ErrAbort)
	_, err = h.svc.ConfirmExecuted(ctx, rec.ID, executorAddr, build.Digest)
	require.ErrorIs(t, err, domain.ErrVaultTerminal)

	require.Equal(t, []string{domain.EventVaultCreated, domain.EventVaultExecuted}, h.notes.events)
	entries, err := h.audit.List(ctx, domain.ListOpts{})
	require.NoError(t, err)
	require.Equal(t, domain.EventVaultExecuted, entries[0].Event)
}

func TestCreateDefaults(t *testing.T) {
	h := newHarness(t, feeAddr)
	req := h.request("abcdef")
	req.Beneficiary = ""
	res, err := h.svc.CreateVault(context.Background(), req)
	require.NoError(t, err)

	v := res.Vault
	require.Equal(t, price.String(), v.RegistrationBudget.String())
	require.Equal(t, "50000000", v.ExecutorReward.String())
	require.Equal(t, "10000000", v.ProtocolFee.String())
	require.Equal(t, norm(t, ownerAddr), v.Beneficiary)
	require.Equal(t, h.now.Add(DefaultTTL), v.ExpiresAt)
	require.Equal(t, domain.VaultStatusCreated, v.Status)
	require.Equal(t, res.Build.Digest, v.TxDigest)
	require.Empty(t, res.Build.Plan.Legs)
}

func TestCreateWithoutFeeRecipientDropsFee(t *testing.T) {
	h := newHarness(t, "")
	res, err := h.svc.CreateVault(context.Background(), h.request("abcdef"))
	require.NoError(t, err)
	require.True(t, res.Vault.ProtocolFee.IsZero())
	require.Equal(t, norm(t, ownerAddr), res.Vault.FeeRecipient)
	require.NotEmpty(t, res.Build.Warnings)
}

func TestCreateRejectsBadInput(t *testing.T) {
	h := newHarness(t, feeAddr)
	ctx := context.Background()

	renew := h.request("abcdef")
	renew.Renew = true
	_, err := h.svc.CreateVault(ctx, renew)
	require.ErrorIs(t, err, domain.ErrVaultRenewalUnsupported)

	low := h.request("abcdef")
	low.Budget = amount(999_999_999)
	_, err = h.svc.CreateVault(ctx, low)
	require.ErrorIs(t, err, domain.ErrInvalidAmount)

	past := h.request("abcdef")
	past.ExpiresAt = h.now.Add(-time.Minute)
	_, err = h.svc.CreateVault(ctx, past)
	require.ErrorIs(t, err, domain.ErrInvalidExpiry)

	poor := h.request("abcdef")
	poor.SourceCoins[0].Balance = amount(1_000_000_000)
	_, err = h.svc.CreateVault(ctx, poor)
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)

	_, err = h.svc.CreateVault(ctx, h.request("a"))
	require.Error(t, err)
}

func TestExecuteRequiresLockAndConfirmation(t *testing.T) {
	h := newHarness(t, feeAddr)
	ctx := context.Background()

	res, err := h.svc.CreateVault(ctx, h.request("abcdef"))
	require.NoError(t, err)
	_, err = h.svc.ExecuteVault(ctx, res.Vault.ID, executorAddr)
	require.ErrorIs(t, err, domain.ErrNotFound)

	rec := h.create(t, h.request("ghijkl"))
	unlock, err := h.locks.Acquire(ctx, "vault:"+rec.ID, time.Minute)
	require.NoError(t, err)
	_, err = h.svc.ExecuteVault(ctx, rec.ID, executorAddr)
	require.ErrorIs(t, err, domain.ErrLockHeld)
	unlock()

	_, err = h.svc.ExecuteVault(ctx, rec.ID, executorAddr)
	require.NoError(t, err)
}

func TestCancel(t *testing.T) {
	h := newHarness(t, feeAddr)
	ctx := context.Background()
	rec := h.create(t, h.request("abcdef"))

	_, err := h.svc.CancelVault(ctx, rec.ID, executorAddr)
	require.ErrorIs(t, err, domain.ErrVaultNotOwner)

	build, err := h.svc.CancelVault(ctx, rec.ID, ownerAddr)
	require.NoError(t, err)
	out, err := h.ledger.Execute(build.Transaction)
	require.NoError(t, err)
	require.Equal(t, rec.TotalEscrowed().String(), out.Delta(ownerAddr, coins.Reward.Type).String())

	v, err := h.svc.ConfirmCancelled(ctx, rec.ID, build.Digest)
	require.NoError(t, err)
	require.Equal(t, domain.VaultStatusCancelled, v.Status)

	_, err = h.svc.ExecuteVault(ctx, rec.ID, executorAddr)
	require.ErrorIs(t, err, domain.ErrVaultTerminal)
	_, err = h.svc.CancelVault(ctx, rec.ID, ownerAddr)
	require.ErrorIs(t, err, domain.ErrVaultTerminal)
}

func TestExpireDue(t *testing.T) {
	h := newHarness(t, feeAddr)
	ctx := context.Background()

	short := h.request("abcdef")
	short.ExpiresAt = h.now.Add(time.Hour)
	soon := h.create(t, short)
	later := h.create(t, h.request("ghijkl"))

	h.now = h.now.Add(30 * time.Minute)
	n, err := h.svc.ExpireDue(ctx)
	require.NoError(t, err)
	require.Zero(t, n)

	h.now = h.now.Add(time.Hour)
	_, err = h.svc.ExecuteVault(ctx, soon.ID, executorAddr)
	require.ErrorIs(t, err, domain.ErrVaultExpired)

	n, err = h.svc.ExpireDue(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	v, err := h.svc.Get(ctx, soon.ID)
	require.NoError(t, err)
	require.Equal(t, domain.VaultStatusExpired, v.Status)
	_, err = h.svc.ExecuteVault(ctx, soon.ID, executorAddr)
	require.ErrorIs(t, err, domain.ErrVaultTerminal)

	refund, err := h.svc.CancelVault(ctx, soon.ID, ownerAddr)
	require.NoError(t, err)
	_, err = h.ledger.Execute(refund.Transaction)
	require.NoError(t, err)
	v, err = h.svc.ConfirmCancelled(ctx, soon.ID, refund.Digest)
	require.NoError(t, err)
	require.Equal(t, domain.VaultStatusExpired, v.Status)

	v, err = h.svc.Get(ctx, later.ID)
	require.NoError(t, err)
	require.Equal(t, domain.VaultStatusCreated, v.Status)
}
