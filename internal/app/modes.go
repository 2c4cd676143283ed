package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/domain"
	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/simulate"
	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/swap"
	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/vault"
)

// maxSourceCoins caps how many payer coins are looked up for one build.
const maxSourceCoins = 50

// QuoteMode prices a registration or a renewal and writes the result.
func (a *App) QuoteMode(ctx context.Context, deps *Dependencies, kind domain.PricingKind) error {
	res, err := a.price(ctx, deps, kind)
	if err != nil {
		return err
	}
	return a.emit(res)
}

func (a *App) price(ctx context.Context, deps *Dependencies, kind domain.PricingKind) (domain.PricingResult, error) {
	req := domain.PricingRequest{Domain: a.req.Domain, Years: a.req.Years, ExpirationMs: a.req.ExpirationMs}
	if kind == domain.PricingRenew {
		return deps.Calculator.CalculateRenewalPrice(ctx, req)
	}
	return deps.Calculator.CalculateRegistrationPrice(ctx, req)
}

// BuildMode composes the unsigned swap-and-settle transaction.
func (a *App) BuildMode(ctx context.Context, deps *Dependencies) error {
	req, err := a.buildRequest(ctx, deps)
	if err != nil {
		return err
	}
	res, err := deps.Composer.BuildRegisterOrRenewTx(ctx, req)
	if err != nil {
		return err
	}
	return a.emit(res)
}

func (a *App) buildRequest(ctx context.Context, deps *Dependencies) (swap.BuildRequest, error) {
	coins, err := a.sourceCoins(ctx, deps, a.req.Payer)
	if err != nil {
		return swap.BuildRequest{}, err
	}
	return swap.BuildRequest{
		Domain:       a.req.Domain,
		Years:        a.req.Years,
		Payer:        a.req.Payer,
		Target:       a.req.Target,
		SourceAsset:  a.req.SourceAsset,
		SourceCoins:  coins,
		SlippageBps:  a.req.SlippageBps,
		ExpirationMs: a.req.ExpirationMs,
		RenewNFT:     a.req.RenewNFT,
	}, nil
}

// sourceCoins returns the coins given on the request, or looks up the
// owner's coins of the source asset. The base asset is paid from gas.
func (a *App) sourceCoins(ctx context.Context, deps *Dependencies, owner string) ([]swap.SourceCoin, error) {
	if len(a.req.SourceCoins) > 0 || a.req.SourceAsset == "" || owner == "" {
		return a.req.SourceCoins, nil
	}
	coin, err := deps.Composer.Lookup(a.req.SourceAsset)
	if err != nil {
		return nil, err
	}
	if coin.Type == deps.Coins.Base.Type {
		return nil, nil
	}
	objs, err := deps.Sui.GetCoins(ctx, owner, coin.Type, maxSourceCoins)
	if err != nil {
		return nil, fmt.Errorf("app: source coins: %w", err)
	}
	out := make([]swap.SourceCoin, 0, len(objs))
	for _, o := range objs {
		bal := o.Balance
		out = append(out, swap.SourceCoin{
			ObjectRef: swap.ObjectRef{ID: o.CoinObjectID, Version: o.Version, Digest: o.Digest},
			Balance:   &bal,
		})
	}
	a.logger.DebugContext(ctx, "source coins loaded",
		slog.String("asset", coin.Symbol),
		slog.Int("count", len(out)),
	)
	return out, nil
}

// DryRunResult is a build executed against a simulated chain seeded from
// live pool depth.
type DryRunResult struct {
	Build      *swap.BuildResult            `json:"build"`
	Deltas     map[string]map[string]string `json:"deltas"`
	Registered []string                     `json:"registered"`
	Skipped    []string                     `json:"skipped_pools,omitempty"`
}

// DryRunMode builds the transaction for a funded simulated payer and runs it.
func (a *App) DryRunMode(ctx context.Context, deps *Dependencies) error {
	if a.req.RenewNFT != nil {
		return errors.New("app: dryrun: renewals need a registration on the simulated chain")
	}
	payer := a.req.Payer
	if payer == "" {
		payer = "0xd4e"
	}

	price, err := a.price(ctx, deps, domain.PricingRegister)
	if err != nil {
		return err
	}
	source := deps.Coins.Base
	if a.req.SourceAsset != "" {
		if source, err = deps.Composer.Lookup(a.req.SourceAsset); err != nil {
			return err
		}
	}
	slippage, err := deps.Composer.ResolveSlippage(a.req.SlippageBps)
	if err != nil {
		return err
	}
	plan, err := deps.Composer.PlanAcquisition(ctx, source, price.RewardTokenNeeded, slippage)
	if err != nil {
		return err
	}

	var fee domain.Amount
	ledger := simulate.NewLedger(simulate.Config{
		Env:         deps.Env,
		RewardCoin:  deps.Coins.Reward,
		BaseCoin:    deps.Coins.Base,
		RegistryFee: func(string, int) domain.Amount { return fee },
		Now:         deps.Clock,
	})
	var skipped []string
	for _, p := range deps.Pools {
		rate, err := deps.Oracle.GetDepth(ctx, p.Name)
		if err != nil || rate.Depth == nil {
			skipped = append(skipped, p.Name)
			continue
		}
		if err := ledger.AddPool(p, *rate.Depth); err != nil {
			return fmt.Errorf("app: dryrun: seed %s: %w", p.Name, err)
		}
	}

	fund := plan.SourceSpend.Add(plan.SourceSpend)
	if a.req.Fund != nil {
		fund = *a.req.Fund
	}
	gas := plan.BaseSpend(deps.Coins.Base)
	gas = gas.Add(gas).Add(domain.NewAmount(int64(deps.Composer.GasBudget())))
	if _, err := ledger.Fund(payer, deps.Coins.Base, gas); err != nil {
		return fmt.Errorf("app: dryrun: fund gas: %w", err)
	}
	var coins []swap.SourceCoin
	if source.Type != deps.Coins.Base.Type {
		id, err := ledger.Fund(payer, source, fund)
		if err != nil {
			return fmt.Errorf("app: dryrun: fund %s: %w", source.Symbol, err)
		}
		coins = []swap.SourceCoin{{ObjectRef: swap.ObjectRef{ID: id}, Balance: &fund}}
	}

	build, err := deps.Composer.BuildRegisterOrRenewTx(ctx, swap.BuildRequest{
		Domain:       a.req.Domain,
		Years:        a.req.Years,
		Payer:        payer,
		Target:       a.req.Target,
		SourceAsset:  a.req.SourceAsset,
		SourceCoins:  coins,
		SlippageBps:  a.req.SlippageBps,
		ExpirationMs: a.req.ExpirationMs,
	})
	if err != nil {
		return err
	}
	fee = build.Pricing.RewardTokenNeeded

	out, err := ledger.Execute(build.Transaction)
	if err != nil {
		return fmt.Errorf("app: dryrun: %w", err)
	}
	deltas := make(map[string]map[string]string, len(out.Deltas))
	for owner, m := range out.Deltas {
		deltas[owner] = make(map[string]string, len(m))
		for typ, v := range m {
			deltas[owner][typ] = v.String()
		}
	}
	return a.emit(DryRunResult{Build: build, Deltas: deltas, Registered: out.Registered, Skipped: skipped})
}

// VaultCreateMode escrows a registration budget for later execution.
func (a *App) VaultCreateMode(ctx context.Context, deps *Dependencies) error {
	coins, err := a.sourceCoins(ctx, deps, a.req.Payer)
	if err != nil {
		return err
	}
	res, err := deps.Vaults.CreateVault(ctx, vault.CreateRequest{
		Domain:       a.req.Domain,
		Years:        a.req.Years,
		Owner:        a.req.Payer,
		Beneficiary:  a.req.Beneficiary,
		FeeRecipient: a.req.FeeRecipient,
		SourceAsset:  a.req.SourceAsset,
		SourceCoins:  coins,
		SlippageBps:  a.req.SlippageBps,
		Budget:       a.req.Budget,
		Reward:       a.req.Reward,
		Fee:          a.req.Fee,
		ExpiresAt:    a.req.ExpiresAt,
		ExpirationMs: a.req.ExpirationMs,
		Renew:        a.req.Renew,
	})
	if err != nil {
		return err
	}
	return a.emit(res)
}

// VaultExecuteMode builds the execution transaction. When an object id is
// given the local record is first bound to it.
func (a *App) VaultExecuteMode(ctx context.Context, deps *Dependencies) error {
	if err := a.confirmObject(ctx, deps); err != nil {
		return err
	}
	res, err := deps.Vaults.ExecuteVault(ctx, a.req.VaultID, a.req.Payer)
	if err != nil {
		return err
	}
	return a.emit(res)
}

// VaultCancelMode builds the owner's refund transaction.
func (a *App) VaultCancelMode(ctx context.Context, deps *Dependencies) error {
	if err := a.confirmObject(ctx, deps); err != nil {
		return err
	}
	res, err := deps.Vaults.CancelVault(ctx, a.req.VaultID, a.req.Payer)
	if err != nil {
		return err
	}
	return a.emit(res)
}

func (a *App) confirmObject(ctx context.Context, deps *Dependencies) error {
	if a.req.ObjectID == "" {
		return nil
	}
	isv := a.req.SharedVer
	if isv == 0 {
		obj, err := deps.Sui.GetObject(ctx, a.req.ObjectID)
		if err != nil {
			return fmt.Errorf("app: vault object: %w", err)
		}
		v, ok := obj.SharedVersion()
		if !ok {
			return fmt.Errorf("app: vault object %s is not shared", a.req.ObjectID)
		}
		isv = v
	}
	_, err := deps.Vaults.ConfirmCreated(ctx, a.req.VaultID, a.req.ObjectID, isv)
	return err
}

// WatchMode keeps pool rates warm, publishes them on the signal bus and
// expires vaults past their deadline until ctx is cancelled.
func (a *App) WatchMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting watch mode")

	interval := a.req.Interval
	if interval <= 0 {
		interval = a.cfg.Oracle.DefaultTTL.Duration / 2
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	channel := a.cfg.Oracle.SignalChannel

	updates, err := deps.SignalBus.Subscribe(ctx, channel)
	if err != nil {
		return fmt.Errorf("app: watch: subscribe: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return every(ctx, interval, func() { a.publishRates(ctx, deps, channel) })
	})

	g.Go(func() error {
		expireEvery := a.cfg.Vault.ExpireInterval.Duration
		if expireEvery <= 0 {
			expireEvery = time.Minute
		}
		return every(ctx, expireEvery, func() {
			if _, err := deps.Vaults.ExpireDue(ctx); err != nil {
				a.logger.WarnContext(ctx, "vault expiry sweep failed", slog.String("error", err.Error()))
			}
			if deps.memCache != nil {
				deps.memCache.Sweep()
			}
		})
	})

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case msg, ok := <-updates:
				if !ok {
					return nil
				}
				var r domain.Rate
				if err := json.Unmarshal(msg, &r); err != nil {
					a.logger.WarnContext(ctx, "bad rate update", slog.String("error", err.Error()))
					continue
				}
				a.logger.DebugContext(ctx, "rate update",
					slog.String("pair", r.Pair),
					slog.String("forward", r.Forward.String()),
					slog.String("source", string(r.Source)),
				)
			}
		}
	})

	return g.Wait()
}

func (a *App) publishRates(ctx context.Context, deps *Dependencies, channel string) {
	var failed []string
	for _, p := range deps.Pools {
		rate, err := deps.Oracle.GetRate(ctx, p.Name)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			failed = append(failed, p.Name)
			continue
		}
		rate.Depth = nil
		payload, err := json.Marshal(rate)
		if err != nil {
			continue
		}
		if err := deps.SignalBus.Publish(ctx, channel, payload); err != nil {
			a.logger.WarnContext(ctx, "publish rate failed",
				slog.String("pair", p.Name),
				slog.String("error", err.Error()),
			)
		}
	}
	if len(failed) > 0 {
		a.logger.WarnContext(ctx, "rate refresh failed", slog.String("pools", strings.Join(failed, ",")))
	}
}

// every runs fn now and then on each tick until ctx is done.
func every(ctx context.Context, d time.Duration, fn func()) error {
	fn()
	ticker := time.NewTicker(d)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			fn()
		}
	}
}
