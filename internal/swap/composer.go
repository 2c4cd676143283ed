// Package swap composes the single transaction that converts a payer's coins
// into the reward token and spends exactly the registry price on a
// registration or renewal, returning every leftover.
package swap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/domain"
	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/onchain"
	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/oracle"
	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/pricing"
	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/ptb"
)

const (
	DefaultSlippageBps    = 100
	MaxSlippageBps        = 5000
	WeakDepthSlippageBps  = 1500
	ThinBookSlippageBps   = 3000
	DefaultMinDepthLevels = 2
	DefaultFeeFractionBps = 50
	DefaultGasBudget      = 50_000_000
)

// Pricer quotes registrations and renewals.
type Pricer interface {
	CalculateRegistrationPrice(ctx context.Context, req domain.PricingRequest) (domain.PricingResult, error)
	CalculateRenewalPrice(ctx context.Context, req domain.PricingRequest) (domain.PricingResult, error)
}

// Quoter sizes swaps against pool depth.
type Quoter interface {
	GetRate(ctx context.Context, pair string) (domain.Rate, error)
	SimulateBuy(ctx context.Context, req oracle.BuyRequest) (domain.Quote, error)
	TTL(pair string) time.Duration
}

// Resolver turns the fee recipient setting into an address.
type Resolver interface {
	Resolve(ctx context.Context, nameOrAddress string) (string, error)
}

// Archiver stores build snapshots.
type Archiver interface {
	ArchiveBuild(ctx context.Context, kind, id string, v any) error
}

// Config holds composer settings.
type Config struct {
	Coins        domain.CoinSet
	ExtraCoins   []domain.Coin
	Env          onchain.Env
	Pools        []onchain.Pool
	FeeRecipient string
	GasBudget    uint64

	DefaultSlippageBps   int64
	WeakDepthSlippageBps int64
	ThinBookSlippageBps  int64
	MinDepthLevels       int
	FeeFractionBps       int64
}

func (c *Config) applyDefaults() {
	if c.GasBudget == 0 {
		c.GasBudget = DefaultGasBudget
	}
	if c.DefaultSlippageBps == 0 {
		c.DefaultSlippageBps = DefaultSlippageBps
	}
	if c.WeakDepthSlippageBps == 0 {
		c.WeakDepthSlippageBps = WeakDepthSlippageBps
	}
	if c.ThinBookSlippageBps == 0 {
		c.ThinBookSlippageBps = ThinBookSlippageBps
	}
	if c.MinDepthLevels == 0 {
		c.MinDepthLevels = DefaultMinDepthLevels
	}
	if c.FeeFractionBps == 0 {
		c.FeeFractionBps = DefaultFeeFractionBps
	}
}

// Composer builds swap-and-settle transactions.
type Composer struct {
	cfg      Config
	pricer   Pricer
	quoter   Quoter
	resolver Resolver
	audit    domain.AuditStore
	archive  Archiver
	notifier domain.Notifier
	now      domain.Clock
	logger   *slog.Logger
}

// Option customises a Composer.
type Option func(*Composer)

func WithAuditStore(a domain.AuditStore) Option { return func(c *Composer) { c.audit = a } }

func WithArchiver(a Archiver) Option { return func(c *Composer) { c.archive = a } }

func WithNotifier(n domain.Notifier) Option { return func(c *Composer) { c.notifier = n } }

func WithClock(now domain.Clock) Option { return func(c *Composer) { c.now = now } }

// New creates a Composer.
func New(cfg Config, pricer Pricer, quoter Quoter, resolver Resolver, logger *slog.Logger, opts ...Option) *Composer {
	cfg.applyDefaults()
	c := &Composer{
		cfg:      cfg,
		pricer:   pricer,
		quoter:   quoter,
		resolver: resolver,
		audit:    domain.NopAuditStore{},
		notifier: domain.NopNotifier{},
		now:      time.Now,
		logger:   logger.With(slog.String("component", "swap")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Composer) Env() onchain.Env      { return c.cfg.Env }
func (c *Composer) Coins() domain.CoinSet { return c.cfg.Coins }
func (c *Composer) GasBudget() uint64     { return c.cfg.GasBudget }
func (c *Composer) Pools() []onchain.Pool { return c.cfg.Pools }

// Lookup resolves a source asset symbol or type. Empty means the base asset.
func (c *Composer) Lookup(asset string) (domain.Coin, error) {
	if asset == "" {
		return c.cfg.Coins.Base, nil
	}
	return c.cfg.Coins.Lookup(asset, c.cfg.ExtraCoins)
}

// ResolveSlippage applies the default and checks the caller's bound.
func (c *Composer) ResolveSlippage(bps *int64) (int64, error) {
	if bps == nil {
		return c.cfg.DefaultSlippageBps, nil
	}
	if *bps < 0 || *bps > MaxSlippageBps {
		return 0, fmt.Errorf("%w: %d bps, want 0-%d", domain.ErrInvalidSlippage, *bps, MaxSlippageBps)
	}
	return *bps, nil
}

// BuildRequest asks for a registration, or a renewal when RenewNFT is set.
type BuildRequest struct {
	Domain       string       `json:"domain"`
	Years        int          `json:"years"`
	Payer        string       `json:"payer"`
	Target       string       `json:"target,omitempty"`
	SourceAsset  string       `json:"source_asset,omitempty"`
	SourceCoins  []SourceCoin `json:"source_coins,omitempty"`
	SlippageBps  *int64       `json:"slippage_bps,omitempty"`
	ExpirationMs *int64       `json:"expiration_ms,omitempty"`
	RenewNFT     *ObjectRef   `json:"renew_nft,omitempty"`
}

// BuildResult is an unsigned transaction with everything it was built from.
type BuildResult struct {
	Kind          string                `json:"kind"`
	Domain        string                `json:"domain,omitempty"`
	Years         int                   `json:"years,omitempty"`
	Payer         string                `json:"payer"`
	Target        string                `json:"target,omitempty"`
	Transaction   *ptb.Transaction      `json:"transaction"`
	TxBytes       string                `json:"tx_bytes"`
	Digest        string                `json:"digest"`
	Pricing       *domain.PricingResult `json:"pricing,omitempty"`
	Plan          *Plan                 `json:"plan,omitempty"`
	DustRecipient string                `json:"dust_recipient,omitempty"`
	Warnings      []string              `json:"warnings,omitempty"`
	SlippageBps   int64                 `json:"slippage_bps"`
	QuotedAt      time.Time             `json:"quoted_at"`
	ValidUntil    time.Time             `json:"valid_until"`
}

// Stale reports whether the quotes behind the build have expired. Callers
// must rebuild a stale result before signing it.
func (r *BuildResult) Stale(now time.Time) bool {
	return !now.Before(r.ValidUntil)
}

// BuildRegisterOrRenewTx composes the swap-and-settle transaction.
func (c *Composer) BuildRegisterOrRenewTx(ctx context.Context, req BuildRequest) (*BuildResult, error) {
	kind := domain.PricingRegister
	if req.RenewNFT != nil {
		kind = domain.PricingRenew
	}
	res, err := c.build(ctx, kind, req)
	if err != nil {
		return nil, c.Fail(ctx, string(kind), req.Domain, err)
	}
	return res, nil
}

func (c *Composer) build(ctx context.Context, kind domain.PricingKind, req BuildRequest) (*BuildResult, error) {
	label, err := pricing.NormalizeLabel(req.Domain)
	if err != nil {
		return nil, err
	}
	if err := pricing.ValidateYears(req.Years); err != nil {
		return nil, err
	}
	payer, err := domain.NormalizeAddress(req.Payer)
	if err != nil {
		return nil, fmt.Errorf("payer: %w", err)
	}
	target := payer
	if req.Target != "" {
		if target, err = domain.NormalizeAddress(req.Target); err != nil {
			return nil, fmt.Errorf("target: %w", err)
		}
	}
	if kind == domain.PricingRenew && !domain.IsAddress(req.RenewNFT.ID) {
		return nil, fmt.Errorf("renew nft: %w: %q", domain.ErrInvalidAddress, req.RenewNFT.ID)
	}
	slippage, err := c.ResolveSlippage(req.SlippageBps)
	if err != nil {
		return nil, err
	}
	source, err := c.Lookup(req.SourceAsset)
	if err != nil {
		return nil, err
	}
	if _, err := c.route(source); err != nil {
		return nil, err
	}

	preq := domain.PricingRequest{Domain: label, Years: req.Years, ExpirationMs: req.ExpirationMs}
	var price domain.PricingResult
	if kind == domain.PricingRenew {
		price, err = c.pricer.CalculateRenewalPrice(ctx, preq)
	} else {
		price, err = c.pricer.CalculateRegistrationPrice(ctx, preq)
	}
	if err != nil {
		return nil, err
	}

	plan, err := c.PlanAcquisition(ctx, source, price.RewardTokenNeeded, slippage)
	if err != nil {
		return nil, err
	}
	if err := c.CheckFunds(plan, req.SourceCoins); err != nil {
		return nil, err
	}

	b := ptb.NewBuilder(payer, c.cfg.GasBudget)
	funds, err := c.Emit(b, plan, req.SourceCoins)
	if err != nil {
		return nil, err
	}
	env := c.cfg.Env
	name := pricing.FullName(label)
	if kind == domain.PricingRenew {
		env.Renew(b, b.OwnedObject(req.RenewNFT.ID, req.RenewNFT.Version, req.RenewNFT.Digest), req.Years, funds.Payment)
	} else {
		nft := env.Register(b, name, req.Years, funds.Payment)
		b.TransferObjects(target, nft)
	}

	res := &BuildResult{
		Kind:        string(kind),
		Domain:      name,
		Years:       req.Years,
		Payer:       payer,
		Target:      target,
		Pricing:     &price,
		Plan:        plan,
		Warnings:    append([]string(nil), plan.Warnings...),
		SlippageBps: plan.SlippageBps,
		QuotedAt:    plan.QuotedAt,
		ValidUntil:  plan.ValidUntil,
	}
	if kind == domain.PricingRenew {
		res.Target = ""
	}
	if funds.Dust != nil {
		recipient, warning := c.DustRecipient(ctx, payer)
		if warning != "" {
			res.Warnings = append(res.Warnings, warning)
		}
		res.DustRecipient = recipient
		b.TransferObjects(recipient, *funds.Dust)
	}
	b.TransferObjects(payer, funds.Sweep...)

	if err := c.Seal(ctx, b, res); err != nil {
		return nil, err
	}
	return res, nil
}

// DustRecipient is where reward-token dust goes: the resolved fee recipient,
// or the burn address when that is the payer. An unset or unresolvable fee
// recipient returns the dust to the payer with a warning.
func (c *Composer) DustRecipient(ctx context.Context, payer string) (string, string) {
	if c.cfg.FeeRecipient == "" || c.resolver == nil {
		return payer, "no fee recipient configured, reward-token dust returned to payer"
	}
	addr, err := c.FeeRecipient(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "fee recipient unresolved",
			slog.String("fee_recipient", c.cfg.FeeRecipient),
			slog.String("error", err.Error()),
		)
		return payer, fmt.Sprintf("fee recipient %q unresolved, reward-token dust returned to payer", c.cfg.FeeRecipient)
	}
	if addr == payer {
		return domain.BurnAddress, ""
	}
	return addr, ""
}

// FeeRecipient resolves the configured fee recipient to an address.
func (c *Composer) FeeRecipient(ctx context.Context) (string, error) {
	if c.cfg.FeeRecipient == "" || c.resolver == nil {
		return "", fmt.Errorf("swap: fee recipient: %w", domain.ErrNotFound)
	}
	return c.resolver.Resolve(ctx, c.cfg.FeeRecipient)
}
