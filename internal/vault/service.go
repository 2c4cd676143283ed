// Package vault runs delegated settlement: an owner escrows the registration
// budget plus an executor reward and a protocol fee, and any executor later
// spends it on the registration in one atomic transaction.
package vault

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/domain"
	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/onchain"
	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/pricing"
	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/ptb"
	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/quotemath"
	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/swap"
)

const (
	KindCreate  = "vault_create"
	KindExecute = "vault_execute"
	KindCancel  = "vault_cancel"

	DefaultRewardBps = 500
	DefaultFeeBps    = 100
	DefaultTTL       = 7 * 24 * time.Hour
	DefaultLockTTL   = 30 * time.Second
)

// Config holds vault defaults.
type Config struct {
	// RewardBps and FeeBps size the executor reward and the protocol fee as
	// a fraction of the registration budget when the request omits them.
	RewardBps  int64
	FeeBps     int64
	DefaultTTL time.Duration
	LockTTL    time.Duration
}

func (c *Config) applyDefaults() {
	if c.RewardBps == 0 {
		c.RewardBps = DefaultRewardBps
	}
	if c.FeeBps == 0 {
		c.FeeBps = DefaultFeeBps
	}
	if c.DefaultTTL == 0 {
		c.DefaultTTL = DefaultTTL
	}
	if c.LockTTL == 0 {
		c.LockTTL = DefaultLockTTL
	}
}

// Service builds vault transactions and keeps the local vault records.
type Service struct {
	cfg      Config
	composer *swap.Composer
	pricer   swap.Pricer
	store    domain.VaultStore
	locks    domain.LockManager
	audit    domain.AuditStore
	notifier domain.Notifier
	now      domain.Clock
	logger   *slog.Logger
}

// Option customises a Service.
type Option func(*Service)

func WithAuditStore(a domain.AuditStore) Option { return func(s *Service) { s.audit = a } }

func WithNotifier(n domain.Notifier) Option { return func(s *Service) { s.notifier = n } }

func WithClock(now domain.Clock) Option { return func(s *Service) { s.now = now } }

// New creates a Service. The composer supplies routing, funding and sealing.
func New(cfg Config, composer *swap.Composer, pricer swap.Pricer, store domain.VaultStore,
	locks domain.LockManager, logger *slog.Logger, opts ...Option) *Service {
	cfg.applyDefaults()
	s := &Service{
		cfg:      cfg,
		composer: composer,
		pricer:   pricer,
		store:    store,
		locks:    locks,
		audit:    domain.NopAuditStore{},
		notifier: domain.NopNotifier{},
		now:      time.Now,
		logger:   logger.With(slog.String("component", "vault")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateRequest asks for a new escrow. Nil amounts take their defaults.
type CreateRequest struct {
	Domain       string            `json:"domain"`
	Years        int               `json:"years"`
	Owner        string            `json:"owner"`
	Beneficiary  string            `json:"beneficiary,omitempty"`
	FeeRecipient string            `json:"fee_recipient,omitempty"`
	SourceAsset  string            `json:"source_asset,omitempty"`
	SourceCoins  []swap.SourceCoin `json:"source_coins,omitempty"`
	SlippageBps  *int64            `json:"slippage_bps,omitempty"`
	Budget       *domain.Amount    `json:"budget,omitempty"`
	Reward       *domain.Amount    `json:"reward,omitempty"`
	Fee          *domain.Amount    `json:"fee,omitempty"`
	ExpiresAt    time.Time         `json:"expires_at,omitempty"`
	ExpirationMs *int64            `json:"expiration_ms,omitempty"`
	Renew        bool              `json:"renew,omitempty"`
}

// CreateResult is the local record and the unsigned creation transaction.
type CreateResult struct {
	Vault domain.VaultRecord `json:"vault"`
	Build *swap.BuildResult  `json:"build"`
}

// CreateVault prices the registration, acquires budget + reward + fee of the
// reward token and escrows exactly that amount.
func (s *Service) CreateVault(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	res, err := s.create(ctx, req)
	if err != nil {
		return nil, s.composer.Fail(ctx, KindCreate, req.Domain, err)
	}
	return res, nil
}

func (s *Service) create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	if req.Renew {
		return nil, domain.ErrVaultRenewalUnsupported
	}
	label, err := pricing.NormalizeLabel(req.Domain)
	if err != nil {
		return nil, err
	}
	if err := pricing.ValidateYears(req.Years); err != nil {
		return nil, err
	}
	owner, err := domain.NormalizeAddress(req.Owner)
	if err != nil {
		return nil, fmt.Errorf("owner: %w", err)
	}
	beneficiary := owner
	if req.Beneficiary != "" {
		if beneficiary, err = domain.NormalizeAddress(req.Beneficiary); err != nil {
			return nil, fmt.Errorf("beneficiary: %w", err)
		}
	}
	now := s.now()
	expires := req.ExpiresAt
	if expires.IsZero() {
		expires = now.Add(s.cfg.DefaultTTL)
	}
	if !expires.After(now) {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidExpiry, expires.Format(time.RFC3339))
	}
	slippage, err := s.composer.ResolveSlippage(req.SlippageBps)
	if err != nil {
		return nil, err
	}
	source, err := s.composer.Lookup(req.SourceAsset)
	if err != nil {
		return nil, err
	}

	price, err := s.pricer.CalculateRegistrationPrice(ctx, domain.PricingRequest{
		Domain: label, Years: req.Years, ExpirationMs: req.ExpirationMs,
	})
	if err != nil {
		return nil, err
	}
	budget := price.RewardTokenNeeded
	if req.Budget != nil {
		if req.Budget.Cmp(price.RewardTokenNeeded) < 0 {
			return nil, fmt.Errorf("%w: budget %s below registration price %s",
				domain.ErrInvalidAmount, req.Budget, price.RewardTokenNeeded)
		}
		budget = *req.Budget
	}
	reward := quotemath.FractionBps(budget, s.cfg.RewardBps)
	if req.Reward != nil {
		reward = *req.Reward
	}
	fee := quotemath.FractionBps(budget, s.cfg.FeeBps)
	if req.Fee != nil {
		fee = *req.Fee
	}

	var warnings []string
	feeRecipient, err := s.feeRecipient(ctx, req.FeeRecipient)
	if err != nil {
		return nil, err
	}
	if feeRecipient == "" {
		feeRecipient = owner
		if !fee.IsZero() {
			warnings = append(warnings, fmt.Sprintf("no fee recipient, protocol fee %s dropped", fee))
			fee = domain.NewAmount(0)
		}
	}

	total := domain.SumAmounts(budget, reward, fee)
	plan, err := s.composer.PlanAcquisition(ctx, source, total, slippage)
	if err != nil {
		return nil, err
	}
	if err := s.composer.CheckFunds(plan, req.SourceCoins); err != nil {
		return nil, err
	}

	b := ptb.NewBuilder(owner, s.composer.GasBudget())
	funds, err := s.composer.Emit(b, plan, req.SourceCoins)
	if err != nil {
		return nil, err
	}
	name := pricing.FullName(label)
	rewardCoin := s.composer.Coins().Reward
	s.composer.Env().CreateVault(b, rewardCoin.Type, funds.Payment, onchain.VaultTerms{
		Beneficiary:  beneficiary,
		FeeRecipient: feeRecipient,
		Domain:       name,
		Years:        req.Years,
		Budget:       budget,
		Reward:       reward,
		Fee:          fee,
		ExpiresAtMs:  uint64(expires.UnixMilli()),
	})

	build := &swap.BuildResult{
		Kind:        KindCreate,
		Domain:      name,
		Years:       req.Years,
		Payer:       owner,
		Target:      beneficiary,
		Pricing:     &price,
		Plan:        plan,
		Warnings:    append(append([]string(nil), plan.Warnings...), warnings...),
		SlippageBps: plan.SlippageBps,
		QuotedAt:    plan.QuotedAt,
		ValidUntil:  plan.ValidUntil,
	}
	if funds.Dust != nil {
		recipient, warning := s.composer.DustRecipient(ctx, owner)
		if warning != "" {
			build.Warnings = append(build.Warnings, warning)
		}
		build.DustRecipient = recipient
		b.TransferObjects(recipient, *funds.Dust)
	}
	b.TransferObjects(owner, funds.Sweep...)
	if err := s.composer.Seal(ctx, b, build); err != nil {
		return nil, err
	}

	rec := domain.VaultRecord{
		ID:                 uuid.NewString(),
		Owner:              owner,
		Beneficiary:        beneficiary,
		FeeRecipient:       feeRecipient,
		Domain:             name,
		Years:              req.Years,
		RegistrationBudget: budget,
		ExecutorReward:     reward,
		ProtocolFee:        fee,
		ExpiresAt:          expires,
		Status:             domain.VaultStatusCreated,
		TxDigest:           build.Digest,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.store.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("vault: save %s: %w", rec.ID, err)
	}
	s.record(ctx, domain.EventVaultCreated, "Vault created", rec)
	return &CreateResult{Vault: rec, Build: build}, nil
}

func (s *Service) feeRecipient(ctx context.Context, requested string) (string, error) {
	if requested != "" {
		addr, err := domain.NormalizeAddress(requested)
		if err != nil {
			return "", fmt.Errorf("fee recipient: %w", err)
		}
		return addr, nil
	}
	addr, err := s.composer.FeeRecipient(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "fee recipient unavailable", slog.String("error", err.Error()))
		return "", nil
	}
	return addr, nil
}

// ConfirmCreated stores the shared object the creation transaction produced.
func (s *Service) ConfirmCreated(ctx context.Context, id, objectID string, initialSharedVersion uint64) (domain.VaultRecord, error) {
	obj, err := domain.NormalizeAddress(objectID)
	if err != nil {
		return domain.VaultRecord{}, fmt.Errorf("vault object: %w", err)
	}
	v, err := s.store.Get(ctx, id)
	if err != nil {
		return domain.VaultRecord{}, err
	}
	v.ObjectID = obj
	v.InitialSharedVersion = initialSharedVersion
	v.UpdatedAt = s.now()
	if err := s.store.Update(ctx, v); err != nil {
		return domain.VaultRecord{}, fmt.Errorf("vault: update %s: %w", id, err)
	}
	return v, nil
}

// ExecuteVault builds begin_execution, register and finalize as one
// transaction sent by executor, who receives the reward.
func (s *Service) ExecuteVault(ctx context.Context, id, executor string) (*swap.BuildResult, error) {
	res, err := s.execute(ctx, id, executor)
	if err != nil {
		return nil, s.composer.Fail(ctx, KindExecute, id, err)
	}
	return res, nil
}

func (s *Service) execute(ctx context.Context, id, executor string) (*swap.BuildResult, error) {
	addr, err := domain.NormalizeAddress(executor)
	if err != nil {
		return nil, fmt.Errorf("executor: %w", err)
	}
	unlock, err := s.locks.Acquire(ctx, lockKey(id), s.cfg.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("vault: execute %s: %w", id, err)
	}
	defer unlock()

	v, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if v.Status.Terminal() {
		return nil, fmt.Errorf("%w: vault %s is %s", domain.ErrVaultTerminal, v.ID, v.Status)
	}
	now := s.now()
	if !now.Before(v.ExpiresAt) {
		return nil, fmt.Errorf("%w: vault %s expired at %s", domain.ErrVaultExpired, v.ID, v.ExpiresAt.Format(time.RFC3339))
	}
	ref, err := objectRef(v)
	if err != nil {
		return nil, err
	}

	env := s.composer.Env()
	coinType := s.composer.Coins().Reward.Type
	b := ptb.NewBuilder(addr, s.composer.GasBudget())
	budget, ticket := env.BeginExecution(b, coinType, ref)
	nft := env.Register(b, v.Domain, v.Years, budget)
	reward := env.Finalize(b, coinType, ref, ticket, nft)
	b.TransferObjects(addr, reward)

	res := &swap.BuildResult{
		Kind:       KindExecute,
		Domain:     v.Domain,
		Years:      v.Years,
		Payer:      addr,
		Target:     v.Beneficiary,
		QuotedAt:   now,
		ValidUntil: v.ExpiresAt,
	}
	if err := s.composer.Seal(ctx, b, res); err != nil {
		return nil, err
	}
	return res, nil
}

// CancelVault builds the owner's refund. Expired vaults can still be
// cancelled to reclaim the escrow.
func (s *Service) CancelVault(ctx context.Context, id, owner string) (*swap.BuildResult, error) {
	res, err := s.cancel(ctx, id, owner)
	if err != nil {
		return nil, s.composer.Fail(ctx, KindCancel, id, err)
	}
	return res, nil
}

func (s *Service) cancel(ctx context.Context, id, owner string) (*swap.BuildResult, error) {
	addr, err := domain.NormalizeAddress(owner)
	if err != nil {
		return nil, fmt.Errorf("owner: %w", err)
	}
	unlock, err := s.locks.Acquire(ctx, lockKey(id), s.cfg.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("vault: cancel %s: %w", id, err)
	}
	defer unlock()

	v, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if v.Owner != addr {
		return nil, fmt.Errorf("%w: vault %s", domain.ErrVaultNotOwner, v.ID)
	}
	if v.Status != domain.VaultStatusCreated && v.Status != domain.VaultStatusExpired {
		return nil, fmt.Errorf("%w: vault %s is %s", domain.ErrVaultTerminal, v.ID, v.Status)
	}
	ref, err := objectRef(v)
	if err != nil {
		return nil, err
	}

	b := ptb.NewBuilder(addr, s.composer.GasBudget())
	refund := s.composer.Env().CancelVault(b, s.composer.Coins().Reward.Type, ref)
	b.TransferObjects(addr, refund)

	now := s.now()
	res := &swap.BuildResult{
		Kind:       KindCancel,
		Domain:     v.Domain,
		Payer:      addr,
		Target:     addr,
		QuotedAt:   now,
		ValidUntil: now.Add(s.cfg.DefaultTTL),
	}
	if err := s.composer.Seal(ctx, b, res); err != nil {
		return nil, err
	}
	return res, nil
}

// ConfirmExecuted marks the vault executed once its execution landed.
func (s *Service) ConfirmExecuted(ctx context.Context, id, executor, digest string) (domain.VaultRecord, error) {
	v, err := s.store.Get(ctx, id)
	if err != nil {
		return domain.VaultRecord{}, err
	}
	if err := v.Transition(domain.VaultStatusExecuted, s.now()); err != nil {
		return domain.VaultRecord{}, err
	}
	v.ExecutedBy = executor
	v.TxDigest = digest
	if err := s.store.Update(ctx, v); err != nil {
		return domain.VaultRecord{}, fmt.Errorf("vault: update %s: %w", id, err)
	}
	s.record(ctx, domain.EventVaultExecuted, "Vault executed", v)
	return v, nil
}

// ConfirmCancelled marks the vault cancelled once the refund landed. An
// expired vault keeps its status and only records the refund digest.
func (s *Service) ConfirmCancelled(ctx context.Context, id, digest string) (domain.VaultRecord, error) {
	v, err := s.store.Get(ctx, id)
	if err != nil {
		return domain.VaultRecord{}, err
	}
	if v.Status == domain.VaultStatusExpired {
		v.UpdatedAt = s.now()
	} else if err := v.Transition(domain.VaultStatusCancelled, s.now()); err != nil {
		return domain.VaultRecord{}, err
	}
	v.TxDigest = digest
	if err := s.store.Update(ctx, v); err != nil {
		return domain.VaultRecord{}, fmt.Errorf("vault: update %s: %w", id, err)
	}
	s.record(ctx, domain.EventVaultCancelled, "Vault cancelled", v)
	return v, nil
}

// ExpireDue moves created vaults past their expiry to expired and returns
// how many moved.
func (s *Service) ExpireDue(ctx context.Context) (int, error) {
	due, err := s.store.ListByStatus(ctx, domain.VaultStatusCreated, 0)
	if err != nil {
		return 0, fmt.Errorf("vault: list created: %w", err)
	}
	now := s.now()
	n := 0
	for _, v := range due {
		if now.Before(v.ExpiresAt) {
			continue
		}
		if err := v.Transition(domain.VaultStatusExpired, now); err != nil {
			return n, err
		}
		if err := s.store.Update(ctx, v); err != nil {
			return n, fmt.Errorf("vault: update %s: %w", v.ID, err)
		}
		s.record(ctx, domain.EventVaultExpired, "Vault expired", v)
		n++
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "vaults expired", slog.Int("count", n))
	}
	return n, nil
}

// Get returns the local record.
func (s *Service) Get(ctx context.Context, id string) (domain.VaultRecord, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) record(ctx context.Context, event, title string, v domain.VaultRecord) {
	detail := map[string]any{
		"vault_id":  v.ID,
		"object_id": v.ObjectID,
		"domain":    v.Domain,
		"status":    string(v.Status),
		"owner":     v.Owner,
		"escrowed":  v.TotalEscrowed().String(),
		"digest":    v.TxDigest,
	}
	if err := s.audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "audit log failed",
			slog.String("vault_id", v.ID),
			slog.String("error", err.Error()),
		)
	}
	s.logger.InfoContext(ctx, "vault "+string(v.Status),
		slog.String("vault_id", v.ID),
		slog.String("domain", v.Domain),
		slog.String("escrowed", v.TotalEscrowed().String()),
	)
	msg := fmt.Sprintf("%s %s, escrow %s", v.Domain, v.ID, v.TotalEscrowed())
	if err := s.notifier.Notify(ctx, event, title, msg); err != nil {
		s.logger.WarnContext(ctx, "notify failed", slog.String("error", err.Error()))
	}
}

func lockKey(id string) string { return "vault:" + id }

func objectRef(v domain.VaultRecord) (onchain.SharedRef, error) {
	if v.ObjectID == "" {
		return onchain.SharedRef{}, fmt.Errorf("vault %s: %w: creation not confirmed", v.ID, domain.ErrNotFound)
	}
	return onchain.SharedRef{ID: v.ObjectID, InitialSharedVersion: v.InitialSharedVersion}, nil
}
