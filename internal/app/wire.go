package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	s3blob "github.com/arbuthnot-eth/Sui-ski-sub000/internal/blob/s3"
	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/cache/memory"
	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/cache/redis"
	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/config"
	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/domain"
	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/notify"
	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/onchain"
	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/oracle"
	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/platform/deepbook"
	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/platform/sui"
	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/pricing"
	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/registry"
	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/resolver"
	vaultstore "github.com/arbuthnot-eth/Sui-ski-sub000/internal/store/memory"
	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/store/postgres"
	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/swap"
	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/vault"
)

// Dependencies bundles everything the modes need. It is constructed by Wire
// and torn down by the returned cleanup function.
type Dependencies struct {
	Coins  domain.CoinSet
	Extra  []domain.Coin
	Pools  []onchain.Pool
	Env    onchain.Env
	Clock  domain.Clock
	Logger *slog.Logger

	// Shared state. Redis when enabled, process memory otherwise.
	Cache       domain.Cache
	LockManager domain.LockManager
	RateLimiter domain.RateLimiter
	SignalBus   domain.SignalBus
	memCache    *memory.Cache

	// Persistence.
	VaultStore domain.VaultStore
	AuditStore domain.AuditStore
	Archiver   swap.Archiver

	Notifier domain.Notifier

	// Chain and venue clients.
	Sui      *sui.Client
	DeepBook *deepbook.Client

	Oracle     *oracle.Oracle
	Table      *registry.Source
	Calculator *pricing.Calculator
	Resolver   *resolver.Chain
	Composer   *swap.Composer
	Vaults     *vault.Service
}

// Wire constructs every dependency from cfg and returns a cleanup function
// that releases them in reverse order.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(what string, err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, fmt.Errorf("wire: %s: %w", what, err)
	}

	deps := &Dependencies{Clock: time.Now, Logger: logger}

	var err error
	deps.Coins, deps.Extra = coinSet(cfg)
	deps.Pools, err = pools(cfg, deps.Coins, deps.Extra)
	if err != nil {
		return fail("pools", err)
	}
	deps.Env = env(cfg, deps.Coins)

	// --- Redis, or in-memory fallbacks ---
	if cfg.Redis.Enabled {
		rc, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return fail("redis", err)
		}
		closers = append(closers, func() { _ = rc.Close() })
		deps.Cache = redis.NewTTLCache(rc)
		deps.LockManager = redis.NewLockManager(rc)
		deps.RateLimiter = redis.NewRateLimiter(rc)
		deps.SignalBus = redis.NewSignalBus(rc)
	} else {
		deps.memCache = memory.NewCache(deps.Clock)
		deps.Cache = deps.memCache
		deps.LockManager = memory.NewLockManager(deps.Clock)
		deps.SignalBus = memory.NewBus()
	}

	// --- Postgres, or in-memory vault records and audit log ---
	if cfg.Postgres.Enabled {
		pg, err := postgres.New(ctx, postgres.Config{
			DSN:            cfg.Postgres.DSN,
			Host:           cfg.Postgres.Host,
			Port:           cfg.Postgres.Port,
			Database:       cfg.Postgres.Database,
			User:           cfg.Postgres.User,
			Password:       cfg.Postgres.Password,
			SSLMode:        cfg.Postgres.SSLMode,
			MaxConns:       cfg.Postgres.MaxConns,
			MinConns:       cfg.Postgres.MinConns,
			ConnectTimeout: cfg.Postgres.ConnTimeout.Duration,
		})
		if err != nil {
			return fail("postgres", err)
		}
		closers = append(closers, pg.Close)
		if cfg.Postgres.RunMigrations {
			if err := pg.RunMigrations(ctx); err != nil {
				return fail("postgres migrations", err)
			}
		}
		deps.VaultStore = pg.Vaults()
		deps.AuditStore = pg.Audit()
	} else {
		deps.VaultStore = vaultstore.NewVaultStore()
		deps.AuditStore = vaultstore.NewAuditStore(deps.Clock)
	}

	// --- S3 build archive ---
	if cfg.S3.Enabled {
		sc, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail("s3", err)
		}
		deps.Archiver = s3blob.NewBuildArchiver(sc, cfg.S3.Prefix, deps.Clock)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender("", cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger,
		notify.WithCooldown(cfg.Notify.Cooldown.Duration))

	// --- Chain and venue ---
	deps.Sui = sui.NewClient(cfg.Sui.RPCURL)
	deps.DeepBook = deepbook.NewClient(cfg.DeepBook.IndexerURL)

	poolCfg, err := oraclePools(cfg)
	if err != nil {
		return fail("oracle pools", err)
	}
	oracleOpts := []oracle.Option{oracle.WithNotifier(deps.Notifier), oracle.WithClock(deps.Clock)}
	if deps.RateLimiter != nil {
		oracleOpts = append(oracleOpts, oracle.WithRateLimiter(deps.RateLimiter))
	}
	deps.Oracle = oracle.New(oracle.Config{
		Network:      domain.Network(cfg.Network),
		Pools:        poolCfg,
		DefaultTTL:   cfg.Oracle.DefaultTTL.Duration,
		FetchTimeout: cfg.Oracle.FetchTimeout.Duration,
		DepthLevels:  cfg.Oracle.DepthLevels,
		RateLimit:    cfg.Oracle.RateLimit,
		RateWindow:   cfg.Oracle.RateWindow.Duration,
	}, deps.DeepBook, deps.Cache, logger, oracleOpts...)

	deps.Table = registry.NewSource(registry.Config{
		PricingObjectID: cfg.Packages.PricingObjectID,
		StableDecimals:  deps.Coins.Stable.Decimals,
		CacheTTL:        cfg.Pricing.TableCacheTTL.Duration,
		Static:          registry.DefaultTable(),
	}, deps.Sui, deps.Cache, logger)

	deps.Calculator = pricing.NewCalculator(pricing.Config{
		Coins:          deps.Coins,
		BaseStablePool: cfg.Pricing.BaseStablePool,
		RewardBasePool: cfg.Pricing.RewardBasePool,
		DiscountBps:    cfg.Pricing.DiscountBps,
		BufferBps:      cfg.Pricing.BufferBps,
		CacheTTL:       cfg.Pricing.CacheTTL.Duration,
	}, deps.Oracle, deps.Table, deps.Cache, deps.Clock, logger)

	deps.Resolver = resolver.New(logger,
		resolver.NameRecord{Service: deps.Sui},
		resolver.LegacyReverse{Service: deps.Sui, Address: cfg.Sui.ResolverAddress},
	)

	composerOpts := []swap.Option{
		swap.WithAuditStore(deps.AuditStore),
		swap.WithNotifier(deps.Notifier),
		swap.WithClock(deps.Clock),
	}
	if deps.Archiver != nil {
		composerOpts = append(composerOpts, swap.WithArchiver(deps.Archiver))
	}
	deps.Composer = swap.New(swap.Config{
		Coins:                deps.Coins,
		ExtraCoins:           deps.Extra,
		Env:                  deps.Env,
		Pools:                deps.Pools,
		FeeRecipient:         cfg.FeeRecipient,
		GasBudget:            cfg.Swap.GasBudget,
		DefaultSlippageBps:   cfg.Swap.DefaultSlippageBps,
		WeakDepthSlippageBps: cfg.Swap.WeakDepthSlippageBps,
		ThinBookSlippageBps:  cfg.Swap.ThinBookSlippageBps,
		MinDepthLevels:       cfg.Swap.MinDepthLevels,
		FeeFractionBps:       cfg.Swap.FeeFractionBps,
	}, deps.Calculator, deps.Oracle, deps.Resolver, logger, composerOpts...)

	deps.Vaults = vault.New(vault.Config{
		RewardBps:  cfg.Vault.RewardBps,
		FeeBps:     cfg.Vault.FeeBps,
		DefaultTTL: cfg.Vault.DefaultTTL.Duration,
		LockTTL:    cfg.Vault.LockTTL.Duration,
	}, deps.Composer, deps.Calculator, deps.VaultStore, deps.LockManager, logger,
		vault.WithAuditStore(deps.AuditStore),
		vault.WithNotifier(deps.Notifier),
		vault.WithClock(deps.Clock),
	)

	return deps, cleanup, nil
}

func toCoin(c config.CoinConfig) domain.Coin {
	return domain.Coin{Symbol: strings.ToUpper(c.Symbol), Type: c.Type, Decimals: c.Decimals}
}

func coinSet(cfg *config.Config) (domain.CoinSet, []domain.Coin) {
	set := domain.CoinSet{
		Base:   toCoin(cfg.Coins.Base),
		Reward: toCoin(cfg.Coins.Reward),
		Stable: toCoin(cfg.Coins.Stable),
		Fee:    toCoin(cfg.Coins.Fee),
	}
	extra := make([]domain.Coin, 0, len(cfg.Coins.Extra))
	for _, c := range cfg.Coins.Extra {
		extra = append(extra, toCoin(c))
	}
	return set, extra
}

func pools(cfg *config.Config, coins domain.CoinSet, extra []domain.Coin) ([]onchain.Pool, error) {
	out := make([]onchain.Pool, 0, len(cfg.Pools))
	for _, p := range cfg.Pools {
		base, err := coins.Lookup(p.Base, extra)
		if err != nil {
			return nil, fmt.Errorf("pool %s: %w", p.Name, err)
		}
		quote, err := coins.Lookup(p.Quote, extra)
		if err != nil {
			return nil, fmt.Errorf("pool %s: %w", p.Name, err)
		}
		out = append(out, onchain.Pool{
			Name:                 p.Name,
			ID:                   p.ID,
			InitialSharedVersion: p.InitialSharedVersion,
			Base:                 base,
			Quote:                quote,
			Whitelisted:          p.Whitelisted,
		})
	}
	return out, nil
}

func oraclePools(cfg *config.Config) (map[string]oracle.PoolConfig, error) {
	out := make(map[string]oracle.PoolConfig, len(cfg.Pools))
	for _, p := range cfg.Pools {
		pc := oracle.PoolConfig{ID: p.ID, TTL: p.TTL.Duration}
		if p.FallbackPrice != "" {
			price, err := decimal.NewFromString(p.FallbackPrice)
			if err != nil {
				return nil, fmt.Errorf("pool %s: fallback_price: %w", p.Name, err)
			}
			pc.FallbackPrice = price
		}
		out[p.Name] = pc
	}
	return out, nil
}

func env(cfg *config.Config, coins domain.CoinSet) onchain.Env {
	return onchain.Env{
		Packages: onchain.Packages{
			DeepBook:     cfg.Packages.DeepBook,
			Registration: cfg.Packages.Registration,
			NFTType:      cfg.Packages.NFTType,
			Vault:        cfg.Packages.Vault,
		},
		SuiNS: onchain.SharedRef{
			ID:                   cfg.Packages.SuiNS.ID,
			InitialSharedVersion: cfg.Packages.SuiNS.InitialSharedVersion,
		},
		FeeCoin: coins.Fee,
	}
}
