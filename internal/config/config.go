// Package config defines the suiski configuration and its validation.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration. Fields come from a TOML file and are then
// overridden by SUISKI_* environment variables.
type Config struct {
	Network      string         `toml:"network"`
	Sui          SuiConfig      `toml:"sui"`
	DeepBook     DeepBookConfig `toml:"deepbook"`
	Coins        CoinsConfig    `toml:"coins"`
	Packages     PackagesConfig `toml:"packages"`
	Pools        []PoolConfig   `toml:"pools"`
	Pricing      PricingConfig  `toml:"pricing"`
	Swap         SwapConfig     `toml:"swap"`
	FeeRecipient string         `toml:"fee_recipient"`
	Vault        VaultConfig    `toml:"vault"`
	Oracle       OracleConfig   `toml:"oracle"`
	Redis        RedisConfig    `toml:"redis"`
	Postgres     PostgresConfig `toml:"postgres"`
	S3           S3Config       `toml:"s3"`
	Notify       NotifyConfig   `toml:"notify"`
	Mode         string         `toml:"mode"`
	LogLevel     string         `toml:"log_level"`
}

// SuiConfig points at a full node.
type SuiConfig struct {
	RPCURL string `toml:"rpc_url"`
	// ResolverAddress is reverse-resolved when the fee recipient name has no
	// name record.
	ResolverAddress string `toml:"resolver_address"`
}

// DeepBookConfig points at the DeepBook indexer.
type DeepBookConfig struct {
	IndexerURL string `toml:"indexer_url"`
}

// CoinConfig describes one asset.
type CoinConfig struct {
	Symbol   string `toml:"symbol"`
	Type     string `toml:"type"`
	Decimals int32  `toml:"decimals"`
}

// CoinsConfig holds the four core assets plus further source assets.
type CoinsConfig struct {
	Base   CoinConfig   `toml:"base"`
	Reward CoinConfig   `toml:"reward"`
	Stable CoinConfig   `toml:"stable"`
	Fee    CoinConfig   `toml:"fee"`
	Extra  []CoinConfig `toml:"extra"`
}

// SharedObjectConfig identifies a shared object.
type SharedObjectConfig struct {
	ID                   string `toml:"id"`
	InitialSharedVersion uint64 `toml:"initial_shared_version"`
}

// PackagesConfig holds the Move packages and shared objects calls target.
type PackagesConfig struct {
	DeepBook        string             `toml:"deepbook"`
	Registration    string             `toml:"registration"`
	NFTType         string             `toml:"nft_type"`
	Vault           string             `toml:"vault"`
	SuiNS           SharedObjectConfig `toml:"suins"`
	PricingObjectID string             `toml:"pricing_object_id"`
}

// PoolConfig describes one DeepBook pool. Base and Quote are coin symbols.
type PoolConfig struct {
	Name                 string   `toml:"name"`
	ID                   string   `toml:"id"`
	InitialSharedVersion uint64   `toml:"initial_shared_version"`
	Base                 string   `toml:"base"`
	Quote                string   `toml:"quote"`
	Whitelisted          bool     `toml:"whitelisted"`
	TTL                  duration `toml:"ttl"`
	// FallbackPrice is the static quote-per-base rate used when every live
	// source fails.
	FallbackPrice string `toml:"fallback_price"`
}

// PricingConfig tunes the price calculator.
type PricingConfig struct {
	BaseStablePool string   `toml:"base_stable_pool"`
	RewardBasePool string   `toml:"reward_base_pool"`
	DiscountBps    int64    `toml:"discount_bps"`
	BufferBps      int64    `toml:"buffer_bps"`
	CacheTTL       duration `toml:"cache_ttl"`
	TableCacheTTL  duration `toml:"table_cache_ttl"`
}

// SwapConfig tunes the composer.
type SwapConfig struct {
	DefaultSlippageBps   int64  `toml:"default_slippage_bps"`
	WeakDepthSlippageBps int64  `toml:"weak_depth_slippage_bps"`
	ThinBookSlippageBps  int64  `toml:"thin_book_slippage_bps"`
	MinDepthLevels       int    `toml:"min_depth_levels"`
	FeeFractionBps       int64  `toml:"fee_fraction_bps"`
	GasBudget            uint64 `toml:"gas_budget"`
}

// VaultConfig tunes delegated settlement.
type VaultConfig struct {
	RewardBps      int64    `toml:"reward_bps"`
	FeeBps         int64    `toml:"fee_bps"`
	DefaultTTL     duration `toml:"default_ttl"`
	LockTTL        duration `toml:"lock_ttl"`
	ExpireInterval duration `toml:"expire_interval"`
}

// OracleConfig tunes the price oracle.
type OracleConfig struct {
	DefaultTTL   duration `toml:"default_ttl"`
	FetchTimeout duration `toml:"fetch_timeout"`
	DepthLevels  int      `toml:"depth_levels"`
	RateLimit    int      `toml:"rate_limit"`
	RateWindow   duration `toml:"rate_window"`
	// SignalChannel carries fresh rates in watch mode.
	SignalChannel string `toml:"signal_channel"`
}

// RedisConfig holds Redis connection parameters. Disabled means in-memory.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
	KeyPrefix  string `toml:"key_prefix"`
}

// PostgresConfig holds database parameters. Disabled means in-memory vault
// records and no audit log.
type PostgresConfig struct {
	Enabled       bool     `toml:"enabled"`
	DSN           string   `toml:"dsn"`
	Host          string   `toml:"host"`
	Port          int      `toml:"port"`
	Database      string   `toml:"database"`
	User          string   `toml:"user"`
	Password      string   `toml:"password"`
	SSLMode       string   `toml:"sslmode"`
	MaxConns      int      `toml:"max_conns"`
	MinConns      int      `toml:"min_conns"`
	ConnTimeout   duration `toml:"conn_timeout"`
	RunMigrations bool     `toml:"run_migrations"`
}

// S3Config holds the build archive bucket.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	Prefix         string `toml:"prefix"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
	Cooldown          duration `toml:"cooldown"`
}

// duration decodes TOML strings such as "5m" or "30s".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Dur wraps a time.Duration for use in Config literals.
func Dur(d time.Duration) duration { return duration{d} }

// Modes the CLI accepts.
const (
	ModeQuote        = "quote"
	ModeRenewQuote   = "renew-quote"
	ModeBuild        = "build"
	ModeDryRun       = "dryrun"
	ModeVaultCreate  = "vault-create"
	ModeVaultExecute = "vault-execute"
	ModeVaultCancel  = "vault-cancel"
	ModeWatch        = "watch"
)

var validModes = map[string]bool{
	ModeQuote:        true,
	ModeRenewQuote:   true,
	ModeBuild:        true,
	ModeDryRun:       true,
	ModeVaultCreate:  true,
	ModeVaultExecute: true,
	ModeVaultCancel:  true,
	ModeWatch:        true,
}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Defaults returns mainnet defaults. Package ids and pool ids have no safe
// default and must come from the file or the environment.
func Defaults() Config {
	return Config{
		Network: "mainnet",
		Sui: SuiConfig{
			RPCURL: "https://fullnode.mainnet.sui.io:443",
		},
		DeepBook: DeepBookConfig{
			IndexerURL: "https://deepbook-indexer.mainnet.mystenlabs.com",
		},
		Coins: CoinsConfig{
			Base:   CoinConfig{Symbol: "SUI", Type: "0x2::sui::SUI", Decimals: 9},
			Reward: CoinConfig{Symbol: "NS", Type: "0x5145494a5f5100e645e4b0aa950fa6b68f614e8c59e17bc5ded3495123a79178::ns::NS", Decimals: 6},
			Stable: CoinConfig{Symbol: "USDC", Type: "0xdba34672e30cb065b1f93e3ab55318768fd6fef66c15942c9f7cb846e2f900e7::usdc::USDC", Decimals: 6},
			Fee:    CoinConfig{Symbol: "DEEP", Type: "0xdeeb7a4662eec9f2f3def03fb937a663dddaa2e215b8078a284d026b7946c270::deep::DEEP", Decimals: 6},
		},
		Pricing: PricingConfig{
			BaseStablePool: "SUI_USDC",
			RewardBasePool: "NS_SUI",
			DiscountBps:    2500,
			BufferBps:      100,
			CacheTTL:       Dur(30 * time.Second),
			TableCacheTTL:  Dur(10 * time.Minute),
		},
		Swap: SwapConfig{
			DefaultSlippageBps:   100,
			WeakDepthSlippageBps: 1500,
			ThinBookSlippageBps:  3000,
			MinDepthLevels:       2,
			FeeFractionBps:       50,
			GasBudget:            50_000_000,
		},
		Vault: VaultConfig{
			RewardBps:      500,
			FeeBps:         100,
			DefaultTTL:     Dur(7 * 24 * time.Hour),
			LockTTL:        Dur(30 * time.Second),
			ExpireInterval: Dur(time.Minute),
		},
		Oracle: OracleConfig{
			DefaultTTL:    Dur(60 * time.Second),
			FetchTimeout:  Dur(3 * time.Second),
			DepthLevels:   20,
			RateWindow:    Dur(time.Second),
			SignalChannel: "suiski:rates",
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   10,
			MaxRetries: 3,
			KeyPrefix:  "suiski:",
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "suiski",
			User:          "suiski",
			SSLMode:       "disable",
			MaxConns:      5,
			MinConns:      1,
			ConnTimeout:   Dur(5 * time.Second),
			RunMigrations: true,
		},
		S3: S3Config{
			Region: "us-east-1",
			UseSSL: true,
			Prefix: "builds",
		},
		Notify: NotifyConfig{
			Cooldown: Dur(time.Minute),
		},
		Mode:     ModeQuote,
		LogLevel: "info",
	}
}

// symbols returns every configured coin symbol in upper case.
func (c *Config) symbols() map[string]bool {
	out := map[string]bool{}
	for _, coin := range append([]CoinConfig{c.Coins.Base, c.Coins.Reward, c.Coins.Stable, c.Coins.Fee}, c.Coins.Extra...) {
		out[strings.ToUpper(coin.Symbol)] = true
	}
	return out
}

// NeedsChain reports whether the mode builds transactions.
func NeedsChain(mode string) bool {
	switch mode {
	case ModeQuote, ModeRenewQuote, ModeWatch:
		return false
	}
	return true
}

// NeedsVault reports whether the mode uses the vault package.
func NeedsVault(mode string) bool {
	return strings.HasPrefix(mode, "vault-")
}

// Validate checks the whole configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []string
	mode := strings.ToLower(c.Mode)

	if !validModes[mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: quote, renew-quote, build, dryrun, vault-create, vault-execute, vault-cancel, watch)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}
	if c.Network != "mainnet" && c.Network != "testnet" {
		errs = append(errs, fmt.Sprintf("network must be mainnet or testnet, got %q", c.Network))
	}
	if c.Sui.RPCURL == "" {
		errs = append(errs, "sui: rpc_url must not be empty")
	}
	if c.DeepBook.IndexerURL == "" {
		errs = append(errs, "deepbook: indexer_url must not be empty")
	}

	for _, coin := range []struct {
		role string
		c    CoinConfig
	}{{"base", c.Coins.Base}, {"reward", c.Coins.Reward}, {"stable", c.Coins.Stable}, {"fee", c.Coins.Fee}} {
		errs = append(errs, checkCoin("coins."+coin.role, coin.c)...)
	}
	for i, coin := range c.Coins.Extra {
		errs = append(errs, checkCoin(fmt.Sprintf("coins.extra[%d]", i), coin)...)
	}

	symbols := c.symbols()
	names := map[string]bool{}
	for i, p := range c.Pools {
		where := fmt.Sprintf("pools[%d]", i)
		if p.Name == "" {
			errs = append(errs, where+": name must not be empty")
		}
		if names[p.Name] {
			errs = append(errs, fmt.Sprintf("%s: duplicate pool %q", where, p.Name))
		}
		names[p.Name] = true
		if p.ID == "" {
			errs = append(errs, fmt.Sprintf("%s (%s): id must not be empty", where, p.Name))
		}
		if !symbols[strings.ToUpper(p.Base)] || !symbols[strings.ToUpper(p.Quote)] {
			errs = append(errs, fmt.Sprintf("%s (%s): base %q and quote %q must be configured coins", where, p.Name, p.Base, p.Quote))
		}
	}
	for _, pool := range []string{c.Pricing.BaseStablePool, c.Pricing.RewardBasePool} {
		if !names[pool] {
			errs = append(errs, fmt.Sprintf("pricing: pool %q is not configured", pool))
		}
	}
	if c.Pricing.DiscountBps < 0 || c.Pricing.DiscountBps >= 10_000 {
		errs = append(errs, "pricing: discount_bps must be in [0, 10000)")
	}
	if c.Pricing.BufferBps < 100 || c.Pricing.BufferBps > 2000 {
		errs = append(errs, "pricing: buffer_bps must be in [100, 2000]")
	}
	if c.Pricing.DiscountBps > 0 && c.Pricing.DiscountBps <= c.Pricing.BufferBps {
		errs = append(errs, fmt.Sprintf("pricing: discount_bps (%d) must exceed buffer_bps (%d)",
			c.Pricing.DiscountBps, c.Pricing.BufferBps))
	}

	if c.Swap.DefaultSlippageBps < 0 || c.Swap.DefaultSlippageBps > 5000 {
		errs = append(errs, "swap: default_slippage_bps must be in [0, 5000]")
	}
	if c.Swap.WeakDepthSlippageBps < c.Swap.DefaultSlippageBps || c.Swap.ThinBookSlippageBps < c.Swap.WeakDepthSlippageBps {
		errs = append(errs, "swap: slippage must not shrink from default to weak_depth to thin_book")
	}
	if c.Swap.MinDepthLevels < 1 {
		errs = append(errs, "swap: min_depth_levels must be >= 1")
	}
	if c.Swap.GasBudget == 0 {
		errs = append(errs, "swap: gas_budget must be > 0")
	}

	if c.Vault.RewardBps < 0 || c.Vault.FeeBps < 0 {
		errs = append(errs, "vault: reward_bps and fee_bps must be >= 0")
	}
	if c.Vault.DefaultTTL.Duration <= 0 || c.Vault.LockTTL.Duration <= 0 {
		errs = append(errs, "vault: default_ttl and lock_ttl must be > 0")
	}

	if NeedsChain(mode) {
		if c.Packages.DeepBook == "" || c.Packages.Registration == "" || c.Packages.NFTType == "" {
			errs = append(errs, "packages: deepbook, registration and nft_type are required for mode "+mode)
		}
		if c.Packages.SuiNS.ID == "" {
			errs = append(errs, "packages: suins.id is required for mode "+mode)
		}
	}
	if NeedsVault(mode) && c.Packages.Vault == "" {
		errs = append(errs, "packages: vault is required for mode "+mode)
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" && (c.Postgres.Host == "" || c.Postgres.Database == "") {
			errs = append(errs, "postgres: host and database must be set (or set postgres.dsn)")
		}
		if c.Postgres.MinConns > c.Postgres.MaxConns {
			errs = append(errs, "postgres: min_conns must not exceed max_conns")
		}
	}
	if c.S3.Enabled && (c.S3.Bucket == "" || c.S3.Region == "") {
		errs = append(errs, "s3: bucket and region must be set when enabled")
	}
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func checkCoin(where string, c CoinConfig) []string {
	var errs []string
	if c.Symbol == "" || c.Type == "" {
		errs = append(errs, where+": symbol and type must not be empty")
	}
	if strings.Count(c.Type, "::") != 2 {
		errs = append(errs, fmt.Sprintf("%s: type %q must look like 0xADDR::module::NAME", where, c.Type))
	}
	if c.Decimals < 0 || c.Decimals > 18 {
		errs = append(errs, fmt.Sprintf("%s: decimals must be in [0, 18], got %d", where, c.Decimals))
	}
	return errs
}
