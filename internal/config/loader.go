package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load merges the TOML file at path over Defaults, then applies SUISKI_*
// environment overrides. An empty path skips the file. The result is not
// validated; call Config.Validate.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides overwrites fields whose SUISKI_* variable is set, so
// secrets and ids can be injected at deploy time.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Network, "SUISKI_NETWORK")

	// ── Chain endpoints ──
	setStr(&cfg.Sui.RPCURL, "SUISKI_SUI_RPC_URL")
	setStr(&cfg.Sui.ResolverAddress, "SUISKI_SUI_RESOLVER_ADDRESS")
	setStr(&cfg.DeepBook.IndexerURL, "SUISKI_DEEPBOOK_INDEXER_URL")

	// ── Packages ──
	setStr(&cfg.Packages.DeepBook, "SUISKI_PACKAGES_DEEPBOOK")
	setStr(&cfg.Packages.Registration, "SUISKI_PACKAGES_REGISTRATION")
	setStr(&cfg.Packages.NFTType, "SUISKI_PACKAGES_NFT_TYPE")
	setStr(&cfg.Packages.Vault, "SUISKI_PACKAGES_VAULT")
	setStr(&cfg.Packages.SuiNS.ID, "SUISKI_PACKAGES_SUINS_ID")
	setUint64(&cfg.Packages.SuiNS.InitialSharedVersion, "SUISKI_PACKAGES_SUINS_ISV")
	setStr(&cfg.Packages.PricingObjectID, "SUISKI_PACKAGES_PRICING_OBJECT_ID")

	// ── Pricing ──
	setStr(&cfg.Pricing.BaseStablePool, "SUISKI_PRICING_BASE_STABLE_POOL")
	setStr(&cfg.Pricing.RewardBasePool, "SUISKI_PRICING_REWARD_BASE_POOL")
	setInt64(&cfg.Pricing.DiscountBps, "SUISKI_PRICING_DISCOUNT_BPS")
	setInt64(&cfg.Pricing.BufferBps, "SUISKI_PRICING_BUFFER_BPS")
	setDuration(&cfg.Pricing.CacheTTL, "SUISKI_PRICING_CACHE_TTL")

	// ── Swap ──
	setInt64(&cfg.Swap.DefaultSlippageBps, "SUISKI_SWAP_DEFAULT_SLIPPAGE_BPS")
	setInt(&cfg.Swap.MinDepthLevels, "SUISKI_SWAP_MIN_DEPTH_LEVELS")
	setUint64(&cfg.Swap.GasBudget, "SUISKI_SWAP_GAS_BUDGET")
	setStr(&cfg.FeeRecipient, "SUISKI_FEE_RECIPIENT")

	// ── Vault ──
	setInt64(&cfg.Vault.RewardBps, "SUISKI_VAULT_REWARD_BPS")
	setInt64(&cfg.Vault.FeeBps, "SUISKI_VAULT_FEE_BPS")
	setDuration(&cfg.Vault.DefaultTTL, "SUISKI_VAULT_DEFAULT_TTL")
	setDuration(&cfg.Vault.LockTTL, "SUISKI_VAULT_LOCK_TTL")

	// ── Oracle ──
	setDuration(&cfg.Oracle.DefaultTTL, "SUISKI_ORACLE_DEFAULT_TTL")
	setDuration(&cfg.Oracle.FetchTimeout, "SUISKI_ORACLE_FETCH_TIMEOUT")
	setInt(&cfg.Oracle.RateLimit, "SUISKI_ORACLE_RATE_LIMIT")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "SUISKI_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "SUISKI_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SUISKI_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SUISKI_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "SUISKI_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "SUISKI_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "SUISKI_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.KeyPrefix, "SUISKI_REDIS_KEY_PREFIX")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "SUISKI_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "SUISKI_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "SUISKI_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "SUISKI_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "SUISKI_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "SUISKI_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "SUISKI_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "SUISKI_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.MaxConns, "SUISKI_POSTGRES_MAX_CONNS")
	setInt(&cfg.Postgres.MinConns, "SUISKI_POSTGRES_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "SUISKI_POSTGRES_RUN_MIGRATIONS")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "SUISKI_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "SUISKI_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "SUISKI_S3_REGION")
	setStr(&cfg.S3.Bucket, "SUISKI_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "SUISKI_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "SUISKI_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "SUISKI_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "SUISKI_S3_FORCE_PATH_STYLE")
	setStr(&cfg.S3.Prefix, "SUISKI_S3_PREFIX")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "SUISKI_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "SUISKI_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "SUISKI_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "SUISKI_NOTIFY_EVENTS")
	setDuration(&cfg.Notify.Cooldown, "SUISKI_NOTIFY_COOLDOWN")

	// ── Top-level ──
	setStr(&cfg.Mode, "SUISKI_MODE")
	setStr(&cfg.LogLevel, "SUISKI_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
