package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Pools = []PoolConfig{
		{Name: "SUI_USDC", ID: "0xa1", Base: "SUI", Quote: "USDC", Whitelisted: true},
		{Name: "NS_SUI", ID: "0xa2", Base: "NS", Quote: "SUI"},
	}
	return cfg
}

func TestDefaultsNeedPools(t *testing.T) {
	cfg := Defaults()
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), `pricing: pool "SUI_USDC" is not configured`)
}

func TestValidateQuoteMode(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidateBuildModeNeedsPackages(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = ModeBuild
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "deepbook, registration and nft_type are required")
	require.Contains(t, err.Error(), "suins.id is required")

	cfg.Packages = PackagesConfig{DeepBook: "0xd", Registration: "0xr", NFTType: "0xn::nft::SuinsRegistration", SuiNS: SharedObjectConfig{ID: "0x5", InitialSharedVersion: 1}}
	require.NoError(t, cfg.Validate())

	cfg.Mode = ModeVaultCreate
	require.ErrorContains(t, cfg.Validate(), "packages: vault is required")
}

func TestValidateCollectsEveryError(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "trade"
	cfg.LogLevel = "loud"
	cfg.Coins.Fee.Decimals = 30
	cfg.Pools = append(cfg.Pools, PoolConfig{Name: "NS_SUI", ID: "0xa3", Base: "NS", Quote: "BTC"})
	cfg.Swap.ThinBookSlippageBps = 10
	cfg.Notify.TelegramToken = "tok"

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	require.Contains(t, msg, `unknown mode "trade"`)
	require.Contains(t, msg, `unknown log_level "loud"`)
	require.Contains(t, msg, "coins.fee: decimals must be in [0, 18]")
	require.Contains(t, msg, `duplicate pool "NS_SUI"`)
	require.Contains(t, msg, `quote "BTC" must be configured coins`)
	require.Contains(t, msg, "slippage must not shrink")
	require.Contains(t, msg, "telegram_token and telegram_chat_id")
}

func TestValidateDiscountExceedsBuffer(t *testing.T) {
	cfg := validConfig()
	cfg.Pricing.DiscountBps = 50
	require.ErrorContains(t, cfg.Validate(), "discount_bps (50) must exceed buffer_bps (100)")

	cfg.Pricing.DiscountBps = 100
	require.ErrorContains(t, cfg.Validate(), "must exceed buffer_bps")

	cfg.Pricing.DiscountBps = 0
	require.NoError(t, cfg.Validate())

	cfg.Pricing.DiscountBps = 150
	require.NoError(t, cfg.Validate())

	cfg.Pricing.BufferBps = 5000
	require.ErrorContains(t, cfg.Validate(), "buffer_bps must be in [100, 2000]")
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "suiski.toml")
	body := `
mode = "build"
fee_recipient = "fees.sui"

[vault]
lock_ttl = "45s"

[[pools]]
name = "SUI_USDC"
id = "0xa1"
base = "SUI"
quote = "USDC"
ttl = "10s"

[[pools]]
name = "NS_SUI"
id = "0xa2"
base = "NS"
quote = "SUI"
fallback_price = "0.05"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	t.Setenv("SUISKI_MODE", "quote")
	t.Setenv("SUISKI_REDIS_PASSWORD", "hunter2")
	t.Setenv("SUISKI_PACKAGES_SUINS_ISV", "42")
	t.Setenv("SUISKI_NOTIFY_EVENTS", "tx_built, vault_created,,")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ModeQuote, cfg.Mode)
	require.Equal(t, "fees.sui", cfg.FeeRecipient)
	require.Equal(t, 45*time.Second, cfg.Vault.LockTTL.Duration)
	require.Equal(t, 10*time.Second, cfg.Pools[0].TTL.Duration)
	require.Equal(t, "0.05", cfg.Pools[1].FallbackPrice)
	require.Equal(t, uint64(42), cfg.Packages.SuiNS.InitialSharedVersion)
	require.Equal(t, []string{"tx_built", "vault_created"}, cfg.Notify.Events)
	require.Equal(t, int64(2500), cfg.Pricing.DiscountBps)
	require.NoError(t, cfg.Validate())

	red := RedactedConfig(cfg)
	require.Equal(t, "***", red.Redis.Password)
	require.Equal(t, "hunter2", cfg.Redis.Password)
	require.Empty(t, red.S3.SecretKey)
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "mainnet", cfg.Network)
}

func TestLoadBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[oracle]\ndefault_ttl = \"soon\"\n"), 0o600))
	_, err := Load(path)
	require.Error(t, err)
}

func TestExampleConfigValidates(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "config.example.toml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	require.Len(t, cfg.Pools, 3)
	require.Equal(t, 30*time.Second, cfg.Pools[1].TTL.Duration)
}
