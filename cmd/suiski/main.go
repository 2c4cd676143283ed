// Command suiski quotes, builds and simulates discounted name registrations
// and manages settlement vaults. Results are written to stdout as JSON; logs
// go to stderr.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/app"
	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/config"
	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/domain"
	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/swap"
)

func main() {
	// The mode may come first: suiski build -domain example ...
	var positional string
	if len(os.Args) > 1 && !strings.HasPrefix(os.Args[1], "-") {
		positional = os.Args[1]
		os.Args = append(os.Args[:1], os.Args[2:]...)
	}

	configPath := flag.String("config", "", "path to configuration file (optional)")
	mode := flag.String("mode", "", "override the configured mode")
	name := flag.String("domain", "", "name to price or register")
	years := flag.Int("years", 1, "registration or renewal years")
	payer := flag.String("payer", "", "sender address (vault owner or executor in vault modes)")
	target := flag.String("target", "", "address that receives the registration")
	source := flag.String("source", "", "source asset symbol or coin type (default: base asset)")
	slippage := flag.Int64("slippage-bps", -1, "slippage tolerance in bps (default: configured)")
	expirationMs := flag.Int64("expiration-ms", 0, "lapsed name expiry in unix ms, for premium pricing")
	renewNFT := flag.String("renew-nft", "", "registration NFT object id; builds a renewal")
	vaultID := flag.String("vault", "", "local vault id")
	objectID := flag.String("vault-object", "", "on-chain vault object id to bind before execute or cancel")
	isv := flag.Uint64("vault-isv", 0, "vault initial shared version (default: read from chain)")
	beneficiary := flag.String("beneficiary", "", "vault registration recipient")
	feeRecipient := flag.String("fee-recipient", "", "vault protocol fee recipient")
	budget := flag.String("budget", "", "vault registration budget in reward-token units")
	reward := flag.String("reward", "", "vault executor reward in reward-token units")
	fee := flag.String("fee", "", "vault protocol fee in reward-token units")
	expiresIn := flag.Duration("expires-in", 0, "vault lifetime (default: configured)")
	renew := flag.Bool("renew", false, "vault settles a renewal")
	fund := flag.String("fund", "", "dry-run source balance in base units")
	interval := flag.Duration("interval", 0, "watch polling interval")
	flag.Parse()
	if positional == "" && flag.NArg() > 0 {
		positional = flag.Arg(0)
	}
	if *mode == "" {
		*mode = positional
	}

	// Setup structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration.
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config",
			slog.String("path", *configPath),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	if *mode != "" {
		cfg.Mode = *mode
	}

	// Set log level from config.
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	// Validate configuration.
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	req := app.Request{
		Domain:       *name,
		Years:        *years,
		Payer:        *payer,
		Target:       *target,
		SourceAsset:  *source,
		VaultID:      *vaultID,
		ObjectID:     *objectID,
		SharedVer:    *isv,
		Beneficiary:  *beneficiary,
		FeeRecipient: *feeRecipient,
		Renew:        *renew,
		Interval:     *interval,
	}
	if *slippage >= 0 {
		req.SlippageBps = slippage
	}
	if *expirationMs > 0 {
		req.ExpirationMs = expirationMs
	}
	if *renewNFT != "" {
		req.RenewNFT = &swap.ObjectRef{ID: *renewNFT}
	}
	if *expiresIn > 0 {
		req.ExpiresAt = time.Now().Add(*expiresIn)
	}
	for _, a := range []struct {
		flag string
		raw  string
		dst  **domain.Amount
	}{{"budget", *budget, &req.Budget}, {"reward", *reward, &req.Reward}, {"fee", *fee, &req.Fee}, {"fund", *fund, &req.Fund}} {
		if a.raw == "" {
			continue
		}
		v, err := domain.ParseAmount(a.raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid -%s: %v\n", a.flag, err)
			os.Exit(2)
		}
		*a.dst = &v
	}

	logger.Debug("active configuration", slog.Any("config", config.RedactedConfig(cfg)))

	application := app.New(cfg, logger, app.WithRequest(req))
	defer application.Close()

	// Setup signal handling for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		// context.Canceled is expected on clean shutdown.
		if errors.Is(err, context.Canceled) {
			logger.Info("application shut down gracefully")
			return
		}
		logger.Error("application exited with error", slog.String("error", err.Error()))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		application.Close()
		if domain.IsInputError(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
