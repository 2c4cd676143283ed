// Package app wires the settlement engine together and runs one operating
// mode: quoting, building, dry-running, vault lifecycle or the rate watcher.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/config"
	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/domain"
	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/swap"
)

// Request carries the per-invocation inputs the modes act on.
type Request struct {
	Domain       string
	Years        int
	Payer        string
	Target       string
	SourceAsset  string
	SourceCoins  []swap.SourceCoin
	SlippageBps  *int64
	ExpirationMs *int64
	RenewNFT     *swap.ObjectRef

	// Vault modes.
	VaultID      string
	ObjectID     string
	SharedVer    uint64
	Beneficiary  string
	FeeRecipient string
	Budget       *domain.Amount
	Reward       *domain.Amount
	Fee          *domain.Amount
	ExpiresAt    time.Time
	Renew        bool

	// Fund is the source-asset balance a dry run mints for the payer. Nil
	// means twice the planned spend.
	Fund *domain.Amount

	// Interval is the watch-mode polling period.
	Interval time.Duration
}

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	req     Request
	out     io.Writer
	closers []func()
}

// Option customises an App.
type Option func(*App)

// WithRequest sets the inputs for the mode.
func WithRequest(r Request) Option { return func(a *App) { a.req = r } }

// WithOutput sets where results are written. The default is stdout.
func WithOutput(w io.Writer) Option { return func(a *App) { a.out = w } }

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *App {
	a := &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
		out:    os.Stdout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run wires all dependencies, runs the configured mode and returns its
// error. Watch mode blocks until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("mode", a.cfg.Mode),
		slog.String("network", a.cfg.Network),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	return a.dispatch(ctx, deps)
}

func (a *App) dispatch(ctx context.Context, deps *Dependencies) error {
	switch strings.ToLower(a.cfg.Mode) {
	case config.ModeQuote:
		return a.QuoteMode(ctx, deps, domain.PricingRegister)
	case config.ModeRenewQuote:
		return a.QuoteMode(ctx, deps, domain.PricingRenew)
	case config.ModeBuild:
		return a.BuildMode(ctx, deps)
	case config.ModeDryRun:
		return a.DryRunMode(ctx, deps)
	case config.ModeVaultCreate:
		return a.VaultCreateMode(ctx, deps)
	case config.ModeVaultExecute:
		return a.VaultExecuteMode(ctx, deps)
	case config.ModeVaultCancel:
		return a.VaultCancelMode(ctx, deps)
	case config.ModeWatch:
		return a.WatchMode(ctx, deps)
	default:
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) emit(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("app: write result: %w", err)
	}
	return nil
}
