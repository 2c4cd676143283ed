package swap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/domain"
	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/ptb"
)

// Seal finishes the builder into res, then records the build in the audit
// log and the archive and announces it. Recording failures are logged and do
// not fail the build.
func (c *Composer) Seal(ctx context.Context, b *ptb.Builder, res *BuildResult) error {
	tx, err := b.Finish()
	if err != nil {
		return fmt.Errorf("swap: %s: %w", res.Kind, err)
	}
	txBytes, err := tx.Base64()
	if err != nil {
		return err
	}
	digest, err := tx.Digest()
	if err != nil {
		return err
	}
	res.Transaction = tx
	res.TxBytes = txBytes
	res.Digest = digest

	detail := map[string]any{
		"kind":         res.Kind,
		"digest":       digest,
		"payer":        res.Payer,
		"commands":     len(tx.Commands),
		"slippage_bps": res.SlippageBps,
		"valid_until":  res.ValidUntil,
	}
	if res.Domain != "" {
		detail["domain"] = res.Domain
		detail["years"] = res.Years
	}
	if res.Plan != nil {
		detail["source"] = res.Plan.Source.Symbol
		detail["source_spend"] = res.Plan.SourceSpend.String()
		detail["reward_needed"] = res.Plan.Need.String()
	}
	if err := c.audit.Log(ctx, domain.EventTxBuilt, detail); err != nil {
		c.logger.WarnContext(ctx, "audit log failed",
			slog.String("digest", digest),
			slog.String("error", err.Error()),
		)
	}
	if c.archive != nil {
		if err := c.archive.ArchiveBuild(ctx, res.Kind, digest, res); err != nil {
			c.logger.WarnContext(ctx, "archive build failed",
				slog.String("digest", digest),
				slog.String("error", err.Error()),
			)
		}
	}

	c.logger.InfoContext(ctx, "transaction built",
		slog.String("kind", res.Kind),
		slog.String("domain", res.Domain),
		slog.String("digest", digest),
		slog.Int("commands", len(tx.Commands)),
		slog.Int64("slippage_bps", res.SlippageBps),
		slog.Int("warnings", len(res.Warnings)),
	)
	msg := fmt.Sprintf("%s %s, %d commands, digest %s", res.Kind, res.Domain, len(tx.Commands), digest)
	if err := c.notifier.Notify(ctx, domain.EventTxBuilt, "Transaction built", msg); err != nil {
		c.logger.WarnContext(ctx, "notify failed", slog.String("error", err.Error()))
	}
	return nil
}

// Fail logs a failed build and, unless the caller's input caused it, sends
// a build_failed notification. It returns err unchanged.
func (c *Composer) Fail(ctx context.Context, kind, name string, err error) error {
	if domain.IsInputError(err) {
		c.logger.DebugContext(ctx, "build rejected",
			slog.String("kind", kind),
			slog.String("domain", name),
			slog.String("error", err.Error()),
		)
		return err
	}
	c.logger.ErrorContext(ctx, "build failed",
		slog.String("kind", kind),
		slog.String("domain", name),
		slog.String("error", err.Error()),
	)
	msg := fmt.Sprintf("%s %s: %v", kind, name, err)
	if nerr := c.notifier.Notify(ctx, domain.EventBuildFailed, "Build failed", msg); nerr != nil {
		c.logger.WarnContext(ctx, "notify failed", slog.String("error", nerr.Error()))
	}
	return err
}
