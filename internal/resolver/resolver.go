// Package resolver turns a fee recipient setting, either a name or an
// address, into an address by trying an ordered list of strategies.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/domain"
)

// Strategy is one way of resolving a name.
type Strategy interface {
	Name() string
	Resolve(ctx context.Context, name string) (string, error)
}

// Chain tries strategies in order and returns the first address found.
type Chain struct {
	strategies []Strategy
	suffix     string
	logger     *slog.Logger
}

// New builds a chain. Names without a suffix get ".sui" appended.
func New(logger *slog.Logger, strategies ...Strategy) *Chain {
	return &Chain{
		strategies: strategies,
		suffix:     ".sui",
		logger:     logger.With(slog.String("component", "resolver")),
	}
}

// Resolve returns the address for nameOrAddress. Addresses pass through
// normalized.
func (c *Chain) Resolve(ctx context.Context, nameOrAddress string) (string, error) {
	in := strings.ToLower(strings.TrimSpace(nameOrAddress))
	if in == "" {
		return "", fmt.Errorf("resolver: %w: empty name", domain.ErrInvalidAddress)
	}
	if strings.HasPrefix(in, "0x") {
		return domain.NormalizeAddress(in)
	}
	if !strings.HasSuffix(in, c.suffix) {
		in += c.suffix
	}

	var errs []error
	for _, s := range c.strategies {
		addr, err := s.Resolve(ctx, in)
		if err == nil {
			c.logger.Debug("name resolved",
				slog.String("name", in),
				slog.String("strategy", s.Name()),
				slog.String("address", addr),
			)
			return addr, nil
		}
		if ctx.Err() != nil {
			return "", fmt.Errorf("resolver: %s: %w", in, ctx.Err())
		}
		if !errors.Is(err, domain.ErrNotFound) {
			c.logger.Warn("resolver strategy failed",
				slog.String("name", in),
				slog.String("strategy", s.Name()),
				slog.String("error", err.Error()),
			)
		}
		errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
	}
	return "", fmt.Errorf("resolver: %s: %w: %w", in, domain.ErrNotFound, errors.Join(errs...))
}

// NameRecord looks the name up in the name service.
type NameRecord struct {
	Service domain.NameService
}

func (NameRecord) Name() string { return "name_record" }

func (n NameRecord) Resolve(ctx context.Context, name string) (string, error) {
	addr, err := n.Service.ResolveAddress(ctx, name)
	if err != nil {
		return "", err
	}
	return domain.NormalizeAddress(addr)
}

// LegacyReverse accepts a name when the configured address reverse-resolves
// to it. It covers names whose forward record was never set.
type LegacyReverse struct {
	Service domain.NameService
	Address string
}

func (LegacyReverse) Name() string { return "legacy_reverse" }

func (l LegacyReverse) Resolve(ctx context.Context, name string) (string, error) {
	if l.Address == "" {
		return "", domain.ErrNotFound
	}
	names, err := l.Service.ReverseResolve(ctx, l.Address)
	if err != nil {
		return "", err
	}
	for _, n := range names {
		if strings.EqualFold(n, name) {
			return domain.NormalizeAddress(l.Address)
		}
	}
	return "", domain.ErrNotFound
}

// Static returns a configured address for any name.
type Static struct {
	Address string
}

func (Static) Name() string { return "static" }

func (s Static) Resolve(_ context.Context, _ string) (string, error) {
	if s.Address == "" {
		return "", domain.ErrNotFound
	}
	return domain.NormalizeAddress(s.Address)
}
