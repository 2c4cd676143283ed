// Package registry supplies the name registry's tiered price table.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/domain"
	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/platform/sui"
)

const (
	MinLabelLength = 3
	MaxLabelLength = 63

	cacheKey        = "registry:price_table"
	DefaultCacheTTL = 10 * time.Minute
)

// DefaultTable is the registry's published pricing.
func DefaultTable() domain.PriceTable {
	return domain.PriceTable{Tiers: []domain.PriceTier{
		{MinLength: 3, MaxLength: 3, AnnualUSD: decimal.NewFromInt(500)},
		{MinLength: 4, MaxLength: 4, AnnualUSD: decimal.NewFromInt(100)},
		{MinLength: 5, MaxLength: MaxLabelLength, AnnualUSD: decimal.NewFromInt(20)},
	}}
}

// ObjectReader reads on-chain objects.
type ObjectReader interface {
	GetObject(ctx context.Context, id string) (sui.ObjectData, error)
}

// Config selects where the price table comes from.
type Config struct {
	// PricingObjectID is the on-chain pricing config. Empty skips the chain read.
	PricingObjectID string
	StableDecimals  int32
	CacheTTL        time.Duration
	Static          domain.PriceTable
}

// Source implements domain.PriceTableSource as a chain of the cache, the
// on-chain pricing config and the static table.
type Source struct {
	cfg    Config
	cache  domain.Cache
	reader ObjectReader
	logger *slog.Logger
}

// NewSource creates a Source. reader and cache may be nil.
func NewSource(cfg Config, reader ObjectReader, cache domain.Cache, logger *slog.Logger) *Source {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if len(cfg.Static.Tiers) == 0 {
		cfg.Static = DefaultTable()
	}
	return &Source{
		cfg:    cfg,
		cache:  cache,
		reader: reader,
		logger: logger.With(slog.String("component", "registry")),
	}
}

var _ domain.PriceTableSource = (*Source)(nil)

// PriceTable returns the first table any strategy produces.
func (s *Source) PriceTable(ctx context.Context) (domain.PriceTable, error) {
	strategies := []struct {
		name  string
		fetch func(context.Context) (domain.PriceTable, error)
	}{
		{"cache", s.fromCache},
		{"chain", s.fromChain},
		{"static", s.fromStatic},
	}

	var errs []error
	for _, st := range strategies {
		t, err := st.fetch(ctx)
		if err == nil {
			return t, nil
		}
		if st.name == "chain" {
			s.logger.WarnContext(ctx, "on-chain price table unavailable", slog.String("error", err.Error()))
		}
		errs = append(errs, fmt.Errorf("%s: %w", st.name, err))
	}
	return domain.PriceTable{}, fmt.Errorf("registry: price table: %w", errors.Join(errs...))
}

// AnnualPrice returns the USD price per year for a label length.
func AnnualPrice(t domain.PriceTable, length int) (decimal.Decimal, error) {
	p, ok := t.Lookup(length)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: length %d", domain.ErrNoPriceTier, length)
	}
	return p, nil
}

func (s *Source) fromCache(ctx context.Context) (domain.PriceTable, error) {
	if s.cache == nil {
		return domain.PriceTable{}, domain.ErrNotFound
	}
	raw, err := s.cache.Get(ctx, cacheKey)
	if err != nil {
		return domain.PriceTable{}, err
	}
	var t domain.PriceTable
	if err := json.Unmarshal(raw, &t); err != nil {
		return domain.PriceTable{}, fmt.Errorf("decode: %w", err)
	}
	return t, nil
}

func (s *Source) fromChain(ctx context.Context) (domain.PriceTable, error) {
	if s.reader == nil || s.cfg.PricingObjectID == "" {
		return domain.PriceTable{}, fmt.Errorf("%w: no pricing object configured", domain.ErrNotFound)
	}
	obj, err := s.reader.GetObject(ctx, s.cfg.PricingObjectID)
	if err != nil {
		return domain.PriceTable{}, err
	}
	if obj.Content == nil {
		return domain.PriceTable{}, fmt.Errorf("%w: pricing object has no content", domain.ErrNotFound)
	}
	t, err := parsePricingConfig(obj.Content.Fields, s.cfg.StableDecimals)
	if err != nil {
		return domain.PriceTable{}, err
	}

	if s.cache != nil {
		if raw, err := json.Marshal(t); err == nil {
			_ = s.cache.Set(ctx, cacheKey, raw, s.cfg.CacheTTL)
		}
	}
	return t, nil
}

func (s *Source) fromStatic(context.Context) (domain.PriceTable, error) {
	return s.cfg.Static, nil
}

// pricingFields mirrors the parsed Move content of a pricing config whose
// pricing map is a VecMap<Range, u64> of stable base units per year.
type pricingFields struct {
	Pricing struct {
		Fields struct {
			Contents []struct {
				Fields struct {
					Key struct {
						Fields struct {
							Pos0 json.Number `json:"pos0"`
							Pos1 json.Number `json:"pos1"`
						} `json:"fields"`
					} `json:"key"`
					Value json.Number `json:"value"`
				} `json:"fields"`
			} `json:"contents"`
		} `json:"fields"`
	} `json:"pricing"`
}

func parsePricingConfig(raw json.RawMessage, stableDecimals int32) (domain.PriceTable, error) {
	var f pricingFields
	if err := json.Unmarshal(raw, &f); err != nil {
		return domain.PriceTable{}, fmt.Errorf("decode pricing config: %w", err)
	}

	var t domain.PriceTable
	for _, entry := range f.Pricing.Fields.Contents {
		minLen, err1 := strconv.Atoi(entry.Fields.Key.Fields.Pos0.String())
		maxLen, err2 := strconv.Atoi(entry.Fields.Key.Fields.Pos1.String())
		units, err3 := domain.ParseAmount(entry.Fields.Value.String())
		if err := errors.Join(err1, err2, err3); err != nil {
			return domain.PriceTable{}, fmt.Errorf("decode pricing entry: %w", err)
		}
		t.Tiers = append(t.Tiers, domain.PriceTier{
			MinLength: minLen,
			MaxLength: maxLen,
			AnnualUSD: decimal.NewFromBigInt(units.Big(), -stableDecimals),
		})
	}
	if len(t.Tiers) == 0 {
		return domain.PriceTable{}, fmt.Errorf("%w: empty pricing config", domain.ErrNotFound)
	}
	sort.Slice(t.Tiers, func(i, j int) bool { return t.Tiers[i].MinLength < t.Tiers[j].MinLength })
	return t, nil
}
