// Package resolver binds configured assets to open venue instruments.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alejandrodnm/rsibot/internal/domain"
	"github.com/alejandrodnm/rsibot/internal/ports"
)

var (
	defaultSuffixes   = []string{"", "-OTC", "-op"}
	defaultCategories = []domain.Category{domain.CategoryBinary, domain.CategoryTurbo}
)

// Config controls how asset names are turned into instrument ids.
type Config struct {
	// Mapping pins an asset to one instrument name. Pinned assets never get alternates.
	Mapping map[string]string
	// Suffixes are appended to the upper-cased asset for unpinned assets, in order.
	Suffixes []string
	// Categories are searched in order for both pinned and unpinned assets.
	Categories []domain.Category
}

// Resolver finds open instruments for assets.
type Resolver struct {
	src ports.InstrumentSource
	cfg Config
}

// New creates a Resolver reading the catalog from src.
func New(src ports.InstrumentSource, cfg Config) *Resolver {
	if len(cfg.Suffixes) == 0 {
		cfg.Suffixes = defaultSuffixes
	}
	if len(cfg.Categories) == 0 {
		cfg.Categories = defaultCategories
	}
	return &Resolver{src: src, cfg: cfg}
}

// Candidates lists the instrument names tried for asset, in order.
func (r *Resolver) Candidates(asset string) []string {
	if name, ok := r.cfg.Mapping[asset]; ok {
		return []string{name}
	}
	upper := strings.ToUpper(asset)
	out := make([]string, 0, len(r.cfg.Suffixes))
	for _, s := range r.cfg.Suffixes {
		out = append(out, upper+s)
	}
	return out
}

// Resolve picks the first open candidate for asset in the given catalog.
func (r *Resolver) Resolve(open domain.OpenInstruments, asset string) (domain.AssetBinding, bool) {
	return r.first(open, asset, "")
}

func (r *Resolver) first(open domain.OpenInstruments, asset, exclude string) (domain.AssetBinding, bool) {
	_, mapped := r.cfg.Mapping[asset]
	candidates := r.Candidates(asset)
	for _, cat := range r.cfg.Categories {
		for _, name := range candidates {
			if name == exclude {
				continue
			}
			if open.IsOpen(cat, name) {
				return domain.AssetBinding{
					Asset:      asset,
					Instrument: name,
					Category:   cat,
					Open:       true,
					Mapped:     mapped,
				}, true
			}
		}
	}
	return domain.AssetBinding{}, false
}

// ResolveAll rebuilds the tradable set. Assets without an open instrument are left out.
func (r *Resolver) ResolveAll(ctx context.Context, assets []string) (map[string]domain.AssetBinding, error) {
	open, err := r.src.OpenInstruments(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolver.ResolveAll: open instruments: %w", err)
	}

	bindings := make(map[string]domain.AssetBinding, len(assets))
	for _, asset := range assets {
		b, ok := r.Resolve(open, asset)
		if !ok {
			slog.Warn("asset not available", "asset", asset, "candidates", r.Candidates(asset))
			continue
		}
		bindings[asset] = b
		slog.Info("asset available", "asset", asset, "instrument", b.Instrument, "category", b.Category)
	}

	slog.Info("assets resolved", "available", len(bindings), "configured", len(assets))
	return bindings, nil
}

// Alternate looks for another open instrument for an asset whose current one failed.
// Pinned assets have no alternates.
func (r *Resolver) Alternate(ctx context.Context, current domain.AssetBinding) (domain.AssetBinding, bool, error) {
	if _, pinned := r.cfg.Mapping[current.Asset]; pinned || current.Mapped {
		return domain.AssetBinding{}, false, nil
	}
	open, err := r.src.OpenInstruments(ctx)
	if err != nil {
		return domain.AssetBinding{}, false, fmt.Errorf("resolver.Alternate: open instruments: %w", err)
	}
	b, ok := r.first(open, current.Asset, current.Instrument)
	return b, ok, nil
}

