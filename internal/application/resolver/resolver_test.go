package resolver_test

import (
	"context"
	"errors"
	"testing"

	"github.com/alejandrodnm/rsibot/internal/application/resolver"
	"github.com/alejandrodnm/rsibot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type catalog struct {
	open  domain.OpenInstruments
	err   error
	calls int
}

func (c *catalog) OpenInstruments(context.Context) (domain.OpenInstruments, error) {
	c.calls++
	return c.open, c.err
}

func TestResolveAll_MappedClosedIsDropped(t *testing.T) {
	src := &catalog{open: domain.OpenInstruments{
		domain.CategoryBinary: {"EURUSD": false, "EURUSD-OTC": true},
		domain.CategoryTurbo:  {"EURUSD": false, "EURUSD-OTC": true},
	}}
	r := resolver.New(src, resolver.Config{Mapping: map[string]string{"EURUSD": "EURUSD"}})

	bindings, err := r.ResolveAll(context.Background(), []string{"EURUSD"})
	require.NoError(t, err)
	assert.NotContains(t, bindings, "EURUSD")
}

func TestResolveAll_MappedPrefersFirstCategory(t *testing.T) {
	src := &catalog{open: domain.OpenInstruments{
		domain.CategoryBinary: {"GOLD": true},
		domain.CategoryTurbo:  {"GOLD": true},
	}}
	r := resolver.New(src, resolver.Config{Mapping: map[string]string{"XAUUSD": "GOLD"}})

	bindings, err := r.ResolveAll(context.Background(), []string{"XAUUSD"})
	require.NoError(t, err)
	require.Contains(t, bindings, "XAUUSD")
	b := bindings["XAUUSD"]
	assert.Equal(t, "GOLD", b.Instrument)
	assert.Equal(t, domain.CategoryBinary, b.Category)
	assert.True(t, b.Mapped)
}

func TestResolveAll_UnmappedVariants(t *testing.T) {
	src := &catalog{open: domain.OpenInstruments{
		domain.CategoryBinary: {"GBPUSD": false},
		domain.CategoryTurbo:  {"GBPUSD-OTC": true, "GBPUSD-op": true},
	}}
	r := resolver.New(src, resolver.Config{})

	bindings, err := r.ResolveAll(context.Background(), []string{"gbpusd"})
	require.NoError(t, err)
	b := bindings["gbpusd"]
	assert.Equal(t, "GBPUSD-OTC", b.Instrument)
	assert.Equal(t, domain.CategoryTurbo, b.Category)
	assert.False(t, b.Mapped)
}

func TestResolveAll_CatalogError(t *testing.T) {
	r := resolver.New(&catalog{err: errors.New("timeout")}, resolver.Config{})
	_, err := r.ResolveAll(context.Background(), []string{"EURUSD"})
	assert.Error(t, err)
}

func TestAlternate_Unmapped(t *testing.T) {
	src := &catalog{open: domain.OpenInstruments{
		domain.CategoryBinary: {"EURUSD": true, "EURUSD-OTC": true},
	}}
	r := resolver.New(src, resolver.Config{})

	alt, ok, err := r.Alternate(context.Background(), domain.AssetBinding{
		Asset: "EURUSD", Instrument: "EURUSD", Category: domain.CategoryBinary,
	})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "EURUSD-OTC", alt.Instrument)
}

func TestAlternate_MappedNeverSearches(t *testing.T) {
	src := &catalog{open: domain.OpenInstruments{
		domain.CategoryBinary: {"EURUSD-OTC": true},
	}}
	r := resolver.New(src, resolver.Config{Mapping: map[string]string{"EURUSD": "EURUSD"}})

	_, ok, err := r.Alternate(context.Background(), domain.AssetBinding{Asset: "EURUSD", Instrument: "EURUSD"})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, src.calls)
}

func TestAlternate_NoneLeft(t *testing.T) {
	src := &catalog{open: domain.OpenInstruments{
		domain.CategoryBinary: {"EURUSD": true},
	}}
	r := resolver.New(src, resolver.Config{})

	_, ok, err := r.Alternate(context.Background(), domain.AssetBinding{Asset: "EURUSD", Instrument: "EURUSD"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCandidates(t *testing.T) {
	r := resolver.New(&catalog{}, resolver.Config{Suffixes: []string{"-OTC", ""}})
	assert.Equal(t, []string{"AUDCHF-OTC", "AUDCHF"}, r.Candidates("audchf"))
}
