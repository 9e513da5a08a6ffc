package storage_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alejandrodnm/rsibot/internal/adapters/storage"
	"github.com/alejandrodnm/rsibot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var journalT0 = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

func makeOrder(id, asset string, entry time.Time) domain.Order {
	return domain.Order{
		ID:             id,
		Asset:          asset,
		Instrument:     asset + "-OTC",
		Category:       domain.CategoryBinary,
		Direction:      domain.DirectionCall,
		Stake:          250,
		EntryTime:      entry,
		ExpiryTime:     entry.Add(2 * time.Minute),
		CapitalAtEntry: 10000,
		RSI:            33.1,
	}
}

func newJournal(t *testing.T) *storage.Journal {
	t.Helper()
	j, err := storage.NewJournal(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestJournal_RecordAndByID(t *testing.T) {
	j := newJournal(t)
	ctx := context.Background()

	o := makeOrder("1001", "EURUSD", journalT0)
	res := domain.NewResolution(o, domain.OutcomeWin, 462.5, domain.SourceDirect, o.ExpiryTime.Add(20*time.Second))

	inserted, err := j.Record(ctx, o, res)
	require.NoError(t, err)
	assert.True(t, inserted)

	gotOrder, gotRes, ok, err := j.ByID(ctx, "1001")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, o, gotOrder)
	assert.Equal(t, res, gotRes)
}

func TestJournal_DuplicateIgnored(t *testing.T) {
	j := newJournal(t)
	ctx := context.Background()

	o := makeOrder("1001", "EURUSD", journalT0)
	loss := domain.NewResolution(o, domain.OutcomeLoss, 0, domain.SourceTimeout, o.ExpiryTime.Add(2*time.Minute))
	win := domain.NewResolution(o, domain.OutcomeWin, 462.5, domain.SourceFeed, o.ExpiryTime.Add(3*time.Minute))

	inserted, err := j.Record(ctx, o, loss)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = j.Record(ctx, o, win)
	require.NoError(t, err)
	assert.False(t, inserted, "the first resolution is final")

	_, got, ok, err := j.ByID(ctx, "1001")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.OutcomeLoss, got.Outcome)
}

func TestJournal_ByIDMissing(t *testing.T) {
	j := newJournal(t)

	_, _, ok, err := j.ByID(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestJournal_RecentNewestFirst(t *testing.T) {
	j := newJournal(t)
	ctx := context.Background()

	for i := range 5 {
		o := makeOrder(fmt.Sprintf("%d", 2000+i), "GBPUSD", journalT0.Add(time.Duration(i)*time.Hour))
		res := domain.NewResolution(o, domain.OutcomeLoss, 0, domain.SourceBalance, o.ExpiryTime.Add(16*time.Second))
		_, err := j.Record(ctx, o, res)
		require.NoError(t, err)
	}

	recent, err := j.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "2004", recent[0].OrderID)
	assert.Equal(t, "2003", recent[1].OrderID)
	assert.Equal(t, "2002", recent[2].OrderID)
}

func TestJournal_Totals(t *testing.T) {
	j := newJournal(t)
	ctx := context.Background()

	empty, err := j.Totals(ctx)
	require.NoError(t, err)
	assert.Zero(t, empty.Orders)
	assert.True(t, empty.First.IsZero())

	outcomes := []struct {
		outcome domain.Outcome
		payout  float64
	}{
		{domain.OutcomeWin, 462.5},
		{domain.OutcomeLoss, 0},
		{domain.OutcomeTie, 250},
		{domain.OutcomeWin, 450},
	}
	for i, oc := range outcomes {
		o := makeOrder(fmt.Sprintf("%d", 3000+i), "EURUSD", journalT0.Add(time.Duration(i)*10*time.Minute))
		res := domain.NewResolution(o, oc.outcome, oc.payout, domain.SourceDirect, o.ExpiryTime.Add(16*time.Second))
		_, err := j.Record(ctx, o, res)
		require.NoError(t, err)
	}

	tot, err := j.Totals(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, tot.Orders)
	assert.Equal(t, 2, tot.Wins)
	assert.Equal(t, 1, tot.Losses)
	assert.Equal(t, 1, tot.Ties)
	assert.InDelta(t, 212.5+(-250)+0+200, tot.Profit, 0.001)
	assert.InDelta(t, 1000, tot.Staked, 0.001)
	assert.Equal(t, journalT0.Add(2*time.Minute+16*time.Second), tot.First)
	assert.Equal(t, journalT0.Add(30*time.Minute+2*time.Minute+16*time.Second), tot.Last)
}
