package engine_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alejandrodnm/rsibot/internal/domain"
	"github.com/alejandrodnm/rsibot/internal/ports"
)

// clock is a manually advanced time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock(t time.Time) *clock { return &clock{now: t} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeVenue is an in-memory ports.Venue. Nothing settles unless the test says so.
type fakeVenue struct {
	mu sync.Mutex

	connected    bool
	connectCalls int
	balance      float64
	balanceErr   error

	open   domain.OpenInstruments
	bars   map[string][]domain.Bar
	replay []domain.PlacementResult
	placed []domain.OrderRequest
	nextID int

	direct      map[string]domain.SettlementRecord
	directErr   error
	feed        []domain.SettlementRecord
	status      map[string]domain.SettlementRecord
	statusCalls int
}

var _ ports.Venue = (*fakeVenue)(nil)

func newFakeVenue(balance float64) *fakeVenue {
	return &fakeVenue{
		connected: true,
		balance:   balance,
		open:      domain.OpenInstruments{},
		bars:      make(map[string][]domain.Bar),
		direct:    make(map[string]domain.SettlementRecord),
		status:    make(map[string]domain.SettlementRecord),
		nextID:    1000,
	}
}

func (f *fakeVenue) setOpen(cat domain.Category, ids ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.open[cat] == nil {
		f.open[cat] = make(map[string]bool)
	}
	for _, id := range ids {
		f.open[cat][id] = true
	}
}

func (f *fakeVenue) setBars(instrument string, closes ...float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	bars := make([]domain.Bar, len(closes))
	for i, c := range closes {
		bars[i] = domain.Bar{Open: c, High: c, Low: c, Close: c}
	}
	f.bars[instrument] = bars
}

func (f *fakeVenue) setDirect(rec domain.SettlementRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.direct[rec.OrderID] = rec
}

func (f *fakeVenue) setStatus(rec domain.SettlementRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status[rec.OrderID] = rec
}

func (f *fakeVenue) setBalance(v float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balance = v
}

func (f *fakeVenue) placedRequests() []domain.OrderRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.OrderRequest(nil), f.placed...)
}

func (f *fakeVenue) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectCalls++
	f.connected = true
	return nil
}

func (f *fakeVenue) Connected(context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeVenue) Balance(context.Context) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balance, f.balanceErr
}

func (f *fakeVenue) OpenInstruments(context.Context) (domain.OpenInstruments, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open, nil
}

func (f *fakeVenue) Candles(_ context.Context, instrument string, _ time.Duration, _ int, _ time.Time) ([]domain.Bar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	bars, ok := f.bars[instrument]
	if !ok {
		return nil, fmt.Errorf("no candles for %s", instrument)
	}
	return bars, nil
}

func (f *fakeVenue) PlaceOrder(_ context.Context, req domain.OrderRequest) (domain.PlacementResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.placed = append(f.placed, req)
	if len(f.replay) > 0 {
		res := f.replay[0]
		f.replay = f.replay[1:]
		if !res.Accepted {
			return res, nil
		}
	}
	f.nextID++
	return domain.PlacementResult{Accepted: true, OrderID: fmt.Sprintf("%d", f.nextID)}, nil
}

func (f *fakeVenue) Settlement(_ context.Context, id string) (domain.SettlementRecord, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.directErr != nil {
		return domain.SettlementRecord{}, false, f.directErr
	}
	rec, ok := f.direct[id]
	return rec, ok, nil
}

func (f *fakeVenue) SettlementFeed(context.Context) ([]domain.SettlementRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.feed, nil
}

func (f *fakeVenue) OrderStatus(_ context.Context, id string) (domain.SettlementRecord, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	rec, ok := f.status[id]
	return rec, ok, nil
}

func (f *fakeVenue) History(context.Context, int) ([]domain.SettlementRecord, error) {
	return nil, errors.New("not implemented")
}

// memStore is an in-memory ports.StateStore.
type memStore struct {
	mu    sync.Mutex
	snap  domain.Snapshot
	ok    bool
	saves int

	loadErr error
}

func (m *memStore) Load(context.Context) (domain.Snapshot, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return domain.Snapshot{}, false, m.loadErr
	}
	return m.snap, m.ok, nil
}

func (m *memStore) Save(_ context.Context, snap domain.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap, m.ok = snap, true
	m.saves++
	return nil
}

// memJournal records every resolution it is given.
type memJournal struct {
	mu      sync.Mutex
	records map[string]domain.Resolution
	calls   int
}

func newMemJournal() *memJournal {
	return &memJournal{records: make(map[string]domain.Resolution)}
}

func (j *memJournal) Record(_ context.Context, o domain.Order, res domain.Resolution) (bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.calls++
	if _, ok := j.records[o.ID]; ok {
		return false, nil
	}
	j.records[o.ID] = res
	return true, nil
}

func (j *memJournal) ByID(_ context.Context, id string) (domain.Order, domain.Resolution, bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	res, ok := j.records[id]
	return domain.Order{ID: id}, res, ok, nil
}

func (j *memJournal) Recent(context.Context, int) ([]domain.Resolution, error) { return nil, nil }

func (j *memJournal) Totals(context.Context) (ports.JournalTotals, error) {
	return ports.JournalTotals{}, nil
}

// alertLog captures alerts.
type alertLog struct {
	mu     sync.Mutex
	titles []string
}

func (a *alertLog) Alert(_ context.Context, title, _ string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.titles = append(a.titles, title)
	return nil
}

func (a *alertLog) has(title string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, t := range a.titles {
		if t == title {
			return true
		}
	}
	return false
}

func rising(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1.10 + float64(i)*0.001
	}
	return out
}

func falling(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1.30 - float64(i)*0.001
	}
	return out
}

func sideways(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1.20
		if i%2 == 1 {
			out[i] = 1.21
		}
	}
	return out
}
