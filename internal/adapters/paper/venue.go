// Package paper is an in-memory venue for dry runs. Orders never leave the
// process: they settle at expiry with a configurable win probability.
package paper

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/alejandrodnm/rsibot/internal/domain"
	"github.com/google/uuid"
)

const (
	defaultBalance   = 10000
	defaultWinProb   = 0.5
	defaultPayoutPct = 85
	historyCapacity  = 500
)

// Config describes the simulated account.
type Config struct {
	StartBalance   float64
	WinProbability float64
	PayoutPct      float64
	TieProbability float64
	Instruments    []string // instrument ids offered in every category
	Seed           int64
}

type openOrder struct {
	req     domain.OrderRequest
	id      string
	opened  time.Time
	expires time.Time
}

// Venue implements ports.Venue in memory.
type Venue struct {
	cfg Config
	now func() time.Time

	mu      sync.Mutex
	rng     *rand.Rand
	balance float64
	open    map[string]openOrder
	settled map[string]domain.SettlementRecord
	history []domain.SettlementRecord
}

// New creates a paper venue. now may be nil to use the wall clock.
func New(cfg Config, now func() time.Time) *Venue {
	if cfg.StartBalance <= 0 {
		cfg.StartBalance = defaultBalance
	}
	if cfg.WinProbability <= 0 {
		cfg.WinProbability = defaultWinProb
	}
	if cfg.PayoutPct <= 0 {
		cfg.PayoutPct = defaultPayoutPct
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	if now == nil {
		now = time.Now
	}
	return &Venue{
		cfg:     cfg,
		now:     now,
		rng:     rand.New(rand.NewSource(cfg.Seed)),
		balance: cfg.StartBalance,
		open:    make(map[string]openOrder),
		settled: make(map[string]domain.SettlementRecord),
	}
}

func (v *Venue) Connect(context.Context) error { return nil }

func (v *Venue) Connected(context.Context) bool { return true }

func (v *Venue) Balance(context.Context) (float64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.settleDue()
	return domain.RoundMoney(v.balance), nil
}

// Candles returns a deterministic random walk per instrument and end time.
func (v *Venue) Candles(_ context.Context, instrument string, granularity time.Duration, count int, end time.Time) ([]domain.Bar, error) {
	if count <= 0 {
		return nil, nil
	}
	seed := int64(0)
	for _, c := range instrument {
		seed = seed*31 + int64(c)
	}
	step := end.Truncate(granularity).Unix() / int64(math.Max(1, granularity.Seconds()))
	rng := rand.New(rand.NewSource(seed ^ step))

	bars := make([]domain.Bar, count)
	price := 1.0 + float64(seed%1000)/10000
	from := end.Truncate(granularity).Add(-time.Duration(count) * granularity)
	for i := range bars {
		open := price
		price *= 1 + rng.NormFloat64()*0.0008
		hi := math.Max(open, price) * (1 + rng.Float64()*0.0002)
		lo := math.Min(open, price) * (1 - rng.Float64()*0.0002)
		bars[i] = domain.Bar{
			From:   from.Add(time.Duration(i) * granularity),
			To:     from.Add(time.Duration(i+1) * granularity),
			Open:   open,
			High:   hi,
			Low:    lo,
			Close:  price,
			Volume: float64(rng.Intn(500)),
		}
	}
	return bars, nil
}

func (v *Venue) PlaceOrder(_ context.Context, req domain.OrderRequest) (domain.PlacementResult, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.settleDue()

	if req.Stake <= 0 {
		return domain.PlacementResult{Reason: "invalid amount"}, nil
	}
	if req.Stake > v.balance {
		return domain.PlacementResult{Reason: "insufficient funds"}, nil
	}
	if !v.offers(req.Instrument) {
		return domain.PlacementResult{Reason: fmt.Sprintf("asset %s is not available", req.Instrument)}, nil
	}

	now := v.now()
	o := openOrder{
		req:     req,
		id:      uuid.NewString(),
		opened:  now,
		expires: now.Add(time.Duration(req.ExpiryMinutes) * time.Minute),
	}
	v.open[o.id] = o
	v.balance -= req.Stake
	return domain.PlacementResult{Accepted: true, OrderID: o.id}, nil
}

func (v *Venue) offers(instrument string) bool {
	if len(v.cfg.Instruments) == 0 {
		return true
	}
	for _, id := range v.cfg.Instruments {
		if id == instrument {
			return true
		}
	}
	return false
}

func (v *Venue) OpenInstruments(context.Context) (domain.OpenInstruments, error) {
	out := domain.OpenInstruments{
		domain.CategoryBinary: {},
		domain.CategoryTurbo:  {},
	}
	for _, id := range v.cfg.Instruments {
		out[domain.CategoryBinary][id] = true
		out[domain.CategoryTurbo][id] = true
	}
	return out, nil
}

func (v *Venue) Settlement(_ context.Context, orderID string) (domain.SettlementRecord, bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.settleDue()
	rec, ok := v.settled[orderID]
	return rec, ok, nil
}

func (v *Venue) SettlementFeed(context.Context) ([]domain.SettlementRecord, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.settleDue()
	out := make([]domain.SettlementRecord, len(v.history))
	copy(out, v.history)
	return out, nil
}

func (v *Venue) OrderStatus(ctx context.Context, orderID string) (domain.SettlementRecord, bool, error) {
	return v.Settlement(ctx, orderID)
}

func (v *Venue) History(_ context.Context, limit int) ([]domain.SettlementRecord, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.settleDue()
	n := min(limit, len(v.history))
	out := make([]domain.SettlementRecord, n)
	copy(out, v.history[len(v.history)-n:])
	return out, nil
}

// settleDue settles every expired order. Caller holds mu.
func (v *Venue) settleDue() {
	now := v.now()
	due := make([]openOrder, 0)
	for _, o := range v.open {
		if !now.Before(o.expires) {
			due = append(due, o)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].expires.Before(due[j].expires) })

	for _, o := range due {
		delete(v.open, o.id)
		pct := v.cfg.PayoutPct
		rec := domain.SettlementRecord{
			OrderID:   o.id,
			Asset:     o.req.Instrument,
			Direction: o.req.Direction,
			Stake:     o.req.Stake,
			PayoutPct: &pct,
			OpenedAt:  o.opened,
			ClosedAt:  o.expires,
		}
		var payout float64
		switch roll := v.rng.Float64(); {
		case roll < v.cfg.TieProbability:
			rec.Result = domain.ResultTie
			payout = o.req.Stake
		case roll < v.cfg.TieProbability+v.cfg.WinProbability:
			rec.Result = domain.ResultWin
			payout = domain.RoundMoney(o.req.Stake * (1 + pct/100))
		default:
			rec.Result = domain.ResultLoss
		}
		rec.WinAmount = &payout
		v.balance += payout
		v.settled[o.id] = rec
		v.history = append(v.history, rec)
		if len(v.history) > historyCapacity {
			v.history = v.history[len(v.history)-historyCapacity:]
		}
	}
}
