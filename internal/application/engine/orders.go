package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/rsibot/internal/domain"
	"github.com/alejandrodnm/rsibot/internal/ports"
	"github.com/google/uuid"
)

// Sizer computes the stake for a new order from live capital.
type Sizer struct {
	Balance ports.BalanceSource
	Pct     float64
	Floor   float64
}

// Size re-reads the balance on every call. An unreadable balance is
// domain.ErrCapitalUnknown: stale capital is never used for sizing.
func (s Sizer) Size(ctx context.Context) (stake, capital float64, err error) {
	capital, err = s.Balance.Balance(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("engine.Size: %w: %w", domain.ErrCapitalUnknown, err)
	}
	return domain.PositionSize(capital, s.Pct, s.Floor), capital, nil
}

// open sizes and places one order on b, switching to an alternate
// instrument once if the venue reports the current one unavailable.
func (e *Engine) open(ctx context.Context, b domain.AssetBinding, dir domain.Direction, rsi float64) error {
	stake, capital, err := e.sizer.Size(ctx)
	if err != nil {
		return fmt.Errorf("engine.open: %w", err)
	}
	if capital < stake {
		return fmt.Errorf("engine.open: %s: stake %.2f, capital %.2f: %w",
			b.Asset, stake, capital, domain.ErrInsufficientCapital)
	}

	for attempt := 1; attempt <= maxPlacementAttempts; attempt++ {
		req := domain.OrderRequest{
			ClientID:      uuid.NewString(),
			Instrument:    b.Instrument,
			Category:      b.Category,
			Direction:     dir,
			Stake:         stake,
			ExpiryMinutes: int(e.cfg.Expiry / time.Minute),
		}
		res, err := e.venue.PlaceOrder(ctx, req)
		if err != nil {
			return fmt.Errorf("engine.open: place %s: %w", b.Instrument, err)
		}
		if res.Accepted {
			e.track(b, dir, stake, capital, rsi, res.OrderID)
			return nil
		}
		if !res.Unavailable() {
			return fmt.Errorf("engine.open: %s: %q: %w", b.Instrument, res.Reason, domain.ErrOrderRejected)
		}

		slog.Warn("engine: instrument unavailable", "asset", b.Asset, "instrument", b.Instrument,
			"reason", res.Reason, "attempt", attempt)
		if attempt == maxPlacementAttempts {
			break
		}
		alt, ok, err := e.resolver.Alternate(ctx, b)
		if err != nil {
			slog.Warn("engine: alternate lookup failed", "asset", b.Asset, "err", err)
		}
		if !ok {
			delete(e.tradable, b.Asset)
			slog.Warn("engine: asset disabled until next resolution", "asset", b.Asset)
			return fmt.Errorf("engine.open: %s: no alternate: %w", b.Asset, domain.ErrInstrumentUnavailable)
		}
		slog.Info("engine: switching instrument", "asset", b.Asset, "from", b.Instrument, "to", alt.Instrument)
		e.tradable[b.Asset] = alt
		b = alt
	}
	return fmt.Errorf("engine.open: %s: %w", b.Asset, domain.ErrInstrumentUnavailable)
}

// track adds an accepted order to the active set.
func (e *Engine) track(b domain.AssetBinding, dir domain.Direction, stake, capital, rsi float64, id string) {
	now := e.now()
	o := domain.Order{
		ID:             id,
		Asset:          b.Asset,
		Instrument:     b.Instrument,
		Category:       b.Category,
		Direction:      dir,
		Stake:          stake,
		EntryTime:      now,
		ExpiryTime:     now.Add(e.cfg.Expiry),
		CapitalAtEntry: capital,
		RSI:            rsi,
	}
	e.active[b.Asset] = append(e.active[b.Asset], o)
	e.lastTouch = now
	e.observer.OrderPlaced(b.Asset, dir, stake)
	slog.Info("engine: order placed",
		"asset", b.Asset,
		"instrument", b.Instrument,
		"id", id,
		"direction", dir.Label(),
		"stake", fmt.Sprintf("%.2f", stake),
		"rsi", rsi,
		"expiry", o.ExpiryTime.Format("15:04:05"),
	)
}

// resolvedSet remembers the most recent resolved order ids, oldest evicted first.
type resolvedSet struct {
	limit int
	order []string
	seen  map[string]struct{}
}

func newResolvedSet(limit int) *resolvedSet {
	return &resolvedSet{limit: limit, seen: make(map[string]struct{})}
}

func (r *resolvedSet) has(id string) bool {
	_, ok := r.seen[id]
	return ok
}

func (r *resolvedSet) add(id string) {
	if r.has(id) {
		return
	}
	r.order = append(r.order, id)
	r.seen[id] = struct{}{}
	for len(r.order) > r.limit {
		delete(r.seen, r.order[0])
		r.order = r.order[1:]
	}
}

func (r *resolvedSet) list() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
