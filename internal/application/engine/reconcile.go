package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/alejandrodnm/rsibot/internal/domain"
)

// reconcileExpired settles every active order past its settle guard.
// Returns how many orders were resolved.
func (e *Engine) reconcileExpired(ctx context.Context) int {
	now := e.now()

	var due []domain.Order
	for _, asset := range slices.Sorted(maps.Keys(e.active)) {
		for _, o := range e.active[asset] {
			if o.SinceExpiry(now) >= e.cfg.SettleGuard {
				due = append(due, o)
			}
		}
	}

	resolved := 0
	for _, o := range due {
		if ctx.Err() != nil {
			break
		}
		if e.resolved.has(o.ID) {
			slog.Warn("engine: order already resolved, dropping", "asset", o.Asset, "id", o.ID)
			e.remove(o)
			continue
		}

		res, ok, err := e.settle(ctx, o, now)
		if ctx.Err() != nil {
			break
		}
		if err != nil {
			slog.Error("engine: settlement evidence unusable, booking loss", "asset", o.Asset, "id", o.ID, "err", err)
			res, ok = errorLoss(o, now), true
		}
		if !ok {
			since := o.SinceExpiry(now)
			if since <= e.cfg.SettleTimeout {
				slog.Debug("engine: settlement pending", "asset", o.Asset, "id", o.ID, "since_expiry", since.String())
				continue
			}
			slog.Error("engine: no settlement evidence, booking loss", "asset", o.Asset, "id", o.ID,
				"since_expiry", since.Round(time.Second).String())
			e.alert(ctx, "settlement_timeout",
				fmt.Sprintf("order %s on %s unresolved %.0fs after expiry, booked as loss", o.ID, o.Asset, since.Seconds()))
			res = timeoutLoss(o, now)
		}
		e.book(ctx, o, res)
		resolved++
	}
	return resolved
}

// settle gathers evidence in priority order and returns the first conclusive
// resolution. Venue failures count as missing evidence and the next source is
// tried; only a record that cannot be interpreted is returned as an error.
func (e *Engine) settle(ctx context.Context, o domain.Order, now time.Time) (domain.Resolution, bool, error) {
	// 1. Direct settlement record
	rec, found, err := e.venue.Settlement(ctx, o.ID)
	if noEvidence("direct", o, err) {
		found = false
	}
	if found {
		if err := checkRecord(o, rec); err != nil {
			return domain.Resolution{}, false, fmt.Errorf("engine.settle: direct: %w", err)
		}
		if res, ok := detectDirect(o, rec, e.cfg.PayoutPct, now); ok {
			return res, true, nil
		}
	}

	// 2. Settlement feed
	feed, err := e.venue.SettlementFeed(ctx)
	if noEvidence("feed", o, err) {
		feed = nil
	}
	if rec, ok := feedRecord(o, feed); ok {
		if err := checkRecord(o, rec); err != nil {
			return domain.Resolution{}, false, fmt.Errorf("engine.settle: feed: %w", err)
		}
	}
	if res, ok := detectFeed(o, feed, e.cfg.FallbackWinMult, now); ok {
		return res, true, nil
	}

	// 3. Balance delta
	if e.balanceAttributable(o) {
		capital, err := e.venue.Balance(ctx)
		if !noEvidence("balance", o, err) {
			if res, ok := detectBalance(o, capital, e.cfg.BalanceEpsilon, now); ok {
				return res, true, nil
			}
		}
	}

	// 4. Status query
	if o.SinceExpiry(now) >= e.cfg.StatusAfter {
		rec, found, err := e.venue.OrderStatus(ctx, o.ID)
		if noEvidence("status", o, err) {
			found = false
		}
		if found {
			if err := checkRecord(o, rec); err != nil {
				return domain.Resolution{}, false, fmt.Errorf("engine.settle: status: %w", err)
			}
			if res, ok := detectStatus(o, rec, e.cfg.FallbackWinMult, now); ok {
				return res, true, nil
			}
		}
	}
	return domain.Resolution{}, false, nil
}

// balanceAttributable reports whether a balance move can only come from o:
// it is the single active order and nothing else touched the balance since it was placed.
func (e *Engine) balanceAttributable(o domain.Order) bool {
	return e.activeCount() == 1 && !e.lastTouch.After(o.EntryTime)
}

// book applies a resolution exactly once.
func (e *Engine) book(ctx context.Context, o domain.Order, res domain.Resolution) {
	e.remove(o)
	if e.resolved.has(o.ID) {
		return
	}
	e.resolved.add(o.ID)
	e.lastTouch = res.ResolvedAt

	events := e.risk.Record(res)
	e.observer.OrderResolved(res)
	if e.journal != nil {
		if _, err := e.journal.Record(ctx, o, res); err != nil {
			slog.Warn("engine: journal write failed", "id", o.ID, "err", err)
		}
	}

	stats := e.risk.Stats()
	slog.Info("engine: order resolved",
		"asset", o.Asset,
		"id", o.ID,
		"outcome", res.Outcome,
		"source", res.Source,
		"stake", fmt.Sprintf("%.2f", res.Stake),
		"profit", fmt.Sprintf("%+.2f", res.Profit),
		"daily_profit", fmt.Sprintf("%.2f", stats.DailyProfit),
		"total_profit", fmt.Sprintf("%.2f", stats.TotalProfit),
	)

	e.handleEvents(ctx, events)
	if res.Outcome == domain.OutcomeLoss {
		e.persist(ctx)
	}
}

func (e *Engine) remove(o domain.Order) {
	orders := slices.DeleteFunc(e.active[o.Asset], func(x domain.Order) bool { return x.ID == o.ID })
	if len(orders) == 0 {
		delete(e.active, o.Asset)
		return
	}
	e.active[o.Asset] = orders
}

// noEvidence reports whether a venue call failed. Any failure, timeout or
// not, only means the evidence is unavailable this cycle.
func noEvidence(step string, o domain.Order, err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, domain.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		slog.Debug("engine: evidence timed out", "step", step, "id", o.ID, "err", err)
	} else {
		slog.Warn("engine: evidence unavailable", "step", step, "id", o.ID, "err", err)
	}
	return true
}
