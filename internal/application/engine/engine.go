// Package engine runs the decision loop: risk gate, reconciliation of expired
// orders, RSI signal scan and order placement.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/alejandrodnm/rsibot/internal/application/risk"
	"github.com/alejandrodnm/rsibot/internal/domain"
	"github.com/alejandrodnm/rsibot/internal/indicator"
	"github.com/alejandrodnm/rsibot/internal/ports"
)

const (
	defaultRSIPeriod      = 14
	defaultOversold       = 35
	defaultOverbought     = 65
	defaultExpiry         = 2 * time.Minute
	defaultCandleSize     = 5 * time.Minute
	defaultCandleCount    = 100
	defaultPositionPct    = 0.025
	defaultPositionFloor  = 4000
	defaultSignalSpacing  = time.Hour
	defaultCycle          = 15 * time.Second
	defaultMinSleep       = 5 * time.Second
	defaultStopLossSleep  = 5 * time.Minute
	defaultReconnectSleep = 5 * time.Second
	defaultSaveEvery      = 30
	defaultResolveEvery   = 100
	defaultSettleGuard    = 15 * time.Second
	minSettleGuard        = 10 * time.Second
	defaultStatusAfter    = 20 * time.Second
	defaultSettleTimeout  = 120 * time.Second
	defaultBalanceEps     = 0.10
	defaultPayoutPct      = 85
	defaultFallbackMult   = 1.80
	defaultResolvedMemory = 1000
	defaultStrategyMode   = "rsi"
	maxPlacementAttempts  = 2
)

// Config holds every strategy and cadence parameter of the loop.
type Config struct {
	Assets []string

	RSIPeriod   int
	Oversold    float64
	Overbought  float64
	Expiry      time.Duration
	CandleSize  time.Duration
	CandleCount int

	PositionPct   float64
	PositionFloor float64
	SignalSpacing time.Duration

	Cycle          time.Duration
	MinSleep       time.Duration
	StopLossSleep  time.Duration
	ReconnectSleep time.Duration
	SaveEvery      int
	ResolveEvery   int

	SettleGuard     time.Duration
	StatusAfter     time.Duration
	SettleTimeout   time.Duration
	BalanceEpsilon  float64
	PayoutPct       float64
	FallbackWinMult float64
	ResolvedMemory  int

	StrategyMode string
	Risk         risk.Config
}

func (c *Config) setDefaults() {
	if c.RSIPeriod <= 0 {
		c.RSIPeriod = defaultRSIPeriod
	}
	if c.Oversold <= 0 {
		c.Oversold = defaultOversold
	}
	if c.Overbought <= 0 {
		c.Overbought = defaultOverbought
	}
	if c.Expiry <= 0 {
		c.Expiry = defaultExpiry
	}
	if c.CandleSize <= 0 {
		c.CandleSize = defaultCandleSize
	}
	if c.CandleCount <= 0 {
		c.CandleCount = defaultCandleCount
	}
	if c.PositionPct <= 0 {
		c.PositionPct = defaultPositionPct
	}
	if c.PositionFloor <= 0 {
		c.PositionFloor = defaultPositionFloor
	}
	if c.SignalSpacing <= 0 {
		c.SignalSpacing = defaultSignalSpacing
	}
	if c.Cycle <= 0 {
		c.Cycle = defaultCycle
	}
	if c.MinSleep <= 0 {
		c.MinSleep = defaultMinSleep
	}
	if c.StopLossSleep <= 0 {
		c.StopLossSleep = defaultStopLossSleep
	}
	if c.ReconnectSleep <= 0 {
		c.ReconnectSleep = defaultReconnectSleep
	}
	if c.SaveEvery <= 0 {
		c.SaveEvery = defaultSaveEvery
	}
	if c.ResolveEvery <= 0 {
		c.ResolveEvery = defaultResolveEvery
	}
	if c.SettleGuard <= 0 {
		c.SettleGuard = defaultSettleGuard
	}
	c.SettleGuard = max(c.SettleGuard, minSettleGuard)
	if c.StatusAfter <= 0 {
		c.StatusAfter = defaultStatusAfter
	}
	if c.SettleTimeout <= 0 {
		c.SettleTimeout = defaultSettleTimeout
	}
	if c.BalanceEpsilon <= 0 {
		c.BalanceEpsilon = defaultBalanceEps
	}
	if c.PayoutPct <= 0 {
		c.PayoutPct = defaultPayoutPct
	}
	if c.FallbackWinMult <= 0 {
		c.FallbackWinMult = defaultFallbackMult
	}
	if c.ResolvedMemory <= 0 {
		c.ResolvedMemory = defaultResolvedMemory
	}
	if c.StrategyMode == "" {
		c.StrategyMode = defaultStrategyMode
	}
}

// Binder keeps assets bound to open instruments.
type Binder interface {
	ResolveAll(ctx context.Context, assets []string) (map[string]domain.AssetBinding, error)
	Alternate(ctx context.Context, current domain.AssetBinding) (domain.AssetBinding, bool, error)
}

// Deps are the collaborators of the engine. Journal, Alerter, Observer and Now are optional.
type Deps struct {
	Venue    ports.Venue
	Resolver Binder
	Store    ports.StateStore
	Journal  ports.Journal
	Alerter  ports.Alerter
	Observer ports.Observer
	Now      func() time.Time
}

// ActionKind tells the caller what the last tick did.
type ActionKind string

const (
	ActionProceed   ActionKind = "proceed"
	ActionVetoed    ActionKind = "vetoed"
	ActionReconnect ActionKind = "reconnect"
)

// Action is the result of one Tick: what happened and how long to wait.
type Action struct {
	Kind   ActionKind
	Sleep  time.Duration
	Reason string
}

// Engine is the single-goroutine control loop. Not safe for concurrent use.
type Engine struct {
	cfg      Config
	venue    ports.Venue
	resolver Binder
	store    ports.StateStore
	journal  ports.Journal
	alerter  ports.Alerter
	observer ports.Observer
	now      func() time.Time
	sizer    Sizer

	risk       *risk.Controller
	active     map[string][]domain.Order
	lastSignal map[string]time.Time
	tradable   map[string]domain.AssetBinding
	resolved   *resolvedSet

	cycle       int
	needResolve bool
	capital     float64
	capitalOK   bool
	// Last time the account balance moved because of this engine (placement or settlement).
	lastTouch time.Time
}

// New creates an engine. Call Restore before the first Tick.
func New(cfg Config, deps Deps) *Engine {
	cfg.setDefaults()
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Alerter == nil {
		deps.Alerter = nopAlerter{}
	}
	if deps.Observer == nil {
		deps.Observer = nopObserver{}
	}
	return &Engine{
		cfg:        cfg,
		venue:      deps.Venue,
		resolver:   deps.Resolver,
		store:      deps.Store,
		journal:    deps.Journal,
		alerter:    deps.Alerter,
		observer:   deps.Observer,
		now:        deps.Now,
		sizer:      Sizer{Balance: deps.Venue, Pct: cfg.PositionPct, Floor: cfg.PositionFloor},
		active:     make(map[string][]domain.Order),
		lastSignal: make(map[string]time.Time),
		tradable:   make(map[string]domain.AssetBinding),
		resolved:   newResolvedSet(cfg.ResolvedMemory),
	}
}

// Restore connects to the venue, reads the starting capital, reloads the
// persisted snapshot and binds every configured asset. Only venue failures
// are fatal; an unreadable snapshot is logged and the engine starts fresh.
func (e *Engine) Restore(ctx context.Context) error {
	if err := e.venue.Connect(ctx); err != nil {
		return fmt.Errorf("engine.Restore: connect: %w", err)
	}
	capital, err := e.venue.Balance(ctx)
	if err != nil {
		return fmt.Errorf("engine.Restore: balance: %w", err)
	}
	now := e.now()
	e.capital, e.capitalOK = capital, true
	e.risk = risk.New(e.cfg.Risk, capital, now)
	e.observer.Capital(capital)

	snap, ok, err := e.store.Load(ctx)
	if err != nil {
		slog.Warn("engine: saved state unusable, starting fresh", "err", err)
		e.alert(ctx, "state_load_failed", err.Error())
		ok = false
	}
	if ok {
		e.risk.Restore(snap.RiskState, snap.Statistics)
		for asset, orders := range snap.ActiveOrders {
			if len(orders) > 0 {
				e.active[asset] = slices.Clone(orders)
			}
		}
		for asset, t := range snap.LastSignal {
			if !t.IsZero() {
				e.lastSignal[asset] = t.Time
			}
		}
		for _, id := range snap.ResolvedOrders {
			e.resolved.add(id)
		}
		wins, losses, ties := snap.Totals()
		slog.Info("engine: state restored",
			"saved_at", snap.Timestamp.Format(time.RFC3339),
			"active_orders", e.activeCount(),
			"wins", wins, "losses", losses, "ties", ties,
			"total_profit", fmt.Sprintf("%.2f", snap.TotalProfit),
			"absolute_stop", snap.AbsoluteStopTriggered,
		)
	} else if err == nil {
		slog.Info("engine: no saved state, starting fresh")
	}
	st := e.risk.State()
	slog.Info("engine: capital",
		"initial", fmt.Sprintf("%.2f", capital),
		"absolute_stop_threshold", fmt.Sprintf("%.2f", st.AbsoluteStopThreshold),
		"warmup_remaining", e.risk.WarmupRemaining(now).String(),
	)

	e.rebind(ctx)
	e.persist(ctx)
	return nil
}

// Tick runs one cycle and tells the caller how long to wait before the next.
func (e *Engine) Tick(ctx context.Context) Action {
	start := e.now()
	e.cycle++

	// 1. Connectivity
	if !e.venue.Connected(ctx) {
		slog.Warn("engine: venue disconnected, reconnecting")
		if err := e.venue.Connect(ctx); err != nil {
			slog.Error("engine: reconnect failed", "err", err)
		}
		e.afterCycle(ctx)
		return Action{Kind: ActionReconnect, Sleep: e.cfg.ReconnectSleep, Reason: "venue disconnected"}
	}

	// 2. Live capital
	e.refreshCapital(ctx)

	// 3. Risk gate
	d := e.risk.Evaluate(start, e.capital, e.capitalOK, e.activeCount())
	e.handleEvents(ctx, d.Events)
	if d.Vetoed() {
		e.observer.Vetoed(string(d.Veto))
		sleep := e.cfg.Cycle
		if d.StopLoss() {
			sleep = e.cfg.StopLossSleep
		}
		e.afterCycle(ctx)
		return Action{Kind: ActionVetoed, Sleep: sleep, Reason: string(d.Veto)}
	}

	// 4. Reconciliation
	if n := e.reconcileExpired(ctx); n > 0 {
		e.refreshCapital(ctx)
		d = e.risk.Evaluate(e.now(), e.capital, e.capitalOK, e.activeCount())
		e.handleEvents(ctx, d.Events)
		if d.Vetoed() {
			e.observer.Vetoed(string(d.Veto))
			e.afterCycle(ctx)
			return Action{Kind: ActionVetoed, Sleep: e.cfg.Cycle, Reason: string(d.Veto)}
		}
	}

	// 5. Instrument bindings
	if e.needResolve || e.cycle%e.cfg.ResolveEvery == 0 {
		e.rebind(ctx)
	}

	// 6. Signal scan
	e.scan(ctx)

	e.afterCycle(ctx)
	elapsed := e.now().Sub(start)
	return Action{Kind: ActionProceed, Sleep: max(e.cfg.MinSleep, e.cfg.Cycle-elapsed)}
}

// Run ticks until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("engine: started",
		"assets", len(e.cfg.Assets),
		"tradable", len(e.tradable),
		"rsi_period", e.cfg.RSIPeriod,
		"oversold", e.cfg.Oversold,
		"overbought", e.cfg.Overbought,
	)
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}

		a := e.Tick(ctx)
		if a.Kind != ActionProceed {
			slog.Info("engine: cycle skipped", "kind", a.Kind, "reason", a.Reason, "sleep", a.Sleep.String())
		} else {
			slog.Debug("engine: cycle done", "cycle", e.cycle, "sleep", a.Sleep.String())
		}
		timer.Reset(a.Sleep)
	}
}

// Shutdown flushes the snapshot. Pass a fresh context, not the cancelled run context.
func (e *Engine) Shutdown(ctx context.Context) error {
	if e.risk == nil {
		return nil
	}
	if err := e.store.Save(ctx, e.Snapshot()); err != nil {
		return fmt.Errorf("engine.Shutdown: save state: %w", err)
	}
	slog.Info("engine: state saved", "active_orders", e.activeCount())
	return nil
}

// Snapshot returns everything needed to resume after a restart.
func (e *Engine) Snapshot() domain.Snapshot {
	snap := domain.Snapshot{
		Timestamp:      e.now(),
		StrategyMode:   e.cfg.StrategyMode,
		ActiveOrders:   make(map[string][]domain.Order, len(e.active)),
		LastSignal:     make(map[string]domain.SignalTime, len(e.cfg.Assets)),
		ResolvedOrders: e.resolved.list(),
		Statistics:     e.risk.Stats(),
		RiskState:      e.risk.State(),
	}
	for asset, orders := range e.active {
		snap.ActiveOrders[asset] = slices.Clone(orders)
	}
	for _, asset := range e.cfg.Assets {
		snap.LastSignal[asset] = domain.SignalTime{Time: e.lastSignal[asset]}
	}
	return snap
}

// Capital returns the last live balance read and whether it is known.
func (e *Engine) Capital() (float64, bool) {
	return e.capital, e.capitalOK
}

// Tradable returns a copy of the current asset bindings.
func (e *Engine) Tradable() map[string]domain.AssetBinding {
	return maps.Clone(e.tradable)
}

// ActiveOrders returns the orders waiting for settlement.
func (e *Engine) ActiveOrders() []domain.Order {
	var out []domain.Order
	for _, asset := range slices.Sorted(maps.Keys(e.active)) {
		out = append(out, e.active[asset]...)
	}
	return out
}

func (e *Engine) refreshCapital(ctx context.Context) {
	capital, err := e.venue.Balance(ctx)
	if err != nil {
		slog.Warn("engine: balance unavailable", "err", err)
		e.capitalOK = false
		return
	}
	e.capital, e.capitalOK = capital, true
	e.observer.Capital(capital)
}

func (e *Engine) afterCycle(ctx context.Context) {
	e.observer.ActiveOrders(e.activeCount())
	if e.cycle%e.cfg.SaveEvery == 0 {
		e.persist(ctx)
	}
}

// rebind re-runs the resolver over every configured asset.
func (e *Engine) rebind(ctx context.Context) {
	bindings, err := e.resolver.ResolveAll(ctx, e.cfg.Assets)
	if err != nil {
		slog.Warn("engine: instrument resolution failed, keeping previous bindings", "err", err)
		e.needResolve = true
		return
	}
	e.needResolve = false
	e.tradable = bindings
	slog.Info("engine: instruments resolved", "tradable", len(bindings), "configured", len(e.cfg.Assets))
}

// scan looks for RSI signals on every tradable asset, in configured order.
func (e *Engine) scan(ctx context.Context) {
	now := e.now()
	if e.risk.WarmingUp(now) {
		slog.Debug("engine: warmup active", "remaining", e.risk.WarmupRemaining(now).String())
		return
	}

	for _, asset := range e.cfg.Assets {
		if ctx.Err() != nil {
			return
		}
		b, ok := e.tradable[asset]
		if !ok {
			continue
		}
		if len(e.active[asset]) > 0 {
			continue
		}
		if last, ok := e.lastSignal[asset]; ok && now.Sub(last) < e.cfg.SignalSpacing {
			continue
		}

		bars, err := e.venue.Candles(ctx, b.Instrument, e.cfg.CandleSize, e.cfg.CandleCount, now)
		if err != nil {
			slog.Warn("engine: candles unavailable", "asset", asset, "instrument", b.Instrument, "err", err)
			continue
		}
		rsi, ok := indicator.RSI(bars, e.cfg.RSIPeriod)
		if !ok {
			slog.Debug("engine: not enough bars", "asset", asset, "bars", len(bars))
			continue
		}
		dir, ok := indicator.Classify(rsi, e.cfg.Oversold, e.cfg.Overbought)
		if !ok {
			continue
		}

		slog.Info("engine: signal", "asset", asset, "rsi", rsi, "direction", dir.Label())
		e.lastSignal[asset] = now
		if err := e.open(ctx, b, dir, rsi); err != nil {
			switch {
			case errors.Is(err, domain.ErrInsufficientCapital), errors.Is(err, domain.ErrCapitalUnknown):
				slog.Warn("engine: order not sized", "asset", asset, "err", err)
			default:
				slog.Error("engine: order failed", "asset", asset, "err", err)
			}
		}
	}
}

// persist saves the snapshot. Failures are logged and never stop the loop.
func (e *Engine) persist(ctx context.Context) {
	if err := e.store.Save(ctx, e.Snapshot()); err != nil {
		slog.Warn("engine: save state failed", "err", err)
	}
}

func (e *Engine) handleEvents(ctx context.Context, events []risk.Event) {
	for _, ev := range events {
		if !ev.Critical() {
			slog.Info("engine: risk event", "event", ev.Kind, "detail", ev.Message)
			continue
		}
		slog.Warn("engine: risk control fired", "event", ev.Kind, "detail", ev.Message)
		e.alert(ctx, string(ev.Kind), ev.Message)
		e.persist(ctx)
	}
}

func (e *Engine) alert(ctx context.Context, title, msg string) {
	if err := e.alerter.Alert(ctx, title, msg); err != nil {
		slog.Warn("engine: alert failed", "title", title, "err", err)
	}
}

func (e *Engine) activeCount() int {
	n := 0
	for _, orders := range e.active {
		n += len(orders)
	}
	return n
}

type nopAlerter struct{}

func (nopAlerter) Alert(context.Context, string, string) error { return nil }

type nopObserver struct{}

func (nopObserver) OrderPlaced(string, domain.Direction, float64) {}
func (nopObserver) OrderResolved(domain.Resolution)               {}
func (nopObserver) Vetoed(string)                                 {}
func (nopObserver) Capital(float64)                               {}
func (nopObserver) ActiveOrders(int)                              {}
