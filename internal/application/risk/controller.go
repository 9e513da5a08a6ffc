// Package risk decides, once per cycle, whether new trading is allowed.
package risk

import (
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/alejandrodnm/rsibot/internal/domain"
)

const (
	defaultAbsoluteStopPct = 0.75
	defaultPeriodStopPct   = 0.40
	defaultMaxDailyLosses  = 3
	defaultWarmup          = time.Hour
)

// Config holds the tunable thresholds of every layer.
type Config struct {
	AbsoluteStopPct           float64
	PeriodStopPct             float64
	MaxDailyConsecutiveLosses int
	Warmup                    time.Duration
}

// Veto names the layer that blocked trading.
type Veto string

const (
	VetoNone         Veto = ""
	VetoAbsoluteStop Veto = "absolute_stop_loss"
	VetoPeriodStop   Veto = "monthly_stop_loss"
	VetoProfitLock   Veto = "daily_profit_lock"
	VetoLossLock     Veto = "daily_loss_lock"
)

// EventKind identifies a state change worth reporting.
type EventKind string

const (
	EventAbsoluteStop   EventKind = "absolute_stop_loss"
	EventPeriodStop     EventKind = "monthly_stop_loss"
	EventProfitLock     EventKind = "daily_profit_lock"
	EventLossLock       EventKind = "daily_loss_lock"
	EventDayRollover    EventKind = "day_rollover"
	EventPeriodRollover EventKind = "period_rollover"
	EventNewLow         EventKind = "new_capital_low"
)

// Event is a state change produced while evaluating or recording.
type Event struct {
	Kind    EventKind
	Message string
}

// Critical reports whether the event deserves an out-of-band alert.
func (e Event) Critical() bool {
	switch e.Kind {
	case EventAbsoluteStop, EventPeriodStop, EventProfitLock, EventLossLock:
		return true
	}
	return false
}

// Decision is the outcome of one evaluation.
type Decision struct {
	Veto   Veto
	Events []Event
}

// Vetoed reports whether trading is blocked this cycle.
func (d Decision) Vetoed() bool { return d.Veto != VetoNone }

// StopLoss reports whether the veto comes from a capital stop rather than a daily lock.
func (d Decision) StopLoss() bool {
	return d.Veto == VetoAbsoluteStop || d.Veto == VetoPeriodStop
}

// Controller owns RiskState and Statistics. Not safe for concurrent use:
// only the control loop goroutine touches it.
type Controller struct {
	cfg   Config
	start time.Time
	state domain.RiskState
	stats domain.Statistics
}

// New creates a controller for a process started at start with initialCapital.
func New(cfg Config, initialCapital float64, start time.Time) *Controller {
	if cfg.AbsoluteStopPct <= 0 {
		cfg.AbsoluteStopPct = defaultAbsoluteStopPct
	}
	if cfg.PeriodStopPct <= 0 {
		cfg.PeriodStopPct = defaultPeriodStopPct
	}
	if cfg.MaxDailyConsecutiveLosses <= 0 {
		cfg.MaxDailyConsecutiveLosses = defaultMaxDailyLosses
	}
	if cfg.Warmup < 0 {
		cfg.Warmup = defaultWarmup
	}

	c := &Controller{cfg: cfg, start: start, stats: domain.NewStatistics()}
	c.state = domain.RiskState{
		LastDate:      domain.DateKey(start),
		CurrentPeriod: domain.PeriodKey(start),
	}
	c.state.Normalize()
	c.state.PeriodStartCapital[c.state.CurrentPeriod] = initialCapital
	c.stats.MinCapital = initialCapital
	c.applyConfig(initialCapital)
	return c
}

// Restore replaces the in-memory state with a persisted one. Capital
// thresholds are always recomputed from this process's initial capital.
func (c *Controller) Restore(state domain.RiskState, stats domain.Statistics) {
	initial := c.state.InitialCapital
	state.Normalize()
	stats.Normalize()
	if stats.MinCapital <= 0 {
		stats.MinCapital = initial
	}
	if state.LastDate == "" {
		state.LastDate = c.state.LastDate
	}
	if state.CurrentPeriod == "" {
		state.CurrentPeriod = c.state.CurrentPeriod
		state.PeriodStartCapital[state.CurrentPeriod] = initial
	}
	c.state = state
	c.stats = stats
	c.applyConfig(initial)
}

func (c *Controller) applyConfig(initialCapital float64) {
	c.state.InitialCapital = initialCapital
	c.state.AbsoluteStopPct = c.cfg.AbsoluteStopPct
	c.state.AbsoluteStopThreshold = domain.RoundMoney(initialCapital * (1 - c.cfg.AbsoluteStopPct))
	c.state.PeriodStopPct = c.cfg.PeriodStopPct
	c.state.MaxDailyConsecutiveLosses = c.cfg.MaxDailyConsecutiveLosses
}

// State returns a copy of the risk state for persistence.
func (c *Controller) State() domain.RiskState {
	s := c.state
	s.PeriodStartCapital = maps.Clone(c.state.PeriodStartCapital)
	s.AssetConsecutiveLosses = maps.Clone(c.state.AssetConsecutiveLosses)
	return s
}

// Stats returns a copy of the statistics.
func (c *Controller) Stats() domain.Statistics {
	s := c.stats
	s.Wins = maps.Clone(c.stats.Wins)
	s.Losses = maps.Clone(c.stats.Losses)
	s.Ties = maps.Clone(c.stats.Ties)
	s.PeriodProfits = maps.Clone(c.stats.PeriodProfits)
	return s
}

// WarmingUp reports whether new signals are still blocked by the warmup window.
func (c *Controller) WarmingUp(now time.Time) bool {
	return now.Before(c.start.Add(c.cfg.Warmup))
}

// WarmupRemaining returns how long the warmup still lasts.
func (c *Controller) WarmupRemaining(now time.Time) time.Duration {
	return max(0, c.start.Add(c.cfg.Warmup).Sub(now))
}

// Evaluate applies day and period rollover, then consults every layer in order.
// capitalKnown=false skips the capital checks: nothing can be sized without a live balance.
func (c *Controller) Evaluate(now time.Time, capital float64, capitalKnown bool, activeOrders int) Decision {
	var d Decision
	d.Events = c.rollover(now, capital, capitalKnown)

	if capitalKnown {
		if capital < c.stats.MinCapital {
			c.stats.MinCapital = capital
			d.Events = append(d.Events, Event{EventNewLow, fmt.Sprintf("new capital low %.2f", capital)})
		}
		if !c.state.AbsoluteStopTriggered && capital <= c.state.AbsoluteStopThreshold {
			c.state.AbsoluteStopTriggered = true
			d.Events = append(d.Events, Event{EventAbsoluteStop,
				fmt.Sprintf("absolute stop-loss: capital %.2f <= %.2f", capital, c.state.AbsoluteStopThreshold)})
		}
	}
	if c.state.AbsoluteStopTriggered {
		d.Veto = VetoAbsoluteStop
		return d
	}

	period := domain.PeriodKey(now)
	if c.state.PeriodStopActive(period) {
		d.Veto = VetoPeriodStop
		return d
	}
	if capitalKnown && !c.state.PeriodStopTriggered {
		start, ok := c.state.PeriodStartCapital[period]
		if !ok {
			start = c.state.InitialCapital
		}
		threshold := start * (1 - c.state.PeriodStopPct)
		if capital <= threshold {
			c.state.PeriodStopTriggered = true
			c.state.PeriodStopTriggeredIn = period
			d.Events = append(d.Events, Event{EventPeriodStop,
				fmt.Sprintf("monthly stop-loss %s: capital %.2f <= %.2f", period, capital, threshold)})
			d.Veto = VetoPeriodStop
			return d
		}
	}

	if c.state.DailyProfitLock {
		d.Veto = VetoProfitLock
		return d
	}
	if activeOrders == 0 && c.stats.DailyProfit > 0 {
		t := now
		c.state.DailyProfitLock = true
		c.state.DailyProfitLockAmount = c.stats.DailyProfit
		c.state.DailyProfitLockTime = &t
		d.Events = append(d.Events, Event{EventProfitLock,
			fmt.Sprintf("daily profit %.2f reached, trading paused until tomorrow", c.stats.DailyProfit)})
		d.Veto = VetoProfitLock
		return d
	}

	if c.state.DailyLossLock {
		d.Veto = VetoLossLock
	}
	return d
}

func (c *Controller) rollover(now time.Time, capital float64, capitalKnown bool) []Event {
	var events []Event

	if date := domain.DateKey(now); c.state.LastDate != date {
		if c.state.LastDate != "" {
			if p := domain.PeriodOfDate(c.state.LastDate); p != "" {
				c.stats.PeriodProfits[p] = domain.AddMoney(c.stats.PeriodProfits[p], c.stats.DailyProfit)
			}
		}
		c.state.DailyProfitLock = false
		c.state.DailyProfitLockAmount = 0
		c.state.DailyProfitLockTime = nil
		c.state.DailyLossLock = false
		c.state.DailyLossLockTime = nil
		c.state.DailyConsecutiveLosses = 0
		for asset := range c.state.AssetConsecutiveLosses {
			c.state.AssetConsecutiveLosses[asset] = 0
		}
		events = append(events, Event{EventDayRollover,
			fmt.Sprintf("new day %s, previous day profit %.2f", date, c.stats.DailyProfit)})
		c.stats.DailyProfit = 0
		c.state.LastDate = date
	}

	if period := domain.PeriodKey(now); c.state.CurrentPeriod != period && capitalKnown {
		c.state.PeriodStartCapital[period] = capital
		c.state.CurrentPeriod = period
		c.state.PeriodStopTriggered = false
		c.state.PeriodStopTriggeredIn = ""
		events = append(events, Event{EventPeriodRollover,
			fmt.Sprintf("new period %s, starting capital %.2f", period, capital)})
	}
	return events
}

// Record accounts a resolution exactly once. Returns the events it fired.
func (c *Controller) Record(res domain.Resolution) []Event {
	asset := res.Asset
	switch res.Outcome {
	case domain.OutcomeWin:
		c.stats.Wins[asset]++
		c.stats.TotalProfit = domain.AddMoney(c.stats.TotalProfit, res.Profit)
		c.stats.DailyProfit = domain.AddMoney(c.stats.DailyProfit, res.Profit)
		c.state.AssetConsecutiveLosses[asset] = 0
		if c.state.DailyConsecutiveLosses > 0 {
			slog.Info("daily consecutive losses reset", "was", c.state.DailyConsecutiveLosses)
		}
		c.state.DailyConsecutiveLosses = 0
	case domain.OutcomeTie:
		c.stats.Ties[asset]++
	default:
		c.stats.Losses[asset]++
		c.stats.TotalProfit = domain.AddMoney(c.stats.TotalProfit, -res.Stake)
		c.stats.DailyProfit = domain.AddMoney(c.stats.DailyProfit, -res.Stake)
		c.state.AssetConsecutiveLosses[asset]++
		c.state.DailyConsecutiveLosses++
		if c.state.DailyConsecutiveLosses >= c.state.MaxDailyConsecutiveLosses && !c.state.DailyLossLock {
			t := res.ResolvedAt
			c.state.DailyLossLock = true
			c.state.DailyLossLockTime = &t
			return []Event{{EventLossLock, fmt.Sprintf("%d consecutive losses today, trading paused until tomorrow",
				c.state.DailyConsecutiveLosses)}}
		}
	}
	return nil
}
