package domain

import "time"

// RiskState holds every capital-preservation flag and counter.
// It is owned by the risk controller and serialized with the snapshot.
type RiskState struct {
	InitialCapital float64 `json:"initial_capital"`

	AbsoluteStopPct       float64 `json:"absolute_stop_loss_pct"`
	AbsoluteStopThreshold float64 `json:"absolute_stop_loss_threshold"`
	AbsoluteStopTriggered bool    `json:"absolute_stop_loss_activated"`

	PeriodStopPct         float64            `json:"monthly_stop_loss_pct"`
	CurrentPeriod         string             `json:"current_month"`
	PeriodStartCapital    map[string]float64 `json:"monthly_starting_capital"`
	PeriodStopTriggered   bool               `json:"monthly_stop_loss"`
	PeriodStopTriggeredIn string             `json:"stop_loss_triggered_month"`

	LastDate string `json:"last_date"`

	DailyProfitLock       bool       `json:"daily_profit_lock"`
	DailyProfitLockAmount float64    `json:"daily_profit_lock_amount"`
	DailyProfitLockTime   *time.Time `json:"daily_profit_lock_time"`

	DailyConsecutiveLosses    int        `json:"daily_consecutive_losses"`
	DailyLossLock             bool       `json:"daily_loss_lock"`
	DailyLossLockTime         *time.Time `json:"daily_loss_lock_time"`
	MaxDailyConsecutiveLosses int        `json:"max_daily_consecutive_losses"`

	AssetConsecutiveLosses map[string]int `json:"consecutive_losses"`
}

// Normalize allocates maps left nil by decoding.
func (r *RiskState) Normalize() {
	if r.PeriodStartCapital == nil {
		r.PeriodStartCapital = make(map[string]float64)
	}
	if r.AssetConsecutiveLosses == nil {
		r.AssetConsecutiveLosses = make(map[string]int)
	}
}

// PeriodStopActive reports whether the monthly stop vetoes trading in period.
func (r RiskState) PeriodStopActive(period string) bool {
	return r.PeriodStopTriggered && r.PeriodStopTriggeredIn == period
}
