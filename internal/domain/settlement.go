package domain

import "time"

// SettlementResult is the venue's own verdict on an order.
type SettlementResult string

const (
	ResultUnknown SettlementResult = ""
	ResultWin     SettlementResult = "win"
	ResultLoss    SettlementResult = "loss"
	ResultTie     SettlementResult = "tie"
)

// SettlementRecord is a normalized settlement entry from any venue surface.
// Optional amounts are nil when the venue did not report them.
type SettlementRecord struct {
	OrderID      string
	Asset        string
	Direction    Direction
	Stake        float64
	Result       SettlementResult
	WinAmount    *float64
	ProfitAmount *float64
	PayoutPct    *float64
	OpenedAt     time.Time
	ClosedAt     time.Time
}

// Known reports whether the record carries any usable verdict.
func (r SettlementRecord) Known() bool {
	return r.Result != ResultUnknown || r.WinAmount != nil
}

// Float returns a pointer to v, for building optional amounts.
func Float(v float64) *float64 {
	return &v
}
