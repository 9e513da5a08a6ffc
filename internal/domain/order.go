package domain

import (
	"strings"
	"time"
)

// Outcome is the terminal state of a settled order.
type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeLoss Outcome = "loss"
	OutcomeTie  Outcome = "tie"
)

// Source identifies which evidence settled an order.
type Source string

const (
	SourceDirect  Source = "direct"
	SourceFeed    Source = "feed"
	SourceBalance Source = "balance"
	SourceStatus  Source = "status"
	SourceTimeout Source = "timeout"
	SourceError   Source = "error"
)

// Order is a position held on the venue until it expires and settles.
type Order struct {
	ID             string    `json:"id"`
	Asset          string    `json:"asset"`
	Instrument     string    `json:"instrument"`
	Category       Category  `json:"category"`
	Direction      Direction `json:"direction"`
	Stake          float64   `json:"amount"`
	EntryTime      time.Time `json:"entry_time"`
	ExpiryTime     time.Time `json:"expiry_time"`
	CapitalAtEntry float64   `json:"balance_before"`
	RSI            float64   `json:"rsi"`
}

// SinceExpiry is the time elapsed after expiry; negative while the order is live.
func (o Order) SinceExpiry(now time.Time) time.Duration {
	return now.Sub(o.ExpiryTime)
}

// Resolution is the accounted result of one order.
type Resolution struct {
	OrderID    string
	Asset      string
	Outcome    Outcome
	Stake      float64
	Payout     float64
	Profit     float64
	Source     Source
	ResolvedAt time.Time
}

// NewResolution derives the profit for o from the outcome and payout.
// Losses always cost the full stake and ties return it untouched.
func NewResolution(o Order, outcome Outcome, payout float64, src Source, at time.Time) Resolution {
	r := Resolution{
		OrderID:    o.ID,
		Asset:      o.Asset,
		Outcome:    outcome,
		Stake:      o.Stake,
		Source:     src,
		ResolvedAt: at,
	}
	switch outcome {
	case OutcomeWin:
		r.Payout = RoundMoney(payout)
		r.Profit = RoundMoney(payout - o.Stake)
	case OutcomeTie:
		r.Payout = o.Stake
	default:
		r.Profit = -o.Stake
	}
	return r
}

// OrderRequest asks the venue to open one binary option.
type OrderRequest struct {
	ClientID      string
	Instrument    string
	Category      Category
	Direction     Direction
	Stake         float64
	ExpiryMinutes int
}

// PlacementResult is the venue's answer to an OrderRequest.
type PlacementResult struct {
	Accepted bool
	OrderID  string
	Reason   string
}

// Unavailable reports whether the rejection means the instrument is closed or suspended.
func (p PlacementResult) Unavailable() bool {
	if p.Accepted {
		return false
	}
	reason := strings.ToLower(p.Reason)
	return strings.Contains(reason, "not available") || strings.Contains(reason, "suspended")
}
