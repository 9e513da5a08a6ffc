package engine

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/alejandrodnm/rsibot/internal/domain"
)

// errMalformedRecord marks a settlement record the detectors cannot trust.
var errMalformedRecord = errors.New("malformed settlement record")

// Each detector inspects one kind of evidence for an expired order and
// reports a resolution only when that evidence is conclusive.

// detectDirect reads the session's own settlement record.
// A win pays stake*(1+pct/100), falling back to defaultPct when the record has no payout.
func detectDirect(o domain.Order, rec domain.SettlementRecord, defaultPct float64, at time.Time) (domain.Resolution, bool) {
	switch rec.Result {
	case domain.ResultWin:
		pct := defaultPct
		if rec.PayoutPct != nil {
			pct = *rec.PayoutPct
		}
		return domain.NewResolution(o, domain.OutcomeWin, o.Stake*(1+pct/100), domain.SourceDirect, at), true
	case domain.ResultLoss:
		return domain.NewResolution(o, domain.OutcomeLoss, 0, domain.SourceDirect, at), true
	case domain.ResultTie:
		return domain.NewResolution(o, domain.OutcomeTie, o.Stake, domain.SourceDirect, at), true
	}
	return domain.Resolution{}, false
}

// detectFeed scans the settlement feed for the order id.
func detectFeed(o domain.Order, feed []domain.SettlementRecord, fallbackMult float64, at time.Time) (domain.Resolution, bool) {
	if rec, ok := feedRecord(o, feed); ok {
		return classify(o, rec, fallbackMult, domain.SourceFeed, at)
	}
	return domain.Resolution{}, false
}

func feedRecord(o domain.Order, feed []domain.SettlementRecord) (domain.SettlementRecord, bool) {
	for _, rec := range feed {
		if rec.OrderID == o.ID {
			return rec, true
		}
	}
	return domain.SettlementRecord{}, false
}

// detectBalance infers the outcome from how far capital moved since entry.
// Moves within eps mean the venue has not settled yet.
func detectBalance(o domain.Order, capital, eps float64, at time.Time) (domain.Resolution, bool) {
	delta := capital - o.CapitalAtEntry
	if math.Abs(delta) <= eps {
		return domain.Resolution{}, false
	}
	if delta > 0 {
		return domain.NewResolution(o, domain.OutcomeWin, o.Stake+delta, domain.SourceBalance, at), true
	}
	return domain.NewResolution(o, domain.OutcomeLoss, 0, domain.SourceBalance, at), true
}

// detectStatus classifies the answer of a direct order status query.
func detectStatus(o domain.Order, rec domain.SettlementRecord, fallbackMult float64, at time.Time) (domain.Resolution, bool) {
	return classify(o, rec, fallbackMult, domain.SourceStatus, at)
}

// classify prefers the explicit verdict, then falls back to comparing the
// reported win amount with the stake.
func classify(o domain.Order, rec domain.SettlementRecord, fallbackMult float64, src domain.Source, at time.Time) (domain.Resolution, bool) {
	switch rec.Result {
	case domain.ResultWin:
		payout := o.Stake * fallbackMult
		switch {
		case rec.WinAmount != nil:
			payout = *rec.WinAmount
		case rec.ProfitAmount != nil:
			payout = o.Stake + *rec.ProfitAmount
		}
		return domain.NewResolution(o, domain.OutcomeWin, payout, src, at), true
	case domain.ResultTie:
		return domain.NewResolution(o, domain.OutcomeTie, o.Stake, src, at), true
	case domain.ResultLoss:
		return domain.NewResolution(o, domain.OutcomeLoss, 0, src, at), true
	}

	if rec.WinAmount == nil {
		return domain.Resolution{}, false
	}
	win := domain.RoundMoney(*rec.WinAmount)
	stake := domain.RoundMoney(o.Stake)
	switch {
	case win > stake:
		return domain.NewResolution(o, domain.OutcomeWin, win, src, at), true
	case win == stake:
		return domain.NewResolution(o, domain.OutcomeTie, o.Stake, src, at), true
	}
	return domain.NewResolution(o, domain.OutcomeLoss, 0, src, at), true
}

// checkRecord rejects records that belong to another order or carry
// impossible amounts.
func checkRecord(o domain.Order, rec domain.SettlementRecord) error {
	if rec.OrderID != "" && rec.OrderID != o.ID {
		return fmt.Errorf("record for order %s: %w", rec.OrderID, errMalformedRecord)
	}
	amounts := []struct {
		name     string
		v        *float64
		negative bool
	}{
		{"win_amount", rec.WinAmount, false},
		{"profit_amount", rec.ProfitAmount, true},
		{"profit_percent", rec.PayoutPct, false},
	}
	for _, a := range amounts {
		if a.v == nil {
			continue
		}
		if math.IsNaN(*a.v) || math.IsInf(*a.v, 0) {
			return fmt.Errorf("%s %v: %w", a.name, *a.v, errMalformedRecord)
		}
		if !a.negative && *a.v < 0 {
			return fmt.Errorf("negative %s %.2f: %w", a.name, *a.v, errMalformedRecord)
		}
	}
	return nil
}

// timeoutLoss is the fail-safe once no evidence arrived within the settle timeout.
func timeoutLoss(o domain.Order, at time.Time) domain.Resolution {
	return domain.NewResolution(o, domain.OutcomeLoss, 0, domain.SourceTimeout, at)
}

// errorLoss books a loss when the evidence itself cannot be interpreted.
func errorLoss(o domain.Order, at time.Time) domain.Resolution {
	return domain.NewResolution(o, domain.OutcomeLoss, 0, domain.SourceError, at)
}
