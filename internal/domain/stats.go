package domain

import "time"

const (
	dateLayout   = "2006-01-02"
	periodLayout = "2006-01"
)

// DateKey returns the calendar-day key used for daily rollover.
func DateKey(t time.Time) string {
	return t.Format(dateLayout)
}

// PeriodKey returns the calendar-month key used for periodic stop-loss accounting.
func PeriodKey(t time.Time) string {
	return t.Format(periodLayout)
}

// PeriodOfDate maps a DateKey to its PeriodKey. Returns "" for malformed dates.
func PeriodOfDate(date string) string {
	t, err := time.Parse(dateLayout, date)
	if err != nil {
		return ""
	}
	return PeriodKey(t)
}

// Statistics accumulates trading results for the life of the state file.
type Statistics struct {
	Wins          map[string]int     `json:"wins"`
	Losses        map[string]int     `json:"losses"`
	Ties          map[string]int     `json:"ties"`
	TotalProfit   float64            `json:"total_profit"`
	DailyProfit   float64            `json:"daily_profit"`
	PeriodProfits map[string]float64 `json:"monthly_profits"`
	MinCapital    float64            `json:"min_capital"`
}

// NewStatistics returns empty statistics with every map allocated.
func NewStatistics() Statistics {
	return Statistics{
		Wins:          make(map[string]int),
		Losses:        make(map[string]int),
		Ties:          make(map[string]int),
		PeriodProfits: make(map[string]float64),
	}
}

// Normalize allocates maps left nil by decoding an older or partial state file.
func (s *Statistics) Normalize() {
	if s.Wins == nil {
		s.Wins = make(map[string]int)
	}
	if s.Losses == nil {
		s.Losses = make(map[string]int)
	}
	if s.Ties == nil {
		s.Ties = make(map[string]int)
	}
	if s.PeriodProfits == nil {
		s.PeriodProfits = make(map[string]float64)
	}
}

// Totals returns wins, losses and ties summed over every asset.
func (s Statistics) Totals() (wins, losses, ties int) {
	for _, n := range s.Wins {
		wins += n
	}
	for _, n := range s.Losses {
		losses += n
	}
	for _, n := range s.Ties {
		ties += n
	}
	return wins, losses, ties
}

// WinRate is wins over decided trades, ties excluded. Zero when nothing settled.
func (s Statistics) WinRate() float64 {
	wins, losses, _ := s.Totals()
	if wins+losses == 0 {
		return 0
	}
	return float64(wins) / float64(wins+losses)
}
