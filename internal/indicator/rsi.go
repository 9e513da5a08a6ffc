// Package indicator computes momentum oscillators over price bars.
package indicator

import (
	"math"

	"github.com/alejandrodnm/rsibot/internal/domain"
)

// RSI computes Wilder's relative strength index over the closes of bars.
// Returns ok=false when fewer than period+1 bars are available.
func RSI(bars []domain.Bar, period int) (float64, bool) {
	if period <= 0 || len(bars) < period+1 {
		return 0, false
	}
	closes := domain.Closes(bars)

	gains := make([]float64, len(closes)-1)
	losses := make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gains[i-1] = delta
		} else {
			losses[i-1] = -delta
		}
	}

	var avgGain, avgLoss float64
	for i := 0; i < period; i++ {
		avgGain += gains[i]
		avgLoss += losses[i]
	}
	n := float64(period)
	avgGain /= n
	avgLoss /= n

	for i := period; i < len(gains); i++ {
		avgGain = (avgGain*(n-1) + gains[i]) / n
		avgLoss = (avgLoss*(n-1) + losses[i]) / n
	}

	if avgLoss == 0 {
		return 100, true
	}
	rs := avgGain / avgLoss
	return math.Round((100-100/(1+rs))*100) / 100, true
}

// Classify turns an RSI reading into a trade direction.
// Readings at or below oversold produce PUT, at or above overbought produce CALL.
func Classify(rsi, oversold, overbought float64) (domain.Direction, bool) {
	switch {
	case rsi <= oversold:
		return domain.DirectionPut, true
	case rsi >= overbought:
		return domain.DirectionCall, true
	default:
		return "", false
	}
}
