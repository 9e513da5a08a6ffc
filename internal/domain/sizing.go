package domain

import "github.com/shopspring/decimal"

// PositionSize returns max(floor, round(capital*pct, 2)).
func PositionSize(capital, pct, floor float64) float64 {
	stake := decimal.NewFromFloat(capital).Mul(decimal.NewFromFloat(pct)).Round(2)
	floorAmt := decimal.NewFromFloat(floor)
	if stake.LessThan(floorAmt) {
		return floor
	}
	return stake.InexactFloat64()
}

// RoundMoney rounds an amount to cents.
func RoundMoney(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// AddMoney sums two amounts without accumulating binary float drift.
func AddMoney(a, b float64) float64 {
	return decimal.NewFromFloat(a).Add(decimal.NewFromFloat(b)).Round(2).InexactFloat64()
}
