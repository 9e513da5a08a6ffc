package domain

import (
	"strings"
	"time"
)

// Direction is the side of a binary option.
type Direction string

const (
	DirectionCall Direction = "call" // price expected to rise
	DirectionPut  Direction = "put"  // price expected to fall
)

// Valid reports whether d is one of the two supported directions.
func (d Direction) Valid() bool {
	return d == DirectionCall || d == DirectionPut
}

// Label returns the upper-case form used in logs and reports.
func (d Direction) Label() string {
	return strings.ToUpper(string(d))
}

// Bar is one aggregated price sample over a fixed granularity.
type Bar struct {
	From   time.Time
	To     time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Closes extracts the closing prices, oldest first.
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}
