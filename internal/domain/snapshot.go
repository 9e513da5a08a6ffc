package domain

import (
	"bytes"
	"encoding/json"
	"time"
)

// NeverSignaled is the serialized form of an asset that never produced a signal.
const NeverSignaled = "never"

// SignalTime is the last signal time of an asset. The zero value means never.
type SignalTime struct {
	time.Time
}

// MarshalJSON writes the NeverSignaled sentinel for the zero value.
func (s SignalTime) MarshalJSON() ([]byte, error) {
	if s.IsZero() {
		return json.Marshal(NeverSignaled)
	}
	return json.Marshal(s.Time)
}

// UnmarshalJSON accepts an RFC 3339 timestamp, the sentinel or null.
func (s *SignalTime) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) || bytes.Equal(b, []byte(`"`+NeverSignaled+`"`)) {
		s.Time = time.Time{}
		return nil
	}
	return s.Time.UnmarshalJSON(b)
}

// Snapshot is everything needed to resume the engine after a restart.
type Snapshot struct {
	Timestamp      time.Time             `json:"timestamp"`
	StrategyMode   string                `json:"strategy_mode"`
	ActiveOrders   map[string][]Order    `json:"active_options"`
	LastSignal     map[string]SignalTime `json:"last_signal_time"`
	ResolvedOrders []string              `json:"resolved_orders"`

	Statistics
	RiskState
}

// Normalize allocates maps left nil by decoding.
func (s *Snapshot) Normalize() {
	if s.ActiveOrders == nil {
		s.ActiveOrders = make(map[string][]Order)
	}
	if s.LastSignal == nil {
		s.LastSignal = make(map[string]SignalTime)
	}
	s.Statistics.Normalize()
	s.RiskState.Normalize()
}
