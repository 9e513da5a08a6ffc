package domain

import "errors"

var (
	// ErrAuth is returned when the venue rejects the configured credentials.
	ErrAuth = errors.New("venue authentication failed")
	// ErrCapitalUnknown is returned when live capital cannot be read.
	ErrCapitalUnknown = errors.New("live capital unknown")
	// ErrInsufficientCapital is returned when live capital is below the stake.
	ErrInsufficientCapital = errors.New("insufficient capital")
	// ErrInstrumentUnavailable marks an instrument that is closed or suspended.
	ErrInstrumentUnavailable = errors.New("instrument unavailable")
	// ErrOrderRejected is returned when the venue refuses an order for any other reason.
	ErrOrderRejected = errors.New("order rejected")
	// ErrTimeout is returned when a venue call did not answer in time.
	ErrTimeout = errors.New("venue call timed out")
	// ErrNoAsset is returned when an asset has no binding in the tradable set.
	ErrNoAsset = errors.New("asset not tradable")
)
