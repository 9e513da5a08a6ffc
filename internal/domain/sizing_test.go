package domain_test

import (
	"testing"

	"github.com/alejandrodnm/rsibot/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestPositionSize_PercentageAboveFloor(t *testing.T) {
	assert.Equal(t, 250.00, domain.PositionSize(10000, 0.025, 1))
}

func TestPositionSize_FloorWins(t *testing.T) {
	assert.Equal(t, 4000.0, domain.PositionSize(10, 0.025, 4000))
}

func TestPositionSize_RoundsToCents(t *testing.T) {
	// 1234.567 * 0.025 = 30.864175
	assert.Equal(t, 30.86, domain.PositionSize(1234.567, 0.025, 1))
}

func TestPositionSize_ZeroCapital(t *testing.T) {
	assert.Equal(t, 5.0, domain.PositionSize(0, 0.025, 5))
}

func TestPositionSize_NoUpperBound(t *testing.T) {
	assert.Equal(t, 25000.0, domain.PositionSize(1_000_000, 0.025, 4000))
}

func TestAddMoney_NoDrift(t *testing.T) {
	total := 0.0
	for i := 0; i < 10; i++ {
		total = domain.AddMoney(total, 0.1)
	}
	assert.Equal(t, 1.0, total)
}
