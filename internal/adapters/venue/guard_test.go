package venue_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alejandrodnm/rsibot/internal/adapters/venue"
	"github.com/alejandrodnm/rsibot/internal/domain"
	"github.com/alejandrodnm/rsibot/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slowVenue blocks every balance call for delay.
type slowVenue struct {
	ports.Venue
	delay    time.Duration
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (s *slowVenue) Balance(ctx context.Context) (float64, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	select {
	case <-time.After(s.delay):
		return 100, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func TestGuarded_PassesThrough(t *testing.T) {
	g := venue.NewGuarded(&slowVenue{delay: time.Millisecond}, 3, time.Second)
	defer g.Close(time.Second)

	v, err := g.Balance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 100.0, v)
}

func TestGuarded_Timeout(t *testing.T) {
	g := venue.NewGuarded(&slowVenue{delay: time.Second}, 3, 50*time.Millisecond)
	defer g.Close(2 * time.Second)

	start := time.Now()
	_, err := g.Balance(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTimeout))
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestGuarded_BoundedWorkers(t *testing.T) {
	slow := &slowVenue{delay: 50 * time.Millisecond}
	g := venue.NewGuarded(slow, 2, time.Second)
	defer g.Close(time.Second)

	done := make(chan struct{})
	for i := 0; i < 6; i++ {
		go func() {
			g.Balance(context.Background())
			done <- struct{}{}
		}()
	}
	for i := 0; i < 6; i++ {
		<-done
	}
	assert.LessOrEqual(t, slow.peak.Load(), int32(2))
}

func TestGuarded_ClosedPoolRejects(t *testing.T) {
	g := venue.NewGuarded(&slowVenue{delay: time.Millisecond}, 1, time.Second)
	g.Close(time.Second)

	_, err := g.Balance(context.Background())
	assert.Error(t, err)
}
