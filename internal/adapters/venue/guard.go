package venue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alejandrodnm/rsibot/internal/domain"
	"github.com/alejandrodnm/rsibot/internal/ports"
)

const (
	defaultWorkers     = 3
	defaultCallTimeout = 10 * time.Second
	statusTimeout      = 3 * time.Second
)

// errPoolClosed is returned by calls submitted after Close.
var errPoolClosed = errors.New("venue pool closed")

// pool is a fixed set of workers draining a job channel.
type pool struct {
	jobs   chan func()
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

func newPool(workers int) *pool {
	p := &pool{jobs: make(chan func())}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				job()
			}
		}()
	}
	return p
}

// submit hands job to a free worker, or gives up when ctx ends first.
func (p *pool) submit(ctx context.Context, job func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return errPoolClosed
	}
	select {
	case p.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close stops accepting jobs and waits up to wait for in-flight ones.
func (p *pool) close(wait time.Duration) bool {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(wait):
		return false
	}
}

// Guarded runs every call of a Venue on a bounded worker pool with a hard timeout.
// A call that does not answer in time fails with domain.ErrTimeout and is abandoned.
type Guarded struct {
	next    ports.Venue
	pool    *pool
	timeout time.Duration
}

// NewGuarded wraps next. workers<=0 and timeout<=0 select the defaults (3, 10s).
func NewGuarded(next ports.Venue, workers int, timeout time.Duration) *Guarded {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return &Guarded{next: next, pool: newPool(workers), timeout: timeout}
}

// Close releases the workers, waiting at most wait for in-flight calls.
func (g *Guarded) Close(wait time.Duration) {
	if !g.pool.close(wait) {
		slog.Warn("venue calls still running at shutdown", "waited", wait)
	}
}

type outcome[T any] struct {
	val T
	err error
}

func guard[T any](ctx context.Context, g *Guarded, name string, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan outcome[T], 1)
	err := g.pool.submit(cctx, func() {
		v, err := fn(cctx)
		done <- outcome[T]{v, err}
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			slog.Warn("venue call timed out waiting for a worker", "call", name, "timeout", timeout)
			return zero, fmt.Errorf("%s: %w", name, domain.ErrTimeout)
		}
		return zero, fmt.Errorf("%s: %w", name, err)
	}

	select {
	case r := <-done:
		return r.val, r.err
	case <-cctx.Done():
		if ctx.Err() != nil {
			return zero, fmt.Errorf("%s: %w", name, ctx.Err())
		}
		slog.Warn("venue call timed out", "call", name, "timeout", timeout)
		return zero, fmt.Errorf("%s: %w", name, domain.ErrTimeout)
	}
}

type found struct {
	rec domain.SettlementRecord
	ok  bool
}

func (g *Guarded) Connect(ctx context.Context) error {
	_, err := guard(ctx, g, "connect", g.timeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, g.next.Connect(ctx)
	})
	return err
}

func (g *Guarded) Connected(ctx context.Context) bool {
	ok, err := guard(ctx, g, "connected", g.timeout, func(ctx context.Context) (bool, error) {
		return g.next.Connected(ctx), nil
	})
	return err == nil && ok
}

func (g *Guarded) Balance(ctx context.Context) (float64, error) {
	return guard(ctx, g, "balance", g.timeout, g.next.Balance)
}

func (g *Guarded) Candles(ctx context.Context, instrument string, granularity time.Duration, count int, end time.Time) ([]domain.Bar, error) {
	return guard(ctx, g, "candles", g.timeout, func(ctx context.Context) ([]domain.Bar, error) {
		return g.next.Candles(ctx, instrument, granularity, count, end)
	})
}

func (g *Guarded) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.PlacementResult, error) {
	return guard(ctx, g, "place order", g.timeout, func(ctx context.Context) (domain.PlacementResult, error) {
		return g.next.PlaceOrder(ctx, req)
	})
}

func (g *Guarded) OpenInstruments(ctx context.Context) (domain.OpenInstruments, error) {
	return guard(ctx, g, "open instruments", g.timeout, g.next.OpenInstruments)
}

func (g *Guarded) Settlement(ctx context.Context, orderID string) (domain.SettlementRecord, bool, error) {
	f, err := guard(ctx, g, "settlement", g.timeout, func(ctx context.Context) (found, error) {
		rec, ok, err := g.next.Settlement(ctx, orderID)
		return found{rec, ok}, err
	})
	return f.rec, f.ok, err
}

func (g *Guarded) SettlementFeed(ctx context.Context) ([]domain.SettlementRecord, error) {
	return guard(ctx, g, "settlement feed", g.timeout, g.next.SettlementFeed)
}

// OrderStatus is capped at statusTimeout.
func (g *Guarded) OrderStatus(ctx context.Context, orderID string) (domain.SettlementRecord, bool, error) {
	f, err := guard(ctx, g, "order status", min(g.timeout, statusTimeout), func(ctx context.Context) (found, error) {
		rec, ok, err := g.next.OrderStatus(ctx, orderID)
		return found{rec, ok}, err
	})
	return f.rec, f.ok, err
}

func (g *Guarded) History(ctx context.Context, limit int) ([]domain.SettlementRecord, error) {
	return guard(ctx, g, "history", g.timeout, func(ctx context.Context) ([]domain.SettlementRecord, error) {
		return g.next.History(ctx, limit)
	})
}
