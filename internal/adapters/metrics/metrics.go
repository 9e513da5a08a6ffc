// Package metrics exposes engine activity as Prometheus series:
//
//   - rsibot_orders_total{mode,asset,direction}  orders accepted by the venue
//   - rsibot_resolutions_total{outcome,source}   settled orders by outcome and evidence
//   - rsibot_realized_profit                     cumulative realized profit
//   - rsibot_vetoes_total{reason}                cycles blocked by a risk control
//   - rsibot_capital                             last live balance read
//   - rsibot_active_orders                       orders waiting for settlement
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alejandrodnm/rsibot/internal/domain"
	"github.com/alejandrodnm/rsibot/internal/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics implements ports.Observer on a private registry.
type Metrics struct {
	mode     string
	registry *prometheus.Registry

	orders      *prometheus.CounterVec
	resolutions *prometheus.CounterVec
	profit      prometheus.Gauge
	vetoes      *prometheus.CounterVec
	capital     prometheus.Gauge
	active      prometheus.Gauge
}

var _ ports.Observer = (*Metrics)(nil)

// New registers every series. mode is "live" or "paper".
func New(mode string) *Metrics {
	m := &Metrics{
		mode:     mode,
		registry: prometheus.NewRegistry(),
		orders: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "rsibot_orders_total", Help: "Orders accepted by the venue"},
			[]string{"mode", "asset", "direction"},
		),
		resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "rsibot_resolutions_total", Help: "Settled orders by outcome and evidence source"},
			[]string{"outcome", "source"},
		),
		profit: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "rsibot_realized_profit", Help: "Realized profit since process start"},
		),
		vetoes: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "rsibot_vetoes_total", Help: "Cycles blocked by a risk control"},
			[]string{"reason"},
		),
		capital: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "rsibot_capital", Help: "Last live account balance"},
		),
		active: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "rsibot_active_orders", Help: "Orders waiting for settlement"},
		),
	}
	m.registry.MustRegister(m.orders, m.resolutions, m.profit, m.vetoes, m.capital, m.active)
	return m
}

func (m *Metrics) OrderPlaced(asset string, dir domain.Direction, _ float64) {
	m.orders.WithLabelValues(m.mode, asset, string(dir)).Inc()
}

func (m *Metrics) OrderResolved(res domain.Resolution) {
	m.resolutions.WithLabelValues(string(res.Outcome), string(res.Source)).Inc()
	m.profit.Add(res.Profit)
}

func (m *Metrics) Vetoed(reason string) {
	m.vetoes.WithLabelValues(reason).Inc()
}

func (m *Metrics) Capital(amount float64) {
	m.capital.Set(amount)
}

func (m *Metrics) ActiveOrders(n int) {
	m.active.Set(float64(n))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("metrics: serving", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics.Serve: %w", err)
	}
	return nil
}
