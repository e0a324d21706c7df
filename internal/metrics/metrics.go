// Package metrics exposes Prometheus instruments for the decision loop.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "trend_trader"

// Metrics holds the loop's instruments. A nil *Metrics records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	Cycles        *prometheus.CounterVec
	Signals       *prometheus.CounterVec
	Orders        *prometheus.CounterVec
	TrailingStops prometheus.Counter
	CycleDuration prometheus.Histogram
	BreakerOpen   prometheus.Gauge
}

// New registers the instruments with reg. Passing nil uses a fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		gatherer: reg,
		Cycles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Scheduler cycles by outcome",
		}, []string{"outcome"}),
		Signals: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signals_total",
			Help:      "Fused signals by value",
		}, []string{"signal"}),
		Orders: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_total",
			Help:      "Order submissions by result",
		}, []string{"result"}),
		TrailingStops: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trailing_stop_moves_total",
			Help:      "Trailing stop tightenings",
		}),
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of a scheduler cycle",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		BreakerOpen: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "broker_circuit_open",
			Help:      "1 while broker calls are paused by the circuit breaker",
		}),
	}
}

// ObserveCycle records a finished cycle.
func (m *Metrics) ObserveCycle(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Cycles.WithLabelValues(outcome).Inc()
	m.CycleDuration.Observe(d.Seconds())
}

// ObserveSignal records a fused signal.
func (m *Metrics) ObserveSignal(signal string) {
	if m == nil {
		return
	}
	m.Signals.WithLabelValues(signal).Inc()
}

// ObserveOrder records an order submission result: filled, rejected or skipped.
func (m *Metrics) ObserveOrder(result string) {
	if m == nil {
		return
	}
	m.Orders.WithLabelValues(result).Inc()
}

// ObserveTrailingStop records a stop tightening.
func (m *Metrics) ObserveTrailingStop() {
	if m == nil {
		return
	}
	m.TrailingStops.Inc()
}

// SetBreakerOpen flags whether broker calls are currently paused.
func (m *Metrics) SetBreakerOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.BreakerOpen.Set(1)
	} else {
		m.BreakerOpen.Set(0)
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
