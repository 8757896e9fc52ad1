// Package telemetry exports query metrics through Prometheus.
package telemetry

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records statement durations, row counts, failures and open
// streams. A nil *Metrics is valid and records nothing.
type Metrics struct {
	duration *prometheus.HistogramVec
	rows     *prometheus.CounterVec
	errors   *prometheus.CounterVec
	streams  prometheus.Gauge
}

// NewMetrics creates the collectors under namespace (default "massive") and
// registers them with reg. A nil reg skips registration.
func NewMetrics(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	if namespace == "" {
		namespace = "massive"
	}

	m := &Metrics{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "statement_duration_seconds",
			Help:      "Time spent executing statements, by operation and relation.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"op", "relation"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_returned_total",
			Help:      "Rows materialized or streamed, by operation and relation.",
		}, []string{"op", "relation"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "statement_errors_total",
			Help:      "Statements that failed, by operation and relation.",
		}, []string{"op", "relation"}),
		streams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_streams",
			Help:      "Row streams currently holding a connection.",
		}),
	}

	if reg != nil {
		var err error
		if m.duration, err = register(reg, m.duration); err != nil {
			return nil, err
		}
		if m.rows, err = register(reg, m.rows); err != nil {
			return nil, err
		}
		if m.errors, err = register(reg, m.errors); err != nil {
			return nil, err
		}
		if m.streams, err = register(reg, m.streams); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// register adds c to reg, reusing an identical collector registered earlier.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// ObserveStatement records one statement.
func (m *Metrics) ObserveStatement(op, relation string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(op, relation).Observe(d.Seconds())
	if err != nil {
		m.errors.WithLabelValues(op, relation).Inc()
	}
}

// AddRows counts rows handed to the caller.
func (m *Metrics) AddRows(op, relation string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.rows.WithLabelValues(op, relation).Add(float64(n))
}

// StreamOpened increments the open stream gauge.
func (m *Metrics) StreamOpened() {
	if m == nil {
		return
	}
	m.streams.Inc()
}

// StreamClosed decrements the open stream gauge.
func (m *Metrics) StreamClosed() {
	if m == nil {
		return
	}
	m.streams.Dec()
}
