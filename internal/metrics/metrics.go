// Package metrics exposes sampling and chart metrics in Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fetch outcomes.
const (
	FetchSuccess = "success"
	FetchFailure = "failure"
	FetchSkipped = "skipped"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// Cycles counts sampling cycles by trigger (tick, full, reset, initial)
	Cycles *prometheus.CounterVec
	// Fetches counts per-account quota fetches by outcome
	Fetches *prometheus.CounterVec
	// SnapshotsRecorded counts snapshots appended to the history
	SnapshotsRecorded prometheus.Counter
	// PersistErrors counts failed history or account writes
	PersistErrors *prometheus.CounterVec
	// MergedPoints counts snapshots merged from the external buffer
	MergedPoints prometheus.Counter
	// Remaining tracks the last remaining percentage per entity
	Remaining *prometheus.GaugeVec
	// ChartRequests counts chart computations
	ChartRequests prometheus.Counter
	// RequestLatency tracks HTTP request latency by endpoint and method
	RequestLatency *prometheus.HistogramVec
	// HTTPRequestsTotal total HTTP requests
	HTTPRequestsTotal *prometheus.CounterVec
	// registry is the custom registry for this metrics instance
	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		Cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sampling_cycles_total",
				Help:      "Total number of sampling cycles by trigger",
			},
			[]string{"trigger"},
		),
		Fetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "quota_fetches_total",
				Help:      "Total number of quota fetches by outcome",
			},
			[]string{"outcome"},
		),
		SnapshotsRecorded: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "snapshots_recorded_total",
				Help:      "Total number of snapshots appended to the history",
			},
		),
		PersistErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "persist_errors_total",
				Help:      "Total number of failed writes by store",
			},
			[]string{"store"},
		),
		MergedPoints: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "buffer_points_merged_total",
				Help:      "Total number of snapshots merged from the external buffer",
			},
		),
		Remaining: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "quota_remaining_percent",
				Help:      "Last sampled remaining quota percentage",
			},
			[]string{"account_id", "resource"},
		),
		ChartRequests: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chart_requests_total",
				Help:      "Total number of chart computations",
			},
		),
		RequestLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_latency_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"endpoint", "method", "status"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"endpoint", "method", "status"},
		),
	}

	// Register metrics with custom registry
	registry.MustRegister(
		m.Cycles,
		m.Fetches,
		m.SnapshotsRecorded,
		m.PersistErrors,
		m.MergedPoints,
		m.Remaining,
		m.ChartRequests,
		m.RequestLatency,
		m.HTTPRequestsTotal,
	)

	return m
}

// Handler returns a Prometheus handler for these metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordCycle records one acted-on sampling cycle
func (m *Metrics) RecordCycle(trigger string) {
	m.Cycles.WithLabelValues(trigger).Inc()
}

// RecordFetch records the outcome of one account fetch
func (m *Metrics) RecordFetch(outcome string) {
	m.Fetches.WithLabelValues(outcome).Inc()
}

// RecordSnapshot records one snapshot written to the history
func (m *Metrics) RecordSnapshot() {
	m.SnapshotsRecorded.Inc()
}

// RecordPersistError records a failed write to store
func (m *Metrics) RecordPersistError(store string) {
	m.PersistErrors.WithLabelValues(store).Inc()
}

// RecordMerged records snapshots merged from the external buffer
func (m *Metrics) RecordMerged(count int) {
	m.MergedPoints.Add(float64(count))
}

// SetRemaining sets the remaining percentage of one entity
func (m *Metrics) SetRemaining(accountID, resource string, percent float64) {
	m.Remaining.WithLabelValues(accountID, resource).Set(percent)
}

// RecordChartRequest records one chart computation
func (m *Metrics) RecordChartRequest() {
	m.ChartRequests.Inc()
}

// RecordRequestLatency records the latency of an HTTP request
func (m *Metrics) RecordRequestLatency(endpoint, method, status string, durationSeconds float64) {
	m.RequestLatency.WithLabelValues(endpoint, method, status).Observe(durationSeconds)
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(endpoint, method, status string) {
	m.HTTPRequestsTotal.WithLabelValues(endpoint, method, status).Inc()
}
