// Package metrics exposes Prometheus instrumentation for the dashboard.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for snowview
type Metrics struct {
	// Login counters
	LoginsTotal *prometheus.CounterVec

	// Report query metrics
	QueriesTotal         *prometheus.CounterVec
	QueryDurationSeconds prometheus.Histogram
	QueryResultRows      prometheus.Histogram

	// Export counters
	ExportsTotal *prometheus.CounterVec

	// Session gauge
	ActiveSessions prometheus.Gauge

	// HTTP metrics
	HTTPRequestsTotal          *prometheus.CounterVec
	HTTPRequestDurationSeconds *prometheus.HistogramVec

	registry *prometheus.Registry
}

// New creates a new Metrics instance with all metrics registered
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		LoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "snowview_logins_total",
				Help: "Total number of login attempts",
			},
			[]string{"status"},
		),
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "snowview_queries_total",
				Help: "Total number of report queries",
			},
			[]string{"view", "status"},
		),
		QueryDurationSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "snowview_query_duration_seconds",
				Help:    "Report query duration from submission to full materialization",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
		),
		QueryResultRows: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "snowview_query_result_rows",
				Help:    "Row counts of materialized report queries",
				Buckets: prometheus.ExponentialBuckets(100, 10, 6),
			},
		),
		ExportsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "snowview_exports_total",
				Help: "Total number of downloads by format",
			},
			[]string{"format"},
		),
		ActiveSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "snowview_active_sessions",
				Help: "Number of live dashboard sessions",
			},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "snowview_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "snowview_http_request_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		registry: reg,
	}

	reg.MustRegister(
		m.LoginsTotal,
		m.QueriesTotal,
		m.QueryDurationSeconds,
		m.QueryResultRows,
		m.ExportsTotal,
		m.ActiveSessions,
		m.HTTPRequestsTotal,
		m.HTTPRequestDurationSeconds,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Handler returns the scrape endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
