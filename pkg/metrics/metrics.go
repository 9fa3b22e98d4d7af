// Package metrics defines the Prometheus collectors used by the job store,
// the query path, the scrapers and the HTTP API, and exposes a handler for
// scraping them.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the application.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	QueriesTotal         *prometheus.CounterVec
	QueryLatency         *prometheus.HistogramVec
	QueryResultsCount    prometheus.Histogram
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	RebuildsTotal        prometheus.Counter
	RebuildDuration      prometheus.Histogram
	RecordsSkippedTotal  *prometheus.CounterVec
	SnapshotJobs         prometheus.Gauge
	SnapshotGeneration   prometheus.Gauge
	SourceFetchesTotal   *prometheus.CounterVec
	SourceRecords        *prometheus.GaugeVec
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates the collectors and registers them with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates the collectors and registers them with reg. Tests
// pass a fresh prometheus.NewRegistry() so repeated construction does not
// panic on duplicate registration.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path and response code.",
			},
			[]string{"method", "path", "code"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jhql_queries_total",
				Help: "Total JHQL statements by outcome (results, zero_result, refresh, exit, help, syntax_error, error).",
			},
			[]string{"outcome"},
		),
		QueryLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jhql_query_latency_seconds",
				Help:    "JHQL query latency in seconds.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
			},
			[]string{"cache_status"},
		),
		QueryResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "jhql_query_results_count",
				Help:    "Number of jobs returned per fetch statement.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 500},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of query cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of query cache misses.",
			},
		),
		RebuildsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "store_rebuilds_total",
				Help: "Total snapshot rebuilds.",
			},
		),
		RebuildDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "store_rebuild_duration_seconds",
				Help:    "Time spent building a snapshot.",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
			},
		),
		RecordsSkippedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "store_records_skipped_total",
				Help: "Records dropped during rebuilds by reason (invalid, duplicate).",
			},
			[]string{"reason"},
		),
		SnapshotJobs: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "store_snapshot_jobs",
				Help: "Number of jobs in the current snapshot.",
			},
		),
		SnapshotGeneration: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "store_snapshot_generation",
				Help: "Generation number of the current snapshot.",
			},
		),
		SourceFetchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_fetches_total",
				Help: "Source fetches by source and status (ok, error).",
			},
			[]string{"source", "status"},
		),
		SourceRecords: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "scraper_source_records",
				Help: "Records returned by the last successful fetch per source.",
			},
			[]string{"source"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.QueriesTotal,
		m.QueryLatency,
		m.QueryResultsCount,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.RebuildsTotal,
		m.RebuildDuration,
		m.RecordsSkippedTotal,
		m.SnapshotJobs,
		m.SnapshotGeneration,
		m.SourceFetchesTotal,
		m.SourceRecords,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
