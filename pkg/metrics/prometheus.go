// Package metrics provides Prometheus metrics for the rating ladder service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Ingestion metrics - one counter per pipeline outcome.
	matchesMerged    prometheus.Counter
	matchesDuplicate prometheus.Counter
	matchesApplied   prometheus.Counter
	matchesDeferred  prometheus.Counter
	matchesRetried   prometheus.Counter
	validationErrors prometheus.Counter
	runFailures      prometheus.Counter
	runDuration      prometheus.Histogram

	// Store gauges.
	teamsTotal        prometheus.Gauge
	matchLogSize      prometheus.Gauge
	lastIngestionUnix prometheus.Gauge

	// HTTP surface.
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "sideout",
		subsystem:        "ladder",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.matchesMerged = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "matches_merged_total",
		Help:      "Total number of new match records merged into the log",
	})
	m.matchesDuplicate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "matches_duplicate_total",
		Help:      "Total number of re-ingested records discarded by the merge",
	})
	m.matchesApplied = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "matches_applied_total",
		Help:      "Total number of match records folded into team ratings",
	})
	m.matchesDeferred = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "matches_deferred_total",
		Help:      "Total number of records deferred for an unknown team",
	})
	m.matchesRetried = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "matches_retried_total",
		Help:      "Total number of previously deferred records applied on retry",
	})
	m.validationErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "validation_errors_total",
		Help:      "Total number of malformed set scores hit during replay",
	})
	m.runFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "run_failures_total",
		Help:      "Total number of ingestion runs that ended without a commit",
	})
	m.runDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ingestion_run_duration_seconds",
		Help:      "Histogram of full ingestion run durations (merge + replay + commit)",
		Buckets:   m.histogramBuckets,
	})

	m.teamsTotal = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "teams_total",
		Help:      "Number of registered teams",
	})
	m.matchLogSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "match_log_size",
		Help:      "Number of records in the match log",
	})
	m.lastIngestionUnix = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "checkpoint_last_ingestion_unix",
		Help:      "Unix timestamp of the last successful ingestion run",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by endpoint, method, and status code",
	}, []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "Histogram of HTTP request durations in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})
}

// Package-level record functions against the global manager.

// RecordMatchMerged increments the merged-record counter.
func RecordMatchMerged() {
	globalManager.matchesMerged.Inc()
}

// RecordMatchDuplicate increments the discarded-duplicate counter.
func RecordMatchDuplicate() {
	globalManager.matchesDuplicate.Inc()
}

// RecordMatchApplied increments the applied-record counter.
func RecordMatchApplied() {
	globalManager.matchesApplied.Inc()
}

// RecordMatchDeferred increments the deferred-record counter.
func RecordMatchDeferred() {
	globalManager.matchesDeferred.Inc()
}

// RecordMatchRetried increments the retried-record counter.
func RecordMatchRetried() {
	globalManager.matchesRetried.Inc()
}

// RecordValidationError increments the malformed-score counter.
func RecordValidationError() {
	globalManager.validationErrors.Inc()
}

// RecordRunFailure increments the failed-run counter.
func RecordRunFailure() {
	globalManager.runFailures.Inc()
}

// RecordRunDuration observes one full ingestion run duration in seconds.
func RecordRunDuration(seconds float64) {
	globalManager.runDuration.Observe(seconds)
}

// UpdateTeamsTotal sets the registered-team gauge.
func UpdateTeamsTotal(count int64) {
	globalManager.teamsTotal.Set(float64(count))
}

// UpdateMatchLogSize sets the match-log size gauge.
func UpdateMatchLogSize(count int64) {
	globalManager.matchLogSize.Set(float64(count))
}

// UpdateLastIngestionUnix sets the last successful run timestamp gauge.
func UpdateLastIngestionUnix(unix int64) {
	globalManager.lastIngestionUnix.Set(float64(unix))
}

// RecordHTTPRequest increments the per-endpoint request counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration observes one request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// GetRegistry returns the custom registry serving /metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
