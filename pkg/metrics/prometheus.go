// Package metrics provides Prometheus metrics for the admission advisor.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the advisor service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Resolution
	resolutions        *prometheus.CounterVec
	resolutionFailures *prometheus.CounterVec

	// Candidate cache
	cacheHits      *prometheus.CounterVec
	cacheMisses    *prometheus.CounterVec
	cacheRefreshes *prometheus.CounterVec
	cacheEntries   *prometheus.GaugeVec

	// Oracle
	oracleLatency *prometheus.HistogramVec
	oracleErrors  *prometheus.CounterVec

	// Scoring outcomes
	fallbackDefaults *prometheus.CounterVec
	safetyBands      *prometheus.CounterVec
	pipelineLatency  *prometheus.HistogramVec

	// Batch
	batchItems *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorsByEndpoint    *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "admit",
		subsystem:        "advisor",
		histogramBuckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000},
		constLabels:      map[string]string{},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	m.resolutions = m.counterVec("resolutions_total",
		"Entity resolutions by entity kind and winning strategy", "entity", "strategy")
	m.resolutionFailures = m.counterVec("resolution_failures_total",
		"Entity resolutions that found no acceptable match", "entity")

	m.cacheHits = m.counterVec("cache_hits_total", "Candidate cache hits by catalog", "catalog")
	m.cacheMisses = m.counterVec("cache_misses_total", "Candidate cache misses (stale or empty) by catalog", "catalog")
	m.cacheRefreshes = m.counterVec("cache_refreshes_total", "Candidate cache refreshes by catalog and outcome", "catalog", "outcome")
	m.cacheEntries = promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "cache_entries",
		Help:        "Number of name/code keys held per catalog mapping",
		ConstLabels: m.constLabels,
	}, []string{"catalog"})

	m.oracleLatency = m.histogramVec("oracle_latency_milliseconds",
		"Oracle prediction latency in milliseconds by variant", "variant")
	m.oracleErrors = m.counterVec("oracle_errors_total", "Oracle prediction errors by variant", "variant")

	m.fallbackDefaults = m.counterVec("fallback_defaults_total",
		"Expected-score estimates that used documented fallback defaults, by reason", "reason")
	m.safetyBands = m.counterVec("safety_bands_total", "Classified safety bands", "band")
	m.pipelineLatency = m.histogramVec("pipeline_latency_milliseconds",
		"End-to-end latency of an advisor operation in milliseconds", "operation")

	m.batchItems = m.counterVec("batch_items_total", "Batch items processed by operation and status", "operation", "status")

	m.httpRequests = m.counterVec("http_requests_total",
		"Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", "endpoint", "method", "status_code")
	m.errorsByEndpoint = m.counterVec("errors_by_endpoint_total",
		"Total number of errors by endpoint", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// RecordResolution counts a successful resolution.
func RecordResolution(entity, strategy string) {
	globalManager.resolutions.WithLabelValues(entity, strategy).Inc()
}

// RecordResolutionFailure counts a failed resolution.
func RecordResolutionFailure(entity string) {
	globalManager.resolutionFailures.WithLabelValues(entity).Inc()
}

// RecordCacheHit counts a fresh cache read.
func RecordCacheHit(catalog string) {
	globalManager.cacheHits.WithLabelValues(catalog).Inc()
}

// RecordCacheMiss counts a read that had to refetch.
func RecordCacheMiss(catalog string) {
	globalManager.cacheMisses.WithLabelValues(catalog).Inc()
}

// RecordCacheRefresh counts a refresh attempt; outcome is "ok" or "error".
func RecordCacheRefresh(catalog, outcome string) {
	globalManager.cacheRefreshes.WithLabelValues(catalog, outcome).Inc()
}

// UpdateCacheEntries sets the key count of a catalog mapping.
func UpdateCacheEntries(catalog string, n int) {
	globalManager.cacheEntries.WithLabelValues(catalog).Set(float64(n))
}

// RecordOracleLatency records a prediction latency.
func RecordOracleLatency(variant string, latencyMs float64) {
	globalManager.oracleLatency.WithLabelValues(variant).Observe(latencyMs)
}

// RecordOracleError counts a failed prediction.
func RecordOracleError(variant string) {
	globalManager.oracleErrors.WithLabelValues(variant).Inc()
}

// RecordFallbackDefault counts an estimate that fell back to defaults.
func RecordFallbackDefault(reason string) {
	globalManager.fallbackDefaults.WithLabelValues(reason).Inc()
}

// RecordSafetyBand counts a classified band.
func RecordSafetyBand(band string) {
	globalManager.safetyBands.WithLabelValues(band).Inc()
}

// RecordPipelineLatency records the latency of an advisor operation.
func RecordPipelineLatency(operation string, latencyMs float64) {
	globalManager.pipelineLatency.WithLabelValues(operation).Observe(latencyMs)
}

// RecordBatchItem counts a processed batch entry; status is "success" or "error".
func RecordBatchItem(operation, status string) {
	globalManager.batchItems.WithLabelValues(operation, status).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
