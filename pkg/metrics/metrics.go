package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector provides application metrics collection
type Collector struct {
	// API Metrics
	APIRequestsTotal   *prometheus.CounterVec
	APIRequestDuration *prometheus.HistogramVec
	APIErrorsTotal     *prometheus.CounterVec

	// Loader Metrics
	LoaderRowsTotal    *prometheus.CounterVec
	LoaderDuration     *prometheus.HistogramVec
	LoaderCacheResults *prometheus.CounterVec

	// Ingestion Metrics
	IngestionDuration    prometheus.Histogram
	IngestionErrorsTotal *prometheus.CounterVec

	// Playback Metrics
	PlaybackAdvancesTotal    prometheus.Counter
	PlaybackCompletionsTotal prometheus.Counter

	// Report Metrics
	ExportBytes        prometheus.Histogram
	ExportCacheResults *prometheus.CounterVec

	// Database Metrics
	DBQueryDuration  *prometheus.HistogramVec
	DBConnectionPool *prometheus.GaugeVec
	DBErrorsTotal    *prometheus.CounterVec

	// Backing service Metrics
	SessionStoreErrorsTotal *prometheus.CounterVec
	EventPublishErrorsTotal prometheus.Counter

	namespace  string
	registerer prometheus.Registerer
}

// NewCollector creates a new metrics collector registered on reg.
// A nil reg registers on the default Prometheus registry.
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		namespace:  namespace,
		registerer: reg,

		APIRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Total number of API requests by endpoint, method, and status",
			},
			[]string{"endpoint", "method", "status"},
		),

		APIRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "API request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5, 1.0, 2.0, 5.0},
			},
			[]string{"endpoint"},
		),

		APIErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_errors_total",
				Help:      "Total number of API errors by type",
			},
			[]string{"error_type", "endpoint"},
		),

		LoaderRowsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "loader_rows_total",
				Help:      "Total number of observation rows parsed by site",
			},
			[]string{"site"},
		),

		LoaderDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "loader_duration_seconds",
				Help:      "Duration of observation table loads by source",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"source"},
		),

		LoaderCacheResults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "loader_cache_results_total",
				Help:      "Observation table cache lookups by result",
			},
			[]string{"result"}, // "hit", "miss"
		),

		IngestionDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "ingestion_duration_seconds",
				Help:      "Duration of site table ingestion runs",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
		),

		IngestionErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ingestion_errors_total",
				Help:      "Total number of ingestion errors by type",
			},
			[]string{"error_type"},
		),

		PlaybackAdvancesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "playback_advances_total",
				Help:      "Total number of playback advance steps",
			},
		),

		PlaybackCompletionsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "playback_completions_total",
				Help:      "Total number of playback wraparounds",
			},
		),

		ExportBytes: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "report_export_bytes",
				Help:      "Size of generated CSV reports in bytes",
				Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
			},
		),

		ExportCacheResults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "report_cache_results_total",
				Help:      "CSV report cache lookups by result",
			},
			[]string{"result"},
		),

		DBQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "db_query_duration_seconds",
				Help:      "Database query duration in seconds by query type",
				Buckets:   []float64{0.001, 0.002, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5},
			},
			[]string{"query_type"},
		),

		DBConnectionPool: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "db_connection_pool",
				Help:      "Database connection pool statistics",
			},
			[]string{"state"}, // "in_use", "idle", "total"
		),

		DBErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "db_errors_total",
				Help:      "Total number of database errors by type",
			},
			[]string{"error_type"},
		),

		SessionStoreErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "session_store_errors_total",
				Help:      "Session store failures by operation",
			},
			[]string{"operation"},
		),

		EventPublishErrorsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "event_publish_errors_total",
				Help:      "Playback events that could not be published",
			},
		),
	}
}

// Timer provides timing functionality for operations
type Timer struct {
	start    time.Time
	observer prometheus.Observer
}

// ObserveActiveSessions registers a gauge that reports count() on every
// scrape, so sessions dropped by expiry are never counted.
func (c *Collector) ObserveActiveSessions(count func() int) error {
	return c.registerer.Register(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: c.namespace,
			Name:      "playback_sessions_active",
			Help:      "Number of live playback sessions",
		},
		func() float64 { return float64(count()) },
	))
}

// NewTimer creates a new timer
func (c *Collector) NewTimer(histogram prometheus.Observer) *Timer {
	return &Timer{
		start:    time.Now(),
		observer: histogram,
	}
}

// ObserveDuration records the elapsed time since timer creation
func (t *Timer) ObserveDuration() time.Duration {
	duration := time.Since(t.start)
	if t.observer != nil {
		t.observer.Observe(duration.Seconds())
	}
	return duration
}

// RecordAPIRequest increments API request counter
func (c *Collector) RecordAPIRequest(endpoint, method, status string) {
	c.APIRequestsTotal.WithLabelValues(endpoint, method, status).Inc()
}

// RecordAPIError increments API error counter
func (c *Collector) RecordAPIError(errorType, endpoint string) {
	c.APIErrorsTotal.WithLabelValues(errorType, endpoint).Inc()
}

// RecordIngestionError increments ingestion error counter
func (c *Collector) RecordIngestionError(errorType string) {
	c.IngestionErrorsTotal.WithLabelValues(errorType).Inc()
}

// RecordCacheLookup records a loader cache hit or miss
func (c *Collector) RecordCacheLookup(hit bool) {
	c.LoaderCacheResults.WithLabelValues(hitLabel(hit)).Inc()
}

// RecordExportLookup records a report cache hit or miss
func (c *Collector) RecordExportLookup(hit bool) {
	c.ExportCacheResults.WithLabelValues(hitLabel(hit)).Inc()
}

// RecordDBError increments database error counter
func (c *Collector) RecordDBError(errorType string) {
	c.DBErrorsTotal.WithLabelValues(errorType).Inc()
}

// RecordSessionStoreError increments the session store error counter
func (c *Collector) RecordSessionStoreError(operation string) {
	c.SessionStoreErrorsTotal.WithLabelValues(operation).Inc()
}

// UpdateDBConnectionPool updates database connection pool metrics
func (c *Collector) UpdateDBConnectionPool(inUse, idle, total int) {
	c.DBConnectionPool.WithLabelValues("in_use").Set(float64(inUse))
	c.DBConnectionPool.WithLabelValues("idle").Set(float64(idle))
	c.DBConnectionPool.WithLabelValues("total").Set(float64(total))
}

func hitLabel(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}
