package metrics

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Buckets for request latency, from cached responses (sub-millisecond) to slow origin pages
	CustomAPIBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 8, 13, 21}

	// Deploy scripts pull, build and restart; they run for minutes
	DeployBuckets = []float64{1, 5, 15, 30, 60, 120, 300, 600, 900}

	// HTTP Metrics
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_server_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: CustomAPIBuckets,
		},
		[]string{"http_request_method", "http_route", "http_response_status_code"},
	)

	HTTPRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_server_request_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"http_request_method", "http_route", "http_response_status_code"},
	)

	ActiveRequests = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "http_server_active_requests",
			Help: "Number of active HTTP requests",
		},
		[]string{"http_request_method"},
	)

	// Webhook / deploy metrics
	WebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imovelhub_webhook_events_total",
			Help: "Total number of repository webhook events by outcome",
		},
		[]string{"event", "outcome"}, // outcome: rejected, ignored, deployed, failed, invalid
	)

	DeployDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "imovelhub_deploy_duration_seconds",
			Help:    "Duration of deployment script runs in seconds",
			Buckets: DeployBuckets,
		},
		[]string{"status"},
	)

	DeployInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "imovelhub_deploy_in_progress",
			Help: "Number of deployment script runs currently executing",
		},
	)

	// Origin client metrics
	OriginRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "origin_client_request_duration_seconds",
			Help:    "Duration of requests proxied to the web origin",
			Buckets: CustomAPIBuckets,
		},
		[]string{"http_request_method", "status"},
	)

	OriginRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "origin_client_request_total",
			Help: "Total number of requests sent to the web origin",
		},
		[]string{"http_request_method", "status"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"breaker"},
	)

	// Cache Metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_name"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_name"},
	)

	CacheWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_writes_total",
			Help: "Total number of cache entries written",
		},
		[]string{"cache_name"},
	)

	CacheFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_fallbacks_total",
			Help: "Responses served from an offline fallback",
		},
		[]string{"kind"}, // document, offline_page, image, unavailable
	)

	CacheRevalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_revalidations_total",
			Help: "Background revalidations by result",
		},
		[]string{"cache_name", "status"},
	)

	CachePartitionsDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_partitions_deleted_total",
			Help: "Cache partitions removed during activation",
		},
	)

	// Infrastructure Metrics
	GoRoutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "process_runtime_go_goroutines",
			Help: "Number of goroutines",
		},
	)

	HeapAlloc = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "process_runtime_go_mem_heap_alloc_bytes",
			Help: "Heap allocated bytes",
		},
	)
)

// RecordInfrastructureMetrics collects infrastructure metrics periodically
func RecordInfrastructureMetrics() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		for range ticker.C {
			var m runtime.MemStats
			runtime.ReadMemStats(&m)

			GoRoutines.Set(float64(runtime.NumGoroutine()))
			HeapAlloc.Set(float64(m.HeapAlloc))
		}
	}()
}

// MeasureDuration measures the duration of an operation
func MeasureDuration(start time.Time) float64 {
	return time.Since(start).Seconds()
}
