package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the coordinator
type Metrics struct {
	// Guarded remote operation metrics
	Operations        *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	RetryAttempts     *prometheus.CounterVec

	// Circuit breaker metrics
	BreakerTransitions *prometheus.CounterVec
	BreakerRejections  *prometheus.CounterVec

	// Cache and scheduler metrics
	CacheHits      prometheus.Counter
	CacheMisses    prometheus.Counter
	CacheEvictions prometheus.Counter
	QueueDepth     prometheus.Gauge
	QueuedRequests *prometheus.CounterVec

	// Coordinated workflow metrics
	BranchOperations *prometheus.CounterVec
	QualityGateRuns  *prometheus.CounterVec

	// Error metrics (by error code from structured errors)
	Errors *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		Operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loqa_coord_operations_total",
				Help: "Total number of guarded remote operations",
			},
			[]string{"operation", "success"},
		),
		OperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "loqa_coord_operation_duration_seconds",
				Help:    "Guarded remote operation duration in seconds",
				Buckets: []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0},
			},
			[]string{"operation"},
		),
		RetryAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loqa_coord_retry_attempts_total",
				Help: "Total number of retry attempts beyond the first",
			},
			[]string{"operation"},
		),

		BreakerTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loqa_coord_breaker_transitions_total",
				Help: "Total number of circuit breaker state transitions",
			},
			[]string{"operation", "state"},
		),
		BreakerRejections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loqa_coord_breaker_rejections_total",
				Help: "Total number of calls rejected by an open circuit breaker",
			},
			[]string{"operation"},
		),

		CacheHits: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "loqa_coord_cache_hits_total",
				Help: "Total number of request cache hits",
			},
		),
		CacheMisses: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "loqa_coord_cache_misses_total",
				Help: "Total number of request cache misses",
			},
		),
		CacheEvictions: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "loqa_coord_cache_evictions_total",
				Help: "Total number of cache entries evicted by scoring",
			},
		),
		QueueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "loqa_coord_queue_depth",
				Help: "Current number of requests queued for rate-limit capacity",
			},
		),
		QueuedRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loqa_coord_queued_requests_total",
				Help: "Total number of requests queued for rate-limit capacity",
			},
			[]string{"priority"},
		),

		BranchOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loqa_coord_branch_operations_total",
				Help: "Total number of per-repository branch operations",
			},
			[]string{"repository", "success"},
		),
		QualityGateRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loqa_coord_quality_gate_runs_total",
				Help: "Total number of per-repository quality gate runs",
			},
			[]string{"repository", "check", "success"},
		),

		Errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loqa_coord_errors_total",
				Help: "Total number of structured errors by error code",
			},
			[]string{"error_code"},
		),
	}
}
