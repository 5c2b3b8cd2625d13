package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tdnguyen/outcall/internal/core/resilience"
)

var (
	// Requests counts admitted calls per component/operation/target.
	Requests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: resilience.MetricRequests,
			Help: "Total number of calls admitted by the executor",
		},
		[]string{"component", "operation", "target"},
	)

	// Successes counts calls that completed successfully.
	Successes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: resilience.MetricSuccesses,
			Help: "Total number of calls that completed successfully",
		},
		[]string{"component", "operation", "target"},
	)

	// Failures counts terminally failed calls by classified reason.
	Failures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: resilience.MetricFailures,
			Help: "Total number of calls that terminally failed",
		},
		[]string{"component", "operation", "target", "reason"},
	)

	// Retries counts individual retry decisions by classified reason.
	Retries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: resilience.MetricRetries,
			Help: "Total number of retry attempts",
		},
		[]string{"component", "operation", "target", "reason"},
	)

	// RetryExhausted counts calls whose attempt budget was spent.
	RetryExhausted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: resilience.MetricRetryExhausted,
			Help: "Total number of calls that exhausted their retry budget",
		},
		[]string{"component", "operation", "target", "reason"},
	)

	// BreakerRejections counts calls blocked by an open breaker.
	BreakerRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: resilience.MetricBreakerRejections,
			Help: "Total number of calls rejected by an open circuit breaker",
		},
		[]string{"key"},
	)

	// AttemptDuration tracks per-attempt latency.
	AttemptDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    resilience.MetricAttemptDuration,
			Help:    "Duration of individual call attempts in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"component", "operation", "target"},
	)

	// BackoffDuration tracks time spent idle between retries.
	BackoffDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    resilience.MetricBackoffDuration,
			Help:    "Backoff delay before each retry in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2, 5, 10, 20, 60},
		},
		[]string{"component", "operation", "target", "reason"},
	)

	// BreakerState exposes the breaker state per key:
	// 0=Closed, 1=Open, 2=HalfOpen.
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: resilience.MetricBreakerState,
			Help: "Circuit breaker state (0=closed, 1=open, 2=half_open)",
		},
		[]string{"key"},
	)
)
