package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tdnguyen/outcall/internal/core/resilience"
)

// PromSink implements resilience.Sink over the package collectors. Metric
// names outside the known set are dropped silently.
type PromSink struct{}

// NewPromSink returns a sink backed by the default Prometheus registry.
func NewPromSink() PromSink { return PromSink{} }

func (PromSink) Inc(name string, labels map[string]string) {
	switch name {
	case resilience.MetricRequests:
		Requests.With(prometheus.Labels(labels)).Inc()
	case resilience.MetricSuccesses:
		Successes.With(prometheus.Labels(labels)).Inc()
	case resilience.MetricFailures:
		Failures.With(prometheus.Labels(labels)).Inc()
	case resilience.MetricRetries:
		Retries.With(prometheus.Labels(labels)).Inc()
	case resilience.MetricRetryExhausted:
		RetryExhausted.With(prometheus.Labels(labels)).Inc()
	case resilience.MetricBreakerRejections:
		BreakerRejections.With(prometheus.Labels(labels)).Inc()
	}
}

func (PromSink) Observe(name string, labels map[string]string, v float64) {
	switch name {
	case resilience.MetricAttemptDuration:
		AttemptDuration.With(prometheus.Labels(labels)).Observe(v)
	case resilience.MetricBackoffDuration:
		BackoffDuration.With(prometheus.Labels(labels)).Observe(v)
	}
}

func (PromSink) SetGauge(name string, labels map[string]string, v float64) {
	if name == resilience.MetricBreakerState {
		BreakerState.With(prometheus.Labels(labels)).Set(v)
	}
}
