package resilience

// Metric names emitted by the executor and the metrics observer. A Sink
// implementation maps each name to a concrete collector.
const (
	MetricRequests          = "outcall_requests_total"
	MetricSuccesses         = "outcall_successes_total"
	MetricFailures          = "outcall_failures_total"
	MetricRetries           = "outcall_retries_total"
	MetricRetryExhausted    = "outcall_retry_exhausted_total"
	MetricBreakerRejections = "outcall_breaker_rejections_total"
	MetricAttemptDuration   = "outcall_attempt_duration_seconds"
	MetricBackoffDuration   = "outcall_backoff_duration_seconds"
	MetricBreakerState      = "outcall_breaker_state"
)

// Sink receives the counters, histograms and gauges emitted by the
// resilience layer. The concrete time-series backend lives outside the core.
type Sink interface {
	Inc(name string, labels map[string]string)
	Observe(name string, labels map[string]string, v float64)
	SetGauge(name string, labels map[string]string, v float64)
}

// NopSink discards all emissions. Useful in tests and as a default.
type NopSink struct{}

func (NopSink) Inc(string, map[string]string)              {}
func (NopSink) Observe(string, map[string]string, float64) {}
func (NopSink) SetGauge(string, map[string]string, float64) {}
