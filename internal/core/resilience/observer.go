package resilience

import (
	"log/slog"
	"time"
)

// RetryEvent describes a single retry decision, emitted before the backoff
// sleep begins.
type RetryEvent struct {
	Key       string
	Component string
	Operation string
	Target    string

	// Attempt is the 1-based number of the attempt that just failed.
	Attempt int
	Reason  FailureReason
	Delay   time.Duration

	// Elapsed is the time since the first attempt of this call.
	Elapsed time.Duration
	Err     error
}

// Observer receives retry and breaker events. Observers are invoked
// synchronously, in registration order; a panic in one observer does not
// prevent the others from running.
type Observer interface {
	OnRetry(e RetryEvent)
	OnStateChange(key string, from, to BreakerState)
	OnReject(key string)
}

// Observers is an ordered observer list.
type Observers []Observer

func (os Observers) retry(e RetryEvent) {
	for _, o := range os {
		invoke(func() { o.OnRetry(e) })
	}
}

// StateChange fans a breaker transition out to every observer. Exposed so
// wiring code can hand it to a registry's state-change hook.
func (os Observers) StateChange(key string, from, to BreakerState) {
	for _, o := range os {
		invoke(func() { o.OnStateChange(key, from, to) })
	}
}

func (os Observers) reject(key string) {
	for _, o := range os {
		invoke(func() { o.OnReject(key) })
	}
}

func invoke(fn func()) {
	defer func() { _ = recover() }()
	fn()
}

// LogObserver logs retry and breaker events through slog.
type LogObserver struct {
	Log *slog.Logger
}

// NewLogObserver creates a LogObserver; a nil logger falls back to the
// default slog logger.
func NewLogObserver(log *slog.Logger) *LogObserver {
	if log == nil {
		log = slog.Default()
	}
	return &LogObserver{Log: log}
}

func (l *LogObserver) OnRetry(e RetryEvent) {
	l.Log.Warn("retrying call",
		"key", e.Key,
		"operation", e.Operation,
		"target", e.Target,
		"attempt", e.Attempt,
		"reason", e.Reason.String(),
		"sleeping_for", e.Delay,
		"elapsed", e.Elapsed,
		"error", e.Err,
	)
}

func (l *LogObserver) OnStateChange(key string, from, to BreakerState) {
	l.Log.Warn("breaker state changed",
		"key", key,
		"from", from.String(),
		"to", to.String(),
	)
}

func (l *LogObserver) OnReject(key string) {
	l.Log.Warn("breaker open, call blocked", "key", key)
}

// MetricsObserver mirrors retry and breaker events into a Sink: the retry
// counter and backoff histogram by reason, the rejection counter, and the
// breaker-state gauge.
type MetricsObserver struct {
	Sink Sink
}

func NewMetricsObserver(sink Sink) *MetricsObserver {
	if sink == nil {
		sink = NopSink{}
	}
	return &MetricsObserver{Sink: sink}
}

func (m *MetricsObserver) OnRetry(e RetryEvent) {
	labels := map[string]string{
		"component": e.Component,
		"operation": e.Operation,
		"target":    e.Target,
		"reason":    e.Reason.String(),
	}
	m.Sink.Inc(MetricRetries, labels)
	m.Sink.Observe(MetricBackoffDuration, labels, e.Delay.Seconds())
}

func (m *MetricsObserver) OnStateChange(key string, _, to BreakerState) {
	m.Sink.SetGauge(MetricBreakerState, map[string]string{"key": key}, to.GaugeValue())
}

func (m *MetricsObserver) OnReject(key string) {
	m.Sink.Inc(MetricBreakerRejections, map[string]string{"key": key})
}
