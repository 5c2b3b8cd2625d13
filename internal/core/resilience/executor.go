package resilience

import (
	"context"
	"fmt"
	"time"
)

// Call identifies one guarded operation: the breaker key plus the labels
// under which its metrics are reported.
type Call struct {
	// Key selects the circuit breaker. All calls sharing a downstream target
	// should share a key.
	Key string

	Component string
	Operation string
	Target    string
}

func (c Call) labels() map[string]string {
	return map[string]string{
		"component": c.Component,
		"operation": c.Operation,
		"target":    c.Target,
	}
}

func (c Call) labelsWithReason(reason FailureReason) map[string]string {
	l := c.labels()
	l["reason"] = reason.String()
	return l
}

// AttemptFunc performs one attempt of the underlying operation. The executor
// never inspects what the attempt does, only the Outcome it reports.
type AttemptFunc func(ctx context.Context) Outcome

// Executor orchestrates breaker gating, the retry loop, outcome
// classification and metrics emission. It holds no per-call state and is safe
// for concurrent use.
type Executor struct {
	registry   *Registry
	classifier Classifier
	sink       Sink
	observers  Observers
	clock      Clock
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithSink sets the metrics sink.
func WithSink(s Sink) ExecutorOption {
	return func(e *Executor) { e.sink = s }
}

// WithClassifier replaces the default failure classifier.
func WithClassifier(c Classifier) ExecutorOption {
	return func(e *Executor) { e.classifier = c }
}

// WithObservers sets the ordered observer list.
func WithObservers(os ...Observer) ExecutorOption {
	return func(e *Executor) { e.observers = os }
}

// WithExecutorClock replaces the wall clock, for tests.
func WithExecutorClock(c Clock) ExecutorOption {
	return func(e *Executor) { e.clock = c }
}

// NewExecutor creates an executor over the given breaker registry.
func NewExecutor(registry *Registry, opts ...ExecutorOption) *Executor {
	e := &Executor{
		registry:   registry,
		classifier: DefaultClassifier{},
		sink:       NopSink{},
		clock:      realClock{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the breaker registry the executor gates through.
func (e *Executor) Registry() *Registry { return e.registry }

// Execute runs attempt under the policy, gated by the breaker for call.Key.
//
// It returns a *BreakerOpenError without invoking attempt when the breaker
// rejects the call, a *RetryExhaustedError when the attempt budget is spent
// on transient failures, the attempt's own error unchanged for non-retryable
// failures that carry one, and ctx.Err() when the deadline or cancellation
// fires between attempts.
func (e *Executor) Execute(ctx context.Context, call Call, attempt AttemptFunc, policy Policy) (Outcome, error) {
	br := e.registry.ForKey(call.Key)

	if err := br.Allow(); err != nil {
		e.observers.reject(call.Key)
		return Outcome{}, err
	}

	policy = policy.normalized()
	e.sink.Inc(MetricRequests, call.labels())

	start := e.clock.Now()

	var (
		last       Outcome
		lastReason FailureReason
	)

	for n := 1; n <= policy.MaxAttempts; n++ {
		attemptStart := e.clock.Now()
		o := attempt(ctx)
		o.Attempt = n
		o.Elapsed = e.clock.Now().Sub(attemptStart)
		e.sink.Observe(MetricAttemptDuration, call.labels(), o.Elapsed.Seconds())

		if o.OK() {
			br.Success()
			e.sink.Inc(MetricSuccesses, call.labels())
			return o, nil
		}

		last = o
		lastReason = e.classifier.Classify(o)

		if !policy.shouldRetry(o, lastReason) {
			br.Failure()
			e.sink.Inc(MetricFailures, call.labelsWithReason(lastReason))
			if o.Err != nil {
				return o, o.Err
			}
			return o, &PermanentError{Reason: lastReason, Err: errFromOutcome(o)}
		}

		if n == policy.MaxAttempts {
			break
		}

		delay := policy.Backoff(n)
		e.observers.retry(RetryEvent{
			Key:       call.Key,
			Component: call.Component,
			Operation: call.Operation,
			Target:    call.Target,
			Attempt:   n,
			Reason:    lastReason,
			Delay:     delay,
			Elapsed:   e.clock.Now().Sub(start),
			Err:       o.Err,
		})

		if err := e.sleep(ctx, delay); err != nil {
			br.Failure()
			e.sink.Inc(MetricFailures, call.labelsWithReason(ReasonCanceled))
			return last, err
		}
	}

	br.Failure()
	e.sink.Inc(MetricFailures, call.labelsWithReason(lastReason))
	e.sink.Inc(MetricRetryExhausted, call.labelsWithReason(lastReason))
	return last, &RetryExhaustedError{
		Reason:   lastReason,
		Attempts: policy.MaxAttempts,
		Last:     errFromOutcome(last),
	}
}

// sleep waits for the backoff delay without holding any breaker lock,
// returning early if the caller's context is done.
func (e *Executor) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func errFromOutcome(o Outcome) error {
	switch {
	case o.Err != nil:
		return o.Err
	case o.AppErrorCode != "":
		return fmt.Errorf("application error %q", o.AppErrorCode)
	case o.Status != 0:
		return fmt.Errorf("status %d", o.Status)
	default:
		return nil
	}
}
