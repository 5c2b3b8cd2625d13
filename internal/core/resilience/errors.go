package resilience

import (
	"errors"
	"fmt"
)

// ErrBreakerOpen is the sentinel wrapped by every BreakerOpenError.
var ErrBreakerOpen = errors.New("circuit breaker is open")

// BreakerOpenError is returned when a call is rejected before the attempt
// function is ever invoked, because the breaker for its key is open.
type BreakerOpenError struct {
	Key string
}

func (e *BreakerOpenError) Error() string {
	return fmt.Sprintf("breaker %q: %v", e.Key, ErrBreakerOpen)
}

func (e *BreakerOpenError) Unwrap() error { return ErrBreakerOpen }

// IsBreakerOpen reports whether err is a breaker rejection.
func IsBreakerOpen(err error) bool {
	return errors.Is(err, ErrBreakerOpen)
}

// RetryExhaustedError is returned when the attempt budget is spent without
// success. It carries the classified reason of the last outcome.
type RetryExhaustedError struct {
	Reason   FailureReason
	Attempts int
	Last     error
}

func (e *RetryExhaustedError) Error() string {
	if e.Last != nil {
		return fmt.Sprintf("retries exhausted after %d attempts (reason: %s): %v", e.Attempts, e.Reason, e.Last)
	}
	return fmt.Sprintf("retries exhausted after %d attempts (reason: %s)", e.Attempts, e.Reason)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Last }

// PermanentError wraps a non-retryable classified failure so callers can
// still recover the reason after propagation.
type PermanentError struct {
	Reason FailureReason
	Err    error
}

func (e *PermanentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("permanent failure (reason: %s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("permanent failure (reason: %s)", e.Reason)
}

func (e *PermanentError) Unwrap() error { return e.Err }
