package resilience

import (
	"math"
	"time"
)

// Policy defines the retry behavior for a single Execute call. A Policy is
// immutable once built and keeps no state between calls.
type Policy struct {
	// MaxAttempts is the total attempt budget, including the first call.
	MaxAttempts int

	// Multiplier, MinWait and MaxWait shape the exponential backoff:
	// delay(k) = clamp(Multiplier * 2^(k-1), MinWait, MaxWait).
	Multiplier time.Duration
	MinWait    time.Duration
	MaxWait    time.Duration

	// RetryIf overrides the default retry predicate. When nil, a failure is
	// retried iff its classified reason is transient.
	RetryIf func(o Outcome, reason FailureReason) bool
}

// DefaultPolicy mirrors the standard client budget: 3 attempts, backoff
// between 2s and 10s.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		Multiplier:  1 * time.Second,
		MinWait:     2 * time.Second,
		MaxWait:     10 * time.Second,
	}
}

// NoRetry is the fail-fast variant used for health-check style calls: a
// single attempt, never retried.
func NoRetry() Policy {
	return Policy{
		MaxAttempts: 1,
		RetryIf:     func(Outcome, FailureReason) bool { return false },
	}
}

// Backoff returns the delay to wait after the given 1-based attempt number.
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(p.Multiplier) * math.Pow(2, float64(attempt-1))
	if d > float64(p.MaxWait) {
		return p.MaxWait
	}
	if d < float64(p.MinWait) {
		return p.MinWait
	}
	return time.Duration(d)
}

func (p Policy) shouldRetry(o Outcome, reason FailureReason) bool {
	if p.RetryIf != nil {
		return p.RetryIf(o, reason)
	}
	return reason.Transient()
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.MaxWait < p.MinWait {
		p.MaxWait = p.MinWait
	}
	return p
}
