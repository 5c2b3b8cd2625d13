package resilience

import (
	"sync"
	"time"
)

// BreakerState is the circuit breaker state.
type BreakerState int

const (
	// StateClosed is the normal operating state. Calls pass through.
	StateClosed BreakerState = iota

	// StateOpen is the tripped state. Calls are rejected immediately.
	StateOpen

	// StateHalfOpen admits a single trial call after the cooldown.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// GaugeValue maps the state to its metric encoding:
// 0=Closed, 1=Open, 2=HalfOpen.
func (s BreakerState) GaugeValue() float64 {
	return float64(s)
}

// BreakerConfig holds the thresholds shared by all breakers in a registry.
type BreakerConfig struct {
	// FailMax is the consecutive-failure count that opens the breaker.
	FailMax int

	// ResetTimeout is the cooldown before an open breaker admits a trial.
	ResetTimeout time.Duration
}

// DefaultBreakerConfig mirrors the storage-client budget: open after 3
// consecutive failures, cool down for 5 minutes.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailMax:      3,
		ResetTimeout: 5 * time.Minute,
	}
}

func (c BreakerConfig) normalized() BreakerConfig {
	if c.FailMax < 1 {
		c.FailMax = DefaultBreakerConfig().FailMax
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = DefaultBreakerConfig().ResetTimeout
	}
	return c
}

// StateChangeFunc is invoked after a breaker transitions between states.
type StateChangeFunc func(key string, from, to BreakerState)

// Breaker is a per-key Closed/Open/HalfOpen state machine. All state is
// guarded by a per-breaker mutex; breakers for distinct keys never contend.
type Breaker struct {
	key   string
	cfg   BreakerConfig
	clock Clock
	onCh  StateChangeFunc

	mu            sync.Mutex
	state         BreakerState
	failures      int
	openedAt      time.Time
	trialInFlight bool
}

func newBreaker(key string, cfg BreakerConfig, clock Clock, onCh StateChangeFunc) *Breaker {
	return &Breaker{
		key:   key,
		cfg:   cfg.normalized(),
		clock: clock,
		onCh:  onCh,
		state: StateClosed,
	}
}

// Key returns the breaker's registry key.
func (b *Breaker) Key() string { return b.key }

// State returns the current state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// ConsecutiveFailures returns the current consecutive-failure count.
func (b *Breaker) ConsecutiveFailures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// Allow reports whether a call may proceed. In the open state, calls are
// rejected until the cooldown elapses; the first caller after the cooldown
// transitions the breaker to half-open and is admitted as the single trial.
// Further callers are rejected until the trial resolves.
func (b *Breaker) Allow() error {
	b.mu.Lock()

	switch b.state {
	case StateClosed:
		b.mu.Unlock()
		return nil

	case StateOpen:
		if b.clock.Now().Sub(b.openedAt) < b.cfg.ResetTimeout {
			b.mu.Unlock()
			return &BreakerOpenError{Key: b.key}
		}
		b.state = StateHalfOpen
		b.trialInFlight = true
		b.mu.Unlock()
		b.notify(StateOpen, StateHalfOpen)
		return nil

	default: // StateHalfOpen
		if b.trialInFlight {
			b.mu.Unlock()
			return &BreakerOpenError{Key: b.key}
		}
		b.trialInFlight = true
		b.mu.Unlock()
		return nil
	}
}

// Success records a successful call. A successful half-open trial closes the
// breaker and resets the failure counter.
func (b *Breaker) Success() {
	b.mu.Lock()

	switch b.state {
	case StateClosed:
		b.failures = 0
		b.mu.Unlock()

	case StateHalfOpen:
		b.state = StateClosed
		b.failures = 0
		b.trialInFlight = false
		b.mu.Unlock()
		b.notify(StateHalfOpen, StateClosed)

	default:
		b.mu.Unlock()
	}
}

// Failure records a failed call. Reaching FailMax consecutive failures while
// closed opens the breaker; a failed half-open trial reopens it and restarts
// the cooldown.
func (b *Breaker) Failure() {
	b.mu.Lock()

	switch b.state {
	case StateClosed:
		b.failures++
		if b.failures < b.cfg.FailMax {
			b.mu.Unlock()
			return
		}
		b.state = StateOpen
		b.openedAt = b.clock.Now()
		b.mu.Unlock()
		b.notify(StateClosed, StateOpen)

	case StateHalfOpen:
		b.state = StateOpen
		b.openedAt = b.clock.Now()
		b.trialInFlight = false
		b.mu.Unlock()
		b.notify(StateHalfOpen, StateOpen)

	default:
		b.mu.Unlock()
	}
}

func (b *Breaker) notify(from, to BreakerState) {
	if b.onCh != nil {
		b.onCh(b.key, from, to)
	}
}
