package resilience

import "sync"

// Registry owns one breaker per logical target key. Breakers are created
// lazily on first use and live for the process lifetime; there is no
// eviction, so callers must use a bounded key space.
type Registry struct {
	cfg   BreakerConfig
	clock Clock
	onCh  StateChangeFunc

	mu       sync.RWMutex
	breakers map[string]*Breaker
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithClock replaces the wall clock, for tests.
func WithClock(c Clock) RegistryOption {
	return func(r *Registry) { r.clock = c }
}

// WithStateChange registers a hook invoked on every breaker state
// transition.
func WithStateChange(fn StateChangeFunc) RegistryOption {
	return func(r *Registry) { r.onCh = fn }
}

// NewRegistry creates an empty registry whose breakers share cfg.
func NewRegistry(cfg BreakerConfig, opts ...RegistryOption) *Registry {
	r := &Registry{
		cfg:      cfg.normalized(),
		clock:    realClock{},
		breakers: make(map[string]*Breaker),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ForKey returns the breaker for key, creating it on first use. Concurrent
// first access for an unseen key resolves to a single breaker.
func (r *Registry) ForKey(key string) *Breaker {
	r.mu.RLock()
	b, ok := r.breakers[key]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[key]; ok {
		return b
	}
	b = newBreaker(key, r.cfg, r.clock, r.onCh)
	r.breakers[key] = b
	return b
}

// States returns a snapshot of every breaker's current state, keyed by
// target key.
func (r *Registry) States() map[string]BreakerState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]BreakerState, len(r.breakers))
	for key, b := range r.breakers {
		out[key] = b.State()
	}
	return out
}

// Len returns the number of breakers created so far.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.breakers)
}
