package resilience

import "time"

// Clock abstracts wall-clock reads so breaker cooldowns and attempt timing
// are deterministic under test.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }
