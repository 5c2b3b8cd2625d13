package resilience

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRegistryReturnsSameBreakerPerKey(t *testing.T) {
	r := NewRegistry(BreakerConfig{FailMax: 3, ResetTimeout: time.Minute})

	a := r.ForKey("db:users")
	b := r.ForKey("db:users")
	c := r.ForKey("db:orders")

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.Equal(t, 2, r.Len())
}

func TestRegistryConcurrentCreationSingleWinner(t *testing.T) {
	r := NewRegistry(BreakerConfig{FailMax: 3, ResetTimeout: time.Minute})

	const goroutines = 64
	got := make([]*Breaker, goroutines)

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = r.ForKey("blob:reports")
		}(i)
	}
	wg.Wait()

	for i := 1; i < goroutines; i++ {
		assert.Same(t, got[0], got[i])
	}
	assert.Equal(t, 1, r.Len())
}

func TestRegistryKeysAreIndependent(t *testing.T) {
	clock := newFakeClock()
	r := NewRegistry(BreakerConfig{FailMax: 1, ResetTimeout: time.Minute}, WithClock(clock))

	r.ForKey("k1").Failure()
	assert.Equal(t, StateOpen, r.ForKey("k1").State())
	assert.Equal(t, StateClosed, r.ForKey("k2").State())
	assert.NoError(t, r.ForKey("k2").Allow())
}

func TestRegistryConcurrentDistinctKeys(t *testing.T) {
	r := NewRegistry(BreakerConfig{FailMax: 3, ResetTimeout: time.Minute})

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b := r.ForKey(fmt.Sprintf("key-%d", i))
			b.Failure()
			b.Success()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 32, r.Len())
}
