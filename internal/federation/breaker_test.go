package federation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock drives breaker and limiter time in tests.
type fakeClock struct {
	at time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{at: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time {
	return c.at
}

func (c *fakeClock) advance(d time.Duration) {
	c.at = c.at.Add(d)
}

func TestBreakerTripsAtThreshold(t *testing.T) {
	clock := newFakeClock()
	b := newCircuitBreaker(BreakerThreshold, BreakerCooldown, nil)
	b.now = clock.now
	defer b.Stop()

	for i := 0; i < BreakerThreshold-1; i++ {
		assert.False(t, b.RecordFailure())
		assert.True(t, b.Allow(), "breaker must stay closed below the threshold")
	}

	assert.True(t, b.RecordFailure(), "threshold failure must open the breaker")
	assert.True(t, b.IsOpen())
	assert.False(t, b.Allow())
}

func TestBreakerClosesAfterCooldown(t *testing.T) {
	clock := newFakeClock()
	b := newCircuitBreaker(BreakerThreshold, BreakerCooldown, nil)
	b.now = clock.now
	defer b.Stop()

	for i := 0; i < BreakerThreshold; i++ {
		b.RecordFailure()
	}
	assert.False(t, b.Allow())

	clock.advance(BreakerCooldown)
	assert.True(t, b.Allow(), "breaker must close once the cooldown elapsed")
	assert.False(t, b.IsOpen())

	b.mu.Lock()
	failures := b.failures
	b.mu.Unlock()
	assert.Zero(t, failures, "closing must reset the failure count")
}

func TestBreakerStateChangeCallback(t *testing.T) {
	clock := newFakeClock()
	var transitions []bool
	b := newCircuitBreaker(2, BreakerCooldown, func(open bool) {
		transitions = append(transitions, open)
	})
	b.now = clock.now
	defer b.Stop()

	b.RecordFailure()
	b.RecordFailure()
	clock.advance(BreakerCooldown)
	b.Allow()

	assert.Equal(t, []bool{true, false}, transitions)
}

func TestBreakerSuccessDoesNotResetFailures(t *testing.T) {
	// Only a full breaker close resets the counter; there is deliberately
	// no success hook.
	clock := newFakeClock()
	b := newCircuitBreaker(BreakerThreshold, BreakerCooldown, nil)
	b.now = clock.now
	defer b.Stop()

	for i := 0; i < BreakerThreshold-1; i++ {
		b.RecordFailure()
	}
	assert.True(t, b.Allow())
	assert.True(t, b.RecordFailure(), "one more failure must still trip the breaker")
}
