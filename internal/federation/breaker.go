package federation

import (
	"sync"
	"time"
)

// Circuit breaker defaults.
const (
	BreakerThreshold = 5
	BreakerCooldown  = 60 * time.Second
)

// circuitBreaker stops publish attempts after repeated transport failures
// and lets them resume once a cool-down has elapsed. Successful publishes
// do not touch the failure count; only closing the breaker resets it.
type circuitBreaker struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration
	failures  int
	open      bool
	openedAt  time.Time
	timer     *time.Timer
	now       func() time.Time
	onChange  func(open bool)
}

func newCircuitBreaker(threshold int, cooldown time.Duration, onChange func(open bool)) *circuitBreaker {
	return &circuitBreaker{
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
		onChange:  onChange,
	}
}

// Allow reports whether a publish may proceed. An open breaker whose
// cool-down has elapsed closes here, so recovery does not depend solely on
// the timer firing.
func (b *circuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		return true
	}
	if b.now().Sub(b.openedAt) >= b.cooldown {
		b.closeLocked()
		return true
	}
	return false
}

// RecordFailure counts a transport failure, tripping the breaker at the
// threshold. Returns true when this call opened the breaker.
func (b *circuitBreaker) RecordFailure() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	if b.open || b.failures < b.threshold {
		return false
	}
	b.open = true
	b.openedAt = b.now()
	b.timer = time.AfterFunc(b.cooldown, b.autoClose)
	if b.onChange != nil {
		b.onChange(true)
	}
	return true
}

// IsOpen reports the breaker state without side effects.
func (b *circuitBreaker) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open
}

// Stop cancels the pending auto-close timer. Called on client shutdown so
// no wakeup fires after the connection is gone.
func (b *circuitBreaker) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}

func (b *circuitBreaker) autoClose() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.open {
		b.closeLocked()
	}
}

func (b *circuitBreaker) closeLocked() {
	b.open = false
	b.failures = 0
	b.openedAt = time.Time{}
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	if b.onChange != nil {
		b.onChange(false)
	}
}
