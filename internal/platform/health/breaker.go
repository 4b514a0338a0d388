package health

import (
	"sync"
	"time"
)

// Breaker tracks consecutive collaborator failures so callers can fail
// fast while the collaborator is known to be down. One Breaker is owned
// per client instance; there is no process-wide state.
type Breaker struct {
	mu            sync.Mutex
	failureCount  int
	lastFailureAt time.Time
	threshold     int
	cooldown      time.Duration
	now           func() time.Time
}

func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	return &Breaker{
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// ShouldAttempt reports whether a live call is worth making. Once the
// failure threshold is reached, attempts are blocked until the cooldown
// since the last failure elapses; after that a single probe is allowed.
func (b *Breaker) ShouldAttempt() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failureCount < b.threshold {
		return true
	}
	return b.now().Sub(b.lastFailureAt) >= b.cooldown
}

func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount++
	b.lastFailureAt = b.now()
}

func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount = 0
	b.lastFailureAt = time.Time{}
}
