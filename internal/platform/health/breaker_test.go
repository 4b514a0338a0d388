package health

import (
	"testing"
	"time"
)

func TestBreakerBlocksAfterThreshold(t *testing.T) {
	b := NewBreaker(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !b.ShouldAttempt() {
			t.Fatalf("attempt %d should be allowed below threshold", i+1)
		}
		b.RecordFailure()
	}

	if b.ShouldAttempt() {
		t.Fatal("attempts must be blocked once the threshold is reached")
	}
}

func TestBreakerAllowsProbeAfterCooldown(t *testing.T) {
	b := NewBreaker(1, time.Minute)

	current := time.Now()
	b.now = func() time.Time { return current }

	b.RecordFailure()
	if b.ShouldAttempt() {
		t.Fatal("attempt must be blocked during cooldown")
	}

	current = current.Add(time.Minute)
	if !b.ShouldAttempt() {
		t.Fatal("a probe must be allowed once the cooldown elapses")
	}
}

func TestBreakerReset(t *testing.T) {
	b := NewBreaker(1, time.Minute)

	b.RecordFailure()
	b.Reset()

	if !b.ShouldAttempt() {
		t.Fatal("reset must clear the failure count")
	}
}
