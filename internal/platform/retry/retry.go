package retry

import (
	"context"
	"time"
)

// Policy describes a bounded retry loop. Zero-value fields fall back to
// the package defaults (3 attempts, 1s base delay, linear backoff).
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// Backoff returns the wait before the next attempt. attempt is the
	// 1-based number of the attempt that just failed.
	Backoff func(base time.Duration, attempt int) time.Duration
	// Retryable reports whether an error is worth another attempt.
	// Logical collaborator errors are not; transport failures are.
	Retryable func(error) bool
	// OnRetry, when set, is invoked before each backoff sleep.
	OnRetry func(attempt int, err error)
}

// Linear is the default backoff: base × attempt.
func Linear(base time.Duration, attempt int) time.Duration {
	return base * time.Duration(attempt)
}

func (p Policy) maxAttempts() int {
	if p.MaxAttempts > 0 {
		return p.MaxAttempts
	}
	return 3
}

func (p Policy) baseDelay() time.Duration {
	if p.BaseDelay > 0 {
		return p.BaseDelay
	}
	return time.Second
}

func (p Policy) backoff(attempt int) time.Duration {
	if p.Backoff != nil {
		return p.Backoff(p.baseDelay(), attempt)
	}
	return Linear(p.baseDelay(), attempt)
}

// Do runs op until it succeeds, the policy is exhausted, or ctx is done.
// Backoff waits are timer-based and respect cancellation; there is no
// busy-waiting.
func (p Policy) Do(ctx context.Context, op func() error) error {
	var lastErr error

	for attempt := 1; attempt <= p.maxAttempts(); attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op()
		if lastErr == nil {
			return nil
		}

		if p.Retryable != nil && !p.Retryable(lastErr) {
			return lastErr
		}

		if attempt == p.maxAttempts() {
			return lastErr
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, lastErr)
		}

		timer := time.NewTimer(p.backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return lastErr
}
