package pipeline

import (
	"context"
	"time"
)

// RetryPolicy bounds re-attempts of an external-capability call. Only
// transient failures are retried; validation and other permanent errors
// surface immediately.
type RetryPolicy struct {
	MaxAttempts int
	Delays      []time.Duration
}

// DefaultRetryPolicy retries external calls up to 3 attempts with a short
// growing backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Delays:      []time.Duration{2 * time.Second, 5 * time.Second, 10 * time.Second},
	}
}

// Delay returns the wait before the given 1-based attempt's retry. Attempts
// past the schedule reuse the last entry.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if len(p.Delays) == 0 {
		return 0
	}
	if attempt > len(p.Delays) {
		attempt = len(p.Delays)
	}
	if attempt < 1 {
		attempt = 1
	}
	return p.Delays[attempt-1]
}

// Do invokes fn until it succeeds, fails permanently, or the attempt budget
// is exhausted. The last error is returned unwrapped so callers keep the
// original failure.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if !IsTransient(err) || attempt == attempts {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Delay(attempt)):
		}
	}
	return err
}
