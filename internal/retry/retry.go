package retry

import (
	"context"
	"math/rand"
	"time"
)

// Policy bounds a retried operation
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      bool
}

// DefaultPolicy matches upstream API rate-limit behavior: 3 attempts,
// 100ms doubling backoff.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		Jitter:      true,
	}
}

// Do runs fn until it succeeds, attempts run out, or ctx is cancelled.
// Returns the last error on exhaustion.
func Do(ctx context.Context, p Policy, fn func() error) error {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}

	var err error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := backoff(p, attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		if err = fn(); err == nil {
			return nil
		}
	}
	return err
}

func backoff(p Policy, attempt int) time.Duration {
	delay := p.BaseDelay << uint(attempt-1)
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	if p.Jitter {
		delay += time.Duration(rand.Int63n(int64(delay)/2 + 1))
	}
	return delay
}
