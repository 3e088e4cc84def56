package fetch

import (
	"context"
	"time"
)

// sleep is swapped in tests to observe retry delays without waiting.
var sleep = time.Sleep

// Policy is the shared retry policy for outbound calls. The same policy
// drives HTTP fetches and generative-provider transport retries, so backoff
// behavior stays uniform across the pipeline.
type Policy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// BaseDelay is the delay before the first retry; each further retry
	// doubles it.
	BaseDelay time.Duration
	// MaxDelay caps the delay between retries. Zero means no cap.
	MaxDelay time.Duration
}

// DefaultPolicy returns the retry policy used when none is configured.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: 3,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   8 * time.Second,
	}
}

// Delay returns the backoff before the given zero-based retry attempt:
// BaseDelay * 2^attempt, capped at MaxDelay.
func (p Policy) Delay(attempt int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	d := p.BaseDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Run executes op, retrying while retryable reports the returned error as
// transient, up to MaxRetries extra attempts. Context cancellation stops
// the loop between attempts. The final error is returned unchanged so
// callers keep its type.
func (p Policy) Run(ctx context.Context, retryable func(error) bool, op func() error) error {
	for attempt := 0; ; attempt++ {
		err := op()
		if err == nil {
			return nil
		}
		if attempt >= p.MaxRetries || !retryable(err) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		sleep(p.Delay(attempt))
	}
}
