package pskreporter

import (
	"context"
	"time"
)

// RetryPolicy is a retry schedule expressed as a value: attempt budget, the
// backoff schedule for rate-limited responses, and the flat delay for other
// transient failures. Sleep is injectable for tests.
type RetryPolicy struct {
	MaxAttempts      int
	RateLimitBackoff []time.Duration
	TransientDelay   time.Duration
	Sleep            func(time.Duration)
}

// DefaultRetryPolicy matches the service's documented etiquette: three
// attempts, 1s/2s/4s backoff when rate limited, flat 1s otherwise.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:      3,
		RateLimitBackoff: []time.Duration{time.Second, 2 * time.Second, 4 * time.Second},
		TransientDelay:   time.Second,
		Sleep:            time.Sleep,
	}
}

// Do runs fn until it succeeds or the attempt budget is spent. The delay
// before retry n comes from the rate-limit schedule when the failure was a
// 429, otherwise the flat transient delay is used. Context cancellation cuts
// the loop short.
func (p RetryPolicy) Do(ctx context.Context, fn func() ([]byte, error)) ([]byte, error) {
	sleep := p.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		body, err := fn()
		if err == nil {
			return body, nil
		}
		lastErr = err
		if attempt == attempts-1 {
			break
		}
		sleep(p.delayFor(err, attempt))
	}
	return nil, lastErr
}

func (p RetryPolicy) delayFor(err error, attempt int) time.Duration {
	if _, ok := err.(errRateLimited); ok {
		if attempt < len(p.RateLimitBackoff) {
			return p.RateLimitBackoff[attempt]
		}
		if n := len(p.RateLimitBackoff); n > 0 {
			return p.RateLimitBackoff[n-1]
		}
	}
	if p.TransientDelay > 0 {
		return p.TransientDelay
	}
	return time.Second
}
