package crawler

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// RetryPolicy decides whether a failed page operation is attempted again and
// how long to wait first. The zero value never retries.
type RetryPolicy struct {
	// MaxAttempts counts the first try; 1 or less disables retries.
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// jitter returns a value in [0, n); nil uses math/rand.
	jitter func(n int64) int64
}

// NewRetryPolicy builds a policy with exponential backoff.
func NewRetryPolicy(maxAttempts int, base, maxDelay time.Duration) RetryPolicy {
	return RetryPolicy{MaxAttempts: maxAttempts, BaseDelay: base, MaxDelay: maxDelay}
}

// ShouldRetry reports whether attempt (1-based) may be followed by another.
// Nothing is retried once ctx is done.
func (p RetryPolicy) ShouldRetry(ctx context.Context, err error, attempt int) bool {
	if err == nil || ctx.Err() != nil {
		return false
	}
	return attempt < p.MaxAttempts
}

// Backoff returns the wait before attempt+1: half the exponential delay plus
// up to the same amount of jitter.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	delay := float64(p.BaseDelay) * math.Pow(2, float64(attempt-1))
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	half := int64(delay / 2)
	if half <= 0 {
		return time.Duration(delay)
	}
	jitter := p.jitter
	if jitter == nil {
		jitter = rand.Int64N
	}
	return time.Duration(half + jitter(half))
}
