package crawler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Pause blocks for delay or until ctx is done, whichever comes first. It
// returns the context error when interrupted.
func Pause(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("pause interrupted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

// HostBudget rate-limits navigations per host. A nil budget or a
// non-positive QPS never blocks.
type HostBudget struct {
	qps      float64
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHostBudget creates a budget allowing qps navigations per second per host.
func NewHostBudget(qps float64) *HostBudget {
	return &HostBudget{
		qps:      qps,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Wait blocks until rawURL's host may be navigated again.
func (b *HostBudget) Wait(ctx context.Context, rawURL string) error {
	if b == nil || b.qps <= 0 {
		return nil
	}
	host := strings.ToLower(Host(rawURL))
	b.mu.Lock()
	limiter, ok := b.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(b.qps), 1)
		b.limiters[host] = limiter
	}
	b.mu.Unlock()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait host budget: %w", err)
	}
	return nil
}
