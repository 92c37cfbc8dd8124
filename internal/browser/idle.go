package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
)

// idleTracker counts in-flight network requests of one tab so Settle can
// wait for the network to go quiet.
type idleTracker struct {
	mu           sync.Mutex
	inflight     map[network.RequestID]struct{}
	lastActivity time.Time
	now          func() time.Time
}

func newIdleTracker() *idleTracker {
	return &idleTracker{
		inflight:     make(map[network.RequestID]struct{}),
		lastActivity: time.Now(),
		now:          time.Now,
	}
}

// handle is registered with chromedp.ListenTarget; it must not block.
func (t *idleTracker) handle(ev any) {
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		t.begin(e.RequestID)
	case *network.EventLoadingFinished:
		t.end(e.RequestID)
	case *network.EventLoadingFailed:
		t.end(e.RequestID)
	}
}

func (t *idleTracker) begin(id network.RequestID) {
	t.mu.Lock()
	t.inflight[id] = struct{}{}
	t.lastActivity = t.now()
	t.mu.Unlock()
}

func (t *idleTracker) end(id network.RequestID) {
	t.mu.Lock()
	delete(t.inflight, id)
	t.lastActivity = t.now()
	t.mu.Unlock()
}

// reset forgets requests from a previous document.
func (t *idleTracker) reset() {
	t.mu.Lock()
	t.inflight = make(map[network.RequestID]struct{})
	t.lastActivity = t.now()
	t.mu.Unlock()
}

// idleFor reports whether no request has been in flight for window.
func (t *idleTracker) idleFor(window time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inflight) == 0 && t.now().Sub(t.lastActivity) >= window
}

// wait polls until the tab has been idle for window or timeout elapses.
// Reaching the timeout is not an error.
func (t *idleTracker) wait(ctx context.Context, window, timeout time.Duration) (bool, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	interval := window / 5
	if interval <= 0 {
		interval = 10 * time.Millisecond
	}
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		if t.idleFor(window) {
			return true, nil
		}
		select {
		case <-ctx.Done():
			return false, fmt.Errorf("settle wait: %w", ctx.Err())
		case <-deadline.C:
			return false, nil
		case <-tick.C:
		}
	}
}
