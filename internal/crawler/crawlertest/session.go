// Package crawlertest provides a scripted crawler.Session serving fixed HTML
// so discovery, extraction and worker behavior can be tested without a browser.
package crawlertest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/JakeFAU/listing-host-crawler/internal/crawler"
)

// ErrClosed is returned by a FakeSession after Close.
var ErrClosed = errors.New("fake session closed")

// FakeSession serves successive HTML frames per URL. Navigate shows the first
// frame of a URL; Scroll and Reload advance to the next frame, staying on the
// last one once the script runs out.
type FakeSession struct {
	SessionID int
	// Frames maps a URL to the documents it renders over time.
	Frames map[string][]string
	// Redirects maps a requested URL to the URL the session ends up on.
	Redirects map[string]string
	// NavigateErr fails navigation to the given URLs.
	NavigateErr map[string]error
	// ClickResult is returned by ClickText.
	ClickResult bool
	// ClickErr is returned by ClickText.
	ClickErr error
	// Delay is slept inside every operation, which makes overlapping use
	// observable.
	Delay time.Duration

	mu          sync.Mutex
	current     string
	frame       int
	navigations []string
	scrolls     int
	reloads     int
	clicks      int
	closed      bool

	inflight atomic.Int32
	overlap  atomic.Bool
}

var _ crawler.Session = (*FakeSession)(nil)

// ID implements crawler.Session.
func (f *FakeSession) ID() int { return f.SessionID }

// Navigate implements crawler.Session.
func (f *FakeSession) Navigate(ctx context.Context, rawURL string) error {
	defer f.enter()()
	if err := f.step(ctx); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.navigations = append(f.navigations, rawURL)
	if err := f.NavigateErr[rawURL]; err != nil {
		return err
	}
	f.current = rawURL
	if to, ok := f.Redirects[rawURL]; ok {
		f.current = to
	}
	f.frame = 0
	return nil
}

// Reload implements crawler.Session.
func (f *FakeSession) Reload(ctx context.Context) error {
	defer f.enter()()
	if err := f.step(ctx); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reloads++
	f.frame++
	return nil
}

// Settle implements crawler.Session.
func (f *FakeSession) Settle(ctx context.Context) error {
	defer f.enter()()
	return f.step(ctx)
}

// Scroll implements crawler.Session.
func (f *FakeSession) Scroll(ctx context.Context, _ int) error {
	defer f.enter()()
	if err := f.step(ctx); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scrolls++
	f.frame++
	return nil
}

// ClickText implements crawler.Session.
func (f *FakeSession) ClickText(ctx context.Context, _ string, _ []string) (bool, error) {
	defer f.enter()()
	if err := f.step(ctx); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clicks++
	return f.ClickResult, f.ClickErr
}

// Snapshot implements crawler.Session.
func (f *FakeSession) Snapshot(ctx context.Context) (*crawler.Page, error) {
	defer f.enter()()
	if err := f.step(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	frames, ok := f.Frames[f.current]
	if !ok || len(frames) == 0 {
		return crawler.NewPage(f.current, "<html><body></body></html>", "")
	}
	html := frames[min(f.frame, len(frames)-1)]
	return crawler.NewPage(f.current, html, "")
}

// Close implements crawler.Session.
func (f *FakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Navigations lists every URL passed to Navigate, in order.
func (f *FakeSession) Navigations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.navigations...)
}

// Scrolls counts Scroll calls.
func (f *FakeSession) Scrolls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scrolls
}

// Reloads counts Reload calls.
func (f *FakeSession) Reloads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reloads
}

// Clicks counts ClickText calls.
func (f *FakeSession) Clicks() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clicks
}

// Closed reports whether Close was called.
func (f *FakeSession) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Overlapped reports whether two operations ever ran at the same time.
func (f *FakeSession) Overlapped() bool {
	return f.overlap.Load()
}

func (f *FakeSession) enter() func() {
	if f.inflight.Add(1) > 1 {
		f.overlap.Store(true)
	}
	return func() { f.inflight.Add(-1) }
}

func (f *FakeSession) step(ctx context.Context) error {
	f.mu.Lock()
	closed := f.closed
	f.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if f.Delay > 0 {
		select {
		case <-ctx.Done():
			return fmt.Errorf("fake session: %w", ctx.Err())
		case <-time.After(f.Delay):
		}
	}
	return ctx.Err()
}

// Factory returns a crawler.SessionFactory handing out the given sessions by
// index, or an error when the index has no session.
func Factory(sessions ...*FakeSession) crawler.SessionFactory {
	return func(_ context.Context, id int) (crawler.Session, error) {
		if id < 0 || id >= len(sessions) {
			return nil, fmt.Errorf("no fake session for slot %d", id)
		}
		sessions[id].SessionID = id
		return sessions[id], nil
	}
}
