package crawler

import (
	"context"
	"time"
)

// Session drives one isolated browsing context. A Session is single-owner:
// callers obtain it through a lease and never call it from two goroutines at
// once.
type Session interface {
	// ID returns the pool index of the session.
	ID() int
	// Navigate loads rawURL and waits until the document body is ready.
	Navigate(ctx context.Context, rawURL string) error
	// Reload reloads the current document.
	Reload(ctx context.Context) error
	// Settle waits for network quiescence. Reaching the settle timeout is
	// not an error; the caller proceeds with whatever has rendered.
	Settle(ctx context.Context) error
	// Scroll scrolls the viewport vertically by deltaY pixels.
	Scroll(ctx context.Context, deltaY int) error
	// ClickText clicks the first element matching selector whose visible
	// text contains one of phrases as whole words, ignoring case. It reports
	// whether a click happened.
	ClickText(ctx context.Context, selector string, phrases []string) (bool, error)
	// Snapshot captures the rendered DOM and body text of the current page.
	Snapshot(ctx context.Context) (*Page, error)
	// Close releases the browser context.
	Close() error
}

// SessionFactory creates the session for pool slot id.
type SessionFactory func(ctx context.Context, id int) (Session, error)

// TargetSource produces the ordered search targets for a run.
type TargetSource interface {
	Targets(ctx context.Context) ([]SearchTarget, error)
}

// RecordSink accepts the completed records of a run.
type RecordSink interface {
	Write(ctx context.Context, records []ListingRecord) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock using the wall clock in UTC.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
