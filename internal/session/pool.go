// Package session owns the fixed set of browsing sessions of a run and hands
// them out under exclusive leases.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/listing-host-crawler/internal/crawler"
)

var (
	// ErrLeaseReleased is returned when a lease is used after Release.
	ErrLeaseReleased = errors.New("session lease already released")
	// ErrPoolClosed is returned by Acquire once the pool is closed.
	ErrPoolClosed = errors.New("session pool closed")
)

// Pool holds W sessions. A session is driven by at most one lease holder at
// a time.
type Pool struct {
	logger   *zap.Logger
	sessions []crawler.Session

	mu     sync.Mutex
	busy   []bool
	wake   chan struct{}
	closed bool
}

// New launches size sessions with factory. Sessions start concurrently;
// if any fails, the ones already running are closed and the error returned.
func New(ctx context.Context, factory crawler.SessionFactory, size int, logger *zap.Logger) (*Pool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("session pool size must be positive, got %d", size)
	}
	if factory == nil {
		return nil, errors.New("session factory is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	sessions := make([]crawler.Session, size)
	g, gctx := errgroup.WithContext(ctx)
	for i := range size {
		g.Go(func() error {
			sess, err := factory(gctx, i)
			if err != nil {
				return fmt.Errorf("start session %d: %w", i, err)
			}
			sessions[i] = sess
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, sess := range sessions {
			if sess != nil {
				_ = sess.Close()
			}
		}
		return nil, err
	}

	logger.Info("session pool ready", zap.Int("sessions", size))
	return &Pool{
		logger:   logger,
		sessions: sessions,
		busy:     make([]bool, size),
		wake:     make(chan struct{}),
	}, nil
}

// Size reports the number of sessions in the pool.
func (p *Pool) Size() int {
	return len(p.sessions)
}

// Acquire leases any free session, waiting until one is released.
func (p *Pool) Acquire(ctx context.Context) (*Lease, error) {
	return p.acquire(ctx, func() int {
		for i, b := range p.busy {
			if !b {
				return i
			}
		}
		return -1
	})
}

// AcquireIndex leases session i, waiting until its current holder releases it.
func (p *Pool) AcquireIndex(ctx context.Context, i int) (*Lease, error) {
	if i < 0 || i >= len(p.sessions) {
		return nil, fmt.Errorf("session index %d out of range [0,%d)", i, len(p.sessions))
	}
	return p.acquire(ctx, func() int {
		if p.busy[i] {
			return -1
		}
		return i
	})
}

// pick runs with p.mu held.
func (p *Pool) acquire(ctx context.Context, pick func() int) (*Lease, error) {
	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, ErrPoolClosed
		}
		if i := pick(); i >= 0 {
			p.busy[i] = true
			p.mu.Unlock()
			return &Lease{pool: p, index: i, sess: p.sessions[i]}, nil
		}
		wake := p.wake
		p.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("acquire session: %w", ctx.Err())
		case <-wake:
		}
	}
}

func (p *Pool) release(i int) {
	p.mu.Lock()
	p.busy[i] = false
	if !p.closed {
		close(p.wake)
		p.wake = make(chan struct{})
	}
	p.mu.Unlock()
}

// Close closes every session once. Pending and later Acquire calls fail
// with ErrPoolClosed.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.wake)
	p.mu.Unlock()

	var errs []error
	for _, sess := range p.sessions {
		if err := sess.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	p.logger.Info("session pool closed", zap.Int("errors", len(errs)))
	return errors.Join(errs...)
}

// Lease is exclusive ownership of one pooled session.
type Lease struct {
	pool     *Pool
	index    int
	sess     crawler.Session
	released atomic.Bool
}

// Index is the pool slot of the leased session.
func (l *Lease) Index() int {
	return l.index
}

// Session returns the leased session, or ErrLeaseReleased after Release.
func (l *Lease) Session() (crawler.Session, error) {
	if l.released.Load() {
		return nil, ErrLeaseReleased
	}
	return l.sess, nil
}

// Release returns the session to the pool. Calling it again is a no-op.
func (l *Lease) Release() {
	if l.released.CompareAndSwap(false, true) {
		l.pool.release(l.index)
	}
}
