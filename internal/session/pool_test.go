package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/listing-host-crawler/internal/crawler"
	"github.com/JakeFAU/listing-host-crawler/internal/crawler/crawlertest"
)

func newTestPool(t *testing.T, n int) (*Pool, []*crawlertest.FakeSession) {
	t.Helper()
	fakes := make([]*crawlertest.FakeSession, n)
	for i := range fakes {
		fakes[i] = &crawlertest.FakeSession{}
	}
	pool, err := New(context.Background(), crawlertest.Factory(fakes...), n, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })
	return pool, fakes
}

func TestNewRejectsBadSize(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), crawlertest.Factory(), 0, nil)
	require.Error(t, err)
}

func TestNewClosesStartedSessionsOnFailure(t *testing.T) {
	t.Parallel()

	ok := &crawlertest.FakeSession{}
	factory := func(_ context.Context, id int) (crawler.Session, error) {
		if id == 1 {
			return nil, errors.New("chrome missing")
		}
		return ok, nil
	}

	_, err := New(context.Background(), factory, 2, nil)
	require.ErrorContains(t, err, "chrome missing")
	require.True(t, ok.Closed())
}

func TestAcquireIndexReturnsThatSession(t *testing.T) {
	t.Parallel()

	pool, _ := newTestPool(t, 3)
	lease, err := pool.AcquireIndex(context.Background(), 2)
	require.NoError(t, err)
	defer lease.Release()

	sess, err := lease.Session()
	require.NoError(t, err)
	require.Equal(t, 2, sess.ID())
	require.Equal(t, 2, lease.Index())
	require.Equal(t, 3, pool.Size())
}

func TestAcquireIndexOutOfRange(t *testing.T) {
	t.Parallel()

	pool, _ := newTestPool(t, 1)
	_, err := pool.AcquireIndex(context.Background(), 1)
	require.Error(t, err)
}

func TestLeaseIsExclusiveUntilReleased(t *testing.T) {
	t.Parallel()

	pool, _ := newTestPool(t, 1)
	first, err := pool.AcquireIndex(context.Background(), 0)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = pool.Acquire(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	got := make(chan *Lease, 1)
	go func() {
		l, acqErr := pool.AcquireIndex(context.Background(), 0)
		if acqErr == nil {
			got <- l
		}
	}()
	first.Release()

	select {
	case l := <-got:
		require.Equal(t, 0, l.Index())
		l.Release()
	case <-time.After(time.Second):
		t.Fatal("waiter not woken by release")
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	t.Parallel()

	pool, _ := newTestPool(t, 1)
	lease, err := pool.Acquire(context.Background())
	require.NoError(t, err)

	lease.Release()
	lease.Release()

	_, err = lease.Session()
	require.ErrorIs(t, err, ErrLeaseReleased)

	again, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	again.Release()
}

func TestAcquireSkipsBusySessions(t *testing.T) {
	t.Parallel()

	pool, _ := newTestPool(t, 2)
	a, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	b, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	require.NotEqual(t, a.Index(), b.Index())
	a.Release()
	b.Release()
}

func TestCloseClosesSessionsAndWakesWaiters(t *testing.T) {
	t.Parallel()

	pool, fakes := newTestPool(t, 1)
	held, err := pool.Acquire(context.Background())
	require.NoError(t, err)

	errs := make(chan error, 1)
	go func() {
		_, acqErr := pool.Acquire(context.Background())
		errs <- acqErr
	}()

	require.NoError(t, pool.Close())
	require.NoError(t, pool.Close())
	require.ErrorIs(t, <-errs, ErrPoolClosed)
	require.True(t, fakes[0].Closed())

	held.Release()
	_, err = pool.Acquire(context.Background())
	require.ErrorIs(t, err, ErrPoolClosed)
}
