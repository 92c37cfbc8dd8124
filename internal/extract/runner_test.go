package extract

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/listing-host-crawler/internal/crawler"
)

func constant(name, value string) Strategy {
	return Strategy{Name: name, Fn: func(*crawler.Page) (string, bool) { return value, value != "" }}
}

func TestRunnerFirstHitWins(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	r, err := NewRunner(time.Second, nil, reg)
	require.NoError(t, err)

	called := false
	out := r.First(context.Background(), "f", mustPage(t, ""), []Strategy{
		constant("empty", ""),
		constant("good", "v"),
		{Name: "later", Fn: func(*crawler.Page) (string, bool) { called = true; return "x", true }},
	})

	require.Equal(t, Outcome{Field: "f", Value: "v", Strategy: "good", Matched: true}, out)
	require.False(t, called)
	require.InDelta(t, 1, testutil.ToFloat64(r.results.WithLabelValues("f", "empty", "miss")), 1e-9)
	require.InDelta(t, 1, testutil.ToFloat64(r.results.WithLabelValues("f", "good", "hit")), 1e-9)
}

func TestRunnerTimeoutIsAMiss(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	r, err := NewRunner(20*time.Millisecond, nil, reg)
	require.NoError(t, err)

	slow := Strategy{Name: "slow", Fn: func(*crawler.Page) (string, bool) {
		time.Sleep(300 * time.Millisecond)
		return "late", true
	}}
	out := r.First(context.Background(), "f", mustPage(t, ""), []Strategy{slow, constant("fast", "ok")})

	require.Equal(t, "fast", out.Strategy)
	require.InDelta(t, 1, testutil.ToFloat64(r.results.WithLabelValues("f", "slow", "timeout")), 1e-9)
}

func TestRunnerStopsOnCancelledContext(t *testing.T) {
	t.Parallel()

	r, err := NewRunner(time.Second, nil, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := r.First(ctx, "f", mustPage(t, ""), []Strategy{constant("good", "v")})
	require.False(t, out.Matched)
	require.Equal(t, "f", out.Field)
}

func TestNewRunnerReusesRegisteredCollector(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	first, err := NewRunner(0, nil, reg)
	require.NoError(t, err)
	second, err := NewRunner(0, nil, reg)
	require.NoError(t, err)
	require.Same(t, first.results, second.results)
	require.Equal(t, defaultStrategyTimeout, second.timeout)
}
