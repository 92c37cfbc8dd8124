package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	srv, err := NewServer("127.0.0.1:0", reg, nil)
	require.NoError(t, err)
	return srv, reg
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	srv, reg := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"status":"ok"}`, string(body))

	n, err := testutil.GatherAndCount(reg, "hostcrawler_http_requests_total")
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestMetricsServesRegisteredCollectors(t *testing.T) {
	t.Parallel()

	srv, reg := newTestServer(t)
	runs := prometheus.NewCounter(prometheus.CounterOpts{Name: "hostcrawler_test_runs_total", Help: "test"})
	reg.MustRegister(runs)
	runs.Add(3)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), "hostcrawler_test_runs_total 3")
}

func TestUnknownRouteIsCounted(t *testing.T) {
	t.Parallel()

	srv, reg := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/nope")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	const want = `
# HELP hostcrawler_http_requests_total Requests served by the metrics server, labeled by method and code.
# TYPE hostcrawler_http_requests_total counter
hostcrawler_http_requests_total{code="404",method="GET"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(want), "hostcrawler_http_requests_total"))
}

func TestNewServerRejectsDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewServer(":0", reg, nil)
	require.NoError(t, err)
	_, err = NewServer(":0", reg, nil)
	require.ErrorContains(t, err, "register http metrics")
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop after cancel")
	}
}
