package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/listing-host-crawler/internal/config"
	"github.com/JakeFAU/listing-host-crawler/internal/crawler"
	"github.com/JakeFAU/listing-host-crawler/internal/crawler/crawlertest"
	"github.com/JakeFAU/listing-host-crawler/internal/targets"
)

const searchURL = "https://www.airbnb.fr/s/Nice/homes"

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Crawler.Workers = 2
	cfg.Discovery.ScrollPause = 0
	cfg.Discovery.SettleDelay = 0
	cfg.Discovery.MaxScrolls = 1
	cfg.Worker.RequestDelay = 0
	cfg.Worker.SettleDelay = 0
	cfg.Worker.ScrollPause = 0
	cfg.Output.Path = filepath.Join(t.TempDir(), "hosts.csv")
	cfg.Output.IncludeStatus = true
	return cfg
}

func fakeFactory() crawler.SessionFactory {
	frames := map[string][]string{
		searchURL: {`<html><body><a href="/rooms/1">1</a><a href="/rooms/2?x=1">2</a><a href="/rooms/3">3</a></body></html>`},
		"https://www.airbnb.fr/rooms/1": {`<html><body><h1>Villa</h1></body></html>`},
		"https://www.airbnb.fr/rooms/2": {`<html><body><h1>Studio</h1></body></html>`},
		"https://www.airbnb.fr/rooms/3": {`<html><body><h1>Loft</h1></body></html>`},
	}
	return func(_ context.Context, id int) (crawler.Session, error) {
		return &crawlertest.FakeSession{SessionID: id, Frames: frames}, nil
	}
}

func writeTargets(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "search_urls.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o600))
	return path
}

func TestRunWritesCSV(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	a, err := Build(context.Background(), cfg, nil, Options{SessionFactory: fakeFactory()})
	require.NoError(t, err)

	summary, err := a.Run(context.Background(), writeTargets(t, "# nice", searchURL))
	require.NoError(t, err)
	require.Equal(t, 1, summary.Targets)
	require.Equal(t, 3, summary.Records)
	require.NotEmpty(t, summary.RunID)

	raw, err := os.ReadFile(cfg.Output.Path)
	require.NoError(t, err)
	out := string(raw)
	require.Contains(t, out, "https://www.airbnb.fr/rooms/2,Studio")
	require.Contains(t, out, ",status\n")

	require.NoError(t, a.Close(context.Background()))
	n, err := testutil.GatherAndCount(a.Registry(), "hostcrawler_listings_total")
	require.NoError(t, err)
	require.Positive(t, n)
}

func TestRunMissingTargets(t *testing.T) {
	t.Parallel()

	a, err := Build(context.Background(), testConfig(t), nil, Options{SessionFactory: fakeFactory()})
	require.NoError(t, err)
	defer a.Close(context.Background()) //nolint:errcheck // test cleanup

	_, err = a.Run(context.Background(), filepath.Join(t.TempDir(), "missing.txt"))
	require.ErrorContains(t, err, "open targets")

	_, err = a.Run(context.Background(), writeTargets(t, "# only comments"))
	require.ErrorIs(t, err, targets.ErrNoTargets)
}

func TestRunZeroRecordsWritesNoFile(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	a, err := Build(context.Background(), cfg, nil, Options{SessionFactory: fakeFactory()})
	require.NoError(t, err)
	defer a.Close(context.Background()) //nolint:errcheck // test cleanup

	summary, err := a.Run(context.Background(), writeTargets(t, "https://www.airbnb.fr/s/Empty/homes"))
	require.NoError(t, err)
	require.Zero(t, summary.Records)
	_, statErr := os.Stat(cfg.Output.Path)
	require.True(t, os.IsNotExist(statErr))
}

func TestBuildFailsWhenPoolCannotStart(t *testing.T) {
	t.Parallel()

	factory := func(context.Context, int) (crawler.Session, error) {
		return nil, errors.New("chrome not found")
	}
	_, err := Build(context.Background(), testConfig(t), nil, Options{SessionFactory: factory})
	require.ErrorContains(t, err, "session pool init failed")
}

func TestBrowserConfigBudget(t *testing.T) {
	t.Parallel()

	require.Nil(t, browserConfig(config.BrowserConfig{}).Budget)
	require.NotNil(t, browserConfig(config.BrowserConfig{HostQPS: 1}).Budget)
}
