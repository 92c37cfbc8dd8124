// Package app builds the long-lived services of a crawl run from
// configuration and tears them down afterwards.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/JakeFAU/listing-host-crawler/internal/browser"
	"github.com/JakeFAU/listing-host-crawler/internal/config"
	"github.com/JakeFAU/listing-host-crawler/internal/crawler"
	"github.com/JakeFAU/listing-host-crawler/internal/detector"
	"github.com/JakeFAU/listing-host-crawler/internal/discovery"
	"github.com/JakeFAU/listing-host-crawler/internal/dispatcher"
	"github.com/JakeFAU/listing-host-crawler/internal/extract"
	"github.com/JakeFAU/listing-host-crawler/internal/metrics"
	"github.com/JakeFAU/listing-host-crawler/internal/output"
	"github.com/JakeFAU/listing-host-crawler/internal/progress"
	progresssinks "github.com/JakeFAU/listing-host-crawler/internal/progress/sinks"
	"github.com/JakeFAU/listing-host-crawler/internal/session"
	"github.com/JakeFAU/listing-host-crawler/internal/targets"
	"github.com/JakeFAU/listing-host-crawler/internal/worker"
)

const closeTimeout = 10 * time.Second

// Options overrides collaborators that are otherwise built from config.
type Options struct {
	// SessionFactory replaces the chromedp browser sessions.
	SessionFactory crawler.SessionFactory
	// StorageClient is used for the upload instead of a default client.
	StorageClient *storage.Client
	Clock         crawler.Clock
}

// App owns the services of one run.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	hub      *progress.Hub
	tracker  *progress.Tracker
	pool     *session.Pool
	dispatch *dispatcher.Dispatcher
	pgStore  *output.PostgresStore
	storage  *storage.Client
	// ownsStorage is false when the client came from Options.
	ownsStorage bool
	metricsSrv  *metrics.Server
}

// Summary describes a finished run.
type Summary struct {
	RunID   string
	Targets int
	Records int
	Output  string
}

// Build wires every dependency. Failing to start the session pool is fatal.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger, opts Options) (_ *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{
		cfg:      cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
	}
	defer func() {
		if err != nil {
			a.closeInfrastructure(context.WithoutCancel(ctx))
		}
	}()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if err := a.setupProgress(opts.Clock); err != nil {
		return nil, err
	}
	sinks, err := a.setupSinks(ctx, opts)
	if err != nil {
		return nil, err
	}
	if cfg.Metrics.Addr != "" {
		a.metricsSrv, err = metrics.NewServer(cfg.Metrics.Addr, a.registry, logger.Named("metrics"))
		if err != nil {
			return nil, err
		}
	}

	ex, err := extract.New(extract.Config{
		Locales:         cfg.Extract.Locales,
		StrategyTimeout: cfg.Extract.StrategyTimeout,
	}, logger.Named("extract"), a.registry)
	if err != nil {
		return nil, fmt.Errorf("extractor init failed: %w", err)
	}

	factory := opts.SessionFactory
	if factory == nil {
		factory = browser.NewFactory(browserConfig(cfg.Browser), logger.Named("browser"))
	}
	a.pool, err = session.New(ctx, factory, cfg.Crawler.Workers, logger.Named("session"))
	if err != nil {
		return nil, fmt.Errorf("session pool init failed: %w", err)
	}

	collector := discovery.New(discovery.Config{
		MaxScrolls:  cfg.Discovery.MaxScrolls,
		ScrollStep:  cfg.Discovery.ScrollStep,
		ScrollPause: cfg.Discovery.ScrollPause,
		SettleDelay: cfg.Discovery.SettleDelay,
	}, logger.Named("discovery"))
	w := worker.New(ex, detector.NewHeuristic(nil, 0), opts.Clock, a.tracker, worker.Config{
		RequestDelay: cfg.Worker.RequestDelay,
		SettleDelay:  cfg.Worker.SettleDelay,
		ScrollStep:   cfg.Worker.ScrollStep,
		ScrollPause:  cfg.Worker.ScrollPause,
		Retry:        crawler.NewRetryPolicy(cfg.Worker.MaxAttempts, cfg.Worker.BackoffBase, cfg.Worker.BackoffMax),
	}, logger.Named("worker"))

	a.dispatch = dispatcher.New(a.pool, collector, w, a.tracker, cfg.Crawler.MaxListings, logger.Named("dispatcher"), sinks...)
	logger.Info("application built",
		zap.Int("workers", cfg.Crawler.Workers),
		zap.Int("max_listings", cfg.Crawler.MaxListings),
		zap.Strings("locales", cfg.Extract.Locales),
		zap.String("run_id", a.tracker.RunID().String()),
	)
	return a, nil
}

func (a *App) setupProgress(clock crawler.Clock) error {
	promSink, err := progresssinks.NewPrometheusSink(a.registry)
	if err != nil {
		return fmt.Errorf("progress metrics init failed: %w", err)
	}
	a.hub = progress.NewHub(progress.Config{Logger: a.logger.Named("progress")},
		progresssinks.NewLogSink(a.logger.Named("progress")),
		promSink,
	)
	a.tracker = progress.NewTracker(a.hub, clock)
	return nil
}

// setupSinks returns the record sinks in write order. The CSV file must be
// written before it can be uploaded.
func (a *App) setupSinks(ctx context.Context, opts Options) ([]crawler.RecordSink, error) {
	table := &output.CSVWriter{
		Path:          a.cfg.Output.Path,
		IncludeStatus: a.cfg.Output.IncludeStatus,
	}
	sinks := []crawler.RecordSink{table}

	if a.cfg.DB.DSN != "" {
		store, err := output.NewPostgresStore(ctx, output.PostgresConfig{
			DSN:      a.cfg.DB.DSN,
			Table:    a.cfg.DB.Table,
			MaxConns: a.cfg.DB.MaxConns,
		})
		if err != nil {
			return nil, fmt.Errorf("record store init failed: %w", err)
		}
		a.pgStore = store
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		sinks = append(sinks, store)
	}

	if a.cfg.Output.GCSBucket != "" {
		client := opts.StorageClient
		if client == nil {
			var err error
			client, err = storage.NewClient(ctx)
			if err != nil {
				return nil, fmt.Errorf("gcs client init failed: %w", err)
			}
			a.ownsStorage = true
		}
		a.storage = client
		uploader, err := output.NewGCSUploader(client, output.GCSConfig{
			Bucket: a.cfg.Output.GCSBucket,
			Prefix: a.cfg.Output.GCSPrefix,
			Source: table,
		}, opts.Clock, a.logger.Named("gcs"))
		if err != nil {
			return nil, fmt.Errorf("gcs uploader init failed: %w", err)
		}
		sinks = append(sinks, uploader)
	}
	return sinks, nil
}

func browserConfig(c config.BrowserConfig) browser.Config {
	cfg := browser.Config{
		Headless:          c.Headless,
		ExecPath:          c.ExecPath,
		NavigationTimeout: c.NavTimeout,
		SettleTimeout:     c.SettleTimeout,
		IdleWindow:        c.IdleWindow,
		ActionTimeout:     c.ActionTimeout,
		Locale:            c.Locale,
		Timezone:          c.Timezone,
		AcceptLanguage:    c.AcceptLanguage,
		UserAgents:        c.UserAgents,
	}
	if c.HostQPS > 0 {
		cfg.Budget = crawler.NewHostBudget(c.HostQPS)
	}
	return cfg
}

// Run crawls every target listed in targetsPath. The metrics server, when
// configured, serves for the duration of the run.
func (a *App) Run(ctx context.Context, targetsPath string) (Summary, error) {
	summary := Summary{RunID: a.tracker.RunID().String(), Output: a.cfg.Output.Path}
	list, err := targets.ReadFile(targetsPath)
	if err != nil {
		return summary, err
	}
	summary.Targets = len(list)

	if a.metricsSrv != nil {
		srvCtx, stop := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := a.metricsSrv.Run(srvCtx); err != nil {
				a.logger.Error("metrics server failed", zap.Error(err))
			}
		}()
		defer func() {
			stop()
			<-done
		}()
	}

	a.logger.Info("crawl started", zap.Int("targets", len(list)), zap.String("run_id", summary.RunID))
	records, err := a.dispatch.Run(ctx, list)
	summary.Records = len(records)
	if err != nil {
		if errors.Is(err, context.Canceled) && len(records) > 0 {
			a.logger.Warn("crawl interrupted; partial results were written", zap.Int("records", len(records)))
		}
		return summary, err
	}
	return summary, nil
}

// Close releases every service. It is safe to call on a partially built App.
func (a *App) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
	defer cancel()
	err := a.closeInfrastructure(ctx)
	a.logger.Info("shutdown complete")
	return err
}

func (a *App) closeInfrastructure(ctx context.Context) error {
	var errs []error
	if a.pool != nil {
		if err := a.pool.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close session pool: %w", err))
		}
	}
	if a.hub != nil {
		if err := a.hub.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.pgStore != nil {
		a.pgStore.Close()
	}
	if a.storage != nil && a.ownsStorage {
		if err := a.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close gcs client: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Registry exposes the metrics registry of the run.
func (a *App) Registry() *prometheus.Registry {
	return a.registry
}
