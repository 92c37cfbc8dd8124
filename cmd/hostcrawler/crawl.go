package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/listing-host-crawler/internal/app"
	"github.com/JakeFAU/listing-host-crawler/internal/config"
	"github.com/JakeFAU/listing-host-crawler/internal/logging"
)

// buildApp is a variable so tests can inject fake sessions.
var buildApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app.App, error) {
	return app.Build(ctx, cfg, logger, app.Options{})
}

type crawlFlags struct {
	targets string
	out     string
	workers int
	max     int
	status  bool
}

func newCrawlCmd(cfgFile *string) *cobra.Command {
	var flags crawlFlags
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Runs a crawl over the targets file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*cfgFile)
			if err != nil {
				return err
			}
			applyFlags(cmd, &cfg, flags)
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runCrawl(cmd.Context(), cmd, cfg)
		},
	}
	cmd.Flags().StringVar(&flags.targets, "targets", "", "file with one search URL per line (default "+config.DefaultTargetsFile+")")
	cmd.Flags().StringVar(&flags.out, "out", "", "output CSV path (default "+config.DefaultOutputFile+")")
	cmd.Flags().IntVar(&flags.workers, "workers", 0, "number of parallel browser sessions")
	cmd.Flags().IntVar(&flags.max, "max-listings", 0, "maximum listings collected per search page")
	cmd.Flags().BoolVar(&flags.status, "include-status", false, "append a status column to the CSV")
	return cmd
}

// applyFlags lets explicitly set flags override file and environment values.
func applyFlags(cmd *cobra.Command, cfg *config.Config, f crawlFlags) {
	if cmd.Flags().Changed("targets") {
		cfg.Crawler.Targets = f.targets
	}
	if cmd.Flags().Changed("out") {
		cfg.Output.Path = f.out
	}
	if cmd.Flags().Changed("workers") {
		cfg.Crawler.Workers = f.workers
	}
	if cmd.Flags().Changed("max-listings") {
		cfg.Crawler.MaxListings = f.max
	}
	if cmd.Flags().Changed("include-status") {
		cfg.Output.IncludeStatus = f.status
	}
}

func runCrawl(ctx context.Context, cmd *cobra.Command, cfg config.Config) (err error) {
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("logger init failed: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(ctx); cerr != nil {
			logger.Warn("shutdown incomplete", zap.Error(cerr))
		}
	}()

	summary, err := a.Run(ctx, cfg.Crawler.Targets)
	if err != nil {
		return fmt.Errorf("run %s: %w", summary.RunID, err)
	}
	if summary.Records == 0 {
		return fmt.Errorf("%w (run %s, %d targets)", errNoRecords, summary.RunID, summary.Targets)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d records to %s\n", summary.Records, summary.Output)
	return nil
}
