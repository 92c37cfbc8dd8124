// Package dispatcher drives a crawl run: discovery per search target, then
// fan-out of the discovered listings across the session pool.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/listing-host-crawler/internal/crawler"
	"github.com/JakeFAU/listing-host-crawler/internal/progress"
	"github.com/JakeFAU/listing-host-crawler/internal/session"
)

// Collector discovers listing URLs from one search target.
type Collector interface {
	Collect(ctx context.Context, sess crawler.Session, target string, maxItems int) ([]crawler.ListingURL, error)
}

// Processor visits one batch of listings on a leased session.
type Processor interface {
	ProcessBatch(ctx context.Context, lease *session.Lease, urls []crawler.ListingURL) crawler.BatchResult
}

// Dispatcher coordinates discovery and batch processing over a pool.
type Dispatcher struct {
	pool      *session.Pool
	collector Collector
	processor Processor
	sinks     []crawler.RecordSink
	tracker   *progress.Tracker
	maxItems  int
	logger    *zap.Logger
}

// New creates a Dispatcher. Sinks receive every record of the run once all
// targets are processed.
func New(
	pool *session.Pool,
	collector Collector,
	processor Processor,
	tracker *progress.Tracker,
	maxItems int,
	logger *zap.Logger,
	sinks ...crawler.RecordSink,
) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		pool:      pool,
		collector: collector,
		processor: processor,
		sinks:     sinks,
		tracker:   tracker,
		maxItems:  maxItems,
		logger:    logger,
	}
}

// Run processes targets in order and returns the aggregated records. A
// target whose discovery fails contributes no records and does not stop the
// run. On cancellation the records gathered so far are returned together
// with the context error, and sinks are still written.
func (d *Dispatcher) Run(ctx context.Context, targets []crawler.SearchTarget) ([]crawler.ListingRecord, error) {
	start := time.Now()
	d.tracker.RunStarted(len(targets))

	var (
		records []crawler.ListingRecord
		runErr  error
	)
	for i, target := range targets {
		if err := ctx.Err(); err != nil {
			runErr = fmt.Errorf("run stopped before target %d of %d: %w", i+1, len(targets), err)
			break
		}
		recs, err := d.runTarget(ctx, target)
		records = append(records, recs...)
		if err != nil {
			runErr = err
			break
		}
	}

	d.tracker.RunDone(len(records), time.Since(start))
	d.logger.Info("run complete",
		zap.Int("targets", len(targets)),
		zap.Int("records", len(records)),
		zap.Duration("elapsed", time.Since(start)),
	)
	if len(records) == 0 {
		return nil, runErr
	}
	// Sinks get a context that survives operator cancellation so partial
	// results are still persisted.
	if err := d.writeSinks(context.WithoutCancel(ctx), records); err != nil {
		runErr = errors.Join(runErr, err)
	}
	return records, runErr
}

func (d *Dispatcher) runTarget(ctx context.Context, target crawler.SearchTarget) ([]crawler.ListingRecord, error) {
	start := time.Now()
	logger := d.logger.With(zap.String("target", string(target)))
	d.tracker.TargetStarted(string(target))

	urls, err := d.discover(ctx, target)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("discover %s: %w", target, ctx.Err())
		}
		logger.Warn("discovery failed; skipping target", zap.Error(err))
		d.tracker.TargetFailed(string(target), err)
		return nil, nil
	}
	d.tracker.Discovered(string(target), len(urls), time.Since(start))
	logger.Info("listings discovered", zap.Int("count", len(urls)))
	if len(urls) == 0 {
		d.tracker.TargetDone(string(target), 0, time.Since(start))
		return nil, nil
	}

	batches := Partition(urls, d.pool.Size())
	results := make([]crawler.BatchResult, len(batches))
	var g errgroup.Group
	for i, batch := range batches {
		if len(batch) == 0 {
			continue
		}
		g.Go(func() error {
			results[i] = d.runBatch(ctx, string(target), i, batch)
			return nil
		})
	}
	_ = g.Wait()

	var (
		records []crawler.ListingRecord
		errs    []error
	)
	for _, res := range results {
		records = append(records, res.Records...)
		if res.Err != nil {
			errs = append(errs, res.Err)
		}
	}
	d.tracker.TargetDone(string(target), len(records), time.Since(start))
	logger.Info("target complete", zap.Int("records", len(records)), zap.Duration("elapsed", time.Since(start)))

	if ctx.Err() != nil {
		return records, fmt.Errorf("target %s interrupted: %w", target, ctx.Err())
	}
	for _, err := range errs {
		logger.Warn("batch stopped early", zap.Error(err))
	}
	return records, nil
}

func (d *Dispatcher) discover(ctx context.Context, target crawler.SearchTarget) ([]crawler.ListingURL, error) {
	lease, err := d.pool.AcquireIndex(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("acquire discovery session: %w", err)
	}
	defer lease.Release()
	sess, err := lease.Session()
	if err != nil {
		return nil, err
	}
	return d.collector.Collect(ctx, sess, string(target), d.maxItems)
}

func (d *Dispatcher) runBatch(ctx context.Context, target string, i int, batch []crawler.ListingURL) crawler.BatchResult {
	start := time.Now()
	lease, err := d.pool.AcquireIndex(ctx, i)
	if err != nil {
		res := crawler.BatchResult{Index: i, Err: fmt.Errorf("acquire session %d: %w", i, err)}
		d.tracker.BatchDone(target, res, time.Since(start))
		return res
	}
	defer lease.Release()

	d.logger.Debug("batch started", zap.String("target", target), zap.Int("worker", i), zap.Int("size", len(batch)))
	res := d.processor.ProcessBatch(ctx, lease, batch)
	res.Index = i
	d.tracker.BatchDone(target, res, time.Since(start))
	return res
}

func (d *Dispatcher) writeSinks(ctx context.Context, records []crawler.ListingRecord) error {
	var errs []error
	for _, sink := range d.sinks {
		if err := sink.Write(ctx, records); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Partition splits urls into n contiguous batches whose sizes differ by at
// most one, larger batches first. Concatenating the batches yields urls.
// Batches beyond len(urls) are empty.
func Partition(urls []crawler.ListingURL, n int) [][]crawler.ListingURL {
	if n <= 0 {
		n = 1
	}
	batches := make([][]crawler.ListingURL, n)
	size, extra := len(urls)/n, len(urls)%n
	start := 0
	for i := range batches {
		end := start + size
		if i < extra {
			end++
		}
		batches[i] = urls[start:end:end]
		start = end
	}
	return batches
}
