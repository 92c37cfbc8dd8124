// Package worker visits listing pages on one leased session and turns each
// into a record.
package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/listing-host-crawler/internal/crawler"
	"github.com/JakeFAU/listing-host-crawler/internal/extract"
	"github.com/JakeFAU/listing-host-crawler/internal/progress"
	"github.com/JakeFAU/listing-host-crawler/internal/session"
)

// RevealPhrases label the "show more" control that expands the description.
var RevealPhrases = []string{"Afficher plus", "Lire la suite", "Show more", "Mostrar más", "Mehr anzeigen"}

// Config controls pacing and the per-page interaction script.
type Config struct {
	// RequestDelay is slept between two listings of a batch.
	RequestDelay time.Duration
	// SettleDelay is slept after the network settles, for late redirects.
	SettleDelay    time.Duration
	ScrollStep     int
	ScrollPause    time.Duration
	RevealSelector string
	Retry          crawler.RetryPolicy
}

const (
	defaultScrollStep     = 2000
	defaultRevealSelector = "button"
)

// Extractor turns a page snapshot into record fields.
type Extractor interface {
	Extract(ctx context.Context, page *crawler.Page) (crawler.Fields, []extract.Outcome)
}

// WallDetector recognizes authentication walls.
type WallDetector interface {
	IsAuthWall(page *crawler.Page) bool
}

// Worker processes batches of listing URLs.
type Worker struct {
	extractor Extractor
	detector  WallDetector
	clock     crawler.Clock
	tracker   *progress.Tracker
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Worker. tracker may be nil.
func New(
	extractor Extractor,
	detector WallDetector,
	clock crawler.Clock,
	tracker *progress.Tracker,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if clock == nil {
		clock = crawler.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ScrollStep <= 0 {
		cfg.ScrollStep = defaultScrollStep
	}
	if cfg.RevealSelector == "" {
		cfg.RevealSelector = defaultRevealSelector
	}
	return &Worker{
		extractor: extractor,
		detector:  detector,
		clock:     clock,
		tracker:   tracker,
		cfg:       cfg,
		logger:    logger,
	}
}

// ProcessBatch visits urls in order on the leased session and returns one
// record per visited URL, in input order. The lease is not released. A
// cancelled ctx stops the batch early and is reported in Err.
func (w *Worker) ProcessBatch(ctx context.Context, lease *session.Lease, urls []crawler.ListingURL) crawler.BatchResult {
	res := crawler.BatchResult{Index: lease.Index(), Records: make([]crawler.ListingRecord, 0, len(urls))}
	sess, err := lease.Session()
	if err != nil {
		res.Err = err
		return res
	}
	logger := w.logger.With(zap.Int("worker", lease.Index()))

	for i, u := range urls {
		if err := ctx.Err(); err != nil {
			res.Err = fmt.Errorf("batch stopped after %d of %d listings: %w", i, len(urls), err)
			return res
		}
		logger.Info("processing listing",
			zap.Int("position", i+1), zap.Int("of", len(urls)), zap.String("listing_url", u.String()))

		start := time.Now()
		rec := w.processListing(ctx, sess, u, logger)
		if ctx.Err() != nil && rec.Status == crawler.StatusPageError {
			res.Err = fmt.Errorf("batch stopped after %d of %d listings: %w", i, len(urls), ctx.Err())
			return res
		}
		if rec.Status == crawler.StatusPageError {
			res.Failed++
		}
		res.Records = append(res.Records, rec)
		w.tracker.ListingDone(lease.Index(), rec, time.Since(start))

		if i < len(urls)-1 {
			if err := crawler.Pause(ctx, w.cfg.RequestDelay); err != nil {
				res.Err = fmt.Errorf("batch stopped after %d of %d listings: %w", i+1, len(urls), err)
				return res
			}
		}
	}
	return res
}

// processListing always returns a record; failures degrade it to the floor.
func (w *Worker) processListing(ctx context.Context, sess crawler.Session, u crawler.ListingURL, logger *zap.Logger) crawler.ListingRecord {
	scrapedAt := w.clock.Now()
	logger = logger.With(zap.String("listing_url", u.String()))

	if err := w.navigate(ctx, sess, u.String(), logger); err != nil {
		logger.Warn("listing navigation failed", zap.Error(err))
		return crawler.FloorRecord(u, scrapedAt, crawler.StatusPageError)
	}

	status := crawler.StatusOK
	page, err := w.settleAndSnapshot(ctx, sess)
	if err == nil && w.isWall(page) {
		logger.Warn("authentication wall detected; reloading once")
		status = w.reloadPastWall(ctx, sess, logger)
	}
	if ctx.Err() != nil {
		return crawler.FloorRecord(u, scrapedAt, crawler.StatusPageError)
	}

	if err := sess.Scroll(ctx, w.cfg.ScrollStep); err != nil {
		logger.Debug("scroll failed", zap.Error(err))
	}
	if err := crawler.Pause(ctx, w.cfg.ScrollPause); err != nil {
		return crawler.FloorRecord(u, scrapedAt, crawler.StatusPageError)
	}
	if _, err := sess.ClickText(ctx, w.cfg.RevealSelector, RevealPhrases); err != nil {
		logger.Debug("reveal click failed", zap.Error(err))
	}

	page, err = sess.Snapshot(ctx)
	if err != nil {
		logger.Warn("listing snapshot failed", zap.Error(err))
		return crawler.FloorRecord(u, scrapedAt, crawler.StatusPageError)
	}
	fields, _ := w.extractor.Extract(ctx, page)
	rec := crawler.NewRecord(u, fields, scrapedAt, status)

	logger.Info("listing extracted",
		zap.String("title", truncate(rec.Title, 40)),
		zap.String("license", orNA(rec.LicenseCode)),
		zap.String("host", orNA(rec.HostName)),
		zap.String("rating", orNA(rec.HostRating)),
		zap.String("status", string(rec.Status)),
	)
	return rec
}

func (w *Worker) navigate(ctx context.Context, sess crawler.Session, rawURL string, logger *zap.Logger) error {
	for attempt := 1; ; attempt++ {
		err := sess.Navigate(ctx, rawURL)
		if err == nil {
			return nil
		}
		if !w.cfg.Retry.ShouldRetry(ctx, err, attempt) {
			return err
		}
		backoff := w.cfg.Retry.Backoff(attempt)
		logger.Debug("retrying navigation", zap.Int("attempt", attempt), zap.Duration("backoff", backoff), zap.Error(err))
		if err := crawler.Pause(ctx, backoff); err != nil {
			return err
		}
	}
}

func (w *Worker) settleAndSnapshot(ctx context.Context, sess crawler.Session) (*crawler.Page, error) {
	if err := sess.Settle(ctx); err != nil {
		return nil, err
	}
	if err := crawler.Pause(ctx, w.cfg.SettleDelay); err != nil {
		return nil, err
	}
	return sess.Snapshot(ctx)
}

// reloadPastWall reloads once and reports degraded when the wall persists.
func (w *Worker) reloadPastWall(ctx context.Context, sess crawler.Session, logger *zap.Logger) crawler.RecordStatus {
	if err := sess.Reload(ctx); err != nil {
		logger.Warn("reload after authentication wall failed", zap.Error(err))
		return crawler.StatusDegraded
	}
	page, err := w.settleAndSnapshot(ctx, sess)
	if err != nil || w.isWall(page) {
		logger.Warn("authentication wall persisted; extracting available content")
		return crawler.StatusDegraded
	}
	return crawler.StatusOK
}

func (w *Worker) isWall(page *crawler.Page) bool {
	return w.detector != nil && w.detector.IsAuthWall(page)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
