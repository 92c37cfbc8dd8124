// Package extract pulls host and licensing fields out of a rendered listing
// page. Each field is located by an ordered cascade of strategies; the first
// strategy producing a valid value wins and the rest are skipped.
package extract

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/listing-host-crawler/internal/crawler"
)

// Config selects locales and the per-strategy time limit.
type Config struct {
	// Locales lists locale codes in the order they are tried.
	Locales         []string
	StrategyTimeout time.Duration
}

type fieldPlan struct {
	name       string
	strategies []Strategy
	assign     func(*crawler.Fields, string)
}

// Extractor turns page snapshots into record fields.
type Extractor struct {
	runner *Runner
	plan   []fieldPlan
}

// New builds an Extractor. A nil registerer disables strategy metrics.
func New(cfg Config, logger *zap.Logger, reg prometheus.Registerer) (*Extractor, error) {
	locales, err := Locales(cfg.Locales)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	runner, err := NewRunner(cfg.StrategyTimeout, logger.Named("extract"), reg)
	if err != nil {
		return nil, err
	}
	return &Extractor{
		runner: runner,
		plan: []fieldPlan{
			{FieldTitle, titleStrategies(), func(f *crawler.Fields, v string) { f.Title = v }},
			{FieldLicense, licenseStrategies(locales), func(f *crawler.Fields, v string) { f.LicenseCode = v }},
			{FieldHostURL, hostURLStrategies(locales), func(f *crawler.Fields, v string) { f.HostURL = v }},
			{FieldHostName, hostNameStrategies(locales), func(f *crawler.Fields, v string) { f.HostName = v }},
			{FieldHostRating, ratingStrategies(locales), func(f *crawler.Fields, v string) { f.HostRating = v }},
			{FieldHostYears, tenureStrategies(locales), func(f *crawler.Fields, v string) { f.HostYears = v }},
			{FieldHostReviews, reviewsStrategies(locales), func(f *crawler.Fields, v string) { f.HostReviewsCount = v }},
		},
	}, nil
}

// Extract runs every field cascade against page. Fields without a match stay
// empty; the outcomes report which strategy produced each value.
func (e *Extractor) Extract(ctx context.Context, page *crawler.Page) (crawler.Fields, []Outcome) {
	var fields crawler.Fields
	outcomes := make([]Outcome, 0, len(e.plan))
	if page == nil {
		return fields, outcomes
	}
	for _, fp := range e.plan {
		out := e.runner.First(ctx, fp.name, page, fp.strategies)
		if out.Matched {
			fp.assign(&fields, out.Value)
		}
		outcomes = append(outcomes, out)
	}
	return fields, outcomes
}
