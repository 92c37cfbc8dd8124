package extract

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/listing-host-crawler/internal/crawler"
)

// Strategy is one way of locating a field. Fn reports false when the
// strategy found nothing usable.
type Strategy struct {
	Name string
	Fn   func(*crawler.Page) (string, bool)
}

// Outcome is the result of running a field's strategies.
type Outcome struct {
	Field    string
	Value    string
	Strategy string
	Matched  bool
}

// Strategy result labels.
const (
	resultHit     = "hit"
	resultMiss    = "miss"
	resultTimeout = "timeout"
)

const defaultStrategyTimeout = 3 * time.Second

// Runner executes strategies in order and keeps the first hit.
type Runner struct {
	timeout time.Duration
	logger  *zap.Logger
	results *prometheus.CounterVec
}

// NewRunner builds a Runner. A nil registerer disables metrics.
func NewRunner(timeout time.Duration, logger *zap.Logger, reg prometheus.Registerer) (*Runner, error) {
	if timeout <= 0 {
		timeout = defaultStrategyTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Runner{timeout: timeout, logger: logger}
	if reg == nil {
		return r, nil
	}
	results := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hostcrawler_strategy_results_total",
		Help: "Extraction strategy outcomes partitioned by field, strategy and result.",
	}, []string{"field", "strategy", "result"})
	if err := reg.Register(results); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return nil, fmt.Errorf("register strategy collector: %w", err)
		}
		existing, ok := already.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, fmt.Errorf("register strategy collector: %w", err)
		}
		results = existing
	}
	r.results = results
	return r, nil
}

// First runs strategies in order. A strategy that exceeds the timeout or
// returns an empty value is a miss; the first non-empty value wins. A
// cancelled ctx stops the cascade with no match.
func (r *Runner) First(ctx context.Context, field string, page *crawler.Page, strategies []Strategy) Outcome {
	for _, s := range strategies {
		if ctx.Err() != nil {
			break
		}
		value, result := r.run(ctx, page, s)
		r.observe(field, s.Name, result)
		if result != resultHit {
			r.logger.Debug("strategy missed",
				zap.String("field", field),
				zap.String("strategy", s.Name),
				zap.String("result", result),
			)
			continue
		}
		r.logger.Debug("strategy matched",
			zap.String("field", field),
			zap.String("strategy", s.Name),
		)
		return Outcome{Field: field, Value: value, Strategy: s.Name, Matched: true}
	}
	return Outcome{Field: field}
}

func (r *Runner) run(ctx context.Context, page *crawler.Page, s Strategy) (string, string) {
	type answer struct {
		value string
		ok    bool
	}
	done := make(chan answer, 1)
	go func() {
		v, ok := s.Fn(page)
		done <- answer{value: v, ok: ok}
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()
	select {
	case a := <-done:
		if !a.ok || a.value == "" {
			return "", resultMiss
		}
		return a.value, resultHit
	case <-timer.C:
		return "", resultTimeout
	case <-ctx.Done():
		return "", resultTimeout
	}
}

func (r *Runner) observe(field, strategy, result string) {
	if r.results == nil {
		return
	}
	r.results.WithLabelValues(field, strategy, result).Inc()
}
