// Package discovery collects listing URLs from a search results page by
// scrolling it a bounded number of times.
package discovery

import (
	"context"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/listing-host-crawler/internal/crawler"
)

// ConsentPhrases label the cookie consent button in the supported locales.
var ConsentPhrases = []string{"Accepter", "Accept", "Aceptar", "Akzeptieren"}

// Config bounds the scroll loop.
type Config struct {
	MaxScrolls  int
	ScrollStep  int
	ScrollPause time.Duration
	// SettleDelay is slept after the page settles, before the consent click.
	SettleDelay     time.Duration
	ConsentSelector string
}

const (
	defaultMaxScrolls      = 5
	defaultScrollStep      = 2000
	defaultConsentSelector = "button"
)

func (c Config) withDefaults() Config {
	if c.MaxScrolls <= 0 {
		c.MaxScrolls = defaultMaxScrolls
	}
	if c.ScrollStep <= 0 {
		c.ScrollStep = defaultScrollStep
	}
	if c.ScrollPause < 0 {
		c.ScrollPause = 0
	}
	if c.SettleDelay < 0 {
		c.SettleDelay = 0
	}
	if c.ConsentSelector == "" {
		c.ConsentSelector = defaultConsentSelector
	}
	return c
}

// Collector gathers listing URLs from search result pages.
type Collector struct {
	cfg    Config
	logger *zap.Logger
}

// New returns a Collector. Zero config values take defaults; a zero
// ScrollPause disables pausing.
func New(cfg Config, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{cfg: cfg.withDefaults(), logger: logger}
}

// Collect navigates sess to target and returns at most maxItems distinct
// canonical listing URLs in the order they were first seen. Only a failed
// navigation or a cancelled ctx produces an error.
func (c *Collector) Collect(ctx context.Context, sess crawler.Session, target string, maxItems int) ([]crawler.ListingURL, error) {
	logger := c.logger.With(zap.String("target", target))
	if maxItems <= 0 {
		return nil, nil
	}
	if err := sess.Navigate(ctx, target); err != nil {
		return nil, fmt.Errorf("open search page: %w", err)
	}
	if err := sess.Settle(ctx); err != nil {
		return nil, fmt.Errorf("settle search page: %w", err)
	}
	if err := crawler.Pause(ctx, c.cfg.SettleDelay); err != nil {
		return nil, err
	}
	if clicked, err := sess.ClickText(ctx, c.cfg.ConsentSelector, ConsentPhrases); err != nil {
		logger.Debug("consent click failed", zap.Error(err))
	} else if clicked {
		logger.Debug("consent dismissed")
	}

	set := newOrderedSet(maxItems)
	for i := 0; i < c.cfg.MaxScrolls; i++ {
		page, err := sess.Snapshot(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return set.items(), fmt.Errorf("collect listings: %w", ctx.Err())
			}
			logger.Warn("search snapshot failed", zap.Int("scroll", i), zap.Error(err))
		} else {
			added := harvest(page, set)
			logger.Debug("harvested listing links",
				zap.Int("scroll", i), zap.Int("new", added), zap.Int("total", set.len()))
		}
		if set.full() {
			break
		}
		if err := sess.Scroll(ctx, c.cfg.ScrollStep); err != nil {
			if ctx.Err() != nil {
				return set.items(), fmt.Errorf("collect listings: %w", ctx.Err())
			}
			logger.Debug("scroll failed", zap.Error(err))
		}
		if err := crawler.Pause(ctx, c.cfg.ScrollPause); err != nil {
			return set.items(), err
		}
	}

	logger.Info("listing discovery finished", zap.Int("listings", set.len()))
	return set.items(), nil
}

// harvest adds the listing links of page to set and reports how many were new.
func harvest(page *crawler.Page, set *orderedSet) int {
	added := 0
	page.Doc().Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if !crawler.IsListingHref(href) {
			return true
		}
		u, err := crawler.CanonicalizeListingURL(page.URL, href)
		if err != nil {
			return true
		}
		if set.add(u) {
			added++
		}
		return !set.full()
	})
	return added
}

type orderedSet struct {
	limit int
	seen  map[crawler.ListingURL]struct{}
	order []crawler.ListingURL
}

func newOrderedSet(limit int) *orderedSet {
	return &orderedSet{limit: limit, seen: make(map[crawler.ListingURL]struct{})}
}

func (s *orderedSet) add(u crawler.ListingURL) bool {
	if s.full() {
		return false
	}
	if _, ok := s.seen[u]; ok {
		return false
	}
	s.seen[u] = struct{}{}
	s.order = append(s.order, u)
	return true
}

func (s *orderedSet) full() bool {
	return len(s.order) >= s.limit
}

func (s *orderedSet) len() int {
	return len(s.order)
}

func (s *orderedSet) items() []crawler.ListingURL {
	return append([]crawler.ListingURL(nil), s.order...)
}
