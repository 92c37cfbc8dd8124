// Package browser implements crawler.Session on top of chromedp. Each
// session owns its own browser process so cookies, storage and fingerprint
// never leak between workers.
package browser

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/JakeFAU/listing-host-crawler/internal/crawler"
)

// Viewport is a browser window size in CSS pixels.
type Viewport struct {
	Width  int
	Height int
}

// Config controls how sessions are launched and how long each browser
// operation may take.
type Config struct {
	Headless          bool
	ExecPath          string
	NavigationTimeout time.Duration
	SettleTimeout     time.Duration
	IdleWindow        time.Duration
	ActionTimeout     time.Duration
	Locale            string
	Timezone          string
	AcceptLanguage    string
	UserAgents        []string
	Viewports         []Viewport
	// Budget optionally rate-limits navigations per host across sessions.
	Budget *crawler.HostBudget
}

const (
	defaultNavigationTimeout = 60 * time.Second
	defaultSettleTimeout     = 15 * time.Second
	defaultIdleWindow        = 500 * time.Millisecond
	defaultActionTimeout     = 3 * time.Second
)

var (
	defaultUserAgents = []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	}
	defaultViewports = []Viewport{
		{Width: 1920, Height: 1080},
		{Width: 1680, Height: 1050},
		{Width: 1536, Height: 864},
		{Width: 1440, Height: 900},
	}
)

// withDefaults fills zero values.
func (c Config) withDefaults() Config {
	if c.NavigationTimeout <= 0 {
		c.NavigationTimeout = defaultNavigationTimeout
	}
	if c.SettleTimeout <= 0 {
		c.SettleTimeout = defaultSettleTimeout
	}
	if c.IdleWindow <= 0 {
		c.IdleWindow = defaultIdleWindow
	}
	if c.ActionTimeout <= 0 {
		c.ActionTimeout = defaultActionTimeout
	}
	if c.Locale == "" {
		c.Locale = "fr-FR"
	}
	if c.Timezone == "" {
		c.Timezone = "America/New_York"
	}
	if c.AcceptLanguage == "" {
		c.AcceptLanguage = "fr-FR,fr;q=0.9,en-US;q=0.8,en;q=0.7"
	}
	if len(c.UserAgents) == 0 {
		c.UserAgents = defaultUserAgents
	}
	if len(c.Viewports) == 0 {
		c.Viewports = defaultViewports
	}
	return c
}

// Fingerprint is the identity a session presents to sites.
type Fingerprint struct {
	UserAgent string
	Viewport  Viewport
	Locale    string
	Timezone  string
	Headers   map[string]string
}

// NewFingerprint picks a user agent and viewport from cfg using pick, which
// must return a value in [0, n). The viewport is jittered by up to 16px so
// no two sessions share exact dimensions by construction.
func NewFingerprint(cfg Config, pick func(n int) int) Fingerprint {
	cfg = cfg.withDefaults()
	if pick == nil {
		pick = rand.IntN
	}
	vp := cfg.Viewports[pick(len(cfg.Viewports))]
	vp.Width -= pick(17)
	vp.Height -= pick(17)
	return Fingerprint{
		UserAgent: cfg.UserAgents[pick(len(cfg.UserAgents))],
		Viewport:  vp,
		Locale:    cfg.Locale,
		Timezone:  cfg.Timezone,
		Headers: map[string]string{
			"Accept-Language":           cfg.AcceptLanguage,
			"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
			"Upgrade-Insecure-Requests": "1",
			"Sec-Fetch-Dest":            "document",
			"Sec-Fetch-Mode":            "navigate",
			"Sec-Fetch-Site":            "none",
			"Cache-Control":             "max-age=0",
		},
	}
}

// String renders a compact description for logs.
func (f Fingerprint) String() string {
	return fmt.Sprintf("%dx%d %s", f.Viewport.Width, f.Viewport.Height, f.Locale)
}
