package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/network"
	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"github.com/JakeFAU/listing-host-crawler/internal/crawler"
)

// ErrSessionClosed is returned by operations on a closed session.
var ErrSessionClosed = errors.New("browser session closed")

const hideWebdriverScript = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined});`

// Session is a chromedp-backed crawler.Session with its own browser process.
type Session struct {
	id          int
	cfg         Config
	fingerprint Fingerprint
	logger      *zap.Logger
	idle        *idleTracker

	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc

	mu     sync.Mutex
	closed bool
}

var _ crawler.Session = (*Session)(nil)

// New launches a browser for pool slot id and applies a randomized
// fingerprint. The browser lives until Close, independently of ctx, which
// only bounds the startup.
func New(ctx context.Context, id int, cfg Config, logger *zap.Logger) (*Session, error) {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	fp := NewFingerprint(cfg, nil)
	logger = logger.With(zap.Int("session", id))

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocatorOptions(cfg, fp)...)
	sugar := logger.Sugar()
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(sugar.Debugf),
		chromedp.WithErrorf(sugar.Debugf),
	)

	s := &Session{
		id:          id,
		cfg:         cfg,
		fingerprint: fp,
		logger:      logger,
		idle:        newIdleTracker(),
		allocCancel: allocCancel,
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
	}
	chromedp.ListenTarget(tabCtx, s.idle.handle)

	// The first Run allocates the browser; it must use the tab context itself
	// or the browser would die with the timeout context below.
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("launch browser session %d: %w", id, err)
	}
	startCtx, cancel := s.opContext(ctx, cfg.NavigationTimeout)
	defer cancel()
	if err := chromedp.Run(startCtx, s.setupAction()); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("start browser session %d: %w", id, err)
	}
	logger.Info("browser session ready", zap.Stringer("fingerprint", fp))
	return s, nil
}

// NewFactory returns a crawler.SessionFactory launching sessions with cfg.
func NewFactory(cfg Config, logger *zap.Logger) crawler.SessionFactory {
	return func(ctx context.Context, id int) (crawler.Session, error) {
		return New(ctx, id, cfg, logger)
	}
}

func allocatorOptions(cfg Config, fp Fingerprint) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("lang", fp.Locale),
		chromedp.UserAgent(fp.UserAgent),
		chromedp.WindowSize(fp.Viewport.Width, fp.Viewport.Height),
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	return opts
}

func (s *Session) setupAction() chromedp.Action {
	fp := s.fingerprint
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if err := emulation.SetUserAgentOverride(fp.UserAgent).
			WithAcceptLanguage(fp.Headers["Accept-Language"]).Do(ctx); err != nil {
			return fmt.Errorf("set user-agent: %w", err)
		}
		if err := emulation.SetDeviceMetricsOverride(
			int64(fp.Viewport.Width), int64(fp.Viewport.Height), 1, false,
		).Do(ctx); err != nil {
			return fmt.Errorf("set viewport: %w", err)
		}
		if err := emulation.SetTimezoneOverride(fp.Timezone).Do(ctx); err != nil {
			return fmt.Errorf("set timezone: %w", err)
		}
		if err := emulation.SetLocaleOverride().WithLocale(fp.Locale).Do(ctx); err != nil {
			return fmt.Errorf("set locale: %w", err)
		}
		if err := network.SetExtraHTTPHeaders(toNetworkHeaders(fp.Headers)).Do(ctx); err != nil {
			return fmt.Errorf("set extra headers: %w", err)
		}
		if _, err := cdppage.AddScriptToEvaluateOnNewDocument(hideWebdriverScript).Do(ctx); err != nil {
			return fmt.Errorf("install webdriver shim: %w", err)
		}
		return nil
	})
}

// ID returns the pool slot of the session.
func (s *Session) ID() int {
	return s.id
}

// Fingerprint returns the identity the session presents.
func (s *Session) Fingerprint() Fingerprint {
	return s.fingerprint
}

// Navigate loads rawURL and waits for the document body.
func (s *Session) Navigate(ctx context.Context, rawURL string) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	if err := s.cfg.Budget.Wait(ctx, rawURL); err != nil {
		return err
	}
	opCtx, cancel := s.opContext(ctx, s.cfg.NavigationTimeout)
	defer cancel()
	s.idle.reset()
	if err := chromedp.Run(opCtx,
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("navigate %s: %w", rawURL, err)
	}
	return nil
}

// Reload reloads the current document.
func (s *Session) Reload(ctx context.Context) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	opCtx, cancel := s.opContext(ctx, s.cfg.NavigationTimeout)
	defer cancel()
	s.idle.reset()
	if err := chromedp.Run(opCtx,
		chromedp.Reload(),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	return nil
}

// Settle waits until the network has been idle for the configured window,
// giving up silently after the settle timeout.
func (s *Session) Settle(ctx context.Context) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	quiet, err := s.idle.wait(ctx, s.cfg.IdleWindow, s.cfg.SettleTimeout)
	if err != nil {
		return err
	}
	if !quiet {
		s.logger.Debug("settle timeout reached; continuing with rendered content",
			zap.Duration("timeout", s.cfg.SettleTimeout))
	}
	return nil
}

// Scroll dispatches a mouse wheel event at the centre of the viewport.
func (s *Session) Scroll(ctx context.Context, deltaY int) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	opCtx, cancel := s.opContext(ctx, s.cfg.ActionTimeout)
	defer cancel()
	x := float64(s.fingerprint.Viewport.Width) / 2
	y := float64(s.fingerprint.Viewport.Height) / 2
	wheel := chromedp.ActionFunc(func(ctx context.Context) error {
		return input.DispatchMouseEvent(input.MouseWheel, x, y).
			WithDeltaX(0).
			WithDeltaY(float64(deltaY)).
			Do(ctx)
	})
	if err := chromedp.Run(opCtx, wheel); err != nil {
		return fmt.Errorf("scroll: %w", err)
	}
	return nil
}

// ClickText clicks the first element matching selector whose visible text
// contains one of phrases as whole words, ignoring case.
func (s *Session) ClickText(ctx context.Context, selector string, phrases []string) (bool, error) {
	if err := s.ensureOpen(); err != nil {
		return false, err
	}
	listScript, err := elementTextsScript(selector)
	if err != nil {
		return false, err
	}
	opCtx, cancel := s.opContext(ctx, s.cfg.ActionTimeout)
	defer cancel()
	var texts []string
	if err := chromedp.Run(opCtx, chromedp.Evaluate(listScript, &texts)); err != nil {
		return false, fmt.Errorf("list click candidates: %w", err)
	}
	idx := matchPhrase(texts, phrases)
	if idx < 0 {
		return false, nil
	}
	clickScript, err := clickIndexScript(selector, idx)
	if err != nil {
		return false, err
	}
	var clicked bool
	if err := chromedp.Run(opCtx, chromedp.Evaluate(clickScript, &clicked)); err != nil {
		return false, fmt.Errorf("click text: %w", err)
	}
	return clicked, nil
}

// Snapshot captures the final URL, outer HTML and body inner text.
func (s *Session) Snapshot(ctx context.Context) (*crawler.Page, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	opCtx, cancel := s.opContext(ctx, s.cfg.ActionTimeout)
	defer cancel()
	var location, html, text string
	if err := chromedp.Run(opCtx,
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		chromedp.Evaluate(`document.body ? document.body.innerText : ""`, &text),
	); err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	return crawler.NewPage(location, html, text)
}

// Close shuts the browser down. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	err := chromedp.Cancel(s.tabCtx)
	s.tabCancel()
	s.allocCancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("close browser session %d: %w", s.id, err)
	}
	return nil
}

func (s *Session) ensureOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	return nil
}

// opContext derives a bounded context from the tab so chromedp keeps the
// tab alive, while still honoring cancellation of the caller's ctx.
func (s *Session) opContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	opCtx, cancel := context.WithTimeout(s.tabCtx, timeout)
	stop := forwardCancel(parent, cancel)
	return opCtx, func() {
		stop()
		cancel()
	}
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}

func elementTextsScript(selector string) (string, error) {
	sel, err := json.Marshal(selector)
	if err != nil {
		return "", fmt.Errorf("encode selector: %w", err)
	}
	return fmt.Sprintf(
		`Array.from(document.querySelectorAll(%s), el => (el.innerText || el.textContent || '').trim())`,
		sel), nil
}

func clickIndexScript(selector string, idx int) (string, error) {
	sel, err := json.Marshal(selector)
	if err != nil {
		return "", fmt.Errorf("encode selector: %w", err)
	}
	return fmt.Sprintf(`(() => {
	const el = document.querySelectorAll(%s)[%d];
	if (!el) {
		return false;
	}
	el.click();
	return true;
})()`, sel, idx), nil
}

// matchPhrase returns the index of the first text containing one of phrases
// bounded by non-letters, or -1.
func matchPhrase(texts, phrases []string) int {
	fold := cases.Fold()
	folded := make([]string, 0, len(phrases))
	for _, p := range phrases {
		if p = strings.TrimSpace(p); p != "" {
			folded = append(folded, fold.String(p))
		}
	}
	for i, text := range texts {
		text = fold.String(text)
		for _, p := range folded {
			if containsWord(text, p) {
				return i
			}
		}
	}
	return -1
}

func containsWord(text, phrase string) bool {
	for from := 0; from <= len(text); {
		i := strings.Index(text[from:], phrase)
		if i < 0 {
			return false
		}
		start, end := from+i, from+i+len(phrase)
		before, _ := utf8.DecodeLastRuneInString(text[:start])
		after, _ := utf8.DecodeRuneInString(text[end:])
		if (start == 0 || !unicode.IsLetter(before)) && (end == len(text) || !unicode.IsLetter(after)) {
			return true
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		from = start + size
	}
	return false
}

func toNetworkHeaders(h map[string]string) network.Headers {
	headers := network.Headers{}
	for key, value := range h {
		if value == "" {
			continue
		}
		headers[key] = value
	}
	return headers
}
