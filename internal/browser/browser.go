// Package browser drives a headless Chromium through playwright and exposes
// the narrow page surface the crawlers need.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/maltedev/price-comparison-scraper/internal/parser"
	"github.com/playwright-community/playwright-go"
)

// Page is a single browser tab.
type Page interface {
	Goto(url string, timeout time.Duration) error
	Title() (string, error)
	Content() (string, error)
	Evaluate(script string, args ...any) (any, error)
	// CaptureJSON starts recording JSON responses whose URL satisfies match.
	CaptureJSON(match func(url string) bool)
	// CapturedJSON returns the decoded bodies recorded since the last call.
	CapturedJSON() []any
	Close() error
}

// Browser is a running browser instance that hands out pages.
type Browser interface {
	NewPage() (Page, error)
	Close() error
}

// Launcher starts a browser. Implementations must honour ctx only for the
// launch itself; the returned browser outlives it.
type Launcher func(ctx context.Context) (Browser, error)

type Options struct {
	Headless       bool
	Timeout        time.Duration
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	Locale         string
	TimezoneID     string
	ProxyServer    string
	ExecutablePath string
	ExtraHeaders   map[string]string
}

func DefaultOptions() *Options {
	return &Options{
		Headless:       true,
		Timeout:        30 * time.Second,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		ViewportWidth:  1366,
		ViewportHeight: 900,
		Locale:         "en-IN",
		TimezoneID:     "Asia/Kolkata",
		ExtraHeaders: map[string]string{
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
			"Accept-Language": "en-IN,en;q=0.9",
		},
	}
}

// Chromium is a playwright-driven Chromium with one shared context.
type Chromium struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	timeout time.Duration
	logger  *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// NewLauncher returns a Launcher that starts Chromium with opts.
func NewLauncher(opts *Options, logger *slog.Logger) Launcher {
	return func(ctx context.Context) (Browser, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return New(opts, logger)
	}
}

func New(opts *Options, logger *slog.Logger) (*Chromium, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if logger == nil {
		logger = slog.Default()
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
			"--disable-setuid-sandbox",
		},
	}
	if opts.ExecutablePath != "" {
		launchOpts.ExecutablePath = playwright.String(opts.ExecutablePath)
	}
	if opts.ProxyServer != "" {
		launchOpts.Proxy = &playwright.Proxy{Server: opts.ProxyServer}
	}

	browser, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent:         playwright.String(opts.UserAgent),
		AcceptDownloads:   playwright.Bool(false),
		JavaScriptEnabled: playwright.Bool(true),
		Locale:            playwright.String(opts.Locale),
		TimezoneId:        playwright.String(opts.TimezoneID),
		Viewport: &playwright.Size{
			Width:  opts.ViewportWidth,
			Height: opts.ViewportHeight,
		},
		ExtraHttpHeaders: opts.ExtraHeaders,
	})
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	return &Chromium{
		pw:      pw,
		browser: browser,
		context: bctx,
		timeout: opts.Timeout,
		logger:  logger.With("component", "browser"),
	}, nil
}

func (b *Chromium) NewPage() (Page, error) {
	page, err := b.context.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create new page: %w", err)
	}

	if b.timeout > 0 {
		page.SetDefaultTimeout(float64(b.timeout.Milliseconds()))
	}

	return &chromiumPage{page: page, logger: b.logger}, nil
}

// Close shuts down the context, the browser and the driver. It is safe to
// call more than once and from another goroutine.
func (b *Chromium) Close() error {
	b.closeOnce.Do(func() {
		var errs []string

		if b.context != nil {
			if err := b.context.Close(); err != nil {
				errs = append(errs, "context: "+err.Error())
			}
		}
		if b.browser != nil {
			if err := b.browser.Close(); err != nil {
				errs = append(errs, "browser: "+err.Error())
			}
		}
		if b.pw != nil {
			if err := b.pw.Stop(); err != nil {
				errs = append(errs, "playwright: "+err.Error())
			}
		}

		if len(errs) > 0 {
			b.closeErr = fmt.Errorf("errors during close: %s", strings.Join(errs, "; "))
		}
	})
	return b.closeErr
}

type chromiumPage struct {
	page   playwright.Page
	logger *slog.Logger

	mu        sync.Mutex
	responses []playwright.Response
}

func (p *chromiumPage) Goto(url string, timeout time.Duration) error {
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (p *chromiumPage) Title() (string, error) {
	return p.page.Title()
}

func (p *chromiumPage) Content() (string, error) {
	return p.page.Content()
}

func (p *chromiumPage) Evaluate(script string, args ...any) (any, error) {
	return p.page.Evaluate(script, args...)
}

func (p *chromiumPage) CaptureJSON(match func(url string) bool) {
	p.page.OnResponse(func(resp playwright.Response) {
		if match != nil && !match(resp.URL()) {
			return
		}
		// Bodies are read later from the caller's goroutine; blocking calls
		// inside the event handler stall the driver connection.
		p.mu.Lock()
		p.responses = append(p.responses, resp)
		p.mu.Unlock()
	})
}

func (p *chromiumPage) CapturedJSON() []any {
	p.mu.Lock()
	pending := p.responses
	p.responses = nil
	p.mu.Unlock()

	var docs []any
	for _, resp := range pending {
		if !strings.Contains(strings.ToLower(resp.Headers()["content-type"]), "json") {
			continue
		}
		body, err := resp.Body()
		if err != nil {
			p.logger.Debug("failed to read response body", "url", resp.URL(), "error", err)
			continue
		}
		doc, err := parser.DecodeJSON(body)
		if err != nil {
			continue
		}
		docs = append(docs, doc)
	}
	return docs
}

func (p *chromiumPage) Close() error {
	return p.page.Close()
}
