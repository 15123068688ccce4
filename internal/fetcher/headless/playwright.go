package headless

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/bolagsradar/listings-scraper/internal/metrics"
	"github.com/bolagsradar/listings-scraper/internal/scraper"
)

// PlaywrightRenderer implements scraper.Renderer on top of the playwright
// driver, using the browsers the bootstrapper provisioned.
type PlaywrightRenderer struct {
	cfg     Config
	limiter chan struct{}

	mu      sync.Mutex
	pw      *playwright.Playwright
	browser playwright.Browser
}

// NewPlaywright creates a renderer backed by the playwright driver. The
// driver process and the browser start lazily on the first render, so the
// renderer can be built before provisioning has finished.
func NewPlaywright(cfg Config) (*PlaywrightRenderer, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 45 * time.Second
	}
	var limiter chan struct{}
	if cfg.MaxParallel > 0 {
		limiter = make(chan struct{}, cfg.MaxParallel)
	}
	return &PlaywrightRenderer{
		cfg:     cfg,
		limiter: limiter,
	}, nil
}

// Close shuts down the browser and stops the driver process.
func (r *PlaywrightRenderer) Close(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var closeErr, stopErr error
	if r.browser != nil {
		closeErr = r.browser.Close()
		r.browser = nil
	}
	if r.pw != nil {
		stopErr = r.pw.Stop()
		r.pw = nil
	}
	return errors.Join(closeErr, stopErr)
}

// Render navigates to the page in headless Chromium and returns the DOM
// after scripts have settled.
func (r *PlaywrightRenderer) Render(ctx context.Context, request scraper.FetchRequest) (scraper.Page, error) {
	if err := acquireSlot(ctx, r.limiter); err != nil {
		return scraper.Page{}, err
	}
	defer releaseSlot(r.limiter)

	browser, err := r.ensureBrowser()
	if err != nil {
		metrics.ObserveHeadlessRender("playwright", "error")
		return scraper.Page{}, err
	}

	start := time.Now()
	page, err := r.renderPage(browser, request)
	if err != nil {
		metrics.ObserveHeadlessRender("playwright", "error")
		return scraper.Page{}, err
	}
	metrics.ObserveHeadlessRender("playwright", "ok")

	page.Duration = time.Since(start)
	return page, nil
}

// ensureBrowser starts the driver and launches Chromium once, relaunching
// only if a previous browser died.
func (r *PlaywrightRenderer) ensureBrowser() (playwright.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.browser != nil && r.browser.IsConnected() {
		return r.browser, nil
	}
	if r.pw == nil {
		pw, err := playwright.Run()
		if err != nil {
			return nil, fmt.Errorf("start playwright driver: %w", err)
		}
		r.pw = pw
	}

	browser, err := r.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("launch chromium: %w", err)
	}
	r.browser = browser
	return browser, nil
}

func (r *PlaywrightRenderer) renderPage(browser playwright.Browser, request scraper.FetchRequest) (scraper.Page, error) {
	opts := playwright.BrowserNewPageOptions{}
	if r.cfg.UserAgent != "" {
		opts.UserAgent = playwright.String(r.cfg.UserAgent)
	}
	if extra := flattenHeaders(request.Headers); len(extra) > 0 {
		opts.ExtraHttpHeaders = extra
	}

	page, err := browser.NewPage(opts)
	if err != nil {
		return scraper.Page{}, fmt.Errorf("new page: %w", err)
	}
	defer page.Close()

	resp, err := page.Goto(request.URL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
		Timeout:   playwright.Float(float64(r.cfg.NavigationTimeout.Milliseconds())),
	})
	if err != nil {
		return scraper.Page{}, fmt.Errorf("goto %s: %w", request.URL, err)
	}

	html, err := page.Content()
	if err != nil {
		return scraper.Page{}, fmt.Errorf("page content: %w", err)
	}

	// Goto returns no response for same-document navigations; the navigation
	// itself succeeded, so assume OK.
	status := http.StatusOK
	headers := http.Header{}
	if resp != nil {
		status = resp.Status()
		for key, value := range resp.Headers() {
			headers.Set(key, value)
		}
	}

	return scraper.Page{
		URL:        request.URL,
		FinalURL:   page.URL(),
		StatusCode: status,
		Headers:    headers,
		Body:       []byte(html),
		UsedJS:     true,
	}, nil
}

// flattenHeaders converts an http.Header into the single-value map the
// playwright protocol expects.
func flattenHeaders(h http.Header) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for key, values := range h {
		if len(values) == 0 {
			continue
		}
		out[key] = strings.Join(values, ", ")
	}
	return out
}
