package acquire

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/catalog-cli/internal/browser"
	"github.com/sells-group/catalog-cli/internal/resilience"
)

// Leaser is the slice of the browser pool the fetcher needs.
type Leaser interface {
	Acquire(ctx context.Context) (*browser.Handle, error)
	Release(h *browser.Handle)
	Discard(h *browser.Handle)
}

// BrowserFetcher renders a URL through a pooled headless-browser instance.
// Each fetch leases an instance, renders, and returns the instance to the
// pool on every exit path.
type BrowserFetcher struct {
	pool  Leaser
	retry resilience.RetryConfig
}

// NewBrowserFetcher creates a BrowserFetcher over the given pool. The retry
// policy defaults to 3 attempts with exponential backoff capped at 10s.
func NewBrowserFetcher(pool Leaser, retry resilience.RetryConfig) *BrowserFetcher {
	if retry.MaxAttempts == 0 {
		retry = resilience.DefaultRetryConfig()
	}
	return &BrowserFetcher{pool: pool, retry: retry}
}

func (b *BrowserFetcher) Name() string { return "headless_browser" }

// Fetch renders the URL, retrying transient navigation failures. If a failed
// navigation left partial DOM behind, that content is returned (flagged
// Partial) in preference to a hard failure.
func (b *BrowserFetcher) Fetch(ctx context.Context, targetURL string) (*Result, error) {
	cfg := b.retry
	cfg.ShouldRetry = func(error) bool { return true }
	cfg.OnRetry = resilience.RetryLogger(b.Name(), "render")

	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (*Result, error) {
		return b.renderOnce(ctx, targetURL)
	})
}

func (b *BrowserFetcher) renderOnce(ctx context.Context, targetURL string) (*Result, error) {
	handle, err := b.pool.Acquire(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "headless_browser: acquire instance")
	}

	dom, err := handle.Instance.Render(ctx, targetURL)
	if err != nil {
		// A mid-flight failure may still have produced usable DOM.
		if looksLikeHTML(dom) {
			b.pool.Release(handle)
			return &Result{
				URL:      targetURL,
				HTML:     dom,
				Strategy: b.Name(),
				Partial:  true,
			}, nil
		}
		b.pool.Discard(handle)
		return nil, eris.Wrapf(err, "headless_browser: render %s", targetURL)
	}
	b.pool.Release(handle)

	if !looksLikeHTML(dom) {
		return nil, eris.New("headless_browser: rendered document is empty")
	}

	return &Result{
		URL:        targetURL,
		HTML:       dom,
		StatusCode: 200,
		Strategy:   b.Name(),
	}, nil
}

// looksLikeHTML reports whether content contains at least one markup tag and
// is not just whitespace.
func looksLikeHTML(content string) bool {
	trimmed := strings.TrimSpace(content)
	return len(trimmed) > 0 && strings.Contains(trimmed, "<")
}
