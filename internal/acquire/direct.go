package acquire

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

const browserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// maxBodyBytes bounds how much of a response body is read.
const maxBodyBytes = 2 << 20

// DirectFetcher performs a plain HTTP GET with a realistic browser user
// agent and a cache-busting query parameter.
type DirectFetcher struct {
	client *http.Client
	// now allows test injection for the cache-busting parameter.
	now func() time.Time
}

// NewDirectFetcher creates a DirectFetcher with a 30s timeout.
func NewDirectFetcher() *DirectFetcher {
	return &DirectFetcher{
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
				MaxIdleConnsPerHost: 10,
			},
		},
		now: time.Now,
	}
}

func (d *DirectFetcher) Name() string { return "direct_http" }

// Fetch GETs the URL. It rejects 4xx/5xx statuses, non-HTML content types,
// and empty bodies so the cascade can fall through to a rendering strategy.
func (d *DirectFetcher) Fetch(ctx context.Context, targetURL string) (*Result, error) {
	bustURL, err := appendCacheBuster(targetURL, d.now().UnixNano())
	if err != nil {
		return nil, eris.Wrapf(err, "direct_http: parse url %s", targetURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, bustURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "direct_http: create request")
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "direct_http: fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return nil, eris.Errorf("direct_http: status %d", resp.StatusCode)
	}

	if ct := resp.Header.Get("Content-Type"); !htmlLike(ct) {
		return nil, eris.Errorf("direct_http: non-HTML content type %q", ct)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, eris.Wrap(err, "direct_http: read body")
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, eris.New("direct_http: empty body")
	}

	return &Result{
		URL:        targetURL,
		HTML:       string(body),
		StatusCode: resp.StatusCode,
		Strategy:   d.Name(),
	}, nil
}

// htmlLike reports whether a content type plausibly carries HTML. An absent
// content type is accepted; many small-business servers omit it.
func htmlLike(contentType string) bool {
	if contentType == "" {
		return true
	}
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "text/html") ||
		strings.Contains(ct, "application/xhtml")
}

// appendCacheBuster adds a _cb timestamp query parameter to defeat stale
// intermediary caches.
func appendCacheBuster(rawURL string, nano int64) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("_cb", fmt.Sprintf("%d", nano))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
