package browser

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

// blockedResourceTypes are the subresource types skipped during rendering.
var blockedResourceTypes = []string{"image", "font", "stylesheet", "media"}

// RemoteLauncher launches sessions against a browserless-style headless
// Chrome service exposing a /content endpoint.
type RemoteLauncher struct {
	baseURL     string
	token       string
	settleDelay time.Duration
	http        *http.Client
}

// RemoteOption configures the launcher.
type RemoteOption func(*RemoteLauncher)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) RemoteOption {
	return func(l *RemoteLauncher) {
		l.http = hc
	}
}

// WithSettleDelay sets the fixed post-load settle delay the remote service
// waits after the network-settled condition before capturing the DOM.
func WithSettleDelay(d time.Duration) RemoteOption {
	return func(l *RemoteLauncher) {
		l.settleDelay = d
	}
}

// NewRemoteLauncher creates a launcher for the given headless service URL.
func NewRemoteLauncher(baseURL, token string, opts ...RemoteOption) *RemoteLauncher {
	l := &RemoteLauncher{
		baseURL:     baseURL,
		token:       token,
		settleDelay: 2 * time.Second,
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Launch creates a new remote session. The remote service is stateless per
// request, so launch itself is cheap; the pool still bounds concurrency.
func (l *RemoteLauncher) Launch(_ context.Context) (Instance, error) {
	if l.baseURL == "" {
		return nil, eris.New("browser: remote endpoint not configured")
	}
	return &remoteInstance{launcher: l}, nil
}

type remoteInstance struct {
	launcher *RemoteLauncher
	closed   bool
}

type contentRequest struct {
	URL                 string      `json:"url"`
	RejectResourceTypes []string    `json:"rejectResourceTypes,omitempty"`
	GotoOptions         gotoOptions `json:"gotoOptions"`
	// WaitForTimeout is the post-load settle delay in milliseconds, applied
	// by the service before the DOM is captured.
	WaitForTimeout int `json:"waitForTimeout,omitempty"`
}

type gotoOptions struct {
	WaitUntil string `json:"waitUntil"`
	TimeoutMs int    `json:"timeout"`
}

func (r *remoteInstance) Render(ctx context.Context, targetURL string) (string, error) {
	if r.closed {
		return "", eris.New("browser: render on closed instance")
	}
	l := r.launcher

	payload, err := json.Marshal(contentRequest{
		URL:                 targetURL,
		RejectResourceTypes: blockedResourceTypes,
		GotoOptions: gotoOptions{
			WaitUntil: "networkidle2",
			TimeoutMs: 30000,
		},
		WaitForTimeout: int(l.settleDelay / time.Millisecond),
	})
	if err != nil {
		return "", eris.Wrap(err, "browser: marshal content request")
	}

	endpoint := l.baseURL + "/content"
	if l.token != "" {
		endpoint += "?token=" + l.token
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", eris.Wrap(err, "browser: create content request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "browser: content request")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", eris.Wrap(err, "browser: read content response")
	}

	if resp.StatusCode != http.StatusOK {
		// A partial render may still carry usable DOM; surface it so the
		// caller can prefer it over a hard failure.
		if len(body) > 0 {
			return string(body), eris.Errorf("browser: content status %d", resp.StatusCode)
		}
		return "", eris.Errorf("browser: content status %d", resp.StatusCode)
	}

	return string(body), nil
}

func (r *remoteInstance) Close() error {
	r.closed = true
	return nil
}
