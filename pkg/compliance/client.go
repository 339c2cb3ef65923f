// Package compliance provides a client for the trade-compliance lookup
// service: HS code classification, required export documents, and tariff
// rates for a product.
package compliance

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.tradedata.example.com"

// Client defines the compliance lookup operations.
type Client interface {
	// Classify returns trade-compliance data for a product.
	Classify(ctx context.Context, req ClassifyRequest) (*ComplianceInfo, error)
}

// ClassifyRequest identifies the product to classify.
type ClassifyRequest struct {
	Product     string   `json:"productName"`
	Description string   `json:"description,omitempty"`
	Category    string   `json:"category,omitempty"`
	ProductType string   `json:"productType,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
}

// ComplianceInfo is the parsed classification response.
type ComplianceInfo struct {
	HSCode            string            `json:"hsCode"`
	RequiredDocuments []string          `json:"requiredDocuments"`
	TariffRates       map[string]string `json:"tariffRates"`
	Notes             string            `json:"notes"`
	Confidence        float64           `json:"confidence"`
}

// Option configures the compliance client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit overrides the default request rate (requests per second).
func WithRateLimit(rps float64, burst int) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	limiter *rate.Limiter
	http    *http.Client
}

// NewClient creates a compliance lookup client. Requests are rate limited
// to 5/s by default.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		limiter: rate.NewLimiter(rate.Limit(5), 5),
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Classify(ctx context.Context, req ClassifyRequest) (*ComplianceInfo, error) {
	if req.Product == "" {
		return nil, eris.New("compliance: product name is required")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "compliance: rate limit wait")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "compliance: marshal request")
	}

	respBody, status, err := c.retryDo(ctx, "/v1/classify", body)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, eris.Errorf("compliance: unexpected status %d: %s", status, string(respBody))
	}

	var info ComplianceInfo
	if err := json.Unmarshal(respBody, &info); err != nil {
		return nil, eris.Wrap(err, "compliance: unmarshal response")
	}
	return &info, nil
}

// retryableStatusCode returns true if the HTTP status code should trigger a retry.
func retryableStatusCode(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusInternalServerError ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable
}

// retryDo executes the POST with exponential backoff retries on transient
// failures (429, 500, 502, 503).
func (c *httpClient) retryDo(ctx context.Context, path string, body []byte) ([]byte, int, error) {
	const maxAttempts = 3
	backoff := 500 * time.Millisecond

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, 0, eris.Wrap(err, "compliance: create request")
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = eris.Wrap(err, "compliance: send request")
			if ctx.Err() != nil || attempt == maxAttempts {
				return nil, 0, lastErr
			}
		} else {
			respBody, readErr := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			if readErr != nil {
				return nil, resp.StatusCode, eris.Wrap(readErr, "compliance: read response")
			}
			if !retryableStatusCode(resp.StatusCode) || attempt == maxAttempts {
				return respBody, resp.StatusCode, nil
			}
			lastErr = eris.Errorf("compliance: transient status %d", resp.StatusCode)
		}

		select {
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return nil, 0, lastErr
}
