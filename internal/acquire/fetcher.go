// Package acquire obtains raw HTML for a URL through an ordered cascade of
// fetch strategies: direct HTTP, pooled headless browser, bare socket.
package acquire

import (
	"context"
	"fmt"
)

// Result holds fetched page content with its provenance.
type Result struct {
	URL        string
	HTML       string
	StatusCode int
	Strategy   string
	// Partial marks content recovered from a navigation that failed
	// mid-flight but left usable DOM behind.
	Partial bool
	// Attempts counts every strategy attempt made before this result.
	Attempts int
}

// Fetcher is a single content-acquisition strategy.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Result, error)
	Name() string
}

// FetchError reports that every strategy in the cascade was exhausted.
type FetchError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("acquire: all strategies failed for %s after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
