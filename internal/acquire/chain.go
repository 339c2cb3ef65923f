package acquire

import (
	"context"

	"go.uber.org/zap"
)

// Chain tries fetch strategies in priority order, short-circuiting on the
// first success.
type Chain struct {
	fetchers []Fetcher
}

// NewChain creates a Chain over the given strategies, tried in order.
func NewChain(fetchers ...Fetcher) *Chain {
	return &Chain{fetchers: fetchers}
}

// Fetch runs the cascade for a single URL. A partial result from one strategy
// is preferred over a later hard failure but a later full success wins.
func (c *Chain) Fetch(ctx context.Context, targetURL string) (*Result, error) {
	var lastErr error
	var partial *Result
	attempts := 0

	for _, f := range c.fetchers {
		if ctx.Err() != nil {
			break
		}
		attempts++
		result, err := f.Fetch(ctx, targetURL)
		if err == nil && result != nil {
			result.Attempts = attempts
			if result.Partial {
				// Hold partial content; a later strategy may do better.
				if partial == nil {
					partial = result
				}
				zap.L().Debug("acquire: strategy returned partial content",
					zap.String("strategy", f.Name()),
					zap.String("url", targetURL),
				)
				continue
			}
			zap.L().Debug("acquire: strategy succeeded",
				zap.String("strategy", f.Name()),
				zap.String("url", targetURL),
			)
			return result, nil
		}
		if err != nil {
			zap.L().Debug("acquire: strategy failed, trying next",
				zap.String("strategy", f.Name()),
				zap.String("url", targetURL),
				zap.Error(err),
			)
			lastErr = err
		}
	}

	if partial != nil {
		partial.Attempts = attempts
		return partial, nil
	}

	return nil, &FetchError{URL: targetURL, Attempts: attempts, Err: lastErr}
}
