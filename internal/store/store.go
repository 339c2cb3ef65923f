// Package store persists pipeline runs and caches extraction results.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/sells-group/catalog-cli/internal/model"
)

// DefaultCacheTTL is how long a cached extraction result stays valid.
const DefaultCacheTTL = 24 * time.Hour

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	URL    string          `json:"url,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the catalog pipeline.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, url string) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	UpdateRunResult(ctx context.Context, runID string, result *model.ExtractionResult) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Result cache, keyed by SHA-256 of the normalized URL.
	GetCachedResult(ctx context.Context, url string) (*model.ExtractionResult, error)
	SetCachedResult(ctx context.Context, url string, result *model.ExtractionResult, ttl time.Duration) error
	DeleteExpiredResults(ctx context.Context) (int, error)
	CacheStats(ctx context.Context) (*CacheStatsResult, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// CacheStatsResult summarizes the result cache.
type CacheStatsResult struct {
	Total   int `json:"total"`
	Expired int `json:"expired"`
}

// URLHash derives the cache key for a normalized URL.
func URLHash(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}

// runStatusFor maps a result status onto the terminal run status.
func runStatusFor(result *model.ExtractionResult) model.RunStatus {
	if result != nil && result.Status == model.StatusFailed {
		return model.RunStatusFailed
	}
	return model.RunStatusComplete
}
