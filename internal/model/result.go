package model

import "time"

// ResultStatus describes the outcome of an extraction run.
type ResultStatus string

const (
	StatusCompleted ResultStatus = "completed"
	StatusPartial   ResultStatus = "partial"
	StatusFailed    ResultStatus = "failed"
)

// QualityMetrics records extraction-quality diagnostics for a run.
type QualityMetrics struct {
	BusinessCount int  `json:"business_count"`
	ProductCount  int  `json:"product_count"`
	JSONParsed    bool `json:"json_parsed"`
	FetchAttempts int  `json:"fetch_attempts"`
}

// ExtractionResult is the immutable output of a single extraction run.
type ExtractionResult struct {
	SourceURL      string            `json:"source_url"`
	RawContent     string            `json:"raw_content,omitempty"`
	Entities       []ExtractedEntity `json:"entities"`
	Confidence     float64           `json:"confidence"`
	ProcessingTime time.Duration     `json:"processing_time"`
	Status         ResultStatus      `json:"status"`
	Error          string            `json:"error,omitempty"`
	Quality        QualityMetrics    `json:"quality"`
}

// RunStatus tracks pipeline progress for a persisted run.
type RunStatus string

const (
	RunStatusQueued     RunStatus = "queued"
	RunStatusFetching   RunStatus = "fetching"
	RunStatusExtracting RunStatus = "extracting"
	RunStatusValidating RunStatus = "validating"
	RunStatusEnriching  RunStatus = "enriching"
	RunStatusComplete   RunStatus = "complete"
	RunStatusFailed     RunStatus = "failed"
)

// Run is a persisted pipeline invocation.
type Run struct {
	ID        string            `json:"id"`
	URL       string            `json:"url"`
	Status    RunStatus         `json:"status"`
	Result    *ExtractionResult `json:"result,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// ResultCache is a cached extraction result keyed by URL hash.
type ResultCache struct {
	ID        string           `json:"id"`
	URLHash   string           `json:"url_hash"`
	SourceURL string           `json:"source_url"`
	Result    ExtractionResult `json:"result"`
	CachedAt  time.Time        `json:"cached_at"`
	ExpiresAt time.Time        `json:"expires_at"`
}
