// Package pipeline orchestrates the acquisition, extraction, validation and
// enrichment stages for a single URL.
package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/catalog-cli/internal/acquire"
	"github.com/sells-group/catalog-cli/internal/extract"
	"github.com/sells-group/catalog-cli/internal/model"
	"github.com/sells-group/catalog-cli/internal/store"
)

// Fetcher acquires raw HTML for a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*acquire.Result, error)
}

// Extractor turns HTML into typed entities.
type Extractor interface {
	Extract(ctx context.Context, html, sourceURL string) ([]model.ExtractedEntity, model.QualityMetrics)
}

// Validator cross-checks entities against an independent collaborator.
type Validator interface {
	Validate(ctx context.Context, entities []model.ExtractedEntity, sourceURL string) []model.ExtractedEntity
}

// Enricher augments product entities with external data.
type Enricher interface {
	Enrich(ctx context.Context, entities []model.ExtractedEntity, sourceURL string) []model.ExtractedEntity
}

// Options toggles optional stages and bounds a run.
type Options struct {
	// SkipValidation bypasses the validation stage.
	SkipValidation bool
	// SkipEnrichment bypasses the enrichment stage.
	SkipEnrichment bool
	// ForceRefresh ignores a cached result.
	ForceRefresh bool
	// DisableCache turns off cache reads and writes entirely.
	DisableCache bool
	// CacheTTL is how long results are cached. Zero uses the store default.
	CacheTTL time.Duration
	// Timeout bounds the whole run. Zero means no explicit deadline.
	Timeout time.Duration
	// KeepRawContent includes the fetched HTML in the result.
	KeepRawContent bool
}

// Pipeline runs the full analysis for one URL. Each invocation owns its own
// entity graph; nothing is shared between concurrent runs.
type Pipeline struct {
	fetcher   Fetcher
	extractor Extractor
	validator Validator
	enricher  Enricher
	store     store.Store
	opts      Options
}

// New creates a pipeline. Validator, enricher and store may be nil, which
// disables the corresponding stage.
func New(fetcher Fetcher, extractor Extractor, validator Validator, enricher Enricher, st store.Store, opts Options) *Pipeline {
	return &Pipeline{
		fetcher:   fetcher,
		extractor: extractor,
		validator: validator,
		enricher:  enricher,
		store:     st,
		opts:      opts,
	}
}

// Analyze runs the staged pipeline for a URL and returns the assembled
// extraction result. Stages degrade to the best available partial result;
// only total acquisition failure yields a failed status, and even that
// carries a URL-derived business entity.
func (p *Pipeline) Analyze(ctx context.Context, rawURL string) (*model.ExtractionResult, error) {
	return p.analyze(ctx, rawURL, "")
}

// AnalyzeRun is Analyze with run tracking: the run's status advances through
// the stages as they execute and the final result is persisted on the run.
func (p *Pipeline) AnalyzeRun(ctx context.Context, runID, rawURL string) (*model.ExtractionResult, error) {
	return p.analyze(ctx, rawURL, runID)
}

func (p *Pipeline) analyze(ctx context.Context, rawURL, runID string) (*model.ExtractionResult, error) {
	targetURL, err := NormalizeURL(rawURL)
	if err != nil {
		return nil, err
	}

	if p.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.Timeout)
		defer cancel()
	}

	log := zap.L().With(zap.String("url", targetURL))

	if cached := p.cachedResult(ctx, targetURL); cached != nil {
		log.Info("pipeline: cache hit")
		return cached, nil
	}

	start := time.Now()
	log.Info("pipeline: starting analysis")

	// trackPhase wraps one stage with duration logging.
	trackPhase := func(name string, fn func() error) {
		phaseStart := time.Now()
		err := fn()
		duration := time.Since(phaseStart).Milliseconds()
		if err != nil {
			log.Warn("pipeline: phase degraded",
				zap.String("phase", name),
				zap.Int64("duration_ms", duration),
				zap.Error(err),
			)
			return
		}
		log.Info("pipeline: phase complete",
			zap.String("phase", name),
			zap.Int64("duration_ms", duration),
		)
	}

	var fetched *acquire.Result
	p.setStatus(ctx, runID, model.RunStatusFetching)
	trackPhase("acquire", func() error {
		var fetchErr error
		fetched, fetchErr = p.fetcher.Fetch(ctx, targetURL)
		return fetchErr
	})

	html := ""
	attempts := 0
	partial := false
	if fetched != nil {
		html = fetched.HTML
		attempts = fetched.Attempts
		partial = fetched.Partial
	}

	var entities []model.ExtractedEntity
	var quality model.QualityMetrics
	p.setStatus(ctx, runID, model.RunStatusExtracting)
	trackPhase("extract", func() error {
		entities, quality = p.extractor.Extract(ctx, html, targetURL)
		return nil
	})
	quality.FetchAttempts = attempts

	if p.validator != nil && !p.opts.SkipValidation {
		p.setStatus(ctx, runID, model.RunStatusValidating)
		trackPhase("validate", func() error {
			entities = p.validator.Validate(ctx, entities, targetURL)
			return nil
		})
	}

	if p.enricher != nil && !p.opts.SkipEnrichment {
		p.setStatus(ctx, runID, model.RunStatusEnriching)
		trackPhase("enrich", func() error {
			entities = p.enricher.Enrich(ctx, entities, targetURL)
			return nil
		})
	}

	result := &model.ExtractionResult{
		SourceURL:      targetURL,
		Entities:       entities,
		Confidence:     extract.OverallConfidence(entities),
		ProcessingTime: time.Since(start),
		Status:         resultStatus(fetched, quality),
		Quality:        quality,
	}
	if p.opts.KeepRawContent {
		result.RawContent = html
	}
	if fetched == nil {
		result.Error = "all acquisition strategies failed"
	} else if partial {
		result.Error = "partial DOM content recovered"
	}

	p.cacheResult(ctx, targetURL, result)
	if runID != "" && p.store != nil {
		if err := p.store.UpdateRunResult(ctx, runID, result); err != nil {
			log.Warn("pipeline: persist run result failed", zap.String("run_id", runID), zap.Error(err))
		}
	}

	log.Info("pipeline: analysis finished",
		zap.String("status", string(result.Status)),
		zap.Float64("confidence", result.Confidence),
		zap.Int("entities", len(result.Entities)),
		zap.Duration("elapsed", result.ProcessingTime),
	)
	return result, nil
}

// resultStatus classifies a run. No HTML at all is a failure; HTML with a
// one-sided catalog (business but no products, or the reverse) is partial.
func resultStatus(fetched *acquire.Result, q model.QualityMetrics) model.ResultStatus {
	if fetched == nil {
		return model.StatusFailed
	}
	if fetched.Partial || q.ProductCount == 0 || q.BusinessCount == 0 {
		return model.StatusPartial
	}
	return model.StatusCompleted
}

// setStatus advances the run status; a store failure is logged, not fatal.
func (p *Pipeline) setStatus(ctx context.Context, runID string, status model.RunStatus) {
	if runID == "" || p.store == nil {
		return
	}
	if err := p.store.UpdateRunStatus(ctx, runID, status); err != nil {
		zap.L().Warn("pipeline: update run status failed",
			zap.String("run_id", runID),
			zap.String("status", string(status)),
			zap.Error(err),
		)
	}
}

func (p *Pipeline) cachedResult(ctx context.Context, url string) *model.ExtractionResult {
	if p.store == nil || p.opts.ForceRefresh || p.opts.DisableCache {
		return nil
	}
	cached, err := p.store.GetCachedResult(ctx, url)
	if err != nil {
		zap.L().Warn("pipeline: cache lookup failed", zap.String("url", url), zap.Error(err))
		return nil
	}
	return cached
}

func (p *Pipeline) cacheResult(ctx context.Context, url string, result *model.ExtractionResult) {
	if p.store == nil || p.opts.DisableCache || result.Status == model.StatusFailed {
		return
	}
	ttl := p.opts.CacheTTL
	if ttl <= 0 {
		ttl = store.DefaultCacheTTL
	}
	if err := p.store.SetCachedResult(ctx, url, result, ttl); err != nil {
		zap.L().Warn("pipeline: cache store failed", zap.String("url", url), zap.Error(err))
	}
}

// NormalizeURL accepts bare domains and full URLs; a missing scheme
// defaults to https.
func NormalizeURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", eris.New("pipeline: empty url")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}
	return trimmed, nil
}
