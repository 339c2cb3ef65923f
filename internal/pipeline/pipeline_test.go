package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/catalog-cli/internal/acquire"
	"github.com/sells-group/catalog-cli/internal/model"
	"github.com/sells-group/catalog-cli/internal/store"
)

type stubFetcher struct {
	result *acquire.Result
	err    error
	calls  int
}

func (f *stubFetcher) Fetch(_ context.Context, _ string) (*acquire.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type stubExtractor struct {
	entities []model.ExtractedEntity
	quality  model.QualityMetrics
	gotHTML  string
}

func (e *stubExtractor) Extract(_ context.Context, html, _ string) ([]model.ExtractedEntity, model.QualityMetrics) {
	e.gotHTML = html
	return e.entities, e.quality
}

type stubStage struct {
	calls int
	tag   string
}

func (s *stubStage) apply(entities []model.ExtractedEntity) []model.ExtractedEntity {
	s.calls++
	for i := range entities {
		entities[i].Attributes.SetExtra(s.tag, true)
	}
	return entities
}

type stubValidator struct{ stubStage }

func (v *stubValidator) Validate(_ context.Context, entities []model.ExtractedEntity, _ string) []model.ExtractedEntity {
	return v.apply(entities)
}

type stubEnricher struct{ stubStage }

func (e *stubEnricher) Enrich(_ context.Context, entities []model.ExtractedEntity, _ string) []model.ExtractedEntity {
	return e.apply(entities)
}

// memStore is an in-memory store.Store covering only what the pipeline uses.
type memStore struct {
	mu       sync.Mutex
	cached   map[string]*model.ExtractionResult
	sets     int
	statuses []model.RunStatus
	results  map[string]*model.ExtractionResult
}

func newMemStore() *memStore {
	return &memStore{
		cached:  make(map[string]*model.ExtractionResult),
		results: make(map[string]*model.ExtractionResult),
	}
}

func (m *memStore) CreateRun(context.Context, string) (*model.Run, error) { return nil, nil }

func (m *memStore) UpdateRunStatus(_ context.Context, _ string, status model.RunStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, status)
	return nil
}

func (m *memStore) UpdateRunResult(_ context.Context, runID string, result *model.ExtractionResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[runID] = result
	return nil
}
func (m *memStore) GetRun(context.Context, string) (*model.Run, error) { return nil, nil }
func (m *memStore) ListRuns(context.Context, store.RunFilter) ([]model.Run, error) {
	return nil, nil
}

func (m *memStore) GetCachedResult(_ context.Context, url string) (*model.ExtractionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cached[url], nil
}

func (m *memStore) SetCachedResult(_ context.Context, url string, result *model.ExtractionResult, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cached[url] = result
	m.sets++
	return nil
}

func (m *memStore) DeleteExpiredResults(context.Context) (int, error) { return 0, nil }

func (m *memStore) CacheStats(context.Context) (*store.CacheStatsResult, error) {
	return &store.CacheStatsResult{}, nil
}

func (m *memStore) Migrate(context.Context) error { return nil }

func (m *memStore) Close() error { return nil }

func fullCatalog(url string) ([]model.ExtractedEntity, model.QualityMetrics) {
	return []model.ExtractedEntity{
			model.NewEntity(model.EntityBusiness, "Acme Foods", "", url, 0.9),
			model.NewEntity(model.EntityProduct, "Organic Honey 500g", "", url, 0.8),
		}, model.QualityMetrics{
			BusinessCount: 1,
			ProductCount:  1,
			JSONParsed:    true,
		}
}

func TestAnalyze_FullRun(t *testing.T) {
	entities, quality := fullCatalog("https://acme.com")
	fetcher := &stubFetcher{result: &acquire.Result{URL: "https://acme.com", HTML: "<html>ok</html>", Strategy: "direct", Attempts: 1}}
	extractor := &stubExtractor{entities: entities, quality: quality}
	validator := &stubValidator{stubStage{tag: "validated"}}
	enricher := &stubEnricher{stubStage{tag: "enriched"}}
	st := newMemStore()

	p := New(fetcher, extractor, validator, enricher, st, Options{})
	result, err := p.Analyze(context.Background(), "https://acme.com")
	require.NoError(t, err)

	assert.Equal(t, model.StatusCompleted, result.Status)
	assert.Equal(t, "https://acme.com", result.SourceURL)
	assert.Equal(t, 1, validator.calls)
	assert.Equal(t, 1, enricher.calls)
	assert.Equal(t, 1, result.Quality.FetchAttempts)
	assert.Positive(t, result.Confidence)
	require.Len(t, result.Entities, 2)
	flag, _ := result.Entities[0].Attributes.Extra["validated"].(bool)
	assert.True(t, flag)
	assert.Equal(t, 1, st.sets)
	assert.Empty(t, result.RawContent)
}

func TestAnalyze_NormalizesBareDomain(t *testing.T) {
	entities, quality := fullCatalog("https://acme.com")
	fetcher := &stubFetcher{result: &acquire.Result{HTML: "<html>ok</html>", Attempts: 1}}
	extractor := &stubExtractor{entities: entities, quality: quality}

	p := New(fetcher, extractor, nil, nil, nil, Options{})
	result, err := p.Analyze(context.Background(), "acme.com")
	require.NoError(t, err)
	assert.Equal(t, "https://acme.com", result.SourceURL)
}

func TestAnalyze_EmptyURL(t *testing.T) {
	p := New(&stubFetcher{}, &stubExtractor{}, nil, nil, nil, Options{})
	_, err := p.Analyze(context.Background(), "   ")
	require.Error(t, err)
}

func TestAnalyze_AcquisitionFailureStillExtracts(t *testing.T) {
	fetcher := &stubFetcher{err: eris.New("acquire: all strategies failed")}
	extractor := &stubExtractor{
		entities: []model.ExtractedEntity{
			model.NewEntity(model.EntityBusiness, "Acme", "", "https://acme.com", 0.6),
		},
		quality: model.QualityMetrics{BusinessCount: 1},
	}
	st := newMemStore()

	p := New(fetcher, extractor, nil, nil, st, Options{})
	result, err := p.Analyze(context.Background(), "https://acme.com")
	require.NoError(t, err)

	assert.Equal(t, model.StatusFailed, result.Status)
	assert.Contains(t, result.Error, "acquisition")
	// The extractor still runs on empty HTML and produces the URL-derived business.
	assert.Empty(t, extractor.gotHTML)
	require.Len(t, result.Entities, 1)
	// Failed runs are never cached.
	assert.Equal(t, 0, st.sets)
}

func TestAnalyze_PartialContentYieldsPartialStatus(t *testing.T) {
	entities, quality := fullCatalog("https://acme.com")
	fetcher := &stubFetcher{result: &acquire.Result{HTML: "<html>half</html>", Partial: true, Attempts: 3}}
	extractor := &stubExtractor{entities: entities, quality: quality}

	p := New(fetcher, extractor, nil, nil, nil, Options{})
	result, err := p.Analyze(context.Background(), "https://acme.com")
	require.NoError(t, err)

	assert.Equal(t, model.StatusPartial, result.Status)
	assert.Equal(t, 3, result.Quality.FetchAttempts)
	assert.Contains(t, result.Error, "partial")
}

func TestAnalyze_BusinessOnlyIsPartial(t *testing.T) {
	fetcher := &stubFetcher{result: &acquire.Result{HTML: "<html>ok</html>", Attempts: 1}}
	extractor := &stubExtractor{
		entities: []model.ExtractedEntity{
			model.NewEntity(model.EntityBusiness, "Acme", "", "https://acme.com", 0.7),
		},
		quality: model.QualityMetrics{BusinessCount: 1},
	}

	p := New(fetcher, extractor, nil, nil, nil, Options{})
	result, err := p.Analyze(context.Background(), "https://acme.com")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPartial, result.Status)
}

func TestAnalyze_SkipFlagsBypassStages(t *testing.T) {
	entities, quality := fullCatalog("https://acme.com")
	fetcher := &stubFetcher{result: &acquire.Result{HTML: "<html>ok</html>", Attempts: 1}}
	extractor := &stubExtractor{entities: entities, quality: quality}
	validator := &stubValidator{stubStage{tag: "validated"}}
	enricher := &stubEnricher{stubStage{tag: "enriched"}}

	p := New(fetcher, extractor, validator, enricher, nil, Options{SkipValidation: true, SkipEnrichment: true})
	_, err := p.Analyze(context.Background(), "https://acme.com")
	require.NoError(t, err)
	assert.Equal(t, 0, validator.calls)
	assert.Equal(t, 0, enricher.calls)
}

func TestAnalyze_CacheHitSkipsFetch(t *testing.T) {
	st := newMemStore()
	st.cached["https://acme.com"] = &model.ExtractionResult{
		SourceURL: "https://acme.com",
		Status:    model.StatusCompleted,
	}
	fetcher := &stubFetcher{result: &acquire.Result{HTML: "<html>ok</html>"}}

	p := New(fetcher, &stubExtractor{}, nil, nil, st, Options{})
	result, err := p.Analyze(context.Background(), "https://acme.com")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, result.Status)
	assert.Equal(t, 0, fetcher.calls)
}

func TestAnalyze_ForceRefreshBypassesCache(t *testing.T) {
	entities, quality := fullCatalog("https://acme.com")
	st := newMemStore()
	st.cached["https://acme.com"] = &model.ExtractionResult{
		SourceURL: "https://acme.com",
		Status:    model.StatusCompleted,
	}
	fetcher := &stubFetcher{result: &acquire.Result{HTML: "<html>fresh</html>", Attempts: 1}}
	extractor := &stubExtractor{entities: entities, quality: quality}

	p := New(fetcher, extractor, nil, nil, st, Options{ForceRefresh: true})
	_, err := p.Analyze(context.Background(), "https://acme.com")
	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.calls)
}

func TestAnalyze_KeepRawContent(t *testing.T) {
	entities, quality := fullCatalog("https://acme.com")
	fetcher := &stubFetcher{result: &acquire.Result{HTML: "<html>ok</html>", Attempts: 1}}
	extractor := &stubExtractor{entities: entities, quality: quality}

	p := New(fetcher, extractor, nil, nil, nil, Options{KeepRawContent: true})
	result, err := p.Analyze(context.Background(), "https://acme.com")
	require.NoError(t, err)
	assert.Equal(t, "<html>ok</html>", result.RawContent)
}

func TestAnalyzeRun_TracksStatusAndPersistsResult(t *testing.T) {
	entities, quality := fullCatalog("https://acme.com")
	fetcher := &stubFetcher{result: &acquire.Result{HTML: "<html>ok</html>", Attempts: 1}}
	extractor := &stubExtractor{entities: entities, quality: quality}
	validator := &stubValidator{stubStage{tag: "validated"}}
	enricher := &stubEnricher{stubStage{tag: "enriched"}}
	st := newMemStore()

	p := New(fetcher, extractor, validator, enricher, st, Options{})
	result, err := p.AnalyzeRun(context.Background(), "run-1", "https://acme.com")
	require.NoError(t, err)

	assert.Equal(t, []model.RunStatus{
		model.RunStatusFetching,
		model.RunStatusExtracting,
		model.RunStatusValidating,
		model.RunStatusEnriching,
	}, st.statuses)
	assert.Same(t, result, st.results["run-1"])
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"acme.com", "https://acme.com"},
		{"https://acme.com/products", "https://acme.com/products"},
		{"http://acme.com", "http://acme.com"},
		{"  acme.com  ", "https://acme.com"},
	}
	for _, tc := range tests {
		got, err := NormalizeURL(tc.in)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}

	_, err := NormalizeURL("")
	require.Error(t, err)
}
