package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/catalog-cli/internal/acquire"
	"github.com/sells-group/catalog-cli/internal/browser"
	"github.com/sells-group/catalog-cli/internal/enrich"
	"github.com/sells-group/catalog-cli/internal/extract"
	"github.com/sells-group/catalog-cli/internal/pipeline"
	"github.com/sells-group/catalog-cli/internal/resilience"
	"github.com/sells-group/catalog-cli/internal/store"
	"github.com/sells-group/catalog-cli/internal/validate"
	anthropicpkg "github.com/sells-group/catalog-cli/pkg/anthropic"
	"github.com/sells-group/catalog-cli/pkg/compliance"
	"github.com/sells-group/catalog-cli/pkg/market"
	"github.com/sells-group/catalog-cli/pkg/perplexity"
)

// analysisEnv holds the initialized store, browser pool, and pipeline needed
// by the analyze/serve commands.
type analysisEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
	Browser  *browser.Pool // may be nil
}

// Close releases resources held by the environment.
func (ae *analysisEnv) Close() {
	if ae.Browser != nil {
		ae.Browser.Close()
	}
	if ae.Store != nil {
		_ = ae.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.SQLitePath)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initAnalysis sets up the store, the acquisition cascade, all collaborator
// clients, and builds the pipeline. Callers should defer env.Close().
func initAnalysis(ctx context.Context, opts pipeline.Options) (*analysisEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	retry := resilience.FromRetryConfig(
		cfg.Acquire.RetryAttempts, cfg.Acquire.RetryBaseMsec, cfg.Acquire.RetryMaxMsec, 2.0, 0.25)

	// Acquisition cascade: direct HTTP, then headless browser (when a remote
	// endpoint is configured), then the raw-socket fallback.
	fetchers := []acquire.Fetcher{acquire.NewDirectFetcher()}
	var pool *browser.Pool
	if cfg.Browser.Endpoint != "" {
		launcher := browser.NewRemoteLauncher(cfg.Browser.Endpoint, cfg.Browser.Token,
			browser.WithSettleDelay(time.Duration(cfg.Browser.SettleDelayMsec)*time.Millisecond))
		pool = browser.NewPool(launcher, browser.Config{
			MaxInstances:  cfg.Browser.MaxInstances,
			IdleTTL:       time.Duration(cfg.Browser.IdleTTLMins) * time.Minute,
			SweepInterval: time.Duration(cfg.Browser.SweepMins) * time.Minute,
		})
		fetchers = append(fetchers, acquire.NewBrowserFetcher(pool, retry))
	} else {
		zap.L().Debug("browser endpoint not configured, headless fallback disabled")
	}
	fetchers = append(fetchers, acquire.NewSocketFetcher())
	chain := acquire.NewChain(fetchers...)

	anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key)
	extractor := extract.NewEngine(anthropicClient, extract.Config{
		Model:       cfg.Extract.Model,
		MaxTokens:   int64(cfg.Extract.MaxTokens),
		Temperature: cfg.Extract.Temperature,
	})

	var validator pipeline.Validator
	if cfg.Validate.Enabled && cfg.Perplexity.Key != "" {
		perplexityClient := perplexity.NewClient(cfg.Perplexity.Key,
			perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
			perplexity.WithModel(cfg.Perplexity.Model))
		validator = validate.NewEngine(perplexityClient, cfg.Validate.Model)
	} else {
		zap.L().Debug("validation disabled")
	}

	var enricher pipeline.Enricher
	if cfg.Enrich.Enabled {
		var complianceClient compliance.Client
		if cfg.Compliance.BaseURL != "" {
			complianceClient = compliance.NewClient(cfg.Compliance.Key,
				compliance.WithBaseURL(cfg.Compliance.BaseURL),
				compliance.WithRateLimit(cfg.Compliance.RateLimit, cfg.Compliance.Burst))
		}
		var marketClient market.Client
		if cfg.Market.BaseURL != "" {
			marketClient = market.NewClient(cfg.Market.Key,
				market.WithBaseURL(cfg.Market.BaseURL),
				market.WithRateLimit(cfg.Market.RateLimit, cfg.Market.Burst))
		}
		if complianceClient != nil || marketClient != nil {
			breakers := resilience.NewServiceBreakers(resilience.DefaultCircuitBreakerConfig())
			enricher = enrich.NewEngine(complianceClient, marketClient, breakers, enrich.Config{
				FanOutLimit:    cfg.Enrich.FanOutLimit,
				CrossReference: cfg.Enrich.CrossReference,
			})
		} else {
			zap.L().Debug("no enrichment collaborators configured")
		}
	}

	if opts.CacheTTL == 0 {
		opts.CacheTTL = cfg.Cache.CacheTTL()
	}
	if opts.Timeout == 0 {
		opts.Timeout = cfg.Pipeline.Timeout()
	}

	if !cfg.Cache.Enabled {
		opts.DisableCache = true
	}

	p := pipeline.New(chain, extractor, validator, enricher, st, opts)

	return &analysisEnv{
		Store:    st,
		Pipeline: p,
		Browser:  pool,
	}, nil
}
