// Package enrich fans product entities out to the compliance and market
// collaborators and merges the results into entity attributes.
package enrich

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/catalog-cli/internal/model"
	"github.com/sells-group/catalog-cli/internal/resilience"
	"github.com/sells-group/catalog-cli/pkg/compliance"
	"github.com/sells-group/catalog-cli/pkg/market"
)

// fallbackConfidence marks fields populated after a collaborator failure.
const fallbackConfidence = 0.2

// defaultFanOut bounds concurrent per-product enrichment calls.
const defaultFanOut = 5

// Config tunes the enrichment engine.
type Config struct {
	// FanOutLimit bounds concurrent product enrichment. Default 5.
	FanOutLimit int
	// CrossReference enables the HS-code / market-category consistency check.
	CrossReference bool
}

// Engine enriches product entities concurrently, tolerating individual
// collaborator failures. Both collaborators sit behind circuit breakers.
type Engine struct {
	complianceClient compliance.Client
	marketClient     market.Client
	breakers         *resilience.ServiceBreakers
	cfg              Config
}

// NewEngine creates an enrichment engine. Either client may be nil, which
// disables that enrichment source.
func NewEngine(cc compliance.Client, mc market.Client, breakers *resilience.ServiceBreakers, cfg Config) *Engine {
	if cfg.FanOutLimit <= 0 {
		cfg.FanOutLimit = defaultFanOut
	}
	if breakers == nil {
		breakers = resilience.NewServiceBreakers(resilience.DefaultCircuitBreakerConfig())
	}
	return &Engine{complianceClient: cc, marketClient: mc, breakers: breakers, cfg: cfg}
}

// Enrich mutates product attributes in place and returns the same slice.
// Every product settles (success or fallback markers) before returning; a
// failed sibling never drops another product's result.
func (e *Engine) Enrich(ctx context.Context, entities []model.ExtractedEntity, sourceURL string) []model.ExtractedEntity {
	doCompliance, doMarket := e.readFlags(entities)
	doCompliance = doCompliance && e.complianceClient != nil
	doMarket = doMarket && e.marketClient != nil
	if !doCompliance && !doMarket {
		return entities
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.FanOutLimit)

	for i := range entities {
		if entities[i].Type != model.EntityProduct {
			continue
		}
		ent := &entities[i]
		g.Go(func() error {
			e.enrichProduct(gctx, ent, doCompliance, doMarket)
			return nil
		})
	}
	_ = g.Wait()

	if e.cfg.CrossReference {
		for i := range entities {
			if entities[i].Type == model.EntityProduct {
				crossReference(&entities[i])
			}
		}
	}

	zap.L().Debug("enrich: fan-out complete",
		zap.String("url", sourceURL),
		zap.Int("products", model.CountByType(entities, model.EntityProduct)),
		zap.Bool("compliance", doCompliance),
		zap.Bool("market", doMarket),
	)
	return entities
}

// readFlags reads the mcpEnrichmentFlags recorded by extraction. Absent
// flags mean enrich everything.
func (e *Engine) readFlags(entities []model.ExtractedEntity) (doCompliance, doMarket bool) {
	doCompliance, doMarket = true, true
	for _, ent := range entities {
		if ent.Type != model.EntityMetadata {
			continue
		}
		flags, ok := ent.Attributes.Extra["mcpEnrichmentFlags"].(map[string]bool)
		if !ok {
			continue
		}
		if v, ok := flags["compliance"]; ok {
			doCompliance = v
		}
		if v, ok := flags["market"]; ok {
			doMarket = v
		}
		return
	}
	return
}

// enrichProduct calls the enabled collaborators for one product and merges
// results. A failed call writes fallback markers instead of aborting.
func (e *Engine) enrichProduct(ctx context.Context, ent *model.ExtractedEntity, doCompliance, doMarket bool) {
	var reported []float64

	if doCompliance {
		info, err := resilience.ExecuteVal(ctx, e.breakers.Get("compliance"), func(ctx context.Context) (*compliance.ComplianceInfo, error) {
			return e.complianceClient.Classify(ctx, compliance.ClassifyRequest{
				Product:     ent.Name,
				Description: ent.Value,
				Category:    ent.Attributes.Category,
				ProductType: ent.Attributes.ProductType,
				Keywords:    ent.Attributes.Keywords,
			})
		})
		if err != nil {
			zap.L().Warn("enrich: compliance lookup failed",
				zap.String("product", ent.Name),
				zap.Error(err),
			)
			ent.Attributes.ComplianceError = err.Error()
			ent.Attributes.ComplianceConfidence = fallbackConfidence
			reported = append(reported, fallbackConfidence)
		} else {
			ent.Attributes.HSCode = info.HSCode
			ent.Attributes.RequiredDocuments = info.RequiredDocuments
			ent.Attributes.TariffRates = info.TariffRates
			ent.Attributes.ComplianceNotes = info.Notes
			ent.Attributes.ComplianceConfidence = info.Confidence
			reported = append(reported, info.Confidence)
		}
	}

	if doMarket {
		info, err := resilience.ExecuteVal(ctx, e.breakers.Get("market"), func(ctx context.Context) (*market.MarketInfo, error) {
			// The compliance branch above has already settled, so a fresh
			// HS code narrows the market lookup.
			return e.marketClient.Research(ctx, market.ResearchRequest{
				Product:     ent.Name,
				Category:    ent.Attributes.Category,
				ProductType: ent.Attributes.ProductType,
				Keywords:    ent.Attributes.Keywords,
				HSCode:      ent.Attributes.HSCode,
			})
		})
		if err != nil {
			zap.L().Warn("enrich: market lookup failed",
				zap.String("product", ent.Name),
				zap.Error(err),
			)
			ent.Attributes.MarketError = err.Error()
			ent.Attributes.MarketConfidence = fallbackConfidence
			reported = append(reported, fallbackConfidence)
		} else {
			ent.Attributes.MarketSize = info.MarketSize
			ent.Attributes.MarketGrowth = info.Growth
			ent.Attributes.Competitors = info.Competitors
			ent.Attributes.MarketCategory = info.Category
			ent.Attributes.Trends = info.Trends
			ent.Attributes.MarketConfidence = info.Confidence
			reported = append(reported, info.Confidence)
		}
	}

	if len(reported) == 0 {
		return
	}
	var sum float64
	for _, c := range reported {
		sum += c
	}
	ent.SetConfidence((ent.Confidence + sum/float64(len(reported))) / 2)
}

// hsCategoryKeywords maps HS chapter (first two digits) to market category
// keywords that are consistent with it.
var hsCategoryKeywords = map[string][]string{
	"04": {"dairy", "honey", "food", "sweetener"},
	"09": {"coffee", "tea", "spice", "food", "beverage"},
	"19": {"bakery", "cereal", "snack", "food"},
	"22": {"beverage", "wine", "spirits", "drink"},
	"42": {"leather", "bag", "accessory", "fashion"},
	"61": {"apparel", "clothing", "textile", "fashion"},
	"62": {"apparel", "clothing", "textile", "fashion"},
	"69": {"ceramic", "pottery", "homeware", "tableware"},
	"94": {"furniture", "homeware", "lighting"},
}

// crossReference checks HS-chapter / market-category consistency for
// products that carry both. Inconsistency discounts confidence and records
// a warning; consistency boosts it slightly.
func crossReference(ent *model.ExtractedEntity) {
	hs := ent.Attributes.HSCode
	category := strings.ToLower(ent.Attributes.MarketCategory)
	if len(hs) < 2 || category == "" {
		return
	}

	keywords, ok := hsCategoryKeywords[hs[:2]]
	if !ok {
		return
	}

	for _, kw := range keywords {
		if strings.Contains(category, kw) {
			ent.SetConfidence(ent.Confidence * 1.1)
			return
		}
	}

	ent.SetConfidence(ent.Confidence * 0.8)
	ent.Attributes.SetExtra("crossReferenceWarning",
		"market category does not match HS chapter "+hs[:2])
}
