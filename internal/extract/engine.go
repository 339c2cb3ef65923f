// Package extract turns acquired HTML into typed, confidence-scored
// entities using a text-completion collaborator with a heuristic fallback.
package extract

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/catalog-cli/internal/model"
	"github.com/sells-group/catalog-cli/pkg/anthropic"
)

// Confidence thresholds for entity synthesis.
const (
	productThreshold = 0.3
	detailThreshold  = 0.2

	urlBusinessConfidence        = 0.6
	urlBusinessPartialConfidence = 0.7
)

const systemText = "You are a catalog analyst extracting structured business data from website text. " +
	"Return exactly one valid JSON object with keys: business {name, description, confidence}, " +
	"locations [{name, address, confidence}], contacts [{type, value, confidence}], " +
	"services [{name, description, confidence}], " +
	"products [{name, description, category, productType, price, keywords, confidence}], " +
	"mcpEnrichmentFlags {compliance, market}. " +
	"Confidence is 0.0-1.0. Omit entries you cannot support with page evidence. " +
	"Never report navigation labels, menu items or UI chrome as products."

const userPromptTemplate = `Page URL: %s

Page text:
%s

Extract the business catalog from this page. Return the JSON object only.`

// Config tunes the extraction engine.
type Config struct {
	Model       string
	MaxTokens   int64
	Temperature float64
}

// Engine builds extraction requests, parses collaborator output into typed
// entities, and falls back to heuristic HTML extraction when the
// collaborator is unavailable or returns garbage.
type Engine struct {
	client anthropic.Client
	cfg    Config
}

// NewEngine creates an extraction engine. A nil client is allowed and
// forces the heuristic path.
func NewEngine(client anthropic.Client, cfg Config) *Engine {
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 4096
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.1
	}
	return &Engine{client: client, cfg: cfg}
}

// Extract produces the entity list for a page. The first entity is always
// the extraction-quality metadata record, and a business entity is always
// present, synthesized from the URL's domain when nothing better exists.
func (e *Engine) Extract(ctx context.Context, html, sourceURL string) ([]model.ExtractedEntity, model.QualityMetrics) {
	projection := ProjectText(html)

	var cat *parsedCatalog
	jsonParsed := false

	if e.client != nil && strings.TrimSpace(projection) != "" {
		text, err := e.complete(ctx, projection, sourceURL)
		if err != nil {
			zap.L().Warn("extract: completion failed, using heuristic fallback",
				zap.String("url", sourceURL),
				zap.Error(err),
			)
		} else if parsed, ok := parseCatalog(text); ok {
			cat = parsed
			jsonParsed = true
		} else {
			zap.L().Warn("extract: no usable JSON in completion, using heuristic fallback",
				zap.String("url", sourceURL),
			)
		}
	}

	var entities []model.ExtractedEntity
	if jsonParsed {
		entities = e.synthesize(cat, sourceURL)
	} else {
		entities = heuristicExtract(html, sourceURL)
		entities = append(entities, businessFromURL(sourceURL, len(entities) > 0))
	}

	quality := model.QualityMetrics{
		BusinessCount: model.CountByType(entities, model.EntityBusiness),
		ProductCount:  model.CountByType(entities, model.EntityProduct),
		JSONParsed:    jsonParsed,
	}

	// Diagnostics metadata always leads the entity list.
	meta := metadataEntity(sourceURL, quality, cat)
	entities = append([]model.ExtractedEntity{meta}, entities...)

	return entities, quality
}

func (e *Engine) complete(ctx context.Context, projection, sourceURL string) (string, error) {
	temp := e.cfg.Temperature
	resp, err := e.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       e.cfg.Model,
		MaxTokens:   e.cfg.MaxTokens,
		System:      anthropic.BuildCachedSystemBlocks(systemText),
		Temperature: &temp,
		Messages: []anthropic.Message{
			{Role: "user", Content: fmt.Sprintf(userPromptTemplate, sourceURL, projection)},
		},
	})
	if err != nil {
		return "", err
	}
	resp.Usage.LogCost(e.cfg.Model, "extraction")
	return resp.Text(), nil
}

// synthesize applies the entity synthesis rules to a parsed catalog.
func (e *Engine) synthesize(cat *parsedCatalog, sourceURL string) []model.ExtractedEntity {
	var entities []model.ExtractedEntity

	if cat.Business.Found && cat.Business.Confidence > 0 {
		entities = append(entities, model.NewEntity(
			model.EntityBusiness,
			cat.Business.Name,
			cat.Business.Description,
			sourceURL,
			cat.Business.Confidence,
		))
	} else {
		entities = append(entities, businessFromURL(sourceURL, false))
	}

	for _, p := range cat.Products {
		if p.Name == "" || p.Confidence < productThreshold {
			continue
		}
		if looksLikeCodeFragment(p.Name) || looksLikeNavigation(p.Name) {
			continue
		}
		ent := model.NewEntity(model.EntityProduct, p.Name, p.Description, sourceURL, p.Confidence)
		ent.Attributes.Category = p.Category
		ent.Attributes.ProductType = p.ProductType
		ent.Attributes.Keywords = p.Keywords
		if p.Price != "" {
			ent.Attributes.SetExtra("price", p.Price)
		}
		entities = append(entities, ent)
	}

	for _, l := range cat.Locations {
		if l.Confidence < detailThreshold || (l.Name == "" && l.Value == "") {
			continue
		}
		name := l.Name
		if name == "" {
			name = l.Value
		}
		entities = append(entities, model.NewEntity(model.EntityLocation, name, l.Value, sourceURL, l.Confidence))
	}

	for _, c := range cat.Contacts {
		if c.Confidence < detailThreshold || (c.Name == "" && c.Value == "") {
			continue
		}
		name := c.Name
		if name == "" {
			name = c.Value
		}
		entities = append(entities, model.NewEntity(model.EntityContact, name, c.Value, sourceURL, c.Confidence))
	}

	for _, s := range cat.Services {
		if s.Name == "" || s.Confidence < productThreshold {
			continue
		}
		entities = append(entities, model.NewEntity(model.EntityService, s.Name, s.Value, sourceURL, s.Confidence))
	}

	return entities
}

// metadataEntity records extraction-quality diagnostics plus the enrichment
// flags the collaborator requested, for the enrichment stage to read.
func metadataEntity(sourceURL string, q model.QualityMetrics, cat *parsedCatalog) model.ExtractedEntity {
	meta := model.NewEntity(model.EntityMetadata, "extractionQuality", "", sourceURL, 1.0)
	meta.Attributes.SetExtra("jsonParsed", q.JSONParsed)
	meta.Attributes.SetExtra("businessFound", q.BusinessCount > 0)
	meta.Attributes.SetExtra("productsFound", q.ProductCount)
	meta.Attributes.SetExtra("productThreshold", productThreshold)
	meta.Attributes.SetExtra("detailThreshold", detailThreshold)

	if cat != nil && cat.Flags.Found {
		meta.Attributes.SetExtra("mcpEnrichmentFlags", map[string]bool{
			"compliance": cat.Flags.Compliance,
			"market":     cat.Flags.Market,
		})
	}
	return meta
}

// businessFromURL synthesizes a fallback business identity from the URL's
// domain: www and TLD stripped, separators spaced, title-cased. The partial
// path (heuristic products recovered) gets the higher fallback confidence.
func businessFromURL(sourceURL string, partial bool) model.ExtractedEntity {
	confidence := urlBusinessConfidence
	if partial {
		confidence = urlBusinessPartialConfidence
	}

	name := domainToBusinessName(sourceURL)
	ent := model.NewEntity(model.EntityBusiness, name, "", sourceURL, confidence)
	ent.Attributes.ExtractedFromURL = true
	return ent
}

// domainToBusinessName turns "https://www.acme-widgets.co.uk/x" into
// "Acme Widgets".
func domainToBusinessName(sourceURL string) string {
	host := sourceURL
	if u, err := url.Parse(sourceURL); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}
	host = strings.TrimPrefix(strings.ToLower(host), "www.")

	// Keep the registrable label, dropping TLD and country suffixes.
	if parts := strings.Split(host, "."); len(parts) > 0 {
		host = parts[0]
	}

	host = strings.NewReplacer("-", " ", "_", " ").Replace(host)
	name := cases.Title(language.English).String(host)
	if strings.TrimSpace(name) == "" {
		return "Unknown Business"
	}
	return name
}
