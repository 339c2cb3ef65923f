package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/catalog-cli/internal/model"
	"github.com/sells-group/catalog-cli/pkg/anthropic"
)

// stubCompletion implements anthropic.Client with a fixed response.
type stubCompletion struct {
	text string
	err  error

	lastRequest anthropic.MessageRequest
}

func (s *stubCompletion) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	s.lastRequest = req
	if s.err != nil {
		return nil, s.err
	}
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: s.text}},
	}, nil
}

const goodResponse = `Here is the catalog:
` + "```json" + `
{
  "business": {"name": "Acme Foods", "description": "Specialty grocer", "confidence": 0.9},
  "locations": [{"name": "HQ", "address": "1 Main St, Springfield", "confidence": 0.8}],
  "contacts": [{"type": "email", "value": "info@acmefoods.com", "confidence": 0.7}],
  "services": [{"name": "Wholesale supply", "description": "Bulk orders", "confidence": 0.6}],
  "products": [
    {"name": "Organic Honey 500g", "description": "Raw honey", "category": "food", "productType": "consumable", "price": "$12", "keywords": ["honey", "organic"], "confidence": 0.85},
    {"name": "Next", "confidence": 0.9},
    {"name": "Maple Syrup", "confidence": 0.1}
  ],
  "mcpEnrichmentFlags": {"compliance": true, "market": false}
}
` + "```"

func TestExtract_ParsesCollaboratorJSON(t *testing.T) {
	stub := &stubCompletion{text: goodResponse}
	engine := NewEngine(stub, Config{Model: "claude-haiku-4-5-20251001"})

	entities, quality := engine.Extract(context.Background(), "<html><body>page</body></html>", "https://acmefoods.com")

	require.NotEmpty(t, entities)
	assert.Equal(t, model.EntityMetadata, entities[0].Type, "metadata entity leads the list")
	assert.True(t, quality.JSONParsed)

	biz := model.FindFirst(entities, model.EntityBusiness)
	require.NotNil(t, biz)
	assert.Equal(t, "Acme Foods", biz.Name)
	assert.False(t, biz.Attributes.ExtractedFromURL)
	assert.InDelta(t, 0.9, biz.Confidence, 0.001)

	products := model.FilterByType(entities, model.EntityProduct)
	require.Len(t, products, 1, "navigation label and sub-threshold product are rejected")
	assert.Equal(t, "Organic Honey 500g", products[0].Name)
	assert.Equal(t, "food", products[0].Attributes.Category)
	assert.Equal(t, "consumable", products[0].Attributes.ProductType)
	assert.Equal(t, []string{"honey", "organic"}, products[0].Attributes.Keywords)
	assert.Equal(t, "$12", products[0].Attributes.Extra["price"])

	assert.Equal(t, 1, model.CountByType(entities, model.EntityLocation))
	assert.Equal(t, 1, model.CountByType(entities, model.EntityContact))
	assert.Equal(t, 1, model.CountByType(entities, model.EntityService))

	flags, ok := entities[0].Attributes.Extra["mcpEnrichmentFlags"].(map[string]bool)
	require.True(t, ok)
	assert.True(t, flags["compliance"])
	assert.False(t, flags["market"])
}

func TestExtract_BusinessSynthesizedWhenMissing(t *testing.T) {
	stub := &stubCompletion{text: `{"products": [{"name": "Oak Table", "confidence": 0.8}]}`}
	engine := NewEngine(stub, Config{Model: "m"})

	entities, _ := engine.Extract(context.Background(), "<html></html>", "https://www.fine-furniture.co.uk/shop")

	biz := model.FindFirst(entities, model.EntityBusiness)
	require.NotNil(t, biz)
	assert.Equal(t, "Fine Furniture", biz.Name)
	assert.True(t, biz.Attributes.ExtractedFromURL)
	assert.InDelta(t, urlBusinessConfidence, biz.Confidence, 0.001)
}

func TestExtract_HeuristicFallbackOnCompletionError(t *testing.T) {
	stub := &stubCompletion{err: errors.New("api down")}
	engine := NewEngine(stub, Config{Model: "m"})

	html := `<html><body><div class="product"><h2>Organic Honey 500g</h2><p class="description">Raw honey</p></div></body></html>`
	entities, quality := engine.Extract(context.Background(), html, "https://acmefoods.com")

	assert.False(t, quality.JSONParsed)

	products := model.FilterByType(entities, model.EntityProduct)
	require.Len(t, products, 1)
	assert.Equal(t, "Organic Honey 500g", products[0].Name)
	assert.InDelta(t, heuristicConfidence, products[0].Confidence, 0.001)

	biz := model.FindFirst(entities, model.EntityBusiness)
	require.NotNil(t, biz)
	assert.True(t, biz.Attributes.ExtractedFromURL)
	assert.InDelta(t, urlBusinessPartialConfidence, biz.Confidence, 0.001,
		"partial extraction path uses the higher fallback confidence")
}

func TestExtract_NilClientUsesHeuristics(t *testing.T) {
	engine := NewEngine(nil, Config{})

	html := `<html><body><div class="product"><h2>Organic Honey 500g</h2></div></body></html>`
	entities, quality := engine.Extract(context.Background(), html, "https://acmefoods.com")

	assert.False(t, quality.JSONParsed)
	assert.Equal(t, 1, quality.ProductCount)
	assert.Equal(t, 1, quality.BusinessCount)
	assert.Equal(t, model.EntityMetadata, entities[0].Type)
}

func TestExtract_GarbageResponseFallsBack(t *testing.T) {
	stub := &stubCompletion{text: "I could not find any structured data on this page."}
	engine := NewEngine(stub, Config{Model: "m"})

	entities, quality := engine.Extract(context.Background(), "<html><body>empty</body></html>", "https://acme.com")

	assert.False(t, quality.JSONParsed)
	biz := model.FindFirst(entities, model.EntityBusiness)
	require.NotNil(t, biz)
	assert.InDelta(t, urlBusinessConfidence, biz.Confidence, 0.001,
		"no heuristic products means the normal fallback confidence")
}

func TestExtract_SendsProjectionNotRawHTML(t *testing.T) {
	stub := &stubCompletion{text: `{"business": {"name": "A", "confidence": 0.5}}`}
	engine := NewEngine(stub, Config{Model: "m"})

	html := `<html><head><script>var secret = "nope";</script></head><body><h1>Acme</h1></body></html>`
	engine.Extract(context.Background(), html, "https://acme.com")

	require.Len(t, stub.lastRequest.Messages, 1)
	prompt := stub.lastRequest.Messages[0].Content
	assert.Contains(t, prompt, "Acme")
	assert.NotContains(t, prompt, "var secret")
	require.Len(t, stub.lastRequest.System, 1, "system prompt carries the cache breakpoint")
	require.NotNil(t, stub.lastRequest.System[0].CacheControl)
}

func TestDomainToBusinessName(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.acme-widgets.co.uk/shop", "Acme Widgets"},
		{"https://acmefoods.com", "Acmefoods"},
		{"http://fine_furniture.de", "Fine Furniture"},
		{"not a url", "Not A Url"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, domainToBusinessName(tt.url), tt.url)
	}
}

func TestOverallConfidence(t *testing.T) {
	entities := []model.ExtractedEntity{
		{Type: model.EntityBusiness, Confidence: 1.0},
		{Type: model.EntityProduct, Confidence: 0.5},
	}
	// (1.0*0.4 + 0.5*0.3) / (0.4 + 0.3) ≈ 0.7857
	assert.InDelta(t, 0.7857, OverallConfidence(entities), 0.001)
}

func TestOverallConfidence_Empty(t *testing.T) {
	assert.Equal(t, 0.0, OverallConfidence(nil))
}

func TestOverallConfidence_UnknownTypeUsesDefaultWeight(t *testing.T) {
	entities := []model.ExtractedEntity{
		{Type: model.EntityType("mystery"), Confidence: 0.8},
	}
	assert.InDelta(t, 0.8, OverallConfidence(entities), 0.001)
}
