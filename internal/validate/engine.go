// Package validate cross-checks extracted entities against a second,
// independent completion collaborator and recombines product confidence.
package validate

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/sells-group/catalog-cli/internal/model"
	"github.com/sells-group/catalog-cli/pkg/perplexity"
)

// Confidence recombination weights. The collaborator returns a single
// confidence per product; the three assessment axes are derived from it
// and recombined so the weights stay tunable independently.
const (
	webPresenceWeight       = 0.4
	marketCorrelationWeight = 0.3
	industryAlignmentWeight = 0.3

	verifyThreshold = 0.35

	// minPreserveRatio sets the verified floor: max(2, 30% of products).
	minPreserveRatio = 0.3
)

const promptTemplate = `You are validating data extracted from a business website.

Business: %s
Description: %s

Extracted products:
%s

For the business and each numbered product, assess real-world plausibility:
does this look like something this business actually sells, with web presence
and market correlation, or is it a navigation label / UI element
misclassified as a product?

Return exactly one JSON object:
{
  "businessValidation": {"confidence": <0.0-1.0>, "notes": "<brief>"},
  "productValidations": [
    {"index": <1-based product number>, "confidence": <0.0-1.0>, "isProduct": <bool>, "notes": "<brief>"}
  ]
}`

// Engine validates an entity set. Validation is strictly additive and
// corrective: on any collaborator or parse failure the input is returned
// unchanged.
type Engine struct {
	client perplexity.Client
	model  string
}

// NewEngine creates a validation engine. A nil client disables validation
// (entities pass through unchanged).
func NewEngine(client perplexity.Client, llmModel string) *Engine {
	return &Engine{client: client, model: llmModel}
}

// Validate cross-checks business and product entities. Non-product entity
// types pass through untouched.
func (e *Engine) Validate(ctx context.Context, entities []model.ExtractedEntity, sourceURL string) []model.ExtractedEntity {
	business := model.FindFirst(entities, model.EntityBusiness)
	productCount := model.CountByType(entities, model.EntityProduct)
	if e.client == nil || (business == nil && productCount == 0) {
		return entities
	}

	resp, err := e.client.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
		Model: e.model,
		Messages: []perplexity.Message{
			{Role: "user", Content: buildPrompt(business, entities)},
		},
	})
	if err != nil {
		zap.L().Warn("validate: collaborator call failed, passing entities through",
			zap.String("url", sourceURL),
			zap.Error(err),
		)
		return entities
	}
	if len(resp.Choices) == 0 {
		return entities
	}

	root, ok := locateJSON(resp.Choices[0].Message.Content)
	if !ok {
		zap.L().Warn("validate: no usable JSON in collaborator response",
			zap.String("url", sourceURL),
		)
		return entities
	}

	out := make([]model.ExtractedEntity, len(entities))
	copy(out, entities)

	applyBusinessValidation(out, root)
	applyProductValidations(out, root)
	enforceMinimumPreservation(out, entities)

	return out
}

// buildPrompt renders the business identity and a numbered product list.
func buildPrompt(business *model.ExtractedEntity, entities []model.ExtractedEntity) string {
	bizName := "unknown"
	bizDesc := ""
	if business != nil {
		bizName = business.Name
		bizDesc = business.Value
	}

	var products strings.Builder
	n := 0
	for _, ent := range entities {
		if ent.Type != model.EntityProduct {
			continue
		}
		n++
		fmt.Fprintf(&products, "%d. %s", n, ent.Name)
		if ent.Value != "" {
			fmt.Fprintf(&products, " - %s", ent.Value)
		}
		products.WriteString("\n")
	}
	if n == 0 {
		products.WriteString("(none)\n")
	}

	return fmt.Sprintf(promptTemplate, bizName, bizDesc, products.String())
}

// locateJSON bounds and parses the first JSON object in free text.
func locateJSON(text string) (gjson.Result, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return gjson.Result{}, false
	}
	candidate := text[start : end+1]
	if !gjson.Valid(candidate) {
		return gjson.Result{}, false
	}
	return gjson.Parse(candidate), true
}

func applyBusinessValidation(out []model.ExtractedEntity, root gjson.Result) {
	bv := root.Get("businessValidation")
	if !bv.Exists() {
		return
	}
	conf := bv.Get("confidence")
	for i := range out {
		if out[i].Type != model.EntityBusiness {
			continue
		}
		if conf.Exists() {
			out[i].SetConfidence(conf.Float())
			out[i].Verified = conf.Float() > verifyThreshold
		}
		if notes := bv.Get("notes").String(); notes != "" {
			out[i].Attributes.ValidationWarning = notes
		}
		return
	}
}

// applyProductValidations recombines each validated product's confidence
// from the three derived assessment axes and sets the verified flag.
func applyProductValidations(out []model.ExtractedEntity, root gjson.Result) {
	// Map 1-based product index to position in out.
	var productPos []int
	for i := range out {
		if out[i].Type == model.EntityProduct {
			productPos = append(productPos, i)
		}
	}

	root.Get("productValidations").ForEach(func(_, v gjson.Result) bool {
		idx := int(v.Get("index").Int()) - 1
		if idx < 0 || idx >= len(productPos) {
			return true
		}
		pos := productPos[idx]

		c := v.Get("confidence").Float()
		webPresence := c
		marketCorrelation := c
		industryAlignment := c
		recombined := webPresenceWeight*webPresence +
			marketCorrelationWeight*marketCorrelation +
			industryAlignmentWeight*industryAlignment

		out[pos].SetConfidence(recombined)
		out[pos].Verified = recombined > verifyThreshold

		if v.Get("isProduct").Exists() && !v.Get("isProduct").Bool() {
			out[pos].Attributes.ValidationWarning = "flagged as non-product"
		}
		if notes := v.Get("notes").String(); notes != "" && out[pos].Attributes.ValidationWarning == "" {
			out[pos].Attributes.ValidationWarning = notes
		}
		return true
	})
}

// enforceMinimumPreservation keeps validation from wiping out the catalog:
// at least max(2, 30% of products) stay verified, rescued in descending
// order of their pre-validation confidence and tagged as forced.
func enforceMinimumPreservation(out, original []model.ExtractedEntity) {
	var productPos []int
	for i := range out {
		if out[i].Type == model.EntityProduct {
			productPos = append(productPos, i)
		}
	}
	total := len(productPos)
	if total == 0 {
		return
	}

	floor := int(float64(total)*minPreserveRatio + 0.999)
	if floor < 2 {
		floor = 2
	}
	if floor > total {
		floor = total
	}

	verified := 0
	for _, pos := range productPos {
		if out[pos].Verified {
			verified++
		}
	}
	if verified >= floor {
		return
	}

	// Rescue by descending original confidence.
	type candidate struct {
		pos          int
		originalConf float64
	}
	var unverified []candidate
	for _, pos := range productPos {
		if !out[pos].Verified {
			unverified = append(unverified, candidate{pos: pos, originalConf: original[pos].Confidence})
		}
	}
	sort.SliceStable(unverified, func(i, j int) bool {
		return unverified[i].originalConf > unverified[j].originalConf
	})

	for _, c := range unverified {
		if verified >= floor {
			break
		}
		out[c.pos].Verified = true
		out[c.pos].Attributes.ForcedVerification = true
		verified++
	}

	zap.L().Debug("validate: minimum preservation applied",
		zap.Int("total_products", total),
		zap.Int("verified_floor", floor),
	)
}
