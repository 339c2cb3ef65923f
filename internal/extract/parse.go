package extract

import (
	"strings"

	"github.com/tidwall/gjson"
)

// parsedBusiness is the business section of the collaborator's JSON output.
type parsedBusiness struct {
	Name        string
	Description string
	Confidence  float64
	Found       bool
}

// parsedProduct is one entry of the products array.
type parsedProduct struct {
	Name        string
	Description string
	Category    string
	ProductType string
	Price       string
	Keywords    []string
	Confidence  float64
}

// parsedItem covers locations, contacts and services, which share a shape.
type parsedItem struct {
	Name       string
	Value      string
	Confidence float64
}

// enrichmentFlags mirrors the optional mcpEnrichmentFlags section.
type enrichmentFlags struct {
	Compliance bool
	Market     bool
	Found      bool
}

// parsedCatalog is the full structured output of one extraction response.
type parsedCatalog struct {
	Business  parsedBusiness
	Locations []parsedItem
	Contacts  []parsedItem
	Services  []parsedItem
	Products  []parsedProduct
	Flags     enrichmentFlags
}

// cleanJSON attempts to extract a JSON object from text that may contain
// markdown code fences or other wrapping.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	// Strip markdown code fences.
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	// Find first { and last }.
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}

// parseCatalog locates and decodes the catalog JSON in a completion response.
// The collaborator's output is not guaranteed well-formed, so the object is
// regex-bounded by cleanJSON and read with a tolerant path-based reader
// rather than a strict decoder. The second return is false when no usable
// JSON object was found.
func parseCatalog(text string) (*parsedCatalog, bool) {
	cleaned := cleanJSON(text)
	if cleaned == "" || !gjson.Valid(cleaned) {
		return nil, false
	}

	root := gjson.Parse(cleaned)
	cat := &parsedCatalog{}

	if biz := root.Get("business"); biz.Exists() {
		cat.Business = parsedBusiness{
			Name:        biz.Get("name").String(),
			Description: biz.Get("description").String(),
			Confidence:  biz.Get("confidence").Float(),
			Found:       biz.Get("name").String() != "",
		}
	}

	root.Get("products").ForEach(func(_, v gjson.Result) bool {
		p := parsedProduct{
			Name:        v.Get("name").String(),
			Description: v.Get("description").String(),
			Category:    v.Get("category").String(),
			ProductType: v.Get("productType").String(),
			Price:       v.Get("price").String(),
			Confidence:  v.Get("confidence").Float(),
		}
		v.Get("keywords").ForEach(func(_, kw gjson.Result) bool {
			if kw.String() != "" {
				p.Keywords = append(p.Keywords, kw.String())
			}
			return true
		})
		cat.Products = append(cat.Products, p)
		return true
	})

	cat.Locations = parseItems(root.Get("locations"), "address")
	cat.Contacts = parseItems(root.Get("contacts"), "value")
	cat.Services = parseItems(root.Get("services"), "description")

	if flags := root.Get("mcpEnrichmentFlags"); flags.Exists() {
		cat.Flags = enrichmentFlags{
			Compliance: flags.Get("compliance").Bool(),
			Market:     flags.Get("market").Bool(),
			Found:      true,
		}
	}

	return cat, true
}

// parseItems reads an array of {name|type, <valueKey>, confidence} objects.
func parseItems(arr gjson.Result, valueKey string) []parsedItem {
	var items []parsedItem
	arr.ForEach(func(_, v gjson.Result) bool {
		name := v.Get("name").String()
		if name == "" {
			name = v.Get("type").String()
		}
		value := v.Get(valueKey).String()
		if value == "" {
			value = v.Get("value").String()
		}
		items = append(items, parsedItem{
			Name:       name,
			Value:      value,
			Confidence: v.Get("confidence").Float(),
		})
		return true
	})
	return items
}
