package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"

	"github.com/sells-group/catalog-cli/internal/model"
)

// heuristicConfidence is assigned to products recovered without the
// completion collaborator. Deliberately below the validation verify
// threshold so heuristic finds always face cross-checking.
const heuristicConfidence = 0.4

// navigationTerms are labels that commonly leak out of menus and toolbars.
var navigationTerms = map[string]bool{
	"home": true, "cart": true, "login": true, "log in": true,
	"sign in": true, "search": true, "next": true, "previous": true,
	"menu": true, "about": true, "contact": true, "checkout": true,
}

// codeFragmentMarkers flag strings that look like markup or script rather
// than a product name.
var codeFragmentMarkers = []string{
	"</", "/>", "{", "}", ";", "function(", "var ", "const ", "=>",
	"null", "undefined", "px;", "rgba(", "#fff", "display:",
}

// heuristicExtract pattern-matches product candidates directly in the raw
// HTML: product-classed containers, schema.org JSON-LD blocks, and meta
// tags. Used when the collaborator is unavailable or returned no usable
// JSON. Every candidate passes the code-fragment and navigation rejectors.
func heuristicExtract(html, sourceURL string) []model.ExtractedEntity {
	var entities []model.ExtractedEntity
	seen := make(map[string]bool)

	add := func(name, description string) {
		name = strings.TrimSpace(name)
		if name == "" || seen[strings.ToLower(name)] {
			return
		}
		if looksLikeCodeFragment(name) || looksLikeNavigation(name) {
			return
		}
		seen[strings.ToLower(name)] = true

		e := model.NewEntity(model.EntityProduct, name, strings.TrimSpace(description), sourceURL, heuristicConfidence)
		entities = append(entities, e)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return entities
	}

	// Product-classed containers: take the heading or the item's own text.
	doc.Find("[class*='product']").Each(func(_ int, s *goquery.Selection) {
		heading := s.Find("h1, h2, h3, h4, .title, .name").First()
		if heading.Length() > 0 {
			add(heading.Text(), s.Find(".description, p").First().Text())
			return
		}
		text := strings.TrimSpace(s.Text())
		if len(text) > 0 && len(text) <= 80 {
			add(text, "")
		}
	})

	// schema.org JSON-LD blocks.
	doc.Find("script[type='application/ld+json']").Each(func(_ int, s *goquery.Selection) {
		data := s.Text()
		if !gjson.Valid(data) {
			return
		}
		root := gjson.Parse(data)
		collectJSONLD(root, add)
	})

	// Product meta tags (OpenGraph product markup).
	if ogType, ok := doc.Find("meta[property='og:type']").Attr("content"); ok && strings.Contains(ogType, "product") {
		if title, ok := doc.Find("meta[property='og:title']").Attr("content"); ok {
			desc, _ := doc.Find("meta[property='og:description']").Attr("content")
			add(title, desc)
		}
	}

	return entities
}

// collectJSONLD walks a JSON-LD document collecting Product nodes, including
// @graph and ItemList nestings.
func collectJSONLD(node gjson.Result, add func(name, description string)) {
	if node.IsArray() {
		node.ForEach(func(_, v gjson.Result) bool {
			collectJSONLD(v, add)
			return true
		})
		return
	}

	switch node.Get("@type").String() {
	case "Product":
		add(node.Get("name").String(), node.Get("description").String())
	case "ItemList":
		node.Get("itemListElement").ForEach(func(_, v gjson.Result) bool {
			collectJSONLD(v.Get("item"), add)
			return true
		})
	}

	if graph := node.Get("@graph"); graph.Exists() {
		collectJSONLD(graph, add)
	}
}

// looksLikeCodeFragment reports whether a candidate name is markup, script
// or styling rather than a product name.
func looksLikeCodeFragment(name string) bool {
	if len(name) < 3 {
		return true
	}
	lower := strings.ToLower(name)
	for _, marker := range codeFragmentMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return strings.HasPrefix(lower, "<") || strings.HasPrefix(lower, ".")
}

// looksLikeNavigation reports whether a candidate name is a navigation label.
func looksLikeNavigation(name string) bool {
	return navigationTerms[strings.ToLower(strings.TrimSpace(name))]
}
