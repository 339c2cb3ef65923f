package consolidate

import (
	"regexp"
	"strings"

	"github.com/sells-group/catalog-cli/internal/model"
)

// attributeExtractor pulls one descriptive attribute out of a variant's
// combined name and description text. First match wins per key.
type attributeExtractor struct {
	key     string
	pattern *regexp.Regexp
	// group selects the capture group holding the value; 0 means the whole
	// match.
	group int
}

// attributeExtractors is the fixed battery run over every variant. Order
// matters only within a key (each key is independently optional).
var attributeExtractors = []attributeExtractor{
	{key: "size", pattern: regexp.MustCompile(`(?i)\b(\d+(?:[.,]\d+)?\s*(?:ml|cl|l|liter|litre|g|kg|mg|oz|lb|lbs|gallon))\b`), group: 1},
	{key: "quantity", pattern: regexp.MustCompile(`(?i)\b(\d+)\s*[-\s]?(?:pack|pcs|pieces|count|ct|units?)\b`), group: 1},
	{key: "dimensions", pattern: regexp.MustCompile(`(?i)\b(\d+(?:[.,]\d+)?\s*(?:cm|mm|in|inch|")?\s*[x×]\s*\d+(?:[.,]\d+)?(?:\s*[x×]\s*\d+(?:[.,]\d+)?)?\s*(?:cm|mm|in|inch|")?)\b`), group: 1},
	{key: "material", pattern: regexp.MustCompile(`(?i)\b(cotton|leather|wool|silk|linen|ceramic|porcelain|wood|wooden|bamboo|metal|steel|aluminum|copper|brass|plastic|glass|stone|marble)\b`), group: 1},
	{key: "color", pattern: regexp.MustCompile(`(?i)\b(black|white|red|blue|green|yellow|orange|purple|pink|brown|grey|gray|beige|navy|gold|silver)\b`), group: 1},
	{key: "flavor", pattern: regexp.MustCompile(`(?i)\b(vanilla|chocolate|strawberry|caramel|mint|lemon|orange|cherry|apple|cinnamon|honey|spicy|sweet|salted|sour)\s*(?:flavou?red?|flavou?r)?\b`), group: 1},
	{key: "quality", pattern: regexp.MustCompile(`(?i)\b(organic|premium|artisan(?:al)?|handmade|hand-crafted|natural|raw|gourmet|luxury|deluxe|traditional)\b`), group: 1},
	{key: "packaging", pattern: regexp.MustCompile(`(?i)\b(jar|bottle|box|boxed|bag|can|canned|tin|pouch|tube|carton|case|bulk)\b`), group: 1},
	{key: "form", pattern: regexp.MustCompile(`(?i)\b(powder(?:ed)?|liquid|whole|sliced|diced|ground|granulated|shredded|frozen|dried|fresh|instant)\b`), group: 1},
	{key: "preparation", pattern: regexp.MustCompile(`(?i)\b(smoked|roasted|baked|fried|grilled|cured|aged|fermented|breaded|battered|marinated|pickled)\b`), group: 1},
	{key: "ageGroup", pattern: regexp.MustCompile(`(?i)\b(baby|infant|toddler|kids?|children(?:'s)?|junior|teen|adult|senior)\b`), group: 1},
}

// extractAttributes fills any unset descriptive attributes on a variant from
// its name and description. Explicitly provided attributes are never
// overwritten.
func extractAttributes(v *model.ProductVariant) {
	text := v.Name
	if v.Description != "" {
		text += " " + v.Description
	}
	for _, ex := range attributeExtractors {
		if _, ok := v.Attributes.Pair(ex.key); ok {
			continue
		}
		m := ex.pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		value := m[ex.group]
		v.Attributes.SetPair(ex.key, strings.ToLower(strings.TrimSpace(value)))
	}
}

// compatibilityKeys are the identity-bearing attributes that gate fuzzy
// clustering. Size, quantity, dimensions and packaging vary legitimately
// between variants of one product and never veto a join.
var compatibilityKeys = []string{
	"material", "color", "flavor", "quality", "form", "preparation",
	"ingredient", "ageGroup",
}

// attributeCompatibility scores the overlap of identity-bearing attributes
// shared between a candidate variant and a group. No shared keys is neutral
// (0.5); shared keys score match-ratio with near-equality matching.
func attributeCompatibility(a, b model.Attributes) float64 {
	shared, matched := 0, 0
	for _, key := range compatibilityKeys {
		va, okA := a.Pair(key)
		vb, okB := b.Pair(key)
		if !okA || !okB {
			continue
		}
		shared++
		if nearlyEqual(va, vb) {
			matched++
		}
	}
	if shared == 0 {
		return 0.5
	}
	return float64(matched) / float64(shared)
}

// mergeAttributes recomputes a group's merged attributes by majority vote:
// a key is set only when its most frequent value is a unique plurality held
// by at least 30% of variants.
func mergeAttributes(variants []model.ProductVariant, majorityRatio float64) model.Attributes {
	var merged model.Attributes
	total := len(variants)
	if total == 0 {
		return merged
	}
	floor := int(float64(total)*majorityRatio + 0.999)
	if floor < 1 {
		floor = 1
	}

	for _, key := range model.DescriptiveKeys() {
		counts := make(map[string]int)
		order := make([]string, 0, total)
		for _, v := range variants {
			val, ok := v.Attributes.Pair(key)
			if !ok {
				continue
			}
			if _, seen := counts[val]; !seen {
				order = append(order, val)
			}
			counts[val]++
		}

		best, bestCount, tied := "", 0, false
		for _, val := range order {
			switch {
			case counts[val] > bestCount:
				best, bestCount, tied = val, counts[val], false
			case counts[val] == bestCount:
				tied = true
			}
		}
		if best != "" && !tied && bestCount >= floor {
			merged.SetPair(key, best)
		}
	}
	return merged
}
