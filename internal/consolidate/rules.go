package consolidate

import (
	"regexp"
	"strings"

	"github.com/sells-group/catalog-cli/internal/model"
)

// consolidationRule maps a family of product names onto a canonical base
// type and extracts rule-specific attributes from the matched name. Rules
// are evaluated in order and the first match wins.
type consolidationRule struct {
	name     string
	pattern  *regexp.Regexp
	baseType string
	extract  func(name string, attrs *model.Attributes)
}

var preparationWords = regexp.MustCompile(`(?i)\b(smoked|aged|roasted|baked|fried|grilled|cured|fermented|breaded|battered)\b`)

// defaultRules covers the recurring catalog families where naive name
// similarity groups badly (a "chicken wrap" and a "veggie wrap" are the same
// family with different ingredients).
var defaultRules = []consolidationRule{
	{
		name:     "snack-wrap",
		pattern:  regexp.MustCompile(`(?i)\b(?:([a-z]+)\s+)?wraps?\b`),
		baseType: "Wrap",
		extract: func(name string, attrs *model.Attributes) {
			m := regexp.MustCompile(`(?i)\b([a-z]+)\s+wraps?\b`).FindStringSubmatch(name)
			if m != nil && !isFillerWord(m[1]) {
				attrs.Ingredient = strings.ToLower(m[1])
			}
			if p := preparationWords.FindString(name); p != "" {
				attrs.Preparation = strings.ToLower(p)
			}
		},
	},
	{
		name:     "corn-dog",
		pattern:  regexp.MustCompile(`(?i)\bcorn[\s-]?dogs?\b`),
		baseType: "Corn Dog",
		extract: func(name string, attrs *model.Attributes) {
			attrs.Ingredient = "corn"
			if p := preparationWords.FindString(name); p != "" {
				attrs.Preparation = strings.ToLower(p)
			} else {
				attrs.Preparation = "battered"
			}
		},
	},
	{
		name:     "cheese",
		pattern:  regexp.MustCompile(`(?i)\b(?:([a-z]+)\s+)?cheeses?\b`),
		baseType: "Cheese",
		extract: func(name string, attrs *model.Attributes) {
			m := regexp.MustCompile(`(?i)\b([a-z]+)\s+cheeses?\b`).FindStringSubmatch(name)
			if m != nil && !isFillerWord(m[1]) && !preparationWords.MatchString(m[1]) {
				attrs.Ingredient = strings.ToLower(m[1])
			}
			if p := preparationWords.FindString(name); p != "" {
				attrs.Preparation = strings.ToLower(p)
			}
		},
	},
}

// isFillerWord filters qualifier captures that are not ingredients.
func isFillerWord(w string) bool {
	switch strings.ToLower(w) {
	case "the", "a", "an", "our", "fresh", "new", "best", "style":
		return true
	}
	return false
}

// matchRule returns the first rule matching a variant name, or -1.
func matchRule(rules []consolidationRule, name string) int {
	for i, r := range rules {
		if r.pattern.MatchString(name) {
			return i
		}
	}
	return -1
}
