package consolidate

import (
	"regexp"
	"strings"

	"github.com/agext/levenshtein"
)

// nearEqualThreshold is the string similarity above which two attribute
// values are treated as the same value.
const nearEqualThreshold = 0.7

var (
	whitespaceRe = regexp.MustCompile(`\s+`)

	// measureTokenRe matches size/quantity tokens that vary between variants
	// of the same product and should not count against name similarity.
	measureTokenRe = regexp.MustCompile(`(?i)^\d+(?:[.,]\d+)?\s*(?:ml|l|cl|g|kg|mg|oz|lb|lbs|liter|litre|gallon|pack|pcs|ct|count|x)\.?$`)
)

// normalizeName lowercases, strips measure tokens, and collapses whitespace
// so "Red Wine 750ml" and "Red Wine 1.5L" compare as the same name.
func normalizeName(name string) string {
	fields := strings.Fields(strings.ToLower(name))
	kept := fields[:0]
	for _, f := range fields {
		if measureTokenRe.MatchString(f) {
			continue
		}
		kept = append(kept, f)
	}
	return whitespaceRe.ReplaceAllString(strings.TrimSpace(strings.Join(kept, " ")), " ")
}

// nameSimilarity returns normalized Levenshtein similarity between two
// product names, measure tokens excluded.
func nameSimilarity(a, b string) float64 {
	na, nb := normalizeName(a), normalizeName(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}
	return levenshtein.Similarity(na, nb, nil)
}

// stringSimilarity compares two raw attribute values.
func stringSimilarity(a, b string) float64 {
	la, lb := strings.ToLower(strings.TrimSpace(a)), strings.ToLower(strings.TrimSpace(b))
	if la == "" || lb == "" {
		return 0
	}
	if la == lb {
		return 1
	}
	return levenshtein.Similarity(la, lb, nil)
}

func nearlyEqual(a, b string) bool {
	return stringSimilarity(a, b) >= nearEqualThreshold
}
