package model

// Attributes is the closed set of typed attribute fields an entity can
// carry, plus an open Extra map for collaborator-specific values. JSON tags
// follow the collaborator wire schema (camelCase).
type Attributes struct {
	// Descriptive product characteristics.
	Material    string `json:"material,omitempty"`
	Color       string `json:"color,omitempty"`
	Flavor      string `json:"flavor,omitempty"`
	Quality     string `json:"quality,omitempty"`
	Packaging   string `json:"packaging,omitempty"`
	Form        string `json:"form,omitempty"`
	Preparation string `json:"preparation,omitempty"`
	AgeGroup    string `json:"ageGroup,omitempty"`
	Size        string `json:"size,omitempty"`
	Quantity    string `json:"quantity,omitempty"`
	Dimensions  string `json:"dimensions,omitempty"`
	Ingredient  string `json:"ingredient,omitempty"`

	Category    string   `json:"category,omitempty"`
	ProductType string   `json:"productType,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`

	// Compliance enrichment.
	HSCode               string            `json:"hsCode,omitempty"`
	RequiredDocuments    []string          `json:"requiredDocuments,omitempty"`
	TariffRates          map[string]string `json:"tariffRates,omitempty"`
	ComplianceNotes      string            `json:"complianceNotes,omitempty"`
	ComplianceConfidence float64           `json:"complianceConfidence,omitempty"`
	ComplianceError      string            `json:"complianceError,omitempty"`

	// Market intelligence enrichment.
	MarketSize       string   `json:"marketSize,omitempty"`
	MarketGrowth     string   `json:"marketGrowth,omitempty"`
	Competitors      []string `json:"competitors,omitempty"`
	MarketCategory   string   `json:"marketCategory,omitempty"`
	Trends           []string `json:"trends,omitempty"`
	MarketConfidence float64  `json:"marketConfidence,omitempty"`
	MarketError      string   `json:"marketError,omitempty"`

	// Pipeline bookkeeping.
	ForcedVerification bool   `json:"forcedVerification,omitempty"`
	ValidationWarning  string `json:"validationWarning,omitempty"`
	ExtractedFromURL   bool   `json:"extractedFromURL,omitempty"`

	// Extra holds collaborator-specific values that have no typed field.
	Extra map[string]any `json:"extra,omitempty"`
}

// descriptiveKeys lists the attribute keys that participate in product
// consolidation (compatibility checks and majority-vote merging).
var descriptiveKeys = []string{
	"material", "color", "flavor", "quality", "packaging", "form",
	"preparation", "ageGroup", "size", "quantity", "dimensions", "ingredient",
}

// DescriptiveKeys returns the ordered attribute keys used by consolidation.
func DescriptiveKeys() []string {
	out := make([]string, len(descriptiveKeys))
	copy(out, descriptiveKeys)
	return out
}

// Pair returns the descriptive attribute value for a key, with ok=false for
// unset or unknown keys.
func (a Attributes) Pair(key string) (string, bool) {
	v := a.pairRef(key)
	if v == nil || *v == "" {
		return "", false
	}
	return *v, true
}

// SetPair sets a descriptive attribute by key. Unknown keys go to Extra.
func (a *Attributes) SetPair(key, value string) {
	if v := a.pairRef(key); v != nil {
		*v = value
		return
	}
	if a.Extra == nil {
		a.Extra = make(map[string]any)
	}
	a.Extra[key] = value
}

// Pairs returns all set descriptive attributes as a key→value map.
func (a Attributes) Pairs() map[string]string {
	out := make(map[string]string)
	for _, k := range descriptiveKeys {
		if v, ok := a.Pair(k); ok {
			out[k] = v
		}
	}
	return out
}

func (a *Attributes) pairRef(key string) *string {
	switch key {
	case "material":
		return &a.Material
	case "color":
		return &a.Color
	case "flavor":
		return &a.Flavor
	case "quality":
		return &a.Quality
	case "packaging":
		return &a.Packaging
	case "form":
		return &a.Form
	case "preparation":
		return &a.Preparation
	case "ageGroup":
		return &a.AgeGroup
	case "size":
		return &a.Size
	case "quantity":
		return &a.Quantity
	case "dimensions":
		return &a.Dimensions
	case "ingredient":
		return &a.Ingredient
	default:
		return nil
	}
}

// SetExtra records a collaborator-specific value in the open extension map.
func (a *Attributes) SetExtra(key string, value any) {
	if a.Extra == nil {
		a.Extra = make(map[string]any)
	}
	a.Extra[key] = value
}
