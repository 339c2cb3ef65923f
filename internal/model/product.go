package model

// ProductVariant is one concrete SKU-like listing within a consolidation run.
type ProductVariant struct {
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	SKU         string     `json:"sku,omitempty"`
	Price       string     `json:"price,omitempty"`
	Attributes  Attributes `json:"attributes"`
	Selected    bool       `json:"selected"`
}

// ProductGroup clusters variants under a shared base product type with
// merged attributes.
type ProductGroup struct {
	BaseType    string           `json:"base_type"`
	Description string           `json:"description,omitempty"`
	Confidence  float64          `json:"confidence"`
	Variants    []ProductVariant `json:"variants"`
	Attributes  Attributes       `json:"attributes"`
}
