package extract

import "github.com/sells-group/catalog-cli/internal/model"

// typeWeights drive the overall confidence aggregation. Business identity
// dominates, products and services carry the catalog, bookkeeping types
// barely register.
var typeWeights = map[model.EntityType]float64{
	model.EntityBusiness: 0.4,
	model.EntityProduct:  0.3,
	model.EntityService:  0.3,
	model.EntityLocation: 0.2,
	model.EntityContact:  0.1,
	model.EntityMetadata: 0.1,
}

const defaultTypeWeight = 0.1

// OverallConfidence computes the weighted average confidence across all
// entities. Returns 0 for an empty list.
func OverallConfidence(entities []model.ExtractedEntity) float64 {
	if len(entities) == 0 {
		return 0
	}

	var sum, weightSum float64
	for _, e := range entities {
		w, ok := typeWeights[e.Type]
		if !ok {
			w = defaultTypeWeight
		}
		sum += e.Confidence * w
		weightSum += w
	}
	if weightSum == 0 {
		return 0
	}
	return model.ClampConfidence(sum / weightSum)
}
