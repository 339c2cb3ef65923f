package consolidate

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/catalog-cli/internal/model"
)

func variant(name string) model.ProductVariant {
	return model.ProductVariant{Name: name}
}

func TestConsolidate_SizeVariantsShareOneGroup(t *testing.T) {
	engine := NewEngine(Config{})
	groups := engine.Consolidate([]model.ProductVariant{
		variant("Red Wine 750ml"),
		variant("Red Wine 1.5L"),
	})

	require.Len(t, groups, 1)
	assert.Equal(t, "Red Wine", groups[0].BaseType)
	assert.Len(t, groups[0].Variants, 2)

	// Sizes split one-to-one, so no size value wins the majority vote.
	_, ok := groups[0].Attributes.Pair("size")
	assert.False(t, ok, "size differs per variant and must stay unset")
}

func TestConsolidate_DominantSizeSurvivesMerge(t *testing.T) {
	engine := NewEngine(Config{})
	groups := engine.Consolidate([]model.ProductVariant{
		variant("Olive Oil 500ml"),
		variant("Olive Oil 500ml"),
		variant("Olive Oil 250ml"),
	})

	require.Len(t, groups, 1)
	size, ok := groups[0].Attributes.Pair("size")
	require.True(t, ok)
	assert.Equal(t, "500ml", size)
}

func TestConsolidate_ConflictingMaterialNeverJoins(t *testing.T) {
	cotton := variant("Classic Tote Bag")
	cotton.Description = "durable cotton tote"
	leather := variant("Classic Tote Bag")
	leather.Description = "durable leather tote"

	engine := NewEngine(Config{})
	groups := engine.Consolidate([]model.ProductVariant{cotton, leather})

	require.Len(t, groups, 2, "identical names with conflicting materials must not merge")
}

func TestConsolidate_RuleMatchingGroupsFamilies(t *testing.T) {
	engine := NewEngine(Config{})
	groups := engine.Consolidate([]model.ProductVariant{
		variant("Chicken Wrap"),
		variant("Veggie Wrap"),
		variant("Jumbo Corn Dog"),
		variant("Mini Corn Dogs 6-pack"),
		variant("Smoked Gouda Cheese"),
	})

	require.Len(t, groups, 3)

	assert.Equal(t, "Wrap", groups[0].BaseType)
	assert.Len(t, groups[0].Variants, 2)
	assert.InDelta(t, ruleMatchConfidence, groups[0].Confidence, 0.001)

	assert.Equal(t, "Corn Dog", groups[1].BaseType)
	assert.Len(t, groups[1].Variants, 2)

	assert.Equal(t, "Cheese", groups[2].BaseType)
	assert.Equal(t, "smoked", groups[2].Variants[0].Attributes.Preparation)
	assert.Equal(t, "gouda", groups[2].Variants[0].Attributes.Ingredient)
}

func TestConsolidate_RuleExtractsIngredient(t *testing.T) {
	engine := NewEngine(Config{})
	groups := engine.Consolidate([]model.ProductVariant{variant("Chicken Wrap")})

	require.Len(t, groups, 1)
	assert.Equal(t, "chicken", groups[0].Variants[0].Attributes.Ingredient)
}

func TestConsolidate_UnrelatedProductsStaySeparate(t *testing.T) {
	engine := NewEngine(Config{})
	groups := engine.Consolidate([]model.ProductVariant{
		variant("Organic Honey 500g"),
		variant("Bamboo Cutting Board"),
		variant("Merino Wool Scarf"),
	})

	assert.Len(t, groups, 3)
}

func TestConsolidate_Deterministic(t *testing.T) {
	input := []model.ProductVariant{
		variant("Red Wine 750ml"),
		variant("White Wine 750ml"),
		variant("Red Wine 1.5L"),
		variant("Chicken Wrap"),
		variant("Veggie Wrap"),
		variant("Organic Honey 500g"),
	}

	engine := NewEngine(Config{})
	first := engine.Consolidate(input)
	second := engine.Consolidate(input)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].BaseType, second[i].BaseType)
		require.Equal(t, len(first[i].Variants), len(second[i].Variants))
		for j := range first[i].Variants {
			assert.Equal(t, first[i].Variants[j].Name, second[i].Variants[j].Name)
		}
	}
}

func TestConsolidate_VariantCapTruncates(t *testing.T) {
	var input []model.ProductVariant
	for i := 0; i < 6; i++ {
		input = append(input, variant(fmt.Sprintf("Cheddar Cheese Block %d", i)))
	}

	engine := NewEngine(Config{MaxVariants: 4})
	groups := engine.Consolidate(input)

	require.Len(t, groups, 1)
	assert.Len(t, groups[0].Variants, 4)
}

func TestConsolidate_EmptyInput(t *testing.T) {
	assert.Nil(t, NewEngine(Config{}).Consolidate(nil))
}

func TestSingletonGroups(t *testing.T) {
	groups := singletonGroups([]model.ProductVariant{
		variant("Organic Honey 500g"),
		variant("Maple Syrup"),
	})

	require.Len(t, groups, 2)
	assert.Equal(t, "Organic Honey", groups[0].BaseType)
	assert.Len(t, groups[0].Variants, 1)
	assert.InDelta(t, singletonConfidence, groups[0].Confidence, 0.001)
}

func TestDeriveBaseType(t *testing.T) {
	tests := []struct {
		name string
		in   model.ProductVariant
		want string
	}{
		{"strips size token", variant("Red Wine 750ml"), "Red Wine"},
		{"caps at three words", variant("Extra Virgin Olive Oil Reserve"), "Extra Virgin Olive"},
		{"size only name kept", variant("750ml"), "750ml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, deriveBaseType(tt.in))
		})
	}

	t.Run("material prefix", func(t *testing.T) {
		v := variant("Tote Bag")
		v.Attributes.Material = "leather"
		assert.Equal(t, "leather Tote Bag", deriveBaseType(v))
	})

	t.Run("material already in name", func(t *testing.T) {
		v := variant("Leather Tote Bag")
		v.Attributes.Material = "leather"
		assert.Equal(t, "Leather Tote Bag", deriveBaseType(v))
	})
}

func TestVariantsFromEntities(t *testing.T) {
	honey := model.NewEntity(model.EntityProduct, "Organic Honey 500g", "Raw honey", "https://acme.com", 0.8)
	honey.Verified = true
	honey.Attributes.SetExtra("price", "$12")

	entities := []model.ExtractedEntity{
		model.NewEntity(model.EntityBusiness, "Acme", "", "https://acme.com", 0.9),
		honey,
		model.NewEntity(model.EntityProduct, "Maple Syrup", "", "https://acme.com", 0.6),
	}

	variants := VariantsFromEntities(entities)
	require.Len(t, variants, 2)
	assert.Equal(t, "Organic Honey 500g", variants[0].Name)
	assert.Equal(t, "Raw honey", variants[0].Description)
	assert.Equal(t, "$12", variants[0].Price)
	assert.True(t, variants[0].Selected)
	assert.False(t, variants[1].Selected)
}
