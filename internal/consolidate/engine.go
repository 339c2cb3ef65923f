// Package consolidate clusters raw product variants into product groups
// with shared base types and majority-merged attributes.
package consolidate

import (
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/catalog-cli/internal/model"
)

const (
	// Clustering weights: name similarity dominates, attributes gate.
	nameWeight        = 0.5
	bestVariantWeight = 0.3
	attributeWeight   = 0.2

	defaultJoinThreshold = 0.75

	// attributeCompatGate vetoes a join regardless of name similarity.
	attributeCompatGate = 0.5

	// majorityRatio is the share of variants a value needs to survive the
	// merged-attribute vote.
	majorityRatio = 0.3

	defaultMaxVariants = 10

	ruleMatchConfidence = 0.9
	singletonConfidence = 0.5
)

// Config tunes the consolidation engine. Zero values select the defaults.
type Config struct {
	// JoinThreshold is the minimum overall score for a variant to join an
	// existing group. Default 0.75.
	JoinThreshold float64
	// MaxVariants bounds each group's variant list. Default 10.
	MaxVariants int
}

// Engine groups product variants in three phases: ordered rule matching,
// fuzzy-similarity clustering, then majority-vote attribute merging.
type Engine struct {
	cfg   Config
	rules []consolidationRule
}

// NewEngine creates a consolidation engine with the default rule set.
func NewEngine(cfg Config) *Engine {
	if cfg.JoinThreshold <= 0 {
		cfg.JoinThreshold = defaultJoinThreshold
	}
	if cfg.MaxVariants <= 0 {
		cfg.MaxVariants = defaultMaxVariants
	}
	return &Engine{cfg: cfg, rules: defaultRules}
}

// group is the mutable clustering state for one product family.
type group struct {
	baseType string
	variants []model.ProductVariant
	// scores holds the join score per variant (1.0 for the seed), averaged
	// into the group confidence.
	scores   []float64
	fromRule bool
}

// Consolidate groups variants deterministically for a fixed input order.
// Any internal panic degrades to one singleton group per variant instead of
// losing data.
func (e *Engine) Consolidate(variants []model.ProductVariant) (out []model.ProductGroup) {
	if len(variants) == 0 {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			zap.L().Warn("consolidate: clustering panicked, degrading to singleton groups",
				zap.Any("panic", r),
				zap.Int("variants", len(variants)),
			)
			out = singletonGroups(variants)
		}
	}()

	work := make([]model.ProductVariant, len(variants))
	copy(work, variants)
	for i := range work {
		extractAttributes(&work[i])
	}

	var groups []*group
	ruleGroups := make(map[int]*group, len(e.rules))
	var unmatched []model.ProductVariant

	for _, v := range work {
		idx := matchRule(e.rules, v.Name)
		if idx < 0 {
			unmatched = append(unmatched, v)
			continue
		}
		rule := e.rules[idx]
		rule.extract(v.Name, &v.Attributes)
		g, ok := ruleGroups[idx]
		if !ok {
			g = &group{baseType: rule.baseType, fromRule: true}
			ruleGroups[idx] = g
			groups = append(groups, g)
		}
		g.variants = append(g.variants, v)
		g.scores = append(g.scores, ruleMatchConfidence)
	}

	for _, v := range unmatched {
		best, bestScore, bestCompat := (*group)(nil), 0.0, 0.0
		for _, g := range groups {
			score, compat := e.scoreAgainst(g, v)
			if score > bestScore {
				best, bestScore, bestCompat = g, score, compat
			}
		}
		if best != nil && bestScore >= e.cfg.JoinThreshold && bestCompat >= attributeCompatGate {
			best.variants = append(best.variants, v)
			best.scores = append(best.scores, bestScore)
			continue
		}
		groups = append(groups, &group{
			baseType: deriveBaseType(v),
			variants: []model.ProductVariant{v},
			scores:   []float64{1.0},
		})
	}

	for _, g := range groups {
		if len(g.variants) == 0 {
			continue
		}
		merged := mergeAttributes(g.variants, majorityRatio)
		kept := g.variants
		if len(kept) > e.cfg.MaxVariants {
			kept = kept[:e.cfg.MaxVariants]
		}
		out = append(out, model.ProductGroup{
			BaseType:    g.baseType,
			Description: firstDescription(g.variants),
			Confidence:  g.confidence(),
			Variants:    kept,
			Attributes:  merged,
		})
	}

	zap.L().Debug("consolidate: grouping complete",
		zap.Int("variants", len(variants)),
		zap.Int("groups", len(out)),
	)
	return out
}

// scoreAgainst computes the overall join score and the attribute
// compatibility gate value for a candidate variant against a group.
func (e *Engine) scoreAgainst(g *group, v model.ProductVariant) (score, compat float64) {
	nameSim := nameSimilarity(v.Name, g.baseType)

	bestVariant := 0.0
	for _, gv := range g.variants {
		if s := nameSimilarity(v.Name, gv.Name); s > bestVariant {
			bestVariant = s
		}
	}

	compat = attributeCompatibility(v.Attributes, mergeAttributes(g.variants, majorityRatio))
	score = nameWeight*nameSim + bestVariantWeight*bestVariant + attributeWeight*compat
	return score, compat
}

func (g *group) confidence() float64 {
	if g.fromRule {
		return ruleMatchConfidence
	}
	var sum float64
	for _, s := range g.scores {
		sum += s
	}
	return sum / float64(len(g.scores))
}

// deriveBaseType builds a group name from the first one to three
// non-measure words of the variant name, prefixed by a detected material or
// form attribute when the name itself does not carry it.
func deriveBaseType(v model.ProductVariant) string {
	fields := strings.Fields(v.Name)
	kept := make([]string, 0, 3)
	for _, f := range fields {
		if measureTokenRe.MatchString(f) {
			continue
		}
		kept = append(kept, f)
		if len(kept) == 3 {
			break
		}
	}
	base := strings.Join(kept, " ")
	if base == "" {
		base = strings.TrimSpace(v.Name)
	}

	lower := strings.ToLower(base)
	for _, key := range []string{"material", "form"} {
		val, ok := v.Attributes.Pair(key)
		if ok && !strings.Contains(lower, val) {
			return val + " " + base
		}
	}
	return base
}

func firstDescription(variants []model.ProductVariant) string {
	for _, v := range variants {
		if v.Description != "" {
			return v.Description
		}
	}
	return ""
}

// singletonGroups is the failure-policy fallback: every variant becomes its
// own group so no data is lost.
func singletonGroups(variants []model.ProductVariant) []model.ProductGroup {
	out := make([]model.ProductGroup, 0, len(variants))
	for _, v := range variants {
		out = append(out, model.ProductGroup{
			BaseType:    deriveBaseType(v),
			Description: v.Description,
			Confidence:  singletonConfidence,
			Variants:    []model.ProductVariant{v},
			Attributes:  v.Attributes,
		})
	}
	return out
}

// VariantsFromEntities adapts verified product entities into consolidation
// input. Non-product entities are ignored.
func VariantsFromEntities(entities []model.ExtractedEntity) []model.ProductVariant {
	var out []model.ProductVariant
	for _, ent := range entities {
		if ent.Type != model.EntityProduct {
			continue
		}
		v := model.ProductVariant{
			Name:        ent.Name,
			Description: ent.Value,
			Attributes:  ent.Attributes,
			Selected:    ent.Verified,
		}
		if price, ok := ent.Attributes.Extra["price"].(string); ok {
			v.Price = price
		}
		out = append(out, v)
	}
	return out
}
