// Package model defines the typed entities flowing through the catalog pipeline.
package model

import (
	"time"

	"github.com/google/uuid"
)

// EntityType classifies an extracted fact.
type EntityType string

const (
	EntityBusiness EntityType = "business"
	EntityProduct  EntityType = "product"
	EntityLocation EntityType = "location"
	EntityContact  EntityType = "contact"
	EntityPerson   EntityType = "person"
	EntityService  EntityType = "service"
	EntityMetadata EntityType = "metadata"
)

// AllEntityTypes returns all defined entity types.
func AllEntityTypes() []EntityType {
	return []EntityType{
		EntityBusiness,
		EntityProduct,
		EntityLocation,
		EntityContact,
		EntityPerson,
		EntityService,
		EntityMetadata,
	}
}

// ExtractedEntity is a single confidence-scored fact extracted from a source.
type ExtractedEntity struct {
	ID           string     `json:"id"`
	Type         EntityType `json:"type"`
	Name         string     `json:"name"`
	Value        string     `json:"value,omitempty"`
	Confidence   float64    `json:"confidence"`
	Source       string     `json:"source"`
	Verified     bool       `json:"verified"`
	UserModified bool       `json:"user_modified"`
	Attributes   Attributes `json:"attributes"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// NewEntity creates an entity with a fresh ID, clamped confidence, and
// creation timestamps.
func NewEntity(t EntityType, name, value, source string, confidence float64) ExtractedEntity {
	now := time.Now().UTC()
	return ExtractedEntity{
		ID:         uuid.New().String(),
		Type:       t,
		Name:       name,
		Value:      value,
		Confidence: ClampConfidence(confidence),
		Source:     source,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// ClampConfidence bounds a confidence score to [0, 1].
func ClampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// SetConfidence updates the confidence, clamping to [0, 1] and touching
// the update timestamp.
func (e *ExtractedEntity) SetConfidence(c float64) {
	e.Confidence = ClampConfidence(c)
	e.UpdatedAt = time.Now().UTC()
}

// Valid reports whether the entity satisfies the model invariant: every
// non-metadata entity carries a non-empty name.
func (e ExtractedEntity) Valid() bool {
	if e.Type == EntityMetadata {
		return true
	}
	return e.Name != ""
}

// FilterByType returns all entities of the given type, preserving order.
func FilterByType(entities []ExtractedEntity, t EntityType) []ExtractedEntity {
	var out []ExtractedEntity
	for _, e := range entities {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// CountByType returns the number of entities of the given type.
func CountByType(entities []ExtractedEntity, t EntityType) int {
	n := 0
	for _, e := range entities {
		if e.Type == t {
			n++
		}
	}
	return n
}

// FindFirst returns a pointer to the first entity of the given type, or nil.
func FindFirst(entities []ExtractedEntity, t EntityType) *ExtractedEntity {
	for i := range entities {
		if entities[i].Type == t {
			return &entities[i]
		}
	}
	return nil
}
