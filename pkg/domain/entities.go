// Package domain defines the food identities, nutrient profiles, log entries
// and aggregate totals shared by the nutrilog engine and its stores.
package domain

import (
	"fmt"
	"sort"

	"nutrilog/pkg/units"
)

// EntityType identifies the type of record held by a store.
type EntityType string

// Entity types used in NotFoundError and DuplicateError.
const (
	EntityFood       EntityType = "food"
	EntityProfile    EntityType = "nutrient_profile"
	EntityLogEntry   EntityType = "log_entry"
	EntityWaterEntry EntityType = "water_entry"
)

// SourceKind records where a food record came from. All kinds share the same
// record shape; the tag is provenance only.
type SourceKind string

// Known food provenances.
const (
	SourceBranded     SourceKind = "branded"
	SourceRestaurant  SourceKind = "restaurant"
	SourceGeneric     SourceKind = "generic"
	SourceUserCreated SourceKind = "user_created"
)

// Valid reports whether k is one of the known provenances.
func (k SourceKind) Valid() bool {
	switch k {
	case SourceBranded, SourceRestaurant, SourceGeneric, SourceUserCreated:
		return true
	}
	return false
}

// FoodIdentity is the canonical key for one real-world food or product.
type FoodIdentity struct {
	ID          string     `json:"id"`
	SourceKind  SourceKind `json:"source_kind"`
	Barcode     string     `json:"barcode,omitempty"`
	DisplayName string     `json:"display_name"`
}

// ServingDefinition is a named alternate unit for one food.
type ServingDefinition = units.Serving

// Amount and Quantity are re-exported so callers of the domain need not
// import pkg/units for the common cases.
type (
	Amount   = units.Amount
	Quantity = units.Quantity
)

// Nutrients maps a nutrient kind to its amount. A kind missing from the map
// means "no data", which is different from an explicit zero.
type Nutrients map[NutrientKind]units.Amount

// Lookup returns the amount for kind and whether the kind has data.
func (n Nutrients) Lookup(kind NutrientKind) (units.Amount, bool) {
	a, ok := n[kind]
	return a, ok
}

// Kinds returns the kinds present, sorted for stable output.
func (n Nutrients) Kinds() []NutrientKind {
	out := make([]NutrientKind, 0, len(n))
	for k := range n {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Clone returns a copy; Amount values are immutable so a shallow copy suffices.
func (n Nutrients) Clone() Nutrients {
	if n == nil {
		return nil
	}
	out := make(Nutrients, len(n))
	for k, v := range n {
		out[k] = v
	}
	return out
}

// Equal reports whether both maps hold the same kinds with equal amounts.
func (n Nutrients) Equal(o Nutrients) bool {
	if len(n) != len(o) {
		return false
	}
	for k, v := range n {
		w, ok := o[k]
		if !ok || !v.Equal(w) {
			return false
		}
	}
	return true
}

// NutrientProfile holds a food's nutrient amounts relative to exactly one
// reference serving.
type NutrientProfile struct {
	FoodID           string              `json:"food_id"`
	Version          int                 `json:"version"`
	ReferenceServing units.Quantity      `json:"reference_serving"`
	DensityGPerML    *units.Amount       `json:"density_g_per_ml,omitempty"`
	Servings         []ServingDefinition `json:"servings,omitempty"`
	Nutrients        Nutrients           `json:"nutrients"`
}

// ConversionContext exposes the profile's density and servings to unit conversion.
func (p NutrientProfile) ConversionContext() units.Context {
	ref := p.ReferenceServing
	return units.Context{
		DensityGPerML: p.DensityGPerML,
		Servings:      p.Servings,
		Reference:     &ref,
	}
}

// DefaultServing is the first named serving, else the reference serving.
func (p NutrientProfile) DefaultServing() units.Quantity {
	if len(p.Servings) > 0 {
		return units.Quantity{Amount: units.NewAmount(1), Unit: p.Servings[0].Name}
	}
	return p.ReferenceServing
}

// Validate reports malformed reference data as ProfileDataInconsistentError.
func (p NutrientProfile) Validate() error {
	fail := func(format string, args ...any) error {
		return &ProfileDataInconsistentError{FoodID: p.FoodID, Reason: fmt.Sprintf(format, args...)}
	}
	if p.ReferenceServing.Unit == "" {
		return fail("reference serving has no unit")
	}
	if p.ReferenceServing.Amount.Sign() <= 0 {
		return fail("reference serving quantity %s is not positive", p.ReferenceServing.Amount)
	}
	if !p.ReferenceServing.Unit.Registered() && p.ReferenceServing.Unit != units.ServingUnit {
		found := false
		for _, s := range p.Servings {
			if s.Name == p.ReferenceServing.Unit {
				found = true
				break
			}
		}
		if !found {
			return fail("reference unit %q is neither a known unit nor a defined serving", p.ReferenceServing.Unit)
		}
	}
	if p.DensityGPerML != nil && p.DensityGPerML.Sign() <= 0 {
		return fail("density %s is not positive", p.DensityGPerML)
	}
	seen := make(map[units.Unit]struct{}, len(p.Servings))
	for _, s := range p.Servings {
		if s.Name == "" {
			return fail("serving with empty name")
		}
		if s.Name.Registered() {
			return fail("serving %q shadows a standard unit", s.Name)
		}
		if _, dup := seen[s.Name]; dup {
			return fail("serving %q defined twice", s.Name)
		}
		seen[s.Name] = struct{}{}
		if s.Quantity.Amount.Sign() <= 0 {
			return fail("serving %q size %s is not positive", s.Name, s.Quantity.Amount)
		}
	}
	for _, kind := range p.Nutrients.Kinds() {
		if kind == "" {
			return fail("nutrient with empty kind")
		}
		if p.Nutrients[kind].Sign() < 0 {
			return fail("nutrient %s amount %s is negative", kind, p.Nutrients[kind])
		}
	}
	return nil
}

// Clone returns a deep copy.
func (p NutrientProfile) Clone() NutrientProfile {
	out := p
	if p.DensityGPerML != nil {
		d := *p.DensityGPerML
		out.DensityGPerML = &d
	}
	if p.Servings != nil {
		out.Servings = append([]ServingDefinition(nil), p.Servings...)
	}
	out.Nutrients = p.Nutrients.Clone()
	return out
}
