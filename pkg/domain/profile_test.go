package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"nutrilog/pkg/units"
)

func bananaProfile() NutrientProfile {
	return NutrientProfile{
		FoodID:           "banana-raw",
		Version:          1,
		ReferenceServing: units.Q("100", units.Gram),
		Servings:         []ServingDefinition{{Name: "medium", Quantity: units.Q("118", units.Gram)}},
		Nutrients: Nutrients{
			Calories: units.MustAmount("89"),
			CarbG:    units.MustAmount("23"),
		},
	}
}

func TestProfileValidate(t *testing.T) {
	if err := bananaProfile().Validate(); err != nil {
		t.Fatalf("valid profile rejected: %v", err)
	}
	density := units.MustAmount("0")
	cases := map[string]func(*NutrientProfile){
		"zero reference":     func(p *NutrientProfile) { p.ReferenceServing.Amount = units.NewAmount(0) },
		"negative reference": func(p *NutrientProfile) { p.ReferenceServing.Amount = units.NewAmount(-5) },
		"missing unit":       func(p *NutrientProfile) { p.ReferenceServing.Unit = "" },
		"unknown unit":       func(p *NutrientProfile) { p.ReferenceServing.Unit = "scoop" },
		"zero density":       func(p *NutrientProfile) { p.DensityGPerML = &density },
		"negative nutrient":  func(p *NutrientProfile) { p.Nutrients[FatG] = units.NewAmount(-1) },
		"serving shadows g":  func(p *NutrientProfile) { p.Servings = []ServingDefinition{{Name: units.Gram, Quantity: units.Q("2", units.Gram)}} },
		"empty serving size": func(p *NutrientProfile) { p.Servings[0].Quantity.Amount = units.Amount{} },
		"duplicate serving": func(p *NutrientProfile) {
			p.Servings = append(p.Servings, ServingDefinition{Name: "medium", Quantity: units.Q("1", units.Gram)})
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := bananaProfile().Clone()
			mutate(&p)
			err := p.Validate()
			if !errors.Is(err, ErrProfileDataInconsistent) {
				t.Fatalf("expected inconsistent profile error, got %v", err)
			}
			var pe *ProfileDataInconsistentError
			if !errors.As(err, &pe) || pe.FoodID != "banana-raw" {
				t.Fatalf("expected food id in error, got %#v", err)
			}
		})
	}
}

func TestProfileReferenceMayBeNamedServing(t *testing.T) {
	p := NutrientProfile{
		FoodID:           "pizza",
		ReferenceServing: units.Q("1", "slice"),
		Servings:         []ServingDefinition{{Name: "slice", Quantity: units.Q("107", units.Gram)}},
		Nutrients:        Nutrients{Calories: units.NewAmount(285)},
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("named reference serving rejected: %v", err)
	}
	if got := p.DefaultServing(); !got.Equal(units.Q("1", "slice")) {
		t.Fatalf("default serving = %s", got)
	}
}

func TestProfileCloneIsIndependent(t *testing.T) {
	density := units.MustAmount("1.1")
	p := bananaProfile()
	p.DensityGPerML = &density
	c := p.Clone()
	c.Nutrients[FatG] = units.MustAmount("0.3")
	c.Servings[0].Name = "large"
	if _, ok := p.Nutrients.Lookup(FatG); ok {
		t.Fatalf("clone shares nutrient map")
	}
	if p.Servings[0].Name != "medium" {
		t.Fatalf("clone shares servings slice")
	}
	if c.DensityGPerML == p.DensityGPerML {
		t.Fatalf("clone shares density pointer")
	}
}

func TestNutrientsAbsenceIsNotZero(t *testing.T) {
	n := Nutrients{FatG: units.NewAmount(0)}
	if a, ok := n.Lookup(FatG); !ok || !a.IsZero() {
		t.Fatalf("explicit zero should be present")
	}
	if _, ok := n.Lookup(ProteinG); ok {
		t.Fatalf("absent kind reported present")
	}
	payload, err := json.Marshal(n)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(payload), string(ProteinG)) {
		t.Fatalf("absent kind serialized: %s", payload)
	}
	var back Nutrients
	if err := json.Unmarshal(payload, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.Equal(n) {
		t.Fatalf("nutrients changed across JSON: %v", back)
	}
}

func TestLookupNutrient(t *testing.T) {
	info, ok := LookupNutrient(Calories)
	if !ok || info.Precision != 0 || info.Unit != "kcal" {
		t.Fatalf("unexpected calories info %+v", info)
	}
	if _, ok := LookupNutrient("vitamin_k2_ug"); ok {
		t.Fatalf("unregistered kind reported as registered")
	}
}

func TestSourceKindValid(t *testing.T) {
	for _, k := range []SourceKind{SourceBranded, SourceRestaurant, SourceGeneric, SourceUserCreated} {
		if !k.Valid() {
			t.Fatalf("%s should be valid", k)
		}
	}
	if SourceKind("scraped").Valid() {
		t.Fatalf("unknown kind accepted")
	}
}

func TestErrorMessages(t *testing.T) {
	err := error(&FoodNotFoundError{Barcode: "0123456789012"})
	if !errors.Is(err, ErrFoodNotFound) || !strings.Contains(err.Error(), "0123456789012") {
		t.Fatalf("unexpected barcode error %v", err)
	}
	err = &FoodNotFoundError{ID: "x", Reason: "retired"}
	if err.Error() != `food "x" not found: retired` {
		t.Fatalf("unexpected id error %q", err.Error())
	}
	err = NotFoundError{Entity: EntityLogEntry, ID: "e1"}
	if !errors.Is(err, ErrNotFound) || err.Error() != "log_entry e1 not found" {
		t.Fatalf("unexpected not found error %v", err)
	}
	err = DuplicateError{Entity: EntityFood, ID: "f1"}
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("duplicate error should match ErrDuplicate")
	}
}
