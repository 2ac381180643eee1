package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"nutrilog/internal/infra/persistence/memory"
	"nutrilog/pkg/domain"
	"nutrilog/pkg/units"
)

const sampleYAML = `
foods:
  - id: banana
    source: generic
    barcode: "0 12345 67890 5"
    name: Banana
    reference: 100 g
    servings:
      - name: Medium
        size: 118 grams
    nutrients:
      calories: 89
      carb_g: "23"
      Protein_G: 1.1
`

func TestParseYAML(t *testing.T) {
	cat, err := Parse(strings.NewReader(sampleYAML), FormatYAML)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(cat.Foods) != 1 {
		t.Fatalf("expected 1 food, got %d", len(cat.Foods))
	}
	f := cat.Foods[0]
	if f.Identity.Barcode != "012345678905" || f.Identity.SourceKind != domain.SourceGeneric {
		t.Fatalf("identity: %+v", f.Identity)
	}
	if !f.Profile.ReferenceServing.Equal(units.Q("100", units.Gram)) {
		t.Fatalf("reference: %s", f.Profile.ReferenceServing)
	}
	if len(f.Profile.Servings) != 1 || f.Profile.Servings[0].Name != "medium" || !f.Profile.Servings[0].Quantity.Equal(units.Q("118", units.Gram)) {
		t.Fatalf("servings: %+v", f.Profile.Servings)
	}
	if !f.Profile.Nutrients[domain.ProteinG].Equal(units.MustAmount("1.1")) || !f.Profile.Nutrients[domain.CarbG].Equal(units.NewAmount(23)) {
		t.Fatalf("nutrients: %v", f.Profile.Nutrients)
	}
}

func TestParseJSON(t *testing.T) {
	doc := `{"foods":[{"id":"tea","source":"branded","name":"Tea","reference":"240 ml","density_g_per_ml":1,"nutrients":{"calories":2}}]}`
	cat, err := Parse(strings.NewReader(doc), FormatJSON)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	p := cat.Foods[0].Profile
	if p.DensityGPerML == nil || !p.DensityGPerML.Equal(units.NewAmount(1)) {
		t.Fatalf("density: %v", p.DensityGPerML)
	}
	if _, err := Parse(strings.NewReader(`{"foods":[],"extra":1}`), FormatJSON); err == nil {
		t.Fatalf("unknown fields should be rejected")
	}
}

func TestParseSourceAliases(t *testing.T) {
	cases := map[string]domain.SourceKind{
		"user":         domain.SourceUserCreated,
		"User-Created": domain.SourceUserCreated,
		"user_created": domain.SourceUserCreated,
		"brand":        domain.SourceBranded,
		"restaurant":   domain.SourceRestaurant,
		"":             domain.SourceGeneric,
	}
	for source, want := range cases {
		t.Run(source, func(t *testing.T) {
			rec := FoodRecord{ID: "soup", Source: source, Name: "Soup", Reference: "1 bowl",
				Servings: []ServingRecord{{Name: "bowl", Size: "350 ml"}}}
			food, err := rec.Food()
			if err != nil {
				t.Fatalf("food: %v", err)
			}
			if food.Identity.SourceKind != want {
				t.Fatalf("source %q = %q, want %q", source, food.Identity.SourceKind, want)
			}
		})
	}
}

func TestParseRejectsBadRecords(t *testing.T) {
	cases := map[string]string{
		"no id":        "foods:\n  - name: x\n    reference: 1 g\n",
		"bad source":   "foods:\n  - id: a\n    source: vending\n    name: x\n    reference: 1 g\n",
		"no reference": "foods:\n  - id: a\n    name: x\n",
		"zero ref":     "foods:\n  - id: a\n    name: x\n    reference: 0 g\n",
		"shadow unit":  "foods:\n  - id: a\n    name: x\n    reference: 1 g\n    servings:\n      - name: cup\n        size: 80 g\n",
		"negative":     "foods:\n  - id: a\n    name: x\n    reference: 1 g\n    nutrients:\n      calories: -1\n",
		"bad barcode":  "foods:\n  - id: a\n    name: x\n    barcode: abc\n    reference: 1 g\n",
		"duplicate id": "foods:\n  - id: a\n    name: x\n    reference: 1 g\n  - id: a\n    name: y\n    reference: 1 g\n",
		"dup barcode":  "foods:\n  - id: a\n    name: x\n    barcode: '1'\n    reference: 1 g\n  - id: b\n    name: y\n    barcode: '1'\n    reference: 1 g\n",
		"unknown key":  "foods:\n  - id: a\n    name: x\n    reference: 1 g\n    colour: yellow\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse(strings.NewReader(doc), FormatYAML); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
	if _, err := Parse(strings.NewReader(""), "toml"); err == nil {
		t.Fatalf("unknown format should fail")
	}
	cat, err := Parse(strings.NewReader(""), FormatYAML)
	if err != nil || len(cat.Foods) != 0 {
		t.Fatalf("empty document: %v %v", cat, err)
	}
}

func TestDefaultCatalogSeeds(t *testing.T) {
	cat, err := Default()
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	store := memory.NewStore()
	n, err := Seed(context.Background(), store, cat)
	if err != nil || n != len(cat.Foods) || n == 0 {
		t.Fatalf("seed: %d %v", n, err)
	}
	food, err := store.GetByBarcode(context.Background(), "4011200296908")
	if err != nil || food.ID != "generic-banana" {
		t.Fatalf("banana by barcode: %+v %v", food, err)
	}
}

type failingSink struct{ after int }

func (f *failingSink) PutFood(context.Context, domain.FoodIdentity, domain.NutrientProfile) error {
	if f.after == 0 {
		return errors.New("read-only")
	}
	f.after--
	return nil
}

func TestSeedStopsAtFirstFailure(t *testing.T) {
	cat, err := Default()
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	n, err := Seed(context.Background(), &failingSink{after: 2}, cat)
	if err == nil || n != 2 {
		t.Fatalf("expected failure after 2 foods, got %d %v", n, err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "foods.JSON")
	if err := os.WriteFile(jsonPath, []byte(`{"foods":[{"id":"egg","name":"Egg","reference":"1 each","servings":[{"name":"each","size":"50 g"}],"nutrients":{"calories":72}}]}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv(PathEnv, jsonPath)
	cat, err := LoadFromEnv()
	if err != nil || len(cat.Foods) != 1 || cat.Foods[0].Identity.ID != "egg" {
		t.Fatalf("json via env: %+v %v", cat, err)
	}

	yamlPath := filepath.Join(dir, "foods.yaml")
	if err := os.WriteFile(yamlPath, []byte(sampleYAML), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv(PathEnv, yamlPath)
	if cat, err := LoadFromEnv(); err != nil || cat.Foods[0].Identity.ID != "banana" {
		t.Fatalf("yaml via env: %v", err)
	}

	t.Setenv(PathEnv, "")
	if cat, err := LoadFromEnv(); err != nil || len(cat.Foods) < 5 {
		t.Fatalf("default via env: %v", err)
	}
	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatalf("missing file should fail")
	}
}
