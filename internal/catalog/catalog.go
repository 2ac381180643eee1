// Package catalog loads food identities and nutrient profiles from YAML or
// JSON files and seeds them into a store.
package catalog

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"nutrilog/pkg/domain"
	"nutrilog/pkg/units"
)

// PathEnv names the catalog file read by LoadFromEnv.
const PathEnv = "NUTRILOG_CATALOG_PATH"

//go:embed default.yaml
var defaultCatalog []byte

// Format selects the decoder.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// File is the on-disk catalog layout.
type File struct {
	Foods []FoodRecord `yaml:"foods" json:"foods"`
}

// FoodRecord is one food as written by hand. Quantities are strings such as
// "100 g"; nutrient amounts may be numbers or decimal strings.
type FoodRecord struct {
	ID            string                  `yaml:"id" json:"id"`
	Source        string                  `yaml:"source" json:"source"`
	Barcode       string                  `yaml:"barcode,omitempty" json:"barcode,omitempty"`
	Name          string                  `yaml:"name" json:"name"`
	Reference     string                  `yaml:"reference" json:"reference"`
	DensityGPerML *units.Amount           `yaml:"density_g_per_ml,omitempty" json:"density_g_per_ml,omitempty"`
	Servings      []ServingRecord         `yaml:"servings,omitempty" json:"servings,omitempty"`
	Nutrients     map[string]units.Amount `yaml:"nutrients" json:"nutrients"`
}

// ServingRecord names an alternate unit, e.g. {name: slice, size: 28 g}.
type ServingRecord struct {
	Name string `yaml:"name" json:"name"`
	Size string `yaml:"size" json:"size"`
}

// Food is a decoded catalog entry ready to store.
type Food struct {
	Identity domain.FoodIdentity
	Profile  domain.NutrientProfile
}

// Catalog is a validated set of foods in file order.
type Catalog struct {
	Foods []Food
}

// Default returns the embedded starter catalog.
func Default() (*Catalog, error) {
	return Parse(bytes.NewReader(defaultCatalog), FormatYAML)
}

// LoadFromEnv loads NUTRILOG_CATALOG_PATH, or the starter catalog when unset.
func LoadFromEnv() (*Catalog, error) {
	path := strings.TrimSpace(os.Getenv(PathEnv))
	if path == "" {
		return Default()
	}
	return Load(path)
}

// Load reads path, choosing the decoder by extension (.json, else YAML).
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path) // #nosec G304 -- operator-supplied catalog path
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer func() { _ = f.Close() }()
	format := FormatYAML
	if strings.EqualFold(filepath.Ext(path), ".json") {
		format = FormatJSON
	}
	cat, err := Parse(f, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cat, nil
}

// Parse decodes and validates a catalog.
func Parse(r io.Reader, format Format) (*Catalog, error) {
	var file File
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&file); err != nil {
			return nil, fmt.Errorf("decode json catalog: %w", err)
		}
	case FormatYAML, "":
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decode yaml catalog: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown catalog format %q", format)
	}
	return file.Catalog()
}

// Catalog converts and validates every record. Errors name the record.
func (f File) Catalog() (*Catalog, error) {
	out := &Catalog{Foods: make([]Food, 0, len(f.Foods))}
	ids := make(map[string]int, len(f.Foods))
	barcodes := make(map[string]string, len(f.Foods))
	for i, rec := range f.Foods {
		food, err := rec.Food()
		if err != nil {
			return nil, fmt.Errorf("food %d (%s): %w", i, rec.ID, err)
		}
		if prev, dup := ids[food.Identity.ID]; dup {
			return nil, fmt.Errorf("food %d: id %q already used by food %d", i, food.Identity.ID, prev)
		}
		ids[food.Identity.ID] = i
		if code := food.Identity.Barcode; code != "" {
			if owner, dup := barcodes[code]; dup {
				return nil, fmt.Errorf("food %d: barcode %s already used by %s", i, code, owner)
			}
			barcodes[code] = food.Identity.ID
		}
		out.Foods = append(out.Foods, food)
	}
	return out, nil
}

// sourceAliases are the short spellings accepted in hand-written files.
var sourceAliases = map[string]domain.SourceKind{
	"user":         domain.SourceUserCreated,
	"user-created": domain.SourceUserCreated,
	"custom":       domain.SourceUserCreated,
	"brand":        domain.SourceBranded,
}

// Food converts one record.
func (rec FoodRecord) Food() (Food, error) {
	id := strings.TrimSpace(rec.ID)
	if id == "" {
		return Food{}, errors.New("missing id")
	}
	kind := domain.SourceKind(strings.ToLower(strings.TrimSpace(rec.Source)))
	if alias, ok := sourceAliases[string(kind)]; ok {
		kind = alias
	}
	if kind == "" {
		kind = domain.SourceGeneric
	}
	if !kind.Valid() {
		return Food{}, fmt.Errorf("unknown source %q", rec.Source)
	}
	name := strings.TrimSpace(rec.Name)
	if name == "" {
		return Food{}, errors.New("missing name")
	}
	barcode := ""
	if rec.Barcode != "" {
		barcode = strings.NewReplacer(" ", "", "-", "").Replace(rec.Barcode)
		for _, r := range barcode {
			if r < '0' || r > '9' {
				return Food{}, fmt.Errorf("barcode %q is not numeric", rec.Barcode)
			}
		}
	}
	ref, err := units.ParseQuantity(rec.Reference)
	if err != nil {
		return Food{}, fmt.Errorf("reference: %w", err)
	}
	profile := domain.NutrientProfile{
		FoodID:           id,
		Version:          1,
		ReferenceServing: ref,
		DensityGPerML:    rec.DensityGPerML,
		Nutrients:        make(domain.Nutrients, len(rec.Nutrients)),
	}
	for _, s := range rec.Servings {
		size, err := units.ParseQuantity(s.Size)
		if err != nil {
			return Food{}, fmt.Errorf("serving %q: %w", s.Name, err)
		}
		unit, err := units.ParseUnit(s.Name)
		if err != nil {
			return Food{}, fmt.Errorf("serving %q: %w", s.Name, err)
		}
		profile.Servings = append(profile.Servings, domain.ServingDefinition{Name: unit, Quantity: size})
	}
	for kind, amount := range rec.Nutrients {
		profile.Nutrients[domain.NutrientKind(strings.ToLower(strings.TrimSpace(kind)))] = amount
	}
	if err := profile.Validate(); err != nil {
		return Food{}, err
	}
	return Food{
		Identity: domain.FoodIdentity{ID: id, SourceKind: kind, Barcode: barcode, DisplayName: name},
		Profile:  profile,
	}, nil
}

// Seed writes every food to sink and returns how many were written. It
// stops at the first failure.
func Seed(ctx context.Context, sink domain.FoodSink, cat *Catalog) (int, error) {
	for i, food := range cat.Foods {
		if err := sink.PutFood(ctx, food.Identity, food.Profile); err != nil {
			return i, fmt.Errorf("seed %s: %w", food.Identity.ID, err)
		}
	}
	return len(cat.Foods), nil
}
