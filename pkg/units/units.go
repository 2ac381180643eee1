package units

import (
	"fmt"
	"sort"
	"strings"
)

// Dimension groups units that convert into each other with fixed factors.
type Dimension string

const (
	DimensionMass   Dimension = "mass"
	DimensionVolume Dimension = "volume"
	// DimensionCount covers counts and named servings ("slice", "each").
	// Converting a count needs a food-specific serving definition.
	DimensionCount Dimension = "count"
)

// Unit is a unit symbol. Registered symbols carry a fixed factor to the
// dimension's base unit (gram or milliliter); any other symbol names a
// food-specific serving and belongs to DimensionCount.
type Unit string

const (
	Milligram Unit = "mg"
	Gram      Unit = "g"
	Kilogram  Unit = "kg"
	Ounce     Unit = "oz"
	Pound     Unit = "lb"

	Milliliter Unit = "ml"
	Liter      Unit = "l"
	Teaspoon   Unit = "tsp"
	Tablespoon Unit = "tbsp"
	FluidOunce Unit = "fl_oz"
	Cup        Unit = "cup"
	Pint       Unit = "pint"
)

// Generic count units. Each needs an "each" serving definition on the food;
// ServingUnit means one reference serving unless the food defines its own.
const (
	Each        Unit = "each"
	ServingUnit Unit = "serving"
)

type unitDef struct {
	dimension Dimension
	toBase    Amount
}

// US customary definitions; exact by statute.
var registry = map[Unit]unitDef{
	Milligram:  {DimensionMass, NewFraction(1, 1000)},
	Gram:       {DimensionMass, NewAmount(1)},
	Kilogram:   {DimensionMass, NewAmount(1000)},
	Ounce:      {DimensionMass, MustAmount("28.349523125")},
	Pound:      {DimensionMass, MustAmount("453.59237")},
	Milliliter: {DimensionVolume, NewAmount(1)},
	Liter:      {DimensionVolume, NewAmount(1000)},
	Teaspoon:   {DimensionVolume, MustAmount("4.92892159375")},
	Tablespoon: {DimensionVolume, MustAmount("14.78676478125")},
	FluidOunce: {DimensionVolume, MustAmount("29.5735295625")},
	Cup:        {DimensionVolume, MustAmount("236.5882365")},
	Pint:       {DimensionVolume, MustAmount("473.176473")},
}

var aliases = map[string]Unit{
	"milligram": Milligram, "milligrams": Milligram,
	"gram": Gram, "grams": Gram, "gr": Gram,
	"kilogram": Kilogram, "kilograms": Kilogram, "kilo": Kilogram,
	"ounce": Ounce, "ounces": Ounce,
	"pound": Pound, "pounds": Pound, "lbs": Pound,
	"milliliter": Milliliter, "milliliters": Milliliter, "millilitre": Milliliter, "mL": Milliliter,
	"liter": Liter, "liters": Liter, "litre": Liter, "L": Liter,
	"teaspoon": Teaspoon, "teaspoons": Teaspoon,
	"tablespoon": Tablespoon, "tablespoons": Tablespoon,
	"fl oz": FluidOunce, "fl. oz": FluidOunce, "floz": FluidOunce, "fluid ounce": FluidOunce, "fluid ounces": FluidOunce,
	"cups": Cup,
	"pints": Pint, "pt": Pint,
	"ea": Each, "piece": Each, "pieces": Each, "item": Each, "items": Each,
	"servings": ServingUnit,
}

// ParseUnit normalizes a user supplied symbol. Unknown symbols are returned
// lower-cased as named servings.
func ParseUnit(s string) (Unit, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return "", fmt.Errorf("parse unit: empty symbol")
	}
	if u, ok := aliases[trimmed]; ok {
		return u, nil
	}
	lower := strings.ToLower(trimmed)
	if u, ok := aliases[lower]; ok {
		return u, nil
	}
	return Unit(lower), nil
}

// Dimension reports the dimension u belongs to.
func (u Unit) Dimension() Dimension {
	if def, ok := registry[u]; ok {
		return def.dimension
	}
	return DimensionCount
}

// Registered reports whether u has a fixed factor to grams or milliliters.
func (u Unit) Registered() bool {
	_, ok := registry[u]
	return ok
}

// RegisteredUnits lists the fixed-factor units of a dimension, sorted.
func RegisteredUnits(d Dimension) []Unit {
	var out []Unit
	for u, def := range registry {
		if def.dimension == d {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Quantity is an amount in a unit.
type Quantity struct {
	Amount Amount `json:"amount" yaml:"amount"`
	Unit   Unit   `json:"unit" yaml:"unit"`
}

// Q builds a Quantity from a decimal string; it panics on malformed input.
func Q(amount string, unit Unit) Quantity {
	return Quantity{Amount: MustAmount(amount), Unit: unit}
}

// ParseQuantity parses strings such as "100 g", "1.5 cup" or "2 slice".
func ParseQuantity(s string) (Quantity, error) {
	fields := strings.Fields(strings.TrimSpace(s))
	if len(fields) < 2 {
		return Quantity{}, fmt.Errorf("parse quantity %q: want \"<amount> <unit>\"", s)
	}
	amount, err := ParseAmount(fields[0])
	if err != nil {
		return Quantity{}, fmt.Errorf("parse quantity %q: %w", s, err)
	}
	unit, err := ParseUnit(strings.Join(fields[1:], " "))
	if err != nil {
		return Quantity{}, fmt.Errorf("parse quantity %q: %w", s, err)
	}
	return Quantity{Amount: amount, Unit: unit}, nil
}

// Scale returns q with its amount multiplied by f.
func (q Quantity) Scale(f Amount) Quantity {
	return Quantity{Amount: q.Amount.Mul(f), Unit: q.Unit}
}

// Equal reports whether q and o have the same unit and amount.
func (q Quantity) Equal(o Quantity) bool {
	return q.Unit == o.Unit && q.Amount.Equal(o.Amount)
}

func (q Quantity) String() string {
	return q.Amount.String() + " " + string(q.Unit)
}
