package core

import (
	"fmt"
	"os"

	"nutrilog/pkg/domain"
	"nutrilog/pkg/units"
)

// DefaultPrecision applies to nutrient kinds missing from the registry.
const DefaultPrecision = 2

// RoundingPolicy decides how computed amounts are rounded when they leave
// the engine. Intermediate arithmetic is always exact.
type RoundingPolicy struct {
	Mode units.RoundingMode
	// Precision overrides the registry's decimal places per kind.
	Precision        map[domain.NutrientKind]int
	DefaultPrecision int
}

// DefaultRoundingPolicy rounds half to even with registry precisions.
func DefaultRoundingPolicy() RoundingPolicy {
	return RoundingPolicy{Mode: units.RoundHalfEven, DefaultPrecision: DefaultPrecision}
}

// RoundingPolicyFromEnv reads NUTRILOG_ROUNDING_MODE (half_even|half_up|none).
func RoundingPolicyFromEnv() (RoundingPolicy, error) {
	p := DefaultRoundingPolicy()
	mode, err := units.ParseRoundingMode(os.Getenv("NUTRILOG_ROUNDING_MODE"))
	if err != nil {
		return p, fmt.Errorf("NUTRILOG_ROUNDING_MODE: %w", err)
	}
	p.Mode = mode
	return p, nil
}

// PrecisionFor returns the decimal places used for kind.
func (p RoundingPolicy) PrecisionFor(kind domain.NutrientKind) int {
	if n, ok := p.Precision[kind]; ok {
		return n
	}
	if info, ok := domain.LookupNutrient(kind); ok {
		return info.Precision
	}
	return p.DefaultPrecision
}

// Round rounds one amount of kind.
func (p RoundingPolicy) Round(kind domain.NutrientKind, a units.Amount) units.Amount {
	return a.Round(p.PrecisionFor(kind), p.mode())
}

// Apply returns a rounded copy of n. Absent kinds stay absent.
func (p RoundingPolicy) Apply(n domain.Nutrients) domain.Nutrients {
	out := make(domain.Nutrients, len(n))
	for kind, amount := range n {
		out[kind] = p.Round(kind, amount)
	}
	return out
}

// ApplyTotal rounds a total's nutrients and water for presentation.
func (p RoundingPolicy) ApplyTotal(t domain.AggregateTotal) domain.AggregateTotal {
	out := t
	out.Nutrients = p.Apply(t.Nutrients)
	out.WaterML = t.WaterML.Round(0, p.mode())
	out.Contributors = make(map[domain.NutrientKind]int, len(t.Contributors))
	for k, v := range t.Contributors {
		out.Contributors[k] = v
	}
	return out
}

func (p RoundingPolicy) mode() units.RoundingMode {
	if p.Mode == "" {
		return units.RoundHalfEven
	}
	return p.Mode
}
