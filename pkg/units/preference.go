package units

import (
	"fmt"
	"strings"
)

// System names a family of display units.
type System string

const (
	SystemMetric   System = "metric"
	SystemImperial System = "imperial"
	SystemCustom   System = "custom"
)

// Preference holds a user's display units. It only affects presentation;
// nutrient scaling always runs in the profile's reference unit.
type Preference struct {
	System System `json:"system"`
	// Custom maps a dimension to a display unit when System is SystemCustom.
	// Unmapped dimensions fall back to metric.
	Custom map[Dimension]Unit `json:"custom,omitempty"`
}

// DefaultPreference is metric.
func DefaultPreference() Preference {
	return Preference{System: SystemMetric}
}

// ParsePreference parses "metric", "imperial" or "custom:mass=oz,volume=cup".
func ParsePreference(s string) (Preference, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	switch {
	case s == "" || s == string(SystemMetric):
		return DefaultPreference(), nil
	case s == string(SystemImperial):
		return Preference{System: SystemImperial}, nil
	case strings.HasPrefix(s, string(SystemCustom)):
		pref := Preference{System: SystemCustom, Custom: map[Dimension]Unit{}}
		custom := strings.TrimPrefix(strings.TrimPrefix(s, string(SystemCustom)), ":")
		for _, pair := range strings.Split(custom, ",") {
			if strings.TrimSpace(pair) == "" {
				continue
			}
			kv := strings.SplitN(pair, "=", 2)
			if len(kv) != 2 {
				return Preference{}, fmt.Errorf("parse preference %q: malformed pair %q", s, pair)
			}
			u, err := ParseUnit(kv[1])
			if err != nil {
				return Preference{}, fmt.Errorf("parse preference %q: %w", s, err)
			}
			pref.Custom[Dimension(strings.TrimSpace(kv[0]))] = u
		}
		if err := pref.Validate(); err != nil {
			return Preference{}, err
		}
		return pref, nil
	default:
		return Preference{}, fmt.Errorf("unknown unit system %q", s)
	}
}

// Validate checks that custom units are registered units of their dimension.
func (p Preference) Validate() error {
	switch p.System {
	case "", SystemMetric, SystemImperial:
		return nil
	case SystemCustom:
		for dim, u := range p.Custom {
			if dim != DimensionMass && dim != DimensionVolume {
				return fmt.Errorf("custom display unit for unsupported dimension %q", dim)
			}
			if !u.Registered() || u.Dimension() != dim {
				return fmt.Errorf("custom display unit %q is not a %s unit", u, dim)
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown unit system %q", p.System)
	}
}

// DisplayUnit returns the display unit for d; counts have none.
func (p Preference) DisplayUnit(d Dimension) (Unit, bool) {
	if p.System == SystemCustom {
		if u, ok := p.Custom[d]; ok {
			return u, true
		}
	}
	switch d {
	case DimensionMass:
		if p.System == SystemImperial {
			return Ounce, true
		}
		return Gram, true
	case DimensionVolume:
		if p.System == SystemImperial {
			return FluidOunce, true
		}
		return Milliliter, true
	default:
		return "", false
	}
}

// Present converts q into the preferred display unit of its own dimension.
// Named servings and counts are returned unchanged.
func Present(q Quantity, p Preference) (Quantity, error) {
	if !q.Unit.Registered() {
		return q, nil
	}
	to, ok := p.DisplayUnit(q.Unit.Dimension())
	if !ok {
		return q, nil
	}
	return Convert(q, to, Context{})
}
