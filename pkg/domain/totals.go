package domain

import "nutrilog/pkg/units"

// ScopeKind selects which entries a total covers.
type ScopeKind string

// Aggregation scopes.
const (
	ScopeMeal  ScopeKind = "meal"
	ScopeDay   ScopeKind = "day"
	ScopeRange ScopeKind = "range"
)

// Scope restricts aggregation to a time range and, for meals, one slot.
type Scope struct {
	Kind     ScopeKind `json:"kind"`
	MealSlot MealSlot  `json:"meal_slot,omitempty"`
	Range    TimeRange `json:"range"`
}

// MealScope covers one meal slot within r.
func MealScope(slot MealSlot, r TimeRange) Scope {
	return Scope{Kind: ScopeMeal, MealSlot: slot, Range: r}
}

// DayScope covers every slot within one logging day.
func DayScope(r TimeRange) Scope {
	return Scope{Kind: ScopeDay, Range: r}
}

// RangeScope covers every slot within an arbitrary range.
func RangeScope(r TimeRange) Scope {
	return Scope{Kind: ScopeRange, Range: r}
}

// IncludesEntry reports whether e belongs to the scope.
func (s Scope) IncludesEntry(e LogEntry) bool {
	if s.Kind == ScopeMeal && e.MealSlot != s.MealSlot {
		return false
	}
	return s.Range.Contains(e.Timestamp)
}

// IncludesWater reports whether w belongs to the scope. Meal slots do not
// apply to water, so only the range is checked.
func (s Scope) IncludesWater(w WaterEntry) bool {
	return s.Range.Contains(w.Timestamp)
}

// Union returns the narrowest scope covering s and o.
func (s Scope) Union(o Scope) Scope {
	if s.Kind == o.Kind && s.MealSlot == o.MealSlot && s.Range.Equal(o.Range) {
		return s
	}
	out := Scope{Kind: ScopeRange, Range: s.Range.Cover(o.Range)}
	if s.Kind == ScopeMeal && o.Kind == ScopeMeal && s.MealSlot == o.MealSlot {
		out.Kind = ScopeMeal
		out.MealSlot = s.MealSlot
	}
	return out
}

// AggregateTotal is a derived sum over log and water entries. It is never
// stored as the source of truth; callers recompute it from entries.
type AggregateTotal struct {
	Scope     Scope     `json:"scope"`
	Nutrients Nutrients `json:"nutrients"`
	// Contributors counts, per kind, the entries that carried data for it.
	Contributors map[NutrientKind]int `json:"contributors"`
	EntryCount   int                  `json:"entry_count"`
	WaterML      units.Amount         `json:"water_ml"`
	WaterCount   int                  `json:"water_count"`
}

// NewAggregateTotal returns an empty total for scope.
func NewAggregateTotal(scope Scope) AggregateTotal {
	return AggregateTotal{
		Scope:        scope,
		Nutrients:    Nutrients{},
		Contributors: map[NutrientKind]int{},
	}
}

// HasData reports whether any entry in the total carried data for kind.
func (t AggregateTotal) HasData(kind NutrientKind) bool {
	return t.Contributors[kind] > 0
}

// Combine merges two totals. It is associative and commutative, so any
// partition of an entry set combines back to the total of the whole set.
func Combine(a, b AggregateTotal) AggregateTotal {
	out := NewAggregateTotal(a.Scope.Union(b.Scope))
	for _, t := range []AggregateTotal{a, b} {
		for kind, amount := range t.Nutrients {
			out.Nutrients[kind] = out.Nutrients[kind].Add(amount)
		}
		for kind, n := range t.Contributors {
			out.Contributors[kind] += n
		}
		out.EntryCount += t.EntryCount
		out.WaterML = out.WaterML.Add(t.WaterML)
		out.WaterCount += t.WaterCount
	}
	return out
}

// Equal compares amounts and counts; the scope is not compared.
func (t AggregateTotal) Equal(o AggregateTotal) bool {
	if !t.Nutrients.Equal(o.Nutrients) || !t.WaterML.Equal(o.WaterML) {
		return false
	}
	if t.EntryCount != o.EntryCount || t.WaterCount != o.WaterCount {
		return false
	}
	if len(t.Contributors) != len(o.Contributors) {
		return false
	}
	for k, v := range t.Contributors {
		if o.Contributors[k] != v {
			return false
		}
	}
	return true
}

// DaySummary is one logging day broken down by meal slot. Day always equals
// the combination of every entry in Meals plus the day's water.
type DaySummary struct {
	Range TimeRange                   `json:"range"`
	Day   AggregateTotal              `json:"day"`
	Meals map[MealSlot]AggregateTotal `json:"meals"`
}
