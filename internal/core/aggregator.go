package core

import (
	"nutrilog/pkg/domain"
	"nutrilog/pkg/units"
)

// Aggregator folds log entries into totals. It keeps no state, so the same
// inputs always yield the same total.
type Aggregator struct{}

// Aggregate sums the entries that fall inside scope. Kinds an entry has no
// data for are skipped rather than counted as zero.
func (Aggregator) Aggregate(entries []domain.LogEntry, scope domain.Scope) domain.AggregateTotal {
	total := domain.NewAggregateTotal(scope)
	for _, e := range entries {
		if !scope.IncludesEntry(e) {
			continue
		}
		total.EntryCount++
		for kind, amount := range e.Nutrients {
			total.Nutrients[kind] = total.Nutrients[kind].Add(amount)
			total.Contributors[kind]++
		}
	}
	return total
}

// AggregateWater sums the milliliters of the water entries inside scope.
func (Aggregator) AggregateWater(water []domain.WaterEntry, scope domain.Scope) units.Amount {
	ml, _ := sumWater(water, scope)
	return ml
}

func sumWater(water []domain.WaterEntry, scope domain.Scope) (units.Amount, int) {
	var ml units.Amount
	n := 0
	for _, w := range water {
		if !scope.IncludesWater(w) {
			continue
		}
		ml = ml.Add(w.VolumeML)
		n++
	}
	return ml, n
}

// Total aggregates food and water together.
func (a Aggregator) Total(entries []domain.LogEntry, water []domain.WaterEntry, scope domain.Scope) domain.AggregateTotal {
	total := a.Aggregate(entries, scope)
	total.WaterML, total.WaterCount = sumWater(water, scope)
	return total
}

// Summarize breaks one day down by meal slot. Day is built by combining the
// meal totals, then adding the day's water.
func (a Aggregator) Summarize(entries []domain.LogEntry, water []domain.WaterEntry, day domain.TimeRange) domain.DaySummary {
	summary := domain.DaySummary{
		Range: day,
		Meals: make(map[domain.MealSlot]domain.AggregateTotal, len(domain.MealSlots())),
	}
	total := domain.NewAggregateTotal(domain.DayScope(day))
	for _, slot := range domain.MealSlots() {
		meal := a.Aggregate(entries, domain.MealScope(slot, day))
		summary.Meals[slot] = meal
		total = domain.Combine(total, meal)
	}
	total.Scope = domain.DayScope(day)
	total.WaterML, total.WaterCount = sumWater(water, total.Scope)
	summary.Day = total
	return summary
}
