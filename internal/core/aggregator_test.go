package core

import (
	"testing"

	"nutrilog/pkg/domain"
	"nutrilog/pkg/units"
)

func cal(s string) domain.Nutrients { return domain.Nutrients{domain.Calories: amt(s)} }

func TestAggregateIsOrderIndependent(t *testing.T) {
	a := logEntry("a", domain.MealLunch, at(12), cal("100"))
	b := logEntry("b", domain.MealLunch, at(12), cal("250"))
	c := logEntry("c", domain.MealLunch, at(13), cal("75"))
	var agg Aggregator
	scope := domain.MealScope(domain.MealLunch, day)
	for _, order := range [][]domain.LogEntry{{a, b, c}, {c, b, a}, {b, a, c}} {
		total := agg.Aggregate(order, scope)
		if !total.Nutrients[domain.Calories].Equal(amt("425")) || total.EntryCount != 3 {
			t.Fatalf("order %v: got %s over %d entries", order, total.Nutrients[domain.Calories], total.EntryCount)
		}
	}
}

func TestAggregatePartitionCombine(t *testing.T) {
	entries := []domain.LogEntry{
		logEntry("a", domain.MealBreakfast, at(7), domain.Nutrients{domain.Calories: amt("300"), domain.FiberG: amt("4")}),
		logEntry("b", domain.MealLunch, at(12), cal("610.5")),
		logEntry("c", domain.MealDinner, at(19), domain.Nutrients{domain.Calories: amt("800"), domain.FiberG: amt("0")}),
		logEntry("d", domain.MealSnack, at(22), cal("150")),
	}
	var agg Aggregator
	whole := agg.Aggregate(entries, domain.DayScope(day))
	left := agg.Aggregate(entries[:2], domain.DayScope(day))
	right := agg.Aggregate(entries[2:], domain.DayScope(day))
	if !domain.Combine(left, right).Equal(whole) {
		t.Fatalf("partition combine differs from whole")
	}
	if again := agg.Aggregate(entries, domain.DayScope(day)); !again.Equal(whole) {
		t.Fatalf("aggregation is not idempotent")
	}
	if whole.Contributors[domain.FiberG] != 2 || !whole.Nutrients[domain.FiberG].Equal(amt("4")) {
		t.Fatalf("fiber: %s from %d entries", whole.Nutrients[domain.FiberG], whole.Contributors[domain.FiberG])
	}
	if whole.HasData(domain.SodiumMg) {
		t.Fatalf("sodium has no data and must stay absent")
	}
	if _, ok := whole.Nutrients.Lookup(domain.SodiumMg); ok {
		t.Fatalf("absent kind reported as zero")
	}
}

func TestAggregateRespectsScope(t *testing.T) {
	entries := []domain.LogEntry{
		logEntry("in", domain.MealDinner, at(19), cal("500")),
		logEntry("other-slot", domain.MealLunch, at(12), cal("400")),
		logEntry("next-day", domain.MealDinner, day.To, cal("900")),
		logEntry("before", domain.MealDinner, day.From.Add(-1), cal("900")),
	}
	var agg Aggregator
	total := agg.Aggregate(entries, domain.MealScope(domain.MealDinner, day))
	if total.EntryCount != 1 || !total.Nutrients[domain.Calories].Equal(amt("500")) {
		t.Fatalf("meal scope: %+v", total)
	}
	empty := agg.Aggregate(nil, domain.DayScope(day))
	if empty.EntryCount != 0 || len(empty.Nutrients) != 0 {
		t.Fatalf("empty total should have no data: %+v", empty)
	}
}

func TestSummarizeMatchesDayTotal(t *testing.T) {
	entries := []domain.LogEntry{
		logEntry("a", domain.MealBreakfast, at(7), cal("300")),
		logEntry("b", domain.MealBreakfast, at(8), cal("120")),
		logEntry("c", domain.MealDinner, at(19), cal("650")),
		logEntry("d", domain.MealUnassigned, at(15), cal("80")),
	}
	water := []domain.WaterEntry{
		{ID: "w1", UserID: "u1", VolumeML: units.NewAmount(500), Timestamp: at(9)},
		{ID: "w2", UserID: "u1", VolumeML: amt("236.5882365"), Timestamp: at(14)},
		{ID: "w3", UserID: "u1", VolumeML: units.NewAmount(750), Timestamp: day.To},
	}
	var agg Aggregator
	summary := agg.Summarize(entries, water, day)
	total := agg.Total(entries, water, domain.DayScope(day))
	if !summary.Day.Equal(total) {
		t.Fatalf("summary day %+v differs from total %+v", summary.Day, total)
	}
	if summary.Day.Scope.Kind != domain.ScopeDay {
		t.Fatalf("day scope kind: %s", summary.Day.Scope.Kind)
	}
	if !summary.Day.WaterML.Equal(amt("736.5882365")) || summary.Day.WaterCount != 2 {
		t.Fatalf("water: %s over %d", summary.Day.WaterML, summary.Day.WaterCount)
	}
	if !summary.Meals[domain.MealBreakfast].Nutrients[domain.Calories].Equal(amt("420")) {
		t.Fatalf("breakfast: %+v", summary.Meals[domain.MealBreakfast])
	}
	if summary.Meals[domain.MealLunch].EntryCount != 0 || len(summary.Meals) != len(domain.MealSlots()) {
		t.Fatalf("every slot should be present, empty ones without data: %+v", summary.Meals)
	}
	if !agg.AggregateWater(water, domain.DayScope(day)).Equal(summary.Day.WaterML) {
		t.Fatalf("AggregateWater disagrees with summary")
	}
}
