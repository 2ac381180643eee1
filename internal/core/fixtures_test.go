package core

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"nutrilog/internal/infra/persistence/memory"
	"nutrilog/pkg/domain"
	"nutrilog/pkg/units"
)

var day = domain.TimeRange{
	From: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	To:   time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC),
}

func at(hour int) time.Time { return day.From.Add(time.Duration(hour) * time.Hour) }

func amt(s string) units.Amount { return units.MustAmount(s) }

func qty(s string, u units.Unit) *units.Quantity {
	q := units.Q(s, u)
	return &q
}

func seqIDs(prefix string) IDGenerator {
	var n int64
	return func() string { return fmt.Sprintf("%s%d", prefix, atomic.AddInt64(&n, 1)) }
}

func bananaFood() (domain.FoodIdentity, domain.NutrientProfile) {
	food := domain.FoodIdentity{ID: "banana", SourceKind: domain.SourceGeneric, Barcode: "4011200296908", DisplayName: "Banana"}
	return food, domain.NutrientProfile{
		FoodID:           "banana",
		Version:          1,
		ReferenceServing: units.Q("100", units.Gram),
		Servings:         []domain.ServingDefinition{{Name: "medium", Quantity: units.Q("118", units.Gram)}},
		Nutrients: domain.Nutrients{
			domain.Calories: amt("89"),
			domain.CarbG:    amt("23"),
			domain.ProteinG: amt("1.1"),
		},
	}
}

func milkFood() (domain.FoodIdentity, domain.NutrientProfile) {
	density := amt("1.03")
	food := domain.FoodIdentity{ID: "milk", SourceKind: domain.SourceBranded, Barcode: "036000291452", DisplayName: "Whole milk"}
	return food, domain.NutrientProfile{
		FoodID:           "milk",
		Version:          1,
		ReferenceServing: units.Q("240", units.Milliliter),
		DensityGPerML:    &density,
		Nutrients: domain.Nutrients{
			domain.Calories:  amt("149"),
			domain.CalciumMg: amt("276"),
		},
	}
}

func seededStore(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.NewStore()
	for _, f := range []func() (domain.FoodIdentity, domain.NutrientProfile){bananaFood, milkFood} {
		food, profile := f()
		if err := store.PutFood(context.Background(), food, profile); err != nil {
			t.Fatalf("seed %s: %v", food.ID, err)
		}
	}
	return store
}

func logEntry(id string, slot domain.MealSlot, ts time.Time, n domain.Nutrients) domain.LogEntry {
	return domain.LogEntry{ID: id, UserID: "u1", MealSlot: slot, Timestamp: ts, Nutrients: n}
}
