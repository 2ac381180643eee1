package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"nutrilog/pkg/domain"
	"nutrilog/pkg/units"
)

func TestStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "nutrilog.db")
	s, err := NewStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if s.Path() != path {
		t.Fatalf("unexpected path %s", s.Path())
	}
	food := domain.FoodIdentity{ID: "oats", SourceKind: domain.SourceGeneric, Barcode: "4006381333931", DisplayName: "Rolled oats"}
	profile := domain.NutrientProfile{
		FoodID:           "oats",
		ReferenceServing: units.Q("40", units.Gram),
		Nutrients:        domain.Nutrients{domain.Calories: units.MustAmount("150"), domain.FiberG: units.MustAmount("4")},
	}
	if err := s.PutFood(ctx, food, profile); err != nil {
		t.Fatalf("put food: %v", err)
	}
	ts := time.Date(2024, 5, 1, 7, 30, 0, 0, time.UTC)
	e := domain.LogEntry{
		ID: "e1", UserID: "u1", Food: food, Quantity: units.Q("80", units.Gram),
		MealSlot: domain.MealBreakfast, Timestamp: ts, ProfileVersion: 1,
		Nutrients: domain.Nutrients{domain.Calories: units.MustAmount("300")},
	}
	if err := s.AppendEntry(ctx, e); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = reopened.Close() })

	got, err := reopened.GetByBarcode(ctx, "4006381333931")
	if err != nil || got.ID != "oats" {
		t.Fatalf("barcode after reopen: %+v %v", got, err)
	}
	p, err := reopened.GetProfile(ctx, "oats")
	if err != nil || !p.Nutrients[domain.FiberG].Equal(units.NewAmount(4)) || p.Version != 1 {
		t.Fatalf("profile after reopen: %+v %v", p, err)
	}
	entries, err := reopened.ListEntries(ctx, "u1", domain.TimeRange{})
	if err != nil || len(entries) != 1 {
		t.Fatalf("entries after reopen: %v %v", entries, err)
	}
	if !entries[0].Timestamp.Equal(ts) || !entries[0].Nutrients[domain.Calories].Equal(units.NewAmount(300)) {
		t.Fatalf("entry not preserved: %+v", entries[0])
	}
}

func TestStoreRejectsMutationWhenWriteFails(t *testing.T) {
	ctx := context.Background()
	s, err := NewStore(filepath.Join(t.TempDir(), "nutrilog.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.DB().Close(); err != nil {
		t.Fatalf("close db: %v", err)
	}
	w := domain.WaterEntry{ID: "w1", UserID: "u1", VolumeML: units.NewAmount(250), Timestamp: time.Now()}
	if err := s.AppendWater(ctx, w); err == nil {
		t.Fatalf("expected write failure")
	}
	got, err := s.ListWater(ctx, "u1", domain.TimeRange{})
	if err != nil || len(got) != 0 {
		t.Fatalf("failed write became visible: %v %v", got, err)
	}
	if err := s.DeleteWater(ctx, "u1", "w1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
