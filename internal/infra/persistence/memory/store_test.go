package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"nutrilog/pkg/domain"
	"nutrilog/pkg/units"
)

func banana() (domain.FoodIdentity, domain.NutrientProfile) {
	food := domain.FoodIdentity{ID: "banana", SourceKind: domain.SourceGeneric, Barcode: "0123456789012", DisplayName: "Banana"}
	profile := domain.NutrientProfile{
		FoodID:           "banana",
		ReferenceServing: units.Q("100", units.Gram),
		Nutrients: domain.Nutrients{
			domain.Calories: units.MustAmount("89"),
			domain.CarbG:    units.MustAmount("23"),
		},
	}
	return food, profile
}

func entry(id, user string, ts time.Time) domain.LogEntry {
	return domain.LogEntry{
		ID:        id,
		UserID:    user,
		Food:      domain.FoodIdentity{ID: "banana", SourceKind: domain.SourceGeneric},
		Quantity:  units.Q("100", units.Gram),
		MealSlot:  domain.MealLunch,
		Timestamp: ts,
		Nutrients: domain.Nutrients{domain.Calories: units.MustAmount("89")},
	}
}

func TestPutFoodBumpsProfileVersion(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	food, profile := banana()
	if err := s.PutFood(ctx, food, profile); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := s.GetProfile(ctx, "banana")
	if err != nil || got.Version != 1 {
		t.Fatalf("expected version 1, got %d (%v)", got.Version, err)
	}
	profile.Nutrients[domain.Calories] = units.MustAmount("90")
	if err := s.PutFood(ctx, food, profile); err != nil {
		t.Fatalf("replace: %v", err)
	}
	got, _ = s.GetProfile(ctx, "banana")
	if got.Version != 2 || !got.Nutrients[domain.Calories].Equal(units.MustAmount("90")) {
		t.Fatalf("expected replaced profile at version 2, got %+v", got)
	}

	byCode, err := s.GetByBarcode(ctx, "0123456789012")
	if err != nil || byCode.ID != "banana" {
		t.Fatalf("barcode lookup: %+v %v", byCode, err)
	}
}

func TestPutFoodRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	food, profile := banana()

	bad := food
	bad.SourceKind = "vending"
	if err := s.PutFood(ctx, bad, profile); !errors.Is(err, domain.ErrInvalidEntry) {
		t.Fatalf("expected invalid entry for source kind, got %v", err)
	}
	mismatched := profile
	mismatched.FoodID = "apple"
	if err := s.PutFood(ctx, food, mismatched); !errors.Is(err, domain.ErrProfileDataInconsistent) {
		t.Fatalf("expected inconsistent profile, got %v", err)
	}
	zeroRef := profile.Clone()
	zeroRef.ReferenceServing = units.Q("0", units.Gram)
	if err := s.PutFood(ctx, food, zeroRef); !errors.Is(err, domain.ErrProfileDataInconsistent) {
		t.Fatalf("expected inconsistent profile for zero reference, got %v", err)
	}

	if err := s.PutFood(ctx, food, profile); err != nil {
		t.Fatalf("put: %v", err)
	}
	other := domain.FoodIdentity{ID: "plantain", SourceKind: domain.SourceGeneric, Barcode: food.Barcode, DisplayName: "Plantain"}
	otherProfile := profile.Clone()
	otherProfile.FoodID = "plantain"
	if err := s.PutFood(ctx, other, otherProfile); !errors.Is(err, domain.ErrDuplicate) {
		t.Fatalf("expected duplicate barcode, got %v", err)
	}
	if _, err := s.GetFood(ctx, "plantain"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("rejected food must not be stored: %v", err)
	}
}

func TestPutFoodReleasesOldBarcode(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	food, profile := banana()
	if err := s.PutFood(ctx, food, profile); err != nil {
		t.Fatalf("put: %v", err)
	}
	food.Barcode = "4006381333931"
	if err := s.PutFood(ctx, food, profile); err != nil {
		t.Fatalf("re-put: %v", err)
	}
	if _, err := s.GetByBarcode(ctx, "0123456789012"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("old barcode still resolves: %v", err)
	}
}

func TestAppendEntriesIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	if err := s.AppendEntry(ctx, entry("e1", "u1", now)); err != nil {
		t.Fatalf("append: %v", err)
	}
	err := s.AppendEntries(ctx, []domain.LogEntry{entry("e2", "u1", now), entry("e1", "u1", now)})
	if !errors.Is(err, domain.ErrDuplicate) {
		t.Fatalf("expected duplicate, got %v", err)
	}
	got, _ := s.ListEntries(ctx, "u1", domain.TimeRange{})
	if len(got) != 1 {
		t.Fatalf("partial batch committed: %d entries", len(got))
	}
	if err := s.AppendEntries(ctx, []domain.LogEntry{{ID: "x"}}); !errors.Is(err, domain.ErrInvalidEntry) {
		t.Fatalf("expected invalid entry, got %v", err)
	}
}

func TestListEntriesOrderingAndRange(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for _, e := range []domain.LogEntry{
		entry("c", "u1", base.Add(2*time.Hour)),
		entry("b", "u1", base.Add(time.Hour)),
		entry("a", "u1", base.Add(time.Hour)),
		entry("z", "u2", base.Add(time.Hour)),
		entry("late", "u1", base.Add(24*time.Hour)),
	} {
		if err := s.AppendEntry(ctx, e); err != nil {
			t.Fatalf("append %s: %v", e.ID, err)
		}
	}
	got, err := s.ListEntries(ctx, "u1", domain.TimeRange{From: base, To: base.Add(24 * time.Hour)})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var ids []string
	for _, e := range got {
		ids = append(ids, e.ID)
	}
	if len(ids) != 3 || ids[0] != "a" || ids[1] != "b" || ids[2] != "c" {
		t.Fatalf("unexpected order %v", ids)
	}

	got[0].Nutrients[domain.Calories] = units.NewAmount(0)
	again, _ := s.ListEntries(ctx, "u1", domain.TimeRange{From: base, To: base.Add(24 * time.Hour)})
	if again[0].Nutrients[domain.Calories].IsZero() {
		t.Fatalf("listed entries share state with the store")
	}
}

func TestDeleteChecksOwnership(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	now := time.Now()
	if err := s.AppendEntry(ctx, entry("e1", "u1", now)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.DeleteEntry(ctx, "u2", "e1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("foreign delete should be not found, got %v", err)
	}
	if err := s.DeleteEntry(ctx, "u1", "e1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteEntry(ctx, "u1", "e1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second delete should be not found, got %v", err)
	}

	w, err := domain.NewWaterEntry("w1", "u1", units.Q("250", units.Milliliter), now)
	if err != nil {
		t.Fatalf("water: %v", err)
	}
	if err := s.AppendWater(ctx, w); err != nil {
		t.Fatalf("append water: %v", err)
	}
	if err := s.AppendWater(ctx, w); !errors.Is(err, domain.ErrDuplicate) {
		t.Fatalf("expected duplicate water, got %v", err)
	}
	if err := s.DeleteWater(ctx, "u2", "w1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("foreign water delete should be not found, got %v", err)
	}
	if err := s.DeleteWater(ctx, "u1", "w1"); err != nil {
		t.Fatalf("delete water: %v", err)
	}
}

func TestCommitHookFailureDiscardsMutation(t *testing.T) {
	ctx := context.Background()
	fail := errors.New("disk full")
	var touched []string
	s := NewStore(WithCommitHook(func(_ context.Context, next Snapshot, names []string) error {
		touched = names
		if _, ok := next.Entries["e2"]; ok {
			return fail
		}
		return nil
	}))
	now := time.Now()
	if err := s.AppendEntry(ctx, entry("e1", "u1", now)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if len(touched) != 1 || touched[0] != BucketEntries {
		t.Fatalf("unexpected touched buckets %v", touched)
	}
	if err := s.AppendEntry(ctx, entry("e2", "u1", now)); !errors.Is(err, fail) {
		t.Fatalf("expected hook error, got %v", err)
	}
	if got := s.ExportState().Entries; len(got) != 1 {
		t.Fatalf("failed commit leaked into state: %v", got)
	}
}

func TestPutFoodWithEntryCommitsTogether(t *testing.T) {
	ctx := context.Background()
	fail := errors.New("disk full")
	s := NewStore(WithCommitHook(func(_ context.Context, next Snapshot, _ []string) error {
		if _, ok := next.Entries["bad"]; ok {
			return fail
		}
		return nil
	}))
	food, profile := banana()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	if err := s.PutFoodWithEntry(ctx, food, profile, entry("bad", "u1", now)); !errors.Is(err, fail) {
		t.Fatalf("expected hook error, got %v", err)
	}
	if st := s.ExportState(); len(st.Foods) != 0 || len(st.Profiles) != 0 || len(st.Entries) != 0 {
		t.Fatalf("failed commit leaked into state: %+v", st)
	}
	if err := s.PutFoodWithEntry(ctx, food, profile, domain.LogEntry{ID: "x"}); !errors.Is(err, domain.ErrInvalidEntry) {
		t.Fatalf("expected invalid entry, got %v", err)
	}
	if err := s.PutFoodWithEntry(ctx, food, profile, entry("e1", "u1", now)); err != nil {
		t.Fatalf("put with entry: %v", err)
	}
	st := s.ExportState()
	if len(st.Foods) != 1 || len(st.Entries) != 1 || st.Profiles["banana"].Version != 1 {
		t.Fatalf("unexpected state %+v", st)
	}
}

func TestDeleteFoodKeepsEntries(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	food, profile := banana()
	if err := s.PutFood(ctx, food, profile); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.AppendEntry(ctx, entry("e1", "u1", time.Now())); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.DeleteFood(ctx, "banana"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetProfile(ctx, "banana"); err == nil {
		t.Fatal("profile should be gone")
	}
	if _, err := s.GetByBarcode(ctx, food.Barcode); err == nil {
		t.Fatal("barcode should be released")
	}
	if got, _ := s.ListEntries(ctx, "u1", domain.TimeRange{}); len(got) != 1 {
		t.Fatalf("entries must survive food deletion, got %d", len(got))
	}
	if err := s.DeleteFood(ctx, "banana"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewStore()
	if _, err := s.GetFood(ctx, "banana"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled read, got %v", err)
	}
	if err := s.AppendEntry(ctx, entry("e1", "u1", time.Now())); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled write, got %v", err)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	food, profile := banana()
	if err := s.PutFood(ctx, food, profile); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.AppendEntry(ctx, entry("e1", "u1", time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC))); err != nil {
		t.Fatalf("append: %v", err)
	}
	snap := s.ExportState()

	var decoded Snapshot
	for _, name := range BucketNames {
		data, err := EncodeBucket(&snap, name)
		if err != nil {
			t.Fatalf("encode %s: %v", name, err)
		}
		if err := DecodeBucket(&decoded, name, data); err != nil {
			t.Fatalf("decode %s: %v", name, err)
		}
	}
	if err := DecodeBucket(&decoded, "legacy", []byte(`{}`)); err != nil {
		t.Fatalf("unknown buckets are ignored, got %v", err)
	}

	restored := NewStore()
	restored.ImportState(decoded)
	if byCode, err := restored.GetByBarcode(ctx, food.Barcode); err != nil || byCode.ID != food.ID {
		t.Fatalf("barcode index not rebuilt: %+v %v", byCode, err)
	}
	got, _ := restored.ListEntries(ctx, "u1", domain.TimeRange{})
	if len(got) != 1 || !got[0].Nutrients.Equal(entry("e1", "u1", time.Time{}).Nutrients) {
		t.Fatalf("entries not restored: %+v", got)
	}
}
