package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"nutrilog/internal/blob"
	"nutrilog/pkg/domain"
	"nutrilog/pkg/units"
)

const (
	summaryPrefix      = "summaries"
	summaryContentType = "application/json"
	// quantityPlaces is the precision of presented quantities.
	quantityPlaces = 2
)

// SummaryDocument is the exported form of one logging day. Amounts are
// decimal strings already rounded for display.
type SummaryDocument struct {
	UserID      string                            `json:"user_id"`
	Date        string                            `json:"date"`
	Range       domain.TimeRange                  `json:"range"`
	Units       units.Preference                  `json:"units"`
	GeneratedAt time.Time                         `json:"generated_at"`
	Day         TotalDocument                     `json:"day"`
	Meals       map[domain.MealSlot]TotalDocument `json:"meals"`
	Entries     []EntryDocument                   `json:"entries"`
}

// TotalDocument is an AggregateTotal ready for display. Kinds with no data
// are omitted rather than shown as zero.
type TotalDocument struct {
	EntryCount   int                            `json:"entry_count"`
	Nutrients    map[domain.NutrientKind]string `json:"nutrients"`
	Contributors map[domain.NutrientKind]int    `json:"contributors"`
	Water        QuantityDocument               `json:"water"`
	WaterCount   int                            `json:"water_count"`
}

// QuantityDocument is a presented quantity.
type QuantityDocument struct {
	Amount string     `json:"amount"`
	Unit   units.Unit `json:"unit"`
}

// EntryDocument is one log entry as it appears in an export.
type EntryDocument struct {
	ID        string           `json:"id"`
	FoodID    string           `json:"food_id"`
	FoodName  string           `json:"food_name"`
	MealSlot  domain.MealSlot  `json:"meal_slot"`
	Timestamp time.Time        `json:"timestamp"`
	Quantity  QuantityDocument `json:"quantity"`
}

// SummaryExporter renders day summaries in a user's display units and
// writes them to a blob store.
type SummaryExporter struct {
	store  blob.Store
	policy RoundingPolicy
	pref   units.Preference
	clock  Clock
}

// NewSummaryExporter returns an exporter writing to store.
func NewSummaryExporter(store blob.Store, policy RoundingPolicy, pref units.Preference, clock Clock) *SummaryExporter {
	if clock == nil {
		clock = ClockFunc(time.Now)
	}
	return &SummaryExporter{store: store, policy: policy, pref: pref, clock: clock}
}

// SummaryKey is where the summary of the day starting at from is stored.
func SummaryKey(userID string, from time.Time) (string, error) {
	if strings.TrimSpace(userID) == "" || strings.ContainsAny(userID, `/\`) || userID == "." || userID == ".." {
		return "", fmt.Errorf("%w: user id %q cannot be used in a blob key", domain.ErrInvalidEntry, userID)
	}
	if from.IsZero() {
		return "", fmt.Errorf("%w: export needs a bounded day", domain.ErrInvalidEntry)
	}
	return blob.ValidateKey(fmt.Sprintf("%s/%s/%s.json", summaryPrefix, userID, from.Format("2006-01-02")))
}

// Render builds the document without writing it. summary holds exact totals;
// rounding happens here.
func (e *SummaryExporter) Render(userID string, summary domain.DaySummary, entries []domain.LogEntry) (SummaryDocument, error) {
	doc := SummaryDocument{
		UserID:      userID,
		Date:        summary.Range.From.Format("2006-01-02"),
		Range:       summary.Range,
		Units:       e.pref,
		GeneratedAt: e.clock.Now().UTC(),
		Meals:       make(map[domain.MealSlot]TotalDocument, len(summary.Meals)),
		Entries:     make([]EntryDocument, 0, len(entries)),
	}
	var err error
	if doc.Day, err = e.total(summary.Day); err != nil {
		return SummaryDocument{}, err
	}
	for slot, meal := range summary.Meals {
		if meal.EntryCount == 0 {
			continue
		}
		if doc.Meals[slot], err = e.total(meal); err != nil {
			return SummaryDocument{}, err
		}
	}
	for _, entry := range entries {
		if !summary.Range.Contains(entry.Timestamp) {
			continue
		}
		q, err := e.quantity(entry.Quantity)
		if err != nil {
			return SummaryDocument{}, fmt.Errorf("entry %s: %w", entry.ID, err)
		}
		doc.Entries = append(doc.Entries, EntryDocument{
			ID:        entry.ID,
			FoodID:    entry.Food.ID,
			FoodName:  entry.Food.DisplayName,
			MealSlot:  entry.MealSlot,
			Timestamp: entry.Timestamp,
			Quantity:  q,
		})
	}
	return doc, nil
}

func (e *SummaryExporter) total(t domain.AggregateTotal) (TotalDocument, error) {
	out := TotalDocument{
		EntryCount:   t.EntryCount,
		Nutrients:    make(map[domain.NutrientKind]string, len(t.Nutrients)),
		Contributors: make(map[domain.NutrientKind]int, len(t.Contributors)),
		WaterCount:   t.WaterCount,
	}
	for kind, amount := range t.Nutrients {
		places := e.policy.PrecisionFor(kind)
		out.Nutrients[kind] = e.policy.Round(kind, amount).FixedString(places)
	}
	for kind, n := range t.Contributors {
		out.Contributors[kind] = n
	}
	water, err := e.quantity(units.Quantity{Amount: t.WaterML, Unit: units.Milliliter})
	if err != nil {
		return TotalDocument{}, err
	}
	out.Water = water
	return out, nil
}

func (e *SummaryExporter) quantity(q units.Quantity) (QuantityDocument, error) {
	shown, err := units.Present(q, e.pref)
	if err != nil {
		return QuantityDocument{}, err
	}
	return QuantityDocument{Amount: shown.Amount.Round(quantityPlaces, e.policy.mode()).String(), Unit: shown.Unit}, nil
}

// Export renders the summary and writes it under SummaryKey, replacing any
// earlier export of the same day.
func (e *SummaryExporter) Export(ctx context.Context, userID string, summary domain.DaySummary, entries []domain.LogEntry) (blob.Info, error) {
	key, err := SummaryKey(userID, summary.Range.From)
	if err != nil {
		return blob.Info{}, err
	}
	doc, err := e.Render(userID, summary, entries)
	if err != nil {
		return blob.Info{}, err
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return blob.Info{}, fmt.Errorf("encode summary: %w", err)
	}
	info, err := e.store.Put(ctx, key, bytes.NewReader(data), blob.PutOptions{
		ContentType: summaryContentType,
		Metadata:    map[string]string{"user": userID, "date": doc.Date},
	})
	if err != nil {
		return blob.Info{}, fmt.Errorf("write %s: %w", key, err)
	}
	return info, nil
}
