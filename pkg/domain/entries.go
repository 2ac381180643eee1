package domain

import (
	"fmt"
	"strings"
	"time"

	"nutrilog/pkg/units"
)

// MealSlot is the user-facing bucket a log entry is filed under.
type MealSlot string

// Meal slots in display order.
const (
	MealBreakfast  MealSlot = "breakfast"
	MealLunch      MealSlot = "lunch"
	MealDinner     MealSlot = "dinner"
	MealSnack      MealSlot = "snack"
	MealUnassigned MealSlot = "unassigned"
)

// MealSlots lists every slot in display order.
func MealSlots() []MealSlot {
	return []MealSlot{MealBreakfast, MealLunch, MealDinner, MealSnack, MealUnassigned}
}

// ParseMealSlot accepts slot names case-insensitively; empty maps to unassigned.
func ParseMealSlot(s string) (MealSlot, error) {
	slot := MealSlot(strings.ToLower(strings.TrimSpace(s)))
	if slot == "" {
		return MealUnassigned, nil
	}
	if !slot.Valid() {
		return "", fmt.Errorf("unknown meal slot %q", s)
	}
	return slot, nil
}

// Valid reports whether s is a known slot.
func (s MealSlot) Valid() bool {
	switch s {
	case MealBreakfast, MealLunch, MealDinner, MealSnack, MealUnassigned:
		return true
	}
	return false
}

// LogEntry records one logged food. Nutrients is computed once when the
// entry is built and never recomputed; a later profile change leaves it as is.
type LogEntry struct {
	ID             string         `json:"id"`
	UserID         string         `json:"user_id"`
	Food           FoodIdentity   `json:"food"`
	Quantity       units.Quantity `json:"quantity"`
	MealSlot       MealSlot       `json:"meal_slot"`
	Timestamp      time.Time      `json:"timestamp"`
	ProfileVersion int            `json:"profile_version"`
	Nutrients      Nutrients      `json:"nutrients"`
}

// Clone returns a copy that shares no mutable state with e.
func (e LogEntry) Clone() LogEntry {
	out := e
	out.Nutrients = e.Nutrients.Clone()
	return out
}

// WaterEntry records water intake, always held in milliliters.
type WaterEntry struct {
	ID        string       `json:"id"`
	UserID    string       `json:"user_id"`
	VolumeML  units.Amount `json:"volume_ml"`
	Timestamp time.Time    `json:"timestamp"`
}

// waterDensity lets water be logged by mass (1 g = 1 ml).
var waterDensity = units.NewAmount(1)

// NewWaterEntry normalizes q to milliliters. Mass units are accepted through
// water's density; named servings are not.
func NewWaterEntry(id, userID string, q units.Quantity, ts time.Time) (WaterEntry, error) {
	if q.Amount.Sign() <= 0 {
		return WaterEntry{}, fmt.Errorf("%w: water volume %s is not positive", ErrInvalidEntry, q)
	}
	ml, err := units.Convert(q, units.Milliliter, units.Context{DensityGPerML: &waterDensity})
	if err != nil {
		return WaterEntry{}, err
	}
	return WaterEntry{ID: id, UserID: userID, VolumeML: ml.Amount, Timestamp: ts}, nil
}

// TimeRange is the half-open interval [From, To). A zero bound is open.
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Contains reports whether t falls inside the range.
func (r TimeRange) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && !t.Before(r.To) {
		return false
	}
	return true
}

// Cover returns the smallest range containing both r and o.
func (r TimeRange) Cover(o TimeRange) TimeRange {
	out := r
	if r.From.IsZero() || o.From.IsZero() {
		out.From = time.Time{}
	} else if o.From.Before(r.From) {
		out.From = o.From
	}
	if r.To.IsZero() || o.To.IsZero() {
		out.To = time.Time{}
	} else if o.To.After(r.To) {
		out.To = o.To
	}
	return out
}

// Equal compares both bounds as instants.
func (r TimeRange) Equal(o TimeRange) bool {
	return r.From.Equal(o.From) && r.To.Equal(o.To)
}

// DayRange returns the 24-hour logging day containing t, in loc, where each
// day begins dayStart after local midnight (e.g. 4h for night owls). Where the
// day boundary lies is the caller's policy; the engine only consumes ranges.
func DayRange(t time.Time, loc *time.Location, dayStart time.Duration) TimeRange {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc).Add(-dayStart)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	from := midnight.Add(dayStart)
	to := time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, loc).Add(dayStart)
	return TimeRange{From: from, To: to}
}
