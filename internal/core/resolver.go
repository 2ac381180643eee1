package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"nutrilog/pkg/domain"
	"nutrilog/pkg/units"
)

// IDGenerator returns a fresh opaque identifier.
type IDGenerator func() string

func newUUID() string { return uuid.NewString() }

// Resolution is a food reference resolved to its canonical identity.
type Resolution struct {
	Food    domain.FoodIdentity
	Profile domain.NutrientProfile
	// DefaultServing is what a client pre-fills as the logged quantity.
	DefaultServing units.Quantity
}

// ManualEntry is a user-described food that is not in the catalog.
type ManualEntry struct {
	DisplayName      string
	Barcode          string
	ReferenceServing units.Quantity
	DensityGPerML    *units.Amount
	Servings         []domain.ServingDefinition
	Nutrients        domain.Nutrients
}

// Resolver maps barcodes, catalog ids and manual entries to foods. It only
// reads from the profile store.
type Resolver struct {
	store domain.ProfileStore
	ids   IDGenerator
}

// NewResolver returns a resolver reading from store. A nil ids uses UUIDs.
func NewResolver(store domain.ProfileStore, ids IDGenerator) *Resolver {
	if ids == nil {
		ids = newUUID
	}
	return &Resolver{store: store, ids: ids}
}

// NormalizeBarcode strips spaces and dashes and checks that only digits
// remain.
func NormalizeBarcode(code string) (string, error) {
	var b strings.Builder
	for _, r := range code {
		switch {
		case r == ' ' || r == '-' || r == '\t':
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			return "", fmt.Errorf("barcode %q contains %q", code, r)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("barcode %q is empty", code)
	}
	return b.String(), nil
}

// barcodeCandidates lists the lookup keys for a normalized code: the code
// itself, then its GTIN-12/GTIN-13 sibling (a UPC-A is an EAN-13 with a
// leading zero).
func barcodeCandidates(code string) []string {
	out := []string{code}
	switch {
	case len(code) == 12:
		out = append(out, "0"+code)
	case len(code) == 13 && code[0] == '0':
		out = append(out, code[1:])
	}
	return out
}

// ResolveByBarcode looks up a decoded barcode.
func (r *Resolver) ResolveByBarcode(ctx context.Context, code string) (Resolution, error) {
	normalized, err := NormalizeBarcode(code)
	if err != nil {
		return Resolution{}, &domain.FoodNotFoundError{Barcode: code, Reason: err.Error()}
	}
	for _, candidate := range barcodeCandidates(normalized) {
		food, err := r.store.GetByBarcode(ctx, candidate)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return Resolution{}, fmt.Errorf("lookup barcode %s: %w", candidate, err)
		}
		return r.complete(ctx, food)
	}
	return Resolution{}, &domain.FoodNotFoundError{Barcode: normalized}
}

// ResolveByID looks up a catalog id.
func (r *Resolver) ResolveByID(ctx context.Context, id string) (Resolution, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Resolution{}, &domain.FoodNotFoundError{ID: id, Reason: "empty id"}
	}
	food, err := r.store.GetFood(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return Resolution{}, &domain.FoodNotFoundError{ID: id}
	}
	if err != nil {
		return Resolution{}, fmt.Errorf("lookup food %s: %w", id, err)
	}
	return r.complete(ctx, food)
}

func (r *Resolver) complete(ctx context.Context, food domain.FoodIdentity) (Resolution, error) {
	profile, err := r.store.GetProfile(ctx, food.ID)
	if errors.Is(err, domain.ErrNotFound) {
		return Resolution{}, &domain.ProfileDataInconsistentError{FoodID: food.ID, Reason: "food has no nutrient profile"}
	}
	if err != nil {
		return Resolution{}, fmt.Errorf("load profile %s: %w", food.ID, err)
	}
	return Resolution{Food: food, Profile: profile, DefaultServing: profile.DefaultServing()}, nil
}

// ResolveManualEntry builds a user_created food from m. The result is not
// written anywhere; persisting it is the caller's choice.
func (r *Resolver) ResolveManualEntry(m ManualEntry) (Resolution, error) {
	name := strings.TrimSpace(m.DisplayName)
	if name == "" {
		return Resolution{}, fmt.Errorf("%w: manual entry needs a display name", domain.ErrInvalidEntry)
	}
	var barcode string
	if m.Barcode != "" {
		normalized, err := NormalizeBarcode(m.Barcode)
		if err != nil {
			return Resolution{}, fmt.Errorf("%w: %v", domain.ErrInvalidEntry, err)
		}
		barcode = normalized
	}
	food := domain.FoodIdentity{
		ID:          "user-" + r.ids(),
		SourceKind:  domain.SourceUserCreated,
		Barcode:     barcode,
		DisplayName: name,
	}
	profile := domain.NutrientProfile{
		FoodID:           food.ID,
		Version:          1,
		ReferenceServing: m.ReferenceServing,
		DensityGPerML:    m.DensityGPerML,
		Servings:         m.Servings,
		Nutrients:        m.Nutrients,
	}.Clone()
	if err := profile.Validate(); err != nil {
		return Resolution{}, err
	}
	return Resolution{Food: food, Profile: profile, DefaultServing: profile.DefaultServing()}, nil
}
