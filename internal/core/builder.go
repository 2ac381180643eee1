package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"nutrilog/pkg/domain"
	"nutrilog/pkg/units"
)

// BuildRequest describes one food to log.
type BuildRequest struct {
	UserID    string
	Food      domain.FoodIdentity
	Quantity  units.Quantity
	MealSlot  domain.MealSlot
	Timestamp time.Time
}

// Builder turns a resolved food and a logged quantity into an immutable
// LogEntry with its nutrient snapshot computed once.
type Builder struct {
	profiles domain.ProfileStore
	policy   RoundingPolicy
	ids      IDGenerator
}

// NewBuilder returns a builder reading profiles from store. store may be nil
// when only BuildWithProfile is used.
func NewBuilder(store domain.ProfileStore, policy RoundingPolicy, ids IDGenerator) *Builder {
	if ids == nil {
		ids = newUUID
	}
	return &Builder{profiles: store, policy: policy, ids: ids}
}

// Build fetches the food's current profile and builds the entry.
func (b *Builder) Build(ctx context.Context, req BuildRequest) (domain.LogEntry, error) {
	if b.profiles == nil {
		return domain.LogEntry{}, errors.New("builder has no profile store")
	}
	profile, err := b.profiles.GetProfile(ctx, req.Food.ID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.LogEntry{}, &domain.ProfileDataInconsistentError{FoodID: req.Food.ID, Reason: "food has no nutrient profile"}
	}
	if err != nil {
		return domain.LogEntry{}, fmt.Errorf("load profile %s: %w", req.Food.ID, err)
	}
	return b.BuildWithProfile(req, profile)
}

// BuildWithProfile builds the entry against an already loaded profile, as
// returned by a resolution. Nothing is returned on failure.
func (b *Builder) BuildWithProfile(req BuildRequest, profile domain.NutrientProfile) (domain.LogEntry, error) {
	slot, err := checkRequest(req)
	if err != nil {
		return domain.LogEntry{}, err
	}
	if profile.FoodID != req.Food.ID {
		return domain.LogEntry{}, &domain.ProfileDataInconsistentError{
			FoodID: req.Food.ID,
			Reason: fmt.Sprintf("profile belongs to food %q", profile.FoodID),
		}
	}
	scaled, err := ScaleNutrients(profile, req.Quantity)
	if err != nil {
		return domain.LogEntry{}, err
	}
	return domain.LogEntry{
		ID:             b.ids(),
		UserID:         req.UserID,
		Food:           req.Food,
		Quantity:       req.Quantity,
		MealSlot:       slot,
		Timestamp:      req.Timestamp,
		ProfileVersion: profile.Version,
		Nutrients:      b.policy.Apply(scaled),
	}, nil
}

func checkRequest(req BuildRequest) (domain.MealSlot, error) {
	switch {
	case strings.TrimSpace(req.UserID) == "":
		return "", fmt.Errorf("%w: user id is required", domain.ErrInvalidEntry)
	case req.Food.ID == "":
		return "", fmt.Errorf("%w: food id is required", domain.ErrInvalidEntry)
	case req.Quantity.Unit == "":
		return "", fmt.Errorf("%w: quantity has no unit", domain.ErrInvalidEntry)
	case req.Quantity.Amount.Sign() <= 0:
		return "", fmt.Errorf("%w: quantity %s is not positive", domain.ErrInvalidEntry, req.Quantity)
	case req.Timestamp.IsZero():
		return "", fmt.Errorf("%w: timestamp is required", domain.ErrInvalidEntry)
	}
	slot, err := domain.ParseMealSlot(string(req.MealSlot))
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidEntry, err)
	}
	return slot, nil
}

// ScaleFactor is how many reference servings q amounts to.
func ScaleFactor(profile domain.NutrientProfile, q units.Quantity) (units.Amount, error) {
	if err := profile.Validate(); err != nil {
		return units.Amount{}, err
	}
	ref := profile.ReferenceServing
	inRef, err := units.Convert(q, ref.Unit, profile.ConversionContext())
	if err != nil {
		return units.Amount{}, err
	}
	return inRef.Amount.Quo(ref.Amount)
}

// ScaleNutrients scales every nutrient present in profile to q, exactly.
// Kinds the profile lacks stay absent.
func ScaleNutrients(profile domain.NutrientProfile, q units.Quantity) (domain.Nutrients, error) {
	factor, err := ScaleFactor(profile, q)
	if err != nil {
		return nil, err
	}
	out := make(domain.Nutrients, len(profile.Nutrients))
	for kind, amount := range profile.Nutrients {
		out[kind] = amount.Mul(factor)
	}
	return out, nil
}
