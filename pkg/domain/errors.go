package domain

import (
	"errors"
	"fmt"

	"nutrilog/pkg/units"
)

// Sentinels for errors.Is checks.
var (
	ErrNotFound                  = errors.New("not found")
	ErrDuplicate                 = errors.New("already exists")
	ErrFoodNotFound              = errors.New("food not found")
	ErrProfileDataInconsistent   = errors.New("profile data inconsistent")
	ErrUnitConversionUnsupported = units.ErrConversionUnsupported
	ErrInvalidEntry              = errors.New("invalid entry")
)

// UnitConversionUnsupportedError names the missing conversion fact.
type UnitConversionUnsupportedError = units.ConversionError

// NotFoundError is returned by stores when a record is missing.
type NotFoundError struct {
	Entity EntityType
	ID     string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// Is matches ErrNotFound.
func (e NotFoundError) Is(target error) bool { return target == ErrNotFound }

// DuplicateError is returned by stores when an append reuses an ID or a
// barcode already belongs to another food.
type DuplicateError struct {
	Entity EntityType
	ID     string
}

func (e DuplicateError) Error() string {
	return fmt.Sprintf("%s %s already exists", e.Entity, e.ID)
}

// Is matches ErrDuplicate.
func (e DuplicateError) Is(target error) bool { return target == ErrDuplicate }

// FoodNotFoundError is returned when a barcode or id does not resolve.
// Callers typically respond by offering manual entry.
type FoodNotFoundError struct {
	Barcode string
	ID      string
	Reason  string
}

func (e *FoodNotFoundError) Error() string {
	var msg string
	switch {
	case e.Barcode != "":
		msg = fmt.Sprintf("food not found for barcode %q", e.Barcode)
	default:
		msg = fmt.Sprintf("food %q not found", e.ID)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// Is matches ErrFoodNotFound.
func (e *FoodNotFoundError) Is(target error) bool { return target == ErrFoodNotFound }

// ProfileDataInconsistentError reports a malformed profile from the store.
// It aborts the operation and is not worth retrying.
type ProfileDataInconsistentError struct {
	FoodID string
	Reason string
}

func (e *ProfileDataInconsistentError) Error() string {
	return fmt.Sprintf("nutrient profile for food %q is inconsistent: %s", e.FoodID, e.Reason)
}

// Is matches ErrProfileDataInconsistent.
func (e *ProfileDataInconsistentError) Is(target error) bool {
	return target == ErrProfileDataInconsistent
}
