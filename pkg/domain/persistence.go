package domain

import "context"

// ProfileStore is the read-only food catalog the engine resolves against.
// Implementations must never expose a partially written profile. Misses are
// reported as NotFoundError.
type ProfileStore interface {
	GetFood(ctx context.Context, id string) (FoodIdentity, error)
	GetByBarcode(ctx context.Context, code string) (FoodIdentity, error)
	GetProfile(ctx context.Context, foodID string) (NutrientProfile, error)
}

// LogStore is the append-only user log. Entries are never updated in place;
// removal is a log-level delete.
type LogStore interface {
	AppendEntry(ctx context.Context, entry LogEntry) error
	AppendWater(ctx context.Context, entry WaterEntry) error
	// ListEntries returns the user's entries inside r ordered by timestamp, then ID.
	ListEntries(ctx context.Context, userID string, r TimeRange) ([]LogEntry, error)
	ListWater(ctx context.Context, userID string, r TimeRange) ([]WaterEntry, error)
	DeleteEntry(ctx context.Context, userID, id string) error
	DeleteWater(ctx context.Context, userID, id string) error
}

// FoodSink accepts catalog records. Seeding and user-created food persistence
// go through it; the resolver itself never writes.
type FoodSink interface {
	PutFood(ctx context.Context, food FoodIdentity, profile NutrientProfile) error
}

// PersistentStore is implemented by the memory, sqlite and postgres backends.
type PersistentStore interface {
	ProfileStore
	LogStore
	FoodSink
}

// BatchAppender is implemented by log stores that can append several
// entries atomically. Callers fall back to AppendEntry plus compensation
// when a store lacks it.
type BatchAppender interface {
	AppendEntries(ctx context.Context, entries []LogEntry) error
}

// FoodEntryWriter is implemented by stores that can publish a food and log
// an entry against it in one atomic step.
type FoodEntryWriter interface {
	PutFoodWithEntry(ctx context.Context, food FoodIdentity, profile NutrientProfile, entry LogEntry) error
}

// FoodDeleter removes a catalog food and its profile. It is the
// compensation path for stores without FoodEntryWriter.
type FoodDeleter interface {
	DeleteFood(ctx context.Context, id string) error
}
