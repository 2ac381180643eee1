// Package memory provides the in-memory catalog and log store. It backs
// tests and ephemeral runs directly and is embedded by the snapshotting
// sqlite and postgres stores.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"nutrilog/pkg/domain"
)

var (
	_ domain.PersistentStore = (*Store)(nil)
	_ domain.BatchAppender   = (*Store)(nil)
	_ domain.FoodEntryWriter = (*Store)(nil)
	_ domain.FoodDeleter     = (*Store)(nil)
)

// Snapshot bucket names, in persistence order.
const (
	BucketFoods    = "foods"
	BucketProfiles = "profiles"
	BucketEntries  = "entries"
	BucketWater    = "water"
)

// BucketNames lists every snapshot bucket.
var BucketNames = []string{BucketFoods, BucketProfiles, BucketEntries, BucketWater}

// Snapshot is a point-in-time copy of the store, keyed by record id.
type Snapshot struct {
	Foods    map[string]domain.FoodIdentity    `json:"foods"`
	Profiles map[string]domain.NutrientProfile `json:"profiles"`
	Entries  map[string]domain.LogEntry        `json:"entries"`
	Water    map[string]domain.WaterEntry      `json:"water"`
}

// Bucket returns a pointer to the named section so callers can decode into
// or encode from it generically.
func (s *Snapshot) Bucket(name string) (any, bool) {
	switch name {
	case BucketFoods:
		return &s.Foods, true
	case BucketProfiles:
		return &s.Profiles, true
	case BucketEntries:
		return &s.Entries, true
	case BucketWater:
		return &s.Water, true
	}
	return nil, false
}

// CommitHook runs under the store lock after a mutation has been staged and
// before it becomes visible. A non-nil error discards the mutation. touched
// names the buckets the mutation changed.
type CommitHook func(ctx context.Context, next Snapshot, touched []string) error

// Option configures a Store.
type Option func(*Store)

// WithCommitHook installs a hook that must succeed for every mutation.
func WithCommitHook(h CommitHook) Option {
	return func(s *Store) { s.hook = h }
}

type state struct {
	foods    map[string]domain.FoodIdentity
	barcodes map[string]string // barcode -> food id
	profiles map[string]domain.NutrientProfile
	entries  map[string]domain.LogEntry
	water    map[string]domain.WaterEntry
}

func newState() state {
	return state{
		foods:    map[string]domain.FoodIdentity{},
		barcodes: map[string]string{},
		profiles: map[string]domain.NutrientProfile{},
		entries:  map[string]domain.LogEntry{},
		water:    map[string]domain.WaterEntry{},
	}
}

// clone copies the maps. Stored values are already private copies and are
// never mutated in place, so values are shared.
func (st state) clone() state {
	out := state{
		foods:    make(map[string]domain.FoodIdentity, len(st.foods)),
		barcodes: make(map[string]string, len(st.barcodes)),
		profiles: make(map[string]domain.NutrientProfile, len(st.profiles)),
		entries:  make(map[string]domain.LogEntry, len(st.entries)),
		water:    make(map[string]domain.WaterEntry, len(st.water)),
	}
	for k, v := range st.foods {
		out.foods[k] = v
	}
	for k, v := range st.barcodes {
		out.barcodes[k] = v
	}
	for k, v := range st.profiles {
		out.profiles[k] = v
	}
	for k, v := range st.entries {
		out.entries[k] = v
	}
	for k, v := range st.water {
		out.water[k] = v
	}
	return out
}

func (st state) snapshot() Snapshot {
	snap := Snapshot{
		Foods:    make(map[string]domain.FoodIdentity, len(st.foods)),
		Profiles: make(map[string]domain.NutrientProfile, len(st.profiles)),
		Entries:  make(map[string]domain.LogEntry, len(st.entries)),
		Water:    make(map[string]domain.WaterEntry, len(st.water)),
	}
	for k, v := range st.foods {
		snap.Foods[k] = v
	}
	for k, v := range st.profiles {
		snap.Profiles[k] = v.Clone()
	}
	for k, v := range st.entries {
		snap.Entries[k] = v.Clone()
	}
	for k, v := range st.water {
		snap.Water[k] = v
	}
	return snap
}

func stateFromSnapshot(snap Snapshot) state {
	st := newState()
	for k, v := range snap.Foods {
		st.foods[k] = v
		if v.Barcode != "" {
			st.barcodes[v.Barcode] = k
		}
	}
	for k, v := range snap.Profiles {
		st.profiles[k] = v.Clone()
	}
	for k, v := range snap.Entries {
		st.entries[k] = v.Clone()
	}
	for k, v := range snap.Water {
		st.water[k] = v
	}
	return st
}

// Store is a RWMutex-guarded PersistentStore. Reads return private copies.
type Store struct {
	mu    sync.RWMutex
	state state
	hook  CommitHook
}

// NewStore returns an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{state: newState()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ExportState returns a deep copy of the current state.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.snapshot()
}

// ImportState replaces the current state without running the commit hook.
func (s *Store) ImportState(snap Snapshot) {
	st := stateFromSnapshot(snap)
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// update stages fn against a copy of the state and commits it only when fn
// and the commit hook both succeed.
func (s *Store) update(ctx context.Context, touched []string, fn func(*state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.state.clone()
	if err := fn(&next); err != nil {
		return err
	}
	if s.hook != nil {
		if err := s.hook(ctx, next.snapshot(), touched); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
	}
	s.state = next
	return nil
}

func (s *Store) read(ctx context.Context, fn func(*state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&s.state)
}

// PutFood inserts or replaces a catalog food and publishes its profile. A
// replaced profile gets the next version number; existing log entries keep
// the snapshot they were built with.
func (s *Store) PutFood(ctx context.Context, food domain.FoodIdentity, profile domain.NutrientProfile) error {
	profile, err := checkFood(food, profile)
	if err != nil {
		return err
	}
	return s.update(ctx, []string{BucketFoods, BucketProfiles}, func(st *state) error {
		return st.putFood(food, profile)
	})
}

// PutFoodWithEntry publishes a food and appends an entry logged against it
// as one mutation: either both become visible or neither does.
func (s *Store) PutFoodWithEntry(ctx context.Context, food domain.FoodIdentity, profile domain.NutrientProfile, entry domain.LogEntry) error {
	profile, err := checkFood(food, profile)
	if err != nil {
		return err
	}
	if err := checkEntry(entry); err != nil {
		return err
	}
	return s.update(ctx, []string{BucketFoods, BucketProfiles, BucketEntries}, func(st *state) error {
		if err := st.putFood(food, profile); err != nil {
			return err
		}
		return st.appendEntry(entry)
	})
}

// DeleteFood removes a food and its profile. Log entries built from it keep
// their snapshots.
func (s *Store) DeleteFood(ctx context.Context, id string) error {
	return s.update(ctx, []string{BucketFoods, BucketProfiles}, func(st *state) error {
		food, ok := st.foods[id]
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityFood, ID: id}
		}
		if food.Barcode != "" && st.barcodes[food.Barcode] == id {
			delete(st.barcodes, food.Barcode)
		}
		delete(st.foods, id)
		delete(st.profiles, id)
		return nil
	})
}

func checkFood(food domain.FoodIdentity, profile domain.NutrientProfile) (domain.NutrientProfile, error) {
	if strings.TrimSpace(food.ID) == "" {
		return profile, fmt.Errorf("%w: food id is required", domain.ErrInvalidEntry)
	}
	if !food.SourceKind.Valid() {
		return profile, fmt.Errorf("%w: food %s has unknown source kind %q", domain.ErrInvalidEntry, food.ID, food.SourceKind)
	}
	if profile.FoodID == "" {
		profile.FoodID = food.ID
	}
	if profile.FoodID != food.ID {
		return profile, &domain.ProfileDataInconsistentError{FoodID: food.ID, Reason: fmt.Sprintf("profile is keyed to %q", profile.FoodID)}
	}
	if err := profile.Validate(); err != nil {
		return profile, err
	}
	return profile.Clone(), nil
}

func (st *state) putFood(food domain.FoodIdentity, profile domain.NutrientProfile) error {
	if food.Barcode != "" {
		if owner, ok := st.barcodes[food.Barcode]; ok && owner != food.ID {
			return domain.DuplicateError{Entity: domain.EntityFood, ID: "barcode " + food.Barcode}
		}
	}
	if prev, ok := st.foods[food.ID]; ok && prev.Barcode != "" && prev.Barcode != food.Barcode {
		delete(st.barcodes, prev.Barcode)
	}
	if prev, ok := st.profiles[food.ID]; ok && profile.Version <= prev.Version {
		profile.Version = prev.Version + 1
	}
	if profile.Version <= 0 {
		profile.Version = 1
	}
	st.foods[food.ID] = food
	if food.Barcode != "" {
		st.barcodes[food.Barcode] = food.ID
	}
	st.profiles[food.ID] = profile
	return nil
}

// GetFood implements domain.ProfileStore.
func (s *Store) GetFood(ctx context.Context, id string) (domain.FoodIdentity, error) {
	var out domain.FoodIdentity
	err := s.read(ctx, func(st *state) error {
		food, ok := st.foods[id]
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityFood, ID: id}
		}
		out = food
		return nil
	})
	return out, err
}

// GetByBarcode implements domain.ProfileStore. code must already be
// normalized.
func (s *Store) GetByBarcode(ctx context.Context, code string) (domain.FoodIdentity, error) {
	var out domain.FoodIdentity
	err := s.read(ctx, func(st *state) error {
		id, ok := st.barcodes[code]
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityFood, ID: "barcode " + code}
		}
		out = st.foods[id]
		return nil
	})
	return out, err
}

// GetProfile implements domain.ProfileStore.
func (s *Store) GetProfile(ctx context.Context, foodID string) (domain.NutrientProfile, error) {
	var out domain.NutrientProfile
	err := s.read(ctx, func(st *state) error {
		p, ok := st.profiles[foodID]
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityProfile, ID: foodID}
		}
		out = p.Clone()
		return nil
	})
	return out, err
}

// ListFoods returns every catalog food ordered by id.
func (s *Store) ListFoods(ctx context.Context) ([]domain.FoodIdentity, error) {
	var out []domain.FoodIdentity
	err := s.read(ctx, func(st *state) error {
		out = make([]domain.FoodIdentity, 0, len(st.foods))
		for _, f := range st.foods {
			out = append(out, f)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

func checkEntry(e domain.LogEntry) error {
	if e.ID == "" || e.UserID == "" {
		return fmt.Errorf("%w: log entry needs an id and a user", domain.ErrInvalidEntry)
	}
	return nil
}

// AppendEntry implements domain.LogStore.
func (s *Store) AppendEntry(ctx context.Context, entry domain.LogEntry) error {
	return s.AppendEntries(ctx, []domain.LogEntry{entry})
}

// AppendEntries appends all entries or none.
func (s *Store) AppendEntries(ctx context.Context, entries []domain.LogEntry) error {
	for _, e := range entries {
		if err := checkEntry(e); err != nil {
			return err
		}
	}
	return s.update(ctx, []string{BucketEntries}, func(st *state) error {
		for _, e := range entries {
			if err := st.appendEntry(e); err != nil {
				return err
			}
		}
		return nil
	})
}

func (st *state) appendEntry(e domain.LogEntry) error {
	if _, exists := st.entries[e.ID]; exists {
		return domain.DuplicateError{Entity: domain.EntityLogEntry, ID: e.ID}
	}
	st.entries[e.ID] = e.Clone()
	return nil
}

// AppendWater implements domain.LogStore.
func (s *Store) AppendWater(ctx context.Context, entry domain.WaterEntry) error {
	if entry.ID == "" || entry.UserID == "" {
		return fmt.Errorf("%w: water entry needs an id and a user", domain.ErrInvalidEntry)
	}
	return s.update(ctx, []string{BucketWater}, func(st *state) error {
		if _, exists := st.water[entry.ID]; exists {
			return domain.DuplicateError{Entity: domain.EntityWaterEntry, ID: entry.ID}
		}
		st.water[entry.ID] = entry
		return nil
	})
}

// ListEntries implements domain.LogStore.
func (s *Store) ListEntries(ctx context.Context, userID string, r domain.TimeRange) ([]domain.LogEntry, error) {
	var out []domain.LogEntry
	err := s.read(ctx, func(st *state) error {
		for _, e := range st.entries {
			if e.UserID == userID && r.Contains(e.Timestamp) {
				out = append(out, e.Clone())
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})
	return out, err
}

// ListWater implements domain.LogStore.
func (s *Store) ListWater(ctx context.Context, userID string, r domain.TimeRange) ([]domain.WaterEntry, error) {
	var out []domain.WaterEntry
	err := s.read(ctx, func(st *state) error {
		for _, w := range st.water {
			if w.UserID == userID && r.Contains(w.Timestamp) {
				out = append(out, w)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})
	return out, err
}

// DeleteEntry removes one of the user's entries.
func (s *Store) DeleteEntry(ctx context.Context, userID, id string) error {
	return s.update(ctx, []string{BucketEntries}, func(st *state) error {
		e, ok := st.entries[id]
		if !ok || e.UserID != userID {
			return domain.NotFoundError{Entity: domain.EntityLogEntry, ID: id}
		}
		delete(st.entries, id)
		return nil
	})
}

// DeleteWater removes one of the user's water entries.
func (s *Store) DeleteWater(ctx context.Context, userID, id string) error {
	return s.update(ctx, []string{BucketWater}, func(st *state) error {
		w, ok := st.water[id]
		if !ok || w.UserID != userID {
			return domain.NotFoundError{Entity: domain.EntityWaterEntry, ID: id}
		}
		delete(st.water, id)
		return nil
	})
}
