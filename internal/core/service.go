package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"nutrilog/internal/blob"
	"nutrilog/internal/infra/persistence/memory"
	"nutrilog/pkg/domain"
	"nutrilog/pkg/units"
)

// batchConcurrency bounds the profile fetches LogBatch runs at once.
const batchConcurrency = 4

// ServiceOption customises a Service.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	logger  Logger
	clock   Clock
	audit   AuditRecorder
	metrics MetricsRecorder
	tracer  Tracer
	policy  RoundingPolicy
	ids     IDGenerator
	blobs   blob.Store
	pref    units.Preference
}

func defaultServiceOptions() serviceOptions {
	return serviceOptions{
		logger:  noopLogger{},
		clock:   ClockFunc(time.Now),
		audit:   noopAudit{},
		metrics: noopMetrics{},
		tracer:  noopTracer{},
		policy:  DefaultRoundingPolicy(),
		ids:     newUUID,
		pref:    units.DefaultPreference(),
	}
}

// WithLogger sets the service logger. Nil keeps the no-op logger.
func WithLogger(l Logger) ServiceOption {
	return func(o *serviceOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock overrides the time source used for unset timestamps.
func WithClock(c Clock) ServiceOption {
	return func(o *serviceOptions) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithAuditRecorder receives one entry per mutating call.
func WithAuditRecorder(r AuditRecorder) ServiceOption {
	return func(o *serviceOptions) {
		if r != nil {
			o.audit = r
		}
	}
}

// WithMetricsRecorder observes every call.
func WithMetricsRecorder(r MetricsRecorder) ServiceOption {
	return func(o *serviceOptions) {
		if r != nil {
			o.metrics = r
		}
	}
}

// WithTracer wraps every call in a span.
func WithTracer(t Tracer) ServiceOption {
	return func(o *serviceOptions) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithRoundingPolicy sets how nutrient snapshots and totals are rounded.
func WithRoundingPolicy(p RoundingPolicy) ServiceOption {
	return func(o *serviceOptions) { o.policy = p }
}

// WithIDGenerator replaces the UUID generator, mostly for tests.
func WithIDGenerator(ids IDGenerator) ServiceOption {
	return func(o *serviceOptions) {
		if ids != nil {
			o.ids = ids
		}
	}
}

// WithBlobStore enables ExportDaySummary.
func WithBlobStore(store blob.Store) ServiceOption {
	return func(o *serviceOptions) { o.blobs = store }
}

// WithPreference sets the display units used by exports.
func WithPreference(p units.Preference) ServiceOption {
	return func(o *serviceOptions) { o.pref = p }
}

// Service wires the resolver, builder and aggregator to a store and records
// every call through the configured logger, metrics, tracer and audit seams.
type Service struct {
	store    domain.PersistentStore
	resolver *Resolver
	builder  *Builder
	agg      Aggregator
	exporter *SummaryExporter

	policy  RoundingPolicy
	ids     IDGenerator
	logger  Logger
	clock   Clock
	audit   AuditRecorder
	metrics MetricsRecorder
	tracer  Tracer
}

// NewService constructs a service backed by store.
func NewService(store domain.PersistentStore, opts ...ServiceOption) *Service {
	o := defaultServiceOptions()
	for _, opt := range opts {
		opt(&o)
	}
	svc := &Service{
		store:    store,
		resolver: NewResolver(store, o.ids),
		builder:  NewBuilder(store, o.policy, o.ids),
		policy:   o.policy,
		ids:      o.ids,
		logger:   o.logger,
		clock:    o.clock,
		audit:    o.audit,
		metrics:  o.metrics,
		tracer:   o.tracer,
	}
	if o.blobs != nil {
		svc.exporter = NewSummaryExporter(o.blobs, o.policy, o.pref, o.clock)
	}
	return svc
}

// NewInMemoryService creates a service over a fresh memory store.
func NewInMemoryService(opts ...ServiceOption) *Service {
	return NewService(memory.NewStore(), opts...)
}

// Store returns the underlying store.
func (s *Service) Store() domain.PersistentStore { return s.store }

// Resolver exposes the service's resolver for read-only lookups.
func (s *Service) Resolver() *Resolver { return s.resolver }

// LogInput carries the per-entry details shared by the Log* calls.
type LogInput struct {
	UserID string
	// Quantity nil logs the food's default serving.
	Quantity  *units.Quantity
	MealSlot  domain.MealSlot
	Timestamp time.Time
}

// BatchItem is one food of a LogBatch call. Exactly one of FoodID and
// Barcode is set.
type BatchItem struct {
	FoodID  string
	Barcode string
	LogInput
}

type opKind int

const (
	opQuery opKind = iota
	opMutation
)

// run wraps fn with tracing, metrics, logging and, for mutations, auditing.
// fn returns the id of the entity it touched.
func (s *Service) run(ctx context.Context, op string, kind opKind, userID string, fn func(context.Context) (string, error)) error {
	ctx, span := s.tracer.Start(ctx, op)
	start := time.Now()
	entityID, err := fn(ctx)
	elapsed := time.Since(start)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, elapsed)

	if kind == opMutation {
		entry := AuditEntry{Operation: op, UserID: userID, EntityID: entityID, Status: AuditStatusSuccess, At: s.clock.Now()}
		if err != nil {
			entry.Status = AuditStatusError
			entry.Error = err.Error()
		}
		s.audit.Record(ctx, entry)
	}

	fields := []any{"operation", op, "user_id", userID, "duration", elapsed}
	if entityID != "" {
		fields = append(fields, "entity_id", entityID)
	}
	switch {
	case err == nil && kind == opMutation:
		s.logger.Info("operation completed", fields...)
	case err == nil:
		s.logger.Debug("operation completed", fields...)
	case recoverable(err):
		s.logger.Warn("operation rejected", append(fields, "error", err)...)
	default:
		s.logger.Error("operation failed", append(fields, "error", err)...)
	}
	return err
}

// recoverable errors are ones the user can fix by retrying differently.
func recoverable(err error) bool {
	return errors.Is(err, domain.ErrFoodNotFound) ||
		errors.Is(err, domain.ErrUnitConversionUnsupported) ||
		errors.Is(err, domain.ErrInvalidEntry) ||
		errors.Is(err, domain.ErrNotFound)
}

func (s *Service) request(food domain.FoodIdentity, def units.Quantity, in LogInput) BuildRequest {
	q := def
	if in.Quantity != nil {
		q = *in.Quantity
	}
	ts := in.Timestamp
	if ts.IsZero() {
		ts = s.clock.Now()
	}
	return BuildRequest{UserID: in.UserID, Food: food, Quantity: q, MealSlot: in.MealSlot, Timestamp: ts}
}

func (s *Service) logResolved(ctx context.Context, res Resolution, in LogInput) (domain.LogEntry, error) {
	entry, err := s.builder.BuildWithProfile(s.request(res.Food, res.DefaultServing, in), res.Profile)
	if err != nil {
		return domain.LogEntry{}, err
	}
	if err := s.store.AppendEntry(ctx, entry); err != nil {
		return domain.LogEntry{}, fmt.Errorf("append entry: %w", err)
	}
	return entry, nil
}

// LogBarcode resolves a decoded barcode and appends the resulting entry.
func (s *Service) LogBarcode(ctx context.Context, code string, in LogInput) (domain.LogEntry, error) {
	var entry domain.LogEntry
	err := s.run(ctx, "log_barcode", opMutation, in.UserID, func(ctx context.Context) (string, error) {
		res, err := s.resolver.ResolveByBarcode(ctx, code)
		if err != nil {
			return "", err
		}
		entry, err = s.logResolved(ctx, res, in)
		return entry.ID, err
	})
	return entry, err
}

// LogFood resolves a catalog id and appends the resulting entry.
func (s *Service) LogFood(ctx context.Context, foodID string, in LogInput) (domain.LogEntry, error) {
	var entry domain.LogEntry
	err := s.run(ctx, "log_food", opMutation, in.UserID, func(ctx context.Context) (string, error) {
		res, err := s.resolver.ResolveByID(ctx, foodID)
		if err != nil {
			return "", err
		}
		entry, err = s.logResolved(ctx, res, in)
		return entry.ID, err
	})
	return entry, err
}

// LogManual records a user-created food and logs it. The entry is built
// before anything is written, and a failed write leaves no food behind.
func (s *Service) LogManual(ctx context.Context, m ManualEntry, in LogInput) (domain.LogEntry, error) {
	var entry domain.LogEntry
	err := s.run(ctx, "log_manual", opMutation, in.UserID, func(ctx context.Context) (string, error) {
		res, err := s.resolver.ResolveManualEntry(m)
		if err != nil {
			return "", err
		}
		built, err := s.builder.BuildWithProfile(s.request(res.Food, res.DefaultServing, in), res.Profile)
		if err != nil {
			return "", err
		}
		if err := s.saveManual(ctx, res, built); err != nil {
			return "", err
		}
		entry = built
		return entry.ID, nil
	})
	return entry, err
}

// saveManual writes the user food and its entry together when the store can,
// and otherwise removes the food again if the append fails.
func (s *Service) saveManual(ctx context.Context, res Resolution, entry domain.LogEntry) error {
	if w, ok := s.store.(domain.FoodEntryWriter); ok {
		if err := w.PutFoodWithEntry(ctx, res.Food, res.Profile, entry); err != nil {
			return fmt.Errorf("save user food: %w", err)
		}
		return nil
	}
	if err := s.store.PutFood(ctx, res.Food, res.Profile); err != nil {
		return fmt.Errorf("save user food: %w", err)
	}
	if err := s.store.AppendEntry(ctx, entry); err != nil {
		if d, ok := s.store.(domain.FoodDeleter); ok {
			if derr := d.DeleteFood(ctx, res.Food.ID); derr != nil {
				s.logger.Error("manual entry rollback failed", "food_id", res.Food.ID, "error", derr)
			}
		} else {
			s.logger.Error("manual entry rollback unsupported", "food_id", res.Food.ID)
		}
		return fmt.Errorf("append entry: %w", err)
	}
	return nil
}

// LogBatch logs several foods for one user, all or nothing. Profiles are
// resolved concurrently; the entries are appended only once every item has
// been built.
func (s *Service) LogBatch(ctx context.Context, userID string, items []BatchItem) ([]domain.LogEntry, error) {
	var entries []domain.LogEntry
	err := s.run(ctx, "log_batch", opMutation, userID, func(ctx context.Context) (string, error) {
		if len(items) == 0 {
			return "", fmt.Errorf("%w: batch is empty", domain.ErrInvalidEntry)
		}
		built := make([]domain.LogEntry, len(items))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(batchConcurrency)
		for i, item := range items {
			i, item := i, item
			g.Go(func() error {
				res, err := s.resolveItem(gctx, item)
				if err != nil {
					return fmt.Errorf("item %d: %w", i, err)
				}
				in := item.LogInput
				in.UserID = userID
				e, err := s.builder.BuildWithProfile(s.request(res.Food, res.DefaultServing, in), res.Profile)
				if err != nil {
					return fmt.Errorf("item %d: %w", i, err)
				}
				built[i] = e
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return "", err
		}
		if err := s.appendAll(ctx, userID, built); err != nil {
			return "", err
		}
		entries = built
		return fmt.Sprintf("%d entries", len(built)), nil
	})
	return entries, err
}

func (s *Service) resolveItem(ctx context.Context, item BatchItem) (Resolution, error) {
	switch {
	case item.FoodID != "" && item.Barcode != "":
		return Resolution{}, fmt.Errorf("%w: set either a food id or a barcode", domain.ErrInvalidEntry)
	case item.Barcode != "":
		return s.resolver.ResolveByBarcode(ctx, item.Barcode)
	default:
		return s.resolver.ResolveByID(ctx, item.FoodID)
	}
}

// appendAll uses the store's atomic batch append when it has one and
// otherwise deletes what it already appended when a later append fails.
func (s *Service) appendAll(ctx context.Context, userID string, entries []domain.LogEntry) error {
	if batch, ok := s.store.(domain.BatchAppender); ok {
		if err := batch.AppendEntries(ctx, entries); err != nil {
			return fmt.Errorf("append batch: %w", err)
		}
		return nil
	}
	for i, e := range entries {
		if err := s.store.AppendEntry(ctx, e); err != nil {
			for _, done := range entries[:i] {
				if derr := s.store.DeleteEntry(ctx, userID, done.ID); derr != nil {
					s.logger.Error("batch rollback failed", "entry_id", done.ID, "error", derr)
				}
			}
			return fmt.Errorf("append entry %s: %w", e.ID, err)
		}
	}
	return nil
}

// LogWater records water intake. q may be any volume or mass unit.
func (s *Service) LogWater(ctx context.Context, userID string, q units.Quantity, ts time.Time) (domain.WaterEntry, error) {
	var entry domain.WaterEntry
	err := s.run(ctx, "log_water", opMutation, userID, func(ctx context.Context) (string, error) {
		if strings.TrimSpace(userID) == "" {
			return "", fmt.Errorf("%w: user id is required", domain.ErrInvalidEntry)
		}
		if ts.IsZero() {
			ts = s.clock.Now()
		}
		w, err := domain.NewWaterEntry(s.ids(), userID, q, ts)
		if err != nil {
			return "", err
		}
		if err := s.store.AppendWater(ctx, w); err != nil {
			return "", fmt.Errorf("append water: %w", err)
		}
		entry = w
		return w.ID, nil
	})
	return entry, err
}

// DeleteEntry removes one of the user's log entries.
func (s *Service) DeleteEntry(ctx context.Context, userID, id string) error {
	return s.run(ctx, "delete_entry", opMutation, userID, func(ctx context.Context) (string, error) {
		return id, s.store.DeleteEntry(ctx, userID, id)
	})
}

// DeleteWater removes one of the user's water entries.
func (s *Service) DeleteWater(ctx context.Context, userID, id string) error {
	return s.run(ctx, "delete_water", opMutation, userID, func(ctx context.Context) (string, error) {
		return id, s.store.DeleteWater(ctx, userID, id)
	})
}

func (s *Service) load(ctx context.Context, userID string, r domain.TimeRange) ([]domain.LogEntry, []domain.WaterEntry, error) {
	entries, err := s.store.ListEntries(ctx, userID, r)
	if err != nil {
		return nil, nil, fmt.Errorf("list entries: %w", err)
	}
	water, err := s.store.ListWater(ctx, userID, r)
	if err != nil {
		return nil, nil, fmt.Errorf("list water: %w", err)
	}
	return entries, water, nil
}

// MealTotal sums one meal slot within day.
func (s *Service) MealTotal(ctx context.Context, userID string, slot domain.MealSlot, day domain.TimeRange) (domain.AggregateTotal, error) {
	var total domain.AggregateTotal
	err := s.run(ctx, "meal_total", opQuery, userID, func(ctx context.Context) (string, error) {
		parsed, err := domain.ParseMealSlot(string(slot))
		if err != nil {
			return "", fmt.Errorf("%w: %v", domain.ErrInvalidEntry, err)
		}
		entries, err := s.store.ListEntries(ctx, userID, day)
		if err != nil {
			return "", fmt.Errorf("list entries: %w", err)
		}
		total = s.policy.ApplyTotal(s.agg.Aggregate(entries, domain.MealScope(parsed, day)))
		return "", nil
	})
	return total, err
}

// DayTotal sums every entry and all water within day.
func (s *Service) DayTotal(ctx context.Context, userID string, day domain.TimeRange) (domain.AggregateTotal, error) {
	var total domain.AggregateTotal
	err := s.run(ctx, "day_total", opQuery, userID, func(ctx context.Context) (string, error) {
		entries, water, err := s.load(ctx, userID, day)
		if err != nil {
			return "", err
		}
		total = s.policy.ApplyTotal(s.agg.Total(entries, water, domain.DayScope(day)))
		return "", nil
	})
	return total, err
}

// DaySummary breaks day down by meal slot.
func (s *Service) DaySummary(ctx context.Context, userID string, day domain.TimeRange) (domain.DaySummary, error) {
	var summary domain.DaySummary
	err := s.run(ctx, "day_summary", opQuery, userID, func(ctx context.Context) (string, error) {
		entries, water, err := s.load(ctx, userID, day)
		if err != nil {
			return "", err
		}
		summary = s.roundSummary(s.agg.Summarize(entries, water, day))
		return "", nil
	})
	return summary, err
}

func (s *Service) roundSummary(in domain.DaySummary) domain.DaySummary {
	out := domain.DaySummary{Range: in.Range, Day: s.policy.ApplyTotal(in.Day), Meals: make(map[domain.MealSlot]domain.AggregateTotal, len(in.Meals))}
	for slot, meal := range in.Meals {
		out.Meals[slot] = s.policy.ApplyTotal(meal)
	}
	return out
}

// ExportDaySummary writes the day's summary to the blob store. Re-exporting
// a day overwrites the previous document.
func (s *Service) ExportDaySummary(ctx context.Context, userID string, day domain.TimeRange) (blob.Info, error) {
	var info blob.Info
	err := s.run(ctx, "export_day_summary", opMutation, userID, func(ctx context.Context) (string, error) {
		if s.exporter == nil {
			return "", errors.New("export: no blob store configured")
		}
		entries, water, err := s.load(ctx, userID, day)
		if err != nil {
			return "", err
		}
		summary := s.agg.Summarize(entries, water, day)
		info, err = s.exporter.Export(ctx, userID, summary, entries)
		return info.Key, err
	})
	return info, err
}
