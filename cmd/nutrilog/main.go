// Command nutrilog seeds a food catalog, logs foods and water, and prints or
// exports daily nutrient summaries. Storage, blob and logging backends are
// selected through NUTRILOG_* environment variables.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"nutrilog/internal/blob"
	"nutrilog/internal/catalog"
	"nutrilog/internal/core"
	"nutrilog/pkg/domain"
	"nutrilog/pkg/units"
)

var (
	exitFunc = os.Exit
	nowFunc  = time.Now
)

const usage = `usage: nutrilog [-metrics expvar|prom] [-trace] <command> [flags]

commands:
  seed      load a catalog file (or the starter catalog) into the store
  log       log a food by barcode, catalog id or manual description
  water     log water intake
  delete    delete a log or water entry
  summary   print a day's totals per meal
  export    write a day's summary to the blob store
`

func main() {
	code := cli(os.Args[1:], os.Stdout, os.Stderr)
	exitFunc(code)
}

type app struct {
	stdout, stderr io.Writer
	store          domain.PersistentStore
	opts           []core.ServiceOption
	flush          []func()
}

func cli(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("nutrilog", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { _, _ = fmt.Fprint(stderr, usage) }
	metrics := fs.String("metrics", "", "dump service metrics to stderr on exit (expvar|prom)")
	trace := fs.Bool("trace", false, "write one JSON line per service call to stderr")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return 2
	}

	ctx := context.Background()
	a := &app{stdout: stdout, stderr: stderr}
	if err := a.setup(ctx, *metrics, *trace); err != nil {
		_, _ = fmt.Fprintf(stderr, "nutrilog: %v\n", err)
		return 1
	}
	defer a.close()

	var err error
	switch cmd, cmdArgs := rest[0], rest[1:]; cmd {
	case "seed":
		err = a.seed(ctx, cmdArgs)
	case "log":
		err = a.log(ctx, cmdArgs)
	case "water":
		err = a.water(ctx, cmdArgs)
	case "delete":
		err = a.delete(ctx, cmdArgs)
	case "summary":
		err = a.summary(ctx, cmdArgs)
	case "export":
		err = a.export(ctx, cmdArgs)
	default:
		_, _ = fmt.Fprintf(stderr, "nutrilog: unknown command %q\n", cmd)
		fs.Usage()
		return 2
	}
	switch {
	case err == nil:
		return 0
	case errors.Is(err, flag.ErrHelp):
		return 0
	case errors.Is(err, errUsage):
		_, _ = fmt.Fprintf(stderr, "nutrilog %s: %v\n", rest[0], err)
		return 2
	default:
		_, _ = fmt.Fprintf(stderr, "nutrilog %s: %v\n", rest[0], err)
		return 1
	}
}

var errUsage = errors.New("usage")

func usageErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}

func (a *app) setup(ctx context.Context, metrics string, trace bool) error {
	mode := os.Getenv("NUTRILOG_LOG_MODE")
	if mode == "" {
		mode = "nop"
	}
	logger, err := core.NewZapLogger(mode)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	a.flush = append(a.flush, func() { _ = logger.Sync() })

	policy, err := core.RoundingPolicyFromEnv()
	if err != nil {
		return err
	}
	a.opts = append(a.opts, core.WithLogger(logger), core.WithRoundingPolicy(policy))

	switch metrics {
	case "":
	case "expvar":
		rec := core.NewExpvarMetricsRecorder("")
		a.opts = append(a.opts, core.WithMetricsRecorder(rec))
		a.flush = append(a.flush, func() {
			_ = json.NewEncoder(a.stderr).Encode(rec.Snapshot())
		})
	case "prom":
		reg := prometheus.NewRegistry()
		rec, err := core.NewPrometheusMetricsRecorder(reg)
		if err != nil {
			return err
		}
		a.opts = append(a.opts, core.WithMetricsRecorder(rec))
		a.flush = append(a.flush, func() { writePrometheus(a.stderr, reg) })
	default:
		return fmt.Errorf("unknown metrics exporter %q", metrics)
	}
	if trace {
		a.opts = append(a.opts, core.WithTracer(core.NewJSONTracer(a.stderr)))
	}

	store, err := core.OpenPersistentStore(ctx)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	a.store = store
	if c, ok := store.(io.Closer); ok {
		a.flush = append(a.flush, func() { _ = c.Close() })
	}
	return nil
}

func writePrometheus(w io.Writer, reg *prometheus.Registry) {
	families, err := reg.Gather()
	if err != nil {
		_, _ = fmt.Fprintf(w, "gather metrics: %v\n", err)
		return
	}
	for _, mf := range families {
		_, _ = expfmt.MetricFamilyToText(w, mf)
	}
}

func (a *app) close() {
	for i := len(a.flush) - 1; i >= 0; i-- {
		a.flush[i]()
	}
}

func (a *app) service(extra ...core.ServiceOption) *core.Service {
	return core.NewService(a.store, append(append([]core.ServiceOption(nil), a.opts...), extra...)...)
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("nutrilog "+name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

// parseFlags reports malformed flags as usage errors. The flag package has
// already printed the details to stderr.
func parseFlags(fs *flag.FlagSet, args []string) error {
	err := fs.Parse(args)
	if err == nil || errors.Is(err, flag.ErrHelp) {
		return err
	}
	return usageErr("%v", err)
}

func (a *app) seed(ctx context.Context, args []string) error {
	fs := newFlagSet("seed", a.stderr)
	path := fs.String("catalog", os.Getenv(catalog.PathEnv), "catalog file (.yaml, .yml or .json); empty seeds the starter catalog")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	var (
		cat *catalog.Catalog
		err error
	)
	if *path == "" {
		cat, err = catalog.Default()
	} else {
		cat, err = catalog.Load(*path)
	}
	if err != nil {
		return err
	}
	n, err := catalog.Seed(ctx, a.store, cat)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(a.stdout, "seeded %d foods\n", n)
	return nil
}

func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, usageErr("timestamp %q is not RFC 3339", s)
	}
	return ts, nil
}

func (a *app) log(ctx context.Context, args []string) error {
	fs := newFlagSet("log", a.stderr)
	user := fs.String("user", "", "user id")
	barcode := fs.String("barcode", "", "decoded barcode")
	foodID := fs.String("food", "", "catalog food id")
	name := fs.String("name", "", "manual entry: food name")
	per := fs.String("per", "", "manual entry: reference serving the nutrients describe, e.g. \"100 g\"")
	nutrients := fs.String("nutrients", "", "manual entry: kind=amount pairs, e.g. calories=210,protein_g=20")
	qtyFlag := fs.String("qty", "", "quantity, e.g. \"150 g\" (default: the food's default serving)")
	meal := fs.String("meal", "", "meal slot: breakfast|lunch|dinner|snack")
	at := fs.String("at", "", "RFC 3339 timestamp (default: now)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	ts, err := parseTimestamp(*at)
	if err != nil {
		return err
	}
	in := core.LogInput{UserID: *user, MealSlot: domain.MealSlot(*meal), Timestamp: ts}
	if *qtyFlag != "" {
		q, err := units.ParseQuantity(*qtyFlag)
		if err != nil {
			return usageErr("%v", err)
		}
		in.Quantity = &q
	}

	svc := a.service(core.WithClock(core.ClockFunc(nowFunc)))
	var entry domain.LogEntry
	switch {
	case *barcode != "" && *foodID == "" && *name == "":
		entry, err = svc.LogBarcode(ctx, *barcode, in)
	case *foodID != "" && *barcode == "" && *name == "":
		entry, err = svc.LogFood(ctx, *foodID, in)
	case *name != "" && *foodID == "":
		manual, merr := manualEntry(*name, *barcode, *per, *nutrients)
		if merr != nil {
			return merr
		}
		entry, err = svc.LogManual(ctx, manual, in)
	default:
		return usageErr("set exactly one of -barcode, -food or -name")
	}
	if errors.Is(err, domain.ErrFoodNotFound) {
		_, _ = fmt.Fprintln(a.stderr, "hint: log it manually with -name, -per and -nutrients")
	}
	if err != nil {
		return err
	}
	return a.printJSON(entry)
}

func manualEntry(name, barcode, per, nutrients string) (core.ManualEntry, error) {
	ref, err := units.ParseQuantity(per)
	if err != nil {
		return core.ManualEntry{}, usageErr("-per: %v", err)
	}
	m := core.ManualEntry{DisplayName: name, Barcode: barcode, ReferenceServing: ref, Nutrients: domain.Nutrients{}}
	for _, pair := range strings.Split(nutrients, ",") {
		if strings.TrimSpace(pair) == "" {
			continue
		}
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			return core.ManualEntry{}, usageErr("-nutrients: malformed pair %q", pair)
		}
		amount, err := units.ParseAmount(strings.TrimSpace(kv[1]))
		if err != nil {
			return core.ManualEntry{}, usageErr("-nutrients: %v", err)
		}
		m.Nutrients[domain.NutrientKind(strings.ToLower(strings.TrimSpace(kv[0])))] = amount
	}
	return m, nil
}

func (a *app) water(ctx context.Context, args []string) error {
	fs := newFlagSet("water", a.stderr)
	user := fs.String("user", "", "user id")
	qtyFlag := fs.String("qty", "250 ml", "volume, e.g. \"500 ml\" or \"2 cup\"")
	at := fs.String("at", "", "RFC 3339 timestamp (default: now)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	q, err := units.ParseQuantity(*qtyFlag)
	if err != nil {
		return usageErr("%v", err)
	}
	ts, err := parseTimestamp(*at)
	if err != nil {
		return err
	}
	w, err := a.service(core.WithClock(core.ClockFunc(nowFunc))).LogWater(ctx, *user, q, ts)
	if err != nil {
		return err
	}
	return a.printJSON(w)
}

func (a *app) delete(ctx context.Context, args []string) error {
	fs := newFlagSet("delete", a.stderr)
	user := fs.String("user", "", "user id")
	entry := fs.String("entry", "", "log entry id")
	water := fs.String("water", "", "water entry id")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	svc := a.service()
	switch {
	case *entry != "" && *water == "":
		return svc.DeleteEntry(ctx, *user, *entry)
	case *water != "" && *entry == "":
		return svc.DeleteWater(ctx, *user, *water)
	default:
		return usageErr("set exactly one of -entry or -water")
	}
}

// dayFlags are shared by summary and export.
type dayFlags struct {
	user, date, tz, units *string
	dayStart              *time.Duration
}

func addDayFlags(fs *flag.FlagSet) dayFlags {
	return dayFlags{
		user:     fs.String("user", "", "user id"),
		date:     fs.String("date", "", "day as YYYY-MM-DD (default: today)"),
		tz:       fs.String("tz", "UTC", "IANA time zone the day is counted in"),
		units:    fs.String("units", "metric", "display units: metric, imperial or custom:mass=oz,volume=cup"),
		dayStart: fs.Duration("day-start", 0, "offset of the day boundary after local midnight, e.g. 4h"),
	}
}

func (d dayFlags) resolve() (domain.TimeRange, units.Preference, error) {
	loc, err := time.LoadLocation(*d.tz)
	if err != nil {
		return domain.TimeRange{}, units.Preference{}, usageErr("-tz: %v", err)
	}
	if *d.dayStart < 0 || *d.dayStart >= 12*time.Hour {
		return domain.TimeRange{}, units.Preference{}, usageErr("-day-start must be in [0, 12h)")
	}
	var anchor time.Time
	if *d.date == "" {
		anchor = nowFunc().In(loc)
	} else {
		date, err := time.ParseInLocation("2006-01-02", *d.date, loc)
		if err != nil {
			return domain.TimeRange{}, units.Preference{}, usageErr("-date: %v", err)
		}
		anchor = date.Add(12 * time.Hour)
	}
	pref, err := units.ParsePreference(*d.units)
	if err != nil {
		return domain.TimeRange{}, units.Preference{}, usageErr("-units: %v", err)
	}
	return domain.DayRange(anchor, loc, *d.dayStart), pref, nil
}

func (a *app) summary(ctx context.Context, args []string) error {
	fs := newFlagSet("summary", a.stderr)
	df := addDayFlags(fs)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	day, pref, err := df.resolve()
	if err != nil {
		return err
	}
	summary, err := a.service(core.WithPreference(pref)).DaySummary(ctx, *df.user, day)
	if err != nil {
		return err
	}
	return printSummary(a.stdout, summary, pref)
}

// printSummary writes nutrients in their fixed units; water follows pref.
func printSummary(w io.Writer, s domain.DaySummary, pref units.Preference) error {
	water, err := units.Present(units.Quantity{Amount: s.Day.WaterML, Unit: units.Milliliter}, pref)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(w, "%s\n", s.Range.From.Format("Monday 2006-01-02"))
	for _, slot := range domain.MealSlots() {
		meal := s.Meals[slot]
		if meal.EntryCount == 0 {
			continue
		}
		_, _ = fmt.Fprintf(w, "  %s (%d)\n", slot, meal.EntryCount)
		printNutrients(w, "    ", meal.Nutrients)
	}
	_, _ = fmt.Fprintf(w, "  total (%d entries)\n", s.Day.EntryCount)
	printNutrients(w, "    ", s.Day.Nutrients)
	_, _ = fmt.Fprintf(w, "  water %s %s (%d)\n", water.Amount.Round(2, units.RoundHalfEven), water.Unit, s.Day.WaterCount)
	return nil
}

func printNutrients(w io.Writer, indent string, n domain.Nutrients) {
	if len(n) == 0 {
		_, _ = fmt.Fprintf(w, "%sno nutrient data\n", indent)
		return
	}
	for _, kind := range n.Kinds() {
		label, unit := string(kind), ""
		if info, ok := domain.LookupNutrient(kind); ok {
			label, unit = info.Label, info.Unit
		}
		_, _ = fmt.Fprintf(w, "%s%-14s %s %s\n", indent, label, n[kind], unit)
	}
}

func (a *app) export(ctx context.Context, args []string) error {
	fs := newFlagSet("export", a.stderr)
	df := addDayFlags(fs)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	day, pref, err := df.resolve()
	if err != nil {
		return err
	}
	store, err := blob.Open(ctx)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}
	info, err := a.service(core.WithBlobStore(store), core.WithPreference(pref)).ExportDaySummary(ctx, *df.user, day)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(a.stdout, "wrote %s (%d bytes) to %s\n", info.Key, info.Size, store.Driver())
	return nil
}
