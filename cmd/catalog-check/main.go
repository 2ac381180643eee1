// Command catalog-check validates a food catalog file before it is seeded.
// Structural problems fail the check; suspicious data is reported as a
// warning and fails only under -strict.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"nutrilog/internal/catalog"
	"nutrilog/internal/core"
	"nutrilog/pkg/domain"
	"nutrilog/pkg/units"
)

var exitFunc = os.Exit

// Finding is one problem with one food.
type Finding struct {
	FoodID  string `json:"food_id"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

const (
	levelError   = "error"
	levelWarning = "warning"
)

// Report is the outcome of checking a catalog.
type Report struct {
	Path     string    `json:"path"`
	Foods    int       `json:"foods"`
	Findings []Finding `json:"findings"`
}

func (r Report) count(level string) int {
	n := 0
	for _, f := range r.Findings {
		if f.Level == level {
			n++
		}
	}
	return n
}

func main() {
	code := cli(os.Args[1:], os.Stdout, os.Stderr)
	exitFunc(code)
}

func cli(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("catalog-check", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		path   string
		strict bool
		asJSON bool
	)
	fs.StringVar(&path, "catalog", os.Getenv(catalog.PathEnv), "catalog file; empty checks the embedded starter catalog")
	fs.BoolVar(&strict, "strict", false, "treat warnings as failures")
	fs.BoolVar(&asJSON, "json", false, "print the report as JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	report, err := run(path)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Catalog validation failed: %v\n", err)
		return 1
	}
	if asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return 1
		}
	} else {
		for _, f := range report.Findings {
			_, _ = fmt.Fprintf(stdout, "%s: %s: %s\n", f.Level, f.FoodID, f.Message)
		}
	}
	errs, warns := report.count(levelError), report.count(levelWarning)
	if errs > 0 || (strict && warns > 0) {
		_, _ = fmt.Fprintf(stderr, "Catalog validation failed: %d errors, %d warnings.\n", errs, warns)
		return 1
	}
	if !asJSON {
		_, _ = fmt.Fprintf(stdout, "Catalog validation passed (%d foods, %d warnings).\n", report.Foods, warns)
	}
	return 0
}

// run loads the catalog and checks every food. A catalog that does not
// parse is an error rather than a finding.
func run(path string) (Report, error) {
	var (
		cat *catalog.Catalog
		err error
	)
	report := Report{Path: path}
	if strings.TrimSpace(path) == "" {
		report.Path = "(embedded)"
		cat, err = catalog.Default()
	} else {
		cat, err = catalog.Load(path)
	}
	if err != nil {
		return report, err
	}
	if len(cat.Foods) == 0 {
		return report, fmt.Errorf("foods entry is empty")
	}
	report.Foods = len(cat.Foods)
	report.Findings = []Finding{}
	for _, food := range cat.Foods {
		report.Findings = append(report.Findings, checkFood(food)...)
	}
	return report, nil
}

func checkFood(food catalog.Food) []Finding {
	id := food.Identity.ID
	var out []Finding
	add := func(level, format string, args ...any) {
		out = append(out, Finding{FoodID: id, Level: level, Message: fmt.Sprintf(format, args...)})
	}

	p := food.Profile
	if _, err := core.ScaleFactor(p, p.DefaultServing()); err != nil {
		add(levelError, "default serving %s: %v", p.DefaultServing(), err)
	}
	for _, s := range p.Servings {
		one := units.Quantity{Amount: units.NewAmount(1), Unit: s.Name}
		if _, err := core.ScaleFactor(p, one); err != nil {
			add(levelError, "serving %s cannot be scaled: %v", s.Name, err)
		}
	}
	for _, kind := range p.Nutrients.Kinds() {
		if _, ok := domain.LookupNutrient(kind); !ok {
			add(levelWarning, "unknown nutrient %q", kind)
		}
	}
	if _, ok := p.Nutrients[domain.Calories]; !ok {
		add(levelWarning, "no calorie data")
	}
	if code := food.Identity.Barcode; code != "" {
		if msg := checkGTIN(code); msg != "" {
			add(levelWarning, "barcode %s: %s", code, msg)
		}
	}
	return out
}

// checkGTIN validates length and the mod-10 check digit of GTIN-8/12/13/14.
func checkGTIN(code string) string {
	switch len(code) {
	case 8, 12, 13, 14:
	default:
		return fmt.Sprintf("length %d is not a GTIN length", len(code))
	}
	sum := 0
	for i := len(code) - 2; i >= 0; i-- {
		d := int(code[i] - '0')
		if (len(code)-2-i)%2 == 0 {
			d *= 3
		}
		sum += d
	}
	want := (10 - sum%10) % 10
	if got := int(code[len(code)-1] - '0'); got != want {
		return fmt.Sprintf("check digit %d, expected %d", got, want)
	}
	return ""
}
