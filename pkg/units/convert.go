package units

import (
	"errors"
	"fmt"
)

// ErrConversionUnsupported is matched by every ConversionError.
var ErrConversionUnsupported = errors.New("unit conversion unsupported")

// ConversionError reports a conversion that lacks a bridging fact.
// Missing names the fact a caller could prompt for ("density", "serving \"slice\"").
type ConversionError struct {
	From    Unit
	To      Unit
	Missing string
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("cannot convert %s to %s: missing %s", e.From, e.To, e.Missing)
}

// Is lets errors.Is match ErrConversionUnsupported.
func (e *ConversionError) Is(target error) bool {
	return target == ErrConversionUnsupported
}

// Serving defines a named unit for one food, e.g. "slice" = 28 g.
type Serving struct {
	Name     Unit     `json:"name"`
	Quantity Quantity `json:"quantity"`
}

// Context carries the food-specific facts needed to cross dimensions.
type Context struct {
	// DensityGPerML bridges mass and volume; nil when unknown.
	DensityGPerML *Amount
	Servings      []Serving
	// Reference is the food's reference serving; it backs the generic
	// ServingUnit when the food does not define "serving" itself. A
	// reference counted in ServingUnit defines nothing.
	Reference *Quantity
}

func (c Context) serving(u Unit) (Quantity, bool) {
	for _, s := range c.Servings {
		if s.Name == u {
			return s.Quantity, true
		}
	}
	if u == ServingUnit && c.Reference != nil && c.Reference.Unit != ServingUnit {
		return *c.Reference, true
	}
	return Quantity{}, false
}

// maxServingDepth bounds serving-of-serving definitions so a cyclic
// definition fails instead of recursing forever.
const maxServingDepth = 4

// Convert expresses q in unit to. It is a pure function of its arguments.
func Convert(q Quantity, to Unit, ctx Context) (Quantity, error) {
	out, err := convert(q, to, ctx, 0)
	if err != nil {
		return Quantity{}, err
	}
	return out, nil
}

func convert(q Quantity, to Unit, ctx Context, depth int) (Quantity, error) {
	if depth > maxServingDepth {
		return Quantity{}, &ConversionError{From: q.Unit, To: to, Missing: "acyclic serving definitions"}
	}
	if q.Unit == to {
		return q, nil
	}

	if !to.Registered() {
		def, ok := ctx.serving(to)
		if !ok {
			return Quantity{}, &ConversionError{From: q.Unit, To: to, Missing: fmt.Sprintf("serving %q", to)}
		}
		if def.Amount.Sign() <= 0 {
			return Quantity{}, &ConversionError{From: q.Unit, To: to, Missing: fmt.Sprintf("positive size for serving %q", to)}
		}
		inDef, err := convert(q, def.Unit, ctx, depth+1)
		if err != nil {
			return Quantity{}, wrapEndpoints(err, q.Unit, to)
		}
		count, err := inDef.Amount.Quo(def.Amount)
		if err != nil {
			return Quantity{}, err
		}
		return Quantity{Amount: count, Unit: to}, nil
	}

	if !q.Unit.Registered() {
		def, ok := ctx.serving(q.Unit)
		if !ok {
			return Quantity{}, &ConversionError{From: q.Unit, To: to, Missing: fmt.Sprintf("serving %q", q.Unit)}
		}
		expanded := def.Scale(q.Amount)
		out, err := convert(expanded, to, ctx, depth+1)
		if err != nil {
			return Quantity{}, wrapEndpoints(err, q.Unit, to)
		}
		return out, nil
	}

	from := registry[q.Unit]
	target := registry[to]
	base := q.Amount.Mul(from.toBase)
	if from.dimension != target.dimension {
		if ctx.DensityGPerML == nil || ctx.DensityGPerML.Sign() <= 0 {
			return Quantity{}, &ConversionError{From: q.Unit, To: to, Missing: "density"}
		}
		var err error
		switch from.dimension {
		case DimensionMass:
			base, err = base.Quo(*ctx.DensityGPerML)
		default:
			base = base.Mul(*ctx.DensityGPerML)
		}
		if err != nil {
			return Quantity{}, err
		}
	}
	amount, err := base.Quo(target.toBase)
	if err != nil {
		return Quantity{}, err
	}
	return Quantity{Amount: amount, Unit: to}, nil
}

// wrapEndpoints reports nested failures against the caller's units while
// keeping the innermost missing fact.
func wrapEndpoints(err error, from, to Unit) error {
	var ce *ConversionError
	if errors.As(err, &ce) {
		return &ConversionError{From: from, To: to, Missing: ce.Missing}
	}
	return err
}

// DimensionOf resolves the physical dimension a quantity expands to: named
// servings report the dimension of their definition, or DimensionCount when
// the context does not define them.
func DimensionOf(u Unit, ctx Context) Dimension {
	for depth := 0; depth <= maxServingDepth; depth++ {
		if u.Registered() {
			return u.Dimension()
		}
		def, ok := ctx.serving(u)
		if !ok || def.Unit == u {
			return DimensionCount
		}
		u = def.Unit
	}
	return DimensionCount
}
