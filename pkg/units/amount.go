// Package units implements exact quantity arithmetic and conversion between
// mass, volume and count/serving units.
//
// All arithmetic is carried out on rational numbers so that chained
// conversions never drift. Rounding happens only when a caller asks for it
// through Amount.Round.
package units

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
)

// Amount is an immutable exact rational number. The zero value is 0.
type Amount struct {
	r *big.Rat
}

// NewAmount returns an Amount holding the integer n.
func NewAmount(n int64) Amount {
	return Amount{r: new(big.Rat).SetInt64(n)}
}

// NewFraction returns num/den. It panics when den is zero.
func NewFraction(num, den int64) Amount {
	return Amount{r: big.NewRat(num, den)}
}

// AmountFromRat copies r into a new Amount.
func AmountFromRat(r *big.Rat) Amount {
	if r == nil {
		return Amount{}
	}
	return Amount{r: new(big.Rat).Set(r)}
}

// ParseAmount parses a decimal ("133.5"), integer, or fraction ("1/3") string.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Amount{}, fmt.Errorf("parse amount: empty string")
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return Amount{}, fmt.Errorf("parse amount %q: not a number", s)
	}
	return Amount{r: r}, nil
}

// MustAmount is ParseAmount for constants and tests.
func MustAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Amount) rat() *big.Rat {
	if a.r == nil {
		return new(big.Rat)
	}
	return a.r
}

// Rat returns a copy of the underlying rational.
func (a Amount) Rat() *big.Rat {
	return new(big.Rat).Set(a.rat())
}

// Add returns a+b.
func (a Amount) Add(b Amount) Amount {
	return Amount{r: new(big.Rat).Add(a.rat(), b.rat())}
}

// Sub returns a-b.
func (a Amount) Sub(b Amount) Amount {
	return Amount{r: new(big.Rat).Sub(a.rat(), b.rat())}
}

// Mul returns a*b.
func (a Amount) Mul(b Amount) Amount {
	return Amount{r: new(big.Rat).Mul(a.rat(), b.rat())}
}

// Quo returns a/b. Division by zero is reported as an error.
func (a Amount) Quo(b Amount) (Amount, error) {
	if b.Sign() == 0 {
		return Amount{}, fmt.Errorf("divide %s by zero", a)
	}
	return Amount{r: new(big.Rat).Quo(a.rat(), b.rat())}, nil
}

// Cmp compares a and b and returns -1, 0 or +1.
func (a Amount) Cmp(b Amount) int { return a.rat().Cmp(b.rat()) }

// Equal reports whether a and b denote the same number.
func (a Amount) Equal(b Amount) bool { return a.Cmp(b) == 0 }

// Sign returns -1, 0 or +1.
func (a Amount) Sign() int { return a.rat().Sign() }

// IsZero reports whether a == 0.
func (a Amount) IsZero() bool { return a.Sign() == 0 }

// Float64 returns the nearest float64, for presentation only.
func (a Amount) Float64() float64 {
	f, _ := a.rat().Float64()
	return f
}

// String renders terminating decimals exactly with the fewest digits and
// falls back to the fraction form ("1/3") otherwise, so that String and
// ParseAmount round-trip without loss.
func (a Amount) String() string {
	r := a.rat()
	if r.IsInt() {
		return r.Num().String()
	}
	den := new(big.Int).Set(r.Denom())
	twos, fives := 0, 0
	two, five := big.NewInt(2), big.NewInt(5)
	mod := new(big.Int)
	for {
		q, m := new(big.Int).QuoRem(den, two, mod)
		if m.Sign() != 0 {
			break
		}
		den = q
		twos++
	}
	for {
		q, m := new(big.Int).QuoRem(den, five, mod)
		if m.Sign() != 0 {
			break
		}
		den = q
		fives++
	}
	if den.Cmp(big.NewInt(1)) != 0 {
		return r.RatString()
	}
	digits := twos
	if fives > digits {
		digits = fives
	}
	return r.FloatString(digits)
}

// FixedString renders a with exactly places decimal digits, rounding half
// away from zero as big.Rat does. Used for display only.
func (a Amount) FixedString(places int) string {
	return a.rat().FloatString(places)
}

// MarshalJSON encodes the amount as a JSON string to keep it exact.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts both JSON strings and JSON numbers.
func (a *Amount) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*a = Amount{}
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = s
	}
	parsed, err := ParseAmount(raw)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Amount) UnmarshalText(text []byte) error {
	parsed, err := ParseAmount(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
