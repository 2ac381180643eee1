package units

import (
	"fmt"
	"math/big"
	"strings"
)

// RoundingMode selects the tie-break rule used by Amount.Round.
type RoundingMode string

const (
	// RoundHalfEven rounds ties to the nearest even digit (banker's rounding).
	RoundHalfEven RoundingMode = "half_even"
	// RoundHalfUp rounds ties away from zero.
	RoundHalfUp RoundingMode = "half_up"
	// RoundNone leaves amounts exact.
	RoundNone RoundingMode = "none"
)

// ParseRoundingMode accepts the mode names above; empty selects RoundHalfEven.
func ParseRoundingMode(s string) (RoundingMode, error) {
	switch RoundingMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", RoundHalfEven:
		return RoundHalfEven, nil
	case RoundHalfUp:
		return RoundHalfUp, nil
	case RoundNone:
		return RoundNone, nil
	default:
		return "", fmt.Errorf("unknown rounding mode %q", s)
	}
}

// Round returns a rounded to places decimal digits using mode.
// Negative places round to tens, hundreds, and so on.
func (a Amount) Round(places int, mode RoundingMode) Amount {
	if mode == RoundNone {
		return a
	}
	scale := new(big.Rat).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(abs(places))), nil))
	scaled := new(big.Rat).Set(a.rat())
	if places >= 0 {
		scaled.Mul(scaled, scale)
	} else {
		scaled.Quo(scaled, scale)
	}

	neg := scaled.Sign() < 0
	num := new(big.Int).Abs(scaled.Num())
	den := scaled.Denom()
	q, rem := new(big.Int).QuoRem(num, den, new(big.Int))

	twice := new(big.Int).Lsh(rem, 1)
	switch twice.Cmp(den) {
	case 1:
		q.Add(q, big.NewInt(1))
	case 0:
		if mode == RoundHalfUp || q.Bit(0) == 1 {
			q.Add(q, big.NewInt(1))
		}
	}
	if neg {
		q.Neg(q)
	}

	out := new(big.Rat).SetInt(q)
	if places >= 0 {
		out.Quo(out, scale)
	} else {
		out.Mul(out, scale)
	}
	return Amount{r: out}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
