// Package decimal implements the fixed-point decimal type mandated by
// spec.md §3: exact arithmetic, never floating point, total order, a single
// scale shared by every Price and Quantity in the system.
package decimal

import (
	"fmt"
	"math"
	"math/big"
	"strings"
)

// Scale is the number of fractional digits every Decimal carries.
// spec.md §3 recommends S=8; titanex fixes it at that value.
const Scale = 8

var pow10 = big.NewInt(100000000) // 10^Scale

// Decimal is a fixed-point number: value = coef / 10^Scale. coef may be
// negative (used for signed quantities such as realized PnL); Quantity and
// Price enforce non-negativity at the domain layer, not here.
type Decimal struct {
	coef int64
}

// Zero is the additive identity.
var Zero = Decimal{}

// FromInt64 builds a Decimal representing the exact integer n.
func FromInt64(n int64) Decimal {
	return Decimal{coef: n * int64(pow10.Int64())}
}

// FromUnits builds a Decimal from a pre-scaled integer coefficient, i.e.
// the same representation used on the wire (§4.2).
func FromUnits(coef int64) Decimal {
	return Decimal{coef: coef}
}

// Units returns the raw scaled coefficient (coef such that value =
// coef/10^Scale), the representation used for canonical serialization.
func (d Decimal) Units() int64 { return d.coef }

// IsZero reports whether d is exactly zero.
func (d Decimal) IsZero() bool { return d.coef == 0 }

// IsNeg reports whether d is strictly negative.
func (d Decimal) IsNeg() bool { return d.coef < 0 }

// IsPos reports whether d is strictly positive.
func (d Decimal) IsPos() bool { return d.coef > 0 }

// Sign returns -1, 0, or 1.
func (d Decimal) Sign() int {
	switch {
	case d.coef < 0:
		return -1
	case d.coef > 0:
		return 1
	default:
		return 0
	}
}

// Neg returns -d.
func (d Decimal) Neg() Decimal { return Decimal{coef: -d.coef} }

// Abs returns |d|.
func (d Decimal) Abs() Decimal {
	if d.coef < 0 {
		return d.Neg()
	}
	return d
}

// Cmp returns -1, 0, or 1 comparing d to other (total order, spec.md §3).
func (d Decimal) Cmp(other Decimal) int {
	switch {
	case d.coef < other.coef:
		return -1
	case d.coef > other.coef:
		return 1
	default:
		return 0
	}
}

func (d Decimal) LessThan(other Decimal) bool    { return d.Cmp(other) < 0 }
func (d Decimal) GreaterThan(other Decimal) bool { return d.Cmp(other) > 0 }
func (d Decimal) Equal(other Decimal) bool       { return d.coef == other.coef }

// ErrOverflow is returned when an arithmetic operation would not fit in the
// fixed-point representation. Per spec.md §4.4, overflow is fatal and must
// never saturate silently.
var ErrOverflow = fmt.Errorf("decimal: overflow")

// Add returns d+other, or ErrOverflow if the result does not fit.
func (d Decimal) Add(other Decimal) (Decimal, error) {
	sum := d.coef + other.coef
	// overflow iff operands share a sign and the result's sign differs.
	if (d.coef > 0 && other.coef > 0 && sum < 0) ||
		(d.coef < 0 && other.coef < 0 && sum > 0) {
		return Decimal{}, ErrOverflow
	}
	return Decimal{coef: sum}, nil
}

// MustAdd panics on overflow; for call sites that have already bounded
// their inputs (tests, constant folding).
func (d Decimal) MustAdd(other Decimal) Decimal {
	v, err := d.Add(other)
	if err != nil {
		panic(err)
	}
	return v
}

// Sub returns d-other, or ErrOverflow if the result does not fit.
func (d Decimal) Sub(other Decimal) (Decimal, error) {
	return d.Add(other.Neg())
}

// Mul returns d*other rounded toward zero at Scale digits, or ErrOverflow.
// The intermediate product is computed in arbitrary precision (math/big)
// so a 63-bit overflow in the raw multiply never silently truncates —
// only the final re-scaled result is checked against the int64 range.
func (d Decimal) Mul(other Decimal) (Decimal, error) {
	prod := new(big.Int).Mul(big.NewInt(d.coef), big.NewInt(other.coef))
	prod.Quo(prod, pow10)
	if !prod.IsInt64() {
		return Decimal{}, ErrOverflow
	}
	return Decimal{coef: prod.Int64()}, nil
}

// MulInt64 returns d*n exactly (n is a plain integer, not a Decimal),
// typically used for size*price style notional computations.
func (d Decimal) MulInt64(n int64) (Decimal, error) {
	prod := new(big.Int).Mul(big.NewInt(d.coef), big.NewInt(n))
	if !prod.IsInt64() {
		return Decimal{}, ErrOverflow
	}
	return Decimal{coef: prod.Int64()}, nil
}

// DivInt64 returns d/n truncated toward zero. n must be non-zero.
func (d Decimal) DivInt64(n int64) (Decimal, error) {
	if n == 0 {
		return Decimal{}, fmt.Errorf("decimal: division by zero")
	}
	return Decimal{coef: d.coef / n}, nil
}

// String renders the decimal in plain "123.45600000" form.
func (d Decimal) String() string {
	neg := d.coef < 0
	abs := d.coef
	if neg {
		abs = -abs
	}
	whole := abs / int64(pow10.Int64())
	frac := abs % int64(pow10.Int64())
	sign := ""
	if neg {
		sign = "-"
	}
	return fmt.Sprintf("%s%d.%0*d", sign, whole, Scale, frac)
}

// ParseString parses a plain decimal string such as "123.45" or "-0.5"
// into a Decimal, exactly — digit-by-digit, never via strconv.ParseFloat.
// This is the boundary adapter for prices arriving as text (e.g. an
// external price feed's JSON quotes) that must become exact fixed-point
// values rather than floating-point approximations.
func ParseString(s string) (Decimal, error) {
	if s == "" {
		return Decimal{}, fmt.Errorf("decimal: empty string")
	}

	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}
	if s == "" {
		return Decimal{}, fmt.Errorf("decimal: malformed number")
	}

	whole, frac, hasFrac := s, "", false
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
		hasFrac = true
	}
	if whole == "" {
		whole = "0"
	}
	if hasFrac && len(frac) > Scale {
		return Decimal{}, fmt.Errorf("decimal: more than %d fractional digits in %q", Scale, s)
	}
	for len(frac) < Scale {
		frac += "0"
	}

	for _, c := range whole + frac {
		if c < '0' || c > '9' {
			return Decimal{}, fmt.Errorf("decimal: invalid digit in %q", s)
		}
	}

	coef := new(big.Int)
	if _, ok := coef.SetString(whole+frac, 10); !ok {
		return Decimal{}, fmt.Errorf("decimal: invalid number %q", s)
	}
	if !coef.IsInt64() {
		return Decimal{}, ErrOverflow
	}
	v := coef.Int64()
	if neg {
		v = -v
	}
	return Decimal{coef: v}, nil
}

// Float64 converts to float64 for display/telemetry only — never for
// matching, margin, or persisted arithmetic (spec.md §3).
func (d Decimal) Float64() float64 {
	return float64(d.coef) / math.Pow10(Scale)
}
