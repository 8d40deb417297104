/*
Package generic provides the contract-agnostic primitives of the ACTUS engine.

PURPOSE:
  Everything a contract type needs to describe money and time exactly:
  nullable fixed-point numbers, nullable calendar points, cycles and the
  schedule generator, day-count conventions, the event model and the
  scheduler heap. Nothing in this package knows about a specific contract
  type; the actus, pam and ann packages build on top of it.

KEY CONCEPTS IN THIS FILE (number.go):
  - Number: a signed fixed-point decimal that may be null
  - Null means "not applicable / unknown" and is distinct from zero
  - Every binary operation propagates null

DESIGN PRINCIPLES:
  1. Exactness: decimal.Decimal under the hood, rounded to Scale digits
  2. No wrapping: multiplication is arbitrary precision; values outside the
     128-bit fixed-point range are reported by Checked()
  3. Explicit failure: division by zero is an ArithmeticError, never a value

USAGE:
  rate := generic.MustParseNumber("0.05")
  notional := generic.NewNumber(1000)
  interest := notional.Mul(rate)            // 50
  share, err := interest.Div(generic.NewNumber(4))

SEE ALSO:
  - time.go: TimePoint, the nullable calendar value
  - daycount.go: year fractions returned as Number
*/
package generic

import (
	"bytes"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// NUMBER - Nullable fixed-point decimal
// =============================================================================

// Scale is the number of fractional digits kept after every multiplication
// and division.
const Scale int32 = 18

// maxMagnitude is the largest value representable by a signed 128-bit
// integer with Scale fractional digits.
var maxMagnitude = decimal.RequireFromString("170141183460469231731.687303715884105727")

// Number is a nullable signed fixed-point value.
// The zero value is null.
type Number struct {
	value decimal.Decimal
	valid bool
}

// Zero and One are the non-null constants used throughout the formulas.
var (
	Zero = NewNumber(0)
	One  = NewNumber(1)
)

// Null returns the null Number.
func Null() Number { return Number{} }

// NewNumber returns a non-null integer Number.
func NewNumber(v int64) Number {
	return Number{value: decimal.NewFromInt(v), valid: true}
}

// NewNumberFromDecimal wraps a decimal, rounding it to Scale digits.
func NewNumberFromDecimal(d decimal.Decimal) Number {
	return Number{value: d.Round(Scale), valid: true}
}

// NewNumberFromFloat is a convenience for tests and presets.
func NewNumberFromFloat(f float64) Number {
	return NewNumberFromDecimal(decimal.NewFromFloat(f))
}

// ParseNumber parses a decimal string. The literal "null" (or an empty
// string) yields the null Number.
func ParseNumber(s string) (Number, error) {
	if s == "" || s == "null" {
		return Null(), nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Null(), fmt.Errorf("invalid number %q: %w", s, err)
	}
	return NewNumberFromDecimal(d), nil
}

// MustParseNumber is ParseNumber for constants; it panics on malformed input.
func MustParseNumber(s string) Number {
	n, err := ParseNumber(s)
	if err != nil {
		panic(err)
	}
	return n
}

// =============================================================================
// ACCESSORS
// =============================================================================

func (n Number) IsNull() bool { return !n.valid }

// Decimal returns the underlying value and whether it is non-null.
func (n Number) Decimal() (decimal.Decimal, bool) { return n.value, n.valid }

// ValueOr returns n, or fallback when n is null.
func (n Number) ValueOr(fallback Number) Number {
	if !n.valid {
		return fallback
	}
	return n
}

func (n Number) IsZero() bool     { return n.valid && n.value.IsZero() }
func (n Number) IsPositive() bool { return n.valid && n.value.IsPositive() }
func (n Number) IsNegative() bool { return n.valid && n.value.IsNegative() }

// Sign returns -1, 0 or 1. Null has sign 0.
func (n Number) Sign() int {
	if !n.valid {
		return 0
	}
	return n.value.Sign()
}

// =============================================================================
// ARITHMETIC - null propagates through every operation
// =============================================================================

func (n Number) Add(o Number) Number {
	if !n.valid || !o.valid {
		return Null()
	}
	return Number{value: n.value.Add(o.value), valid: true}
}

func (n Number) Sub(o Number) Number {
	if !n.valid || !o.valid {
		return Null()
	}
	return Number{value: n.value.Sub(o.value), valid: true}
}

func (n Number) Mul(o Number) Number {
	if !n.valid || !o.valid {
		return Null()
	}
	return Number{value: n.value.Mul(o.value).Round(Scale), valid: true}
}

// Div divides n by o. A null operand yields null; a zero divisor is an
// ArithmeticError.
func (n Number) Div(o Number) (Number, error) {
	if !n.valid || !o.valid {
		return Null(), nil
	}
	if o.value.IsZero() {
		return Null(), ErrDivisionByZero
	}
	return Number{value: n.value.DivRound(o.value, Scale), valid: true}, nil
}

func (n Number) Neg() Number {
	if !n.valid {
		return n
	}
	return Number{value: n.value.Neg(), valid: true}
}

func (n Number) Abs() Number {
	if !n.valid {
		return n
	}
	return Number{value: n.value.Abs(), valid: true}
}

func (n Number) Min(o Number) Number {
	if !n.valid || !o.valid {
		return Null()
	}
	if n.value.LessThanOrEqual(o.value) {
		return n
	}
	return o
}

func (n Number) Max(o Number) Number {
	if !n.valid || !o.valid {
		return Null()
	}
	if n.value.GreaterThanOrEqual(o.value) {
		return n
	}
	return o
}

// =============================================================================
// COMPARISON - null sorts as the minimum
// =============================================================================

// Compare returns -1, 0 or 1. Null compares below every non-null value and
// equal to another null.
func (n Number) Compare(o Number) int {
	switch {
	case !n.valid && !o.valid:
		return 0
	case !n.valid:
		return -1
	case !o.valid:
		return 1
	}
	return n.value.Cmp(o.value)
}

// Equal is exact: no epsilon. Two nulls are equal.
func (n Number) Equal(o Number) bool { return n.Compare(o) == 0 }

func (n Number) LessThan(o Number) bool    { return n.Compare(o) < 0 }
func (n Number) GreaterThan(o Number) bool { return n.Compare(o) > 0 }

// Checked reports an overflow when n lies outside the fixed-point range.
func (n Number) Checked() error {
	if !n.valid {
		return nil
	}
	if n.value.Abs().GreaterThan(maxMagnitude) {
		return fmt.Errorf("%w: %s", ErrOverflow, n.value.String())
	}
	return nil
}

// =============================================================================
// ENCODING
// =============================================================================

func (n Number) String() string {
	if !n.valid {
		return "null"
	}
	return n.value.String()
}

// MarshalJSON encodes null as JSON null and values as decimal strings.
func (n Number) MarshalJSON() ([]byte, error) {
	if !n.valid {
		return []byte("null"), nil
	}
	return n.value.MarshalJSON()
}

// UnmarshalJSON accepts null, a quoted decimal or a bare number.
func (n *Number) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*n = Null()
		return nil
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("invalid number %s: %w", data, err)
	}
	*n = NewNumberFromDecimal(d)
	return nil
}
