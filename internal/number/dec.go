package number

// Arbitrary-precision decimal arithmetic for the runtime's number values.
// A Dec is coef × 10^exp with an unbounded coefficient, so literals round-trip
// exactly and only division has to truncate (at a configurable precision).

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// DefaultDivPrecision is the number of significant digits kept by Div when
// the quotient does not terminate.
const DefaultDivPrecision = 34

var ErrDivZero = errors.New("division by zero")

var (
	bigZero = big.NewInt(0)
	bigTen  = big.NewInt(10)
)

// Dec is an immutable decimal value: coef × 10^exp.
// The zero Dec is usable and equal to 0.
type Dec struct {
	coef *big.Int
	exp  int32
}

func Zero() Dec {
	return Dec{}
}

func FromInt64(v int64) Dec {
	return norm(big.NewInt(v), 0)
}

// FromParts builds a Dec from a raw coefficient and exponent.
// The coefficient is copied.
func FromParts(coef *big.Int, exp int32) Dec {
	return norm(new(big.Int).Set(coef), exp)
}

// Parse reads a decimal literal: [-]digits[.digits][e[+-]digits].
func Parse(s string) (Dec, error) {
	in := strings.TrimSpace(s)
	if in == "" {
		return Dec{}, fmt.Errorf("empty number literal")
	}

	mantissa := in
	var exp int64
	if i := strings.IndexAny(in, "eE"); i >= 0 {
		mantissa = in[:i]
		e, ok := new(big.Int).SetString(in[i+1:], 10)
		if !ok || !e.IsInt64() {
			return Dec{}, fmt.Errorf("invalid exponent in number literal %q", s)
		}
		exp = e.Int64()
	}

	if i := strings.IndexByte(mantissa, '.'); i >= 0 {
		frac := mantissa[i+1:]
		if frac == "" {
			return Dec{}, fmt.Errorf("invalid number literal %q", s)
		}
		mantissa = mantissa[:i] + frac
		exp -= int64(len(frac))
	}

	coef, ok := new(big.Int).SetString(mantissa, 10)
	if !ok {
		return Dec{}, fmt.Errorf("invalid number literal %q", s)
	}
	if exp > 1<<30 || exp < -(1<<30) {
		return Dec{}, fmt.Errorf("exponent out of range in number literal %q", s)
	}
	return norm(coef, int32(exp)), nil
}

// MustParse is a test and literal helper; it panics on malformed input.
func MustParse(s string) Dec {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Dec) c() *big.Int {
	if d.coef == nil {
		return bigZero
	}
	return d.coef
}

func (d Dec) IsZero() bool { return d.c().Sign() == 0 }
func (d Dec) Sign() int    { return d.c().Sign() }

func (d Dec) Neg() Dec {
	return norm(new(big.Int).Neg(d.c()), d.exp)
}

func (d Dec) Abs() Dec {
	return norm(new(big.Int).Abs(d.c()), d.exp)
}

// align returns both coefficients scaled to the smaller exponent.
func align(a, b Dec) (ac, bc *big.Int, exp int32) {
	exp = a.exp
	if b.exp < exp {
		exp = b.exp
	}
	ac = scale(a.c(), int(a.exp)-int(exp))
	bc = scale(b.c(), int(b.exp)-int(exp))
	return ac, bc, exp
}

func scale(c *big.Int, by int) *big.Int {
	if by <= 0 {
		return new(big.Int).Set(c)
	}
	m := new(big.Int).Exp(bigTen, big.NewInt(int64(by)), nil)
	return m.Mul(m, c)
}

func (d Dec) Add(o Dec) Dec {
	ac, bc, exp := align(d, o)
	return norm(ac.Add(ac, bc), exp)
}

func (d Dec) Sub(o Dec) Dec {
	ac, bc, exp := align(d, o)
	return norm(ac.Sub(ac, bc), exp)
}

func (d Dec) Mul(o Dec) Dec {
	return norm(new(big.Int).Mul(d.c(), o.c()), d.exp+o.exp)
}

// Div truncates the quotient to prec significant digits past exactness.
// prec <= 0 selects DefaultDivPrecision.
func (d Dec) Div(o Dec, prec int) (Dec, error) {
	if o.IsZero() {
		return Dec{}, ErrDivZero
	}
	if d.IsZero() {
		return Dec{}, nil
	}
	if prec <= 0 {
		prec = DefaultDivPrecision
	}
	num := scale(d.c(), prec)
	q := num.Quo(num, o.c())
	return norm(q, d.exp-o.exp-int32(prec)), nil
}

func (d Dec) Cmp(o Dec) int {
	if s1, s2 := d.Sign(), o.Sign(); s1 != s2 {
		if s1 < s2 {
			return -1
		}
		return 1
	}
	ac, bc, _ := align(d, o)
	return ac.Cmp(bc)
}

func (d Dec) Equal(o Dec) bool { return d.Cmp(o) == 0 }

// Int64 truncates toward zero. Values outside the int64 range saturate.
func (d Dec) Int64() int64 {
	t := trunc(d)
	if !t.IsInt64() {
		if t.Sign() < 0 {
			return -1 << 63
		}
		return 1<<63 - 1
	}
	return t.Int64()
}

// IsInt reports whether d has no fractional part.
func (d Dec) IsInt() bool {
	if d.exp >= 0 {
		return true
	}
	m := new(big.Int).Exp(bigTen, big.NewInt(int64(-d.exp)), nil)
	r := new(big.Int)
	new(big.Int).QuoRem(d.c(), m, r)
	return r.Sign() == 0
}

func trunc(d Dec) *big.Int {
	if d.exp >= 0 {
		return scale(d.c(), int(d.exp))
	}
	m := new(big.Int).Exp(bigTen, big.NewInt(int64(-d.exp)), nil)
	return new(big.Int).Quo(d.c(), m)
}

func (d Dec) String() string {
	c := d.c()
	if c.Sign() == 0 {
		return "0"
	}
	digits := new(big.Int).Abs(c).String()
	neg := c.Sign() < 0

	var out string
	switch {
	case d.exp >= 0:
		out = digits + strings.Repeat("0", int(d.exp))
	default:
		frac := int(-d.exp)
		if frac >= len(digits) {
			out = "0." + strings.Repeat("0", frac-len(digits)) + digits
		} else {
			out = digits[:len(digits)-frac] + "." + digits[len(digits)-frac:]
		}
	}
	if neg {
		out = "-" + out
	}
	return out
}

// norm strips trailing zero digits from the coefficient so that equal values
// share a canonical representation.
func norm(c *big.Int, exp int32) Dec {
	if c.Sign() == 0 {
		return Dec{}
	}
	r := new(big.Int)
	for {
		q, rem := new(big.Int).QuoRem(c, bigTen, r)
		if rem.Sign() != 0 {
			break
		}
		c = q
		exp++
	}
	return Dec{coef: c, exp: exp}
}
