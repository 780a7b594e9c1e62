package money

import (
	"fmt"

	"github.com/cockroachdb/apd/v3"
)

var ctx = apd.BaseContext.WithPrecision(34)

// Amount is an exact decimal monetary value.
type Amount struct {
	value apd.Decimal
}

// Parse builds an Amount from a decimal string such as "125.00".
func Parse(s string) (Amount, error) {
	var d apd.Decimal
	if _, _, err := d.SetString(s); err != nil {
		return Amount{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return Amount{value: d}, nil
}

// MustParse is Parse for literals known to be valid, mainly in tests.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Zero returns the zero amount.
func Zero() Amount {
	return Amount{}
}

func (a Amount) String() string {
	return a.value.Text('f')
}

func (a Amount) IsZero() bool {
	return a.value.IsZero()
}

// Cmp compares a to other: -1 if less, 0 if equal, +1 if greater.
func (a Amount) Cmp(other Amount) int {
	return a.value.Cmp(&other.value)
}

// Add returns a + other.
func (a Amount) Add(other Amount) Amount {
	var result apd.Decimal
	ctx.Add(&result, &a.value, &other.value)
	return Amount{value: result}
}

// MulInt64 returns a × n, used for rate × accrual units.
func (a Amount) MulInt64(n int64) Amount {
	var factor, result apd.Decimal
	factor.SetInt64(n)
	ctx.Mul(&result, &a.value, &factor)
	return Amount{value: result}
}
