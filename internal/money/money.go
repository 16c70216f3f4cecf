// Package money wraps shopspring/decimal with the rounding and division rules
// used by every report: accumulate exactly, round once at the boundary.
package money

import (
	"github.com/shopspring/decimal"
)

const (
	// DisplayPlaces is the precision of every public monetary field.
	DisplayPlaces = 2
	// DivisionPlaces bounds the fractional digits kept by Div and Percent.
	DivisionPlaces = 20
)

var hundred = decimal.NewFromInt(100)

// Zero is the additive identity.
var Zero = decimal.Zero

// Sum adds the supplied amounts.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// Div divides a by b and returns zero when b is zero.
func Div(a, b decimal.Decimal) decimal.Decimal {
	if b.IsZero() {
		return decimal.Zero
	}
	return a.DivRound(b, DivisionPlaces)
}

// Percent returns part/whole*100, or zero when whole is zero.
func Percent(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Mul(hundred).DivRound(whole, DivisionPlaces)
}

// VariancePercent returns variance/|comparison|*100. The second value is false
// when the comparison amount is exactly zero and no percentage exists.
func VariancePercent(variance, comparison decimal.Decimal) (decimal.Decimal, bool) {
	if comparison.IsZero() {
		return decimal.Zero, false
	}
	return variance.Mul(hundred).DivRound(comparison.Abs(), DivisionPlaces), true
}

// Round rounds to display precision, half away from zero.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(DisplayPlaces)
}

// Float converts to a rounded float64 for public report fields.
func Float(d decimal.Decimal) float64 {
	return Round(d).InexactFloat64()
}

// FloatPtr is Float for optional fields.
func FloatPtr(d decimal.Decimal) *float64 {
	v := Float(d)
	return &v
}

// Parse reads a decimal string, treating blank input as zero.
func Parse(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// MustParse panics on malformed input; intended for literals and tests.
func MustParse(s string) decimal.Decimal {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}
