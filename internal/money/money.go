// Package money holds the rounding and formatting rules for monetary values.
package money

import (
	"math"
	"strconv"

	"github.com/shopspring/decimal"
)

// Round2 rounds v to two decimal places, half away from zero, working on the
// shortest decimal representation of v rather than its binary expansion.
// 1.005 therefore rounds to 1.01.
func Round2(v float64) float64 {
	if !finite(v) {
		return v
	}
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// Format2 renders v with exactly two decimal places using the same rounding as Round2.
func Format2(v float64) string {
	if !finite(v) {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return decimal.NewFromFloat(v).StringFixed(2)
}

// Equal reports whether a and b differ by no more than tolerance.
func Equal(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
