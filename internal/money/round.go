// Package money holds the fixed-point rounding rule used by the totals
// calculator.
package money

import "github.com/shopspring/decimal"

var half = decimal.NewFromFloat(0.5)
var two = decimal.NewFromInt(2)

// RoundBankers rounds d to the given number of decimal places using
// round-half-to-even. shopspring/decimal's own Round methods round
// half-away-from-zero, which is not what money calculations here require.
func RoundBankers(d decimal.Decimal, places int32) decimal.Decimal {
	neg := d.IsNegative()
	abs := d.Abs()

	shifted := abs.Shift(places)
	floor := shifted.Truncate(0)
	diff := shifted.Sub(floor)

	var result decimal.Decimal
	switch {
	case diff.GreaterThan(half):
		result = floor.Add(decimal.NewFromInt(1))
	case diff.LessThan(half):
		result = floor
	default:
		if floor.Mod(two).IsZero() {
			result = floor
		} else {
			result = floor.Add(decimal.NewFromInt(1))
		}
	}

	result = result.Shift(-places)
	if neg && !result.IsZero() {
		result = result.Neg()
	}
	return result
}
