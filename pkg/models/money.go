package models

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Money converts a decimal amount to the 2-decimal JSON number used in responses.
func Money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

// Percent returns part/whole*100 rounded to 2 decimals, or 0 when whole is zero.
func Percent(part, whole decimal.Decimal) float64 {
	if whole.IsZero() {
		return 0.0
	}
	return part.Div(whole).Mul(hundred).Round(2).InexactFloat64()
}

// CountPercent is Percent for integer counts.
func CountPercent(part, whole int64) float64 {
	return Percent(decimal.NewFromInt(part), decimal.NewFromInt(whole))
}
