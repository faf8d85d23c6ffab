package shared

import "github.com/shopspring/decimal"

// RoundCents rounds half away from zero to two decimals.
func RoundCents(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// Dec converts a float input into an exact decimal using its shortest representation.
func Dec(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}
