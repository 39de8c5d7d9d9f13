package parse

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Round2 rounds x to cents, half away from zero.
func Round2(x float64) float64 {
	return decimal.NewFromFloat(x).Round(2).InexactFloat64()
}

// Sum adds xs exactly and rounds the result to cents.
func Sum(xs ...float64) float64 {
	total := decimal.Zero
	for _, x := range xs {
		total = total.Add(decimal.NewFromFloat(x))
	}
	return total.Round(2).InexactFloat64()
}

// Cents converts x to an integer number of cents.
func Cents(x float64) int64 {
	return decimal.NewFromFloat(x).Round(2).Mul(hundred).IntPart()
}

// FromCents converts an integer number of cents to euros.
func FromCents(c int64) float64 {
	return decimal.New(c, -2).InexactFloat64()
}

// BaseFromTotal returns round(total / (1 + vat/100), 2).
func BaseFromTotal(total float64, vat int) float64 {
	factor := hundred.Add(decimal.NewFromInt(int64(vat))).Div(hundred)
	return decimal.NewFromFloat(total).Div(factor).Round(2).InexactFloat64()
}

// TotalFromBase returns round(base × (1 + vat/100), 2).
func TotalFromBase(base float64, vat int) float64 {
	factor := hundred.Add(decimal.NewFromInt(int64(vat))).Div(hundred)
	return decimal.NewFromFloat(base).Mul(factor).Round(2).InexactFloat64()
}

// Percent returns round(base × pct/100, 2).
func Percent(base, pct float64) float64 {
	return decimal.NewFromFloat(base).Mul(decimal.NewFromFloat(pct)).Div(hundred).Round(2).InexactFloat64()
}
