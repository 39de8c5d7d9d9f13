package models

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Total returns round(base × (1 + vat/100), 2).
func (l InvoiceLine) Total() float64 {
	b := decimal.NewFromFloat(l.Base)
	return b.Add(b.Mul(decimal.NewFromInt(int64(l.VAT))).Div(hundred)).Round(2).InexactFloat64()
}

// VATAmount returns round(base × vat/100, 2).
func (l InvoiceLine) VATAmount() float64 {
	return decimal.NewFromFloat(l.Base).Mul(decimal.NewFromInt(int64(l.VAT))).Div(hundred).Round(2).InexactFloat64()
}

// SumBases returns the sum of line bases, rounded to cents.
func (inv *Invoice) SumBases() float64 {
	sum := decimal.Zero
	for _, l := range inv.Lines {
		sum = sum.Add(decimal.NewFromFloat(l.Base))
	}
	return sum.Round(2).InexactFloat64()
}

// ComputeTotal returns round(Σ base × (1 + vat/100), 2) without intermediate rounding.
func (inv *Invoice) ComputeTotal() float64 {
	sum := decimal.Zero
	for _, l := range inv.Lines {
		b := decimal.NewFromFloat(l.Base)
		sum = sum.Add(b).Add(b.Mul(decimal.NewFromInt(int64(l.VAT))).Div(hundred))
	}
	return sum.Round(2).InexactFloat64()
}
