// Package extractor defines the contract every supplier strategy implements
// and the generic fallbacks shared by all of them.
//
// A strategy is a small value: a Descriptor plus ExtractLines. Header fields
// (total, date, reference) and the fiscal table come from the embedded Base
// unless the supplier's format needs an override.
//
// Failure model:
//   - "Not found" is never an error. Every operation reports it with a false
//     flag or an empty slice and the pipeline turns it into an invoice error.
//   - Strategies must be re-entrant: the same text always yields the same
//     lines, in the same order.
package extractor

import (
	"github.com/TascaBarea/ParsearFacturas-sub000/internal/parse"
	"github.com/TascaBarea/ParsearFacturas-sub000/pkg/models"
)

// Descriptor is the declarative metadata of a strategy. It is readable
// without running any extraction.
type Descriptor struct {
	// Name is the canonical supplier name written to the ledger.
	Name string

	// FiscalID is the supplier's CIF/NIF.
	FiscalID string

	// IBAN is the supplier's declared account. Empty for card or cash suppliers.
	IBAN string

	// Capability is the text backend the strategy needs.
	Capability models.Capability

	// FixedCategory, when set, is applied to every line.
	FixedCategory string

	// FixedVAT is the supplier's single VAT rate, if it has one.
	FixedVAT *int

	// WithholdingPct is the IRPF retention applied by rental or professional
	// suppliers. Zero means none.
	WithholdingPct float64

	// Aliases are additional registry keys (trade names, abbreviations,
	// filename tokens).
	Aliases []string

	// Currency is the currency amounts are printed in. Empty means EUR.
	Currency string

	// ProrateFreight folds freight lines into the products of the same VAT rate.
	ProrateFreight bool

	// CorrectVAT lets reconciliation reassign line VAT from the fiscal table.
	CorrectVAT bool
}

// Keys returns the registry keys of the descriptor: the name followed by the aliases.
func (d Descriptor) Keys() []string {
	keys := make([]string, 0, len(d.Aliases)+1)
	keys = append(keys, d.Name)
	return append(keys, d.Aliases...)
}

// InCurrency returns the printed currency, defaulting to EUR.
func (d Descriptor) InCurrency() string {
	if d.Currency == "" {
		return "EUR"
	}
	return d.Currency
}

// Strategy extracts one supplier's invoice format.
type Strategy interface {
	// Descriptor returns the strategy metadata.
	Descriptor() Descriptor

	// ExtractLines returns the product and service lines in printed order,
	// plus any warnings about rejected or suspicious lines.
	ExtractLines(text string) ([]models.InvoiceLine, []string)

	// ExtractTotal returns the printed total including VAT.
	ExtractTotal(text string) (float64, bool)

	// ExtractDate returns the invoice date as DD/MM/YYYY.
	ExtractDate(text string) (string, bool)

	// ExtractReference returns the supplier-assigned invoice number.
	ExtractReference(text string) (string, bool)
}

// FiscalTableExtractor is implemented by strategies that expose the per-rate
// base breakdown printed at the bottom of their invoices.
type FiscalTableExtractor interface {
	ExtractFiscalTable(text string) []models.FiscalRow
}

// IdentityExtractor is implemented by strategies that read the supplier's
// identity from the document instead of declaring it.
type IdentityExtractor interface {
	ExtractFiscalID(text string) (string, bool)
}

// Rate returns a pointer to a VAT rate, for Descriptor.FixedVAT.
func Rate(vat int) *int {
	return &vat
}

// ComputeBaseFromTotal returns round(total / (1 + vat/100), 2).
func ComputeBaseFromTotal(total float64, vat int) float64 {
	return parse.BaseFromTotal(total, vat)
}

// ComputeTotalFromBase returns round(base × (1 + vat/100), 2).
func ComputeTotalFromBase(base float64, vat int) float64 {
	return parse.TotalFromBase(base, vat)
}
