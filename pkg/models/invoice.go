package models

import (
	"fmt"
	"strings"
)

// Invoice is the record produced for one input document. It is filled by a
// supplier strategy, enriched by the category resolver and sealed by the
// reconciliation engine; nothing mutates it after that.
type Invoice struct {
	// Source
	SourcePath string     `json:"source_path"`    // Path of the input document
	Number     int        `json:"number"`         // Sequential number within the batch (1-based)
	Backend    Capability `json:"backend"`        // Backend that produced RawText
	Resolution string     `json:"resolution"`     // How the strategy was chosen: filename, header or fallback
	Strategy   string     `json:"strategy"`       // Canonical name of the strategy that ran
	RawText    string     `json:"-"`              // Extracted text, kept for diagnostics

	// Supplier
	Supplier   string `json:"supplier"`    // Normalized supplier name
	SupplierID string `json:"supplier_id"` // CIF/NIF
	IBAN       string `json:"iban"`        // Empty for card or cash suppliers

	// Header
	Date      string   `json:"date"`      // DD/MM/YYYY, empty when not found
	Reference string   `json:"reference"` // Supplier-assigned invoice number
	Total     *float64 `json:"total"`     // Printed total including VAT (nil when not found)
	Currency  string   `json:"currency"`  // Accounting currency of the stored amounts (always EUR)

	// Detail
	Lines []InvoiceLine `json:"lines"`

	// Reconciliation
	CalcTotal float64  `json:"calc_total"` // round(Σ base × (1 + vat/100), 2)
	Status    Status   `json:"status"`
	Errors    []string `json:"errors"`   // KIND: detail entries explaining a non-OK status
	Warnings  []string `json:"warnings"` // Non-blocking findings (STRATEGY_MISS, VAT_MISMATCH, ...)
	Notes     []string `json:"notes"`    // Informational (CURRENCY_CONVERTED, WITHHOLDING_APPLIED)
}

// InvoiceLine is a single product or service row.
type InvoiceLine struct {
	Article    string    `json:"article"`
	Code       string    `json:"code,omitempty"`
	Quantity   *float64  `json:"quantity,omitempty"`   // May be a weight in kg
	UnitPrice  *float64  `json:"unit_price,omitempty"`
	VAT        int       `json:"vat"`                  // Integer percent
	VATSource  VATSource `json:"vat_source"`
	Base       float64   `json:"base"`                 // Net amount before VAT
	Category   string    `json:"category"`
	CategoryID string    `json:"category_id,omitempty"`

	Freight     bool `json:"freight,omitempty"`     // Separately billed shipping charge
	Correction  bool `json:"correction,omitempty"`  // Discount, deposit return or retention; base may be negative
	Withholding bool `json:"withholding,omitempty"` // IRPF retention line (VAT 0, negative base)

	Note     string   `json:"note,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// VATSource records which precedence level assigned a line's VAT rate.
type VATSource string

const (
	VATUnset       VATSource = ""
	VATFromLine    VATSource = "line"     // Printed on the line and captured by the parser
	VATFromTable   VATSource = "table"    // Reassigned from the fiscal table
	VATFromFixed   VATSource = "supplier" // Supplier's fixed rate
	VATFromDict    VATSource = "dictionary"
	VATFromGuess   VATSource = "heuristic"
	VATFromDefault VATSource = "default"
)

// Capability is the text backend a strategy needs.
type Capability string

const (
	CapText   Capability = "text"
	CapTables Capability = "tables"
	CapOCR    Capability = "ocr"
	CapHybrid Capability = "hybrid"
)

// FiscalRow is one row of the per-rate breakdown printed at the bottom of an invoice.
type FiscalRow struct {
	VAT    int     `json:"vat"`
	Base   float64 `json:"base"`
	Amount float64 `json:"amount"` // VAT amount, 0 when not printed
}

// ValidVAT reports whether rate belongs to the Spanish VAT domain.
func ValidVAT(rate int) bool {
	switch rate {
	case 0, 2, 4, 10, 21:
		return true
	}
	return false
}

// Float returns a pointer to v, for the optional numeric fields.
func Float(v float64) *float64 {
	return &v
}

// AddError appends a KIND: detail entry to the error list.
func (inv *Invoice) AddError(kind, format string, args ...any) {
	inv.Errors = append(inv.Errors, entry(kind, format, args...))
}

// AddWarning appends a KIND: detail entry to the warning list.
func (inv *Invoice) AddWarning(kind, format string, args ...any) {
	inv.Warnings = append(inv.Warnings, entry(kind, format, args...))
}

// AddNote appends a KIND: detail entry to the note list.
func (inv *Invoice) AddNote(kind, format string, args ...any) {
	inv.Notes = append(inv.Notes, entry(kind, format, args...))
}

// HasWarning reports whether a warning of the given kind is attached to the line.
func (l InvoiceLine) HasWarning(kind string) bool {
	for _, w := range l.Warnings {
		if w == kind || strings.HasPrefix(w, kind+":") {
			return true
		}
	}
	return false
}

func entry(kind, format string, args ...any) string {
	if format == "" {
		return kind
	}
	return kind + ": " + fmt.Sprintf(format, args...)
}
