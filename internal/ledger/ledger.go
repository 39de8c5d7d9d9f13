// Package ledger collects processed invoices and derives the rows and
// statistics the writers render: the detail sheet, the per-supplier summary,
// the error sheet and the aggregate figures of the run log.
//
// A Ledger only reads the invoices it holds. Every derived view is computed
// on demand and comes back in a deterministic order.
package ledger

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/TascaBarea/ParsearFacturas-sub000/internal/parse"
	"github.com/TascaBarea/ParsearFacturas-sub000/pkg/models"
)

// DetailHeader is the column set of the detail sheet, in order.
var DetailHeader = []string{
	"#", "FECHA", "REF", "PROVEEDOR", "ARTICULO", "CATEGORIA",
	"CANTIDAD", "PRECIO_UD", "IVA", "BASE", "TOTAL_FAC", "CUADRE",
}

// SummaryHeader is the column set of the per-supplier summary.
var SummaryHeader = []string{"PROVEEDOR", "CIF", "FACTURAS", "OK", "% OK", "BASE", "TOTAL_CALC", "TOTAL_FAC"}

// ErrorHeader is the column set of the error sheet.
var ErrorHeader = []string{"#", "ARCHIVO", "PROVEEDOR", "FECHA", "REF", "CUADRE", "DETALLE"}

// Ledger is the in-memory collection of a batch, in submission order.
type Ledger struct {
	invoices []*models.Invoice
}

// New creates a ledger holding invoices.
func New(invoices ...*models.Invoice) *Ledger {
	l := &Ledger{}
	l.Add(invoices...)
	return l
}

// Add appends invoices, skipping nil entries.
func (l *Ledger) Add(invoices ...*models.Invoice) {
	for _, inv := range invoices {
		if inv != nil {
			l.invoices = append(l.invoices, inv)
		}
	}
}

// Invoices returns the collected invoices in submission order.
func (l *Ledger) Invoices() []*models.Invoice {
	return l.invoices
}

// Len returns the number of invoices.
func (l *Ledger) Len() int {
	return len(l.invoices)
}

// DetailRow is one row of the detail sheet.
type DetailRow struct {
	Number       int
	Date         string
	Reference    string
	Supplier     string
	Article      string
	Category     string
	Quantity     *float64
	UnitPrice    *float64
	VAT          int
	Base         float64
	InvoiceTotal *float64 // printed total, repeated on every line of the invoice
	Status       models.Status
}

// Values returns the row as cell values, numbers kept numeric.
func (r DetailRow) Values() []any {
	return []any{
		r.Number,                 // A: #
		r.Date,                   // B: FECHA
		r.Reference,              // C: REF
		r.Supplier,               // D: PROVEEDOR
		r.Article,                // E: ARTICULO
		r.Category,               // F: CATEGORIA
		optional(r.Quantity),     // G: CANTIDAD
		optional(r.UnitPrice),    // H: PRECIO_UD
		r.VAT,                    // I: IVA
		r.Base,                   // J: BASE
		optional(r.InvoiceTotal), // K: TOTAL_FAC
		string(r.Status),         // L: CUADRE
	}
}

func optional(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}

// Detail returns one row per invoice line. An invoice without lines still
// gets a row, with empty article and zero base, so that every document is
// visible in the sheet.
func (l *Ledger) Detail() []DetailRow {
	var rows []DetailRow
	for _, inv := range l.invoices {
		head := DetailRow{
			Number:       inv.Number,
			Date:         inv.Date,
			Reference:    inv.Reference,
			Supplier:     inv.Supplier,
			InvoiceTotal: inv.Total,
			Status:       inv.Status,
		}
		if len(inv.Lines) == 0 {
			rows = append(rows, head)
			continue
		}
		for _, line := range inv.Lines {
			r := head
			r.Article = line.Article
			r.Category = line.Category
			r.Quantity = line.Quantity
			r.UnitPrice = line.UnitPrice
			r.VAT = line.VAT
			r.Base = line.Base
			rows = append(rows, r)
		}
	}
	return rows
}

// SupplierSummary aggregates the invoices of one supplier.
type SupplierSummary struct {
	Supplier   string
	SupplierID string
	Invoices   int
	OK         int
	Base       float64 // Σ line bases
	CalcTotal  float64 // Σ calculated totals
	Printed    float64 // Σ printed totals, where present
}

// OKRatio returns the share of invoices that balanced, in [0, 1].
func (s SupplierSummary) OKRatio() float64 {
	if s.Invoices == 0 {
		return 0
	}
	return float64(s.OK) / float64(s.Invoices)
}

// Values returns the summary as cell values.
func (s SupplierSummary) Values() []any {
	return []any{
		s.Supplier,
		s.SupplierID,
		s.Invoices,
		s.OK,
		parse.Round2(s.OKRatio() * 100),
		s.Base,
		s.CalcTotal,
		s.Printed,
	}
}

// Summary returns one entry per supplier, sorted by supplier name.
func (l *Ledger) Summary() []SupplierSummary {
	bySupplier := make(map[string]*SupplierSummary)
	for _, inv := range l.invoices {
		s, ok := bySupplier[inv.Supplier]
		if !ok {
			s = &SupplierSummary{Supplier: inv.Supplier}
			bySupplier[inv.Supplier] = s
		}
		if s.SupplierID == "" {
			s.SupplierID = inv.SupplierID
		}
		s.Invoices++
		if inv.Status.IsOK() {
			s.OK++
		}
		s.Base = parse.Sum(s.Base, inv.SumBases())
		s.CalcTotal = parse.Sum(s.CalcTotal, inv.CalcTotal)
		if inv.Total != nil {
			s.Printed = parse.Sum(s.Printed, *inv.Total)
		}
	}

	out := make([]SupplierSummary, 0, len(bySupplier))
	for _, s := range bySupplier {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Supplier < out[j].Supplier })
	return out
}

// ErrorRow is one row of the error sheet.
type ErrorRow struct {
	Number    int
	File      string
	Supplier  string
	Date      string
	Reference string
	Status    models.Status
	Detail    string // the invoice's errors joined with " | "
}

// Values returns the row as cell values.
func (r ErrorRow) Values() []any {
	return []any{r.Number, r.File, r.Supplier, r.Date, r.Reference, string(r.Status), r.Detail}
}

// Errors returns one row per invoice whose status is not OK, in submission
// order.
func (l *Ledger) Errors() []ErrorRow {
	var rows []ErrorRow
	for _, inv := range l.invoices {
		if inv.Status.IsOK() {
			continue
		}
		rows = append(rows, ErrorRow{
			Number:    inv.Number,
			File:      filepath.Base(inv.SourcePath),
			Supplier:  inv.Supplier,
			Date:      inv.Date,
			Reference: inv.Reference,
			Status:    inv.Status,
			Detail:    strings.Join(inv.Errors, " | "),
		})
	}
	return rows
}

