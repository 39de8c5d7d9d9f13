// Package reconciliation finalizes invoices produced by supplier strategies.
//
// The engine runs four phases over a partially populated invoice:
//   - A: freight proration over the products of the same VAT rate.
//   - B: VAT correction from the fiscal table by subset-sum.
//   - C: total reconciliation against the printed total.
//   - D: integrity checks on VAT domain, date and supplier.
//
// Phases A and B run only when the strategy opted in. The engine never
// adjusts bases to make a total balance.
package reconciliation

import (
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/TascaBarea/ParsearFacturas-sub000/internal/logger"
	"github.com/TascaBarea/ParsearFacturas-sub000/internal/parse"
	"github.com/TascaBarea/ParsearFacturas-sub000/pkg/models"
)

const (
	// TotalTolerance is the accepted gap between calculated and printed totals.
	TotalTolerance = 0.05

	// TableTolerance is the accepted gap between a fiscal-table base and the
	// lines assigned to it, in cents.
	TableTolerance = 2
)

// Options carries the strategy's declarations for one invoice.
type Options struct {
	ProrateFreight bool
	CorrectVAT     bool
	FiscalTable    []models.FiscalRow
}

// Engine runs the reconciliation phases. It holds no per-invoice state.
type Engine struct {
	log zerolog.Logger
}

// New creates an engine.
func New() *Engine {
	return &Engine{log: logger.WithComponent("reconciliation")}
}

// Reconcile seals inv: it prorates freight, corrects VAT, computes CalcTotal
// and sets exactly one status. An invoice already marked NO_TEXT only gets
// its total computed.
func (e *Engine) Reconcile(inv *models.Invoice, opts Options) {
	if inv.Status == models.StatusNoText {
		inv.CalcTotal = inv.ComputeTotal()
		return
	}
	if len(inv.Lines) == 0 {
		inv.Status = models.StatusSinLineas
		inv.AddError(models.KindSinLineas, "no lines extracted")
		return
	}

	if opts.ProrateFreight {
		inv.Lines = ProrateFreight(inv.Lines)
	}
	if len(opts.FiscalTable) > 0 {
		e.checkFiscalTable(inv, opts)
	}

	inv.CalcTotal = inv.ComputeTotal()
	switch {
	case inv.Total == nil:
		inv.Status = models.StatusSinTotal
		inv.AddError(models.KindSinTotal, "printed total not found, calculated %s", parse.FormatMoney(inv.CalcTotal))
	case math.Abs(inv.CalcTotal-*inv.Total) <= TotalTolerance+1e-9:
		inv.Status = models.StatusOK
	default:
		delta := parse.Round2(inv.CalcTotal - *inv.Total)
		inv.Status = models.Descuadre(delta)
		inv.AddError(models.KindDescuadre, "calculated %s vs printed %s (difference %s)",
			parse.FormatMoney(inv.CalcTotal), parse.FormatMoney(*inv.Total), parse.FormatMoney(delta))
	}

	if violations := Integrity(inv); len(violations) > 0 {
		inv.Status = models.StatusDescuadreInvariante
		for _, v := range violations {
			inv.AddError(models.KindInvariant, "%s", v)
		}
	}
}

// ProrateFreight folds every freight line into the non-freight lines of the
// same VAT rate, proportionally to their bases. Rounding residue goes to the
// line with the largest absolute base, so each rate's base sum is preserved
// to the cent. Freight lines whose rate has no products are kept.
func ProrateFreight(lines []models.InvoiceLine) []models.InvoiceLine {
	freight := make(map[int]decimal.Decimal)
	products := make(map[int][]int)
	for i, l := range lines {
		if l.Freight && !l.Correction {
			freight[l.VAT] = freight[l.VAT].Add(decimal.NewFromFloat(l.Base))
			continue
		}
		if !l.Correction {
			products[l.VAT] = append(products[l.VAT], i)
		}
	}
	if len(freight) == 0 {
		return lines
	}

	out := make([]models.InvoiceLine, len(lines))
	copy(out, lines)
	folded := make(map[int]bool)

	for vat, f := range freight {
		idx := products[vat]
		sum := decimal.Zero
		for _, i := range idx {
			sum = sum.Add(decimal.NewFromFloat(out[i].Base))
		}
		if len(idx) == 0 || sum.IsZero() {
			continue
		}

		allotted := decimal.Zero
		largest := idx[0]
		for _, i := range idx {
			b := decimal.NewFromFloat(out[i].Base)
			inc := f.Mul(b).Div(sum).Round(2)
			allotted = allotted.Add(inc)
			out[i].Base = b.Add(inc).InexactFloat64()
			if math.Abs(lines[i].Base) > math.Abs(lines[largest].Base) {
				largest = i
			}
		}
		if residual := f.Sub(allotted); !residual.IsZero() {
			out[largest].Base = decimal.NewFromFloat(out[largest].Base).Add(residual).InexactFloat64()
		}
		folded[vat] = true
	}

	kept := out[:0]
	for _, l := range out {
		if l.Freight && !l.Correction && folded[l.VAT] {
			continue
		}
		kept = append(kept, l)
	}
	return kept
}

// checkFiscalTable compares per-rate line bases with the printed table. On
// mismatch it warns and, when the strategy allows it, reassigns line VAT.
func (e *Engine) checkFiscalTable(inv *models.Invoice, opts Options) {
	if tableMatches(inv.Lines, opts.FiscalTable) {
		return
	}
	inv.AddWarning(models.KindVATMismatch, "line bases per rate %s do not match the fiscal table %s",
		formatRates(lineSums(inv.Lines)), formatRates(tableSums(opts.FiscalTable)))
	if !opts.CorrectVAT {
		return
	}

	var candidates []int
	for i, l := range inv.Lines {
		if !l.Withholding && l.Base != 0 {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) > MaxSubsetLines {
		inv.AddWarning(models.KindVATGuessSkipped, "%d lines exceed the subset search limit of %d", len(candidates), MaxSubsetLines)
		e.log.Warn().
			Str("document", inv.SourcePath).
			Int("lines", len(candidates)).
			Msg("Fiscal table correction skipped")
		return
	}

	assigned := SolveVAT(inv.Lines, candidates, opts.FiscalTable)
	changed := 0
	for _, i := range candidates {
		l := &inv.Lines[i]
		vat, ok := assigned[i]
		switch {
		case !ok:
			l.Warnings = append(l.Warnings, fmt.Sprintf("%s: kept %d%%, no fiscal-table subset", models.KindVATGuessed, l.VAT))
		case vat != l.VAT:
			l.Warnings = append(l.Warnings, fmt.Sprintf("%s: %d%% -> %d%%", models.KindVATGuessed, l.VAT, vat))
			l.VAT, l.VATSource = vat, models.VATFromTable
			changed++
		}
	}
	if changed > 0 {
		inv.AddWarning(models.KindVATGuessed, "%d line(s) reassigned from the fiscal table", changed)
	}
}

// SolveVAT assigns fiscal-table rates to candidate lines. Rows are solved
// from the smallest base up; each row takes the best subset of the lines
// still unassigned. The result maps line index to rate.
func SolveVAT(lines []models.InvoiceLine, candidates []int, table []models.FiscalRow) map[int]int {
	cents := make([]int64, len(candidates))
	for k, i := range candidates {
		cents[k] = parse.Cents(lines[i].Base)
	}
	sums := subsetSums(cents)

	rows := append([]models.FiscalRow(nil), table...)
	sort.SliceStable(rows, func(a, b int) bool { return rows[a].Base < rows[b].Base })

	remaining := uint32(1)<<len(candidates) - 1
	assigned := make(map[int]int)
	for _, row := range rows {
		if remaining == 0 {
			break
		}
		mask, ok := bestSubset(sums, remaining, parse.Cents(row.Base), TableTolerance)
		if !ok {
			continue
		}
		for k := range candidates {
			if mask&(1<<k) != 0 {
				assigned[candidates[k]] = row.VAT
			}
		}
		remaining &^= mask
	}
	return assigned
}

// Integrity returns the violated invoice invariants: VAT outside the domain
// on a non-correction line, a date that is not a calendar date, an empty
// supplier.
func Integrity(inv *models.Invoice) []string {
	var out []string
	for i, l := range inv.Lines {
		if !l.Correction && !models.ValidVAT(l.VAT) {
			out = append(out, fmt.Sprintf("line %d has VAT %d%% outside {0,2,4,10,21}", i+1, l.VAT))
		}
		if !l.Correction && l.Base < 0 {
			out = append(out, fmt.Sprintf("line %d has a negative base without being a correction", i+1))
		}
	}
	if inv.Date != "" && !parse.ValidDate(inv.Date) {
		out = append(out, fmt.Sprintf("date %q is not a calendar date", inv.Date))
	}
	if inv.Supplier == "" {
		out = append(out, "supplier is empty")
	}
	return out
}

func tableMatches(lines []models.InvoiceLine, table []models.FiscalRow) bool {
	got := lineSums(lines)
	want := tableSums(table)
	for vat, c := range got {
		if c != 0 {
			if _, ok := want[vat]; !ok {
				return false
			}
		}
	}
	for vat, c := range want {
		d := got[vat] - c
		if d < -TableTolerance || d > TableTolerance {
			return false
		}
	}
	return true
}

func lineSums(lines []models.InvoiceLine) map[int]int64 {
	sums := make(map[int]int64)
	for _, l := range lines {
		if !l.Withholding {
			sums[l.VAT] += parse.Cents(l.Base)
		}
	}
	return sums
}

func tableSums(table []models.FiscalRow) map[int]int64 {
	sums := make(map[int]int64)
	for _, r := range table {
		sums[r.VAT] += parse.Cents(r.Base)
	}
	return sums
}

func formatRates(sums map[int]int64) string {
	rates := make([]int, 0, len(sums))
	for vat := range sums {
		rates = append(rates, vat)
	}
	sort.Ints(rates)
	s := "{"
	for i, vat := range rates {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%d%%: %s", vat, parse.FormatMoney(parse.FromCents(sums[vat])))
	}
	return s + "}"
}
