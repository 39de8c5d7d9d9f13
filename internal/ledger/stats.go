package ledger

import (
	"path/filepath"
	"slices"
	"sort"

	"github.com/TascaBarea/ParsearFacturas-sub000/internal/parse"
	"github.com/TascaBarea/ParsearFacturas-sub000/internal/registry"
	"github.com/TascaBarea/ParsearFacturas-sub000/pkg/models"
)

// StatusCount is the number of invoices that ended with a status.
type StatusCount struct {
	Status models.Status
	Count  int
}

// Stats are the aggregate figures of a batch.
type Stats struct {
	Documents int
	Lines     int
	OK        int
	Warnings  int // invoices with at least one warning
	Statuses  []StatusCount

	// Strategy resolution paths.
	ByFilename int
	ByHeader   int
	ByFallback int

	Base      float64 // Σ line bases
	CalcTotal float64 // Σ calculated totals
	Printed   float64 // Σ printed totals, where present
}

// OKRatio returns the share of invoices that balanced, in [0, 1].
func (s Stats) OKRatio() float64 {
	if s.Documents == 0 {
		return 0
	}
	return float64(s.OK) / float64(s.Documents)
}

// Stats computes the aggregate figures. Statuses come back sorted by count,
// most frequent first, then by status token. All descuadres are counted
// under their own token.
func (l *Ledger) Stats() Stats {
	var (
		st     = Stats{Documents: len(l.invoices)}
		counts = make(map[models.Status]int)

		bases, calc, printed []float64
	)
	for _, inv := range l.invoices {
		st.Lines += len(inv.Lines)
		counts[inv.Status]++
		if inv.Status.IsOK() {
			st.OK++
		}
		if len(inv.Warnings) > 0 {
			st.Warnings++
		}
		switch inv.Resolution {
		case registry.ByFilename:
			st.ByFilename++
		case registry.ByHeader:
			st.ByHeader++
		case registry.ByFallback:
			st.ByFallback++
		}

		bases = append(bases, inv.SumBases())
		calc = append(calc, inv.CalcTotal)
		if inv.Total != nil {
			printed = append(printed, *inv.Total)
		}
	}
	st.Base = parse.Sum(bases...)
	st.CalcTotal = parse.Sum(calc...)
	st.Printed = parse.Sum(printed...)

	for status, n := range counts {
		st.Statuses = append(st.Statuses, StatusCount{Status: status, Count: n})
	}
	sort.Slice(st.Statuses, func(i, j int) bool {
		a, b := st.Statuses[i], st.Statuses[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Status < b.Status
	})
	return st
}

// Identity pairs a supplier with one of its identifiers.
type Identity struct {
	Supplier string
	Value    string
}

// FiscalIDs returns the unique supplier fiscal IDs seen, sorted by ID.
func (l *Ledger) FiscalIDs() []Identity {
	return l.unique(func(inv *models.Invoice) string { return inv.SupplierID })
}

// IBANs returns the unique supplier IBANs seen, sorted by IBAN.
func (l *Ledger) IBANs() []Identity {
	return l.unique(func(inv *models.Invoice) string { return inv.IBAN })
}

// unique keeps the first supplier seen for each value. Values are compared
// without separators, so "ES12 3456" and "ES123456" are the same IBAN.
func (l *Ledger) unique(value func(*models.Invoice) string) []Identity {
	seen := make(map[string]bool)
	var out []Identity
	for _, inv := range l.invoices {
		v := value(inv)
		key := parse.Compact(v)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, Identity{Supplier: inv.Supplier, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return parse.Compact(out[i].Value) < parse.Compact(out[j].Value) })
	return out
}

// Notes returns, per invoice with anything to report, its notes, warnings
// and errors, in submission order.
func (l *Ledger) Notes() []DocumentNotes {
	var out []DocumentNotes
	for _, inv := range l.invoices {
		warnings := slices.Clone(inv.Warnings)
		for _, line := range inv.Lines {
			for _, w := range line.Warnings {
				warnings = append(warnings, line.Article+": "+w)
			}
		}
		if len(inv.Notes)+len(warnings)+len(inv.Errors) == 0 {
			continue
		}
		out = append(out, DocumentNotes{
			Number:   inv.Number,
			File:     filepath.Base(inv.SourcePath),
			Supplier: inv.Supplier,
			Status:   inv.Status,
			Notes:    inv.Notes,
			Warnings: warnings,
			Errors:   inv.Errors,
		})
	}
	return out
}

// DocumentNotes is what the log reports about one invoice.
type DocumentNotes struct {
	Number   int
	File     string
	Supplier string
	Status   models.Status
	Notes    []string
	Warnings []string
	Errors   []string
}
