package export

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/TascaBarea/ParsearFacturas-sub000/internal/category"
	"github.com/TascaBarea/ParsearFacturas-sub000/internal/ledger"
	"github.com/TascaBarea/ParsearFacturas-sub000/internal/parse"
)

// Report is everything the run log covers.
type Report struct {
	RunID    uuid.UUID
	Input    string
	Started  time.Time
	Duration time.Duration
	Ledger   *ledger.Ledger
	Pending  []category.PendingItem
	Skipped  []string // documents that could not be read, with the reason
}

// NewRunID returns a fresh batch run ID.
func NewRunID() uuid.UUID {
	return uuid.New()
}

// WriteLogFile writes the run log to path.
func WriteLogFile(path string, r Report) error {
	const op = "WriteLogFile"

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := WriteLog(f, r); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// WriteLog renders the run log: header, aggregate statistics, unique fiscal
// IDs and IBANs, pending categories and per-document notes.
func WriteLog(w io.Writer, r Report) error {
	if r.Ledger == nil {
		return ErrNoLedger
	}

	b := bufio.NewWriter(w)
	section := func(title string) {
		fmt.Fprintf(b, "\n%s\n%s\n", title, strings.Repeat("=", len(title)))
	}

	fmt.Fprintf(b, "RUN %s\n", r.RunID)
	if r.Input != "" {
		fmt.Fprintf(b, "Input:    %s\n", r.Input)
	}
	if !r.Started.IsZero() {
		fmt.Fprintf(b, "Started:  %s\n", r.Started.Format("02/01/2006 15:04:05"))
	}
	if r.Duration > 0 {
		fmt.Fprintf(b, "Duration: %s\n", r.Duration.Round(time.Millisecond))
	}

	st := r.Ledger.Stats()
	section("STATISTICS")
	fmt.Fprintf(b, "Documents:        %d\n", st.Documents)
	fmt.Fprintf(b, "Lines:            %d\n", st.Lines)
	fmt.Fprintf(b, "OK:               %d (%s%%)\n", st.OK, parse.FormatMoney(st.OKRatio()*100))
	fmt.Fprintf(b, "With warnings:    %d\n", st.Warnings)
	fmt.Fprintf(b, "Resolved by:      filename %d, header %d, fallback %d\n", st.ByFilename, st.ByHeader, st.ByFallback)
	fmt.Fprintf(b, "Σ base:           %s\n", parse.FormatMoney(st.Base))
	fmt.Fprintf(b, "Σ calculated:     %s\n", parse.FormatMoney(st.CalcTotal))
	fmt.Fprintf(b, "Σ printed:        %s\n", parse.FormatMoney(st.Printed))
	for _, sc := range st.Statuses {
		fmt.Fprintf(b, "  %-24s %d\n", sc.Status, sc.Count)
	}

	if len(r.Skipped) > 0 {
		section("SKIPPED DOCUMENTS")
		for _, s := range r.Skipped {
			fmt.Fprintf(b, "- %s\n", s)
		}
	}

	section("FISCAL IDS")
	for _, id := range r.Ledger.FiscalIDs() {
		fmt.Fprintf(b, "%-12s %s\n", id.Value, id.Supplier)
	}

	section("IBANS")
	for _, iban := range r.Ledger.IBANs() {
		fmt.Fprintf(b, "%-34s %s\n", iban.Value, iban.Supplier)
	}

	section(fmt.Sprintf("PENDING CATEGORIES (%d)", len(r.Pending)))
	for _, p := range r.Pending {
		fmt.Fprintf(b, "%s | %s\n", p.Supplier, p.Article)
	}

	section("DOCUMENTS")
	for _, n := range r.Ledger.Notes() {
		fmt.Fprintf(b, "#%d %s [%s] %s\n", n.Number, n.File, n.Status, n.Supplier)
		for _, e := range n.Errors {
			fmt.Fprintf(b, "  error:   %s\n", e)
		}
		for _, wn := range n.Warnings {
			fmt.Fprintf(b, "  warning: %s\n", wn)
		}
		for _, note := range n.Notes {
			fmt.Fprintf(b, "  note:    %s\n", note)
		}
	}

	return b.Flush()
}
