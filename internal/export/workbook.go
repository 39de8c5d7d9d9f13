// Package export renders a batch ledger to files: an Excel workbook with the
// detail, summary and error sheets, and a plain-text run log.
package export

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/TascaBarea/ParsearFacturas-sub000/internal/ledger"
)

// Sheet names of the workbook.
const (
	SheetDetail  = "Facturas"
	SheetSummary = "Resumen"
	SheetErrors  = "Errores"
)

// ErrNoLedger is returned when there is nothing to write.
var ErrNoLedger = errors.New("no ledger to export")

// moneyFormat is the built-in "#,##0.00" number format.
const moneyFormat = 4

// OutputPaths returns the workbook and log paths of a run started at
// started, inside dir.
func OutputPaths(dir string, started time.Time) (workbook, log string) {
	stamp := started.Format("20060102_150405")
	return filepath.Join(dir, "facturas_"+stamp+".xlsx"), filepath.Join(dir, "facturas_"+stamp+".log")
}

// sheetLayout describes one sheet of the workbook.
type sheetLayout struct {
	name   string
	header []string
	rows   [][]any
	widths map[string]float64
	money  []string // column letters holding amounts
}

// WriteWorkbook writes the three sheets of l to path.
func WriteWorkbook(path string, l *ledger.Ledger) error {
	const op = "WriteWorkbook"

	if l == nil {
		return fmt.Errorf("%s: %w", op, ErrNoLedger)
	}

	f := excelize.NewFile()
	defer f.Close()

	layouts := []sheetLayout{
		{
			name:   SheetDetail,
			header: ledger.DetailHeader,
			rows:   detailValues(l),
			widths: map[string]float64{"A": 6, "B": 12, "C": 16, "D": 34, "E": 40, "F": 20, "L": 22},
			money:  []string{"H", "J", "K"},
		},
		{
			name:   SheetSummary,
			header: ledger.SummaryHeader,
			rows:   summaryValues(l),
			widths: map[string]float64{"A": 34, "B": 12},
			money:  []string{"F", "G", "H"},
		},
		{
			name:   SheetErrors,
			header: ledger.ErrorHeader,
			rows:   errorValues(l),
			widths: map[string]float64{"A": 6, "B": 34, "C": 34, "D": 12, "E": 16, "F": 22, "G": 80},
		},
	}

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
	})
	if err != nil {
		return fmt.Errorf("%s: header style: %w", op, err)
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: moneyFormat})
	if err != nil {
		return fmt.Errorf("%s: money style: %w", op, err)
	}

	for i, layout := range layouts {
		if i == 0 {
			// NewFile starts with a default sheet; reuse it for the first one.
			if err := f.SetSheetName(f.GetSheetName(0), layout.name); err != nil {
				return fmt.Errorf("%s: rename sheet: %w", op, err)
			}
		} else if _, err := f.NewSheet(layout.name); err != nil {
			return fmt.Errorf("%s: create sheet %s: %w", op, layout.name, err)
		}
		if err := writeSheet(f, layout, header, money); err != nil {
			return fmt.Errorf("%s: sheet %s: %w", op, layout.name, err)
		}
	}
	f.SetActiveSheet(0)

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("%s: save %s: %w", op, path, err)
	}
	return nil
}

func writeSheet(f *excelize.File, layout sheetLayout, headerStyle, moneyStyle int) error {
	header := make([]any, len(layout.header))
	for i, h := range layout.header {
		header[i] = h
	}
	if err := f.SetSheetRow(layout.name, "A1", &header); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(layout.header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(layout.name, "A1", last, headerStyle); err != nil {
		return err
	}

	for i, row := range layout.rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(layout.name, cell, &row); err != nil {
			return err
		}
	}

	if len(layout.rows) > 0 {
		end := len(layout.rows) + 1
		for _, col := range layout.money {
			if err := f.SetCellStyle(layout.name, fmt.Sprintf("%s2", col), fmt.Sprintf("%s%d", col, end), moneyStyle); err != nil {
				return err
			}
		}
	}
	for col, w := range layout.widths {
		if err := f.SetColWidth(layout.name, col, col, w); err != nil {
			return err
		}
	}
	return f.SetPanes(layout.name, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func detailValues(l *ledger.Ledger) [][]any {
	rows := l.Detail()
	out := make([][]any, len(rows))
	for i, r := range rows {
		out[i] = r.Values()
	}
	return out
}

func summaryValues(l *ledger.Ledger) [][]any {
	rows := l.Summary()
	out := make([][]any, len(rows))
	for i, r := range rows {
		out[i] = r.Values()
	}
	return out
}

func errorValues(l *ledger.Ledger) [][]any {
	rows := l.Errors()
	out := make([][]any, len(rows))
	for i, r := range rows {
		out[i] = r.Values()
	}
	return out
}
