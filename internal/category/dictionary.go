// Package category maps (supplier, article) pairs to a business category and
// a default VAT rate using an external, read-only dictionary.
package category

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/TascaBarea/ParsearFacturas-sub000/internal/parse"
	"github.com/TascaBarea/ParsearFacturas-sub000/pkg/models"
)

// ErrCorruptDictionary is returned when the dictionary cannot be read or
// lacks a required column. It is one of the few failures that stop a run.
var ErrCorruptDictionary = errors.New("corrupt category dictionary")

// Entry is one dictionary row.
type Entry struct {
	Supplier   string
	Article    string
	Category   string
	CategoryID string
	VAT        int
	HasVAT     bool // false when TIPO_IVA was empty or unparsable
}

// Dictionary indexes entries by normalized supplier key. It is never
// mutated after construction.
type Dictionary struct {
	bySupplier map[string][]row
	size       int
}

type row struct {
	Entry
	compact string // parse.Compact of the article
}

// NewDictionary indexes entries. Rows with an empty article are skipped.
// Rows with an empty supplier apply to every supplier.
func NewDictionary(entries []Entry) *Dictionary {
	d := &Dictionary{bySupplier: make(map[string][]row)}
	for _, e := range entries {
		compact := parse.Compact(e.Article)
		if compact == "" {
			continue
		}
		if strings.TrimSpace(e.Category) == "" {
			e.Category = models.CategoryPending
		}
		sk := parse.Key(e.Supplier)
		d.bySupplier[sk] = append(d.bySupplier[sk], row{Entry: e, compact: compact})
		d.size++
	}
	return d
}

// Len returns the number of indexed rows.
func (d *Dictionary) Len() int {
	if d == nil {
		return 0
	}
	return d.size
}

// Suppliers returns the number of distinct supplier keys.
func (d *Dictionary) Suppliers() int {
	if d == nil {
		return 0
	}
	return len(d.bySupplier)
}

// LoadDictionary reads a .csv or .xlsx dictionary with the columns
// PROVEEDOR, ARTICULO, CATEGORIA and optionally TIPO_IVA and ID_CATEGORIA.
// Headers are matched case- and accent-insensitively.
func LoadDictionary(path string) (*Dictionary, error) {
	const op = "LoadDictionary"

	var (
		records [][]string
		err     error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		records, err = readXLSX(path)
	case ".csv", ".txt":
		records, err = readCSV(path)
	default:
		return nil, fmt.Errorf("%s: %w: unsupported extension %q", op, ErrCorruptDictionary, filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrCorruptDictionary, err)
	}

	entries, err := parseRecords(records)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %s: %v", op, ErrCorruptDictionary, filepath.Base(path), err)
	}
	return NewDictionary(entries), nil
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	return f.GetRows(sheets[0])
}

func readCSV(path string) ([][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	header, _, _ := bufio.NewReader(bytes.NewReader(data)).ReadLine()
	r := csv.NewReader(bytes.NewReader(data))
	if bytes.Count(header, []byte(";")) > bytes.Count(header, []byte(",")) {
		r.Comma = ';'
	}
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var records [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
}

type columns struct {
	supplier, article, category, vat, id int
}

func parseRecords(records [][]string) ([]Entry, error) {
	if len(records) == 0 {
		return nil, errors.New("empty file")
	}

	cols := columns{supplier: -1, article: -1, category: -1, vat: -1, id: -1}
	for i, h := range records[0] {
		switch parse.Key(h) {
		case "PROVEEDOR":
			cols.supplier = i
		case "ARTICULO":
			cols.article = i
		case "CATEGORIA":
			cols.category = i
		case "TIPO IVA", "IVA":
			cols.vat = i
		case "ID CATEGORIA", "ID":
			cols.id = i
		}
	}
	var missing []string
	if cols.supplier < 0 {
		missing = append(missing, "PROVEEDOR")
	}
	if cols.article < 0 {
		missing = append(missing, "ARTICULO")
	}
	if cols.category < 0 {
		missing = append(missing, "CATEGORIA")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing columns %s", strings.Join(missing, ", "))
	}

	entries := make([]Entry, 0, len(records)-1)
	for _, rec := range records[1:] {
		e := Entry{
			Supplier:   cell(rec, cols.supplier),
			Article:    cell(rec, cols.article),
			Category:   cell(rec, cols.category),
			CategoryID: cell(rec, cols.id),
		}
		e.VAT, e.HasVAT = parseVAT(cell(rec, cols.vat))
		entries = append(entries, e)
	}
	return entries, nil
}

func cell(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

// parseVAT accepts "21", "21%", "21,00" and fractional "0,21" or "0.1". A
// lone dot or comma is always a decimal point here.
func parseVAT(s string) (int, bool) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if s == "" {
		return 0, false
	}
	v := parse.Quantity(s)
	if v == 0 && strings.Trim(s, "0.,") != "" {
		return 0, false
	}
	if v > 0 && v < 1 {
		v *= 100
	}
	rate := int(parse.Round2(v))
	if float64(rate) != parse.Round2(v) || !models.ValidVAT(rate) {
		return 0, false
	}
	return rate, true
}
