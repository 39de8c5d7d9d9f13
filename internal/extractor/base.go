package extractor

import (
	"math"
	"regexp"
	"strings"

	"github.com/TascaBarea/ParsearFacturas-sub000/internal/parse"
	"github.com/TascaBarea/ParsearFacturas-sub000/pkg/models"
)

// totalLabels are tried in order; the first label with any hit wins and, for
// that label, the last hit in the text wins.
var totalLabels = []string{
	"TOTAL FACTURA",
	"TOTAL A PAGAR",
	"IMPORTE TOTAL",
	"TOTAL EUR",
	"AMOUNT DUE",
	"TOTAL",
}

// Lines holding these keys are never the invoice total.
var notTotal = []string{"SUBTOTAL", "BASE", "UNIDADES", "BULTOS", "KILOS", "LINEAS", "DTO", "DESCUENTO"}

var referenceRe = regexp.MustCompile(`(?i)(?:N[ºo°]\.?\s*(?:DE\s+)?(?:FACTURA|FRA\.?)|FACTURA\s+N[ºo°.]*|NUM(?:ERO|\.)?\s*(?:DE\s+)?FACTURA|INVOICE\s*(?:NUMBER|NO\.?|#)|FACTURA|INVOICE)\s*[:#]?\s*([A-Z0-9][A-Z0-9\-/.]{2,})`)

// Base provides the generic header extraction every strategy inherits by
// embedding it.
type Base struct{}

// ExtractTotal tries the ordered Spanish total labels. The amount is the
// rightmost money token on the label's line or, when the line has none, on
// the following line.
func (Base) ExtractTotal(text string) (float64, bool) {
	lines := Lines(text)
	for _, label := range totalLabels {
		var (
			found bool
			total float64
		)
		for i, line := range lines {
			if !isTotalLine(line, label) {
				continue
			}
			if v, ok := LastAmount(line); ok {
				total, found = v, true
			} else if i+1 < len(lines) && !hasLetters(lines[i+1]) {
				if v, ok := LastAmount(lines[i+1]); ok {
					total, found = v, true
				}
			}
		}
		if found {
			return total, true
		}
	}
	return 0, false
}

// ExtractDate prefers a date on a line labelled FECHA and otherwise returns
// the first valid date in the text.
func (Base) ExtractDate(text string) (string, bool) {
	for _, line := range Lines(text) {
		if strings.Contains(parse.Key(line), "FECHA") {
			if d, ok := parse.Date(line); ok {
				return d, true
			}
		}
	}
	return parse.Date(text)
}

// ExtractReference probes the common invoice-number prefixes. Candidates
// without a digit are skipped.
func (Base) ExtractReference(text string) (string, bool) {
	for _, m := range referenceRe.FindAllStringSubmatch(text, -1) {
		ref := strings.TrimRight(m[1], ".-/")
		if strings.ContainsAny(ref, "0123456789") && !parse.ValidDate(ref) {
			return ref, true
		}
	}
	return "", false
}

// ExtractFiscalTable reads the per-rate base breakdown. A row is any line
// carrying a VAT rate and a base whose VAT amount, when printed, matches
// base × rate. Rows without a percent sign are accepted below a header that
// names BASE together with IVA or CUOTA. The first row of each rate wins.
func (Base) ExtractFiscalTable(text string) []models.FiscalRow {
	var rows []models.FiscalRow
	seen := make(map[int]bool)
	inTable := false

	for _, line := range Lines(text) {
		key := parse.Key(line)
		amounts := Amounts(line)

		if len(amounts) == 0 {
			inTable = strings.Contains(key, "BASE") && (strings.Contains(key, "IVA") || strings.Contains(key, "CUOTA"))
			continue
		}

		var (
			row models.FiscalRow
			ok  bool
		)
		if rates := Rates(line); len(rates) == 1 {
			row, ok = rowWithRate(rates[0], amounts, strings.Contains(key, "BASE"))
		} else if inTable && len(rates) == 0 {
			row, ok = rowFromNumbers(line)
		}
		if !ok {
			continue
		}
		if !seen[row.VAT] {
			seen[row.VAT] = true
			rows = append(rows, row)
		}
	}
	return rows
}

func rowWithRate(rate int, amounts []float64, labelled bool) (models.FiscalRow, bool) {
	for i := 0; i < len(amounts); i++ {
		for j := i + 1; j < len(amounts); j++ {
			if matchesRate(amounts[i], amounts[j], rate) {
				return models.FiscalRow{VAT: rate, Base: amounts[i], Amount: amounts[j]}, true
			}
		}
	}
	if labelled && len(amounts) == 1 && amounts[0] > 0 {
		return models.FiscalRow{VAT: rate, Base: amounts[0]}, true
	}
	return models.FiscalRow{}, false
}

// rowFromNumbers handles unlabelled table rows such as "71,76 10,00 7,18".
func rowFromNumbers(line string) (models.FiscalRow, bool) {
	var nums []float64
	for _, f := range strings.Fields(line) {
		if v, ok := parse.MoneyOK(strings.TrimSuffix(f, "%")); ok {
			nums = append(nums, v)
		}
	}
	for r, rv := range nums {
		rate := int(rv)
		if float64(rate) != rv || rate == 0 || !models.ValidVAT(rate) {
			continue
		}
		for i := range nums {
			for j := range nums {
				if i == j || i == r || j == r {
					continue
				}
				if matchesRate(nums[i], nums[j], rate) {
					return models.FiscalRow{VAT: rate, Base: nums[i], Amount: nums[j]}, true
				}
			}
		}
	}
	return models.FiscalRow{}, false
}

func matchesRate(base, amount float64, rate int) bool {
	if base <= 0 || (rate > 0 && amount <= 0) {
		return false
	}
	return math.Abs(parse.Percent(base, float64(rate))-amount) <= LineTolerance+1e-9
}

func isTotalLine(line, label string) bool {
	key := " " + parse.Key(line) + " "
	if !strings.Contains(key, " "+label+" ") {
		return false
	}
	for _, k := range notTotal {
		if strings.Contains(key, " "+k) {
			return false
		}
	}
	if (strings.Contains(key, " TOTAL IVA ") || strings.Contains(key, " TOTAL I V A ") || strings.Contains(key, " TOTAL CUOTA")) &&
		!strings.Contains(key, " INCL") {
		return false
	}
	return true
}

func hasLetters(s string) bool {
	for _, f := range strings.Fields(s) {
		f = strings.Trim(tokenTrim.Replace(f), ":;")
		if f != "" && !amountToken.MatchString(f) && strings.IndexFunc(f, isLetter) >= 0 {
			return true
		}
	}
	return false
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
