package extractor

import (
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/TascaBarea/ParsearFacturas-sub000/internal/parse"
	"github.com/TascaBarea/ParsearFacturas-sub000/pkg/models"
)

// LineTolerance is the accepted gap between quantity × unit price and base.
const LineTolerance = 0.02

var (
	amountToken = regexp.MustCompile(`^\(?-?(?:\d{1,3}(?:[.,]\d{3})+|\d+)[.,]\d{2}-?\)?$`)
	rateToken   = regexp.MustCompile(`^(\d{1,2})(?:[.,]0{1,2})?%$`)
	freightRe   = regexp.MustCompile(`\b(?:PORTES?|TRANSPORTE|ENVIO|GASTOS DE ENVIO|SHIPPING|MENSAJERIA)\b`)
)

var tokenTrim = strings.NewReplacer("€", "", "$", "", "EUR", "", "USD", "", "*", "")

// Lines splits text into trimmed, non-empty lines.
func Lines(text string) []string {
	raw := strings.Split(text, "\n")
	out := make([]string, 0, len(raw))
	for _, l := range raw {
		if l = strings.TrimSpace(strings.Trim(l, "\f")); l != "" {
			out = append(out, l)
		}
	}
	return out
}

// Amounts returns the money tokens of a line in order. Only tokens with
// exactly two decimals count, so quantities, codes and percentages are
// skipped.
func Amounts(line string) []float64 {
	var out []float64
	for _, f := range strings.Fields(line) {
		f = strings.Trim(tokenTrim.Replace(f), ":;")
		if amountToken.MatchString(f) {
			out = append(out, parse.Money(f))
		}
	}
	return out
}

// LastAmount returns the rightmost money token of a line.
func LastAmount(line string) (float64, bool) {
	a := Amounts(line)
	if len(a) == 0 {
		return 0, false
	}
	return a[len(a)-1], true
}

// Rates returns the distinct percentage tokens of a line that are valid VAT
// rates, in order of appearance.
func Rates(line string) []int {
	var out []int
	for _, f := range strings.Fields(strings.ReplaceAll(line, " %", "%")) {
		m := rateToken.FindStringSubmatch(strings.Trim(f, "():;,"))
		if m == nil {
			continue
		}
		v := int(parse.Quantity(m[1]))
		if models.ValidVAT(v) && !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

// Consistent reports whether quantity × unit price matches base within
// LineTolerance.
func Consistent(quantity, unitPrice, base float64) bool {
	return math.Abs(parse.Round2(quantity*unitPrice)-base) <= LineTolerance+1e-9
}

// IsFreight reports whether an article describes a shipping charge.
func IsFreight(article string) bool {
	return freightRe.MatchString(parse.Key(article))
}

// Section returns the text between the first line containing start and the
// next line containing end, both compared on normalized keys. Missing
// markers extend the section to the text bounds.
func Section(text, start, end string) string {
	lines := strings.Split(text, "\n")
	from, to := 0, len(lines)
	if start != "" {
		from = len(lines)
		for i, l := range lines {
			if strings.Contains(parse.Key(l), parse.Key(start)) {
				from = i + 1
				break
			}
		}
	}
	if end != "" {
		for i := from; i < len(lines); i++ {
			if strings.Contains(parse.Key(lines[i]), parse.Key(end)) {
				to = i
				break
			}
		}
	}
	if from >= to {
		return ""
	}
	return strings.Join(lines[from:to], "\n")
}

// Product builds a line with quantity and unit price, leaving VAT to the
// precedence chain.
func Product(article string, quantity, unitPrice, base float64) models.InvoiceLine {
	return models.InvoiceLine{
		Article:   CleanArticle(article),
		Quantity:  models.Float(quantity),
		UnitPrice: models.Float(unitPrice),
		Base:      parse.Round2(base),
		Freight:   IsFreight(article),
	}
}

// WithVAT sets a VAT rate captured from the document or declared by the strategy.
func WithVAT(l models.InvoiceLine, vat int, src models.VATSource) models.InvoiceLine {
	l.VAT = vat
	l.VATSource = src
	return l
}

// Withholding builds the negative IRPF line for base at pct percent.
func Withholding(base, pct float64) models.InvoiceLine {
	return models.InvoiceLine{
		Article:     "RETENCION IRPF " + strconv.FormatFloat(pct, 'f', -1, 64) + "%",
		Base:        -parse.Percent(base, pct),
		VAT:         0,
		VATSource:   models.VATFromFixed,
		Correction:  true,
		Withholding: true,
	}
}

// CleanArticle collapses whitespace and trims separators around a description.
func CleanArticle(s string) string {
	return strings.Trim(strings.Join(strings.Fields(s), " "), " .-:;|")
}
