package suppliers

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/TascaBarea/ParsearFacturas-sub000/internal/extractor"
	"github.com/TascaBarea/ParsearFacturas-sub000/internal/parse"
	"github.com/TascaBarea/ParsearFacturas-sub000/pkg/models"
)

// GenericName is the supplier name of invoices no strategy recognized.
const GenericName = "GENERICO"

var (
	// BASE IMPONIBLE [:] <amount>
	genericBaseRe = regexp.MustCompile(`(?i)BASE\s+IMPONIBLE\b[^0-9\n-]*(-?[\d.,]+\d)`)

	// <description> <quantity> <unit price> <amount>
	genericRowRe = regexp.MustCompile(`^(.*[A-Za-z].*?)\s+(\d+(?:[.,]\d{1,3})?)\s+(\d+[.,]\d{2,4})\s+(\d+[.,]\d{2})$`)

	// Spanish CIF, NIF and NIE, after separators are removed.
	fiscalIDRe = regexp.MustCompile(`^(?:[ABCDEFGHJNPQRSUVW]\d{7}[0-9A-J]|\d{8}[A-Z]|[XYZ]\d{7}[A-Z])$`)
)

// Generic is the fallback strategy. It tries, in order: the fiscal table,
// a single Base Imponible with its IVA rate, a total with a single IVA rate,
// and finally description/quantity/price/amount rows.
type Generic struct {
	extractor.Base
	ownIDs map[string]bool
}

// NewGeneric creates the fallback. ownIDs are skipped by ExtractFiscalID.
func NewGeneric(ownIDs []string) *Generic {
	g := &Generic{ownIDs: make(map[string]bool, len(ownIDs))}
	for _, id := range ownIDs {
		if c := parse.Compact(id); c != "" {
			g.ownIDs[c] = true
		}
	}
	return g
}

func (g *Generic) Descriptor() extractor.Descriptor {
	return extractor.Descriptor{
		Name:       GenericName,
		Capability: models.CapHybrid,
	}
}

// ExtractLines implements extractor.Strategy.
func (g *Generic) ExtractLines(text string) ([]models.InvoiceLine, []string) {
	if rows := g.ExtractFiscalTable(text); len(rows) > 0 {
		lines := make([]models.InvoiceLine, 0, len(rows))
		for _, r := range rows {
			lines = append(lines, synthetic(r.Base, r.VAT))
		}
		return lines, nil
	}

	rate, oneRate := singleRate(text)

	if m := genericBaseRe.FindStringSubmatch(text); m != nil && oneRate {
		if base, ok := parse.MoneyOK(m[1]); ok && base != 0 {
			return []models.InvoiceLine{synthetic(base, rate)}, nil
		}
	}

	if total, ok := g.ExtractTotal(text); ok && oneRate && total > 0 {
		return []models.InvoiceLine{synthetic(extractor.ComputeBaseFromTotal(total, rate), rate)}, nil
	}

	return scan(text, genericRowRe, func(m []string) (models.InvoiceLine, error) {
		if isSummaryRow(m[1]) {
			return models.InvoiceLine{}, errSkip
		}
		return product(m[1], m[2], m[3], m[4])
	})
}

// ExtractFiscalID returns the first CIF/NIF in the text that is not one of
// the business's own IDs.
func (g *Generic) ExtractFiscalID(text string) (string, bool) {
	fields := strings.FieldsFunc(strings.ToUpper(text), func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == ':' || r == ',' || r == ';' || r == '(' || r == ')'
	})
	for _, f := range fields {
		id := strings.NewReplacer(".", "", "-", "", "/", "").Replace(f)
		if len(id) == 11 && strings.HasPrefix(id, "ES") {
			id = id[2:]
		}
		if fiscalIDRe.MatchString(id) && !g.ownIDs[id] {
			return id, true
		}
	}
	return "", false
}

func synthetic(base float64, vat int) models.InvoiceLine {
	return extractor.WithVAT(models.InvoiceLine{
		Article: fmt.Sprintf("PRODUCTS VAT %d%%", vat),
		Base:    parse.Round2(base),
	}, vat, models.VATFromLine)
}

// singleRate returns the VAT rate printed on IVA lines when there is exactly
// one distinct rate.
func singleRate(text string) (int, bool) {
	seen := -1
	for _, l := range extractor.Lines(text) {
		key := parse.Key(l)
		if !strings.Contains(key, "IVA") && !strings.Contains(key, "I V A") && !strings.Contains(key, "VAT") {
			continue
		}
		for _, r := range extractor.Rates(l) {
			if seen >= 0 && seen != r {
				return 0, false
			}
			seen = r
		}
	}
	return seen, seen >= 0
}

var summaryWords = map[string]bool{
	"TOTAL": true, "SUBTOTAL": true, "SUMA": true, "BASE": true, "IVA": true, "CUOTA": true,
}

// isSummaryRow reports whether a description is a totals row rather than a
// product.
func isSummaryRow(desc string) bool {
	for _, t := range parse.Tokens(desc) {
		if summaryWords[t] {
			return true
		}
	}
	return false
}
