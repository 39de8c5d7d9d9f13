// Package suppliers holds the concrete extraction strategies, one per
// supplier format, plus the generic fallback.
//
// Strategies share nothing but the extractor helpers and the row scanners
// below. Each strategy declares a descriptor, the line patterns (with the
// meaning of every capture group) and whatever overrides the supplier's
// layout needs.
package suppliers

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/TascaBarea/ParsearFacturas-sub000/internal/extractor"
	"github.com/TascaBarea/ParsearFacturas-sub000/internal/parse"
	"github.com/TascaBarea/ParsearFacturas-sub000/internal/registry"
	"github.com/TascaBarea/ParsearFacturas-sub000/pkg/models"
)

// All returns every concrete strategy. The generic fallback is not included.
func All() []extractor.Strategy {
	return []extractor.Strategy{
		Madrueno{},
		CerroAlto{},
		Bebidas{},
		Alquiler{},
		TableBook{},
		Cardenal{},
		Horno{},
		Lonja{},
		Carniceria{},
		Fruteria{},
		Cervezas{},
		Tostadero{},
		Electrica{},
		Telefonia{},
		Gestoria{},
		CashCarry{},
		Limpiezas{},
		Almazara{},
		Seguros{},
		Musica{},
	}
}

// NewRegistry builds the registry with every strategy and the generic
// fallback. ownIDs are the business's own fiscal IDs, never taken as a
// supplier's.
func NewRegistry(ownIDs []string) (*registry.Registry, error) {
	return registry.New(NewGeneric(ownIDs), All()...)
}

// Aliases maps every strategy alias to its canonical supplier name, for the
// category resolver.
func Aliases() map[string]string {
	m := make(map[string]string)
	for _, s := range All() {
		d := s.Descriptor()
		for _, a := range d.Aliases {
			m[a] = d.Name
		}
	}
	return m
}

// errSkip drops a matched row without a warning.
var errSkip = errors.New("skip row")

// rowFunc builds a line from the submatches of a row pattern. An error
// rejects the row.
type rowFunc func(m []string) (models.InvoiceLine, error)

// scan applies re to every line of body and builds invoice lines from the
// matches. Rejected rows become LINE_REJECTED warnings.
func scan(body string, re *regexp.Regexp, build rowFunc) ([]models.InvoiceLine, []string) {
	var (
		lines    []models.InvoiceLine
		warnings []string
	)
	for _, raw := range extractor.Lines(body) {
		m := re.FindStringSubmatch(raw)
		if m == nil {
			continue
		}
		l, err := build(m)
		if errors.Is(err, errSkip) {
			continue
		}
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v: %q", models.KindLineRejected, err, raw))
			continue
		}
		lines = append(lines, l)
	}
	return lines, warnings
}

// product builds a quantity × price = amount row and rejects it when the
// numbers disagree.
func product(article, qty, price, amount string) (models.InvoiceLine, error) {
	q := parse.Quantity(qty)
	p := parse.Money(price)
	a := parse.Money(amount)
	if !extractor.Consistent(q, p, a) {
		return models.InvoiceLine{}, fmt.Errorf("%s × %s != %s", qty, price, amount)
	}
	return extractor.Product(article, q, p, a), nil
}

// amountLine builds a line that only has an amount.
func amountLine(article string, amount float64) models.InvoiceLine {
	return models.InvoiceLine{
		Article: extractor.CleanArticle(article),
		Base:    parse.Round2(amount),
		Freight: extractor.IsFreight(article),
	}
}

// labelAmount returns the last amount on the first line whose key contains
// label.
func labelAmount(text, label string) (float64, bool) {
	label = parse.Key(label)
	for _, l := range extractor.Lines(text) {
		if strings.Contains(parse.Key(l), label) {
			if v, ok := extractor.LastAmount(l); ok {
				return v, true
			}
		}
	}
	return 0, false
}

// fixed sets a strategy-declared VAT on every line that has none.
func fixed(lines []models.InvoiceLine, vat int) []models.InvoiceLine {
	for i := range lines {
		if lines[i].VATSource == models.VATUnset {
			lines[i] = extractor.WithVAT(lines[i], vat, models.VATFromFixed)
		}
	}
	return lines
}

// <concept> <amount>
var conceptRe = regexp.MustCompile(`^(.*[A-Za-z].*?)\s+(-?\d{1,3}(?:\.\d{3})*,\d{2})\s*€?$`)

// concepts reads concept/amount rows, the layout of service invoices.
// Negative amounts are corrections (discounts, bonuses, deposit returns).
func concepts(body string) ([]models.InvoiceLine, []string) {
	return scan(body, conceptRe, func(m []string) (models.InvoiceLine, error) {
		if isSummaryRow(m[1]) {
			return models.InvoiceLine{}, errSkip
		}
		l := amountLine(m[1], parse.Money(m[2]))
		l.Correction = l.Base < 0
		return l, nil
	})
}
