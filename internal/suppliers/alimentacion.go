package suppliers

import (
	"fmt"
	"regexp"

	"github.com/TascaBarea/ParsearFacturas-sub000/internal/extractor"
	"github.com/TascaBarea/ParsearFacturas-sub000/internal/parse"
	"github.com/TascaBarea/ParsearFacturas-sub000/pkg/models"
)

// <description> <kg or units> <price> <amount>
var weightRowRe = regexp.MustCompile(`^(.+?)\s+(\d+(?:,\d{1,3})?)\s+(\d+,\d{2})\s+(\d{1,3}(?:\.\d{3})*,\d{2})$`)

// weighed reads rows where the quantity may be a weight.
func weighed(text string) ([]models.InvoiceLine, []string) {
	return scan(text, weightRowRe, func(m []string) (models.InvoiceLine, error) {
		if isSummaryRow(m[1]) {
			return models.InvoiceLine{}, errSkip
		}
		return product(m[1], m[2], m[3], m[4])
	})
}

// Cardenal reads QUESERÍA CARDENAL invoices. Cheese is sold by the kilo.
type Cardenal struct{ extractor.Base }

func (Cardenal) Descriptor() extractor.Descriptor {
	return extractor.Descriptor{
		Name:          "QUESERIA CARDENAL",
		FiscalID:      "B37221100",
		IBAN:          "ES20 2104 0000 1133 4455 6677",
		Capability:    models.CapText,
		FixedCategory: "QUESOS",
		FixedVAT:      extractor.Rate(4),
		Aliases:       []string{"CARDENAL"},
	}
}

func (Cardenal) ExtractLines(text string) ([]models.InvoiceLine, []string) {
	return weighed(text)
}

// Horno reads the monthly invoice of HORNO LA ESPIGA, which repeats the rows
// of every delivery note of the month.
type Horno struct{ extractor.Base }

// Nº <number>
var hornoRefRe = regexp.MustCompile(`(?i)\bN[ºo°]\.?\s*(\d{3,})`)

func (Horno) Descriptor() extractor.Descriptor {
	return extractor.Descriptor{
		Name:          "HORNO LA ESPIGA",
		FiscalID:      "50123456K",
		Capability:    models.CapText,
		FixedCategory: "PAN",
		FixedVAT:      extractor.Rate(4),
		Aliases:       []string{"LA ESPIGA"},
	}
}

// ExtractLines keeps repeated articles: each delivery note is a separate sale.
func (Horno) ExtractLines(text string) ([]models.InvoiceLine, []string) {
	return weighed(text)
}

func (Horno) ExtractReference(text string) (string, bool) {
	if m := hornoRefRe.FindStringSubmatch(text); m != nil {
		return m[1], true
	}
	return "", false
}

// Lonja reads PESCADERIA LA LONJA scale tickets. They only come as scans and
// print prices with VAT included, so bases are derived at 10%.
type Lonja struct{ extractor.Base }

const lonjaVAT = 10

var (
	// <article> <weight> [kg] x <price> [=] <amount>
	lonjaRowRe = regexp.MustCompile(`(?i)^(.+?)\s+(\d+[.,]\d{1,3})\s*(?:kg|k|uds?)?\s*[x*]\s*(\d+[.,]\d{2})\s*=?\s*(\d+[.,]\d{2})$`)

	// TICKET: <number>
	lonjaRefRe = regexp.MustCompile(`(?i)\bTICKET:?\s*(\d[\d-]{3,})`)
)

func (Lonja) Descriptor() extractor.Descriptor {
	return extractor.Descriptor{
		Name:          "PESCADERIA LA LONJA",
		FiscalID:      "07654321F",
		Capability:    models.CapOCR,
		FixedCategory: "PESCADO",
		FixedVAT:      extractor.Rate(lonjaVAT),
		Aliases:       []string{"LA LONJA"},
	}
}

func (Lonja) ExtractLines(text string) ([]models.InvoiceLine, []string) {
	return scan(text, lonjaRowRe, func(m []string) (models.InvoiceLine, error) {
		q := parse.Quantity(m[2])
		p := parse.Money(m[3])
		gross := parse.Money(m[4])
		if !extractor.Consistent(q, p, gross) {
			return models.InvoiceLine{}, fmt.Errorf("%s × %s != %s", m[2], m[3], m[4])
		}
		l := models.InvoiceLine{
			Article:  extractor.CleanArticle(m[1]),
			Quantity: models.Float(q),
			Base:     extractor.ComputeBaseFromTotal(gross, lonjaVAT),
			Note:     "PVP IVA incl. " + parse.FormatMoney(p),
		}
		return extractor.WithVAT(l, lonjaVAT, models.VATFromFixed), nil
	})
}

func (Lonja) ExtractReference(text string) (string, bool) {
	if m := lonjaRefRe.FindStringSubmatch(text); m != nil {
		return m[1], true
	}
	return "", false
}

// Carniceria reads CÁRNICAS HERMANOS ROJO invoices, which arrive both as
// digital PDFs and as scans.
type Carniceria struct{ extractor.Base }

// <code> <description> <kg or units> <price> <amount>
var carniceriaRowRe = regexp.MustCompile(`^(\d{3,5})\s+(.+?)\s+(\d+(?:,\d{1,3})?)\s+(\d+,\d{2})\s+(\d{1,3}(?:\.\d{3})*,\d{2})$`)

func (Carniceria) Descriptor() extractor.Descriptor {
	return extractor.Descriptor{
		Name:       "CARNICAS HERMANOS ROJO",
		FiscalID:   "B09876543",
		IBAN:       "ES33 0182 2370 4102 0123 4567",
		Capability: models.CapHybrid,
		FixedVAT:   extractor.Rate(10),
		Aliases:    []string{"HERMANOS ROJO", "HNOS ROJO"},
	}
}

func (Carniceria) ExtractLines(text string) ([]models.InvoiceLine, []string) {
	return scan(text, carniceriaRowRe, func(m []string) (models.InvoiceLine, error) {
		l, err := product(m[2], m[3], m[4], m[5])
		l.Code = m[1]
		return l, err
	})
}

// Fruteria reads FRUTAS EL HUERTO invoices, with a unit column (KG, UD, CJ)
// between description and quantity.
type Fruteria struct{ extractor.Base }

var (
	// <description> <unit> <quantity> <price> <amount>
	fruteriaRowRe = regexp.MustCompile(`(?i)^(.+?)\s+(KG|UD|CJ|MANOJO)\s+(\d+(?:,\d{1,3})?)\s+(\d+,\d{2})\s+(\d+,\d{2})$`)

	// Fra. nº <number>
	fruteriaRefRe = regexp.MustCompile(`(?i)\bFRA\.?\s*N[ºo°]\.?\s*([\d/-]+)`)
)

func (Fruteria) Descriptor() extractor.Descriptor {
	return extractor.Descriptor{
		Name:          "FRUTAS EL HUERTO",
		FiscalID:      "E87654321",
		Capability:    models.CapText,
		FixedCategory: "FRUTA Y VERDURA",
		FixedVAT:      extractor.Rate(4),
		Aliases:       []string{"EL HUERTO"},
	}
}

func (Fruteria) ExtractLines(text string) ([]models.InvoiceLine, []string) {
	return scan(text, fruteriaRowRe, func(m []string) (models.InvoiceLine, error) {
		return product(m[1], m[3], m[4], m[5])
	})
}

func (Fruteria) ExtractReference(text string) (string, bool) {
	if m := fruteriaRefRe.FindStringSubmatch(text); m != nil {
		return m[1], true
	}
	return "", false
}

// Tostadero reads CAFÉS EL TOSTADERO invoices: coffee and groceries at 10%
// and a shipping line billed at 21% that stays a line of its own.
type Tostadero struct{ extractor.Base }

var (
	// <description> <units> <price> <amount>
	tostaderoRowRe = regexp.MustCompile(`^(.+?)\s+(\d+)\s+(\d+,\d{2})\s+(\d+,\d{2})$`)

	// Gastos de envío <amount>
	tostaderoShippingRe = regexp.MustCompile(`(?i)^(gastos de env[ií]o|portes)\s+(\d+,\d{2})$`)
)

func (Tostadero) Descriptor() extractor.Descriptor {
	return extractor.Descriptor{
		Name:       "CAFES EL TOSTADERO",
		FiscalID:   "B47111222",
		IBAN:       "ES07 0081 5300 1100 0123 4567",
		Capability: models.CapText,
		Aliases:    []string{"EL TOSTADERO", "TOSTADERO"},
	}
}

func (Tostadero) ExtractLines(text string) ([]models.InvoiceLine, []string) {
	lines, warnings := scan(text, tostaderoRowRe, func(m []string) (models.InvoiceLine, error) {
		if isSummaryRow(m[1]) {
			return models.InvoiceLine{}, errSkip
		}
		return product(m[1], m[2], m[3], m[4])
	})
	lines = fixed(lines, 10)

	shipping, _ := scan(text, tostaderoShippingRe, func(m []string) (models.InvoiceLine, error) {
		l := amountLine(m[1], parse.Money(m[2]))
		l.Freight = true
		return extractor.WithVAT(l, 21, models.VATFromFixed), nil
	})
	return append(lines, shipping...), warnings
}

// Almazara reads ACEITES LA ALMAZARA invoices. Oil and table olives carry
// different rates, printed on every row.
type Almazara struct{ extractor.Base }

// <product> <units> <price> <vat>% <amount>
var almazaraRowRe = regexp.MustCompile(`^(.+?)\s+(\d+)\s+(\d+,\d{2})\s+(\d{1,2})\s?%\s+(\d{1,3}(?:\.\d{3})*,\d{2})$`)

func (Almazara) Descriptor() extractor.Descriptor {
	return extractor.Descriptor{
		Name:       "ACEITES LA ALMAZARA",
		FiscalID:   "F23456789",
		IBAN:       "ES68 3187 0100 0012 3456 7890",
		Capability: models.CapText,
		Aliases:    []string{"LA ALMAZARA"},
	}
}

func (Almazara) ExtractLines(text string) ([]models.InvoiceLine, []string) {
	return scan(text, almazaraRowRe, func(m []string) (models.InvoiceLine, error) {
		l, err := product(m[1], m[2], m[3], m[5])
		return extractor.WithVAT(l, int(parse.Quantity(m[4])), models.VATFromLine), err
	})
}
