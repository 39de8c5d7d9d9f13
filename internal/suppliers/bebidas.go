package suppliers

import (
	"regexp"
	"strings"

	"github.com/TascaBarea/ParsearFacturas-sub000/internal/extractor"
	"github.com/TascaBarea/ParsearFacturas-sub000/internal/parse"
	"github.com/TascaBarea/ParsearFacturas-sub000/pkg/models"
)

// Madrueno reads LICORES MADRUEÑO invoices: one row per article with code,
// description, units, unit price and amount. Everything is spirits at 21%.
type Madrueno struct{ extractor.Base }

// <code> <description> <units> <unit price> <amount>
var madruenoRowRe = regexp.MustCompile(`^(\d{4,6})\s+(.+?)\s+(\d+)\s+(\d+,\d{2,3})\s+(\d{1,3}(?:\.\d{3})*,\d{2})$`)

func (Madrueno) Descriptor() extractor.Descriptor {
	return extractor.Descriptor{
		Name:       "LICORES MADRUEÑO",
		FiscalID:   "B86705126",
		IBAN:       "ES12 2100 1234 5602 0012 3456",
		Capability: models.CapText,
		FixedVAT:   extractor.Rate(21),
		Aliases:    []string{"MADRUENO"},
	}
}

func (Madrueno) ExtractLines(text string) ([]models.InvoiceLine, []string) {
	return scan(text, madruenoRowRe, func(m []string) (models.InvoiceLine, error) {
		l, err := product(m[2], m[3], m[4], m[5])
		l.Code = m[1]
		return l, err
	})
}

// CerroAlto reads BODEGAS CERRO ALTO invoices. Wine rows carry cases, price
// and amount; the PORTES line is prorated over the wines.
type CerroAlto struct{ extractor.Base }

var (
	// <description> <cases> <unit price> <amount>
	cerroRowRe = regexp.MustCompile(`^(.+?)\s+(\d+)\s+(\d+,\d{2})\s+(\d{1,3}(?:\.\d{3})*,\d{2})$`)

	// PORTES ... <amount>
	cerroFreightRe = regexp.MustCompile(`(?i)^(portes\b.*?)\s+(\d+,\d{2})$`)
)

func (CerroAlto) Descriptor() extractor.Descriptor {
	return extractor.Descriptor{
		Name:           "BODEGAS CERRO ALTO",
		FiscalID:       "F13456780",
		IBAN:           "ES76 3058 0990 2712 3456 7890",
		Capability:     models.CapTables,
		FixedVAT:       extractor.Rate(21),
		Aliases:        []string{"CERRO ALTO"},
		ProrateFreight: true,
	}
}

func (CerroAlto) ExtractLines(text string) ([]models.InvoiceLine, []string) {
	lines, warnings := scan(text, cerroRowRe, func(m []string) (models.InvoiceLine, error) {
		if isSummaryRow(m[1]) {
			return models.InvoiceLine{}, errSkip
		}
		return product(m[1], m[2], m[3], m[4])
	})
	freight, _ := scan(text, cerroFreightRe, func(m []string) (models.InvoiceLine, error) {
		l := amountLine(m[1], parse.Money(m[2]))
		l.Freight = true
		return l, nil
	})
	return append(lines, freight...), warnings
}

// Bebidas reads BEBIDAS DEL CENTRO invoices. The per-line IVA column is
// known to be unreliable, so reconciliation may rewrite it from the CUADRO
// IVA table.
type Bebidas struct{ extractor.Base }

// <ref> <article> <quantity> <unit price> <vat>% <amount>
var bebidasRowRe = regexp.MustCompile(`^(\d{3,6})\s+(.+?)\s+(\d+)\s+(\d+,\d{2})\s+(\d{1,2})\s?%\s+(\d{1,3}(?:\.\d{3})*,\d{2})$`)

func (Bebidas) Descriptor() extractor.Descriptor {
	return extractor.Descriptor{
		Name:       "BEBIDAS DEL CENTRO",
		FiscalID:   "B45112233",
		IBAN:       "ES91 0049 1500 0512 3456 7892",
		Capability: models.CapTables,
		CorrectVAT: true,
	}
}

func (Bebidas) ExtractLines(text string) ([]models.InvoiceLine, []string) {
	return scan(text, bebidasRowRe, func(m []string) (models.InvoiceLine, error) {
		l, err := product(m[2], m[3], m[4], m[6])
		l.Code = m[1]
		return extractor.WithVAT(l, int(parse.Quantity(m[5])), models.VATFromLine), err
	})
}

// Cervezas reads DISTRIBUCIONES CERVECERAS MOLINA invoices. Kegs and cases
// carry a deposit that comes back as negative ENVASE rows.
type Cervezas struct{ extractor.Base }

// <article> <quantity, may be negative> <unit price> <amount, may be negative>
var cervezasRowRe = regexp.MustCompile(`^(.+?)\s+(-?\d+)\s+(\d+,\d{2})\s+(-?\d{1,3}(?:\.\d{3})*,\d{2})$`)

func (Cervezas) Descriptor() extractor.Descriptor {
	return extractor.Descriptor{
		Name:       "DISTRIBUCIONES CERVECERAS MOLINA",
		FiscalID:   "B19283746",
		IBAN:       "ES55 2085 0100 0123 4567 8901",
		Capability: models.CapTables,
		FixedVAT:   extractor.Rate(21),
		Aliases:    []string{"CERVECERAS MOLINA", "CERVEZAS MOLINA"},
	}
}

func (Cervezas) ExtractLines(text string) ([]models.InvoiceLine, []string) {
	return scan(text, cervezasRowRe, func(m []string) (models.InvoiceLine, error) {
		l, err := product(m[1], m[2], m[3], m[4])
		if err != nil {
			return l, err
		}
		key := parse.Key(l.Article)
		if strings.Contains(key, "ENVASE") || strings.Contains(key, "VACIAS") {
			l.Category = "ENVASES"
		}
		l.Correction = l.Base < 0
		return l, nil
	})
}
