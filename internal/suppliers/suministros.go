package suppliers

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/TascaBarea/ParsearFacturas-sub000/internal/extractor"
	"github.com/TascaBarea/ParsearFacturas-sub000/internal/parse"
	"github.com/TascaBarea/ParsearFacturas-sub000/pkg/models"
)

// Electrica reads LUZ VERDE ENERGÍA bills. Concepts sit between the billing
// period and the Base Imponible line.
type Electrica struct{ extractor.Base }

func (Electrica) Descriptor() extractor.Descriptor {
	return extractor.Descriptor{
		Name:          "LUZ VERDE ENERGIA",
		FiscalID:      "B98765432",
		IBAN:          "ES62 0128 0001 2301 0012 3456",
		Capability:    models.CapText,
		FixedCategory: "SUMINISTROS",
		FixedVAT:      extractor.Rate(21),
		Aliases:       []string{"LUZ VERDE"},
	}
}

func (Electrica) ExtractLines(text string) ([]models.InvoiceLine, []string) {
	lines, warnings := concepts(extractor.Section(text, "PERIODO", "BASE IMPONIBLE"))
	for i := range lines {
		// "Término de energía 412 kWh x 0,1450 €/kWh" -> "Término de energía"
		if cut := strings.IndexFunc(lines[i].Article, unicode.IsDigit); cut > 0 {
			lines[i].Article = extractor.CleanArticle(lines[i].Article[:cut])
		}
	}
	return lines, warnings
}

// Telefonia reads ONDA TELECOM bills: one concept per service plus
// out-of-plan usage and loyalty discounts.
type Telefonia struct{ extractor.Base }

func (Telefonia) Descriptor() extractor.Descriptor {
	return extractor.Descriptor{
		Name:          "ONDA TELECOM",
		FiscalID:      "A81234567",
		IBAN:          "ES39 0019 0020 9612 3456 7890",
		Capability:    models.CapText,
		FixedCategory: "TELEFONO",
		FixedVAT:      extractor.Rate(21),
	}
}

func (Telefonia) ExtractLines(text string) ([]models.InvoiceLine, []string) {
	return concepts(extractor.Section(text, "FECHA", "BASE IMPONIBLE"))
}

// Limpiezas reads SUMINISTROS DE LIMPIEZA BRILLO invoices, which carry a
// per-row discount column.
type Limpiezas struct{ extractor.Base }

// <ref> <description> <quantity> <price> <discount %> <amount>
var limpiezasRowRe = regexp.MustCompile(`^([A-Z]{1,2}-\d{2,4})\s+(.+?)\s+(\d+)\s+(\d+,\d{2})\s+(\d{1,2}(?:,\d{1,2})?)\s+(\d{1,3}(?:\.\d{3})*,\d{2})$`)

func (Limpiezas) Descriptor() extractor.Descriptor {
	return extractor.Descriptor{
		Name:          "LIMPIEZAS BRILLO",
		FiscalID:      "B86000111",
		IBAN:          "ES03 2100 0418 4502 0005 1332",
		Capability:    models.CapText,
		FixedCategory: "LIMPIEZA",
		FixedVAT:      extractor.Rate(21),
		Aliases:       []string{"SUMINISTROS DE LIMPIEZA BRILLO", "BRILLO"},
	}
}

func (Limpiezas) ExtractLines(text string) ([]models.InvoiceLine, []string) {
	return scan(text, limpiezasRowRe, func(m []string) (models.InvoiceLine, error) {
		q := parse.Quantity(m[3])
		p := parse.Money(m[4])
		dto := parse.Quantity(m[5])
		a := parse.Money(m[6])
		if !extractor.Consistent(q, p*(1-dto/100), a) {
			return models.InvoiceLine{}, fmt.Errorf("%s × %s - %s%% != %s", m[3], m[4], m[5], m[6])
		}
		l := extractor.Product(m[2], q, p, a)
		l.Code = m[1]
		if dto > 0 {
			l.Note = "DTO " + m[5] + "%"
		}
		return l, nil
	})
}

// CashCarry reads CASH CARRY LA ESTRELLA invoices. Every row ends with a VAT
// letter explained by a legend such as "A=21% B=10% C=4%".
type CashCarry struct{ extractor.Base }

var (
	// <ean> <article> <quantity> <unit price> <amount> <vat letter>
	cashRowRe = regexp.MustCompile(`^(\d{6,13})\s+(.+?)\s+(\d+(?:,\d{1,3})?)\s+(\d+,\d{2,3})\s+(\d{1,3}(?:\.\d{3})*,\d{2})\s+([A-D])$`)

	// <letter>=<rate>%
	cashLegendRe = regexp.MustCompile(`\b([A-D])\s*=\s*(\d{1,2})\s*%`)
)

// Used when the legend is missing from the page.
var cashDefaultCodes = map[string]int{"A": 21, "B": 10, "C": 4, "D": 0}

func (CashCarry) Descriptor() extractor.Descriptor {
	return extractor.Descriptor{
		Name:       "CASH CARRY LA ESTRELLA",
		FiscalID:   "A28111222",
		Capability: models.CapTables,
		Aliases:    []string{"LA ESTRELLA"},
	}
}

func (CashCarry) ExtractLines(text string) ([]models.InvoiceLine, []string) {
	codes := vatCodes(text)
	return scan(text, cashRowRe, func(m []string) (models.InvoiceLine, error) {
		l, err := product(m[2], m[3], m[4], m[5])
		if err != nil {
			return l, err
		}
		l.Code = m[1]
		vat, ok := codes[m[6]]
		if !ok {
			return models.InvoiceLine{}, fmt.Errorf("unknown VAT code %s", m[6])
		}
		return extractor.WithVAT(l, vat, models.VATFromLine), nil
	})
}

func vatCodes(text string) map[string]int {
	codes := make(map[string]int)
	for _, m := range cashLegendRe.FindAllStringSubmatch(text, -1) {
		if vat := int(parse.Quantity(m[2])); models.ValidVAT(vat) {
			codes[m[1]] = vat
		}
	}
	if len(codes) == 0 {
		return cashDefaultCodes
	}
	return codes
}
