package suppliers

import (
	"regexp"

	"github.com/TascaBarea/ParsearFacturas-sub000/internal/extractor"
	"github.com/TascaBarea/ParsearFacturas-sub000/pkg/models"
)

// Alquiler reads the monthly rent invoice of the premises. It has a single
// concept and the landlord withholds IRPF.
type Alquiler struct{ extractor.Base }

// Concepto: <text>
var alquilerConceptRe = regexp.MustCompile(`(?im)^\s*concepto:?\s*(.+)$`)

func (Alquiler) Descriptor() extractor.Descriptor {
	return extractor.Descriptor{
		Name:           "GARCIA ARRENDAMIENTOS",
		FiscalID:       "B28999888",
		IBAN:           "ES44 2100 5731 7502 0026 6218",
		Capability:     models.CapText,
		FixedCategory:  "ALQUILER",
		FixedVAT:       extractor.Rate(21),
		WithholdingPct: 19,
		Aliases:        []string{"ALQUILER LOCAL", "ALQUILER"},
	}
}

func (Alquiler) ExtractLines(text string) ([]models.InvoiceLine, []string) {
	base, ok := labelAmount(text, "BASE IMPONIBLE")
	if !ok {
		return nil, nil
	}
	article := "RENTA LOCAL"
	if m := alquilerConceptRe.FindStringSubmatch(text); m != nil {
		article = m[1]
	}
	return []models.InvoiceLine{amountLine(article, base)}, nil
}

// Gestoria reads the fees of ASESORÍA MARTÍN, a professional who withholds
// IRPF at the reduced rate.
type Gestoria struct{ extractor.Base }

func (Gestoria) Descriptor() extractor.Descriptor {
	return extractor.Descriptor{
		Name:           "ASESORIA MARTIN Y ASOCIADOS",
		FiscalID:       "12345678Z",
		IBAN:           "ES80 2038 1234 5012 3456 7890",
		Capability:     models.CapText,
		FixedCategory:  "GESTORIA",
		FixedVAT:       extractor.Rate(21),
		WithholdingPct: 15,
		Aliases:        []string{"ASESORIA MARTIN", "GESTORIA"},
	}
}

func (Gestoria) ExtractLines(text string) ([]models.InvoiceLine, []string) {
	return concepts(extractor.Section(text, "FECHA", "BASE IMPONIBLE"))
}

// Seguros reads MUTUA HOSTELERA premium receipts. Insurance is VAT exempt;
// the consortium surcharge and the premium tax are lines of their own.
type Seguros struct{ extractor.Base }

// Nº Recibo: <number>
var segurosRefRe = regexp.MustCompile(`(?i)\bN[ºo°]\.?\s*RECIBO:?\s*([\w-]{4,})`)

func (Seguros) Descriptor() extractor.Descriptor {
	return extractor.Descriptor{
		Name:          "MUTUA HOSTELERA DE SEGUROS",
		FiscalID:      "G78901234",
		IBAN:          "ES17 0075 0001 8106 0012 3456",
		Capability:    models.CapText,
		FixedCategory: "SEGUROS",
		FixedVAT:      extractor.Rate(0),
		Aliases:       []string{"MUTUA HOSTELERA"},
	}
}

func (Seguros) ExtractLines(text string) ([]models.InvoiceLine, []string) {
	return concepts(extractor.Section(text, "POLIZA", "TOTAL"))
}

func (Seguros) ExtractReference(text string) (string, bool) {
	if m := segurosRefRe.FindStringSubmatch(text); m != nil {
		return m[1], true
	}
	return "", false
}

// Musica reads the yearly licence of GESTORA DE DERECHOS MUSICALES for
// background music in the premises.
type Musica struct{ extractor.Base }

// Comunicación pública ... Tarifa ...
var musicaTariffRe = regexp.MustCompile(`(?im)^\s*(comunicaci[oó]n p[uú]blica[^\n]*)$`)

func (Musica) Descriptor() extractor.Descriptor {
	return extractor.Descriptor{
		Name:          "GESTORA DE DERECHOS MUSICALES",
		FiscalID:      "G28000999",
		IBAN:          "ES25 0049 0001 5021 1000 9999",
		Capability:    models.CapText,
		FixedCategory: "LICENCIAS MUSICA",
		FixedVAT:      extractor.Rate(21),
		Aliases:       []string{"GDM"},
	}
}

func (Musica) ExtractLines(text string) ([]models.InvoiceLine, []string) {
	lines, warnings := concepts(extractor.Section(text, "FECHA", "BASE IMPONIBLE"))
	if m := musicaTariffRe.FindStringSubmatch(text); m != nil {
		for i := range lines {
			if !lines[i].Correction {
				lines[i].Note = extractor.CleanArticle(m[1])
			}
		}
	}
	return lines, warnings
}

// TableBook reads the monthly subscription of the TableBook reservation
// software. It bills in US dollars and without Spanish VAT.
type TableBook struct{ extractor.Base }

// <description> <qty> $<unit price> $<amount>
var tablebookRowRe = regexp.MustCompile(`^(.+?)\s+(\d+)\s+\$?(\d+\.\d{2})\s+\$?(\d{1,3}(?:,\d{3})*\.\d{2})$`)

func (TableBook) Descriptor() extractor.Descriptor {
	return extractor.Descriptor{
		Name:          "TABLEBOOK INC",
		Capability:    models.CapText,
		FixedCategory: "GASTOS VARIOS",
		FixedVAT:      extractor.Rate(0),
		Aliases:       []string{"TABLEBOOK"},
		Currency:      "USD",
	}
}

func (TableBook) ExtractLines(text string) ([]models.InvoiceLine, []string) {
	return scan(text, tablebookRowRe, func(m []string) (models.InvoiceLine, error) {
		if isSummaryRow(m[1]) {
			return models.InvoiceLine{}, errSkip
		}
		return product(m[1], m[2], m[3], m[4])
	})
}
