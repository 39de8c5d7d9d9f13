package category

import (
	"github.com/TascaBarea/ParsearFacturas-sub000/internal/parse"
)

type vatRule struct {
	vat      int
	keywords []string
}

// Checked in order: alcohol and non-food first, then soft drinks, staples
// and other food.
var vatRules = []vatRule{
	{21, []string{
		"VINO", "CAVA", "CERVEZA", "LICOR", "GINEBRA", "GIN", "RON", "WHISKY", "VODKA",
		"VERMUT", "VERMOUTH", "BRANDY", "COÑAC", "ORUJO", "TEQUILA", "MEZCAL", "SIDRA",
		"PACHARAN", "JEREZ", "CHAMPAGNE", "AGUARDIENTE",
	}},
	{21, []string{
		"DETERGENTE", "LEJIA", "LIMPIADOR", "FREGASUELOS", "BOLSA", "SERVILLETA",
		"PAPEL", "ROLLO", "GUANTE", "ESTROPAJO", "VASO", "ENVASE", "CAJA", "ALQUILER",
		"LUZ", "ELECTRICIDAD", "TELEFONO", "FIBRA", "SEGURO", "GESTORIA", "PORTES",
	}},
	{10, []string{
		"AGUA", "REFRESCO", "ZUMO", "TONICA", "GASEOSA", "CAFE", "TE", "INFUSION",
		"BATIDO", "COLA", "NECTAR", "HIELO",
	}},
	{4, []string{
		"PAN", "BARRA", "CHAPATA", "LECHE", "HUEVO", "QUESO", "FRUTA", "VERDURA",
		"HORTALIZA", "HARINA", "LEGUMBRE", "GARBANZO", "LENTEJA", "ALUBIA", "PATATA",
		"TOMATE", "LECHUGA", "CEBOLLA", "AJO", "PIMIENTO", "LIMON", "NARANJA", "MANZANA",
		"PLATANO",
	}},
	{10, []string{
		"CARNE", "TERNERA", "CERDO", "POLLO", "CORDERO", "PESCADO", "MARISCO", "GAMBA",
		"BACALAO", "MERLUZA", "PULPO", "CALAMAR", "JAMON", "CHORIZO", "LOMO", "SALCHICHON",
		"EMBUTIDO", "CONSERVA", "ACEITUNA", "ANCHOA", "BOQUERON", "MEJILLON", "ARROZ",
		"PASTA", "AZUCAR", "SAL", "ESPECIA", "SALSA", "MAYONESA", "CHOCOLATE",
	}},
}

// GuessVAT returns the VAT rate implied by the article's keywords: staple
// food is 4%, soft drinks and other food 10%, alcohol and non-food 21%.
// A keyword matches a word that starts with it and is at most two letters
// longer, to cover plurals. Keywords shorter than shortKeyword letters must
// match the whole word, so TE never fires on TEJA.
func GuessVAT(article string) (int, bool) {
	tokens := parse.Tokens(article)
	for _, rule := range vatRules {
		for _, kw := range rule.keywords {
			kw = parse.Key(kw)
			for _, tok := range tokens {
				if keywordMatches(tok, kw) {
					return rule.vat, true
				}
			}
		}
	}
	return 0, false
}

const shortKeyword = 4

func keywordMatches(tok, kw string) bool {
	if len(kw) < shortKeyword {
		return tok == kw
	}
	return len(tok) >= len(kw) && len(tok) <= len(kw)+2 && tok[:len(kw)] == kw
}
