package parse

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold strips diacritics: "Cañería" -> "Caneria".
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Key normalizes a supplier name for registry lookup: uppercase,
// accent-folded, punctuation turned into spaces and whitespace collapsed.
func Key(s string) string {
	folded := strings.ToUpper(Fold(s))
	fields := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(fields, " ")
}

// Compact normalizes text for dictionary matching: uppercase, accent-folded,
// with every non-alphanumeric rune removed.
func Compact(s string) string {
	folded := strings.ToUpper(Fold(s))
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Tokens splits s into uppercase accent-folded alphanumeric tokens.
func Tokens(s string) []string {
	return strings.Fields(Key(s))
}
