// Package parse converts human-written money, quantity and date tokens found
// on supplier invoices into typed values. Nothing in here knows about a
// particular supplier.
package parse

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var currencyGlyphs = strings.NewReplacer(
	"€", "", "$", "", "£", "",
	"EUR", "", "eur", "", "Eur", "",
	"USD", "", "usd", "",
	" ", "", "\u00a0", "", "\u202f", "", "\t", "", "'", "",
)

// Money parses an amount written in European or American notation.
//
// When both '.' and ',' appear, the rightmost one is the decimal separator.
// A lone ',' is always decimal. A lone '.' is decimal only when exactly two
// digits follow it, otherwise it groups thousands. Negative amounts may be
// written with a leading or trailing minus or in parentheses. Unparsable
// input yields 0.
func Money(s string) float64 {
	v, ok := MoneyOK(s)
	if !ok {
		return 0
	}
	return v
}

// MoneyOK is Money with an explicit success flag.
func MoneyOK(s string) (float64, bool) {
	cleaned := strings.TrimSpace(currencyGlyphs.Replace(s))
	if cleaned == "" {
		return 0, false
	}

	negative := false
	if strings.HasPrefix(cleaned, "(") && strings.HasSuffix(cleaned, ")") {
		negative = true
		cleaned = cleaned[1 : len(cleaned)-1]
	}
	if strings.HasPrefix(cleaned, "-") {
		negative = !negative
		cleaned = cleaned[1:]
	} else if strings.HasSuffix(cleaned, "-") {
		negative = !negative
		cleaned = cleaned[:len(cleaned)-1]
	}
	cleaned = strings.TrimPrefix(cleaned, "+")

	lastDot := strings.LastIndex(cleaned, ".")
	lastComma := strings.LastIndex(cleaned, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case lastComma >= 0:
		cleaned = strings.ReplaceAll(cleaned[:lastComma], ",", "") + "." + cleaned[lastComma+1:]
	case lastDot >= 0:
		if len(cleaned)-lastDot-1 == 2 {
			cleaned = strings.ReplaceAll(cleaned[:lastDot], ".", "") + "." + cleaned[lastDot+1:]
		} else {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
		}
	}

	if !numeric(cleaned) {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	if negative {
		v = -v
	}
	return v, true
}

// Quantity parses a unit count or weight. A single separator of either kind
// is read as decimal, since quantities like "1,250" kg are common on scale
// tickets while thousands of units are not.
func Quantity(s string) float64 {
	cleaned := strings.TrimSpace(currencyGlyphs.Replace(s))
	if strings.Contains(cleaned, ".") && strings.Contains(cleaned, ",") {
		return Money(cleaned)
	}
	cleaned = strings.ReplaceAll(cleaned, ",", ".")
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return v
}

// FormatMoney renders x in Spanish notation with two decimals: 1.234,56.
// Money(FormatMoney(x)) == x for every x with at most two decimals.
func FormatMoney(x float64) string {
	s := decimal.NewFromFloat(x).StringFixed(2)
	negative := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	if negative && strings.Trim(intPart+frac, "0") != "" {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	b.WriteByte(',')
	b.WriteString(frac)
	return b.String()
}

func numeric(s string) bool {
	if s == "" || s == "." {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' {
			return false
		}
	}
	return true
}
