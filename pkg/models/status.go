package models

import (
	"fmt"
	"math"
	"strings"
)

// Status is the reconciliation outcome of an invoice. Writers expect these
// exact tokens.
type Status string

const (
	StatusOK                  Status = "OK"
	StatusSinTotal            Status = "SIN_TOTAL"
	StatusSinLineas           Status = "SIN_LINEAS"
	StatusNoText              Status = "NO_TEXT"
	StatusDescuadreInvariante Status = "DESCUADRE_INVARIANTE"

	descuadrePrefix = "DESCUADRE_"
)

// Descuadre builds the DESCUADRE_<delta> status for an absolute euro difference.
func Descuadre(delta float64) Status {
	return Status(fmt.Sprintf("%s%.2f", descuadrePrefix, math.Abs(delta)))
}

// IsOK reports whether the invoice balanced.
func (s Status) IsOK() bool {
	return s == StatusOK
}

// IsDescuadre reports whether the status is a total mismatch (not the invariant one).
func (s Status) IsDescuadre() bool {
	return strings.HasPrefix(string(s), descuadrePrefix) && s != StatusDescuadreInvariante
}

// Valid reports whether s belongs to the status vocabulary.
func (s Status) Valid() bool {
	switch s {
	case StatusOK, StatusSinTotal, StatusSinLineas, StatusNoText, StatusDescuadreInvariante:
		return true
	}
	return s.IsDescuadre() && len(s) > len(descuadrePrefix)
}

// Error and warning kinds. The vocabulary is accounting oriented.
const (
	KindStrategyMiss      = "STRATEGY_MISS"
	KindNoText            = "NO_TEXT"
	KindSinLineas         = "SIN_LINEAS"
	KindSinTotal          = "SIN_TOTAL"
	KindSinFecha          = "SIN_FECHA"
	KindSinReferencia     = "SIN_REFERENCIA"
	KindDescuadre         = "DESCUADRE"
	KindInvariant         = "DESCUADRE_INVARIANTE"
	KindVATMismatch       = "VAT_MISMATCH"
	KindVATGuessed        = "VAT_GUESSED"
	KindVATGuessSkipped   = "VAT_GUESS_SKIPPED"
	KindPendiente         = "PENDIENTE"
	KindCurrencyConverted = "CURRENCY_CONVERTED"
	KindWithholding       = "WITHHOLDING_APPLIED"
	KindLineRejected      = "LINE_REJECTED"
)

// CategoryPending is the category given to lines the dictionary does not know.
const CategoryPending = "PENDIENTE"
