package category

import (
	"slices"
	"strings"

	"github.com/TascaBarea/ParsearFacturas-sub000/internal/parse"
	"github.com/TascaBarea/ParsearFacturas-sub000/pkg/models"
)

// MinPattern is the shortest normalized text allowed to match by containment.
const MinPattern = 4

// DefaultVAT is the rate used when nothing else decides.
const DefaultVAT = 21

// Match is the answer to a lookup.
type Match struct {
	Category   string
	CategoryID string
	VAT        int
	Source     models.VATSource // VATUnset when the caller's hint was kept
	Found      bool
}

// Resolver looks up categories. The dictionary and alias table are read-only
// after construction; only the pending list grows.
type Resolver struct {
	dict    *Dictionary
	aliases map[string]string   // parse.Key(alias) -> parse.Key(canonical)
	names   map[string][]string // parse.Key(canonical) -> alias keys
	pending *PendingList
}

// NewResolver creates a resolver over dict. aliases maps alternative supplier
// names to the canonical name the dictionary uses. dict may be nil.
func NewResolver(dict *Dictionary, aliases map[string]string) *Resolver {
	if dict == nil {
		dict = NewDictionary(nil)
	}
	r := &Resolver{
		dict:    dict,
		aliases: make(map[string]string, len(aliases)),
		names:   make(map[string][]string),
		pending: NewPendingList(),
	}
	for alias, canonical := range aliases {
		ak, ck := parse.Key(alias), parse.Key(canonical)
		r.aliases[ak] = ck
		r.names[ck] = append(r.names[ck], ak)
	}
	for _, keys := range r.names {
		slices.Sort(keys)
	}
	return r
}

// Pending returns the list of (supplier, article) pairs that missed.
func (r *Resolver) Pending() *PendingList {
	return r.pending
}

// Lookup resolves the category of article for supplier.
//
// On a hit the VAT is vatHint when non-zero, else the row's default VAT, else
// the keyword heuristics. On a miss the category is PENDIENTE, the pair is
// recorded in the pending list and the VAT is vatHint, the heuristics or 21.
func (r *Resolver) Lookup(supplier, article string, vatHint int) Match {
	if e, ok := r.find(supplier, article); ok {
		m := Match{Category: e.Category, CategoryID: e.CategoryID, Found: true}
		switch {
		case vatHint != 0:
			m.VAT = vatHint
		case e.HasVAT:
			m.VAT, m.Source = e.VAT, models.VATFromDict
		default:
			m.VAT, m.Source = guessOrDefault(article)
		}
		if m.Category == models.CategoryPending {
			r.pending.Add(supplier, article)
		}
		return m
	}

	r.pending.Add(supplier, article)
	m := Match{Category: models.CategoryPending}
	if vatHint != 0 {
		m.VAT = vatHint
	} else {
		m.VAT, m.Source = guessOrDefault(article)
	}
	return m
}

func (r *Resolver) find(supplier, article string) (Entry, bool) {
	aCompact := parse.Compact(article)
	if aCompact == "" {
		return Entry{}, false
	}

	sk := parse.Key(supplier)
	if canonical, ok := r.aliases[sk]; ok {
		sk = canonical
	}

	// Rows may be keyed by the canonical name or by any of its aliases.
	keys := append([]string{sk}, r.names[sk]...)
	keys = append(keys, "")
	for _, k := range keys {
		if e, ok := bestRow(r.dict.bySupplier[k], aCompact); ok {
			return e, true
		}
	}
	return Entry{}, false
}

// falseFriends lists words that contain a shorter pattern without being
// that product.
var falseFriends = map[string][]string{
	"AGUA": {"AGUARDIENTE"},
}

// bestRow prefers an exact match, then the longest pattern contained in the
// article (or containing it), then the first row. Both sides are compared
// without punctuation or spaces, so CERVEZA matches CERVEZAS MAHOU and
// COCA COLA matches COCACOLA ZERO.
func bestRow(rows []row, aCompact string) (Entry, bool) {
	var (
		best    *row
		bestLen int
	)
	for i := range rows {
		rw := &rows[i]
		if rw.compact == aCompact {
			return rw.Entry, true
		}
		if min(len(rw.compact), len(aCompact)) < MinPattern {
			continue
		}
		if contains(aCompact, rw.compact) || contains(rw.compact, aCompact) {
			if l := len(rw.compact); l > bestLen {
				best, bestLen = rw, l
			}
		}
	}
	if best == nil {
		return Entry{}, false
	}
	return best.Entry, true
}

// contains reports whether needle occurs in haystack outside any of its
// false friends.
func contains(haystack, needle string) bool {
	if !strings.Contains(haystack, needle) {
		return false
	}
	for _, ff := range falseFriends[needle] {
		haystack = strings.ReplaceAll(haystack, ff, "")
	}
	return strings.Contains(haystack, needle)
}

func guessOrDefault(article string) (int, models.VATSource) {
	if vat, ok := GuessVAT(article); ok {
		return vat, models.VATFromGuess
	}
	return DefaultVAT, models.VATFromDefault
}
