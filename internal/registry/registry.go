// Package registry maps normalized supplier keys to extraction strategies.
//
// The registry is built once at startup from an explicit strategy list and
// is read-only afterwards, so lookups need no locking.
//
// Lookup order for Resolve:
//  1. Exact match on the normalized key (uppercase, accent-folded,
//     punctuation collapsed).
//  2. Containment: the single key that contains the guess or is contained by
//     it. Two equally close keys of different strategies are a miss.
//  3. The generic fallback strategy.
package registry

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/TascaBarea/ParsearFacturas-sub000/internal/extractor"
	"github.com/TascaBarea/ParsearFacturas-sub000/internal/logger"
	"github.com/TascaBarea/ParsearFacturas-sub000/internal/parse"
)

// MinContainment is the shortest key or guess considered for containment.
const MinContainment = 4

// Resolution paths recorded on the invoice.
const (
	ByFilename = "filename"
	ByHeader   = "header"
	ByFallback = "fallback"
)

var (
	// ErrDuplicateKey is returned when two strategies claim the same key.
	ErrDuplicateKey = errors.New("registry key already taken by another strategy")

	// ErrEmptyName is returned for a strategy without a canonical name.
	ErrEmptyName = errors.New("strategy has no name")
)

// Registry is the process-wide strategy table.
type Registry struct {
	byKey      map[string]extractor.Strategy
	keys       []string // sorted, for deterministic scans
	strategies []extractor.Strategy
	fallback   extractor.Strategy
	log        zerolog.Logger
}

// New builds a registry from strategies. fallback runs when nothing resolves
// and is not itself registered under any key.
func New(fallback extractor.Strategy, strategies ...extractor.Strategy) (*Registry, error) {
	const op = "registry.New"

	r := &Registry{
		byKey:    make(map[string]extractor.Strategy),
		fallback: fallback,
		log:      logger.WithComponent("registry"),
	}
	for _, s := range strategies {
		if err := r.register(s); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	sort.Strings(r.keys)
	return r, nil
}

// MustNew is New for static strategy lists.
func MustNew(fallback extractor.Strategy, strategies ...extractor.Strategy) *Registry {
	r, err := New(fallback, strategies...)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) register(s extractor.Strategy) error {
	d := s.Descriptor()
	if strings.TrimSpace(d.Name) == "" {
		return ErrEmptyName
	}
	for _, alias := range d.Keys() {
		key := parse.Key(alias)
		if key == "" {
			continue
		}
		if prev, ok := r.byKey[key]; ok {
			if prev.Descriptor().Name == d.Name {
				continue
			}
			return fmt.Errorf("%w: %q (%s, %s)", ErrDuplicateKey, key, prev.Descriptor().Name, d.Name)
		}
		r.byKey[key] = s
		r.keys = append(r.keys, key)
	}
	r.strategies = append(r.strategies, s)
	return nil
}

// Fallback returns the generic strategy.
func (r *Registry) Fallback() extractor.Strategy {
	return r.fallback
}

// Strategies returns the registered strategies sorted by name.
func (r *Registry) Strategies() []extractor.Strategy {
	out := append([]extractor.Strategy(nil), r.strategies...)
	sort.Slice(out, func(i, j int) bool {
		return out[i].Descriptor().Name < out[j].Descriptor().Name
	})
	return out
}

// Lookup resolves a supplier guess by exact key, then by containment.
func (r *Registry) Lookup(guess string) (extractor.Strategy, bool) {
	g := parse.Key(guess)
	if g == "" {
		return nil, false
	}
	if s, ok := r.byKey[g]; ok {
		return s, true
	}
	if len(g) < MinContainment {
		return nil, false
	}

	var (
		best      extractor.Strategy
		bestDist  = -1
		ambiguous bool
	)
	for _, key := range r.keys {
		if len(key) < MinContainment || !(strings.Contains(key, g) || strings.Contains(g, key)) {
			continue
		}
		s := r.byKey[key]
		dist := abs(len(key) - len(g))
		switch {
		case bestDist < 0 || dist < bestDist:
			best, bestDist, ambiguous = s, dist, false
		case dist == bestDist && !sameStrategy(best, s):
			ambiguous = true
		}
	}
	if best == nil || ambiguous {
		return nil, false
	}
	return best, true
}

// Resolve is Lookup with the generic fallback on a miss.
func (r *Registry) Resolve(guess string) extractor.Strategy {
	if s, ok := r.Lookup(guess); ok {
		return s
	}
	return r.fallback
}

// GuessFromFilename matches the filename's tokens against the keys. Runs of
// one to maxGram consecutive tokens are compared exactly; the longest run
// wins and, among equal runs, the one appearing first.
func (r *Registry) GuessFromFilename(path string) (extractor.Strategy, bool) {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	tokens := parse.Tokens(base)

	const maxGram = 4
	for n := min(maxGram, len(tokens)); n >= 1; n-- {
		for i := 0; i+n <= len(tokens); i++ {
			gram := strings.Join(tokens[i:i+n], " ")
			if len(gram) < 3 || isNumber(gram) {
				continue
			}
			if s, ok := r.byKey[gram]; ok {
				r.log.Debug().Str("file", filepath.Base(path)).Str("key", gram).Msg("Supplier guessed from filename")
				return s, true
			}
		}
	}
	return nil, false
}

// GuessFromHeader tests the strategies against the first page of text. A
// fiscal ID match beats a name match; among name matches the longest key
// wins and, on equal length, the one printed first.
func (r *Registry) GuessFromHeader(text string) (extractor.Strategy, bool) {
	header := " " + parse.Key(text) + " "
	compact := parse.Compact(text)

	for _, s := range r.strategies {
		if id := parse.Compact(s.Descriptor().FiscalID); len(id) >= 8 && strings.Contains(compact, id) {
			return s, true
		}
	}

	var (
		best    extractor.Strategy
		bestLen int
		bestPos int
	)
	for _, key := range r.keys {
		if len(key) < MinContainment {
			continue
		}
		pos := strings.Index(header, " "+key+" ")
		if pos < 0 {
			continue
		}
		if len(key) > bestLen || (len(key) == bestLen && pos < bestPos) {
			best, bestLen, bestPos = r.byKey[key], len(key), pos
		}
	}
	return best, best != nil
}

func sameStrategy(a, b extractor.Strategy) bool {
	return a.Descriptor().Name == b.Descriptor().Name
}

func isNumber(s string) bool {
	for _, r := range s {
		if (r < '0' || r > '9') && r != ' ' {
			return false
		}
	}
	return true
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
