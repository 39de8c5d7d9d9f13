package category

import (
	"sync"

	"github.com/TascaBarea/ParsearFacturas-sub000/internal/parse"
)

// PendingItem is an article the dictionary did not know.
type PendingItem struct {
	Supplier string
	Article  string
}

// PendingList collects pending pairs in first-seen order without duplicates.
// It only grows.
type PendingList struct {
	mu    sync.Mutex
	seen  map[string]struct{}
	items []PendingItem
}

// NewPendingList creates an empty list.
func NewPendingList() *PendingList {
	return &PendingList{seen: make(map[string]struct{})}
}

// Add records a pair and reports whether it was new. Pairs are compared on
// their normalized forms.
func (p *PendingList) Add(supplier, article string) bool {
	k := parse.Key(supplier) + "\x00" + parse.Compact(article)

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.seen[k]; ok {
		return false
	}
	p.seen[k] = struct{}{}
	p.items = append(p.items, PendingItem{Supplier: supplier, Article: article})
	return true
}

// Items returns a copy of the list.
func (p *PendingList) Items() []PendingItem {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]PendingItem(nil), p.items...)
}

// Len returns the number of pending pairs.
func (p *PendingList) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.items)
}
