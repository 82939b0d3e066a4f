package textutil

import (
	"sort"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Collator compares strings with French collation, ignoring case and
// comparing digit runs numerically. It is safe for concurrent use.
type Collator struct {
	mu sync.Mutex
	c  *collate.Collator
}

// NewCollator builds a French numeric collator.
func NewCollator() *Collator {
	return &Collator{c: collate.New(language.French, collate.IgnoreCase, collate.Numeric)}
}

// Compare returns -1, 0 or 1.
func (c *Collator) Compare(a, b string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.c.CompareString(a, b)
}

// Less reports whether a sorts before b.
func (c *Collator) Less(a, b string) bool { return c.Compare(a, b) < 0 }

// SortBy sorts items in place by key under French collation. Equal keys
// keep their input order.
func SortBy[T any](items []T, key func(T) string) {
	c := NewCollator()
	sort.SliceStable(items, func(i, j int) bool { return c.Less(key(items[i]), key(items[j])) })
}

// Strings returns a sorted copy of values.
func Strings(values []string) []string {
	out := append([]string(nil), values...)
	SortBy(out, func(s string) string { return s })
	return out
}
