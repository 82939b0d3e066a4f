// Package textutil normalizes display names and orders them the way French
// readers expect.
//
// Names typed by different precinct operators arrive with mixed Unicode
// forms, stray whitespace and inconsistent accents. NormalizeName gives a
// canonical display form, FoldKey a comparison key that ignores case and
// accents, and Collator orders ids and names with French collation where
// embedded numbers compare by value ("Bureau 2" before "Bureau 10").
package textutil
