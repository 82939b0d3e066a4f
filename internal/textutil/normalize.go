package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeName returns s in NFC with inner whitespace collapsed.
func NormalizeName(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

// FoldKey returns a key for matching names regardless of case, accents and
// spacing: "  Élan  Citoyen" and "elan citoyen" share a key.
func FoldKey(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, NormalizeName(s))
	if err != nil {
		stripped = NormalizeName(s)
	}
	return cases.Fold().String(stripped)
}

// Title capitalizes each word using French casing rules.
func Title(s string) string {
	return cases.Title(language.French).String(NormalizeName(s))
}

// EqualFold reports whether a and b share a FoldKey.
func EqualFold(a, b string) bool {
	return FoldKey(a) == FoldKey(b)
}
