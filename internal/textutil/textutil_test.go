package textutil

import "testing"

func TestNormalizeName(t *testing.T) {
	// Decomposed accents with irregular spacing.
	decomposed := "E\u0301cole  Jaure\u0300s \t"
	if got := NormalizeName(decomposed); got != "\u00c9cole Jaur\u00e8s" {
		t.Fatalf("NormalizeName = %q", got)
	}
}

func TestFoldKey(t *testing.T) {
	tests := []struct {
		a, b string
		same bool
	}{
		{"  Élan  Citoyen", "elan citoyen", true},
		{"Génération Écologie", "GENERATION ECOLOGIE", true},
		{"Saint-Étienne", "saint-etienne", true},
		{"Ensemble", "Ensembles", false},
	}
	for _, tt := range tests {
		if got := EqualFold(tt.a, tt.b); got != tt.same {
			t.Errorf("EqualFold(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.same)
		}
	}
}

func TestTitle(t *testing.T) {
	if got := Title("union  pour la ville"); got != "Union Pour La Ville" {
		t.Fatalf("Title = %q", got)
	}
}

func TestStringsNumericOrder(t *testing.T) {
	got := Strings([]string{"Bureau 10", "bureau 2", "Bureau 1"})
	want := []string{"Bureau 1", "bureau 2", "Bureau 10"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Strings = %v, want %v", got, want)
		}
	}
}

func TestSortByAccents(t *testing.T) {
	type list struct{ name string }
	items := []list{{"Zéro Déchet"}, {"Écologie"}, {"Ensemble"}, {"Avenir"}}
	SortBy(items, func(l list) string { return l.name })
	want := []string{"Avenir", "Écologie", "Ensemble", "Zéro Déchet"}
	for i, l := range items {
		if l.name != want[i] {
			t.Fatalf("order = %v, want %v", items, want)
		}
	}
}
