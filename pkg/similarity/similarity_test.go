package similarity

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"lowercases and trims", "  Calpol  ", "calpol"},
		{"collapses inner whitespace", "Dolo\t\t 650", "dolo 650"},
		{"keeps punctuation and digits", "Meftal-P", "meftal-p"},
		{"keeps OCR digit confusions", "D0l0", "d0l0"},
		{"folds full-width glyphs", "ＣＡＬＰＯＬ", "calpol"},
		{"empty stays empty", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{"", " Amoxicillin 500MG ", "Syp Calp... 5ml", "ＬＩＰＩＴＯＲ", "Augmentin\n625 Duo", "ﬁlgrastim"}

	for _, input := range inputs {
		once := Normalize(input)
		assert.Equal(t, once, Normalize(once), "input %q", input)
	}
}

func TestDistance(t *testing.T) {
	tests := []struct {
		a, b     string
		expected int
	}{
		{"", "", 0},
		{"", "calpol", 6},
		{"calpol", "", 6},
		{"calpol", "calpol", 0},
		{"Calpol", "cALPOL", 0},
		{"calpl", "calpol", 1},
		{"kitten", "sitting", 3},
		{"d0l0", "calpol", 5},
		{"ibuprofin", "ibuprofen", 1},
		{"paracétamol", "paracetamol", 1},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.expected, Distance(tt.a, tt.b))
		})
	}
}

func TestDistance_Properties(t *testing.T) {
	words := []string{"", "a", "amox", "amoxicillin", "Augmentin", "azithromycin", "D0l0", "dolo", "Lipitor", "lipit", "Meftal-P"}

	for _, a := range words {
		assert.Equal(t, 0, Distance(a, a), "distance(%q,%q)", a, a)
		for _, b := range words {
			assert.Equal(t, Distance(a, b), Distance(b, a), "symmetry for %q/%q", a, b)
			assert.GreaterOrEqual(t, Distance(a, b), 0)
		}
	}
}

func TestSimilarity(t *testing.T) {
	t.Run("both empty are identical", func(t *testing.T) {
		assert.Equal(t, 1.0, Similarity("", ""))
	})

	t.Run("one empty scores zero", func(t *testing.T) {
		assert.Equal(t, 0.0, Similarity("", "calpol"))
		assert.Equal(t, 0.0, Similarity("calpol", ""))
	})

	t.Run("identical strings score one", func(t *testing.T) {
		assert.Equal(t, 1.0, Similarity("atorvastatin", "atorvastatin"))
	})

	t.Run("normalized by the longer string", func(t *testing.T) {
		assert.InDelta(t, 5.0/6.0, Similarity("calpl", "calpol"), 1e-9)
		assert.InDelta(t, 0.5, Similarity("d0l0", "dolo"), 1e-9)
	})

	t.Run("boundary fixtures around 0.65", func(t *testing.T) {
		target := strings.Repeat("x", 50)
		above := strings.Repeat("y", 17) + strings.Repeat("x", 33)
		below := strings.Repeat("y", 18) + strings.Repeat("x", 32)

		assert.InDelta(t, 0.66, Similarity(above, target), 1e-9)
		assert.InDelta(t, 0.64, Similarity(below, target), 1e-9)
	})
}

func TestSimilarity_Range(t *testing.T) {
	words := []string{"a", "ab", "amox", "amoxicillin", "Calpol (Paracetamol)", "zzz", "Tylenol Extra Strength"}

	for _, a := range words {
		assert.Equal(t, 1.0, Similarity(a, a))
		for _, b := range words {
			s := Similarity(a, b)
			assert.GreaterOrEqual(t, s, 0.0)
			assert.LessOrEqual(t, s, 1.0)
		}
	}
}

func BenchmarkDistance(b *testing.B) {
	for i := 0; i < b.N; i++ {
		Distance("Calpol (Paracetamol)", "calpol 500mg syrup")
	}
}
