package similarity

import (
	"unicode"
	"unicode/utf8"
)

// Distance returns the Levenshtein edit distance between a and b, where insertion,
// deletion and substitution each cost 1. Runes are compared case-insensitively.
func Distance(a, b string) int {
	ra := foldRunes(a)
	rb := foldRunes(b)

	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	// Two rolling rows of the classic matrix
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[len(rb)]
}

// Similarity returns 1 - Distance(a, b)/max(len(a), len(b)), measured in runes.
// Two empty strings are identical (1); an empty string against a non-empty one scores 0.
// The result is always within [0, 1].
func Similarity(a, b string) float64 {
	la := utf8.RuneCountInString(a)
	lb := utf8.RuneCountInString(b)

	if la == 0 && lb == 0 {
		return 1
	}
	if la == 0 || lb == 0 {
		return 0
	}

	longest := max(la, lb)
	return 1 - float64(Distance(a, b))/float64(longest)
}

func foldRunes(s string) []rune {
	runes := []rune(s)
	for i, r := range runes {
		runes[i] = unicode.ToLower(r)
	}
	return runes
}
