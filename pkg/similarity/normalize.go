// Package similarity provides the string comparison primitives used to match
// noisy drug names (OCR output, free text, transcribed speech) against catalog names.
package similarity

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Normalize returns the comparison form of s: compatibility-folded (so full-width
// and ligature glyphs from OCR compare equal to their ASCII forms), trimmed,
// lowercased, with internal whitespace runs collapsed to a single space.
// No other characters are removed, so misspellings stay visible to Distance.
// Normalize is idempotent.
func Normalize(s string) string {
	s = norm.NFKC.String(s)
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
