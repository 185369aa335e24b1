// Package fuzzy implements the partial-ratio fuzzy string matching used
// by CommandDispatch (C6) and DraftMaker (C7), ported from the
// original's use of rapidfuzz (fuzz.ratio / fuzz.partial_ratio_alignment)
// onto github.com/agnivade/levenshtein, the edit-distance library named
// in the example pack's dependency manifests.
package fuzzy

import (
	"unicode"

	"github.com/agnivade/levenshtein"
)

// Ratio returns a 0..100 similarity score between a and b, equivalent to
// rapidfuzz's fuzz.ratio: 100 * (1 - edit_distance / max(len(a), len(b))).
func Ratio(a, b string) float64 {
	if a == "" && b == "" {
		return 100
	}
	maxLen := len([]rune(a))
	if bl := len([]rune(b)); bl > maxLen {
		maxLen = bl
	}
	if maxLen == 0 {
		return 100
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 100 * (1 - float64(dist)/float64(maxLen))
}

// CleanTextWithMapping lowercases text and strips punctuation,
// returning the cleaned string plus, for each kept rune, its original
// byte-rune index in text. Ported from drafts.py's
// clean_text_with_mapping.
func CleanTextWithMapping(text string) (string, []int) {
	runes := []rune(text)
	var cleaned []rune
	var mapping []int
	for i, r := range runes {
		lower := unicode.ToLower(r)
		if !unicode.IsPunct(lower) {
			cleaned = append(cleaned, lower)
			mapping = append(mapping, i)
		}
	}
	return string(cleaned), mapping
}
