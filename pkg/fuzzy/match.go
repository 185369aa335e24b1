package fuzzy

import (
	"fmt"
	"strings"
)

// Pattern is a phrase to search for plus words that must each score
// >=90 against some token in the cleaned text before the sliding-window
// scan runs at all, ported from drafts.py's MatchPattern.
type Pattern struct {
	Phrase        string
	RequiredWords []string
}

// Result is one scored match of a Pattern against a search text, with
// offsets into the ORIGINAL (uncleaned) text. Ported from MatchResult.
type Result struct {
	Pattern     Pattern
	Start       int
	End         int
	MatchedText string
	Score       float64
}

// MatchFirst fuzzy-matches every pattern against text and returns, for
// each pattern that clears ratioMin, its single best-scoring window
// (highest score, then leftmost, matching drafts.py's match_first
// tie-break). The returned slice is sorted by Result.End ascending.
func MatchFirst(patterns []Pattern, text string, ratioMin float64) []Result {
	cleanedText, mapping := CleanTextWithMapping(text)
	cleanedRunes := []rune(cleanedText)
	var results []Result

	for _, p := range patterns {
		if !requiredWordsPresent(p.RequiredWords, cleanedText) {
			continue
		}

		cleanedPattern, _ := CleanTextWithMapping(p.Phrase)
		patRunes := []rune(cleanedPattern)
		patLen := len(patRunes)
		if patLen == 0 || patLen > len(cleanedRunes) {
			continue
		}

		var candidates []Result
		for start := 0; start <= len(cleanedRunes)-patLen; start++ {
			end := start + patLen
			sub := string(cleanedRunes[start:end])
			score := Ratio(cleanedPattern, sub)
			if score < ratioMin {
				continue
			}
			origStart := mapping[start]
			origEnd := mapping[end-1] + 1
			candidates = append(candidates, Result{
				Pattern:     p,
				Start:       origStart,
				End:         origEnd,
				MatchedText: text[origStart:origEnd],
				Score:       score,
			})
		}
		if best, ok := bestOf(candidates); ok {
			results = append(results, best)
		}
	}

	sortByEnd(results)
	return results
}

// requiredWordsPresent checks each required word scores >=90 against
// some whitespace-delimited token of cleanedText.
func requiredWordsPresent(required []string, cleanedText string) bool {
	tokens := strings.Fields(cleanedText)
	for _, word := range required {
		best := 0.0
		for _, tok := range tokens {
			score := Ratio(word, tok)
			if score > best {
				best = score
			}
			if score >= 90 {
				break
			}
		}
		if best < 90 {
			return false
		}
	}
	return true
}

// bestOf picks the highest-scoring candidate, breaking ties by leftmost
// Start, matching drafts.py's reversed-scan tie-break.
func bestOf(candidates []Result) (Result, bool) {
	if len(candidates) == 0 {
		return Result{}, false
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Score > best.Score || (c.Score == best.Score && c.Start < best.Start) {
			best = c
		}
	}
	return best, true
}

// Best reduces MatchFirst's per-pattern winners to the single overall
// winner match_first returns to its caller: highest score, tie-broken
// by leftmost End, then by longest span. Ported from the final
// reduction in drafts.py's match_first (the results list there is the
// same per-pattern-winner list MatchFirst returns here).
func Best(results []Result) (Result, bool) {
	if len(results) == 0 {
		return Result{}, false
	}
	best := results[0]
	for _, r := range results[1:] {
		switch {
		case r.Score > best.Score:
			best = r
		case r.Score == best.Score && r.End < best.End:
			best = r
		case r.Score == best.Score && r.End == best.End && (r.End-r.Start) > (best.End-best.Start):
			best = r
		}
	}
	return best, true
}

func sortByEnd(results []Result) {
	for i := 1; i < len(results); i++ {
		for j := i; j > 0 && results[j].End < results[j-1].End; j-- {
			results[j], results[j-1] = results[j-1], results[j]
		}
	}
}

// FindRealRange re-locates a match's original span within searchText by
// walking word-by-word from matched.Start, since fuzzy cleaning removed
// whitespace/punctuation that must be preserved in the final draft
// boundary. Ported from DraftBuilder.find_real_range.
func FindRealRange(matched Result, searchText string) (int, int, error) {
	words := strings.Fields(strings.ToLower(strings.TrimRight(matched.MatchedText, " ")))
	if len(words) == 0 {
		return matched.Start, matched.End, nil
	}

	lowerSearch := strings.ToLower(searchText)
	tail := lowerSearch[min(matched.Start, len(lowerSearch)):]
	idx := strings.Index(tail, words[0])
	if idx == -1 {
		return 0, 0, fmt.Errorf("fuzzy: can't find matched text %q in search text", matched.MatchedText)
	}
	actualStart := matched.Start + idx

	cursor := actualStart
	for _, w := range words[1:] {
		rest := lowerSearch[min(cursor, len(lowerSearch)):]
		idx := strings.Index(rest, w)
		if idx == -1 {
			return 0, 0, fmt.Errorf("fuzzy: can't find matched text %q in search text", matched.MatchedText)
		}
		cursor += idx + len(w)
	}
	actualEnd := cursor
	for actualEnd < len(searchText) && !isSpace(searchText[actualEnd]) {
		actualEnd++
	}
	return actualStart, actualEnd, nil
}

func isSpace(b byte) bool { return b == ' ' || b == '\t' || b == '\n' || b == '\r' }
