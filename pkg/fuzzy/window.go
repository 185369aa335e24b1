package fuzzy

// WindowMatch is the best-scoring fixed-size window of text against
// pattern, picked by the same sliding-window scan MatchFirst uses
// internally but exposed standalone for callers (CommandDispatch) that
// need the two-pass alignment-then-confirm check from wire_commands.py:
// a coarse alignment.score >= threshold*0.9 prefilter, then a strict
// Ratio(pattern, window) >= threshold confirmation.
type WindowMatch struct {
	Score float64
	Start int
	End   int
	Text  string
}

// BestWindow scans every len(pattern)-sized window of text and returns
// the highest-scoring one (leftmost on tie). ok is false if pattern is
// empty or longer than text.
func BestWindow(pattern, text string) (WindowMatch, bool) {
	patRunes := []rune(pattern)
	textRunes := []rune(text)
	patLen := len(patRunes)
	if patLen == 0 || patLen > len(textRunes) {
		return WindowMatch{}, false
	}

	var best WindowMatch
	found := false
	for start := 0; start <= len(textRunes)-patLen; start++ {
		end := start + patLen
		window := string(textRunes[start:end])
		score := Ratio(pattern, window)
		if !found || score > best.Score {
			best = WindowMatch{Score: score, Start: start, End: end, Text: window}
			found = true
		}
	}
	return best, found
}
