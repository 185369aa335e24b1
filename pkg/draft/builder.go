package draft

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dlparker/palaver/pkg/events"
	"github.com/dlparker/palaver/pkg/fuzzy"
	"github.com/dlparker/palaver/pkg/logging"
)

// DefaultRatioMin is the fuzzy-match floor used against both the start
// and end pattern families before a candidate is even considered,
// ported from drafts.py's match_first default threshold.
const DefaultRatioMin = 85.0

// textEventIndex tracks where one TextEvent's text landed in the
// rolling search buffer, so a match's character offsets can be mapped
// back to the TextEvents (and therefore audio timestamps) it spans.
// Ported from drafts.py's TextEventIndex.
type textEventIndex struct {
	event events.TextEvent
	start int
	end   int
}

// Builder is C7's DraftBuilder: a rolling search buffer of concatenated
// TextEvent text, matched repeatedly against the start/end phrase
// families and walked through the boundary transition table in
// spec.md §4.7.
type Builder struct {
	startPatterns []fuzzy.Pattern
	endPatterns   []fuzzy.Pattern
	ratioMin      float64
	logger        logging.Logger

	searchText string
	indices    []textEventIndex

	current *events.Draft
}

// NewBuilder builds a Builder with the given pattern families. Passing
// nil for either uses the package defaults.
func NewBuilder(startPatterns, endPatterns []fuzzy.Pattern, logger logging.Logger) *Builder {
	if startPatterns == nil {
		startPatterns = DefaultStartPatterns()
	}
	if endPatterns == nil {
		endPatterns = DefaultEndPatterns()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Builder{
		startPatterns: startPatterns,
		endPatterns:   endPatterns,
		ratioMin:      DefaultRatioMin,
		logger:        logger,
	}
}

// matchFamily tags which pattern family produced a fuzzy.Result, since
// Builder runs the start and end families as two separate MatchFirst
// scans and then picks a single overall winner between them.
type matchFamily int

const (
	familyStart matchFamily = iota
	familyEnd
)

type familyResult struct {
	result fuzzy.Result
	family matchFamily
}

// bestFamilyResult applies fuzzy.Best's reduction (highest score, then
// leftmost End, then longest span) across candidates drawn from both
// pattern families, also returning which family won.
func bestFamilyResult(candidates []familyResult) (fuzzy.Result, matchFamily) {
	best := candidates[0]
	for _, c := range candidates[1:] {
		r, cur := c.result, best.result
		switch {
		case r.Score > cur.Score:
			best = c
		case r.Score == cur.Score && r.End < cur.End:
			best = c
		case r.Score == cur.Score && r.End == cur.End && (r.End-r.Start) > (cur.End-cur.Start):
			best = c
		}
	}
	return best.result, best.family
}

// OnTextEvent appends ev to the rolling search buffer and repeatedly
// matches it against the start/end phrase families, applying the
// boundary transition table until no further match is found.
func (b *Builder) OnTextEvent(ev events.TextEvent) []events.DraftEvent {
	b.append(ev)

	var out []events.DraftEvent
	for {
		ev, ok := b.matchOnce()
		if !ok {
			break
		}
		out = append(out, ev...)
	}
	return out
}

// append adds ev.Text to the search buffer, inserting a single space
// only when neither side of the join already has one (ported from
// drafts.py's new_text_event_op buffer-join rule), and records the
// TextEventIndex spanning it.
func (b *Builder) append(ev events.TextEvent) {
	start := len(b.searchText)
	needsSpace := start > 0 &&
		!endsWithSpace(b.searchText) &&
		!startsWithSpace(ev.Text)
	if needsSpace {
		b.searchText += " "
	}
	b.searchText += ev.Text
	end := len(b.searchText)
	b.indices = append(b.indices, textEventIndex{event: ev, start: start, end: end})
}

// matchOnce runs one round of matching against both pattern families,
// picks the single overall winner, resolves its real character span
// and spanning TextEventIndex entries, and applies the transition
// table. Returns ok=false once neither family has a match left.
func (b *Builder) matchOnce() ([]events.DraftEvent, bool) {
	var candidates []familyResult
	for _, r := range fuzzy.MatchFirst(b.startPatterns, b.searchText, b.ratioMin) {
		candidates = append(candidates, familyResult{result: r, family: familyStart})
	}
	for _, r := range fuzzy.MatchFirst(b.endPatterns, b.searchText, b.ratioMin) {
		candidates = append(candidates, familyResult{result: r, family: familyEnd})
	}
	if len(candidates) == 0 {
		return nil, false
	}

	winner, family := bestFamilyResult(candidates)

	actualStart, actualEnd, err := fuzzy.FindRealRange(winner, b.searchText)
	if err != nil {
		b.logger.Warn("draft: could not re-locate matched span", "err", err, "matched", winner.MatchedText)
		return nil, false
	}

	startIdx := b.teiAt(actualStart)
	endIdx := b.teiAt(actualEnd)
	if startIdx == -1 || endIdx == -1 {
		b.logger.Warn("draft: match span has no covering TextEventIndex")
		return nil, false
	}

	return b.applyTransition(family, winner, actualStart, actualEnd, startIdx, endIdx), true
}

// teiAt returns the index into b.indices of the first entry whose span
// covers pos; past the last span it returns the last entry, and -1 only
// when there are no entries.
func (b *Builder) teiAt(pos int) int {
	for i, tei := range b.indices {
		if pos <= tei.end {
			return i
		}
	}
	if len(b.indices) > 0 {
		return len(b.indices) - 1
	}
	return -1
}

// applyTransition implements spec.md §4.7's four-row table:
//
//	no draft + start -> open a new draft
//	draft open + start -> close the current draft, then open a new one
//	draft open + end -> close the current draft
//	no draft + end -> log and drop
func (b *Builder) applyTransition(family matchFamily, winner fuzzy.Result, actualStart, actualEnd, startIdx, endIdx int) []events.DraftEvent {
	var out []events.DraftEvent

	if family == familyStart {
		if b.current != nil {
			out = append(out, b.closeCurrent(winner.MatchedText, actualStart, endIdx))
		}
		out = append(out, b.openNew(winner.MatchedText, startIdx))
		b.trimTo(actualEnd)
		return out
	}

	// family == familyEnd
	if b.current == nil {
		b.logger.Info("draft: end phrase matched with no open draft, dropping", "matched", winner.MatchedText)
		b.trimTo(actualEnd)
		return nil
	}
	out = append(out, b.closeCurrent(winner.MatchedText, actualStart, endIdx))
	b.trimTo(actualEnd)
	return out
}

func (b *Builder) openNew(startText string, startIdx int) events.DraftEvent {
	d := events.Draft{
		DraftID:            uuid.New(),
		Timestamp:          time.Now(),
		StartText:          startText,
		AudioStartTime:     b.indices[startIdx].event.AudioStartTime,
		StartMatchedEvents: []events.TextEvent{b.indices[startIdx].event},
	}
	b.current = &d
	return events.DraftEvent{Kind: events.DraftStart, Draft: d}
}

// closeCurrent ends the in-progress draft. FullText is everything in
// the search buffer BEFORE the matched boundary phrase starts (ported
// from drafts.py's `full_text = search_text[:actual_start]`); trailing
// text from the phrase itself belongs to the next draft, not this one.
func (b *Builder) closeCurrent(endText string, actualStart, endIdx int) events.DraftEvent {
	d := *b.current
	d.EndText = endText
	d.FullText = strings.TrimSpace(b.searchText[:actualStart])
	d.AudioEndTime = b.indices[endIdx].event.AudioEndTime
	d.EndMatchedEvents = []events.TextEvent{b.indices[endIdx].event}
	b.current = nil
	return events.DraftEvent{Kind: events.DraftEnd, Draft: d}
}

// trimTo discards everything consumed through pos from the rolling
// buffer and drops TextEventIndex entries fully before it, so later
// matches never re-scan consumed text.
func (b *Builder) trimTo(pos int) {
	if pos <= 0 || pos > len(b.searchText) {
		return
	}
	b.searchText = b.searchText[pos:]

	var remaining []textEventIndex
	for _, tei := range b.indices {
		if tei.end <= pos {
			continue
		}
		tei.start -= pos
		if tei.start < 0 {
			tei.start = 0
		}
		tei.end -= pos
		remaining = append(remaining, tei)
	}
	b.indices = remaining
}

// ForceEnd closes an in-progress draft with the ForcedEndText sentinel
// (e.g. on AudioStop with no matching end phrase) and emits its
// DraftEnd. Returns ok=false if no draft is open.
func (b *Builder) ForceEnd() (events.DraftEvent, bool) {
	if b.current == nil {
		return events.DraftEvent{}, false
	}
	d := *b.current
	d.EndText = events.ForcedEndText
	d.FullText = strings.TrimSpace(b.searchText)
	if len(b.indices) > 0 {
		last := b.indices[len(b.indices)-1]
		d.AudioEndTime = last.event.AudioEndTime
		d.EndMatchedEvents = []events.TextEvent{last.event}
	}
	b.current = nil
	b.searchText = ""
	b.indices = nil
	return events.DraftEvent{Kind: events.DraftEnd, Draft: d}, true
}

// ImportDraft records a remotely-rescanned revision of an existing
// draft without touching in-progress builder state, emitting a
// DraftRescan event (spec.md §4.7 "import_draft").
func (b *Builder) ImportDraft(originalID uuid.UUID, revised events.Draft) events.DraftEvent {
	return events.DraftEvent{
		Kind:         events.DraftRescan,
		OriginalID:   originalID,
		RevisedDraft: revised,
	}
}

// InProgress reports whether a draft is currently open.
func (b *Builder) InProgress() bool { return b.current != nil }

func endsWithSpace(s string) bool {
	if s == "" {
		return false
	}
	return isSpace(s[len(s)-1])
}

func startsWithSpace(s string) bool {
	if s == "" {
		return false
	}
	return isSpace(s[0])
}

func isSpace(b byte) bool { return b == ' ' || b == '\t' || b == '\n' || b == '\r' }
