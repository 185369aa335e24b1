// Package command implements C6 CommandDispatch: fuzzy-matching
// TextEvents against attention-up and command phrase families, gating
// command recognition behind an attention state, and emitting
// CommandEvents.
package command

import (
	"github.com/dlparker/palaver/pkg/events"
	"github.com/dlparker/palaver/pkg/fuzzy"
	"github.com/dlparker/palaver/pkg/logging"
)

// Def is one configured command definition: an ordered list of phrases
// that, on best match above CommandScore, fires Kind (spec.md §4.6).
type Def struct {
	Name       string
	Kind       events.CommandKind
	DomainName string // used when Kind == CommandDomain
	Phrases    []string
}

// DefaultDefs returns the StartBlock/StopBlock definitions ported from
// wire_commands.py's control_commands.
func DefaultDefs() []Def {
	return []Def{
		{Name: "start_block", Kind: events.CommandStartBlock, Phrases: DefaultStartBlockPhrases()},
		{Name: "stop_block", Kind: events.CommandStopBlock, Phrases: DefaultStopBlockPhrases()},
	}
}

// Dispatch is C6. CommandScore and AttentionScore default to 75/70
// (spec.md §4.6); RequireAlerts gates command recognition behind a wake
// phrase.
type Dispatch struct {
	CommandScore    float64
	AttentionScore  float64
	RequireAlerts   bool
	attentionPhrases []string
	defs            []Def
	logger          logging.Logger

	alert          bool
	alertTextEvent *events.TextEvent
	inBlock        bool
}

// New builds a Dispatch with the given command score / attention score
// / require-alerts gate, the default attention phrase table, and the
// default StartBlock/StopBlock definitions.
func New(commandScore, attentionScore float64, requireAlerts bool, logger logging.Logger) *Dispatch {
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatch{
		CommandScore:     commandScore,
		AttentionScore:   attentionScore,
		RequireAlerts:    requireAlerts,
		attentionPhrases: DefaultAttentionPhrases(),
		defs:             DefaultDefs(),
		logger:           logger,
	}
}

// RegisterDef adds or replaces a command definition, allowing
// domain-specific commands beyond StartBlock/StopBlock (spec.md §4.6
// "domain-specific" CommandKind).
func (d *Dispatch) RegisterDef(def Def) {
	for i, existing := range d.defs {
		if existing.Name == def.Name {
			d.defs[i] = def
			return
		}
	}
	d.defs = append(d.defs, def)
}

// OnTextEvent runs the two-stage attention check then command scan
// against ev.Text, returning zero or more CommandEvents (a definition
// fires at most once per TextEvent).
func (d *Dispatch) OnTextEvent(ev events.TextEvent) []events.CommandEvent {
	if !d.alert {
		d.checkAttention(ev)
	}

	if !d.alert && d.RequireAlerts {
		return nil
	}

	var out []events.CommandEvent
	for _, def := range d.defs {
		if def.Kind == events.CommandStartBlock && d.inBlock {
			continue // spec.md §4.6: StartBlock suppressed while in_block
		}
		match, ok := d.bestMatch(def.Phrases, ev.Text, d.CommandScore)
		if !ok {
			continue
		}
		cmdEvent := events.CommandEvent{
			Command:        def.Kind,
			DomainName:     def.DomainName,
			MatchedPattern: match.pattern,
			MatchOffset:    match.window.Start,
			MatchedText:    match.window.Text,
			TextEvent:      ev,
			AlertTextEvent: d.alertTextEvent,
		}
		out = append(out, cmdEvent)

		switch def.Kind {
		case events.CommandStartBlock:
			d.inBlock = true
		case events.CommandStopBlock:
			d.inBlock = false
			d.alert = false
			d.alertTextEvent = nil
		}
	}
	return out
}

// IssueBlockEnd forces a StopBlock CommandEvent when the stream ends
// without a matching end phrase, per wire_commands.py's
// issue_block_end.
func (d *Dispatch) IssueBlockEnd(startEvent events.TextEvent) events.CommandEvent {
	d.inBlock = false
	return events.CommandEvent{
		Command:        events.CommandStopBlock,
		MatchedPattern: "forced end of input stream",
		MatchedText:    "",
		TextEvent:      startEvent,
	}
}

func (d *Dispatch) checkAttention(ev events.TextEvent) {
	for _, phrase := range d.attentionPhrases {
		window, ok := fuzzy.BestWindow(phrase, ev.Text)
		if !ok || window.Score < d.AttentionScore*0.9 {
			continue
		}
		score := fuzzy.Ratio(phrase, window.Text)
		if score >= d.AttentionScore {
			d.alert = true
			evCopy := ev
			d.alertTextEvent = &evCopy
			d.logger.Info("attention detected", "phrase", phrase, "matched", window.Text)
			return
		}
	}
}

type scoredMatch struct {
	pattern string
	window  fuzzy.WindowMatch
}

// bestMatch runs the two-pass alignment-then-confirm check (coarse
// prefilter at threshold*0.9, strict confirm at threshold) across every
// phrase and returns the single best-scoring one above threshold.
func (d *Dispatch) bestMatch(phrases []string, text string, threshold float64) (scoredMatch, bool) {
	var best scoredMatch
	bestScore := -1.0
	found := false

	for _, phrase := range phrases {
		window, ok := fuzzy.BestWindow(phrase, text)
		if !ok || window.Score < threshold*0.9 {
			continue
		}
		score := fuzzy.Ratio(phrase, window.Text)
		if score < threshold {
			continue
		}
		if score > bestScore {
			bestScore = score
			best = scoredMatch{pattern: phrase, window: window}
			found = true
		}
	}
	return best, found
}

// InBlock reports whether a StartBlock has fired without a matching
// StopBlock yet.
func (d *Dispatch) InBlock() bool { return d.inBlock }

// Alert reports whether the attention gate is currently open.
func (d *Dispatch) Alert() bool { return d.alert }
