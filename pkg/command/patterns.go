package command

// defaultWakeNames and defaultAttentionSignals build the default
// attention-up phrase cross-product, ported from wire_commands.py's
// alert_up_phrases (alert_down_phrases is built the same way in the
// original but never consulted there, so it isn't carried forward here).
var (
	defaultWakeNames        = []string{"rupert", "rubik", "rufus", "freddy"}
	defaultAttentionSignals = []string{"listen up", "wake up", "gear up", "stand up"}
)

// DefaultAttentionPhrases returns the wake-word phrase list that gates
// command recognition when RequireAlerts is true.
func DefaultAttentionPhrases() []string {
	var out []string
	for _, name := range defaultWakeNames {
		for _, signal := range defaultAttentionSignals {
			out = append(out,
				name+" "+signal+" "+name,
				name+" "+signal+" ",
				signal+" "+name,
			)
		}
	}
	return out
}

// DefaultStartBlockPhrases are the phrases that open a text block
// (ported from wire_commands.py's control_commands start-block list).
func DefaultStartBlockPhrases() []string {
	return []string{
		"start a new note", "start new note",
		"start a note", "take this down", "new text block",
		"command is new block",
	}
}

// DefaultStopBlockPhrases are the phrases that close a text block
// (ported from wire_commands.py's control_commands stop-block list).
func DefaultStopBlockPhrases() []string {
	return []string{
		"break break break",
		"great great great", "quick quick quick", "click click click",
		"session end", "end session",
		"rupert back to sleep",
		"rupert vacation now",
		"rupert signoff",
	}
}
