package draft

import (
	"testing"

	"github.com/dlparker/palaver/pkg/events"
)

// TestSingleNote mirrors spec.md §8 S1: one TextEvent containing a
// start phrase, body text, and an end phrase yields exactly one
// DraftStart and one DraftEnd with full_text trimmed to the body.
func TestSingleNote(t *testing.T) {
	b := NewBuilder(nil, nil, nil)

	out := b.OnTextEvent(events.TextEvent{
		Text:           "rupert take this down hello world break break break",
		AudioStartTime: 0,
		AudioEndTime:   5,
	})

	var starts, ends int
	var full string
	for _, de := range out {
		switch de.Kind {
		case events.DraftStart:
			starts++
		case events.DraftEnd:
			ends++
			full = de.Draft.FullText
		}
	}
	if starts != 1 || ends != 1 {
		t.Fatalf("expected exactly 1 start and 1 end, got %d/%d (%v)", starts, ends, out)
	}
	if full != "hello world" {
		t.Errorf("expected full_text %q, got %q", "hello world", full)
	}
}

// TestBackToBackDrafts mirrors spec.md §8 S2: a second start phrase
// auto-closes the first draft, and an explicit end phrase closes the
// second.
func TestBackToBackDrafts(t *testing.T) {
	b := NewBuilder(nil, nil, nil)

	out := b.OnTextEvent(events.TextEvent{
		Text:           "rupert take this down first rupert take this down second rupert stop draft",
		AudioStartTime: 0,
		AudioEndTime:   8,
	})

	var fullTexts []string
	var starts, ends int
	for _, de := range out {
		switch de.Kind {
		case events.DraftStart:
			starts++
		case events.DraftEnd:
			ends++
			fullTexts = append(fullTexts, de.Draft.FullText)
		}
	}
	if starts != 2 || ends != 2 {
		t.Fatalf("expected 2 starts and 2 ends, got %d/%d (%v)", starts, ends, out)
	}
	if len(fullTexts) != 2 || fullTexts[0] != "first" || fullTexts[1] != "second" {
		t.Fatalf("expected full_texts [first second], got %v", fullTexts)
	}
}

// TestForcedEnd mirrors spec.md §8 S3: a draft left open when the
// stream ends is force-closed with the ForcedEndText sentinel and the
// entire accumulated buffer as full_text.
func TestForcedEnd(t *testing.T) {
	b := NewBuilder(nil, nil, nil)

	out := b.OnTextEvent(events.TextEvent{
		Text:           "rupert take this down something unfinished",
		AudioStartTime: 0,
		AudioEndTime:   3,
	})
	if len(out) != 1 || out[0].Kind != events.DraftStart {
		t.Fatalf("expected only a DraftStart before force end, got %v", out)
	}

	de, ok := b.ForceEnd()
	if !ok {
		t.Fatalf("expected ForceEnd to report an open draft")
	}
	if de.Kind != events.DraftEnd {
		t.Fatalf("expected DraftEnd, got %v", de.Kind)
	}
	if de.Draft.EndText != events.ForcedEndText {
		t.Errorf("expected EndText %q, got %q", events.ForcedEndText, de.Draft.EndText)
	}
	if de.Draft.FullText != "something unfinished" {
		t.Errorf("expected full_text to be the entire buffer, got %q", de.Draft.FullText)
	}

	if _, ok := b.ForceEnd(); ok {
		t.Errorf("expected a second ForceEnd with no open draft to report ok=false")
	}
}

// TestEndPhraseWithNoOpenDraftIsDropped covers the fourth transition
// row: an end phrase with no draft open is logged and discarded,
// producing no DraftEvent.
func TestEndPhraseWithNoOpenDraftIsDropped(t *testing.T) {
	b := NewBuilder(nil, nil, nil)

	out := b.OnTextEvent(events.TextEvent{Text: "break break break", AudioStartTime: 0, AudioEndTime: 1})
	if len(out) != 0 {
		t.Errorf("expected no DraftEvents for an end phrase with nothing open, got %v", out)
	}
	if b.InProgress() {
		t.Errorf("expected no draft to be open")
	}
}

// TestImportDraftEmitsRescanWithoutAlteringState confirms import_draft
// is side-effect free on in-progress builder state (spec.md §4.7).
func TestImportDraftEmitsRescanWithoutAlteringState(t *testing.T) {
	b := NewBuilder(nil, nil, nil)
	b.OnTextEvent(events.TextEvent{Text: "rupert take this down partial", AudioStartTime: 0, AudioEndTime: 1})
	wasOpen := b.InProgress()

	revised := events.Draft{FullText: "revised text"}
	de := b.ImportDraft(events.Draft{}.DraftID, revised)

	if de.Kind != events.DraftRescan {
		t.Fatalf("expected DraftRescan, got %v", de.Kind)
	}
	if de.RevisedDraft.FullText != "revised text" {
		t.Errorf("expected revised draft to carry through, got %q", de.RevisedDraft.FullText)
	}
	if b.InProgress() != wasOpen {
		t.Errorf("expected ImportDraft to leave in-progress state unchanged")
	}
}
