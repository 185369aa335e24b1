// Package events defines the typed event variants that flow between
// pipeline components (spec.md §3), a typed pub/sub bus per variant,
// and C4 AudioMerge.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/dlparker/palaver/pkg/audio"
)

// TextSegment is one piece of a TextEvent's text, carrying its offset
// within the audio window in milliseconds (spec.md §3: "may hold
// multiple segments with per-segment ms offsets").
type TextSegment struct {
	Text     string
	OffsetMS int
}

// TextEvent is emitted by the Transcriber (C5) for each completed STT
// job. Invariant: AudioEndTime >= AudioStartTime.
type TextEvent struct {
	EventID       uuid.UUID
	AudioSourceID uuid.UUID
	AudioStartTime float64
	AudioEndTime   float64
	Text           string
	Segments       []TextSegment
}

// CommandKind tags a CommandEvent's variant.
type CommandKind int

const (
	CommandStartBlock CommandKind = iota
	CommandStopBlock
	CommandDomain
)

func (k CommandKind) String() string {
	switch k {
	case CommandStartBlock:
		return "StartBlock"
	case CommandStopBlock:
		return "StopBlock"
	default:
		return "Domain"
	}
}

// CommandEvent is emitted by CommandDispatch (C6) when a configured
// phrase matches above threshold in an incoming TextEvent.
type CommandEvent struct {
	Command        CommandKind
	DomainName     string // set when Command == CommandDomain
	MatchedPattern string
	MatchOffset    int
	MatchedText    string
	TextEvent      TextEvent
	AlertTextEvent *TextEvent // optional attention-prefix carrier
}

// Draft is built by DraftMaker (C7) from the TextEvents spanning a
// start/end phrase pair.
type Draft struct {
	DraftID            uuid.UUID
	ParentDraftID      *uuid.UUID // set only for rescans
	Timestamp          time.Time
	AudioStartTime     float64
	AudioEndTime       float64
	StartText          string
	EndText            string // sentinel ForcedEndText when forced
	FullText           string
	StartMatchedEvents []TextEvent
	EndMatchedEvents   []TextEvent
}

// ForcedEndText is the sentinel Draft.EndText value used when a draft is
// closed without a matching end phrase (e.g. AudioStop arrives first),
// ported from the original's "forced end" marker.
const ForcedEndText = "forced end"

// DraftEventKind tags a DraftEvent's variant.
type DraftEventKind int

const (
	DraftStart DraftEventKind = iota
	DraftEnd
	DraftRescan
)

// DraftEvent is the C7 output: DraftStart/DraftEnd/DraftRescan.
type DraftEvent struct {
	Kind         DraftEventKind
	Draft        Draft
	OriginalID   uuid.UUID // set only for DraftRescan
	RevisedDraft Draft     // set only for DraftRescan
}

// AudioChunkEvent wraps an audio.AudioChunk for bus delivery alongside
// the other typed variants, matching spec.md's "typed event bus per
// variant" (AudioEvent, TextEvent, DraftEvent, CommandEvent,
// AudioChunkEvent).
type AudioChunkEvent struct {
	Chunk audio.AudioChunk
}

// AudioLifecycleEventWrapper carries an audio.LifecycleEvent on the bus.
type AudioLifecycleEventWrapper struct {
	Event audio.LifecycleEvent
}
