package vad

import (
	"sync"

	"github.com/google/uuid"

	"github.com/dlparker/palaver/pkg/audio"
	"github.com/dlparker/palaver/pkg/logging"
)

// Mode selects a VADFilter parameter profile. LongNote raises
// min_silence_ms from the normal 800ms default to 5000ms so that long,
// deliberately-paused dictation passages aren't chopped into fragments
// (SPEC_FULL.md supplemented feature, ported from the original's
// recorder/vad_recorder_v2_long_note.py).
type Mode int

const (
	ModeNormal Mode = iota
	ModeLongNote
)

// Params are VADFilter's tunable knobs (spec.md §4.3).
type Params struct {
	Threshold    float64
	MinSilenceMS int
	SpeechPadMS  int
	SamplingRate int
}

// DefaultParams returns the normal-mode or long-note-mode defaults.
func DefaultParams(mode Mode) Params {
	p := Params{
		Threshold:    0.5,
		MinSilenceMS: 800,
		SpeechPadMS:  300,
		SamplingRate: SamplingRate,
	}
	if mode == ModeLongNote {
		p.MinSilenceMS = 5000
	}
	return p
}

type filterState int

const (
	stateSilence filterState = iota
	stateSpeech
)

// Filter is C3 VADFilter: reassembles input chunks into fixed 512-sample
// frames (carrying a short remainder over to the next chunk), calls Model
// once per frame, and emits in_speech-tagged chunks plus
// SpeechStart/SpeechStop lifecycle events. SpeechPadMS is only reported
// as PadMS on SpeechStart; no pre-speech audio is prepended.
type Filter struct {
	model  Model
	params Params
	logger logging.Logger

	mu           sync.Mutex
	state        filterState
	pending      []float32 // partial frame accumulator
	elapsed      float64
	lastInSpeech float64 // timestamp of the most recent in-speech frame
}

// NewFilter builds a VADFilter around an external Model with the given
// parameters.
func NewFilter(model Model, params Params, logger logging.Logger) *Filter {
	if logger == nil {
		logger = logging.Default()
	}
	return &Filter{model: model, params: params, logger: logger, state: stateSilence}
}

// Output is what ProcessChunk returns: the input chunk tagged with
// in_speech, plus zero or one lifecycle transition (VAD guarantees at
// most one transition per frame, and a chunk may span at most one
// frame boundary in the common case of blocksize<=FrameSize).
type Output struct {
	Chunk       audio.AudioChunk
	SpeechStart *audio.LifecycleEvent
	SpeechStop  *audio.LifecycleEvent
}

// ProcessChunk reassembles c.Data into 512-sample frames (carrying a
// partial remainder across calls) and interrogates Model once per
// complete frame. SpeechStart is always reported before the chunk that
// triggered it is tagged in_speech; SpeechStop is reported after the
// last in-speech chunk, per spec.md §4.3's ordering guarantee.
func (f *Filter) ProcessChunk(c audio.AudioChunk) ([]Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var outputs []Output
	samples := c.Data
	for len(samples) > 0 {
		need := FrameSize - len(f.pending)
		if need > len(samples) {
			f.pending = append(f.pending, samples...)
			samples = nil
			break
		}
		frame := append(f.pending, samples[:need]...)
		samples = samples[need:]
		f.pending = nil

		trans, err := f.model.Detect(frame, f.params.SamplingRate)
		if err != nil {
			return outputs, err
		}

		tagged := c
		tagged.InSpeech = f.state == stateSpeech

		out := Output{}
		if trans.HasStart && f.state == stateSilence {
			f.state = stateSpeech
			tagged.InSpeech = true
			ev := audio.LifecycleEvent{
				Kind:      audio.LifecycleSpeechStart,
				SourceID:  c.SourceID,
				SilenceMS: f.params.MinSilenceMS,
				Threshold: f.params.Threshold,
				PadMS:     f.params.SpeechPadMS,
				Timestamp: derefOr(trans.Start, c.Timestamp),
			}
			out.SpeechStart = &ev
		} else if trans.HasEnd && f.state == stateSpeech {
			f.state = stateSilence
			ev := audio.LifecycleEvent{
				Kind:                  audio.LifecycleSpeechStop,
				SourceID:              c.SourceID,
				LastInSpeechChunkTime: derefOr(trans.End, c.Timestamp),
				Timestamp:             derefOr(trans.End, c.Timestamp),
			}
			out.SpeechStop = &ev
		}
		if tagged.InSpeech {
			f.lastInSpeech = tagged.Timestamp
		}
		out.Chunk = tagged
		outputs = append(outputs, out)
	}

	if len(outputs) == 0 {
		// Entire chunk absorbed into the partial-frame accumulator; still
		// report it downstream tagged with the filter's current state.
		tagged := c
		tagged.InSpeech = f.state == stateSpeech
		if tagged.InSpeech {
			f.lastInSpeech = tagged.Timestamp
		}
		outputs = append(outputs, Output{Chunk: tagged})
	}

	return outputs, nil
}

// State reports whether the filter currently considers the stream to be
// in speech.
func (f *Filter) State() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state == stateSpeech
}

// Flush closes out an in-progress speech segment when the source stream
// ends while the filter is still in the Speech state (spec.md line 88's
// state table: `Speech | AudioStop | Silence | synthetic SpeechStop`).
// It returns nil if the filter is already in Silence; otherwise it
// transitions to Silence and returns the synthetic SpeechStop, timestamped
// at the last in-speech frame seen rather than at flush time.
func (f *Filter) Flush(sourceID uuid.UUID) *audio.LifecycleEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != stateSpeech {
		return nil
	}
	f.state = stateSilence
	return &audio.LifecycleEvent{
		Kind:                  audio.LifecycleSpeechStop,
		SourceID:              sourceID,
		LastInSpeechChunkTime: f.lastInSpeech,
		Timestamp:             f.lastInSpeech,
	}
}

func derefOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}
