// Package audio defines the audio data model (AudioChunk, lifecycle
// events, ring buffers) and the two AudioSource implementations (device,
// file), plus the DownSampler.
package audio

import (
	"github.com/google/uuid"
)

// SampleType names the numeric representation of AudioChunk.Data. Only
// Float32 is produced by this package; the type exists so future sources
// (e.g. a hardware source emitting int16 natively) have somewhere to say
// so without changing AudioChunk's shape.
type SampleType int

const (
	Float32 SampleType = iota
)

// Channels describes either a simple channel count or an asymmetric
// input/output pair, matching spec.md's "scalar or an input/output pair."
// ScalarChannels sets Out equal to In; callers should treat Out==0 as
// "same as In" unless they specifically care about playback channels.
type Channels struct {
	In  int
	Out int
}

// Mono reports whether the input side is single-channel.
func (c Channels) Mono() bool { return c.In == 1 }

// ScalarChannels builds a Channels value for a simple (non-duplex) source.
func ScalarChannels(n int) Channels { return Channels{In: n, Out: n} }

// AudioChunk is an immutable buffer of normalized float32 PCM samples.
// Its lifetime must cover every subscriber's processing; callers that
// retain a chunk past the call that delivered it must call Clone.
type AudioChunk struct {
	SourceID        uuid.UUID
	StreamStartTime float64
	Timestamp       float64 // wall time of first sample, seconds
	Duration        float64
	SampleRate      int
	Channels        Channels
	Blocksize       int
	SampleType      SampleType
	InSpeech        bool
	Data            []float32 // non-owning view unless Clone'd
}

// Clone returns a chunk with its own copy of Data, safe to retain past
// the lifetime of the original buffer (e.g. to push into a ring buffer).
func (c AudioChunk) Clone() AudioChunk {
	cp := make([]float32, len(c.Data))
	copy(cp, c.Data)
	c.Data = cp
	return c
}

// WithInSpeech returns a copy of the chunk with InSpeech set, leaving the
// underlying sample data shared (non-owning) with the original.
func (c AudioChunk) WithInSpeech(inSpeech bool) AudioChunk {
	c.InSpeech = inSpeech
	return c
}

// StopReason names why a source stopped producing chunks.
type StopReason int

const (
	StopNormal StopReason = iota
	StopError
	StopEOF
)

func (r StopReason) String() string {
	switch r {
	case StopNormal:
		return "normal"
	case StopError:
		return "error"
	case StopEOF:
		return "eof"
	default:
		return "unknown"
	}
}

// LifecycleKind tags the variant carried by a LifecycleEvent.
type LifecycleKind int

const (
	LifecycleStart LifecycleKind = iota
	LifecycleStop
	LifecycleError
	LifecycleSpeechStart
	LifecycleSpeechStop
)

// LifecycleEvent is the Go rendering of spec.md's AudioLifecycleEvent sum
// type: Start/Stop/Error/SpeechStart/SpeechStop, collapsed into one struct
// tagged by Kind with only the fields relevant to that kind populated.
type LifecycleEvent struct {
	Kind     LifecycleKind
	SourceID uuid.UUID

	// Start
	SampleRate int
	Channels   Channels

	// Stop
	Reason StopReason

	// Error
	Message string

	// SpeechStart
	SilenceMS int
	Threshold float64
	PadMS     int

	// SpeechStop
	LastInSpeechChunkTime float64

	// Timestamp is set on every variant for ordering against AudioChunks.
	Timestamp float64
}
