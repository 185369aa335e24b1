// Package vad implements C3 VADFilter: reassembly of arbitrary-size
// chunks into fixed 512-sample frames, interrogation of an external VAD
// model once per frame, and emission of SpeechStart/SpeechStop lifecycle
// markers with configurable padding.
package vad

import "errors"

// ErrModel wraps a failure returned by the external VAD model (spec.md
// §7: VADModelError).
var ErrModel = errors.New("vad: model error")

// FrameSize is the fixed frame length the external VAD model expects,
// per spec.md §4.3.
const FrameSize = 512

// SamplingRate is the rate VADFilter operates at; chunks must already be
// downsampled to this rate before reaching it (spec.md §4.2/§4.3).
const SamplingRate = 16000

// Transition is what a Model call returns for one frame: at most one of
// Start/End is present, each an offset in seconds relative to the
// stream, matching spec.md §6's opaque VAD model contract.
type Transition struct {
	Start    *float64
	End      *float64
	HasStart bool
	HasEnd   bool
}

// Model is the external VAD model adapter contract (spec.md §6):
// vad(samples: 512 float32, sample_rate=16000) -> maybe {start, end}.
type Model interface {
	Detect(frame []float32, sampleRate int) (Transition, error)
}
