// Package transcriber implements C5: batching in-speech audio into
// bounded-size jobs, running them through an external STT model on a
// single worker, and emitting TextEvents.
package transcriber

import "errors"

// ErrModelLoad is fatal: the STT model failed to load (spec.md §7).
var ErrModelLoad = errors.New("transcriber: model load failed")

// ErrJob marks a single job's decode failure; the transcriber drops the
// TextEvent and continues (spec.md §7: STTJobError).
var ErrJob = errors.New("transcriber: job failed")

// ErrQueueFull is passed to onError when a job is dropped because the job
// queue is full and the transcriber is configured to drop rather than block.
var ErrQueueFull = errors.New("transcriber: job queue full")

// Blank is the sentinel transcribed-text value that causes a job's
// TextEvent to be dropped silently (spec.md §4.5).
const Blank = ""

// Segment is one piece of a transcription result, with its offset
// within the job's audio in milliseconds.
type Segment struct {
	Text     string
	OffsetMS int
}

// Result is what a Model produces for one job.
type Result struct {
	Text     string
	Segments []Segment
}

// Model is the external STT model adapter contract (spec.md §6): an
// opaque callable over a PCM buffer, with an optional initial-prompt
// string (a rolling list of wake words that influences recognition).
type Model interface {
	Transcribe(pcm []float32, sampleRate int, initialPrompt string) (Result, error)
}
