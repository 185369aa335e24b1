package audio

import "errors"

// ErrDriver wraps a failure surfaced by the platform audio driver
// (spec.md §7: DriverError).
var ErrDriver = errors.New("audio: driver error")

// ErrInvalidFormat is raised when a source or the DownSampler encounters
// sr_in==0 or ch_in==0 (spec.md §4.2).
var ErrInvalidFormat = errors.New("audio: invalid format")

// ChunkCallback receives one AudioChunk. It must not retain Data beyond
// the call without cloning it first.
type ChunkCallback func(AudioChunk)

// LifecycleCallback receives lifecycle transitions (start/stop/error;
// VADFilter adds SpeechStart/SpeechStop further downstream).
type LifecycleCallback func(LifecycleEvent)

// Source is the C1 AudioSource contract: start producing chunks at a
// fixed cadence until Stop is called, or until exhausted (file sources).
type Source interface {
	// Start begins producing chunks. It returns once the source has been
	// initialized; chunk/lifecycle delivery happens asynchronously via
	// the callbacks.
	Start(onChunk ChunkCallback, onLifecycle LifecycleCallback) error

	// Stop guarantees neither callback is invoked after it returns.
	Stop() error

	IsStreaming() bool
	IsPaused() bool
	Pause()
	Resume()
}
