// Package monitor implements C8 StreamMonitor: a derived
// liveness/completeness tracker subscribed to the post-merge event bus,
// used to decide end-of-input (spec.md §4.8).
package monitor

import "time"

// TextTolerance is the maximum gap between the last in-speech audio
// chunk and the last emitted text before CheckDone treats the stream
// as caught up (spec.md §4.8: "within a small tolerance (<= 0.5s)").
const TextTolerance = 500 * time.Millisecond

// Monitor tracks the most recent in-speech AudioChunk, AudioStop,
// TextEvent, and StartBlock/StopBlock seen on the bus, and derives
// end-of-input from them. All timestamps are audio-clock seconds;
// TextTolerance is compared against the audio-clock gap between the
// last in-speech chunk and the last TextEvent's end time.
type Monitor struct {
	audioStopped bool
	blockOpen    bool

	lastChunkAudioTime float64
	haveChunk          bool

	lastTextAudioTime float64
	haveText          bool

	pendingTranscriptions int

	done bool
}

// New builds an empty Monitor.
func New() *Monitor {
	return &Monitor{}
}

// OnAudioStop records that the audio source has signaled end-of-stream.
func (m *Monitor) OnAudioStop() {
	m.audioStopped = true
	m.refresh()
}

// OnSpeechChunk records the audio-clock time of the latest in-speech
// chunk (i.e. one the VAD has tagged as speech, per spec.md's "last
// in-speech chunk").
func (m *Monitor) OnSpeechChunk(audioTime float64) {
	m.lastChunkAudioTime = audioTime
	m.haveChunk = true
	m.refresh()
}

// OnTextEvent records the audio-clock end time of the latest emitted
// TextEvent.
func (m *Monitor) OnTextEvent(audioEndTime float64) {
	m.lastTextAudioTime = audioEndTime
	m.haveText = true
	m.refresh()
}

// OnTranscriptionSubmitted/OnTranscriptionCompleted track whether an
// STT job is still in flight, since CheckDone requires none pending.
func (m *Monitor) OnTranscriptionSubmitted() {
	m.pendingTranscriptions++
}

func (m *Monitor) OnTranscriptionCompleted() {
	if m.pendingTranscriptions > 0 {
		m.pendingTranscriptions--
	}
	m.refresh()
}

// OnStartBlock/OnStopBlock track whether a text block is currently open.
func (m *Monitor) OnStartBlock() {
	m.blockOpen = true
	m.refresh()
}

func (m *Monitor) OnStopBlock() {
	m.blockOpen = false
	m.refresh()
}

// CheckDone reports whether the stream is complete: AudioStop has been
// received, and either no block is open, or the last in-speech chunk
// is within TextTolerance of the last emitted text with nothing still
// transcribing (spec.md §4.8).
func (m *Monitor) CheckDone() bool {
	if !m.audioStopped {
		return false
	}
	if !m.blockOpen {
		return true
	}
	if m.pendingTranscriptions > 0 {
		return false
	}
	if !m.haveChunk || !m.haveText {
		return false
	}
	gap := m.lastChunkAudioTime - m.lastTextAudioTime
	if gap < 0 {
		gap = -gap
	}
	return gap <= TextTolerance.Seconds()
}

// refresh latches `done` once CheckDone goes true, so IsAllDone never
// oscillates back to false even if later state (e.g. a stray chunk
// after AudioStop) would otherwise flip CheckDone's raw computation.
func (m *Monitor) refresh() {
	if !m.done && m.CheckDone() {
		m.done = true
	}
}

// IsAllDone reports the latched completion state: once true, it stays
// true (spec.md §4.8: "never oscillates once true").
func (m *Monitor) IsAllDone() bool {
	return m.done
}
