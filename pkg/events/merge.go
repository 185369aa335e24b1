package events

import (
	"sync"

	"github.com/dlparker/palaver/pkg/audio"
	"github.com/dlparker/palaver/pkg/vad"
)

// Merge implements C4 AudioMerge: fans in the raw source stream and the
// VAD-augmented stream, forwarding raw AudioChunks but substituting
// lifecycle events with the VAD-augmented ones, so SpeechStart/SpeechStop
// reach subscribers in a single totally-ordered sequence per subscriber.
// Subscribers pick the pre-VAD (untagged) or post-VAD (in_speech-tagged)
// chunk flavor.
type Merge struct {
	filter *vad.Filter

	mu            sync.RWMutex
	preSubs       []func(audio.AudioChunk)
	postSubs      []func(audio.AudioChunk)
	lifecycleSubs []func(audio.LifecycleEvent)
}

// NewMerge builds a Merge around a VADFilter; filter may be nil if the
// caller only wants raw passthrough (useful in tests).
func NewMerge(filter *vad.Filter) *Merge {
	return &Merge{filter: filter}
}

func (m *Merge) SubscribePreVAD(fn func(audio.AudioChunk)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.preSubs = append(m.preSubs, fn)
}

func (m *Merge) SubscribePostVAD(fn func(audio.AudioChunk)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.postSubs = append(m.postSubs, fn)
}

func (m *Merge) SubscribeLifecycle(fn func(audio.LifecycleEvent)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lifecycleSubs = append(m.lifecycleSubs, fn)
}

// HandleSourceLifecycle passes through Start/Stop/Error events from the
// AudioSource unchanged; VADFilter never touches these, only the
// SpeechStart/SpeechStop pair it derives from chunk content. On a Stop or
// Error it first asks the filter to flush: if the filter was still in the
// Speech state, a synthetic SpeechStop is published ahead of the Stop/Error
// so no subscriber ever observes a SpeechStart left dangling across the
// end of the stream (spec.md's Cancellation guarantee).
func (m *Merge) HandleSourceLifecycle(ev audio.LifecycleEvent) {
	if m.filter != nil && (ev.Kind == audio.LifecycleStop || ev.Kind == audio.LifecycleError) {
		if stop := m.filter.Flush(ev.SourceID); stop != nil {
			m.publishLifecycle(*stop)
		}
	}
	m.publishLifecycle(ev)
}

// HandleRawChunk is the entry point for one AudioChunk off the source.
// It publishes the untagged chunk to pre-VAD subscribers, then (if a
// filter is configured) runs it through VADFilter and publishes the
// tagged chunk plus any SpeechStart/SpeechStop to post-VAD subscribers,
// in the order start-before-chunk, chunk-before-stop.
func (m *Merge) HandleRawChunk(c audio.AudioChunk) error {
	m.publishPre(c)

	if m.filter == nil {
		m.publishPost(c)
		return nil
	}

	outputs, err := m.filter.ProcessChunk(c)
	if err != nil {
		return err
	}
	for _, out := range outputs {
		if out.SpeechStart != nil {
			m.publishLifecycle(*out.SpeechStart)
		}
		m.publishPost(out.Chunk)
		if out.SpeechStop != nil {
			m.publishLifecycle(*out.SpeechStop)
		}
	}
	return nil
}

func (m *Merge) publishPre(c audio.AudioChunk) {
	m.mu.RLock()
	subs := append([]func(audio.AudioChunk){}, m.preSubs...)
	m.mu.RUnlock()
	for _, fn := range subs {
		fn(c)
	}
}

func (m *Merge) publishPost(c audio.AudioChunk) {
	m.mu.RLock()
	subs := append([]func(audio.AudioChunk){}, m.postSubs...)
	m.mu.RUnlock()
	for _, fn := range subs {
		fn(c)
	}
}

func (m *Merge) publishLifecycle(ev audio.LifecycleEvent) {
	m.mu.RLock()
	subs := append([]func(audio.LifecycleEvent){}, m.lifecycleSubs...)
	m.mu.RUnlock()
	for _, fn := range subs {
		fn(ev)
	}
}
