// Package router implements C10 EventRouter: typed publish/subscribe
// fan-out of pipeline events to remote WebSocket-like consumers, with
// pre-speech buffering and author-URI stamping (spec.md §4.10).
package router

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/dlparker/palaver/pkg/audio"
	"github.com/dlparker/palaver/pkg/events"
	"github.com/dlparker/palaver/pkg/logging"
)

// Event class tags, matching spec.md §6's "Remote event channel"
// event_class enumeration exactly.
const (
	ClassAudioChunk  = "AudioChunkEvent"
	ClassText        = "TextEvent"
	ClassDraftStart  = "DraftStartEvent"
	ClassDraftEnd    = "DraftEndEvent"
	ClassDraftRescan = "DraftRescanEvent"
	ClassSpeechStart = "AUDIO_SPEECH_START"
	ClassSpeechStop  = "AUDIO_SPEECH_STOP"
	subscribeAll     = "all"
)

// Sender abstracts one remote consumer's transport, letting Router stay
// agnostic of the concrete WebSocket library; see WSSender for the
// coder/websocket-backed production implementation.
type Sender interface {
	Send(ctx context.Context, msg map[string]interface{}) error
	Close() error
}

type client struct {
	id     string
	subs   map[string]bool
	sender Sender
}

func (c *client) subscribed(class string) bool {
	return c.subs[subscribeAll] || c.subs[class]
}

// Router is C10. PreBuffer is nil (disabled) unless built with a
// positive preBufferSeconds.
type Router struct {
	mu         sync.Mutex
	clients    map[string]*client
	preBuffer  *audio.TimeRing
	authorBase string
	logger     logging.Logger
}

// New builds a Router. preBufferSeconds <= 0 disables pre-buffering
// (spec.md §4.10: "default disabled, typical 1.0s"). authorBase, when
// non-empty, is stamped as author_uri on every outgoing event;
// otherwise recipients see author_uri = null.
func New(preBufferSeconds float64, authorBase string, logger logging.Logger) *Router {
	if logger == nil {
		logger = logging.Default()
	}
	r := &Router{
		clients:    make(map[string]*client),
		authorBase: authorBase,
		logger:     logger,
	}
	if preBufferSeconds > 0 {
		r.preBuffer = audio.NewTimeRing(preBufferSeconds)
	}
	return r
}

// AddClient registers a remote consumer under id, subscribed to the
// given event classes (or the sentinel "all").
func (r *Router) AddClient(id string, subscribe []string, sender Sender) {
	subs := make(map[string]bool, len(subscribe))
	for _, s := range subscribe {
		subs[s] = true
	}
	r.mu.Lock()
	r.clients[id] = &client{id: id, subs: subs, sender: sender}
	r.mu.Unlock()
}

// RemoveClient unregisters id, closing its sender.
func (r *Router) RemoveClient(id string) {
	r.mu.Lock()
	c, ok := r.clients[id]
	delete(r.clients, id)
	r.mu.Unlock()
	if ok {
		c.sender.Close()
	}
}

// ClientCount reports the number of currently-registered clients.
func (r *Router) ClientCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// PublishAudioChunk delivers chunk to AudioChunk subscribers only when
// chunk.InSpeech is true (spec.md §4.10); non-speech chunks are parked
// in the pre-buffer ring (if enabled) for a later SpeechStart flush.
func (r *Router) PublishAudioChunk(ctx context.Context, chunk audio.AudioChunk) {
	if !chunk.InSpeech {
		if r.preBuffer != nil {
			r.preBuffer.Push(chunk)
		}
		return
	}
	r.deliver(ctx, ClassAudioChunk, chunk)
}

// PublishLifecycle forwards SpeechStart/SpeechStop to subscribers.
// SpeechStart first flushes any buffered pre-speech chunks, in order,
// so a subscriber sees exactly the leading silence once per segment
// before the SpeechStart marker itself (spec.md §8 S4).
func (r *Router) PublishLifecycle(ctx context.Context, ev audio.LifecycleEvent) {
	switch ev.Kind {
	case audio.LifecycleSpeechStart:
		if r.preBuffer != nil {
			for _, c := range r.preBuffer.GetAll(true) {
				r.deliver(ctx, ClassAudioChunk, c)
			}
		}
		r.deliver(ctx, ClassSpeechStart, ev)
	case audio.LifecycleSpeechStop:
		r.deliver(ctx, ClassSpeechStop, ev)
	default:
		// Start/Stop/Error are local pipeline lifecycle only; spec.md §6's
		// remote event_class list doesn't include them.
	}
}

// PublishText delivers a TextEvent to TextEvent subscribers.
func (r *Router) PublishText(ctx context.Context, ev events.TextEvent) {
	r.deliver(ctx, ClassText, ev)
}

// PublishDraft delivers a DraftEvent under the class matching its Kind.
func (r *Router) PublishDraft(ctx context.Context, de events.DraftEvent) {
	switch de.Kind {
	case events.DraftStart:
		r.deliver(ctx, ClassDraftStart, de.Draft)
	case events.DraftEnd:
		r.deliver(ctx, ClassDraftEnd, de.Draft)
	case events.DraftRescan:
		r.deliver(ctx, ClassDraftRescan, de)
	}
}

// deliver fans payload out, as event class, to every subscribed client,
// removing any whose send fails (spec.md §4.10: "dead clients... are
// removed silently").
func (r *Router) deliver(ctx context.Context, class string, payload interface{}) {
	msg, err := r.buildMessage(class, payload)
	if err != nil {
		r.logger.Error("router: failed to encode event", "class", class, "err", err)
		return
	}

	r.mu.Lock()
	targets := make([]*client, 0, len(r.clients))
	for _, c := range r.clients {
		if c.subscribed(class) {
			targets = append(targets, c)
		}
	}
	r.mu.Unlock()

	var dead []string
	for _, c := range targets {
		if err := c.sender.Send(ctx, msg); err != nil {
			r.logger.Warn("router: dropping dead client", "client", c.id, "err", err)
			dead = append(dead, c.id)
		}
	}
	for _, id := range dead {
		r.RemoveClient(id)
	}
}

// buildMessage flattens payload's JSON fields into one object alongside
// event_class/event_type/author_uri, matching spec.md §6's wire shape.
func (r *Router) buildMessage(class string, payload interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	msg := make(map[string]interface{})
	if len(raw) > 0 && raw[0] == '{' {
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
	} else {
		msg["payload"] = json.RawMessage(raw)
	}
	msg["event_class"] = class
	msg["event_type"] = class
	if r.authorBase != "" {
		msg["author_uri"] = r.authorBase + "/" + class
	} else {
		msg["author_uri"] = nil
	}
	return msg, nil
}
