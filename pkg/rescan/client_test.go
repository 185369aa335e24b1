package rescan

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/dlparker/palaver/pkg/audio"
	"github.com/dlparker/palaver/pkg/events"
	"github.com/dlparker/palaver/pkg/router"
)

// dispatch is exercised directly; Run itself needs a live socket and is
// left to a real two-process deployment to exercise end to end.

func TestDispatchRoutesDraftStartToRescanner(t *testing.T) {
	var forwarded []audio.AudioChunk
	r := New(uuid.New(), func(c audio.AudioChunk) { forwarded = append(forwarded, c) }, nil, &stubTranscriber{}, &stubDraftMaker{}, &stubPoster{}, nil)
	c := NewRemoteClient("ws://example.invalid/ws", r, nil)

	remoteID := uuid.New()
	c.dispatch(context.Background(), map[string]interface{}{
		"event_class": router.ClassDraftStart,
		"DraftID":     remoteID,
	})

	if r.State() != Collecting {
		t.Fatalf("expected DraftStart frame to move the rescanner to Collecting, got %v", r.State())
	}
}

func TestDispatchRoutesAudioChunkToRescanner(t *testing.T) {
	var forwarded []audio.AudioChunk
	r := New(uuid.New(), func(c audio.AudioChunk) { forwarded = append(forwarded, c) }, nil, &stubTranscriber{}, &stubDraftMaker{}, &stubPoster{}, nil)
	c := NewRemoteClient("ws://example.invalid/ws", r, nil)

	remoteID := uuid.New()
	r.OnRemoteDraftStart(events.Draft{DraftID: remoteID})

	c.dispatch(context.Background(), map[string]interface{}{
		"event_class": router.ClassAudioChunk,
		"Timestamp":   0.5,
		"SampleRate":  16000,
		"Data":        []float32{0.1, 0.2},
	})

	if len(forwarded) != 1 {
		t.Fatalf("expected the AudioChunk frame to be forwarded to the local pipeline, got %d", len(forwarded))
	}
}

func TestDispatchRoutesDraftEndToRescanner(t *testing.T) {
	tr := &stubTranscriber{}
	r := New(uuid.New(), func(c audio.AudioChunk) {}, nil, tr, &stubDraftMaker{}, &stubPoster{}, nil)
	c := NewRemoteClient("ws://example.invalid/ws", r, nil)

	remoteID := uuid.New()
	r.OnRemoteDraftStart(events.Draft{DraftID: remoteID})

	c.dispatch(context.Background(), map[string]interface{}{
		"event_class":  router.ClassDraftEnd,
		"DraftID":      remoteID,
		"AudioEndTime": 1.0,
	})

	if r.State() != Rescanning {
		t.Fatalf("expected DraftEnd frame to move the rescanner to Rescanning, got %v", r.State())
	}
}

func TestDispatchIgnoresUnknownEventClass(t *testing.T) {
	r := New(uuid.New(), func(c audio.AudioChunk) {}, nil, &stubTranscriber{}, &stubDraftMaker{}, &stubPoster{}, nil)
	c := NewRemoteClient("ws://example.invalid/ws", r, nil)

	c.dispatch(context.Background(), map[string]interface{}{"event_class": router.ClassText, "Text": "hello"})

	if r.State() != Idle {
		t.Fatalf("expected an unrecognized class to be ignored, got state %v", r.State())
	}
}
