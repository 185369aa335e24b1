package rescan

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dlparker/palaver/pkg/audio"
	"github.com/dlparker/palaver/pkg/events"
)

type stubTranscriber struct {
	mu      sync.Mutex
	chunks  int
	flushed bool
}

func (s *stubTranscriber) HandleChunk(sourceID uuid.UUID, sampleRate int, timestamp float64, data []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks++
}

func (s *stubTranscriber) FlushPending(wait bool, timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushed = true
	return nil
}

type stubDraftMaker struct {
	forceEndCalls int
}

func (s *stubDraftMaker) ForceEnd() { s.forceEndCalls++ }

type stubPoster struct {
	mu   sync.Mutex
	reqs []RevisionRequest
}

func (s *stubPoster) PostRevision(ctx context.Context, req RevisionRequest) (RevisionResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reqs = append(s.reqs, req)
	return RevisionResponse{RevisionID: uuid.New(), OriginalDraftID: req.OriginalDraftID, Stored: true, CreatedAt: time.Now()}, nil
}

// TestRescanRoundTrip mirrors spec.md §8 S6: remote DraftStart/chunks/
// DraftEnd, then a local DraftEnd completes the rescan with
// ParentDraftID set to the remote draft id and a posted revision.
func TestRescanRoundTrip(t *testing.T) {
	tr := &stubTranscriber{}
	dm := &stubDraftMaker{}
	poster := &stubPoster{}

	var forwarded []audio.AudioChunk
	r := New(uuid.New(), func(c audio.AudioChunk) { forwarded = append(forwarded, c) }, nil, tr, dm, poster, nil)

	remoteID := uuid.New()
	r.OnRemoteDraftStart(events.Draft{DraftID: remoteID, AudioStartTime: 0})

	r.OnRemoteAudioChunk(audio.AudioChunk{Timestamp: 0.1, SampleRate: 16000, Data: []float32{0.1}})
	r.OnRemoteAudioChunk(audio.AudioChunk{Timestamp: 0.2, SampleRate: 16000, Data: []float32{0.2}})

	if len(forwarded) != 2 {
		t.Fatalf("expected remote chunks to be forwarded to the local pipeline, got %d", len(forwarded))
	}
	if r.State() != Collecting {
		t.Fatalf("expected Collecting state, got %v", r.State())
	}

	r.OnRemoteDraftEnd(context.Background(), events.Draft{DraftID: remoteID, AudioEndTime: 0.2})
	if r.State() != Rescanning {
		t.Fatalf("expected Rescanning state after remote DraftEnd, got %v", r.State())
	}
	if tr.chunks == 0 || !tr.flushed {
		t.Fatalf("expected the rescanned window to be resubmitted and flushed")
	}

	local := events.Draft{DraftID: uuid.New(), FullText: "alpha (rescanned)"}
	resp, err := r.OnLocalDraftEnd(context.Background(), local)
	if err != nil {
		t.Fatalf("unexpected error posting revision: %v", err)
	}
	if !resp.Stored || resp.OriginalDraftID != remoteID {
		t.Fatalf("expected a stored revision referencing the remote draft id, got %+v", resp)
	}
	if r.State() != Idle {
		t.Errorf("expected Idle after the rescan completes, got %v", r.State())
	}

	if len(poster.reqs) != 1 || poster.reqs[0].OriginalDraftID != remoteID {
		t.Fatalf("expected exactly 1 posted revision referencing the remote draft id")
	}
	if poster.reqs[0].RevisedDraft.ParentDraftID == nil || *poster.reqs[0].RevisedDraft.ParentDraftID != remoteID {
		t.Errorf("expected the posted revision's ParentDraftID to reference the remote draft")
	}
}

func TestSecondRemoteDraftStartWhileCollectingIsRejected(t *testing.T) {
	r := New(uuid.New(), nil, nil, &stubTranscriber{}, &stubDraftMaker{}, &stubPoster{}, nil)

	first := uuid.New()
	r.OnRemoteDraftStart(events.Draft{DraftID: first})
	r.OnRemoteDraftStart(events.Draft{DraftID: uuid.New()})

	if r.State() != Collecting {
		t.Fatalf("expected to remain Collecting, got %v", r.State())
	}
}

func TestBlocksLocalSpeechStopDuringRescanAndReleasesAfter(t *testing.T) {
	tr := &stubTranscriber{}
	dm := &stubDraftMaker{}
	poster := &stubPoster{}

	var released []audio.LifecycleEvent
	r := New(uuid.New(), nil, func(ev audio.LifecycleEvent) { released = append(released, ev) }, tr, dm, poster, nil)

	remoteID := uuid.New()
	r.OnRemoteDraftStart(events.Draft{DraftID: remoteID})
	r.OnRemoteDraftEnd(context.Background(), events.Draft{DraftID: remoteID})

	if !r.BlocksLocalSpeechStop() {
		t.Fatalf("expected local SpeechStop to be blocked while rescanning")
	}
	held := audio.LifecycleEvent{Kind: audio.LifecycleSpeechStop}
	r.HoldLocalSpeechStop(held)

	if _, err := r.OnLocalDraftEnd(context.Background(), events.Draft{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(released) != 1 {
		t.Fatalf("expected the held SpeechStop to be released once the rescan completes, got %d", len(released))
	}
}

func TestSetForceEndTimeoutOverridesDefault(t *testing.T) {
	r := New(uuid.New(), nil, nil, &stubTranscriber{}, &stubDraftMaker{}, &stubPoster{}, nil)
	r.SetForceEndTimeout(20 * time.Millisecond)
	if r.forceEndTimeout != 20*time.Millisecond {
		t.Fatalf("expected forceEndTimeout to be overridden, got %v", r.forceEndTimeout)
	}
}

func TestSetFlushTimeoutOverridesDefault(t *testing.T) {
	r := New(uuid.New(), nil, nil, &stubTranscriber{}, &stubDraftMaker{}, &stubPoster{}, nil)
	r.SetFlushTimeout(5 * time.Millisecond)
	if r.flushTimeout != 5*time.Millisecond {
		t.Fatalf("expected flushTimeout to be overridden, got %v", r.flushTimeout)
	}
}

func TestForceEndTimeoutFiresWhenNoLocalDraftEndArrives(t *testing.T) {
	tr := &stubTranscriber{}
	dm := &stubDraftMaker{}
	poster := &stubPoster{}
	r := New(uuid.New(), nil, nil, tr, dm, poster, nil)
	r.SetForceEndTimeout(20 * time.Millisecond)

	remoteID := uuid.New()
	r.OnRemoteDraftStart(events.Draft{DraftID: remoteID})
	r.OnRemoteDraftEnd(context.Background(), events.Draft{DraftID: remoteID})

	time.Sleep(100 * time.Millisecond)
	if dm.forceEndCalls != 1 {
		t.Fatalf("expected ForceEnd to be called once after the wait times out, got %d", dm.forceEndCalls)
	}
}
