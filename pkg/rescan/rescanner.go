// Package rescan implements C11 Rescanner: it acts as a remote
// AudioSource for a rescanning pipeline, replaying a remote draft's
// audio window through the local Transcriber/DraftMaker and posting
// the result back as a revision of the original draft (spec.md §4.11).
package rescan

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dlparker/palaver/pkg/audio"
	"github.com/dlparker/palaver/pkg/events"
	"github.com/dlparker/palaver/pkg/logging"
)

// State is the Rescanner's position in spec.md §4.11's state table.
type State int

const (
	Idle State = iota
	Collecting
	Rescanning
)

func (s State) String() string {
	switch s {
	case Collecting:
		return "collecting"
	case Rescanning:
		return "rescanning"
	default:
		return "idle"
	}
}

// DefaultForceEndTimeout is how long the Rescanner waits for the local
// pipeline to produce its own DraftEnd before synthesizing one
// (spec.md §5: "Rescan local-DraftEnd wait: 15 s").
const DefaultForceEndTimeout = 15 * time.Second

// LocalTranscriber is the subset of *transcriber.Transcriber the
// Rescanner drives directly.
type LocalTranscriber interface {
	HandleChunk(sourceID uuid.UUID, sampleRate int, timestamp float64, data []float32)
	FlushPending(wait bool, timeout time.Duration) error
}

// LocalDraftMaker is the subset of *draft.DraftMaker the Rescanner
// drives directly.
type LocalDraftMaker interface {
	ForceEnd()
}

// RevisionRequest/RevisionResponse mirror spec.md §6's
// POST /api/revisions contract.
type RevisionRequest struct {
	OriginalDraftID uuid.UUID
	RevisedDraft    events.Draft
	Metadata        map[string]interface{}
}

type RevisionResponse struct {
	RevisionID      uuid.UUID
	OriginalDraftID uuid.UUID
	Stored          bool
	CreatedAt       time.Time
}

// Poster submits a completed rescan to the revision endpoint.
type Poster interface {
	PostRevision(ctx context.Context, req RevisionRequest) (RevisionResponse, error)
}

// Rescanner is C11.
type Rescanner struct {
	sourceID uuid.UUID

	onChunk     audio.ChunkCallback
	onLifecycle audio.LifecycleCallback

	transcriber LocalTranscriber
	draftMaker  LocalDraftMaker
	poster      Poster
	logger      logging.Logger

	flushTimeout    time.Duration
	forceEndTimeout time.Duration

	mu              sync.Mutex
	state           State
	remoteDraftID   uuid.UUID
	audioStartTime  float64
	audioEndTime    float64
	preDraftRing    *audio.TimeRing
	heldSpeechStop  *audio.LifecycleEvent
	stopWaitCh      chan struct{}
}

// New builds a Rescanner. onChunk/onLifecycle are how remote
// AudioChunks and lifecycle events are re-emitted into the local
// pipeline, the same callback shapes C1 AudioSources use.
func New(sourceID uuid.UUID, onChunk audio.ChunkCallback, onLifecycle audio.LifecycleCallback, transcriber LocalTranscriber, draftMaker LocalDraftMaker, poster Poster, logger logging.Logger) *Rescanner {
	if logger == nil {
		logger = logging.Default()
	}
	return &Rescanner{
		sourceID:        sourceID,
		onChunk:         onChunk,
		onLifecycle:     onLifecycle,
		transcriber:     transcriber,
		draftMaker:      draftMaker,
		poster:          poster,
		logger:          logger,
		flushTimeout:    10 * time.Second,
		forceEndTimeout: DefaultForceEndTimeout,
		preDraftRing:    audio.NewTimeRing(30),
		state:           Idle,
	}
}

// SetForceEndTimeout overrides the default wait for a local DraftEnd
// before one is synthesized (spec.md §4.11's DefaultForceEndTimeout).
func (r *Rescanner) SetForceEndTimeout(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.forceEndTimeout = d
}

// SetFlushTimeout overrides the default wait for the local transcriber
// to flush pending audio after a remote DraftEnd.
func (r *Rescanner) SetFlushTimeout(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushTimeout = d
}

// State reports the current state machine position.
func (r *Rescanner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// OnRemoteDraftStart handles a remote DraftStart. A second DraftStart
// while already Collecting is rejected and logged (spec.md §4.11's
// documented "prototype limitation").
func (r *Rescanner) OnRemoteDraftStart(d events.Draft) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == Collecting {
		r.logger.Warn("rescan: second remote DraftStart while collecting, rejecting", "draft_id", d.DraftID)
		return
	}
	r.remoteDraftID = d.DraftID
	r.audioStartTime = d.AudioStartTime
	r.preDraftRing.Clear()
	r.state = Collecting
}

// OnRemoteAudioChunk buffers a remote chunk in the pre-draft ring and
// re-emits it to the local pipeline as if this Rescanner were an
// ordinary AudioSource.
func (r *Rescanner) OnRemoteAudioChunk(c audio.AudioChunk) {
	r.mu.Lock()
	collecting := r.state == Collecting
	if collecting {
		r.preDraftRing.Push(c)
	}
	r.mu.Unlock()

	if !collecting {
		return
	}
	local := c
	local.SourceID = r.sourceID
	if r.onChunk != nil {
		r.onChunk(local)
	}
}

// OnRemoteDraftEnd flushes pending STT, resubmits the draft's exact
// audio window to the local Transcriber, and starts waiting for the
// local pipeline's own DraftEnd.
func (r *Rescanner) OnRemoteDraftEnd(ctx context.Context, d events.Draft) {
	r.mu.Lock()
	if r.state != Collecting {
		r.mu.Unlock()
		r.logger.Warn("rescan: remote DraftEnd received outside Collecting", "state", r.state)
		return
	}
	r.audioEndTime = d.AudioEndTime
	chunks := r.preDraftRing.GetRange(r.audioStartTime, r.audioEndTime)
	r.state = Rescanning
	stopCh := make(chan struct{})
	r.stopWaitCh = stopCh
	r.mu.Unlock()

	if r.transcriber != nil {
		for _, c := range chunks {
			r.transcriber.HandleChunk(r.sourceID, c.SampleRate, c.Timestamp, c.Data)
		}
		if err := r.transcriber.FlushPending(true, r.flushTimeout); err != nil {
			r.logger.Error("rescan: flush pending STT failed", "err", err)
		}
	}

	go r.waitForLocalEnd(stopCh)
}

func (r *Rescanner) waitForLocalEnd(stopCh chan struct{}) {
	select {
	case <-stopCh:
		return
	case <-time.After(r.forceEndTimeout):
	}

	r.mu.Lock()
	stillWaiting := r.state == Rescanning && r.stopWaitCh == stopCh
	r.mu.Unlock()
	if stillWaiting && r.draftMaker != nil {
		r.logger.Warn("rescan: local DraftEnd timed out, forcing one")
		r.draftMaker.ForceEnd()
	}
}

// OnLocalDraftEnd completes a rescan: it stamps ParentDraftID, posts
// the revision, releases any held SpeechStop, and returns to Idle.
func (r *Rescanner) OnLocalDraftEnd(ctx context.Context, local events.Draft) (RevisionResponse, error) {
	r.mu.Lock()
	if r.state != Rescanning {
		r.mu.Unlock()
		return RevisionResponse{}, nil
	}
	if r.stopWaitCh != nil {
		close(r.stopWaitCh)
		r.stopWaitCh = nil
	}
	originalID := r.remoteDraftID
	r.state = Idle
	held := r.heldSpeechStop
	r.heldSpeechStop = nil
	r.mu.Unlock()

	local.ParentDraftID = &originalID
	resp, err := r.poster.PostRevision(ctx, RevisionRequest{OriginalDraftID: originalID, RevisedDraft: local})
	if err != nil {
		r.logger.Error("rescan: failed to post revision", "err", err)
	}

	if held != nil && r.onLifecycle != nil {
		r.onLifecycle(*held)
	}
	return resp, err
}

// BlocksLocalSpeechStop reports whether a local SpeechStop should be
// held rather than forwarded, because a rescan is in progress
// (spec.md §4.11: "blocks the local SpeechStop event... to avoid
// prematurely flushing the STT buffer mid-segment").
func (r *Rescanner) BlocksLocalSpeechStop() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == Rescanning
}

// HoldLocalSpeechStop records ev to be released once the in-progress
// rescan completes, instead of forwarding it immediately. Callers
// should check BlocksLocalSpeechStop first and call this only when it
// reports true.
func (r *Rescanner) HoldLocalSpeechStop(ev audio.LifecycleEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.heldSpeechStop = &ev
}
