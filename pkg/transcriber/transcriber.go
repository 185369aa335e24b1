package transcriber

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dlparker/palaver/pkg/events"
	"github.com/dlparker/palaver/pkg/logging"
)

// DefaultBufferCapacity is ~1.9s of 16kHz mono audio, spec.md §4.5's
// "default ~30000 samples".
const DefaultBufferCapacity = 30000

// shutdownJobID is the sentinel that tells the worker to exit, spec.md
// §4.5's "job_id = -1".
const shutdownJobID = -1

type job struct {
	id            int64
	sourceID      uuid.UUID
	startTime     float64
	endTime       float64
	pcm           []float32
	sampleRate    int
	initialPrompt string
}

// Transcriber is C5. It accumulates in-speech samples, submits jobs to a
// single worker running an external STT Model, and emits TextEvents via
// onText. onError receives errors for the supervisor (§4.9) to act on,
// including per-job decode failures (wrapped in ErrJob), which are also
// logged; the worker then continues with the next job.
type Transcriber struct {
	model      Model
	bufCap     int
	dropOnFull bool
	logger     logging.Logger

	onText  func(events.TextEvent)
	onError func(error)

	mu            sync.Mutex
	buffer        []float32
	bufSourceID   uuid.UUID
	bufStartTime  float64
	bufEndTime    float64
	sampleRate    int
	initialPrompt string

	jobs     chan job
	nextJob  int64
	pending  int64
	wg       sync.WaitGroup
	lastDone chan struct{}
}

// New builds a Transcriber. queueDepth is the bounded job queue size
// (spec.md §4.5 default 1); dropOnFull selects the backpressure policy
// (block vs. drop-with-warning).
func New(model Model, queueDepth, bufCap int, dropOnFull bool, onText func(events.TextEvent), onError func(error), logger logging.Logger) *Transcriber {
	if logger == nil {
		logger = logging.Default()
	}
	if bufCap <= 0 {
		bufCap = DefaultBufferCapacity
	}
	if queueDepth <= 0 {
		queueDepth = 1
	}
	return &Transcriber{
		model:      model,
		bufCap:     bufCap,
		dropOnFull: dropOnFull,
		logger:     logger,
		onText:     onText,
		onError:    onError,
		jobs:       make(chan job, queueDepth),
		lastDone:   make(chan struct{}),
	}
}

// Start launches the single worker goroutine. It must be called once
// before any chunks are submitted.
func (t *Transcriber) Start() {
	t.wg.Add(1)
	go t.run()
}

func (t *Transcriber) run() {
	defer t.wg.Done()
	for j := range t.jobs {
		if j.id == shutdownJobID {
			return
		}
		t.process(j)
		atomic.AddInt64(&t.pending, -1)
	}
}

func (t *Transcriber) process(j job) {
	result, err := t.model.Transcribe(j.pcm, j.sampleRate, j.initialPrompt)
	if err != nil {
		t.logger.Warn("transcriber: job decode failed", "job_id", j.id, "error", err)
		if t.onError != nil {
			t.onError(fmt.Errorf("%w: %v", ErrJob, err))
		}
		return
	}
	if result.Text == Blank {
		return
	}

	segs := make([]events.TextSegment, 0, len(result.Segments))
	for _, s := range result.Segments {
		segs = append(segs, events.TextSegment{Text: s.Text, OffsetMS: s.OffsetMS})
	}
	if t.onText != nil {
		t.onText(events.TextEvent{
			EventID:        uuid.New(),
			AudioSourceID:  j.sourceID,
			AudioStartTime: j.startTime,
			AudioEndTime:   j.endTime,
			Text:           result.Text,
			Segments:       segs,
		})
	}
}

// SetInitialPrompt updates the rolling wake-word prompt carried on
// subsequently submitted jobs.
func (t *Transcriber) SetInitialPrompt(prompt string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.initialPrompt = prompt
}

// HandleChunk accumulates an in-speech chunk's samples. It submits a job
// once the buffer reaches capacity.
func (t *Transcriber) HandleChunk(sourceID uuid.UUID, sampleRate int, timestamp float64, data []float32) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.buffer) == 0 {
		t.bufSourceID = sourceID
		t.bufStartTime = timestamp
		t.sampleRate = sampleRate
	}
	t.buffer = append(t.buffer, data...)
	t.bufEndTime = timestamp

	if len(t.buffer) >= t.bufCap {
		t.submitLocked()
	}
}

// HandleSpeechStop submits whatever is buffered, if any, per spec.md
// §4.5's "a SpeechStop arrives and the buffer is non-empty."
func (t *Transcriber) HandleSpeechStop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.buffer) > 0 {
		t.submitLocked()
	}
}

// HandleAudioStop flushes any remainder, matching HandleSpeechStop.
func (t *Transcriber) HandleAudioStop() {
	t.HandleSpeechStop()
}

// FlushPending submits any buffered remainder, and optionally blocks
// until every submitted job (including this one) has completed, up to
// timeout. It returns an error if the wait times out.
func (t *Transcriber) FlushPending(wait bool, timeout time.Duration) error {
	t.mu.Lock()
	if len(t.buffer) > 0 {
		t.submitLocked()
	}
	t.mu.Unlock()

	if !wait {
		return nil
	}

	deadline := time.After(timeout)
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		if atomic.LoadInt64(&t.pending) == 0 {
			return nil
		}
		select {
		case <-ticker.C:
		case <-deadline:
			return fmt.Errorf("transcriber: flush_pending timed out after %s", timeout)
		}
	}
}

// SoundPending reports whether there is unsent buffered audio or any
// submitted-but-not-yet-completed job.
func (t *Transcriber) SoundPending() bool {
	t.mu.Lock()
	hasBuf := len(t.buffer) > 0
	t.mu.Unlock()
	return hasBuf || atomic.LoadInt64(&t.pending) > 0
}

// submitLocked enqueues the current buffer as a job and resets it.
// Caller must hold t.mu.
func (t *Transcriber) submitLocked() {
	t.nextJob++
	j := job{
		id:            t.nextJob,
		sourceID:      t.bufSourceID,
		startTime:     t.bufStartTime,
		endTime:       t.bufEndTime,
		pcm:           t.buffer,
		sampleRate:    t.sampleRate,
		initialPrompt: t.initialPrompt,
	}
	t.buffer = nil

	atomic.AddInt64(&t.pending, 1)
	if t.dropOnFull {
		select {
		case t.jobs <- j:
		default:
			t.logger.Warn("transcriber: job queue full, dropping job", "job_id", j.id)
			atomic.AddInt64(&t.pending, -1)
			if t.onError != nil {
				t.onError(fmt.Errorf("%w: job %d dropped", ErrQueueFull, j.id))
			}
		}
		return
	}
	t.jobs <- j
}

// Shutdown enqueues the sentinel shutdown job and waits up to timeout
// for the worker to exit, per spec.md §4.5's graceful-shutdown contract.
func (t *Transcriber) Shutdown(timeout time.Duration) error {
	t.jobs <- job{id: shutdownJobID}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("transcriber: shutdown timed out after %s", timeout)
	}
}
