package audio

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dlparker/palaver/pkg/logging"
)

// FileSource replays a decoded WAV file as a sequence of fixed-size
// chunks, per spec.md §4.1's "file source": useful for tests and batch
// rescans where a live device is unavailable. Grounded on the teacher's
// WAV handling in pkg/orchestrator together with the device source's
// cadence contract.
type FileSource struct {
	sourceID     uuid.UUID
	path         string
	blocksize    int
	simulateTime bool
	logger       logging.Logger

	mu        sync.Mutex
	streaming bool
	paused    bool
	stopCh    chan struct{}
}

// NewFileSource builds a source that reads path lazily on Start. blocksize
// is the number of samples per emitted chunk; the final chunk is
// zero-padded to blocksize if the file doesn't divide evenly. When
// simulateTime is true, chunks are paced in real time to mimic a live
// device; otherwise they're emitted as fast as possible (useful for
// deterministic tests).
func NewFileSource(path string, blocksize int, simulateTime bool, logger logging.Logger) *FileSource {
	if logger == nil {
		logger = logging.Default()
	}
	return &FileSource{
		sourceID:     uuid.New(),
		path:         path,
		blocksize:    blocksize,
		simulateTime: simulateTime,
		logger:       logger,
	}
}

func (f *FileSource) SourceID() uuid.UUID { return f.sourceID }

func (f *FileSource) Start(onChunk ChunkCallback, onLifecycle LifecycleCallback) error {
	f.mu.Lock()
	if f.streaming {
		f.mu.Unlock()
		return fmt.Errorf("%w: file source already streaming", ErrDriver)
	}
	f.streaming = true
	f.stopCh = make(chan struct{})
	f.mu.Unlock()

	fh, err := os.Open(f.path)
	if err != nil {
		f.fail(onLifecycle, fmt.Sprintf("open %s: %v", f.path, err))
		return fmt.Errorf("%w: %v", ErrDriver, err)
	}

	decoded, err := DecodeWAV(fh)
	fh.Close()
	if err != nil {
		f.fail(onLifecycle, fmt.Sprintf("decode %s: %v", f.path, err))
		return fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	if decoded.SampleRate == 0 || decoded.Channels == 0 {
		f.fail(onLifecycle, "zero sample rate or channel count")
		return ErrInvalidFormat
	}

	go f.pump(decoded, onChunk, onLifecycle)
	return nil
}

func (f *FileSource) fail(onLifecycle LifecycleCallback, msg string) {
	f.mu.Lock()
	f.streaming = false
	f.mu.Unlock()
	f.logger.Error("file source error", "message", msg)
	if onLifecycle != nil {
		onLifecycle(LifecycleEvent{Kind: LifecycleError, SourceID: f.sourceID, Message: msg})
		onLifecycle(LifecycleEvent{Kind: LifecycleStop, SourceID: f.sourceID, Reason: StopError})
	}
}

func (f *FileSource) pump(decoded *DecodedWAV, onChunk ChunkCallback, onLifecycle LifecycleCallback) {
	channels := ScalarChannels(decoded.Channels)
	if onLifecycle != nil {
		onLifecycle(LifecycleEvent{
			Kind:       LifecycleStart,
			SourceID:   f.sourceID,
			SampleRate: decoded.SampleRate,
			Channels:   channels,
		})
	}

	chunkDuration := time.Duration(float64(f.blocksize) / float64(decoded.SampleRate) * float64(time.Second))
	start := time.Now()
	samples := decoded.Samples
	n := len(samples)
	reason := StopEOF

	for offset := 0; offset < n; offset += f.blocksize {
		select {
		case <-f.stopCh:
			reason = StopNormal
			f.emitStop(onLifecycle, reason)
			return
		default:
		}

		f.mu.Lock()
		paused := f.paused
		f.mu.Unlock()
		for paused {
			time.Sleep(10 * time.Millisecond)
			select {
			case <-f.stopCh:
				f.emitStop(onLifecycle, StopNormal)
				return
			default:
			}
			f.mu.Lock()
			paused = f.paused
			f.mu.Unlock()
		}

		end := offset + f.blocksize
		var data []float32
		if end <= n {
			data = samples[offset:end]
		} else {
			data = make([]float32, f.blocksize)
			copy(data, samples[offset:n])
		}

		chunk := AudioChunk{
			SourceID:        f.sourceID,
			StreamStartTime: 0,
			Timestamp:       time.Since(start).Seconds(),
			Duration:        float64(f.blocksize) / float64(decoded.SampleRate),
			SampleRate:      decoded.SampleRate,
			Channels:        channels,
			Blocksize:       f.blocksize,
			SampleType:      Float32,
			Data:            data,
		}
		if onChunk != nil {
			onChunk(chunk)
		}

		if f.simulateTime {
			time.Sleep(chunkDuration)
		}
	}

	f.emitStop(onLifecycle, reason)
}

func (f *FileSource) emitStop(onLifecycle LifecycleCallback, reason StopReason) {
	f.mu.Lock()
	f.streaming = false
	f.mu.Unlock()
	if onLifecycle != nil {
		onLifecycle(LifecycleEvent{Kind: LifecycleStop, SourceID: f.sourceID, Reason: reason})
	}
}

func (f *FileSource) Stop() error {
	f.mu.Lock()
	if !f.streaming {
		f.mu.Unlock()
		return nil
	}
	ch := f.stopCh
	f.mu.Unlock()
	close(ch)
	return nil
}

func (f *FileSource) IsStreaming() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.streaming
}

func (f *FileSource) IsPaused() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.paused
}

func (f *FileSource) Pause() {
	f.mu.Lock()
	f.paused = true
	f.mu.Unlock()
}

func (f *FileSource) Resume() {
	f.mu.Lock()
	f.paused = false
	f.mu.Unlock()
}
