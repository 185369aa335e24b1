package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/google/uuid"

	"github.com/dlparker/palaver/pkg/logging"
)

// DeviceSource opens the platform audio capture device via malgo and
// delivers fixed-cadence float32 chunks, per spec.md §4.1's "device
// source." Grounded on the teacher's cmd/agent/main.go malgo wiring,
// adapted from full-duplex (capture+playback for TTS) to capture-only,
// since palaver never plays audio back.
type DeviceSource struct {
	sourceID    uuid.UUID
	sampleRate  int
	channels    int
	blockMillis int
	logger      logging.Logger

	mu        sync.Mutex
	ctx       *malgo.AllocatedContext
	device    *malgo.Device
	streaming bool
	paused    bool
	startedAt time.Time

	onChunk     ChunkCallback
	onLifecycle LifecycleCallback
}

// NewDeviceSource builds a device source. blockMillis is the cadence of
// each emitted AudioChunk (spec.md §4.1's "commonly 30ms").
func NewDeviceSource(sampleRate, channels, blockMillis int, logger logging.Logger) *DeviceSource {
	if logger == nil {
		logger = logging.Default()
	}
	return &DeviceSource{
		sourceID:    uuid.New(),
		sampleRate:  sampleRate,
		channels:    channels,
		blockMillis: blockMillis,
		logger:      logger,
	}
}

func (d *DeviceSource) SourceID() uuid.UUID { return d.sourceID }

func (d *DeviceSource) Start(onChunk ChunkCallback, onLifecycle LifecycleCallback) error {
	d.mu.Lock()
	if d.streaming {
		d.mu.Unlock()
		return fmt.Errorf("%w: device source already streaming", ErrDriver)
	}
	d.onChunk = onChunk
	d.onLifecycle = onLifecycle
	d.mu.Unlock()

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		d.emitError(fmt.Sprintf("init context: %v", err))
		return fmt.Errorf("%w: %v", ErrDriver, err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = uint32(d.channels)
	deviceConfig.SampleRate = uint32(d.sampleRate)
	deviceConfig.PeriodSizeInMilliseconds = uint32(d.blockMillis)

	blocksize := d.sampleRate * d.blockMillis / 1000
	first := true

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: func(_, pInput []byte, frameCount uint32) {
			d.mu.Lock()
			paused := d.paused
			d.mu.Unlock()
			if paused || pInput == nil {
				return
			}

			if first {
				first = false
				d.mu.Lock()
				d.startedAt = time.Now()
				d.mu.Unlock()
				d.emitLifecycle(LifecycleEvent{
					Kind:       LifecycleStart,
					SourceID:   d.sourceID,
					SampleRate: d.sampleRate,
					Channels:   ScalarChannels(d.channels),
				})
			}

			samples := bytesToFloat32(pInput)
			chunk := AudioChunk{
				SourceID:        d.sourceID,
				StreamStartTime: 0,
				Timestamp:       time.Since(d.startedAt).Seconds(),
				Duration:        float64(frameCount) / float64(d.sampleRate),
				SampleRate:      d.sampleRate,
				Channels:        ScalarChannels(d.channels),
				Blocksize:       blocksize,
				SampleType:      Float32,
				Data:            samples,
			}
			d.mu.Lock()
			cb := d.onChunk
			d.mu.Unlock()
			if cb != nil {
				cb(chunk)
			}
		},
	})
	if err != nil {
		mctx.Uninit()
		d.emitError(fmt.Sprintf("init device: %v", err))
		return fmt.Errorf("%w: %v", ErrDriver, err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		mctx.Uninit()
		d.emitError(fmt.Sprintf("start device: %v", err))
		return fmt.Errorf("%w: %v", ErrDriver, err)
	}

	d.mu.Lock()
	d.ctx = mctx
	d.device = device
	d.streaming = true
	d.mu.Unlock()

	return nil
}

func (d *DeviceSource) emitError(msg string) {
	d.logger.Error("device source error", "message", msg)
	d.mu.Lock()
	cb := d.onLifecycle
	d.mu.Unlock()
	if cb != nil {
		cb(LifecycleEvent{Kind: LifecycleError, SourceID: d.sourceID, Message: msg})
		cb(LifecycleEvent{Kind: LifecycleStop, SourceID: d.sourceID, Reason: StopError})
	}
}

func (d *DeviceSource) emitLifecycle(ev LifecycleEvent) {
	d.mu.Lock()
	cb := d.onLifecycle
	d.mu.Unlock()
	if cb != nil {
		cb(ev)
	}
}

// Stop tears down the device; the data callback cannot fire after
// device.Uninit() returns, satisfying the Source contract.
func (d *DeviceSource) Stop() error {
	d.mu.Lock()
	device, ctx, streaming := d.device, d.ctx, d.streaming
	d.streaming = false
	d.mu.Unlock()

	if !streaming {
		return nil
	}
	if device != nil {
		device.Uninit()
	}
	if ctx != nil {
		ctx.Uninit()
	}
	d.emitLifecycle(LifecycleEvent{Kind: LifecycleStop, SourceID: d.sourceID, Reason: StopNormal})
	return nil
}

func (d *DeviceSource) IsStreaming() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.streaming
}

func (d *DeviceSource) IsPaused() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.paused
}

func (d *DeviceSource) Pause() {
	d.mu.Lock()
	d.paused = true
	d.mu.Unlock()
}

func (d *DeviceSource) Resume() {
	d.mu.Lock()
	d.paused = false
	d.mu.Unlock()
}

func bytesToFloat32(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		bits := binary.LittleEndian.Uint32(b[i*4 : i*4+4])
		out[i] = math.Float32frombits(bits)
	}
	return out
}
