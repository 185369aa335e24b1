package vad

import (
	"testing"

	"github.com/google/uuid"

	"github.com/dlparker/palaver/pkg/audio"
)

// scriptedModel returns a fixed sequence of transitions, one per Detect
// call, looping the last entry once exhausted.
type scriptedModel struct {
	script []Transition
	calls  int
}

func (s *scriptedModel) Detect(frame []float32, sampleRate int) (Transition, error) {
	idx := s.calls
	if idx >= len(s.script) {
		idx = len(s.script) - 1
	}
	s.calls++
	return s.script[idx], nil
}

func makeChunk(n int, ts float64) audio.AudioChunk {
	data := make([]float32, n)
	return audio.AudioChunk{
		SourceID:   uuid.New(),
		Timestamp:  ts,
		SampleRate: SamplingRate,
		Channels:   audio.ScalarChannels(1),
		Data:       data,
	}
}

func TestFilterReportsSpeechStartBeforeTaggedChunk(t *testing.T) {
	start := 0.1
	model := &scriptedModel{script: []Transition{{Start: &start, HasStart: true}}}
	f := NewFilter(model, DefaultParams(ModeNormal), nil)

	outs, err := f.ProcessChunk(makeChunk(FrameSize, 0.0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outs) != 1 {
		t.Fatalf("expected 1 output, got %d", len(outs))
	}
	if outs[0].SpeechStart == nil {
		t.Fatalf("expected a SpeechStart event")
	}
	if !outs[0].Chunk.InSpeech {
		t.Errorf("expected the triggering chunk tagged in_speech")
	}
}

func TestFilterReportsSpeechStopAfterLastSpeechChunk(t *testing.T) {
	start := 0.0
	end := 1.0
	model := &scriptedModel{script: []Transition{
		{Start: &start, HasStart: true},
		{End: &end, HasEnd: true},
	}}
	f := NewFilter(model, DefaultParams(ModeNormal), nil)

	_, err := f.ProcessChunk(makeChunk(FrameSize, 0.0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	outs, err := f.ProcessChunk(makeChunk(FrameSize, 1.0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outs[0].SpeechStop == nil {
		t.Fatalf("expected a SpeechStop event")
	}
	if f.State() {
		t.Errorf("expected filter to return to silence state")
	}
}

func TestFilterAccumulatesPartialFrames(t *testing.T) {
	model := &scriptedModel{script: []Transition{{}}}
	f := NewFilter(model, DefaultParams(ModeNormal), nil)

	outs, err := f.ProcessChunk(makeChunk(FrameSize/2, 0.0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outs) != 1 {
		t.Fatalf("expected short chunk to still be forwarded, got %d outputs", len(outs))
	}
	if model.calls != 0 {
		t.Errorf("expected no model call yet (frame incomplete), got %d calls", model.calls)
	}

	_, err = f.ProcessChunk(makeChunk(FrameSize/2, 0.016))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if model.calls != 1 {
		t.Errorf("expected exactly one model call once the frame completed, got %d", model.calls)
	}
}

func TestFilterIgnoresRedundantTransitions(t *testing.T) {
	start := 0.0
	model := &scriptedModel{script: []Transition{
		{Start: &start, HasStart: true},
		{Start: &start, HasStart: true},
	}}
	f := NewFilter(model, DefaultParams(ModeNormal), nil)

	_, err := f.ProcessChunk(makeChunk(FrameSize, 0.0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	outs, err := f.ProcessChunk(makeChunk(FrameSize, 0.016))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outs[0].SpeechStart != nil {
		t.Errorf("expected a second Start while already in speech to be suppressed")
	}
}

func TestFlushSynthesizesSpeechStopWhenInSpeech(t *testing.T) {
	start := 0.0
	model := &scriptedModel{script: []Transition{{Start: &start, HasStart: true}}}
	f := NewFilter(model, DefaultParams(ModeNormal), nil)

	id := uuid.New()
	_, err := f.ProcessChunk(audio.AudioChunk{
		SourceID:   id,
		Timestamp:  2.0,
		SampleRate: SamplingRate,
		Data:       make([]float32, FrameSize),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !f.State() {
		t.Fatalf("expected filter to be in the speech state before flushing")
	}

	stop := f.Flush(id)
	if stop == nil {
		t.Fatalf("expected a synthetic SpeechStop")
	}
	if stop.Kind != audio.LifecycleSpeechStop {
		t.Errorf("expected LifecycleSpeechStop, got %v", stop.Kind)
	}
	if stop.SourceID != id {
		t.Errorf("expected SourceID %v, got %v", id, stop.SourceID)
	}
	if stop.LastInSpeechChunkTime != 2.0 {
		t.Errorf("expected LastInSpeechChunkTime 2.0, got %v", stop.LastInSpeechChunkTime)
	}
	if f.State() {
		t.Errorf("expected filter to return to silence after flush")
	}
}

func TestFlushIsNoOpWhenAlreadySilent(t *testing.T) {
	f := NewFilter(&scriptedModel{script: []Transition{{}}}, DefaultParams(ModeNormal), nil)
	if stop := f.Flush(uuid.New()); stop != nil {
		t.Errorf("expected no synthetic SpeechStop when already silent, got %+v", stop)
	}
}

func TestLongNoteModeRaisesMinSilence(t *testing.T) {
	p := DefaultParams(ModeLongNote)
	if p.MinSilenceMS != 5000 {
		t.Errorf("expected long-note min_silence_ms=5000, got %d", p.MinSilenceMS)
	}
	np := DefaultParams(ModeNormal)
	if np.MinSilenceMS != 800 {
		t.Errorf("expected normal mode min_silence_ms=800, got %d", np.MinSilenceMS)
	}
}
