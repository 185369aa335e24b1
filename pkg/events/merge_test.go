package events

import (
	"testing"

	"github.com/google/uuid"

	"github.com/dlparker/palaver/pkg/audio"
	"github.com/dlparker/palaver/pkg/vad"
)

type fixedModel struct {
	start *float64
	end   *float64
}

func (f *fixedModel) Detect(frame []float32, sampleRate int) (vad.Transition, error) {
	t := vad.Transition{}
	if f.start != nil {
		t.Start = f.start
		t.HasStart = true
		f.start = nil
		return t, nil
	}
	if f.end != nil {
		t.End = f.end
		t.HasEnd = true
		f.end = nil
		return t, nil
	}
	return t, nil
}

func TestMergeForwardsRawChunkToPreVAD(t *testing.T) {
	m := NewMerge(nil)
	var got audio.AudioChunk
	m.SubscribePreVAD(func(c audio.AudioChunk) { got = c })

	id := uuid.New()
	c := audio.AudioChunk{SourceID: id, Timestamp: 1.0, Data: make([]float32, 10)}
	if err := m.HandleRawChunk(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.SourceID != id {
		t.Errorf("expected pre-VAD subscriber to see the raw chunk")
	}
}

func TestMergeOrdersSpeechStartBeforeTaggedChunk(t *testing.T) {
	start := 0.0
	model := &fixedModel{start: &start}
	filter := vad.NewFilter(model, vad.DefaultParams(vad.ModeNormal), nil)
	m := NewMerge(filter)

	var sequence []string
	m.SubscribeLifecycle(func(ev audio.LifecycleEvent) {
		if ev.Kind == audio.LifecycleSpeechStart {
			sequence = append(sequence, "start")
		}
	})
	m.SubscribePostVAD(func(c audio.AudioChunk) {
		sequence = append(sequence, "chunk")
	})

	c := audio.AudioChunk{
		SourceID:   uuid.New(),
		SampleRate: vad.SamplingRate,
		Data:       make([]float32, vad.FrameSize),
	}
	if err := m.HandleRawChunk(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(sequence) != 2 || sequence[0] != "start" || sequence[1] != "chunk" {
		t.Fatalf("expected [start chunk], got %v", sequence)
	}
}

func TestMergePassesThroughSourceLifecycle(t *testing.T) {
	m := NewMerge(nil)
	var got audio.LifecycleEvent
	m.SubscribeLifecycle(func(ev audio.LifecycleEvent) { got = ev })

	m.HandleSourceLifecycle(audio.LifecycleEvent{Kind: audio.LifecycleStop, Reason: audio.StopEOF})

	if got.Kind != audio.LifecycleStop || got.Reason != audio.StopEOF {
		t.Errorf("expected passthrough stop/eof event, got %+v", got)
	}
}

func TestMergeFlushesSyntheticSpeechStopBeforeSourceStop(t *testing.T) {
	start := 0.0
	model := &fixedModel{start: &start}
	filter := vad.NewFilter(model, vad.DefaultParams(vad.ModeNormal), nil)
	m := NewMerge(filter)

	id := uuid.New()
	var sequence []audio.LifecycleKind
	m.SubscribeLifecycle(func(ev audio.LifecycleEvent) {
		sequence = append(sequence, ev.Kind)
	})

	c := audio.AudioChunk{
		SourceID:   id,
		Timestamp:  1.5,
		SampleRate: vad.SamplingRate,
		Data:       make([]float32, vad.FrameSize),
	}
	if err := m.HandleRawChunk(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m.HandleSourceLifecycle(audio.LifecycleEvent{Kind: audio.LifecycleStop, SourceID: id, Reason: audio.StopEOF})

	if len(sequence) != 3 {
		t.Fatalf("expected [SpeechStart SpeechStop Stop], got %v", sequence)
	}
	if sequence[0] != audio.LifecycleSpeechStart {
		t.Errorf("expected SpeechStart first, got %v", sequence[0])
	}
	if sequence[1] != audio.LifecycleSpeechStop {
		t.Errorf("expected a synthetic SpeechStop before the source Stop, got %v", sequence[1])
	}
	if sequence[2] != audio.LifecycleStop {
		t.Errorf("expected the source Stop last, got %v", sequence[2])
	}
}

func TestMergeDoesNotFlushWhenAlreadySilent(t *testing.T) {
	filter := vad.NewFilter(&fixedModel{}, vad.DefaultParams(vad.ModeNormal), nil)
	m := NewMerge(filter)

	var kinds []audio.LifecycleKind
	m.SubscribeLifecycle(func(ev audio.LifecycleEvent) { kinds = append(kinds, ev.Kind) })

	m.HandleSourceLifecycle(audio.LifecycleEvent{Kind: audio.LifecycleStop, Reason: audio.StopEOF})

	if len(kinds) != 1 || kinds[0] != audio.LifecycleStop {
		t.Fatalf("expected only the passthrough Stop, got %v", kinds)
	}
}
