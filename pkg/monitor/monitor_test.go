package monitor

import "testing"

func TestCheckDoneFalseWithoutAudioStop(t *testing.T) {
	m := New()
	m.OnStartBlock()
	if m.CheckDone() {
		t.Fatalf("expected CheckDone false before AudioStop")
	}
}

func TestCheckDoneTrueWithNoBlockOpen(t *testing.T) {
	m := New()
	m.OnAudioStop()
	if !m.CheckDone() {
		t.Fatalf("expected CheckDone true: AudioStop received, no block open")
	}
}

func TestCheckDoneWaitsForPendingTranscription(t *testing.T) {
	m := New()
	m.OnStartBlock()
	m.OnSpeechChunk(10.0)
	m.OnTranscriptionSubmitted()
	m.OnTextEvent(10.0)
	m.OnAudioStop()
	if m.CheckDone() {
		t.Fatalf("expected CheckDone false while a transcription is still pending")
	}
	m.OnTranscriptionCompleted()
	if !m.CheckDone() {
		t.Fatalf("expected CheckDone true once the pending transcription completes")
	}
}

func TestCheckDoneFalseWhenTextLagsChunk(t *testing.T) {
	m := New()
	m.OnStartBlock()
	m.OnSpeechChunk(10.0)
	m.OnTextEvent(2.0)
	m.OnAudioStop()
	if m.CheckDone() {
		t.Fatalf("expected CheckDone false when last text trails last chunk by more than tolerance")
	}
}

func TestIsAllDoneNeverOscillatesBackToFalse(t *testing.T) {
	m := New()
	m.OnAudioStop()
	if !m.IsAllDone() {
		t.Fatalf("expected IsAllDone true")
	}

	// A block opening again after completion must not flip IsAllDone.
	m.OnStartBlock()
	if !m.IsAllDone() {
		t.Errorf("expected IsAllDone to stay latched true once reached")
	}
}
