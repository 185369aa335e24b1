package audio

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func writeTestWAV(t *testing.T, numSamples int) string {
	t.Helper()
	pcm := make([]byte, numSamples*2)
	for i := 0; i < numSamples; i++ {
		v := int16(1000)
		pcm[i*2] = byte(v)
		pcm[i*2+1] = byte(v >> 8)
	}
	wav := EncodeWAV16(pcm, 16000)

	dir := t.TempDir()
	path := filepath.Join(dir, "test.wav")
	if err := os.WriteFile(path, wav, 0o644); err != nil {
		t.Fatalf("write test wav: %v", err)
	}
	return path
}

func TestFileSourceEmitsChunksAndEOF(t *testing.T) {
	path := writeTestWAV(t, 100)
	src := NewFileSource(path, 25, false, nil)

	var mu sync.Mutex
	var chunkCount int
	done := make(chan StopReason, 1)

	err := src.Start(func(c AudioChunk) {
		mu.Lock()
		chunkCount++
		mu.Unlock()
	}, func(ev LifecycleEvent) {
		if ev.Kind == LifecycleStop {
			done <- ev.Reason
		}
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case reason := <-done:
		if reason != StopEOF {
			t.Errorf("expected StopEOF, got %v", reason)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for stop")
	}

	mu.Lock()
	defer mu.Unlock()
	if chunkCount != 4 {
		t.Errorf("expected 4 chunks (100/25), got %d", chunkCount)
	}
}

func TestFileSourceStopIsIdempotentAfterCompletion(t *testing.T) {
	path := writeTestWAV(t, 10)
	src := NewFileSource(path, 5, false, nil)

	done := make(chan struct{}, 1)
	err := src.Start(func(c AudioChunk) {}, func(ev LifecycleEvent) {
		if ev.Kind == LifecycleStop {
			done <- struct{}{}
		}
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for stop")
	}

	if err := src.Stop(); err != nil {
		t.Errorf("expected idempotent Stop to succeed, got %v", err)
	}
}

func TestFileSourceRejectsMissingFile(t *testing.T) {
	src := NewFileSource("/nonexistent/path.wav", 160, false, nil)
	err := src.Start(func(c AudioChunk) {}, func(ev LifecycleEvent) {})
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
}
