package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
)

func TestSideFileWriterDisabledWritesNothing(t *testing.T) {
	dir := t.TempDir()
	w := NewSideFileWriter(dir, false, true, true)

	id := uuid.New()
	if err := w.WriteText(id, "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, id.String()+".txt")); !os.IsNotExist(err) {
		t.Errorf("expected no file to be written when disabled")
	}
}

func TestSideFileWriterWritesTextWhenEnabled(t *testing.T) {
	dir := t.TempDir()
	w := NewSideFileWriter(dir, true, true, false)

	id := uuid.New()
	if err := w.WriteText(id, "hello world"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(dir, id.String()+".txt"))
	if err != nil {
		t.Fatalf("expected the text sidecar to exist: %v", err)
	}
	if string(got) != "hello world" {
		t.Errorf("expected file contents %q, got %q", "hello world", got)
	}
}

func TestSideFileWriterSkipsWAVWhenOnlyTextEnabled(t *testing.T) {
	dir := t.TempDir()
	w := NewSideFileWriter(dir, true, true, false)

	id := uuid.New()
	if err := w.WriteWAV(id, []byte{0, 0, 1, 1}, 16000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, id.String()+".wav")); !os.IsNotExist(err) {
		t.Errorf("expected no WAV file when writeWAV is false")
	}
}
