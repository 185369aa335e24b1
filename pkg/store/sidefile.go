package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/dlparker/palaver/pkg/audio"
)

// SideFileWriter optionally writes a text and/or WAV sidecar file
// alongside a draft record. Disabled by default (spec.md §4.12: "the
// pipeline must function with file storage disabled").
type SideFileWriter struct {
	dir       string
	enabled   bool
	writeText bool
	writeWAV  bool
}

// NewSideFileWriter builds a writer rooted at dir. enabled gates every
// operation; writeText/writeWAV gate the two sidecar kinds
// independently so a deployment can keep text transcripts without
// retaining raw audio.
func NewSideFileWriter(dir string, enabled, writeText, writeWAV bool) *SideFileWriter {
	return &SideFileWriter{dir: dir, enabled: enabled, writeText: writeText, writeWAV: writeWAV}
}

// WriteText writes draftID's full text to <dir>/<draft_id>.txt.
func (s *SideFileWriter) WriteText(draftID uuid.UUID, text string) error {
	if !s.enabled || !s.writeText {
		return nil
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("sidefile: creating %s: %w", s.dir, err)
	}
	path := filepath.Join(s.dir, draftID.String()+".txt")
	return os.WriteFile(path, []byte(text), 0o644)
}

// WriteWAV encodes pcm (16-bit little-endian mono samples) as a WAV
// file at <dir>/<draft_id>.wav, reusing the same encoder the STT
// adapters use for their upload payloads.
func (s *SideFileWriter) WriteWAV(draftID uuid.UUID, pcm []byte, sampleRate int) error {
	if !s.enabled || !s.writeWAV {
		return nil
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("sidefile: creating %s: %w", s.dir, err)
	}
	path := filepath.Join(s.dir, draftID.String()+".wav")
	return os.WriteFile(path, audio.EncodeWAV16(pcm, sampleRate), 0o644)
}

// Enabled reports whether any sidecar writing is configured.
func (s *SideFileWriter) Enabled() bool { return s.enabled }
