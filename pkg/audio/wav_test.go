package audio

import (
	"bytes"
	"testing"
)

func TestEncodeWAV16(t *testing.T) {
	pcm := []byte{0x01, 0x02, 0x03, 0x04}
	sampleRate := 44100
	wav := EncodeWAV16(pcm, sampleRate)

	if !bytes.HasPrefix(wav, []byte("RIFF")) {
		t.Errorf("Expected RIFF prefix")
	}

	if !bytes.Contains(wav, []byte("WAVE")) {
		t.Errorf("Expected WAVE format identifier")
	}

	expectedLen := 44 + len(pcm)
	if len(wav) != expectedLen {
		t.Errorf("Expected length %d, got %d", expectedLen, len(wav))
	}
}

func TestDecodeWAVRoundTrip16(t *testing.T) {
	pcm := []byte{0x00, 0x40, 0x00, 0xC0} // 16384, -16384
	wav := EncodeWAV16(pcm, 16000)

	decoded, err := DecodeWAV(bytes.NewReader(wav))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decoded.SampleRate != 16000 {
		t.Errorf("expected sample rate 16000, got %d", decoded.SampleRate)
	}
	if decoded.Channels != 1 {
		t.Errorf("expected 1 channel, got %d", decoded.Channels)
	}
	if len(decoded.Samples) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(decoded.Samples))
	}
	if decoded.Samples[0] <= 0 || decoded.Samples[1] >= 0 {
		t.Errorf("expected alternating sign samples, got %v", decoded.Samples)
	}
	for _, s := range decoded.Samples {
		if s < -1.0 || s > 1.0 {
			t.Errorf("sample %f out of [-1,1] range", s)
		}
	}
}

func TestDecodeWAVRejectsNonRIFF(t *testing.T) {
	if _, err := DecodeWAV(bytes.NewReader([]byte("not a wav file"))); err == nil {
		t.Errorf("expected error for non-RIFF input")
	}
}
