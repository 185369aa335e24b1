package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// EncodeWAV16 wraps 16-bit little-endian mono PCM in a minimal WAV
// container. Used by the side-file writer and by STT adapters that need
// a WAV payload for an HTTP upload.
func EncodeWAV16(pcm []byte, sampleRate int) []byte {
	buf := new(bytes.Buffer)

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1))
	binary.Write(buf, binary.LittleEndian, uint16(1))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate*2))
	binary.Write(buf, binary.LittleEndian, uint16(2))
	binary.Write(buf, binary.LittleEndian, uint16(16))

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}

// DecodedWAV holds the result of decoding a WAV file into normalized
// float32 samples, interleaved by channel.
type DecodedWAV struct {
	SampleRate int
	Channels   int
	Samples    []float32 // interleaved, range [-1, 1]
}

type wavFmtChunk struct {
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
}

// DecodeWAV reads a PCM16 or PCM32 WAV stream (mono or stereo, any sample
// rate) and normalizes samples to float32 in [-1, 1]. It does not resample;
// callers wanting 16kHz mono should feed the result through DownSampler.
func DecodeWAV(r io.Reader) (*DecodedWAV, error) {
	var riffHdr [12]byte
	if _, err := io.ReadFull(r, riffHdr[:]); err != nil {
		return nil, fmt.Errorf("wav: reading RIFF header: %w", err)
	}
	if string(riffHdr[0:4]) != "RIFF" || string(riffHdr[8:12]) != "WAVE" {
		return nil, fmt.Errorf("wav: not a RIFF/WAVE stream")
	}

	var fmtChunk *wavFmtChunk
	var pcm []byte

	for {
		var chunkHdr [8]byte
		if _, err := io.ReadFull(r, chunkHdr[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return nil, fmt.Errorf("wav: reading chunk header: %w", err)
		}
		id := string(chunkHdr[0:4])
		size := binary.LittleEndian.Uint32(chunkHdr[4:8])
		body := make([]byte, size)
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, fmt.Errorf("wav: reading chunk %q: %w", id, err)
		}
		if size%2 == 1 {
			// chunks are word-aligned; skip the pad byte if present
			var pad [1]byte
			io.ReadFull(r, pad[:])
		}

		switch id {
		case "fmt ":
			if len(body) < 16 {
				return nil, fmt.Errorf("wav: fmt chunk too short")
			}
			fc := wavFmtChunk{
				AudioFormat:   binary.LittleEndian.Uint16(body[0:2]),
				NumChannels:   binary.LittleEndian.Uint16(body[2:4]),
				SampleRate:    binary.LittleEndian.Uint32(body[4:8]),
				ByteRate:      binary.LittleEndian.Uint32(body[8:12]),
				BlockAlign:    binary.LittleEndian.Uint16(body[12:14]),
				BitsPerSample: binary.LittleEndian.Uint16(body[14:16]),
			}
			fmtChunk = &fc
		case "data":
			pcm = body
		}
	}

	if fmtChunk == nil {
		return nil, fmt.Errorf("wav: missing fmt chunk")
	}
	if pcm == nil {
		return nil, fmt.Errorf("wav: missing data chunk")
	}
	if fmtChunk.AudioFormat != 1 {
		return nil, fmt.Errorf("wav: unsupported audio format %d (only PCM)", fmtChunk.AudioFormat)
	}

	var samples []float32
	switch fmtChunk.BitsPerSample {
	case 16:
		samples = make([]float32, len(pcm)/2)
		for i := range samples {
			v := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
			samples[i] = float32(v) / 32768.0
		}
	case 32:
		samples = make([]float32, len(pcm)/4)
		for i := range samples {
			v := int32(binary.LittleEndian.Uint32(pcm[i*4 : i*4+4]))
			samples[i] = float32(v) / 2147483648.0
		}
	default:
		return nil, fmt.Errorf("wav: unsupported bit depth %d (want 16 or 32)", fmtChunk.BitsPerSample)
	}

	return &DecodedWAV{
		SampleRate: int(fmtChunk.SampleRate),
		Channels:   int(fmtChunk.NumChannels),
		Samples:    samples,
	}, nil
}
