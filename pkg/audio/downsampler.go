package audio

import "fmt"

// DownSampler implements C2: mixes an arbitrary-channel chunk down to
// mono by averaging channels, then resamples to a fixed target rate
// (16kHz is the transcriber's expected rate per spec.md §4.5). Using
// linear interpolation rather than a full polyphase filter bank; the
// teacher's pipeline never needed anti-aliasing beyond what the VAD
// model tolerates, and that tradeoff carries here.
type DownSampler struct {
	targetRate int
}

// NewDownSampler builds a DownSampler targeting targetRate Hz, mono.
func NewDownSampler(targetRate int) *DownSampler {
	return &DownSampler{targetRate: targetRate}
}

// Process mixes c.Data down to mono and resamples to d.targetRate,
// returning a new chunk. It returns ErrInvalidFormat if the input chunk
// declares a zero sample rate or zero input channels.
func (d *DownSampler) Process(c AudioChunk) (AudioChunk, error) {
	if c.SampleRate == 0 || c.Channels.In == 0 {
		return AudioChunk{}, fmt.Errorf("%w: sr_in=%d ch_in=%d", ErrInvalidFormat, c.SampleRate, c.Channels.In)
	}

	mono := mixToMono(c.Data, c.Channels.In)
	resampled := resampleLinear(mono, c.SampleRate, d.targetRate)

	out := c
	out.Data = resampled
	out.SampleRate = d.targetRate
	out.Channels = ScalarChannels(1)
	out.Blocksize = len(resampled)
	return out, nil
}

func mixToMono(data []float32, channels int) []float32 {
	if channels <= 1 {
		out := make([]float32, len(data))
		copy(out, data)
		return out
	}
	frames := len(data) / channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			sum += data[i*channels+ch]
		}
		out[i] = sum / float32(channels)
	}
	return out
}

func resampleLinear(in []float32, srcRate, dstRate int) []float32 {
	if srcRate == dstRate || len(in) == 0 {
		out := make([]float32, len(in))
		copy(out, in)
		return out
	}

	ratio := float64(srcRate) / float64(dstRate)
	outLen := int(float64(len(in)) / ratio)
	out := make([]float32, outLen)
	for i := 0; i < outLen; i++ {
		srcPos := float64(i) * ratio
		idx := int(srcPos)
		frac := srcPos - float64(idx)
		if idx+1 < len(in) {
			out[i] = in[idx] + float32(frac)*(in[idx+1]-in[idx])
		} else {
			out[i] = in[len(in)-1]
		}
	}
	return out
}
