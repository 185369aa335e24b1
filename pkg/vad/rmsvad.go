package vad

import "math"

// RMSVAD is a lightweight, dependency-free default Model implementation:
// root-mean-square energy against a threshold, with a consecutive-frame
// confirmation window to reject spikes, and a silence run length before
// declaring end-of-speech. Ported from the teacher's byte-oriented
// pkg/orchestrator/vad.go RMSVAD to operate on the normalized float32
// frames VADFilter already reassembles.
type RMSVAD struct {
	threshold    float64
	minConfirmed int
	minSilence   int

	speaking          bool
	consecutiveFrames int
	silenceRun        int
	elapsed           float64
}

// NewRMSVAD builds an RMS-threshold model. minSilenceMS is converted to
// a frame count using the 512-sample/16kHz frame period (32ms/frame).
func NewRMSVAD(threshold float64, minSilenceMS int) *RMSVAD {
	framePeriodMS := float64(FrameSize) / float64(SamplingRate) * 1000
	return &RMSVAD{
		threshold:    threshold,
		minConfirmed: 3,
		minSilence:   int(float64(minSilenceMS)/framePeriodMS + 0.5),
	}
}

// SetMinConfirmed sets how many consecutive above-threshold frames are
// required before a SpeechStart transition is reported.
func (v *RMSVAD) SetMinConfirmed(n int) { v.minConfirmed = n }

func (v *RMSVAD) Detect(frame []float32, sampleRate int) (Transition, error) {
	framePeriod := float64(len(frame)) / float64(sampleRate)
	start := v.elapsed
	v.elapsed += framePeriod

	rms := rmsOf(frame)

	if rms > v.threshold {
		v.consecutiveFrames++
		v.silenceRun = 0
		if !v.speaking {
			if v.consecutiveFrames >= v.minConfirmed {
				v.speaking = true
				t := start
				return Transition{Start: &t, HasStart: true}, nil
			}
		}
		return Transition{}, nil
	}

	v.consecutiveFrames = 0
	if v.speaking {
		v.silenceRun++
		if v.silenceRun >= v.minSilence {
			v.speaking = false
			v.silenceRun = 0
			t := start
			return Transition{End: &t, HasEnd: true}, nil
		}
	}
	return Transition{}, nil
}

func rmsOf(frame []float32) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, s := range frame {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(frame)))
}
