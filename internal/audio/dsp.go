package audio

import (
	"fmt"
	"math"
)

// Hook transforms a block of samples. Hooks return new slices and never
// modify their input.
type Hook func(samples []float32) []float32

// ApplyHooks runs hooks in order.
func ApplyHooks(samples []float32, hooks ...Hook) []float32 {
	out := samples
	for _, hook := range hooks {
		out = hook(out)
	}
	return out
}

// PeakNormalize scales samples so the peak amplitude reaches 1.0.
// Silence is returned unchanged.
func PeakNormalize(samples []float32) []float32 {
	var peak float64
	for _, s := range samples {
		peak = math.Max(peak, math.Abs(float64(s)))
	}

	out := make([]float32, len(samples))
	if peak == 0 {
		copy(out, samples)
		return out
	}

	gain := 1 / peak
	for i, s := range samples {
		out[i] = float32(float64(s) * gain)
	}
	return out
}

// dcCutoffHz is the corner frequency of the DC blocking filter.
const dcCutoffHz = 20.0

// DCBlock removes DC offset with a one-pole high-pass filter:
// y[n] = x[n] - x[n-1] + R*y[n-1].
func DCBlock(samples []float32, sampleRate int) []float32 {
	out := make([]float32, len(samples))
	if sampleRate <= 0 {
		copy(out, samples)
		return out
	}

	r := 1 - 2*math.Pi*dcCutoffHz/float64(sampleRate)

	var prevX, prevY float64
	for i, s := range samples {
		x := float64(s)
		y := x - prevX + r*prevY
		out[i] = float32(y)
		prevX, prevY = x, y
	}
	return out
}

// FadeIn applies a linear fade-in ramp over the given duration in milliseconds.
func FadeIn(samples []float32, sampleRate int, ms float64) []float32 {
	out := make([]float32, len(samples))
	copy(out, samples)

	n := min(fadeLength(sampleRate, ms), len(out))
	for i := range n {
		out[i] *= float32(i) / float32(n)
	}
	return out
}

// FadeOut applies a linear fade-out ramp ending at zero on the last sample.
func FadeOut(samples []float32, sampleRate int, ms float64) []float32 {
	out := make([]float32, len(samples))
	copy(out, samples)

	n := min(fadeLength(sampleRate, ms), len(out))
	start := len(out) - n
	for i := start; i < len(out); i++ {
		out[i] *= float32(len(out)-1-i) / float32(n)
	}
	return out
}

func fadeLength(sampleRate int, ms float64) int {
	if sampleRate <= 0 || ms <= 0 {
		return 0
	}
	return int(ms / 1000.0 * float64(sampleRate))
}

// PostOptions selects the processing applied by PostProcess.
type PostOptions struct {
	Normalize bool
	DCBlock   bool
	FadeInMS  float64
	FadeOutMS float64
}

// Enabled reports whether any processing is requested.
func (o PostOptions) Enabled() bool {
	return o.Normalize || o.DCBlock || o.FadeInMS > 0 || o.FadeOutMS > 0
}

// Hooks returns the processing chain: DC block, normalize, then fades.
func (o PostOptions) Hooks(sampleRate int) []Hook {
	var hooks []Hook
	if o.DCBlock {
		hooks = append(hooks, func(s []float32) []float32 { return DCBlock(s, sampleRate) })
	}
	if o.Normalize {
		hooks = append(hooks, PeakNormalize)
	}
	if o.FadeInMS > 0 {
		hooks = append(hooks, func(s []float32) []float32 { return FadeIn(s, sampleRate, o.FadeInMS) })
	}
	if o.FadeOutMS > 0 {
		hooks = append(hooks, func(s []float32) []float32 { return FadeOut(s, sampleRate, o.FadeOutMS) })
	}
	return hooks
}

// PostProcess decodes a DefaultFormat WAV, runs the selected hooks and
// re-encodes it. It returns wav unchanged when nothing is enabled.
func PostProcess(wav []byte, opts PostOptions) ([]byte, error) {
	if !opts.Enabled() {
		return wav, nil
	}

	samples, err := DecodeWAV(wav)
	if err != nil {
		return nil, fmt.Errorf("decode WAV for post-processing: %w", err)
	}

	out, err := EncodeWAV(ApplyHooks(samples, opts.Hooks(DefaultFormat.SampleRate)...))
	if err != nil {
		return nil, fmt.Errorf("encode WAV after post-processing: %w", err)
	}
	return out, nil
}
