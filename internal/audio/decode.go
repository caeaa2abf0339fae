package audio

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/cwbudde/wav"
)

// ErrFormatMismatch is returned when a decoded WAV does not match DefaultFormat.
var ErrFormatMismatch = errors.New("WAV format mismatch")

// Info summarizes a decoded WAV container.
type Info struct {
	Format   Format
	Frames   int
	Duration time.Duration
}

// Inspect decodes data and reports its format and length without
// restricting the layout.
func Inspect(data []byte) (Info, error) {
	dec, err := newDecoder(data)
	if err != nil {
		return Info{}, err
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return Info{}, fmt.Errorf("reading PCM data: %w", err)
	}

	f := Format{
		SampleRate:    int(dec.SampleRate),
		Channels:      int(dec.NumChans),
		BitsPerSample: int(dec.BitDepth),
	}

	frames := len(buf.Data)
	if f.Channels > 0 {
		frames /= f.Channels
	}

	var dur time.Duration
	if f.SampleRate > 0 {
		dur = time.Duration(int64(frames) * int64(time.Second) / int64(f.SampleRate))
	}

	return Info{Format: f, Frames: frames, Duration: dur}, nil
}

// DecodeWAV decodes WAV bytes and returns float32 PCM samples.
// It validates that the layout is DefaultFormat.
func DecodeWAV(data []byte) ([]float32, error) {
	dec, err := newDecoder(data)
	if err != nil {
		return nil, err
	}

	want := DefaultFormat
	if int(dec.SampleRate) != want.SampleRate {
		return nil, fmt.Errorf("%w: sample rate %d, want %d", ErrFormatMismatch, dec.SampleRate, want.SampleRate)
	}
	if int(dec.NumChans) != want.Channels {
		return nil, fmt.Errorf("%w: channels %d, want %d", ErrFormatMismatch, dec.NumChans, want.Channels)
	}
	if int(dec.BitDepth) != want.BitsPerSample {
		return nil, fmt.Errorf("%w: bit depth %d, want %d", ErrFormatMismatch, dec.BitDepth, want.BitsPerSample)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("reading PCM data: %w", err)
	}

	return buf.Data, nil
}

func newDecoder(data []byte) (*wav.Decoder, error) {
	if len(data) == 0 {
		return nil, errors.New("empty WAV input")
	}

	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, errors.New("invalid WAV file")
	}
	return dec, nil
}
