package testutil

import (
	"testing"
	"time"

	"github.com/example/go-genstudio/internal/audio"
)

// AssertValidWAV checks that data decodes as a WAV in the speech format
// (24 kHz, mono, 16-bit) and holds at least one frame.
func AssertValidWAV(tb testing.TB, data []byte) audio.Info {
	tb.Helper()

	if len(data) < audio.HeaderSize {
		tb.Fatalf("WAV data too short: %d bytes", len(data))
	}

	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		tb.Fatalf("WAV: missing RIFF/WAVE markers (got %q/%q)", data[0:4], data[8:12])
	}

	info, err := audio.Inspect(data)
	if err != nil {
		tb.Fatalf("WAV: %v", err)
	}

	if info.Format != audio.DefaultFormat {
		tb.Fatalf("WAV: format %s, want %s", info.Format, audio.DefaultFormat)
	}

	if info.Frames == 0 {
		tb.Fatal("WAV: data chunk contains zero samples")
	}

	return info
}

// AssertWAVDurationApprox asserts that the WAV duration falls within
// [lo, hi].
func AssertWAVDurationApprox(tb testing.TB, data []byte, lo, hi time.Duration) {
	tb.Helper()

	info, err := audio.Inspect(data)
	if err != nil {
		tb.Fatalf("WAV duration check: %v", err)
	}

	if info.Duration < lo || info.Duration > hi {
		tb.Fatalf("WAV duration %s out of expected range [%s, %s]", info.Duration, lo, hi)
	}
}
