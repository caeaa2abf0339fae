// Package testutil provides shared skip helpers and fixtures for tests that
// touch external tools.
//
// Each Require helper calls Skipf with a human-readable reason when the named
// prerequisite is absent, so integration tests stay runnable in partial
// environments.
//
//	func TestReencodeIntegration(t *testing.T) {
//	    testutil.RequireFFmpeg(t)
//	    ...
//	}
package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/example/go-genstudio/internal/audio"
	"github.com/example/go-genstudio/internal/tts"
)

// RequirePocketTTS skips the test if the pocket-tts binary is not found in
// PATH or at GENSTUDIO_TTS_CLI_PATH.
func RequirePocketTTS(tb testing.TB) {
	tb.Helper()

	requireExecutable(tb, "GENSTUDIO_TTS_CLI_PATH", "pocket-tts")
}

// RequireFFmpeg skips the test unless both ffmpeg and ffprobe are available.
func RequireFFmpeg(tb testing.TB) {
	tb.Helper()

	requireExecutable(tb, "GENSTUDIO_VIDEO_FFMPEG_PATH", "ffmpeg")
	requireExecutable(tb, "GENSTUDIO_VIDEO_FFPROBE_PATH", "ffprobe")
}

func requireExecutable(tb testing.TB, env, fallback string) {
	tb.Helper()

	exe := os.Getenv(env)
	if exe == "" {
		exe = fallback
	}

	if _, err := exec.LookPath(exe); err != nil {
		tb.Skipf("%s not available (%q not in PATH); set %s to override", fallback, exe, env)
	}
}

// RequireAPIKey skips the test unless a Gemini API key is present in the
// environment and returns it.
func RequireAPIKey(tb testing.TB) string {
	tb.Helper()

	for _, env := range []string{"GENSTUDIO_PROVIDER_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"} {
		if key := os.Getenv(env); key != "" {
			return key
		}
	}

	tb.Skipf("no API key; set GEMINI_API_KEY to run live provider tests")
	return ""
}

// RequireVoiceFile skips the test if the voice identified by id cannot be
// resolved from voices/voices.json relative to the current working directory.
func RequireVoiceFile(tb testing.TB, id string) {
	tb.Helper()

	manifestPath := filepath.Join("voices", "voices.json")

	vm, err := tts.NewVoiceManager(manifestPath)
	if err != nil {
		tb.Skipf("voice manifest not available at %q: %v", manifestPath, err)
		return
	}

	if _, err := vm.ResolvePath(id); err != nil {
		tb.Skipf("voice %q not available: %v", id, err)
	}
}

// SilenceWAV returns ms milliseconds of silence in the default speech format.
func SilenceWAV(tb testing.TB, ms int) []byte {
	tb.Helper()

	samples := make([]float32, audio.DefaultFormat.SampleRate*ms/1000)

	data, err := audio.EncodeWAV(samples)
	if err != nil {
		tb.Fatalf("encode silence: %v", err)
	}

	return data
}
