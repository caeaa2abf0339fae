package server_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/example/go-genstudio/internal/server"
)

// capturingHandler captures all slog records during a test.
type capturingHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (c *capturingHandler) Enabled(_ context.Context, _ slog.Level) bool { return true }
func (c *capturingHandler) Handle(_ context.Context, r slog.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, r)
	return nil
}
func (c *capturingHandler) WithAttrs(attrs []slog.Attr) slog.Handler { return c }
func (c *capturingHandler) WithGroup(name string) slog.Handler       { return c }

func (c *capturingHandler) find(msg string) (map[string]any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range c.records {
		if r.Message != msg {
			continue
		}
		m := make(map[string]any)
		r.Attrs(func(a slog.Attr) bool {
			m[a.Key] = a.Value.Any()
			return true
		})
		return m, true
	}
	return nil, false
}

func TestTTS_LogsVoiceAndTextLen(t *testing.T) {
	capture := &capturingHandler{}
	h := server.NewHandler(newStudio(&stubSpeech{}), &stubVoiceLister{}, server.WithLogger(slog.New(capture)))

	postJSON(h, "/tts", `{"text":"Hello world.","voice":"Puck"}`)

	attrs, ok := capture.find("synthesis complete")
	if !ok {
		t.Fatal("no synthesis complete record")
	}
	if attrs["voice"] != "Puck" {
		t.Errorf("voice = %v", attrs["voice"])
	}
	if attrs["text_len"] != int64(len("Hello world.")) {
		t.Errorf("text_len = %v (%T)", attrs["text_len"], attrs["text_len"])
	}
	if _, ok := attrs["duration_ms"]; !ok {
		t.Error("duration_ms missing")
	}
}

func TestTTS_LogsFailureWithStatus(t *testing.T) {
	capture := &capturingHandler{}
	h := server.NewHandler(newStudio(&blockingSpeech{}), &stubVoiceLister{},
		server.WithLogger(slog.New(capture)),
		server.WithRequestTimeout(1),
	)

	postJSON(h, "/tts", `{"text":"hello"}`)

	attrs, ok := capture.find("synthesis failed")
	if !ok {
		t.Fatal("no synthesis failed record")
	}
	if attrs["status"] != int64(504) {
		t.Errorf("status = %v", attrs["status"])
	}
}
