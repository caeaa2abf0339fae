package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/example/go-genstudio/internal/audio"
	"github.com/example/go-genstudio/internal/metrics"
	"github.com/example/go-genstudio/internal/provider"
	"github.com/example/go-genstudio/internal/server"
	"github.com/example/go-genstudio/internal/studio"
	"github.com/example/go-genstudio/internal/testutil"
	"github.com/example/go-genstudio/internal/text"
	"github.com/example/go-genstudio/internal/tts"
)

// stubSpeech returns the text as PCM; texts listed in fail are refused.
type stubSpeech struct {
	mu   sync.Mutex
	fail map[string]error
	reqs []provider.SpeechRequest
}

func (s *stubSpeech) Speak(_ context.Context, req provider.SpeechRequest) ([]byte, error) {
	s.mu.Lock()
	s.reqs = append(s.reqs, req)
	s.mu.Unlock()
	if err := s.fail[req.Text]; err != nil {
		return nil, err
	}
	return audio.Wrap([]byte(req.Text)), nil
}

// blockingSpeech blocks until its context ends.
type blockingSpeech struct {
	started chan struct{}
}

func (b *blockingSpeech) Speak(ctx context.Context, _ provider.SpeechRequest) ([]byte, error) {
	if b.started != nil {
		b.started <- struct{}{}
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

// stubVoiceLister implements server.VoiceLister for tests.
type stubVoiceLister struct {
	voices []tts.LocalVoice
}

func (v *stubVoiceLister) ListVoices() []tts.LocalVoice {
	return v.voices
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newStudio chunks on sentence ends with a small limit so short texts split.
func newStudio(sp provider.SpeechSynthesizer) *studio.Studio {
	return studio.New(studio.Providers{Speech: sp},
		studio.WithLogger(quietLogger()),
		studio.WithChunking(6, text.ChunkOptions{Lookback: 500, Breaks: "."}),
	)
}

func newTestHandler(st *studio.Studio, opts ...server.Option) http.Handler {
	return server.NewHandler(st, &stubVoiceLister{}, append([]server.Option{server.WithLogger(quietLogger())}, opts...)...)
}

func postJSON(h http.Handler, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body["error"]
}

// ---------------------------------------------------------------------------
// GET /health, GET /voices
// ---------------------------------------------------------------------------

func TestHealth_Returns200WithStatusOK(t *testing.T) {
	h := newTestHandler(newStudio(&stubSpeech{}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}

	if body["status"] != "ok" || body["version"] == "" {
		t.Errorf("body = %v", body)
	}
}

func TestVoices_ListsPrebuiltAndLocal(t *testing.T) {
	voices := &stubVoiceLister{voices: []tts.LocalVoice{{ID: "grandpa", Path: "grandpa.safetensors"}}}
	h := server.NewHandler(newStudio(&stubSpeech{}), voices)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/voices", nil))

	var body struct {
		Prebuilt []tts.PrebuiltVoice `json:"prebuilt"`
		Local    []tts.LocalVoice    `json:"local"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if len(body.Prebuilt) != len(tts.PrebuiltVoices()) {
		t.Errorf("prebuilt = %d voices", len(body.Prebuilt))
	}
	if len(body.Local) != 1 || body.Local[0].ID != "grandpa" {
		t.Errorf("local = %+v", body.Local)
	}
}

func TestVoices_EmptyLocalIsArray(t *testing.T) {
	h := newTestHandler(newStudio(&stubSpeech{}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/voices", nil))

	if !strings.Contains(rec.Body.String(), `"local":[]`) {
		t.Errorf("body = %s", rec.Body)
	}
}

// ---------------------------------------------------------------------------
// POST /chunk
// ---------------------------------------------------------------------------

func TestChunk_ReturnsPieces(t *testing.T) {
	h := newTestHandler(newStudio(&stubSpeech{}))

	rec := postJSON(h, "/chunk", `{"text":"Aaaa. Bbbb."}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}

	var body struct {
		Count  int      `json:"count"`
		Chunks []string `json:"chunks"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Count != 2 || body.Chunks[0] != "Aaaa." || body.Chunks[1] != "Bbbb." {
		t.Errorf("body = %+v", body)
	}
}

// ---------------------------------------------------------------------------
// POST /tts
// ---------------------------------------------------------------------------

func TestTTS_ReturnsMergedWAVAndReleasesMedia(t *testing.T) {
	speech := &stubSpeech{}
	st := newStudio(speech)
	h := newTestHandler(st)

	rec := postJSON(h, "/tts", `{"text":"Aaaa. Bbbb.","voice":"Puck"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", rec.Code, rec.Body)
	}

	if ct := rec.Header().Get("Content-Type"); ct != "audio/wav" {
		t.Errorf("Content-Type = %q", ct)
	}
	if rec.Header().Get("X-Chunks-Total") != "2" || rec.Header().Get("X-Chunks-Failed") != "0" {
		t.Errorf("chunk headers = %q/%q", rec.Header().Get("X-Chunks-Total"), rec.Header().Get("X-Chunks-Failed"))
	}
	if !bytes.Equal(rec.Body.Bytes(), audio.Wrap([]byte("Aaaa.Bbbb."))) {
		t.Error("merged WAV does not hold the chunks in order")
	}
	testutil.AssertValidWAV(t, rec.Body.Bytes())
	if n := st.Media().Len(); n != 0 {
		t.Errorf("media holds %d items after response", n)
	}
	if speech.reqs[0].Voice != "Puck" {
		t.Errorf("voice = %q", speech.reqs[0].Voice)
	}
}

func TestTTS_PartialFailureStillMerges(t *testing.T) {
	h := newTestHandler(newStudio(&stubSpeech{fail: map[string]error{"Bbbb.": errors.New("refused")}}))

	rec := postJSON(h, "/tts", `{"text":"Aaaa. Bbbb."}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Chunks-Failed") != "1" {
		t.Errorf("X-Chunks-Failed = %q", rec.Header().Get("X-Chunks-Failed"))
	}
	if !bytes.Equal(rec.Body.Bytes(), audio.Wrap([]byte("Aaaa."))) {
		t.Error("merged WAV should hold only the successful chunk")
	}
}

func TestTTS_Errors(t *testing.T) {
	tests := []struct {
		name       string
		speech     provider.SpeechSynthesizer
		body       string
		wantStatus int
		wantError  string
	}{
		{"invalid JSON", &stubSpeech{}, `{bad`, http.StatusBadRequest, "invalid JSON"},
		{"empty text", &stubSpeech{}, `{"text":"  "}`, http.StatusBadRequest, "text field is required"},
		{
			"every chunk failed",
			&stubSpeech{fail: map[string]error{"Hello": errors.New("boom")}},
			`{"text":"Hello"}`,
			http.StatusBadGateway,
			"Part 1 failed",
		},
		{
			"invalid key",
			&stubSpeech{fail: map[string]error{"Hello": errors.New("API key not valid")}},
			`{"text":"Hello"}`,
			http.StatusBadGateway,
			"Part 1 failed: " + provider.MessageAuth,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(newStudio(tt.speech))

			rec := postJSON(h, "/tts", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("want %d, got %d", tt.wantStatus, rec.Code)
			}
			if msg := decodeError(t, rec); !strings.Contains(msg, tt.wantError) {
				t.Errorf("error = %q; want it to contain %q", msg, tt.wantError)
			}
		})
	}
}

func TestTTS_MethodNotAllowed(t *testing.T) {
	h := newTestHandler(newStudio(&stubSpeech{}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tts", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("want 405, got %d", rec.Code)
	}
}

// ---------------------------------------------------------------------------
// POST /tts/chunks and /media/{id}
// ---------------------------------------------------------------------------

func TestTTSChunks_ThenFetchAndDeleteMedia(t *testing.T) {
	st := newStudio(&stubSpeech{})
	h := newTestHandler(st)

	rec := postJSON(h, "/tts/chunks", `{"text":"Aaaa. Bbbb.","merge":true,"session":"s1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", rec.Code, rec.Body)
	}

	var res studio.Result
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(res.Parts) != 2 || res.Merged == nil {
		t.Fatalf("result = %+v", res)
	}

	id := res.Parts[1].Output.MediaID
	get := httptest.NewRecorder()
	h.ServeHTTP(get, httptest.NewRequest(http.MethodGet, "/media/"+id, nil))
	if get.Code != http.StatusOK {
		t.Fatalf("GET media: %d", get.Code)
	}
	if !bytes.Equal(get.Body.Bytes(), audio.Wrap([]byte("Bbbb."))) {
		t.Error("media body mismatch")
	}
	if cd := get.Header().Get("Content-Disposition"); !strings.Contains(cd, "genstudio-tts-part-2.wav") {
		t.Errorf("Content-Disposition = %q", cd)
	}

	del := httptest.NewRecorder()
	h.ServeHTTP(del, httptest.NewRequest(http.MethodDelete, "/media/"+id, nil))
	if del.Code != http.StatusNoContent {
		t.Fatalf("DELETE media: %d", del.Code)
	}

	again := httptest.NewRecorder()
	h.ServeHTTP(again, httptest.NewRequest(http.MethodDelete, "/media/"+id, nil))
	if again.Code != http.StatusNotFound {
		t.Errorf("second DELETE: %d; want 404", again.Code)
	}
}

func TestTTSChunks_SameSessionReleasesPreviousOutputs(t *testing.T) {
	st := newStudio(&stubSpeech{})
	h := newTestHandler(st)

	postJSON(h, "/tts/chunks", `{"text":"Aaaa. Bbbb.","session":"s1"}`)
	postJSON(h, "/tts/chunks", `{"text":"Cccc.","session":"s1"}`)

	if n := st.Media().Len(); n != 1 {
		t.Errorf("media holds %d items; want 1", n)
	}
}

func TestMedia_NotFound(t *testing.T) {
	h := newTestHandler(newStudio(&stubSpeech{}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/media/nope", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("want 404, got %d", rec.Code)
	}
}

// ---------------------------------------------------------------------------
// /metrics
// ---------------------------------------------------------------------------

func TestMetrics_CountsRequests(t *testing.T) {
	m := metrics.New()
	h := newTestHandler(newStudio(&stubSpeech{}), server.WithMetrics(m))

	postJSON(h, "/chunk", `{"text":"hi"}`)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `genstudio_http_requests_total{route="chunk",status="200"} 1`) {
		t.Errorf("metrics output missing chunk counter:\n%s", rec.Body)
	}
}

func TestMetrics_NotServedWithoutOption(t *testing.T) {
	h := newTestHandler(newStudio(&stubSpeech{}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("want 404, got %d", rec.Code)
	}
}

// ---------------------------------------------------------------------------
// ParseLogLevel
// ---------------------------------------------------------------------------

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"DEBUG", slog.LevelDebug, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		got, err := server.ParseLogLevel(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, %v", tt.in, got, err)
		}
	}
}

var errNope = errors.New("nope")
