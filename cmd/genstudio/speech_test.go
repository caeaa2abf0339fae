package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/example/go-genstudio/internal/audio"
	"github.com/example/go-genstudio/internal/provider"
	"github.com/example/go-genstudio/internal/testutil"
	"github.com/example/go-genstudio/internal/tts"
)

func TestChunkCmd_SplitsAtSentences(t *testing.T) {
	out, _, err := execute(t, "", "chunk", "--text", "Aaaa. Bbbb.", "--tts-chunk-limit", "6", "--json")
	if err != nil {
		t.Fatalf("chunk: %v", err)
	}

	var chunks []string
	if err := json.Unmarshal([]byte(out), &chunks); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(chunks) != 2 || chunks[0] != "Aaaa." || chunks[1] != "Bbbb." {
		t.Errorf("chunks = %q", chunks)
	}
}

func TestChunkCmd_ReadsStdin(t *testing.T) {
	out, _, err := execute(t, "Hello there.", "chunk")
	if err != nil {
		t.Fatalf("chunk: %v", err)
	}
	if !strings.Contains(out, "--- part 1 (12 chars) ---\nHello there.") {
		t.Errorf("output = %q", out)
	}
}

func TestChunkCmd_EmptyInput(t *testing.T) {
	if _, _, err := execute(t, "   ", "chunk"); err == nil {
		t.Fatal("expected an error for empty input")
	}
}

func TestSynthCmd_MergesChunksInOrder(t *testing.T) {
	fake := &fakeGemini{}
	stubGemini(t, fake)

	outPath := filepath.Join(t.TempDir(), "speech.wav")
	_, stderr, err := execute(t, "", "synth",
		"--text", "Aaaa. Bbbb.",
		"--voice", "Puck",
		"--tts-chunk-limit", "6",
		"--provider-api-key", "AIza-test-key",
		"--out", outPath,
	)
	if err != nil {
		t.Fatalf("synth: %v\n%s", err, stderr)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, audio.Wrap([]byte("Aaaa.Bbbb."))) {
		t.Error("merged file does not hold the chunks in order")
	}
	testutil.AssertValidWAV(t, data)

	if len(fake.speech) != 2 || fake.speech[0].Voice != "Puck" {
		t.Errorf("speech requests = %+v", fake.speech)
	}
	if fake.cfg.APIKey != "AIza-test-key" || !fake.closed {
		t.Errorf("client cfg = %+v, closed = %v", fake.cfg, fake.closed)
	}
	if !strings.Contains(stderr, "Generating 2 audio parts in parallel...") {
		t.Errorf("progress not reported: %q", stderr)
	}
}

func TestSynthCmd_NoMergeWritesParts(t *testing.T) {
	stubGemini(t, &fakeGemini{})

	dir := t.TempDir()
	_, stderr, err := execute(t, "", "synth",
		"--text", "Aaaa. Bbbb.",
		"--tts-chunk-limit", "6",
		"--provider-api-key", "AIza-test-key",
		"--paths-output-dir", dir,
		"--no-merge",
	)
	if err != nil {
		t.Fatalf("synth: %v\n%s", err, stderr)
	}

	for i, want := range []string{"Aaaa.", "Bbbb."} {
		data, err := os.ReadFile(filepath.Join(dir, "genstudio-tts-part-"+string(rune('1'+i))+".wav"))
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(data, audio.Wrap([]byte(want))) {
			t.Errorf("part %d = %q", i+1, data)
		}
	}
}

func TestSynthCmd_MissingKey(t *testing.T) {
	_, _, err := execute(t, "", "synth", "--text", "hello")
	if !errors.Is(err, provider.ErrMissingCredential) {
		t.Fatalf("err = %v; want ErrMissingCredential", err)
	}
	if !strings.Contains(err.Error(), "genstudio key set") {
		t.Errorf("error is not actionable: %v", err)
	}
}

func TestSynthCmd_UsesStoredKey(t *testing.T) {
	fake := &fakeGemini{}
	stubGemini(t, fake)

	state := t.TempDir()
	if _, _, err := execute(t, "", "key", "set", "AIza-stored-key", "--paths-state-dir", state); err != nil {
		t.Fatalf("key set: %v", err)
	}

	_, _, err := execute(t, "", "synth", "--text", "hello", "--out", filepath.Join(t.TempDir(), "o.wav"), "--paths-state-dir", state)
	if err != nil {
		t.Fatalf("synth: %v", err)
	}
	if fake.cfg.APIKey != "AIza-stored-key" {
		t.Errorf("api key = %q", fake.cfg.APIKey)
	}
}

func TestMergeCmd(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.wav")
	b := filepath.Join(dir, "b.wav")
	if err := os.WriteFile(a, audio.Wrap([]byte("ab")), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(b, audio.Wrap([]byte("cd")), 0o644); err != nil {
		t.Fatal(err)
	}

	orig := nowFunc
	t.Cleanup(func() { nowFunc = orig })
	nowFunc = func() time.Time { return time.UnixMilli(1700000000000) }

	_, _, err := execute(t, "", "merge", b, a, "--paths-output-dir", dir)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "genstudio-tts-merged-1700000000000.wav"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, audio.Wrap([]byte("cdab"))) {
		t.Errorf("merged = %q", data)
	}
}

func TestMergeCmd_MissingFile(t *testing.T) {
	if _, _, err := execute(t, "", "merge", "/nonexistent/a.wav"); err == nil {
		t.Fatal("expected an error")
	}
}

func TestVoicesCmd_JSON(t *testing.T) {
	dir := t.TempDir()
	manifest := filepath.Join(dir, "voices.json")
	body := `{"voices":[{"id":"grandpa","path":"grandpa.safetensors","description":"Warm"}]}`
	if err := os.WriteFile(manifest, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	out, _, err := execute(t, "", "voices", "--json", "--paths-voices-manifest", manifest)
	if err != nil {
		t.Fatalf("voices: %v", err)
	}

	var got struct {
		Prebuilt []tts.PrebuiltVoice `json:"prebuilt"`
		Local    []tts.LocalVoice    `json:"local"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Prebuilt) != len(tts.PrebuiltVoices()) {
		t.Errorf("prebuilt = %d", len(got.Prebuilt))
	}
	if len(got.Local) != 1 || got.Local[0].ID != "grandpa" {
		t.Errorf("local = %+v", got.Local)
	}
}

func TestPrintVoices_Text(t *testing.T) {
	var buf bytes.Buffer
	err := printVoices(&buf, []tts.PrebuiltVoice{{ID: "Kore", Description: "Firm"}}, nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Kore") || strings.Contains(buf.String(), "Local voices") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestParseSpeakers(t *testing.T) {
	tests := []struct {
		name    string
		raw     []string
		want    []provider.Speaker
		wantErr bool
	}{
		{
			name: "name and voice",
			raw:  []string{"Joe=Kore", " Jane = Puck "},
			want: []provider.Speaker{{Name: "Joe", Voice: "Kore"}, {Name: "Jane", Voice: "Puck"}},
		},
		{
			name: "missing voice uses default",
			raw:  []string{"Joe"},
			want: []provider.Speaker{{Name: "Joe", Voice: tts.DefaultVoice}},
		},
		{name: "missing name", raw: []string{"=Kore"}, wantErr: true},
		{name: "unknown voice", raw: []string{"Joe=Nobody"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSpeakers(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %+v", got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("speaker %d = %+v; want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestDialogueCmd_NeedsTwoSpeakers(t *testing.T) {
	stubGemini(t, &fakeGemini{})

	_, _, err := execute(t, "", "dialogue", "--text", "Joe: hi", "--speaker", "Joe=Kore", "--provider-api-key", "k")
	if err == nil || !strings.Contains(err.Error(), "at least 2 speakers") {
		t.Fatalf("err = %v", err)
	}
}
