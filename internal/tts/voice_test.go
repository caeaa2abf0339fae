package tts

import (
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, dir, body string) string {
	t.Helper()

	path := filepath.Join(dir, "voices.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	return path
}

func TestNewVoiceManager_Errors(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
	}{
		{"invalid json", "{bad json"},
		{"empty id", `{"voices":[{"id":"","path":"v.bin"}]}`},
		{"empty path", `{"voices":[{"id":"v1","path":""}]}`},
		{"duplicate id", `{"voices":[{"id":"v1","path":"a.bin"},{"id":"v1","path":"b.bin"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeManifest(t, t.TempDir(), tt.manifest)

			if _, err := NewVoiceManager(path); err == nil {
				t.Error("NewVoiceManager = nil error; want error")
			}
		})
	}

	if _, err := NewVoiceManager(""); err == nil {
		t.Error("NewVoiceManager(\"\") = nil error; want error")
	}
}

func TestNewVoiceManager_MissingManifestIsEmpty(t *testing.T) {
	mgr, err := NewVoiceManager(filepath.Join(t.TempDir(), "voices.json"))
	if err != nil {
		t.Fatalf("NewVoiceManager: %v", err)
	}

	if len(mgr.ListVoices()) != 0 {
		t.Error("expected no voices")
	}
}

func TestVoiceManager_ListAndResolve(t *testing.T) {
	tmp := t.TempDir()
	voiceFile := filepath.Join(tmp, "narrator.safetensors")

	if err := os.WriteFile(voiceFile, []byte("voice"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	path := writeManifest(t, tmp, `{"voices":[{"id":"narrator","path":"narrator.safetensors","description":"calm"}]}`)

	mgr, err := NewVoiceManager(path)
	if err != nil {
		t.Fatalf("NewVoiceManager: %v", err)
	}

	voices := mgr.ListVoices()
	if len(voices) != 1 || voices[0].ID != "narrator" || voices[0].Description != "calm" {
		t.Fatalf("voices = %+v", voices)
	}

	got, err := mgr.ResolvePath("narrator")
	if err != nil {
		t.Fatalf("ResolvePath: %v", err)
	}

	if got != voiceFile {
		t.Errorf("ResolvePath = %q; want %q", got, voiceFile)
	}

	if _, err := mgr.ResolvePath("unknown"); err == nil {
		t.Error("expected error for unknown voice")
	}
}

func TestVoiceManager_ResolveMissingFile(t *testing.T) {
	path := writeManifest(t, t.TempDir(), `{"voices":[{"id":"v1","path":"missing.bin"}]}`)

	mgr, err := NewVoiceManager(path)
	if err != nil {
		t.Fatalf("NewVoiceManager: %v", err)
	}

	if _, err := mgr.ResolvePath("v1"); err == nil {
		t.Error("ResolvePath(missing file) = nil error; want error")
	}
}

func TestVoiceManager_ListReturnsCopy(t *testing.T) {
	path := writeManifest(t, t.TempDir(), `{"voices":[{"id":"v1","path":"v.bin"}]}`)

	mgr, err := NewVoiceManager(path)
	if err != nil {
		t.Fatalf("NewVoiceManager: %v", err)
	}

	first := mgr.ListVoices()
	first[0].ID = "mutated"

	if mgr.ListVoices()[0].ID != "v1" {
		t.Error("ListVoices did not return an independent copy")
	}
}

func TestVoiceManager_RegisterPersists(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "voices", "voices.json")

	mgr, err := NewVoiceManager(path)
	if err != nil {
		t.Fatalf("NewVoiceManager: %v", err)
	}

	if err := mgr.Register(LocalVoice{ID: "me", Path: "me.safetensors", Source: "sample.wav"}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := mgr.Register(LocalVoice{ID: "me", Path: "other.safetensors"}); err == nil {
		t.Error("expected duplicate registration to fail")
	}

	reloaded, err := NewVoiceManager(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}

	if !reloaded.Has("me") {
		t.Error("registered voice missing after reload")
	}

	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary manifest left behind")
	}
}
