package tts

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// LocalVoice is a voice embedding on disk, usually exported from a sample
// recording for the local speech backend.
type LocalVoice struct {
	ID          string `json:"id"`
	Path        string `json:"path"`
	Description string `json:"description,omitempty"`
	Source      string `json:"source,omitempty"`
}

type voiceManifest struct {
	Voices []LocalVoice `json:"voices"`
}

// VoiceManager resolves local voices from a JSON manifest:
//
//	{"voices": [{"id": "narrator", "path": "narrator.safetensors"}]}
//
// Relative paths are resolved against the manifest directory.
type VoiceManager struct {
	mu           sync.RWMutex
	manifestPath string
	baseDir      string
	voices       []LocalVoice
	byID         map[string]LocalVoice
}

// NewVoiceManager loads manifestPath. A missing file yields an empty
// manager that Register can populate.
func NewVoiceManager(manifestPath string) (*VoiceManager, error) {
	if manifestPath == "" {
		return nil, errors.New("manifest path is required")
	}

	mgr := &VoiceManager{
		manifestPath: manifestPath,
		baseDir:      filepath.Dir(manifestPath),
		byID:         make(map[string]LocalVoice),
	}

	data, err := os.ReadFile(manifestPath)
	if errors.Is(err, os.ErrNotExist) {
		return mgr, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read voice manifest: %w", err)
	}

	var manifest voiceManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("decode voice manifest: %w", err)
	}

	for _, v := range manifest.Voices {
		if err := mgr.add(v); err != nil {
			return nil, err
		}
	}
	return mgr, nil
}

func (m *VoiceManager) add(v LocalVoice) error {
	if v.ID == "" {
		return errors.New("voice manifest contains empty id")
	}
	if v.Path == "" {
		return fmt.Errorf("voice %q has empty path", v.ID)
	}
	if _, exists := m.byID[v.ID]; exists {
		return fmt.Errorf("duplicate voice id %q", v.ID)
	}
	m.voices = append(m.voices, v)
	m.byID[v.ID] = v
	return nil
}

// ListVoices returns the voices in manifest order.
func (m *VoiceManager) ListVoices() []LocalVoice {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]LocalVoice(nil), m.voices...)
}

// Dir is the directory relative voice paths resolve against.
func (m *VoiceManager) Dir() string { return m.baseDir }

// Has reports whether id is a known local voice.
func (m *VoiceManager) Has(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.byID[id]
	return ok
}

// ResolvePath returns the absolute embedding path for id and checks that it
// exists.
func (m *VoiceManager) ResolvePath(id string) (string, error) {
	m.mu.RLock()
	v, ok := m.byID[id]
	m.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("unknown voice id %q", id)
	}

	resolved := v.Path
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(m.baseDir, resolved)
	}
	resolved = filepath.Clean(resolved)

	if _, err := os.Stat(resolved); err != nil {
		return "", fmt.Errorf("voice file for %q: %w", id, err)
	}
	return resolved, nil
}

// Register adds v and rewrites the manifest atomically.
func (m *VoiceManager) Register(v LocalVoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.add(v); err != nil {
		return err
	}

	data, err := json.MarshalIndent(voiceManifest{Voices: m.voices}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode voice manifest: %w", err)
	}

	if err := os.MkdirAll(m.baseDir, 0o755); err != nil {
		return fmt.Errorf("create voice directory: %w", err)
	}

	tmp := m.manifestPath + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write voice manifest: %w", err)
	}
	if err := os.Rename(tmp, m.manifestPath); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace voice manifest: %w", err)
	}
	return nil
}
