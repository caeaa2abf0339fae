package config

import (
	"fmt"
	"strings"
)

const (
	BackendGemini = "gemini"
	BackendPocket = "pocket"
)

// NormalizeBackend resolves a speech backend name. Empty means gemini and
// "local" and "pocket-tts" are aliases for pocket.
func NormalizeBackend(raw string) (string, error) {
	backend := strings.ToLower(strings.TrimSpace(raw))
	switch backend {
	case "", BackendGemini:
		return BackendGemini, nil
	case BackendPocket, "pocket-tts", "local":
		return BackendPocket, nil
	default:
		return "", fmt.Errorf(
			"invalid backend %q (expected %s|%s)",
			raw,
			BackendGemini,
			BackendPocket,
		)
	}
}
