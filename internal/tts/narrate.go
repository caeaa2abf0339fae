package tts

import (
	"context"
	"strings"

	"github.com/example/go-genstudio/internal/provider"
)

// VoiceSynthesizer binds a speech provider to one voice and reading style.
func VoiceSynthesizer(sp provider.SpeechSynthesizer, voice, style string) Synthesizer {
	return SynthesizerFunc(func(ctx context.Context, text string) ([]byte, error) {
		return sp.Speak(ctx, provider.SpeechRequest{Text: text, Voice: voice, Style: style})
	})
}

// SceneSegments maps storyboard scenes to segments indexed by scene number.
// Scenes without narration are skipped.
func SceneSegments(sb provider.Storyboard) []Segment {
	segments := make([]Segment, 0, len(sb.Scenes))
	for _, sc := range sb.Scenes {
		if strings.TrimSpace(sc.Narration) == "" {
			continue
		}
		segments = append(segments, Segment{Index: sc.Number, Text: sc.Narration})
	}
	return segments
}

// NarrateScenes synthesizes the narration of every scene. Failed scenes are
// dropped from the result, which stays ordered by scene number.
func (o *Orchestrator) NarrateScenes(ctx context.Context, sb provider.Storyboard, onResult func(ChunkResult)) Results {
	all := o.RunSegments(ctx, SceneSegments(sb), onResult)

	ok := make(Results, 0, len(all))
	for _, r := range all {
		if r.OK() {
			ok = append(ok, r)
		}
	}
	return ok
}
