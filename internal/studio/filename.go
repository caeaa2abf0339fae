package studio

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

const filenamePrefix = "genstudio"

// PartFilename names the WAV of chunk index (zero based).
func PartFilename(index int) string {
	return fmt.Sprintf("%s-tts-part-%d.wav", filenamePrefix, index+1)
}

// MergedFilename names a merged speech file.
func MergedFilename(t time.Time) string {
	return fmt.Sprintf("%s-tts-merged-%d.wav", filenamePrefix, t.UnixMilli())
}

// DialogueFilename names a dialogue clip.
func DialogueFilename(t time.Time) string {
	return fmt.Sprintf("%s-dialogue-%d.wav", filenamePrefix, t.UnixMilli())
}

// ClonedVoiceFilename names speech produced with a cloned voice.
func ClonedVoiceFilename(voice string) string {
	return fmt.Sprintf("%s-cloned-voice-%s.wav", filenamePrefix, slug(voice, "voice"))
}

// SceneFilename names the narration of one storyboard scene.
func SceneFilename(scene int) string {
	return fmt.Sprintf("%s-storyboard-scene-%d.wav", filenamePrefix, scene)
}

// StoryboardAudioFilename names the merged narration of a storyboard.
func StoryboardAudioFilename(title string) string {
	return slug(title, "storyboard") + "-audio-merged.wav"
}

// ImageFilename names generated image index (zero based).
func ImageFilename(t time.Time, index int) string {
	return fmt.Sprintf("%s-image-%d-%d.png", filenamePrefix, t.UnixMilli(), index+1)
}

// VideoFilename names generated video index (zero based).
func VideoFilename(t time.Time, index int) string {
	return fmt.Sprintf("%s-video-%d-%d.mp4", filenamePrefix, t.UnixMilli(), index+1)
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]`)

// slug lowercases s and replaces every character outside [a-z0-9] with an
// underscore.
func slug(s, fallback string) string {
	out := nonAlnum.ReplaceAllString(strings.ToLower(s), "_")
	if strings.Trim(out, "_") == "" {
		return fallback
	}
	return out
}
