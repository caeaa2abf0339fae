// Package studio dispatches generation requests to the providers and owns
// the bookkeeping around them: premium state, error conversion, media
// lifetimes and history.
package studio

import "fmt"

// Kind identifies a feature area.
type Kind string

const (
	KindCreateImage   Kind = "create_image"
	KindImageEdit     Kind = "ai_gen"
	KindOldPhoto      Kind = "process_old_image"
	KindComposite     Kind = "character_compositing"
	KindVideo         Kind = "video"
	KindChannel       Kind = "youtube_tools"
	KindStoryboard    Kind = "video_storyboard"
	KindSpeech        Kind = "tts"
	KindVoiceCloning  Kind = "voice_cloning"
	KindStoryCloning  Kind = "story_cloning"
	KindYouTubeScript Kind = "youtube_script"
)

// Kinds lists every feature area.
func Kinds() []Kind {
	return []Kind{
		KindCreateImage, KindImageEdit, KindOldPhoto, KindComposite, KindVideo,
		KindChannel, KindStoryboard, KindSpeech, KindVoiceCloning, KindStoryCloning,
		KindYouTubeScript,
	}
}

// ParseKind accepts a feature identifier.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds() {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown feature %q", s)
}

// Premium reports whether k needs a credential with billing enabled.
// Channel analysis and storyboards run on the free tier.
func (k Kind) Premium() bool {
	switch k {
	case KindChannel, KindStoryboard:
		return false
	default:
		return true
	}
}
