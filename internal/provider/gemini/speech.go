package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/example/go-genstudio/internal/audio"
	"github.com/example/go-genstudio/internal/provider"
)

func prebuiltVoice(name string) *genai.VoiceConfig {
	return &genai.VoiceConfig{PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: name}}
}

func (c *Client) speak(ctx context.Context, prompt string, speech *genai.SpeechConfig) ([]byte, error) {
	resp, err := c.media.GenerateContent(ctx, c.cfg.TTSModel,
		[]*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)},
		&genai.GenerateContentConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig:       speech,
			SafetySettings:     safetySettings(),
		})
	if err != nil {
		return nil, err
	}

	blob, ok := inlineData(resp)
	if !ok {
		return nil, feedback(resp).Refusal("No audio was returned.", provider.ErrNoAudio)
	}
	return audio.Wrap(blob.Data), nil
}

// Speak synthesizes text with a prebuilt voice and returns a 24 kHz mono
// WAV. A non-empty style is prepended as a reading instruction.
func (c *Client) Speak(ctx context.Context, req provider.SpeechRequest) ([]byte, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("speech text is required")
	}
	return c.speak(ctx, speechPrompt(req), &genai.SpeechConfig{VoiceConfig: prebuiltVoice(req.Voice)})
}

// SpeakDialogue synthesizes a conversation with one voice per speaker. The
// provider returns the whole dialogue as a single clip.
func (c *Client) SpeakDialogue(ctx context.Context, req provider.DialogueRequest) ([]byte, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	speakers := make([]*genai.SpeakerVoiceConfig, len(req.Speakers))
	for i, s := range req.Speakers {
		speakers[i] = &genai.SpeakerVoiceConfig{Speaker: s.Name, VoiceConfig: prebuiltVoice(s.Voice)}
	}

	return c.speak(ctx, dialoguePrompt(req), &genai.SpeechConfig{
		MultiSpeakerVoiceConfig: &genai.MultiSpeakerVoiceConfig{SpeakerVoiceConfigs: speakers},
	})
}
