package gemini

import (
	legacy "github.com/google/generative-ai-go/genai"
	"google.golang.org/genai"

	"github.com/example/go-genstudio/internal/provider"
)

// Every request disables blocking for the four adjustable harm categories
// to avoid false positives on harmless prompts.
func safetySettings() []*genai.SafetySetting {
	categories := []genai.HarmCategory{
		genai.HarmCategoryHarassment,
		genai.HarmCategoryHateSpeech,
		genai.HarmCategorySexuallyExplicit,
		genai.HarmCategoryDangerousContent,
	}
	out := make([]*genai.SafetySetting, len(categories))
	for i, c := range categories {
		out[i] = &genai.SafetySetting{Category: c, Threshold: genai.HarmBlockThresholdBlockNone}
	}
	return out
}

func legacySafetySettings() []*legacy.SafetySetting {
	categories := []legacy.HarmCategory{
		legacy.HarmCategoryHarassment,
		legacy.HarmCategoryHateSpeech,
		legacy.HarmCategorySexuallyExplicit,
		legacy.HarmCategoryDangerousContent,
	}
	out := make([]*legacy.SafetySetting, len(categories))
	for i, c := range categories {
		out[i] = &legacy.SafetySetting{Category: c, Threshold: legacy.HarmBlockNone}
	}
	return out
}

// feedback collects the refusal details of a content response.
func feedback(resp *genai.GenerateContentResponse) provider.Feedback {
	var f provider.Feedback
	if resp == nil {
		return f
	}

	if pf := resp.PromptFeedback; pf != nil {
		f.BlockReason = string(pf.BlockReason)
		f.BlockReasonMessage = pf.BlockReasonMessage
	}

	if len(resp.Candidates) > 0 && resp.Candidates[0] != nil {
		c := resp.Candidates[0]
		f.FinishReason = string(c.FinishReason)
		f.FinishMessage = c.FinishMessage
		if c.Content != nil {
			for _, p := range c.Content.Parts {
				if p != nil {
					f.Text += p.Text
				}
			}
		}
	}
	return f
}

// inlineData returns the first inline payload of the first candidate.
func inlineData(resp *genai.GenerateContentResponse) (*genai.Blob, bool) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil || resp.Candidates[0].Content == nil {
		return nil, false
	}
	for _, p := range resp.Candidates[0].Content.Parts {
		if p != nil && p.InlineData != nil && len(p.InlineData.Data) > 0 {
			return p.InlineData, true
		}
	}
	return nil, false
}
