package gemini

import (
	"context"
	"fmt"
	"strings"

	legacy "github.com/google/generative-ai-go/genai"

	"github.com/example/go-genstudio/internal/provider"
)

func stringSchema() *legacy.Schema { return &legacy.Schema{Type: legacy.TypeString} }

func stringArraySchema() *legacy.Schema {
	return &legacy.Schema{Type: legacy.TypeArray, Items: stringSchema()}
}

var promptsSchema = &legacy.Schema{
	Type: legacy.TypeObject,
	Properties: map[string]*legacy.Schema{
		"english":     stringSchema(),
		"translation": stringSchema(),
	},
	Required: []string{"english", "translation"},
}

var storyboardSchema = &legacy.Schema{
	Type: legacy.TypeObject,
	Properties: map[string]*legacy.Schema{
		"title":   stringSchema(),
		"logline": stringSchema(),
		"scenes": {
			Type: legacy.TypeArray,
			Items: &legacy.Schema{
				Type: legacy.TypeObject,
				Properties: map[string]*legacy.Schema{
					"scene":       {Type: legacy.TypeInteger},
					"description": stringSchema(),
					"narration":   stringSchema(),
					"prompt":      stringSchema(),
				},
				Required: []string{"scene", "description", "narration", "prompt"},
			},
		},
	},
	Required: []string{"title", "logline", "scenes"},
}

var scriptSchema = &legacy.Schema{
	Type: legacy.TypeObject,
	Properties: map[string]*legacy.Schema{
		"titles":             stringArraySchema(),
		"hook":               stringSchema(),
		"descriptions":       stringArraySchema(),
		"thumbnail_captions": stringArraySchema(),
		"story_parts":        stringArraySchema(),
	},
	Required: []string{"titles", "hook", "descriptions", "thumbnail_captions", "story_parts"},
}

func classificationSchema() *legacy.Schema {
	names := make([]string, 0, len(provider.Branches()))
	for _, b := range provider.Branches() {
		names = append(names, string(b))
	}
	return &legacy.Schema{
		Type: legacy.TypeObject,
		Properties: map[string]*legacy.Schema{
			"category": {Type: legacy.TypeString, Format: "enum", Enum: names},
		},
		Required: []string{"category"},
	}
}

// parsePrompts accepts the structured answer or, when the model ignored the
// schema, uses the raw text for both fields.
func parsePrompts(text string) provider.Prompts {
	var p provider.Prompts
	if err := decodeJSON(text, &p); err == nil && p.English != "" && p.Translation != "" {
		return p
	}
	raw := strings.TrimSpace(text)
	return provider.Prompts{English: raw, Translation: raw}
}

// ExpandIdea turns a short idea into a detailed English prompt plus a
// translation.
func (c *Client) ExpandIdea(ctx context.Context, req provider.IdeaRequest) (provider.Prompts, error) {
	if strings.TrimSpace(req.Idea) == "" {
		return provider.Prompts{}, fmt.Errorf("idea is required")
	}

	lang := c.language(req.Language)
	prompt := freestyleIdeaPrompt(req, lang)
	if req.Mode == provider.ModeFocused {
		if _, err := provider.ParseBranch(string(req.Branch)); err != nil {
			return provider.Prompts{}, err
		}
		prompt = focusedIdeaPrompt(req, lang)
	}

	text, err := c.text.Generate(ctx, textRequest{Model: c.cfg.TextModel, Prompt: prompt, Schema: promptsSchema})
	if err != nil {
		return provider.Prompts{}, err
	}
	return parsePrompts(text), nil
}

// AnalyzeImage describes img as a generation prompt. Focused mode first
// classifies the image into a Branch and then follows that branch's guide.
func (c *Client) AnalyzeImage(ctx context.Context, req provider.AnalyzeRequest) (provider.Prompts, error) {
	lang := c.language(req.Language)
	images := []provider.Image{req.Image}

	if req.Mode != provider.ModeFocused {
		text, err := c.text.Generate(ctx, textRequest{
			Model:  c.cfg.TextModel,
			Prompt: freestyleAnalysisPrompt(req.Options, lang),
			Images: images,
			Schema: promptsSchema,
		})
		if err != nil {
			return provider.Prompts{}, err
		}
		return parsePrompts(text), nil
	}

	raw, err := c.text.Generate(ctx, textRequest{
		Model:  c.cfg.TextModel,
		Prompt: classificationPrompt(),
		Images: images,
		Schema: classificationSchema(),
	})
	if err != nil {
		return provider.Prompts{}, err
	}

	var class struct {
		Category string `json:"category"`
	}
	if err := decodeJSON(raw, &class); err != nil {
		return provider.Prompts{}, fmt.Errorf("could not classify the image; model returned %q: %w", raw, err)
	}
	branch, err := provider.ParseBranch(class.Category)
	if err != nil {
		return provider.Prompts{}, fmt.Errorf("could not classify the image; model returned %q: %w", raw, err)
	}

	c.log.DebugContext(ctx, "image classified", "category", branch)

	text, err := c.text.Generate(ctx, textRequest{
		Model:  c.cfg.TextModel,
		Prompt: focusedAnalysisPrompt(branch, req.Options, lang),
		Images: images,
		Schema: promptsSchema,
	})
	if err != nil {
		return provider.Prompts{}, err
	}
	return parsePrompts(text), nil
}

// Storyboard plans a video from a topic or a script.
func (c *Client) Storyboard(ctx context.Context, req provider.StoryboardRequest) (provider.Storyboard, error) {
	if strings.TrimSpace(req.Topic) == "" && strings.TrimSpace(req.Script) == "" {
		return provider.Storyboard{}, fmt.Errorf("storyboard needs a topic or a script")
	}

	text, err := c.text.Generate(ctx, textRequest{
		Model:  c.cfg.TextModel,
		Prompt: storyboardPrompt(req, c.language(req.Language)),
		Schema: storyboardSchema,
	})
	if err != nil {
		return provider.Storyboard{}, err
	}

	var sb provider.Storyboard
	if err := decodeJSON(text, &sb); err != nil {
		return provider.Storyboard{}, err
	}
	return sb, nil
}

// YouTubeScript writes titles, hook, descriptions, captions and a seven part
// story for a topic.
func (c *Client) YouTubeScript(ctx context.Context, req provider.ScriptRequest) (provider.YouTubeScript, error) {
	if strings.TrimSpace(req.Topic) == "" {
		return provider.YouTubeScript{}, fmt.Errorf("script topic is required")
	}

	text, err := c.text.Generate(ctx, textRequest{
		Model:  c.cfg.TextModel,
		Prompt: scriptPrompt(req, c.language(req.Language)),
		Schema: scriptSchema,
	})
	if err != nil {
		return provider.YouTubeScript{}, err
	}

	var s provider.YouTubeScript
	if err := decodeJSON(text, &s); err != nil {
		return provider.YouTubeScript{}, err
	}
	return s, nil
}

// CloneStory rewrites a story at the requested creativity level.
func (c *Client) CloneStory(ctx context.Context, req provider.StoryCloneRequest) (string, error) {
	if strings.TrimSpace(req.Story) == "" {
		return "", fmt.Errorf("original story is required")
	}
	return c.text.Generate(ctx, textRequest{
		Model:  c.cfg.ProModel,
		Prompt: cloneStoryPrompt(req, c.language(req.Language)),
	})
}

// AnalyzeChannel streams a Markdown analysis of a YouTube channel and
// reports progress as text arrives.
func (c *Client) AnalyzeChannel(ctx context.Context, req provider.ChannelAnalysisRequest, progress provider.Progress) (string, error) {
	if strings.TrimSpace(req.ChannelURL) == "" {
		return "", fmt.Errorf("channel URL is required")
	}

	progress.Report("Preparing analysis...")

	received := 0
	text, err := c.text.Stream(ctx, textRequest{
		Model:  c.cfg.ProModel,
		Prompt: channelAnalysisPrompt(req, c.language(req.Language)),
	}, func(chunk string) {
		received += len(chunk)
		progress.Report("Analyzing channel... (%d characters received)", received)
	})
	if err != nil {
		return "", err
	}

	progress.Report("Analysis complete!")
	return text, nil
}

func (c *Client) language(lang string) string {
	if strings.TrimSpace(lang) != "" {
		return lang
	}
	return c.cfg.Language
}
