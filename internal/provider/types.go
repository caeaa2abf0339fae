// Package provider defines the boundary to generative APIs: request and
// response types, capability interfaces and error classification.
package provider

import (
	"context"
	"fmt"
	"strings"
)

// Branch is the subject category used to guide prompt expansion.
type Branch string

const (
	BranchModernHuman         Branch = "modern_human"
	BranchPrehistoricHuman    Branch = "prehistoric_human"
	BranchModernCreature      Branch = "modern_creature"
	BranchPrehistoricCreature Branch = "prehistoric_creature"
	BranchLandscapeScene      Branch = "landscape_scene"
)

// Branches lists every category in display order.
func Branches() []Branch {
	return []Branch{
		BranchModernHuman,
		BranchPrehistoricHuman,
		BranchModernCreature,
		BranchPrehistoricCreature,
		BranchLandscapeScene,
	}
}

// ParseBranch validates s as a Branch.
func ParseBranch(s string) (Branch, error) {
	for _, b := range Branches() {
		if string(b) == s {
			return b, nil
		}
	}
	return "", fmt.Errorf("unknown branch %q", s)
}

// Mode selects how much structure prompt expansion and image analysis apply.
type Mode string

const (
	ModeFreestyle Mode = "freestyle"
	ModeFocused   Mode = "focused"
)

// TechOptions are optional technical preferences for image prompts. Empty
// fields and the value "default" are ignored.
type TechOptions struct {
	Style   string `json:"style,omitempty"`
	Layout  string `json:"layout,omitempty"`
	Angle   string `json:"angle,omitempty"`
	Quality string `json:"quality,omitempty"`
}

// Preferences renders the chosen options as "- Key: value" lines.
func (o TechOptions) Preferences() []string {
	fields := []struct{ key, value string }{
		{"Style", o.Style},
		{"Layout", o.Layout},
		{"Angle", o.Angle},
		{"Quality", o.Quality},
	}

	var lines []string
	for _, f := range fields {
		v := strings.TrimSpace(f.value)
		if v == "" || strings.EqualFold(v, "default") {
			continue
		}
		lines = append(lines, "- "+f.key+": "+v)
	}
	return lines
}

// Prompts is an English generation prompt plus a translation into the
// user's language.
type Prompts struct {
	English     string `json:"english"`
	Translation string `json:"translation"`
}

// AspectRatio is an image or video frame ratio.
type AspectRatio string

const (
	AspectAuto     AspectRatio = "auto"
	AspectSquare   AspectRatio = "1:1"
	AspectWide     AspectRatio = "16:9"
	AspectTall     AspectRatio = "9:16"
	AspectClassic  AspectRatio = "4:3"
	AspectPortrait AspectRatio = "3:4"
)

// FixedAspectRatios lists the concrete ratios image models accept.
func FixedAspectRatios() []AspectRatio {
	return []AspectRatio{AspectSquare, AspectWide, AspectTall, AspectClassic, AspectPortrait}
}

// ParseAspectRatio validates s. The empty string means AspectAuto.
func ParseAspectRatio(s string) (AspectRatio, error) {
	if s == "" || s == string(AspectAuto) {
		return AspectAuto, nil
	}
	for _, r := range FixedAspectRatios() {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("unsupported aspect ratio %q", s)
}

// Value returns width/height, or 0 for AspectAuto and unknown values.
func (r AspectRatio) Value() float64 {
	var w, h float64
	if _, err := fmt.Sscanf(string(r), "%g:%g", &w, &h); err != nil || h == 0 {
		return 0
	}
	return w / h
}

// ClosestAspectRatio picks the fixed ratio nearest to width/height.
func ClosestAspectRatio(width, height int) AspectRatio {
	if width <= 0 || height <= 0 {
		return AspectSquare
	}

	target := float64(width) / float64(height)
	best := AspectSquare
	bestDiff := -1.0
	for _, r := range FixedAspectRatios() {
		d := r.Value() - target
		if d < 0 {
			d = -d
		}
		if bestDiff < 0 || d < bestDiff {
			best, bestDiff = r, d
		}
	}
	return best
}

// Image is an encoded image with its MIME type.
type Image struct {
	Data     []byte
	MIMEType string
}

// IdeaRequest expands a short idea into a detailed image prompt.
type IdeaRequest struct {
	Idea     string
	Branch   Branch
	Options  TechOptions
	Mode     Mode
	Language string
}

// AnalyzeRequest derives an image prompt from an existing image.
type AnalyzeRequest struct {
	Image    Image
	Mode     Mode
	Options  TechOptions
	Language string
}

// ImageRequest generates Count images from Prompt.
type ImageRequest struct {
	Prompt      string
	Count       int
	AspectRatio AspectRatio
}

// EditRequest edits Subject following Instruction. Variation > 0 asks the
// model for a distinct variant.
type EditRequest struct {
	Subject     Image
	Instruction string
	AspectRatio AspectRatio
	Variation   int
}

// RestoreRequest restores an old photograph. Gender and Age only apply to
// single-person photos.
type RestoreRequest struct {
	Image       Image
	Multiple    bool
	Gender      string
	Age         string
	Description string
}

// Character is a labeled input to compositing. Number is the 1-based label
// the description refers to.
type Character struct {
	Number int
	Image  Image
}

// CompositeRequest places characters into a scene.
type CompositeRequest struct {
	Characters  []Character
	Background  *Image
	Description string
	AspectRatio AspectRatio
}

// Video models and settings.
const (
	VideoModelFast     = "veo-3.1-fast-generate-preview"
	VideoModelStandard = "veo-3.1-generate-preview"

	Resolution720p  = "720p"
	Resolution1080p = "1080p"
)

// VideoRequest starts one long-running video generation.
type VideoRequest struct {
	Prompt      string
	Image       *Image
	Model       string
	Resolution  string
	AspectRatio AspectRatio
}

// Validate checks the model, resolution and ratio combination.
func (r VideoRequest) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return fmt.Errorf("video prompt is required")
	}
	switch r.Model {
	case "", VideoModelFast, VideoModelStandard:
	default:
		return fmt.Errorf("unsupported video model %q", r.Model)
	}
	switch r.Resolution {
	case "", Resolution720p, Resolution1080p:
	default:
		return fmt.Errorf("unsupported video resolution %q", r.Resolution)
	}
	switch r.AspectRatio {
	case "", AspectWide, AspectTall:
	default:
		return fmt.Errorf("unsupported video aspect ratio %q", r.AspectRatio)
	}
	return nil
}

// VideoJob is the handle of a long-running video generation.
type VideoJob struct {
	Name string
	Done bool
	URI  string
}

// SpeechRequest synthesizes Text with a prebuilt voice. Style is an optional
// reading style hint.
type SpeechRequest struct {
	Text  string
	Voice string
	Style string
}

// Speaker assigns a voice to a named dialogue participant.
type Speaker struct {
	Name  string
	Voice string
}

// DialogueRequest synthesizes a multi-speaker conversation as one clip.
type DialogueRequest struct {
	Script   string
	Speakers []Speaker
}

// Validate requires a script and at least two named speakers.
func (r DialogueRequest) Validate() error {
	if strings.TrimSpace(r.Script) == "" {
		return fmt.Errorf("dialogue script is required")
	}
	if len(r.Speakers) < 2 {
		return fmt.Errorf("dialogue needs at least 2 speakers, got %d", len(r.Speakers))
	}
	for i, s := range r.Speakers {
		if strings.TrimSpace(s.Name) == "" {
			return fmt.Errorf("speaker %d has no name", i+1)
		}
	}
	return nil
}

// StoryboardRequest plans a video from a topic or, when Script is set, from
// a script.
type StoryboardRequest struct {
	Topic           string
	Script          string
	DurationSeconds int
	Language        string
}

// SceneCount is the suggested number of scenes: one per five seconds, at
// least two.
func (r StoryboardRequest) SceneCount() int {
	n := (r.DurationSeconds + 2) / 5
	return max(2, n)
}

// Scene is one narrative beat of a storyboard.
type Scene struct {
	Number      int    `json:"scene"`
	Description string `json:"description"`
	Narration   string `json:"narration"`
	Prompt      string `json:"prompt"`
}

// Storyboard is a generated video plan.
type Storyboard struct {
	Title   string  `json:"title"`
	Logline string  `json:"logline"`
	Scenes  []Scene `json:"scenes"`
}

// YouTubeScript is a complete video package for one topic.
type YouTubeScript struct {
	Titles            []string `json:"titles"`
	Hook              string   `json:"hook"`
	Descriptions      []string `json:"descriptions"`
	ThumbnailCaptions []string `json:"thumbnail_captions"`
	StoryParts        []string `json:"story_parts"`
}

// ScriptRequest asks for a YouTubeScript.
type ScriptRequest struct {
	Topic    string
	Language string
}

// Creativity controls how far a cloned story departs from its source.
type Creativity string

const (
	CreativityFaithful Creativity = "faithful"
	CreativityBalanced Creativity = "balanced"
	CreativityCreative Creativity = "creative"
)

// StoryCloneRequest rewrites Story. Empty Twists or Characters leave the
// choice to the model.
type StoryCloneRequest struct {
	Story      string
	Creativity Creativity
	Twists     string
	Characters string
	Language   string
}

// AnalysisType selects the channel analysis lens.
type AnalysisType string

const (
	AnalysisSWOT               AnalysisType = "swot"
	AnalysisContentStrategy    AnalysisType = "content_strategy"
	AnalysisAudienceEngagement AnalysisType = "audience_engagement"
	AnalysisGrowth             AnalysisType = "growth_opportunities"
)

// ChannelAnalysisRequest analyzes a YouTube channel.
type ChannelAnalysisRequest struct {
	ChannelURL string
	Type       AnalysisType
	Language   string
}

// Progress receives human-readable status updates from long operations.
type Progress func(message string)

// Report calls p when it is non-nil.
func (p Progress) Report(format string, args ...any) {
	if p != nil {
		p(fmt.Sprintf(format, args...))
	}
}

// PromptWriter turns ideas and images into generation prompts.
type PromptWriter interface {
	ExpandIdea(ctx context.Context, req IdeaRequest) (Prompts, error)
	AnalyzeImage(ctx context.Context, req AnalyzeRequest) (Prompts, error)
}

// ImageGenerator produces and edits images.
type ImageGenerator interface {
	GenerateImages(ctx context.Context, req ImageRequest) ([]Image, error)
	EditImage(ctx context.Context, req EditRequest) (Image, error)
	RestorePhoto(ctx context.Context, req RestoreRequest) (Image, error)
	UpscaleImage(ctx context.Context, img Image) (Image, error)
	CompositeCharacters(ctx context.Context, req CompositeRequest) (Image, error)
}

// SpeechSynthesizer returns a WAV container for one request.
type SpeechSynthesizer interface {
	Speak(ctx context.Context, req SpeechRequest) ([]byte, error)
}

// DialogueSynthesizer returns one merged WAV for a multi-speaker script.
type DialogueSynthesizer interface {
	SpeakDialogue(ctx context.Context, req DialogueRequest) ([]byte, error)
}

// TextGenerator produces structured and free-form text.
type TextGenerator interface {
	Storyboard(ctx context.Context, req StoryboardRequest) (Storyboard, error)
	YouTubeScript(ctx context.Context, req ScriptRequest) (YouTubeScript, error)
	CloneStory(ctx context.Context, req StoryCloneRequest) (string, error)
	AnalyzeChannel(ctx context.Context, req ChannelAnalysisRequest, progress Progress) (string, error)
}

// VideoGenerator drives long-running video jobs.
type VideoGenerator interface {
	StartVideo(ctx context.Context, req VideoRequest) (VideoJob, error)
	PollVideo(ctx context.Context, job VideoJob) (VideoJob, error)
	DownloadVideo(ctx context.Context, job VideoJob) ([]byte, error)
}
