package studio

import (
	"errors"
	"fmt"
	"strings"

	"github.com/example/go-genstudio/internal/provider"
	"github.com/example/go-genstudio/internal/video"
)

// Request is one generation request. The concrete types below are the only
// implementations.
type Request interface {
	Kind() Kind
	Validate() error
	request()
}

// MaxImages caps the count of image requests.
const MaxImages = 4

func checkCount(n int) error {
	if n < 0 || n > MaxImages {
		return fmt.Errorf("number of images must be between 1 and %d", MaxImages)
	}
	return nil
}

// IdeaImage expands an idea into prompts and renders them. A non-empty
// Direct prompt skips the expansion.
type IdeaImage struct {
	Idea        provider.IdeaRequest
	Direct      string
	Count       int
	AspectRatio provider.AspectRatio
}

// AnalyzedImage describes an uploaded image as prompts and renders them.
type AnalyzedImage struct {
	Analyze     provider.AnalyzeRequest
	Count       int
	AspectRatio provider.AspectRatio
}

// ImageEdit edits a subject image; Count > 1 renders numbered variations.
type ImageEdit struct {
	Subject     provider.Image
	Instruction string
	Count       int
	AspectRatio provider.AspectRatio
}

// PhotoRestore repairs an old photograph.
type PhotoRestore struct {
	provider.RestoreRequest
}

// Upscale enhances an image.
type Upscale struct {
	Image provider.Image
}

// Composite merges characters into one scene; Count > 1 renders variants.
type Composite struct {
	Characters  []provider.Character
	Background  *provider.Image
	Description string
	Count       int
	AspectRatio provider.AspectRatio
}

// Video generates Count videos for one prompt.
type Video struct {
	provider.VideoRequest
	Count int
}

// VideoEdit re-encodes a video with an effect and crop.
type VideoEdit struct {
	video.EditRequest
}

// Storyboard plans a video from a topic or script.
type Storyboard struct {
	provider.StoryboardRequest
}

// Narration speaks every scene of a storyboard. Merge also produces one
// combined file in scene order.
type Narration struct {
	Storyboard provider.Storyboard
	Voice      string
	Merge      bool
}

// YouTubeScript writes a video package for a topic.
type YouTubeScript struct {
	provider.ScriptRequest
}

// StoryClone rewrites a story.
type StoryClone struct {
	provider.StoryCloneRequest
}

// ChannelAnalysis analyzes a YouTube channel.
type ChannelAnalysis struct {
	provider.ChannelAnalysisRequest
}

// Speech chunks Text and synthesizes every chunk in parallel. Merge also
// produces one combined file.
type Speech struct {
	Text  string
	Voice string
	Style string
	Merge bool
}

// Dialogue synthesizes a multi-speaker script as one clip.
type Dialogue struct {
	provider.DialogueRequest
}

// VoiceClone exports a voice from a sample and speaks Text with it.
type VoiceClone struct {
	ID          string
	SamplePath  string
	Description string
	Text        string
}

func (IdeaImage) Kind() Kind       { return KindCreateImage }
func (AnalyzedImage) Kind() Kind   { return KindCreateImage }
func (ImageEdit) Kind() Kind       { return KindImageEdit }
func (PhotoRestore) Kind() Kind    { return KindOldPhoto }
func (Upscale) Kind() Kind         { return KindOldPhoto }
func (Composite) Kind() Kind       { return KindComposite }
func (Video) Kind() Kind           { return KindVideo }
func (VideoEdit) Kind() Kind       { return KindVideo }
func (Storyboard) Kind() Kind      { return KindStoryboard }
func (Narration) Kind() Kind       { return KindStoryboard }
func (YouTubeScript) Kind() Kind   { return KindYouTubeScript }
func (StoryClone) Kind() Kind      { return KindStoryCloning }
func (ChannelAnalysis) Kind() Kind { return KindChannel }
func (Speech) Kind() Kind          { return KindSpeech }
func (Dialogue) Kind() Kind        { return KindSpeech }
func (VoiceClone) Kind() Kind      { return KindVoiceCloning }

func (IdeaImage) request()       {}
func (AnalyzedImage) request()   {}
func (ImageEdit) request()       {}
func (PhotoRestore) request()    {}
func (Upscale) request()         {}
func (Composite) request()       {}
func (Video) request()           {}
func (VideoEdit) request()       {}
func (Storyboard) request()      {}
func (Narration) request()       {}
func (YouTubeScript) request()   {}
func (StoryClone) request()      {}
func (ChannelAnalysis) request() {}
func (Speech) request()          {}
func (Dialogue) request()        {}
func (VoiceClone) request()      {}

func blank(s string) bool { return strings.TrimSpace(s) == "" }

func (r IdeaImage) Validate() error {
	if blank(r.Direct) && blank(r.Idea.Idea) {
		return errors.New("enter an idea or a prompt")
	}
	return checkCount(r.Count)
}

func (r AnalyzedImage) Validate() error {
	if len(r.Analyze.Image.Data) == 0 {
		return errors.New("upload an image to analyze")
	}
	return checkCount(r.Count)
}

func (r ImageEdit) Validate() error {
	if len(r.Subject.Data) == 0 {
		return errors.New("provide the image to edit")
	}
	if blank(r.Instruction) {
		return errors.New("describe the edit")
	}
	return checkCount(r.Count)
}

func (r PhotoRestore) Validate() error {
	if len(r.Image.Data) == 0 {
		return errors.New("provide the photo to restore")
	}
	return nil
}

func (r Upscale) Validate() error {
	if len(r.Image.Data) == 0 {
		return errors.New("provide the image to upscale")
	}
	return nil
}

func (r Composite) Validate() error {
	if len(r.Characters) == 0 {
		return errors.New("select at least one character image")
	}
	if blank(r.Description) {
		return errors.New("describe the scene and action")
	}
	return checkCount(r.Count)
}

func (r Video) Validate() error {
	if blank(r.Prompt) {
		return errors.New("enter a video prompt")
	}
	if r.Count < 0 || r.Count > MaxImages {
		return fmt.Errorf("number of videos must be between 1 and %d", MaxImages)
	}
	return r.VideoRequest.Validate()
}

func (r VideoEdit) Validate() error {
	if blank(r.Source) || blank(r.Output) {
		return errors.New("source and output paths are required")
	}
	return nil
}

func (r Storyboard) Validate() error {
	if blank(r.Topic) && blank(r.Script) {
		return errors.New("enter a topic or a script")
	}
	if r.DurationSeconds <= 0 {
		return errors.New("duration must be positive")
	}
	return nil
}

func (r Narration) Validate() error {
	if len(r.Storyboard.Scenes) == 0 {
		return errors.New("the storyboard has no scenes")
	}
	return nil
}

func (r YouTubeScript) Validate() error {
	if blank(r.Topic) {
		return errors.New("enter a topic")
	}
	return nil
}

func (r StoryClone) Validate() error {
	if blank(r.Story) {
		return errors.New("enter the original story")
	}
	return nil
}

func (r ChannelAnalysis) Validate() error {
	if blank(r.ChannelURL) {
		return errors.New("enter a channel link")
	}
	return nil
}

func (r Speech) Validate() error {
	if blank(r.Text) {
		return errors.New("enter text to speak")
	}
	return nil
}

func (r Dialogue) Validate() error {
	return r.DialogueRequest.Validate()
}

func (r VoiceClone) Validate() error {
	if blank(r.SamplePath) {
		return errors.New("provide a voice sample")
	}
	if blank(r.ID) {
		return errors.New("name the new voice")
	}
	if blank(r.Text) {
		return errors.New("enter text to speak")
	}
	return nil
}
