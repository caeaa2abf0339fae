package studio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/example/go-genstudio/internal/imaging"
	"github.com/example/go-genstudio/internal/media"
	"github.com/example/go-genstudio/internal/provider"
	"github.com/example/go-genstudio/internal/provider/pocket"
	"github.com/example/go-genstudio/internal/text"
	"github.com/example/go-genstudio/internal/tts"
	"github.com/example/go-genstudio/internal/video"
)

func (s *Studio) dispatch(ctx context.Context, req Request, out *media.Group, progress provider.Progress) (*Result, error) {
	switch r := req.(type) {
	case IdeaImage:
		return s.ideaImage(ctx, r, out, progress)
	case AnalyzedImage:
		return s.analyzedImage(ctx, r, out, progress)
	case ImageEdit:
		return s.imageEdit(ctx, r, out, progress)
	case PhotoRestore:
		return s.singleImage(ctx, out, progress, "Restoring photo...", func(ig provider.ImageGenerator) (provider.Image, error) {
			return ig.RestorePhoto(ctx, r.RestoreRequest)
		})
	case Upscale:
		return s.singleImage(ctx, out, progress, "Upscaling image...", func(ig provider.ImageGenerator) (provider.Image, error) {
			return ig.UpscaleImage(ctx, r.Image)
		})
	case Composite:
		return s.composite(ctx, r, out, progress)
	case Video:
		return s.video(ctx, r, out, progress)
	case VideoEdit:
		return s.videoEdit(ctx, r, progress)
	case Storyboard:
		return s.storyboard(ctx, r, progress)
	case Narration:
		return s.narration(ctx, r, out, progress)
	case YouTubeScript:
		return s.youtubeScript(ctx, r, progress)
	case StoryClone:
		return s.storyClone(ctx, r, progress)
	case ChannelAnalysis:
		return s.channelAnalysis(ctx, r, progress)
	case Speech:
		return s.speech(ctx, r, out, progress)
	case Dialogue:
		return s.dialogue(ctx, r, out, progress)
	case VoiceClone:
		return s.voiceClone(ctx, r, out, progress)
	default:
		return nil, fmt.Errorf("unsupported request %T", req)
	}
}

// resolveAspect turns auto into the ratio closest to src. Without a source
// image, or when it cannot be read, the result is 1:1.
func (s *Studio) resolveAspect(ctx context.Context, ratio provider.AspectRatio, src *provider.Image) provider.AspectRatio {
	if ratio != "" && ratio != provider.AspectAuto {
		return ratio
	}
	if src == nil || len(src.Data) == 0 {
		return provider.AspectSquare
	}

	r, err := imaging.AspectRatio(src.Data)
	if err != nil {
		s.log.WarnContext(ctx, "could not determine aspect ratio, using 1:1",
			slog.String("error", err.Error()))
		return provider.AspectSquare
	}
	return r
}

func (s *Studio) storeImages(out *media.Group, images []provider.Image) []Output {
	now := s.now()
	outputs := make([]Output, len(images))
	for i, img := range images {
		outputs[i] = s.store(out, img.MIMEType, ImageFilename(now, i), img.Data)
	}
	return outputs
}

func (s *Studio) renderPrompts(ctx context.Context, prompts provider.Prompts, count int, ratio provider.AspectRatio, out *media.Group, progress provider.Progress) (*Result, error) {
	if s.providers.Images == nil {
		return nil, missing("image")
	}

	progress.Report("Generating images...")
	images, err := s.providers.Images.GenerateImages(ctx, provider.ImageRequest{
		Prompt:      prompts.English,
		Count:       max(1, count),
		AspectRatio: ratio,
	})
	if err != nil {
		return nil, err
	}
	return &Result{Prompts: &prompts, Outputs: s.storeImages(out, images)}, nil
}

func (s *Studio) ideaImage(ctx context.Context, r IdeaImage, out *media.Group, progress provider.Progress) (*Result, error) {
	ratio := s.resolveAspect(ctx, r.AspectRatio, nil)

	if !blank(r.Direct) {
		prompts := provider.Prompts{English: r.Direct, Translation: "Prompt provided directly by the user."}
		return s.renderPrompts(ctx, prompts, r.Count, ratio, out, progress)
	}

	if s.providers.Prompts == nil {
		return nil, missing("prompt")
	}
	progress.Report("Refining prompt...")
	prompts, err := s.providers.Prompts.ExpandIdea(ctx, r.Idea)
	if err != nil {
		return nil, err
	}
	return s.renderPrompts(ctx, prompts, r.Count, ratio, out, progress)
}

func (s *Studio) analyzedImage(ctx context.Context, r AnalyzedImage, out *media.Group, progress provider.Progress) (*Result, error) {
	if s.providers.Prompts == nil {
		return nil, missing("prompt")
	}

	progress.Report("Determining aspect ratio...")
	ratio := s.resolveAspect(ctx, r.AspectRatio, &r.Analyze.Image)

	progress.Report("Analyzing image...")
	prompts, err := s.providers.Prompts.AnalyzeImage(ctx, r.Analyze)
	if err != nil {
		return nil, err
	}
	return s.renderPrompts(ctx, prompts, r.Count, ratio, out, progress)
}

// variants runs fn count times in parallel and keeps the order. Any failure
// fails the whole request.
func variants(ctx context.Context, count int, fn func(ctx context.Context, i int) (provider.Image, error)) ([]provider.Image, error) {
	count = max(1, count)
	images := make([]provider.Image, count)

	eg, ctx := errgroup.WithContext(ctx)
	for i := range count {
		eg.Go(func() error {
			img, err := fn(ctx, i)
			images[i] = img
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return images, nil
}

func (s *Studio) imageEdit(ctx context.Context, r ImageEdit, out *media.Group, progress provider.Progress) (*Result, error) {
	if s.providers.Images == nil {
		return nil, missing("image")
	}

	ratio := s.resolveAspect(ctx, r.AspectRatio, &r.Subject)
	if r.Count > 1 {
		progress.Report("Creating %d variations...", r.Count)
	} else {
		progress.Report("Editing image...")
	}

	images, err := variants(ctx, r.Count, func(ctx context.Context, i int) (provider.Image, error) {
		return s.providers.Images.EditImage(ctx, provider.EditRequest{
			Subject:     r.Subject,
			Instruction: r.Instruction,
			AspectRatio: ratio,
			Variation:   i,
		})
	})
	if err != nil {
		return nil, err
	}
	return &Result{Outputs: s.storeImages(out, images)}, nil
}

func (s *Studio) singleImage(ctx context.Context, out *media.Group, progress provider.Progress, msg string, fn func(provider.ImageGenerator) (provider.Image, error)) (*Result, error) {
	if s.providers.Images == nil {
		return nil, missing("image")
	}
	progress.Report("%s", msg)
	img, err := fn(s.providers.Images)
	if err != nil {
		return nil, err
	}
	return &Result{Outputs: s.storeImages(out, []provider.Image{img})}, nil
}

func (s *Studio) composite(ctx context.Context, r Composite, out *media.Group, progress provider.Progress) (*Result, error) {
	if s.providers.Images == nil {
		return nil, missing("image")
	}

	ratio := s.resolveAspect(ctx, r.AspectRatio, r.Background)
	if r.Count > 1 {
		progress.Report("Creating %d composite variations...", r.Count)
	} else {
		progress.Report("Compositing image...")
	}

	images, err := variants(ctx, r.Count, func(ctx context.Context, _ int) (provider.Image, error) {
		return s.providers.Images.CompositeCharacters(ctx, provider.CompositeRequest{
			Characters:  r.Characters,
			Background:  r.Background,
			Description: r.Description,
			AspectRatio: ratio,
		})
	})
	if err != nil {
		return nil, err
	}
	return &Result{Outputs: s.storeImages(out, images)}, nil
}

func (s *Studio) video(ctx context.Context, r Video, out *media.Group, progress provider.Progress) (*Result, error) {
	if s.providers.Video == nil {
		return nil, missing("video")
	}

	opts := append([]video.GeneratorOption{video.WithGeneratorLogger(s.log)}, s.videoOpts...)
	results := video.NewGenerator(s.providers.Video, opts...).Generate(ctx, r.VideoRequest, r.Count, progress)

	now := s.now()
	res := &Result{}
	var firstErr error
	for _, vr := range results {
		if vr.Err != nil {
			if firstErr == nil {
				firstErr = vr.Err
			}
			res.Errors = append(res.Errors, fmt.Sprintf("Video %d: %s", vr.Index+1, provider.Classify(vr.Err, true).Message))
			continue
		}
		res.Outputs = append(res.Outputs, s.store(out, "video/mp4", VideoFilename(now, vr.Index), vr.Data))
	}

	if len(res.Outputs) == 0 {
		return nil, firstErr
	}
	return res, nil
}

func (s *Studio) videoEdit(ctx context.Context, r VideoEdit, progress provider.Progress) (*Result, error) {
	re := s.providers.Reencode
	if re == nil {
		re = &video.Reencoder{Logger: s.log}
	}

	progress.Report("Loading video metadata...")
	err := re.Reencode(ctx, r.EditRequest, func(pct float64) {
		progress.Report("Processing... %.0f%%", pct)
	})
	if err != nil {
		return nil, err
	}
	return &Result{Outputs: []Output{{Filename: r.Output, MIMEType: "video/mp4"}}}, nil
}

func (s *Studio) storyboard(ctx context.Context, r Storyboard, progress provider.Progress) (*Result, error) {
	if s.providers.Text == nil {
		return nil, missing("text")
	}
	if blank(r.Script) {
		progress.Report("Writing storyboard from topic...")
	} else {
		progress.Report("Analyzing script...")
	}

	sb, err := s.providers.Text.Storyboard(ctx, r.StoryboardRequest)
	if err != nil {
		return nil, err
	}
	return &Result{Storyboard: &sb}, nil
}

func (s *Studio) orchestrator(synth tts.Synthesizer) *tts.Orchestrator {
	opts := []tts.Option{tts.WithConcurrency(s.concurrency), tts.WithLogger(s.log)}
	if s.recorder != nil {
		opts = append(opts, tts.WithRecorder(s.recorder))
	}
	return tts.NewOrchestrator(synth, opts...)
}

func voiceOrDefault(v string) string {
	if blank(v) {
		return tts.DefaultVoice
	}
	return v
}

func (s *Studio) narration(ctx context.Context, r Narration, out *media.Group, progress provider.Progress) (*Result, error) {
	if s.providers.Speech == nil {
		return nil, missing("speech")
	}

	progress.Report("Generating narration for %d scenes...", len(r.Storyboard.Scenes))

	var (
		mu     sync.Mutex
		failed []string
	)
	o := s.orchestrator(tts.VoiceSynthesizer(s.providers.Speech, voiceOrDefault(r.Voice), ""))
	results := o.NarrateScenes(ctx, r.Storyboard, func(cr tts.ChunkResult) {
		if cr.Err == nil {
			return
		}
		cause := errors.Unwrap(cr.Err)
		if cause == nil {
			cause = cr.Err
		}
		mu.Lock()
		failed = append(failed, fmt.Sprintf("Scene %d: %s", cr.Index, provider.Classify(cause, false).Message))
		mu.Unlock()
	})

	if len(results) == 0 {
		return nil, provider.EmptyInputError(errors.New("no scene narration was generated"))
	}

	res := &Result{Errors: failed}
	for _, cr := range results {
		scene := s.store(out, "audio/wav", SceneFilename(cr.Index), cr.WAV)
		res.Parts = append(res.Parts, SpeechPart{Index: cr.Index, Text: cr.Text, Output: &scene})
	}

	if r.Merge {
		merged, err := results.Merge()
		if err != nil {
			return nil, provider.EmptyInputError(err)
		}
		s.observeMerge(results.Succeeded())
		m := s.store(out, "audio/wav", StoryboardAudioFilename(r.Storyboard.Title), merged)
		res.Merged = &m
	}
	return res, nil
}

func (s *Studio) youtubeScript(ctx context.Context, r YouTubeScript, progress provider.Progress) (*Result, error) {
	if s.providers.Text == nil {
		return nil, missing("text")
	}
	progress.Report("Writing the story...")
	script, err := s.providers.Text.YouTubeScript(ctx, r.ScriptRequest)
	if err != nil {
		return nil, err
	}
	return &Result{Script: &script}, nil
}

func (s *Studio) storyClone(ctx context.Context, r StoryClone, progress provider.Progress) (*Result, error) {
	if s.providers.Text == nil {
		return nil, missing("text")
	}
	progress.Report("Rewriting the story...")
	story, err := s.providers.Text.CloneStory(ctx, r.StoryCloneRequest)
	if err != nil {
		return nil, err
	}
	return &Result{Text: story}, nil
}

func (s *Studio) channelAnalysis(ctx context.Context, r ChannelAnalysis, progress provider.Progress) (*Result, error) {
	if s.providers.Text == nil {
		return nil, missing("text")
	}
	analysis, err := s.providers.Text.AnalyzeChannel(ctx, r.ChannelAnalysisRequest, progress)
	if err != nil {
		return nil, err
	}
	return &Result{Text: analysis}, nil
}

// SpeakChunks splits r.Text and synthesizes every chunk, calling onResult as
// each chunk settles. The returned results are in chunk order.
func (s *Studio) SpeakChunks(ctx context.Context, r Speech, onResult func(tts.ChunkResult)) (tts.Results, error) {
	if s.providers.Speech == nil {
		return nil, missing("speech")
	}
	chunks := text.ChunkWith(r.Text, s.chunkLimit, s.chunkOpts)
	o := s.orchestrator(tts.VoiceSynthesizer(s.providers.Speech, voiceOrDefault(r.Voice), r.Style))
	return o.Run(ctx, chunks, onResult), nil
}

// Chunks returns the pieces r.Text would be synthesized in.
func (s *Studio) Chunks(t string) []string {
	return text.ChunkWith(t, s.chunkLimit, s.chunkOpts)
}

func (s *Studio) speech(ctx context.Context, r Speech, out *media.Group, progress provider.Progress) (*Result, error) {
	chunks := s.Chunks(r.Text)
	progress.Report("Generating %d audio parts in parallel...", len(chunks))

	var (
		mu   sync.Mutex
		done int
	)
	results, err := s.SpeakChunks(ctx, r, func(tts.ChunkResult) {
		mu.Lock()
		done++
		n := done
		mu.Unlock()
		progress.Report("Finished %d/%d audio parts", n, len(chunks))
	})
	if err != nil {
		return nil, err
	}

	if results.Succeeded() == 0 {
		for _, cr := range results {
			if cr.Err != nil {
				return nil, cr.Err
			}
		}
		return nil, provider.EmptyInputError(errors.New("no audio parts were generated"))
	}

	res := &Result{}
	for _, cr := range results {
		part := SpeechPart{Index: cr.Index, Text: cr.Text}
		if cr.OK() {
			o := s.store(out, "audio/wav", PartFilename(cr.Index), cr.WAV)
			part.Output = &o
		} else {
			part.Error = provider.Classify(cr.Err, true).Message
		}
		res.Parts = append(res.Parts, part)
	}

	if r.Merge {
		merged, err := results.Merge()
		if err != nil {
			return nil, provider.EmptyInputError(err)
		}
		s.observeMerge(results.Succeeded())
		m := s.store(out, "audio/wav", MergedFilename(s.now()), merged)
		res.Merged = &m
	}
	return res, nil
}

func (s *Studio) dialogue(ctx context.Context, r Dialogue, out *media.Group, progress provider.Progress) (*Result, error) {
	if s.providers.Dialogue == nil {
		return nil, missing("dialogue")
	}
	progress.Report("Generating dialogue...")
	wav, err := s.providers.Dialogue.SpeakDialogue(ctx, r.DialogueRequest)
	if err != nil {
		return nil, err
	}
	o := s.store(out, "audio/wav", DialogueFilename(s.now()), wav)
	return &Result{Merged: &o}, nil
}

func (s *Studio) voiceClone(ctx context.Context, r VoiceClone, out *media.Group, progress provider.Progress) (*Result, error) {
	if s.providers.Cloner == nil {
		return nil, missing("voice cloning")
	}

	progress.Report("Analyzing voice sample...")
	v, err := s.providers.Cloner.CloneVoice(ctx, pocket.CloneRequest{
		ID:          r.ID,
		SamplePath:  r.SamplePath,
		Description: r.Description,
	})
	if err != nil {
		return nil, err
	}

	progress.Report("Speaking with the new voice...")
	wav, err := s.providers.Cloner.Speak(ctx, provider.SpeechRequest{Text: r.Text, Voice: v.ID})
	if err != nil {
		return nil, err
	}

	o := s.store(out, "audio/wav", ClonedVoiceFilename(v.ID), wav)
	return &Result{Merged: &o, Voice: &v}, nil
}
