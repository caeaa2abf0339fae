package gemini

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"google.golang.org/genai"

	"github.com/example/go-genstudio/internal/audio"
	"github.com/example/go-genstudio/internal/provider"
)

type mediaStub struct {
	mu sync.Mutex

	contentResp *genai.GenerateContentResponse
	contentErr  error
	imagesResp  *genai.GenerateImagesResponse
	videoOp     *genai.GenerateVideosOperation
	pollOp      *genai.GenerateVideosOperation

	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
	imageCfg *genai.GenerateImagesConfig
	videoCfg *genai.GenerateVideosConfig
	videoImg *genai.Image
	polled   string
}

func (m *mediaStub) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.model, m.contents, m.config = model, contents, config
	return m.contentResp, m.contentErr
}

func (m *mediaStub) GenerateImages(_ context.Context, model, _ string, config *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error) {
	m.model, m.imageCfg = model, config
	return m.imagesResp, nil
}

func (m *mediaStub) GenerateVideos(_ context.Context, model, _ string, image *genai.Image, config *genai.GenerateVideosConfig) (*genai.GenerateVideosOperation, error) {
	m.model, m.videoImg, m.videoCfg = model, image, config
	return m.videoOp, nil
}

func (m *mediaStub) GetVideosOperation(_ context.Context, op *genai.GenerateVideosOperation) (*genai.GenerateVideosOperation, error) {
	m.polled = op.Name
	return m.pollOp, nil
}

type textStub struct {
	replies []string
	err     error
	reqs    []textRequest
	chunks  []string
}

func (s *textStub) Generate(_ context.Context, req textRequest) (string, error) {
	s.reqs = append(s.reqs, req)
	if s.err != nil {
		return "", s.err
	}
	if len(s.replies) == 0 {
		return "", nil
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	return r, nil
}

func (s *textStub) Stream(_ context.Context, req textRequest, onChunk func(string)) (string, error) {
	s.reqs = append(s.reqs, req)
	var b strings.Builder
	for _, c := range s.chunks {
		b.WriteString(c)
		onChunk(c)
	}
	return b.String(), s.err
}

func (s *textStub) Close() error { return nil }

func testClient(media mediaBackend, text textBackend) *Client {
	return newClient(Config{
		APIKey: "test-key",
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, media, text)
}

func partsText(c *genai.Content) string {
	var b strings.Builder
	for _, p := range c.Parts {
		b.WriteString(p.Text)
		b.WriteString("|")
	}
	return b.String()
}

func audioResponse(pcm []byte) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []*genai.Part{{InlineData: &genai.Blob{Data: pcm, MIMEType: "audio/L16;rate=24000"}}}},
	}}}
}

func TestNew_RequiresKey(t *testing.T) {
	if _, err := New(context.Background(), Config{}); !errors.Is(err, provider.ErrMissingCredential) {
		t.Errorf("err = %v; want ErrMissingCredential", err)
	}
}

func TestSpeak(t *testing.T) {
	pcm := []byte{1, 2, 3, 4}
	media := &mediaStub{contentResp: audioResponse(pcm)}
	c := testClient(media, nil)

	wav, err := c.Speak(context.Background(), provider.SpeechRequest{Text: "Hello", Voice: "Puck", Style: "cheerful"})
	if err != nil {
		t.Fatalf("Speak: %v", err)
	}

	if len(wav) != audio.HeaderSize+len(pcm) {
		t.Errorf("len(wav) = %d; want %d", len(wav), audio.HeaderSize+len(pcm))
	}

	if media.model != DefaultTTSModel {
		t.Errorf("model = %q; want %q", media.model, DefaultTTSModel)
	}

	if got := partsText(media.contents[0]); got != "Read in a cheerful style: Hello|" {
		t.Errorf("prompt = %q", got)
	}

	if v := media.config.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName; v != "Puck" {
		t.Errorf("voice = %q; want Puck", v)
	}

	if len(media.config.ResponseModalities) != 1 || media.config.ResponseModalities[0] != "AUDIO" {
		t.Errorf("modalities = %v", media.config.ResponseModalities)
	}

	if len(media.config.SafetySettings) != 4 {
		t.Errorf("safety settings = %d; want 4", len(media.config.SafetySettings))
	}
}

func TestSpeak_NoAudio(t *testing.T) {
	c := testClient(&mediaStub{contentResp: &genai.GenerateContentResponse{}}, nil)

	_, err := c.Speak(context.Background(), provider.SpeechRequest{Text: "x", Voice: "Kore"})
	if !errors.Is(err, provider.ErrNoAudio) {
		t.Errorf("err = %v; want ErrNoAudio", err)
	}
}

func TestSpeak_Blocked(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		PromptFeedback: &genai.GenerateContentResponsePromptFeedback{BlockReason: "PROHIBITED_CONTENT"},
	}
	c := testClient(&mediaStub{contentResp: resp}, nil)

	_, err := c.Speak(context.Background(), provider.SpeechRequest{Text: "x", Voice: "Kore"})

	var pe *provider.Error
	if !errors.As(err, &pe) || pe.Kind != provider.KindSafety || !strings.Contains(pe.Message, "PROHIBITED_CONTENT") {
		t.Errorf("err = %v; want safety block naming the reason", err)
	}
}

func TestSpeakDialogue(t *testing.T) {
	media := &mediaStub{contentResp: audioResponse([]byte{9, 9})}
	c := testClient(media, nil)

	_, err := c.SpeakDialogue(context.Background(), provider.DialogueRequest{
		Script:   "Ann: Hi\nBob: Hello",
		Speakers: []provider.Speaker{{Name: "Ann", Voice: "Kore"}, {Name: "Bob", Voice: "Puck"}},
	})
	if err != nil {
		t.Fatalf("SpeakDialogue: %v", err)
	}

	if got := partsText(media.contents[0]); !strings.HasPrefix(got, "TTS the following conversation between Ann and Bob:\nAnn: Hi") {
		t.Errorf("prompt = %q", got)
	}

	cfgs := media.config.SpeechConfig.MultiSpeakerVoiceConfig.SpeakerVoiceConfigs
	if len(cfgs) != 2 || cfgs[1].Speaker != "Bob" || cfgs[1].VoiceConfig.PrebuiltVoiceConfig.VoiceName != "Puck" {
		t.Errorf("speaker configs = %+v", cfgs)
	}
}

func TestSpeakDialogue_Validates(t *testing.T) {
	c := testClient(&mediaStub{}, nil)
	if _, err := c.SpeakDialogue(context.Background(), provider.DialogueRequest{Script: "x"}); err == nil {
		t.Error("expected validation error")
	}
}

func TestGenerateImages(t *testing.T) {
	media := &mediaStub{imagesResp: &genai.GenerateImagesResponse{GeneratedImages: []*genai.GeneratedImage{
		{Image: &genai.Image{ImageBytes: []byte("png1")}},
		{Image: &genai.Image{ImageBytes: []byte("png2"), MIMEType: "image/png"}},
	}}}
	c := testClient(media, nil)

	imgs, err := c.GenerateImages(context.Background(), provider.ImageRequest{Prompt: "a fox", Count: 2, AspectRatio: provider.AspectWide})
	if err != nil {
		t.Fatalf("GenerateImages: %v", err)
	}

	if len(imgs) != 2 || imgs[0].MIMEType != "image/png" {
		t.Errorf("images = %+v", imgs)
	}

	if media.model != DefaultImageModel || media.imageCfg.NumberOfImages != 2 || media.imageCfg.AspectRatio != "16:9" {
		t.Errorf("model %q config %+v", media.model, media.imageCfg)
	}
}

func TestGenerateImages_Filtered(t *testing.T) {
	media := &mediaStub{imagesResp: &genai.GenerateImagesResponse{GeneratedImages: []*genai.GeneratedImage{
		{RAIFilteredReason: "person generation blocked"},
	}}}

	_, err := testClient(media, nil).GenerateImages(context.Background(), provider.ImageRequest{Prompt: "x"})

	var pe *provider.Error
	if !errors.As(err, &pe) || pe.Kind != provider.KindSafety {
		t.Errorf("err = %v; want safety error", err)
	}

	media.imagesResp = &genai.GenerateImagesResponse{}
	if _, err := testClient(media, nil).GenerateImages(context.Background(), provider.ImageRequest{Prompt: "x"}); !errors.Is(err, provider.ErrNoImage) {
		t.Errorf("err = %v; want ErrNoImage", err)
	}
}

func TestEditImage(t *testing.T) {
	media := &mediaStub{contentResp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []*genai.Part{{Text: "here"}, {InlineData: &genai.Blob{Data: []byte("img"), MIMEType: "image/jpeg"}}}},
	}}}}
	c := testClient(media, nil)

	img, err := c.EditImage(context.Background(), provider.EditRequest{
		Subject:     provider.Image{Data: []byte("src"), MIMEType: "image/png"},
		Instruction: "add a hat",
		AspectRatio: provider.AspectTall,
		Variation:   2,
	})
	if err != nil {
		t.Fatalf("EditImage: %v", err)
	}

	if string(img.Data) != "img" || img.MIMEType != "image/jpeg" {
		t.Errorf("image = %+v", img)
	}

	prompt := media.contents[0].Parts[0].Text
	for _, want := range []string{"EXACT aspect ratio of 9:16", `"add a hat"`, "--variation 2"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}

	if media.model != DefaultEditModel || media.config.ResponseModalities[0] != "IMAGE" {
		t.Errorf("model %q modalities %v", media.model, media.config.ResponseModalities)
	}
}

func TestEditImage_FinishReasonRefusal(t *testing.T) {
	media := &mediaStub{contentResp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		FinishReason:  "IMAGE_SAFETY",
		FinishMessage: "unsafe",
	}}}}

	_, err := testClient(media, nil).EditImage(context.Background(), provider.EditRequest{Instruction: "x"})

	var pe *provider.Error
	if !errors.As(err, &pe) || !strings.Contains(pe.Message, "IMAGE_SAFETY") || !strings.Contains(pe.Message, "unsafe") {
		t.Errorf("err = %v", err)
	}
}

func TestCompositeParts(t *testing.T) {
	bg := provider.Image{Data: []byte("bg"), MIMEType: "image/png"}
	parts := compositeParts(provider.CompositeRequest{
		Characters: []provider.Character{
			{Number: 1, Image: provider.Image{Data: []byte("a"), MIMEType: "image/png"}},
			{Number: 5, Image: provider.Image{Data: []byte("b"), MIMEType: "image/png"}},
		},
		Background:  &bg,
		Description: "Character 1 hugs Character 5",
		AspectRatio: provider.AspectSquare,
	})

	if len(parts) != 7 {
		t.Fatalf("len(parts) = %d; want 7", len(parts))
	}

	labels := []string{parts[1].Text, parts[3].Text, parts[5].Text}
	want := []string{"CHARACTER 1", "CHARACTER 5", "BACKGROUND"}
	for i := range want {
		if labels[i] != want[i] {
			t.Errorf("label %d = %q; want %q", i, labels[i], want[i])
		}
	}

	if parts[6].InlineData == nil || string(parts[6].InlineData.Data) != "bg" {
		t.Error("background image not last")
	}
}

func TestMediaErrorPassesThrough(t *testing.T) {
	apiErr := &provider.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED", Message: "quota"}
	c := testClient(&mediaStub{contentErr: apiErr}, nil)

	_, err := c.RestorePhoto(context.Background(), provider.RestoreRequest{})
	if got := provider.Classify(err, true); got.Kind != provider.KindRateLimit {
		t.Errorf("kind = %v; want rate limit", got.Kind)
	}
}

func TestVideoLifecycle(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("key")
		if r.URL.Query().Get("alt") != "media" {
			http.Error(w, "bad", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte("mp4"))
	}))
	defer srv.Close()

	media := &mediaStub{
		videoOp: &genai.GenerateVideosOperation{Name: "operations/1"},
		pollOp: &genai.GenerateVideosOperation{
			Name: "operations/1",
			Done: true,
			Response: &genai.GenerateVideosResponse{GeneratedVideos: []*genai.GeneratedVideo{
				{Video: &genai.Video{URI: srv.URL + "/v1/files/abc:download?alt=media"}},
			}},
		},
	}
	c := testClient(media, nil)

	job, err := c.StartVideo(context.Background(), provider.VideoRequest{
		Prompt:      "waves",
		Image:       &provider.Image{Data: []byte("img"), MIMEType: "image/png"},
		Resolution:  provider.Resolution1080p,
		AspectRatio: provider.AspectTall,
	})
	if err != nil {
		t.Fatalf("StartVideo: %v", err)
	}

	if job.Done || job.Name != "operations/1" {
		t.Errorf("job = %+v", job)
	}

	if media.model != provider.VideoModelFast || media.videoCfg.Resolution != "1080p" || media.videoCfg.AspectRatio != "9:16" || media.videoImg == nil {
		t.Errorf("model %q config %+v image %v", media.model, media.videoCfg, media.videoImg)
	}

	job, err = c.PollVideo(context.Background(), job)
	if err != nil {
		t.Fatalf("PollVideo: %v", err)
	}

	if !job.Done || media.polled != "operations/1" {
		t.Fatalf("job = %+v polled %q", job, media.polled)
	}

	data, err := c.DownloadVideo(context.Background(), job)
	if err != nil {
		t.Fatalf("DownloadVideo: %v", err)
	}

	if string(data) != "mp4" || gotKey != "test-key" {
		t.Errorf("data %q key %q", data, gotKey)
	}
}

func TestPollVideo_DoneWithoutLink(t *testing.T) {
	media := &mediaStub{pollOp: &genai.GenerateVideosOperation{Name: "op", Done: true}}

	if _, err := testClient(media, nil).PollVideo(context.Background(), provider.VideoJob{Name: "op"}); err == nil {
		t.Error("expected error for finished operation without a link")
	}
}

func TestDownloadVideo_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := testClient(&mediaStub{}, nil).DownloadVideo(context.Background(), provider.VideoJob{Name: "op", URI: srv.URL + "/x?alt=media"})

	var apiErr *provider.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != http.StatusNotFound {
		t.Errorf("err = %v; want APIError 404", err)
	}
}

func TestWrapAPIError_ByValue(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   int
		status string
		kind   provider.Kind
	}{
		{
			name:   "rate limit",
			err:    fmt.Errorf("generate content: %w", genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED", Message: "quota exceeded"}),
			code:   429,
			status: "RESOURCE_EXHAUSTED",
			kind:   provider.KindRateLimit,
		},
		{
			name:   "not found",
			err:    genai.APIError{Code: 404, Status: "NOT_FOUND", Message: "model not found"},
			code:   404,
			status: "NOT_FOUND",
			kind:   provider.KindPermission,
		},
		{
			name:   "pointer form",
			err:    &genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED", Message: "quota exceeded"},
			code:   429,
			status: "RESOURCE_EXHAUSTED",
			kind:   provider.KindRateLimit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := wrapAPIError(tt.err)

			var apiErr *provider.APIError
			if !errors.As(got, &apiErr) {
				t.Fatalf("wrapAPIError(%v) = %T; want *provider.APIError", tt.err, got)
			}
			if apiErr.Code != tt.code || apiErr.Status != tt.status {
				t.Errorf("got code %d status %q; want %d %q", apiErr.Code, apiErr.Status, tt.code, tt.status)
			}

			if c := provider.Classify(got, true); c.Kind != tt.kind {
				t.Errorf("Classify kind = %v; want %v", c.Kind, tt.kind)
			}
		})
	}
}

func TestWrapAPIError_PlainErrorPassesThrough(t *testing.T) {
	plain := errors.New("connection reset")
	if got := wrapAPIError(plain); got != plain {
		t.Errorf("wrapAPIError changed a plain error: %v", got)
	}
	if wrapAPIError(nil) != nil {
		t.Error("wrapAPIError(nil) != nil")
	}
}
