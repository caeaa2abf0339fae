// Package gemini implements the provider capabilities on the Gemini API.
//
// Media and speech requests go through the unified google.golang.org/genai
// SDK. Structured and streaming text goes through the generative-ai-go SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	legacy "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
	"google.golang.org/genai"

	"github.com/example/go-genstudio/internal/provider"
)

// Default model names.
const (
	DefaultTextModel  = "gemini-2.5-flash"
	DefaultProModel   = "gemini-2.5-pro"
	DefaultImageModel = "imagen-4.0-generate-001"
	DefaultEditModel  = "gemini-2.5-flash-image"
	DefaultTTSModel   = "gemini-2.5-flash-preview-tts"
	DefaultLanguage   = "Vietnamese"
)

// Config selects the credential, models and output language.
type Config struct {
	APIKey     string
	TextModel  string
	ProModel   string
	ImageModel string
	EditModel  string
	TTSModel   string
	VideoModel string
	// Language is used for translations, narration and analyses.
	Language   string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

func (c Config) withDefaults() Config {
	def := func(v *string, d string) {
		if strings.TrimSpace(*v) == "" {
			*v = d
		}
	}
	def(&c.TextModel, DefaultTextModel)
	def(&c.ProModel, DefaultProModel)
	def(&c.ImageModel, DefaultImageModel)
	def(&c.EditModel, DefaultEditModel)
	def(&c.TTSModel, DefaultTTSModel)
	def(&c.VideoModel, provider.VideoModelFast)
	def(&c.Language, DefaultLanguage)
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// mediaBackend is the subset of the genai SDK used for media and speech.
type mediaBackend interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	GenerateImages(ctx context.Context, model, prompt string, config *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error)
	GenerateVideos(ctx context.Context, model, prompt string, image *genai.Image, config *genai.GenerateVideosConfig) (*genai.GenerateVideosOperation, error)
	GetVideosOperation(ctx context.Context, op *genai.GenerateVideosOperation) (*genai.GenerateVideosOperation, error)
}

// textRequest is one text generation call.
type textRequest struct {
	Model  string
	Prompt string
	Images []provider.Image
	Schema *legacy.Schema
}

// textBackend generates text, optionally constrained to a JSON schema.
type textBackend interface {
	Generate(ctx context.Context, req textRequest) (string, error)
	Stream(ctx context.Context, req textRequest, onChunk func(string)) (string, error)
	Close() error
}

// Client implements every provider capability against the Gemini API.
type Client struct {
	cfg   Config
	media mediaBackend
	text  textBackend
	log   *slog.Logger
}

var (
	_ provider.PromptWriter        = (*Client)(nil)
	_ provider.ImageGenerator      = (*Client)(nil)
	_ provider.SpeechSynthesizer   = (*Client)(nil)
	_ provider.DialogueSynthesizer = (*Client)(nil)
	_ provider.TextGenerator       = (*Client)(nil)
	_ provider.VideoGenerator      = (*Client)(nil)
)

// New connects both SDK clients with cfg.APIKey.
func New(ctx context.Context, cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, provider.ErrMissingCredential
	}

	mc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	tc, err := legacy.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create generative language client: %w", err)
	}

	return newClient(cfg, sdkMedia{models: mc.Models, operations: mc.Operations}, &sdkText{client: tc}), nil
}

func newClient(cfg Config, media mediaBackend, text textBackend) *Client {
	cfg = cfg.withDefaults()
	return &Client{cfg: cfg, media: media, text: text, log: cfg.Logger}
}

// Close releases the text client.
func (c *Client) Close() error {
	if c.text == nil {
		return nil
	}
	return c.text.Close()
}

// sdkMedia adapts the genai client.
type sdkMedia struct {
	models     *genai.Models
	operations *genai.Operations
}

func (m sdkMedia) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	resp, err := m.models.GenerateContent(ctx, model, contents, config)
	return resp, wrapAPIError(err)
}

func (m sdkMedia) GenerateImages(ctx context.Context, model, prompt string, config *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error) {
	resp, err := m.models.GenerateImages(ctx, model, prompt, config)
	return resp, wrapAPIError(err)
}

func (m sdkMedia) GenerateVideos(ctx context.Context, model, prompt string, image *genai.Image, config *genai.GenerateVideosConfig) (*genai.GenerateVideosOperation, error) {
	op, err := m.models.GenerateVideos(ctx, model, prompt, image, config)
	return op, wrapAPIError(err)
}

func (m sdkMedia) GetVideosOperation(ctx context.Context, op *genai.GenerateVideosOperation) (*genai.GenerateVideosOperation, error) {
	next, err := m.operations.GetVideosOperation(ctx, op, nil)
	return next, wrapAPIError(err)
}

// wrapAPIError converts SDK errors into *provider.APIError so the classifier
// sees the structured status.
func wrapAPIError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &provider.APIError{Code: apiErr.Code, Status: apiErr.Status, Message: apiErr.Message}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return &provider.APIError{Code: apiErrPtr.Code, Status: apiErrPtr.Status, Message: apiErrPtr.Message}
	}

	if msg := err.Error(); strings.Contains(msg, "RESOURCE_EXHAUSTED") {
		return &provider.APIError{Code: http.StatusTooManyRequests, Status: "RESOURCE_EXHAUSTED", Message: msg}
	}
	return err
}
