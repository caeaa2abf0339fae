// Package pocket runs speech synthesis and voice export through the local
// pocket-tts command line tool.
package pocket

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	pockettts "github.com/MeKo-Christian/go-call-pocket-tts"

	"github.com/example/go-genstudio/internal/audio"
	"github.com/example/go-genstudio/internal/provider"
	"github.com/example/go-genstudio/internal/tts"
)

// DefaultExecutable is looked up on PATH when no explicit path is set.
const DefaultExecutable = "pocket-tts"

// Config selects the executable and the local voice manifest.
type Config struct {
	ExecutablePath string
	ConfigPath     string
	Quiet          bool
	Voices         *tts.VoiceManager
	Logger         *slog.Logger
}

func (c Config) executable() string {
	if c.ExecutablePath != "" {
		return c.ExecutablePath
	}
	return DefaultExecutable
}

// Test seams.
var (
	runGenerate = func(ctx context.Context, exe string, args []string, stdin io.Reader) ([]byte, error) {
		cmd := exec.CommandContext(ctx, exe, args...)
		cmd.Stdin = stdin

		var out, stderr bytes.Buffer
		cmd.Stdout = &out
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			if msg := strings.TrimSpace(stderr.String()); msg != "" {
				return nil, fmt.Errorf("%w: %s", err, lastLine(msg))
			}
			return nil, err
		}
		return out.Bytes(), nil
	}
	exportVoice = pockettts.ExportVoice
	lookPath    = exec.LookPath
)

// ErrExecutableNotFound is returned when the pocket-tts tool is missing.
var ErrExecutableNotFound = errors.New("pocket-tts executable not found")

// Client synthesizes speech with pocket-tts.
type Client struct {
	cfg Config
	log *slog.Logger
}

var _ provider.SpeechSynthesizer = (*Client)(nil)

// New returns a client for cfg. Voices may be nil, in which case only the
// tool's built-in voices are available.
func New(cfg Config) *Client {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Client{cfg: cfg, log: log}
}

// Available reports whether the executable can be found.
func (c *Client) Available() error {
	if _, err := lookPath(c.cfg.executable()); err != nil {
		return fmt.Errorf("%w: %v", ErrExecutableNotFound, err)
	}
	return nil
}

// Speak runs `pocket-tts generate` with text on stdin and returns the WAV it
// writes to stdout. Voices registered in the local manifest are passed by
// path; any other name is handed to the tool unchanged. The style hint has no
// equivalent in pocket-tts and is ignored.
func (c *Client) Speak(ctx context.Context, req provider.SpeechRequest) ([]byte, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, errors.New("speech text is required")
	}

	voice, err := c.resolveVoice(req.Voice)
	if err != nil {
		return nil, err
	}

	args := []string{"generate", "--text", "-", "--output-path", "-"}
	if voice != "" {
		args = append(args, "--voice", voice)
	}
	if c.cfg.ConfigPath != "" {
		args = append(args, "--config", c.cfg.ConfigPath)
	}
	if c.cfg.Quiet {
		args = append(args, "--quiet")
	}

	if req.Style != "" {
		c.log.DebugContext(ctx, "pocket-tts ignores style hints", slog.String("style", req.Style))
	}

	start := time.Now()
	out, err := runGenerate(ctx, c.cfg.executable(), args, strings.NewReader(req.Text))
	if err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return nil, fmt.Errorf("%w: %v", ErrExecutableNotFound, err)
		}
		return nil, fmt.Errorf("pocket-tts generate: %w", err)
	}

	if len(out) <= audio.HeaderSize {
		return nil, provider.ErrNoAudio
	}

	c.log.DebugContext(ctx, "pocket-tts generate finished",
		slog.Int("text_len", len(req.Text)),
		slog.Int("wav_bytes", len(out)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return out, nil
}

func (c *Client) resolveVoice(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" || c.cfg.Voices == nil || !c.cfg.Voices.Has(id) {
		return id, nil
	}
	return c.cfg.Voices.ResolvePath(id)
}

// CloneRequest names a new local voice and the recording to derive it from.
type CloneRequest struct {
	ID          string
	SamplePath  string
	Description string
}

var voiceID = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// CloneVoice exports a voice embedding from a sample recording into the
// manifest directory and registers it under req.ID.
func (c *Client) CloneVoice(ctx context.Context, req CloneRequest) (tts.LocalVoice, error) {
	if c.cfg.Voices == nil {
		return tts.LocalVoice{}, errors.New("no voice manifest configured")
	}
	if !voiceID.MatchString(req.ID) {
		return tts.LocalVoice{}, fmt.Errorf("invalid voice id %q: use letters, digits, '-' and '_'", req.ID)
	}
	if c.cfg.Voices.Has(req.ID) {
		return tts.LocalVoice{}, fmt.Errorf("voice %q already exists", req.ID)
	}
	if _, err := os.Stat(req.SamplePath); err != nil {
		return tts.LocalVoice{}, fmt.Errorf("voice sample: %w", err)
	}

	if err := os.MkdirAll(c.cfg.Voices.Dir(), 0o755); err != nil {
		return tts.LocalVoice{}, fmt.Errorf("create voice directory: %w", err)
	}

	file := req.ID + ".safetensors"
	out := filepath.Join(c.cfg.Voices.Dir(), file)

	c.log.InfoContext(ctx, "exporting voice",
		slog.String("voice", req.ID),
		slog.String("sample", req.SamplePath),
	)

	err := exportVoice(ctx, req.SamplePath, out, &pockettts.ExportVoiceOptions{
		Config:         c.cfg.ConfigPath,
		Quiet:          c.cfg.Quiet,
		ExecutablePath: c.cfg.ExecutablePath,
		LogWriter:      io.Discard,
	})
	if err != nil {
		var notFound *pockettts.ErrExecutableNotFound
		if errors.As(err, &notFound) {
			return tts.LocalVoice{}, fmt.Errorf("%w: %v", ErrExecutableNotFound, err)
		}
		return tts.LocalVoice{}, fmt.Errorf("export voice: %w", err)
	}

	v := tts.LocalVoice{
		ID:          req.ID,
		Path:        file,
		Description: req.Description,
		Source:      filepath.Base(req.SamplePath),
	}
	if err := c.cfg.Voices.Register(v); err != nil {
		_ = os.Remove(out)
		return tts.LocalVoice{}, err
	}
	return v, nil
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
