package main

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/example/go-genstudio/internal/config"
	"github.com/example/go-genstudio/internal/credentials"
	"github.com/example/go-genstudio/internal/history"
	"github.com/example/go-genstudio/internal/media"
	"github.com/example/go-genstudio/internal/metrics"
	"github.com/example/go-genstudio/internal/provider"
	"github.com/example/go-genstudio/internal/provider/gemini"
	"github.com/example/go-genstudio/internal/provider/pocket"
	"github.com/example/go-genstudio/internal/studio"
	"github.com/example/go-genstudio/internal/tts"
	"github.com/example/go-genstudio/internal/video"
)

// geminiBackend is every capability the Gemini client provides.
type geminiBackend interface {
	provider.PromptWriter
	provider.ImageGenerator
	provider.SpeechSynthesizer
	provider.DialogueSynthesizer
	provider.TextGenerator
	provider.VideoGenerator
	Close() error
}

// Test seams.
var (
	newGemini = func(ctx context.Context, cfg gemini.Config) (geminiBackend, error) {
		c, err := gemini.New(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	newPocket = func(cfg pocket.Config) studio.VoiceCloner {
		return pocket.New(cfg)
	}
)

// app is the wiring shared by every command that runs requests.
type app struct {
	cfg     config.Config
	studio  *studio.Studio
	creds   *credentials.Store
	history *history.Store
	voices  *tts.VoiceManager
	metrics *metrics.Metrics
	closers []func() error
}

type appOptions struct {
	// needProvider fails early when no API key is available.
	needProvider bool
	// withHistory records finished requests.
	withHistory bool
}

// apiKey prefers the configured key over the stored credential.
func apiKey(cfg config.Config, creds *credentials.Store) string {
	if k := strings.TrimSpace(cfg.Provider.APIKey); k != "" {
		return k
	}
	return creds.Key()
}

func newApp(ctx context.Context, cfg config.Config, opts appOptions) (*app, error) {
	log := slog.Default()

	voices, err := tts.NewVoiceManager(cfg.Paths.VoicesManifest)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		creds:   credentials.NewStore(cfg.Paths.StateDir),
		voices:  voices,
		metrics: metrics.New(),
	}

	p := studio.Providers{
		Reencode: &video.Reencoder{
			FFmpegPath:  cfg.Video.FFmpegPath,
			FFprobePath: cfg.Video.FFprobePath,
			Logger:      log,
		},
	}

	local := newPocket(pocket.Config{
		ExecutablePath: cfg.TTS.CLIPath,
		ConfigPath:     cfg.TTS.CLIConfigPath,
		Quiet:          cfg.TTS.Quiet,
		Voices:         voices,
		Logger:         log,
	})
	p.Cloner = local
	if cfg.TTS.Backend == config.BackendPocket {
		p.Speech = local
	}

	key := apiKey(cfg, a.creds)
	switch {
	case key != "":
		g, err := newGemini(ctx, gemini.Config{
			APIKey:     key,
			TextModel:  cfg.Provider.TextModel,
			ImageModel: cfg.Provider.ImageModel,
			EditModel:  cfg.Provider.EditModel,
			TTSModel:   cfg.Provider.TTSModel,
			VideoModel: cfg.Provider.VideoModel,
			Logger:     log,
		})
		if err != nil {
			return nil, mapCLIError(err)
		}
		a.closers = append(a.closers, g.Close)

		p.Prompts = g
		p.Images = g
		p.Dialogue = g
		p.Text = g
		p.Video = g
		if p.Speech == nil {
			p.Speech = g
		}
	case opts.needProvider:
		return nil, mapCLIError(provider.ErrMissingCredential)
	}

	studioOpts := []studio.Option{
		studio.WithCredentials(a.creds),
		studio.WithLogger(log),
		studio.WithChunking(cfg.TTS.ChunkLimit, cfg.TTS.ChunkOptions()),
		studio.WithConcurrency(cfg.TTS.Concurrency),
		studio.WithRecorder(a.metrics),
		studio.WithMedia(media.NewStore(cfg.Server.MediaMaxBytes)),
		studio.WithVideoOptions(
			video.WithPollInterval(cfg.Provider.PollEvery()),
			video.WithJobRecorder(a.metrics),
		),
	}

	if opts.withHistory {
		h, err := history.Open(ctx, cfg.Paths.HistoryPath())
		if err != nil {
			a.Close()
			return nil, err
		}
		a.history = h
		a.closers = append(a.closers, h.Close)
		studioOpts = append(studioOpts, studio.WithHistory(h))
	}

	a.studio = studio.New(p, studioOpts...)
	return a, nil
}

// Close releases every client; errors are joined.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// run executes req, printing progress to stderr, and writes the outputs.
func (a *app) run(ctx context.Context, req studio.Request, out outputOptions) (*studio.Result, error) {
	start := time.Now()
	res, err := a.studio.Do(ctx, req, printProgress(out.progress))
	if err != nil {
		return nil, mapCLIError(err)
	}

	slog.DebugContext(ctx, "request complete",
		slog.String("kind", string(req.Kind())),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)

	if err := writeResult(a.studio.Media(), res, out); err != nil {
		return res, err
	}
	return res, nil
}
