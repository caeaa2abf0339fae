package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/example/go-genstudio/internal/text"
	"github.com/example/go-genstudio/internal/tts"
)

type Config struct {
	Provider ProviderConfig `mapstructure:"provider"`
	TTS      TTSConfig      `mapstructure:"tts"`
	Server   ServerConfig   `mapstructure:"server"`
	Video    VideoConfig    `mapstructure:"video"`
	Paths    PathsConfig    `mapstructure:"paths"`
	LogLevel string         `mapstructure:"log_level"`
}

type ProviderConfig struct {
	APIKey       string `mapstructure:"api_key"`
	TextModel    string `mapstructure:"text_model"`
	ImageModel   string `mapstructure:"image_model"`
	EditModel    string `mapstructure:"edit_model"`
	TTSModel     string `mapstructure:"tts_model"`
	VideoModel   string `mapstructure:"video_model"`
	PollInterval int    `mapstructure:"poll_interval"` // seconds
}

type TTSConfig struct {
	Backend       string `mapstructure:"backend"`
	Voice         string `mapstructure:"voice"`
	Style         string `mapstructure:"style"`
	ChunkLimit    int    `mapstructure:"chunk_limit"`
	ChunkLookback int    `mapstructure:"chunk_lookback"`
	ChunkBreaks   string `mapstructure:"chunk_breaks"`
	Concurrency   int    `mapstructure:"concurrency"`
	CLIPath       string `mapstructure:"cli_path"`
	CLIConfigPath string `mapstructure:"cli_config_path"`
	Quiet         bool   `mapstructure:"quiet"`
}

// ChunkOptions returns the configured break options.
func (c TTSConfig) ChunkOptions() text.ChunkOptions {
	return text.ChunkOptions{Lookback: c.ChunkLookback, Breaks: c.ChunkBreaks}
}

type ServerConfig struct {
	ListenAddr      string `mapstructure:"listen_addr"`
	MaxTextBytes    int    `mapstructure:"max_text_bytes"`
	RequestTimeout  int    `mapstructure:"request_timeout"`  // seconds
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // seconds
	Workers         int    `mapstructure:"workers"`
	MediaMaxBytes   int64  `mapstructure:"media_max_bytes"` // 0 disables the cap
}

type VideoConfig struct {
	FFmpegPath  string `mapstructure:"ffmpeg_path"`
	FFprobePath string `mapstructure:"ffprobe_path"`
}

type PathsConfig struct {
	StateDir       string `mapstructure:"state_dir"`
	HistoryDB      string `mapstructure:"history_db"`
	VoicesManifest string `mapstructure:"voices_manifest"`
	OutputDir      string `mapstructure:"output_dir"`
}

// HistoryPath is HistoryDB, or history.db inside StateDir.
func (p PathsConfig) HistoryPath() string {
	if p.HistoryDB != "" {
		return p.HistoryDB
	}
	return filepath.Join(p.StateDir, "history.db")
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
	// EnvFile is loaded before the environment is read. Empty means ".env";
	// a missing file is ignored.
	EnvFile string
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

// DefaultStateDir is $XDG_CONFIG_HOME/genstudio or its platform equivalent,
// falling back to .genstudio in the working directory.
func DefaultStateDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".genstudio"
	}
	return filepath.Join(dir, "genstudio")
}

func DefaultConfig() Config {
	return Config{
		Provider: ProviderConfig{
			TextModel:    "gemini-2.5-flash",
			ImageModel:   "imagen-4.0-generate-001",
			EditModel:    "gemini-2.5-flash-image",
			TTSModel:     "gemini-2.5-flash-preview-tts",
			VideoModel:   "veo-3.1-fast-generate-preview",
			PollInterval: 10,
		},
		TTS: TTSConfig{
			Backend:       BackendGemini,
			Voice:         tts.DefaultVoice,
			ChunkLimit:    text.DefaultChunkLimit,
			ChunkLookback: text.DefaultLookback,
			ChunkBreaks:   text.DefaultBreaks,
			Concurrency:   0,
			CLIPath:       "",
			CLIConfigPath: "",
			Quiet:         true,
		},
		Server: ServerConfig{
			ListenAddr:      ":8080",
			MaxTextBytes:    64 << 10,
			RequestTimeout:  300,
			ShutdownTimeout: 30,
			Workers:         4,
			MediaMaxBytes:   256 << 20,
		},
		Video: VideoConfig{
			FFmpegPath:  "ffmpeg",
			FFprobePath: "ffprobe",
		},
		Paths: PathsConfig{
			StateDir:       DefaultStateDir(),
			HistoryDB:      "",
			VoicesManifest: "voices/voices.json",
			OutputDir:      ".",
		},
		LogLevel: "info",
	}
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("provider-api-key", defaults.Provider.APIKey, "Gemini API key")
	fs.String("provider-text-model", defaults.Provider.TextModel, "Model for prompts, storyboards and scripts")
	fs.String("provider-image-model", defaults.Provider.ImageModel, "Model for prompt-to-image generation")
	fs.String("provider-edit-model", defaults.Provider.EditModel, "Model for image editing, restoration and compositing")
	fs.String("provider-tts-model", defaults.Provider.TTSModel, "Model for speech synthesis")
	fs.String("provider-video-model", defaults.Provider.VideoModel, "Default video generation model")
	fs.Int("provider-poll-interval", defaults.Provider.PollInterval, "Seconds between video job status checks")
	fs.String("tts-backend", defaults.TTS.Backend, "Speech backend: gemini|pocket")
	fs.String("tts-voice", defaults.TTS.Voice, "Prebuilt voice name or local voice id")
	fs.String("tts-style", defaults.TTS.Style, "Optional reading style hint")
	fs.Int("tts-chunk-limit", defaults.TTS.ChunkLimit, "Maximum characters per synthesis request")
	fs.Int("tts-chunk-lookback", defaults.TTS.ChunkLookback, "How far before the limit a break may be used")
	fs.String("tts-chunk-breaks", defaults.TTS.ChunkBreaks, "Characters that end a chunk")
	fs.Int("tts-concurrency", defaults.TTS.Concurrency, "Max concurrent chunk syntheses (0 = unbounded)")
	fs.String("tts-cli-path", defaults.TTS.CLIPath, "Path to pocket-tts executable")
	fs.String("tts-cli-config-path", defaults.TTS.CLIConfigPath, "Path to pocket-tts config file")
	fs.Bool("tts-quiet", defaults.TTS.Quiet, "Pass --quiet to pocket-tts generate")
	fs.String("server-listen-addr", defaults.Server.ListenAddr, "HTTP listen address")
	fs.Int("server-max-text-bytes", defaults.Server.MaxTextBytes, "Maximum request text size in bytes")
	fs.Int("server-request-timeout", defaults.Server.RequestTimeout, "Per-request timeout in seconds")
	fs.Int("server-shutdown-timeout", defaults.Server.ShutdownTimeout, "Graceful shutdown timeout in seconds")
	fs.Int("server-workers", defaults.Server.Workers, "Max concurrent speech requests")
	fs.Int64("server-media-max-bytes", defaults.Server.MediaMaxBytes, "Cap on in-memory generated media in bytes (0 = unbounded)")
	fs.String("video-ffmpeg-path", defaults.Video.FFmpegPath, "Path to ffmpeg")
	fs.String("video-ffprobe-path", defaults.Video.FFprobePath, "Path to ffprobe")
	fs.String("paths-state-dir", defaults.Paths.StateDir, "Directory for credentials and history")
	fs.String("paths-history-db", defaults.Paths.HistoryDB, "History database path (default <state-dir>/history.db)")
	fs.String("paths-voices-manifest", defaults.Paths.VoicesManifest, "Local voice manifest")
	fs.String("paths-output-dir", defaults.Paths.OutputDir, "Directory generated files are written to")
	fs.String("log-level", defaults.LogLevel, "Log level: debug|info|warn|error")
}

func Load(opts LoadOptions) (Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}

	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := v.BindPFlags(opts.Cmd.Flags()); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}
	registerAliases(v)

	v.SetEnvPrefix("GENSTUDIO")
	replacer := strings.NewReplacer("-", "_", ".", "_", "__", "_")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("genstudio")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	if cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = apiKeyFromEnv()
	}

	backend, err := NormalizeBackend(cfg.TTS.Backend)
	if err != nil {
		return Config{}, err
	}
	cfg.TTS.Backend = backend

	return cfg, nil
}

// apiKeyFromEnv reads the variables the Gemini SDKs use themselves.
func apiKeyFromEnv() string {
	for _, name := range []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"} {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return v
		}
	}
	return ""
}

// PollEvery returns the video poll interval as a duration.
func (c ProviderConfig) PollEvery() time.Duration {
	if c.PollInterval <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.PollInterval) * time.Second
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("provider.api_key", c.Provider.APIKey)
	v.SetDefault("provider.text_model", c.Provider.TextModel)
	v.SetDefault("provider.image_model", c.Provider.ImageModel)
	v.SetDefault("provider.edit_model", c.Provider.EditModel)
	v.SetDefault("provider.tts_model", c.Provider.TTSModel)
	v.SetDefault("provider.video_model", c.Provider.VideoModel)
	v.SetDefault("provider.poll_interval", c.Provider.PollInterval)
	v.SetDefault("tts.backend", c.TTS.Backend)
	v.SetDefault("tts.voice", c.TTS.Voice)
	v.SetDefault("tts.style", c.TTS.Style)
	v.SetDefault("tts.chunk_limit", c.TTS.ChunkLimit)
	v.SetDefault("tts.chunk_lookback", c.TTS.ChunkLookback)
	v.SetDefault("tts.chunk_breaks", c.TTS.ChunkBreaks)
	v.SetDefault("tts.concurrency", c.TTS.Concurrency)
	v.SetDefault("tts.cli_path", c.TTS.CLIPath)
	v.SetDefault("tts.cli_config_path", c.TTS.CLIConfigPath)
	v.SetDefault("tts.quiet", c.TTS.Quiet)
	v.SetDefault("server.listen_addr", c.Server.ListenAddr)
	v.SetDefault("server.max_text_bytes", c.Server.MaxTextBytes)
	v.SetDefault("server.request_timeout", c.Server.RequestTimeout)
	v.SetDefault("server.shutdown_timeout", c.Server.ShutdownTimeout)
	v.SetDefault("server.workers", c.Server.Workers)
	v.SetDefault("server.media_max_bytes", c.Server.MediaMaxBytes)
	v.SetDefault("video.ffmpeg_path", c.Video.FFmpegPath)
	v.SetDefault("video.ffprobe_path", c.Video.FFprobePath)
	v.SetDefault("paths.state_dir", c.Paths.StateDir)
	v.SetDefault("paths.history_db", c.Paths.HistoryDB)
	v.SetDefault("paths.voices_manifest", c.Paths.VoicesManifest)
	v.SetDefault("paths.output_dir", c.Paths.OutputDir)
	v.SetDefault("log_level", c.LogLevel)
}

func registerAliases(v *viper.Viper) {
	v.RegisterAlias("provider.api_key", "provider-api-key")
	v.RegisterAlias("provider.text_model", "provider-text-model")
	v.RegisterAlias("provider.image_model", "provider-image-model")
	v.RegisterAlias("provider.edit_model", "provider-edit-model")
	v.RegisterAlias("provider.tts_model", "provider-tts-model")
	v.RegisterAlias("provider.video_model", "provider-video-model")
	v.RegisterAlias("provider.poll_interval", "provider-poll-interval")
	v.RegisterAlias("tts.backend", "tts-backend")
	v.RegisterAlias("tts.voice", "tts-voice")
	v.RegisterAlias("tts.style", "tts-style")
	v.RegisterAlias("tts.chunk_limit", "tts-chunk-limit")
	v.RegisterAlias("tts.chunk_lookback", "tts-chunk-lookback")
	v.RegisterAlias("tts.chunk_breaks", "tts-chunk-breaks")
	v.RegisterAlias("tts.concurrency", "tts-concurrency")
	v.RegisterAlias("tts.cli_path", "tts-cli-path")
	v.RegisterAlias("tts.cli_config_path", "tts-cli-config-path")
	v.RegisterAlias("tts.quiet", "tts-quiet")
	v.RegisterAlias("server.listen_addr", "server-listen-addr")
	v.RegisterAlias("server.max_text_bytes", "server-max-text-bytes")
	v.RegisterAlias("server.request_timeout", "server-request-timeout")
	v.RegisterAlias("server.shutdown_timeout", "server-shutdown-timeout")
	v.RegisterAlias("server.workers", "server-workers")
	v.RegisterAlias("server.media_max_bytes", "server-media-max-bytes")
	v.RegisterAlias("video.ffmpeg_path", "video-ffmpeg-path")
	v.RegisterAlias("video.ffprobe_path", "video-ffprobe-path")
	v.RegisterAlias("paths.state_dir", "paths-state-dir")
	v.RegisterAlias("paths.history_db", "paths-history-db")
	v.RegisterAlias("paths.voices_manifest", "paths-voices-manifest")
	v.RegisterAlias("paths.output_dir", "paths-output-dir")
	v.RegisterAlias("log_level", "log-level")
}
