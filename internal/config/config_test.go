package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

// fakeBinder wraps a pflag.FlagSet to satisfy the flagBinder interface.
type fakeBinder struct {
	fs *pflag.FlagSet
}

func (f *fakeBinder) Flags() *pflag.FlagSet { return f.fs }

// newFlagBinder creates a FlagSet with all config flags registered at their defaults.
func newFlagBinder(defaults Config) *fakeBinder {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, defaults)

	return &fakeBinder{fs: fs}
}

// unsetEnv clears name for the duration of the test.
func unsetEnv(t *testing.T, names ...string) {
	t.Helper()
	for _, name := range names {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
}

func noEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

// --- DefaultConfig ---

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("Server.ListenAddr = %q; want %q", cfg.Server.ListenAddr, ":8080")
	}

	if cfg.Server.Workers != 4 {
		t.Errorf("Server.Workers = %d; want 4", cfg.Server.Workers)
	}

	if cfg.Server.MediaMaxBytes != 256<<20 {
		t.Errorf("Server.MediaMaxBytes = %d; want %d", cfg.Server.MediaMaxBytes, 256<<20)
	}

	if cfg.Server.ShutdownTimeout != 30 {
		t.Errorf("Server.ShutdownTimeout = %d; want 30", cfg.Server.ShutdownTimeout)
	}

	if cfg.TTS.Backend != BackendGemini {
		t.Errorf("TTS.Backend = %q; want %q", cfg.TTS.Backend, BackendGemini)
	}

	if cfg.TTS.ChunkLimit != 2500 || cfg.TTS.ChunkLookback != 500 || cfg.TTS.ChunkBreaks != ".?!\n" {
		t.Errorf("chunking = %d/%d/%q", cfg.TTS.ChunkLimit, cfg.TTS.ChunkLookback, cfg.TTS.ChunkBreaks)
	}

	if cfg.TTS.Voice != "Kore" {
		t.Errorf("TTS.Voice = %q; want Kore", cfg.TTS.Voice)
	}

	if cfg.Provider.PollEvery() != 10*time.Second {
		t.Errorf("PollEvery = %v; want 10s", cfg.Provider.PollEvery())
	}

	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, "info")
	}
}

func TestPathsHistoryPath(t *testing.T) {
	p := PathsConfig{StateDir: "/state"}
	if got := p.HistoryPath(); got != filepath.Join("/state", "history.db") {
		t.Errorf("HistoryPath = %q", got)
	}

	p.HistoryDB = "/tmp/h.db"
	if got := p.HistoryPath(); got != "/tmp/h.db" {
		t.Errorf("HistoryPath = %q", got)
	}
}

// --- NormalizeBackend ---

func TestNormalizeBackend(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"gemini", "gemini", "gemini", false},
		{"pocket", "pocket", "pocket", false},
		{"pocket-tts alias", "pocket-tts", "pocket", false},
		{"local alias uppercase", "LOCAL", "pocket", false},
		{"gemini with spaces", "  Gemini  ", "gemini", false},
		{"empty defaults to gemini", "", "gemini", false},
		{"invalid value", "onnx", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeBackend(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("NormalizeBackend(%q) = %q, nil; want error", tt.input, got)
				}

				return
			}

			if err != nil {
				t.Errorf("NormalizeBackend(%q) unexpected error: %v", tt.input, err)
				return
			}

			if got != tt.want {
				t.Errorf("NormalizeBackend(%q) = %q; want %q", tt.input, got, tt.want)
			}
		})
	}
}

// --- RegisterFlags ---

func TestRegisterFlags(t *testing.T) {
	defaults := DefaultConfig()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, defaults)

	checks := []struct {
		flag string
		want string
	}{
		{"server-listen-addr", ":8080"},
		{"server-media-max-bytes", "268435456"},
		{"tts-backend", "gemini"},
		{"tts-chunk-limit", "2500"},
		{"provider-poll-interval", "10"},
		{"video-ffmpeg-path", "ffmpeg"},
		{"log-level", "info"},
	}

	for _, c := range checks {
		f := fs.Lookup(c.flag)
		if f == nil {
			t.Errorf("flag %q not registered", c.flag)
			continue
		}

		if f.DefValue != c.want {
			t.Errorf("flag %q default = %q; want %q", c.flag, f.DefValue, c.want)
		}
	}
}

// --- Load ---

func TestLoad_Defaults(t *testing.T) {
	unsetEnv(t, "GEMINI_API_KEY", "GOOGLE_API_KEY", "GENSTUDIO_PROVIDER_API_KEY")
	defaults := DefaultConfig()

	cfg, err := Load(LoadOptions{
		Cmd:      newFlagBinder(defaults),
		Defaults: defaults,
		EnvFile:  noEnvFile(t),
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Workers != defaults.Server.Workers {
		t.Errorf("Server.Workers = %d; want %d", cfg.Server.Workers, defaults.Server.Workers)
	}

	if cfg.TTS.Backend != defaults.TTS.Backend {
		t.Errorf("TTS.Backend = %q; want %q", cfg.TTS.Backend, defaults.TTS.Backend)
	}

	if cfg.Provider.APIKey != "" {
		t.Errorf("Provider.APIKey = %q; want empty", cfg.Provider.APIKey)
	}
}

func TestLoad_FlagOverride(t *testing.T) {
	defaults := DefaultConfig()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, defaults)

	err := fs.Parse([]string{
		"--tts-backend=local",
		"--server-workers=8",
		"--server-media-max-bytes=1024",
		"--tts-chunk-limit=1200",
		"--log-level=debug",
	})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	cfg, err := Load(LoadOptions{
		Cmd:      &fakeBinder{fs: fs},
		Defaults: defaults,
		EnvFile:  noEnvFile(t),
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.TTS.Backend != BackendPocket {
		t.Errorf("TTS.Backend = %q; want %q", cfg.TTS.Backend, BackendPocket)
	}

	if cfg.Server.Workers != 8 {
		t.Errorf("Server.Workers = %d; want 8", cfg.Server.Workers)
	}

	if cfg.TTS.ChunkLimit != 1200 {
		t.Errorf("TTS.ChunkLimit = %d; want 1200", cfg.TTS.ChunkLimit)
	}

	if cfg.Server.MediaMaxBytes != 1024 {
		t.Errorf("Server.MediaMaxBytes = %d; want 1024", cfg.Server.MediaMaxBytes)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, "debug")
	}
}

func TestLoad_InvalidBackend(t *testing.T) {
	defaults := DefaultConfig()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, defaults)

	if err := fs.Parse([]string{"--tts-backend=onnx"}); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if _, err := Load(LoadOptions{Cmd: &fakeBinder{fs: fs}, Defaults: defaults, EnvFile: noEnvFile(t)}); err == nil {
		t.Error("Load() = nil; want error for invalid backend")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("GENSTUDIO_LOG_LEVEL", "warn")
	t.Setenv("GENSTUDIO_SERVER_LISTEN_ADDR", ":9999")

	defaults := DefaultConfig()

	cfg, err := Load(LoadOptions{
		Cmd:      newFlagBinder(defaults),
		Defaults: defaults,
		EnvFile:  noEnvFile(t),
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, "warn")
	}

	if cfg.Server.ListenAddr != ":9999" {
		t.Errorf("Server.ListenAddr = %q; want %q", cfg.Server.ListenAddr, ":9999")
	}
}

func TestLoad_APIKeyFromProviderEnv(t *testing.T) {
	unsetEnv(t, "GENSTUDIO_PROVIDER_API_KEY", "GOOGLE_API_KEY")
	t.Setenv("GEMINI_API_KEY", "gemini-key")

	cfg, err := Load(LoadOptions{Defaults: DefaultConfig(), EnvFile: noEnvFile(t)})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Provider.APIKey != "gemini-key" {
		t.Errorf("Provider.APIKey = %q; want gemini-key", cfg.Provider.APIKey)
	}
}

func TestLoad_DotEnvFile(t *testing.T) {
	unsetEnv(t, "GENSTUDIO_PROVIDER_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY")

	envFile := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(envFile, []byte("GOOGLE_API_KEY=from-dotenv\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("GOOGLE_API_KEY") })

	cfg, err := Load(LoadOptions{Defaults: DefaultConfig(), EnvFile: envFile})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Provider.APIKey != "from-dotenv" {
		t.Errorf("Provider.APIKey = %q; want from-dotenv", cfg.Provider.APIKey)
	}
}

func TestLoad_DotEnvDoesNotOverrideEnvironment(t *testing.T) {
	unsetEnv(t, "GENSTUDIO_PROVIDER_API_KEY", "GOOGLE_API_KEY")
	t.Setenv("GEMINI_API_KEY", "real")

	envFile := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(envFile, []byte("GEMINI_API_KEY=from-dotenv\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(LoadOptions{Defaults: DefaultConfig(), EnvFile: envFile})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Provider.APIKey != "real" {
		t.Errorf("Provider.APIKey = %q; want real", cfg.Provider.APIKey)
	}
}

func TestLoad_ConfigFileExists_NoError(t *testing.T) {
	cfgFile := filepath.Join(t.TempDir(), "genstudio.yaml")

	err := os.WriteFile(cfgFile, []byte("log_level: warn\n"), 0o644)
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := Load(LoadOptions{
		ConfigFile: cfgFile,
		Defaults:   DefaultConfig(),
		EnvFile:    noEnvFile(t),
	}); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
}

func TestLoad_InvalidConfigFile(t *testing.T) {
	cfgFile := filepath.Join(t.TempDir(), "bad.yaml")

	err := os.WriteFile(cfgFile, []byte(":\t:bad yaml:::"), 0o644)
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err = Load(LoadOptions{
		ConfigFile: cfgFile,
		Defaults:   DefaultConfig(),
		EnvFile:    noEnvFile(t),
	})
	if err == nil {
		t.Error("Load() = nil; want error for invalid config file")
	}
}

func TestLoad_MissingExplicitConfigFile(t *testing.T) {
	_, err := Load(LoadOptions{
		ConfigFile: "/nonexistent/path/genstudio.yaml",
		Defaults:   DefaultConfig(),
		EnvFile:    noEnvFile(t),
	})
	if err == nil {
		t.Error("Load() = nil; want error for missing explicit config file")
	}
}
