package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/example/go-genstudio/internal/config"
	"github.com/example/go-genstudio/internal/credentials"
	"github.com/example/go-genstudio/internal/doctor"
	"github.com/example/go-genstudio/internal/provider/pocket"
	"github.com/example/go-genstudio/internal/tts"
)

// Test seam.
var probePythonVersion = doctor.PythonVersion

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the API key, media tools and local speech runtime",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			return runDoctor(cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	return cmd
}

func runDoctor(cfg config.Config, stdout, stderr io.Writer) error {
	_, _ = fmt.Fprintf(stdout, "speech backend: %s\n", cfg.TTS.Backend)

	exe := cfg.TTS.CLIPath
	if exe == "" {
		exe = pocket.DefaultExecutable
	}

	creds := credentials.NewStore(cfg.Paths.StateDir)
	local := cfg.TTS.Backend == config.BackendPocket

	result := doctor.Run(doctor.Config{
		HasCredential:    apiKey(cfg, creds) != "",
		FFmpegVersion:    doctor.CommandVersion(cfg.Video.FFmpegPath, "-version"),
		FFprobeVersion:   doctor.CommandVersion(cfg.Video.FFprobePath, "-version"),
		PocketTTSVersion: doctor.CommandVersion(exe, "--version"),
		SkipPocketTTS:    !local,
		PythonVersion:    probePythonVersion,
		StateDir:         cfg.Paths.StateDir,
		VoiceFiles:       collectVoiceFiles(cfg.Paths.VoicesManifest),
	}, stdout)

	if result.Failed() {
		for _, f := range result.Failures() {
			_, _ = fmt.Fprintf(stderr, "FAIL: %s\n", f)
		}

		return errors.New("doctor checks failed")
	}

	_, _ = fmt.Fprintln(stdout, "doctor checks passed")

	return nil
}

// collectVoiceFiles returns absolute voice file paths from the manifest,
// resolved relative to the manifest directory. Unresolvable entries keep
// their raw path so the check reports them.
func collectVoiceFiles(manifest string) []string {
	vm, err := tts.NewVoiceManager(manifest)
	if err != nil {
		return []string{manifest}
	}

	voices := vm.ListVoices()

	paths := make([]string, 0, len(voices))
	for _, v := range voices {
		resolved, err := vm.ResolvePath(v.ID)
		if err != nil {
			paths = append(paths, filepath.Join(vm.Dir(), v.Path))
			continue
		}
		if abs, err := filepath.Abs(resolved); err == nil {
			resolved = abs
		}
		paths = append(paths, resolved)
	}

	return paths
}
