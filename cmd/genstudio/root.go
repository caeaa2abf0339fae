package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/go-genstudio/internal/config"
	"github.com/example/go-genstudio/internal/server"
)

var (
	cfgFile   string
	activeCfg config.Config
)

func NewRootCmd() *cobra.Command {
	defaults := config.DefaultConfig()

	cmd := &cobra.Command{
		Use:           "genstudio",
		Short:         "Generative media studio: images, video, scripts and speech",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := config.Load(config.LoadOptions{
				Cmd:        cmd,
				ConfigFile: cfgFile,
				Defaults:   defaults,
			})
			if err != nil {
				return err
			}
			activeCfg = loaded
			setupLogger(loaded.LogLevel)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Optional config file (yaml|toml|json)")
	config.RegisterFlags(cmd.PersistentFlags(), defaults)

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newHealthCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newChunkCmd())
	cmd.AddCommand(newSynthCmd())
	cmd.AddCommand(newDialogueCmd())
	cmd.AddCommand(newMergeCmd())
	cmd.AddCommand(newVoicesCmd())
	cmd.AddCommand(newCloneVoiceCmd())
	cmd.AddCommand(newImageCmd())
	cmd.AddCommand(newVideoCmd())
	cmd.AddCommand(newEditVideoCmd())
	cmd.AddCommand(newStoryboardCmd())
	cmd.AddCommand(newScriptCmd())
	cmd.AddCommand(newStoryCmd())
	cmd.AddCommand(newAnalyzeCmd())
	cmd.AddCommand(newKeyCmd())
	cmd.AddCommand(newHistoryCmd())

	return cmd
}

// setupLogger configures the process-wide slog default logger.
func setupLogger(levelStr string) {
	lvl, err := server.ParseLogLevel(levelStr)
	if err != nil {
		lvl = slog.LevelInfo
	}
	h := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(h))
}

func requireConfig() (config.Config, error) {
	if activeCfg.Paths.StateDir == "" {
		return config.Config{}, fmt.Errorf("configuration not loaded")
	}
	return activeCfg, nil
}
