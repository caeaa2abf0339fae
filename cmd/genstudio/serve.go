package main

import (
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/go-genstudio/internal/config"
	"github.com/example/go-genstudio/internal/server"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the speech HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, appOptions{needProvider: needsProvider(cfg)})
			if err != nil {
				return err
			}
			defer a.Close()

			srv := server.New(cfg.Server.ListenAddr, a.studio, a.voices,
				server.WithMaxTextBytes(cfg.Server.MaxTextBytes),
				server.WithWorkers(cfg.Server.Workers),
				server.WithRequestTimeout(time.Duration(cfg.Server.RequestTimeout)*time.Second),
				server.WithLogger(slog.Default()),
				server.WithMetrics(a.metrics),
			).WithShutdownTimeout(time.Duration(cfg.Server.ShutdownTimeout) * time.Second)

			return srv.Start(ctx)
		},
	}

	return cmd
}

// needsProvider reports whether speech goes through the remote provider.
func needsProvider(cfg config.Config) bool {
	return cfg.TTS.Backend != config.BackendPocket
}
