package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/scratchpad-ai/agent-server/internal"
	"github.com/scratchpad-ai/agent-server/internal/config"
	"github.com/scratchpad-ai/agent-server/pkg/logger"
	"github.com/scratchpad-ai/agent-server/version"
)

func rootCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "scratchpad-agent",
		Short:   "Run the Scratchpad agent server",
		Version: version.Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return errors.Wrap(err, "loading configuration")
			}

			logCfg := logger.DefaultConfig()
			logCfg.Level = cfg.LogLevel
			if errs := logCfg.Validate(); len(errs) > 0 {
				return errors.Errorf("invalid log level %q", cfg.LogLevel)
			}
			logger.SetLogrus(*logCfg)

			server, err := internal.NewServer(cfg)
			if err != nil {
				return errors.Wrap(err, "initializing server")
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return server.Run(ctx)
		},
	}
}
