package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"stockpulse/internal/app"
	"stockpulse/internal/infrastructure"
)

func newServeCmd(state *cliState) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if port > 0 {
				state.cfg.Server.Port = port
			}
			logger := infrastructure.GetLogger()

			application, err := app.New(cmd.Context(), state.cfg, logger)
			if err != nil {
				logger.Error("Failed to initialize application", slog.String("error", err.Error()))
				return err
			}
			return application.Run(cmd.Context())
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides config)")
	return cmd
}
