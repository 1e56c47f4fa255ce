package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gogpu/gpuactor/config"
	"github.com/gogpu/gpuactor/internal/daemon"
)

func serveCmd(debug *bool) *cobra.Command {
	var (
		configPath string
		socket     string
		metrics    string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the actor in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("socket") {
				cfg.Socket = socket
			}
			if cmd.Flags().Changed("metrics-addr") {
				cfg.MetricsAddr = metrics
			}
			// --debug wins over the configured level.
			if !*debug {
				level, err := cfg.Level()
				if err != nil {
					return err
				}
				configureLogger(level)
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return daemon.Run(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "YAML configuration file")
	cmd.Flags().StringVar(&socket, "socket", config.Default().Socket, "Unix socket path (overrides the configuration)")
	cmd.Flags().StringVar(&metrics, "metrics-addr", "", "Prometheus listen address (overrides the configuration)")
	return cmd
}
