package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/preston-bernstein/pacs-bridge/internal/config"
	"github.com/preston-bernstein/pacs-bridge/internal/logging"
	"github.com/preston-bernstein/pacs-bridge/internal/server"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the poll loops and the status server",
		Long: `Start the bridge. It runs until interrupted (Ctrl+C) or it receives
SIGTERM. A configuration that fails validation exits non-zero before
anything starts; failures during polling are logged and retried.`,
		RunE: runBridge,
	}
	cmd.Flags().StringP("config", "c", "", "path to config file (environment only when empty)")
	return cmd
}

func runBridge(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := logging.NewLogger(logging.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: serviceName,
		Version: version,
		Output:  os.Stderr,
	})
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := server.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}
	logger.Info("bridge starting",
		slog.String(logging.FieldProvider, cfg.Provider),
		slog.String("pacs_server", cfg.URLs.PACSServer),
		slog.Bool("streaming", cfg.Requests.Events.Streaming),
	)
	srv.Run(ctx, stop)
	return nil
}
