package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/preston-bernstein/pacs-bridge/internal/config"
)

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a config file without starting",
		Long: `Parse the YAML, expand environment variables, apply overrides and
defaults, and report every problem that would stop the bridge from
starting.`,
		RunE: runValidate,
	}
	cmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Config is valid!")
	fmt.Fprintf(out, "  Provider:          %s\n", cfg.Provider)
	fmt.Fprintf(out, "  PACS server:       %s\n", cfg.URLs.PACSServer)
	if cfg.Requests.Events.Streaming {
		fmt.Fprintf(out, "  Events:            streaming (reconnect after %s)\n", cfg.Requests.Events.PollingInterval.Duration())
	} else {
		fmt.Fprintf(out, "  Events interval:   %s\n", cfg.Requests.Events.PollingInterval.Duration())
	}
	fmt.Fprintf(out, "  Devices interval:  %s\n", cfg.Requests.Devices.PollingInterval.Duration())
	policy := cfg.RetryPolicy()
	fmt.Fprintf(out, "  PACS backoff:      %s x%.1f, %d attempts\n", policy.Start, policy.Multiplier, policy.MaxAttempts)
	fmt.Fprintf(out, "  State backend:     %s\n", cfg.State.Backend)
	return nil
}
