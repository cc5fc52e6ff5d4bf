// Command pacsbridge polls or streams access-control events from a vendor
// API and forwards them to the PACS ingestion API.
//
//	pacsbridge run -c config.yaml
//	pacsbridge validate -c config.yaml
//	pacsbridge version
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const serviceName = "pacs-bridge"

// set via -ldflags "-X main.version=..."
var (
	version = "dev"
	commit  = "none"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "pacsbridge",
		Short:         "Forward access-control events to the PACS API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newValidateCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "pacsbridge %s (commit %s)\n", version, commit)
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
