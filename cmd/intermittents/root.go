package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/webext-qa/intermittents/internal/log"
)

// NewRootCmd creates the root command for intermittents.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "intermittents",
		Short: "Report disabled intermittent-failure tests",
		Long: `intermittents fetches the open intermittent-failure bugs of a Bugzilla
product, joins them with a curated notes spreadsheet, and renders a
table of disabled tests with a "Last generated" caption.

Every successful run is kept in a local history database so that two
runs can be compared with "intermittents history --diff".`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs to stderr as JSON lines")

	cmd.AddCommand(NewReportCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// newLogger returns the stderr logger selected by the global flags.
func newLogger(cmd *cobra.Command, verbose bool) *slog.Logger {
	asJSON, err := cmd.Flags().GetBool("log-json")
	if err != nil {
		asJSON, _ = cmd.Root().PersistentFlags().GetBool("log-json") //nolint:errcheck
	}
	if asJSON {
		return log.NewJSON(cmd.ErrOrStderr(), verbose)
	}
	return log.New(cmd.ErrOrStderr(), verbose)
}
