// Netdiag is a terminal client for the network diagnostics backend.
//
// Running it without arguments opens the live dashboard: network info,
// devices (kept current over the backend's push channel), Wi-Fi networks
// and DNS health. The subcommands run one backend operation each and print
// the result as a table or as JSON.
//
// Usage:
//
//	netdiag [command] [flags]
//
// See 'netdiag --help' for available commands.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/netdiag/internal/logging"
	"github.com/muurk/netdiag/internal/version"
)

func main() {
	err := rootCmd.Execute()
	logging.Sync()
	if err != nil {
		var reported *reportedError
		if !errors.As(err, &reported) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "netdiag",
	Short: "Network diagnostics dashboard",
	Long: `A terminal client for the network diagnostics backend.

Shows the backend host's network position, the devices found on the LAN,
nearby Wi-Fi networks and DNS resolution health. Device changes pushed by
the backend appear without a refresh.

If no command is specified, the interactive dashboard launches.`,
	Version:           version.Version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	RunE:              runDashboard,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetVersionTemplate("netdiag {{.Version}}\n")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "netdiag %s (commit: %s)\n", version.Version, version.Commit)
	},
}

// reportedError marks a failure that has already been shown to the user
type reportedError struct {
	err error
}

func (e *reportedError) Error() string {
	return e.err.Error()
}

func (e *reportedError) Unwrap() error {
	return e.err
}
