// Onvif-discover finds ONVIF cameras and encoders on the local network.
//
// It multicasts WS-Discovery probes on every eligible interface and
// reports each device that answers: address, manufacturer, model and
// service URLs.
//
// Usage:
//
//	onvif-discover [command] [flags]
//
// Running without a command performs a single scan.
// See 'onvif-discover --help' for available commands.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/onvifdiscovery/internal/config"
	"github.com/muurk/onvifdiscovery/internal/logging"
	"github.com/muurk/onvifdiscovery/internal/urls"
	"github.com/muurk/onvifdiscovery/internal/version"
	"github.com/muurk/onvifdiscovery/internal/wsdiscovery"
)

func main() {
	err := rootCmd.Execute()
	logging.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)

		var discErr *wsdiscovery.DiscoveryError
		if errors.As(err, &discErr) {
			fmt.Fprintf(os.Stderr, "\n%s\n", wsdiscovery.GetTroubleshootingHint(err))
		}
		os.Exit(1)
	}
}

// Global flags
var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "onvif-discover",
	Short: "ONVIF Device Discovery",
	Long: `Find ONVIF cameras and encoders on the local network.

Sends WS-Discovery probes to 239.255.255.250:3702 on every eligible
network interface and reports each device that answers, along with
its manufacturer, model and service addresses.

If no command is specified, a single scan is performed.

Protocol references:
  ` + urls.WSDiscoverySpec + `
  ` + urls.ONVIFCoreSpec,
	Version:       version.Version,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configPath != "" {
			config.SetConfigPath(configPath)
		}
		if err := logging.Initialize(logLevel); err != nil {
			return err
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default behavior: scan when no subcommand provided
		return runScan(cmd, args)
	},
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: platform config dir)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); silent when unset")

	rootCmd.AddCommand(versionCmd)
}

var versionJSON bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		if versionJSON {
			return writeJSON(cmd.OutOrStdout(), version.Get())
		}
		fmt.Fprintf(cmd.OutOrStdout(), "onvif-discover %s\n", version.Full())
		return nil
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "Print build information as JSON")
}
