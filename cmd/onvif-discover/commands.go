package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/onvifdiscovery/internal/config"
	"github.com/muurk/onvifdiscovery/internal/logging"
	"github.com/muurk/onvifdiscovery/internal/server"
	"github.com/muurk/onvifdiscovery/internal/tui"
	"github.com/muurk/onvifdiscovery/internal/urls"
	"github.com/muurk/onvifdiscovery/internal/wsdiscovery"
)

// Discovery flags, shared by scan, watch and serve. Unset flags leave the
// config file value in place.
var (
	scanTimeout       int
	probeInterval     int
	outputFormat      string
	interfaces        []string
	excludeInterfaces []string
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.IntVar(&scanTimeout, "timeout", config.DefaultDiscoverTimeout, "Discovery timeout in seconds")
	flags.IntVar(&probeInterval, "probe-interval", config.DefaultProbeInterval, "Probe re-send interval in milliseconds")
	flags.StringVar(&outputFormat, "format", config.DefaultOutputFormat, "Output format (detailed, compact, json, yaml)")
	flags.StringSliceVar(&interfaces, "interface", nil, "Only probe on these interfaces (repeatable)")
	flags.StringSliceVar(&excludeInterfaces, "exclude", nil, "Never probe on these interfaces (repeatable)")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
}

func flagChanged(cmd *cobra.Command, name string) bool {
	f := cmd.Flag(name)
	return f != nil && f.Changed
}

// loadPreferences reads the config file and applies flag overrides
func loadPreferences(cmd *cobra.Command) (*config.Preferences, error) {
	registry, err := config.LoadRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	prefs := *registry.Preferences
	applyFlags(cmd, &prefs)

	// --log-level wins over the config file
	if logLevel == "" && prefs.LogLevel != "" {
		if err := logging.Initialize(prefs.LogLevel); err != nil {
			return nil, err
		}
	}

	if err := prefs.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return &prefs, nil
}

func applyFlags(cmd *cobra.Command, prefs *config.Preferences) {
	if flagChanged(cmd, "timeout") {
		prefs.DiscoverTimeout = scanTimeout
	}
	if flagChanged(cmd, "probe-interval") {
		prefs.ProbeInterval = probeInterval
	}
	if flagChanged(cmd, "format") {
		prefs.OutputFormat = outputFormat
	}
	if flagChanged(cmd, "interface") {
		prefs.Interfaces = interfaces
	}
	if flagChanged(cmd, "exclude") {
		prefs.ExcludeInterfaces = excludeInterfaces
	}
}

// scanCmd performs a single discovery run
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for ONVIF devices on the network",
	Long: `Scan for ONVIF devices using WS-Discovery.

Probes are multicast on every eligible interface and re-sent until the
timeout elapses. Devices are printed as they answer; json and yaml
output is printed once the scan completes. Press Ctrl+C to stop early.`,
	Example: `  # Scan for 5 seconds (default)
  onvif-discover scan

  # One line per device
  onvif-discover scan --format compact

  # Longer scan on a single interface, JSON for scripting
  onvif-discover scan --timeout 15 --interface eth0 --format json`,
	RunE: runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	prefs, err := loadPreferences(cmd)
	if err != nil {
		return err
	}
	discoverer, err := prefs.NewDiscoverer()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	status := cmd.ErrOrStderr()
	out := newDeviceWriter(cmd.OutOrStdout(), prefs.OutputFormat)

	fmt.Fprintf(status, "Scanning for ONVIF devices (timeout: %s)...\n\n", prefs.Timeout())
	out.Begin()

	err = discoverer.DiscoverFunc(ctx, prefs.Timeout(), out.Write)
	if flushErr := out.Flush(); flushErr != nil && err == nil {
		err = flushErr
	}
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if ctx.Err() != nil {
		fmt.Fprintln(status, "discovery canceled")
	}

	if out.Count() == 0 {
		fmt.Fprintln(status, "No devices found.")
		fmt.Fprintln(status, "\nTroubleshooting:")
		fmt.Fprintln(status, "  - Ensure cameras are powered on and on the same network segment")
		fmt.Fprintln(status, "  - Check that WS-Discovery is enabled in the camera settings")
		fmt.Fprintln(status, "  - Allow UDP port 3702 through your firewall")
		fmt.Fprintln(status, "  - Try increasing --timeout for slower networks")
		fmt.Fprintf(status, "\nFor more information, see: %s\n", urls.TroubleshootingGuide)
		return nil
	}

	fmt.Fprintf(status, "\nFound %d device(s)\n", out.Count())
	return nil
}

// watchCmd runs discovery in a live terminal view
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch devices appear in a live view",
	Long: `Launch an interactive view that lists devices as they answer.

Press 'r' to scan again and 'q' to quit.`,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	if !tui.IsTerminal() {
		return errors.New("watch needs an interactive terminal; use 'onvif-discover scan' instead")
	}

	prefs, err := loadPreferences(cmd)
	if err != nil {
		return err
	}
	discoverer, err := prefs.NewDiscoverer()
	if err != nil {
		return err
	}

	timeout := prefs.Timeout()
	start := func(ctx context.Context) (*wsdiscovery.Stream, error) {
		return discoverer.Discover(ctx, timeout)
	}

	if err := tui.RunWatch(start, timeout); err != nil {
		return fmt.Errorf("watch error: %w", err)
	}
	return nil
}

// Serve command flags
var (
	serveAddr       string
	serveCertPath   string
	serveKeyPath    string
	serveMaxTimeout int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve discovery over HTTP and WebSocket",
	Long: `Start an HTTP server that runs discovery on request.

  GET /api/devices?timeout=N   JSON array of devices
  GET /ws/devices?timeout=N    WebSocket, one message per device
  GET /api/version             build information

--timeout sets the default for requests that do not pass one.`,
	Example: `  # Listen on all interfaces, port 8080
  onvif-discover serve

  # HTTPS on a custom port
  onvif-discover serve --addr :8443 --cert cert.pem --key key.pem`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Listen address (host:port)")
	serveCmd.Flags().StringVar(&serveCertPath, "cert", "", "Path to TLS certificate file")
	serveCmd.Flags().StringVar(&serveKeyPath, "key", "", "Path to TLS private key file")
	serveCmd.Flags().IntVar(&serveMaxTimeout, "max-timeout", int(server.MaxTimeout/time.Second), "Longest discovery a request may ask for, in seconds")
}

func runServe(cmd *cobra.Command, args []string) error {
	if (serveCertPath == "") != (serveKeyPath == "") {
		return errors.New("both --cert and --key must be provided together")
	}

	host, portStr, err := net.SplitHostPort(serveAddr)
	if err != nil {
		return fmt.Errorf("invalid --addr %q: %w", serveAddr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 0 || port > 65535 {
		return fmt.Errorf("invalid port in --addr %q", serveAddr)
	}

	prefs, err := loadPreferences(cmd)
	if err != nil {
		return err
	}
	discoverer, err := prefs.NewDiscoverer()
	if err != nil {
		return err
	}

	srv, err := server.New(&server.Config{
		Host:           host,
		Port:           port,
		CertPath:       serveCertPath,
		KeyPath:        serveKeyPath,
		DefaultTimeout: prefs.Timeout(),
		MaxTimeout:     time.Duration(serveMaxTimeout) * time.Second,
	}, discoverer)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Serving discovery on %s\n", serveAddr)
	logging.Info("Serve command started", zap.String("addr", serveAddr))
	return srv.Start(cmd.Context())
}

// configCmd manages the configuration file
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configForce bool

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.CreateDefaultConfig(configForce)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Configuration written to %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration file merged with any discovery flags given on
the command line, as scan, watch and serve would use it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		prefs, err := loadPreferences(cmd)
		if err != nil {
			return err
		}
		registry := &config.Registry{Version: 1, Preferences: prefs}
		data, err := registry.Marshal()
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file location",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.GetConfigPath()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
}
