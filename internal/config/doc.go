// Package config provides user configuration management for onvif-discover.
//
// This package manages a YAML-based configuration file holding discovery
// preferences: timeout, probe interval, multicast endpoint override,
// interface filters, default output format and log level. Discovered
// devices are never written to it.
//
// # Configuration File Location
//
// The configuration file is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/onvif-discover/config.yaml or $HOME/.config/onvif-discover/config.yaml
//   - macOS: $HOME/.config/onvif-discover/config.yaml
//   - Windows: %LOCALAPPDATA%\onvif-discover\config.yaml
//
// SetConfigPath overrides the location (the --config flag).
//
// # Usage Example
//
//	registry, err := config.LoadRegistry()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	discoverer, err := registry.Preferences.NewDiscoverer()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	devices, err := discoverer.DiscoverList(ctx, registry.Preferences.Timeout())
//
// # Thread Safety
//
// The global registry uses sync.Once for safe initialization across goroutines.
// File operations are protected by a mutex to ensure atomic writes.
package config
