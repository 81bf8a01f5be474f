package config

import (
	"fmt"
	"net"
	"slices"
	"strconv"
	"time"

	"github.com/muurk/onvifdiscovery/internal/transport"
	"github.com/muurk/onvifdiscovery/internal/wsdiscovery"
)

// Defaults applied to new and partially filled config files.
const (
	DefaultDiscoverTimeout = 5   // seconds
	DefaultProbeInterval   = 500 // milliseconds
	DefaultOutputFormat    = "detailed"
)

// OutputFormats lists the formats accepted by scan --format
var OutputFormats = []string{"detailed", "compact", "json", "yaml"}

// Registry represents the entire user configuration file.
// Only preferences are stored; discovered devices are never persisted.
type Registry struct {
	Version     int          `yaml:"version"`
	Preferences *Preferences `yaml:"preferences,omitempty"`
}

// Preferences represents application-wide discovery preferences.
type Preferences struct {
	DiscoverTimeout   int      `yaml:"discover_timeout"`             // Discovery duration in seconds
	ProbeInterval     int      `yaml:"probe_interval"`               // Probe re-send interval in milliseconds
	MulticastAddress  string   `yaml:"multicast_address,omitempty"`  // host:port override of 239.255.255.250:3702
	Interfaces        []string `yaml:"interfaces,omitempty"`         // Only probe on these interfaces
	ExcludeInterfaces []string `yaml:"exclude_interfaces,omitempty"` // Never probe on these interfaces
	OutputFormat      string   `yaml:"output_format"`                // detailed, compact, json or yaml
	LogLevel          string   `yaml:"log_level,omitempty"`          // debug, info, warn, error; empty is silent
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version:     1,
		Preferences: NewPreferences(),
	}
}

// NewPreferences returns the default preferences.
func NewPreferences() *Preferences {
	return &Preferences{
		DiscoverTimeout: DefaultDiscoverTimeout,
		ProbeInterval:   DefaultProbeInterval,
		OutputFormat:    DefaultOutputFormat,
	}
}

// applyDefaults fills zero values left by a hand-edited file
func (p *Preferences) applyDefaults() {
	if p.DiscoverTimeout == 0 {
		p.DiscoverTimeout = DefaultDiscoverTimeout
	}
	if p.ProbeInterval == 0 {
		p.ProbeInterval = DefaultProbeInterval
	}
	if p.OutputFormat == "" {
		p.OutputFormat = DefaultOutputFormat
	}
}

// Validate checks the preferences for values discovery cannot use.
func (p *Preferences) Validate() error {
	if p.DiscoverTimeout <= 0 {
		return fmt.Errorf("discover_timeout must be positive, got %d", p.DiscoverTimeout)
	}
	if p.ProbeInterval < 50 {
		return fmt.Errorf("probe_interval must be at least 50ms, got %d", p.ProbeInterval)
	}
	if !slices.Contains(OutputFormats, p.OutputFormat) {
		return fmt.Errorf("output_format %q is not one of %v", p.OutputFormat, OutputFormats)
	}
	if p.MulticastAddress != "" {
		if _, err := p.multicastEndpoint(); err != nil {
			return err
		}
	}
	for _, name := range p.Interfaces {
		if slices.Contains(p.ExcludeInterfaces, name) {
			return fmt.Errorf("interface %q is both included and excluded", name)
		}
	}
	return nil
}

// Timeout returns DiscoverTimeout as a duration
func (p *Preferences) Timeout() time.Duration {
	return time.Duration(p.DiscoverTimeout) * time.Second
}

func (p *Preferences) multicastEndpoint() (*net.UDPAddr, error) {
	host, port, err := net.SplitHostPort(p.MulticastAddress)
	if err != nil {
		return nil, fmt.Errorf("invalid multicast_address %q: %w", p.MulticastAddress, err)
	}
	ip := net.ParseIP(host)
	if ip == nil || ip.To4() == nil {
		return nil, fmt.Errorf("invalid multicast_address %q: not an IPv4 address", p.MulticastAddress)
	}
	n, err := strconv.Atoi(port)
	if err != nil || n <= 0 || n > 65535 {
		return nil, fmt.Errorf("invalid multicast_address %q: bad port", p.MulticastAddress)
	}
	return &net.UDPAddr{IP: ip, Port: n}, nil
}

// ToOptions converts the preferences into discovery engine options.
func (p *Preferences) ToOptions() (wsdiscovery.Options, error) {
	opts := wsdiscovery.Options{
		ProbeInterval: time.Duration(p.ProbeInterval) * time.Millisecond,
	}
	if p.MulticastAddress != "" {
		endpoint, err := p.multicastEndpoint()
		if err != nil {
			return opts, err
		}
		opts.Endpoint = endpoint
	}
	return opts, nil
}

// ToFactoryConfig converts the interface filters into transport settings.
func (p *Preferences) ToFactoryConfig() transport.FactoryConfig {
	return transport.FactoryConfig{
		Include:      slices.Clone(p.Interfaces),
		Exclude:      slices.Clone(p.ExcludeInterfaces),
		MulticastTTL: transport.DefaultMulticastTTL,
	}
}

// NewDiscoverer builds a Discoverer over the host interfaces using the
// preferences.
func (p *Preferences) NewDiscoverer() (*wsdiscovery.Discoverer, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	opts, err := p.ToOptions()
	if err != nil {
		return nil, err
	}
	factory := transport.NewInterfaceFactory(p.ToFactoryConfig())
	return wsdiscovery.NewDiscoverer(factory, opts), nil
}
