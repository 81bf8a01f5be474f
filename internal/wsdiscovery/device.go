package wsdiscovery

import (
	"fmt"
	"strings"
)

// Device is a discovered ONVIF device. Values are never mutated after they
// leave the discovery engine.
type Device struct {
	// Types are the advertised capability tokens, e.g. "dn:NetworkVideoTransmitter"
	Types []string `json:"types" yaml:"types"`

	// XAddresses are the device service URLs
	XAddresses []string `json:"xaddrs" yaml:"xaddrs"`

	// Model is parsed from the hardware/ scope ("" if absent)
	Model string `json:"model" yaml:"model"`

	// Mfr is parsed from the mfr/ or name/ scope ("" if absent)
	Mfr string `json:"mfr" yaml:"mfr"`

	// Address is the IP the reply came from
	Address string `json:"address" yaml:"address"`

	// Scopes are the raw scope URIs
	Scopes []string `json:"scopes" yaml:"scopes"`

	// EndpointReference is the device's stable identifier, usually urn:uuid:...
	EndpointReference string `json:"endpoint_reference,omitempty" yaml:"endpoint_reference,omitempty"`

	MetadataVersion string `json:"metadata_version,omitempty" yaml:"metadata_version,omitempty"`

	// Interface is the local transport that first saw the device
	Interface string `json:"interface,omitempty" yaml:"interface,omitempty"`
}

// String returns a human-readable string representation of the device
func (d Device) String() string {
	name := strings.TrimSpace(d.Mfr + " " + d.Model)
	if name == "" {
		name = "Unknown device"
	}
	return fmt.Sprintf("%s at %s", name, d.Address)
}

// PrimaryXAddress returns the first service URL, or "" if there is none
func (d Device) PrimaryXAddress() string {
	if len(d.XAddresses) == 0 {
		return ""
	}
	return d.XAddresses[0]
}

// FormatCompact returns a single line suitable for streaming to a terminal
func (d Device) FormatCompact() string {
	return fmt.Sprintf("%-15s  %-20s  %-20s  %s",
		d.Address, orDash(d.Mfr), orDash(d.Model), orDash(d.PrimaryXAddress()))
}

// FormatDetailed returns a multi-line block with every field
func (d Device) FormatDetailed() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("=== %s ===\n", d.String()))
	b.WriteString(fmt.Sprintf("Address:       %s\n", d.Address))
	b.WriteString(fmt.Sprintf("Manufacturer:  %s\n", orDash(d.Mfr)))
	b.WriteString(fmt.Sprintf("Model:         %s\n", orDash(d.Model)))
	if d.EndpointReference != "" {
		b.WriteString(fmt.Sprintf("Endpoint:      %s\n", d.EndpointReference))
	}
	if d.Interface != "" {
		b.WriteString(fmt.Sprintf("Interface:     %s\n", d.Interface))
	}

	writeList(&b, "Services", d.XAddresses)
	writeList(&b, "Types", d.Types)
	writeList(&b, "Scopes", d.Scopes)

	return b.String()
}

func writeList(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		b.WriteString(fmt.Sprintf("%-14s (none)\n", label+":"))
		return
	}
	b.WriteString(fmt.Sprintf("%s:\n", label))
	for _, item := range items {
		b.WriteString(fmt.Sprintf("  • %s\n", item))
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
