package main

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/muurk/onvifdiscovery/internal/wsdiscovery"
)

// deviceWriter renders devices in one output format. Text formats are
// written as devices arrive; json and yaml need the full list and are
// written by Flush.
type deviceWriter struct {
	w       io.Writer
	format  string
	devices []wsdiscovery.Device
}

func newDeviceWriter(w io.Writer, format string) *deviceWriter {
	return &deviceWriter{w: w, format: format, devices: []wsdiscovery.Device{}}
}

// Begin writes anything that precedes the first device
func (dw *deviceWriter) Begin() {
	if dw.format == "compact" {
		fmt.Fprintf(dw.w, "%-15s  %-20s  %-20s  %s\n", "ADDRESS", "MANUFACTURER", "MODEL", "SERVICE")
	}
}

// Write records dev and prints it immediately for text formats
func (dw *deviceWriter) Write(dev wsdiscovery.Device) {
	dw.devices = append(dw.devices, dev)

	switch dw.format {
	case "compact":
		fmt.Fprintln(dw.w, dev.FormatCompact())
	case "json", "yaml":
	default:
		fmt.Fprintln(dw.w, dev.FormatDetailed())
	}
}

// Flush writes the collected list for json and yaml
func (dw *deviceWriter) Flush() error {
	switch dw.format {
	case "json":
		return writeJSON(dw.w, dw.devices)
	case "yaml":
		data, err := yaml.Marshal(dw.devices)
		if err != nil {
			return fmt.Errorf("failed to marshal YAML: %w", err)
		}
		_, err = dw.w.Write(data)
		return err
	}
	return nil
}

// Count returns the number of devices written
func (dw *deviceWriter) Count() int {
	return len(dw.devices)
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
