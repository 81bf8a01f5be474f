// Package logging provides structured logging for onvif-discover.
//
// This package wraps a zap logger with convenience functions for the common
// logging patterns of the discovery engine, its transports and the command
// line tools.
//
// # Log Levels
//
//   - Debug: Per-datagram details (hex dumps of discarded replies, session state changes)
//   - Info: Normal operations (devices discovered, discovery finished)
//   - Warn: Non-fatal issues (interfaces skipped, recovered processing faults)
//   - Error: Fatal issues (send failures, startup failures)
//
// # Structured Logging
//
//	logging.Info("Device discovered",
//	    zap.String("address", "192.168.1.100"),
//	    zap.String("model", "P3245-LVE"),
//	)
//
// # Specialized Logging
//
//	logging.LogSession("eth0/192.168.1.5", "probing")
//	logging.LogDatagram("Discarding undecodable datagram", iface, src, payload, err)
//	logging.LogDevice(iface, address, model, mfr, xaddrs)
//
// # Configuration
//
// Logging is silent unless a level is given explicitly or through the
// ONVIF_DISCOVER_LOG_LEVEL environment variable:
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// Output goes to stderr so that machine-readable scan output on stdout
// (json, yaml) is never interleaved with log lines.
package logging
