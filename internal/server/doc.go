// Package server exposes ONVIF device discovery over HTTP and WebSocket.
//
// Every request runs its own discovery; nothing is cached between
// requests.
//
// # Routes
//
//	GET /api/devices?timeout=N   JSON array of every device found within N seconds
//	GET /ws/devices?timeout=N    WebSocket stream, one JSON message per device
//	GET /api/version             build information
//
// timeout is optional, in whole seconds, and capped at Config.MaxTimeout.
// A stream ends with a StreamEnd message:
//
//	{"done":true,"count":2}
//	{"error":"No Interfaces: ...","hint":"..."}
//
// then a normal close frame. Closing the socket early cancels the
// discovery behind it.
//
// # Usage Example
//
//	discoverer, err := registry.Preferences.NewDiscoverer()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	srv, err := server.New(&server.Config{Port: 8080}, discoverer)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Start blocks until ctx is done, SIGINT/SIGTERM, or a listener error
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # TLS
//
// Setting Config.CertPath and Config.KeyPath serves HTTPS (and wss://)
// with TLS 1.2 as the minimum version.
package server
