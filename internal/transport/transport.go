// Package transport provides the UDP transports used by the WS-Discovery engine.
//
// A Transport owns one bound socket on one local interface address. The
// discovery engine sends probes through it and consumes replies from its
// receive stream; it never touches sockets directly. A Factory enumerates the
// interfaces eligible for discovery and builds one Transport per IPv4
// address.
package transport

import (
	"context"
	"net"
)

// Datagram is the outcome of a single receive attempt.
//
// Exactly one of Payload or Err is meaningful. Err carries a recoverable
// receive failure: consumers skip it and keep reading. The stream itself only
// ends when the context passed to Receive is done or the socket is closed.
type Datagram struct {
	Payload []byte
	Source  *net.UDPAddr
	Err     error
}

// SourceIP returns the textual IP of the sender, or "" when unknown.
func (d Datagram) SourceIP() string {
	if d.Source == nil || d.Source.IP == nil {
		return ""
	}
	return d.Source.IP.String()
}

// Transport sends datagrams and streams received ones for one local endpoint.
type Transport interface {
	// Name identifies the transport in logs, e.g. "eth0/192.168.1.5".
	Name() string

	// Send writes payload to dst. It honors ctx cancellation.
	Send(ctx context.Context, payload []byte, dst *net.UDPAddr) (int, error)

	// Receive streams received datagrams until ctx is done or the
	// transport is closed, then closes the returned channel. It must be
	// called at most once per transport.
	Receive(ctx context.Context) <-chan Datagram

	// Close releases the socket. It is safe to call more than once.
	Close() error
}

// Factory builds the transports a discovery run should use.
type Factory interface {
	// Transports returns one transport per eligible local interface
	// address. Individual construction failures are skipped, so an empty
	// result with a nil error is possible.
	Transports() ([]Transport, error)
}
