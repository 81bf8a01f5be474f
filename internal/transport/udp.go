package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/net/ipv4"
)

const (
	// DefaultMulticastTTL keeps probes on the local link
	DefaultMulticastTTL = 1

	// maxDatagramSize is the largest UDP payload we accept
	maxDatagramSize = 64 * 1024

	// receiveQueue is the buffer between the socket reader and the consumer
	receiveQueue = 16

	// receiveRetryDelay throttles the reader after a failed read
	receiveRetryDelay = 50 * time.Millisecond
)

// UDPTransport is a Transport over an IPv4 UDP socket bound to one local address.
type UDPTransport struct {
	name string
	conn *net.UDPConn

	closeOnce sync.Once
	closeErr  error
}

// NewUDPTransport binds an ephemeral UDP port on ip and routes multicast
// traffic through ifi. ifi may be nil, in which case the kernel picks the
// multicast egress interface.
func NewUDPTransport(ifi *net.Interface, ip net.IP, ttl int) (*UDPTransport, error) {
	ip4 := ip.To4()
	if ip4 == nil {
		return nil, fmt.Errorf("not an IPv4 address: %s", ip)
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: ip4, Port: 0})
	if err != nil {
		return nil, fmt.Errorf("failed to bind %s: %w", ip4, err)
	}

	pc := ipv4.NewPacketConn(conn)
	if ifi != nil {
		if err := pc.SetMulticastInterface(ifi); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to set multicast interface %s: %w", ifi.Name, err)
		}
	}
	if ttl <= 0 {
		ttl = DefaultMulticastTTL
	}
	if err := pc.SetMulticastTTL(ttl); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to set multicast TTL: %w", err)
	}

	name := ip4.String()
	if ifi != nil {
		name = ifi.Name + "/" + name
	}

	return &UDPTransport{name: name, conn: conn}, nil
}

// Name returns "<interface>/<ip>" or just the IP when no interface was given.
func (t *UDPTransport) Name() string {
	return t.name
}

// LocalAddr returns the bound socket address.
func (t *UDPTransport) LocalAddr() *net.UDPAddr {
	addr, _ := t.conn.LocalAddr().(*net.UDPAddr)
	return addr
}

// Send writes payload to dst.
func (t *UDPTransport) Send(ctx context.Context, payload []byte, dst *net.UDPAddr) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = t.conn.SetWriteDeadline(deadline)
	}
	return t.conn.WriteToUDP(payload, dst)
}

// Receive starts a reader goroutine and returns its stream.
func (t *UDPTransport) Receive(ctx context.Context) <-chan Datagram {
	out := make(chan Datagram, receiveQueue)

	go func() {
		defer close(out)

		// Unblock the pending read as soon as ctx is done
		stop := context.AfterFunc(ctx, func() {
			_ = t.conn.SetReadDeadline(time.Now())
		})
		defer stop()

		buf := make([]byte, maxDatagramSize)
		for {
			n, src, err := t.conn.ReadFromUDP(buf)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				if errors.Is(err, net.ErrClosed) {
					return
				}
				select {
				case out <- Datagram{Err: err}:
				case <-ctx.Done():
					return
				}
				select {
				case <-time.After(receiveRetryDelay):
				case <-ctx.Done():
					return
				}
				continue
			}

			payload := make([]byte, n)
			copy(payload, buf[:n])

			select {
			case out <- Datagram{Payload: payload, Source: src}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

// Close closes the socket once; later calls return the first result.
func (t *UDPTransport) Close() error {
	t.closeOnce.Do(func() {
		t.closeErr = t.conn.Close()
	})
	return t.closeErr
}
