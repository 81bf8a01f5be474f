package transport

import (
	"fmt"
	"net"
	"slices"

	"go.uber.org/zap"

	"github.com/muurk/onvifdiscovery/internal/logging"
)

// FactoryConfig narrows which interfaces take part in discovery.
type FactoryConfig struct {
	// Include, when non-empty, limits discovery to these interface names
	Include []string

	// Exclude removes these interface names
	Exclude []string

	// MulticastTTL for outgoing probes (DefaultMulticastTTL when zero)
	MulticastTTL int
}

// InterfaceFactory builds one UDPTransport per IPv4 address of every
// eligible network interface.
type InterfaceFactory struct {
	Config FactoryConfig

	// listInterfaces and addrsOf are swapped out in tests
	listInterfaces func() ([]net.Interface, error)
	addrsOf        func(*net.Interface) ([]net.Addr, error)
	newTransport   func(*net.Interface, net.IP, int) (Transport, error)
}

// NewInterfaceFactory creates a factory backed by the host's interfaces.
func NewInterfaceFactory(cfg FactoryConfig) *InterfaceFactory {
	return &InterfaceFactory{
		Config:         cfg,
		listInterfaces: net.Interfaces,
		addrsOf:        func(ifi *net.Interface) ([]net.Addr, error) { return ifi.Addrs() },
		newTransport: func(ifi *net.Interface, ip net.IP, ttl int) (Transport, error) {
			return NewUDPTransport(ifi, ip, ttl)
		},
	}
}

// Transports enumerates eligible interfaces and binds a socket on each of
// their IPv4 addresses. Bind failures are logged and skipped.
func (f *InterfaceFactory) Transports() ([]Transport, error) {
	ifaces, err := f.listInterfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to list network interfaces: %w", err)
	}

	var transports []Transport
	for i := range ifaces {
		ifi := &ifaces[i]
		if !Eligible(ifi) || !f.selected(ifi.Name) {
			continue
		}

		addrs, err := f.addrsOf(ifi)
		if err != nil {
			logging.Warn("Skipping interface, cannot read addresses",
				zap.String("interface", ifi.Name),
				zap.Error(err),
			)
			continue
		}

		for _, addr := range addrs {
			ip := ipv4Of(addr)
			if ip == nil {
				continue
			}

			t, err := f.newTransport(ifi, ip, f.Config.MulticastTTL)
			if err != nil {
				logging.Warn("Skipping interface address",
					zap.String("interface", ifi.Name),
					zap.String("ip", ip.String()),
					zap.Error(err),
				)
				continue
			}

			logging.Debug("Transport ready",
				zap.String("transport", t.Name()),
			)
			transports = append(transports, t)
		}
	}

	return transports, nil
}

// Eligible reports whether an interface can carry WS-Discovery traffic:
// up, multicast-capable, not loopback, not point-to-point, and backed by a
// hardware address (Ethernet or wireless).
func Eligible(ifi *net.Interface) bool {
	if ifi.Flags&net.FlagUp == 0 {
		return false
	}
	if ifi.Flags&net.FlagMulticast == 0 {
		return false
	}
	if ifi.Flags&net.FlagLoopback != 0 || ifi.Flags&net.FlagPointToPoint != 0 {
		return false
	}
	return len(ifi.HardwareAddr) > 0
}

func (f *InterfaceFactory) selected(name string) bool {
	if len(f.Config.Include) > 0 && !slices.Contains(f.Config.Include, name) {
		return false
	}
	return !slices.Contains(f.Config.Exclude, name)
}

func ipv4Of(addr net.Addr) net.IP {
	var ip net.IP
	switch a := addr.(type) {
	case *net.IPNet:
		ip = a.IP
	case *net.IPAddr:
		ip = a.IP
	default:
		return nil
	}
	return ip.To4()
}
