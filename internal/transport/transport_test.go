package transport

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"
)

var testMAC = net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}

func TestEligible(t *testing.T) {
	tests := []struct {
		name string
		ifi  net.Interface
		want bool
	}{
		{
			name: "ethernet up multicast",
			ifi:  net.Interface{Name: "eth0", Flags: net.FlagUp | net.FlagMulticast | net.FlagBroadcast, HardwareAddr: testMAC},
			want: true,
		},
		{
			name: "interface down",
			ifi:  net.Interface{Name: "eth1", Flags: net.FlagMulticast, HardwareAddr: testMAC},
			want: false,
		},
		{
			name: "no multicast",
			ifi:  net.Interface{Name: "eth2", Flags: net.FlagUp, HardwareAddr: testMAC},
			want: false,
		},
		{
			name: "loopback",
			ifi:  net.Interface{Name: "lo", Flags: net.FlagUp | net.FlagMulticast | net.FlagLoopback},
			want: false,
		},
		{
			name: "point to point tunnel",
			ifi:  net.Interface{Name: "tun0", Flags: net.FlagUp | net.FlagMulticast | net.FlagPointToPoint, HardwareAddr: testMAC},
			want: false,
		},
		{
			name: "no hardware address",
			ifi:  net.Interface{Name: "wg0", Flags: net.FlagUp | net.FlagMulticast},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Eligible(&tt.ifi); got != tt.want {
				t.Errorf("Eligible(%s) = %v, want %v", tt.ifi.Name, got, tt.want)
			}
		})
	}
}

type stubTransport struct {
	name string
}

func (s *stubTransport) Name() string { return s.name }
func (s *stubTransport) Send(context.Context, []byte, *net.UDPAddr) (int, error) {
	return 0, nil
}
func (s *stubTransport) Receive(context.Context) <-chan Datagram { return nil }
func (s *stubTransport) Close() error                            { return nil }

func newStubFactory(cfg FactoryConfig, failIP string) *InterfaceFactory {
	up := net.FlagUp | net.FlagMulticast | net.FlagBroadcast
	ifaces := []net.Interface{
		{Index: 1, Name: "lo", Flags: net.FlagUp | net.FlagLoopback | net.FlagMulticast},
		{Index: 2, Name: "eth0", Flags: up, HardwareAddr: testMAC},
		{Index: 3, Name: "wlan0", Flags: up, HardwareAddr: testMAC},
		{Index: 4, Name: "eth1", Flags: net.FlagMulticast, HardwareAddr: testMAC},
	}
	addrs := map[string][]net.Addr{
		"lo": {&net.IPNet{IP: net.ParseIP("127.0.0.1"), Mask: net.CIDRMask(8, 32)}},
		"eth0": {
			&net.IPNet{IP: net.ParseIP("192.168.1.5"), Mask: net.CIDRMask(24, 32)},
			&net.IPNet{IP: net.ParseIP("fe80::1"), Mask: net.CIDRMask(64, 128)},
		},
		"wlan0": {
			&net.IPNet{IP: net.ParseIP("10.0.0.7"), Mask: net.CIDRMask(24, 32)},
			&net.IPAddr{IP: net.ParseIP("10.0.0.8")},
		},
		"eth1": {&net.IPNet{IP: net.ParseIP("172.16.0.2"), Mask: net.CIDRMask(16, 32)}},
	}

	return &InterfaceFactory{
		Config:         cfg,
		listInterfaces: func() ([]net.Interface, error) { return ifaces, nil },
		addrsOf: func(ifi *net.Interface) ([]net.Addr, error) {
			return addrs[ifi.Name], nil
		},
		newTransport: func(ifi *net.Interface, ip net.IP, ttl int) (Transport, error) {
			if ip.String() == failIP {
				return nil, errors.New("bind: address already in use")
			}
			return &stubTransport{name: ifi.Name + "/" + ip.String()}, nil
		},
	}
}

func transportNames(ts []Transport) []string {
	names := make([]string, len(ts))
	for i, t := range ts {
		names[i] = t.Name()
	}
	return names
}

func TestInterfaceFactory_Transports(t *testing.T) {
	tests := []struct {
		name   string
		cfg    FactoryConfig
		failIP string
		want   []string
	}{
		{
			name: "all eligible IPv4 addresses",
			want: []string{"eth0/192.168.1.5", "wlan0/10.0.0.7", "wlan0/10.0.0.8"},
		},
		{
			name: "include filter",
			cfg:  FactoryConfig{Include: []string{"wlan0"}},
			want: []string{"wlan0/10.0.0.7", "wlan0/10.0.0.8"},
		},
		{
			name: "exclude filter",
			cfg:  FactoryConfig{Exclude: []string{"wlan0"}},
			want: []string{"eth0/192.168.1.5"},
		},
		{
			name:   "bind failures are skipped",
			failIP: "10.0.0.7",
			want:   []string{"eth0/192.168.1.5", "wlan0/10.0.0.8"},
		},
		{
			name: "include of ineligible interface yields nothing",
			cfg:  FactoryConfig{Include: []string{"lo", "eth1"}},
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newStubFactory(tt.cfg, tt.failIP)
			got, err := f.Transports()
			if err != nil {
				t.Fatalf("Transports() error = %v", err)
			}
			names := transportNames(got)
			if len(names) != len(tt.want) {
				t.Fatalf("Transports() = %v, want %v", names, tt.want)
			}
			for i := range names {
				if names[i] != tt.want[i] {
					t.Errorf("Transports()[%d] = %v, want %v", i, names[i], tt.want[i])
				}
			}
		})
	}
}

func TestInterfaceFactory_ListError(t *testing.T) {
	f := &InterfaceFactory{
		listInterfaces: func() ([]net.Interface, error) { return nil, errors.New("netlink unavailable") },
	}

	_, err := f.Transports()
	if err == nil {
		t.Fatal("Transports() error = nil, want error")
	}
}

func TestNewUDPTransport_RejectsIPv6(t *testing.T) {
	if _, err := NewUDPTransport(nil, net.ParseIP("::1"), 1); err == nil {
		t.Error("NewUDPTransport(::1) error = nil, want error")
	}
}

func TestUDPTransport_SendReceiveLoopback(t *testing.T) {
	receiver, err := NewUDPTransport(nil, net.IPv4(127, 0, 0, 1), 1)
	if err != nil {
		t.Skipf("loopback UDP unavailable: %v", err)
	}
	defer receiver.Close()

	sender, err := NewUDPTransport(nil, net.IPv4(127, 0, 0, 1), 1)
	if err != nil {
		t.Skipf("loopback UDP unavailable: %v", err)
	}
	defer sender.Close()

	if receiver.Name() != "127.0.0.1" {
		t.Errorf("Name() = %v, want 127.0.0.1", receiver.Name())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	stream := receiver.Receive(ctx)

	payload := []byte("<Envelope/>")
	n, err := sender.Send(ctx, payload, receiver.LocalAddr())
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if n != len(payload) {
		t.Errorf("Send() = %d, want %d", n, len(payload))
	}

	select {
	case dg := <-stream:
		if dg.Err != nil {
			t.Fatalf("datagram error = %v", dg.Err)
		}
		if string(dg.Payload) != string(payload) {
			t.Errorf("payload = %q, want %q", dg.Payload, payload)
		}
		if dg.SourceIP() != "127.0.0.1" {
			t.Errorf("SourceIP() = %v, want 127.0.0.1", dg.SourceIP())
		}
		if dg.Source.Port != sender.LocalAddr().Port {
			t.Errorf("source port = %d, want %d", dg.Source.Port, sender.LocalAddr().Port)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for datagram")
	}
}

func TestUDPTransport_ReceiveStopsOnCancel(t *testing.T) {
	tr, err := NewUDPTransport(nil, net.IPv4(127, 0, 0, 1), 1)
	if err != nil {
		t.Skipf("loopback UDP unavailable: %v", err)
	}
	defer tr.Close()

	ctx, cancel := context.WithCancel(context.Background())
	stream := tr.Receive(ctx)
	cancel()

	select {
	case _, ok := <-stream:
		if ok {
			t.Error("expected stream to be closed without datagrams")
		}
	case <-time.After(time.Second):
		t.Fatal("stream not closed within 1s of cancellation")
	}
}

func TestUDPTransport_SendAfterCancel(t *testing.T) {
	tr, err := NewUDPTransport(nil, net.IPv4(127, 0, 0, 1), 1)
	if err != nil {
		t.Skipf("loopback UDP unavailable: %v", err)
	}
	defer tr.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := tr.Send(ctx, []byte("x"), tr.LocalAddr()); !errors.Is(err, context.Canceled) {
		t.Errorf("Send() error = %v, want context.Canceled", err)
	}
}

func TestUDPTransport_CloseIdempotent(t *testing.T) {
	tr, err := NewUDPTransport(nil, net.IPv4(127, 0, 0, 1), 1)
	if err != nil {
		t.Skipf("loopback UDP unavailable: %v", err)
	}

	if err := tr.Close(); err != nil {
		t.Fatalf("first Close() error = %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Errorf("second Close() error = %v, want nil", err)
	}
}

func TestDatagram_SourceIP(t *testing.T) {
	if got := (Datagram{}).SourceIP(); got != "" {
		t.Errorf("SourceIP() of empty datagram = %q, want empty", got)
	}
	dg := Datagram{Source: &net.UDPAddr{IP: net.ParseIP("192.0.2.9"), Port: 3702}}
	if got := dg.SourceIP(); got != "192.0.2.9" {
		t.Errorf("SourceIP() = %q, want 192.0.2.9", got)
	}
}
