package tui

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/onvifdiscovery/internal/transport"
	"github.com/muurk/onvifdiscovery/internal/wsdiscovery"
)

// silentTransport accepts probes and never answers
type silentTransport struct {
	done      chan struct{}
	closeOnce sync.Once
}

func newSilentTransport() *silentTransport {
	return &silentTransport{done: make(chan struct{})}
}

func (s *silentTransport) Name() string { return "lo/127.0.0.1" }

func (s *silentTransport) Send(ctx context.Context, payload []byte, _ *net.UDPAddr) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return len(payload), nil
}

func (s *silentTransport) Receive(ctx context.Context) <-chan transport.Datagram {
	out := make(chan transport.Datagram)
	go func() {
		defer close(out)
		select {
		case <-ctx.Done():
		case <-s.done:
		}
	}()
	return out
}

func (s *silentTransport) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

type silentFactory struct{}

func (silentFactory) Transports() ([]transport.Transport, error) {
	return []transport.Transport{newSilentTransport()}, nil
}

func silentStart(timeout time.Duration) StartFunc {
	d := wsdiscovery.NewDiscoverer(silentFactory{}, wsdiscovery.Options{ProbeInterval: 10 * time.Millisecond})
	return func(ctx context.Context) (*wsdiscovery.Stream, error) {
		return d.Discover(ctx, timeout)
	}
}

func testDevice(addr string) wsdiscovery.Device {
	return wsdiscovery.Device{
		Address:    addr,
		Model:      "X500",
		Mfr:        "Acme",
		XAddresses: []string{"http://" + addr + "/onvif/device_service"},
		Interface:  "eth0/192.168.1.5",
	}
}

func update(t *testing.T, m WatchModel, msg tea.Msg) (WatchModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	wm, ok := next.(WatchModel)
	if !ok {
		t.Fatalf("Update returned %T, want WatchModel", next)
	}
	return wm, cmd
}

func TestWatchModel_StartFailure(t *testing.T) {
	startErr := wsdiscovery.NewNoInterfacesError(nil)
	m := NewWatchModel(func(context.Context) (*wsdiscovery.Stream, error) {
		return nil, startErr
	}, time.Second)

	msg := m.startScan(m.gen)()
	done, ok := msg.(scanDoneMsg)
	if !ok {
		t.Fatalf("startScan() = %T, want scanDoneMsg", msg)
	}

	m, _ = update(t, m, done)
	if m.Scanning {
		t.Error("Scanning = true after failed start")
	}
	if !errors.Is(m.Err, wsdiscovery.ErrNoInterfaces) {
		t.Errorf("Err = %v, want ErrNoInterfaces", m.Err)
	}
	if view := m.View(); !strings.Contains(view, "Discovery failed") {
		t.Errorf("View() does not report the failure:\n%s", view)
	}
}

func TestWatchModel_ScanRunsToCompletion(t *testing.T) {
	m := NewWatchModel(silentStart(50*time.Millisecond), 50*time.Millisecond)

	started, ok := m.startScan(m.gen)().(scanStartedMsg)
	if !ok {
		t.Fatal("startScan() did not start a stream")
	}

	m, cmd := update(t, m, started)
	if !m.Scanning {
		t.Error("Scanning = false after start")
	}
	if cmd == nil {
		t.Fatal("no command to wait for devices")
	}

	done, ok := cmd().(scanDoneMsg)
	if !ok {
		t.Fatal("silent scan produced a device")
	}
	if done.err != nil {
		t.Errorf("timeout reported as error: %v", done.err)
	}

	m, _ = update(t, m, done)
	if m.Scanning || m.Err != nil {
		t.Errorf("Scanning = %v, Err = %v after completion", m.Scanning, m.Err)
	}
	if view := m.View(); !strings.Contains(view, "No ONVIF devices answered") {
		t.Errorf("View() missing empty-result notice:\n%s", view)
	}
}

func TestWatchModel_DevicesByGeneration(t *testing.T) {
	tests := []struct {
		name      string
		gen       int
		wantCount int
	}{
		{name: "current scan", gen: 1, wantCount: 1},
		{name: "abandoned scan", gen: 0, wantCount: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewWatchModel(silentStart(time.Second), time.Second)

			m, cmd := update(t, m, deviceFoundMsg{gen: tt.gen, device: testDevice("192.168.1.20")})
			if got := m.DeviceCount(); got != tt.wantCount {
				t.Errorf("DeviceCount() = %d, want %d", got, tt.wantCount)
			}
			if cmd == nil {
				t.Error("stream is not drained further")
			}
		})
	}
}

func TestWatchModel_Rescan(t *testing.T) {
	m := NewWatchModel(silentStart(time.Second), time.Second)
	canceled := false
	m.cancel = func() { canceled = true }

	m, _ = update(t, m, deviceFoundMsg{gen: 1, device: testDevice("192.168.1.20")})
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})

	if !canceled {
		t.Error("rescan did not cancel the running scan")
	}
	if cmd == nil {
		t.Error("rescan did not start a scan")
	}
	if m.DeviceCount() != 0 {
		t.Errorf("DeviceCount() = %d after rescan, want 0", m.DeviceCount())
	}
	if !m.Scanning {
		t.Error("Scanning = false after rescan")
	}

	// The end of the first scan must not finish the second
	m, _ = update(t, m, scanDoneMsg{gen: 1})
	if !m.Scanning {
		t.Error("stale completion ended the new scan")
	}

	m, _ = update(t, m, scanDoneMsg{gen: 2})
	if m.Scanning {
		t.Error("completion of the new scan ignored")
	}
}

func TestWatchModel_Quit(t *testing.T) {
	m := NewWatchModel(silentStart(time.Second), time.Second)
	canceled := false
	m.cancel = func() { canceled = true }

	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if !canceled {
		t.Error("quit did not cancel the scan")
	}
	if cmd == nil {
		t.Fatal("quit returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("quit command is not tea.Quit")
	}
}

func TestWatchModel_WindowSize(t *testing.T) {
	m := NewWatchModel(silentStart(time.Second), time.Second)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})

	if m.Width != 100 || m.Height != 40 {
		t.Errorf("size = %dx%d, want 100x40", m.Width, m.Height)
	}
	if !strings.Contains(m.View(), "Probing for ONVIF devices") {
		t.Error("View() missing progress status while scanning")
	}
}

func TestDeviceItem(t *testing.T) {
	item := deviceItem{device: testDevice("192.168.1.20")}

	if got := item.Title(); got != "Acme X500 at 192.168.1.20" {
		t.Errorf("Title() = %q", got)
	}
	if got := item.Description(); !strings.Contains(got, "via eth0/192.168.1.5") {
		t.Errorf("Description() = %q", got)
	}
	if !strings.Contains(item.FilterValue(), "Acme") {
		t.Errorf("FilterValue() = %q", item.FilterValue())
	}
}
