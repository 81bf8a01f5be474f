package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/onvifdiscovery/internal/urls"
	"github.com/muurk/onvifdiscovery/internal/wsdiscovery"
)

// StartFunc starts one discovery run. The watch screen calls it for the
// initial scan and for every rescan.
type StartFunc func(ctx context.Context) (*wsdiscovery.Stream, error)

// Messages for async operations. gen ties a message to the scan that
// produced it so results of an abandoned scan are ignored.
type scanStartedMsg struct {
	gen    int
	stream *wsdiscovery.Stream
	cancel context.CancelFunc
}

type deviceFoundMsg struct {
	gen    int
	stream *wsdiscovery.Stream
	device wsdiscovery.Device
}

type scanDoneMsg struct {
	gen int
	err error
}

// watchKeyMap defines key bindings for the watch screen
type watchKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Rescan key.Binding
	Quit   key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k watchKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Rescan, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k watchKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down},
		{k.Rescan, k.Quit},
	}
}

// deviceItem wraps a Device for use with bubbles/list
type deviceItem struct {
	device wsdiscovery.Device
}

func (d deviceItem) FilterValue() string {
	return d.device.Address + " " + d.device.Mfr + " " + d.device.Model
}

func (d deviceItem) Title() string {
	return d.device.String()
}

func (d deviceItem) Description() string {
	desc := d.device.PrimaryXAddress()
	if d.device.Interface != "" {
		desc += " • via " + d.device.Interface
	}
	return desc
}

// WatchModel is a live view of one discovery run
type WatchModel struct {
	start   StartFunc
	timeout time.Duration

	gen       int
	cancel    context.CancelFunc
	Scanning  bool
	StartedAt time.Time
	Err       error

	Devices     list.Model
	Width       int
	Height      int
	Spinner     spinner.Model
	ProgressBar progress.Model
	Help        help.Model
	Keys        watchKeyMap
}

// NewWatchModel creates the watch screen. timeout is only used to draw
// the progress bar; start owns the real deadline.
func NewWatchModel(start StartFunc, timeout time.Duration) WatchModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	progressBar := progress.New(progress.WithDefaultGradient())
	progressBar.Width = 40

	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.Foreground(SecondaryColor).BorderForeground(SecondaryColor)

	devices := list.New([]list.Item{}, delegate, GetTerminalWidth()-6, 14)
	devices.Title = "Discovered Devices"
	devices.SetShowStatusBar(true)
	devices.SetFilteringEnabled(true)
	devices.Styles.Title = lipgloss.NewStyle().Foreground(PrimaryColor).Bold(true)

	keys := watchKeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "move up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "move down"),
		),
		Rescan: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "rescan"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}

	return WatchModel{
		start:       start,
		timeout:     timeout,
		gen:         1,
		Scanning:    true,
		StartedAt:   time.Now(),
		Devices:     devices,
		Spinner:     s,
		ProgressBar: progressBar,
		Help:        help.New(),
		Keys:        keys,
	}
}

// Init starts the first scan
func (m WatchModel) Init() tea.Cmd {
	return tea.Batch(m.startScan(m.gen), m.Spinner.Tick)
}

func (m WatchModel) startScan(gen int) tea.Cmd {
	start := m.start
	return func() tea.Msg {
		ctx, cancel := context.WithCancel(context.Background())
		stream, err := start(ctx)
		if err != nil {
			cancel()
			return scanDoneMsg{gen: gen, err: err}
		}
		return scanStartedMsg{gen: gen, stream: stream, cancel: cancel}
	}
}

// waitForDevice reads the next device, or reports the end of the stream
func waitForDevice(gen int, stream *wsdiscovery.Stream) tea.Cmd {
	return func() tea.Msg {
		dev, ok := <-stream.Devices()
		if !ok {
			return scanDoneMsg{gen: gen, err: stream.Err()}
		}
		return deviceFoundMsg{gen: gen, stream: stream, device: dev}
	}
}

// Update handles messages and updates the model
func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.Devices.FilterState() == list.Filtering {
			break
		}
		switch {
		case key.Matches(msg, m.Keys.Quit):
			m.stop()
			return m, tea.Quit
		case key.Matches(msg, m.Keys.Rescan):
			m.stop()
			m.gen++
			m.Scanning = true
			m.StartedAt = time.Now()
			m.Err = nil
			cmd = m.Devices.SetItems([]list.Item{})
			return m, tea.Batch(cmd, m.startScan(m.gen), m.Spinner.Tick)
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Devices.SetWidth(msg.Width - 6)
		m.Devices.SetHeight(max(msg.Height-16, 6))

	case scanStartedMsg:
		if msg.gen != m.gen {
			// Superseded before it started
			msg.cancel()
			return m, waitForDevice(msg.gen, msg.stream)
		}
		m.cancel = msg.cancel
		m.Scanning = true
		m.StartedAt = time.Now()
		return m, waitForDevice(msg.gen, msg.stream)

	case deviceFoundMsg:
		// Keep draining abandoned streams so their goroutines finish
		if msg.gen != m.gen {
			return m, waitForDevice(msg.gen, msg.stream)
		}
		cmd = m.Devices.InsertItem(len(m.Devices.Items()), deviceItem{device: msg.device})
		return m, tea.Batch(cmd, waitForDevice(msg.gen, msg.stream))

	case scanDoneMsg:
		if msg.gen != m.gen {
			return m, nil
		}
		m.Scanning = false
		m.Err = msg.err
		m.stop()
		return m, nil

	case spinner.TickMsg:
		if !m.Scanning {
			return m, nil
		}
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd
	}

	m.Devices, cmd = m.Devices.Update(msg)
	return m, cmd
}

func (m *WatchModel) stop() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

// DeviceCount returns the number of devices shown
func (m WatchModel) DeviceCount() int {
	return len(m.Devices.Items())
}

// View renders the watch screen
func (m WatchModel) View() string {
	var b strings.Builder

	b.WriteString(m.renderStatus())
	b.WriteString("\n")

	switch {
	case m.Err != nil:
		b.WriteString(RenderError(fmt.Sprintf("Discovery failed: %v", m.Err)))
		b.WriteString("\n\n")
		b.WriteString(SubtitleStyle.Render(wsdiscovery.GetTroubleshootingHint(m.Err)))
	case len(m.Devices.Items()) == 0 && !m.Scanning:
		b.WriteString("  ")
		b.WriteString(WarningStyle.Render("⚠ No ONVIF devices answered"))
		b.WriteString("\n\n")
		b.WriteString("  Troubleshooting:\n")
		b.WriteString("    • Check that cameras are on the same network segment\n")
		b.WriteString("    • Verify WS-Discovery is enabled on the camera\n")
		b.WriteString("    • Allow UDP port 3702 through your firewall\n")
		b.WriteString("    • Press 'r' to rescan\n")
		b.WriteString("\n")
		b.WriteString(SubtitleStyle.Render("  See " + urls.TroubleshootingGuide))
	default:
		b.WriteString(m.Devices.View())
	}

	return RenderApplicationContainer(b.String(), m.Help.View(m.Keys), m.Width, m.Height)
}

func (m WatchModel) renderStatus() string {
	if !m.Scanning {
		return TitleStyle.Render(fmt.Sprintf("Scan complete: %d device(s)", len(m.Devices.Items())))
	}

	elapsed := time.Since(m.StartedAt)
	fraction := 0.0
	if m.timeout > 0 {
		fraction = min(1.0, elapsed.Seconds()/m.timeout.Seconds())
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		TitleStyle.Render(fmt.Sprintf("%s Probing for ONVIF devices...", m.Spinner.View())),
		m.ProgressBar.ViewAs(fraction),
		SubtitleStyle.Render(fmt.Sprintf("Elapsed: %ds of %ds", int(elapsed.Seconds()), int(m.timeout.Seconds()))),
	)
}

// RunWatch runs the watch screen until the user quits
func RunWatch(start StartFunc, timeout time.Duration) error {
	p := tea.NewProgram(NewWatchModel(start, timeout), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
