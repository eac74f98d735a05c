// ABOUTME: Bubbletea model for the player TUI
// ABOUTME: Defines application state and update logic
package ui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Model represents the TUI state.
type Model struct {
	// Connection
	connected  bool
	serverName string

	// Stream
	codec      string
	sampleRate int
	channels   int
	encrypted  bool

	// Playback
	state  string
	volume int
	muted  bool
	frames int64

	// Last error, if any
	lastError string

	// Dimensions
	width  int
	height int

	volumeCtrl *VolumeControl
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.applyStatus(msg)
	}

	return m, nil
}

// View renders the TUI.
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	s := ""
	s += m.renderHeader()
	s += m.renderStreamInfo()
	s += m.renderControls()
	s += m.renderHelp()

	return s
}

func (m Model) renderHeader() string {
	connStatus := "Disconnected"
	if m.connected {
		connStatus = fmt.Sprintf("Connected to %s", m.serverName)
	}

	return fmt.Sprintf(`┌─ Opaline Player ─────────────────────────────────────┐
│ Status: %-45s │
├──────────────────────────────────────────────────────┤
`, connStatus)
}

func (m Model) renderStreamInfo() string {
	if !m.connected || m.codec == "" {
		return "│ No stream                                            │\n"
	}

	lock := ""
	if m.encrypted {
		lock = " 🔒"
	}

	s := fmt.Sprintf("│ Format: %s %dHz %s%s%-24s │\n",
		m.codec, m.sampleRate, channelName(m.channels), lock, "")

	switch m.state {
	case "waiting_for_key":
		s += "│ ⏳ Waiting for content key...                        │\n"
	case "playing":
		s += fmt.Sprintf("│ ▶ Playing (%d frames decoded)%-24s │\n", m.frames, "")
	case "finished":
		s += "│ ■ Stream finished                                    │\n"
	case "error":
		s += fmt.Sprintf("│ ✗ Error: %-43s │\n", truncate(m.lastError, 43))
	default:
		s += fmt.Sprintf("│ %-52s │\n", m.state)
	}

	return s
}

func (m Model) renderControls() string {
	muteIcon := ""
	if m.muted {
		muteIcon = " 🔇"
	}

	volumeBar := renderBar(m.volume, 100, 10)

	return fmt.Sprintf("│                                                      │\n"+
		"│ Volume: [%s] %d%%%s%-17s │\n",
		volumeBar, m.volume, muteIcon, "")
}

func (m Model) renderHelp() string {
	return `│ ↑/↓:Volume  m:Mute  q:Quit                           │
└──────────────────────────────────────────────────────┘
`
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		if m.volumeCtrl != nil {
			select {
			case m.volumeCtrl.Quit <- QuitMsg{}:
			default:
			}
		}
		return m, tea.Quit
	case "up":
		m.volume += 5
		if m.volume > 100 {
			m.volume = 100
		}
		m.notifyVolume()
	case "down":
		m.volume -= 5
		if m.volume < 0 {
			m.volume = 0
		}
		m.notifyVolume()
	case "m":
		m.muted = !m.muted
		m.notifyVolume()
	}

	return m, nil
}

func (m Model) notifyVolume() {
	if m.volumeCtrl == nil {
		return
	}
	select {
	case m.volumeCtrl.Changes <- VolumeChangeMsg{Volume: m.volume, Muted: m.muted}:
	default:
	}
}

func (m *Model) applyStatus(msg StatusMsg) {
	if msg.Connected != nil {
		m.connected = *msg.Connected
	}
	if msg.ServerName != "" {
		m.serverName = msg.ServerName
	}
	if msg.Codec != "" {
		m.codec = msg.Codec
		m.sampleRate = msg.SampleRate
		m.channels = msg.Channels
		m.encrypted = msg.Encrypted
	}
	if msg.State != "" {
		m.state = msg.State
	}
	if msg.Volume != 0 {
		m.volume = msg.Volume
	}
	if msg.Frames != 0 {
		m.frames = msg.Frames
	}
	if msg.Err != "" {
		m.lastError = msg.Err
	}
}

// StatusMsg updates TUI state.
type StatusMsg struct {
	Connected  *bool
	ServerName string
	Codec      string
	SampleRate int
	Channels   int
	Encrypted  bool
	State      string
	Volume     int
	Frames     int64
	Err        string
}

// VolumeChangeMsg reports a user volume or mute change.
type VolumeChangeMsg struct {
	Volume int
	Muted  bool
}

// QuitMsg reports that the user asked to quit.
type QuitMsg struct{}

func renderBar(value, max, width int) string {
	filled := (value * width) / max
	bar := ""
	for i := 0; i < width; i++ {
		if i < filled {
			bar += "█"
		} else {
			bar += "░"
		}
	}
	return bar
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}

func channelName(channels int) string {
	if channels == 1 {
		return "Mono"
	}
	return "Stereo"
}
