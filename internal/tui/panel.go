// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"strings"
	"time"

	"microtools/internal/rack"
	"microtools/internal/noise"
	"microtools/internal/transport"
	"microtools/internal/wav"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	recStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#C0392B")).
			Padding(0, 1).
			Bold(true)

	idleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7F8C8D")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7F8C8D")).
			Width(12)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#C0392B"))
)

// RefreshInterval is how often the panel polls status.
const RefreshInterval = 100 * time.Millisecond

const knobStep = 0.5

// Backend is what the panel drives.
type Backend interface {
	Status() transport.Status
	Controls() rack.Controls
	Apply(transport.Control) error
}

type keyMap struct {
	Record      key.Binding
	Stereo      key.Binding
	Format      key.Binding
	RecordNoise key.Binding
	Mode        key.Binding
	Multiplier  key.Binding
	VolumeUp    key.Binding
	VolumeDown  key.Binding
	PeriodUp    key.Binding
	PeriodDown  key.Binding
	Help        key.Binding
	Quit        key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Record, k.Mode, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Record, k.Stereo, k.Format, k.RecordNoise},
		{k.Mode, k.Multiplier, k.PeriodUp, k.PeriodDown},
		{k.VolumeUp, k.VolumeDown, k.Help, k.Quit},
	}
}

var keys = keyMap{
	Record:      key.NewBinding(key.WithKeys("r", " "), key.WithHelp("r/space", "record")),
	Stereo:      key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "mono/stereo")),
	Format:      key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "format")),
	RecordNoise: key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "record noise/inputs")),
	Mode:        key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "noise mode")),
	Multiplier:  key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "multiplier")),
	VolumeUp:    key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "volume +")),
	VolumeDown:  key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "volume -")),
	PeriodUp:    key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "period +")),
	PeriodDown:  key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "period -")),
	Help:        key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more keys")),
	Quit:        key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

type tickMsg time.Time

// Panel is the Bubble Tea model for the control panel.
type Panel struct {
	backend Backend
	scales  noise.ScaleTable
	help    help.Model

	status   transport.Status
	controls rack.Controls
	err      error
}

func NewPanel(backend Backend, scales noise.ScaleTable) Panel {
	if len(scales) == 0 {
		scales = noise.DefaultScales
	}
	return Panel{
		backend:  backend,
		scales:   scales,
		help:     help.New(),
		status:   backend.Status(),
		controls: backend.Controls(),
	}
}

func tick() tea.Cmd {
	return tea.Tick(RefreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Panel) Init() tea.Cmd {
	return tick()
}

func (m Panel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width

	case tickMsg:
		m.refresh()
		return m, tick()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		default:
			if ctl, ok := m.controlFor(msg); ok {
				m.err = m.backend.Apply(ctl)
				m.refresh()
			}
		}
	}
	return m, nil
}

func (m *Panel) refresh() {
	m.status = m.backend.Status()
	m.controls = m.backend.Controls()
}

// controlFor maps a key press to a control change relative to the
// current controls.
func (m Panel) controlFor(msg tea.KeyMsg) (transport.Control, bool) {
	c := m.controls
	var ctl transport.Control

	switch {
	case key.Matches(msg, keys.Record):
		ctl.Record = ptr(!c.Record)
	case key.Matches(msg, keys.Stereo):
		ctl.Stereo = ptr(!c.Stereo)
	case key.Matches(msg, keys.RecordNoise):
		ctl.RecordNoise = ptr(!c.RecordNoise)
	case key.Matches(msg, keys.Format):
		next := wav.Format((int(c.Format) + 1) % 3)
		ctl.Format = ptr(next.String())
	case key.Matches(msg, keys.Mode):
		next := noise.Mode((int(c.Mode) + 1) % 3)
		ctl.Mode = ptr(next.String())
	case key.Matches(msg, keys.Multiplier):
		ctl.Multiplier = ptr((c.Multiplier + 1) % len(m.scales))
	case key.Matches(msg, keys.VolumeUp):
		ctl.VolumeKnob = ptr(c.VolumeKnob + knobStep)
	case key.Matches(msg, keys.VolumeDown):
		ctl.VolumeKnob = ptr(c.VolumeKnob - knobStep)
	case key.Matches(msg, keys.PeriodUp):
		ctl.PeriodKnob = ptr(c.PeriodKnob + knobStep)
	case key.Matches(msg, keys.PeriodDown):
		ctl.PeriodKnob = ptr(c.PeriodKnob - knobStep)
	default:
		return ctl, false
	}
	return ctl, true
}

func ptr[T any](v T) *T { return &v }

func (m Panel) View() string {
	s, c := m.status, m.controls
	var sb strings.Builder

	state := idleStyle.Render("IDLE " + FormatElapsed(s.Elapsed, false))
	if s.Recording {
		state = recStyle.Render("REC " + FormatElapsed(s.Elapsed, true))
	}
	sb.WriteString(state)
	sb.WriteString("\n\n")

	channels := "mono"
	if c.Stereo {
		channels = "stereo"
	}
	source := "inputs"
	if c.RecordNoise {
		source = "noise"
	}

	row := func(label, value string) {
		sb.WriteString(labelStyle.Render(label))
		sb.WriteString(value)
		sb.WriteString("\n")
	}
	row("Mode", c.Mode.String())
	row("Period", fmt.Sprintf("%.1fV x%g (%d frames)", c.PeriodKnob, m.scales.Scale(c.Multiplier), s.Period))
	row("Volume", fmt.Sprintf("%.1fV", c.VolumeKnob))
	row("Output", fmt.Sprintf("%+.3fV", s.Output))
	row("Recorder", fmt.Sprintf("%s, %s, %s", channels, c.Format, source))
	if s.LastFile != "" {
		row("Last file", s.LastFile)
	}
	if s.Dropped > 0 {
		row("Dropped", fmt.Sprintf("%d", s.Dropped))
	}
	if s.LastError != "" {
		sb.WriteString(errorStyle.Render("Write failed: " + s.LastError))
		sb.WriteString("\n")
	}
	if m.err != nil {
		sb.WriteString(errorStyle.Render(m.err.Error()))
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	sb.WriteString(m.help.View(keys))
	return sb.String()
}

// RunPanel runs the control panel until the user quits.
func RunPanel(backend Backend, scales noise.ScaleTable) error {
	p := tea.NewProgram(NewPanel(backend, scales), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
