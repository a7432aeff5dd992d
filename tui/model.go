package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"go-midiclock/clock"
	"go-midiclock/midi"
	"go-midiclock/service"
	"go-midiclock/theme"
	"go-midiclock/timeline"
)

// refresh rate of the phase bar
const fps = 30

// tempo step for +/-
const tempoStep = 1.0

// Source is what the monitor observes
type Source interface {
	Status() service.Status
	Updates() <-chan struct{}
	DeviceEvents() <-chan midi.DeviceEvent
	Timeline() timeline.Timeline
}

type Model struct {
	Source   Source
	Theme    *theme.Theme
	status   service.Status
	phase    int
	lastMsg  string
	quitting bool

	// tempo entry ("t")
	editing    bool
	tempoInput textinput.Model
}

type UpdateMsg struct{}

type DeviceEventMsg midi.DeviceEvent

type frameMsg time.Time

func NewModel(src Source, th *theme.Theme) Model {
	ti := textinput.New()
	ti.Prompt = "tempo: "
	ti.CharLimit = 7
	ti.Width = 8

	return Model{
		Source:     src,
		Theme:      th,
		status:     src.Status(),
		phase:      -1,
		tempoInput: ti,
	}
}

func ListenForUpdates(src Source) tea.Cmd {
	return func() tea.Msg {
		<-src.Updates()
		return UpdateMsg{}
	}
}

func ListenForDevices(src Source) tea.Cmd {
	return func() tea.Msg {
		event := <-src.DeviceEvents()
		return DeviceEventMsg(event)
	}
}

func nextFrame() tea.Cmd {
	return tea.Tick(time.Second/fps, func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		nextFrame(),
		ListenForUpdates(m.Source),
		ListenForDevices(m.Source),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		ctrl, canControl := m.Source.Timeline().(timeline.Controller)
		if m.editing && canControl {
			return m.handleTempoEntry(msg, ctrl)
		}

		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit

		case " ", "p":
			if canControl {
				ctrl.SetIsPlaying(!m.status.Playing)
			}

		case "+", "=":
			if canControl {
				ctrl.SetTempo(m.status.Tempo + tempoStep)
			}

		case "-", "_":
			if canControl {
				ctrl.SetTempo(m.status.Tempo - tempoStep)
			}

		case "t":
			if canControl {
				m.editing = true
				m.tempoInput.SetValue(strconv.FormatFloat(m.status.Tempo, 'f', -1, 64))
				m.tempoInput.CursorEnd()
				return m, m.tempoInput.Focus()
			}
		}

	case frameMsg:
		m.refresh()
		return m, nextFrame()

	case UpdateMsg:
		m.refresh()
		return m, ListenForUpdates(m.Source)

	case DeviceEventMsg:
		if msg.Type == midi.DeviceConnected {
			m.lastMsg = fmt.Sprintf("opened port: %s", msg.ID)
		}
		m.refresh()
		return m, ListenForDevices(m.Source)
	}

	return m, nil
}

func (m Model) handleTempoEntry(msg tea.KeyMsg, ctrl timeline.Controller) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "esc":
		m.editing = false
		m.tempoInput.Blur()
		return m, nil

	case "enter":
		bpm, err := strconv.ParseFloat(strings.TrimSpace(m.tempoInput.Value()), 64)
		if err != nil || bpm < timeline.MinTempo || bpm > timeline.MaxTempo {
			m.lastMsg = fmt.Sprintf("tempo must be a number in [%g, %g]", timeline.MinTempo, timeline.MaxTempo)
			return m, nil
		}
		ctrl.SetTempo(bpm)
		m.editing = false
		m.tempoInput.Blur()
		m.lastMsg = ""
		return m, nil
	}

	var cmd tea.Cmd
	m.tempoInput, cmd = m.tempoInput.Update(msg)
	return m, cmd
}

func (m *Model) refresh() {
	m.status = m.Source.Status()
	tl := m.Source.Timeline()
	m.phase = clock.TickIndex(tl.Capture().PhaseAtTime(tl.Now(), 1.0), clock.Quantum)
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	headerStyle := lipgloss.NewStyle().Foreground(m.Theme.Accent())
	dimStyle := lipgloss.NewStyle().Foreground(m.Theme.Muted())
	fgStyle := lipgloss.NewStyle().Foreground(m.Theme.FG())

	playState := dimStyle.Render("STOP")
	if m.status.Playing {
		playState = lipgloss.NewStyle().Foreground(m.Theme.Active()).Bold(true).Render("PLAY")
	}

	header := headerStyle.Render("midiclock  ") + playState +
		headerStyle.Render(fmt.Sprintf("  %6.2fbpm  peers:%d", m.status.Tempo, m.status.Peers))

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n\n")
	out.WriteString(m.renderPhase())
	out.WriteString("\n\n")

	if len(m.status.Devices) == 0 {
		out.WriteString(dimStyle.Render("no outputs - connect a MIDI device any time"))
		out.WriteString("\n")
	}
	for _, id := range m.status.Devices {
		out.WriteString(fgStyle.Render(fmt.Sprintf("%c %s", m.Theme.Symbols.Device, id)))
		out.WriteString("\n")
	}

	out.WriteString("\n")
	statsStyle := dimStyle
	if m.status.Dropped > 0 || m.status.Skipped > 0 {
		statsStyle = lipgloss.NewStyle().Foreground(m.Theme.Warning())
	}
	out.WriteString(statsStyle.Render(fmt.Sprintf("pulses:%d  dropped:%d  start/stop skipped:%d",
		m.status.Pulses, m.status.Dropped, m.status.Skipped)))

	if m.lastMsg != "" {
		out.WriteString("\n")
		out.WriteString(dimStyle.Render(m.lastMsg))
	}

	if m.editing {
		out.WriteString("\n\n")
		out.WriteString(m.tempoInput.View())
	}

	help := "q:quit"
	if _, ok := m.Source.Timeline().(timeline.Controller); ok {
		help = "space:start/stop  +/-:tempo  t:set tempo  q:quit"
		if m.editing {
			help = "enter:apply  esc:cancel"
		}
	}
	out.WriteString("\n\n")
	out.WriteString(dimStyle.Render(help))

	return out.String()
}

// renderPhase draws one cell per pulse of the beat, highlighting the
// current one
func (m Model) renderPhase() string {
	var b strings.Builder
	for i := 0; i < clock.PulsesPerBeat; i++ {
		style := lipgloss.NewStyle().Foreground(m.Theme.Color(float64(i) / clock.PulsesPerBeat))
		sym := m.Theme.Symbols.Slot
		switch {
		case i == m.phase:
			sym = m.Theme.Symbols.Current
			style = style.Foreground(m.Theme.Success())
		case i == 0:
			sym = m.Theme.Symbols.Downbeat
		}
		b.WriteString(style.Render(string(sym)))
	}
	return b.String()
}
