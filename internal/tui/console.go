package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/cprmachine/cprd/internal/model"
	"github.com/cprmachine/cprd/internal/protocol"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// DefaultJogHold is how long a jog stays engaged after the last key press.
// Terminals do not report key releases, so holding a key relies on
// auto-repeat to keep the jog alive.
const DefaultJogHold = 300 * time.Millisecond

// TickMsg schedules the next status poll.
type TickMsg time.Time

type statusMsg struct {
	snap model.StatusSnapshot
	err  error
}

type commandMsg struct {
	name string
	err  error
}

type jogAxis int

const (
	axisPan jogAxis = iota
	axisLift
)

type jogReleaseMsg struct {
	axis jogAxis
	seq  int
}

// jogState tracks one momentary jog axis.
type jogState struct {
	dir model.Direction // "" when released
	seq int
}

// ConsoleModel is the operator console: protocol controls, jogs and a live
// status view polled from the daemon.
type ConsoleModel struct {
	op             model.Operator
	keys           KeyMap
	updateInterval time.Duration
	jogHold        time.Duration
	now            func() time.Time

	snap         model.StatusSnapshot
	connected    bool
	pollInFlight bool
	lastErr      error
	lastCommand  string
	showHelp     bool

	pan  jogState
	lift jogState

	counters CountersPanel
}

// NewConsoleModel creates a console driving op. A zero interval uses
// model.DefaultUpdateInterval.
func NewConsoleModel(op model.Operator, updateInterval time.Duration) *ConsoleModel {
	if updateInterval <= 0 {
		updateInterval = model.DefaultUpdateInterval
	}
	return &ConsoleModel{
		op:             op,
		keys:           DefaultKeyMap(),
		updateInterval: updateInterval,
		jogHold:        DefaultJogHold,
		now:            time.Now,
	}
}

// SetJogHold overrides the jog auto-release delay.
func (m *ConsoleModel) SetJogHold(d time.Duration) {
	if d > 0 {
		m.jogHold = d
	}
}

func (m *ConsoleModel) ID() string { return "console" }

func (m *ConsoleModel) Init() tea.Cmd {
	m.pollInFlight = true
	return tea.Batch(m.pollStatusCmd(), m.tick())
}

func (m *ConsoleModel) tick() tea.Cmd {
	return tea.Tick(m.updateInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func (m *ConsoleModel) pollStatusCmd() tea.Cmd {
	op := m.op
	return func() tea.Msg {
		snap, err := op.Status()
		return statusMsg{snap: snap, err: err}
	}
}

func (m *ConsoleModel) call(name string, fn func() error) tea.Cmd {
	return func() tea.Msg {
		return commandMsg{name: name, err: fn()}
	}
}

func (m *ConsoleModel) Update(msg tea.Msg) (tea.Cmd, *PageNav) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg), nil

	case TickMsg:
		if m.pollInFlight {
			return m.tick(), nil
		}
		m.pollInFlight = true
		return tea.Batch(m.pollStatusCmd(), m.tick()), nil

	case statusMsg:
		m.pollInFlight = false
		if msg.err != nil {
			m.connected = false
			m.lastErr = msg.err
			return nil, nil
		}
		m.connected = true
		m.snap = msg.snap
		m.counters.SetData(msg.snap.Run.Counters)
		return nil, nil

	case commandMsg:
		m.lastCommand = msg.name
		m.lastErr = msg.err
		return nil, nil

	case jogReleaseMsg:
		return m.release(msg), nil
	}
	return nil, nil
}

func (m *ConsoleModel) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.ForceQuit), key.Matches(msg, m.keys.Quit):
		return tea.Sequence(m.stopJogs(), tea.Quit)

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		return nil

	case key.Matches(msg, m.keys.Begin):
		return m.call("begin", m.op.Begin)

	case key.Matches(msg, m.keys.Halt):
		return m.call("halt", m.op.HaltImmediately)

	case key.Matches(msg, m.keys.Confirm):
		return m.call("confirm", m.op.Confirm)

	case key.Matches(msg, m.keys.PanLeft):
		return m.jog(axisPan, model.DirectionLeft)
	case key.Matches(msg, m.keys.PanRight):
		return m.jog(axisPan, model.DirectionRight)
	case key.Matches(msg, m.keys.LiftUp):
		return m.jog(axisLift, model.DirectionUp)
	case key.Matches(msg, m.keys.LiftDown):
		return m.jog(axisLift, model.DirectionDown)

	case key.Matches(msg, m.keys.StopJog):
		return m.stopJogs()
	}
	return nil
}

func (m *ConsoleModel) jogFor(axis jogAxis) *jogState {
	if axis == axisPan {
		return &m.pan
	}
	return &m.lift
}

// jog engages an axis and schedules its release. Repeated presses in the
// same direction only extend the hold.
func (m *ConsoleModel) jog(axis jogAxis, dir model.Direction) tea.Cmd {
	st := m.jogFor(axis)
	st.seq++
	seq := st.seq

	releaseCmd := tea.Tick(m.jogHold, func(time.Time) tea.Msg {
		return jogReleaseMsg{axis: axis, seq: seq}
	})
	if st.dir == dir {
		return releaseCmd
	}
	st.dir = dir

	var engage tea.Cmd
	if axis == axisPan {
		engage = m.call("pan "+string(dir), func() error { return m.op.PanCamera(dir) })
	} else {
		engage = m.call("lift "+string(dir), func() error { return m.op.LiftJog(dir) })
	}
	return tea.Batch(engage, releaseCmd)
}

func (m *ConsoleModel) release(msg jogReleaseMsg) tea.Cmd {
	st := m.jogFor(msg.axis)
	if st.seq != msg.seq || st.dir == "" {
		return nil
	}
	st.dir = ""
	if msg.axis == axisPan {
		return m.call("pan release", m.op.PanCameraRelease)
	}
	return m.call("lift release", m.op.LiftRelease)
}

func (m *ConsoleModel) stopJogs() tea.Cmd {
	var cmds []tea.Cmd
	if m.pan.dir != "" {
		m.pan.dir = ""
		m.pan.seq++
		cmds = append(cmds, m.call("pan release", m.op.PanCameraRelease))
	}
	if m.lift.dir != "" {
		m.lift.dir = ""
		m.lift.seq++
		cmds = append(cmds, m.call("lift release", m.op.LiftRelease))
	}
	return tea.Batch(cmds...)
}

func (m *ConsoleModel) View(width, height int) string {
	if width <= 0 {
		width = 80
	}
	if height <= 0 {
		height = 24
	}

	header := m.renderHeader(width)
	footer := m.renderFooter(width)

	if m.showHelp {
		return lipgloss.JoinVertical(lipgloss.Left, header, m.renderHelp(width), footer)
	}

	panelWidth := max(30, width/2-1)
	left := m.renderProtocol(panelWidth)
	chartHeight := max(6, lipgloss.Height(left)-2)
	right := m.counters.Render(panelWidth, chartHeight, m.snap.State == model.StateRunning)

	body := lipgloss.JoinHorizontal(lipgloss.Top, left, " ", right)
	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (m *ConsoleModel) renderHeader(width int) string {
	title := "CPR Machine Console"
	state := "offline"
	if m.connected {
		state = string(m.snap.State)
	}
	badge := stateStyle(state).Render(strings.ToUpper(state))
	gap := width - lipgloss.Width(title) - lipgloss.Width(badge) - 2
	if gap < 1 {
		gap = 1
	}
	return headerStyle.Width(width).Render(title + strings.Repeat(" ", gap) + badge)
}

func (m *ConsoleModel) renderProtocol(width int) string {
	var lines []string

	step := m.snap.Step
	stepTitle := m.snap.StepTitle
	if stepTitle == "" {
		if s, err := protocol.Lookup(step); err == nil {
			stepTitle = s.Title
		}
	}
	lines = append(lines, chartTitleStyle.Render("Protocol"))
	lines = append(lines, fmt.Sprintf("Step %d/%d  %s", step, protocol.LastStep, stepTitle))

	label := m.snap.ControlLabel
	if label == "" {
		label = "Start"
	}
	btn := controlStyle
	if label != "Start" {
		btn = confirmStyle
	}
	lines = append(lines, "", btn.Render(label), "")

	lines = append(lines, "Run time:  "+m.runTime())
	lines = append(lines, "Alignment: "+formatAlignment(m.snap.Alignment))
	lines = append(lines, fmt.Sprintf("Jogs:      pan %s  lift %s", jogLabel(m.pan.dir), jogLabel(m.lift.dir)))

	if m.snap.Backend != "" {
		lines = append(lines, helpStyle.Render(fmt.Sprintf("backend %s  write faults %d  dropped events %d",
			m.snap.Backend, m.snap.WriteFaults, m.snap.DroppedEvents)))
	}

	return sectionStyle.Width(width).Render(strings.Join(lines, "\n"))
}

func (m *ConsoleModel) runTime() string {
	start := m.snap.Run.RunStart
	if start == nil {
		return "not started"
	}
	elapsed := m.now().Sub(*start).Truncate(time.Second)
	if elapsed < 0 {
		elapsed = 0
	}
	return fmt.Sprintf("%dm %02ds", int(elapsed.Minutes()), int(elapsed.Seconds())%60)
}

func formatAlignment(a *model.Alignment) string {
	switch {
	case a == nil:
		return "-"
	case a.NoFace:
		return "no face"
	default:
		return fmt.Sprintf("dx=%d dy=%d", a.DX, a.DY)
	}
}

func jogLabel(d model.Direction) string {
	if d == "" {
		return "idle"
	}
	return string(d)
}

func (m *ConsoleModel) renderHelp(width int) string {
	var lines []string
	lines = append(lines, chartTitleStyle.Render("Keys"))
	for _, b := range m.keys.helpBindings() {
		h := b.Help()
		lines = append(lines, fmt.Sprintf("  %-10s %s", h.Key, h.Desc))
	}
	return sectionStyle.Width(max(30, width-2)).Render(strings.Join(lines, "\n"))
}

func (m *ConsoleModel) renderFooter(width int) string {
	if m.lastErr != nil {
		return errorStyle.Width(width).Render("error: " + m.lastErr.Error())
	}
	text := "? help  q quit"
	if m.lastCommand != "" {
		text = "last: " + m.lastCommand + "  |  " + text
	}
	return helpStyle.Width(width).Render(text)
}
