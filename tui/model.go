package tui

import (
	"context"
	"fmt"
	"math"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"go-bordl/debug"
	"go-bordl/host"
	"go-bordl/midi"
	"go-bordl/sequencer"
	"go-bordl/theme"
	"go-bordl/widgets"
)

// attrSteps is how far one keypress moves each lane attribute.
var attrSteps = [sequencer.NumLaneAttrs]float64{
	sequencer.AttrPitch:           1.0 / 12,
	sequencer.AttrPulses:          1,
	sequencer.AttrGateType:        1,
	sequencer.AttrGateProbability: 0.1,
	sequencer.AttrPitchRandom:     0.1,
	sequencer.AttrAccent:          1,
	sequencer.AttrAccentRandom:    0.1,
}

var knobSteps = [sequencer.NumKnobs]float64{
	sequencer.KnobTempo:       0.25,
	sequencer.KnobSteps:       1,
	sequencer.KnobRoot:        1,
	sequencer.KnobScale:       1,
	sequencer.KnobGateTime:    0.05,
	sequencer.KnobSlideTime:   0.05,
	sequencer.KnobSensitivity: 0.05,
	sequencer.KnobPattern:     1,
}

// surfaceLink is the controller currently bound to the runner
type surfaceLink struct {
	controller midi.Controller
	cancel     context.CancelFunc
}

type Model struct {
	Runner    *host.Runner
	DeviceMgr *midi.DeviceManager // nil without hot-plug
	Store     *sequencer.Store    // nil disables save/load
	Surface   *midi.Surface
	Theme     *theme.Theme
	Project   string

	ctx      context.Context
	snap     *sequencer.Snapshot
	link     *surfaceLink
	lane     int
	attr     sequencer.LaneAttr
	knob     sequencer.Knob
	status   string
	showPads bool
	showHelp bool
	quitting bool
}

type UpdateMsg struct{}

type DeviceEventMsg midi.DeviceEvent

func NewModel(ctx context.Context, runner *host.Runner, deviceMgr *midi.DeviceManager, store *sequencer.Store, th *theme.Theme) Model {
	m := Model{
		Runner:    runner,
		DeviceMgr: deviceMgr,
		Store:     store,
		Surface:   midi.NewSurface(midi.DefaultSurfaceColors()),
		Theme:     th,
		Project:   "untitled",
		ctx:       ctx,
		snap:      &sequencer.Snapshot{},
		link:      &surfaceLink{},
	}
	runner.Snapshot(m.snap)
	return m
}

func ListenForUpdates(runner *host.Runner) tea.Cmd {
	return func() tea.Msg {
		<-runner.Updates()
		return UpdateMsg{}
	}
}

func ListenForDevices(deviceMgr *midi.DeviceManager) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-deviceMgr.Events()
		if !ok {
			return nil
		}
		return DeviceEventMsg(event)
	}
}

func (m Model) Init() tea.Cmd {
	if m.DeviceMgr == nil {
		return ListenForUpdates(m.Runner)
	}
	return tea.Batch(
		ListenForUpdates(m.Runner),
		ListenForDevices(m.DeviceMgr),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		m.Runner.Snapshot(m.snap)
		if m.handleKey(msg.String()) {
			m.quitting = true
			m.unlink()
			return m, tea.Quit
		}

	case UpdateMsg:
		m.Runner.Snapshot(m.snap)
		return m, ListenForUpdates(m.Runner)

	case DeviceEventMsg:
		event := midi.DeviceEvent(msg)
		switch event.Type {
		case midi.DeviceConnected:
			if event.Controller != nil {
				m.bind(event.Controller)
			}
		case midi.DeviceDisconnected:
			if m.link.controller != nil && m.link.controller.ID() == event.ID {
				m.unlink()
				m.status = "launchpad disconnected"
			}
		}
		if m.DeviceMgr == nil {
			return m, nil
		}
		return m, ListenForDevices(m.DeviceMgr)
	}

	return m, nil
}

// bind serves c from a SurfaceLink, replacing any previous controller
func (m *Model) bind(c midi.Controller) {
	m.unlink()
	ctx, cancel := context.WithCancel(m.context())
	m.link.controller = c
	m.link.cancel = cancel
	go host.NewSurfaceLink(m.Runner, m.Surface, c).Run(ctx)
	m.status = "launchpad connected: " + c.ID()
	debug.Log("tui", "bound controller %s", c.ID())
}

func (m *Model) unlink() {
	if m.link.cancel != nil {
		m.link.cancel()
	}
	m.link.controller = nil
	m.link.cancel = nil
}

func (m *Model) context() context.Context {
	if m.ctx == nil {
		return context.Background()
	}
	return m.ctx
}

// handleKey applies one keypress and reports whether to quit
func (m *Model) handleKey(key string) bool {
	lanes := &m.snap.Panel.Lanes
	switch key {
	case "q", "ctrl+c":
		return true

	case " ", "space":
		m.Runner.Press(sequencer.ButtonRun)
	case "r":
		m.Runner.Press(sequencer.ButtonReset)
	case "m":
		m.Runner.Press(sequencer.ButtonPlayMode)
	case "c":
		m.Runner.Press(sequencer.ButtonCountMode)

	case "h", "left":
		m.lane = (m.lane + sequencer.NumLanes - 1) % sequencer.NumLanes
	case "l", "right":
		m.lane = (m.lane + 1) % sequencer.NumLanes
	case "k", "up":
		m.attr = sequencer.LaneAttr((int(m.attr) + sequencer.NumLaneAttrs - 1) % sequencer.NumLaneAttrs)
	case "j", "down":
		m.attr = sequencer.LaneAttr((int(m.attr) + 1) % sequencer.NumLaneAttrs)

	case "+", "=":
		m.nudgeLane(lanes, 1)
	case "-", "_":
		m.nudgeLane(lanes, -1)
	case "enter":
		m.toggleLane(lanes)

	case "tab":
		m.knob = sequencer.Knob((int(m.knob) + 1) % sequencer.NumKnobs)
	case "shift+tab":
		m.knob = sequencer.Knob((int(m.knob) + sequencer.NumKnobs - 1) % sequencer.NumKnobs)
	case "]":
		m.nudgeKnob(1)
	case "[":
		m.nudgeKnob(-1)

	case ",":
		m.send(sequencer.SelectPattern((m.snap.Selected + sequencer.NumPatterns - 1) % sequencer.NumPatterns))
	case ".":
		m.send(sequencer.SelectPattern((m.snap.Selected + 1) % sequencer.NumPatterns))
	case "y":
		m.send(sequencer.Simple(sequencer.OpCopyPattern))
		m.status = fmt.Sprintf("copied pattern %d", m.snap.Selected+1)
	case "p":
		m.send(sequencer.Simple(sequencer.OpPastePattern))
	case "i":
		m.send(sequencer.Simple(sequencer.OpInitialize))
	case "x":
		m.send(sequencer.Simple(sequencer.OpRandomizePitch))
	case "g":
		m.send(sequencer.Simple(sequencer.OpRandomizeGates))
	case "z":
		m.send(sequencer.Simple(sequencer.OpRandomizeSlidesSkips))
	case "P":
		m.send(sequencer.Simple(sequencer.OpTogglePitchMode))
	case "Q":
		m.send(sequencer.Simple(sequencer.OpToggleQuantizeMode))

	case "ctrl+s":
		m.save()
	case "ctrl+o":
		m.load()

	case "v":
		m.showPads = !m.showPads
	case "?":
		m.showHelp = !m.showHelp
	}
	return false
}

func (m *Model) send(cmd sequencer.Command) {
	if err := m.Runner.Send(cmd); err != nil {
		m.status = err.Error()
	}
}

// nudgeLane steps the selected attribute; slide and skip go through their buttons
func (m *Model) nudgeLane(lanes *[sequencer.NumLanes]sequencer.Lane, dir float64) {
	switch m.attr {
	case sequencer.AttrSlide, sequencer.AttrSkip:
		m.toggleLane(lanes)
		return
	}
	v := lanes[m.lane].Get(m.attr) + dir*attrSteps[m.attr]
	if m.attr == sequencer.AttrGateType {
		v = math.Mod(v+float64(sequencer.NumGateTypes), float64(sequencer.NumGateTypes))
	}
	m.send(sequencer.SetLane(m.lane, m.attr, v))
}

func (m *Model) toggleLane(lanes *[sequencer.NumLanes]sequencer.Lane) {
	switch m.attr {
	case sequencer.AttrSlide:
		m.Runner.Press(sequencer.SlideButton(m.lane))
	case sequencer.AttrSkip:
		m.Runner.Press(sequencer.SkipButton(m.lane))
	case sequencer.AttrGateType:
		if lanes[m.lane].GateType == sequencer.GateNone {
			m.send(sequencer.SetLane(m.lane, m.attr, float64(sequencer.GateAllPulses)))
		} else {
			m.send(sequencer.SetLane(m.lane, m.attr, float64(sequencer.GateNone)))
		}
	}
}

func (m *Model) nudgeKnob(dir float64) {
	p := &m.snap.Panel
	m.send(sequencer.SetKnob(m.knob, p.Knob(m.knob)+dir*knobSteps[m.knob]))
}

func (m *Model) save() {
	if m.Store == nil {
		m.status = "no project store"
		return
	}
	name, err := m.Store.SaveProject(m.Project, m.snap.Document())
	if err != nil {
		m.status = "save failed: " + err.Error()
		return
	}
	m.status = "saved " + m.Project + "/" + name
}

func (m *Model) load() {
	if m.Store == nil {
		m.status = "no project store"
		return
	}
	doc, err := m.Store.LoadProject(m.Project, "")
	if err != nil {
		m.status = "load failed: " + err.Error()
		return
	}
	m.send(sequencer.Load(doc))
	m.status = "loaded " + m.Project
}

func knobText(p *sequencer.Panel, k sequencer.Knob) string {
	switch k {
	case sequencer.KnobTempo:
		return fmt.Sprintf("%.2f st/s", math.Exp2(p.Tempo))
	case sequencer.KnobSteps:
		return fmt.Sprintf("%d", p.Steps)
	case sequencer.KnobRoot:
		return sequencer.NoteName(p.RootNote)
	case sequencer.KnobScale:
		return p.Scale.String()
	case sequencer.KnobPattern:
		return fmt.Sprintf("%d", p.Pattern)
	}
	return fmt.Sprintf("%.2f", p.Knob(k))
}

var keyHelp = []widgets.KeySection{
	{Title: "Transport", Keys: []widgets.KeyBinding{
		{Key: "space", Desc: "run / stop"},
		{Key: "r", Desc: "reset"},
		{Key: "m / c", Desc: "play mode / count mode"},
	}},
	{Title: "Edit", Keys: []widgets.KeyBinding{
		{Key: "h l / j k", Desc: "pick lane / attribute"},
		{Key: "+ -", Desc: "change value"},
		{Key: "enter", Desc: "toggle slide, skip or gate"},
		{Key: "tab [ ]", Desc: "pick knob / turn it"},
	}},
	{Title: "Patterns", Keys: []widgets.KeyBinding{
		{Key: ", .", Desc: "previous / next pattern"},
		{Key: "y / p", Desc: "copy / paste"},
		{Key: "i", Desc: "initialize"},
		{Key: "x g z", Desc: "randomize pitch, gates, slides+skips"},
		{Key: "P / Q", Desc: "pitch mode / quantize mode"},
		{Key: "ctrl+s/o", Desc: "save / load latest"},
	}},
	{Title: "View", Keys: []widgets.KeyBinding{
		{Key: "v", Desc: "launchpad preview"},
		{Key: "?", Desc: "help"},
		{Key: "q", Desc: "quit"},
	}},
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	s := m.snap
	th := m.Theme

	headerStyle := lipgloss.NewStyle().Foreground(th.Accent())
	dimStyle := lipgloss.NewStyle().Foreground(th.Muted())
	activeStyle := lipgloss.NewStyle().Foreground(th.Active()).Bold(true)
	knobStyle := lipgloss.NewStyle().Foreground(th.FG())
	knobPicked := knobStyle.Foreground(th.BG()).Background(th.Accent())
	statusStyle := lipgloss.NewStyle().
		Foreground(th.FG()).
		Background(th.Muted()).
		Padding(0, 1)

	runState := "STOP"
	if s.Running {
		runState = "RUN "
	}
	flags := ""
	if s.PitchMode {
		flags += " cont"
	}
	if !s.FullQuantize {
		flags += " coarse"
	}
	deviceStatus := ""
	if m.link.controller != nil {
		deviceStatus = " LP:X"
	}
	header := headerStyle.Render(fmt.Sprintf("go-bordl  %s  %s %-6s  pattern %02d/%02d  %s%s%s",
		runState, s.PlayMode.Glyph(), s.CountMode, s.Selected+1, sequencer.NumPatterns,
		m.Project, flags, deviceStatus))

	// pattern bank: [n] selected, * playing
	var bank strings.Builder
	for i := 0; i < sequencer.NumPatterns; i++ {
		label := fmt.Sprintf(" %2d ", i+1)
		if i == s.Selected {
			label = fmt.Sprintf("[%2d]", i+1)
		}
		switch {
		case i == s.Active:
			bank.WriteString(activeStyle.Render(label))
		case i == s.CopySource:
			bank.WriteString(headerStyle.Render(label))
		default:
			bank.WriteString(dimStyle.Render(label))
		}
	}

	sel := &s.Patterns[s.Selected]
	steps := widgets.RenderStepRow(sel, s.Running && s.Selected == s.Active, th)
	table := widgets.RenderLaneTable(&s.Panel, m.lane, m.attr, th)

	var knobs []string
	for k := sequencer.Knob(0); int(k) < sequencer.NumKnobs; k++ {
		text := fmt.Sprintf("%s %s", k, knobText(&s.Panel, k))
		if k == m.knob {
			knobs = append(knobs, knobPicked.Render(text))
		} else {
			knobs = append(knobs, knobStyle.Render(text))
		}
	}

	gate := th.Symbols.GateOff
	if s.Outputs.Gate >= 1 {
		gate = th.Symbols.Gate
	}
	outputs := fmt.Sprintf("gate %c  pitch %5.2fV %s  accent %s",
		gate,
		s.Outputs.Pitch, widgets.Meter(s.Outputs.Pitch, sequencer.PitchMax, 10, th.Symbols),
		widgets.Meter(s.Outputs.Accent, sequencer.AccentMax, 10, th.Symbols))

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n\n")
	out.WriteString(bank.String())
	out.WriteString("\n\n  ")
	out.WriteString(steps)
	out.WriteString("\n\n")
	out.WriteString(table)
	out.WriteString("\n\n")
	out.WriteString(strings.Join(knobs, dimStyle.Render(" │ ")))
	out.WriteString("\n")
	out.WriteString(dimStyle.Render(outputs))

	if m.showPads {
		var grid widgets.PadGrid
		for _, led := range m.Surface.Render(s) {
			grid.Set(led.Row, led.Col, led.Color)
		}
		c := m.Surface.Colors
		legend := []string{
			widgets.RenderLegendItem(c.Step, "Steps", "playhead, top grid row"),
			widgets.RenderLegendItem(c.Slide, "Slide", "toggle per lane"),
			widgets.RenderLegendItem(c.Skip, "Skip", "toggle per lane"),
			widgets.RenderLegendItem(c.Gate, "Gate", "First / All / Last / Ext 1 / Ext 2"),
			widgets.RenderLegendItem(c.Pattern, "Patterns", "top row, side pad switches bank"),
		}
		out.WriteString("\n\n")
		out.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
			widgets.RenderPadGrid(&grid), "   ", strings.Join(legend, "\n")))
	}

	out.WriteString("\n\n")
	if m.showHelp {
		out.WriteString(dimStyle.Render(widgets.RenderKeyHelp(keyHelp)))
	} else {
		out.WriteString(dimStyle.Render("space:run  hjkl:edit  +/-:value  tab [ ]:knobs  , .:pattern  ?:help  q:quit"))
	}

	if m.status != "" {
		out.WriteString("\n")
		out.WriteString(statusStyle.Render(m.status))
	}

	return out.String()
}
