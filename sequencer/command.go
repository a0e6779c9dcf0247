package sequencer

import "errors"

// ErrQueueFull is returned by Send when the audio goroutine is not draining.
var ErrQueueFull = errors.New("sequencer: command queue full")

// maxCommandsPerTick bounds the work Tick does before running the clock.
const maxCommandsPerTick = 16

// Op identifies an edit command.
type Op int

const (
	OpSetLane Op = iota
	OpSetKnob
	OpSelectPattern
	OpCopyPattern
	OpPastePattern
	OpInitialize
	OpRandomizePitch
	OpRandomizeGates
	OpRandomizeSlidesSkips
	OpSetPlayMode
	OpSetCountMode
	OpTogglePitchMode
	OpToggleQuantizeMode
	OpLoad
)

var opNames = map[Op]string{
	OpSetLane:              "set-lane",
	OpSetKnob:              "set-knob",
	OpSelectPattern:        "select",
	OpCopyPattern:          "copy",
	OpPastePattern:         "paste",
	OpInitialize:           "initialize",
	OpRandomizePitch:       "randomize-pitch",
	OpRandomizeGates:       "randomize-gates",
	OpRandomizeSlidesSkips: "randomize-slides-skips",
	OpSetPlayMode:          "play-mode",
	OpSetCountMode:         "count-mode",
	OpTogglePitchMode:      "pitch-mode",
	OpToggleQuantizeMode:   "quantize-mode",
	OpLoad:                 "load",
}

func (o Op) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}
	return "unknown"
}

// Command is one edit sent from the UI goroutine to the audio goroutine.
type Command struct {
	Op    Op
	Lane  int
	Attr  LaneAttr
	Knob  Knob
	Value float64
	Doc   *Document
}

func SetLane(lane int, attr LaneAttr, v float64) Command {
	return Command{Op: OpSetLane, Lane: lane, Attr: attr, Value: v}
}

func SetKnob(k Knob, v float64) Command {
	return Command{Op: OpSetKnob, Knob: k, Value: v}
}

// SelectPattern switches the edited pattern; i is 0-based.
func SelectPattern(i int) Command {
	return Command{Op: OpSelectPattern, Value: float64(i)}
}

func SetPlayMode(m PlayMode) Command {
	return Command{Op: OpSetPlayMode, Value: float64(m)}
}

func SetCountMode(m CountMode) Command {
	return Command{Op: OpSetCountMode, Value: float64(m)}
}

func Load(doc *Document) Command {
	return Command{Op: OpLoad, Doc: doc}
}

// Simple builds a command that carries no arguments.
func Simple(op Op) Command {
	return Command{Op: op}
}

// Send queues cmd for the audio goroutine without blocking.
func (e *Engine) Send(cmd Command) error {
	select {
	case e.commands <- cmd:
		return nil
	default:
		return ErrQueueFull
	}
}

// Drain applies up to limit queued commands and returns how many ran.
func (e *Engine) Drain(limit int) int {
	n := 0
	for n < limit {
		select {
		case cmd := <-e.commands:
			e.Apply(cmd)
			n++
		default:
			return n
		}
	}
	return n
}

// Apply runs cmd immediately. Audio goroutine only.
func (e *Engine) Apply(cmd Command) {
	switch cmd.Op {
	case OpSetLane:
		if cmd.Lane < 0 || cmd.Lane >= NumLanes {
			return
		}
		e.panel.Lanes[cmd.Lane].Set(cmd.Attr, cmd.Value)
	case OpSetKnob:
		if cmd.Knob == KnobPattern {
			e.selectPattern(int(cmd.Value) - 1)
			return
		}
		e.panel.SetKnob(cmd.Knob, cmd.Value)
	case OpSelectPattern:
		e.selectPattern(int(cmd.Value))
	case OpCopyPattern:
		e.copySource = e.selected
	case OpPastePattern:
		if e.copySource >= 0 && e.copySource != e.selected && e.updateEnabled {
			e.holdUpdates(func() { e.recall(e.copySource) })
		}
	case OpInitialize:
		e.holdUpdates(e.initialize)
	case OpRandomizePitch:
		for i := range e.panel.Lanes {
			e.panel.Lanes[i].Pitch = e.rng.Float64() * PitchMax
		}
	case OpRandomizeGates:
		for i := range e.panel.Lanes {
			e.panel.Lanes[i].Pulses = 1 + e.rng.Intn(PulsesMax)
		}
		for i := range e.panel.Lanes {
			e.panel.Lanes[i].GateType = GateType(e.rng.Intn(NumGateTypes))
		}
	case OpRandomizeSlidesSkips:
		e.randomizeSlidesSkips()
	case OpSetPlayMode:
		e.playMode = PlayMode(int(cmd.Value)).Clamp()
	case OpSetCountMode:
		e.countMode = CountMode(int(cmd.Value)).Clamp()
	case OpTogglePitchMode:
		e.pitchMode = !e.pitchMode
	case OpToggleQuantizeMode:
		e.fullQuantize = !e.fullQuantize
	case OpLoad:
		if cmd.Doc != nil {
			e.ApplyDocument(cmd.Doc)
		}
	}
}

// holdUpdates runs fn with pattern updates disabled so a panel rewrite is not
// taken for a user edit halfway through.
func (e *Engine) holdUpdates(fn func()) {
	e.updateEnabled = false
	fn()
	e.updateEnabled = true
}

// selectPattern moves the selector and, when the target differs from the
// selected pattern, loads the target onto the panel.
func (e *Engine) selectPattern(target int) {
	target = clampInt(target, 0, NumPatterns-1)
	e.panel.Pattern = target + 1
	if target == e.selected || !e.updateEnabled {
		return
	}
	e.holdUpdates(func() {
		e.selected = target
		e.recall(target)
	})
}

// recall copies pattern src onto the panel and the engine modes.
func (e *Engine) recall(src int) {
	p := &e.patterns[src]
	e.panel.loadPattern(p)
	e.playMode = p.PlayMode.Clamp()
	e.countMode = p.CountMode.Clamp()
}

func (e *Engine) initialize() {
	pattern := e.panel.Pattern
	e.panel = DefaultPanel()
	e.panel.Pattern = pattern
	e.playMode = PlayForward
	e.countMode = CountSteps
}

func (e *Engine) randomizeSlidesSkips() {
	for i := range e.panel.Lanes {
		e.panel.Lanes[i].Slide = e.rng.Float64() > 0.8
		e.panel.Lanes[i].Skip = e.rng.Float64() > 0.85
	}
}
