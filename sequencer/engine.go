package sequencer

import (
	"math/rand"
	"sync"
	"time"
)

// DefaultSampleRate is used when a clock reports a non-positive rate.
const DefaultSampleRate = 48000.0

// Clock supplies the sample rate and a monotonic timestamp.
type Clock interface {
	SampleRate() float64
	Now() time.Duration
}

// Port is one input jack. Unconnected jacks read as 0 V.
type Port struct {
	Value     float64
	Connected bool
}

// Voltage returns the jack value, or 0 when nothing is patched.
func (p Port) Voltage() float64 {
	if !p.Connected {
		return 0
	}
	return p.Value
}

// Buttons are the momentary panel buttons, as levels. A press is a rising edge.
type Buttons struct {
	Run       float64
	Reset     float64
	PlayMode  float64
	CountMode float64
	Slide     [NumLanes]float64
	Skip      [NumLanes]float64
}

// Button names one momentary panel button.
type Button int

const (
	ButtonRun Button = iota
	ButtonReset
	ButtonPlayMode
	ButtonCountMode
	// ButtonSlide+i and ButtonSkip+i are the toggles of lane i.
	ButtonSlide
	ButtonSkip = ButtonSlide + NumLanes

	NumButtons = int(ButtonSkip) + NumLanes
)

func SlideButton(lane int) Button { return ButtonSlide + Button(lane) }
func SkipButton(lane int) Button  { return ButtonSkip + Button(lane) }

// Set writes the level of button b.
func (bs *Buttons) Set(b Button, v float64) {
	switch {
	case b == ButtonRun:
		bs.Run = v
	case b == ButtonReset:
		bs.Reset = v
	case b == ButtonPlayMode:
		bs.PlayMode = v
	case b == ButtonCountMode:
		bs.CountMode = v
	case b >= ButtonSlide && b < ButtonSkip:
		bs.Slide[b-ButtonSlide] = v
	case b >= ButtonSkip && int(b) < NumButtons:
		bs.Skip[b-ButtonSkip] = v
	}
}

// Inputs are everything the engine reads on one tick.
type Inputs struct {
	Clock     Port // tempo CV, added to the tempo exponent
	ExtClock  Port
	Reset     Port
	Steps     Port
	SlideTime Port
	GateTime  Port
	RootNote  Port
	Scale     Port
	ExtGate1  Port
	ExtGate2  Port
	Pattern   Port

	Buttons Buttons
}

// Outputs are the three control voltages produced per tick.
type Outputs struct {
	Gate   float64
	Pitch  float64
	Accent float64
}

// Lights are the panel indicators, 0..1.
type Lights struct {
	Running float64
	Reset   float64
	Steps   [NumLanes]float64
	Slides  [NumLanes]float64
	Skips   [NumLanes]float64
}

// trigger is a Schmitt trigger: high at >= 1 V, low again at <= 0 V.
type trigger struct {
	high bool
}

// process reports a rising edge.
func (t *trigger) process(v float64) bool {
	if t.high {
		if v <= 0 {
			t.high = false
		}
		return false
	}
	if v >= 1 {
		t.high = true
		return true
	}
	return false
}

// Engine owns the 16 patterns, the edit panel and all per-tick state. Tick
// and Drain must be called from a single goroutine; other goroutines talk to
// it through Send and read it through Snapshot.
type Engine struct {
	clock    Clock
	rng      Rand
	commands chan Command

	patterns [NumPatterns]Pattern
	panel    Panel

	selected   int
	active     int
	copySource int

	running       bool
	playMode      PlayMode
	countMode     CountMode
	pitchMode     bool // continuous pitch output
	fullQuantize  bool
	updateEnabled bool
	initialized   bool

	// clock
	phase    float64
	lastTrig time.Duration
	prevTrig time.Duration
	haveLast bool
	havePrev bool
	restart  bool

	// cursor echo and latched per-step randomness
	index         int
	prevIndex     int
	pulse         int
	numSteps      int
	pitch         float64
	previousPitch float64
	gateOutcome   bool
	pitchJitter   float64
	accent        float64

	runTrig       trigger
	resetTrig     trigger
	clockTrig     trigger
	playModeTrig  trigger
	countModeTrig trigger
	slideTrigs    [NumLanes]trigger
	skipTrigs     [NumLanes]trigger

	lights Lights
	out    Outputs

	mu     sync.Mutex
	shared Snapshot
}

// Options tune a new engine. Zero values pick defaults.
type Options struct {
	Rand       Rand
	QueueDepth int
}

// DefaultQueueDepth bounds the command queue.
const DefaultQueueDepth = 256

// NewEngine returns a running engine with every pattern at its defaults.
func NewEngine(clock Clock, opts Options) *Engine {
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.QueueDepth <= 0 {
		opts.QueueDepth = DefaultQueueDepth
	}
	e := &Engine{
		clock:        clock,
		rng:          opts.Rand,
		commands:     make(chan Command, opts.QueueDepth),
		panel:        DefaultPanel(),
		copySource:   -1,
		running:      true,
		fullQuantize: true,
		restart:      true,
		numSteps:     8,
		gateOutcome:  true,
		accent:       5,
	}
	for i := range e.patterns {
		e.patterns[i] = NewPattern()
	}
	e.shared.fill(e)
	return e
}

// Pattern returns a copy of pattern i. Audio goroutine only.
func (e *Engine) Pattern(i int) Pattern {
	return e.patterns[clampInt(i, 0, NumPatterns-1)]
}

// Running reports whether the clock is running. Audio goroutine only.
func (e *Engine) Running() bool {
	return e.running
}

// Panel returns a copy of the edit panel. Audio goroutine only.
func (e *Engine) Panel() Panel {
	return e.panel
}

// Snapshot is a consistent copy of the engine state for display and saving.
type Snapshot struct {
	Patterns [NumPatterns]Pattern
	Panel    Panel

	Selected   int
	Active     int
	CopySource int

	Running       bool
	PlayMode      PlayMode
	CountMode     CountMode
	PitchMode     bool
	FullQuantize  bool
	UpdateEnabled bool

	Index    int
	Pulse    int
	NumSteps int
	Phase    float64

	Outputs Outputs
	Lights  Lights
}

func (s *Snapshot) fill(e *Engine) {
	s.Patterns = e.patterns
	s.Panel = e.panel
	s.Selected = e.selected
	s.Active = e.active
	s.CopySource = e.copySource
	s.Running = e.running
	s.PlayMode = e.playMode
	s.CountMode = e.countMode
	s.PitchMode = e.pitchMode
	s.FullQuantize = e.fullQuantize
	s.UpdateEnabled = e.updateEnabled
	s.Index = e.index
	s.Pulse = e.pulse
	s.NumSteps = e.numSteps
	s.Phase = e.phase
	s.Outputs = e.out
	s.Lights = e.lights
}

// Publish copies the current state into the shared snapshot unless a reader
// holds it, in which case the copy is skipped. It never blocks.
func (e *Engine) Publish() bool {
	if !e.mu.TryLock() {
		return false
	}
	e.shared.fill(e)
	e.mu.Unlock()
	return true
}

// Snapshot copies the last published state into dst. Safe from any goroutine.
func (e *Engine) Snapshot(dst *Snapshot) {
	e.mu.Lock()
	*dst = e.shared
	e.mu.Unlock()
}
