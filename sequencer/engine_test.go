package sequencer

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"
)

// testRate makes the default tempo (2^2 steps per second) land on exactly
// 256 frames per step.
const (
	testRate      = 1024.0
	framesPerStep = 256
)

type fakeClock struct {
	rate float64
	now  time.Duration
}

func (c *fakeClock) SampleRate() float64 { return c.rate }
func (c *fakeClock) Now() time.Duration  { return c.now }

func newTestEngine() (*Engine, *fakeClock) {
	clock := &fakeClock{rate: testRate}
	e := NewEngine(clock, Options{Rand: rand.New(rand.NewSource(42))})
	return e, clock
}

func run(e *Engine, in *Inputs, frames int) Outputs {
	var out Outputs
	for i := 0; i < frames; i++ {
		out = e.Tick(in)
	}
	return out
}

func TestEngineInternalClockSteps(t *testing.T) {
	e, _ := newTestEngine()
	in := &Inputs{}
	e.Tick(in)
	if !e.initialized || !e.updateEnabled {
		t.Fatal("first tick should initialize")
	}

	var visited []int
	for i := 0; i < 10*framesPerStep; i++ {
		prev := e.patterns[e.active].Cursor.Step
		e.Tick(in)
		if cur := e.patterns[e.active].Cursor.Step; cur != prev || i == framesPerStep-2 {
			visited = append(visited, cur)
		}
	}
	want := []int{0, 1, 2, 3, 4, 5, 6, 7, 0, 1}
	if len(visited) < len(want) {
		t.Fatalf("visited %v", visited)
	}
	for i := range want {
		if visited[i] != want[i] {
			t.Fatalf("visited %v, want prefix %v", visited, want)
		}
	}
}

func TestEngineRunToggleFreezesPhase(t *testing.T) {
	e, _ := newTestEngine()
	in := &Inputs{}
	run(e, in, 10)
	in.Buttons.Run = 1
	e.Tick(in)
	in.Buttons.Run = 0
	if e.running {
		t.Fatal("run button should stop the engine")
	}
	phase := e.phase
	out := run(e, in, 100)
	if e.phase != phase {
		t.Errorf("phase moved while stopped: %v -> %v", phase, e.phase)
	}
	if out.Gate != 0 || out.Accent != 0 {
		t.Errorf("stopped engine output %+v", out)
	}
	if e.lights.Running != 0 {
		t.Errorf("running light %v", e.lights.Running)
	}
}

func TestEngineResetRestartsPattern(t *testing.T) {
	e, _ := newTestEngine()
	in := &Inputs{}
	run(e, in, 3*framesPerStep+10)
	if e.patterns[0].Cursor.Step == 0 {
		t.Fatal("expected to have moved")
	}
	in.Reset = Port{Value: 5, Connected: true}
	e.Tick(in)
	if got := e.patterns[0].Cursor.Step; got != 0 {
		t.Errorf("after reset step %d", got)
	}
	if e.phase != 0 || e.restart {
		t.Errorf("phase %v restart %v", e.phase, e.restart)
	}
	if e.lights.Reset <= 0.9 {
		t.Errorf("reset light %v", e.lights.Reset)
	}
	in.Reset.Value = 0
	run(e, in, 1000)
	if e.lights.Reset >= 0.01 {
		t.Errorf("reset light did not decay: %v", e.lights.Reset)
	}
}

func TestEngineExternalClock(t *testing.T) {
	e, clock := newTestEngine()
	in := &Inputs{ExtClock: Port{Connected: true}}
	e.Tick(in)

	for i := 0; i < 3; i++ {
		clock.now += 100 * time.Millisecond
		in.ExtClock.Value = 10
		e.Tick(in)
		if e.phase != 0 {
			t.Fatalf("phase after clock edge %v", e.phase)
		}
		in.ExtClock.Value = 0
		e.Tick(in)
	}
	if got := e.patterns[0].Cursor.Step; got != 2 {
		t.Errorf("reset plus two edges should reach step 2, got %d", got)
	}

	clock.now += 25 * time.Millisecond
	e.Tick(in)
	if math.Abs(e.phase-0.25) > 1e-9 {
		t.Errorf("estimated phase %v, want 0.25", e.phase)
	}
}

func TestEnginePatternCV(t *testing.T) {
	tests := []struct {
		cv   Port
		knob int
		want int
	}{
		{Port{}, 1, 0},
		{Port{}, 16, 15},
		{Port{Value: 0, Connected: true}, 9, 0},
		{Port{Value: 10, Connected: true}, 1, 15},
		{Port{Value: 5, Connected: true}, 1, 7},
		{Port{Value: -4, Connected: true}, 1, 0},
		{Port{Value: 40, Connected: true}, 1, 15},
	}
	for _, tt := range tests {
		if got := activePattern(tt.cv, tt.knob); got != tt.want {
			t.Errorf("activePattern(%+v, %d) = %d, want %d", tt.cv, tt.knob, got, tt.want)
		}
	}
}

func TestEngineUneditedPatternPlaysItsLength(t *testing.T) {
	e, _ := newTestEngine()
	in := &Inputs{Pattern: Port{Value: 1, Connected: true}}
	visited := make(map[int]bool)
	for i := 0; i < 20*framesPerStep; i++ {
		e.Tick(in)
		if e.active != 1 {
			t.Fatalf("active pattern %d, want 1", e.active)
		}
		visited[e.patterns[1].Cursor.Step] = true
	}
	if len(visited) != 8 {
		t.Errorf("visited %d distinct steps, want 8", len(visited))
	}
	for step := range visited {
		if step >= 8 {
			t.Errorf("played step %d past the pattern length", step)
		}
	}
}

// gateEngine sets lane 0 and parks the cursor on step 0 of pattern 0.
func gateEngine(t *testing.T, lane Lane) *Engine {
	t.Helper()
	e, _ := newTestEngine()
	e.panel.Lanes[0] = lane
	e.Tick(&Inputs{})
	e.patterns[0].Cursor = Cursor{Step: 0, Forward: true}
	e.gateOutcome = true
	e.accent = 6
	e.pitchJitter = 0
	return e
}

func TestEngineGateTypes(t *testing.T) {
	tests := []struct {
		name   string
		gate   GateType
		pulse  int
		phase  float64
		in     Inputs
		want   float64
		accent float64
	}{
		{"none", GateNone, 0, 0.1, Inputs{}, 0, 0},
		{"first at pulse 0", GateFirstPulse, 0, 0.1, Inputs{}, 10, 6},
		{"first at pulse 1", GateFirstPulse, 1, 0.1, Inputs{}, 0, 0},
		{"all inside window", GateAllPulses, 1, 0.1, Inputs{}, 10, 6},
		{"all after window", GateAllPulses, 1, 0.6, Inputs{}, 0, 0},
		{"all window from cv", GateAllPulses, 0, 0.6, Inputs{GateTime: Port{Value: 2, Connected: true}}, 10, 6},
		{"ext 1", GateExternal1, 0, 0.9, Inputs{ExtGate1: Port{Value: 7.5, Connected: true}}, 7.5, 6},
		{"ext 2", GateExternal2, 2, 0.9, Inputs{ExtGate2: Port{Value: 3, Connected: true}}, 3, 6},
		{"ext 2 unpatched", GateExternal2, 0, 0.1, Inputs{ExtGate2: Port{Value: 3}}, 0, 6},
	}
	for _, tt := range tests {
		lane := DefaultLane()
		lane.GateType = tt.gate
		lane.Pulses = 3
		e := gateEngine(t, lane)
		e.pulse = tt.pulse
		e.phase = tt.phase
		out := e.resolve(&tt.in)
		if out.Gate != tt.want {
			t.Errorf("%s: gate %v, want %v", tt.name, out.Gate, tt.want)
		}
		if out.Accent != tt.accent {
			t.Errorf("%s: accent %v, want %v", tt.name, out.Accent, tt.accent)
		}
	}
}

func TestEngineLastPulseGate(t *testing.T) {
	lane := DefaultLane()
	lane.GateType = GateLastPulse
	lane.Pulses = 3
	e := gateEngine(t, lane)
	for pulse := 0; pulse < 3; pulse++ {
		for _, phase := range []float64{0, 0.3, 0.9} {
			e.pulse, e.phase = pulse, phase
			if out := e.resolve(&Inputs{}); out.Gate != 0 {
				t.Errorf("pulse %d phase %v: gate %v, want off", pulse, phase, out.Gate)
			}
		}
	}
	e.pulse, e.phase = 3, 0.9
	if out := e.resolve(&Inputs{}); out.Gate != 10 {
		t.Errorf("pulse == count: gate %v, want 10", out.Gate)
	}
}

func TestEngineGateSuppression(t *testing.T) {
	lane := DefaultLane()
	e := gateEngine(t, lane)
	e.phase = 0.1

	e.gateOutcome = false
	if out := e.resolve(&Inputs{}); out.Gate != 0 || out.Accent != 0 || out.Pitch == 0 {
		t.Errorf("lost probability roll: %+v", out)
	}
	e.gateOutcome = true

	e.patterns[0].Steps[0].Skip = true
	if out := e.resolve(&Inputs{}); out.Gate != 0 || out.Pitch != 0 {
		t.Errorf("skipped step: %+v", out)
	}
	e.pitchMode = true
	if out := e.resolve(&Inputs{}); out.Pitch == 0 {
		t.Errorf("continuous pitch should not follow the gate: %+v", out)
	}
}

func TestEnginePitchQuantizedAndScaled(t *testing.T) {
	lane := DefaultLane()
	lane.Pitch = 2.2
	e := gateEngine(t, lane)
	e.patterns[0].Sensitivity = 0.5
	e.patterns[0].Scale = ScaleMajor
	e.phase = 0.1
	out := e.resolve(&Inputs{})
	want := ClosestVoltageInScale(1.1, 0, ScaleMajor, true)
	if out.Pitch != want {
		t.Errorf("pitch %v, want %v", out.Pitch, want)
	}

	out = e.resolve(&Inputs{Scale: Port{Value: 100, Connected: true}})
	if out.Pitch != 1.1 {
		t.Errorf("scale cv to None: pitch %v, want 1.1", out.Pitch)
	}
}

func TestEngineSlide(t *testing.T) {
	lane := DefaultLane()
	lane.Pitch = 4
	lane.Slide = true
	e := gateEngine(t, lane)
	e.patterns[0].Scale = ScaleNone
	e.pitchMode = true
	e.previousPitch = 2
	e.phase = 0.5

	out := e.resolve(&Inputs{})
	coeff := 0.2 - 0.01
	want := 4 - (1-math.Pow(0.5, coeff))*(4-2)
	if math.Abs(out.Pitch-want) > 1e-12 {
		t.Errorf("slide pitch %v, want %v", out.Pitch, want)
	}

	e.pulse = 1
	if out := e.resolve(&Inputs{}); out.Pitch != 4 {
		t.Errorf("slide only applies on pulse 0, got %v", out.Pitch)
	}

	e.pulse = 0
	e.phase = 0
	in := &Inputs{SlideTime: Port{Value: -10, Connected: true}}
	if out := e.resolve(in); out.Pitch != 2 {
		t.Errorf("degenerate slide should hold the previous pitch, got %v", out.Pitch)
	}
}

func TestEngineRerollsOnlyOnNewStep(t *testing.T) {
	e, _ := newTestEngine()
	for i := range e.panel.Lanes {
		e.panel.Lanes[i].Pulses = 4
		e.panel.Lanes[i].PitchRandomDepth = 1
		e.panel.Lanes[i].AccentRandomDepth = 1
		e.panel.Lanes[i].Accent = 5
	}
	in := &Inputs{}
	run(e, in, 5*framesPerStep) // reset onto step 0, four pulses, then step 1
	if e.index != 1 || e.pulse != 0 {
		t.Fatalf("lane %d pulse %d", e.index, e.pulse)
	}
	jitter, accent := e.pitchJitter, e.accent
	run(e, in, framesPerStep)
	if e.index != 1 || e.pulse != 1 {
		t.Fatalf("lane %d pulse %d", e.index, e.pulse)
	}
	if e.pitchJitter != jitter || e.accent != accent {
		t.Error("randomness re-rolled inside a step")
	}
	if jitter < -5 || jitter > 5 || accent < 0 || accent > 10 {
		t.Errorf("jitter %v accent %v out of range", jitter, accent)
	}
}

func TestEngineButtonsEditPanel(t *testing.T) {
	e, _ := newTestEngine()
	var in Inputs
	e.Tick(&in)

	in.Buttons.Slide[2] = 1
	in.Buttons.Skip[5] = 1
	in.Buttons.PlayMode = 1
	in.Buttons.CountMode = 1
	e.Tick(&in)
	e.Tick(&in) // held buttons fire once
	if !e.panel.Lanes[2].Slide || !e.panel.Lanes[5].Skip {
		t.Error("lane toggles not applied")
	}
	if e.playMode != PlayBackward || e.countMode != CountPulses {
		t.Errorf("modes %v %v", e.playMode, e.countMode)
	}
	p := e.patterns[0]
	if !p.Steps[10].Slide || !p.Steps[13].SkipRequested || p.PlayMode != PlayBackward {
		t.Error("selected pattern not updated from panel")
	}

	in = Inputs{}
	e.Tick(&in)
	for i := 0; i < 4; i++ {
		in.Buttons.PlayMode = 1
		e.Tick(&in)
		in.Buttons.PlayMode = 0
		e.Tick(&in)
	}
	if e.playMode != PlayForward {
		t.Errorf("play mode should wrap, got %v", e.playMode)
	}
}

func TestEngineStepsCV(t *testing.T) {
	e, _ := newTestEngine()
	in := &Inputs{Steps: Port{Value: 2.6, Connected: true}}
	e.Tick(in)
	if e.numSteps != 11 || e.patterns[0].NumberOfSteps != 11 || e.patterns[0].NumberOfStepsRequested != 8 {
		t.Errorf("numSteps %d pattern %+v", e.numSteps, e.patterns[0].PatternSettings)
	}
	in.Steps.Value = 50
	e.Tick(in)
	if e.numSteps != NumSteps {
		t.Errorf("numSteps %d, want clamp to 16", e.numSteps)
	}
}

func TestEngineSelectPatternProtocol(t *testing.T) {
	e, _ := newTestEngine()
	in := &Inputs{}
	e.Tick(in)

	e.Apply(SetLane(0, AttrPitch, 6))
	e.Apply(SetKnob(KnobRoot, 4))
	e.Tick(in)

	e.Apply(SelectPattern(3))
	if e.selected != 3 || e.panel.Pattern != 4 {
		t.Fatalf("selected %d knob %d", e.selected, e.panel.Pattern)
	}
	if e.panel.Lanes[0].Pitch != 3 || e.panel.RootNote != 0 {
		t.Errorf("panel should show pattern 3 defaults, got pitch %v root %d", e.panel.Lanes[0].Pitch, e.panel.RootNote)
	}
	if !e.updateEnabled {
		t.Error("updates left disabled")
	}

	e.Apply(SetLane(1, AttrAccent, 8))
	e.Apply(SetPlayMode(PlayRandom))
	e.Tick(in)

	e.Apply(SelectPattern(0))
	if e.panel.Lanes[0].Pitch != 6 || e.panel.RootNote != 4 || e.playMode != PlayForward {
		t.Errorf("pattern 0 not recalled: pitch %v root %d mode %v", e.panel.Lanes[0].Pitch, e.panel.RootNote, e.playMode)
	}
	if e.patterns[3].Steps[1].Accent != 8 || e.patterns[3].PlayMode != PlayRandom {
		t.Error("pattern 3 edits lost")
	}
	if e.patterns[0].Steps[1].Accent != 0 {
		t.Error("pattern 3 edits leaked into pattern 0")
	}

	e.Apply(SetKnob(KnobPattern, 4))
	if e.selected != 3 {
		t.Errorf("pattern knob should select index 3, got %d", e.selected)
	}
}

func TestEngineCopyPaste(t *testing.T) {
	e, _ := newTestEngine()
	in := &Inputs{}
	e.Tick(in)

	e.Apply(SetLane(2, AttrPulses, 5))
	e.Apply(SetLane(2, AttrSkip, 1))
	e.Apply(SetKnob(KnobScale, float64(ScaleDorian)))
	e.Tick(in)
	e.Apply(Simple(OpCopyPattern))

	e.Apply(Simple(OpPastePattern)) // same pattern: no-op
	e.Apply(SelectPattern(7))
	e.Apply(Simple(OpPastePattern))
	e.Tick(in)

	p := e.patterns[7]
	if p.Steps[2].PulseCountRequested != 5 || !p.Steps[2].SkipRequested || p.Scale != ScaleDorian {
		t.Errorf("paste did not copy: %+v", p.Steps[2])
	}
	if e.selected != 7 {
		t.Errorf("paste changed selection to %d", e.selected)
	}
}

func TestEngineInitializeKeepsSelector(t *testing.T) {
	e, _ := newTestEngine()
	e.Tick(&Inputs{})
	e.Apply(SelectPattern(5))
	e.Apply(SetKnob(KnobTempo, 4))
	e.Apply(SetLane(0, AttrSlide, 1))
	e.Apply(SetPlayMode(PlayBrownian))
	e.Apply(Simple(OpInitialize))

	want := DefaultPanel()
	want.Pattern = 6
	if e.panel != want {
		t.Errorf("panel after initialize %+v", e.panel)
	}
	if e.playMode != PlayForward || e.countMode != CountSteps || !e.updateEnabled {
		t.Error("modes not reset")
	}
}

func TestEngineRandomizeSlidesSkips(t *testing.T) {
	e, _ := newTestEngine()
	e.rng = rand.New(rand.NewSource(9))
	e.Apply(Simple(OpRandomizeSlidesSkips))

	ref := rand.New(rand.NewSource(9))
	for i, lane := range e.panel.Lanes {
		slide := ref.Float64() > 0.8
		skip := ref.Float64() > 0.85
		if lane.Slide != slide || lane.Skip != skip {
			t.Errorf("lane %d slide %v skip %v", i, lane.Slide, lane.Skip)
		}
	}
}

func TestEngineRandomizeRanges(t *testing.T) {
	e, _ := newTestEngine()
	for i := 0; i < 20; i++ {
		e.Apply(Simple(OpRandomizePitch))
		e.Apply(Simple(OpRandomizeGates))
		for _, lane := range e.panel.Lanes {
			if lane.Pitch < 0 || lane.Pitch > PitchMax {
				t.Fatalf("pitch %v", lane.Pitch)
			}
			if lane.Pulses < 1 || lane.Pulses > PulsesMax {
				t.Fatalf("pulses %d", lane.Pulses)
			}
			if lane.GateType < 0 || int(lane.GateType) >= NumGateTypes {
				t.Fatalf("gate %v", lane.GateType)
			}
		}
	}
}

func TestEngineModeToggles(t *testing.T) {
	e, _ := newTestEngine()
	if e.pitchMode || !e.fullQuantize {
		t.Fatal("unexpected defaults")
	}
	e.Apply(Simple(OpTogglePitchMode))
	e.Apply(Simple(OpToggleQuantizeMode))
	if !e.pitchMode || e.fullQuantize {
		t.Error("toggles not applied")
	}
	e.Apply(SetCountMode(CountMode(9)))
	if e.countMode != CountPulses {
		t.Errorf("count mode clamp %v", e.countMode)
	}
}

func TestEngineCommandsApplyBetweenTicks(t *testing.T) {
	e, _ := newTestEngine()
	e.Tick(&Inputs{})
	if err := e.Send(SelectPattern(2)); err != nil {
		t.Fatal(err)
	}
	if e.selected != 0 {
		t.Fatal("command applied before the tick")
	}
	e.Tick(&Inputs{})
	if e.selected != 2 {
		t.Errorf("selected %d after tick", e.selected)
	}
}

func TestEngineSendQueueFull(t *testing.T) {
	e := NewEngine(&fakeClock{rate: testRate}, Options{QueueDepth: 1})
	if err := e.Send(Simple(OpCopyPattern)); err != nil {
		t.Fatal(err)
	}
	if err := e.Send(Simple(OpCopyPattern)); !errors.Is(err, ErrQueueFull) {
		t.Errorf("err = %v, want ErrQueueFull", err)
	}
	if n := e.Drain(10); n != 1 {
		t.Errorf("drained %d", n)
	}
}

func TestEnginePublishSnapshot(t *testing.T) {
	e, _ := newTestEngine()
	e.Apply(SetLane(4, AttrAccent, 9))
	e.Tick(&Inputs{})

	var s Snapshot
	e.Snapshot(&s)
	if s.Panel.Lanes[4].Accent == 9 {
		t.Fatal("snapshot visible before publish")
	}
	if !e.Publish() {
		t.Fatal("publish failed with no readers")
	}
	e.Snapshot(&s)
	if s.Panel.Lanes[4].Accent != 9 || s.Patterns[0].Steps[12].Accent != 9 {
		t.Error("snapshot missing the edit")
	}

	e.mu.Lock()
	if e.Publish() {
		t.Error("publish should skip while a reader holds the lock")
	}
	e.mu.Unlock()
}
