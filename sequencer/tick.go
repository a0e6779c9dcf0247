package sequencer

import "math"

const (
	lightLambda = 0.075
	gateLevel   = 10.0
)

// Tick advances the engine by one sample frame. It applies queued commands,
// runs the clock, moves the active pattern's cursor when a step is due and
// returns the gate, pitch and accent voltages. It does not allocate or block.
func (e *Engine) Tick(in *Inputs) Outputs {
	e.Drain(maxCommandsPerTick)

	sr := e.clock.SampleRate()
	if sr <= 0 {
		sr = DefaultSampleRate
	}

	if e.runTrig.process(in.Buttons.Run) {
		e.running = !e.running
	}
	e.lights.Running = boolToFloat(e.running)

	advance := e.runClock(in, sr)

	if e.resetTrig.process(in.Buttons.Reset + in.Reset.Voltage()) {
		e.phase = 0
		e.restart = true
		advance = true
		e.lights.Reset = 1
	}

	e.active = activePattern(in.Pattern, e.panel.Pattern)

	if e.updateEnabled || !e.initialized {
		e.applyPanel(in)
	}

	if advance {
		e.advance(in)
	}

	e.decayLights(sr)

	e.out = e.resolve(in)
	return e.out
}

// runClock moves the phase and reports whether a new pulse is due.
func (e *Engine) runClock(in *Inputs, sr float64) bool {
	if !e.running {
		return false
	}
	rate := math.Exp2(e.panel.Tempo+in.Clock.Voltage()) / sr
	if !in.ExtClock.Connected {
		e.phase += rate
		if e.phase >= 1 {
			e.phase--
			return true
		}
		return false
	}

	now := e.clock.Now()
	if e.haveLast && e.havePrev && e.lastTrig > e.prevTrig {
		e.phase = float64(now-e.lastTrig) / float64(e.lastTrig-e.prevTrig)
	} else {
		e.phase += rate
	}
	if e.clockTrig.process(in.ExtClock.Value) {
		e.prevTrig, e.havePrev = e.lastTrig, e.haveLast
		e.lastTrig, e.haveLast = now, true
		e.phase = 0
		return true
	}
	return false
}

// activePattern maps the pattern CV (0..10 V) or the selector knob to an index.
func activePattern(cv Port, knob int) int {
	v := float64(knob)
	if cv.Connected {
		v = 1 + cv.Value*(16.1-1)/10
	}
	return int(clamp(v-1, 0, NumPatterns-1))
}

// applyPanel handles the lane and mode buttons and writes the panel into the
// selected pattern.
func (e *Engine) applyPanel(in *Inputs) {
	for i := range e.panel.Lanes {
		lane := &e.panel.Lanes[i]
		if e.slideTrigs[i].process(in.Buttons.Slide[i]) {
			lane.Slide = !lane.Slide
		}
		if e.skipTrigs[i].process(in.Buttons.Skip[i]) {
			lane.Skip = !lane.Skip
		}
	}
	if e.playModeTrig.process(in.Buttons.PlayMode) {
		e.playMode = PlayMode((int(e.playMode) + 1) % NumPlayModes)
	}
	if e.countModeTrig.process(in.Buttons.CountMode) {
		e.countMode = CountMode((int(e.countMode) + 1) % NumCountModes)
	}
	e.numSteps = clampInt(int(math.Round(float64(e.panel.Steps)+in.Steps.Voltage())), 1, NumSteps)
	e.updateSelected()
	if !e.initialized {
		e.initialized = true
		e.updateEnabled = true
	}
}

func (e *Engine) updateSelected() {
	e.patterns[e.selected].Update(PatternSettings{
		PlayMode:               e.playMode,
		CountMode:              e.countMode,
		NumberOfSteps:          e.numSteps,
		NumberOfStepsRequested: e.panel.Steps,
		RootNote:               e.panel.RootNote,
		Scale:                  e.panel.Scale,
		GateTime:               e.panel.GateTime,
		SlideTime:              e.panel.SlideTime,
		Sensitivity:            e.panel.Sensitivity,
	}, &e.panel.Lanes)
}

// advance moves the active pattern one pulse and re-rolls the per-step
// randomness when the lane changes.
func (e *Engine) advance(in *Inputs) {
	p := &e.patterns[e.active]
	e.previousPitch = e.quantize(p.Current().Pitch, p, in)
	e.prevIndex = e.index
	e.index, e.pulse = p.Advance(e.restart, e.rng)
	e.restart = false
	e.lights.Steps[e.index%NumLanes] = 1

	if e.index == e.prevIndex {
		return
	}
	s := p.Current()
	e.gateOutcome = e.rng.Float64() <= s.GateProbability
	e.pitchJitter = jitter(e.rng, s.PitchRandomDepth)
	e.accent = clamp(s.Accent+jitter(e.rng, s.AccentRandomDepth), 0, AccentMax)
}

// jitter returns a uniform value in [-5*depth, 5*depth).
func jitter(rng Rand, depth float64) float64 {
	return -5*depth + rng.Float64()*10*depth
}

func (e *Engine) decayLights(sr float64) {
	for i := range e.lights.Steps {
		step := e.lights.Steps[i] - e.lights.Steps[i]/lightLambda/sr
		e.lights.Steps[i] = step
		e.lights.Slides[i] = step
		if e.panel.Lanes[i].Slide {
			e.lights.Slides[i] = 1 - step
		}
		e.lights.Skips[i] = step
		if e.panel.Lanes[i].Skip {
			e.lights.Skips[i] = 1 - step
		}
	}
	e.lights.Reset -= e.lights.Reset / lightLambda / sr
}

// quantize resolves root and scale from the pattern plus CV.
func (e *Engine) quantize(v float64, p *Pattern, in *Inputs) float64 {
	root := int(clamp(float64(p.RootNote)+in.RootNote.Voltage(), 0, NumNotes-1))
	scale := Scale(clamp(float64(p.Scale)+in.Scale.Voltage(), 0, float64(NumScales-1)))
	return ClosestVoltageInScale(v, root, scale, e.fullQuantize)
}

// resolve computes the outputs for the current step and phase.
func (e *Engine) resolve(in *Inputs) Outputs {
	p := &e.patterns[e.active]
	s := &p.Steps[p.Cursor.Step]

	gateOn := e.running && !s.Skip
	gateValue := 0.0
	if gateOn {
		window := clamp(p.GateTime-0.02+in.GateTime.Voltage()/10, 0, 0.99)
		switch s.GateType {
		case GateFirstPulse:
			gateOn = e.pulse == 0 && e.phase < window
			gateValue = gateLevel
		case GateAllPulses:
			gateOn = e.phase < window
			gateValue = gateLevel
		case GateLastPulse:
			// Silent for the whole step under normal traversal, since pulse
			// stops at PulseCount-1. Do not hold it high instead.
			gateOn = e.pulse == s.PulseCount
			gateValue = gateLevel
		case GateExternal1:
			gateValue = in.ExtGate1.Voltage()
		case GateExternal2:
			gateValue = in.ExtGate2.Voltage()
		default:
			gateOn = false
		}
	}

	pitch := e.quantize(clamp(s.Pitch+e.pitchJitter, 0, 10)*p.Sensitivity, p, in)
	if s.Slide && e.pulse == 0 {
		coeff := clamp(p.SlideTime-0.01+in.SlideTime.Voltage()/10, -0.1, 0.99)
		slid := pitch - (1-math.Pow(e.phase, coeff))*(pitch-e.previousPitch)
		if math.IsNaN(slid) || math.IsInf(slid, 0) {
			slid = e.previousPitch
		}
		pitch = slid
	}
	e.pitch = pitch

	var out Outputs
	if gateOn && e.gateOutcome {
		out.Gate = gateValue
		out.Accent = e.accent
	}
	if e.pitchMode || gateOn {
		out.Pitch = pitch
	}
	return out
}
