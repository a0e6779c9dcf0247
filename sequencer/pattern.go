package sequencer

const (
	NumPatterns = 16
	NumSteps    = 16
	NumLanes    = 8
)

// PlayMode selects how the cursor moves between steps.
type PlayMode int

const (
	PlayForward PlayMode = iota
	PlayBackward
	PlayPingPong
	PlayRandom
	PlayBrownian

	NumPlayModes = int(PlayBrownian) + 1
)

var playModeNames = [NumPlayModes]string{"Forward", "Backward", "PingPong", "Random", "Brownian"}
var playModeGlyphs = [NumPlayModes]string{"►", "◄", "►◄", "►*", "►?"}

func (m PlayMode) Clamp() PlayMode {
	return PlayMode(clampInt(int(m), 0, NumPlayModes-1))
}

func (m PlayMode) String() string { return playModeNames[m.Clamp()] }

// Glyph is the compact panel symbol for the mode.
func (m PlayMode) Glyph() string { return playModeGlyphs[m.Clamp()] }

// CountMode decides whether the step count limits steps or pulses.
type CountMode int

const (
	CountSteps CountMode = iota
	CountPulses

	NumCountModes = int(CountPulses) + 1
)

func (m CountMode) Clamp() CountMode {
	return CountMode(clampInt(int(m), 0, NumCountModes-1))
}

func (m CountMode) String() string {
	if m.Clamp() == CountPulses {
		return "pulses"
	}
	return "steps"
}

// Cursor is the playback position inside a pattern.
type Cursor struct {
	Step    int
	Pulse   int
	Forward bool
}

// PatternSettings are the pattern-wide values written by Update.
type PatternSettings struct {
	PlayMode               PlayMode
	CountMode              CountMode
	NumberOfSteps          int
	NumberOfStepsRequested int
	RootNote               int
	Scale                  Scale
	GateTime               float64
	SlideTime              float64
	Sensitivity            float64
}

// DefaultPatternSettings matches an untouched pattern.
func DefaultPatternSettings() PatternSettings {
	return PatternSettings{
		NumberOfSteps:          8,
		NumberOfStepsRequested: 8,
		Scale:                  ScaleAeolian,
		GateTime:               0.5,
		SlideTime:              0.2,
		Sensitivity:            1,
	}
}

// Pattern owns 16 steps and the cursor walking them.
type Pattern struct {
	PatternSettings
	Steps  [NumSteps]Step
	Cursor Cursor
}

// NewPattern returns a pattern built from default settings and lanes, so
// slots past NumberOfSteps are already skipped.
func NewPattern() Pattern {
	var lanes [NumLanes]Lane
	for i := range lanes {
		lanes[i] = DefaultLane()
	}
	var p Pattern
	p.Update(DefaultPatternSettings(), &lanes)
	p.Cursor.Forward = true
	return p
}

// Update rebuilds all 16 steps from the edit lanes; lane i feeds steps i and
// i+8. In CountPulses mode steps stay eligible while the running pulse total
// is below NumberOfSteps and the last eligible step is cut down so the total
// never exceeds it.
func (p *Pattern) Update(settings PatternSettings, lanes *[NumLanes]Lane) {
	p.PatternSettings = settings
	n := settings.NumberOfSteps
	pCount := 0
	for i := range p.Steps {
		lane := &lanes[i%NumLanes]
		s := &p.Steps[i]
		s.Lane = i % NumLanes
		s.Ordinal = i

		var eligible bool
		if settings.CountMode == CountPulses {
			eligible = pCount < n
		} else {
			eligible = i < n
		}
		s.Skip = !eligible || lane.Skip
		s.SkipRequested = lane.Skip
		s.Slide = lane.Slide

		if settings.CountMode == CountPulses && pCount+lane.Pulses >= n {
			s.PulseCount = max(n-pCount, 0)
		} else {
			s.PulseCount = lane.Pulses
		}
		s.PulseCountRequested = lane.Pulses
		pCount += s.PulseCount

		s.Pitch = lane.Pitch
		s.GateType = lane.GateType
		s.GateProbability = lane.GateProbability
		s.PitchRandomDepth = lane.PitchRandomDepth
		s.Accent = lane.Accent
		s.AccentRandomDepth = lane.AccentRandomDepth
	}
}

// advancers holds one next-step rule per play mode.
var advancers = [NumPlayModes]func(p *Pattern, rng Rand) int{
	PlayForward:  func(p *Pattern, _ Rand) int { return p.NextForward(p.Cursor.Step) },
	PlayBackward: func(p *Pattern, _ Rand) int { return p.NextBackward(p.Cursor.Step) },
	PlayPingPong: (*Pattern).nextPingPong,
	PlayRandom:   (*Pattern).nextRandom,
	PlayBrownian: (*Pattern).nextBrownian,
}

// Advance moves the cursor by one clock pulse and returns the lane of the
// current step and the pulse within it. With reset the cursor goes to the
// first eligible step (the last one when playing backward).
func (p *Pattern) Advance(reset bool, rng Rand) (lane, pulse int) {
	c := &p.Cursor
	switch {
	case reset:
		if p.PlayMode.Clamp() == PlayBackward {
			c.Step = p.LastStep()
		} else {
			c.Step = p.FirstStep()
		}
		c.Pulse = 0
	case c.Pulse < p.Steps[c.Step].PulseCount-1:
		c.Pulse++
	default:
		c.Step = advancers[p.PlayMode.Clamp()](p, rng)
		c.Pulse = 0
	}
	return p.Steps[c.Step].Lane, c.Pulse
}

func (p *Pattern) nextPingPong(_ Rand) int {
	c := &p.Cursor
	if c.Step == p.LastStep() {
		c.Forward = false
	}
	if c.Step == p.FirstStep() {
		c.Forward = true
	}
	if c.Forward {
		return p.NextForward(c.Step)
	}
	return p.NextBackward(c.Step)
}

func (p *Pattern) nextRandom(rng Rand) int {
	var eligible [NumSteps]int
	n := 0
	for i := range p.Steps {
		if !p.Steps[i].Skip {
			eligible[n] = i
			n++
		}
	}
	if n == 0 {
		return p.Cursor.Step
	}
	return eligible[rng.Intn(n)]
}

func (p *Pattern) nextBrownian(rng Rand) int {
	next := p.NextForward(p.Cursor.Step)
	prev := p.NextBackward(p.Cursor.Step)
	if rng.Intn(2) == 0 {
		return prev
	}
	return next
}

// Current returns the step under the cursor.
func (p *Pattern) Current() Step {
	return p.Steps[p.Cursor.Step]
}

// FirstStep returns the lowest eligible ordinal, or 0 when every step is skipped.
func (p *Pattern) FirstStep() int {
	for i := 0; i < NumSteps; i++ {
		if !p.Steps[i].Skip {
			return i
		}
	}
	return 0
}

// LastStep returns the highest eligible ordinal, or 15 when every step is skipped.
func (p *Pattern) LastStep() int {
	for i := NumSteps - 1; i >= 0; i-- {
		if !p.Steps[i].Skip {
			return i
		}
	}
	return NumSteps - 1
}

// NextForward scans circularly after pos. It returns pos when nothing else is eligible.
func (p *Pattern) NextForward(pos int) int {
	for i := pos + 1; i < pos+NumSteps; i++ {
		if !p.Steps[i%NumSteps].Skip {
			return i % NumSteps
		}
	}
	return pos
}

// NextBackward scans circularly before pos. It returns pos when nothing else is eligible.
func (p *Pattern) NextBackward(pos int) int {
	for i := pos - 1; i > pos-NumSteps; i-- {
		j := (i + NumSteps) % NumSteps
		if !p.Steps[j].Skip {
			return j
		}
	}
	return pos
}

// EligibleCount returns how many steps traversal can reach.
func (p *Pattern) EligibleCount() int {
	n := 0
	for i := range p.Steps {
		if !p.Steps[i].Skip {
			n++
		}
	}
	return n
}

// TotalPulses sums the effective pulse counts of the eligible steps.
func (p *Pattern) TotalPulses() int {
	n := 0
	for i := range p.Steps {
		if !p.Steps[i].Skip {
			n += p.Steps[i].PulseCount
		}
	}
	return n
}
