package sequencer

import "math"

// Lane is one column of the edit surface. Lane i is written into steps i and i+8
// of the selected pattern.
type Lane struct {
	Pitch             float64
	Pulses            int
	GateType          GateType
	GateProbability   float64
	PitchRandomDepth  float64
	Accent            float64
	AccentRandomDepth float64
	Slide             bool
	Skip              bool
}

// LaneAttr names one editable attribute of a lane.
type LaneAttr int

const (
	AttrPitch LaneAttr = iota
	AttrPulses
	AttrGateType
	AttrGateProbability
	AttrPitchRandom
	AttrAccent
	AttrAccentRandom
	AttrSlide
	AttrSkip

	NumLaneAttrs = int(AttrSkip) + 1
)

var laneAttrNames = [NumLaneAttrs]string{"Pitch", "Pulses", "Gate", "Prob", "Pitch rnd", "Accent", "Acc rnd", "Slide", "Skip"}

func (a LaneAttr) String() string {
	if a < 0 || int(a) >= NumLaneAttrs {
		return "?"
	}
	return laneAttrNames[a]
}

// Lane parameter ranges.
const (
	PitchMax  = 10.001
	PulsesMax = 8
	AccentMax = 10.0
)

// DefaultLane returns a lane at its knob defaults.
func DefaultLane() Lane {
	return Lane{Pitch: 3, Pulses: 1, GateType: GateAllPulses, GateProbability: 1}
}

// Set writes attr, saturating v into the attribute's range. Booleans are true for v >= 0.5.
func (l *Lane) Set(attr LaneAttr, v float64) {
	switch attr {
	case AttrPitch:
		l.Pitch = clamp(v, 0, PitchMax)
	case AttrPulses:
		l.Pulses = clampInt(int(math.Round(v)), 1, PulsesMax)
	case AttrGateType:
		l.GateType = GateType(clampInt(int(math.Round(v)), 0, NumGateTypes-1))
	case AttrGateProbability:
		l.GateProbability = clamp(v, 0, 1)
	case AttrPitchRandom:
		l.PitchRandomDepth = clamp(v, 0, 1)
	case AttrAccent:
		l.Accent = clamp(v, 0, AccentMax)
	case AttrAccentRandom:
		l.AccentRandomDepth = clamp(v, 0, 1)
	case AttrSlide:
		l.Slide = v >= 0.5
	case AttrSkip:
		l.Skip = v >= 0.5
	}
}

// Get reads attr as a float, booleans as 0 or 1.
func (l *Lane) Get(attr LaneAttr) float64 {
	switch attr {
	case AttrPitch:
		return l.Pitch
	case AttrPulses:
		return float64(l.Pulses)
	case AttrGateType:
		return float64(l.GateType)
	case AttrGateProbability:
		return l.GateProbability
	case AttrPitchRandom:
		return l.PitchRandomDepth
	case AttrAccent:
		return l.Accent
	case AttrAccentRandom:
		return l.AccentRandomDepth
	case AttrSlide:
		return boolToFloat(l.Slide)
	case AttrSkip:
		return boolToFloat(l.Skip)
	}
	return 0
}

// laneFromStep is the inverse of Update for one slot.
func laneFromStep(s *Step) Lane {
	return Lane{
		Pitch:             s.Pitch,
		Pulses:            s.PulseCountRequested,
		GateType:          s.GateType,
		GateProbability:   s.GateProbability,
		PitchRandomDepth:  s.PitchRandomDepth,
		Accent:            s.Accent,
		AccentRandomDepth: s.AccentRandomDepth,
		Slide:             s.Slide,
		Skip:              s.SkipRequested,
	}
}

// Knob names a global panel control.
type Knob int

const (
	KnobTempo Knob = iota
	KnobSteps
	KnobRoot
	KnobScale
	KnobGateTime
	KnobSlideTime
	KnobSensitivity
	KnobPattern

	NumKnobs = int(KnobPattern) + 1
)

var knobNames = [NumKnobs]string{"Tempo", "Steps", "Root", "Scale", "Gate time", "Slide time", "Sensitivity", "Pattern"}

func (k Knob) String() string {
	if k < 0 || int(k) >= NumKnobs {
		return "?"
	}
	return knobNames[k]
}

// Knob ranges.
const (
	TempoMin       = -2.0
	TempoMax       = 6.0
	TimeMin        = 0.1
	TimeMax        = 1.0
	SensitivityMin = 0.1
	SensitivityMax = 1.0
)

// Panel is the live parameter surface: global knobs plus the 8 edit lanes.
type Panel struct {
	Tempo       float64 // clock rate exponent, 2^Tempo steps per second
	Steps       int
	RootNote    int
	Scale       Scale
	GateTime    float64
	SlideTime   float64
	Sensitivity float64
	Pattern     int // 1-based selector

	Lanes [NumLanes]Lane
}

// DefaultPanel returns every control at its default.
func DefaultPanel() Panel {
	p := Panel{
		Tempo:       2,
		Steps:       8,
		Scale:       ScaleAeolian,
		GateTime:    0.5,
		SlideTime:   0.2,
		Sensitivity: 1,
		Pattern:     1,
	}
	for i := range p.Lanes {
		p.Lanes[i] = DefaultLane()
	}
	return p
}

// SetKnob writes a global control, saturating v into its range.
func (p *Panel) SetKnob(k Knob, v float64) {
	switch k {
	case KnobTempo:
		p.Tempo = clamp(v, TempoMin, TempoMax)
	case KnobSteps:
		p.Steps = clampInt(int(math.Round(v)), 1, NumSteps)
	case KnobRoot:
		p.RootNote = clampInt(int(math.Round(v)), 0, NumNotes-1)
	case KnobScale:
		p.Scale = Scale(clampInt(int(math.Round(v)), 0, NumScales-1))
	case KnobGateTime:
		p.GateTime = clamp(v, TimeMin, TimeMax)
	case KnobSlideTime:
		p.SlideTime = clamp(v, TimeMin, TimeMax)
	case KnobSensitivity:
		p.Sensitivity = clamp(v, SensitivityMin, SensitivityMax)
	case KnobPattern:
		p.Pattern = clampInt(int(math.Round(v)), 1, NumPatterns)
	}
}

// Knob reads a global control as a float.
func (p *Panel) Knob(k Knob) float64 {
	switch k {
	case KnobTempo:
		return p.Tempo
	case KnobSteps:
		return float64(p.Steps)
	case KnobRoot:
		return float64(p.RootNote)
	case KnobScale:
		return float64(p.Scale)
	case KnobGateTime:
		return p.GateTime
	case KnobSlideTime:
		return p.SlideTime
	case KnobSensitivity:
		return p.Sensitivity
	case KnobPattern:
		return float64(p.Pattern)
	}
	return 0
}

// loadPattern copies a stored pattern back onto the knobs and lanes.
func (p *Panel) loadPattern(src *Pattern) {
	p.Steps = clampInt(src.NumberOfStepsRequested, 1, NumSteps)
	p.RootNote = clampInt(src.RootNote, 0, NumNotes-1)
	p.Scale = src.Scale.Clamp()
	p.GateTime = src.GateTime
	p.SlideTime = src.SlideTime
	p.Sensitivity = src.Sensitivity
	for i := range p.Lanes {
		p.Lanes[i] = laneFromStep(&src.Steps[i])
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
