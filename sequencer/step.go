package sequencer

// GateType selects which pulses of a step open the gate.
type GateType int

const (
	GateNone GateType = iota
	GateFirstPulse
	GateAllPulses
	GateLastPulse
	GateExternal1
	GateExternal2

	NumGateTypes = int(GateExternal2) + 1
)

var gateTypeNames = [NumGateTypes]string{"Off", "First", "All", "Last", "Ext 1", "Ext 2"}

func (g GateType) Clamp() GateType {
	return GateType(clampInt(int(g), 0, NumGateTypes-1))
}

func (g GateType) String() string {
	return gateTypeNames[g.Clamp()]
}

// Step is one of the 16 slots of a pattern. Skip and PulseCount are derived by
// Pattern.Update; the Requested fields keep what the lane asked for.
type Step struct {
	Lane    int
	Ordinal int

	Skip          bool
	SkipRequested bool
	Slide         bool

	PulseCount          int
	PulseCountRequested int

	Pitch             float64
	GateType          GateType
	GateProbability   float64
	PitchRandomDepth  float64
	Accent            float64
	AccentRandomDepth float64
}

// DefaultStep returns the power-on contents of slot ordinal.
func DefaultStep(ordinal int) Step {
	return Step{
		Lane:                ordinal % NumLanes,
		Ordinal:             ordinal,
		PulseCount:          1,
		PulseCountRequested: 1,
		Pitch:               3.0,
		GateType:            GateAllPulses,
		GateProbability:     1,
	}
}
