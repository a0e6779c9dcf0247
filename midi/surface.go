package midi

import (
	"go-bordl/sequencer"
)

// Grid layout of the Launchpad surface. Columns 0-7 are the eight lanes.
// Rows 4..0 pick the gate type, First at the top down to Ext 2.
const (
	rowSteps   = 7 // playhead lights
	rowSlide   = 6
	rowSkip    = 5
	rowGateTop = 4
	rowPattern = 8 // top CC row: patterns of the current bank
	colSide    = 8 // scene buttons
)

// side column, top to bottom
const (
	sideRun = 7 - iota
	sideReset
	sidePlayMode
	sideCountMode
	sideRandomPitch
	sideRandomGates
	sideRandomSlidesSkips
	sideBank
)

// SurfaceColors are the base colours of the pad roles. Lights scale them.
type SurfaceColors struct {
	Step    [3]uint8
	Slide   [3]uint8
	Skip    [3]uint8
	Gate    [3]uint8
	Button  [3]uint8
	Pattern [3]uint8
	Active  [3]uint8
}

// DefaultSurfaceColors picks colours that map cleanly onto the Launchpad palette.
func DefaultSurfaceColors() SurfaceColors {
	return SurfaceColors{
		Step:    [3]uint8{255, 255, 255},
		Slide:   [3]uint8{0, 200, 200},
		Skip:    [3]uint8{255, 0, 0},
		Gate:    [3]uint8{255, 100, 0},
		Button:  [3]uint8{40, 60, 120},
		Pattern: [3]uint8{0, 100, 0},
		Active:  [3]uint8{0, 255, 0},
	}
}

// PadAction is what a pad press asks of the engine: a button press, an edit
// command, or nothing.
type PadAction struct {
	Press   bool
	Button  sequencer.Button
	Edit    bool
	Command sequencer.Command
}

// Surface lays the sequencer out on an 8x8 grid controller.
type Surface struct {
	Colors SurfaceColors
}

func NewSurface(colors SurfaceColors) *Surface {
	return &Surface{Colors: colors}
}

// gateRows maps rows 4..0 to gate types.
var gateRows = [...]sequencer.GateType{
	sequencer.GateFirstPulse,
	sequencer.GateAllPulses,
	sequencer.GateLastPulse,
	sequencer.GateExternal1,
	sequencer.GateExternal2,
}

func gateRow(g sequencer.GateType) int {
	for i, t := range gateRows {
		if t == g {
			return rowGateTop - i
		}
	}
	return -1
}

// Render returns the full LED frame for snap.
func (s *Surface) Render(snap *sequencer.Snapshot) []LEDUpdate {
	c := s.Colors
	leds := make([]LEDUpdate, 0, 9*9)
	set := func(row, col int, rgb [3]uint8, level float64) {
		leds = append(leds, LEDUpdate{Row: row, Col: col, Color: dim(rgb, level)})
	}

	for lane := 0; lane < sequencer.NumLanes; lane++ {
		l := snap.Panel.Lanes[lane]
		set(rowSteps, lane, c.Step, snap.Lights.Steps[lane])
		set(rowSlide, lane, c.Slide, boolLevel(l.Slide))
		set(rowSkip, lane, c.Skip, boolLevel(l.Skip))
		gr := gateRow(l.GateType)
		for row := rowGateTop; row >= 0; row-- {
			set(row, lane, c.Gate, boolLevel(row == gr))
		}
	}

	bank := snap.Selected / 8 * 8
	for col := 0; col < 8; col++ {
		p := bank + col
		switch {
		case p == snap.Selected:
			set(rowPattern, col, c.Active, 1)
		case p == snap.CopySource:
			leds = append(leds, LEDUpdate{Row: rowPattern, Col: col, Color: c.Pattern, Channel: ChannelPulse})
		case p == snap.Active:
			set(rowPattern, col, c.Pattern, 1)
		default:
			set(rowPattern, col, c.Pattern, 0.3)
		}
	}

	set(sideRun, colSide, c.Active, boolLevel(snap.Running))
	set(sideReset, colSide, c.Button, 0.3+0.7*snap.Lights.Reset)
	set(sidePlayMode, colSide, c.Button, 0.3+0.7*float64(snap.PlayMode)/float64(sequencer.NumPlayModes-1))
	set(sideCountMode, colSide, c.Button, 0.3+0.7*float64(snap.CountMode))
	for _, row := range []int{sideRandomPitch, sideRandomGates, sideRandomSlidesSkips} {
		set(row, colSide, c.Gate, 0.5)
	}
	set(sideBank, colSide, c.Pattern, 0.3+0.7*float64(bank/8))
	return leds
}

// Press maps a pad press to an action, given the current state.
func (s *Surface) Press(ev PadEvent, snap *sequencer.Snapshot) (PadAction, bool) {
	switch {
	case ev.Row == rowPattern && ev.Col < 8:
		target := snap.Selected/8*8 + ev.Col
		return edit(sequencer.SelectPattern(target)), true
	case ev.Col == colSide:
		return sideAction(ev.Row, snap)
	case ev.Col < 0 || ev.Col >= sequencer.NumLanes:
		return PadAction{}, false
	case ev.Row == rowSlide:
		return press(sequencer.SlideButton(ev.Col)), true
	case ev.Row == rowSkip:
		return press(sequencer.SkipButton(ev.Col)), true
	case ev.Row >= 0 && ev.Row <= rowGateTop:
		g := gateRows[rowGateTop-ev.Row]
		if snap.Panel.Lanes[ev.Col].GateType == g {
			g = sequencer.GateNone
		}
		return edit(sequencer.SetLane(ev.Col, sequencer.AttrGateType, float64(g))), true
	}
	return PadAction{}, false
}

func sideAction(row int, snap *sequencer.Snapshot) (PadAction, bool) {
	switch row {
	case sideRun:
		return press(sequencer.ButtonRun), true
	case sideReset:
		return press(sequencer.ButtonReset), true
	case sidePlayMode:
		return press(sequencer.ButtonPlayMode), true
	case sideCountMode:
		return press(sequencer.ButtonCountMode), true
	case sideRandomPitch:
		return edit(sequencer.Simple(sequencer.OpRandomizePitch)), true
	case sideRandomGates:
		return edit(sequencer.Simple(sequencer.OpRandomizeGates)), true
	case sideRandomSlidesSkips:
		return edit(sequencer.Simple(sequencer.OpRandomizeSlidesSkips)), true
	case sideBank:
		return edit(sequencer.SelectPattern((snap.Selected + 8) % sequencer.NumPatterns)), true
	}
	return PadAction{}, false
}

func press(b sequencer.Button) PadAction {
	return PadAction{Press: true, Button: b}
}

func edit(cmd sequencer.Command) PadAction {
	return PadAction{Edit: true, Command: cmd}
}

func boolLevel(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// dim scales rgb by level in 0..1.
func dim(rgb [3]uint8, level float64) [3]uint8 {
	level = max(0, min(1, level))
	return [3]uint8{
		uint8(float64(rgb[0]) * level),
		uint8(float64(rgb[1]) * level),
		uint8(float64(rgb[2]) * level),
	}
}
