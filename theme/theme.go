package theme

import (
	"github.com/charmbracelet/lipgloss"
)

type Theme struct {
	Palette *Palette
	Symbols Symbols
}

type Symbols struct {
	StepOff     rune // · step outside the played length
	StepOn      rune // ● playable step
	StepSkipped rune // - skipped step
	Playhead    rune // ▶ step under the cursor
	Slide       rune // ~ slide on
	Gate        rune // ■ gate output high
	GateOff     rune // □ gate output low
	MeterFull   rune // █
	MeterEmpty  rune // ░
}

func New(palette *Palette) *Theme {
	if palette == nil {
		palette = Default()
	}
	return &Theme{
		Palette: palette,
		Symbols: Symbols{
			StepOff:     '·',
			StepOn:      '●',
			StepSkipped: '-',
			Playhead:    '▶',
			Slide:       '~',
			Gate:        '■',
			GateOff:     '□',
			MeterFull:   '█',
			MeterEmpty:  '░',
		},
	}
}

// Color roles mapped to palette positions (0-1)
const (
	RoleBG      = 0.0
	RoleSurface = 0.1
	RoleMuted   = 0.2
	RoleFG      = 0.4
	RoleAccent  = 0.5
	RoleCursor  = 0.6
	RoleActive  = 0.7
	RoleWarning = 0.8
	RoleSuccess = 1.0
)

func (t *Theme) BG() lipgloss.Color      { return t.Color(RoleBG) }
func (t *Theme) FG() lipgloss.Color      { return t.Color(RoleFG) }
func (t *Theme) Accent() lipgloss.Color  { return t.Color(RoleAccent) }
func (t *Theme) Muted() lipgloss.Color   { return t.Color(RoleMuted) }
func (t *Theme) Active() lipgloss.Color  { return t.Color(RoleActive) }
func (t *Theme) Cursor() lipgloss.Color  { return t.Color(RoleCursor) }
func (t *Theme) Warning() lipgloss.Color { return t.Color(RoleWarning) }
func (t *Theme) Success() lipgloss.Color { return t.Color(RoleSuccess) }

// Color returns lipgloss color for any normalized value 0-1
func (t *Theme) Color(norm float64) lipgloss.Color {
	return lipgloss.Color(Hex(t.Palette.Lookup(norm)))
}

// RGB returns raw RGB for any normalized value (for the Launchpad)
func (t *Theme) RGB(norm float64) RGB {
	return t.Palette.Lookup(norm)
}

// Hex formats c as #rrggbb.
func Hex(c RGB) string {
	return c.color().Hex()
}
