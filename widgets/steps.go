package widgets

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"go-bordl/sequencer"
	"go-bordl/theme"
)

// StepCell picks the glyph of one step. Steps cut off by the length are
// drawn as off even if the lane also asks to skip them.
func StepCell(s *sequencer.Step, atCursor bool, sym theme.Symbols) rune {
	switch {
	case atCursor:
		return sym.Playhead
	case s.SkipRequested && s.Skip:
		return sym.StepSkipped
	case s.Skip:
		return sym.StepOff
	}
	return sym.StepOn
}

// RenderStepRow draws the 16 steps of p in two bars of eight. The cursor is
// only marked when showCursor is set.
func RenderStepRow(p *sequencer.Pattern, showCursor bool, th *theme.Theme) string {
	on := lipgloss.NewStyle().Foreground(th.FG())
	off := lipgloss.NewStyle().Foreground(th.Muted())
	skipped := lipgloss.NewStyle().Foreground(th.Warning())
	head := lipgloss.NewStyle().Foreground(th.Cursor()).Bold(true)

	var b strings.Builder
	for i := range p.Steps {
		if i == sequencer.NumLanes {
			b.WriteString("  ")
		} else if i > 0 {
			b.WriteString(" ")
		}
		s := &p.Steps[i]
		atCursor := showCursor && p.Cursor.Step == i
		glyph := string(StepCell(s, atCursor, th.Symbols))
		switch {
		case atCursor:
			b.WriteString(head.Render(glyph))
		case s.SkipRequested && s.Skip:
			b.WriteString(skipped.Render(glyph))
		case s.Skip:
			b.WriteString(off.Render(glyph))
		default:
			b.WriteString(on.Render(glyph))
		}
	}
	return b.String()
}

// Meter draws v as a bar of width cells, saturating outside 0..full.
func Meter(v, full float64, width int, sym theme.Symbols) string {
	if width <= 0 {
		return ""
	}
	n := 0
	if full > 0 && !math.IsNaN(v) {
		n = int(math.Round(v / full * float64(width)))
	}
	n = max(0, min(width, n))
	return strings.Repeat(string(sym.MeterFull), n) + strings.Repeat(string(sym.MeterEmpty), width-n)
}

// LaneCell formats one lane attribute for the edit table.
func LaneCell(l *sequencer.Lane, attr sequencer.LaneAttr, sym theme.Symbols) string {
	switch attr {
	case sequencer.AttrPitch:
		return fmt.Sprintf("%.2f", l.Pitch)
	case sequencer.AttrPulses:
		return fmt.Sprintf("%d", l.Pulses)
	case sequencer.AttrGateType:
		return l.GateType.String()
	case sequencer.AttrGateProbability:
		return fmt.Sprintf("%.0f%%", l.GateProbability*100)
	case sequencer.AttrPitchRandom:
		return fmt.Sprintf("%.0f%%", l.PitchRandomDepth*100)
	case sequencer.AttrAccent:
		return fmt.Sprintf("%.1f", l.Accent)
	case sequencer.AttrAccentRandom:
		return fmt.Sprintf("%.0f%%", l.AccentRandomDepth*100)
	case sequencer.AttrSlide:
		if l.Slide {
			return string(sym.Slide)
		}
		return string(sym.StepOff)
	case sequencer.AttrSkip:
		if l.Skip {
			return string(sym.StepSkipped)
		}
		return string(sym.StepOff)
	}
	return "?"
}

const laneCellWidth = 7

// RenderLaneTable draws every lane attribute as a row, one column per lane.
// The cell at (lane, attr) is highlighted.
func RenderLaneTable(p *sequencer.Panel, lane int, attr sequencer.LaneAttr, th *theme.Theme) string {
	label := lipgloss.NewStyle().Foreground(th.Muted()).Width(10)
	cell := lipgloss.NewStyle().Foreground(th.FG()).Width(laneCellWidth)
	picked := cell.Foreground(th.BG()).Background(th.Accent())
	rowPicked := label.Foreground(th.Accent())

	var lines []string
	header := label.Render("")
	for i := range p.Lanes {
		header += cell.Foreground(th.Muted()).Render(fmt.Sprintf("%d", i+1))
	}
	lines = append(lines, header)

	for a := sequencer.LaneAttr(0); int(a) < sequencer.NumLaneAttrs; a++ {
		var line strings.Builder
		if a == attr {
			line.WriteString(rowPicked.Render(a.String()))
		} else {
			line.WriteString(label.Render(a.String()))
		}
		for i := range p.Lanes {
			text := LaneCell(&p.Lanes[i], a, th.Symbols)
			if a == attr && i == lane {
				line.WriteString(picked.Render(text))
			} else {
				line.WriteString(cell.Render(text))
			}
		}
		lines = append(lines, line.String())
	}
	return strings.Join(lines, "\n")
}
