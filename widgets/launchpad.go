package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"go-bordl/theme"
)

// PadGrid holds the colours of a 9x9 grid surface indexed [row][col]. Row 8 is
// the top button row and col 8 the scene column; [8][8] is never lit.
type PadGrid [9][9][3]uint8

// Set colours one pad, ignoring positions off the grid.
func (g *PadGrid) Set(row, col int, color [3]uint8) {
	if row < 0 || row > 8 || col < 0 || col > 8 {
		return
	}
	g[row][col] = color
}

// RenderPad renders a single colored pad
func RenderPad(color [3]uint8) string {
	if color == ([3]uint8{}) {
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#303030")).Render("□")
	}
	style := lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Hex(theme.RGB(color))))
	return style.Render("■")
}

// RenderPadGrid renders the grid with the top row first
func RenderPadGrid(grid *PadGrid) string {
	var lines []string
	for row := 8; row >= 0; row-- {
		var line strings.Builder
		for col := 0; col < 9; col++ {
			if col == 8 {
				line.WriteString(" ")
			}
			if row == 8 && col == 8 {
				line.WriteString(" ")
				continue
			}
			line.WriteString(RenderPad(grid[row][col]))
			line.WriteString(" ")
		}
		lines = append(lines, strings.TrimRight(line.String(), " "))
		if row == 8 {
			lines = append(lines, "")
		}
	}
	return strings.Join(lines, "\n")
}

// RenderLegendItem renders a single legend item: "■ Name - description"
func RenderLegendItem(color [3]uint8, name, desc string) string {
	return fmt.Sprintf("  %s %s - %s", RenderPad(color), name, desc)
}

// RenderKeyHelp formats key bindings in a friendly way
func RenderKeyHelp(sections []KeySection) string {
	var lines []string
	for _, sec := range sections {
		if sec.Title != "" {
			lines = append(lines, sec.Title)
		}
		for _, k := range sec.Keys {
			lines = append(lines, fmt.Sprintf("  %-12s %s", k.Key, k.Desc))
		}
	}
	return strings.Join(lines, "\n")
}

// KeySection groups related key bindings
type KeySection struct {
	Title string
	Keys  []KeyBinding
}

// KeyBinding is a single key and its description
type KeyBinding struct {
	Key  string
	Desc string
}
