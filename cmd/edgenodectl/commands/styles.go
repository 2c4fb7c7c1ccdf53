package commands

import "github.com/charmbracelet/lipgloss"

// theme and styles mirror the teacher's pkg/cli Theme/Styles split (a
// named color palette, styles derived from it) without that package's
// full frame-rendering machinery, which edgenodectl has no use for since
// it logs a scrolling event stream rather than redrawing a fixed-size
// screen.
var (
	accentColor = lipgloss.Color("#00ff9f")
	dimColor    = lipgloss.Color("#6e7681")
	errorColor  = lipgloss.Color("#ff5f5f")

	labelStyle = lipgloss.NewStyle().Bold(true).Foreground(accentColor)
	dimStyle   = lipgloss.NewStyle().Foreground(dimColor)
	errorStyle = lipgloss.NewStyle().Bold(true).Foreground(errorColor)
)

func styledLabel(label, value string) string {
	return labelStyle.Render(label+":") + " " + value
}
