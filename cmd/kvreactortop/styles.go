package main

import "github.com/charmbracelet/lipgloss"

const (
	colorTitle   = "#4fc1ff"
	colorGood    = "#89d185"
	colorWarn    = "#dcdcaa"
	colorBad     = "#f48771"
	colorDim     = "#808080"
	colorBorder  = "#3c3c3c"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(colorTitle))

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(colorBorder)).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(colorDim))
	goodStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color(colorGood))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color(colorWarn))
	badStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color(colorBad))
)

// occupancyStyle picks a color by how full ratio (0..1) is, matching
// the teacher's state-to-color mapping pattern in formatState.
func occupancyStyle(ratio float64) lipgloss.Style {
	switch {
	case ratio >= 0.9:
		return badStyle
	case ratio >= 0.6:
		return warnStyle
	default:
		return goodStyle
	}
}
