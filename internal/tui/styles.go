package tui

import "github.com/charmbracelet/lipgloss"

var (
	ColorNavy  = lipgloss.Color("#1B2A49")
	ColorWhite = lipgloss.Color("#F5F5F5")
	ColorGray  = lipgloss.Color("245")
	ColorRed   = lipgloss.Color("196")
	ColorAmber = lipgloss.Color("214")
	ColorGreen = lipgloss.Color("42")
	ColorBlue  = lipgloss.Color("39")

	headerStyle = lipgloss.NewStyle().
			Background(ColorNavy).
			Foreground(ColorWhite).
			Bold(true).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorGray).
			Padding(0, 1)

	activeSectionStyle = sectionStyle.
				BorderForeground(ColorBlue)

	chartTitleStyle = lipgloss.NewStyle().
			Foreground(ColorWhite).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	errorStyle = lipgloss.NewStyle().
			Foreground(ColorRed).
			Bold(true)

	controlStyle = lipgloss.NewStyle().
			Background(ColorBlue).
			Foreground(ColorWhite).
			Bold(true).
			Padding(0, 3)

	confirmStyle = controlStyle.
			Background(ColorRed)
)

// stateStyle colors the sequencer state badge.
func stateStyle(state string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1).Foreground(ColorWhite)
	switch state {
	case "running":
		return base.Background(ColorGreen)
	case "stopping":
		return base.Background(ColorAmber)
	case "stopped":
		return base.Background(ColorRed)
	default:
		return base.Background(ColorGray)
	}
}
