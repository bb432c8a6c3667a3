package report

import "github.com/charmbracelet/lipgloss"

// Color palette
var (
	colorError   = lipgloss.Color("#EF4444") // Red
	colorWarning = lipgloss.Color("#F59E0B") // Yellow/Orange
	colorInfo    = lipgloss.Color("#00D4FF") // Cyan
	colorSuccess = lipgloss.Color("#10B981") // Green
	colorMuted   = lipgloss.Color("#6B7280") // Gray
	colorText    = lipgloss.Color("#E5E7EB") // Light gray
)

// Header and severity styles
var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorInfo)

	pathStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorText)

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorError)

	warningStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorWarning)

	infoStyle = lipgloss.NewStyle().
			Foreground(colorInfo)

	cleanStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorSuccess)

	mutedStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	fixStyle = lipgloss.NewStyle().
			Foreground(colorSuccess)

	ruleStyle = lipgloss.NewStyle().
			Foreground(colorMuted)
)

func severityStyle(s string) lipgloss.Style {
	switch s {
	case "error":
		return errorStyle
	case "warning":
		return warningStyle
	default:
		return infoStyle
	}
}
