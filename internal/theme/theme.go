package theme

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/deadliner/internal/model"
)

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue   = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen  = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed    = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorGray   = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite  = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorBorder = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// HeaderStyle is used for the list header and the detail title.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// DetailPanelStyle wraps the detail view.
var DetailPanelStyle = lipgloss.NewStyle().
	Padding(1, 2).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// LabelStyle is used for field names in the detail view.
var LabelStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Width(12)

// HelpStyle is used for hints and secondary text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// ErrorStyle is used for reload and persistence failures.
var ErrorStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorRed)

// UrgentBadgeStyle marks deadlines due within a day.
var UrgentBadgeStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorRed).
	Padding(0, 1)

// UrgencyStyle returns the style for a cached urgency tier.
func UrgencyStyle(c model.ColorStatus) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)

	switch c {
	case model.ColorRed:
		return base.Foreground(ColorRed)
	case model.ColorYellow:
		return base.Foreground(ColorYellow)
	case model.ColorGreen:
		return base.Foreground(ColorGreen)
	default:
		return base.Foreground(ColorGray)
	}
}

// UrgencyDot renders the tier as a coloured bullet.
func UrgencyDot(c model.ColorStatus) string {
	return UrgencyStyle(c).Render("●")
}
