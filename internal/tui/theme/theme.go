// Package theme provides the Lip Gloss color palette and reusable styles
// for the flipsim TUI. It is a leaf package with no internal imports
// to avoid import cycles.
package theme

import "github.com/charmbracelet/lipgloss"

// Session colors.
var (
	ColorRunning = lipgloss.Color("#2563eb")
	ColorFound   = lipgloss.Color("#16a34a")
	ColorMaxed   = lipgloss.Color("#d97706")
	ColorPending = lipgloss.Color("#374151")
)

// Simulator state colors.
var (
	ColorStateIdle    = lipgloss.Color("#9ca3af")
	ColorStateRunning = lipgloss.Color("#22c55e")
	ColorStateStopped = lipgloss.Color("#d97706")
)

// EV deviation thresholds.
var (
	ColorDeviationLow  = lipgloss.Color("#22c55e") // <5%
	ColorDeviationMid  = lipgloss.Color("#d97706") // 5-20%
	ColorDeviationHigh = lipgloss.Color("#dc2626") // >20%
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorAccent  = lipgloss.Color("#a855f7")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDanger  = lipgloss.Color("#dc2626")
)

// StateColor returns the color for a simulator state name.
func StateColor(state string) lipgloss.Color {
	switch state {
	case "running":
		return ColorStateRunning
	case "stopped":
		return ColorStateStopped
	default:
		return ColorStateIdle
	}
}

// DeviationColor returns the color for a relative EV deviation
// (|actual-theoretical| / theoretical).
func DeviationColor(rel float64) lipgloss.Color {
	if rel < 0 {
		rel = -rel
	}
	switch {
	case rel > 0.2:
		return ColorDeviationHigh
	case rel > 0.05:
		return ColorDeviationMid
	default:
		return ColorDeviationLow
	}
}

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder)

	StyleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
			Foreground(ColorDimmed)

	StyleError = lipgloss.NewStyle().
			Foreground(ColorDanger)
)
