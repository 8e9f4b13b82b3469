package status

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/flip-racer/flipsim/internal/tui/theme"
)

// Model holds the status bar state.
type Model struct {
	Connected   bool
	State       string
	Pattern     string
	Description string
	Sessions    int
	Message     string
	Width       int
}

// New creates a status bar model.
func New() Model {
	return Model{State: "unconfigured"}
}

// View renders the status bar.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	var connStr string
	if m.Connected {
		connStr = lipgloss.NewStyle().Foreground(theme.ColorHealthy).Render("● Connected")
	} else {
		connStr = lipgloss.NewStyle().Foreground(theme.ColorDanger).Render("○ Connecting...")
	}

	stateStr := lipgloss.NewStyle().Bold(true).Foreground(theme.StateColor(m.State)).Render(m.State)

	pattern := m.Pattern
	if m.Description != "" {
		pattern = fmt.Sprintf("%s (%s)", m.Description, m.Pattern)
	}
	patternStr := lipgloss.NewStyle().Foreground(theme.ColorAccent).Render(pattern)

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	content := connStr + sep + stateStr + sep + patternStr + sep + fmt.Sprintf("%d sessions", m.Sessions)
	if m.Message != "" {
		content += sep + theme.StyleDimmed.Render(m.Message)
	}

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}
