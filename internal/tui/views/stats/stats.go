// Package stats renders the statistics panel: a completion gauge that eases
// toward the latest completion rate on a harmonica spring, followed by the
// pattern hit counts and the EV comparison.
package stats

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"
	"github.com/flip-racer/flipsim/internal/sim"
	"github.com/flip-racer/flipsim/internal/tui/theme"
)

const (
	fps       = 60
	frequency = 6.0
	damping   = 1.0
	settle    = 0.001
)

// FrameMsg advances the gauge animation by one frame.
type FrameMsg struct{}

// Model holds the statistics panel state.
type Model struct {
	Width int

	stats *sim.Statistics
	bar   progress.Model

	spring    harmonica.Spring
	pos       float64
	vel       float64
	target    float64
	animating bool
}

// New creates a statistics panel.
func New() Model {
	return Model{
		bar:    progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		spring: harmonica.NewSpring(harmonica.FPS(fps), frequency, damping),
	}
}

// Statistics returns the last statistics applied, or nil.
func (m Model) Statistics() *sim.Statistics { return m.stats }

// Gauge returns the current animated gauge position in [0, 1].
func (m Model) Gauge() float64 { return m.pos }

// SetStatistics applies a new statistics snapshot. A nil snapshot clears the
// panel. The returned command starts the gauge animation when needed.
func (m *Model) SetStatistics(st *sim.Statistics) tea.Cmd {
	m.stats = st
	m.target = 0
	if st != nil {
		m.target = st.CompletionRate
	}
	if m.animating || m.settled() {
		return nil
	}
	m.animating = true
	return frame()
}

// Update advances the animation on FrameMsg.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if _, ok := msg.(FrameMsg); !ok {
		return m, nil
	}
	m.pos, m.vel = m.spring.Update(m.pos, m.vel, m.target)
	if m.settled() {
		m.pos, m.vel = m.target, 0
		m.animating = false
		return m, nil
	}
	return m, frame()
}

func (m Model) settled() bool {
	return math.Abs(m.pos-m.target) < settle && math.Abs(m.vel) < settle
}

func frame() tea.Cmd {
	return tea.Tick(time.Second/fps, func(time.Time) tea.Msg { return FrameMsg{} })
}

// View renders the panel.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	box := lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(theme.ColorBorder)

	if m.stats == nil {
		return box.Render(theme.StyleDimmed.Render("No simulation yet. Press s to start."))
	}
	st := m.stats

	bar := m.bar
	bar.Width = max(width-30, 10)
	gauge := fmt.Sprintf("%s %5.1f%%  %d/%d done",
		bar.ViewAs(clamp(m.pos)), st.CompletionRate*100, st.CompletedSessions, st.TotalSessions)

	found := lipgloss.NewStyle().Foreground(theme.ColorFound).Render(
		fmt.Sprintf("Pattern found: %d (%.1f%%)", st.PatternFoundSessions, st.PatternSuccessRate*100))
	maxed := lipgloss.NewStyle().Foreground(theme.ColorMaxed).Render(
		fmt.Sprintf("Max flips: %d", st.MaxFlipsReachedSessions))
	counts := found + "   " + maxed

	rel := 0.0
	if st.TheoreticalEV > 0 && st.PatternFoundSessions > 0 {
		rel = st.EVDeviation / st.TheoreticalEV
	}
	dev := lipgloss.NewStyle().Foreground(theme.DeviationColor(rel)).Render(
		fmt.Sprintf("%+.2f", st.EVDeviation))
	ev := fmt.Sprintf("Avg flips: %.2f   Actual EV: %.2f   Theoretical EV: %.2f   Deviation: %s",
		st.AverageFlipsAll, st.ActualEV, st.TheoreticalEV, dev)

	lines := []string{
		theme.StyleHeader.Render("Statistics"),
		gauge,
		counts,
		ev,
	}
	return box.Render(strings.Join(lines, "\n"))
}

func clamp(f float64) float64 {
	return math.Max(0, math.Min(1, f))
}
