// Package grid draws one glyph per session, colored by how the session is
// doing: still flipping, stopped on the pattern, or stopped at the flip limit.
package grid

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/flip-racer/flipsim/internal/session"
	"github.com/flip-racer/flipsim/internal/tui/theme"
)

// Cell is the display state of one session.
type Cell int

const (
	CellRunning Cell = iota
	CellFound
	CellMaxed
)

const defaultMaxRows = 12

// Model holds the grid state.
type Model struct {
	Width   int
	MaxRows int
	cells   []Cell
}

// New creates an empty grid.
func New() Model {
	return Model{MaxRows: defaultMaxRows}
}

// Reset sizes the grid to n running sessions.
func (m *Model) Reset(n int) {
	m.cells = make([]Cell, n)
}

// Load replaces the grid with the given snapshots.
func (m *Model) Load(snaps []session.Snapshot) {
	m.cells = make([]Cell, len(snaps))
	for _, s := range snaps {
		if s.ID >= 0 && s.ID < len(m.cells) {
			m.cells[s.ID] = cellFor(s.Completed, s.PatternFound)
		}
	}
}

// Apply folds one tick of updates into the grid, growing it if an update
// names a session it has not seen.
func (m *Model) Apply(updates []session.Update) {
	for _, u := range updates {
		if u.ID < 0 {
			continue
		}
		if u.ID >= len(m.cells) {
			m.cells = append(m.cells, make([]Cell, u.ID-len(m.cells)+1)...)
		}
		m.cells[u.ID] = cellFor(u.Completed, u.PatternFound)
	}
}

func cellFor(completed, found bool) Cell {
	switch {
	case found:
		return CellFound
	case completed:
		return CellMaxed
	default:
		return CellRunning
	}
}

// Len is the number of sessions shown.
func (m Model) Len() int { return len(m.cells) }

// Counts tallies the cells by state.
func (m Model) Counts() (running, found, maxed int) {
	for _, c := range m.cells {
		switch c {
		case CellFound:
			found++
		case CellMaxed:
			maxed++
		default:
			running++
		}
	}
	return
}

var (
	styleRunning = lipgloss.NewStyle().Foreground(theme.ColorRunning)
	styleFound   = lipgloss.NewStyle().Foreground(theme.ColorFound)
	styleMaxed   = lipgloss.NewStyle().Foreground(theme.ColorMaxed)
)

func glyph(c Cell) string {
	switch c {
	case CellFound:
		return styleFound.Render("●")
	case CellMaxed:
		return styleMaxed.Render("×")
	default:
		return styleRunning.Render("·")
	}
}

// View renders the grid.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}
	header := theme.StyleHeader.Render("Sessions")
	if len(m.cells) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, header, theme.StyleDimmed.Render("  No sessions"))
	}

	perRow := width - 4
	maxRows := m.MaxRows
	if maxRows <= 0 {
		maxRows = defaultMaxRows
	}
	shown := min(len(m.cells), perRow*maxRows)

	lines := []string{header}
	var b strings.Builder
	for i := 0; i < shown; i++ {
		if i%perRow == 0 {
			if i > 0 {
				lines = append(lines, b.String())
				b.Reset()
			}
			b.WriteString("  ")
		}
		b.WriteString(glyph(m.cells[i]))
	}
	lines = append(lines, b.String())

	if hidden := len(m.cells) - shown; hidden > 0 {
		lines = append(lines, theme.StyleDimmed.Render(fmt.Sprintf("  +%d more", hidden)))
	}

	running, found, maxed := m.Counts()
	legend := fmt.Sprintf("  %s running %d   %s found %d   %s max flips %d",
		glyph(CellRunning), running, glyph(CellFound), found, glyph(CellMaxed), maxed)
	lines = append(lines, legend)

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
