package app

import (
	"context"
	"fmt"
	"sort"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/flip-racer/flipsim/internal/sim"
	"github.com/flip-racer/flipsim/internal/tui/client"
	"github.com/flip-racer/flipsim/internal/tui/theme"
	"github.com/flip-racer/flipsim/internal/tui/views/grid"
	"github.com/flip-racer/flipsim/internal/tui/views/stats"
	"github.com/flip-racer/flipsim/internal/tui/views/status"
)

const (
	minSessions = 1
	maxSessions = 100_000
)

// Options sets the initial run parameters.
type Options struct {
	Pattern  string
	Sessions int
	MaxFlips int
}

// --- internal messages ---

type patternsMsg struct {
	patterns map[string]string
	err      error
}

type actionMsg struct {
	action string
	err    error
}

type stepMsg struct {
	res *client.StepResult
	err error
}

type statusMsg struct {
	status *client.StatusResponse
	err    error
}

type sessionsMsg struct {
	snaps []client.Snapshot
	err   error
}

// Model is the root Bubble Tea model.
type Model struct {
	ws     *client.WSClient
	http   *client.HTTPClient
	ctx    context.Context
	cancel context.CancelFunc

	keys   KeyMap
	width  int
	height int

	// Selection for the next start.
	patterns     []string
	descriptions map[string]string
	patternIdx   int
	wantPattern  string
	numSessions  int
	maxFlips     int

	state    sim.State
	showHelp bool
	helpView string
	lastErr  string

	statusBar status.Model
	stats     stats.Model
	grid      grid.Model

	connected bool
}

// New creates the root model.
func New(ws *client.WSClient, http *client.HTTPClient, opts Options) Model {
	ctx, cancel := context.WithCancel(context.Background())
	if opts.Sessions < minSessions {
		opts.Sessions = sim.DefaultSessions
	}
	if opts.MaxFlips < 1 {
		opts.MaxFlips = sim.DefaultMaxFlips
	}
	if opts.Pattern == "" {
		opts.Pattern = "2_consecutive_tails"
	}
	m := Model{
		ws:           ws,
		http:         http,
		ctx:          ctx,
		cancel:       cancel,
		keys:         DefaultKeyMap(),
		descriptions: map[string]string{},
		wantPattern:  opts.Pattern,
		numSessions:  min(opts.Sessions, maxSessions),
		maxFlips:     opts.MaxFlips,
		statusBar:    status.New(),
		stats:        stats.New(),
		grid:         grid.New(),
	}
	m.syncStatusBar()
	return m
}

// Init starts the WebSocket connection and loads the pattern list.
func (m Model) Init() tea.Cmd {
	var cmds []tea.Cmd
	if m.ws != nil {
		cmds = append(cmds, m.ws.Listen(m.ctx))
	}
	cmds = append(cmds, m.fetchPatterns())
	return tea.Batch(cmds...)
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.Width = msg.Width
		m.stats.Width = msg.Width
		m.grid.Width = msg.Width
		m.grid.MaxRows = max(msg.Height-16, 3)
		m.helpView = ""
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case stats.FrameMsg:
		var cmd tea.Cmd
		m.stats, cmd = m.stats.Update(msg)
		return m, cmd

	case patternsMsg:
		if msg.err != nil {
			m.lastErr = msg.err.Error()
			return m, nil
		}
		m.setPatterns(msg.patterns)
		return m, nil

	case actionMsg:
		return m.handleAction(msg)

	case stepMsg:
		if msg.err != nil {
			m.lastErr = msg.err.Error()
			return m, nil
		}
		m.grid.Apply(msg.res.Updates)
		if msg.res.Status == sim.StatusCompleted {
			m.state = sim.Stopped
		}
		m.syncStatusBar()
		return m, nil

	case sessionsMsg:
		if msg.err == nil {
			m.grid.Load(msg.snaps)
		}
		return m, nil

	case statusMsg:
		if msg.err != nil {
			m.lastErr = msg.err.Error()
			return m, nil
		}
		return m, m.applyStatus(msg.status.State, msg.status.Statistics)

	case client.WSConnectedMsg:
		m.connected = true
		m.statusBar.Connected = true
		// The greeting may arrive late or not at all behind a proxy, so
		// poll the current state over HTTP as well.
		return m, tea.Batch(m.ws.ReadLoop(m.ctx), m.fetchStatus())

	case client.WSDisconnectedMsg:
		m.connected = false
		m.statusBar.Connected = false
		return m, m.ws.Listen(m.ctx)

	case client.WSStatusMsg:
		cmd := m.applyStatus(msg.Payload.State, msg.Payload.Statistics)
		return m, tea.Batch(cmd, m.ws.ReadLoop(m.ctx))

	case client.WSUpdateMsg:
		m.grid.Apply(msg.Payload.Updates)
		if msg.Payload.Status == sim.StatusCompleted {
			m.state = sim.Stopped
		}
		m.syncStatusBar()
		return m, m.ws.ReadLoop(m.ctx)

	case client.WSStatisticsMsg:
		st := msg.Payload
		cmd := m.stats.SetStatistics(&st)
		return m, tea.Batch(cmd, m.ws.ReadLoop(m.ctx))

	case client.WSCompletedMsg:
		st := msg.Payload
		cmd := m.stats.SetStatistics(&st)
		m.state = sim.Stopped
		m.statusBar.Message = "Simulation completed"
		m.syncStatusBar()
		return m, tea.Batch(cmd, m.ws.ReadLoop(m.ctx))

	case client.WSErrorMsg:
		m.lastErr = msg.Payload.Message
		m.state = sim.Stopped
		m.syncStatusBar()
		return m, m.ws.ReadLoop(m.ctx)
	}

	return m, nil
}

// applyStatus adopts a full server status and reloads the session grid.
func (m *Model) applyStatus(state sim.State, st *client.Statistics) tea.Cmd {
	m.state = state
	cmd := m.stats.SetStatistics(st)
	if st != nil {
		m.selectPattern(st.PatternKey)
	}
	m.syncStatusBar()
	return tea.Batch(cmd, m.fetchSessions())
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		if key.Matches(msg, m.keys.Escape) || key.Matches(msg, m.keys.Help) {
			m.showHelp = false
			return m, nil
		}
		if key.Matches(msg, m.keys.Quit) {
			m.cancel()
			return m, tea.Quit
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.cancel()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		if m.helpView == "" {
			m.helpView = renderHelp(m.keys, m.width)
		}
		return m, nil

	case key.Matches(msg, m.keys.NextPattern):
		if len(m.patterns) > 0 {
			m.patternIdx = (m.patternIdx + 1) % len(m.patterns)
		}
		m.syncStatusBar()
		return m, nil

	case key.Matches(msg, m.keys.PrevPattern):
		if len(m.patterns) > 0 {
			m.patternIdx = (m.patternIdx - 1 + len(m.patterns)) % len(m.patterns)
		}
		m.syncStatusBar()
		return m, nil

	case key.Matches(msg, m.keys.MoreSessions):
		m.numSessions = min(m.numSessions*10, maxSessions)
		m.syncStatusBar()
		return m, nil

	case key.Matches(msg, m.keys.FewerSessions):
		m.numSessions = max(m.numSessions/10, minSessions)
		m.syncStatusBar()
		return m, nil

	case key.Matches(msg, m.keys.Start):
		req := client.ConfigureRequest{
			PatternKey:  m.selectedPattern(),
			NumSessions: m.numSessions,
			MaxFlips:    m.maxFlips,
		}
		return m, m.do("start", func(c *client.HTTPClient) error { return c.Start(&req) })

	case key.Matches(msg, m.keys.Stop):
		return m, m.do("stop", (*client.HTTPClient).Stop)

	case key.Matches(msg, m.keys.Reset):
		return m, m.do("reset", (*client.HTTPClient).Reset)

	case key.Matches(msg, m.keys.Step):
		if m.http == nil {
			return m, nil
		}
		h := m.http
		return m, func() tea.Msg {
			res, err := h.Step()
			return stepMsg{res: res, err: err}
		}

	case key.Matches(msg, m.keys.Resync):
		if m.ws != nil {
			if err := m.ws.Resync(); err != nil {
				m.lastErr = err.Error()
			}
		}
		return m, nil
	}

	return m, nil
}

func (m Model) handleAction(msg actionMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.lastErr = msg.err.Error()
		return m, nil
	}
	m.lastErr = ""

	var cmd tea.Cmd
	switch msg.action {
	case "start":
		m.state = sim.Running
		m.grid.Reset(m.numSessions)
		cmd = m.stats.SetStatistics(nil)
		m.statusBar.Message = "Simulation started"
	case "stop":
		m.state = sim.Stopped
		m.statusBar.Message = "Simulation stopped"
	case "reset":
		m.state = sim.Configured
		m.grid.Reset(0)
		cmd = m.stats.SetStatistics(nil)
		m.statusBar.Message = "Simulation reset"
	}
	m.syncStatusBar()
	return m, cmd
}

// do runs an HTTP action off the UI goroutine.
func (m Model) do(action string, fn func(*client.HTTPClient) error) tea.Cmd {
	if m.http == nil {
		return nil
	}
	h := m.http
	return func() tea.Msg {
		return actionMsg{action: action, err: fn(h)}
	}
}

func (m Model) fetchPatterns() tea.Cmd {
	if m.http == nil {
		return nil
	}
	h := m.http
	return func() tea.Msg {
		p, err := h.GetPatterns()
		return patternsMsg{patterns: p, err: err}
	}
}

func (m Model) fetchStatus() tea.Cmd {
	if m.http == nil {
		return nil
	}
	h := m.http
	return func() tea.Msg {
		st, err := h.GetStatus()
		return statusMsg{status: st, err: err}
	}
}

func (m Model) fetchSessions() tea.Cmd {
	if m.http == nil {
		return nil
	}
	h := m.http
	return func() tea.Msg {
		snaps, err := h.GetSessions()
		return sessionsMsg{snaps: snaps, err: err}
	}
}

func (m *Model) setPatterns(p map[string]string) {
	m.descriptions = p
	m.patterns = make([]string, 0, len(p))
	for k := range p {
		m.patterns = append(m.patterns, k)
	}
	sort.Strings(m.patterns)
	m.patternIdx = 0
	m.selectPattern(m.wantPattern)
	m.syncStatusBar()
}

func (m *Model) selectPattern(key string) {
	m.wantPattern = key
	for i, k := range m.patterns {
		if k == key {
			m.patternIdx = i
			return
		}
	}
}

func (m Model) selectedPattern() string {
	if len(m.patterns) == 0 {
		return m.wantPattern
	}
	return m.patterns[m.patternIdx]
}

func (m *Model) syncStatusBar() {
	m.statusBar.State = m.state.String()
	m.statusBar.Pattern = m.selectedPattern()
	m.statusBar.Description = m.descriptions[m.statusBar.Pattern]
	m.statusBar.Sessions = m.numSessions
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	if m.showHelp {
		help := m.helpView
		if help == "" {
			help = renderHelp(m.keys, m.width)
		}
		return lipgloss.JoinVertical(lipgloss.Left, m.statusBar.View(), help)
	}

	sections := []string{
		m.statusBar.View(),
		m.stats.View(),
		m.grid.View(),
	}
	if !m.connected {
		sections = append(sections, lipgloss.NewStyle().Foreground(theme.ColorDanger).Bold(true).
			Render("  DISCONNECTED: reconnecting to server..."))
	}
	if m.lastErr != "" {
		sections = append(sections, theme.StyleError.Render(fmt.Sprintf("  error: %s", m.lastErr)))
	}
	sections = append(sections, theme.StyleDimmed.Render(
		"  p/P:pattern  +/-:sessions  s:start  x:stop  r:reset  n:step  ?:help  q:quit"))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}
