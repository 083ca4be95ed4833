package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/randomizedcoder/go-stream-analysis-suite/internal/suite"
)

// =============================================================================
// Messages
// =============================================================================

// TickMsg is sent periodically to update the display.
type TickMsg time.Time

// StatusMsg carries an updated view of the session.
type StatusMsg struct {
	Dashboard suite.Dashboard
	Workers   []suite.WorkerStatus
}

// QuitMsg signals the TUI should exit.
type QuitMsg struct{}

// =============================================================================
// Model
// =============================================================================

// Source provides the session state shown by the dashboard.
// *suite.Coordinator implements it.
type Source interface {
	Dashboard() suite.Dashboard
	Workers() []suite.WorkerStatus
}

// Config holds TUI configuration.
type Config struct {
	Tool        string
	ManifestURL string
	OutputDir   string
	MetricsAddr string
	Source      Source
}

// Model represents the TUI state.
type Model struct {
	tool        string
	manifestURL string
	outputDir   string
	metricsAddr string

	dashboard    *suite.Dashboard
	workers      []suite.WorkerStatus
	startTime    time.Time
	lastUpdate   time.Time
	detailedView bool

	width  int
	height int

	source   Source
	quitting bool
}

// New creates a new TUI model.
func New(cfg Config) Model {
	return Model{
		tool:        cfg.Tool,
		manifestURL: cfg.ManifestURL,
		outputDir:   cfg.OutputDir,
		metricsAddr: cfg.MetricsAddr,
		source:      cfg.Source,
		startTime:   time.Now(),
		lastUpdate:  time.Now(),
		width:       80,
		height:      24,
	}
}

// =============================================================================
// Bubble Tea Interface
// =============================================================================

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "d":
			m.detailedView = !m.detailedView
			return m, nil
		case "r":
			m = m.refresh()
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case TickMsg:
		m = m.refresh()
		return m, tickCmd()

	case StatusMsg:
		d := msg.Dashboard
		m.dashboard = &d
		m.workers = msg.Workers
		m.lastUpdate = time.Now()
		return m, nil

	case QuitMsg:
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

func (m Model) refresh() Model {
	if m.source == nil {
		return m
	}
	d := m.source.Dashboard()
	m.dashboard = &d
	m.workers = m.source.Workers()
	m.lastUpdate = time.Now()
	return m
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.detailedView {
		return m.renderDetailedView()
	}
	return m.renderSummaryView()
}

// =============================================================================
// Commands
// =============================================================================

// tickCmd returns a command that sends a tick after 500ms.
func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// =============================================================================
// Accessors
// =============================================================================

// Elapsed returns the time since the session started.
func (m Model) Elapsed() time.Duration {
	if m.dashboard != nil && m.dashboard.SessionDuration > 0 {
		return time.Duration(m.dashboard.SessionDuration * float64(time.Second))
	}
	return time.Since(m.startTime)
}

// Health returns the latest overall health score.
func (m Model) Health() float64 {
	if m.dashboard == nil {
		return 0
	}
	return m.dashboard.OverallHealth
}

// ActiveWorkers returns the number of workers not yet stopped.
func (m Model) ActiveWorkers() int {
	n := 0
	for _, w := range m.workers {
		if w.State.IsActive() {
			n++
		}
	}
	return n
}

// TotalPolls returns the poll count summed over all workers.
func (m Model) TotalPolls() int64 {
	var n int64
	for _, w := range m.workers {
		n += w.Polls
	}
	return n
}

// =============================================================================
// Helper for external use
// =============================================================================

// SendStatus sends a status update to the TUI.
func SendStatus(p *tea.Program, src Source) {
	if p != nil && src != nil {
		p.Send(StatusMsg{Dashboard: src.Dashboard(), Workers: src.Workers()})
	}
}

// SendQuit sends a quit message to the TUI.
func SendQuit(p *tea.Program) {
	if p != nil {
		p.Send(QuitMsg{})
	}
}

// =============================================================================
// Formatting Helpers (used by view.go)
// =============================================================================

// formatScore formats a 0-1 score with three decimals.
func formatScore(v float64) string {
	return fmt.Sprintf("%.3f", v)
}
