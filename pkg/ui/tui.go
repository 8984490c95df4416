// Package ui provides the Bubble Tea TUI for betexstream-watch.
package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fd1az/betexstream/pkg/ui/components"
	"github.com/fd1az/betexstream/stream"
)

// ErrorEntry represents an error with timestamp.
type ErrorEntry struct {
	Message   string
	Timestamp time.Time
}

// Model is the main Bubble Tea model for the TUI.
type Model struct {
	status  *components.StatusComponent
	markets *components.MarketsComponent
	ladder  *components.LadderComponent
	stats   *components.StatsComponent

	ready    bool
	quitting bool
	paused   bool
	width    int
	height   int

	marketCaches map[string]*stream.MarketCache
	orderCaches  map[string]*stream.OrderAccountCache

	marketFrames int64
	orderFrames  int64
	reconnects   int64

	lastUpdate time.Time
	errors     []ErrorEntry
	logs       []string
}

// New creates a new TUI model.
func New() Model {
	return Model{
		status:       components.NewStatusComponent(),
		markets:      components.NewMarketsComponent(8),
		ladder:       components.NewLadderComponent(),
		stats:        components.NewStatsComponent(),
		marketCaches: make(map[string]*stream.MarketCache),
		orderCaches:  make(map[string]*stream.OrderAccountCache),
		logs:         make([]string, 0, 10),
		errors:       make([]ErrorEntry, 0, 3),
	}
}

// Init initializes the TUI model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// tickCmd returns a command that sends a tick every 500ms so the "updated
// N ago" indicators stay fresh even between frames.
func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg{}
	})
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "p":
			m.paused = !m.paused
			return m, nil
		case "c":
			m.errors = make([]ErrorEntry, 0, 3)
			return m, nil
		case "up", "k":
			m.markets.ScrollUp()
			return m, nil
		case "down", "j":
			m.markets.ScrollDown()
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true

	case TickMsg:
		return m, tickCmd()

	case StatusMsg:
		m.status.Update(components.SessionStatus{
			State:        msg.StatusCode,
			StatusCode:   msg.StatusCode,
			ErrorCode:    msg.ErrorCode,
			ErrorMessage: msg.ErrorMessage,
			LastUpdate:   time.Now(),
		})
		if msg.StatusCode == "FAILURE" {
			m.errors = m.pushError(msg.ErrorMessage)
		}
		m.lastUpdate = time.Now()

	case MarketUpdateMsg:
		if m.paused {
			return m, nil
		}
		for id, snap := range msg.Markets {
			m.marketCaches[id] = snap
		}
		m.marketFrames++
		m.markets.Update(buildMarketRows(m.marketCaches, msg.Deltas))
		if sel := m.markets.Selected(); sel != "" {
			m.ladder.SetMarket(sel)
			m.ladder.Update(buildLadderRows(m.marketCaches[sel]))
		}
		m.lastUpdate = time.Now()

	case OrderUpdateMsg:
		if m.paused {
			return m, nil
		}
		for id, snap := range msg.Markets {
			m.orderCaches[id] = snap
		}
		m.orderFrames++
		m.lastUpdate = time.Now()

	case ErrorMsg:
		m.errors = m.pushError(msg.Error.Error())
		m.logs = addLog(m.logs, "error", msg.Error.Error())

	case LogMsg:
		m.logs = addLog(m.logs, msg.Level, msg.Message)
	}

	return m, nil
}

func (m Model) pushError(message string) []ErrorEntry {
	errs := append(m.errors, ErrorEntry{Message: message, Timestamp: time.Now()})
	if len(errs) > 3 {
		errs = errs[len(errs)-3:]
	}
	return errs
}

// buildMarketRows converts the raw cache map into sorted, display-ready
// rows, tagging whichever markets changed this frame with their delta.
func buildMarketRows(caches map[string]*stream.MarketCache, deltas []string) []components.MarketRow {
	changed := make(map[string]bool, len(deltas))
	for _, d := range deltas {
		changed[d] = true
	}

	rows := make([]components.MarketRow, 0, len(caches))
	for id, c := range caches {
		status := "UNKNOWN"
		if c.Definition != nil {
			status = string(c.Definition.Status)
		}
		lastDelta := ""
		if changed[id] {
			lastDelta = "updated this frame"
		}
		rows = append(rows, components.MarketRow{
			MarketID:      id,
			Status:        status,
			TotalMatched:  c.TotalMatched,
			RunnerCount:   len(c.Runners),
			TrulyComplete: c.TrulyComplete(),
			LastDelta:     lastDelta,
		})
	}
	return rows
}

// buildLadderRows flattens one market's runner caches into display rows,
// picking the best (first ascending/descending) level off each ladder.
func buildLadderRows(market *stream.MarketCache) []components.LadderRow {
	if market == nil {
		return nil
	}
	rows := make([]components.LadderRow, 0, len(market.Runners))
	for _, r := range market.Runners {
		row := components.LadderRow{
			SelectionID:     r.ID,
			Status:          string(r.Status),
			LastTradedPrice: r.LastTradedPrice,
			TotalVolume:     r.TotalVolume,
		}
		if levels := r.AvailableToBack.Descending(); len(levels) > 0 {
			row.BestBack = levels[0].Price
			row.BestBackSize = levels[0].Size
		}
		if levels := r.AvailableToLay.Ascending(); len(levels) > 0 {
			row.BestLay = levels[0].Price
			row.BestLaySize = levels[0].Size
		}
		rows = append(rows, row)
	}
	return rows
}

// addLog adds a log message and returns the updated slice (keeps last 5).
func addLog(logs []string, level, message string) []string {
	timestamp := time.Now().Format("15:04:05")
	logLine := fmt.Sprintf("[%s] %s: %s", timestamp, level, message)
	logs = append(logs, logLine)
	if len(logs) > 5 {
		logs = logs[len(logs)-5:]
	}
	return logs
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return "\n  Goodbye!\n\n"
	}
	if !m.ready {
		return "\n  Starting up...\n\n"
	}

	var b strings.Builder

	b.WriteString(TitleStyle.Render(" betexstream-watch "))
	b.WriteString("\n\n")

	b.WriteString(m.status.View())
	b.WriteString("\n\n")

	leftCol := m.markets.View()
	rightCol := m.ladder.View()

	if m.width > 100 {
		left := BoxStyle.Width(m.width/2 - 2).Render(leftCol)
		right := BoxStyle.Width(m.width/2 - 2).Render(rightCol)
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, right))
	} else {
		b.WriteString(BoxStyle.Width(m.width - 4).Render(leftCol))
		b.WriteString("\n")
		b.WriteString(BoxStyle.Width(m.width - 4).Render(rightCol))
	}
	b.WriteString("\n\n")

	m.stats.Update(components.Stats{
		MarketFrames:   m.marketFrames,
		OrderFrames:    m.orderFrames,
		MarketsTracked: len(m.marketCaches),
		Reconnects:     m.reconnects,
		Errors:         int64(len(m.errors)),
	})
	b.WriteString(m.stats.View())
	b.WriteString("\n\n")

	if len(m.errors) > 0 {
		errorStyle := lipgloss.NewStyle().Foreground(ColorDanger)
		errorHeader := lipgloss.NewStyle().Bold(true).Foreground(ColorDanger)
		mutedError := lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))

		b.WriteString(errorHeader.Render("ERRORS"))
		b.WriteString(mutedError.Render(" (c: clear)"))
		b.WriteString("\n")
		for _, err := range m.errors {
			ago := time.Since(err.Timestamp).Round(time.Second)
			b.WriteString(errorStyle.Render(fmt.Sprintf("  • %s ", err.Message)))
			b.WriteString(mutedError.Render(fmt.Sprintf("(%s ago)", ago)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	helpText := "q: quit • c: clear errors • p: pause • ↑↓: scroll markets"
	if m.paused {
		pauseStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F59E0B"))
		b.WriteString(pauseStyle.Render("⏸ PAUSED"))
		b.WriteString(" • ")
	}
	b.WriteString(HelpStyle.Render(helpText))

	return b.String()
}

// Program holds the Bubble Tea program instance for external access.
var Program *tea.Program

// Run starts the Bubble Tea program.
func Run() error {
	Program = tea.NewProgram(New(), tea.WithAltScreen())
	_, err := Program.Run()
	return err
}

// Send sends a message to the running program, if one is active.
func Send(msg tea.Msg) {
	if Program != nil {
		Program.Send(msg)
	}
}
