// Package components provides reusable TUI components.
package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Stats holds session-level counters for display.
type Stats struct {
	MarketFrames   int64
	OrderFrames    int64
	MarketsTracked int
	Reconnects     int64
	Errors         int64
}

// StatsComponent renders session statistics.
type StatsComponent struct {
	stats Stats
}

// NewStatsComponent creates a new stats component.
func NewStatsComponent() *StatsComponent {
	return &StatsComponent{}
}

// Update updates the statistics.
func (s *StatsComponent) Update(stats Stats) {
	s.stats = stats
}

// View renders the stats component.
func (s *StatsComponent) View() string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Bold(true)
	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)

	errorsDisplay := valueStyle.Render(fmt.Sprintf("%d", s.stats.Errors))
	if s.stats.Errors > 0 {
		errorsDisplay = errorStyle.Render(fmt.Sprintf("%d", s.stats.Errors))
	}

	return style.Render("STATS") + "\n" +
		fmt.Sprintf("Markets tracked: %s  │  Market frames: %s  │  Order frames: %s\n",
			valueStyle.Render(fmt.Sprintf("%d", s.stats.MarketsTracked)),
			valueStyle.Render(fmt.Sprintf("%d", s.stats.MarketFrames)),
			valueStyle.Render(fmt.Sprintf("%d", s.stats.OrderFrames)),
		) +
		fmt.Sprintf("Reconnects: %s  │  Errors: %s",
			valueStyle.Render(fmt.Sprintf("%d", s.stats.Reconnects)),
			errorsDisplay,
		)
}
