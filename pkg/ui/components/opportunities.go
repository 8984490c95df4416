// Package components provides reusable TUI components.
package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// MarketRow is one market's summary line in the market list.
type MarketRow struct {
	MarketID      string
	Status        string
	TotalMatched  decimal.Decimal
	RunnerCount   int
	TrulyComplete bool
	LastDelta     string
}

// MarketsComponent renders the list of subscribed markets and lets the
// operator scroll through them and pick one for the detail ladder view.
type MarketsComponent struct {
	rows       []MarketRow
	offset     int
	visibleMax int
}

// NewMarketsComponent creates a new markets list component.
func NewMarketsComponent(visibleMax int) *MarketsComponent {
	return &MarketsComponent{
		rows:       make([]MarketRow, 0),
		visibleMax: visibleMax,
	}
}

// Update replaces the displayed market rows.
func (o *MarketsComponent) Update(rows []MarketRow) {
	o.rows = rows
	maxOffset := len(o.rows) - o.visibleMax
	if maxOffset < 0 {
		maxOffset = 0
	}
	if o.offset > maxOffset {
		o.offset = maxOffset
	}
}

// ScrollUp scrolls the list up.
func (o *MarketsComponent) ScrollUp() {
	if o.offset > 0 {
		o.offset--
	}
}

// ScrollDown scrolls the list down.
func (o *MarketsComponent) ScrollDown() {
	maxOffset := len(o.rows) - o.visibleMax
	if maxOffset < 0 {
		maxOffset = 0
	}
	if o.offset < maxOffset {
		o.offset++
	}
}

// Count returns the total number of markets tracked.
func (o *MarketsComponent) Count() int {
	return len(o.rows)
}

// Selected returns the market id at the top of the visible window, the
// one the detail ladder view should follow.
func (o *MarketsComponent) Selected() string {
	if len(o.rows) == 0 {
		return ""
	}
	return o.rows[o.offset].MarketID
}

// View renders the markets list component.
func (o *MarketsComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	mutedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	openStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true)
	closedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	scrollHint := lipgloss.NewStyle().Foreground(lipgloss.Color("#60A5FA"))

	var result string
	result = headerStyle.Render("MARKETS")
	if len(o.rows) > 0 {
		result += mutedStyle.Render(fmt.Sprintf(" (%d total, ↑↓ scroll)", len(o.rows)))
	}
	result += "\n\n"

	if len(o.rows) == 0 {
		result += mutedStyle.Render("  No markets subscribed yet.\n")
		return result
	}

	if o.offset > 0 {
		result += scrollHint.Render(fmt.Sprintf("  ▲ %d above\n", o.offset))
	}

	end := o.offset + o.visibleMax
	if end > len(o.rows) {
		end = len(o.rows)
	}

	for i := o.offset; i < end; i++ {
		row := o.rows[i]
		icon := "●"
		style := openStyle
		if row.Status != "OPEN" {
			icon = "○"
			style = closedStyle
		}

		completeTag := ""
		if row.TrulyComplete {
			completeTag = mutedStyle.Render(" [complete]")
		}

		result += fmt.Sprintf("  %s %-12s  %-10s  runners: %-3d  matched: %-12s%s\n",
			style.Render(icon),
			row.MarketID,
			row.Status,
			row.RunnerCount,
			row.TotalMatched.StringFixed(2),
			completeTag,
		)
		if row.LastDelta != "" {
			result += mutedStyle.Render(fmt.Sprintf("      %s\n", row.LastDelta))
		}
	}

	if end < len(o.rows) {
		result += scrollHint.Render(fmt.Sprintf("\n  ▼ %d more below\n", len(o.rows)-end))
	}

	return result
}
