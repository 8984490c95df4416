// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// LadderRow is one runner's best-of-book display, ready for rendering.
type LadderRow struct {
	SelectionID     int64
	Status          string
	LastTradedPrice decimal.Decimal
	TotalVolume     decimal.Decimal
	BestBack        decimal.Decimal
	BestBackSize    decimal.Decimal
	BestLay         decimal.Decimal
	BestLaySize     decimal.Decimal
}

// LadderComponent renders the current market's runner ladder.
type LadderComponent struct {
	marketID string
	rows     []LadderRow
}

// NewLadderComponent creates a new ladder component.
func NewLadderComponent() *LadderComponent {
	return &LadderComponent{rows: make([]LadderRow, 0)}
}

// SetMarket sets the market id currently displayed.
func (p *LadderComponent) SetMarket(marketID string) {
	p.marketID = marketID
}

// Update replaces the displayed runner rows.
func (p *LadderComponent) Update(rows []LadderRow) {
	sort.Slice(rows, func(i, j int) bool { return rows[i].SelectionID < rows[j].SelectionID })
	p.rows = rows
}

// View renders the ladder component.
func (p *LadderComponent) View() string {
	if len(p.rows) == 0 {
		return "Waiting for market data..."
	}

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	backStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#60A5FA"))
	layStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#F472B6"))
	removedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280")).Strikethrough(true)

	var result string
	result = headerStyle.Render(fmt.Sprintf("MARKET %s", p.marketID))
	result += "\n\n"

	result += fmt.Sprintf("  %-10s  %10s  %16s  %16s  %10s\n",
		"Runner", "Status", "Back", "Lay", "LTP")
	result += dimStyle.Render("  "+strings.Repeat("─", 64)) + "\n"

	for _, row := range p.rows {
		runnerLabel := fmt.Sprintf("%d", row.SelectionID)
		if row.Status != "ACTIVE" {
			result += removedStyle.Render(fmt.Sprintf("  %-10s  %10s\n", runnerLabel, row.Status))
			continue
		}

		backCell := dimStyle.Render("-")
		if !row.BestBackSize.IsZero() {
			backCell = backStyle.Render(fmt.Sprintf("%s @ %s", row.BestBack.StringFixed(2), row.BestBackSize.StringFixed(2)))
		}
		layCell := dimStyle.Render("-")
		if !row.BestLaySize.IsZero() {
			layCell = layStyle.Render(fmt.Sprintf("%s @ %s", row.BestLay.StringFixed(2), row.BestLaySize.StringFixed(2)))
		}
		ltpCell := dimStyle.Render("-")
		if !row.LastTradedPrice.IsZero() {
			ltpCell = row.LastTradedPrice.StringFixed(2)
		}

		result += fmt.Sprintf("  %-10s  %10s  %16s  %16s  %10s\n",
			runnerLabel, row.Status, backCell, layCell, ltpCell)
	}

	return result
}
