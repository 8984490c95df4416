// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// SessionStatus is the most recent status frame plus connection liveness,
// for display in the status bar.
type SessionStatus struct {
	State        string
	StatusCode   string
	ErrorCode    string
	ErrorMessage string
	LastUpdate   time.Time
}

// StatusComponent renders the session's connection/auth/subscription state.
type StatusComponent struct {
	status SessionStatus
}

// NewStatusComponent creates a new status component.
func NewStatusComponent() *StatusComponent {
	return &StatusComponent{}
}

// Update replaces the displayed status.
func (s *StatusComponent) Update(status SessionStatus) {
	s.status = status
}

// View renders the status component.
func (s *StatusComponent) View() string {
	okStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true)
	errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))

	if s.status.State == "" {
		return dimStyle.Render("not yet connected")
	}

	line := fmt.Sprintf("state: %s", s.status.State)
	if s.status.StatusCode == "FAILURE" {
		line += errStyle.Render(fmt.Sprintf("  FAILURE [%s] %s", s.status.ErrorCode, s.status.ErrorMessage))
	} else if s.status.StatusCode != "" {
		line += okStyle.Render(fmt.Sprintf("  %s", s.status.StatusCode))
	}
	if !s.status.LastUpdate.IsZero() {
		line += dimStyle.Render(fmt.Sprintf("  (updated %s ago)", time.Since(s.status.LastUpdate).Round(time.Second)))
	}
	return line
}
