// Package ui provides the Bubble Tea TUI for betexstream-watch.
package ui

import (
	"github.com/fd1az/betexstream/stream"
)

// Message types for TUI updates.

// StatusMsg is sent whenever a status frame arrives from the session
// (the ack/error channel for auth, subscription, and heartbeat requests).
type StatusMsg struct {
	StatusCode   string
	ErrorCode    string
	ErrorMessage string
}

// MarketUpdateMsg is sent after a market-change frame has been applied to
// the cache. Markets is the full, current snapshot of every subscribed
// market; Deltas is the decoder's human-readable list of the changes this
// frame applied (e.g. "runner 10 ltp=2.5").
type MarketUpdateMsg struct {
	Markets map[string]*stream.MarketCache
	Deltas  []string
}

// OrderUpdateMsg is the order-cache analogue of MarketUpdateMsg.
type OrderUpdateMsg struct {
	Markets map[string]*stream.OrderAccountCache
	Deltas  []string
}

// TickMsg is sent periodically to drive the elapsed-time display.
type TickMsg struct{}

// LogMsg is sent to surface a log line in the TUI's log panel.
type LogMsg struct {
	Level   string // "info", "warn", "error"
	Message string
}

// ErrorMsg is sent when a session-level error occurs.
type ErrorMsg struct {
	Error error
}
