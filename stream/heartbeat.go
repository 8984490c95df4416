package stream

import (
	"sync"
	"time"
)

// Heartbeat is a one-shot dead-man timer (§4.5). It is armed purely by
// inbound traffic — refresh is called once per complete line the
// transport delivers (bytes of a line still being read do not refresh
// it), never on a send-side keepalive — and fires onAttack once
// the grace window elapses without a refresh.
type Heartbeat struct {
	mu       sync.Mutex
	timer    *time.Timer
	beating  bool
	interval time.Duration
	onAttack func()
}

// NewHeartbeat builds a Heartbeat that calls onAttack on expiry.
func NewHeartbeat(onAttack func()) *Heartbeat {
	return &Heartbeat{onAttack: onAttack}
}

// Start arms a one-shot timer at intervalMs + 2000ms grace. A no-op if
// already beating.
func (h *Heartbeat) Start(intervalMs int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.beating {
		return
	}
	h.interval = time.Duration(intervalMs)*time.Millisecond + 2*time.Second
	h.beating = true
	h.timer = time.AfterFunc(h.interval, h.fire)
}

// Refresh resets the existing timer. A no-op (with the caller expected
// to log a warning) when not currently beating.
func (h *Heartbeat) Refresh() (wasBeating bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.beating || h.timer == nil {
		return false
	}
	h.timer.Reset(h.interval)
	return true
}

// Stop cancels the timer and releases it, idempotent.
func (h *Heartbeat) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
	h.beating = false
}

// UpdateInterval restarts the timer with a new interval if currently
// beating; a no-op otherwise.
func (h *Heartbeat) UpdateInterval(intervalMs int) {
	h.mu.Lock()
	beating := h.beating
	h.mu.Unlock()
	if !beating {
		return
	}
	h.Stop()
	h.Start(intervalMs)
}

// Beating reports whether the timer is currently armed.
func (h *Heartbeat) Beating() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.beating
}

func (h *Heartbeat) fire() {
	h.mu.Lock()
	h.beating = false
	cb := h.onAttack
	h.mu.Unlock()
	if cb != nil {
		cb()
	}
}
