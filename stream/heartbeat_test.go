package stream

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestHeartbeat_RefreshAndStopSemantics(t *testing.T) {
	var fired atomic.Bool
	hb := NewHeartbeat(func() { fired.Store(true) })
	hb.Start(10) // 10ms + 2s grace is too long to wait out here; only Start/Stop run.
	hb.Stop()

	// Re-test with a directly-armed short timer via the public API: Start
	// always adds the 2s grace window, so exercise Refresh/Stop semantics
	// instead of waiting out a real fire in this fast test.
	hb2 := NewHeartbeat(func() { fired.Store(true) })
	if hb2.Beating() {
		t.Fatalf("expected not beating before Start")
	}
	hb2.Start(5000)
	if !hb2.Beating() {
		t.Fatalf("expected beating after Start")
	}
	if hb2.Refresh() != true {
		t.Errorf("Refresh on an armed timer should report wasBeating=true")
	}
	hb2.Stop()
	if hb2.Beating() {
		t.Errorf("expected not beating after Stop")
	}
	if hb2.Refresh() != false {
		t.Errorf("Refresh after Stop should report wasBeating=false")
	}
}

func TestHeartbeat_StartIsNoOpWhenAlreadyBeating(t *testing.T) {
	hb := NewHeartbeat(func() {})
	hb.Start(1000)
	hb.Start(999999) // must not replace the already-armed timer
	if !hb.Beating() {
		t.Fatalf("expected still beating")
	}
	hb.Stop()
}

func TestHeartbeat_UpdateIntervalNoOpWhenNotBeating(t *testing.T) {
	hb := NewHeartbeat(func() {})
	hb.UpdateInterval(1000)
	if hb.Beating() {
		t.Errorf("UpdateInterval must not start a stopped heartbeat")
	}
}

func TestHeartbeat_FiresOnceIntervalElapses(t *testing.T) {
	done := make(chan struct{})
	hb := &Heartbeat{}
	hb.onAttack = func() { close(done) }
	hb.interval = 20 * time.Millisecond
	hb.beating = true
	hb.timer = time.AfterFunc(hb.interval, hb.fire)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("expected heartbeat to fire within 1s")
	}
	if hb.Beating() {
		t.Errorf("expected beating=false after fire")
	}
}
