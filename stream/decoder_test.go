package stream

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestDecoder_SubImageDispatchesImmediately(t *testing.T) {
	dec := NewDecoder(decimal.NewFromInt(1))
	var gotDeltas []string
	var gotMarkets map[string]*MarketCache
	dec.OnMarketChange = func(m map[string]*MarketCache, deltas []string) {
		gotMarkets = m
		gotDeltas = deltas
	}

	line := []byte(`{"op":"mcm","id":1,"ct":"SUB_IMAGE","mc":[{"id":"1.1","img":true,"rc":[{"id":10,"ltp":2.5}]}]}`)
	handled, err := dec.Feed(line)
	if err != nil || !handled {
		t.Fatalf("Feed() = handled=%v err=%v", handled, err)
	}
	if _, ok := gotMarkets["1.1"]; !ok {
		t.Fatalf("expected market 1.1 in callback snapshot")
	}
	if len(gotDeltas) == 0 {
		t.Errorf("expected at least one delta recorded")
	}
}

func TestDecoder_HeartbeatDoesNotMutateCache(t *testing.T) {
	dec := NewDecoder(decimal.NewFromInt(1))
	heartbeats := 0
	marketCallbacks := 0
	dec.OnHeartbeat = func() { heartbeats++ }
	dec.OnMarketChange = func(map[string]*MarketCache, []string) { marketCallbacks++ }

	line := []byte(`{"op":"mcm","id":1,"ct":"HEARTBEAT"}`)
	if _, err := dec.Feed(line); err != nil {
		t.Fatalf("Feed() error = %v", err)
	}
	if heartbeats != 1 {
		t.Errorf("expected OnHeartbeat invoked once, got %d", heartbeats)
	}
	if marketCallbacks != 0 {
		t.Errorf("heartbeat must not invoke OnMarketChange, got %d calls", marketCallbacks)
	}
}

func TestDecoder_NonChangeOpsAreLeftUnhandled(t *testing.T) {
	dec := NewDecoder(decimal.NewFromInt(1))
	handled, err := dec.Feed([]byte(`{"op":"connection","connectionId":"abc"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if handled {
		t.Errorf("expected connection frames left for the session to classify")
	}
}

func TestDecoder_SegmentationReassembly(t *testing.T) {
	dec := NewDecoder(decimal.NewFromInt(1))
	var gotMarkets map[string]*MarketCache
	var dispatches int
	dec.OnMarketChange = func(m map[string]*MarketCache, deltas []string) {
		gotMarkets = m
		dispatches++
	}

	start := []byte(`{"op":"mcm","id":1,"ct":"SUB_IMAGE","segmentationType":"SEG_START","pt":111,"clk":"c1","mc":[{"id":"1.1","img":true,"rc":[{"id":10,"ltp":2.5}]}]}`)
	middle := []byte(`{"op":"mcm","id":1,"mc":[{"id":"1.1","rc":[{"id":11,"ltp":3.0}]}]}`)
	end := []byte(`{"op":"mcm","id":1,"segmentationType":"SEG_END","pt":222,"clk":"c2","mc":[{"id":"1.1","rc":[{"id":12,"ltp":4.0}]}]}`)

	for _, line := range [][]byte{start, middle, end} {
		if _, err := dec.Feed(line); err != nil {
			t.Fatalf("Feed() error = %v", err)
		}
	}

	if dispatches != 1 {
		t.Fatalf("expected exactly one dispatch for the full segment sequence, got %d", dispatches)
	}
	cache := gotMarkets["1.1"]
	for _, id := range []int64{10, 11, 12} {
		if _, ok := cache.Runners[id]; !ok {
			t.Errorf("expected runner %d merged from across segments", id)
		}
	}
}

func TestDecoder_BareSegEndWithNoBufferDispatchesImmediately(t *testing.T) {
	dec := NewDecoder(decimal.NewFromInt(1))
	dispatches := 0
	dec.OnMarketChange = func(map[string]*MarketCache, []string) { dispatches++ }

	line := []byte(`{"op":"mcm","id":1,"segmentationType":"SEG_END","mc":[{"id":"1.1","img":true,"rc":[{"id":10,"ltp":2.5}]}]}`)
	if _, err := dec.Feed(line); err != nil {
		t.Fatalf("Feed() error = %v", err)
	}
	if dispatches != 1 {
		t.Fatalf("expected a lone SEG_END to dispatch immediately, got %d dispatches", dispatches)
	}
}

func TestDecoder_UnknownSegmentationTypeErrors(t *testing.T) {
	dec := NewDecoder(decimal.NewFromInt(1))
	line := []byte(`{"op":"mcm","id":1,"segmentationType":"BOGUS","mc":[]}`)
	_, err := dec.Feed(line)
	if err == nil {
		t.Fatalf("expected an error for an unknown segmentationType")
	}
}

func TestDecoder_UnparsableLineIsDroppedAndCounted(t *testing.T) {
	dec := NewDecoder(decimal.NewFromInt(1))
	_, err := dec.Feed([]byte(`not json`))
	if err == nil {
		t.Fatalf("expected a parse error")
	}
	if dec.DroppedFrames() != 1 {
		t.Errorf("DroppedFrames() = %d, want 1", dec.DroppedFrames())
	}
}

func TestDecoder_ResetClearsState(t *testing.T) {
	dec := NewDecoder(decimal.NewFromInt(1))
	dec.Feed([]byte(`{"op":"mcm","id":1,"ct":"SUB_IMAGE","mc":[{"id":"1.1","img":true,"rc":[{"id":10,"ltp":2.5}]}]}`))
	if len(dec.Markets()) == 0 {
		t.Fatalf("expected market cached before reset")
	}
	dec.Reset()
	if len(dec.Markets()) != 0 {
		t.Errorf("expected Reset to clear the market cache")
	}
}
