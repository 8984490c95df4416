package recorder

import (
	"encoding/json"
	"sync"

	"github.com/fd1az/betexstream/stream"
)

// Bridge wires a Stream's raw-data tap and market/order callbacks into a
// Recorder: every inbound line is appended to the raw log immediately,
// and a structured snapshot is written every snapshotEvery market-change
// frames (or unconditionally once a market reaches "truly complete",
// §4.3 — the server's own complete flag is never consulted here either).
type Bridge struct {
	rec           Recorder
	snapshotEvery int

	mu          sync.Mutex
	generations map[string]int64
	completed   map[string]bool
}

// NewBridge wires rec behind the returned Bridge. snapshotEvery <= 0
// means "snapshot on every frame".
func NewBridge(rec Recorder, snapshotEvery int) *Bridge {
	return &Bridge{
		rec:           rec,
		snapshotEvery: snapshotEvery,
		generations:   make(map[string]int64),
		completed:     make(map[string]bool),
	}
}

// OnRawData is a stream.RawFunc.
func (b *Bridge) OnRawData(line []byte) {
	// The raw tap fires once per line, before the line is attributed to
	// any one market by the decoder, so every configured market shares
	// the same raw stream under a synthetic "_session" key.
	_ = b.rec.WriteRaw("_session", line)
}

// OnMarketChange is a stream.MarketChangeFunc.
func (b *Bridge) OnMarketChange(markets map[string]*stream.MarketCache, deltas []string) {
	for id, m := range markets {
		b.mu.Lock()
		gen := b.generations[id] + 1
		b.generations[id] = gen
		already := b.completed[id]
		b.mu.Unlock()

		trulyComplete := m.TrulyComplete()
		due := b.snapshotEvery <= 0 || gen%int64(b.snapshotEvery) == 0 || (trulyComplete && !already)
		if !due {
			continue
		}

		payload, err := json.Marshal(m)
		if err != nil {
			continue
		}
		_ = b.rec.WriteMarketSnapshot(id, gen, payload)

		if trulyComplete && !already {
			_ = b.rec.MarkComplete(id)
			b.mu.Lock()
			b.completed[id] = true
			b.mu.Unlock()
		}
	}
}

// OnOrderChange is a stream.OrderChangeFunc.
func (b *Bridge) OnOrderChange(markets map[string]*stream.OrderAccountCache, deltas []string) {
	for id, m := range markets {
		b.mu.Lock()
		gen := b.generations["order:"+id] + 1
		b.generations["order:"+id] = gen
		b.mu.Unlock()

		if b.snapshotEvery > 0 && gen%int64(b.snapshotEvery) != 0 {
			continue
		}
		payload, err := json.Marshal(m)
		if err != nil {
			continue
		}
		_ = b.rec.WriteOrderSnapshot(id, gen, payload)
	}
}
