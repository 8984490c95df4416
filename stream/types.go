// Package stream implements a client for a betting exchange's real-time
// streaming protocol: a TLS session manager, a segmentation-aware message
// decoder, and a delta-driven market/order cache engine.
package stream

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// RunnerStatus is a selection's lifecycle status within a market.
type RunnerStatus string

const (
	RunnerActive         RunnerStatus = "ACTIVE"
	RunnerWinner         RunnerStatus = "WINNER"
	RunnerLoser          RunnerStatus = "LOSER"
	RunnerPlaced         RunnerStatus = "PLACED"
	RunnerRemovedVacant  RunnerStatus = "REMOVED_VACANT"
	RunnerRemoved        RunnerStatus = "REMOVED"
	RunnerHidden         RunnerStatus = "HIDDEN"
)

// terminal reports whether a runner status can no longer change.
func (s RunnerStatus) terminal() bool {
	switch s {
	case RunnerWinner, RunnerLoser, RunnerPlaced, RunnerRemovedVacant, RunnerRemoved:
		return true
	default:
		return false
	}
}

// MarketStatus is a market's overall lifecycle status.
type MarketStatus string

const (
	MarketInactive  MarketStatus = "INACTIVE"
	MarketOpen      MarketStatus = "OPEN"
	MarketSuspended MarketStatus = "SUSPENDED"
	MarketClosed    MarketStatus = "CLOSED"
)

// RunnerDefinition is a selection's entry within a market definition blob.
type RunnerDefinition struct {
	ID     int64        `json:"id"`
	Status RunnerStatus `json:"status"`
	BSP    *float64     `json:"bsp,omitempty"`
}

// MarketDefinition is the last full definition blob received for a
// market: venue, event, timings, status, and runner list. Raw preserves
// the full payload as received; Status and Runners are extracted for the
// merge logic that needs them.
type MarketDefinition struct {
	Status  MarketStatus
	// Complete is the server's own self-reported completion flag. It is
	// surfaced for callers who want it, but TrulyComplete below never
	// consults it — the server's flag is not authoritative (§4.3).
	Complete bool
	Runners  []RunnerDefinition
	Raw      json.RawMessage
}

// RunnerCache is the decoder's owned view of one selection within a
// market. Ladders never contain a size-0 entry: the wire's size-0 update
// is a removal, not a resting zero-size level.
type RunnerCache struct {
	ID     int64
	Status RunnerStatus

	LastTradedPrice   decimal.Decimal
	TotalVolume       decimal.Decimal
	StartingPriceNear decimal.Decimal
	StartingPriceFar  decimal.Decimal
	AdjustmentFactor  decimal.Decimal

	AvailableToBack   Ladder
	AvailableToLay    Ladder
	StartingPriceBack Ladder
	StartingPriceLay  Ladder
	Traded            Ladder

	BestAvailableToBack         DepthLadder
	BestAvailableToLay          DepthLadder
	BestDisplayAvailableToBack  DepthLadder
	BestDisplayAvailableToLay   DepthLadder
}

func newRunnerCache(id int64) *RunnerCache {
	return &RunnerCache{
		ID:                         id,
		Status:                     RunnerActive,
		AvailableToBack:            NewLadder(),
		AvailableToLay:             NewLadder(),
		StartingPriceBack:          NewLadder(),
		StartingPriceLay:           NewLadder(),
		Traded:                     NewLadder(),
		BestAvailableToBack:        NewDepthLadder(),
		BestAvailableToLay:         NewDepthLadder(),
		BestDisplayAvailableToBack: NewDepthLadder(),
		BestDisplayAvailableToLay:  NewDepthLadder(),
	}
}

// clone returns a deep, independent copy for handing to callbacks as a
// snapshot borrow.
func (r *RunnerCache) clone() *RunnerCache {
	c := *r
	c.AvailableToBack = r.AvailableToBack.Clone()
	c.AvailableToLay = r.AvailableToLay.Clone()
	c.StartingPriceBack = r.StartingPriceBack.Clone()
	c.StartingPriceLay = r.StartingPriceLay.Clone()
	c.Traded = r.Traded.Clone()
	c.BestAvailableToBack = r.BestAvailableToBack.Clone()
	c.BestAvailableToLay = r.BestAvailableToLay.Clone()
	c.BestDisplayAvailableToBack = r.BestDisplayAvailableToBack.Clone()
	c.BestDisplayAvailableToLay = r.BestDisplayAvailableToLay.Clone()
	return &c
}

// MarketCache is the decoder's owned view of one market.
type MarketCache struct {
	MarketID     string
	Definition   *MarketDefinition
	Runners      map[int64]*RunnerCache
	TotalMatched decimal.Decimal
	PublishTime  int64
}

func newMarketCache(id string) *MarketCache {
	return &MarketCache{
		MarketID: id,
		Runners:  make(map[int64]*RunnerCache),
	}
}

// TrulyComplete implements the §4.3 completion rule, independent of the
// server's own `complete` flag: CLOSED, or SUSPENDED with every runner in
// a terminal status.
func (m *MarketCache) TrulyComplete() bool {
	if m.Definition == nil {
		return false
	}
	switch m.Definition.Status {
	case MarketClosed:
		return true
	case MarketSuspended:
		for _, r := range m.Runners {
			if !r.Status.terminal() {
				return false
			}
		}
		return len(m.Runners) > 0
	default:
		return false
	}
}

// Snapshot is an independent deep copy safe to retain past the callback
// that received it, satisfying the "don't retain the borrow" rule for
// callers that fan work out to other goroutines.
func (m *MarketCache) Snapshot() *MarketCache {
	c := &MarketCache{
		MarketID:     m.MarketID,
		Definition:   m.Definition,
		TotalMatched: m.TotalMatched,
		PublishTime:  m.PublishTime,
		Runners:      make(map[int64]*RunnerCache, len(m.Runners)),
	}
	for id, r := range m.Runners {
		c.Runners[id] = r.clone()
	}
	return c
}
