package stream

import "github.com/shopspring/decimal"

// OrderSide is which side of the book an order rests on.
type OrderSide string

const (
	SideBack OrderSide = "B"
	SideLay  OrderSide = "L"
)

// OrderStatus is an unmatched order's executable lifecycle state. The
// order stream only ever reports these two: fully matched, cancelled, or
// lapsed orders simply stop appearing in a full-image reset, they are
// never reported as a terminal status.
type OrderStatus string

const (
	OrderExecutable       OrderStatus = "E"
	OrderExecutionComplete OrderStatus = "EC"
)

// UnmatchedOrder is always delivered as a full snapshot, never a delta
// on its counters — the decoder upserts the whole struct on every sight.
type UnmatchedOrder struct {
	ID          string
	Price       decimal.Decimal
	Size        decimal.Decimal
	Side        OrderSide
	Status      OrderStatus
	Persistence string
	Type        string
	PlacedDate  int64

	SizeMatched         decimal.Decimal
	SizeRemaining       decimal.Decimal
	SizeLapsed          decimal.Decimal
	SizeCancelled       decimal.Decimal
	SizeVoided          decimal.Decimal
	AveragePriceMatched decimal.Decimal
}

// StrategyMatches holds the matched-back/matched-lay ladders scoped to
// one customer strategy reference.
type StrategyMatches struct {
	MatchedBack Ladder
	MatchedLay  Ladder
}

func newStrategyMatches() *StrategyMatches {
	return &StrategyMatches{MatchedBack: NewLadder(), MatchedLay: NewLadder()}
}

// OrderRunnerCache is the decoder's owned view of one selection's orders
// within an account's market position.
type OrderRunnerCache struct {
	SelectionID int64
	Unmatched   map[string]*UnmatchedOrder
	MatchedBack Ladder
	MatchedLay  Ladder
	Strategies  map[string]*StrategyMatches
}

func newOrderRunnerCache(selectionID int64) *OrderRunnerCache {
	return &OrderRunnerCache{
		SelectionID: selectionID,
		Unmatched:   make(map[string]*UnmatchedOrder),
		MatchedBack: NewLadder(),
		MatchedLay:  NewLadder(),
		Strategies:  make(map[string]*StrategyMatches),
	}
}

func (o *OrderRunnerCache) clone() *OrderRunnerCache {
	c := &OrderRunnerCache{
		SelectionID: o.SelectionID,
		Unmatched:   make(map[string]*UnmatchedOrder, len(o.Unmatched)),
		MatchedBack: o.MatchedBack.Clone(),
		MatchedLay:  o.MatchedLay.Clone(),
		Strategies:  make(map[string]*StrategyMatches, len(o.Strategies)),
	}
	for id, u := range o.Unmatched {
		cp := *u
		c.Unmatched[id] = &cp
	}
	for ref, sm := range o.Strategies {
		c.Strategies[ref] = &StrategyMatches{MatchedBack: sm.MatchedBack.Clone(), MatchedLay: sm.MatchedLay.Clone()}
	}
	return c
}

// OrderAccountCache is the decoder's owned view of an account's orders
// within one market.
type OrderAccountCache struct {
	MarketID string
	Closed   bool
	Runners  map[int64]*OrderRunnerCache
}

func newOrderAccountCache(marketID string) *OrderAccountCache {
	return &OrderAccountCache{MarketID: marketID, Runners: make(map[int64]*OrderRunnerCache)}
}

// Snapshot is an independent deep copy safe to retain past the callback.
func (o *OrderAccountCache) Snapshot() *OrderAccountCache {
	c := &OrderAccountCache{MarketID: o.MarketID, Closed: o.Closed, Runners: make(map[int64]*OrderRunnerCache, len(o.Runners))}
	for id, r := range o.Runners {
		c.Runners[id] = r.clone()
	}
	return c
}
