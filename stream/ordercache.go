package stream

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// applyOrderAccountChange applies one wire OrderAccountChange to the
// decoder-owned order cache map, per §4.4.
func applyOrderAccountChange(markets map[string]*OrderAccountCache, oc orderAccountChangeWire, deltas *[]string) {
	if oc.FullImage && len(oc.ORC) == 0 {
		if _, ok := markets[oc.ID]; ok {
			delete(markets, oc.ID)
			*deltas = append(*deltas, fmt.Sprintf("order market %s removed (full image, no runners)", oc.ID))
		}
		return
	}

	cache, ok := markets[oc.ID]
	if !ok {
		cache = newOrderAccountCache(oc.ID)
		markets[oc.ID] = cache
	}

	if oc.Closed != nil {
		cache.Closed = *oc.Closed
	}

	for _, orc := range oc.ORC {
		runner, ok := cache.Runners[orc.ID]
		if !ok || orc.FullImage {
			runner = newOrderRunnerCache(orc.ID)
			cache.Runners[orc.ID] = runner
		}
		applyOrderRunnerChange(oc.ID, runner, orc, deltas)
	}
}

func applyOrderRunnerChange(marketID string, r *OrderRunnerCache, orc orderRunnerChangeWire, deltas *[]string) {
	for _, uo := range orc.UO {
		order := &UnmatchedOrder{
			ID:                  uo.ID,
			Price:               decimal.NewFromFloat(uo.Price),
			Size:                decimal.NewFromFloat(uo.Size),
			Side:                OrderSide(uo.Side),
			Status:              OrderStatus(uo.Status),
			Persistence:         uo.Persistence,
			Type:                uo.Type,
			PlacedDate:          uo.PlacedDate,
			SizeMatched:         decimal.NewFromFloat(uo.SizeMatched),
			SizeRemaining:       decimal.NewFromFloat(uo.SizeRemaining),
			SizeLapsed:          decimal.NewFromFloat(uo.SizeLapsed),
			SizeCancelled:       decimal.NewFromFloat(uo.SizeCancelled),
			SizeVoided:          decimal.NewFromFloat(uo.SizeVoided),
			AveragePriceMatched: decimal.NewFromFloat(uo.AveragePriceMatched),
		}
		// Unmatched orders are always a full snapshot, never a delta on
		// their counters — upsert replaces the whole entry.
		r.Unmatched[uo.ID] = order
		*deltas = append(*deltas, fmt.Sprintf("order %s runner %d status=%s remaining=%s", uo.ID, r.SelectionID, uo.Status, order.SizeRemaining.String()))
	}

	for _, pair := range orc.MB {
		price := decimal.NewFromFloat(pair[0])
		size := decimal.NewFromFloat(pair[1])
		if r.MatchedBack.Upsert(price, size) {
			*deltas = append(*deltas, fmt.Sprintf("runner %d matched-back %s@%s", r.SelectionID, size.String(), price.String()))
		}
	}
	for _, pair := range orc.ML {
		price := decimal.NewFromFloat(pair[0])
		size := decimal.NewFromFloat(pair[1])
		if r.MatchedLay.Upsert(price, size) {
			*deltas = append(*deltas, fmt.Sprintf("runner %d matched-lay %s@%s", r.SelectionID, size.String(), price.String()))
		}
	}

	for ref, smc := range orc.SMC {
		sm, ok := r.Strategies[ref]
		if !ok {
			sm = newStrategyMatches()
			r.Strategies[ref] = sm
		}
		for _, pair := range smc.MB {
			sm.MatchedBack.Upsert(decimal.NewFromFloat(pair[0]), decimal.NewFromFloat(pair[1]))
		}
		for _, pair := range smc.ML {
			sm.MatchedLay.Upsert(decimal.NewFromFloat(pair[0]), decimal.NewFromFloat(pair[1]))
		}
	}

	_ = marketID
}
