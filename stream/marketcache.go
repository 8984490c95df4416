package stream

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// applyMarketChange applies one wire MarketChange to the decoder-owned
// market cache map, per §4.3, appending human-readable entries to deltas.
func applyMarketChange(markets map[string]*MarketCache, mc marketChangeWire, currencyRate decimal.Decimal, deltas *[]string) {
	cache, ok := markets[mc.ID]
	if !ok {
		cache = newMarketCache(mc.ID)
		markets[mc.ID] = cache
	}

	if mc.Img {
		cache.Runners = make(map[int64]*RunnerCache)
	}

	if mc.MarketDefinition != nil {
		applyMarketDefinition(cache, mc.MarketDefinition, deltas)
	}

	if mc.TV != nil {
		cache.TotalMatched = convertVolume(decimal.NewFromFloat(*mc.TV), currencyRate)
	}

	for _, rc := range mc.RC {
		runner, ok := cache.Runners[rc.ID]
		if !ok {
			runner = newRunnerCache(rc.ID)
			cache.Runners[rc.ID] = runner
		}
		applyRunnerChange(mc.ID, runner, rc, currencyRate, deltas)
	}
}

func applyMarketDefinition(cache *MarketCache, def *marketDefWire, deltas *[]string) {
	newDef := &MarketDefinition{
		Status:   MarketStatus(def.Status),
		Complete: def.Complete,
		Runners:  make([]RunnerDefinition, len(def.Runners)),
	}
	for i, rd := range def.Runners {
		newDef.Runners[i] = RunnerDefinition{ID: rd.ID, Status: RunnerStatus(rd.Status), BSP: rd.BSP}

		runner, ok := cache.Runners[rd.ID]
		if !ok {
			runner = newRunnerCache(rd.ID)
			cache.Runners[rd.ID] = runner
		}
		if runner.Status != RunnerStatus(rd.Status) {
			*deltas = append(*deltas, fmt.Sprintf("runner %d status %s -> %s", rd.ID, runner.Status, rd.Status))
			runner.Status = RunnerStatus(rd.Status)
		}
	}
	cache.Definition = newDef
	*deltas = append(*deltas, fmt.Sprintf("market %s definition updated (status=%s)", cache.MarketID, def.Status))
}

func applyRunnerChange(marketID string, r *RunnerCache, rc runnerChangeWire, currencyRate decimal.Decimal, deltas *[]string) {
	if rc.LTP != nil {
		r.LastTradedPrice = decimal.NewFromFloat(*rc.LTP)
		*deltas = append(*deltas, fmt.Sprintf("runner %d ltp=%s", rc.ID, r.LastTradedPrice.String()))
	}
	if rc.SPN != nil {
		r.StartingPriceNear = decimal.NewFromFloat(*rc.SPN)
		*deltas = append(*deltas, fmt.Sprintf("runner %d bsp-near updated", rc.ID))
	}
	if rc.SPF != nil {
		r.StartingPriceFar = decimal.NewFromFloat(*rc.SPF)
		*deltas = append(*deltas, fmt.Sprintf("runner %d bsp-far updated", rc.ID))
	}

	if rc.TV != nil {
		incoming := decimal.NewFromFloat(*rc.TV)
		// Preserve the stored total volume across a zeroing update at
		// settlement time: an incoming 0 never overwrites a non-zero
		// stored value.
		if !(incoming.IsZero() && !r.TotalVolume.IsZero()) {
			r.TotalVolume = convertVolume(incoming, currencyRate)
		}
	}

	applySparseLadder(r.AvailableToBack, rc.ATB, currencyRate, "atb", rc.ID, deltas)
	applySparseLadder(r.AvailableToLay, rc.ATL, currencyRate, "atl", rc.ID, deltas)
	applySparseLadder(r.StartingPriceBack, rc.SPB, currencyRate, "spb", rc.ID, deltas)
	applySparseLadder(r.StartingPriceLay, rc.SPL, currencyRate, "spl", rc.ID, deltas)

	if len(rc.TRD) > 0 {
		updates := toPriceSizes(rc.TRD, currencyRate)
		if allZero(updates) && len(r.Traded) > 0 {
			// Same settlement-zeroing guard as tv: an all-zero trd batch
			// never wipes an already-populated traded ladder.
		} else {
			for _, u := range updates {
				if r.Traded.Upsert(u.Price, u.Size) {
					*deltas = append(*deltas, fmt.Sprintf("runner %d traded %s@%s", rc.ID, u.Size.String(), u.Price.String()))
				}
			}
		}
	}

	applyDepthLadder(r.BestAvailableToBack, rc.BATB, currencyRate)
	applyDepthLadder(r.BestAvailableToLay, rc.BATL, currencyRate)
	applyDepthLadder(r.BestDisplayAvailableToBack, rc.BDATB, currencyRate)
	applyDepthLadder(r.BestDisplayAvailableToLay, rc.BDATL, currencyRate)

	_ = marketID
}

func applySparseLadder(l Ladder, raw [][2]float64, currencyRate decimal.Decimal, name string, runnerID int64, deltas *[]string) {
	for _, pair := range raw {
		price := decimal.NewFromFloat(pair[0])
		size := convertVolume(decimal.NewFromFloat(pair[1]), currencyRate)
		if l.Upsert(price, size) {
			*deltas = append(*deltas, fmt.Sprintf("runner %d %s %s@%s", runnerID, name, size.String(), price.String()))
		}
	}
}

func applyDepthLadder(d DepthLadder, raw [][3]float64, currencyRate decimal.Decimal) {
	for _, triple := range raw {
		level := int(triple[0])
		price := decimal.NewFromFloat(triple[1])
		size := convertVolume(decimal.NewFromFloat(triple[2]), currencyRate)
		d.Upsert(level, price, size)
	}
}

func toPriceSizes(raw [][2]float64, currencyRate decimal.Decimal) []PriceSize {
	out := make([]PriceSize, len(raw))
	for i, pair := range raw {
		out[i] = PriceSize{Price: decimal.NewFromFloat(pair[0]), Size: convertVolume(decimal.NewFromFloat(pair[1]), currencyRate)}
	}
	return out
}

// convertVolume applies the configured currency rate to a volume-like
// field. Prices are never passed through this function — currency
// conversion is deliberately scoped to volumes only (§4.3), and a rate of
// 1.0 must leave values bit-identical.
func convertVolume(v decimal.Decimal, rate decimal.Decimal) decimal.Decimal {
	if rate.Equal(decimal.NewFromInt(1)) {
		return v
	}
	return v.Mul(rate)
}
