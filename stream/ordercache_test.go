package stream

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestApplyOrderAccountChange_FullImageEmptyRemovesMarket(t *testing.T) {
	markets := make(map[string]*OrderAccountCache)
	deltas := []string{}

	applyOrderAccountChange(markets, orderAccountChangeWire{
		ID:  "1.1",
		ORC: []orderRunnerChangeWire{{ID: 10, UO: []unmatchedOrderWire{{ID: "o1", Price: 2.5, Size: 10, Side: "B", Status: "E"}}}},
	}, &deltas)
	if _, ok := markets["1.1"]; !ok {
		t.Fatalf("expected market created")
	}

	applyOrderAccountChange(markets, orderAccountChangeWire{ID: "1.1", FullImage: true, ORC: nil}, &deltas)
	if _, ok := markets["1.1"]; ok {
		t.Errorf("expected fullImage with no runners to remove the market")
	}
}

func TestApplyOrderRunnerChange_UnmatchedOrderIsFullSnapshot(t *testing.T) {
	markets := make(map[string]*OrderAccountCache)
	deltas := []string{}

	applyOrderAccountChange(markets, orderAccountChangeWire{
		ID: "1.1",
		ORC: []orderRunnerChangeWire{{
			ID: 10,
			UO: []unmatchedOrderWire{{ID: "o1", Price: 2.5, Size: 10, Side: "B", Status: "E", SizeRemaining: 10}},
		}},
	}, &deltas)

	applyOrderAccountChange(markets, orderAccountChangeWire{
		ID: "1.1",
		ORC: []orderRunnerChangeWire{{
			ID: 10,
			UO: []unmatchedOrderWire{{ID: "o1", Price: 2.5, Size: 10, Side: "B", Status: "EC", SizeRemaining: 0, SizeMatched: 10}},
		}},
	}, &deltas)

	order := markets["1.1"].Runners[10].Unmatched["o1"]
	if order.Status != OrderExecutionComplete {
		t.Errorf("Status = %s, want EC (full snapshot replace)", order.Status)
	}
	if !order.SizeRemaining.IsZero() {
		t.Errorf("SizeRemaining = %s, want 0", order.SizeRemaining)
	}
}

func TestApplyOrderRunnerChange_MatchedLaddersSparseUpsert(t *testing.T) {
	markets := make(map[string]*OrderAccountCache)
	deltas := []string{}

	applyOrderAccountChange(markets, orderAccountChangeWire{
		ID:  "1.1",
		ORC: []orderRunnerChangeWire{{ID: 10, MB: [][2]float64{{2.5, 10}, {2.6, 5}}}},
	}, &deltas)
	applyOrderAccountChange(markets, orderAccountChangeWire{
		ID:  "1.1",
		ORC: []orderRunnerChangeWire{{ID: 10, MB: [][2]float64{{2.6, 0}}}},
	}, &deltas)

	runner := markets["1.1"].Runners[10]
	if _, ok := runner.MatchedBack.Get(decimal.NewFromFloat(2.6)); ok {
		t.Errorf("expected 2.6 level removed by size-0 update")
	}
	if _, ok := runner.MatchedBack.Get(decimal.NewFromFloat(2.5)); !ok {
		t.Errorf("expected untouched 2.5 level to survive")
	}
}

func TestApplyOrderRunnerChange_StrategyScopedMatches(t *testing.T) {
	markets := make(map[string]*OrderAccountCache)
	deltas := []string{}

	applyOrderAccountChange(markets, orderAccountChangeWire{
		ID: "1.1",
		ORC: []orderRunnerChangeWire{{
			ID: 10,
			SMC: map[string]strategyMatchChangeWire{
				"strat-a": {MB: [][2]float64{{2.5, 10}}},
			},
		}},
	}, &deltas)

	runner := markets["1.1"].Runners[10]
	sm, ok := runner.Strategies["strat-a"]
	if !ok {
		t.Fatalf("expected strategy strat-a tracked")
	}
	ps, ok := sm.MatchedBack.Get(decimal.NewFromFloat(2.5))
	if !ok || !ps.Size.Equal(decimal.NewFromInt(10)) {
		t.Errorf("strategy matched-back wrong: %+v", ps)
	}
}

func TestOrderAccountCache_SnapshotIsIndependent(t *testing.T) {
	markets := make(map[string]*OrderAccountCache)
	deltas := []string{}
	applyOrderAccountChange(markets, orderAccountChangeWire{
		ID:  "1.1",
		ORC: []orderRunnerChangeWire{{ID: 10, MB: [][2]float64{{2.5, 10}}}},
	}, &deltas)

	snap := markets["1.1"].Snapshot()
	markets["1.1"].Runners[10].MatchedBack.Upsert(decimal.NewFromFloat(2.5), decimal.NewFromInt(999))

	ps, _ := snap.Runners[10].MatchedBack.Get(decimal.NewFromFloat(2.5))
	if !ps.Size.Equal(decimal.NewFromInt(10)) {
		t.Errorf("snapshot leaked mutation: got %s want 10", ps.Size)
	}
}
