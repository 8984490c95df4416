package recorder

import (
	"testing"

	"github.com/fd1az/betexstream/stream"
)

type fakeRecorder struct {
	rawLines      [][]byte
	marketWrites  int
	orderWrites   int
	completedIDs  []string
}

func (f *fakeRecorder) WriteRaw(marketID string, line []byte) error {
	f.rawLines = append(f.rawLines, line)
	return nil
}
func (f *fakeRecorder) WriteMarketSnapshot(marketID string, generation int64, payload []byte) error {
	f.marketWrites++
	return nil
}
func (f *fakeRecorder) WriteOrderSnapshot(marketID string, generation int64, payload []byte) error {
	f.orderWrites++
	return nil
}
func (f *fakeRecorder) MarkComplete(marketID string) error {
	f.completedIDs = append(f.completedIDs, marketID)
	return nil
}
func (f *fakeRecorder) Close() error { return nil }

func TestBridge_OnRawData_AppendsEveryLine(t *testing.T) {
	fr := &fakeRecorder{}
	b := NewBridge(fr, 1)
	b.OnRawData([]byte(`{"op":"connection"}`))
	b.OnRawData([]byte(`{"op":"status"}`))
	if len(fr.rawLines) != 2 {
		t.Fatalf("expected 2 raw lines recorded, got %d", len(fr.rawLines))
	}
}

func TestBridge_OnMarketChange_SnapshotsEveryFrameWhenEveryIsOne(t *testing.T) {
	fr := &fakeRecorder{}
	b := NewBridge(fr, 1)

	markets := map[string]*stream.MarketCache{
		"1.1": {MarketID: "1.1", Runners: map[int64]*stream.RunnerCache{}},
	}
	b.OnMarketChange(markets, nil)
	b.OnMarketChange(markets, nil)
	if fr.marketWrites != 2 {
		t.Errorf("expected a snapshot written every frame, got %d writes", fr.marketWrites)
	}
}

func TestBridge_OnMarketChange_MarksCompleteOnce(t *testing.T) {
	fr := &fakeRecorder{}
	b := NewBridge(fr, 1)

	complete := map[string]*stream.MarketCache{
		"1.1": {MarketID: "1.1", Definition: &stream.MarketDefinition{Status: stream.MarketClosed}, Runners: map[int64]*stream.RunnerCache{}},
	}
	b.OnMarketChange(complete, nil)
	b.OnMarketChange(complete, nil)

	if len(fr.completedIDs) != 1 {
		t.Errorf("expected MarkComplete called exactly once, got %d calls: %v", len(fr.completedIDs), fr.completedIDs)
	}
}

func TestBridge_OnMarketChange_SnapshotIntervalSkipsFrames(t *testing.T) {
	fr := &fakeRecorder{}
	b := NewBridge(fr, 3)

	markets := map[string]*stream.MarketCache{
		"1.1": {MarketID: "1.1", Runners: map[int64]*stream.RunnerCache{}},
	}
	for i := 0; i < 3; i++ {
		b.OnMarketChange(markets, nil)
	}
	if fr.marketWrites != 1 {
		t.Errorf("expected exactly 1 snapshot across 3 frames at interval 3, got %d", fr.marketWrites)
	}
}
