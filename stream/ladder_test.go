package stream

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestLadder_UpsertAndDeleteOnZero(t *testing.T) {
	l := NewLadder()

	if changed := l.Upsert(d("2.5"), d("50")); !changed {
		t.Fatalf("expected insert to report change")
	}
	if changed := l.Upsert(d("2.5"), d("50")); changed {
		t.Errorf("expected identical upsert to report no change")
	}
	if changed := l.Upsert(d("2.5"), d("75")); !changed {
		t.Errorf("expected size change to report change")
	}

	ps, ok := l.Get(d("2.5"))
	if !ok || !ps.Size.Equal(d("75")) {
		t.Fatalf("Get = %+v, %v; want size 75", ps, ok)
	}

	if changed := l.Upsert(d("2.5"), d("0")); !changed {
		t.Fatalf("expected size-0 upsert to delete and report change")
	}
	if _, ok := l.Get(d("2.5")); ok {
		t.Errorf("expected level removed after size-0 upsert")
	}
	if changed := l.Upsert(d("2.5"), d("0")); changed {
		t.Errorf("expected size-0 upsert on absent level to be a no-op")
	}
}

func TestLadder_PriceKeyNormalization(t *testing.T) {
	l := NewLadder()
	l.Upsert(d("2.50"), d("10"))
	if _, ok := l.Get(d("2.5")); !ok {
		t.Errorf("expected 2.50 and 2.5 to collide on the same level")
	}
}

func TestLadder_AscendingDescending(t *testing.T) {
	l := NewLadder()
	l.Upsert(d("2.5"), d("10"))
	l.Upsert(d("2.2"), d("20"))
	l.Upsert(d("2.8"), d("30"))

	asc := l.Ascending()
	if len(asc) != 3 || !asc[0].Price.Equal(d("2.2")) || !asc[2].Price.Equal(d("2.8")) {
		t.Fatalf("Ascending order wrong: %+v", asc)
	}

	desc := l.Descending()
	if !desc[0].Price.Equal(d("2.8")) || !desc[2].Price.Equal(d("2.2")) {
		t.Fatalf("Descending order wrong: %+v", desc)
	}
}

func TestLadder_Clone_Independent(t *testing.T) {
	l := NewLadder()
	l.Upsert(d("2.5"), d("10"))

	clone := l.Clone()
	clone.Upsert(d("2.5"), d("999"))

	ps, _ := l.Get(d("2.5"))
	if !ps.Size.Equal(d("10")) {
		t.Errorf("mutation of clone leaked into original: %s", ps.Size)
	}
}

func TestDepthLadder_UpsertAndDeleteOnZero(t *testing.T) {
	dl := NewDepthLadder()
	dl.Upsert(0, d("2.5"), d("50"))
	dl.Upsert(1, d("2.4"), d("30"))

	levels := dl.ByLevel()
	if len(levels) != 2 || levels[0].Level != 0 || levels[1].Level != 1 {
		t.Fatalf("ByLevel wrong order: %+v", levels)
	}

	dl.Upsert(0, d("0"), d("0"))
	levels = dl.ByLevel()
	if len(levels) != 1 || levels[0].Level != 1 {
		t.Fatalf("expected level 0 removed: %+v", levels)
	}
}

func TestAllZero(t *testing.T) {
	if allZero(nil) {
		t.Errorf("empty batch should not count as all-zero")
	}
	if !allZero([]PriceSize{{Price: d("2.5"), Size: d("0")}}) {
		t.Errorf("single zero-size update should be all-zero")
	}
	if allZero([]PriceSize{{Price: d("2.5"), Size: d("0")}, {Price: d("2.6"), Size: d("1")}}) {
		t.Errorf("mixed batch should not be all-zero")
	}
}
