package stream

import (
	"sort"

	"github.com/shopspring/decimal"
)

// PriceSize is a (price, size) pair. Size 0 is never stored — it is the
// wire sentinel for "remove this level", never a resting value.
type PriceSize struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// Ladder is a sparse price -> size mapping, keyed by the price's decimal
// string so that 2.5 and 2.50 collide on the same level. Insertion order
// is irrelevant; see Ascending/Descending for sorted views.
type Ladder map[string]PriceSize

// NewLadder returns an empty ladder.
func NewLadder() Ladder {
	return make(Ladder)
}

// Upsert applies a sparse (price, size) update: size 0 deletes the level
// (a no-op if the level didn't exist), any other size upserts it.
// Reports whether the ladder's contents changed.
func (l Ladder) Upsert(price, size decimal.Decimal) bool {
	key := price.String()
	if size.IsZero() {
		if _, ok := l[key]; !ok {
			return false
		}
		delete(l, key)
		return true
	}
	existing, ok := l[key]
	if ok && existing.Size.Equal(size) {
		return false
	}
	l[key] = PriceSize{Price: price, Size: size}
	return true
}

// Get returns the level at price, if any.
func (l Ladder) Get(price decimal.Decimal) (PriceSize, bool) {
	ps, ok := l[price.String()]
	return ps, ok
}

// Clone returns an independent copy, used when handing a borrow to a
// callback that must not observe subsequent mutation.
func (l Ladder) Clone() Ladder {
	out := make(Ladder, len(l))
	for k, v := range l {
		out[k] = v
	}
	return out
}

// Ascending returns levels sorted by increasing price.
func (l Ladder) Ascending() []PriceSize {
	out := l.values()
	sort.Slice(out, func(i, j int) bool { return out[i].Price.LessThan(out[j].Price) })
	return out
}

// Descending returns levels sorted by decreasing price.
func (l Ladder) Descending() []PriceSize {
	out := l.values()
	sort.Slice(out, func(i, j int) bool { return out[i].Price.GreaterThan(out[j].Price) })
	return out
}

func (l Ladder) values() []PriceSize {
	out := make([]PriceSize, 0, len(l))
	for _, v := range l {
		out = append(out, v)
	}
	return out
}

// allZero reports whether every size in a raw (price,size) update batch
// is zero — used by the trd-ladder "settlement zeroing" guard.
func allZero(updates []PriceSize) bool {
	for _, u := range updates {
		if !u.Size.IsZero() {
			return false
		}
	}
	return len(updates) > 0
}

// DepthLevel is a (level, price, size) triple: level is a ladder
// position, 0 = best.
type DepthLevel struct {
	Level int
	Price decimal.Decimal
	Size  decimal.Decimal
}

// DepthLadder is a sparse level -> (price, size) mapping for best-n
// "display" ladders (batb/batl).
type DepthLadder map[int]PriceSize

// NewDepthLadder returns an empty depth ladder.
func NewDepthLadder() DepthLadder {
	return make(DepthLadder)
}

// Upsert applies a (level, price, size) update; size 0 deletes the level.
func (d DepthLadder) Upsert(level int, price, size decimal.Decimal) bool {
	if size.IsZero() {
		if _, ok := d[level]; !ok {
			return false
		}
		delete(d, level)
		return true
	}
	existing, ok := d[level]
	if ok && existing.Price.Equal(price) && existing.Size.Equal(size) {
		return false
	}
	d[level] = PriceSize{Price: price, Size: size}
	return true
}

// Clone returns an independent copy.
func (d DepthLadder) Clone() DepthLadder {
	out := make(DepthLadder, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// ByLevel returns entries sorted by ladder position (0 = best first).
func (d DepthLadder) ByLevel() []DepthLevel {
	out := make([]DepthLevel, 0, len(d))
	for lvl, ps := range d {
		out = append(out, DepthLevel{Level: lvl, Price: ps.Price, Size: ps.Size})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Level < out[j].Level })
	return out
}
