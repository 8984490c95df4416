package stream

import (
	"encoding/json"
	"fmt"

	"github.com/fd1az/betexstream/internal/apperror"
	"github.com/shopspring/decimal"
)

// maxSegmentsPerRequest bounds the segment buffer so a buggy or hostile
// server sending an unterminated SEG_START sequence cannot grow memory
// without bound (§9 design notes).
const maxSegmentsPerRequest = 4096

type segmentKey struct {
	op string
	id int64
}

type segmentBuffer struct {
	segments []changeWire
}

// MarketChangeFunc is invoked once per fully-assembled non-heartbeat mcm
// frame, after the frame's mc entries have all been merged into the
// cache. snapshot is a defensive copy safe to retain past return.
type MarketChangeFunc func(snapshot map[string]*MarketCache, deltas []string)

// OrderChangeFunc is the ocm analogue of MarketChangeFunc.
type OrderChangeFunc func(snapshot map[string]*OrderAccountCache, deltas []string)

// Decoder classifies inbound frames, reassembles segmented change
// messages, and drives the market/order cache merge. It is owned
// exclusively by a Session and is not safe for concurrent use — the
// single-threaded cooperative model in §5 assumes one logical task drives
// it synchronously.
type Decoder struct {
	markets      map[string]*MarketCache
	orderMarkets map[string]*OrderAccountCache
	segments     map[segmentKey]*segmentBuffer
	currencyRate decimal.Decimal

	droppedFrames int64

	OnMarketChange MarketChangeFunc
	OnOrderChange  OrderChangeFunc
	OnHeartbeat    func()
}

// NewDecoder builds an empty decoder applying currencyRate to volume
// fields during merge. A rate of decimal 1 disables conversion.
func NewDecoder(currencyRate decimal.Decimal) *Decoder {
	return &Decoder{
		markets:      make(map[string]*MarketCache),
		orderMarkets: make(map[string]*OrderAccountCache),
		segments:     make(map[segmentKey]*segmentBuffer),
		currencyRate: currencyRate,
	}
}

// Reset clears the market cache, order cache, and segment buffer — used
// on subscribeMarkets and on session restart.
func (d *Decoder) Reset() {
	d.markets = make(map[string]*MarketCache)
	d.orderMarkets = make(map[string]*OrderAccountCache)
	d.segments = make(map[segmentKey]*segmentBuffer)
}

// DroppedFrames returns the count of frames dropped for an unparsable or
// semantically invalid op.
func (d *Decoder) DroppedFrames() int64 { return d.droppedFrames }

// Markets returns a defensive snapshot of the market cache.
func (d *Decoder) Markets() map[string]*MarketCache { return d.snapshotMarkets() }

// OrderMarkets returns a defensive snapshot of the order cache.
func (d *Decoder) OrderMarkets() map[string]*OrderAccountCache { return d.snapshotOrderMarkets() }

// Feed classifies line. It handles mcm/ocm frames completely (returning
// handled=true) and leaves connection/status/unknown frames for the
// session to classify itself (handled=false, err=nil).
func (d *Decoder) Feed(line []byte) (handled bool, err error) {
	op, sniffErr := sniffOp(line)
	if sniffErr != nil {
		d.droppedFrames++
		return true, apperror.ProtocolParse("sniff op", sniffErr)
	}
	if op != opMCM && op != opOCM {
		return false, nil
	}

	var cw changeWire
	if err := json.Unmarshal(line, &cw); err != nil {
		d.droppedFrames++
		return true, apperror.ProtocolParse("decode "+op, err)
	}

	key := segmentKey{op: op, id: cw.ID}

	switch cw.SegmentationType {
	case segStart:
		d.segments[key] = &segmentBuffer{segments: []changeWire{cw}}
		return true, nil

	case "":
		if buf, ok := d.segments[key]; ok {
			buf.segments = append(buf.segments, cw)
			if len(buf.segments) > maxSegmentsPerRequest {
				delete(d.segments, key)
				d.droppedFrames++
				return true, apperror.SegmentationInvalid(fmt.Sprintf("%s id=%d exceeded max buffered segments", op, cw.ID))
			}
			return true, nil
		}
		d.dispatch(op, cw)
		return true, nil

	case segEnd:
		buf, ok := d.segments[key]
		if !ok {
			// SEG_END with no prior buffer is treated as a single-segment
			// message rather than an error, since a sequence of exactly
			// one segment legitimately never needs SEG_START.
			d.dispatch(op, cw)
			return true, nil
		}
		buf.segments = append(buf.segments, cw)
		merged := reassembleSegments(buf.segments)
		delete(d.segments, key)
		d.dispatch(op, merged)
		return true, nil

	default:
		d.droppedFrames++
		return true, apperror.ProtocolSemantics(fmt.Sprintf("unknown segmentationType %q", cw.SegmentationType), nil)
	}
}

// reassembleSegments implements the §4.2 reassembly rules: top-level meta
// comes from the first segment, pt/clk/status/con/segmentationType come
// from the last segment (falling back to the first when the last leaves
// them at their zero value), and the mc/oc payload arrays are the
// concatenation of every segment's arrays in arrival order.
func reassembleSegments(segments []changeWire) changeWire {
	first := segments[0]
	last := segments[len(segments)-1]

	merged := first
	merged.MC = nil
	merged.OC = nil
	merged.PT = last.PT
	if merged.PT == 0 {
		merged.PT = first.PT
	}
	merged.Clk = last.Clk
	if merged.Clk == "" {
		merged.Clk = first.Clk
	}
	merged.Status = last.Status
	if merged.Status == 0 {
		merged.Status = first.Status
	}
	merged.Con = last.Con
	if !merged.Con {
		merged.Con = first.Con
	}
	merged.SegmentationType = last.SegmentationType

	for _, s := range segments {
		merged.MC = append(merged.MC, s.MC...)
		merged.OC = append(merged.OC, s.OC...)
	}
	return merged
}

func (d *Decoder) dispatch(op string, cw changeWire) {
	if cw.isHeartbeat() {
		if d.OnHeartbeat != nil {
			d.OnHeartbeat()
		}
		return
	}

	deltas := make([]string, 0, 8)
	switch op {
	case opMCM:
		for _, mc := range cw.MC {
			applyMarketChange(d.markets, mc, d.currencyRate, &deltas)
		}
		if d.OnMarketChange != nil {
			d.OnMarketChange(d.snapshotMarkets(), deltas)
		}
	case opOCM:
		for _, oc := range cw.OC {
			applyOrderAccountChange(d.orderMarkets, oc, &deltas)
		}
		if d.OnOrderChange != nil {
			d.OnOrderChange(d.snapshotOrderMarkets(), deltas)
		}
	}
}

func (d *Decoder) snapshotMarkets() map[string]*MarketCache {
	out := make(map[string]*MarketCache, len(d.markets))
	for id, m := range d.markets {
		out[id] = m.Snapshot()
	}
	return out
}

func (d *Decoder) snapshotOrderMarkets() map[string]*OrderAccountCache {
	out := make(map[string]*OrderAccountCache, len(d.orderMarkets))
	for id, m := range d.orderMarkets {
		out[id] = m.Snapshot()
	}
	return out
}
