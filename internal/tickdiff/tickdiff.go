// Package tickdiff derives, from two successive per-symbol depth
// snapshots, the causally ordered sequence of (buy/sell/cancel, price,
// volume) events that transforms the first book state into the second.
// Aggressive trades are inferred from top-of-book regression; passive
// additions and cancels are inferred from a level-by-level comparison of
// the remaining levels.
package tickdiff

import (
	"time"

	"github.com/ajmal017/pyquant/internal/common"
)

// EventKind is the action a generated event instructs the replay driver to
// take against the Book.
type EventKind int

const (
	Buy EventKind = iota
	Sell
	Cancel
)

func (k EventKind) String() string {
	switch k {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	case Cancel:
		return "cancel"
	default:
		return "unknown"
	}
}

// Event is one unit of historical order flow: a synthesised buy/sell order
// or a cancellation of resting historical liquidity, at a price and volume.
// Price may be common.PosInf()/common.NegInf() on a Buy/Sell event, meaning
// "sweep unconditionally to the new top of book" rather than a literal
// price to rest at.
type Event struct {
	Time   time.Time
	Kind   EventKind
	Price  common.Price
	Volume uint64
}

// Tick is one depth snapshot of a single symbol at an instant: per-level
// arrays, best-first, of length DataDepth <= some max depth agreed with the
// ingestion source.
type Tick struct {
	Symbol    string
	Time      time.Time
	DataDepth int
	BidPrice  []common.Price
	BidVolume []uint64
	AskPrice  []common.Price
	AskVolume []uint64
}

// priceVolumeMap is a price -> volume map built from one side of one tick,
// used for the level-by-level comparison. Price is not directly usable as a
// Go map key (see common.Price), so we key on its canonical string form and
// keep the Price alongside.
type priceVolumeMap struct {
	order  []common.Price
	volume map[string]uint64
	price  map[string]common.Price
}

func newPriceVolumeMap(prices []common.Price, volumes []uint64) *priceVolumeMap {
	m := &priceVolumeMap{
		order:  append([]common.Price(nil), prices...),
		volume: make(map[string]uint64, len(prices)),
		price:  make(map[string]common.Price, len(prices)),
	}
	for i, p := range prices {
		k := p.String()
		m.volume[k] = volumes[i]
		m.price[k] = p
	}
	return m
}

func (m *priceVolumeMap) get(p common.Price) (uint64, bool) {
	v, ok := m.volume[p.String()]
	return v, ok
}

func (m *priceVolumeMap) delete(p common.Price) {
	delete(m.volume, p.String())
	delete(m.price, p.String())
}

// remaining returns the prices still present, in their original order.
func (m *priceVolumeMap) remaining() []common.Price {
	out := make([]common.Price, 0, len(m.order))
	for _, p := range m.order {
		if _, ok := m.volume[p.String()]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Diff derives the ordered event list that transforms a Book built from
// prev into one matching cur, for a single symbol.
func Diff(prev, cur Tick) []Event {
	var events []Event

	lastBuy := newPriceVolumeMap(prev.BidPrice, prev.BidVolume)
	lastSell := newPriceVolumeMap(prev.AskPrice, prev.AskVolume)
	buy := newPriceVolumeMap(cur.BidPrice, cur.BidVolume)
	sell := newPriceVolumeMap(cur.AskPrice, cur.AskVolume)

	hasPrevBid := len(prev.BidPrice) > 0
	hasCurBid := len(cur.BidPrice) > 0
	hasPrevAsk := len(prev.AskPrice) > 0
	hasCurAsk := len(cur.AskPrice) > 0

	// Best-bid movement => synthesise an aggressive sell that swept the bid
	// side. Regression (lower top price, or same price with less volume)
	// means liquidity was consumed by a seller.
	if hasCurBid && hasPrevBid {
		curTop, prevTop := cur.BidPrice[0], prev.BidPrice[0]
		curTopVol, prevTopVol := cur.BidVolume[0], prev.BidVolume[0]
		samePrice := curTop.Equal(prevTop)
		regressed := curTop.LessThan(prevTop) || (samePrice && curTopVol < prevTopVol)

		if regressed {
			var price common.Price
			var volume uint64
			if samePrice {
				price = curTop
				volume = prevTopVol - curTopVol
			} else {
				price = common.PosInf()
				volume = 0
			}
			for _, lbp := range lastBuy.remaining() {
				if lbp.GreaterThan(curTop) {
					v, _ := lastBuy.get(lbp)
					volume += v
					lastBuy.delete(lbp)
				}
			}
			events = append(events, Event{Time: cur.Time, Kind: Sell, Price: price, Volume: volume})
			if samePrice {
				buy.delete(curTop)
				lastBuy.delete(curTop)
			}
		}
	}

	// Best-ask movement => synthesise an aggressive buy that swept the ask
	// side, symmetric to the above.
	if hasCurAsk && hasPrevAsk {
		curTop, prevTop := cur.AskPrice[0], prev.AskPrice[0]
		curTopVol, prevTopVol := cur.AskVolume[0], prev.AskVolume[0]
		samePrice := curTop.Equal(prevTop)
		regressed := curTop.GreaterThan(prevTop) || (samePrice && curTopVol < prevTopVol)

		if regressed {
			var price common.Price
			var volume uint64
			if samePrice {
				price = curTop
				volume = prevTopVol - curTopVol
			} else {
				price = common.NegInf()
				volume = 0
			}
			for _, lsp := range lastSell.remaining() {
				if lsp.LessThan(curTop) {
					v, _ := lastSell.get(lsp)
					volume += v
					lastSell.delete(lsp)
				}
			}
			events = append(events, Event{Time: cur.Time, Kind: Buy, Price: price, Volume: volume})
			if samePrice {
				sell.delete(curTop)
				lastSell.delete(curTop)
			}
		}
	}

	events = append(events, diffSide(cur.Time, Buy, buy, lastBuy)...)
	events = append(events, diffSide(cur.Time, Sell, sell, lastSell)...)

	return events
}

// diffSide performs the residual level-by-level comparison for one side:
// new/larger levels in cur emit a natural-kind event (buy for the bid side,
// sell for the ask side); smaller or vanished levels emit cancels.
func diffSide(t time.Time, kind EventKind, cur, last *priceVolumeMap) []Event {
	var events []Event
	for _, p := range cur.remaining() {
		curVol, _ := cur.get(p)
		var lastVol uint64
		if v, ok := last.get(p); ok {
			lastVol = v
			last.delete(p)
		}
		switch {
		case curVol > lastVol:
			events = append(events, Event{Time: t, Kind: kind, Price: p, Volume: curVol - lastVol})
		case curVol < lastVol:
			events = append(events, Event{Time: t, Kind: Cancel, Price: p, Volume: lastVol - curVol})
		}
		cur.delete(p)
	}
	for _, p := range last.remaining() {
		v, _ := last.get(p)
		events = append(events, Event{Time: t, Kind: Cancel, Price: p, Volume: v})
	}
	return events
}

// Generate derives the event list for every adjacent pair in ticks, in
// order. progress, if non-nil, is called after each pair is processed with
// the number done and the total pair count. ticks must all share one
// symbol and be ordered by time.
func Generate(ticks []Tick, progress func(done, total int)) [][]Event {
	if len(ticks) < 2 {
		return nil
	}
	total := len(ticks) - 1
	out := make([][]Event, 0, total)
	for i := 1; i < len(ticks); i++ {
		out = append(out, Diff(ticks[i-1], ticks[i]))
		if progress != nil {
			progress(i, total)
		}
	}
	return out
}
