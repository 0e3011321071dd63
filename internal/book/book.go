// Package book implements the per-instrument, two-sided limit order book:
// price-time matching on placement, crossing/sweep logic, and depth
// snapshot generation. Each side is a price-indexed, ordered map built on
// github.com/tidwall/btree, the same ordered-map primitive used elsewhere
// for price levels; here each leaf is a queue.OrderQueue rather than a bare
// order slice, so that time priority between historical and algorithmic
// orders is preserved within a level.
package book

import (
	"fmt"

	"github.com/ajmal017/pyquant/internal/common"
	"github.com/ajmal017/pyquant/internal/queue"
	"github.com/tidwall/btree"
)

// level is one price's entry in a side's tree. Only price participates in
// the ordering comparator; q is carried along with it.
type level struct {
	price common.Price
	q     *queue.OrderQueue
}

// DepthSnapshot is a read-only view of a Book's best levels, best-first on
// both sides, reported at equal length on each side (see Snapshot).
type DepthSnapshot struct {
	Symbol    string
	DataDepth int
	BidPrice  []common.Price
	BidVolume []uint64
	AskPrice  []common.Price
	AskVolume []uint64
}

// Book is a single instrument's order book.
type Book struct {
	Symbol   string
	MaxDepth int

	bids *btree.BTreeG[*level] // descending: best bid (highest price) first
	asks *btree.BTreeG[*level] // ascending: best ask (lowest price) first

	inMatch bool // re-entrancy guard: rejects nested Place/Cancel from on_fill
}

// New creates an empty Book for symbol, reporting at most maxDepth levels
// per side in Snapshot.
func New(symbol string, maxDepth int) *Book {
	return &Book{
		Symbol:   symbol,
		MaxDepth: maxDepth,
		bids: btree.NewBTreeG(func(a, b *level) bool {
			return a.price.GreaterThan(b.price)
		}),
		asks: btree.NewBTreeG(func(a, b *level) bool {
			return a.price.LessThan(b.price)
		}),
	}
}

// Place inserts order into the book. A LIMIT order walks the opposite side
// while it crosses, consuming resting liquidity price level by price level;
// any residual is rested on its own side. A MARKET order sweeps the
// opposite side unconditionally (as a marketable limit at +/-infinity) and
// never rests: unfilled volume is simply reported back via order.Remain().
//
// Zero-volume orders are silently accepted as a no-op, per the boundary
// error-handling policy. The returned trades are every match this
// placement caused, in the order they occurred, for reporting upstream.
func (b *Book) Place(order *common.Order) ([]common.Trade, error) {
	if order.Volume == 0 {
		return nil, nil
	}
	if b.inMatch {
		return nil, common.ErrReentrantMatch
	}
	b.inMatch = true
	defer func() { b.inMatch = false }()

	limitPrice := order.Price
	if order.OrderType == common.MarketOrder {
		if order.Side() == common.Buy {
			limitPrice = common.PosInf()
		} else {
			limitPrice = common.NegInf()
		}
	}

	var opposite *btree.BTreeG[*level]
	var crosses func(levelPrice common.Price) bool
	if order.Side() == common.Buy {
		opposite = b.asks
		crosses = func(askPrice common.Price) bool { return !askPrice.GreaterThan(limitPrice) }
	} else {
		opposite = b.bids
		crosses = func(bidPrice common.Price) bool { return !bidPrice.LessThan(limitPrice) }
	}

	var trades []common.Trade
	for order.Remain() > 0 {
		best, ok := opposite.Min()
		if !ok || !crosses(best.price) {
			break
		}
		before := order.Remain()
		leftover, matched := best.q.Match(order, before)
		trades = append(trades, matched...)
		if filled := before - leftover; filled > 0 {
			order.Fill(filled)
		}
		if best.q.Empty() {
			opposite.Delete(best)
		} else {
			break
		}
	}

	if order.Remain() == 0 {
		// order.Fill already drove Status to Filled.
		return trades, nil
	}

	if order.OrderType == common.MarketOrder {
		// Never rests: whatever remains unfilled is simply reported back via
		// Remain(). Traded == 0 leaves Status at its initial Submitting;
		// a partial sweep already moved it to Partial inside order.Fill.
		return trades, nil
	}

	own := b.bids
	if order.Side() == common.Sell {
		own = b.asks
	}
	lvl, ok := own.Get(&level{price: order.Price})
	if !ok {
		lvl = &level{price: order.Price, q: queue.New()}
		own.Set(lvl)
	}
	lvl.q.Add(order)
	if order.Status == common.Submitting {
		order.Status = common.Live
	}
	return trades, nil
}

// CancelHistorical withdraws volume units of historical liquidity at price,
// on whichever side it is found (a tick-diff cancel event does not itself
// carry a side). The level is dropped once its historical volume reaches
// zero, even if algorithmic orders still rest behind it spliced into the
// evaporated anchor: a price level's lifetime follows its historical
// liquidity, not whatever algorithmic orders happen to trail it.
func (b *Book) CancelHistorical(price common.Price, volume uint64) error {
	for _, side := range []*btree.BTreeG[*level]{b.bids, b.asks} {
		lvl, ok := side.Get(&level{price: price})
		if !ok {
			continue
		}
		lvl.q.CancelHistorical(volume)
		if lvl.q.HistoricalVolume() == 0 {
			side.Delete(lvl)
		}
	}
	return nil
}

// CancelAlgorithmic removes the algorithmic order with orderID resting at
// price. It reports common.ErrOrderNotFound if no such order rests there.
func (b *Book) CancelAlgorithmic(price common.Price, orderID uint64) error {
	if b.inMatch {
		return common.ErrReentrantMatch
	}
	for _, side := range []*btree.BTreeG[*level]{b.bids, b.asks} {
		lvl, ok := side.Get(&level{price: price})
		if !ok {
			continue
		}
		if lvl.q.CancelAlgorithmic(orderID) {
			if lvl.q.Empty() {
				side.Delete(lvl)
			}
			return nil
		}
	}
	return fmt.Errorf("order %d at price %s: %w", orderID, price, common.ErrOrderNotFound)
}

// Snapshot reports up to MaxDepth best levels per side, with both sides
// reported at the same length: min(len(bids), len(asks), MaxDepth).
func (b *Book) Snapshot() DepthSnapshot {
	depth := b.MaxDepth
	if n := b.bids.Len(); n < depth {
		depth = n
	}
	if n := b.asks.Len(); n < depth {
		depth = n
	}

	snap := DepthSnapshot{
		Symbol:    b.Symbol,
		DataDepth: depth,
		BidPrice:  make([]common.Price, 0, depth),
		BidVolume: make([]uint64, 0, depth),
		AskPrice:  make([]common.Price, 0, depth),
		AskVolume: make([]uint64, 0, depth),
	}
	if depth == 0 {
		return snap
	}

	b.bids.Scan(func(lvl *level) bool {
		snap.BidPrice = append(snap.BidPrice, lvl.price)
		snap.BidVolume = append(snap.BidVolume, lvl.q.TotalVolume())
		return len(snap.BidPrice) < depth
	})
	b.asks.Scan(func(lvl *level) bool {
		snap.AskPrice = append(snap.AskPrice, lvl.price)
		snap.AskVolume = append(snap.AskVolume, lvl.q.TotalVolume())
		return len(snap.AskPrice) < depth
	})
	return snap
}

// BestBid and BestAsk expose the current top of book; ok is false if that
// side is empty. Used by invariant checks and by tests.
func (b *Book) BestBid() (common.Price, bool) {
	lvl, ok := b.bids.Min()
	if !ok {
		return common.Price{}, false
	}
	return lvl.price, true
}

func (b *Book) BestAsk() (common.Price, bool) {
	lvl, ok := b.asks.Min()
	if !ok {
		return common.Price{}, false
	}
	return lvl.price, true
}
