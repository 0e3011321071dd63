// Package queue implements the per-price order queue: a FIFO chain of
// segments, each one historical order followed by the algorithmic orders
// that arrived behind it before the next historical order sealed the
// segment. This is the time-priority primitive the rest of the engine is
// built on.
package queue

import "github.com/ajmal017/pyquant/internal/common"

// newTrade records one match between taker and resting, at resting's price,
// timestamped at taker's submission time.
func newTrade(taker, resting *common.Order, qty uint64) common.Trade {
	return common.Trade{
		Party:        taker,
		CounterParty: resting,
		Timestamp:    taker.SubmitTime,
		MatchQty:     qty,
		Price:        resting.Price,
	}
}

// segment is one historical order plus the algorithmic orders that queued
// up behind it before the next historical order arrived.
type segment struct {
	hist *common.Order
	algo []*common.Order
}

// OrderQueue holds every order resting at a single price, in strict time
// order: hist[0], algo[0]..., hist[1], algo[1]..., ..., then nextOrders.
// nextOrders holds purely algorithmic liquidity with no historical anchor
// yet: orders that arrived before the first historical order ever did, or
// after the last historical segment was fully matched or cancelled away.
type OrderQueue struct {
	segments   []*segment
	nextOrders []*common.Order
}

// New returns an empty OrderQueue.
func New() *OrderQueue {
	return &OrderQueue{}
}

// Add inserts order into the queue. A historical order opens a brand new
// segment at the tail, taking over any unanchored nextOrders as its algo
// list; algorithmic orders arriving after it, until the next historical
// order, accumulate there too. An algorithmic order joins the current tail
// segment's algo list, or nextOrders if no segment exists yet.
func (q *OrderQueue) Add(order *common.Order) {
	if order.IsHistory {
		q.segments = append(q.segments, &segment{hist: order, algo: q.nextOrders})
		q.nextOrders = nil
		return
	}
	if n := len(q.segments); n > 0 {
		q.segments[n-1].algo = append(q.segments[n-1].algo, order)
		return
	}
	q.nextOrders = append(q.nextOrders, order)
}

// consumeAlgoList drains amount units of liquidity from the front of orders,
// firing OnFill on any order that becomes fully filled, and returns the
// (possibly shorter) remaining slice plus one trade per order touched.
func consumeAlgoList(taker *common.Order, orders []*common.Order, amount uint64) ([]*common.Order, []common.Trade) {
	var trades []common.Trade
	for len(orders) > 0 && amount > 0 {
		o := orders[0]
		remain := o.Remain()
		if amount >= remain {
			amount -= remain
			o.Fill(remain)
			trades = append(trades, newTrade(taker, o, remain))
			orders = orders[1:]
		} else {
			o.Fill(amount)
			trades = append(trades, newTrade(taker, o, amount))
			amount = 0
		}
	}
	return orders, trades
}

// spliceFront prepends leftover onto the front of base, without aliasing
// leftover's backing array (leftover may still be referenced by the caller).
func spliceFront(leftover, base []*common.Order) []*common.Order {
	if len(leftover) == 0 {
		return base
	}
	out := make([]*common.Order, 0, len(leftover)+len(base))
	out = append(out, leftover...)
	out = append(out, base...)
	return out
}

// Match consumes amount units of liquidity from the head of the queue, FIFO,
// and returns any leftover that could not be filled at this price level. The
// historical order at the head of a segment and its trailing algorithmic
// list are drained in parallel, by position, so that by the time the
// historical order is exhausted the algorithmic orders behind it have
// received their proportional share — this is what gives algorithmic orders
// realistic fills against reconstructed historical liquidity. Once every
// segment is consumed, any remaining amount is drained FIFO from nextOrders.
func (q *OrderQueue) Match(taker *common.Order, amount uint64) (uint64, []common.Trade) {
	var trades []common.Trade
	for amount > 0 && len(q.segments) > 0 {
		seg := q.segments[0]
		remain := seg.hist.Remain()
		if amount >= remain {
			amount -= remain
			seg.hist.Fill(remain)
			trades = append(trades, newTrade(taker, seg.hist, remain))
			leftover, algoTrades := consumeAlgoList(taker, seg.algo, remain)
			trades = append(trades, algoTrades...)
			q.segments = q.segments[1:]
			if len(q.segments) > 0 {
				q.segments[0].algo = spliceFront(leftover, q.segments[0].algo)
			} else {
				q.nextOrders = spliceFront(leftover, q.nextOrders)
			}
		} else {
			seg.hist.Fill(amount)
			trades = append(trades, newTrade(taker, seg.hist, amount))
			var algoTrades []common.Trade
			seg.algo, algoTrades = consumeAlgoList(taker, seg.algo, amount)
			trades = append(trades, algoTrades...)
			amount = 0
		}
	}
	if amount > 0 && len(q.nextOrders) > 0 {
		var algoTrades []common.Trade
		q.nextOrders, algoTrades = consumeAlgoList(taker, q.nextOrders, amount)
		for _, tr := range algoTrades {
			amount -= tr.MatchQty
		}
		trades = append(trades, algoTrades...)
	}
	return amount, trades
}

// CancelHistorical withdraws amount units of historical liquidity from the
// head of the queue. Unlike Match, this never fills algorithmic orders: it
// only shortens the queue ahead of them, improving their time priority. Any
// algorithmic orders behind a fully-withdrawn historical order are spliced
// ahead into the next segment (or nextOrders), exactly as Match splices a
// fully-matched segment's leftover algorithmic list.
func (q *OrderQueue) CancelHistorical(amount uint64) uint64 {
	for amount > 0 && len(q.segments) > 0 {
		seg := q.segments[0]
		remain := seg.hist.Remain()
		if amount >= remain {
			amount -= remain
			seg.hist.Volume = seg.hist.Traded
			seg.hist.Status = common.Cancelled
			q.segments = q.segments[1:]
			if len(q.segments) > 0 {
				q.segments[0].algo = spliceFront(seg.algo, q.segments[0].algo)
			} else {
				q.nextOrders = spliceFront(seg.algo, q.nextOrders)
			}
		} else {
			seg.hist.Volume -= amount
			amount = 0
		}
	}
	return amount
}

// CancelAlgorithmic removes the algorithmic order with the given id from
// wherever it rests in the queue. It is a no-op, reporting false, if the id
// is not found. No callback is invoked.
func (q *OrderQueue) CancelAlgorithmic(orderID uint64) bool {
	for _, seg := range q.segments {
		if idx := indexOf(seg.algo, orderID); idx >= 0 {
			seg.algo = append(seg.algo[:idx], seg.algo[idx+1:]...)
			return true
		}
	}
	if idx := indexOf(q.nextOrders, orderID); idx >= 0 {
		q.nextOrders = append(q.nextOrders[:idx], q.nextOrders[idx+1:]...)
		return true
	}
	return false
}

func indexOf(orders []*common.Order, orderID uint64) int {
	for i, o := range orders {
		if o.OrderID == orderID {
			return i
		}
	}
	return -1
}

// TotalVolume is the sum of remaining quantity across every order resting
// in the queue, historical and algorithmic alike.
func (q *OrderQueue) TotalVolume() uint64 {
	var total uint64
	for _, seg := range q.segments {
		total += seg.hist.Remain()
		for _, o := range seg.algo {
			total += o.Remain()
		}
	}
	for _, o := range q.nextOrders {
		total += o.Remain()
	}
	return total
}

// HistoricalVolume is the sum of remaining quantity across only the
// historical orders resting in the queue.
func (q *OrderQueue) HistoricalVolume() uint64 {
	var total uint64
	for _, seg := range q.segments {
		total += seg.hist.Remain()
	}
	return total
}

// DisplayHeight is a presentation convenience: the greater of historical or
// cumulative algorithmic depth, accumulated segment by segment. It is never
// consulted by Match/CancelHistorical/CancelAlgorithmic.
func (q *OrderQueue) DisplayHeight() uint64 {
	var histHeight, algoHeight uint64
	for _, seg := range q.segments {
		histHeight += seg.hist.Volume
		for _, o := range seg.algo {
			algoHeight += o.Volume
		}
		if algoHeight < histHeight {
			algoHeight = histHeight
		}
	}
	for _, o := range q.nextOrders {
		algoHeight += o.Volume
	}
	return algoHeight
}

// Empty reports whether the queue holds no resting volume at all, the
// condition under which a Book should drop the price level entirely.
func (q *OrderQueue) Empty() bool {
	return q.TotalVolume() == 0
}
