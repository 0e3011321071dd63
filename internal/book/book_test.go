package book

import (
	"testing"
	"time"

	"github.com/ajmal017/pyquant/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var nextID uint64

func newOrder(price float64, volume uint64, side common.Side, isHistory bool, orderType common.OrderType) *common.Order {
	nextID++
	direction, offset := common.LONG, common.OPEN
	if side == common.Sell {
		direction, offset = common.SHORT, common.OPEN
	}
	return &common.Order{
		OrderID:    nextID,
		Symbol:     "CLZ5",
		Price:      common.NewPrice(price),
		Volume:     volume,
		Direction:  direction,
		Offset:     offset,
		OrderType:  orderType,
		IsHistory:  isHistory,
		Status:     common.Submitting,
		SubmitTime: time.Unix(0, 0),
	}
}

func limit(price float64, volume uint64, side common.Side, isHistory bool) *common.Order {
	return newOrder(price, volume, side, isHistory, common.LimitOrder)
}

func TestPlace_RestsWhenNotCrossing(t *testing.T) {
	b := New("CLZ5", 10)
	bid := limit(99, 10, common.Buy, true)

	trades, err := b.Place(bid)
	require.NoError(t, err)
	assert.Empty(t, trades)
	assert.Equal(t, common.Live, bid.Status)

	price, ok := b.BestBid()
	require.True(t, ok)
	assert.True(t, price.Equal(common.NewPrice(99)))
}

func TestPlace_PlainCross(t *testing.T) {
	b := New("CLZ5", 10)
	_, err := b.Place(limit(100, 10, common.Sell, true))
	require.NoError(t, err)

	taker := limit(100, 10, common.Buy, false)
	trades, err := b.Place(taker)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, uint64(10), trades[0].MatchQty)
	assert.Equal(t, common.Filled, taker.Status)

	_, ok := b.BestAsk()
	assert.False(t, ok, "fully consumed level should be dropped")
}

func TestPlace_WalksMultipleLevels(t *testing.T) {
	b := New("CLZ5", 10)
	_, err := b.Place(limit(100, 10, common.Sell, true))
	require.NoError(t, err)
	_, err = b.Place(limit(101, 10, common.Sell, true))
	require.NoError(t, err)

	taker := limit(101, 15, common.Buy, false)
	trades, err := b.Place(taker)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, uint64(10), trades[0].MatchQty)
	assert.Equal(t, uint64(5), trades[1].MatchQty)
	assert.Equal(t, common.Filled, taker.Status)

	price, ok := b.BestAsk()
	require.True(t, ok)
	assert.True(t, price.Equal(common.NewPrice(101)))
}

func TestPlace_RestAndFillLater(t *testing.T) {
	b := New("CLZ5", 10)
	algo := limit(100, 10, common.Buy, false)
	_, err := b.Place(algo)
	require.NoError(t, err)
	assert.Equal(t, common.Live, algo.Status)

	taker := limit(100, 10, common.Sell, true)
	trades, err := b.Place(taker)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, common.Filled, algo.Status)
}

func TestPlace_MarketOrderSweepsAndNeverRests(t *testing.T) {
	b := New("CLZ5", 10)
	_, err := b.Place(limit(100, 5, common.Sell, true))
	require.NoError(t, err)

	order := newOrder(0, 20, common.Buy, false, common.MarketOrder)
	trades, err := b.Place(order)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, uint64(5), order.Traded)
	assert.Equal(t, uint64(15), order.Remain())
	assert.Equal(t, common.Partial, order.Status)

	snap := b.Snapshot()
	assert.Empty(t, snap.BidPrice, "market order must never rest, whatever is unfilled is simply lost")
}

func TestPlace_MarketOrderFullyUnfilledStaysSubmitting(t *testing.T) {
	b := New("CLZ5", 10)
	order := newOrder(0, 20, common.Buy, false, common.MarketOrder)
	trades, err := b.Place(order)
	require.NoError(t, err)
	assert.Empty(t, trades)
	assert.Equal(t, common.Submitting, order.Status, "nothing filled and a market order never rests, so status never advances past Submitting")
}

func TestCancelHistorical_DropsLevelEvenWithAlgoBehindIt(t *testing.T) {
	b := New("CLZ5", 10)
	hist := limit(100, 10, common.Sell, true)
	_, err := b.Place(hist)
	require.NoError(t, err)
	algo := limit(100, 5, common.Sell, false)
	_, err = b.Place(algo)
	require.NoError(t, err)

	err = b.CancelHistorical(common.NewPrice(100), 10)
	require.NoError(t, err)

	_, ok := b.BestAsk()
	assert.False(t, ok, "level drops once historical volume hits zero, even with algo volume still resting behind it")
}

func TestCancelAlgorithmic_RemovesRestingOrder(t *testing.T) {
	b := New("CLZ5", 10)
	algo := limit(100, 10, common.Buy, false)
	_, err := b.Place(algo)
	require.NoError(t, err)

	err = b.CancelAlgorithmic(common.NewPrice(100), algo.OrderID)
	require.NoError(t, err)

	_, ok := b.BestBid()
	assert.False(t, ok)
}

func TestCancelAlgorithmic_UnknownOrderReturnsError(t *testing.T) {
	b := New("CLZ5", 10)
	err := b.CancelAlgorithmic(common.NewPrice(100), 42)
	assert.ErrorIs(t, err, common.ErrOrderNotFound)
}

func TestPlace_ReentrantCallFromOnFillIsRejected(t *testing.T) {
	b := New("CLZ5", 10)
	resting := limit(100, 10, common.Buy, false)
	var reentrantErr error
	resting.OnFill = func() {
		_, reentrantErr = b.Place(limit(100, 1, common.Buy, false))
	}
	_, err := b.Place(resting)
	require.NoError(t, err)

	taker := limit(100, 10, common.Sell, true)
	_, err = b.Place(taker)
	require.NoError(t, err)

	assert.ErrorIs(t, reentrantErr, common.ErrReentrantMatch)
}
