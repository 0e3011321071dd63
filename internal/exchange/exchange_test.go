package exchange

import (
	"testing"

	"github.com/ajmal017/pyquant/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaceOrder_UnknownSymbol(t *testing.T) {
	ex := New(&common.FixedClock{})
	_, _, err := ex.PlaceOrder(OrderDescription{Symbol: "NOPE", Volume: 10, Direction: common.LONG, Offset: common.OPEN})
	assert.ErrorIs(t, err, common.ErrUnknownSymbol)
}

func TestPlaceOrder_RestsThenFillsAndDropsFromRegistry(t *testing.T) {
	ex := New(&common.FixedClock{})
	ex.RegisterSymbol("CLZ5", 10)

	resting, _, err := ex.PlaceOrder(OrderDescription{
		Symbol: "CLZ5", Price: common.NewPrice(100), Volume: 10,
		Direction: common.LONG, Offset: common.OPEN, IsHistory: false, Owner: "alice",
	})
	require.NoError(t, err)
	assert.Equal(t, common.Live, resting.Status)

	// A historical sell sweeps alice's resting bid entirely from a different
	// PlaceOrder call; the registry cleanup has to trigger from inside that
	// match walk, not from the call that originally placed the order.
	_, trades, err := ex.PlaceOrder(OrderDescription{
		Symbol: "CLZ5", Price: common.NewPrice(100), Volume: 10,
		Direction: common.SHORT, Offset: common.OPEN, IsHistory: true, Owner: "historical",
	})
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, common.Filled, resting.Status)

	// Cancelling the now-filled order is a no-op: it is gone from the
	// registry, not an error.
	require.NoError(t, ex.CancelOrder(resting.OrderID))
}

func TestCancelOrder_ResolvesPriceViaRegistry(t *testing.T) {
	ex := New(&common.FixedClock{})
	ex.RegisterSymbol("CLZ5", 10)

	order, _, err := ex.PlaceOrder(OrderDescription{
		Symbol: "CLZ5", Price: common.NewPrice(100), Volume: 10,
		Direction: common.LONG, Offset: common.OPEN, Owner: "alice",
	})
	require.NoError(t, err)

	require.NoError(t, ex.CancelOrder(order.OrderID))

	snap := ex.Snapshot()["CLZ5"]
	assert.Empty(t, snap.BidPrice)
}

func TestCancelOrder_UnknownIDIsNoOp(t *testing.T) {
	ex := New(&common.FixedClock{})
	ex.RegisterSymbol("CLZ5", 10)
	assert.NoError(t, ex.CancelOrder(999))
}

func TestCancelHistorical_UnknownSymbol(t *testing.T) {
	ex := New(&common.FixedClock{})
	err := ex.CancelHistorical("NOPE", common.NewPrice(100), 10)
	assert.ErrorIs(t, err, common.ErrUnknownSymbol)
}

func TestSnapshot_CoversEveryRegisteredSymbol(t *testing.T) {
	ex := New(&common.FixedClock{})
	ex.RegisterSymbol("CLZ5", 10)
	ex.RegisterSymbol("ESZ5", 10)

	snap := ex.Snapshot()
	assert.Contains(t, snap, "CLZ5")
	assert.Contains(t, snap, "ESZ5")
}
