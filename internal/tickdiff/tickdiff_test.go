package tickdiff

import (
	"testing"
	"time"

	"github.com/ajmal017/pyquant/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func prices(vs ...float64) []common.Price {
	out := make([]common.Price, len(vs))
	for i, v := range vs {
		out[i] = common.NewPrice(v)
	}
	return out
}

func findKind(events []Event, kind EventKind) []Event {
	var out []Event
	for _, e := range events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func TestDiff_NewLevelEmitsNaturalSideEvent(t *testing.T) {
	prev := Tick{BidPrice: prices(99), BidVolume: []uint64{10}, AskPrice: prices(100), AskVolume: []uint64{10}}
	cur := Tick{
		Time:      time.Unix(1, 0),
		BidPrice:  prices(99, 98),
		BidVolume: []uint64{10, 5},
		AskPrice:  prices(100),
		AskVolume: []uint64{10},
	}

	events := Diff(prev, cur)
	buys := findKind(events, Buy)
	require.Len(t, buys, 1)
	assert.True(t, buys[0].Price.Equal(common.NewPrice(98)))
	assert.Equal(t, uint64(5), buys[0].Volume)
}

func TestDiff_ShrunkLevelEmitsCancel(t *testing.T) {
	// The shrunk level is below the top: a shrink at the top itself is
	// attributed to aggressive flow instead (see the BestBidSamePrice test).
	prev := Tick{BidPrice: prices(99), BidVolume: []uint64{10}, AskPrice: prices(100, 101), AskVolume: []uint64{10, 10}}
	cur := Tick{
		Time:      time.Unix(1, 0),
		BidPrice:  prices(99),
		BidVolume: []uint64{10},
		AskPrice:  prices(100, 101),
		AskVolume: []uint64{10, 6},
	}

	events := Diff(prev, cur)
	cancels := findKind(events, Cancel)
	require.Len(t, cancels, 1)
	assert.True(t, cancels[0].Price.Equal(common.NewPrice(101)))
	assert.Equal(t, uint64(4), cancels[0].Volume)
}

func TestDiff_BestBidSamePriceVolumeDrop_SellAtThatPrice(t *testing.T) {
	prev := Tick{BidPrice: prices(99), BidVolume: []uint64{10}, AskPrice: prices(100), AskVolume: []uint64{10}}
	cur := Tick{
		Time:      time.Unix(1, 0),
		BidPrice:  prices(99),
		BidVolume: []uint64{4},
		AskPrice:  prices(100),
		AskVolume: []uint64{10},
	}

	events := Diff(prev, cur)
	sells := findKind(events, Sell)
	require.Len(t, sells, 1)
	assert.True(t, sells[0].Price.Equal(common.NewPrice(99)))
	assert.Equal(t, uint64(6), sells[0].Volume)
}

func TestDiff_BestBidMoved_SellUsesPosInfSentinel(t *testing.T) {
	prev := Tick{
		BidPrice: prices(99, 98), BidVolume: []uint64{10, 20},
		AskPrice: prices(100), AskVolume: []uint64{10},
	}
	cur := Tick{
		Time:      time.Unix(1, 0),
		BidPrice:  prices(98),
		BidVolume: []uint64{20},
		AskPrice:  prices(100),
		AskVolume: []uint64{10},
	}

	events := Diff(prev, cur)
	sells := findKind(events, Sell)
	require.Len(t, sells, 1)
	assert.True(t, sells[0].Price.IsPosInf(), "top moving away must report the unconditional sweep sentinel, not a computed price")
	assert.Equal(t, uint64(10), sells[0].Volume, "volume swept from the vacated top level")
}

func TestDiff_BestAskMoved_BuyUsesNegInfSentinel(t *testing.T) {
	prev := Tick{
		BidPrice: prices(99), BidVolume: []uint64{10},
		AskPrice: prices(100, 101), AskVolume: []uint64{10, 20},
	}
	cur := Tick{
		Time:      time.Unix(1, 0),
		BidPrice:  prices(99),
		BidVolume: []uint64{10},
		AskPrice:  prices(101),
		AskVolume: []uint64{20},
	}

	events := Diff(prev, cur)
	buys := findKind(events, Buy)
	require.Len(t, buys, 1)
	assert.True(t, buys[0].Price.IsNegInf())
	assert.Equal(t, uint64(10), buys[0].Volume)
}

func TestGenerate_OnePairPerAdjacentTickWithProgress(t *testing.T) {
	ticks := []Tick{
		{BidPrice: prices(99), BidVolume: []uint64{10}, AskPrice: prices(100), AskVolume: []uint64{10}},
		{Time: time.Unix(1, 0), BidPrice: prices(99), BidVolume: []uint64{5}, AskPrice: prices(100), AskVolume: []uint64{10}},
		{Time: time.Unix(2, 0), BidPrice: prices(99), BidVolume: []uint64{5}, AskPrice: prices(100), AskVolume: []uint64{4}},
	}

	var calls [][2]int
	batches := Generate(ticks, func(done, total int) { calls = append(calls, [2]int{done, total}) })

	require.Len(t, batches, 2)
	assert.Equal(t, [][2]int{{1, 2}, {2, 2}}, calls)
}

func TestGenerate_FewerThanTwoTicksIsNil(t *testing.T) {
	assert.Nil(t, Generate(nil, nil))
	assert.Nil(t, Generate([]Tick{{}}, nil))
}
