package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `symbol,time,depth,bid_price_1,bid_volume_1,ask_price_1,ask_volume_1,bid_price_2,bid_volume_2,ask_price_2,ask_volume_2
CLZ5,1000000000,2,99.5,10,100.0,20,99.0,5,100.5,15
CLZ5,2000000000,1,99.6,8,100.1,12
`

func TestReadTicks_ParsesRowsAndTrimsToMaxDepth(t *testing.T) {
	ticks, err := ReadTicks(strings.NewReader(sample), 1)
	require.NoError(t, err)
	require.Len(t, ticks, 2)

	first := ticks[0]
	assert.Equal(t, "CLZ5", first.Symbol)
	assert.Equal(t, 1, first.DataDepth, "depth column said 2 but maxDepth caps it to 1")
	require.Len(t, first.BidPrice, 1)
	assert.Equal(t, 99.5, first.BidPrice[0].Float64())
	assert.Equal(t, uint64(10), first.BidVolume[0])

	second := ticks[1]
	assert.Equal(t, 1, second.DataDepth)
	assert.Equal(t, 99.6, second.BidPrice[0].Float64())
}

func TestReadTicks_EmptyInputIsNoTicksNoError(t *testing.T) {
	ticks, err := ReadTicks(strings.NewReader(""), 5)
	require.NoError(t, err)
	assert.Nil(t, ticks)
}

func TestReadTicks_MalformedRowIsError(t *testing.T) {
	bad := "symbol,time,depth\nCLZ5,notanumber,1\n"
	_, err := ReadTicks(strings.NewReader(bad), 5)
	assert.Error(t, err)
}
