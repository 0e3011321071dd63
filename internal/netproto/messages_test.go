package netproto

import (
	"bytes"
	"testing"

	"github.com/ajmal017/pyquant/internal/common"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOrderMessage_RoundTrip(t *testing.T) {
	id := uuid.New()
	msg := &NewOrderMessage{
		Symbol:        "CLZ5",
		Price:         common.NewPrice(99.75),
		Volume:        42,
		Direction:     common.SHORT,
		Offset:        common.CLOSE,
		OrderType:     common.LimitOrder,
		ClientOrderID: id,
		Owner:         "alice",
	}

	parsed, err := ParseMessage(msg.Serialize())
	require.NoError(t, err)

	got, ok := parsed.(*NewOrderMessage)
	require.True(t, ok)
	assert.Equal(t, "CLZ5", got.Symbol)
	assert.True(t, got.Price.Equal(common.NewPrice(99.75)))
	assert.Equal(t, uint64(42), got.Volume)
	assert.Equal(t, common.SHORT, got.Direction)
	assert.Equal(t, common.CLOSE, got.Offset)
	assert.Equal(t, id, got.ClientOrderID)
	assert.Equal(t, "alice", got.Owner)
}

func TestCancelOrderMessage_RoundTrip(t *testing.T) {
	id := uuid.New()
	msg := &CancelOrderMessage{ClientOrderID: id}

	parsed, err := ParseMessage(msg.Serialize())
	require.NoError(t, err)

	got, ok := parsed.(*CancelOrderMessage)
	require.True(t, ok)
	assert.Equal(t, id, got.ClientOrderID)
}

func TestLogBookMessage_Parses(t *testing.T) {
	parsed, err := ParseMessage(LogBookMessage())
	require.NoError(t, err)
	assert.Equal(t, LogBook, parsed.Type())
}

func TestParseMessage_TooShortIsError(t *testing.T) {
	_, err := ParseMessage([]byte{0})
	assert.ErrorIs(t, err, ErrMessageTooShort)
}

func TestParseMessage_UnknownTypeIsError(t *testing.T) {
	_, err := ParseMessage([]byte{0xFF, 0xFF})
	assert.ErrorIs(t, err, ErrInvalidMessageType)
}

func TestReport_RoundTripViaReadReport(t *testing.T) {
	id := uuid.New()
	report := &Report{
		MessageType:   ExecutionReport,
		Side:          common.Buy,
		Timestamp:     1234,
		Quantity:      7,
		Price:         common.NewPrice(101.25),
		ClientOrderID: id,
		Symbol:        "ESZ5",
		Counterparty:  "bob",
	}

	buf := bytes.NewReader(report.Serialize())
	got, err := ReadReport(buf)
	require.NoError(t, err)

	assert.Equal(t, ExecutionReport, got.MessageType)
	assert.Equal(t, common.Buy, got.Side)
	assert.Equal(t, uint64(7), got.Quantity)
	assert.True(t, got.Price.Equal(common.NewPrice(101.25)))
	assert.Equal(t, "ESZ5", got.Symbol)
	assert.Equal(t, "bob", got.Counterparty)
}

func TestReport_ErrorReportCarriesMessage(t *testing.T) {
	report := &Report{MessageType: ErrorReport, Err: "unknown symbol"}
	buf := bytes.NewReader(report.Serialize())
	got, err := ReadReport(buf)
	require.NoError(t, err)
	assert.Equal(t, ErrorReport, got.MessageType)
	assert.Equal(t, "unknown symbol", got.Err)
}
