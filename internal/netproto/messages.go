// Package netproto is the binary wire protocol strategy clients speak to
// the backtest server: new-order and cancel-order requests in, execution
// and error reports out, plus a LogBook debug message.
//
// Prices travel as an 8-byte fixed-point scaled integer (see priceScale)
// rather than an IEEE-754 float64, so a price survives the wire exactly as
// the book holds it internally (see common.Price).
package netproto

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/ajmal017/pyquant/internal/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidMessageType = errors.New("invalid message type")
	ErrMessageTooShort    = errors.New("message too short")
)

type MessageType uint16

const (
	Heartbeat MessageType = iota
	NewOrder
	CancelOrder
	LogBook
)

type ReportMessageType uint8

const (
	ExecutionReport ReportMessageType = iota
	ErrorReport
)

type Message interface {
	Type() MessageType
}

// priceScale places the wire's fixed-point exponent at the same precision
// common.Price canonicalises to, so encode/decode is lossless.
const priceScale = 8

func encodePrice(p common.Price) int64 {
	return p.AsDecimal().Shift(priceScale).IntPart()
}

func decodePrice(scaled int64) common.Price {
	return common.NewPriceFromDecimal(decimal.New(scaled, -priceScale))
}

const (
	symbolFieldLen = 8 // fixed-width, right-padded with zero bytes

	baseHeaderLen         = 2
	newOrderFixedLen      = symbolFieldLen + 8 + 8 + 1 + 1 + 1 + 16 + 1 // symbol,price,volume,dir,offset,type,clientID,ownerLen
	cancelOrderFixedLen   = 16
	reportFixedHeaderLen  = 1 + 1 + 8 + 8 + 8 + 16 + 2 + 4 + symbolFieldLen
)

type BaseMessage struct {
	TypeOf MessageType
}

func (m BaseMessage) Type() MessageType { return m.TypeOf }

// ParseMessage reads the 2-byte type header off buf and dispatches to the
// matching decoder.
func ParseMessage(buf []byte) (Message, error) {
	if len(buf) < baseHeaderLen {
		return nil, ErrMessageTooShort
	}
	typeOf := MessageType(binary.BigEndian.Uint16(buf[0:2]))
	body := buf[2:]
	switch typeOf {
	case NewOrder:
		return parseNewOrder(body)
	case CancelOrder:
		return parseCancelOrder(body)
	case LogBook:
		return BaseMessage{TypeOf: LogBook}, nil
	case Heartbeat:
		return BaseMessage{TypeOf: Heartbeat}, nil
	default:
		return nil, fmt.Errorf("type %d: %w", typeOf, ErrInvalidMessageType)
	}
}

// NewOrderMessage is a strategy's request to place an order.
type NewOrderMessage struct {
	BaseMessage
	Symbol        string
	Price         common.Price
	Volume        uint64
	Direction     common.Direction
	Offset        common.Offset
	OrderType     common.OrderType
	ClientOrderID uuid.UUID
	Owner         string
}

func parseSymbol(raw []byte) string {
	n := 0
	for n < len(raw) && raw[n] != 0 {
		n++
	}
	return string(raw[:n])
}

func parseNewOrder(buf []byte) (*NewOrderMessage, error) {
	if len(buf) < newOrderFixedLen {
		return nil, ErrMessageTooShort
	}
	m := &NewOrderMessage{BaseMessage: BaseMessage{TypeOf: NewOrder}}
	m.Symbol = parseSymbol(buf[0:symbolFieldLen])
	off := symbolFieldLen
	m.Price = decodePrice(int64(binary.BigEndian.Uint64(buf[off : off+8])))
	off += 8
	m.Volume = binary.BigEndian.Uint64(buf[off : off+8])
	off += 8
	m.Direction = common.Direction(buf[off])
	off++
	m.Offset = common.Offset(buf[off])
	off++
	m.OrderType = common.OrderType(buf[off])
	off++
	clientID, err := uuid.FromBytes(buf[off : off+16])
	if err != nil {
		return nil, fmt.Errorf("parse client order id: %w", err)
	}
	m.ClientOrderID = clientID
	off += 16
	ownerLen := int(buf[off])
	off++
	if len(buf) < off+ownerLen {
		return nil, ErrMessageTooShort
	}
	m.Owner = string(buf[off : off+ownerLen])
	return m, nil
}

// Serialize encodes a NewOrderMessage for transmission by a strategy client.
func (m *NewOrderMessage) Serialize() []byte {
	ownerLen := len(m.Owner)
	buf := make([]byte, baseHeaderLen+newOrderFixedLen+ownerLen)
	binary.BigEndian.PutUint16(buf[0:2], uint16(NewOrder))
	copy(buf[2:2+symbolFieldLen], m.Symbol)
	off := 2 + symbolFieldLen
	binary.BigEndian.PutUint64(buf[off:off+8], uint64(encodePrice(m.Price)))
	off += 8
	binary.BigEndian.PutUint64(buf[off:off+8], m.Volume)
	off += 8
	buf[off] = byte(m.Direction)
	off++
	buf[off] = byte(m.Offset)
	off++
	buf[off] = byte(m.OrderType)
	off++
	copy(buf[off:off+16], m.ClientOrderID[:])
	off += 16
	buf[off] = byte(ownerLen)
	off++
	copy(buf[off:], m.Owner)
	return buf
}

// CancelOrderMessage requests withdrawal of a previously placed order,
// addressed by the same client order id used to place it.
type CancelOrderMessage struct {
	BaseMessage
	ClientOrderID uuid.UUID
}

func parseCancelOrder(buf []byte) (*CancelOrderMessage, error) {
	if len(buf) < cancelOrderFixedLen {
		return nil, ErrMessageTooShort
	}
	clientID, err := uuid.FromBytes(buf[0:16])
	if err != nil {
		return nil, fmt.Errorf("parse client order id: %w", err)
	}
	return &CancelOrderMessage{BaseMessage: BaseMessage{TypeOf: CancelOrder}, ClientOrderID: clientID}, nil
}

func (m *CancelOrderMessage) Serialize() []byte {
	buf := make([]byte, baseHeaderLen+cancelOrderFixedLen)
	binary.BigEndian.PutUint16(buf[0:2], uint16(CancelOrder))
	copy(buf[2:18], m.ClientOrderID[:])
	return buf
}

// LogBookMessage asks the server to write its current book state to its
// structured log; it carries no payload beyond the type header.
func LogBookMessage() []byte {
	buf := make([]byte, baseHeaderLen)
	binary.BigEndian.PutUint16(buf[0:2], uint16(LogBook))
	return buf
}

// Report is sent server -> client: either a fill (ExecutionReport) or a
// failure (ErrorReport). The server in internal/netio does not set
// ClientOrderID on either kind, so it arrives as the zero UUID.
type Report struct {
	MessageType   ReportMessageType
	Side          common.Side
	Timestamp     int64
	Quantity      uint64
	Price         common.Price
	ClientOrderID uuid.UUID
	Symbol        string
	Err           string
	Counterparty  string
}

// Serialize converts the report to wire form.
func (r *Report) Serialize() []byte {
	errLen := len(r.Err)
	cpLen := len(r.Counterparty)
	total := reportFixedHeaderLen + errLen + cpLen
	buf := make([]byte, total)

	buf[0] = byte(r.MessageType)
	buf[1] = byte(r.Side)
	off := 2
	binary.BigEndian.PutUint64(buf[off:off+8], uint64(r.Timestamp))
	off += 8
	binary.BigEndian.PutUint64(buf[off:off+8], r.Quantity)
	off += 8
	binary.BigEndian.PutUint64(buf[off:off+8], uint64(encodePrice(r.Price)))
	off += 8
	copy(buf[off:off+16], r.ClientOrderID[:])
	off += 16
	binary.BigEndian.PutUint16(buf[off:off+2], uint16(cpLen))
	off += 2
	binary.BigEndian.PutUint32(buf[off:off+4], uint32(errLen))
	off += 4
	copy(buf[off:off+symbolFieldLen], r.Symbol)
	off += symbolFieldLen

	copy(buf[off:], r.Err)
	off += errLen
	copy(buf[off:], r.Counterparty)
	return buf
}

// ReadReport reads exactly one framed Report off r: the fixed header first,
// which declares the two variable-length trailers' sizes, then the
// trailers themselves. Used by strategy clients, which see a byte stream
// rather than one message per conn.Read the way the server's datagram-style
// handleConnection does.
func ReadReport(r io.Reader) (*Report, error) {
	header := make([]byte, reportFixedHeaderLen)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}
	cpLen := int(binary.BigEndian.Uint16(header[42:44]))
	errLen := int(binary.BigEndian.Uint32(header[44:48]))

	rest := make([]byte, cpLen+errLen)
	if cpLen+errLen > 0 {
		if _, err := io.ReadFull(r, rest); err != nil {
			return nil, err
		}
	}
	return ParseReport(append(header, rest...))
}

// ParseReport decodes a single, already fully-buffered Report frame.
func ParseReport(buf []byte) (*Report, error) {
	if len(buf) < reportFixedHeaderLen {
		return nil, ErrMessageTooShort
	}
	r := &Report{MessageType: ReportMessageType(buf[0]), Side: common.Side(buf[1])}
	off := 2
	r.Timestamp = int64(binary.BigEndian.Uint64(buf[off : off+8]))
	off += 8
	r.Quantity = binary.BigEndian.Uint64(buf[off : off+8])
	off += 8
	r.Price = decodePrice(int64(binary.BigEndian.Uint64(buf[off : off+8])))
	off += 8
	clientID, err := uuid.FromBytes(buf[off : off+16])
	if err != nil {
		return nil, fmt.Errorf("parse client order id: %w", err)
	}
	r.ClientOrderID = clientID
	off += 16
	cpLen := int(binary.BigEndian.Uint16(buf[off : off+2]))
	off += 2
	errLen := int(binary.BigEndian.Uint32(buf[off : off+4]))
	off += 4
	r.Symbol = parseSymbol(buf[off : off+symbolFieldLen])
	off += symbolFieldLen
	if len(buf) < off+errLen+cpLen {
		return nil, ErrMessageTooShort
	}
	r.Err = string(buf[off : off+errLen])
	off += errLen
	r.Counterparty = string(buf[off : off+cpLen])
	return r, nil
}
