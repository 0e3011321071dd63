// Package exchange is the front door for strategy order flow: a registry of
// Books by symbol, plus the order-id -> (symbol, price) side table the
// design notes call for so that CancelOrder doesn't need the caller to
// remember where an order rests.
package exchange

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ajmal017/pyquant/internal/book"
	"github.com/ajmal017/pyquant/internal/common"
	"github.com/rs/zerolog/log"
)

// OrderDescription is the minimum an order placement needs to carry; it is
// the shape both the replay driver (for historical orders) and the wire
// protocol (for algorithmic orders) build before calling PlaceOrder.
type OrderDescription struct {
	Symbol    string
	Price     common.Price
	Volume    uint64
	Direction common.Direction
	Offset    common.Offset
	OrderType common.OrderType
	IsHistory bool
	Owner     string
	OnFill    func()
}

type registryEntry struct {
	symbol string
	price  common.Price
}

// Exchange holds one Book per registered symbol and routes strategy and
// historical order flow into the right one.
type Exchange struct {
	clock common.Clock

	mu    sync.RWMutex
	books map[string]*book.Book

	registryMu sync.Mutex
	registry   map[uint64]registryEntry

	nextOrderID atomic.Uint64
}

// New creates an Exchange with no registered symbols. Call RegisterSymbol
// for each instrument before routing orders to it.
func New(clock common.Clock) *Exchange {
	if clock == nil {
		clock = common.SystemClock{}
	}
	return &Exchange{
		clock:    clock,
		books:    make(map[string]*book.Book),
		registry: make(map[uint64]registryEntry),
	}
}

// RegisterSymbol creates an empty Book for symbol if one does not already
// exist, reporting at most maxDepth levels per side in snapshots.
func (e *Exchange) RegisterSymbol(symbol string, maxDepth int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.books[symbol]; ok {
		return
	}
	e.books[symbol] = book.New(symbol, maxDepth)
}

// PlaceOrder stamps a submission timestamp and initial bookkeeping fields
// onto desc and routes it into the registered Book for its symbol,
// returning the live order handle so the caller can later cancel it or
// inspect its fill state. Placing against an unregistered symbol reports
// common.ErrUnknownSymbol and touches no book state.
func (e *Exchange) PlaceOrder(desc OrderDescription) (*common.Order, []common.Trade, error) {
	e.mu.RLock()
	b, ok := e.books[desc.Symbol]
	e.mu.RUnlock()
	if !ok {
		log.Warn().Str("symbol", desc.Symbol).Msg("place order: unknown symbol")
		return nil, nil, fmt.Errorf("place order on %q: %w", desc.Symbol, common.ErrUnknownSymbol)
	}

	orderID := e.nextOrderID.Add(1)
	order := &common.Order{
		OrderID:    orderID,
		Symbol:     desc.Symbol,
		Price:      desc.Price,
		Volume:     desc.Volume,
		Direction:  desc.Direction,
		Offset:     desc.Offset,
		OrderType:  desc.OrderType,
		IsHistory:  desc.IsHistory,
		Status:     common.Submitting,
		SubmitTime: e.clock.Now(),
		Owner:      desc.Owner,
	}
	// Wrap the caller's OnFill so the registry entry is dropped the moment
	// an order is fully consumed, whether that happens during this
	// placement's own match walk or later, when a different incoming order
	// sweeps this one off the book.
	order.OnFill = func() {
		e.registryMu.Lock()
		delete(e.registry, orderID)
		e.registryMu.Unlock()
		if desc.OnFill != nil {
			desc.OnFill()
		}
	}

	e.registryMu.Lock()
	e.registry[orderID] = registryEntry{symbol: desc.Symbol, price: desc.Price}
	e.registryMu.Unlock()

	trades, err := b.Place(order)
	if err != nil {
		e.registryMu.Lock()
		delete(e.registry, orderID)
		e.registryMu.Unlock()
		return order, trades, err
	}

	// A market order never rests: anything short of Filled (already cleaned
	// up via the OnFill wrapper above) means it never entered a book and the
	// registry entry would otherwise dangle. A limit order short of Filled
	// is still resting and must stay registered.
	if order.Status == common.Cancelled || (order.OrderType == common.MarketOrder && order.Status != common.Filled) {
		e.registryMu.Lock()
		delete(e.registry, orderID)
		e.registryMu.Unlock()
	}

	return order, trades, nil
}

// CancelOrder cancels the algorithmic order with orderID, resolving its
// resting price through the registry. Cancelling an unknown or already
// terminal order id is a no-op. A cancel issued from inside an OnFill
// callback while that symbol's book is matching reports
// common.ErrReentrantMatch and leaves the order registered.
func (e *Exchange) CancelOrder(orderID uint64) error {
	e.registryMu.Lock()
	entry, ok := e.registry[orderID]
	if ok {
		delete(e.registry, orderID)
	}
	e.registryMu.Unlock()
	if !ok {
		return nil
	}

	e.mu.RLock()
	b, ok := e.books[entry.symbol]
	e.mu.RUnlock()
	if !ok {
		return nil
	}

	if err := b.CancelAlgorithmic(entry.price, orderID); err != nil {
		if errors.Is(err, common.ErrReentrantMatch) {
			e.registryMu.Lock()
			e.registry[orderID] = entry
			e.registryMu.Unlock()
			return err
		}
		log.Debug().Uint64("orderID", orderID).Err(err).Msg("cancel order: no-op")
	}
	return nil
}

// CancelHistorical withdraws historical liquidity at price on symbol, used
// by the replay driver to apply TickDiff "cancel" events.
func (e *Exchange) CancelHistorical(symbol string, price common.Price, volume uint64) error {
	e.mu.RLock()
	b, ok := e.books[symbol]
	e.mu.RUnlock()
	if !ok {
		return fmt.Errorf("cancel historical on %q: %w", symbol, common.ErrUnknownSymbol)
	}
	return b.CancelHistorical(price, volume)
}

// Snapshot returns the current depth snapshot for every registered symbol.
func (e *Exchange) Snapshot() map[string]book.DepthSnapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]book.DepthSnapshot, len(e.books))
	for symbol, b := range e.books {
		out[symbol] = b.Snapshot()
	}
	return out
}

// LogBook writes the current book state of every symbol to the structured
// log, used by the wire protocol's LogBook debug message.
func (e *Exchange) LogBook() {
	for symbol, snap := range e.Snapshot() {
		log.Info().
			Str("symbol", symbol).
			Int("depth", snap.DataDepth).
			Interface("bidPrice", snap.BidPrice).
			Interface("bidVolume", snap.BidVolume).
			Interface("askPrice", snap.AskPrice).
			Interface("askVolume", snap.AskVolume).
			Msg("book snapshot")
	}
}
