// Package replay drives a sequence of tickdiff events into an
// exchange.Exchange as historical order flow, the bridge between ingested
// market data and the live matching engine.
package replay

import (
	"fmt"

	"github.com/ajmal017/pyquant/internal/common"
	"github.com/ajmal017/pyquant/internal/exchange"
	"github.com/ajmal017/pyquant/internal/tickdiff"
)

const historicalOwner = "historical"

// Driver applies tickdiff events for one symbol against an Exchange.
type Driver struct {
	exchange *exchange.Exchange
	symbol   string
}

func New(ex *exchange.Exchange, symbol string) *Driver {
	return &Driver{exchange: ex, symbol: symbol}
}

// Apply replays one tick's worth of events, in order. A Cancel event
// withdraws historical liquidity; a Buy/Sell event places a historical
// order, as a marketable order at the book's sentinel price when the event
// itself represents an unconditional sweep (see tickdiff.Event).
func (d *Driver) Apply(events []tickdiff.Event) error {
	for _, ev := range events {
		if err := d.applyOne(ev); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) applyOne(ev tickdiff.Event) error {
	if ev.Kind == tickdiff.Cancel {
		return d.exchange.CancelHistorical(d.symbol, ev.Price, ev.Volume)
	}
	if ev.Volume == 0 {
		return nil
	}

	orderType := common.LimitOrder
	if ev.Price.IsPosInf() || ev.Price.IsNegInf() {
		orderType = common.MarketOrder
	}

	var direction common.Direction
	var offset common.Offset
	switch ev.Kind {
	case tickdiff.Buy:
		direction, offset = common.LONG, common.OPEN
	case tickdiff.Sell:
		direction, offset = common.SHORT, common.OPEN
	default:
		return fmt.Errorf("unexpected event kind %v", ev.Kind)
	}

	_, _, err := d.exchange.PlaceOrder(exchange.OrderDescription{
		Symbol:    d.symbol,
		Price:     ev.Price,
		Volume:    ev.Volume,
		Direction: direction,
		Offset:    offset,
		OrderType: orderType,
		IsHistory: true,
		Owner:     historicalOwner,
	})
	return err
}

// Run applies every tick's event batch in sequence, invoking progress after
// each one, the same external progress-reporting collaborator
// tickdiff.Generate exposes.
func (d *Driver) Run(batches [][]tickdiff.Event, progress func(done, total int)) error {
	total := len(batches)
	for i, batch := range batches {
		if err := d.Apply(batch); err != nil {
			return fmt.Errorf("replay batch %d/%d: %w", i+1, total, err)
		}
		if progress != nil {
			progress(i+1, total)
		}
	}
	return nil
}
