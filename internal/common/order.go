package common

import (
	"fmt"
	"time"
)

// Order is a single resting or aggressing order, either reconstructed from
// the historical tick stream (IsHistory) or submitted live by the
// back-tested strategy.
type Order struct {
	OrderID     uint64 // stable id, assigned by the Exchange registry
	Symbol      string // instrument key
	Price       Price  // limit price; meaningless for a filled MarketOrder remainder
	Volume      uint64 // total submitted quantity
	Traded      uint64 // quantity already filled
	Direction   Direction
	Offset      Offset
	OrderType   OrderType
	IsHistory   bool
	Status      Status
	SubmitTime  time.Time
	Owner       string // strategy/session identifier, used by wire reports
	OnFill      func() // invoked at most once, only on full fill
	onFillFired bool
}

// Side projects (Direction, Offset) onto the effective book side.
func (o *Order) Side() Side {
	return EffectiveSide(o.Direction, o.Offset)
}

// Remain returns the quantity not yet traded.
func (o *Order) Remain() uint64 {
	return o.Volume - o.Traded
}

// Fill records amount as traded against this order, firing OnFill exactly
// once if the order becomes fully filled. amount must not exceed Remain().
func (o *Order) Fill(amount uint64) {
	if amount == 0 {
		return
	}
	o.Traded += amount
	if o.Remain() == 0 {
		o.Status = Filled
		if o.OnFill != nil && !o.onFillFired {
			o.onFillFired = true
			o.OnFill()
		}
	} else {
		o.Status = Partial
	}
}

func (o *Order) String() string {
	return fmt.Sprintf(
		"Order{id=%d symbol=%s price=%s volume=%d traded=%d dir=%d offset=%d type=%d hist=%v status=%s owner=%s}",
		o.OrderID, o.Symbol, o.Price, o.Volume, o.Traded, o.Direction, o.Offset, o.OrderType, o.IsHistory, o.Status, o.Owner,
	)
}
