// Package common holds the data model shared across the matching engine:
// orders, trades, the fixed-point price type, and the small set of enums
// (direction, offset, order/status type) that every other package imports.
package common

import "github.com/shopspring/decimal"

// priceExponent is the number of decimal places a Price is canonicalised to.
// Futures tick sizes rarely need more; fixing the exponent up front is what
// makes two prices derived from the same tick stream compare exactly equal,
// which price-keyed levels depend on.
const priceExponent = 8

// Price is a canonicalised fixed-point price. Two Prices built from the same
// decimal value always compare equal, via Equal and in the ordered
// comparisons the book's btree levels use, which plain float64 cannot
// guarantee. Price is not itself usable as a Go map key (the decimal holds a
// pointer); key on String() instead.
type Price struct {
	d decimal.Decimal
}

// NewPrice canonicalises f to the fixed exponent used throughout the book.
func NewPrice(f float64) Price {
	return Price{decimal.NewFromFloat(f).Round(priceExponent)}
}

// NewPriceFromDecimal canonicalises an existing decimal.Decimal.
func NewPriceFromDecimal(d decimal.Decimal) Price {
	return Price{d.Round(priceExponent)}
}

// PosInf is the sentinel instructing a walk to sweep unconditionally to the
// new top of book, used by TickDiff on the sell event it emits when the best
// bid price itself moves. It is not an actual infinite decimal; it is a
// value guaranteed to compare greater than any real price.
func PosInf() Price { return Price{decimal.NewFromInt(1).Shift(30)} }

// NegInf is the sell-side counterpart of PosInf.
func NegInf() Price { return Price{decimal.NewFromInt(-1).Shift(30)} }

func (p Price) IsPosInf() bool { return p.d.Equal(PosInf().d) }
func (p Price) IsNegInf() bool { return p.d.Equal(NegInf().d) }

func (p Price) Equal(o Price) bool      { return p.d.Equal(o.d) }
func (p Price) GreaterThan(o Price) bool { return p.d.GreaterThan(o.d) }
func (p Price) LessThan(o Price) bool    { return p.d.LessThan(o.d) }

func (p Price) Add(o Price) Price { return Price{p.d.Add(o.d)} }
func (p Price) Sub(o Price) Price { return Price{p.d.Sub(o.d)} }

func (p Price) Float64() float64 { return p.d.InexactFloat64() }

// AsDecimal exposes the underlying decimal.Decimal for callers that need to
// re-scale a Price for an external representation, such as the wire
// protocol's fixed-point integer encoding.
func (p Price) AsDecimal() decimal.Decimal { return p.d }

func (p Price) String() string { return p.d.String() }
