package common

import "errors"

// Sentinel errors shared by the book, exchange and wire-protocol layers.
// Package-scoped errors.New, wrapped with fmt.Errorf at call sites that add
// context.
var (
	ErrUnknownSymbol  = errors.New("unknown symbol")
	ErrOrderNotFound  = errors.New("order not found")
	ErrReentrantMatch = errors.New("on_fill attempted to place or cancel while its own match was in progress")
)
