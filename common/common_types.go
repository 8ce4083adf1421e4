package common

import "errors"

var (
	// ErrNilArguments is returned when a required argument is nil
	ErrNilArguments = errors.New("received nil argument(s)")
	// ErrNilPointer is returned when a required pointer is nil
	ErrNilPointer = errors.New("nil pointer")
	// ErrSymbolUnset is returned when an operation requires a symbol
	ErrSymbolUnset = errors.New("symbol unset")
	// ErrDateUnset is returned when an operation requires a timestamp
	ErrDateUnset = errors.New("date unset")
)

// Side describes which way a trade crosses the book
type Side string

// Trade sides. Short entries and long exits are sells, short covers and
// long entries are buys
const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)
