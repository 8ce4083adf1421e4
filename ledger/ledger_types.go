package ledger

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/youngkwangkim88-blip/matlab-trading/common"
)

var (
	// ErrInitialCapitalInvalid is returned when the starting cash is not positive
	ErrInitialCapitalInvalid = errors.New("initial capital must be positive")
	// ErrSpecUnset is returned when a trade arrives without its instrument spec
	ErrSpecUnset = errors.New("instrument spec unset")
	// ErrInvalidPrice rejects trades at a non-positive price
	ErrInvalidPrice = errors.New("order rejected: invalid price")
	// ErrShortingDisallowed rejects trades that would leave a short
	// position on an instrument that does not permit shorting
	ErrShortingDisallowed = errors.New("order rejected: shorting disallowed")
	// ErrInsufficientFunds rejects trades whose projected cash after the
	// simulated margin requirement would go negative
	ErrInsufficientFunds = errors.New("order rejected: insufficient cash for margin requirement")
	// ErrBorrowAlreadyApplied guards the once-per-date borrow accrual
	ErrBorrowAlreadyApplied = errors.New("borrow cost already applied for date")
)

// negligible quantity below which a target change is a successful no-op
var epsilon = decimal.New(1, -9)

// flushThreshold bounds the pending buffer of every journal
const flushThreshold = 256

// TradeEntry is one immutable executed-trade row
type TradeEntry struct {
	Time          time.Time
	Symbol        string
	TraderID      string
	Side          common.Side
	QuantityDelta decimal.Decimal
	QuantityAfter decimal.Decimal
	Price         decimal.Decimal
	Notional      decimal.Decimal
	Fee           decimal.Decimal
	Tax           decimal.Decimal
	Reason        string
}

// BorrowEntry is one immutable daily short-borrow accrual row
type BorrowEntry struct {
	Time     time.Time
	Symbol   string
	Quantity decimal.Decimal
	Price    decimal.Decimal
	Cost     decimal.Decimal
}

// RejectionEntry records a target the engine could not execute in full
type RejectionEntry struct {
	Time            time.Time
	Symbol          string
	DesiredPosition int
	CurrentQuantity decimal.Decimal
	RequestedTarget decimal.Decimal
	FinalTarget     decimal.Decimal
	Retries         int
}

// EquityPoint is one equity-curve sample
type EquityPoint struct {
	Time           time.Time
	Equity         decimal.Decimal
	Cash           decimal.Decimal
	ReservedMargin decimal.Decimal
	GrossExposure  decimal.Decimal
	NetExposure    decimal.Decimal
}

// journal is an append-only log with a bounded pending buffer. Appends are
// amortized; Flush moves pending rows to the committed slice in FIFO order
// so readers always observe chronological rows
type journal[T any] struct {
	pending []T
	rows    []T
}

func (j *journal[T]) append(v T) {
	j.pending = append(j.pending, v)
	if len(j.pending) >= flushThreshold {
		j.flush()
	}
}

func (j *journal[T]) flush() {
	if len(j.pending) == 0 {
		return
	}
	j.rows = append(j.rows, j.pending...)
	j.pending = j.pending[:0]
}

// snapshot flushes and returns a copy of every committed row
func (j *journal[T]) snapshot() []T {
	j.flush()
	out := make([]T, len(j.rows))
	copy(out, j.rows)
	return out
}
