package statistics

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	errReceivedNoData   = errors.New("received no data points")
	errInvalidStartingValue = errors.New("starting value must be positive")
)

// ValueAtTime couples an equity value with its timestamp
type ValueAtTime struct {
	Time  time.Time
	Value decimal.Decimal
}

// Swing is the largest peak-to-trough move of a curve
type Swing struct {
	Highest         ValueAtTime
	Lowest          ValueAtTime
	DrawdownPercent decimal.Decimal
}

// Summary condenses one equity curve
type Summary struct {
	Start            time.Time
	End              time.Time
	InitialValue     decimal.Decimal
	FinalValue       decimal.Decimal
	TotalReturnPct   decimal.Decimal
	CompoundAnnualPct decimal.Decimal
	MaxDrawdown      Swing
	Points           int
}
