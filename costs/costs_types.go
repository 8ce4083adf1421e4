package costs

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/youngkwangkim88-blip/matlab-trading/common"
)

var (
	// ErrNegativeRate is returned when any cost rate is below zero
	ErrNegativeRate = errors.New("cost rate cannot be negative")
)

// FeeModel charges commission on traded notional
type FeeModel interface {
	Fee(notional decimal.Decimal) decimal.Decimal
}

// TaxModel charges transaction tax. The effective rate may depend on the
// trade date (the rate schedule changes across calendar years) and the side
// (sell-only for stock transaction tax)
type TaxModel interface {
	Tax(date time.Time, side common.Side, notional decimal.Decimal) decimal.Decimal
}

// MarginModel states the cash that must stay reserved against a position
type MarginModel interface {
	Margin(quantity, price, multiplier decimal.Decimal) decimal.Decimal
}
