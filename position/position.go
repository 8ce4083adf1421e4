// Package position tracks one symbol's signed quantity, weighted-average
// entry price and realized profit. Positions are owned by the ledger and
// mutated only through ApplyTrade
package position

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/youngkwangkim88-blip/matlab-trading/common"
)

var (
	// ErrZeroQuantity is returned when a trade carries no quantity
	ErrZeroQuantity = errors.New("trade quantity delta is zero")
	// ErrInvalidPrice is returned when a trade price is not positive
	ErrInvalidPrice = errors.New("trade price must be positive")
)

// Position is one symbol's holding. AvgPrice is meaningful only while
// Quantity is non-zero; it is zeroed on every full close
type Position struct {
	Symbol      string
	Quantity    decimal.Decimal
	AvgPrice    decimal.Decimal
	RealizedPNL decimal.Decimal
}

// New returns an empty position for the symbol
func New(symbol string) (*Position, error) {
	if symbol == "" {
		return nil, common.ErrSymbolUnset
	}
	return &Position{Symbol: symbol}, nil
}

// ApplyTrade applies a signed quantity delta at price with the standard
// weighted-average-cost rules and returns the realized profit of the trade:
//   - a same-direction add leaves the average unchanged (the average is the
//     quantity-weighted blend of old average and trade price)
//   - a reduction realizes closedQty x (price - avg) x sign(oldQty) x mult
//   - a full close zeroes quantity and average
//   - a reversal realizes the whole old position, then reopens the surplus
//     at the trade price
func (p *Position) ApplyTrade(qtyDelta, price, multiplier decimal.Decimal) (decimal.Decimal, error) {
	if qtyDelta.IsZero() {
		return decimal.Zero, fmt.Errorf("%w for %v", ErrZeroQuantity, p.Symbol)
	}
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w for %v", ErrInvalidPrice, p.Symbol)
	}

	oldQty := p.Quantity
	newQty := oldQty.Add(qtyDelta)

	switch {
	case oldQty.IsZero():
		// fresh open
		p.Quantity = newQty
		p.AvgPrice = price
		return decimal.Zero, nil

	case oldQty.Sign() == qtyDelta.Sign():
		// add in the same direction, blend the average
		total := oldQty.Abs().Mul(p.AvgPrice).Add(qtyDelta.Abs().Mul(price))
		p.AvgPrice = total.Div(newQty.Abs())
		p.Quantity = newQty
		return decimal.Zero, nil

	case newQty.IsZero() || newQty.Sign() == oldQty.Sign():
		// reduce or fully close
		closed := qtyDelta.Abs()
		realized := closed.Mul(price.Sub(p.AvgPrice)).
			Mul(decimal.NewFromInt(int64(oldQty.Sign()))).
			Mul(multiplier)
		p.Quantity = newQty
		p.RealizedPNL = p.RealizedPNL.Add(realized)
		if newQty.IsZero() {
			p.AvgPrice = decimal.Zero
		}
		return realized, nil

	default:
		// reversal: realize the whole old position, reopen the surplus
		closed := oldQty.Abs()
		realized := closed.Mul(price.Sub(p.AvgPrice)).
			Mul(decimal.NewFromInt(int64(oldQty.Sign()))).
			Mul(multiplier)
		p.Quantity = newQty
		p.AvgPrice = price
		p.RealizedPNL = p.RealizedPNL.Add(realized)
		return realized, nil
	}
}

// Notional returns the signed marked value of the position at price
func (p *Position) Notional(price, multiplier decimal.Decimal) decimal.Decimal {
	return p.Quantity.Mul(price).Mul(multiplier)
}

// IsFlat reports whether there is no open quantity
func (p *Position) IsFlat() bool {
	return p.Quantity.IsZero()
}
