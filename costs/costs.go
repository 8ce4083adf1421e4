// Package costs holds the pluggable fee, tax and margin models an
// instrument spec is built with. Every model implements a fixed capability
// interface; there are no optional methods
package costs

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/youngkwangkim88-blip/matlab-trading/common"
)

// FlatFee charges a single commission rate on traded notional
type FlatFee struct {
	Rate decimal.Decimal
}

// NewFlatFee validates and returns a commission model
func NewFlatFee(rate decimal.Decimal) (*FlatFee, error) {
	if rate.IsNegative() {
		return nil, ErrNegativeRate
	}
	return &FlatFee{Rate: rate}, nil
}

// Fee implements FeeModel
func (f *FlatFee) Fee(notional decimal.Decimal) decimal.Decimal {
	return notional.Abs().Mul(f.Rate)
}

// SellTax charges transaction tax on sell-side notional only, at a rate
// resolved per calendar year. Years without an override use the default rate
type SellTax struct {
	DefaultRate decimal.Decimal
	YearRates   map[int]decimal.Decimal
}

// NewSellTax validates and returns a sell-side tax model
func NewSellTax(defaultRate decimal.Decimal, yearRates map[int]decimal.Decimal) (*SellTax, error) {
	if defaultRate.IsNegative() {
		return nil, ErrNegativeRate
	}
	for _, r := range yearRates {
		if r.IsNegative() {
			return nil, ErrNegativeRate
		}
	}
	return &SellTax{DefaultRate: defaultRate, YearRates: yearRates}, nil
}

// Tax implements TaxModel
func (s *SellTax) Tax(date time.Time, side common.Side, notional decimal.Decimal) decimal.Decimal {
	if side != common.Sell {
		return decimal.Zero
	}
	rate := s.DefaultRate
	if r, ok := s.YearRates[date.Year()]; ok {
		rate = r
	}
	return notional.Abs().Mul(rate)
}

// AsymmetricMargin reserves cash against open positions at different rates
// for longs and shorts. A fully cash-funded long book uses a zero long rate
type AsymmetricMargin struct {
	LongRate  decimal.Decimal
	ShortRate decimal.Decimal
}

// NewAsymmetricMargin validates and returns a margin model
func NewAsymmetricMargin(longRate, shortRate decimal.Decimal) (*AsymmetricMargin, error) {
	if longRate.IsNegative() || shortRate.IsNegative() {
		return nil, ErrNegativeRate
	}
	return &AsymmetricMargin{LongRate: longRate, ShortRate: shortRate}, nil
}

// Margin implements MarginModel
func (a *AsymmetricMargin) Margin(quantity, price, multiplier decimal.Decimal) decimal.Decimal {
	if quantity.IsZero() {
		return decimal.Zero
	}
	notional := quantity.Mul(price).Mul(multiplier).Abs()
	if quantity.IsNegative() {
		return notional.Mul(a.ShortRate)
	}
	return notional.Mul(a.LongRate)
}

// Zero is a free model satisfying all three capabilities, used by tests and
// frictionless runs
type Zero struct{}

// Fee implements FeeModel
func (Zero) Fee(decimal.Decimal) decimal.Decimal {
	return decimal.Zero
}

// Tax implements TaxModel
func (Zero) Tax(time.Time, common.Side, decimal.Decimal) decimal.Decimal {
	return decimal.Zero
}

// Margin implements MarginModel
func (Zero) Margin(_, _, _ decimal.Decimal) decimal.Decimal {
	return decimal.Zero
}
