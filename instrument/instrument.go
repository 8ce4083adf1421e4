// Package instrument defines the immutable per-symbol trading rules the
// ledger and engine consult: multipliers, sizing caps, shorting permission,
// borrow cost and the regulatory short-cover deadline
package instrument

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/youngkwangkim88-blip/matlab-trading/common"
	"github.com/youngkwangkim88-blip/matlab-trading/costs"
)

var (
	// ErrInvalidMultiplier is returned when the contract multiplier is not positive
	ErrInvalidMultiplier = errors.New("multiplier must be positive")
	// ErrInvalidNotionalFraction is returned when the sizing cap is outside (0, 1]
	ErrInvalidNotionalFraction = errors.New("max notional fraction must be within (0, 1]")
	// ErrNegativeBorrowRate is returned for a negative annual borrow rate
	ErrNegativeBorrowRate = errors.New("borrow rate cannot be negative")
	// ErrInvalidShortMaxHold is returned when enforcement is requested
	// without a positive deadline
	ErrInvalidShortMaxHold = errors.New("short max hold days must be positive when enforced")
	// ErrModelUnset is returned when a cost model reference is missing
	ErrModelUnset = errors.New("cost model unset")
)

// Spec is the immutable configuration for one traded symbol. Construct with
// NewSpec; a zero Spec is not usable
type Spec struct {
	Symbol              string
	Multiplier          decimal.Decimal
	AllowShort          bool
	MaxNotionalFraction decimal.Decimal
	BorrowAnnualRate    decimal.Decimal
	ShortMaxHoldDays    int
	EnforceShortMaxHold bool

	FeeModel    costs.FeeModel
	TaxModel    costs.TaxModel
	MarginModel costs.MarginModel
}

// NewSpec validates and returns a Spec
func NewSpec(symbol string, multiplier, maxNotionalFraction, borrowAnnualRate decimal.Decimal, allowShort bool, shortMaxHoldDays int, enforceShortMaxHold bool, fee costs.FeeModel, tax costs.TaxModel, margin costs.MarginModel) (*Spec, error) {
	if symbol == "" {
		return nil, common.ErrSymbolUnset
	}
	if !multiplier.IsPositive() {
		return nil, fmt.Errorf("%w for %v", ErrInvalidMultiplier, symbol)
	}
	if !maxNotionalFraction.IsPositive() || maxNotionalFraction.GreaterThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("%w for %v", ErrInvalidNotionalFraction, symbol)
	}
	if borrowAnnualRate.IsNegative() {
		return nil, fmt.Errorf("%w for %v", ErrNegativeBorrowRate, symbol)
	}
	if enforceShortMaxHold && shortMaxHoldDays <= 0 {
		return nil, fmt.Errorf("%w for %v", ErrInvalidShortMaxHold, symbol)
	}
	if fee == nil || tax == nil || margin == nil {
		return nil, fmt.Errorf("%w for %v", ErrModelUnset, symbol)
	}
	return &Spec{
		Symbol:              symbol,
		Multiplier:          multiplier,
		AllowShort:          allowShort,
		MaxNotionalFraction: maxNotionalFraction,
		BorrowAnnualRate:    borrowAnnualRate,
		ShortMaxHoldDays:    shortMaxHoldDays,
		EnforceShortMaxHold: enforceShortMaxHold,
		FeeModel:            fee,
		TaxModel:            tax,
		MarginModel:         margin,
	}, nil
}
