package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"

	"github.com/youngkwangkim88-blip/matlab-trading/costs"
	"github.com/youngkwangkim88-blip/matlab-trading/instrument"
)

// ReadConfigFromFile loads and validates a backtest configuration
func ReadConfigFromFile(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w %v", os.ErrNotExist, path)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return LoadConfig(raw)
}

// LoadConfig unmarshals JSON bytes and validates the result
func LoadConfig(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate applies defaults and rejects configurations the engine
// cannot run
func (c *Config) Validate() error {
	if !c.Data.StartDate.IsZero() && !c.Data.EndDate.IsZero() &&
		!c.Data.StartDate.Before(c.Data.EndDate) {
		return fmt.Errorf("%w: %v >= %v", errInvalidDateWindow, c.Data.StartDate, c.Data.EndDate)
	}
	if c.Portfolio.InitialCapital.LessThanOrEqual(decimal.Zero) {
		return errInvalidCapital
	}
	if c.Portfolio.ValuationMode == "" {
		c.Portfolio.ValuationMode = ValuationClose
	}
	if c.Portfolio.ValuationMode != ValuationClose && c.Portfolio.ValuationMode != ValuationNextOpen {
		return fmt.Errorf("%w: %q", errInvalidValuationMode, c.Portfolio.ValuationMode)
	}
	if c.Portfolio.TradingDaysPerYear <= 0 {
		c.Portfolio.TradingDaysPerYear = 252
	}
	if c.Portfolio.RetryDecay.IsZero() {
		c.Portfolio.RetryDecay = decimal.NewFromFloat(0.98)
	}
	if c.Portfolio.RetryDecay.LessThanOrEqual(decimal.Zero) ||
		c.Portfolio.RetryDecay.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: %v", errInvalidRetryDecay, c.Portfolio.RetryDecay)
	}
	if c.Portfolio.MaxRetries == 0 {
		c.Portfolio.MaxRetries = 100
	}
	if c.Portfolio.MaxRetries < 0 {
		return errInvalidRetries
	}
	if c.Portfolio.AuditSampleEvery <= 0 {
		c.Portfolio.AuditSampleEvery = 1
	}
	if len(c.Instruments) == 0 {
		return errNoInstruments
	}
	seen := make(map[string]bool, len(c.Instruments))
	for i := range c.Instruments {
		inst := &c.Instruments[i]
		if seen[inst.Symbol] {
			return fmt.Errorf("%w: %q", errDuplicateSymbol, inst.Symbol)
		}
		seen[inst.Symbol] = true
		if inst.Multiplier.IsZero() {
			inst.Multiplier = decimal.NewFromInt(1)
		}
		if inst.BorrowDayCount <= 0 {
			inst.BorrowDayCount = 365
		}
		if inst.MaxNotionalFraction.IsZero() {
			inst.MaxNotionalFraction = decimal.NewFromInt(1)
		}
		if _, err := inst.BuildSpec(); err != nil {
			return fmt.Errorf("instrument %q: %w", inst.Symbol, err)
		}
	}
	if err := c.Strategy.Validate(); err != nil {
		return err
	}
	return c.Indicators.Validate()
}

// BuildSpec assembles the instrument spec and its cost models
func (i *InstrumentSettings) BuildSpec() (*instrument.Spec, error) {
	fee, err := costs.NewFlatFee(i.FeeRate)
	if err != nil {
		return nil, err
	}
	yearRates := make(map[int]decimal.Decimal, len(i.SellTaxYearRates))
	for _, yr := range i.SellTaxYearRates {
		yearRates[yr.Year] = yr.Rate
	}
	tax, err := costs.NewSellTax(i.SellTaxRate, yearRates)
	if err != nil {
		return nil, err
	}
	margin, err := costs.NewAsymmetricMargin(i.MarginLongRate, i.MarginShortRate)
	if err != nil {
		return nil, err
	}
	return instrument.NewSpec(i.Symbol, i.Multiplier, i.MaxNotionalFraction,
		i.BorrowAnnualRate, i.AllowShort, i.ShortMaxHoldDays,
		i.EnforceShortMaxHold, fee, tax, margin)
}
