package config

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/youngkwangkim88-blip/matlab-trading/indicators"
	"github.com/youngkwangkim88-blip/matlab-trading/trader"
)

var (
	errNoInstruments        = errors.New("config requires at least one instrument")
	errDuplicateSymbol      = errors.New("duplicate instrument symbol")
	errInvalidDateWindow    = errors.New("start date must precede end date")
	errInvalidCapital       = errors.New("initial capital must be positive")
	errInvalidValuationMode = errors.New("valuation mode must be CLOSE or NEXT_OPEN")
	errInvalidRetryDecay    = errors.New("retry decay must be within (0, 1)")
	errInvalidRetries       = errors.New("max retries must be positive")
)

// Equity curve valuation price choices
const (
	ValuationClose    = "CLOSE"
	ValuationNextOpen = "NEXT_OPEN"
)

// Config is one full backtest run definition, loaded from JSON
type Config struct {
	Nickname    string               `json:"nickname"`
	Data        DataSettings         `json:"data"`
	Portfolio   PortfolioSettings    `json:"portfolio"`
	Strategy    trader.Settings      `json:"strategy"`
	Indicators  indicators.Settings  `json:"indicators"`
	Instruments []InstrumentSettings `json:"instruments"`
}

// DataSettings bounds the simulation window and locates bar files
type DataSettings struct {
	StartDate time.Time `json:"start-date"`
	EndDate   time.Time `json:"end-date"`
	CSVDir    string    `json:"csv-dir"`
}

// PortfolioSettings drive the ledger and the engine's sizing policy
type PortfolioSettings struct {
	InitialCapital     decimal.Decimal `json:"initial-capital"`
	DynamicSizing      bool            `json:"dynamic-sizing"`
	RebalanceOnHold    bool            `json:"rebalance-on-hold"`
	ValuationMode      string          `json:"valuation-mode"`
	TradingDaysPerYear int             `json:"trading-days-per-year"`
	RetryDecay         decimal.Decimal `json:"retry-decay"`
	MaxRetries         int             `json:"max-retries"`
	AuditSampleEvery   int             `json:"audit-sample-every"`
	// ScaleEntryByFraction composes the trader's entry fraction into the
	// engine's sized target on fresh entries; rejection downsizing then
	// applies on top of the already-scaled target
	ScaleEntryByFraction bool `json:"scale-entry-by-fraction"`
}

// YearRate overrides a tax rate for one calendar year
type YearRate struct {
	Year int             `json:"year"`
	Rate decimal.Decimal `json:"rate"`
}

// InstrumentSettings configures one traded symbol
type InstrumentSettings struct {
	Symbol              string          `json:"symbol"`
	CSVFile             string          `json:"csv-file"`
	Multiplier          decimal.Decimal `json:"multiplier"`
	AllowShort          bool            `json:"allow-short"`
	MaxNotionalFraction decimal.Decimal `json:"max-notional-fraction"`
	BorrowAnnualRate    decimal.Decimal `json:"borrow-annual-rate"`
	BorrowDayCount      int             `json:"borrow-day-count"`
	FeeRate             decimal.Decimal `json:"fee-rate"`
	SellTaxRate         decimal.Decimal `json:"sell-tax-rate"`
	SellTaxYearRates    []YearRate      `json:"sell-tax-year-rates"`
	MarginLongRate      decimal.Decimal `json:"margin-long-rate"`
	MarginShortRate     decimal.Decimal `json:"margin-short-rate"`
	ShortMaxHoldDays    int             `json:"short-max-hold-days"`
	EnforceShortMaxHold bool            `json:"enforce-short-max-hold"`
}
