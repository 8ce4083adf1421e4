package trader

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/youngkwangkim88-blip/matlab-trading/common"
)

var (
	// ErrFeedUnset is returned when a trader is built without a feed
	ErrFeedUnset = errors.New("data feed unset")
	// ErrInvalidSettings wraps hyperparameter validation failures
	ErrInvalidSettings = errors.New("invalid strategy settings")
)

// Trade reasons recorded into fill and ledger rows
const (
	ReasonSignalEntry = "SignalEntry"
	ReasonSignalExit  = "SignalExit"
	ReasonStopDaily   = "STOP:DAILY"
	ReasonStopTrail   = "STOP:TRAIL"
	ReasonForcedCover = "FORCED_COVER_MAXHOLD"
	ReasonRebalance   = "Rebalance"
)

// Reference moving average choices for the previous-close filter
const (
	RefWeek = "week"
	RefFast = "fast"
)

// Settings is the hyperparameter set of one trader
type Settings struct {
	SpreadEnterPct float64 `json:"spread-enter-pct"`
	SpreadExitPct  float64 `json:"spread-exit-pct"`

	UseATRFilter bool    `json:"use-atr-filter"`
	ATREnterK    float64 `json:"atr-enter-k"`
	ATRExitK     float64 `json:"atr-exit-k"`

	ConfirmDays  int `json:"confirm-days"`
	MinHoldBars  int `json:"min-hold-bars"`
	CooldownBars int `json:"cooldown-bars"`

	UseLongTrendFilter  bool `json:"use-long-trend-filter"`
	UseShortTrendFilter bool `json:"use-short-trend-filter"`
	EnableShort         bool `json:"enable-short"`

	LongDailyStop  float64 `json:"long-daily-stop"`
	LongTrailStop  float64 `json:"long-trail-stop"`
	ShortDailyStop float64 `json:"short-daily-stop"`
	ShortTrailStop float64 `json:"short-trail-stop"`

	UsePrevCloseFilter bool   `json:"use-prev-close-filter"`
	PrevCloseFilterRef string `json:"prev-close-filter-ref"`

	UseMACDRegimeFilter bool `json:"use-macd-regime-filter"`
	UseMACDExit         bool `json:"use-macd-exit"`

	UseSizeScaling bool    `json:"use-size-scaling"`
	SizeScaleMin   float64 `json:"size-scale-min"`
	SizeScaleMax   float64 `json:"size-scale-max"`
	SizeScaleATRK  float64 `json:"size-scale-atr-k"`

	// self-enforced regulatory short cover; the engine enforces the
	// instrument spec's deadline regardless
	EnforceShortMaxHold bool `json:"enforce-short-max-hold"`
	ShortMaxHoldDays    int  `json:"short-max-hold-days"`
}

// DefaultSettings returns the baseline daily-bar parameter set
func DefaultSettings() Settings {
	return Settings{
		SpreadEnterPct:     0.0030,
		SpreadExitPct:      0.0010,
		UseATRFilter:       true,
		ATREnterK:          0.35,
		ATRExitK:           0.10,
		ConfirmDays:        2,
		MinHoldBars:        3,
		CooldownBars:       0,
		UseLongTrendFilter: true,
		EnableShort:        true,
		LongDailyStop:      0.05,
		LongTrailStop:      0.10,
		ShortDailyStop:     0.03,
		ShortTrailStop:     0.10,
		PrevCloseFilterRef: RefFast,
		SizeScaleMin:       0.6,
		SizeScaleMax:       1.0,
		SizeScaleATRK:      1.0,
	}
}

// Validate rejects unusable hyperparameters
func (s *Settings) Validate() error {
	switch {
	case s.SpreadEnterPct < 0 || s.SpreadExitPct < 0:
		return errInvalid("spread thresholds cannot be negative")
	case s.UseATRFilter && (s.ATREnterK <= 0 || s.ATRExitK < 0):
		return errInvalid("atr thresholds must be positive")
	case s.ConfirmDays < 1:
		return errInvalid("confirm days must be at least 1")
	case s.MinHoldBars < 0 || s.CooldownBars < 0:
		return errInvalid("hold and cooldown bars cannot be negative")
	case s.LongDailyStop <= 0 || s.LongTrailStop <= 0 || s.ShortDailyStop <= 0 || s.ShortTrailStop <= 0:
		return errInvalid("stop percentages must be positive")
	case s.UsePrevCloseFilter && s.PrevCloseFilterRef != RefWeek && s.PrevCloseFilterRef != RefFast:
		return errInvalid("prev close filter ref must be week or fast")
	case s.UseSizeScaling && (s.SizeScaleMin <= 0 || s.SizeScaleMax > 1 || s.SizeScaleMin > s.SizeScaleMax || s.SizeScaleATRK <= 0):
		return errInvalid("size scaling range must satisfy 0 < min <= max <= 1 with positive atr k")
	case s.EnforceShortMaxHold && s.ShortMaxHoldDays <= 0:
		return errInvalid("short max hold days must be positive when enforced")
	}
	return nil
}

func errInvalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidSettings, msg)
}

// PaperCosts are the flat rates the trader's own normalized account charges.
// The ledger remains the authoritative currency accounting
type PaperCosts struct {
	FeeRate          float64
	SellTaxRate      float64
	BorrowAnnualRate float64
	BorrowDayCount   int
}

// Result is what one step hands to the engine: the desired position, the
// price the intent executes at and why
type Result struct {
	Stepped       bool
	Desired       int
	ExecPrice     float64
	Reason        string
	EntryFraction float64
}

// FillEntry is one paper fill the trader intends; the engine marks it
// executed once the ledger accepts a same-day trade
type FillEntry struct {
	Time          time.Time
	Symbol        string
	Side          common.Side
	Price         float64
	Reason        string
	Fraction      float64
	PositionAfter int
	Executed      bool
	ExecutedQty   decimal.Decimal
}

// StopEntry is one stop or forced-cover trigger
type StopEntry struct {
	Time      time.Time
	Symbol    string
	Kind      string
	Price     float64
	Reference float64
}

// EquitySample is one point of the trader's normalized equity curve
type EquitySample struct {
	Time   time.Time
	Equity float64
}

// PositionSample is one point of the trader's position-sign curve
type PositionSample struct {
	Time     time.Time
	Position int
}

// positionState is everything that resets when a position closes
type positionState struct {
	pos           int
	frac          float64
	entryPrice    float64
	entryTime     time.Time
	entryIndex    int
	histMax       float64
	histMin       float64
	cooldownUntil int
}

func freshPositionState() positionState {
	return positionState{
		frac:          1,
		entryPrice:    math.NaN(),
		entryIndex:    -1,
		histMax:       math.Inf(-1),
		histMin:       math.Inf(1),
		cooldownUntil: -1,
	}
}
