package engine

import (
	"errors"
	"time"

	"github.com/gofrs/uuid"

	"github.com/youngkwangkim88-blip/matlab-trading/config"
	"github.com/youngkwangkim88-blip/matlab-trading/data"
	"github.com/youngkwangkim88-blip/matlab-trading/instrument"
	"github.com/youngkwangkim88-blip/matlab-trading/ledger"
	"github.com/youngkwangkim88-blip/matlab-trading/trader"
)

var (
	// ErrNoInstruments is returned when a backtest is assembled without
	// any tradable instrument
	ErrNoInstruments = errors.New("backtest requires at least one instrument")
	// ErrNoOverlap is returned when no date is shared by every included
	// instrument inside the requested window
	ErrNoOverlap = errors.New("no trading dates shared by all instruments in window")
	// ErrAlreadyRan guards against reusing a finished run
	ErrAlreadyRan = errors.New("backtest has already run")
)

// Instrument couples one symbol's spec, bar feed and signal trader
type Instrument struct {
	Spec   *instrument.Spec
	Feed   data.Handler
	Trader *trader.Trader
}

// RunMetaData identifies one backtest run
type RunMetaData struct {
	ID        uuid.UUID
	Nickname  string
	DateStart time.Time
	DateEnd   time.Time
	Started   time.Time
	Finished  time.Time
	Symbols   []string
}

// Backtest marches every trader over the shared date grid and settles
// their intents against one shared-cash ledger
type Backtest struct {
	meta     RunMetaData
	settings config.PortfolioSettings
	ledger   *ledger.Ledger
	insts    []*Instrument
	specs    map[string]*instrument.Spec
	dates    []time.Time
	// first date each symbol's ledger position turned short, for the
	// regulatory max-hold override
	shortOpenedAt map[string]time.Time
	ran           bool
}
