package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"

	"github.com/youngkwangkim88-blip/matlab-trading/common"
	"github.com/youngkwangkim88-blip/matlab-trading/config"
	"github.com/youngkwangkim88-blip/matlab-trading/instrument"
	"github.com/youngkwangkim88-blip/matlab-trading/ledger"
	"github.com/youngkwangkim88-blip/matlab-trading/log"
	"github.com/youngkwangkim88-blip/matlab-trading/trader"
)

// New assembles a backtest over the shared date grid of the supplied
// instruments. Instruments with no dates inside the window are excluded
// with a warning; an empty grid is fatal
func New(nickname string, window config.DataSettings, portfolio config.PortfolioSettings, insts []*Instrument) (*Backtest, error) {
	if len(insts) == 0 {
		return nil, ErrNoInstruments
	}
	l, err := ledger.New(portfolio.InitialCapital)
	if err != nil {
		return nil, err
	}

	included := make([]*Instrument, 0, len(insts))
	specs := make(map[string]*instrument.Spec, len(insts))
	var grids [][]time.Time
	for _, in := range insts {
		if in == nil || in.Spec == nil || in.Feed == nil || in.Trader == nil {
			return nil, fmt.Errorf("%w: incomplete instrument", common.ErrNilArguments)
		}
		grid := datesInWindow(in.Feed.Dates(), window.StartDate, window.EndDate)
		if len(grid) == 0 {
			log.Warnf(log.Engine, "%s has no bars inside the window, excluding it", in.Spec.Symbol)
			continue
		}
		included = append(included, in)
		specs[in.Spec.Symbol] = in.Spec
		grids = append(grids, grid)
	}
	if len(included) == 0 {
		return nil, ErrNoOverlap
	}
	sort.Slice(included, func(i, j int) bool {
		return included[i].Spec.Symbol < included[j].Spec.Symbol
	})
	dates := intersectDates(grids)
	if len(dates) == 0 {
		return nil, ErrNoOverlap
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	symbols := make([]string, len(included))
	for i := range included {
		symbols[i] = included[i].Spec.Symbol
	}
	return &Backtest{
		meta: RunMetaData{
			ID:        id,
			Nickname:  nickname,
			DateStart: dates[0],
			DateEnd:   dates[len(dates)-1],
			Symbols:   symbols,
		},
		settings:      portfolio,
		ledger:        l,
		insts:         included,
		specs:         specs,
		dates:         dates,
		shortOpenedAt: make(map[string]time.Time),
	}, nil
}

// Meta returns the run identity
func (bt *Backtest) Meta() RunMetaData {
	return bt.meta
}

// Ledger returns the shared-cash ledger
func (bt *Backtest) Ledger() *ledger.Ledger {
	return bt.ledger
}

// Instruments returns the included instruments in execution order
func (bt *Backtest) Instruments() []*Instrument {
	out := make([]*Instrument, len(bt.insts))
	copy(out, bt.insts)
	return out
}

// Dates returns the shared date grid
func (bt *Backtest) Dates() []time.Time {
	out := make([]time.Time, len(bt.dates))
	copy(out, bt.dates)
	return out
}

// Run marches every shared date in ascending order: step the traders,
// settle their intents against the ledger in fixed symbol order, then
// accrue borrow and sample the equity curve
func (bt *Backtest) Run() error {
	if bt.ran {
		return ErrAlreadyRan
	}
	bt.ran = true
	bt.meta.Started = time.Now()
	log.Infof(log.Engine, "run %v %q: %d instruments, %d dates %v..%v",
		bt.meta.ID, bt.meta.Nickname, len(bt.insts), len(bt.dates),
		bt.meta.DateStart.Format("2006-01-02"), bt.meta.DateEnd.Format("2006-01-02"))

	for _, date := range bt.dates {
		results := make([]trader.Result, len(bt.insts))
		for i, in := range bt.insts {
			t, ok := in.Feed.IndexOf(date)
			if !ok {
				continue
			}
			results[i] = in.Trader.Step(t)
		}
		for i, in := range bt.insts {
			if !results[i].Stepped {
				continue
			}
			bt.settle(date, in, results[i])
		}
		bt.markDay(date)
	}

	bt.ledger.Flush()
	bt.meta.Finished = time.Now()
	log.Infof(log.Engine, "run %v finished: %d trades, %d rejections, final equity %v",
		bt.meta.ID, len(bt.ledger.Trades()), len(bt.ledger.Rejections()),
		bt.ledger.MarkedEquity(bt.specs).StringFixed(2))
	return nil
}

// settle turns one trader's step result into ledger trades, downsizing
// on rejection and reconciling the trader's sign with the outcome
func (bt *Backtest) settle(date time.Time, in *Instrument, res trader.Result) {
	sym := in.Spec.Symbol
	current := bt.ledger.Position(sym).Quantity
	currentSign := signOf(current)

	if !common.IsFinite(res.ExecPrice) || res.ExecPrice <= 0 {
		log.Warnf(log.Engine, "%s %v: unusable execution price %v, skipping",
			sym, date.Format("2006-01-02"), res.ExecPrice)
		in.Trader.RevertExecution(currentSign)
		// a rejection row keeps the skipped step reconcilable against the
		// trader's fill log
		if sign(res.Desired) != currentSign {
			bt.ledger.LogRejection(ledger.RejectionEntry{
				Time:            date,
				Symbol:          sym,
				DesiredPosition: sign(res.Desired),
				CurrentQuantity: current,
				RequestedTarget: current,
				FinalTarget:     current,
			})
		}
		return
	}
	price := decimal.NewFromFloat(res.ExecPrice)

	desired := sign(res.Desired)
	reason := res.Reason

	// the ledger position is the authority on short holding age, so the
	// deadline is enforced here as well as inside the trader
	if in.Spec.EnforceShortMaxHold && currentSign < 0 {
		if opened, ok := bt.shortOpenedAt[sym]; ok &&
			common.CalendarDays(opened, date) >= in.Spec.ShortMaxHoldDays {
			desired = 0
			reason = trader.ReasonForcedCover
		}
	}

	if desired == currentSign && !(bt.settings.RebalanceOnHold && desired != 0) {
		// holding, nothing to settle
		in.Trader.SyncExecuted(currentSign)
		return
	}

	var requested decimal.Decimal
	switch {
	case desired == 0:
		requested = decimal.Zero
		if reason == "" {
			reason = trader.ReasonSignalExit
		}
	default:
		requested = bt.sizeTarget(in.Spec, price, desired, res.EntryFraction)
		if reason == "" {
			if desired == currentSign {
				reason = trader.ReasonRebalance
			} else {
				reason = trader.ReasonSignalEntry
			}
		}
	}

	final, retries, err := bt.execute(date, in, requested, price, reason)
	if err != nil {
		in.Trader.RevertExecution(currentSign)
		bt.ledger.LogRejection(ledger.RejectionEntry{
			Time:            date,
			Symbol:          sym,
			DesiredPosition: desired,
			CurrentQuantity: current,
			RequestedTarget: requested,
			FinalTarget:     current,
			Retries:         retries,
		})
		return
	}
	if !final.Equal(requested) {
		bt.ledger.LogRejection(ledger.RejectionEntry{
			Time:            date,
			Symbol:          sym,
			DesiredPosition: desired,
			CurrentQuantity: current,
			RequestedTarget: requested,
			FinalTarget:     final,
			Retries:         retries,
		})
	}

	executedSign := signOf(bt.ledger.Position(sym).Quantity)
	in.Trader.SyncExecuted(executedSign)
	if !final.Equal(current) {
		in.Trader.ConfirmFill(final)
	}
	switch {
	case executedSign < 0 && currentSign >= 0:
		bt.shortOpenedAt[sym] = date
	case executedSign >= 0:
		delete(bt.shortOpenedAt, sym)
	}
}

// execute submits the target, decaying it toward zero on insufficient
// funds. A zero target is a valid terminal outcome
func (bt *Backtest) execute(date time.Time, in *Instrument, target, price decimal.Decimal, reason string) (decimal.Decimal, int, error) {
	sym := in.Spec.Symbol
	one := decimal.NewFromInt(1)
	var retries int
	for {
		err := bt.ledger.SetTargetQuantity(date, sym, target, price, in.Spec, bt.specs, in.Trader.ID(), reason)
		if err == nil {
			return target, retries, nil
		}
		if retries >= bt.settings.MaxRetries || target.IsZero() {
			return decimal.Zero, retries, err
		}
		retries++
		next := target.Abs().Mul(bt.settings.RetryDecay).Floor()
		if next.GreaterThanOrEqual(target.Abs()) {
			next = target.Abs().Sub(one)
		}
		if next.IsNegative() {
			next = decimal.Zero
		}
		if target.IsNegative() {
			next = next.Neg()
		}
		target = next
	}
}

// sizeTarget converts a desired sign into a whole-unit target quantity
func (bt *Backtest) sizeTarget(spec *instrument.Spec, price decimal.Decimal, desired int, fraction float64) decimal.Decimal {
	basis := bt.settings.InitialCapital
	if bt.settings.DynamicSizing {
		basis = bt.ledger.MarkedEquity(bt.specs)
	}
	notional := basis.Mul(spec.MaxNotionalFraction)
	if bt.settings.ScaleEntryByFraction && common.IsFinite(fraction) && fraction > 0 {
		notional = notional.Mul(decimal.NewFromFloat(fraction))
	}
	units := notional.Div(price.Mul(spec.Multiplier)).Floor()
	if units.IsNegative() {
		units = decimal.Zero
	}
	if desired < 0 {
		return units.Neg()
	}
	return units
}

// markDay accrues daily borrow and samples the equity curve at the
// configured valuation price
func (bt *Backtest) markDay(date time.Time) {
	prices := make(map[string]decimal.Decimal, len(bt.insts))
	for _, in := range bt.insts {
		t, ok := in.Feed.IndexOf(date)
		if !ok {
			continue
		}
		px := in.Feed.Close(t)
		if bt.settings.ValuationMode == config.ValuationNextOpen && t+1 < in.Feed.Len() {
			px = in.Feed.Open(t + 1)
		}
		if !common.IsFinite(px) || px <= 0 {
			continue
		}
		prices[in.Spec.Symbol] = decimal.NewFromFloat(px)
	}
	if err := bt.ledger.ApplyBorrowCost(date, prices, bt.specs, bt.settings.TradingDaysPerYear); err != nil {
		log.Errorf(log.Engine, "borrow accrual %v: %v", date.Format("2006-01-02"), err)
	}
	bt.ledger.AppendEquityCurve(date, prices, bt.specs)
}

func datesInWindow(all []time.Time, start, end time.Time) []time.Time {
	out := make([]time.Time, 0, len(all))
	for _, d := range all {
		if !start.IsZero() && d.Before(common.NormalizeDate(start)) {
			continue
		}
		if !end.IsZero() && d.After(common.NormalizeDate(end)) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// intersectDates keeps only dates present in every grid, ascending
func intersectDates(grids [][]time.Time) []time.Time {
	if len(grids) == 0 {
		return nil
	}
	counts := make(map[time.Time]int)
	for _, grid := range grids {
		for _, d := range grid {
			counts[d]++
		}
	}
	var out []time.Time
	for _, d := range grids[0] {
		if counts[d] == len(grids) {
			out = append(out, d)
		}
	}
	return out
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

func signOf(d decimal.Decimal) int {
	switch {
	case d.IsPositive():
		return 1
	case d.IsNegative():
		return -1
	}
	return 0
}
