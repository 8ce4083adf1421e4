// Package trader implements the per-instrument decision state machine. A
// trader consumes previous-bar indicators from its feed, keeps a normalized
// paper account for its own logs, and hands the engine a desired position
// each step. It never touches the shared ledger; the engine reconciles the
// trader's desired position with the ledger's executed one
package trader

import (
	"math"
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"

	"github.com/youngkwangkim88-blip/matlab-trading/common"
	"github.com/youngkwangkim88-blip/matlab-trading/data"
)

// Trader is one symbol's signal state machine
type Trader struct {
	id       string
	symbol   string
	feed     data.Handler
	settings Settings
	costs    PaperCosts

	borrowDaily float64
	logStart    time.Time
	logEnd      time.Time

	state     positionState
	prevState positionState
	equity    float64

	fills         []FillEntry
	stops         []StopEntry
	equityCurve   []EquitySample
	positionCurve []PositionSample

	stepFillStart int
}

// New builds a trader over a feed. logStart/logEnd bound the sampled curves;
// zero values leave them unbounded (warmup bars are then sampled too)
func New(feed data.Handler, settings Settings, costs PaperCosts, logStart, logEnd time.Time) (*Trader, error) {
	if feed == nil {
		return nil, ErrFeedUnset
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	// name-based id so identical runs produce identical trade logs
	id := uuid.NewV5(uuid.NamespaceOID, "trader:"+feed.Symbol())
	dayCount := costs.BorrowDayCount
	if dayCount <= 0 {
		dayCount = 365
	}
	t := &Trader{
		id:          id.String(),
		symbol:      feed.Symbol(),
		feed:        feed,
		settings:    settings,
		costs:       costs,
		borrowDaily: costs.BorrowAnnualRate / float64(dayCount),
		logStart:    logStart,
		logEnd:      logEnd,
	}
	t.Reset()
	return t, nil
}

// ID returns the trader's identifier, derived from its symbol so repeated
// runs over the same inputs log the same id
func (tr *Trader) ID() string {
	return tr.id
}

// Symbol returns the traded symbol
func (tr *Trader) Symbol() string {
	return tr.symbol
}

// Desired returns the trader-owned position sign
func (tr *Trader) Desired() int {
	return tr.state.pos
}

// Equity returns the current normalized paper equity
func (tr *Trader) Equity() float64 {
	return tr.equity
}

// Reset returns the trader to its start-of-run state
func (tr *Trader) Reset() {
	tr.state = freshPositionState()
	tr.prevState = freshPositionState()
	tr.equity = 1
	tr.fills = nil
	tr.stops = nil
	tr.equityCurve = nil
	tr.positionCurve = nil
	tr.stepFillStart = 0
}

// Run steps the whole feed, for standalone single-symbol evaluation
func (tr *Trader) Run() {
	n := tr.feed.Len()
	for t := 0; t < n-1; t++ {
		tr.Step(t)
	}
}

// Step processes bar index t. Steps with fewer than 2 preceding bars or no
// following bar are no-ops
func (tr *Trader) Step(t int) Result {
	res := Result{
		Desired:       tr.state.pos,
		ExecPrice:     tr.feed.Open(t),
		EntryFraction: tr.state.frac,
	}
	n := tr.feed.Len()
	if t < 2 || t > n-2 {
		return res
	}
	res.Stepped = true
	tr.prevState = tr.state
	tr.stepFillStart = len(tr.fills)

	bar, err := tr.feed.Bar(t)
	if err != nil {
		return res
	}
	date := tr.feed.Date(t)
	open, high, low := bar.Open, bar.High, bar.Low

	// daily borrow while short, scaled by the entry-fixed fraction
	if tr.state.pos < 0 && tr.borrowDaily > 0 {
		tr.equity *= 1 - tr.state.frac*tr.borrowDaily
	}

	if tr.state.pos != 0 {
		tr.updateExtrema(open, bar.Close)
	}

	// regulatory forced cover ends the step, no re-entry on the same bar
	if tr.shouldForceCover(date) {
		tr.exitAll(t, date, open, ReasonForcedCover)
		tr.stops = append(tr.stops, StopEntry{
			Time: date, Symbol: tr.symbol, Kind: ReasonForcedCover, Price: open, Reference: math.NaN(),
		})
		tr.sample(date)
		res.Desired = 0
		res.ExecPrice = open
		res.Reason = ReasonForcedCover
		res.EntryFraction = tr.state.frac
		return res
	}

	// intrabar stop ends the step too
	if hit, kind, px, ref := tr.checkStop(open, high, low); hit {
		tr.exitAll(t, date, px, kind)
		tr.stops = append(tr.stops, StopEntry{
			Time: date, Symbol: tr.symbol, Kind: kind, Price: px, Reference: ref,
		})
		tr.sample(date)
		res.Desired = 0
		res.ExecPrice = px
		res.Reason = kind
		res.EntryFraction = tr.state.frac
		return res
	}

	ctx := tr.feed.Context(t)
	if !ctx.Valid {
		// fail-safe: keep marking, decide nothing
		tr.markToMarket(t, open)
		tr.sample(date)
		return res
	}

	target := tr.decideTarget(t, ctx)
	if target != tr.state.pos {
		if tr.state.pos != 0 {
			tr.exitAll(t, date, open, ReasonSignalExit)
			res.Reason = ReasonSignalExit
		}
		if target != 0 {
			tr.enter(t, date, open, target, ctx)
			res.Reason = ReasonSignalEntry
		}
	}

	tr.markToMarket(t, open)
	tr.sample(date)

	res.Desired = tr.state.pos
	res.ExecPrice = open
	res.EntryFraction = tr.state.frac
	return res
}

// SyncExecuted accepts the ledger's authoritative position sign after a
// successful execution
func (tr *Trader) SyncExecuted(sign int) {
	if sign == tr.state.pos {
		return
	}
	if sign == 0 {
		cooldown := tr.state.cooldownUntil
		tr.state = freshPositionState()
		tr.state.cooldownUntil = cooldown
		return
	}
	tr.state.pos = sign
}

// RevertExecution rolls the position state back to its pre-step snapshot
// after the ledger rejected the step's intent. Paper costs already charged
// are not refunded; the rejection row explains the divergence
func (tr *Trader) RevertExecution(sign int) {
	tr.state = tr.prevState
	if tr.state.pos != sign {
		tr.SyncExecuted(sign)
	}
}

// ConfirmFill marks the fills of the current step as executed for log
// parity with the ledger's trade rows
func (tr *Trader) ConfirmFill(qty decimal.Decimal) {
	for i := tr.stepFillStart; i < len(tr.fills); i++ {
		tr.fills[i].Executed = true
		tr.fills[i].ExecutedQty = qty
	}
}

// Fills returns the paper fill log
func (tr *Trader) Fills() []FillEntry {
	out := make([]FillEntry, len(tr.fills))
	copy(out, tr.fills)
	return out
}

// Stops returns the stop/forced-cover log
func (tr *Trader) Stops() []StopEntry {
	out := make([]StopEntry, len(tr.stops))
	copy(out, tr.stops)
	return out
}

// EquityCurve returns the normalized paper equity samples
func (tr *Trader) EquityCurve() []EquitySample {
	out := make([]EquitySample, len(tr.equityCurve))
	copy(out, tr.equityCurve)
	return out
}

// PositionCurve returns the position-sign samples
func (tr *Trader) PositionCurve() []PositionSample {
	out := make([]PositionSample, len(tr.positionCurve))
	copy(out, tr.positionCurve)
	return out
}

func (tr *Trader) updateExtrema(open, closePx float64) {
	ocMax := math.Max(open, closePx)
	ocMin := math.Min(open, closePx)
	switch tr.state.pos {
	case 1:
		tr.state.histMax = math.Max(tr.state.histMax, ocMax)
	case -1:
		tr.state.histMin = math.Min(tr.state.histMin, ocMin)
	}
}

func (tr *Trader) shouldForceCover(date time.Time) bool {
	// engine-level specs can also enforce this; the trader self-enforces
	// only when its own deadline is configured
	if tr.settings.ShortMaxHoldDays <= 0 || !tr.settings.EnforceShortMaxHold {
		return false
	}
	if tr.state.pos != -1 || tr.state.entryTime.IsZero() {
		return false
	}
	return common.CalendarDays(tr.state.entryTime, date) >= tr.settings.ShortMaxHoldDays
}

// checkStop evaluates the intrabar stop: the active threshold is the
// tighter of the daily stop off today's open and the trailing stop off the
// held extremum
func (tr *Trader) checkStop(open, high, low float64) (hit bool, kind string, price, reference float64) {
	if tr.state.pos == 0 {
		return false, "", math.NaN(), math.NaN()
	}
	s := tr.settings
	if tr.state.pos == 1 {
		dailyPx := open * (1 - s.LongDailyStop)
		trailPx := tr.state.histMax * (1 - s.LongTrailStop)
		px := math.Max(dailyPx, trailPx)
		if low <= px {
			kind = ReasonStopTrail
			if dailyPx >= trailPx {
				kind = ReasonStopDaily
			}
			return true, kind, px, tr.state.histMax
		}
		return false, "", math.NaN(), math.NaN()
	}
	dailyPx := open * (1 + s.ShortDailyStop)
	trailPx := tr.state.histMin * (1 + s.ShortTrailStop)
	px := math.Min(dailyPx, trailPx)
	if high >= px {
		kind = ReasonStopTrail
		if dailyPx <= trailPx {
			kind = ReasonStopDaily
		}
		return true, kind, px, tr.state.histMin
	}
	return false, "", math.NaN(), math.NaN()
}

// decideTarget evaluates the previous-bar context into -1/0/+1
func (tr *Trader) decideTarget(t int, ctx data.Context) int {
	s := tr.settings

	if tr.state.pos == 0 && t <= tr.state.cooldownUntil {
		return 0
	}

	week, fast, slow := ctx.SMAWeekPrev, ctx.SMAFastPrev, ctx.SMASlowPrev
	if !common.IsFinite(week) || !common.IsFinite(fast) || !common.IsFinite(slow) {
		return 0
	}

	longStack := week > fast && fast > slow
	shortStack := slow > fast && fast > week

	sepLong := week - fast
	sepShort := fast - week
	den := math.Max(math.Abs(fast), math.SmallestNonzeroFloat64)

	var enterLongOK, exitLongOK, enterShortOK, exitShortOK bool
	if s.UseATRFilter && common.IsFinite(ctx.ATRPrev) && ctx.ATRPrev > 0 {
		enterLongOK = sepLong >= s.ATREnterK*ctx.ATRPrev
		exitLongOK = sepLong <= s.ATRExitK*ctx.ATRPrev
		enterShortOK = sepShort >= s.ATREnterK*ctx.ATRPrev
		exitShortOK = sepShort <= s.ATRExitK*ctx.ATRPrev
	} else {
		enterLongOK = sepLong/den >= s.SpreadEnterPct
		exitLongOK = sepLong/den <= s.SpreadExitPct
		enterShortOK = sepShort/den >= s.SpreadEnterPct
		exitShortOK = sepShort/den <= s.SpreadExitPct
	}

	trendLongOK := !s.UseLongTrendFilter || ctx.TrendPrev == 1
	trendShortOK := !s.UseShortTrendFilter || ctx.TrendPrev == -1

	macdBull, macdBear := macdState(ctx)
	macdLongOK := !s.UseMACDRegimeFilter || macdBull
	macdShortOK := !s.UseMACDRegimeFilter || macdBear

	confN := s.ConfirmDays
	if confN < 1 {
		confN = 1
	}
	longConf := tr.checkConfirm(t-1, confN, true)
	shortConf := tr.checkConfirm(t-1, confN, false)

	prevCloseLongOK := true
	prevCloseShortOK := true
	if s.UsePrevCloseFilter && common.IsFinite(ctx.ClosePrev) {
		refMA := fast
		if s.PrevCloseFilterRef == RefWeek {
			refMA = week
		}
		if common.IsFinite(refMA) {
			prevCloseLongOK = ctx.ClosePrev >= refMA
			prevCloseShortOK = ctx.ClosePrev <= refMA
		}
	}

	longEntry := longStack && enterLongOK && trendLongOK && macdLongOK && longConf && prevCloseLongOK
	shortEntry := shortStack && enterShortOK && trendShortOK && macdShortOK && shortConf &&
		s.EnableShort && prevCloseShortOK

	// exits fire on the fast/week cross, not a full stack break
	longExitCross := fast > week
	shortExitCross := week > fast

	held := 0
	if tr.state.pos != 0 && tr.state.entryIndex >= 0 {
		held = t - tr.state.entryIndex
	}
	canExit := held >= s.MinHoldBars

	macdExitLong := s.UseMACDExit && canExit && macdBear
	macdExitShort := s.UseMACDExit && canExit && macdBull

	prevCloseExitLong := false
	prevCloseExitShort := false
	if s.UsePrevCloseFilter && canExit && common.IsFinite(ctx.ClosePrev) {
		refMA := fast
		if s.PrevCloseFilterRef == RefWeek {
			refMA = week
		}
		if common.IsFinite(refMA) {
			prevCloseExitLong = ctx.ClosePrev < refMA
			prevCloseExitShort = ctx.ClosePrev > refMA
		}
	}

	switch tr.state.pos {
	case 0:
		if longEntry {
			return 1
		}
		if shortEntry {
			return -1
		}
		return 0
	case 1:
		if canExit && (longExitCross || exitLongOK || macdExitLong || prevCloseExitLong) {
			return 0
		}
		return 1
	default:
		if canExit && (shortExitCross || exitShortOK || macdExitShort || prevCloseExitShort) {
			return 0
		}
		return -1
	}
}

func macdState(ctx data.Context) (bull, bear bool) {
	if !common.IsFinite(ctx.MACDHistPrev) {
		return false, false
	}
	return ctx.MACDHistPrev > 0, ctx.MACDHistPrev < 0
}

// checkConfirm requires the stacking condition on every bar of
// [p-confN+1, p]
func (tr *Trader) checkConfirm(p, confN int, long bool) bool {
	if p-confN+1 < 0 {
		return false
	}
	for i := p - confN + 1; i <= p; i++ {
		week, fast, slow := tr.feed.SMA(i)
		if !common.IsFinite(week) || !common.IsFinite(fast) || !common.IsFinite(slow) {
			return false
		}
		if long {
			if !(week > fast && fast > slow) {
				return false
			}
		} else if !(slow > fast && fast > week) {
			return false
		}
	}
	return true
}

// entryFraction fixes the position-size fraction for the life of the new
// position: nominal 1.0, or signal-strength scaled when enabled
func (tr *Trader) entryFraction(ctx data.Context) float64 {
	s := tr.settings
	if !s.UseSizeScaling {
		return 1
	}
	if !common.IsFinite(ctx.MACDHistPrev) || !common.IsFinite(ctx.ATRPrev) || ctx.ATRPrev <= 0 {
		return s.SizeScaleMax
	}
	frac := math.Abs(ctx.MACDHistPrev) / (s.SizeScaleATRK * ctx.ATRPrev)
	if frac < s.SizeScaleMin {
		return s.SizeScaleMin
	}
	if frac > s.SizeScaleMax {
		return s.SizeScaleMax
	}
	return frac
}

func (tr *Trader) enter(t int, date time.Time, price float64, target int, ctx data.Context) {
	cooldown := tr.state.cooldownUntil
	tr.state = freshPositionState()
	tr.state.cooldownUntil = cooldown
	tr.state.pos = target
	tr.state.frac = tr.entryFraction(ctx)
	tr.state.entryPrice = price
	tr.state.entryTime = date
	tr.state.entryIndex = t
	tr.updateExtrema(price, price)

	side := entrySide(target)
	tr.chargePaperCosts(side)
	tr.fills = append(tr.fills, FillEntry{
		Time:          date,
		Symbol:        tr.symbol,
		Side:          side,
		Price:         price,
		Reason:        ReasonSignalEntry,
		Fraction:      tr.state.frac,
		PositionAfter: target,
	})
}

func (tr *Trader) exitAll(t int, date time.Time, price float64, reason string) {
	if tr.state.pos == 0 {
		return
	}
	// realize the move from the last mark, which is today's open
	lastMark := tr.feed.Open(t)
	if common.IsFinite(price) && common.IsFinite(lastMark) && lastMark > 0 {
		tr.equity *= 1 + float64(tr.state.pos)*tr.state.frac*(price/lastMark-1)
	}

	side := entrySide(tr.state.pos).Opposite()
	tr.chargePaperCosts(side)
	tr.fills = append(tr.fills, FillEntry{
		Time:          date,
		Symbol:        tr.symbol,
		Side:          side,
		Price:         price,
		Reason:        reason,
		Fraction:      tr.state.frac,
		PositionAfter: 0,
	})

	tr.state = freshPositionState()
	tr.state.cooldownUntil = t + tr.settings.CooldownBars
}

// entrySide maps a position sign to the side that opens it
func entrySide(pos int) common.Side {
	if pos < 0 {
		return common.Sell
	}
	return common.Buy
}

// chargePaperCosts debits fee (and sell tax) from the normalized account,
// scaled by the position fraction
func (tr *Trader) chargePaperCosts(side common.Side) {
	rate := tr.costs.FeeRate
	if side == common.Sell {
		rate += tr.costs.SellTaxRate
	}
	if rate > 0 {
		tr.equity *= 1 - tr.state.frac*rate
	}
}

// markToMarket applies today's open to tomorrow's open move, scaled by the
// fixed fraction
func (tr *Trader) markToMarket(t int, open float64) {
	if tr.state.pos == 0 {
		return
	}
	nextOpen := tr.feed.Open(t + 1)
	if !common.IsFinite(open) || !common.IsFinite(nextOpen) || open <= 0 {
		return
	}
	tr.equity *= 1 + float64(tr.state.pos)*tr.state.frac*(nextOpen/open-1)
}

func (tr *Trader) sample(date time.Time) {
	if !tr.inWindow(date) {
		return
	}
	tr.equityCurve = append(tr.equityCurve, EquitySample{Time: date, Equity: tr.equity})
	tr.positionCurve = append(tr.positionCurve, PositionSample{Time: date, Position: tr.state.pos})
}

func (tr *Trader) inWindow(date time.Time) bool {
	if !tr.logStart.IsZero() && date.Before(tr.logStart) {
		return false
	}
	if !tr.logEnd.IsZero() && date.After(tr.logEnd) {
		return false
	}
	return true
}
