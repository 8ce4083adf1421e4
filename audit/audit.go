// Package audit replays a finished run's trade and borrow logs from the
// initial capital and checks the recorded equity curve and logs against
// each other. A passing audit means the books balance
package audit

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/youngkwangkim88-blip/matlab-trading/common"
	"github.com/youngkwangkim88-blip/matlab-trading/config"
	"github.com/youngkwangkim88-blip/matlab-trading/engine"
	"github.com/youngkwangkim88-blip/matlab-trading/instrument"
	"github.com/youngkwangkim88-blip/matlab-trading/ledger"
	"github.com/youngkwangkim88-blip/matlab-trading/log"
)

var (
	absTolerance = decimal.New(1, -6)
	relTolerance = decimal.New(1, -8)
)

// Tester audits one finished backtest
type Tester struct {
	ledger      *ledger.Ledger
	insts       []*engine.Instrument
	valuation   string
	sampleEvery int
}

// New returns a tester for a finished run
func New(l *ledger.Ledger, insts []*engine.Instrument, portfolio config.PortfolioSettings) (*Tester, error) {
	if l == nil || len(insts) == 0 {
		return nil, common.ErrNilArguments
	}
	sampleEvery := portfolio.AuditSampleEvery
	if sampleEvery <= 0 {
		sampleEvery = 1
	}
	return &Tester{
		ledger:      l,
		insts:       insts,
		valuation:   portfolio.ValuationMode,
		sampleEvery: sampleEvery,
	}, nil
}

// Run performs every check and returns the combined report
func (a *Tester) Run() (*Report, error) {
	curve := a.ledger.EquityCurve()
	if len(curve) == 0 {
		return nil, ErrNoEquityCurve
	}
	report := &Report{Pass: true}

	trades := a.ledger.Trades()
	borrows := a.ledger.Borrows()

	a.checkMonotonic(report, trades, borrows, curve)
	a.checkReplay(report, trades, borrows, curve)
	a.checkTotals(report, trades, borrows)
	a.checkCrossLogs(report, trades)
	a.checkFinalState(report)

	if report.Pass {
		log.Infof(log.Audit, "accounting audit passed: %d sampled points, %d warnings",
			report.SampledPoints, len(report.Issues))
	} else {
		log.Errorf(log.Audit, "accounting audit FAILED: %d issues", len(report.Issues))
	}
	return report, nil
}

// checkReplay rebuilds cash and positions trade by trade and compares the
// marked equity to the recorded curve at each sampled point
func (a *Tester) checkReplay(report *Report, trades []ledger.TradeEntry, borrows []ledger.BorrowEntry, curve []ledger.EquityPoint) {
	cash := a.ledger.InitialCapital
	qty := make(map[string]decimal.Decimal)
	lastPx := make(map[string]decimal.Decimal)
	ti, bi := 0, 0

	for i, point := range curve {
		for ti < len(trades) && !trades[ti].Time.After(point.Time) {
			tr := trades[ti]
			spec := a.spec(tr.Symbol)
			mult := decimal.NewFromInt(1)
			if spec != nil {
				mult = spec.Multiplier
			}
			cash = cash.Sub(tr.QuantityDelta.Mul(tr.Price).Mul(mult)).Sub(tr.Fee).Sub(tr.Tax)
			qty[tr.Symbol] = qty[tr.Symbol].Add(tr.QuantityDelta)
			lastPx[tr.Symbol] = tr.Price
			ti++
		}
		for bi < len(borrows) && !borrows[bi].Time.After(point.Time) {
			cash = cash.Sub(borrows[bi].Cost)
			bi++
		}
		if i%a.sampleEvery != 0 && i != len(curve)-1 {
			continue
		}
		report.SampledPoints++

		replayed := cash
		for sym, q := range qty {
			if q.IsZero() {
				continue
			}
			px, ok := a.valuationPrice(sym, point.Time)
			if !ok {
				px, ok = lastPx[sym], true
			}
			mult := decimal.NewFromInt(1)
			if spec := a.spec(sym); spec != nil {
				mult = spec.Multiplier
			}
			replayed = replayed.Add(q.Mul(px).Mul(mult))
		}
		if !withinTolerance(replayed, point.Equity) {
			report.add(SeverityError, point.Time, "",
				"replayed equity %v diverges from recorded %v",
				replayed.StringFixed(6), point.Equity.StringFixed(6))
		}
		identity := point.Cash.Add(point.NetExposure)
		if !withinTolerance(identity, point.Equity) {
			report.add(SeverityError, point.Time, "",
				"equity %v breaks cash+exposure identity %v",
				point.Equity.StringFixed(6), identity.StringFixed(6))
		}
	}
}

// checkTotals compares the ledger's cumulative cost fields to the log sums
func (a *Tester) checkTotals(report *Report, trades []ledger.TradeEntry, borrows []ledger.BorrowEntry) {
	var fees, taxes, borrowed decimal.Decimal
	for i := range trades {
		fees = fees.Add(trades[i].Fee)
		taxes = taxes.Add(trades[i].Tax)
	}
	for i := range borrows {
		borrowed = borrowed.Add(borrows[i].Cost)
	}
	now := time.Time{}
	if !withinTolerance(fees, a.ledger.FeesPaid) {
		report.add(SeverityError, now, "", "fee total %v != trade log sum %v", a.ledger.FeesPaid, fees)
	}
	if !withinTolerance(taxes, a.ledger.TaxesPaid) {
		report.add(SeverityError, now, "", "tax total %v != trade log sum %v", a.ledger.TaxesPaid, taxes)
	}
	if !withinTolerance(borrowed, a.ledger.BorrowPaid) {
		report.add(SeverityError, now, "", "borrow total %v != borrow log sum %v", a.ledger.BorrowPaid, borrowed)
	}
}

// checkMonotonic verifies every journal is in chronological order
func (a *Tester) checkMonotonic(report *Report, trades []ledger.TradeEntry, borrows []ledger.BorrowEntry, curve []ledger.EquityPoint) {
	for i := 1; i < len(trades); i++ {
		if trades[i].Time.Before(trades[i-1].Time) {
			report.add(SeverityError, trades[i].Time, trades[i].Symbol, "trade log out of order")
		}
	}
	for i := 1; i < len(borrows); i++ {
		if borrows[i].Time.Before(borrows[i-1].Time) {
			report.add(SeverityError, borrows[i].Time, borrows[i].Symbol, "borrow log out of order")
		}
	}
	for i := 1; i < len(curve); i++ {
		if !curve[i].Time.After(curve[i-1].Time) {
			report.add(SeverityError, curve[i].Time, "", "equity curve not strictly increasing in time")
		}
	}
}

// checkCrossLogs reconciles trader fills and rejection rows against the
// ledger trade log per date and symbol
func (a *Tester) checkCrossLogs(report *Report, trades []ledger.TradeEntry) {
	type key struct {
		date   time.Time
		symbol string
	}
	tradeCount := make(map[key]int, len(trades))
	tradeAfter := make(map[key][]decimal.Decimal)
	for i := range trades {
		k := key{common.NormalizeDate(trades[i].Time), trades[i].Symbol}
		tradeCount[k]++
		tradeAfter[k] = append(tradeAfter[k], trades[i].QuantityAfter)
	}

	rejectionCount := make(map[key]int)
	for _, rej := range a.ledger.Rejections() {
		rejectionCount[key{common.NormalizeDate(rej.Time), rej.Symbol}]++
	}

	fillCount := make(map[key]int)
	for _, in := range a.insts {
		for _, f := range in.Trader.Fills() {
			k := key{common.NormalizeDate(f.Time), f.Symbol}
			if !f.Executed {
				// a fill the engine declined must leave a rejection row
				if rejectionCount[k] == 0 && tradeCount[k] == 0 {
					report.add(SeverityError, f.Time, f.Symbol,
						"unexecuted fill has no matching rejection entry")
				}
				continue
			}
			fillCount[k]++
			if tradeCount[k] == 0 {
				report.add(SeverityError, f.Time, f.Symbol,
					"executed fill has no matching ledger trade")
			}
		}
	}
	for k, n := range tradeCount {
		if fillCount[k] == 0 {
			// engine-side overrides trade without a trader fill
			report.add(SeverityWarning, k.date, k.symbol,
				"%d ledger trade(s) without a trader fill", n)
		}
	}

	for _, rej := range a.ledger.Rejections() {
		if rej.FinalTarget.Equal(rej.CurrentQuantity) {
			continue
		}
		k := key{common.NormalizeDate(rej.Time), rej.Symbol}
		matched := false
		for _, after := range tradeAfter[k] {
			if after.Equal(rej.FinalTarget) {
				matched = true
				break
			}
		}
		if !matched {
			report.add(SeverityWarning, rej.Time, rej.Symbol,
				"downsized rejection final target %v has no matching trade", rej.FinalTarget)
		}
	}
}

// checkFinalState verifies trader and ledger agree on every final sign
func (a *Tester) checkFinalState(report *Report) {
	for _, in := range a.insts {
		sym := in.Spec.Symbol
		ledgerSign := signOf(a.ledger.Position(sym).Quantity)
		traderSign := sign(in.Trader.Desired())
		if ledgerSign != traderSign {
			report.add(SeverityError, time.Time{}, sym,
				"final position sign mismatch: ledger %d, trader %d", ledgerSign, traderSign)
		}
	}
}

// valuationPrice mirrors the engine's equity valuation price selection
func (a *Tester) valuationPrice(symbol string, date time.Time) (decimal.Decimal, bool) {
	for _, in := range a.insts {
		if in.Spec.Symbol != symbol {
			continue
		}
		t, ok := in.Feed.IndexOf(date)
		if !ok {
			return decimal.Zero, false
		}
		px := in.Feed.Close(t)
		if a.valuation == config.ValuationNextOpen && t+1 < in.Feed.Len() {
			px = in.Feed.Open(t + 1)
		}
		if !common.IsFinite(px) || px <= 0 {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(px), true
	}
	return decimal.Zero, false
}

func (a *Tester) spec(symbol string) *instrument.Spec {
	for _, in := range a.insts {
		if in.Spec.Symbol == symbol {
			return in.Spec
		}
	}
	return nil
}

func withinTolerance(a, b decimal.Decimal) bool {
	diff := a.Sub(b).Abs()
	if diff.LessThanOrEqual(absTolerance) {
		return true
	}
	scale := decimal.Max(a.Abs(), b.Abs())
	return diff.LessThanOrEqual(scale.Mul(relTolerance))
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
