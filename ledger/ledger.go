// Package ledger owns the shared portfolio state of a backtest run: cash,
// every position, cumulative costs and the append-only trade, borrow,
// rejection and equity logs. All instruments compete for the same cash
// through the margin check here
package ledger

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/youngkwangkim88-blip/matlab-trading/common"
	"github.com/youngkwangkim88-blip/matlab-trading/instrument"
	"github.com/youngkwangkim88-blip/matlab-trading/position"
)

// Ledger is the sole owner of cash and positions. It is not safe for
// concurrent use; the engine drives it from a single sequential loop
type Ledger struct {
	InitialCapital decimal.Decimal
	Cash           decimal.Decimal
	ReservedMargin decimal.Decimal
	FeesPaid       decimal.Decimal
	TaxesPaid      decimal.Decimal
	BorrowPaid     decimal.Decimal

	positions  map[string]*position.Position
	lastPrices map[string]decimal.Decimal

	trades      journal[TradeEntry]
	borrows     journal[BorrowEntry]
	rejections  journal[RejectionEntry]
	equityCurve journal[EquityPoint]

	lastBorrowDate time.Time
}

// New returns a ledger seeded with initial capital
func New(initialCapital decimal.Decimal) (*Ledger, error) {
	if !initialCapital.IsPositive() {
		return nil, ErrInitialCapitalInvalid
	}
	l := &Ledger{InitialCapital: initialCapital}
	l.Reset()
	return l, nil
}

// Reset returns the ledger to its start-of-run state
func (l *Ledger) Reset() {
	l.Cash = l.InitialCapital
	l.ReservedMargin = decimal.Zero
	l.FeesPaid = decimal.Zero
	l.TaxesPaid = decimal.Zero
	l.BorrowPaid = decimal.Zero
	l.positions = make(map[string]*position.Position)
	l.lastPrices = make(map[string]decimal.Decimal)
	l.trades = journal[TradeEntry]{}
	l.borrows = journal[BorrowEntry]{}
	l.rejections = journal[RejectionEntry]{}
	l.equityCurve = journal[EquityPoint]{}
	l.lastBorrowDate = time.Time{}
}

// Position returns the symbol's position, creating an empty one on first
// reference
func (l *Ledger) Position(symbol string) *position.Position {
	if p, ok := l.positions[symbol]; ok {
		return p
	}
	p := &position.Position{Symbol: symbol}
	l.positions[symbol] = p
	return p
}

// SetTargetQuantity moves the symbol's position to target at price. Target
// changes below a negligible epsilon succeed without trading
func (l *Ledger) SetTargetQuantity(t time.Time, symbol string, target, price decimal.Decimal, spec *instrument.Spec, allSpecs map[string]*instrument.Spec, traderID, reason string) error {
	if spec == nil {
		return fmt.Errorf("%w for %v", ErrSpecUnset, symbol)
	}
	delta := target.Sub(l.Position(symbol).Quantity)
	if delta.Abs().LessThan(epsilon) {
		return nil
	}
	return l.executeTrade(t, symbol, delta, price, spec, allSpecs, traderID, reason)
}

// executeTrade validates, applies and logs one trade. Rejections leave the
// ledger untouched
func (l *Ledger) executeTrade(t time.Time, symbol string, delta, price decimal.Decimal, spec *instrument.Spec, allSpecs map[string]*instrument.Spec, traderID, reason string) error {
	if !price.IsPositive() {
		return fmt.Errorf("%w %v for %v", ErrInvalidPrice, price, symbol)
	}

	pos := l.Position(symbol)
	newQty := pos.Quantity.Add(delta)
	if newQty.IsNegative() && !spec.AllowShort {
		return fmt.Errorf("%w for %v", ErrShortingDisallowed, symbol)
	}

	notional := delta.Abs().Mul(price).Mul(spec.Multiplier)
	side := common.Buy
	if delta.IsNegative() {
		side = common.Sell
	}
	fee := spec.FeeModel.Fee(notional)
	tax := spec.TaxModel.Tax(t, side, notional)

	// cash moves by the signed notional plus costs
	signedNotional := delta.Mul(price).Mul(spec.Multiplier)
	newCash := l.Cash.Sub(signedNotional).Sub(fee).Sub(tax)

	// simulated margin requirement across the whole book with the candidate
	// quantity substituted for the traded symbol
	required := l.simulateMargin(symbol, newQty, price, allSpecs)
	if newCash.Sub(required).IsNegative() {
		return fmt.Errorf("%w for %v: cash %v margin %v", ErrInsufficientFunds, symbol, newCash, required)
	}

	if _, err := pos.ApplyTrade(delta, price, spec.Multiplier); err != nil {
		return err
	}
	l.Cash = newCash
	l.FeesPaid = l.FeesPaid.Add(fee)
	l.TaxesPaid = l.TaxesPaid.Add(tax)
	l.lastPrices[symbol] = price

	l.trades.append(TradeEntry{
		Time:          t,
		Symbol:        symbol,
		TraderID:      traderID,
		Side:          side,
		QuantityDelta: delta,
		QuantityAfter: pos.Quantity,
		Price:         price,
		Notional:      notional,
		Fee:           fee,
		Tax:           tax,
		Reason:        reason,
	})
	return nil
}

// simulateMargin sums the margin requirement over every held position with
// candidateQty substituted for symbol, valued at last-known prices
func (l *Ledger) simulateMargin(symbol string, candidateQty, candidatePrice decimal.Decimal, allSpecs map[string]*instrument.Spec) decimal.Decimal {
	required := decimal.Zero
	for sym, pos := range l.positions {
		qty := pos.Quantity
		px, havePrice := l.lastPrices[sym]
		if sym == symbol {
			qty = candidateQty
			px = candidatePrice
			havePrice = true
		}
		spec, haveSpec := allSpecs[sym]
		if qty.IsZero() || !havePrice || !haveSpec {
			continue
		}
		required = required.Add(spec.MarginModel.Margin(qty, px, spec.Multiplier))
	}
	return required
}

// ApplyBorrowCost accrues one day of borrow interest for every open short
// with a positive borrow rate, valued at the supplied prices. It may run
// only once per date
func (l *Ledger) ApplyBorrowCost(date time.Time, prices map[string]decimal.Decimal, specs map[string]*instrument.Spec, tradingDaysPerYear int) error {
	if tradingDaysPerYear <= 0 {
		tradingDaysPerYear = 252
	}
	day := common.NormalizeDate(date)
	if day.Equal(l.lastBorrowDate) {
		return fmt.Errorf("%w %v", ErrBorrowAlreadyApplied, day.Format("2006-01-02"))
	}
	l.lastBorrowDate = day

	days := decimal.NewFromInt(int64(tradingDaysPerYear))
	for _, sym := range l.sortedSymbols() {
		pos := l.positions[sym]
		if !pos.Quantity.IsNegative() {
			continue
		}
		spec, ok := specs[sym]
		if !ok || !spec.BorrowAnnualRate.IsPositive() {
			continue
		}
		px, ok := prices[sym]
		if !ok || !px.IsPositive() {
			px, ok = l.lastPrices[sym]
			if !ok || !px.IsPositive() {
				continue
			}
		}
		cost := pos.Quantity.Mul(px).Mul(spec.Multiplier).Abs().
			Mul(spec.BorrowAnnualRate).Div(days)
		l.Cash = l.Cash.Sub(cost)
		l.BorrowPaid = l.BorrowPaid.Add(cost)
		l.borrows.append(BorrowEntry{
			Time:     date,
			Symbol:   sym,
			Quantity: pos.Quantity,
			Price:    px,
			Cost:     cost,
		})
	}
	return nil
}

// AppendEquityCurve refreshes last-known prices, recomputes reserved margin
// and appends one equity sample
func (l *Ledger) AppendEquityCurve(date time.Time, prices map[string]decimal.Decimal, specs map[string]*instrument.Spec) {
	for sym, px := range prices {
		if px.IsPositive() {
			l.lastPrices[sym] = px
		}
	}

	equity := l.Cash
	gross := decimal.Zero
	net := decimal.Zero
	reserved := decimal.Zero
	for _, sym := range l.sortedSymbols() {
		pos := l.positions[sym]
		spec, haveSpec := specs[sym]
		px, havePrice := l.lastPrices[sym]
		if pos.Quantity.IsZero() || !haveSpec || !havePrice {
			continue
		}
		notional := pos.Notional(px, spec.Multiplier)
		equity = equity.Add(notional)
		gross = gross.Add(notional.Abs())
		net = net.Add(notional)
		reserved = reserved.Add(spec.MarginModel.Margin(pos.Quantity, px, spec.Multiplier))
	}
	l.ReservedMargin = reserved

	l.equityCurve.append(EquityPoint{
		Time:           date,
		Equity:         equity,
		Cash:           l.Cash,
		ReservedMargin: reserved,
		GrossExposure:  gross,
		NetExposure:    net,
	})
}

// MarkedEquity values the book at last-known prices without sampling
func (l *Ledger) MarkedEquity(specs map[string]*instrument.Spec) decimal.Decimal {
	equity := l.Cash
	for sym, pos := range l.positions {
		spec, haveSpec := specs[sym]
		px, havePrice := l.lastPrices[sym]
		if pos.Quantity.IsZero() || !haveSpec || !havePrice {
			continue
		}
		equity = equity.Add(pos.Notional(px, spec.Multiplier))
	}
	return equity
}

// LogRejection appends one rejection row on the engine's behalf
func (l *Ledger) LogRejection(e RejectionEntry) {
	l.rejections.append(e)
}

// Trades flushes and returns the committed trade log
func (l *Ledger) Trades() []TradeEntry {
	return l.trades.snapshot()
}

// Borrows flushes and returns the committed borrow log
func (l *Ledger) Borrows() []BorrowEntry {
	return l.borrows.snapshot()
}

// Rejections flushes and returns the committed rejection log
func (l *Ledger) Rejections() []RejectionEntry {
	return l.rejections.snapshot()
}

// EquityCurve flushes and returns the committed equity curve
func (l *Ledger) EquityCurve() []EquityPoint {
	return l.equityCurve.snapshot()
}

// Flush commits every pending log row in FIFO order
func (l *Ledger) Flush() {
	l.trades.flush()
	l.borrows.flush()
	l.rejections.flush()
	l.equityCurve.flush()
}

// LastPrice returns the last price the ledger saw for symbol
func (l *Ledger) LastPrice(symbol string) (decimal.Decimal, bool) {
	px, ok := l.lastPrices[symbol]
	return px, ok
}

func (l *Ledger) sortedSymbols() []string {
	syms := make([]string, 0, len(l.positions))
	for sym := range l.positions {
		syms = append(syms, sym)
	}
	sort.Strings(syms)
	return syms
}
