package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/youngkwangkim88-blip/matlab-trading/costs"
	"github.com/youngkwangkim88-blip/matlab-trading/instrument"
)

var testDate = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func frictionlessSpec(t *testing.T, symbol string, allowShort bool) *instrument.Spec {
	t.Helper()
	var z costs.Zero
	spec, err := instrument.NewSpec(symbol, d("1"), d("1"), decimal.Zero, allowShort, 0, false, z, z, z)
	require.NoError(t, err)
	return spec
}

func costedSpec(t *testing.T, symbol string) *instrument.Spec {
	t.Helper()
	fee, err := costs.NewFlatFee(d("0.001"))
	require.NoError(t, err)
	tax, err := costs.NewSellTax(d("0.002"), map[int]decimal.Decimal{2025: d("0.001")})
	require.NoError(t, err)
	margin, err := costs.NewAsymmetricMargin(decimal.Zero, d("0.25"))
	require.NoError(t, err)
	spec, err := instrument.NewSpec(symbol, d("1"), d("1"), d("0.04"), true, 0, false, fee, tax, margin)
	require.NoError(t, err)
	return spec
}

func specMap(specs ...*instrument.Spec) map[string]*instrument.Spec {
	m := make(map[string]*instrument.Spec, len(specs))
	for _, s := range specs {
		m[s.Symbol] = s
	}
	return m
}

func TestNew(t *testing.T) {
	t.Parallel()
	_, err := New(decimal.Zero)
	assert.ErrorIs(t, err, ErrInitialCapitalInvalid)
	_, err = New(d("-100"))
	assert.ErrorIs(t, err, ErrInitialCapitalInvalid)

	l, err := New(d("1000000"))
	require.NoError(t, err)
	assert.True(t, l.Cash.Equal(d("1000000")))
}

func TestSetTargetQuantityCosts(t *testing.T) {
	t.Parallel()
	l, err := New(d("1000000"))
	require.NoError(t, err)
	spec := costedSpec(t, "005930")
	all := specMap(spec)

	// buy 100 at 1000: notional 100000, fee 100, no buy-side tax
	err = l.SetTargetQuantity(testDate, "005930", d("100"), d("1000"), spec, all, "tid", "SignalEntry")
	require.NoError(t, err)
	assert.True(t, l.Cash.Equal(d("899900")), l.Cash.String())
	assert.True(t, l.FeesPaid.Equal(d("100")))
	assert.True(t, l.TaxesPaid.IsZero())

	// sell all at 1100: notional 110000, fee 110, tax 220
	err = l.SetTargetQuantity(testDate.AddDate(0, 0, 1), "005930", decimal.Zero, d("1100"), spec, all, "tid", "SignalExit")
	require.NoError(t, err)
	assert.True(t, l.Position("005930").IsFlat())
	// 899900 + 110000 - 110 - 220
	assert.True(t, l.Cash.Equal(d("1009570")), l.Cash.String())
	assert.True(t, l.FeesPaid.Equal(d("210")))
	assert.True(t, l.TaxesPaid.Equal(d("220")))

	trades := l.Trades()
	require.Len(t, trades, 2)
	assert.Equal(t, "SignalEntry", trades[0].Reason)
	assert.True(t, trades[1].QuantityAfter.IsZero())
	assert.True(t, trades[1].Tax.Equal(d("220")))
}

func TestSetTargetQuantityNoOp(t *testing.T) {
	t.Parallel()
	l, err := New(d("1000"))
	require.NoError(t, err)
	spec := frictionlessSpec(t, "005930", false)

	err = l.SetTargetQuantity(testDate, "005930", d("0.0000000001"), d("10"), spec, specMap(spec), "tid", "")
	require.NoError(t, err)
	assert.Empty(t, l.Trades())
	assert.True(t, l.Cash.Equal(d("1000")))
}

func TestSetTargetQuantityRejections(t *testing.T) {
	t.Parallel()
	l, err := New(d("1000"))
	require.NoError(t, err)
	noShort := frictionlessSpec(t, "005930", false)
	all := specMap(noShort)

	err = l.SetTargetQuantity(testDate, "005930", decimal.Zero, decimal.Zero, noShort, all, "tid", "")
	require.NoError(t, err)

	err = l.SetTargetQuantity(testDate, "005930", d("1"), decimal.Zero, noShort, all, "tid", "")
	assert.ErrorIs(t, err, ErrInvalidPrice)

	err = l.SetTargetQuantity(testDate, "005930", d("-1"), d("10"), noShort, all, "tid", "")
	assert.ErrorIs(t, err, ErrShortingDisallowed)

	// rejections leave the ledger untouched
	assert.True(t, l.Cash.Equal(d("1000")))
	assert.Empty(t, l.Trades())

	err = l.SetTargetQuantity(testDate, "005930", d("200"), d("10"), noShort, all, "tid", "")
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.True(t, l.Position("005930").IsFlat())
}

func TestShortMarginRequirement(t *testing.T) {
	t.Parallel()
	l, err := New(d("100000"))
	require.NoError(t, err)
	// short margin above 1 models holding the proceeds plus extra collateral
	fee, err := costs.NewFlatFee(decimal.Zero)
	require.NoError(t, err)
	tax, err := costs.NewSellTax(decimal.Zero, nil)
	require.NoError(t, err)
	margin, err := costs.NewAsymmetricMargin(decimal.Zero, d("1.5"))
	require.NoError(t, err)
	spec, err := instrument.NewSpec("005930", d("1"), d("1"), decimal.Zero, true, 0, false, fee, tax, margin)
	require.NoError(t, err)
	all := specMap(spec)

	// 100000 proceeds against 150000 required: the starting cash covers it
	err = l.SetTargetQuantity(testDate, "005930", d("-100"), d("1000"), spec, all, "tid", "")
	require.NoError(t, err)

	// 10M proceeds against 15M required does not
	err = l.SetTargetQuantity(testDate, "005930", d("-10000"), d("1000"), spec, all, "tid", "")
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.True(t, l.Position("005930").Quantity.Equal(d("-100")))
}

func TestApplyBorrowCost(t *testing.T) {
	t.Parallel()
	l, err := New(d("1000000"))
	require.NoError(t, err)
	spec := costedSpec(t, "005930")
	all := specMap(spec)

	err = l.SetTargetQuantity(testDate, "005930", d("-100"), d("1000"), spec, all, "tid", "")
	require.NoError(t, err)
	cashBefore := l.Cash

	prices := map[string]decimal.Decimal{"005930": d("1000")}
	require.NoError(t, l.ApplyBorrowCost(testDate, prices, all, 252))

	// 100000 notional x 4% / 252 trading days
	borrows := l.Borrows()
	require.Len(t, borrows, 1)
	expected := d("100000").Mul(d("0.04")).Div(d("252"))
	assert.True(t, borrows[0].Cost.Equal(expected), borrows[0].Cost.String())
	assert.InDelta(t, 15.873, borrows[0].Cost.InexactFloat64(), 0.001)
	assert.True(t, l.Cash.Equal(cashBefore.Sub(expected)))
	assert.True(t, l.BorrowPaid.Equal(expected))

	err = l.ApplyBorrowCost(testDate, prices, all, 252)
	assert.ErrorIs(t, err, ErrBorrowAlreadyApplied)

	// next day accrues again
	require.NoError(t, l.ApplyBorrowCost(testDate.AddDate(0, 0, 1), prices, all, 252))
	assert.Len(t, l.Borrows(), 2)
}

func TestApplyBorrowCostSkipsLongs(t *testing.T) {
	t.Parallel()
	l, err := New(d("1000000"))
	require.NoError(t, err)
	spec := costedSpec(t, "005930")
	all := specMap(spec)

	err = l.SetTargetQuantity(testDate, "005930", d("100"), d("1000"), spec, all, "tid", "")
	require.NoError(t, err)
	require.NoError(t, l.ApplyBorrowCost(testDate, map[string]decimal.Decimal{"005930": d("1000")}, all, 252))
	assert.Empty(t, l.Borrows())
	assert.True(t, l.BorrowPaid.IsZero())
}

func TestAppendEquityCurveIdentity(t *testing.T) {
	t.Parallel()
	l, err := New(d("1000000"))
	require.NoError(t, err)
	samsung := costedSpec(t, "005930")
	hynix := frictionlessSpec(t, "000660", true)
	all := specMap(samsung, hynix)

	require.NoError(t, l.SetTargetQuantity(testDate, "005930", d("100"), d("1000"), samsung, all, "tid", ""))
	require.NoError(t, l.SetTargetQuantity(testDate, "000660", d("-50"), d("200"), hynix, all, "tid", ""))

	prices := map[string]decimal.Decimal{"005930": d("1100"), "000660": d("190")}
	l.AppendEquityCurve(testDate, prices, all)

	curve := l.EquityCurve()
	require.Len(t, curve, 1)
	point := curve[0]
	assert.True(t, point.Equity.Equal(point.Cash.Add(point.NetExposure)), point.Equity.String())
	// long 110000, short -9500
	assert.True(t, point.NetExposure.Equal(d("100500")), point.NetExposure.String())
	assert.True(t, point.GrossExposure.Equal(d("119500")))
	// margin reserved only against the short side
	assert.True(t, point.ReservedMargin.IsZero())

	marked := l.MarkedEquity(all)
	assert.True(t, marked.Equal(point.Equity))
}

func TestReset(t *testing.T) {
	t.Parallel()
	l, err := New(d("1000"))
	require.NoError(t, err)
	spec := frictionlessSpec(t, "005930", false)
	require.NoError(t, l.SetTargetQuantity(testDate, "005930", d("10"), d("10"), spec, specMap(spec), "tid", ""))
	require.NotEmpty(t, l.Trades())

	l.Reset()
	assert.True(t, l.Cash.Equal(d("1000")))
	assert.Empty(t, l.Trades())
	assert.True(t, l.Position("005930").IsFlat())
}

func TestJournalFlushOrder(t *testing.T) {
	t.Parallel()
	var j journal[int]
	for i := 0; i < flushThreshold+10; i++ {
		j.append(i)
	}
	rows := j.snapshot()
	require.Len(t, rows, flushThreshold+10)
	for i := range rows {
		assert.Equal(t, i, rows[i])
	}
}
