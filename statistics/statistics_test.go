package statistics

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/youngkwangkim88-blip/matlab-trading/ledger"
	"github.com/youngkwangkim88-blip/matlab-trading/trader"
)

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestCalculateCompoundAnnualGrowthRate(t *testing.T) {
	t.Parallel()
	_, err := CalculateCompoundAnnualGrowthRate(decimal.Zero, d("2"), day(0), day(365))
	assert.ErrorIs(t, err, errInvalidStartingValue)

	_, err = CalculateCompoundAnnualGrowthRate(d("1"), d("2"), day(1), day(1))
	assert.Error(t, err)

	// doubling over one average year annualizes to 100%
	cagr, err := CalculateCompoundAnnualGrowthRate(d("1"), d("2"), day(0), day(0).AddDate(0, 0, 365))
	require.NoError(t, err)
	got, _ := cagr.Float64()
	assert.InDelta(t, 100, got, 0.2)

	// a losing run annualizes negative
	cagr, err = CalculateCompoundAnnualGrowthRate(d("100"), d("50"), day(0), day(0).AddDate(1, 0, 0))
	require.NoError(t, err)
	assert.True(t, cagr.IsNegative())
}

func TestCalculateMaxDrawdown(t *testing.T) {
	t.Parallel()
	_, err := CalculateMaxDrawdown(nil)
	assert.Error(t, err)

	points := []ValueAtTime{
		{Time: day(0), Value: d("100")},
		{Time: day(1), Value: d("120")},
		{Time: day(2), Value: d("90")},
		{Time: day(3), Value: d("130")},
		{Time: day(4), Value: d("117")},
	}
	swing, err := CalculateMaxDrawdown(points)
	require.NoError(t, err)
	// 120 -> 90 is -25%, deeper than 130 -> 117 at -10%
	assert.True(t, swing.DrawdownPercent.Equal(d("-25")), swing.DrawdownPercent.String())
	assert.Equal(t, day(1), swing.Highest.Time)
	assert.Equal(t, day(2), swing.Lowest.Time)
}

func TestCalculateMaxDrawdownMonotonicRise(t *testing.T) {
	t.Parallel()
	points := []ValueAtTime{
		{Time: day(0), Value: d("100")},
		{Time: day(1), Value: d("110")},
		{Time: day(2), Value: d("120")},
	}
	swing, err := CalculateMaxDrawdown(points)
	require.NoError(t, err)
	assert.True(t, swing.DrawdownPercent.IsZero())
}

func TestSummarize(t *testing.T) {
	t.Parallel()
	_, err := Summarize(nil)
	assert.ErrorIs(t, err, errReceivedNoData)

	points := []ValueAtTime{
		{Time: day(0), Value: d("100")},
		{Time: day(100), Value: d("80")},
		{Time: day(365), Value: d("150")},
	}
	s, err := Summarize(points)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Points)
	assert.True(t, s.TotalReturnPct.Equal(d("50")), s.TotalReturnPct.String())
	assert.True(t, s.CompoundAnnualPct.IsPositive())
	assert.True(t, s.MaxDrawdown.DrawdownPercent.Equal(d("-20")))
}

func TestCurveAdapters(t *testing.T) {
	t.Parallel()
	lc := CurveFromLedger([]ledger.EquityPoint{
		{Time: day(0), Equity: d("1000")},
		{Time: day(1), Equity: d("1010")},
	})
	require.Len(t, lc, 2)
	assert.True(t, lc[1].Value.Equal(d("1010")))

	tc := CurveFromSamples([]trader.EquitySample{
		{Time: day(0), Equity: 1},
		{Time: day(1), Equity: math.NaN()},
		{Time: day(2), Equity: 1.05},
	})
	require.Len(t, tc, 2)
	assert.Equal(t, day(2), tc[1].Time)
}
