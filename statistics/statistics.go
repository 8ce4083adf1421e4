// Package statistics condenses equity curves into the headline numbers a
// run is judged by
package statistics

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/youngkwangkim88-blip/matlab-trading/common"
	"github.com/youngkwangkim88-blip/matlab-trading/ledger"
	"github.com/youngkwangkim88-blip/matlab-trading/trader"
)

var oneHundred = decimal.NewFromInt(100)

// CalculateCompoundAnnualGrowthRate annualizes the growth from openValue to
// closeValue over the calendar days between start and end, as a percent
func CalculateCompoundAnnualGrowthRate(openValue, closeValue decimal.Decimal, start, end time.Time) (decimal.Decimal, error) {
	if !openValue.IsPositive() {
		return decimal.Zero, errInvalidStartingValue
	}
	days := common.CalendarDays(start, end)
	if days <= 0 {
		return decimal.Zero, fmt.Errorf("%w: window %v..%v spans no calendar days", errReceivedNoData, start, end)
	}
	open, _ := openValue.Float64()
	closed, _ := closeValue.Float64()
	k := math.Pow(closed/open, 365.25/float64(days)) - 1
	if !common.IsFinite(k) {
		return decimal.Zero, fmt.Errorf("%w: growth rate is not finite", errReceivedNoData)
	}
	return decimal.NewFromFloat(k * 100), nil
}

// CalculateMaxDrawdown finds the largest peak-to-trough swing of the curve
func CalculateMaxDrawdown(points []ValueAtTime) (Swing, error) {
	if len(points) == 0 {
		return Swing{}, fmt.Errorf("%w to calculate drawdowns", errReceivedNoData)
	}
	peak := points[0]
	worst := Swing{Highest: peak, Lowest: peak}
	for i := range points {
		if points[i].Value.GreaterThan(peak.Value) {
			peak = points[i]
			continue
		}
		if !peak.Value.IsPositive() {
			continue
		}
		dd := points[i].Value.Sub(peak.Value).Div(peak.Value).Mul(oneHundred)
		if dd.LessThan(worst.DrawdownPercent) {
			worst = Swing{Highest: peak, Lowest: points[i], DrawdownPercent: dd}
		}
	}
	return worst, nil
}

// Summarize condenses a curve into its headline numbers
func Summarize(points []ValueAtTime) (*Summary, error) {
	if len(points) == 0 {
		return nil, errReceivedNoData
	}
	first, last := points[0], points[len(points)-1]
	s := &Summary{
		Start:        first.Time,
		End:          last.Time,
		InitialValue: first.Value,
		FinalValue:   last.Value,
		Points:       len(points),
	}
	if first.Value.IsPositive() {
		s.TotalReturnPct = last.Value.Sub(first.Value).Div(first.Value).Mul(oneHundred)
	}
	if cagr, err := CalculateCompoundAnnualGrowthRate(first.Value, last.Value, first.Time, last.Time); err == nil {
		s.CompoundAnnualPct = cagr
	}
	dd, err := CalculateMaxDrawdown(points)
	if err != nil {
		return nil, err
	}
	s.MaxDrawdown = dd
	return s, nil
}

// CurveFromLedger adapts the portfolio equity curve
func CurveFromLedger(curve []ledger.EquityPoint) []ValueAtTime {
	out := make([]ValueAtTime, len(curve))
	for i := range curve {
		out[i] = ValueAtTime{Time: curve[i].Time, Value: curve[i].Equity}
	}
	return out
}

// CurveFromSamples adapts a trader's normalized paper equity curve
func CurveFromSamples(samples []trader.EquitySample) []ValueAtTime {
	out := make([]ValueAtTime, 0, len(samples))
	for i := range samples {
		if !common.IsFinite(samples[i].Equity) {
			continue
		}
		out = append(out, ValueAtTime{Time: samples[i].Time, Value: decimal.NewFromFloat(samples[i].Equity)})
	}
	return out
}
