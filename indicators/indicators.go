// Package indicators populates the per-bar indicator columns the feed
// serves: simple moving averages at four windows, ATR, a lagged long-term
// trend sign and MACD
package indicators

import (
	"math"

	gctta "github.com/thrasher-corp/gct-ta/indicators"

	"github.com/youngkwangkim88-blip/matlab-trading/common"
	"github.com/youngkwangkim88-blip/matlab-trading/data"
)

// Populate computes every indicator column over the supplied bars
func Populate(bars []data.Bar, s Settings) (data.Columns, error) {
	if err := s.Validate(); err != nil {
		return data.Columns{}, err
	}
	n := len(bars)
	if n == 0 {
		return data.Columns{}, ErrNoBars
	}

	high := make([]float64, n)
	low := make([]float64, n)
	closes := make([]float64, n)
	for i := range bars {
		high[i] = bars[i].High
		low[i] = bars[i].Low
		closes[i] = bars[i].Close
	}

	cols := data.Columns{
		SMAWeek:     maskWarmup(alignRight(n, gctta.SMA(closes, s.SMAWeek)), s.SMAWeek-1),
		SMAFast:     maskWarmup(alignRight(n, gctta.SMA(closes, s.SMAFast)), s.SMAFast-1),
		SMASlow:     maskWarmup(alignRight(n, gctta.SMA(closes, s.SMASlow)), s.SMASlow-1),
		SMALongTerm: maskWarmup(alignRight(n, gctta.SMA(closes, s.SMALongTerm)), s.SMALongTerm-1),
		ATR:         maskWarmup(alignRight(n, gctta.ATR(high, low, closes, s.ATRWindow)), s.ATRWindow),
	}

	macdLine, macdSignal, macdHist := gctta.MACD(closes, s.MACDFast, s.MACDSlow, s.MACDSignal)
	macdWarm := s.MACDSlow + s.MACDSignal - 2
	cols.MACDLine = maskWarmup(alignRight(n, macdLine), macdWarm)
	cols.MACDSignal = maskWarmup(alignRight(n, macdSignal), macdWarm)
	cols.MACDHist = maskWarmup(alignRight(n, macdHist), macdWarm)

	cols.Trend = trendColumn(cols.SMALongTerm, s.TrendLookback)
	return cols, nil
}

// alignRight pads v into a NaN-prefixed slice of length n. gct-ta trims the
// lookback off the front of some outputs; the columns must stay 1:1 with the
// bars
func alignRight(n int, v []float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	if len(v) > n {
		v = v[len(v)-n:]
	}
	copy(out[n-len(v):], v)
	return out
}

// maskWarmup overwrites the first warm entries with NaN so partially-seeded
// values can never feed a signal
func maskWarmup(v []float64, warm int) []float64 {
	if warm > len(v) {
		warm = len(v)
	}
	for i := 0; i < warm; i++ {
		v[i] = math.NaN()
	}
	return v
}

// trendColumn compares the long-term average with its value lookback bars
// ago: +1 rising, -1 falling, 0 flat or undefined
func trendColumn(smaLongTerm []float64, lookback int) []int {
	out := make([]int, len(smaLongTerm))
	for i := range smaLongTerm {
		if i < lookback {
			continue
		}
		cur, prev := smaLongTerm[i], smaLongTerm[i-lookback]
		if !common.IsFinite(cur) || !common.IsFinite(prev) {
			continue
		}
		switch {
		case cur > prev:
			out[i] = 1
		case cur < prev:
			out[i] = -1
		}
	}
	return out
}
