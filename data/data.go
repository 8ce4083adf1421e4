package data

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/youngkwangkim88-blip/matlab-trading/common"
)

// Series is the in-memory Handler implementation. Bars are sorted ascending
// and deduplicated on construction; indicator columns are optional but when
// set must cover every bar
type Series struct {
	symbol string
	bars   []Bar
	cols   Columns
	index  map[time.Time]int
	dates  []time.Time
}

// NewSeries builds a Series from raw bars and aligned indicator columns
func NewSeries(symbol string, bars []Bar, cols Columns) (*Series, error) {
	if symbol == "" {
		return nil, common.ErrSymbolUnset
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w for %v", ErrNoData, symbol)
	}
	sorted := make([]Bar, len(bars))
	copy(sorted, bars)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time.Before(sorted[j].Time)
	})
	// keep the last sample for a duplicated date
	deduped := sorted[:0]
	for i := range sorted {
		d := common.NormalizeDate(sorted[i].Time)
		if len(deduped) > 0 && common.NormalizeDate(deduped[len(deduped)-1].Time).Equal(d) {
			deduped[len(deduped)-1] = sorted[i]
			continue
		}
		deduped = append(deduped, sorted[i])
	}
	if err := cols.validate(len(deduped)); err != nil {
		return nil, fmt.Errorf("%w for %v", err, symbol)
	}
	s := &Series{
		symbol: symbol,
		bars:   deduped,
		cols:   cols,
		index:  make(map[time.Time]int, len(deduped)),
		dates:  make([]time.Time, len(deduped)),
	}
	for i := range deduped {
		d := common.NormalizeDate(deduped[i].Time)
		s.index[d] = i
		s.dates[i] = d
	}
	return s, nil
}

func (c *Columns) validate(n int) error {
	if c.SMAWeek == nil {
		// columns not populated, the series is bars-only
		return nil
	}
	for _, l := range []int{
		len(c.SMAWeek), len(c.SMAFast), len(c.SMASlow), len(c.SMALongTerm),
		len(c.ATR), len(c.Trend), len(c.MACDLine), len(c.MACDSignal), len(c.MACDHist),
	} {
		if l != n {
			return ErrColumnLengthMismatch
		}
	}
	return nil
}

// Symbol returns the symbol this series serves
func (s *Series) Symbol() string {
	return s.symbol
}

// Len returns the bar count
func (s *Series) Len() int {
	return len(s.bars)
}

// Bar returns the bar at index i
func (s *Series) Bar(i int) (Bar, error) {
	if i < 0 || i >= len(s.bars) {
		return Bar{}, fmt.Errorf("%w %v for %v", ErrIndexOutOfRange, i, s.symbol)
	}
	return s.bars[i], nil
}

// Date returns the normalized date of bar i, zero when out of range
func (s *Series) Date(i int) time.Time {
	if i < 0 || i >= len(s.dates) {
		return time.Time{}
	}
	return s.dates[i]
}

// Open returns the open of bar i, NaN when out of range
func (s *Series) Open(i int) float64 {
	if i < 0 || i >= len(s.bars) {
		return math.NaN()
	}
	return s.bars[i].Open
}

// Close returns the close of bar i, NaN when out of range
func (s *Series) Close(i int) float64 {
	if i < 0 || i >= len(s.bars) {
		return math.NaN()
	}
	return s.bars[i].Close
}

// SMA returns the moving average triple at bar i, NaN when unavailable
func (s *Series) SMA(i int) (week, fast, slow float64) {
	if i < 0 || i >= len(s.bars) || s.cols.SMAWeek == nil {
		return math.NaN(), math.NaN(), math.NaN()
	}
	return s.cols.SMAWeek[i], s.cols.SMAFast[i], s.cols.SMASlow[i]
}

// Context returns the previous-bar indicator context for a decision at bar
// i. It is invalid when i has fewer than 2 preceding bars, no following bar,
// or no indicator columns
func (s *Series) Context(i int) Context {
	ctx := Context{
		ClosePrev:      math.NaN(),
		SMAWeekPrev:    math.NaN(),
		SMAFastPrev:    math.NaN(),
		SMASlowPrev:    math.NaN(),
		ATRPrev:        math.NaN(),
		MACDLinePrev:   math.NaN(),
		MACDSignalPrev: math.NaN(),
		MACDHistPrev:   math.NaN(),
	}
	if i < 2 || i >= len(s.bars) || s.cols.SMAWeek == nil {
		ctx.Time = s.Date(i)
		return ctx
	}
	p := i - 1
	ctx.Time = s.Date(i)
	ctx.ClosePrev = s.bars[p].Close
	ctx.SMAWeekPrev = s.cols.SMAWeek[p]
	ctx.SMAFastPrev = s.cols.SMAFast[p]
	ctx.SMASlowPrev = s.cols.SMASlow[p]
	ctx.ATRPrev = s.cols.ATR[p]
	ctx.TrendPrev = s.cols.Trend[p]
	ctx.MACDLinePrev = s.cols.MACDLine[p]
	ctx.MACDSignalPrev = s.cols.MACDSignal[p]
	ctx.MACDHistPrev = s.cols.MACDHist[p]
	ctx.Valid = common.IsFinite(ctx.SMAWeekPrev) &&
		common.IsFinite(ctx.SMAFastPrev) &&
		common.IsFinite(ctx.SMASlowPrev)
	return ctx
}

// IndexOf returns the bar index holding the given calendar date
func (s *Series) IndexOf(date time.Time) (int, bool) {
	i, ok := s.index[common.NormalizeDate(date)]
	return i, ok
}

// Dates returns the full normalized date grid of the series
func (s *Series) Dates() []time.Time {
	out := make([]time.Time, len(s.dates))
	copy(out, s.dates)
	return out
}
