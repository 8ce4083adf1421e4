package data

import (
	"errors"
	"time"
)

var (
	// ErrNoData is returned when a series is constructed without bars
	ErrNoData = errors.New("no bar data provided")
	// ErrIndexOutOfRange is returned for bar lookups outside the series
	ErrIndexOutOfRange = errors.New("bar index out of range")
	// ErrColumnLengthMismatch is returned when indicator columns do not
	// cover every bar
	ErrColumnLengthMismatch = errors.New("indicator column length does not match bar count")
)

// Bar is one OHLCV sample
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Columns holds the per-bar indicator series aligned 1:1 with the bars.
// Warmup entries are NaN, never zero
type Columns struct {
	SMAWeek     []float64
	SMAFast     []float64
	SMASlow     []float64
	SMALongTerm []float64
	ATR         []float64
	Trend       []int
	MACDLine    []float64
	MACDSignal  []float64
	MACDHist    []float64
}

// Context carries the previous-bar indicator values used for decisions at
// bar t, so no decision can see its own bar
type Context struct {
	Valid          bool
	Time           time.Time
	ClosePrev      float64
	SMAWeekPrev    float64
	SMAFastPrev    float64
	SMASlowPrev    float64
	ATRPrev        float64
	TrendPrev      int
	MACDLinePrev   float64
	MACDSignalPrev float64
	MACDHistPrev   float64
}

// Handler is the integer-indexed random-access feed the trader and engine
// consume. One Handler serves exactly one symbol
type Handler interface {
	Symbol() string
	Len() int
	Bar(i int) (Bar, error)
	Date(i int) time.Time
	Open(i int) float64
	Close(i int) float64
	Context(i int) Context
	SMA(i int) (week, fast, slow float64)
	IndexOf(date time.Time) (int, bool)
	Dates() []time.Time
}
