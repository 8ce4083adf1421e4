package indicators

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/youngkwangkim88-blip/matlab-trading/data"
)

func TestSettingsValidate(t *testing.T) {
	t.Parallel()
	s := DefaultSettings()
	require.NoError(t, s.Validate())

	s.ATRWindow = 0
	assert.ErrorIs(t, s.Validate(), ErrInvalidWindow)
	s = DefaultSettings()
	s.MACDSignal = -1
	assert.ErrorIs(t, s.Validate(), ErrInvalidWindow)
}

func TestWarmupBars(t *testing.T) {
	t.Parallel()
	s := DefaultSettings()
	// 180 + 20 dominates every other window but stays under the floor
	assert.Equal(t, 250, s.WarmupBars())

	s.SMALongTerm = 300
	assert.Equal(t, 320, s.WarmupBars())
}

func TestPopulateValidation(t *testing.T) {
	t.Parallel()
	s := DefaultSettings()
	s.SMAWeek = 0
	_, err := Populate([]data.Bar{{}}, s)
	assert.ErrorIs(t, err, ErrInvalidWindow)

	_, err = Populate(nil, DefaultSettings())
	assert.ErrorIs(t, err, ErrNoBars)
}

func TestAlignRight(t *testing.T) {
	t.Parallel()
	out := alignRight(5, []float64{1, 2, 3})
	require.Len(t, out, 5)
	assert.True(t, math.IsNaN(out[0]))
	assert.True(t, math.IsNaN(out[1]))
	assert.Equal(t, []float64{1, 2, 3}, out[2:])

	// oversized input keeps the most recent values
	out = alignRight(2, []float64{1, 2, 3})
	assert.Equal(t, []float64{2, 3}, out)
}

func TestMaskWarmup(t *testing.T) {
	t.Parallel()
	out := maskWarmup([]float64{1, 2, 3, 4}, 2)
	assert.True(t, math.IsNaN(out[0]))
	assert.True(t, math.IsNaN(out[1]))
	assert.Equal(t, 3.0, out[2])

	out = maskWarmup([]float64{1, 2}, 10)
	assert.True(t, math.IsNaN(out[0]))
	assert.True(t, math.IsNaN(out[1]))
}

func TestTrendColumn(t *testing.T) {
	t.Parallel()
	nan := math.NaN()
	sma := []float64{nan, 100, 101, 102, 101, 101}
	trend := trendColumn(sma, 2)
	// index 0,1: inside lookback; index 2: prev is NaN
	assert.Equal(t, []int{0, 0, 0, 1, 0, -1}, trend)
}

func TestPopulateColumnShape(t *testing.T) {
	t.Parallel()
	s := Settings{
		SMAWeek: 2, SMAFast: 3, SMASlow: 4, SMALongTerm: 5,
		TrendLookback: 2, ATRWindow: 3,
		MACDFast: 3, MACDSlow: 5, MACDSignal: 2,
	}
	bars := make([]data.Bar, 30)
	for i := range bars {
		px := 100 + float64(i)
		bars[i] = data.Bar{Open: px, High: px + 1, Low: px - 1, Close: px}
	}
	cols, err := Populate(bars, s)
	require.NoError(t, err)

	n := len(bars)
	assert.Len(t, cols.SMAWeek, n)
	assert.Len(t, cols.SMAFast, n)
	assert.Len(t, cols.SMASlow, n)
	assert.Len(t, cols.SMALongTerm, n)
	assert.Len(t, cols.ATR, n)
	assert.Len(t, cols.Trend, n)
	assert.Len(t, cols.MACDHist, n)

	// warmup entries are NaN, never zero
	assert.True(t, math.IsNaN(cols.SMAWeek[0]))
	assert.True(t, math.IsNaN(cols.SMASlow[2]))
	assert.True(t, math.IsNaN(cols.ATR[2]))
	assert.True(t, math.IsNaN(cols.MACDHist[4]))

	// a strict ramp settles to a rising long-term trend
	assert.Equal(t, 1, cols.Trend[n-1])
	// and the shorter average sits above the longer one
	assert.Greater(t, cols.SMAWeek[n-1], cols.SMASlow[n-1])
}
