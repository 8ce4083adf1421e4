package report

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/youngkwangkim88-blip/matlab-trading/common"
	"github.com/youngkwangkim88-blip/matlab-trading/costs"
	"github.com/youngkwangkim88-blip/matlab-trading/data"
	"github.com/youngkwangkim88-blip/matlab-trading/engine"
	"github.com/youngkwangkim88-blip/matlab-trading/instrument"
	"github.com/youngkwangkim88-blip/matlab-trading/ledger"
	"github.com/youngkwangkim88-blip/matlab-trading/trader"
)

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func readRecords(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func TestNewWriter(t *testing.T) {
	t.Parallel()
	_, err := NewWriter("")
	assert.ErrorIs(t, err, errOutputDirUnset)

	dir := filepath.Join(t.TempDir(), "nested", "out")
	w, err := NewWriter(dir)
	require.NoError(t, err)
	require.NotNil(t, w)
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestWriteTrades(t *testing.T) {
	t.Parallel()
	w, err := NewWriter(t.TempDir())
	require.NoError(t, err)

	rows := []ledger.TradeEntry{
		{
			Time: day(0), Symbol: "005930", TraderID: "abc", Side: common.Buy,
			QuantityDelta: d("100"), QuantityAfter: d("100"), Price: d("70000"),
			Notional: d("7000000"), Fee: d("1050"), Tax: decimal.Zero, Reason: "SIGNAL_ENTRY",
		},
		{
			Time: day(5), Symbol: "005930", TraderID: "abc", Side: common.Sell,
			QuantityDelta: d("-100"), QuantityAfter: decimal.Zero, Price: d("71000"),
			Notional: d("-7100000"), Fee: d("1065"), Tax: d("14200"), Reason: "SIGNAL_EXIT",
		},
	}
	require.NoError(t, w.WriteTrades("trades.csv", rows))

	records := readRecords(t, filepath.Join(w.dir, "trades.csv"))
	require.Len(t, records, 3)
	assert.Equal(t, []string{"date", "symbol", "trader", "side", "quantity-delta", "quantity-after", "price", "notional", "fee", "tax", "reason"}, records[0])
	assert.Equal(t, "2024-01-01", records[1][0])
	assert.Equal(t, "BUY", records[1][3])
	assert.Equal(t, "-100", records[2][4])
	assert.Equal(t, "14200", records[2][9])
}

func TestWritePortfolioLogs(t *testing.T) {
	t.Parallel()
	w, err := NewWriter(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, w.WriteBorrows("borrows.csv", []ledger.BorrowEntry{
		{Time: day(1), Symbol: "005930", Quantity: d("-50"), Price: d("70000"), Cost: d("383.56")},
	}))
	records := readRecords(t, filepath.Join(w.dir, "borrows.csv"))
	require.Len(t, records, 2)
	assert.Equal(t, "383.56", records[1][4])

	require.NoError(t, w.WriteRejections("rejections.csv", []ledger.RejectionEntry{
		{Time: day(2), Symbol: "005930", DesiredPosition: 1, CurrentQuantity: decimal.Zero, RequestedTarget: d("200"), FinalTarget: d("150"), Retries: 3},
	}))
	records = readRecords(t, filepath.Join(w.dir, "rejections.csv"))
	require.Len(t, records, 2)
	assert.Equal(t, []string{"2024-01-03", "005930", "1", "0", "200", "150", "3"}, records[1])

	require.NoError(t, w.WriteEquityCurve("equity.csv", []ledger.EquityPoint{
		{Time: day(3), Equity: d("1000500"), Cash: d("300500"), ReservedMargin: decimal.Zero, GrossExposure: d("700000"), NetExposure: d("700000")},
	}))
	records = readRecords(t, filepath.Join(w.dir, "equity.csv"))
	require.Len(t, records, 2)
	assert.Equal(t, "1000500", records[1][1])
}

func TestWriteAll(t *testing.T) {
	t.Parallel()
	w, err := NewWriter(t.TempDir())
	require.NoError(t, err)

	l, err := ledger.New(d("1000000"))
	require.NoError(t, err)

	spec, err := instrument.NewSpec("005930", decimal.NewFromInt(1), decimal.NewFromInt(1),
		decimal.Zero, false, 0, false, costs.Zero{}, costs.Zero{}, costs.Zero{})
	require.NoError(t, err)

	n := 12
	bars := make([]data.Bar, n)
	cols := data.Columns{
		SMAWeek:     make([]float64, n),
		SMAFast:     make([]float64, n),
		SMASlow:     make([]float64, n),
		SMALongTerm: make([]float64, n),
		ATR:         make([]float64, n),
		Trend:       make([]int, n),
		MACDLine:    make([]float64, n),
		MACDSignal:  make([]float64, n),
		MACDHist:    make([]float64, n),
	}
	for i := range bars {
		bars[i] = data.Bar{Time: day(i), Open: 100, High: 101, Low: 99, Close: 100, Volume: 1}
		cols.SMAWeek[i] = 110
		cols.SMAFast[i] = 100
		cols.SMASlow[i] = 90
		cols.SMALongTerm[i] = 100
		cols.ATR[i] = 2
		cols.Trend[i] = 1
	}
	feed, err := data.NewSeries(spec.Symbol, bars, cols)
	require.NoError(t, err)

	settings := trader.DefaultSettings()
	settings.UseATRFilter = false
	settings.UseLongTrendFilter = false
	settings.EnableShort = false
	tr, err := trader.New(feed, settings, trader.PaperCosts{}, time.Time{}, time.Time{})
	require.NoError(t, err)
	tr.Run()

	insts := []*engine.Instrument{{Spec: spec, Feed: feed, Trader: tr}}
	meta := engine.RunMetaData{Nickname: "writer-test"}
	require.NoError(t, w.WriteAll(meta, l, insts))

	for _, name := range []string{
		"trades.csv", "borrows.csv", "rejections.csv", "equity.csv",
		"fills_005930.csv", "stops_005930.csv", "paper_equity_005930.csv", "positions_005930.csv",
	} {
		records := readRecords(t, filepath.Join(w.dir, name))
		assert.NotEmpty(t, records, name)
	}

	fills := readRecords(t, filepath.Join(w.dir, "fills_005930.csv"))
	assert.Greater(t, len(fills), 1)
	equity := readRecords(t, filepath.Join(w.dir, "paper_equity_005930.csv"))
	assert.Greater(t, len(equity), 1)
}
