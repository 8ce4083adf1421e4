package costs

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/youngkwangkim88-blip/matlab-trading/common"
)

func TestNewFlatFee(t *testing.T) {
	t.Parallel()
	_, err := NewFlatFee(decimal.NewFromFloat(-0.001))
	assert.ErrorIs(t, err, ErrNegativeRate)

	f, err := NewFlatFee(decimal.NewFromFloat(0.0015))
	require.NoError(t, err)
	fee := f.Fee(decimal.NewFromInt(-1000000))
	assert.True(t, fee.Equal(decimal.NewFromInt(1500)), fee.String())
}

func TestSellTax(t *testing.T) {
	t.Parallel()
	_, err := NewSellTax(decimal.NewFromFloat(-0.1), nil)
	assert.ErrorIs(t, err, ErrNegativeRate)
	_, err = NewSellTax(decimal.Zero, map[int]decimal.Decimal{2023: decimal.NewFromFloat(-0.1)})
	assert.ErrorIs(t, err, ErrNegativeRate)

	s, err := NewSellTax(decimal.NewFromFloat(0.0023), map[int]decimal.Decimal{
		2024: decimal.NewFromFloat(0.0018),
	})
	require.NoError(t, err)

	in2023 := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	in2024 := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	notional := decimal.NewFromInt(1000000)

	assert.True(t, s.Tax(in2023, common.Buy, notional).IsZero())
	assert.True(t, s.Tax(in2023, common.Sell, notional).Equal(decimal.NewFromInt(2300)))
	assert.True(t, s.Tax(in2024, common.Sell, notional).Equal(decimal.NewFromInt(1800)))
}

func TestAsymmetricMargin(t *testing.T) {
	t.Parallel()
	_, err := NewAsymmetricMargin(decimal.NewFromInt(-1), decimal.Zero)
	assert.ErrorIs(t, err, ErrNegativeRate)

	m, err := NewAsymmetricMargin(decimal.Zero, decimal.NewFromFloat(0.25))
	require.NoError(t, err)

	price := decimal.NewFromInt(100)
	one := decimal.NewFromInt(1)
	assert.True(t, m.Margin(decimal.NewFromInt(10), price, one).IsZero())
	short := m.Margin(decimal.NewFromInt(-10), price, one)
	assert.True(t, short.Equal(decimal.NewFromInt(250)), short.String())
	assert.True(t, m.Margin(decimal.Zero, price, one).IsZero())
}

func TestZeroModels(t *testing.T) {
	t.Parallel()
	var z Zero
	assert.True(t, z.Fee(decimal.NewFromInt(100)).IsZero())
	assert.True(t, z.Tax(time.Now(), common.Sell, decimal.NewFromInt(100)).IsZero())
	assert.True(t, z.Margin(decimal.NewFromInt(-5), decimal.NewFromInt(10), decimal.NewFromInt(1)).IsZero())
}
