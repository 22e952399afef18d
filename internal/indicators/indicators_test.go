package indicators

import (
	"errors"
	"math"
	"testing"
	"time"

	"dailybacktest/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var mixed = []float64{44.3, 44.1, 44.6, 43.9, 44.2, 44.8, 45.1, 44.7, 45.4, 45.0, 45.8, 46.1, 45.6, 46.3, 46.0, 46.6, 46.2, 45.7, 46.4, 46.9}

func TestIndicators_SMA(t *testing.T) {
	got, err := SMA([]float64{1, 2, 3, 4, 5}, 3)
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.True(t, math.IsNaN(got[0]))
	assert.True(t, math.IsNaN(got[1]))
	assert.InDelta(t, 2, got[2], 1e-9)
	assert.InDelta(t, 3, got[3], 1e-9)
	assert.InDelta(t, 4, got[4], 1e-9)
}

func TestIndicators_PeriodLongerThanSeries(t *testing.T) {
	in := []float64{1, 2, 3}
	sma, err := SMA(in, 5)
	require.NoError(t, err)
	rsi, err := RSI(in, 3)
	require.NoError(t, err)
	bands, err := Bollinger(in, 4, 2)
	require.NoError(t, err)

	for _, series := range [][]float64{sma, rsi, bands.Upper, bands.Middle, bands.Lower} {
		require.Len(t, series, 3)
		for _, v := range series {
			assert.True(t, math.IsNaN(v))
		}
	}
}

func TestIndicators_EMA(t *testing.T) {
	got, err := EMA(mixed, 5)
	require.NoError(t, err)
	require.Len(t, got, len(mixed))
	for i := 0; i < 4; i++ {
		assert.True(t, math.IsNaN(got[i]), "index %d", i)
	}
	last := got[len(got)-1]
	assert.True(t, last > 43 && last < 47, "ema %v outside input range", last)
}

func TestIndicators_RSI(t *testing.T) {
	got, err := RSI(mixed, 14)
	require.NoError(t, err)
	require.Len(t, got, len(mixed))
	for i := 0; i < 14; i++ {
		assert.True(t, math.IsNaN(got[i]), "index %d", i)
	}
	for i := 14; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i], 0.0)
		assert.LessOrEqual(t, got[i], 100.0)
	}
}

func TestIndicators_Bollinger(t *testing.T) {
	bands, err := Bollinger(mixed, 5, 2)
	require.NoError(t, err)
	sma, err := SMA(mixed, 5)
	require.NoError(t, err)

	for i := 4; i < len(mixed); i++ {
		assert.InDelta(t, sma[i], bands.Middle[i], 1e-9, "index %d", i)
		assert.GreaterOrEqual(t, bands.Upper[i], bands.Middle[i])
		assert.LessOrEqual(t, bands.Lower[i], bands.Middle[i])
	}
	assert.True(t, math.IsNaN(bands.Upper[3]))
}

func TestIndicators_Errors(t *testing.T) {
	tests := []struct {
		name    string
		call    func() error
		wantErr error
	}{
		{"sma zero period", func() error { _, err := SMA(mixed, 0); return err }, ErrInvalidPeriod},
		{"ema negative period", func() error { _, err := EMA(mixed, -3); return err }, ErrInvalidPeriod},
		{"rsi no data", func() error { _, err := RSI(nil, 14); return err }, ErrNoData},
		{"bollinger no data", func() error { _, err := Bollinger([]float64{}, 20, 2); return err }, ErrNoData},
		{"bollinger zero deviation", func() error { _, err := Bollinger(mixed, 5, 0); return err }, ErrInvalidDeviation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestIndicators_Closes(t *testing.T) {
	ts := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := []types.Bar{
		types.NewBar("AAPL", ts, decimal.NewFromInt(9), decimal.NewFromInt(12), decimal.NewFromInt(8), decimal.RequireFromString("10.5"), decimal.Zero),
	}
	assert.Equal(t, []float64{10.5}, Closes(bars))
	assert.Equal(t, []float64{12}, Highs(bars))
	assert.Equal(t, []float64{8}, Lows(bars))
}
