// Package indicators wraps gct-ta for the close series of daily bars.
// Warm-up positions that gct-ta fills with zeros are returned as NaN so
// callers never mistake them for a real reading.
package indicators

import (
	"errors"
	"fmt"
	"math"

	"dailybacktest/types"

	ta "github.com/thrasher-corp/gct-ta/indicators"
)

var (
	ErrInvalidPeriod    = errors.New("invalid period")
	ErrNoData           = errors.New("no data")
	ErrInvalidDeviation = errors.New("invalid deviation multiplier")
)

// Bands holds Bollinger bands aligned with the input series.
type Bands struct {
	Upper  []float64
	Middle []float64
	Lower  []float64
}

func Closes(bars []types.Bar) []float64 {
	out := make([]float64, len(bars))
	for i := range bars {
		out[i] = bars[i].Close.InexactFloat64()
	}
	return out
}

func Highs(bars []types.Bar) []float64 {
	out := make([]float64, len(bars))
	for i := range bars {
		out[i] = bars[i].High.InexactFloat64()
	}
	return out
}

func Lows(bars []types.Bar) []float64 {
	out := make([]float64, len(bars))
	for i := range bars {
		out[i] = bars[i].Low.InexactFloat64()
	}
	return out
}

// SMA returns the simple moving average; the first period-1 values are NaN.
func SMA(in []float64, period int) ([]float64, error) {
	if err := validate("simple moving average", in, period); err != nil {
		return nil, err
	}
	if period > len(in) {
		return nanSeries(len(in)), nil
	}
	return warmUp(ta.SMA(in, period), period-1), nil
}

// EMA returns the exponential moving average; the first period-1 values are NaN.
func EMA(in []float64, period int) ([]float64, error) {
	if err := validate("exponential moving average", in, period); err != nil {
		return nil, err
	}
	if period > len(in) {
		return nanSeries(len(in)), nil
	}
	return warmUp(ta.EMA(in, period), period-1), nil
}

// RSI returns the relative strength index; the first period values are NaN.
func RSI(in []float64, period int) ([]float64, error) {
	if err := validate("relative strength index", in, period); err != nil {
		return nil, err
	}
	if period >= len(in) {
		return nanSeries(len(in)), nil
	}
	return warmUp(ta.RSI(in, period), period), nil
}

// Bollinger returns bands of k standard deviations around the simple moving average.
func Bollinger(in []float64, period int, k float64) (*Bands, error) {
	if err := validate("bollinger bands", in, period); err != nil {
		return nil, err
	}
	if k <= 0 || math.IsNaN(k) || math.IsInf(k, 0) {
		return nil, fmt.Errorf("bollinger bands %w: %v", ErrInvalidDeviation, k)
	}
	if period > len(in) {
		return &Bands{
			Upper:  nanSeries(len(in)),
			Middle: nanSeries(len(in)),
			Lower:  nanSeries(len(in)),
		}, nil
	}
	upper, middle, lower := ta.BBANDS(in, period, k, k, ta.Sma)
	return &Bands{
		Upper:  warmUp(upper, period-1),
		Middle: warmUp(middle, period-1),
		Lower:  warmUp(lower, period-1),
	}, nil
}

func validate(name string, in []float64, period int) error {
	if period <= 0 {
		return fmt.Errorf("%s %w: %d", name, ErrInvalidPeriod, period)
	}
	if len(in) == 0 {
		return fmt.Errorf("%s %w", name, ErrNoData)
	}
	return nil
}

// warmUp copies out and replaces the first n positions with NaN.
func warmUp(out []float64, n int) []float64 {
	res := make([]float64, len(out))
	copy(res, out)
	for i := 0; i < n && i < len(res); i++ {
		res[i] = math.NaN()
	}
	return res
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
