package strategies

import (
	"fmt"
	"math"

	"dailybacktest/internal/indicators"
	"dailybacktest/types"
)

// RSIReversion buys when RSI drops below the oversold level and exits once it
// rises above the overbought level. The position is held in between.
type RSIReversion struct {
	period     int
	oversold   float64
	overbought float64
}

func NewRSIReversion(period int, oversold, overbought float64) (*RSIReversion, error) {
	if period <= 0 {
		return nil, fmt.Errorf("%w: rsi period must be positive, got %d", ErrInvalidParams, period)
	}
	if oversold < 0 || overbought > 100 || oversold >= overbought {
		return nil, fmt.Errorf("%w: need 0 <= oversold < overbought <= 100, got %v/%v", ErrInvalidParams, oversold, overbought)
	}
	return &RSIReversion{period: period, oversold: oversold, overbought: overbought}, nil
}

func (s *RSIReversion) Name() string {
	return fmt.Sprintf("rsi(%d,%g,%g)", s.period, s.oversold, s.overbought)
}

func (s *RSIReversion) Generate(bars []types.Bar) ([]types.Signal, error) {
	if len(bars) == 0 {
		return []types.Signal{}, nil
	}
	rsi, err := indicators.RSI(indicators.Closes(bars), s.period)
	if err != nil {
		return nil, err
	}

	long := make([]bool, len(bars))
	state := false
	for i, v := range rsi {
		if !math.IsNaN(v) {
			switch {
			case !state && v < s.oversold:
				state = true
			case state && v > s.overbought:
				state = false
			}
		}
		long[i] = state
	}
	return fromStates(bars, long,
		fmt.Sprintf("RSI(%d) below %g", s.period, s.oversold),
		fmt.Sprintf("RSI(%d) above %g", s.period, s.overbought),
	), nil
}
