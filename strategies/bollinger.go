package strategies

import (
	"fmt"
	"math"

	"dailybacktest/internal/indicators"
	"dailybacktest/types"
)

// BollingerReversion buys a close below the lower band and exits on a close
// above the middle band.
type BollingerReversion struct {
	window int
	k      float64
}

func NewBollingerReversion(window int, k float64) (*BollingerReversion, error) {
	if window <= 1 {
		return nil, fmt.Errorf("%w: bollinger window must be above 1, got %d", ErrInvalidParams, window)
	}
	if k <= 0 || math.IsNaN(k) || math.IsInf(k, 0) {
		return nil, fmt.Errorf("%w: bollinger deviation must be positive, got %v", ErrInvalidParams, k)
	}
	return &BollingerReversion{window: window, k: k}, nil
}

func (s *BollingerReversion) Name() string {
	return fmt.Sprintf("bollinger(%d,%g)", s.window, s.k)
}

func (s *BollingerReversion) Generate(bars []types.Bar) ([]types.Signal, error) {
	if len(bars) == 0 {
		return []types.Signal{}, nil
	}
	closes := indicators.Closes(bars)
	bands, err := indicators.Bollinger(closes, s.window, s.k)
	if err != nil {
		return nil, err
	}

	long := make([]bool, len(bars))
	state := false
	for i, c := range closes {
		if !math.IsNaN(bands.Lower[i]) && !math.IsNaN(bands.Middle[i]) {
			switch {
			case !state && c < bands.Lower[i]:
				state = true
			case state && c > bands.Middle[i]:
				state = false
			}
		}
		long[i] = state
	}
	return fromStates(bars, long,
		fmt.Sprintf("close below lower band (%d, %g)", s.window, s.k),
		fmt.Sprintf("close above middle band (%d)", s.window),
	), nil
}
