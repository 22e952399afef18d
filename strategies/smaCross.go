package strategies

import (
	"fmt"
	"math"

	"dailybacktest/internal/indicators"
	"dailybacktest/types"
)

// SMACross is long while the short moving average is above the long one.
type SMACross struct {
	short int
	long  int
}

func NewSMACross(short, long int) (*SMACross, error) {
	if short <= 0 || long <= 0 {
		return nil, fmt.Errorf("%w: sma windows must be positive, got %d/%d", ErrInvalidParams, short, long)
	}
	if short >= long {
		return nil, fmt.Errorf("%w: short window %d must be below long window %d", ErrInvalidParams, short, long)
	}
	return &SMACross{short: short, long: long}, nil
}

func (s *SMACross) Name() string {
	return fmt.Sprintf("sma_cross(%d,%d)", s.short, s.long)
}

func (s *SMACross) Generate(bars []types.Bar) ([]types.Signal, error) {
	if len(bars) == 0 {
		return []types.Signal{}, nil
	}
	closes := indicators.Closes(bars)
	shortMA, err := indicators.SMA(closes, s.short)
	if err != nil {
		return nil, err
	}
	longMA, err := indicators.SMA(closes, s.long)
	if err != nil {
		return nil, err
	}

	long := make([]bool, len(bars))
	for i := range bars {
		if math.IsNaN(shortMA[i]) || math.IsNaN(longMA[i]) {
			continue
		}
		long[i] = shortMA[i] > longMA[i]
	}
	return fromStates(bars, long,
		fmt.Sprintf("SMA(%d) crossed above SMA(%d)", s.short, s.long),
		fmt.Sprintf("SMA(%d) crossed below SMA(%d)", s.short, s.long),
	), nil
}
