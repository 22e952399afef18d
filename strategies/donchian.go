package strategies

import (
	"fmt"

	"dailybacktest/types"

	"github.com/shopspring/decimal"
)

// Donchian is a long-only channel breakout: buy a break of the highest high of
// the preceding window, sell a break of its lowest low.
type Donchian struct {
	window int
}

func NewDonchian(window int) (*Donchian, error) {
	if window <= 0 {
		return nil, fmt.Errorf("%w: donchian window must be positive, got %d", ErrInvalidParams, window)
	}
	return &Donchian{window: window}, nil
}

func (s *Donchian) Name() string {
	return fmt.Sprintf("donchian(%d)", s.window)
}

func (s *Donchian) Generate(bars []types.Bar) ([]types.Signal, error) {
	long := make([]bool, len(bars))
	state := false
	for i := range bars {
		// Need a full window of completed bars before the current one.
		if i >= s.window {
			highestHigh, lowestLow := donchianHighLow(bars[i-s.window : i])
			switch {
			case !state && bars[i].High.GreaterThan(highestHigh):
				state = true
			case state && bars[i].Low.LessThan(lowestLow):
				state = false
			}
		}
		long[i] = state
	}
	return fromStates(bars, long,
		fmt.Sprintf("Break of highest high of preceding %d bars", s.window),
		fmt.Sprintf("Break of lowest low of preceding %d bars", s.window),
	), nil
}

// Utility: Donchian Channel High/Low
func donchianHighLow(bars []types.Bar) (decimal.Decimal, decimal.Decimal) {
	if len(bars) == 0 {
		return decimal.Zero, decimal.Zero
	}

	highest := bars[0].High
	lowest := bars[0].Low

	for _, b := range bars {
		if b.High.GreaterThan(highest) {
			highest = b.High
		}
		if b.Low.LessThan(lowest) {
			lowest = b.Low
		}
	}
	return highest, lowest
}
