// Package strategies turns a bar series into one Buy/Sell/Hold signal per bar.
package strategies

import (
	"errors"

	"dailybacktest/types"
)

var (
	ErrUnknownStrategy = errors.New("unknown strategy")
	ErrInvalidParams   = errors.New("invalid strategy parameters")
)

// Generator produces signals aligned one-to-one with the bars it is given.
// A signal for bar i only depends on bars[0..i].
type Generator interface {
	Name() string
	Generate(bars []types.Bar) ([]types.Signal, error)
}

// fromStates emits BUY where the desired state flips from flat to long and
// SELL where it flips back. Every other bar is HOLD.
func fromStates(bars []types.Bar, long []bool, buyReason, sellReason string) []types.Signal {
	signals := types.HoldSignals(bars)
	prev := false
	for i, cur := range long {
		switch {
		case cur && !prev:
			signals[i].Action = types.ActionBuy
			signals[i].Reason = buyReason
		case !cur && prev:
			signals[i].Action = types.ActionSell
			signals[i].Reason = sellReason
		}
		prev = cur
	}
	return signals
}
