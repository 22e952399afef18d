package types

import (
	"time"

	"github.com/shopspring/decimal"
)

type Action string

const (
	ActionHold Action = "HOLD"
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

func (a Action) Valid() bool {
	switch a {
	case ActionHold, ActionBuy, ActionSell:
		return true
	}
	return false
}

// Signal is the strategy's decision for the bar with the same timestamp.
type Signal struct {
	Time   time.Time
	Action Action
	// Price is the close the strategy looked at, kept for reporting.
	Price  decimal.Decimal
	Reason string
}

func NewSignal(ts time.Time, action Action, price decimal.Decimal, reason string) Signal {
	return Signal{
		Time:   ts,
		Action: action,
		Price:  price,
		Reason: reason,
	}
}

// HoldSignals returns a HOLD signal for every bar.
func HoldSignals(bars []Bar) []Signal {
	out := make([]Signal, len(bars))
	for i, b := range bars {
		out[i] = NewSignal(b.Timestamp, ActionHold, b.Close, "")
	}
	return out
}
