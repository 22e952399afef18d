package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerEntry is the account state after processing one bar.
type LedgerEntry struct {
	Timestamp   time.Time
	Cash        decimal.Decimal
	Shares      decimal.Decimal
	MarketValue decimal.Decimal
	Equity      decimal.Decimal
	// Action is what was executed on this bar, HOLD when a signal was ignored or rejected.
	Action Action
	Note   string
}
