package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is a closed long round trip.
type Trade struct {
	ID        int
	Ticker    string
	EntryTime time.Time
	ExitTime  time.Time
	// EntryPrice and ExitPrice are execution prices before slippage.
	EntryPrice     decimal.Decimal
	ExitPrice      decimal.Decimal
	EntryFillPrice decimal.Decimal
	ExitFillPrice  decimal.Decimal
	Shares         decimal.Decimal

	GrossPnL     decimal.Decimal
	Commission   decimal.Decimal
	SlippageCost decimal.Decimal
	NetPnL       decimal.Decimal
	HoldingBars  int
}

// Costs is commission for both legs plus slippage.
func (t Trade) Costs() decimal.Decimal {
	return t.Commission.Add(t.SlippageCost)
}

func (t Trade) IsWin() bool {
	return t.NetPnL.IsPositive()
}
