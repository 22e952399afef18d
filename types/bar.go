package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bar is one daily OHLCV observation. Bars are immutable once loaded.
type Bar struct {
	Ticker    string          `json:"ticker"`
	Timestamp time.Time       `json:"timestamp"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    decimal.Decimal `json:"volume"`
}

func NewBar(ticker string, ts time.Time, open, high, low, closePrice, volume decimal.Decimal) Bar {
	return Bar{
		Ticker:    ticker,
		Timestamp: ts,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closePrice,
		Volume:    volume,
	}
}
