package engine

import (
	"errors"
	"time"

	"dailybacktest/types"

	"github.com/shopspring/decimal"
)

var (
	InsufficientBalanceErr = errors.New("insufficient cash for order")
	ZeroQuantityErr        = errors.New("order resolves to zero shares")
	PositionOpenErr        = errors.New("position already open")
	NoPositionErr          = errors.New("no open position")
)

// Position is the single long position held by the portfolio.
type Position struct {
	Ticker        string
	Shares        decimal.Decimal
	AvgEntryPrice decimal.Decimal

	entryTime      time.Time
	entryIndex     int
	entryExecPrice decimal.Decimal
}

func (p *Position) EntryTime() time.Time { return p.entryTime }

type fill struct {
	index      int
	time       time.Time
	execPrice  decimal.Decimal
	fillPrice  decimal.Decimal
	shares     decimal.Decimal
	commission decimal.Decimal
}

type portfolio struct {
	cash       decimal.Decimal
	position   *Position
	commission decimal.Decimal
	trades     []types.Trade
}

func newPortfolio(initialCash, commission decimal.Decimal) *portfolio {
	return &portfolio{
		cash:       initialCash,
		commission: commission,
	}
}

func (p *portfolio) isFlat() bool {
	return p.position == nil
}

func (p *portfolio) shares() decimal.Decimal {
	if p.position == nil {
		return decimal.Zero
	}
	return p.position.Shares
}

// open applies a buy fill. Cash is never allowed below zero.
func (p *portfolio) open(ticker string, f fill) error {
	if p.position != nil {
		return PositionOpenErr
	}
	if !f.shares.IsPositive() {
		return ZeroQuantityErr
	}
	cost := f.shares.Mul(f.fillPrice).Add(f.commission)
	if cost.GreaterThan(p.cash) {
		return InsufficientBalanceErr
	}
	p.cash = p.cash.Sub(cost)
	p.position = &Position{
		Ticker:         ticker,
		Shares:         f.shares,
		AvgEntryPrice:  f.fillPrice,
		entryTime:      f.time,
		entryIndex:     f.index,
		entryExecPrice: f.execPrice,
	}
	return nil
}

// close applies a sell fill for the whole position and records the round trip.
func (p *portfolio) close(f fill) (types.Trade, error) {
	pos := p.position
	if pos == nil {
		return types.Trade{}, NoPositionErr
	}
	proceeds := pos.Shares.Mul(f.fillPrice).Sub(f.commission)
	newCash := p.cash.Add(proceeds)
	if newCash.IsNegative() {
		return types.Trade{}, InsufficientBalanceErr
	}
	p.cash = newCash

	gross := f.execPrice.Sub(pos.entryExecPrice).Mul(pos.Shares)
	slippage := pos.AvgEntryPrice.Sub(pos.entryExecPrice).
		Add(f.execPrice.Sub(f.fillPrice)).
		Mul(pos.Shares)
	commission := f.commission.Mul(decimal.NewFromInt(2))

	trade := types.Trade{
		ID:             len(p.trades),
		Ticker:         pos.Ticker,
		EntryTime:      pos.entryTime,
		ExitTime:       f.time,
		EntryPrice:     pos.entryExecPrice,
		ExitPrice:      f.execPrice,
		EntryFillPrice: pos.AvgEntryPrice,
		ExitFillPrice:  f.fillPrice,
		Shares:         pos.Shares,
		GrossPnL:       gross,
		Commission:     commission,
		SlippageCost:   slippage,
		NetPnL:         gross.Sub(commission).Sub(slippage),
		HoldingBars:    f.index - pos.entryIndex,
	}
	p.trades = append(p.trades, trade)
	p.position = nil
	return trade, nil
}

// mark values the portfolio at the given close.
func (p *portfolio) mark(ts time.Time, closePrice decimal.Decimal, action types.Action, note string) types.LedgerEntry {
	shares := p.shares()
	value := shares.Mul(closePrice)
	return types.LedgerEntry{
		Timestamp:   ts,
		Cash:        p.cash,
		Shares:      shares,
		MarketValue: value,
		Equity:      p.cash.Add(value),
		Action:      action,
		Note:        note,
	}
}

func (p *portfolio) snapshot() *Position {
	if p.position == nil {
		return nil
	}
	cp := *p.position
	return &cp
}
