package engine

import (
	"errors"
	"fmt"

	"dailybacktest/types"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type backtester struct {
	bars      []types.Bar
	signals   []types.Signal
	execution *ExecutionConfig
	portfolio *portfolio
	logger    *zap.Logger

	ledger []types.LedgerEntry
}

func newBacktester(bars []types.Bar, signals []types.Signal, execution *ExecutionConfig, p *portfolio, logger *zap.Logger) *backtester {
	return &backtester{
		bars:      bars,
		signals:   signals,
		execution: execution,
		portfolio: p,
		logger:    logger,
		ledger:    make([]types.LedgerEntry, 0, len(bars)),
	}
}

// run makes a single pass over the bars. Bar i only ever reads bars[i] and,
// for next_open timing, bars[i+1].Open.
func (b *backtester) run() {
	for i, bar := range b.bars {
		action, note := b.step(i, b.signals[i])
		b.ledger = append(b.ledger, b.portfolio.mark(bar.Timestamp, bar.Close, action, note))
	}
}

// step applies the signal for bar i and returns the action actually executed.
func (b *backtester) step(i int, sig types.Signal) (types.Action, string) {
	switch sig.Action {
	case types.ActionBuy:
		if !b.portfolio.isFlat() {
			return types.ActionHold, ""
		}
		return b.buy(i)
	case types.ActionSell:
		if b.portfolio.isFlat() {
			return types.ActionHold, ""
		}
		return b.sell(i)
	default:
		return types.ActionHold, ""
	}
}

func (b *backtester) buy(i int) (types.Action, string) {
	bar := b.bars[i]
	execPrice := executionPrice(b.bars, i, b.execution.timing)
	fillPrice := buyPrice(execPrice, b.execution.slippage)
	shares := b.orderSize(fillPrice)

	f := fill{
		index:      i,
		time:       bar.Timestamp,
		execPrice:  execPrice,
		fillPrice:  fillPrice,
		shares:     shares,
		commission: b.execution.commission,
	}
	if err := b.portfolio.open(bar.Ticker, f); err != nil {
		return types.ActionHold, b.reject(i, types.ActionBuy, f, err)
	}
	b.logger.Debug("buy filled",
		zap.Time("time", bar.Timestamp),
		zap.String("shares", shares.String()),
		zap.String("price", fillPrice.String()),
		zap.String("cash", b.portfolio.cash.String()),
	)
	return types.ActionBuy, ""
}

func (b *backtester) sell(i int) (types.Action, string) {
	bar := b.bars[i]
	execPrice := executionPrice(b.bars, i, b.execution.timing)
	fillPrice := sellPrice(execPrice, b.execution.slippage)

	f := fill{
		index:      i,
		time:       bar.Timestamp,
		execPrice:  execPrice,
		fillPrice:  fillPrice,
		shares:     b.portfolio.shares(),
		commission: b.execution.commission,
	}
	trade, err := b.portfolio.close(f)
	if err != nil {
		return types.ActionHold, b.reject(i, types.ActionSell, f, err)
	}
	b.logger.Debug("sell filled",
		zap.Time("time", bar.Timestamp),
		zap.String("shares", trade.Shares.String()),
		zap.String("price", fillPrice.String()),
		zap.String("net_pnl", trade.NetPnL.String()),
	)
	return types.ActionSell, ""
}

func (b *backtester) reject(i int, action types.Action, f fill, err error) string {
	var note string
	switch {
	case errors.Is(err, InsufficientBalanceErr):
		need := f.shares.Mul(f.fillPrice).Add(f.commission)
		if action == types.ActionSell {
			need = f.commission
		}
		note = fmt.Sprintf("%s rejected: %v (need %s, have %s)", action, err, need.StringFixed(2), b.portfolio.cash.StringFixed(2))
	default:
		note = fmt.Sprintf("%s rejected: %v", action, err)
	}
	b.logger.Debug("order rejected",
		zap.Int("bar", i),
		zap.Time("time", b.bars[i].Timestamp),
		zap.String("reason", note),
	)
	return note
}

// orderSize resolves the configured sizing against the current cash.
func (b *backtester) orderSize(fillPrice decimal.Decimal) decimal.Decimal {
	sizing := b.execution.sizing
	if sizing.Mode == SizingFixedShares {
		return sizing.Value
	}
	return getQuantityForPrice(fillPrice, b.portfolio.cash.Mul(sizing.Value), b.execution.lotSize)
}

// executionPrice is close[i] for close timing and open[i+1] for next_open,
// falling back to close[i] on the last bar.
func executionPrice(bars []types.Bar, i int, timing Timing) decimal.Decimal {
	if timing == TimingNextOpen && i+1 < len(bars) {
		return bars[i+1].Open
	}
	return bars[i].Close
}

func buyPrice(price, slippage decimal.Decimal) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(1).Add(slippage))
}

func sellPrice(price, slippage decimal.Decimal) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(1).Sub(slippage))
}

func getQuantityForPrice(price, capitalToUse, lot decimal.Decimal) decimal.Decimal {
	if !price.IsPositive() || !lot.IsPositive() {
		return decimal.Zero
	}
	return capitalToUse.Div(price).Div(lot).Floor().Mul(lot)
}

func validateInputs(bars []types.Bar, signals []types.Signal) error {
	if len(bars) != len(signals) {
		return fmt.Errorf("%w: %d bars but %d signals", ErrAlignment, len(bars), len(signals))
	}
	for i, bar := range bars {
		if i > 0 && !bar.Timestamp.After(bars[i-1].Timestamp) {
			return fmt.Errorf("%w: bar %d timestamp %s is not after %s", ErrAlignment, i, bar.Timestamp, bars[i-1].Timestamp)
		}
		if !signals[i].Time.Equal(bar.Timestamp) {
			return fmt.Errorf("%w: signal %d at %s does not match bar at %s", ErrAlignment, i, signals[i].Time, bar.Timestamp)
		}
		if !signals[i].Action.Valid() {
			return fmt.Errorf("%w: signal %d has unknown action %q", ErrAlignment, i, signals[i].Action)
		}
		if !bar.Open.IsPositive() || !bar.Close.IsPositive() {
			return fmt.Errorf("%w: bar %d has non-positive open/close", ErrAlignment, i)
		}
		if bar.Volume.IsNegative() {
			return fmt.Errorf("%w: bar %d has negative volume", ErrAlignment, i)
		}
	}
	return nil
}
