package engine

import (
	"testing"
	"time"

	"dailybacktest/types"

	"github.com/shopspring/decimal"
)

var testStart = time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func dayAt(i int) time.Time {
	return testStart.AddDate(0, 0, i)
}

// mockBars builds daily bars where open == close.
func mockBars(closes ...string) []types.Bar {
	return mockBarsOC(closes, closes)
}

func mockBarsOC(opens, closes []string) []types.Bar {
	bars := make([]types.Bar, len(closes))
	for i := range closes {
		c := d(closes[i])
		bars[i] = types.NewBar("AAPL", dayAt(i), d(opens[i]), c, c, c, decimal.NewFromInt(1000))
	}
	return bars
}

func mockSignals(bars []types.Bar, actions ...types.Action) []types.Signal {
	signals := types.HoldSignals(bars)
	for i, a := range actions {
		signals[i].Action = a
	}
	return signals
}

const (
	H = types.ActionHold
	B = types.ActionBuy
	S = types.ActionSell
)

func mustEngine(t *testing.T, exec *ExecutionConfig, cash string) *Engine {
	t.Helper()
	eng, err := NewEngine(exec, NewPortfolioConfig(d(cash)), nil)
	if err != nil {
		t.Fatalf("NewEngine() unexpected error: %v", err)
	}
	return eng
}

func mustRun(t *testing.T, eng *Engine, bars []types.Bar, signals []types.Signal) *Result {
	t.Helper()
	res, err := eng.Run(bars, signals)
	if err != nil {
		t.Fatalf("Run() unexpected error: %v", err)
	}
	return res
}

func fixedExec(shares, commission, slippage string, timing Timing) *ExecutionConfig {
	return NewExecutionConfig(FixedShares(d(shares)), d(commission), d(slippage), timing)
}

// ledgerResult builds a result whose ledger has the given equity values.
func ledgerResult(initial string, equities ...float64) *Result {
	ledger := make([]types.LedgerEntry, len(equities))
	for i, eq := range equities {
		e := decimal.NewFromFloat(eq)
		ledger[i] = types.LedgerEntry{Timestamp: dayAt(i), Cash: e, Shares: decimal.Zero, MarketValue: decimal.Zero, Equity: e, Action: types.ActionHold}
	}
	return &Result{Ticker: "AAPL", InitialCash: d(initial), Ledger: ledger}
}

func mockTrade(net string, holding int) types.Trade {
	return types.Trade{NetPnL: d(net), GrossPnL: d(net), Commission: decimal.Zero, SlippageCost: decimal.Zero, HoldingBars: holding}
}
