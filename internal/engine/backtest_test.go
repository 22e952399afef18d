package engine

import (
	"errors"
	"strings"
	"testing"

	"dailybacktest/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBacktest_AllHoldKeepsEquityFlat(t *testing.T) {
	bars := mockBars("100", "101", "99", "105", "103")
	eng := mustEngine(t, fixedExec("10", "1", "0", TimingClose), "10000")

	res := mustRun(t, eng, bars, mockSignals(bars))

	assert.Empty(t, res.Trades)
	assert.Nil(t, res.OpenPosition)
	require.Len(t, res.Ledger, 5)
	for i, entry := range res.Ledger {
		assert.True(t, entry.Equity.Equal(d("10000")), "bar %d equity %s", i, entry.Equity)
		assert.Equal(t, types.ActionHold, entry.Action)
	}
}

func TestBacktest_BuyThenSellRecordsTrade(t *testing.T) {
	bars := mockBars("100", "104", "107", "110", "108")
	eng := mustEngine(t, fixedExec("10", "1", "0", TimingClose), "10000")

	res := mustRun(t, eng, bars, mockSignals(bars, B, H, H, S, H))

	assert.True(t, res.Ledger[0].Cash.Equal(d("8999")), "cash after buy %s", res.Ledger[0].Cash)
	assert.True(t, res.Ledger[0].Shares.Equal(d("10")))
	assert.True(t, res.Ledger[2].MarketValue.Equal(d("1070")))
	require.Len(t, res.Trades, 1)

	tr := res.Trades[0]
	assert.True(t, tr.EntryPrice.Equal(d("100")))
	assert.True(t, tr.ExitPrice.Equal(d("110")))
	assert.True(t, tr.Shares.Equal(d("10")))
	assert.True(t, tr.GrossPnL.Equal(d("100")))
	assert.True(t, tr.Commission.Equal(d("2")))
	assert.True(t, tr.NetPnL.Equal(d("98")), "net pnl %s", tr.NetPnL)
	assert.Equal(t, 3, tr.HoldingBars)
	assert.Equal(t, dayAt(0), tr.EntryTime)
	assert.Equal(t, dayAt(3), tr.ExitTime)

	assert.True(t, res.Ledger[3].Cash.Equal(d("10098")))
	assert.True(t, res.Ledger[4].Equity.Equal(d("10098")))
	assert.Equal(t, types.ActionSell, res.Ledger[3].Action)
}

func TestBacktest_PctEquitySizing(t *testing.T) {
	bars := mockBars("50", "55")
	exec := NewExecutionConfig(PctEquity(d("0.5")), decimal.Zero, decimal.Zero, TimingClose)
	eng := mustEngine(t, exec, "1000")

	res := mustRun(t, eng, bars, mockSignals(bars, B))

	assert.True(t, res.Ledger[0].Shares.Equal(d("10")), "shares %s", res.Ledger[0].Shares)
	assert.True(t, res.Ledger[0].Cash.Equal(d("500")), "cash %s", res.Ledger[0].Cash)
	assert.True(t, res.Ledger[1].Equity.Equal(d("1050")))
}

func TestBacktest_PctEquityLotSize(t *testing.T) {
	bars := mockBars("300")
	exec := NewExecutionConfig(PctEquity(d("1")), decimal.Zero, decimal.Zero, TimingClose).WithLotSize(d("0.1"))
	eng := mustEngine(t, exec, "1000")

	res := mustRun(t, eng, bars, mockSignals(bars, B))

	assert.True(t, res.Ledger[0].Shares.Equal(d("3.3")), "shares %s", res.Ledger[0].Shares)
	assert.True(t, res.Ledger[0].Cash.Equal(d("10")), "cash %s", res.Ledger[0].Cash)
}

func TestBacktest_PctEquityRejections(t *testing.T) {
	tests := []struct {
		name       string
		price      string
		commission string
		wantNote   string
	}{
		{name: "zero shares", price: "600", commission: "0", wantNote: "zero shares"},
		{name: "commission overdraws cash", price: "100", commission: "5", wantNote: "insufficient cash"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bars := mockBars(tt.price)
			exec := NewExecutionConfig(PctEquity(d("1")), d(tt.commission), decimal.Zero, TimingClose)
			eng := mustEngine(t, exec, "500")

			res := mustRun(t, eng, bars, mockSignals(bars, B))

			entry := res.Ledger[0]
			if entry.Action != types.ActionHold {
				t.Errorf("action = %s, want HOLD", entry.Action)
			}
			if !entry.Cash.Equal(d("500")) || !entry.Shares.IsZero() {
				t.Errorf("state changed on rejection: cash %s shares %s", entry.Cash, entry.Shares)
			}
			if !strings.Contains(entry.Note, tt.wantNote) {
				t.Errorf("note %q does not mention %q", entry.Note, tt.wantNote)
			}
		})
	}
}

func TestBacktest_NextOpenUsesFollowingBarOpen(t *testing.T) {
	bars := mockBarsOC(
		[]string{"99", "102", "108", "111"},
		[]string{"100", "105", "110", "112"},
	)
	eng := mustEngine(t, fixedExec("1", "0", "0", TimingNextOpen), "1000")

	res := mustRun(t, eng, bars, mockSignals(bars, B, S))

	require.Len(t, res.Trades, 1)
	assert.True(t, res.Trades[0].EntryPrice.Equal(d("102")), "entry %s", res.Trades[0].EntryPrice)
	assert.True(t, res.Trades[0].ExitPrice.Equal(d("108")), "exit %s", res.Trades[0].ExitPrice)
	// Fills are booked on the decision bar and marked at its own close.
	assert.True(t, res.Ledger[0].Cash.Equal(d("898")))
	assert.True(t, res.Ledger[0].Equity.Equal(d("998")))
}

func TestBacktest_NextOpenOnLastBarFallsBackToClose(t *testing.T) {
	bars := mockBarsOC(
		[]string{"99", "102", "104"},
		[]string{"100", "105", "107"},
	)
	eng := mustEngine(t, fixedExec("2", "0", "0", TimingNextOpen), "1000")

	res := mustRun(t, eng, bars, mockSignals(bars, H, H, B))

	last := res.Ledger[2]
	assert.True(t, last.Cash.Equal(d("786")), "cash %s", last.Cash)
	require.NotNil(t, res.OpenPosition)
	assert.True(t, res.OpenPosition.AvgEntryPrice.Equal(d("107")))
}

func TestBacktest_InsufficientCashIsRejected(t *testing.T) {
	bars := mockBars("100", "100")
	eng := mustEngine(t, fixedExec("1000", "0", "0", TimingClose), "50")

	res := mustRun(t, eng, bars, mockSignals(bars, B))

	entry := res.Ledger[0]
	assert.Equal(t, types.ActionHold, entry.Action)
	assert.True(t, entry.Cash.Equal(d("50")))
	assert.True(t, entry.Shares.IsZero())
	assert.Contains(t, entry.Note, "insufficient cash")
	assert.Empty(t, res.Trades)
	assert.Nil(t, res.OpenPosition)
}

func TestBacktest_SlippageWorksAgainstTrader(t *testing.T) {
	bars := mockBars("100", "110")
	eng := mustEngine(t, fixedExec("10", "1", "0.01", TimingClose), "10000")

	res := mustRun(t, eng, bars, mockSignals(bars, B, S))

	require.Len(t, res.Trades, 1)
	tr := res.Trades[0]
	assert.True(t, tr.EntryFillPrice.Equal(d("101")))
	assert.True(t, tr.ExitFillPrice.Equal(d("108.9")))
	assert.True(t, tr.GrossPnL.Equal(d("100")))
	assert.True(t, tr.SlippageCost.Equal(d("21")), "slippage %s", tr.SlippageCost)
	assert.True(t, tr.NetPnL.Equal(d("77")), "net %s", tr.NetPnL)
	// Net P&L matches the actual change in cash.
	assert.True(t, res.Ledger[1].Cash.Sub(d("10000")).Equal(tr.NetPnL))
}

func TestBacktest_TieBreaks(t *testing.T) {
	bars := mockBars("100", "101", "102", "103", "104", "105")
	eng := mustEngine(t, fixedExec("1", "0", "0", TimingClose), "1000")

	res := mustRun(t, eng, bars, mockSignals(bars, S, B, B, S, S, B))

	wantActions := []types.Action{H, B, H, S, H, B}
	for i, want := range wantActions {
		if res.Ledger[i].Action != want {
			t.Errorf("bar %d action = %s, want %s", i, res.Ledger[i].Action, want)
		}
	}
	require.Len(t, res.Trades, 1)
	assert.True(t, res.Trades[0].EntryPrice.Equal(d("101")))
	assert.True(t, res.Trades[0].Shares.Equal(d("1")))
}

func TestBacktest_OpenPositionIsNotForceClosed(t *testing.T) {
	bars := mockBars("100", "120", "130")
	eng := mustEngine(t, fixedExec("5", "0", "0", TimingClose), "1000")

	res := mustRun(t, eng, bars, mockSignals(bars, B))

	assert.Empty(t, res.Trades)
	require.NotNil(t, res.OpenPosition)
	assert.True(t, res.OpenPosition.Shares.Equal(d("5")))
	assert.Equal(t, dayAt(0), res.OpenPosition.EntryTime())
	last := res.Ledger[2]
	assert.True(t, last.MarketValue.Equal(d("650")))
	assert.True(t, last.Equity.Equal(d("1150")))
	assert.True(t, res.FinalEquity().Equal(d("1150")))
}

func TestBacktest_AlignmentErrors(t *testing.T) {
	bars := mockBars("100", "101", "102")
	shifted := mockSignals(bars)
	shifted[1].Time = dayAt(7)
	unordered := mockBars("100", "101", "102")
	unordered[2].Timestamp = dayAt(1)
	badAction := mockSignals(bars)
	badAction[0].Action = "SHORT"
	badPrice := mockBars("100", "0", "102")

	tests := []struct {
		name    string
		bars    []types.Bar
		signals []types.Signal
	}{
		{"length mismatch", bars, mockSignals(bars)[:2]},
		{"timestamp mismatch", bars, shifted},
		{"duplicate timestamps", unordered, mockSignals(unordered)},
		{"unknown action", bars, badAction},
		{"non-positive close", badPrice, mockSignals(badPrice)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := mustEngine(t, fixedExec("1", "0", "0", TimingClose), "1000")
			_, err := eng.Run(tt.bars, tt.signals)
			if !errors.Is(err, ErrAlignment) {
				t.Fatalf("Run() error = %v, want ErrAlignment", err)
			}
			// A failed validation does not consume the engine.
			if _, err := eng.Run(bars, mockSignals(bars)); err != nil {
				t.Fatalf("Run() after validation failure: %v", err)
			}
		})
	}
}

func TestBacktest_ConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		exec *ExecutionConfig
		cash string
	}{
		{"zero cash", fixedExec("1", "0", "0", TimingClose), "0"},
		{"negative cash", fixedExec("1", "0", "0", TimingClose), "-5"},
		{"zero fixed shares", fixedExec("0", "0", "0", TimingClose), "1000"},
		{"zero fraction", NewExecutionConfig(PctEquity(d("0")), d("0"), d("0"), TimingClose), "1000"},
		{"fraction above one", NewExecutionConfig(PctEquity(d("1.5")), d("0"), d("0"), TimingClose), "1000"},
		{"negative commission", fixedExec("1", "-1", "0", TimingClose), "1000"},
		{"negative slippage", fixedExec("1", "0", "-0.01", TimingClose), "1000"},
		{"slippage of one", fixedExec("1", "0", "1", TimingClose), "1000"},
		{"unknown timing", fixedExec("1", "0", "0", Timing("vwap")), "1000"},
		{"unknown sizing", NewExecutionConfig(Sizing{Mode: "kelly", Value: d("1")}, d("0"), d("0"), TimingClose), "1000"},
		{"zero lot size", fixedExec("1", "0", "0", TimingClose).WithLotSize(decimal.Zero), "1000"},
		{"nil execution", nil, "1000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEngine(tt.exec, NewPortfolioConfig(d(tt.cash)), nil)
			if !errors.Is(err, ErrConfig) {
				t.Fatalf("NewEngine() error = %v, want ErrConfig", err)
			}
		})
	}
}

func TestBacktest_EngineIsSingleUse(t *testing.T) {
	bars := mockBars("100", "90", "95", "120", "80", "85")
	signals := mockSignals(bars, B, H, S, B, S, B)
	eng := mustEngine(t, fixedExec("3", "1.5", "0.002", TimingNextOpen), "1000")

	first := mustRun(t, eng, bars, signals)
	if _, err := eng.Run(bars, signals); !errors.Is(err, ErrEngineUsed) {
		t.Fatalf("second Run() error = %v, want ErrEngineUsed", err)
	}

	eng.Reset()
	second := mustRun(t, eng, bars, signals)
	require.Len(t, second.Ledger, len(first.Ledger))
	for i := range first.Ledger {
		a, b := first.Ledger[i], second.Ledger[i]
		if !a.Cash.Equal(b.Cash) || !a.Shares.Equal(b.Shares) || !a.Equity.Equal(b.Equity) || a.Action != b.Action {
			t.Errorf("bar %d differs between identical runs: %+v vs %+v", i, a, b)
		}
	}
	require.Len(t, second.Trades, len(first.Trades))
	for i := range first.Trades {
		if !first.Trades[i].NetPnL.Equal(second.Trades[i].NetPnL) {
			t.Errorf("trade %d net pnl %s vs %s", i, first.Trades[i].NetPnL, second.Trades[i].NetPnL)
		}
	}
}

func TestBacktest_Invariants(t *testing.T) {
	closes := []string{"100", "97", "103", "110", "104", "98", "95", "101", "107", "111", "108", "99", "94", "100", "106"}
	opens := []string{"99", "98", "101", "108", "106", "99", "96", "99", "105", "112", "109", "101", "95", "98", "104"}
	bars := mockBarsOC(opens, closes)
	actions := []types.Action{B, H, S, B, B, H, S, S, B, H, H, S, B, H, S}
	signals := mockSignals(bars, actions...)

	configs := map[string]*ExecutionConfig{
		"fixed close":        fixedExec("4", "2", "0", TimingClose),
		"fixed next open":    fixedExec("9", "1", "0.005", TimingNextOpen),
		"oversized fixed":    fixedExec("50", "1", "0", TimingClose),
		"pct close":          NewExecutionConfig(PctEquity(d("0.9")), d("3"), d("0.01"), TimingClose),
		"pct next open full": NewExecutionConfig(PctEquity(d("1")), d("0"), d("0.001"), TimingNextOpen),
	}
	for name, exec := range configs {
		t.Run(name, func(t *testing.T) {
			res := mustRun(t, mustEngine(t, exec, "1000"), bars, signals)

			require.Len(t, res.Ledger, len(bars))
			for i, entry := range res.Ledger {
				assert.Equal(t, bars[i].Timestamp, entry.Timestamp)
				assert.False(t, entry.Cash.IsNegative(), "bar %d cash %s", i, entry.Cash)
				assert.True(t, entry.Equity.Equal(entry.Cash.Add(entry.Shares.Mul(bars[i].Close))))
			}
			for _, tr := range res.Trades {
				assert.True(t, tr.ExitTime.After(tr.EntryTime))
				assert.Positive(t, tr.HoldingBars)
				assert.True(t, tr.NetPnL.Equal(tr.GrossPnL.Sub(tr.Costs())))
			}
		})
	}
}

func TestBacktest_executionPrice(t *testing.T) {
	bars := mockBarsOC([]string{"10", "11", "12"}, []string{"20", "21", "22"})
	tests := []struct {
		name   string
		index  int
		timing Timing
		want   string
	}{
		{"close timing uses own close", 0, TimingClose, "20"},
		{"next open uses following open", 0, TimingNextOpen, "11"},
		{"next open in the middle", 1, TimingNextOpen, "12"},
		{"next open on last bar falls back to close", 2, TimingNextOpen, "22"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := executionPrice(bars, tt.index, tt.timing)
			if !got.Equal(d(tt.want)) {
				t.Fatalf("executionPrice() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestBacktest_getQuantityForPrice(t *testing.T) {
	tests := []struct {
		name    string
		price   string
		capital string
		lot     string
		want    string
	}{
		{"whole shares", "50", "500", "1", "10"},
		{"floors fractional", "30", "100", "1", "3"},
		{"fractional lot", "30", "100", "0.5", "3.0"},
		{"capital below price", "120", "100", "1", "0"},
		{"zero price", "0", "100", "1", "0"},
		{"zero lot", "10", "100", "0", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := getQuantityForPrice(d(tt.price), d(tt.capital), d(tt.lot))
			if !got.Equal(d(tt.want)) {
				t.Fatalf("getQuantityForPrice() = %s, want %s", got, tt.want)
			}
		})
	}
}
