package engine

import (
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"dailybacktest/types"

	"github.com/shopspring/decimal"
)

// Report holds the performance statistics of one run. Undefined statistics are NaN.
type Report struct {
	// Meta / period info
	Ticker      string
	StartDate   time.Time
	EndDate     time.Time
	Bars        int
	TotalTrades int

	// Absolute performance
	InitialCash  decimal.Decimal
	FinalEquity  decimal.Decimal
	NetProfit    decimal.Decimal
	TotalReturn  float64
	CAGR         float64
	OpenPosition bool

	// Trade-level distribution metrics
	WinRate        float64
	AvgWin         float64
	AvgLoss        float64
	ProfitFactor   float64
	AvgHoldingBars float64

	// Drawdown & loss streak metrics
	MaxDrawdown          float64
	MaxConsecutiveLosses int

	// Risk-adjusted metrics
	SharpeRatio  float64
	SortinoRatio float64

	// Costs
	TotalCommission decimal.Decimal
	TotalSlippage   decimal.Decimal
}

type tradeStats struct {
	winRate        float64
	avgWin         float64
	avgLoss        float64
	profitFactor   float64
	avgHoldingBars float64
}

// Analyze computes the report for a run. Every statistic is a pure function of
// the ledger and trades, so they are computed concurrently.
func Analyze(result *Result, cfg *ReportingConfig) (*Report, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	ledger := result.Ledger
	trades := result.Trades

	report := &Report{
		Ticker:       result.Ticker,
		Bars:         len(ledger),
		TotalTrades:  len(trades),
		InitialCash:  result.InitialCash,
		FinalEquity:  result.FinalEquity(),
		OpenPosition: result.OpenPosition != nil,
	}
	report.NetProfit = report.FinalEquity.Sub(result.InitialCash)
	if len(ledger) > 0 {
		report.StartDate = ledger[0].Timestamp
		report.EndDate = ledger[len(ledger)-1].Timestamp
	}

	equity := equityCurve(ledger)
	initial := result.InitialCash.InexactFloat64()

	var wg sync.WaitGroup
	var stats tradeStats
	wg.Add(7)
	go func() {
		report.TotalReturn = calcTotalReturn(equity, initial, &wg)
	}()
	go func() {
		report.CAGR = calcCAGR(equity, initial, cfg.barsPerYear, &wg)
	}()
	go func() {
		report.MaxDrawdown = calcMaxDrawdown(equity, &wg)
	}()
	go func() {
		report.SharpeRatio = calcSharpeRatio(dailyReturns(equity), cfg.riskFreeRate, cfg.barsPerYear, &wg)
	}()
	go func() {
		report.SortinoRatio = calcSortinoRatio(dailyReturns(equity), cfg.riskFreeRate, cfg.barsPerYear, &wg)
	}()
	go func() {
		stats = calcTradeStats(trades, &wg)
	}()
	go func() {
		report.MaxConsecutiveLosses = calcMaxConsecutiveLosses(trades, &wg)
	}()
	wg.Wait()

	report.WinRate = stats.winRate
	report.AvgWin = stats.avgWin
	report.AvgLoss = stats.avgLoss
	report.ProfitFactor = stats.profitFactor
	report.AvgHoldingBars = stats.avgHoldingBars

	report.TotalCommission = decimal.Zero
	report.TotalSlippage = decimal.Zero
	for _, tr := range trades {
		report.TotalCommission = report.TotalCommission.Add(tr.Commission)
		report.TotalSlippage = report.TotalSlippage.Add(tr.SlippageCost)
	}
	return report, nil
}

func PrintReport(w io.Writer, report *Report) {
	fmt.Fprintln(w, "===== Trading Report =====")
	fmt.Fprintf(w, "Ticker:                %s\n", report.Ticker)
	fmt.Fprintf(w, "Start Date:            %s\n", formatDate(report.StartDate))
	fmt.Fprintf(w, "End Date:              %s\n", formatDate(report.EndDate))
	fmt.Fprintf(w, "Bars:                  %d\n", report.Bars)
	fmt.Fprintf(w, "Total Trades:          %d\n", report.TotalTrades)

	fmt.Fprintln(w, "\n-- Absolute Performance --")
	fmt.Fprintf(w, "Initial Cash:          %s\n", report.InitialCash.StringFixed(2))
	fmt.Fprintf(w, "Final Equity:          %s\n", report.FinalEquity.StringFixed(2))
	fmt.Fprintf(w, "Net Profit:            %s\n", report.NetProfit.StringFixed(2))
	fmt.Fprintf(w, "Total Return:          %s\n", FormatPercent(report.TotalReturn))
	fmt.Fprintf(w, "CAGR:                  %s\n", FormatPercent(report.CAGR))
	fmt.Fprintf(w, "Open Position:         %t\n", report.OpenPosition)

	fmt.Fprintln(w, "\n-- Trade-Level Metrics --")
	fmt.Fprintf(w, "Win Rate:              %s\n", FormatPercent(report.WinRate))
	fmt.Fprintf(w, "Avg Win:               %s\n", FormatFloat(report.AvgWin))
	fmt.Fprintf(w, "Avg Loss:              %s\n", FormatFloat(report.AvgLoss))
	fmt.Fprintf(w, "Profit Factor:         %s\n", FormatFloat(report.ProfitFactor))
	fmt.Fprintf(w, "Avg Holding Bars:      %s\n", FormatFloat(report.AvgHoldingBars))

	fmt.Fprintln(w, "\n-- Drawdown Metrics --")
	fmt.Fprintf(w, "Max Drawdown:          %s\n", FormatPercent(report.MaxDrawdown))
	fmt.Fprintf(w, "Max Consecutive Losses:%d\n", report.MaxConsecutiveLosses)

	fmt.Fprintln(w, "\n-- Risk-Adjusted Metrics --")
	fmt.Fprintf(w, "Sharpe Ratio:          %s\n", FormatFloat(report.SharpeRatio))
	fmt.Fprintf(w, "Sortino Ratio:         %s\n", FormatFloat(report.SortinoRatio))

	fmt.Fprintln(w, "\n-- Costs --")
	fmt.Fprintf(w, "Total Commission:      %s\n", report.TotalCommission.StringFixed(2))
	fmt.Fprintf(w, "Total Slippage:        %s\n", report.TotalSlippage.StringFixed(2))

	fmt.Fprintln(w, "==========================")
}

// ChartSeries prepares the equity, drawdown and return series for plotting.
func ChartSeries(result *Result) types.Chart {
	ledger := result.Ledger
	chart := types.Chart{
		Ticker:   result.Ticker,
		Times:    make([]time.Time, len(ledger)),
		Equity:   make([]float64, len(ledger)),
		Drawdown: make([]float64, len(ledger)),
		Returns:  make([]float64, len(ledger)),
	}
	peak := math.Inf(-1)
	for i, entry := range ledger {
		eq := entry.Equity.InexactFloat64()
		chart.Times[i] = entry.Timestamp
		chart.Equity[i] = eq
		if eq > peak {
			peak = eq
		}
		if peak > 0 {
			chart.Drawdown[i] = eq/peak - 1
		}
		if i > 0 {
			prev := chart.Equity[i-1]
			if prev > 0 {
				chart.Returns[i] = eq/prev - 1
			} else {
				chart.Returns[i] = math.NaN()
			}
		}
		switch entry.Action {
		case types.ActionBuy:
			chart.Buys = append(chart.Buys, entry.Timestamp)
		case types.ActionSell:
			chart.Sells = append(chart.Sells, entry.Timestamp)
		}
	}
	return chart
}

func calcTotalReturn(equity []float64, initial float64, wg *sync.WaitGroup) float64 {
	defer wg.Done()
	if len(equity) == 0 || initial <= 0 {
		return math.NaN()
	}
	return equity[len(equity)-1]/initial - 1
}

func calcCAGR(equity []float64, initial float64, barsPerYear int, wg *sync.WaitGroup) float64 {
	defer wg.Done()
	n := len(equity)
	if n == 0 || initial <= 0 {
		return math.NaN()
	}
	last := equity[n-1]
	if last <= 0 {
		return math.NaN()
	}
	return math.Pow(last/initial, float64(barsPerYear)/float64(n)) - 1
}

// calcMaxDrawdown returns the worst equity/running-peak ratio minus one, always <= 0.
func calcMaxDrawdown(equity []float64, wg *sync.WaitGroup) float64 {
	defer wg.Done()
	maxDD := 0.0
	peak := math.Inf(-1)
	for _, eq := range equity {
		if eq > peak {
			peak = eq
		}
		if peak <= 0 {
			continue
		}
		if dd := eq/peak - 1; dd < maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

func calcSharpeRatio(returns []float64, annualRiskFree float64, barsPerYear int, wg *sync.WaitGroup) float64 {
	defer wg.Done()
	if len(returns) < 2 {
		return math.NaN()
	}
	rf := annualRiskFree / float64(barsPerYear)
	std := stdDev(returns)
	if std == 0 || math.IsNaN(std) {
		return math.NaN()
	}
	return (mean(returns) - rf) / std * math.Sqrt(float64(barsPerYear))
}

func calcSortinoRatio(returns []float64, annualRiskFree float64, barsPerYear int, wg *sync.WaitGroup) float64 {
	defer wg.Done()
	if len(returns) == 0 {
		return math.NaN()
	}
	rf := annualRiskFree / float64(barsPerYear)
	excess := make([]float64, len(returns))
	var downside []float64
	for i, r := range returns {
		excess[i] = r - rf
		if excess[i] < 0 {
			downside = append(downside, excess[i])
		}
	}
	if len(downside) < 2 {
		return math.NaN()
	}
	std := stdDev(downside)
	if std == 0 {
		return math.NaN()
	}
	return mean(excess) / std * math.Sqrt(float64(barsPerYear))
}

func calcTradeStats(trades []types.Trade, wg *sync.WaitGroup) tradeStats {
	defer wg.Done()
	stats := tradeStats{
		winRate:        math.NaN(),
		avgWin:         math.NaN(),
		avgLoss:        math.NaN(),
		profitFactor:   math.NaN(),
		avgHoldingBars: math.NaN(),
	}
	if len(trades) == 0 {
		return stats
	}

	var sumWins, sumLosses float64
	winCount, lossCount, holding := 0, 0, 0
	for _, tr := range trades {
		net := tr.NetPnL.InexactFloat64()
		holding += tr.HoldingBars
		switch {
		case tr.IsWin():
			sumWins += net
			winCount++
		case tr.NetPnL.IsNegative():
			sumLosses += net
			lossCount++
		}
	}

	stats.winRate = float64(winCount) / float64(len(trades))
	stats.avgHoldingBars = float64(holding) / float64(len(trades))
	if winCount > 0 {
		stats.avgWin = sumWins / float64(winCount)
	}
	if lossCount > 0 {
		stats.avgLoss = sumLosses / float64(lossCount)
		stats.profitFactor = sumWins / math.Abs(sumLosses)
	}
	return stats
}

func calcMaxConsecutiveLosses(trades []types.Trade, wg *sync.WaitGroup) int {
	defer wg.Done()
	maxLossStreak := 0
	currentStreak := 0
	for _, tr := range trades {
		if tr.NetPnL.IsNegative() {
			currentStreak++
			if currentStreak > maxLossStreak {
				maxLossStreak = currentStreak
			}
		} else {
			currentStreak = 0
		}
	}
	return maxLossStreak
}

// Helper functions
func equityCurve(ledger []types.LedgerEntry) []float64 {
	out := make([]float64, len(ledger))
	for i, entry := range ledger {
		out[i] = entry.Equity.InexactFloat64()
	}
	return out
}

// dailyReturns skips bars whose prior equity is not positive instead of zero-filling them.
func dailyReturns(equity []float64) []float64 {
	if len(equity) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1]
		if prev <= 0 {
			continue
		}
		returns = append(returns, equity[i]/prev-1)
	}
	return returns
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stdDev is the sample standard deviation.
func stdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return math.NaN()
	}
	m := mean(xs)
	var varianceSum float64
	for _, x := range xs {
		diff := x - m
		varianceSum += diff * diff
	}
	return math.Sqrt(varianceSum / float64(len(xs)-1))
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "n/a"
	}
	return t.Format("2006-01-02")
}

// FormatFloat prints two decimals, or n/a for undefined values.
func FormatFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", f)
}

// FormatPercent prints a ratio as a percentage, or n/a for undefined values.
func FormatPercent(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f%%", f*100)
}
