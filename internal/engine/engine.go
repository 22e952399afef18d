package engine

import (
	"dailybacktest/types"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Result is the output of one backtest run.
type Result struct {
	Ticker      string
	InitialCash decimal.Decimal
	Ledger      []types.LedgerEntry
	Trades      []types.Trade
	// OpenPosition is the unrealized position left after the last bar, nil when flat.
	OpenPosition *Position
}

func (r *Result) FinalEquity() decimal.Decimal {
	if len(r.Ledger) == 0 {
		return r.InitialCash
	}
	return r.Ledger[len(r.Ledger)-1].Equity
}

// Engine runs a single backtest. It is not safe for concurrent use; parallel
// runs need their own Engine.
type Engine struct {
	execution       *ExecutionConfig
	portfolioConfig *PortfolioConfig
	logger          *zap.Logger
	used            bool
}

func NewEngine(execution *ExecutionConfig, portfolioConfig *PortfolioConfig, logger *zap.Logger) (*Engine, error) {
	if err := execution.validate(); err != nil {
		return nil, err
	}
	if err := portfolioConfig.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		execution:       execution,
		portfolioConfig: portfolioConfig,
		logger:          logger,
	}, nil
}

// Run simulates the signals against the bars. Validation errors are returned
// before any state is touched.
func (e *Engine) Run(bars []types.Bar, signals []types.Signal) (*Result, error) {
	if e.used {
		return nil, ErrEngineUsed
	}
	if err := validateInputs(bars, signals); err != nil {
		return nil, err
	}
	e.used = true

	p := newPortfolio(e.portfolioConfig.initialCash, e.execution.commission)
	bt := newBacktester(bars, signals, e.execution, p, e.logger)
	bt.run()

	result := &Result{
		InitialCash:  e.portfolioConfig.initialCash,
		Ledger:       bt.ledger,
		Trades:       p.trades,
		OpenPosition: p.snapshot(),
	}
	if len(bars) > 0 {
		result.Ticker = bars[0].Ticker
	}
	e.logger.Info("backtest finished",
		zap.String("ticker", result.Ticker),
		zap.Int("bars", len(bars)),
		zap.Int("trades", len(result.Trades)),
		zap.Bool("open_position", result.OpenPosition != nil),
		zap.String("final_equity", result.FinalEquity().StringFixed(2)),
	)
	return result, nil
}

// Reset allows the engine to run again with fresh state.
func (e *Engine) Reset() {
	e.used = false
}
