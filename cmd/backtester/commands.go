package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"dailybacktest/internal/config"
	"dailybacktest/internal/engine"
	"dailybacktest/internal/infrastructure"
	"dailybacktest/internal/repository"
	"dailybacktest/strategies"
	"dailybacktest/types"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

var dataFlags = []cli.Flag{
	&cli.StringFlag{Name: "source", Usage: "bar source: csv or database"},
	&cli.StringFlag{Name: "data", Usage: "csv file, or directory holding <SYMBOL>.csv files"},
	&cli.StringFlag{Name: "db", Usage: "postgres connection url for the database source"},
	&cli.StringFlag{Name: "symbol", Aliases: []string{"s"}, Usage: "instrument ticker"},
	&cli.StringFlag{Name: "start", Usage: "first date to load (YYYY-MM-DD)"},
	&cli.StringFlag{Name: "end", Usage: "last date to load (YYYY-MM-DD)"},
	&cli.StringFlag{Name: "interval", Usage: "bar interval for the database source: D, W or M"},
}

var executionFlags = []cli.Flag{
	&cli.StringFlag{Name: "cash", Usage: "initial cash"},
	&cli.StringFlag{Name: "sizing", Usage: "fixed_shares or pct_equity"},
	&cli.StringFlag{Name: "size", Usage: "share count for fixed_shares, fraction of cash for pct_equity"},
	&cli.StringFlag{Name: "commission", Usage: "flat commission per fill"},
	&cli.StringFlag{Name: "slippage", Usage: "adverse price fraction per fill"},
	&cli.StringFlag{Name: "timing", Usage: "close or next_open"},
	&cli.StringFlag{Name: "lot-size", Usage: "minimum tradable unit for pct_equity sizing"},
	&cli.Float64Flag{Name: "risk-free", Usage: "annual risk-free rate for sharpe/sortino"},
}

var runCommand = &cli.Command{
	Name:  "run",
	Usage: "backtest one strategy and print its report",
	Flags: append(append([]cli.Flag{
		&cli.StringFlag{Name: "strategy", Usage: "sma_cross, rsi, bollinger or donchian"},
		&cli.StringSliceFlag{Name: "param", Usage: "strategy parameter as key=value, repeatable"},
		&cli.StringFlag{Name: "ledger-out", Usage: "write the per-bar ledger to this csv file"},
		&cli.StringFlag{Name: "trades-out", Usage: "write closed trades to this csv file"},
	}, dataFlags...), executionFlags...),
	Action: runBacktest,
}

var sweepCommand = &cli.Command{
	Name:  "sweep",
	Usage: "run an SMA crossover grid in parallel and rank the results",
	Flags: append(append([]cli.Flag{
		&cli.IntSliceFlag{Name: "short", Value: cli.NewIntSlice(5, 10, 20), Usage: "short windows"},
		&cli.IntSliceFlag{Name: "long", Value: cli.NewIntSlice(50, 100, 200), Usage: "long windows"},
		&cli.IntFlag{Name: "workers", Usage: "parallel runs, 0 uses all cores"},
	}, dataFlags...), executionFlags...),
	Action: runSweep,
}

var strategiesCommand = &cli.Command{
	Name:  "strategies",
	Usage: "list the available strategies and their default parameters",
	Action: func(c *cli.Context) error {
		w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "STRATEGY\tDEFAULTS")
		for _, name := range strategies.Names() {
			params, err := strategies.Defaults(name)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s\t%s\n", name, formatParams(params))
		}
		return w.Flush()
	},
}

var configCommand = &cli.Command{
	Name:  "config",
	Usage: "print the effective configuration as yaml",
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		return cfg.Dump(c.App.Writer)
	},
}

func runBacktest(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger, err := newRunLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	bars, err := loadBars(c.Context, cfg, logger)
	if err != nil {
		return err
	}

	params, err := cfg.StrategyParams()
	if err != nil {
		return err
	}
	if err := applyParams(params, c.StringSlice("param")); err != nil {
		return err
	}
	gen, err := strategies.New(cfg.Strategy, params)
	if err != nil {
		return err
	}
	signals, err := gen.Generate(bars)
	if err != nil {
		return fmt.Errorf("generate signals: %w", err)
	}

	exec, err := cfg.ExecutionConfig()
	if err != nil {
		return err
	}
	portfolio, err := cfg.PortfolioConfig()
	if err != nil {
		return err
	}
	eng, err := engine.NewEngine(exec, portfolio, logger)
	if err != nil {
		return err
	}
	result, err := eng.Run(bars, signals)
	if err != nil {
		return err
	}
	reporting, err := cfg.ReportingConfig()
	if err != nil {
		return err
	}
	report, err := engine.Analyze(result, reporting)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "Strategy: %s\n", gen.Name())
	engine.PrintReport(c.App.Writer, report)

	if path := c.String("ledger-out"); path != "" {
		if err := engine.WriteLedgerCSVFile(path, result.Ledger); err != nil {
			return err
		}
		logger.Info("ledger written", zap.String("path", path))
	}
	if path := c.String("trades-out"); path != "" {
		if err := engine.WriteTradesCSVFile(path, result.Trades); err != nil {
			return err
		}
		logger.Info("trades written", zap.String("path", path))
	}
	return nil
}

func runSweep(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.IsSet("workers") {
		cfg.Workers = c.Int("workers")
	}
	logger, err := newRunLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	bars, err := loadBars(c.Context, cfg, logger)
	if err != nil {
		return err
	}
	exec, err := cfg.ExecutionConfig()
	if err != nil {
		return err
	}
	portfolio, err := cfg.PortfolioConfig()
	if err != nil {
		return err
	}

	var jobs []engine.SweepJob
	for _, short := range c.IntSlice("short") {
		for _, long := range c.IntSlice("long") {
			if short >= long {
				continue
			}
			gen, err := strategies.NewSMACross(short, long)
			if err != nil {
				return err
			}
			signals, err := gen.Generate(bars)
			if err != nil {
				return fmt.Errorf("generate signals for %s: %w", gen.Name(), err)
			}
			jobs = append(jobs, engine.SweepJob{
				Label:     gen.Name(),
				Signals:   signals,
				Execution: exec,
				Portfolio: portfolio,
			})
		}
	}
	if len(jobs) == 0 {
		return fmt.Errorf("%w: no short/long pair with short < long", strategies.ErrInvalidParams)
	}

	reporting, err := cfg.ReportingConfig()
	if err != nil {
		return err
	}
	sweepCfg := engine.NewSweepConfig(cfg.Workers, reporting, c.App.ErrWriter)
	results, err := engine.Sweep(c.Context, bars, jobs, sweepCfg, logger)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.ErrWriter)
	return printSweep(c, results)
}

func printSweep(c *cli.Context, results []engine.SweepResult) error {
	w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "STRATEGY\tTRADES\tFINAL EQUITY\tRETURN\tMAX DD\tSHARPE\tWIN RATE\t")
	for _, r := range engine.RankBySharpe(results) {
		rep := r.Report
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\t%s\t\n",
			r.Label,
			rep.TotalTrades,
			rep.FinalEquity.StringFixed(2),
			engine.FormatPercent(rep.TotalReturn),
			engine.FormatPercent(rep.MaxDrawdown),
			engine.FormatFloat(rep.SharpeRatio),
			engine.FormatPercent(rep.WinRate),
		)
	}
	return w.Flush()
}

// loadConfig reads the config file and environment, then applies flags that
// were set explicitly on the command line.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	overrides := map[string]*string{
		"source":     &cfg.DataSource,
		"data":       &cfg.DataPath,
		"db":         &cfg.DatabaseURL,
		"symbol":     &cfg.Symbol,
		"start":      &cfg.Start,
		"end":        &cfg.End,
		"interval":   &cfg.Interval,
		"strategy":   &cfg.Strategy,
		"cash":       &cfg.InitialCash,
		"sizing":     &cfg.Sizing,
		"size":       &cfg.Size,
		"commission": &cfg.Commission,
		"slippage":   &cfg.Slippage,
		"timing":     &cfg.Timing,
		"lot-size":   &cfg.LotSize,
	}
	for flag, dst := range overrides {
		if c.IsSet(flag) {
			*dst = c.String(flag)
		}
	}
	if c.IsSet("risk-free") {
		cfg.RiskFreeRate = c.Float64("risk-free")
	}
	cfg.DataSource = strings.ToLower(cfg.DataSource)
	cfg.Strategy = strings.ToLower(cfg.Strategy)
	return cfg, nil
}

func newRunLogger(cfg *config.Config) (*zap.Logger, error) {
	logger, err := infrastructure.NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("run_id", uuid.New().String())), nil
}

func loadBars(ctx context.Context, cfg *config.Config, logger *zap.Logger) ([]types.Bar, error) {
	start, end, err := cfg.Range()
	if err != nil {
		return nil, err
	}

	var src repository.BarSource
	switch cfg.DataSource {
	case config.SourceDatabase:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("%w: database source needs a database url", engine.ErrConfig)
		}
		db, err := repository.NewDatabase(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		defer db.Close()
		interval, err := cfg.BarInterval()
		if err != nil {
			return nil, err
		}
		src = repository.NewDatabaseSource(db, interval)
	case config.SourceCSV:
		src = repository.NewCSVSource(cfg.DataPath)
	default:
		return nil, fmt.Errorf("%w: unknown data source %q", engine.ErrConfig, cfg.DataSource)
	}

	cache := repository.NewBarCache(logger)
	bars, err := cache.Bars(ctx, src, strings.ToUpper(cfg.Symbol), start, end)
	if err != nil {
		return nil, err
	}
	logger.Info("bars loaded",
		zap.String("source", src.Name()),
		zap.String("symbol", cfg.Symbol),
		zap.Int("bars", len(bars)),
		zap.Time("first", bars[0].Timestamp),
		zap.Time("last", bars[len(bars)-1].Timestamp),
	)
	return bars, nil
}

// applyParams overlays key=value pairs from --param onto params.
func applyParams(params strategies.Params, raw []string) error {
	for _, kv := range raw {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			return fmt.Errorf("%w: parameter %q is not key=value", strategies.ErrInvalidParams, kv)
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return fmt.Errorf("%w: parameter %q: %v", strategies.ErrInvalidParams, kv, err)
		}
		params[strings.TrimSpace(key)] = f
	}
	return nil
}

func formatParams(p strategies.Params) string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%g", k, p[k])
	}
	return strings.Join(parts, " ")
}
