package config

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"dailybacktest/internal/engine"
	"dailybacktest/strategies"
	"dailybacktest/types"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const envPrefix = "BACKTEST"

const (
	SourceCSV      = "csv"
	SourceDatabase = "database"
)

// Config is the flat run configuration. Money and share amounts are kept as
// strings so they reach the engine as exact decimals.
type Config struct {
	LogLevel    string `mapstructure:"LOG_LEVEL" yaml:"log_level"`
	DatabaseURL string `mapstructure:"DATABASE_URL" yaml:"database_url"`

	DataSource string `mapstructure:"DATA_SOURCE" yaml:"data_source"`
	DataPath   string `mapstructure:"DATA_PATH" yaml:"data_path"`
	Symbol     string `mapstructure:"SYMBOL" yaml:"symbol"`
	Start      string `mapstructure:"START" yaml:"start"`
	End        string `mapstructure:"END" yaml:"end"`

	Strategy       string  `mapstructure:"STRATEGY" yaml:"strategy"`
	SMAShort       float64 `mapstructure:"SMA_SHORT" yaml:"sma_short"`
	SMALong        float64 `mapstructure:"SMA_LONG" yaml:"sma_long"`
	RSIPeriod      float64 `mapstructure:"RSI_PERIOD" yaml:"rsi_period"`
	RSIOversold    float64 `mapstructure:"RSI_OVERSOLD" yaml:"rsi_oversold"`
	RSIOverbought  float64 `mapstructure:"RSI_OVERBOUGHT" yaml:"rsi_overbought"`
	BBWindow       float64 `mapstructure:"BB_WINDOW" yaml:"bb_window"`
	BBK            float64 `mapstructure:"BB_K" yaml:"bb_k"`
	DonchianWindow float64 `mapstructure:"DONCHIAN_WINDOW" yaml:"donchian_window"`

	InitialCash string `mapstructure:"INITIAL_CASH" yaml:"initial_cash"`
	Sizing      string `mapstructure:"SIZING" yaml:"sizing"`
	Size        string `mapstructure:"SIZE" yaml:"size"`
	Commission  string `mapstructure:"COMMISSION" yaml:"commission"`
	Slippage    string `mapstructure:"SLIPPAGE" yaml:"slippage"`
	Timing      string `mapstructure:"TIMING" yaml:"timing"`
	LotSize     string `mapstructure:"LOT_SIZE" yaml:"lot_size"`

	Interval     string  `mapstructure:"INTERVAL" yaml:"interval"`
	BarsPerYear  int     `mapstructure:"BARS_PER_YEAR" yaml:"bars_per_year"`
	RiskFreeRate float64 `mapstructure:"RISK_FREE_RATE" yaml:"risk_free_rate"`
	Workers      int     `mapstructure:"WORKERS" yaml:"workers"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DATA_SOURCE", SourceCSV)
	v.SetDefault("DATA_PATH", "data/sample_data.csv")
	v.SetDefault("SYMBOL", "AAPL")
	v.SetDefault("START", "")
	v.SetDefault("END", "")

	v.SetDefault("STRATEGY", strategies.NameSMACross)
	v.SetDefault("SMA_SHORT", 20)
	v.SetDefault("SMA_LONG", 50)
	v.SetDefault("RSI_PERIOD", 14)
	v.SetDefault("RSI_OVERSOLD", 30)
	v.SetDefault("RSI_OVERBOUGHT", 70)
	v.SetDefault("BB_WINDOW", 20)
	v.SetDefault("BB_K", 2.0)
	v.SetDefault("DONCHIAN_WINDOW", 20)

	v.SetDefault("INITIAL_CASH", "10000")
	v.SetDefault("SIZING", string(engine.SizingFixedShares))
	v.SetDefault("SIZE", "100")
	v.SetDefault("COMMISSION", "0")
	v.SetDefault("SLIPPAGE", "0")
	v.SetDefault("TIMING", string(engine.TimingClose))
	v.SetDefault("LOT_SIZE", "1")

	v.SetDefault("INTERVAL", string(types.Day))
	// Zero derives the annualization factor from the interval.
	v.SetDefault("BARS_PER_YEAR", 0)
	v.SetDefault("RISK_FREE_RATE", 0.0)
	v.SetDefault("WORKERS", 0)
}

// Load reads the config file at path (yaml, json, toml or env by extension),
// then applies BACKTEST_* environment overrides. An empty path looks for an
// optional backtest.env in the working directory.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("backtest")
		v.SetConfigType("env")
	}
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	setDefaults(v)

	err := v.ReadInConfig()
	// If config file not found, we can still use env vars
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) && path == "" {
		err = nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read config: %v", engine.ErrConfig, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: decode config: %v", engine.ErrConfig, err)
	}
	cfg.DataSource = strings.ToLower(cfg.DataSource)
	cfg.Strategy = strings.ToLower(cfg.Strategy)
	if cfg.DataSource != SourceCSV && cfg.DataSource != SourceDatabase {
		return nil, fmt.Errorf("%w: unknown data source %q", engine.ErrConfig, cfg.DataSource)
	}
	return &cfg, nil
}

// Dump writes the effective configuration as YAML.
func (c *Config) Dump(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return err
	}
	return enc.Close()
}

func (c *Config) ExecutionConfig() (*engine.ExecutionConfig, error) {
	size, err := parseDecimal("size", c.Size)
	if err != nil {
		return nil, err
	}
	commission, err := parseDecimal("commission", c.Commission)
	if err != nil {
		return nil, err
	}
	slippage, err := parseDecimal("slippage", c.Slippage)
	if err != nil {
		return nil, err
	}
	lot, err := parseDecimal("lot_size", c.LotSize)
	if err != nil {
		return nil, err
	}

	var sizing engine.Sizing
	switch engine.SizingMode(strings.ToLower(c.Sizing)) {
	case engine.SizingFixedShares:
		sizing = engine.FixedShares(size)
	case engine.SizingPctEquity:
		sizing = engine.PctEquity(size)
	default:
		return nil, fmt.Errorf("%w: unknown sizing %q", engine.ErrConfig, c.Sizing)
	}
	timing := engine.Timing(strings.ToLower(c.Timing))
	return engine.NewExecutionConfig(sizing, commission, slippage, timing).WithLotSize(lot), nil
}

func (c *Config) PortfolioConfig() (*engine.PortfolioConfig, error) {
	cash, err := parseDecimal("initial_cash", c.InitialCash)
	if err != nil {
		return nil, err
	}
	return engine.NewPortfolioConfig(cash), nil
}

// BarInterval resolves the configured bar interval (D, W or M).
func (c *Config) BarInterval() (types.Interval, error) {
	interval, ok := types.ConvertInterval[strings.ToUpper(strings.TrimSpace(c.Interval))]
	if !ok {
		return "", fmt.Errorf("%w: unknown interval %q", engine.ErrConfig, c.Interval)
	}
	return interval, nil
}

func (c *Config) ReportingConfig() (*engine.ReportingConfig, error) {
	barsPerYear := c.BarsPerYear
	if barsPerYear == 0 {
		interval, err := c.BarInterval()
		if err != nil {
			return nil, err
		}
		barsPerYear = types.BarsPerYear[interval]
	}
	return engine.NewReportingConfig(barsPerYear, c.RiskFreeRate), nil
}

// StrategyParams returns the parameters of the configured strategy.
func (c *Config) StrategyParams() (strategies.Params, error) {
	switch c.Strategy {
	case strategies.NameSMACross:
		return strategies.Params{"short": c.SMAShort, "long": c.SMALong}, nil
	case strategies.NameRSI:
		return strategies.Params{"period": c.RSIPeriod, "oversold": c.RSIOversold, "overbought": c.RSIOverbought}, nil
	case strategies.NameBollinger:
		return strategies.Params{"window": c.BBWindow, "k": c.BBK}, nil
	case strategies.NameDonchian:
		return strategies.Params{"window": c.DonchianWindow}, nil
	}
	return nil, fmt.Errorf("%w: %q", strategies.ErrUnknownStrategy, c.Strategy)
}

// Generator builds the configured signal generator.
func (c *Config) Generator() (strategies.Generator, error) {
	params, err := c.StrategyParams()
	if err != nil {
		return nil, err
	}
	return strategies.New(c.Strategy, params)
}

// Range parses the optional start and end dates (YYYY-MM-DD).
func (c *Config) Range() (time.Time, time.Time, error) {
	start, err := parseDate("start", c.Start)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := parseDate("end", c.End)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end %s before start %s", engine.ErrConfig, c.End, c.Start)
	}
	return start, end, nil
}

func parseDecimal(name, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s %q is not a number", engine.ErrConfig, name, s)
	}
	return d, nil
}

func parseDate(name, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s %q is not a YYYY-MM-DD date", engine.ErrConfig, name, s)
	}
	return t, nil
}
