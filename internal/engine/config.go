package engine

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type SizingMode string

const (
	SizingFixedShares SizingMode = "fixed_shares"
	SizingPctEquity   SizingMode = "pct_equity"
)

type Timing string

const (
	TimingClose    Timing = "close"
	TimingNextOpen Timing = "next_open"
)

// Sizing decides how many shares a buy takes. Value is a share count for
// fixed_shares and a fraction of cash for pct_equity.
type Sizing struct {
	Mode  SizingMode
	Value decimal.Decimal
}

func FixedShares(n decimal.Decimal) Sizing {
	return Sizing{Mode: SizingFixedShares, Value: n}
}

func PctEquity(fraction decimal.Decimal) Sizing {
	return Sizing{Mode: SizingPctEquity, Value: fraction}
}

func (s Sizing) String() string {
	return fmt.Sprintf("%s(%s)", s.Mode, s.Value)
}

type ExecutionConfig struct {
	sizing     Sizing
	commission decimal.Decimal
	slippage   decimal.Decimal
	timing     Timing
	lotSize    decimal.Decimal
}

func NewExecutionConfig(sizing Sizing, commission, slippage decimal.Decimal, timing Timing) *ExecutionConfig {
	return &ExecutionConfig{
		sizing:     sizing,
		commission: commission,
		slippage:   slippage,
		timing:     timing,
		lotSize:    decimal.NewFromInt(1),
	}
}

// WithLotSize sets the minimum tradable unit used when pct_equity sizing rounds down.
func (c *ExecutionConfig) WithLotSize(lot decimal.Decimal) *ExecutionConfig {
	c.lotSize = lot
	return c
}

func (c *ExecutionConfig) Sizing() Sizing               { return c.sizing }
func (c *ExecutionConfig) Commission() decimal.Decimal { return c.commission }
func (c *ExecutionConfig) Slippage() decimal.Decimal   { return c.slippage }
func (c *ExecutionConfig) Timing() Timing              { return c.timing }
func (c *ExecutionConfig) LotSize() decimal.Decimal    { return c.lotSize }

func (c *ExecutionConfig) validate() error {
	if c == nil {
		return fmt.Errorf("%w: missing execution config", ErrConfig)
	}
	switch c.sizing.Mode {
	case SizingFixedShares:
		if !c.sizing.Value.IsPositive() {
			return fmt.Errorf("%w: fixed_shares must be positive, got %s", ErrConfig, c.sizing.Value)
		}
	case SizingPctEquity:
		if !c.sizing.Value.IsPositive() || c.sizing.Value.GreaterThan(decimal.NewFromInt(1)) {
			return fmt.Errorf("%w: pct_equity fraction must be in (0, 1], got %s", ErrConfig, c.sizing.Value)
		}
	default:
		return fmt.Errorf("%w: unknown sizing mode %q", ErrConfig, c.sizing.Mode)
	}
	if c.commission.IsNegative() {
		return fmt.Errorf("%w: commission must be >= 0, got %s", ErrConfig, c.commission)
	}
	if c.slippage.IsNegative() || c.slippage.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: slippage must be in [0, 1), got %s", ErrConfig, c.slippage)
	}
	if c.timing != TimingClose && c.timing != TimingNextOpen {
		return fmt.Errorf("%w: unknown execution timing %q", ErrConfig, c.timing)
	}
	if !c.lotSize.IsPositive() {
		return fmt.Errorf("%w: lot size must be positive, got %s", ErrConfig, c.lotSize)
	}
	return nil
}

type PortfolioConfig struct {
	initialCash decimal.Decimal
}

func NewPortfolioConfig(initialCash decimal.Decimal) *PortfolioConfig {
	return &PortfolioConfig{
		initialCash: initialCash,
	}
}

func (c *PortfolioConfig) InitialCash() decimal.Decimal { return c.initialCash }

func (c *PortfolioConfig) validate() error {
	if c == nil {
		return fmt.Errorf("%w: missing portfolio config", ErrConfig)
	}
	if !c.initialCash.IsPositive() {
		return fmt.Errorf("%w: initial cash must be positive, got %s", ErrConfig, c.initialCash)
	}
	return nil
}

type ReportingConfig struct {
	barsPerYear  int
	riskFreeRate float64
}

func NewReportingConfig(barsPerYear int, riskFreeRate float64) *ReportingConfig {
	return &ReportingConfig{
		barsPerYear:  barsPerYear,
		riskFreeRate: riskFreeRate,
	}
}

func (c *ReportingConfig) BarsPerYear() int     { return c.barsPerYear }
func (c *ReportingConfig) RiskFreeRate() float64 { return c.riskFreeRate }

func (c *ReportingConfig) validate() error {
	if c == nil {
		return fmt.Errorf("%w: missing reporting config", ErrConfig)
	}
	if c.barsPerYear <= 0 {
		return fmt.Errorf("%w: bars per year must be positive, got %d", ErrConfig, c.barsPerYear)
	}
	return nil
}
