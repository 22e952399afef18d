package engine

import (
	"context"
	"fmt"
	"io"
	"math"
	"runtime"
	"sort"

	"dailybacktest/types"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SweepJob is one parameter set of a sweep. Signals must be aligned with the
// bars passed to Sweep.
type SweepJob struct {
	Label     string
	Signals   []types.Signal
	Execution *ExecutionConfig
	Portfolio *PortfolioConfig
}

type SweepResult struct {
	Label  string
	Result *Result
	Report *Report
}

type SweepConfig struct {
	workers   int
	reporting *ReportingConfig
	progress  io.Writer
}

// NewSweepConfig returns a sweep config. workers <= 0 uses GOMAXPROCS and a nil
// progress writer disables the progress bar.
func NewSweepConfig(workers int, reporting *ReportingConfig, progress io.Writer) *SweepConfig {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if progress == nil {
		progress = io.Discard
	}
	return &SweepConfig{
		workers:   workers,
		reporting: reporting,
		progress:  progress,
	}
}

// Sweep runs every job on its own Engine in parallel. Runs share only the
// read-only bars; results come back in job order. The first failing job
// cancels the jobs that have not started yet.
func Sweep(ctx context.Context, bars []types.Bar, jobs []SweepJob, cfg *SweepConfig, logger *zap.Logger) ([]SweepResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.reporting.validate(); err != nil {
		return nil, err
	}

	results := make([]SweepResult, len(jobs))
	bar := initProgressBar(len(jobs), cfg.progress)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.workers)

	for i, job := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			eng, err := NewEngine(job.Execution, job.Portfolio, logger.With(zap.String("job", job.Label)))
			if err != nil {
				return fmt.Errorf("sweep job %q: %w", job.Label, err)
			}
			res, err := eng.Run(bars, job.Signals)
			if err != nil {
				return fmt.Errorf("sweep job %q: %w", job.Label, err)
			}
			report, err := Analyze(res, cfg.reporting)
			if err != nil {
				return fmt.Errorf("sweep job %q: %w", job.Label, err)
			}
			results[i] = SweepResult{Label: job.Label, Result: res, Report: report}
			_ = bar.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	_ = bar.Finish()
	logger.Info("sweep finished", zap.Int("jobs", len(jobs)), zap.Int("workers", cfg.workers))
	return results, nil
}

// RankBySharpe returns the results ordered by descending Sharpe ratio.
// Runs with an undefined ratio go last, in input order.
func RankBySharpe(results []SweepResult) []SweepResult {
	out := make([]SweepResult, len(results))
	copy(out, results)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Report.SharpeRatio, out[j].Report.SharpeRatio
		if math.IsNaN(b) {
			return !math.IsNaN(a)
		}
		if math.IsNaN(a) {
			return false
		}
		return a > b
	})
	return out
}

func initProgressBar(maxTicks int, w io.Writer) *progressbar.ProgressBar {
	return progressbar.NewOptions(maxTicks,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetDescription("Sweeping parameters..."),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}
