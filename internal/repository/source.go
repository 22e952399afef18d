package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dailybacktest/types"
)

// BarSource loads the daily bars of one symbol. Zero start or end leaves
// that side of the range open; both bounds are inclusive.
type BarSource interface {
	Name() string
	Bars(ctx context.Context, symbol string, start, end time.Time) ([]types.Bar, error)
}

type barStore interface {
	GetAssetByTicker(ctx context.Context, ticker string) (*types.Asset, error)
	GetBars(ctx context.Context, asset *types.Asset, interval types.Interval, start, end time.Time) ([]types.Bar, error)
}

// DatabaseSource reads bar aggregates from the candle database.
type DatabaseSource struct {
	store    barStore
	interval types.Interval
	now      func() time.Time
}

func NewDatabaseSource(db *Database, interval types.Interval) *DatabaseSource {
	return &DatabaseSource{store: db, interval: interval, now: time.Now}
}

func (s *DatabaseSource) Name() string { return "database:" + string(s.interval) }

func (s *DatabaseSource) Bars(ctx context.Context, symbol string, start, end time.Time) ([]types.Bar, error) {
	asset, err := s.store.GetAssetByTicker(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if start.IsZero() {
		start = time.Unix(0, 0).UTC()
	}
	if end.IsZero() {
		end = s.now()
	}
	// The query bound is exclusive.
	return s.store.GetBars(ctx, asset, s.interval, start, end.AddDate(0, 0, 1))
}

// CSVSource reads bars from a single CSV file, or from <dir>/<SYMBOL>.csv
// when pointed at a directory.
type CSVSource struct {
	path string
}

func NewCSVSource(path string) *CSVSource {
	return &CSVSource{path: path}
}

func (s *CSVSource) Name() string { return "csv:" + s.path }

func (s *CSVSource) Bars(ctx context.Context, symbol string, start, end time.Time) ([]types.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := s.path
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, strings.ToUpper(symbol)+".csv")
	}
	bars, err := ReadBarsCSVFile(path, symbol)
	if err != nil {
		return nil, err
	}
	out := filterRange(bars, start, end)
	if len(out) == 0 {
		return nil, fmt.Errorf("%s between %s and %s %w", symbol, formatBound(start), formatBound(end), ErrNoBars)
	}
	return out, nil
}

func filterRange(bars []types.Bar, start, end time.Time) []types.Bar {
	out := make([]types.Bar, 0, len(bars))
	for _, b := range bars {
		if !start.IsZero() && b.Timestamp.Before(start) {
			continue
		}
		if !end.IsZero() && b.Timestamp.After(end) {
			continue
		}
		out = append(out, b)
	}
	return out
}

func formatBound(t time.Time) string {
	if t.IsZero() {
		return "open"
	}
	return t.Format(time.DateOnly)
}
