package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dailybacktest/types"

	"github.com/jackc/pgx/v5"
)

var bucketToInterval = map[types.Interval]string{
	types.Day:  "1 day",
	types.Week: "1 week",
}

// GetBars aggregates the stored candles of an asset into bars of the given
// interval for [start, end).
func (db *Database) GetBars(ctx context.Context, asset *types.Asset, interval types.Interval, start, end time.Time) ([]types.Bar, error) {
	bucket, ok := bucketToInterval[interval]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrIntervalNotSupported, interval)
	}
	args := aggregatesParams{
		TimeBucket: bucket,
		AssetID:    int32(asset.Id),
		Starttime:  &start,
		Endtime:    &end,
	}
	rows, err := db.bars.GetAggregates(ctx, args)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s %w", asset.Ticker, ErrNoBars)
		}
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s %w", asset.Ticker, ErrNoBars)
	}
	return convertBars(rows, asset.Ticker), nil
}

func convertBars(rows []aggregateRow, ticker string) []types.Bar {
	bars := make([]types.Bar, 0, len(rows))
	for _, row := range rows {
		if row.Bucket == nil {
			continue
		}
		bars = append(bars, types.NewBar(ticker, *row.Bucket, row.Open, row.High, row.Low, row.Close, row.Volume))
	}
	return bars
}
