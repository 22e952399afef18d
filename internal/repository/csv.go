package repository

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"dailybacktest/types"

	"github.com/shopspring/decimal"
)

var ErrInvalidCSV = errors.New("invalid bar csv")

var csvDateLayouts = []string{
	time.DateOnly,
	time.DateTime,
	time.RFC3339,
	"01/02/2006",
}

// csvColumns maps normalized header names onto bar fields.
var csvColumns = map[string]string{
	"date":      "date",
	"timestamp": "date",
	"open":      "open",
	"high":      "high",
	"low":       "low",
	"close":     "close",
	"adj close": "adj_close",
	"adjclose":  "adj_close",
	"adj_close": "adj_close",
	"volume":    "volume",
}

// ReadBarsCSVFile loads daily bars from a CSV file.
func ReadBarsCSVFile(path, ticker string) ([]types.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bars file: %w", err)
	}
	defer f.Close()

	return ReadBarsCSV(f, ticker)
}

// ReadBarsCSV parses Date,Open,High,Low,Close[,Adj Close][,Volume] rows. The
// header is matched case-insensitively and rows are returned sorted by date.
// Adj Close is accepted but not used.
func ReadBarsCSV(r io.Reader, ticker string) ([]types.Bar, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty file", ErrInvalidCSV)
		}
		return nil, fmt.Errorf("%w: read header: %v", ErrInvalidCSV, err)
	}
	idx, err := headerIndex(header)
	if err != nil {
		return nil, err
	}

	var bars []types.Bar
	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCSV, err)
		}
		bar, err := parseRecord(record, idx, ticker)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidCSV, line, err)
		}
		bars = append(bars, bar)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%s %w", ticker, ErrNoBars)
	}

	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Timestamp.Before(bars[j].Timestamp)
	})
	for i := 1; i < len(bars); i++ {
		if bars[i].Timestamp.Equal(bars[i-1].Timestamp) {
			return nil, fmt.Errorf("%w: duplicate date %s", ErrInvalidCSV, bars[i].Timestamp.Format(time.DateOnly))
		}
	}
	return bars, nil
}

func headerIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, col := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")))
		if field, ok := csvColumns[key]; ok {
			idx[field] = i
		}
	}
	for _, required := range []string{"date", "open", "high", "low", "close"} {
		if _, ok := idx[required]; !ok {
			return nil, fmt.Errorf("%w: missing %q column", ErrInvalidCSV, required)
		}
	}
	return idx, nil
}

func parseRecord(record []string, idx map[string]int, ticker string) (types.Bar, error) {
	ts, err := parseDate(record[idx["date"]])
	if err != nil {
		return types.Bar{}, err
	}
	prices := make(map[string]decimal.Decimal, 4)
	for _, field := range []string{"open", "high", "low", "close"} {
		v, err := decimal.NewFromString(strings.TrimSpace(record[idx[field]]))
		if err != nil {
			return types.Bar{}, fmt.Errorf("%s: %v", field, err)
		}
		prices[field] = v
	}
	volume := decimal.Zero
	if i, ok := idx["volume"]; ok && strings.TrimSpace(record[i]) != "" {
		volume, err = decimal.NewFromString(strings.TrimSpace(record[i]))
		if err != nil {
			return types.Bar{}, fmt.Errorf("volume: %v", err)
		}
	}
	return types.NewBar(ticker, ts, prices["open"], prices["high"], prices["low"], prices["close"], volume), nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range csvDateLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}
