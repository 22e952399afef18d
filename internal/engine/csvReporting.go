package engine

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"dailybacktest/types"
)

// WriteLedgerCSVFile writes the ledger to a CSV file at the given path.
func WriteLedgerCSVFile(path string, ledger []types.LedgerEntry) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create ledger file: %w", err)
	}
	defer f.Close()

	return WriteLedgerCSV(f, ledger)
}

// WriteLedgerCSV writes one row per bar to any io.Writer.
func WriteLedgerCSV(w io.Writer, ledger []types.LedgerEntry) error {
	cw := csv.NewWriter(w)

	header := []string{
		"date",
		"cash",
		"shares",
		"holdings",
		"total",
		"action",
		"note",
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, entry := range ledger {
		record := []string{
			entry.Timestamp.Format(time.DateOnly),
			entry.Cash.StringFixed(2),
			entry.Shares.String(),
			entry.MarketValue.StringFixed(2),
			entry.Equity.StringFixed(2),
			string(entry.Action),
			entry.Note,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// WriteTradesCSVFile writes trades to a CSV file at the given path.
func WriteTradesCSVFile(path string, trades []types.Trade) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create trades file: %w", err)
	}
	defer f.Close()

	return WriteTradesCSV(f, trades)
}

// WriteTradesCSV writes one row per closed round trip to any io.Writer.
func WriteTradesCSV(w io.Writer, trades []types.Trade) error {
	cw := csv.NewWriter(w)

	header := []string{
		"trade_id",
		"ticker",
		"entry_date",
		"entry_price",
		"entry_fill_price",
		"exit_date",
		"exit_price",
		"exit_fill_price",
		"shares",
		"gross_pnl",
		"commission",
		"slippage",
		"net_pnl",
		"holding_bars",
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, t := range trades {
		if err := writeTradeRow(cw, t); err != nil {
			return err
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func writeTradeRow(cw *csv.Writer, t types.Trade) error {
	record := []string{
		strconv.Itoa(t.ID),
		t.Ticker,
		t.EntryTime.Format(time.DateOnly),
		t.EntryPrice.String(),
		t.EntryFillPrice.String(),
		t.ExitTime.Format(time.DateOnly),
		t.ExitPrice.String(),
		t.ExitFillPrice.String(),
		t.Shares.String(),
		t.GrossPnL.StringFixed(2),
		t.Commission.StringFixed(2),
		t.SlippageCost.StringFixed(2),
		t.NetPnL.StringFixed(2),
		strconv.Itoa(t.HoldingBars),
	}
	if err := cw.Write(record); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}
