package utils

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"binaryOptionsBot/internal/domain"
)

var tradeHeader = []string{
	"id", "strategy_id", "asset", "direction", "stake", "duration", "confidence",
	"entry_price", "entry_time", "exit_price", "exit_time", "status", "result", "profit",
}

// WriteTradesToCSV writes settled trades to filename, creating its directory if needed.
func WriteTradesToCSV(trades []*domain.Trade, filename string) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(tradeHeader); err != nil {
		return err
	}
	for _, t := range trades {
		if err := writer.Write([]string{
			t.ID,
			t.StrategyID,
			t.Asset,
			string(t.Direction),
			strconv.FormatFloat(t.Stake, 'f', -1, 64),
			strconv.Itoa(t.Duration),
			strconv.FormatFloat(t.Confidence, 'f', -1, 64),
			strconv.FormatFloat(t.EntryPrice, 'f', -1, 64),
			t.EntryTime.UTC().Format(time.RFC3339Nano),
			strconv.FormatFloat(t.ExitPrice, 'f', -1, 64),
			t.ExitTime.UTC().Format(time.RFC3339Nano),
			string(t.Status),
			string(t.Result),
			strconv.FormatFloat(t.Profit, 'f', -1, 64),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadTradesFromCSV reads trades written by WriteTradesToCSV.
func ReadTradesFromCSV(filename string) ([]*domain.Trade, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = len(tradeHeader)
	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s is empty", filename)
		}
		return nil, fmt.Errorf("failed to read header of %s: %w", filename, err)
	}

	var trades []*domain.Trade
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", filename, line, err)
		}
		t, err := parseTrade(record)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", filename, line, err)
		}
		trades = append(trades, t)
	}
	return trades, nil
}

func parseTrade(r []string) (*domain.Trade, error) {
	var err error
	t := &domain.Trade{
		ID:         r[0],
		StrategyID: r[1],
		Asset:      r[2],
		Direction:  domain.Direction(r[3]),
		Status:     domain.TradeStatus(r[11]),
		Result:     domain.TradeResult(r[12]),
	}
	floats := []struct {
		col int
		dst *float64
	}{
		{4, &t.Stake}, {6, &t.Confidence}, {7, &t.EntryPrice}, {9, &t.ExitPrice}, {13, &t.Profit},
	}
	for _, f := range floats {
		if *f.dst, err = strconv.ParseFloat(r[f.col], 64); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", tradeHeader[f.col], err)
		}
	}
	if t.Duration, err = strconv.Atoi(r[5]); err != nil {
		return nil, fmt.Errorf("invalid duration: %w", err)
	}
	if t.EntryTime, err = time.Parse(time.RFC3339Nano, r[8]); err != nil {
		return nil, fmt.Errorf("invalid entry_time: %w", err)
	}
	if t.ExitTime, err = time.Parse(time.RFC3339Nano, r[10]); err != nil {
		return nil, fmt.Errorf("invalid exit_time: %w", err)
	}
	if !t.Direction.Valid() {
		return nil, fmt.Errorf("invalid direction %q", r[3])
	}
	return t, nil
}
