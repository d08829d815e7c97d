package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"binaryOptionsBot/internal/domain"
)

func TestKlinesCSV(t *testing.T) {
	open := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	klines := []*domain.Kline{
		{OpenTime: open.Add(time.Minute), CloseTime: open.Add(2*time.Minute - time.Millisecond), Symbol: "ETHUSDT", Interval: "1m", Open: 3001, High: 3010.5, Low: 2999, Close: 3005.25, Volume: 12.5},
		{OpenTime: open, CloseTime: open.Add(time.Minute - time.Millisecond), Symbol: "ETHUSDT", Interval: "1m", Open: 3000, High: 3002, Low: 2998, Close: 3001, Volume: 7},
	}

	filename := filepath.Join(t.TempDir(), "data", "eth.csv")
	require.NoError(t, WriteKlinesToCSV(klines, filename))

	got, err := ReadKlinesFromCSV(filename)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.True(t, got[0].OpenTime.Equal(open), "rows are sorted by open time")
	assert.True(t, got[0].CloseTime.Equal(klines[1].CloseTime), "millisecond close times survive")
	assert.Equal(t, 3005.25, got[1].Close)
	assert.Equal(t, 3010.5, got[1].High)
	assert.Equal(t, "1m", got[1].Interval)
	assert.True(t, got[1].IsFinal)
}

func TestReadKlinesFromCSV_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := ReadKlinesFromCSV(filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.csv")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, err = ReadKlinesFromCSV(empty)
	assert.ErrorContains(t, err, "empty")

	bad := filepath.Join(dir, "bad.csv")
	content := "open_time,close_time,symbol,interval,open,high,low,close,volume\n" +
		"2024-03-01T12:00:00Z,2024-03-01T12:00:59Z,ETHUSDT,1m,3000,3002,2998,oops,7\n"
	require.NoError(t, os.WriteFile(bad, []byte(content), 0o644))
	_, err = ReadKlinesFromCSV(bad)
	assert.ErrorContains(t, err, "line 2")
	assert.ErrorContains(t, err, "invalid close")
}

func TestTradesCSV(t *testing.T) {
	entry := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	trades := []*domain.Trade{
		{
			ID: "m-1", StrategyID: "m", Asset: "BTCUSDT", Direction: domain.DirectionUp,
			Stake: 10, Duration: 60, Confidence: 0.75, EntryPrice: 100, EntryTime: entry,
			ExitPrice: 101, ExitTime: entry.Add(time.Minute), Status: domain.TradeClosed,
			Result: domain.ResultWin, Profit: 8.5,
		},
		{
			ID: "m-2", StrategyID: "m", Asset: "BTCUSDT", Direction: domain.DirectionDown,
			Stake: 10, Duration: 60, Confidence: 0.7, EntryPrice: 101, EntryTime: entry.Add(time.Minute),
			ExitPrice: 101, ExitTime: entry.Add(2 * time.Minute), Status: domain.TradeTimedOut,
			Result: domain.ResultLoss, Profit: -10,
		},
	}

	filename := filepath.Join(t.TempDir(), "trades.csv")
	require.NoError(t, WriteTradesToCSV(trades, filename))

	got, err := ReadTradesFromCSV(filename)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, *trades[0], *got[0])
	assert.Equal(t, domain.TradeTimedOut, got[1].Status)
	assert.Equal(t, -10.0, got[1].Profit)
}

func TestReadTradesFromCSV_InvalidDirection(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "trades.csv")
	content := "id,strategy_id,asset,direction,stake,duration,confidence,entry_price,entry_time,exit_price,exit_time,status,result,profit\n" +
		"m-1,m,BTCUSDT,sideways,10,60,0.7,100,2024-03-01T12:00:00Z,101,2024-03-01T12:01:00Z,closed,win,8.5\n"
	require.NoError(t, os.WriteFile(filename, []byte(content), 0o644))

	_, err := ReadTradesFromCSV(filename)
	assert.ErrorContains(t, err, "invalid direction")
}
