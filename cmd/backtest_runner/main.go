package main

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	flag "github.com/spf13/pflag"

	"binaryOptionsBot/config"
	"binaryOptionsBot/internal/adapters/logger"
	"binaryOptionsBot/internal/adapters/oracle"
	"binaryOptionsBot/internal/domain"
	"binaryOptionsBot/internal/strategy/backtesting"
	"binaryOptionsBot/internal/strategy/optimization"
	"binaryOptionsBot/internal/utils"
)

func main() {
	klinesFile := flag.StringP("klines", "k", "", "kline CSV written by fetch_klines (required)")
	strategiesFile := flag.String("strategies", "", "strategy seed YAML (default STRATEGIES_FILE)")
	expiryBars := flag.Int("expiry-bars", 1, "bars between entry and settlement")
	window := flag.Int("window", 0, "klines visible to each evaluation (default FEED_HISTORY)")
	initialFunds := flag.Float64("initial-funds", 1000, "starting balance for the report")
	outDir := flag.StringP("out", "o", "data", "directory for per-strategy trade CSVs")
	sweep := flag.String("sweep", "", "parameter to sweep for every strategy, e.g. rsiPeriod")
	sweepMin := flag.Float64("sweep-min", 0, "sweep lower bound")
	sweepMax := flag.Float64("sweep-max", 0, "sweep upper bound")
	sweepStep := flag.Float64("sweep-step", 1, "sweep step")
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	if *klinesFile == "" {
		log.Fatal("FATAL: --klines is required")
	}
	if *strategiesFile == "" {
		*strategiesFile = cfg.StrategiesFile
	}
	if *window <= 0 {
		*window = cfg.FeedHistory
	}

	appLogger := logger.NewStdLogger(cfg.LogLevel)
	ctx := context.Background()

	// 2. Load klines and strategies
	klines, err := utils.ReadKlinesFromCSV(*klinesFile)
	if err != nil {
		log.Fatalf("Error loading klines: %v", err)
	}
	if len(klines) == 0 {
		log.Fatalf("No klines in %s", *klinesFile)
	}
	asset := klines[0].Symbol
	seeds, err := config.LoadStrategySeeds(*strategiesFile, asset)
	if err != nil {
		log.Fatalf("Error loading strategies: %v", err)
	}
	for _, s := range seeds {
		s.Asset = asset
	}
	appLogger.Info(ctx, "Loaded backtest inputs", map[string]interface{}{
		"klines":     len(klines),
		"asset":      asset,
		"from":       klines[0].OpenTime,
		"to":         klines[len(klines)-1].CloseTime,
		"strategies": len(seeds),
	})

	replayConfig := backtesting.ReplayConfig{
		Window:        *window,
		ExpiryBars:    *expiryBars,
		Stake:         cfg.BaseStake,
		PayoutRate:    cfg.PayoutRate,
		MinConfidence: cfg.MinSignalConfidence,
		InitialFunds:  *initialFunds,
		OutcomeWindow: cfg.RecentOutcomes,
		Oracle:        oracle.NewTrendOracle(oracle.Config{}),
	}

	// 3. Optional parameter sweep
	if *sweep != "" {
		runSweep(ctx, appLogger, seeds, klines, replayConfig, optimization.ParameterRange{
			Name: *sweep,
			Min:  *sweepMin,
			Max:  *sweepMax,
			Step: *sweepStep,
		})
		return
	}

	// 4. Replay every strategy
	results, err := backtesting.ReplayAll(ctx, seeds, klines, replayConfig)
	if err != nil {
		appLogger.Error(ctx, err, "Backtest error")
		log.Fatalf("Backtest error: %v", err)
	}

	for _, result := range results {
		m := result.Metrics
		appLogger.Info(ctx, "Backtest result", map[string]interface{}{
			"Strategy": result.Strategy.ID,
			"Type":     result.Strategy.Type,
			"Trades":   m.TotalTrades,
			"WinRate":  fmt.Sprintf("%.2f", m.WinRate*100),
			"PnL":      fmt.Sprintf("%.2f", m.TotalProfit),
			"Sharpe":   fmt.Sprintf("%.3f", m.SharpeRatio),
			"MaxDD":    fmt.Sprintf("%.4f", m.MaxDrawdown),
			"Skipped":  result.Skipped,
		})

		tradesFile := filepath.Join(*outDir, fmt.Sprintf("backtest_trades_%s.csv", result.Strategy.ID))
		if err := utils.WriteTradesToCSV(result.Trades, tradesFile); err != nil {
			appLogger.Error(ctx, err, "Error writing trades CSV")
			continue
		}
		appLogger.Info(ctx, "Trades saved to", map[string]interface{}{"filename": tradesFile})
	}
}

func runSweep(ctx context.Context, appLogger *logger.StdLogger, seeds []*domain.Strategy, klines []*domain.Kline, replay backtesting.ReplayConfig, r optimization.ParameterRange) {
	optimizer := optimization.NewOptimizer(optimization.OptimizerConfig{
		ParameterRanges: []optimization.ParameterRange{r},
		Replay:          replay,
	})
	for _, s := range seeds {
		results, err := optimizer.Optimize(ctx, *s, klines)
		if err != nil {
			appLogger.Error(ctx, err, "Sweep failed", map[string]interface{}{"strategy": s.ID})
			continue
		}
		best := results[0]
		appLogger.Info(ctx, "Sweep result", map[string]interface{}{
			"Strategy":     s.ID,
			"Parameter":    r.Name,
			"BestValue":    best.Parameters[r.Name],
			"Score":        fmt.Sprintf("%.4f", best.Score),
			"Trades":       best.Metrics.TotalTrades,
			"WinRate":      fmt.Sprintf("%.2f", best.Metrics.WinRate*100),
			"Combinations": len(results),
		})
	}
}
