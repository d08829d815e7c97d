package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"sync"
	"time"

	"github.com/samber/lo"

	"binaryOptionsBot/config"
	"binaryOptionsBot/internal/adapters/binanceclient"
	"binaryOptionsBot/internal/adapters/logger"
	"binaryOptionsBot/internal/adapters/oracle"
	"binaryOptionsBot/internal/adapters/paper"
	"binaryOptionsBot/internal/adapters/sqlite"
	"binaryOptionsBot/internal/app"
	"binaryOptionsBot/internal/domain"
	"binaryOptionsBot/internal/events"
	"binaryOptionsBot/internal/persistence"
	"binaryOptionsBot/internal/ports"
	"binaryOptionsBot/internal/risk"
	"binaryOptionsBot/internal/strategy"
	"binaryOptionsBot/internal/strategy/evolution"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger, syncLogger := newLogger(cfg)
	defer syncLogger()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	appLogger.Info(ctx, "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String(), "format": cfg.LogFormat})

	// 3. Initialize Repository (Database Adapter) and the write-behind persister
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize database repository")
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err) // Also log to stderr
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing database repository")
		}
	}()
	writer := persistence.NewWriter(repo, repo, appLogger, 50, 500*time.Millisecond, 5*time.Second)
	defer writer.Close()
	cancelOrphanedTrades(ctx, repo, writer, appLogger)
	appLogger.Info(ctx, "Database repository initialized")

	// 4. Initialize Binance market data
	binanceClient, err := binanceclient.New(binanceclient.Config{
		APIKey:            cfg.APIKey,
		SecretKey:         cfg.SecretKey,
		UseTestnet:        cfg.IsTestnet,
		Logger:            appLogger,
		RequestsPerSecond: cfg.FeedRateRPS,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize Binance client")
		log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}
	if err := binanceClient.Ping(ctx); err != nil {
		appLogger.Warn(ctx, "Binance ping failed, snapshots will retry", map[string]interface{}{"error": err.Error()})
	}
	feed, err := binanceclient.NewFeed(binanceClient, binanceclient.FeedConfig{
		Interval: cfg.FeedInterval,
		History:  cfg.FeedHistory,
	}, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize market feed: %v", err)
	}
	appLogger.Info(ctx, "Binance client initialized")

	// 5. Execution venue, prediction oracle and risk gate
	executor, err := paper.NewExecutor(binanceClient, paper.Config{
		PlatformID: "paper",
		PayoutRate: cfg.PayoutRate,
	}, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize executor: %v", err)
	}
	trendOracle := oracle.NewTrendOracle(oracle.Config{})
	riskManager := risk.NewRiskManager(risk.RiskConfig{
		MinStake:             cfg.MinStake,
		MaxStake:             cfg.MaxStake,
		MinConfidence:        cfg.MinSignalConfidence,
		MaxDailyLoss:         cfg.RiskMaxDailyLoss,
		MaxDailyTrades:       cfg.RiskMaxDailyTrades,
		MaxExposure:          cfg.RiskMaxExposure,
		MaxConsecutiveLosses: cfg.RiskMaxConsecutiveLosses,
		Cooldown:             cfg.RiskCooldown,
	}, appLogger)

	// 6. Trading Engine
	stream := events.NewStream(256)
	engine, err := app.NewEngine(app.EngineConfig{
		MaxConcurrentTrades:    cfg.MaxConcurrentTrades,
		QueueCapacity:          cfg.SignalQueueCapacity,
		TickInterval:           cfg.TickInterval,
		TradeTimeout:           cfg.TradeTimeout,
		ExecuteTimeout:         cfg.ExecuteTimeout,
		StatusTimeout:          cfg.StatusTimeout,
		MaxBackoff:             cfg.MaxBackoff,
		EmergencyStopThreshold: cfg.EmergencyStopThreshold,
		MinStake:               cfg.MinStake,
		MaxStake:               cfg.MaxStake,
		PayoutRate:             cfg.PayoutRate,
		DegradedAfterFailures:  cfg.DegradedAfterFailures,
	}, appLogger, executor, riskManager, writer, stream, riskManager)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize trading engine")
		log.Fatalf("FATAL: Failed to initialize trading engine: %v", err)
	}

	// 7. Strategy Manager
	evo := evolution.DefaultConfig()
	evo.HybridMinTrades = cfg.HybridMinTrades
	manager, err := strategy.NewManager(strategy.Config{
		SignalInterval:      cfg.SignalInterval,
		EvolutionInterval:   cfg.EvolutionInterval,
		MinSignalConfidence: cfg.MinSignalConfidence,
		DefaultDuration:     cfg.DefaultDuration,
		BaseStake:           cfg.BaseStake,
		MinStake:            cfg.MinStake,
		MaxStake:            cfg.MaxStake,
		HighWinRate:         cfg.HighWinRate,
		StakeMultiplier:     cfg.StakeMultiplier,
		MinTradesForScaling: cfg.MinTradesForScaling,
		PerformanceWindow:   cfg.PerformanceWindow,
		RetirementThreshold: cfg.RetirementThreshold,
		RecentOutcomes:      cfg.RecentOutcomes,
		MutationSampleSize:  cfg.MutationSampleSize,
		Evolution:           evo,
	}, appLogger, strategy.NewRegistry(cfg.MaxActiveStrategies), feed, trendOracle, riskManager, engine, writer, stream)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize strategy manager")
		log.Fatalf("FATAL: Failed to initialize strategy manager: %v", err)
	}
	if err := engine.AddObserver(manager); err != nil {
		log.Fatalf("FATAL: Failed to register strategy manager: %v", err)
	}

	strategies, err := loadStrategies(ctx, cfg, repo, writer, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to load strategies")
		log.Fatalf("FATAL: Failed to load strategies: %v", err)
	}
	if manager.Load(ctx, strategies) == 0 {
		log.Fatal("FATAL: No strategies loaded")
	}

	// 8. Stream klines for every traded asset
	var wg sync.WaitGroup
	assets := lo.Uniq(lo.Map(manager.ActiveStrategies(), func(s domain.Strategy, _ int) string { return s.Asset }))
	for _, asset := range assets {
		asset := asset
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := feed.Watch(ctx, binanceClient, asset); err != nil {
				appLogger.Warn(ctx, "Kline stream unavailable, using REST snapshots", map[string]interface{}{"asset": asset, "error": err.Error()})
			}
		}()
	}

	// 9. Run until interrupted
	runner, err := app.NewRunner(engine, manager, stream, appLogger, time.Minute)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize runner: %v", err)
	}
	if err := runner.Run(ctx); err != nil {
		appLogger.Error(ctx, err, "Trading runner exited with error")
	}

	cancel()
	wg.Wait()
	stream.Close()
	for _, s := range manager.Strategies() {
		writer.SaveStrategy(s)
	}
	appLogger.Info(context.Background(), "Application finished gracefully.")
}

func newLogger(cfg *config.Config) (ports.Logger, func()) {
	if cfg.LogFormat == "json" {
		zl, err := logger.NewZapLogger(cfg.LogLevel)
		if err != nil {
			log.Fatalf("FATAL: Failed to initialize logger: %v", err)
		}
		return zl, func() { _ = zl.Sync() }
	}
	return logger.NewStdLogger(cfg.LogLevel), func() {}
}

// loadStrategies resumes the active strategies stored in the database, or seeds generation zero
// from the strategies file on first start.
func loadStrategies(ctx context.Context, cfg *config.Config, repo *sqlite.Repository, store ports.Persistence, appLogger ports.Logger) ([]*domain.Strategy, error) {
	stored, err := repo.FindStrategiesByStatus(ctx, domain.StrategyActive)
	if err != nil {
		return nil, err
	}
	if len(stored) > 0 {
		appLogger.Info(ctx, "Resuming stored strategies", map[string]interface{}{"count": len(stored)})
		return stored, nil
	}

	seeds, err := config.LoadStrategySeeds(cfg.StrategiesFile, cfg.DefaultAsset)
	if err != nil {
		return nil, err
	}
	for _, s := range seeds {
		store.SaveStrategy(*s)
	}
	appLogger.Info(ctx, "Seeded strategies", map[string]interface{}{"count": len(seeds), "file": cfg.StrategiesFile})
	return seeds, nil
}

// cancelOrphanedTrades closes trades left active by a previous run. Their contracts are not
// tracked by this process.
func cancelOrphanedTrades(ctx context.Context, repo *sqlite.Repository, store ports.Persistence, appLogger ports.Logger) {
	active, err := repo.FindActiveTrades(ctx)
	if err != nil {
		appLogger.Warn(ctx, "Could not load active trades from previous run", map[string]interface{}{"error": err.Error()})
		return
	}
	now := time.Now()
	for _, t := range active {
		if err := t.Close(domain.TradeCancelled, t.EntryPrice, 0, now); err != nil {
			continue
		}
		store.SaveTrade(*t)
	}
	if len(active) > 0 {
		appLogger.Warn(ctx, "Cancelled trades left open by previous run", map[string]interface{}{"count": len(active)})
	}
}
