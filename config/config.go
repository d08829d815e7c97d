package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"binaryOptionsBot/internal/adapters/logger"
)

// Config holds all application configuration.
type Config struct {
	// Binance market data (public endpoints work without keys)
	APIKey       string
	SecretKey    string
	IsTestnet    bool
	FeedInterval string  // kline interval used for snapshots, e.g. "1m"
	FeedHistory  int     // klines per snapshot
	FeedRateRPS  float64 // REST requests per second

	// Assets
	DefaultAsset string

	// Engine
	MaxConcurrentTrades    int
	SignalQueueCapacity    int
	TickInterval           time.Duration
	TradeTimeout           time.Duration
	EmergencyStopThreshold float64 // aggregate unrealized loss that halts trading
	ExecuteTimeout         time.Duration
	StatusTimeout          time.Duration
	MaxBackoff             time.Duration
	DegradedAfterFailures  int
	PayoutRate             float64 // profit per unit stake on a winning contract

	// Stakes
	MinStake            float64
	MaxStake            float64
	BaseStake           float64
	HighWinRate         float64
	StakeMultiplier     float64
	MinTradesForScaling int

	// Strategy Manager
	MinSignalConfidence float64
	SignalInterval      time.Duration
	EvolutionInterval   time.Duration
	PerformanceWindow   int
	RetirementThreshold float64
	MaxActiveStrategies int
	HybridMinTrades     int
	MutationSampleSize  int
	RecentOutcomes      int
	DefaultDuration     int // seconds
	StrategiesFile      string

	// Risk Gate
	RiskMaxDailyLoss         float64
	RiskMaxDailyTrades       int
	RiskMaxExposure          float64
	RiskMaxConsecutiveLosses int
	RiskCooldown             time.Duration

	// Database
	DBPath string

	// Logging
	LogLevel  logger.LogLevel
	LogFormat string // "text" or "json"
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	cfg.APIKey = getEnv("BINANCE_API_KEY", "")
	cfg.SecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", true)
	cfg.FeedInterval = getEnv("FEED_INTERVAL", "1m")
	cfg.FeedHistory = getEnvAsInt("FEED_HISTORY", 120)
	if cfg.FeedHistory < 30 {
		errs = append(errs, "FEED_HISTORY must be at least 30")
	}
	cfg.FeedRateRPS = getEnvAsFloat("FEED_RATE_RPS", 10)
	if cfg.FeedRateRPS <= 0 {
		errs = append(errs, "FEED_RATE_RPS must be positive")
	}

	cfg.DefaultAsset = getEnv("DEFAULT_ASSET", "BTCUSDT")
	if cfg.DefaultAsset == "" {
		errs = append(errs, "DEFAULT_ASSET must be set")
	}

	// Engine
	cfg.MaxConcurrentTrades, err = getEnvAsIntRequired("MAX_CONCURRENT_TRADES", 5)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_CONCURRENT_TRADES: %v", err))
	} else if cfg.MaxConcurrentTrades <= 0 {
		errs = append(errs, "MAX_CONCURRENT_TRADES must be positive")
	}
	cfg.SignalQueueCapacity = getEnvAsInt("SIGNAL_QUEUE_CAPACITY", 50)
	if cfg.SignalQueueCapacity <= 0 {
		errs = append(errs, "SIGNAL_QUEUE_CAPACITY must be positive")
	}
	cfg.TickInterval = getEnvAsDuration("TICK_INTERVAL", time.Second)
	cfg.TradeTimeout = getEnvAsDuration("TRADE_TIMEOUT", 5*time.Minute)
	cfg.ExecuteTimeout = getEnvAsDuration("EXECUTE_TIMEOUT", 30*time.Second)
	cfg.StatusTimeout = getEnvAsDuration("STATUS_TIMEOUT", 10*time.Second)
	cfg.MaxBackoff = getEnvAsDuration("MAX_BACKOFF", 30*time.Second)
	if cfg.TickInterval <= 0 || cfg.TradeTimeout <= 0 || cfg.ExecuteTimeout <= 0 || cfg.StatusTimeout <= 0 || cfg.MaxBackoff <= 0 {
		errs = append(errs, "engine intervals and timeouts must be positive")
	}
	cfg.DegradedAfterFailures = getEnvAsInt("DEGRADED_AFTER_FAILURES", 5)

	cfg.EmergencyStopThreshold, err = getEnvAsFloatRequired("EMERGENCY_STOP_THRESHOLD", 100.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid EMERGENCY_STOP_THRESHOLD: %v", err))
	} else if cfg.EmergencyStopThreshold <= 0 {
		errs = append(errs, "EMERGENCY_STOP_THRESHOLD must be positive")
	}
	cfg.PayoutRate, err = getEnvAsFloatRequired("PAYOUT_RATE", 0.85)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid PAYOUT_RATE: %v", err))
	} else if cfg.PayoutRate <= 0 || cfg.PayoutRate > 2 {
		errs = append(errs, "PAYOUT_RATE must be in (0, 2]")
	}

	// Stakes
	cfg.MinStake, err = getEnvAsFloatRequired("MIN_STAKE", 1.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MIN_STAKE: %v", err))
	}
	cfg.MaxStake, err = getEnvAsFloatRequired("MAX_STAKE", 100.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_STAKE: %v", err))
	}
	if cfg.MinStake <= 0 || cfg.MinStake >= cfg.MaxStake {
		errs = append(errs, "MIN_STAKE must be positive and less than MAX_STAKE")
	}
	cfg.BaseStake = getEnvAsFloat("BASE_STAKE", 10.0)
	cfg.HighWinRate = getEnvAsFloat("HIGH_WIN_RATE", 0.7)
	cfg.StakeMultiplier = getEnvAsFloat("STAKE_MULTIPLIER", 1.5)
	cfg.MinTradesForScaling = getEnvAsInt("MIN_TRADES_FOR_SCALING", 10)
	if cfg.StakeMultiplier < 1 {
		errs = append(errs, "STAKE_MULTIPLIER cannot be below 1")
	}

	// Strategy Manager
	cfg.MinSignalConfidence = getEnvAsFloat("MIN_SIGNAL_CONFIDENCE", 0.65)
	if cfg.MinSignalConfidence < 0 || cfg.MinSignalConfidence > 1 {
		errs = append(errs, "MIN_SIGNAL_CONFIDENCE must be between 0 and 1")
	}
	cfg.SignalInterval = getEnvAsDuration("SIGNAL_INTERVAL", 5*time.Second)
	cfg.EvolutionInterval = getEnvAsDuration("EVOLUTION_INTERVAL", time.Hour)
	if cfg.SignalInterval <= 0 || cfg.EvolutionInterval <= 0 {
		errs = append(errs, "SIGNAL_INTERVAL and EVOLUTION_INTERVAL must be positive")
	}
	cfg.PerformanceWindow = getEnvAsInt("PERFORMANCE_WINDOW", 100)
	if cfg.PerformanceWindow <= 0 {
		errs = append(errs, "PERFORMANCE_WINDOW must be positive")
	}
	cfg.RetirementThreshold = getEnvAsFloat("RETIREMENT_THRESHOLD", 0.3)
	if cfg.RetirementThreshold < 0 || cfg.RetirementThreshold > 1 {
		errs = append(errs, "RETIREMENT_THRESHOLD must be between 0 and 1")
	}
	cfg.MaxActiveStrategies = getEnvAsInt("MAX_ACTIVE_STRATEGIES", 10)
	if cfg.MaxActiveStrategies <= 0 {
		errs = append(errs, "MAX_ACTIVE_STRATEGIES must be positive")
	}
	cfg.HybridMinTrades = getEnvAsInt("HYBRID_MIN_TRADES", 20)
	cfg.MutationSampleSize = getEnvAsInt("MUTATION_SAMPLE_SIZE", 2)
	if cfg.MutationSampleSize < 0 {
		errs = append(errs, "MUTATION_SAMPLE_SIZE cannot be negative")
	}
	cfg.RecentOutcomes = getEnvAsInt("RECENT_OUTCOMES", 100)
	if cfg.RecentOutcomes <= 0 {
		errs = append(errs, "RECENT_OUTCOMES must be positive")
	}
	cfg.DefaultDuration = getEnvAsInt("DEFAULT_DURATION_SECONDS", 60)
	if cfg.DefaultDuration <= 0 {
		errs = append(errs, "DEFAULT_DURATION_SECONDS must be positive")
	}
	cfg.StrategiesFile = getEnv("STRATEGIES_FILE", "./strategies.yaml")

	// Risk Gate
	cfg.RiskMaxDailyLoss = getEnvAsFloat("RISK_MAX_DAILY_LOSS", 250.0)
	cfg.RiskMaxDailyTrades = getEnvAsInt("RISK_MAX_DAILY_TRADES", 200)
	cfg.RiskMaxExposure = getEnvAsFloat("RISK_MAX_EXPOSURE", 300.0)
	cfg.RiskMaxConsecutiveLosses = getEnvAsInt("RISK_MAX_CONSECUTIVE_LOSSES", 6)
	cfg.RiskCooldown = getEnvAsDuration("RISK_COOLDOWN", 10*time.Minute)

	// Database
	cfg.DBPath = getEnv("DB_PATH", "./data/binary_bot.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	// Logging
	cfg.LogLevel = logger.ParseLevel(getEnv("LOG_LEVEL", "INFO"))
	cfg.LogFormat = strings.ToLower(getEnv("LOG_FORMAT", "text"))
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		errs = append(errs, "LOG_FORMAT must be 'text' or 'json'")
	}

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration accepts Go duration strings ("1s", "5m") or a bare number of seconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(valueStr); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return defaultValue
}
