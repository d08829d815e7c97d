package optimization

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"binaryOptionsBot/internal/domain"
	"binaryOptionsBot/internal/strategy/analytics"
	"binaryOptionsBot/internal/strategy/backtesting"
)

// ParameterRange defines a range for a parameter to optimize
type ParameterRange struct {
	Name  string
	Min   float64
	Max   float64
	Step  float64
	IsInt bool
}

// OptimizationResult holds the results of a parameter optimization
type OptimizationResult struct {
	Parameters map[string]float64
	Metrics    *analytics.PerformanceMetrics
	Score      float64
}

// OptimizerConfig holds configuration for the optimizer
type OptimizerConfig struct {
	ParameterRanges []ParameterRange
	Replay          backtesting.ReplayConfig
	Concurrency     int // Parallel replays, defaults to GOMAXPROCS
	ScoreFunction   func(*analytics.PerformanceMetrics) float64
}

// Optimizer sweeps a grid of strategy parameters over a kline replay
type Optimizer struct {
	config OptimizerConfig
}

// NewOptimizer creates a new optimizer instance
func NewOptimizer(config OptimizerConfig) *Optimizer {
	if config.ScoreFunction == nil {
		config.ScoreFunction = DefaultScoreFunction
	}
	if config.Concurrency <= 0 {
		config.Concurrency = runtime.GOMAXPROCS(0)
	}
	return &Optimizer{
		config: config,
	}
}

// Optimize replays the strategy once per parameter combination and returns the results sorted by
// score, best first.
func (o *Optimizer) Optimize(ctx context.Context, strategy domain.Strategy, klines []*domain.Kline) ([]OptimizationResult, error) {
	for _, r := range o.config.ParameterRanges {
		if r.Step <= 0 || r.Max < r.Min {
			return nil, fmt.Errorf("invalid range for parameter %s", r.Name)
		}
	}

	combinations := o.generateParameterCombinations()
	results := make([]OptimizationResult, len(combinations))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.config.Concurrency)
	for i, params := range combinations {
		i, params := i, params
		g.Go(func() error {
			candidate := createStrategyWithParams(strategy, params)
			replay, err := backtesting.Replay(gctx, candidate, klines, o.config.Replay)
			if err != nil {
				return fmt.Errorf("replay with %v failed: %w", params, err)
			}
			results[i] = OptimizationResult{
				Parameters: params,
				Metrics:    replay.Metrics,
				Score:      o.config.ScoreFunction(replay.Metrics),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results, nil
}

// generateParameterCombinations generates all possible parameter combinations
func (o *Optimizer) generateParameterCombinations() []map[string]float64 {
	var combinations []map[string]float64
	current := make(map[string]float64)

	var generate func(int)
	generate = func(paramIndex int) {
		if paramIndex == len(o.config.ParameterRanges) {
			combination := make(map[string]float64, len(current))
			for k, v := range current {
				combination[k] = v
			}
			combinations = append(combinations, combination)
			return
		}

		param := o.config.ParameterRanges[paramIndex]
		for k := 0; ; k++ {
			// Stepping by index keeps float error from accumulating
			value := param.Min + float64(k)*param.Step
			if value > param.Max+param.Step/2 {
				break
			}
			if param.IsInt {
				value = math.Round(value)
			} else {
				value = math.Round(value*1e9) / 1e9
			}
			current[param.Name] = value
			generate(paramIndex + 1)
		}
	}

	generate(0)
	return combinations
}

// createStrategyWithParams returns a copy of the strategy with the swept parameters applied
func createStrategyWithParams(strategy domain.Strategy, params map[string]float64) domain.Strategy {
	s := strategy.Clone()
	if s.Params.Numeric == nil {
		s.Params.Numeric = make(map[string]float64, len(params))
	}
	for k, v := range params {
		s.Params.Numeric[k] = v
	}
	return s
}

// DefaultScoreFunction provides a default scoring function for optimization
func DefaultScoreFunction(metrics *analytics.PerformanceMetrics) float64 {
	// It combines several metrics into a single score
	score := 0.0

	// Weight different metrics
	score += metrics.WinRate * 0.3
	score += metrics.ProfitFactor * 0.2
	score += (1 - metrics.MaxDrawdown) * 0.2
	score += metrics.ReturnOnInvestment * 0.2
	score += metrics.RiskRewardRatio * 0.1

	return score
}
