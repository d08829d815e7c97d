package optimization

import (
	"context"
	"testing"
	"time"

	"binaryOptionsBot/internal/domain"
	"binaryOptionsBot/internal/ports"
	"binaryOptionsBot/internal/strategy/analytics"
	"binaryOptionsBot/internal/strategy/backtesting"
)

// upOracle always predicts a rise with confidence 0.9
type upOracle struct{}

func (upOracle) Predict(ctx context.Context, snap *ports.MarketSnapshot) (ports.Prediction, error) {
	return ports.Prediction{Direction: domain.DirectionUp, Confidence: 0.9}, nil
}

func (upOracle) PatternScore(ctx context.Context, snap *ports.MarketSnapshot) (float64, error) {
	return 0.8, nil
}

func TestOptimizer(t *testing.T) {
	// Create test data
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var klines []*domain.Kline
	for i := 0; i < 6; i++ {
		open := start.Add(time.Duration(i) * time.Minute)
		klines = append(klines, &domain.Kline{
			OpenTime:  open,
			CloseTime: open.Add(time.Minute),
			Symbol:    "BTCUSDT",
			Close:     50000 + float64(i)*10,
			Volume:    100,
		})
	}

	config := OptimizerConfig{
		ParameterRanges: []ParameterRange{
			{
				Name: "predictionThreshold",
				Min:  0.5,
				Max:  1.0,
				Step: 0.25,
			},
		},
		Replay: backtesting.ReplayConfig{
			Stake:        10,
			PayoutRate:   0.85,
			InitialFunds: 1000,
			Oracle:       upOracle{},
		},
		Concurrency: 2,
	}

	optimizer := NewOptimizer(config)
	strategy := domain.Strategy{
		ID:         "adaptive-1",
		Type:       domain.StrategyAdaptive,
		Asset:      "BTCUSDT",
		Confidence: 0.8,
	}

	results, err := optimizer.Optimize(context.Background(), strategy, klines)
	if err != nil {
		t.Fatalf("Optimization failed: %v", err)
	}

	if len(results) != 3 {
		t.Fatalf("Expected 3 parameter combinations, got %d", len(results))
	}

	// Verify results are sorted by score
	for i := 1; i < len(results); i++ {
		if results[i-1].Score < results[i].Score {
			t.Error("Results are not sorted by score in descending order")
		}
	}

	// A threshold above the oracle confidence never trades and ranks last
	last := results[len(results)-1]
	if last.Parameters["predictionThreshold"] != 1.0 {
		t.Errorf("Expected threshold 1.0 to rank last, got %v", last.Parameters)
	}
	if last.Metrics.TotalTrades != 0 {
		t.Errorf("Expected no trades for threshold 1.0, got %d", last.Metrics.TotalTrades)
	}
	if results[0].Metrics.TotalTrades != 5 {
		t.Errorf("Expected 5 trades for the best combination, got %d", results[0].Metrics.TotalTrades)
	}

	// The input strategy is not modified
	if strategy.Params.Numeric != nil {
		t.Error("Optimize must not write parameters into the caller's strategy")
	}
}

func TestOptimizer_InvalidRange(t *testing.T) {
	optimizer := NewOptimizer(OptimizerConfig{
		ParameterRanges: []ParameterRange{{Name: "rsiPeriod", Min: 20, Max: 10, Step: 1, IsInt: true}},
	})
	if _, err := optimizer.Optimize(context.Background(), domain.Strategy{}, nil); err == nil {
		t.Error("Expected an error for an empty range")
	}
}

func TestGenerateParameterCombinations(t *testing.T) {
	config := OptimizerConfig{
		ParameterRanges: []ParameterRange{
			{
				Name:  "param1",
				Min:   1,
				Max:   2,
				Step:  1,
				IsInt: true,
			},
			{
				Name:  "param2",
				Min:   0.1,
				Max:   0.3,
				Step:  0.1,
				IsInt: false,
			},
		},
	}

	optimizer := NewOptimizer(config)
	combinations := optimizer.generateParameterCombinations()

	// Verify number of combinations
	expectedCombinations := 6 // 2 values for param1 * 3 values for param2
	if len(combinations) != expectedCombinations {
		t.Errorf("Expected %d parameter combinations, got %d", expectedCombinations, len(combinations))
	}

	// Verify parameter values
	expectedValues := map[string][]float64{
		"param1": {1, 2},
		"param2": {0.1, 0.2, 0.3},
	}

	for _, combination := range combinations {
		for paramName, expectedValues := range expectedValues {
			value, exists := combination[paramName]
			if !exists {
				t.Errorf("Parameter %s not found in combination", paramName)
			}
			found := false
			for _, expectedValue := range expectedValues {
				if value == expectedValue {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("Unexpected value %f for parameter %s", value, paramName)
			}
		}
	}
}

func TestDefaultScoreFunction(t *testing.T) {
	metrics := &analytics.PerformanceMetrics{
		WinRate:            0.6,
		ProfitFactor:       2.0,
		MaxDrawdown:        0.2,
		ReturnOnInvestment: 0.5,
		RiskRewardRatio:    2.0,
	}

	score := DefaultScoreFunction(metrics)

	// Verify score calculation
	expectedScore := 0.6*0.3 + 2.0*0.2 + 0.8*0.2 + 0.5*0.2 + 2.0*0.1
	if score != expectedScore {
		t.Errorf("Expected score %f, got %f", expectedScore, score)
	}
}
