package strategies

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"binaryOptionsBot/internal/domain"
	"binaryOptionsBot/internal/ports"
	"binaryOptionsBot/internal/strategy/indicators"
)

type MockOracle struct {
	mock.Mock
}

func (m *MockOracle) Predict(ctx context.Context, snap *ports.MarketSnapshot) (ports.Prediction, error) {
	args := m.Called(ctx, snap)
	return args.Get(0).(ports.Prediction), args.Error(1)
}

func (m *MockOracle) PatternScore(ctx context.Context, snap *ports.MarketSnapshot) (float64, error) {
	args := m.Called(ctx, snap)
	return args.Get(0).(float64), args.Error(1)
}

func newStrategy(typ domain.StrategyType, params map[string]float64) domain.Strategy {
	return domain.Strategy{
		ID:         "s-" + string(typ),
		Type:       typ,
		Asset:      "BTCUSDT",
		Confidence: 0.8,
		Status:     domain.StrategyActive,
		Params:     domain.Params{Numeric: params},
	}
}

func TestEvaluateMomentum(t *testing.T) {
	s := newStrategy(domain.StrategyMomentum, nil)

	tests := []struct {
		name    string
		in      Inputs
		wantOK  bool
		wantDir domain.Direction
	}{
		{name: "overbought with rising momentum", in: Inputs{RSI: 75, HasRSI: true, Momentum: 0.01, HasMomentum: true}, wantOK: true, wantDir: domain.DirectionUp},
		{name: "oversold with falling momentum", in: Inputs{RSI: 20, HasRSI: true, Momentum: -0.01, HasMomentum: true}, wantOK: true, wantDir: domain.DirectionDown},
		{name: "overbought against momentum", in: Inputs{RSI: 75, HasRSI: true, Momentum: -0.01, HasMomentum: true}},
		{name: "neutral rsi", in: Inputs{RSI: 50, HasRSI: true, Momentum: 0.02, HasMomentum: true}},
		{name: "missing momentum", in: Inputs{RSI: 80, HasRSI: true}},
		{name: "rising above moving average", in: Inputs{Price: 101, RSI: 75, HasRSI: true, Momentum: 0.01, HasMomentum: true, Trend: 100, HasTrend: true}, wantOK: true, wantDir: domain.DirectionUp},
		{name: "rising below moving average", in: Inputs{Price: 99, RSI: 75, HasRSI: true, Momentum: 0.01, HasMomentum: true, Trend: 100, HasTrend: true}},
		{name: "falling above moving average", in: Inputs{Price: 101, RSI: 20, HasRSI: true, Momentum: -0.01, HasMomentum: true, Trend: 100, HasTrend: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ok := Evaluate(s, tt.in)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantDir, c.Direction)
				assert.Equal(t, domain.StrategyMomentum, c.Family)
				assert.GreaterOrEqual(t, c.Confidence, 0.72)
				assert.LessOrEqual(t, c.Confidence, 0.88)
			}
		})
	}
}

func TestEvaluateMomentum_MACDConfirmation(t *testing.T) {
	s := newStrategy(domain.StrategyMomentum, nil)
	s.Indicators = []string{domain.IndicatorMACD}
	in := Inputs{RSI: 75, HasRSI: true, Momentum: 0.01, HasMomentum: true}

	_, ok := Evaluate(s, in)
	assert.False(t, ok, "macd declared but not computed")

	in.MACD, in.HasMACD = indicators.MACDValue{Histogram: -0.5}, true
	_, ok = Evaluate(s, in)
	assert.False(t, ok, "histogram disagrees")

	in.MACD.Histogram = 0.5
	c, ok := Evaluate(s, in)
	require.True(t, ok)
	assert.Equal(t, domain.DirectionUp, c.Direction)
}

func TestEvaluateReversal(t *testing.T) {
	s := newStrategy(domain.StrategyReversal, nil)
	bands := indicators.Bands{Upper: 110, Middle: 100, Lower: 90}

	c, ok := Evaluate(s, Inputs{Price: 112, Bands: bands, HasBands: true, RSI: 78, HasRSI: true})
	require.True(t, ok)
	assert.Equal(t, domain.DirectionDown, c.Direction)

	c, ok = Evaluate(s, Inputs{Price: 88, Bands: bands, HasBands: true, RSI: 22, HasRSI: true})
	require.True(t, ok)
	assert.Equal(t, domain.DirectionUp, c.Direction)

	_, ok = Evaluate(s, Inputs{Price: 112, Bands: bands, HasBands: true, RSI: 55, HasRSI: true})
	assert.False(t, ok, "rsi does not confirm exhaustion")

	_, ok = Evaluate(s, Inputs{Price: 100, Bands: indicators.Bands{Upper: 100, Middle: 100, Lower: 100}, HasBands: true, RSI: 80, HasRSI: true})
	assert.False(t, ok, "collapsed bands")
}

func TestEvaluateReversal_MinBandWidth(t *testing.T) {
	s := newStrategy(domain.StrategyReversal, map[string]float64{"minBandWidth": 0.3})
	in := Inputs{Price: 112, Bands: indicators.Bands{Upper: 110, Middle: 100, Lower: 90}, HasBands: true, RSI: 78, HasRSI: true}

	_, ok := Evaluate(s, in)
	assert.False(t, ok, "bands narrower than required")

	in.Bands = indicators.Bands{Upper: 120, Middle: 100, Lower: 80}
	in.Price = 121
	c, ok := Evaluate(s, in)
	require.True(t, ok)
	assert.Equal(t, domain.DirectionDown, c.Direction)
}

func TestEvaluateBreakout_VolatilityFilter(t *testing.T) {
	s := newStrategy(domain.StrategyBreakout, map[string]float64{"volumeMultiplier": 2, "minAtrPct": 0.01})
	in := Inputs{Price: 106, Levels: indicators.Levels{Support: 95, Resistance: 105}, HasLevels: true, Volume: 300, AverageVolume: 100, HasVolume: true}

	_, ok := Evaluate(s, in)
	assert.False(t, ok, "atr required but not computed")

	in.ATR, in.HasATR = 0.5, true
	_, ok = Evaluate(s, in)
	assert.False(t, ok, "market too quiet")

	in.ATR = 2
	c, ok := Evaluate(s, in)
	require.True(t, ok)
	assert.Equal(t, domain.DirectionUp, c.Direction)
}

func TestEvaluateBreakout(t *testing.T) {
	s := newStrategy(domain.StrategyBreakout, map[string]float64{"volumeMultiplier": 2})
	levels := indicators.Levels{Support: 95, Resistance: 105}

	c, ok := Evaluate(s, Inputs{Price: 106, Levels: levels, HasLevels: true, Volume: 300, AverageVolume: 100, HasVolume: true})
	require.True(t, ok)
	assert.Equal(t, domain.DirectionUp, c.Direction)

	c, ok = Evaluate(s, Inputs{Price: 94, Levels: levels, HasLevels: true, Volume: 250, AverageVolume: 100, HasVolume: true})
	require.True(t, ok)
	assert.Equal(t, domain.DirectionDown, c.Direction)

	_, ok = Evaluate(s, Inputs{Price: 106, Levels: levels, HasLevels: true, Volume: 150, AverageVolume: 100, HasVolume: true})
	assert.False(t, ok, "volume below multiple")

	_, ok = Evaluate(s, Inputs{Price: 100, Levels: levels, HasLevels: true, Volume: 500, AverageVolume: 100, HasVolume: true})
	assert.False(t, ok, "inside the range")
}

func TestEvaluateComposite(t *testing.T) {
	s := newStrategy(domain.StrategyComposite, map[string]float64{"proximityThreshold": 0.01})
	levels := indicators.Levels{Support: 95, Resistance: 100}

	c, ok := Evaluate(s, Inputs{Price: 99.5, RSI: 55, HasRSI: true, Levels: levels, HasLevels: true, Momentum: 0.002, HasMomentum: true})
	require.True(t, ok)
	assert.Equal(t, domain.DirectionUp, c.Direction)

	c, ok = Evaluate(s, Inputs{Price: 95.3, RSI: 45, HasRSI: true, Levels: levels, HasLevels: true, Momentum: -0.002, HasMomentum: true})
	require.True(t, ok)
	assert.Equal(t, domain.DirectionDown, c.Direction)

	_, ok = Evaluate(s, Inputs{Price: 99.5, RSI: 75, HasRSI: true, Levels: levels, HasLevels: true, Momentum: 0.002, HasMomentum: true})
	assert.False(t, ok, "rsi not neutral")

	_, ok = Evaluate(s, Inputs{Price: 97, RSI: 50, HasRSI: true, Levels: levels, HasLevels: true, Momentum: 0.002, HasMomentum: true})
	assert.False(t, ok, "too far from the extreme")
}

func TestEvaluateAdaptive(t *testing.T) {
	s := newStrategy(domain.StrategyAdaptive, map[string]float64{"predictionThreshold": 0.7, "patternThreshold": 0.6})

	c, ok := Evaluate(s, Inputs{
		Prediction: ports.Prediction{Direction: domain.DirectionDown, Confidence: 0.8}, HasPrediction: true,
		PatternScore: 0.7, HasPattern: true,
	})
	require.True(t, ok)
	assert.Equal(t, domain.DirectionDown, c.Direction)

	_, ok = Evaluate(s, Inputs{
		Prediction: ports.Prediction{Direction: domain.DirectionUp, Confidence: 0.8}, HasPrediction: true,
		PatternScore: 0.5, HasPattern: true,
	})
	assert.False(t, ok)
}

func TestEvaluateHybrid_HighestConfidenceWins(t *testing.T) {
	s := newStrategy(domain.StrategyHybrid, map[string]float64{"volumeMultiplier": 1.5})
	s.Components = []domain.StrategyType{domain.StrategyMomentum, domain.StrategyBreakout}

	in := Inputs{
		Price: 106, RSI: 71, HasRSI: true, Momentum: 0.01, HasMomentum: true,
		Levels: indicators.Levels{Support: 95, Resistance: 105}, HasLevels: true,
		Volume: 300, AverageVolume: 100, HasVolume: true, // ratio 3, full strength
	}
	c, ok := Evaluate(s, in)
	require.True(t, ok)
	assert.Equal(t, domain.StrategyBreakout, c.Family)
	assert.InDelta(t, 0.88, c.Confidence, 1e-9)

	// Only the momentum leg fires when volume is quiet.
	in.Volume = 100
	c, ok = Evaluate(s, in)
	require.True(t, ok)
	assert.Equal(t, domain.StrategyMomentum, c.Family)
}

func TestRequiredIndicators(t *testing.T) {
	s := newStrategy(domain.StrategyHybrid, nil)
	s.Components = []domain.StrategyType{domain.StrategyReversal, domain.StrategyBreakout}
	s.Indicators = []string{domain.IndicatorRSI}
	s.Params.Flags = map[string]bool{"useMacd": true}

	assert.ElementsMatch(t, []string{
		domain.IndicatorRSI, domain.IndicatorBollinger, domain.IndicatorLevels, domain.IndicatorVolume, domain.IndicatorMACD,
	}, RequiredIndicators(s))
}

func rampSnapshot(n int) *ports.MarketSnapshot {
	prices := make([]float64, n)
	volumes := make([]float64, n)
	for i := range prices {
		prices[i] = 100 + float64(i)*0.1
		volumes[i] = 10
	}
	return &ports.MarketSnapshot{Asset: "BTCUSDT", Price: prices[n-1], PriceHistory: prices, Volume: 10, VolumeHistory: volumes}
}

func TestBuildInputs(t *testing.T) {
	ctx := context.Background()
	snap := rampSnapshot(60)

	s := newStrategy(domain.StrategyComposite, nil)
	in, err := BuildInputs(ctx, s, snap, nil)
	require.NoError(t, err)
	assert.True(t, in.HasRSI)
	assert.True(t, in.HasLevels)
	assert.True(t, in.HasMomentum)
	assert.False(t, in.HasBands)
	assert.Equal(t, 100.0, in.RSI)
	assert.Greater(t, in.Momentum, 0.0)

	_, err = BuildInputs(ctx, s, rampSnapshot(5), nil)
	assert.ErrorIs(t, err, ErrInsufficientHistory)
}

func TestBuildInputs_HybridKeepsWorkingFamilies(t *testing.T) {
	ctx := context.Background()
	s := newStrategy(domain.StrategyHybrid, nil)
	s.Components = []domain.StrategyType{domain.StrategyMomentum, domain.StrategyBreakout}
	s.Params.Flags = map[string]bool{"useMacd": true}

	// 25 prices cover levels and volume but not MACD(12,26,9).
	in, err := BuildInputs(ctx, s, rampSnapshot(25), nil)
	require.NoError(t, err)
	assert.True(t, in.HasLevels)
	assert.True(t, in.HasVolume)
	assert.False(t, in.HasMACD)

	_, err = BuildInputs(ctx, s, rampSnapshot(10), nil)
	assert.ErrorIs(t, err, ErrInsufficientHistory)
}

func TestBuildInputs_OptionalFilters(t *testing.T) {
	ctx := context.Background()
	snap := rampSnapshot(40)

	breakout := newStrategy(domain.StrategyBreakout, map[string]float64{"minAtrPct": 0.0005, "atrPeriod": 5})
	in, err := BuildInputs(ctx, breakout, snap, nil)
	require.NoError(t, err)
	require.True(t, in.HasATR)
	assert.InDelta(t, 0.1, in.ATR, 1e-9)

	momentum := newStrategy(domain.StrategyMomentum, map[string]float64{"trendPeriod": 10})
	in, err = BuildInputs(ctx, momentum, snap, nil)
	require.NoError(t, err)
	require.True(t, in.HasTrend)
	assert.InDelta(t, 103.45, in.Trend, 1e-9)

	_, err = BuildInputs(ctx, newStrategy(domain.StrategyMomentum, map[string]float64{"trendPeriod": 50}), snap, nil)
	assert.ErrorIs(t, err, ErrInsufficientHistory)
}

func TestMinHistory(t *testing.T) {
	assert.Equal(t, 15, MinHistory(newStrategy(domain.StrategyMomentum, nil)))
	assert.Equal(t, 30, MinHistory(newStrategy(domain.StrategyMomentum, map[string]float64{"trendPeriod": 30})))
	assert.Equal(t, 0, MinHistory(newStrategy(domain.StrategyBreakout, nil)))
}

func TestBuildInputs_Oracle(t *testing.T) {
	ctx := context.Background()
	snap := rampSnapshot(40)
	s := newStrategy(domain.StrategyAdaptive, nil)

	oracle := new(MockOracle)
	oracle.On("Predict", ctx, snap).Return(ports.Prediction{Direction: domain.DirectionUp, Confidence: 0.9}, nil).Once()
	oracle.On("PatternScore", ctx, snap).Return(0.75, nil).Once()

	in, err := BuildInputs(ctx, s, snap, oracle)
	require.NoError(t, err)
	assert.True(t, in.HasPrediction)
	assert.Equal(t, 0.75, in.PatternScore)
	oracle.AssertExpectations(t)

	_, err = BuildInputs(ctx, s, snap, nil)
	assert.Error(t, err)

	failing := new(MockOracle)
	failing.On("Predict", ctx, snap).Return(ports.Prediction{}, errors.New("model offline"))
	_, err = BuildInputs(ctx, s, snap, failing)
	assert.ErrorContains(t, err, "model offline")
}
