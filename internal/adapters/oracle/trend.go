package oracle

import (
	"context"
	"fmt"
	"math"

	"binaryOptionsBot/internal/domain"
	"binaryOptionsBot/internal/ports"
)

// Config controls the trend model.
type Config struct {
	Lookback    int     // Prices used by the regression, default 20
	TStatScale  float64 // t-statistic mapped to ~0.88 confidence, default 3
	MinVariance float64 // Below this price variance the market is treated as flat
}

// TrendOracle implements ports.PredictionOracle with a least-squares trend fit over recent prices.
type TrendOracle struct {
	cfg Config
}

// NewTrendOracle creates a trend oracle.
func NewTrendOracle(cfg Config) *TrendOracle {
	if cfg.Lookback < 3 {
		cfg.Lookback = 20
	}
	if cfg.TStatScale <= 0 {
		cfg.TStatScale = 3
	}
	if cfg.MinVariance <= 0 {
		cfg.MinVariance = 1e-12
	}
	return &TrendOracle{cfg: cfg}
}

type fit struct {
	slope  float64
	tStat  float64
	r2     float64
	points int
}

// Predict calls the direction of the fitted slope. Confidence grows from 0.5 with the
// slope's t-statistic.
func (o *TrendOracle) Predict(ctx context.Context, snap *ports.MarketSnapshot) (ports.Prediction, error) {
	f, err := o.fit(snap)
	if err != nil {
		return ports.Prediction{}, err
	}
	dir := domain.DirectionUp
	if f.slope < 0 {
		dir = domain.DirectionDown
	}
	confidence := 0.5 + 0.5*math.Tanh(math.Abs(f.tStat)/o.cfg.TStatScale)
	return ports.Prediction{Direction: dir, Confidence: confidence}, nil
}

// PatternScore averages the fit's R² with the share of returns agreeing with the net move.
func (o *TrendOracle) PatternScore(ctx context.Context, snap *ports.MarketSnapshot) (float64, error) {
	f, err := o.fit(snap)
	if err != nil {
		return 0, err
	}
	prices := o.window(snap)
	up, down := 0, 0
	for i := 1; i < len(prices); i++ {
		switch {
		case prices[i] > prices[i-1]:
			up++
		case prices[i] < prices[i-1]:
			down++
		}
	}
	consistency := float64(abs(up-down)) / float64(len(prices)-1)
	return clamp01((f.r2 + consistency) / 2), nil
}

func (o *TrendOracle) window(snap *ports.MarketSnapshot) []float64 {
	prices := snap.PriceHistory
	if len(prices) > o.cfg.Lookback {
		prices = prices[len(prices)-o.cfg.Lookback:]
	}
	return prices
}

func (o *TrendOracle) fit(snap *ports.MarketSnapshot) (fit, error) {
	if snap == nil {
		return fit{}, fmt.Errorf("nil snapshot: %w", ports.ErrNoMarketData)
	}
	y := o.window(snap)
	n := len(y)
	if n < 3 {
		return fit{}, fmt.Errorf("need at least 3 prices, got %d: %w", n, ports.ErrNoMarketData)
	}

	var sumX, sumY float64
	for i, v := range y {
		sumX += float64(i)
		sumY += v
	}
	meanX, meanY := sumX/float64(n), sumY/float64(n)

	var sxx, sxy, syy float64
	for i, v := range y {
		dx, dy := float64(i)-meanX, v-meanY
		sxx += dx * dx
		sxy += dx * dy
		syy += dy * dy
	}
	if syy/float64(n) < o.cfg.MinVariance {
		return fit{points: n}, nil
	}

	slope := sxy / sxx
	sse := syy - slope*sxy
	if sse < 0 {
		sse = 0
	}
	r2 := 1 - sse/syy

	tStat := math.Inf(1)
	if se := math.Sqrt(sse / float64(n-2) / sxx); se > 0 {
		tStat = slope / se
	} else if slope < 0 {
		tStat = math.Inf(-1)
	}
	return fit{slope: slope, tStat: tStat, r2: clamp01(r2), points: n}, nil
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
