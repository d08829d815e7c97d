package indicators

import (
	"context"
	"math"
)

// ATRConfig holds configuration for the Average True Range indicator
type ATRConfig struct {
	IndicatorConfig
}

// ATR implements the Average True Range indicator
type ATR struct {
	BaseIndicator
}

// NewATR creates a new Average True Range indicator instance
func NewATR(config ATRConfig) *ATR {
	return &ATR{BaseIndicator: BaseIndicator{Config: config.IndicatorConfig}}
}

// Name returns the name of the indicator
func (a *ATR) Name() string {
	return "ATR"
}

// RequiredDataPoints returns period+1 since every true range needs the previous close
func (a *ATR) RequiredDataPoints() int {
	return a.Config.Period + 1
}

// Calculate computes the ATR over aligned high, low and close series. When highs or lows do
// not line up with closes, close-to-close ranges are used instead.
func (a *ATR) Calculate(ctx context.Context, highs, lows, closes []float64) (float64, error) {
	return CalculateATR(highs, lows, closes, a.Config.Period)
}

// CalculateATR computes the Average True Range using Wilder's smoothing method.
func CalculateATR(highs, lows, closes []float64, period int) (float64, error) {
	if period <= 0 || len(closes) < period+1 {
		return 0, insufficient("ATR", len(closes), period+1)
	}
	if len(highs) != len(closes) || len(lows) != len(closes) {
		highs, lows = closes, closes
	}

	// True Range is the greatest of high-low, |high-prevClose| and |low-prevClose|
	trueRanges := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		prevClose := closes[i-1]
		tr := math.Max(highs[i]-lows[i], math.Max(math.Abs(highs[i]-prevClose), math.Abs(lows[i]-prevClose)))
		trueRanges = append(trueRanges, tr)
	}

	// First ATR is the simple average of the first period true ranges
	atr := mean(trueRanges[:period])
	p := float64(period)
	for _, tr := range trueRanges[period:] {
		atr = (atr*(p-1) + tr) / p
	}
	return atr, nil
}
