package indicators

import (
	"context"
	"fmt"
)

// Indicator represents a technical indicator that can be calculated from a price window
type Indicator interface {
	// Calculate computes the indicator value for the given closing prices, oldest first
	Calculate(ctx context.Context, prices []float64) (float64, error)

	// RequiredDataPoints returns the minimum number of prices needed for calculation
	RequiredDataPoints() int

	// Name returns the name of the indicator
	Name() string
}

// IndicatorConfig holds common configuration for indicators
type IndicatorConfig struct {
	Period int
}

// BaseIndicator provides common functionality for indicators
type BaseIndicator struct {
	Config IndicatorConfig
}

// RequiredDataPoints returns the minimum number of prices needed for calculation
func (b *BaseIndicator) RequiredDataPoints() int {
	return b.Config.Period
}

func insufficient(name string, have, period int) error {
	return fmt.Errorf("not enough data (%d) to calculate %s for period %d", have, name, period)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}
