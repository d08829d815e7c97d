package indicators

import "context"

// Momentum is the fractional price change over Period bars: (last - prices[n-1-period]) / prices[n-1-period].
type Momentum struct {
	BaseIndicator
}

// NewMomentum creates a momentum indicator over period bars.
func NewMomentum(period int) *Momentum {
	return &Momentum{BaseIndicator: BaseIndicator{Config: IndicatorConfig{Period: period}}}
}

// Name returns the name of the indicator
func (m *Momentum) Name() string {
	return "Momentum"
}

// RequiredDataPoints returns period+1
func (m *Momentum) RequiredDataPoints() int {
	return m.Config.Period + 1
}

// Calculate computes the momentum value
func (m *Momentum) Calculate(ctx context.Context, prices []float64) (float64, error) {
	return CalculateMomentum(prices, m.Config.Period)
}

// CalculateMomentum returns the rate of change over period bars. A zero base price yields 0.
func CalculateMomentum(prices []float64, period int) (float64, error) {
	if period <= 0 || len(prices) <= period {
		return 0, insufficient("Momentum", len(prices), period)
	}
	last := prices[len(prices)-1]
	base := prices[len(prices)-1-period]
	if base == 0 {
		return 0, nil
	}
	return (last - base) / base, nil
}
