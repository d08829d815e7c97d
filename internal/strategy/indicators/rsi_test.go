package indicators

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRSI_Calculate(t *testing.T) {
	tests := []struct {
		name          string
		period        int
		prices        []float64
		expectedValue float64
		expectError   bool
	}{
		{
			name:          "RSI with sufficient data",
			period:        3,
			prices:        []float64{100, 102, 101, 103, 102, 104}, // +2 -1 +2 -1 +2
			expectedValue: 77.272727,
		},
		{
			name:        "Insufficient data",
			period:      7,
			prices:      []float64{100, 102, 101, 103, 102, 104},
			expectError: true,
		},
		{
			name:          "All gains",
			period:        3,
			prices:        []float64{100, 102, 104, 106},
			expectedValue: 100.0,
		},
		{
			name:          "All losses",
			period:        3,
			prices:        []float64{106, 104, 102, 100},
			expectedValue: 0.0,
		},
		{
			name:          "Flat prices",
			period:        3,
			prices:        []float64{100, 100, 100, 100, 100},
			expectedValue: 50.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rsi := NewRSI(RSIConfig{IndicatorConfig: IndicatorConfig{Period: tt.period}})
			value, err := rsi.Calculate(context.Background(), tt.prices)

			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.expectedValue, value, 0.0001)
		})
	}
}

func TestRSI_NameAndRequiredPoints(t *testing.T) {
	rsi := NewRSI(RSIConfig{IndicatorConfig: IndicatorConfig{Period: 14}})
	assert.Equal(t, "RSI", rsi.Name())
	assert.Equal(t, 15, rsi.RequiredDataPoints())
}
