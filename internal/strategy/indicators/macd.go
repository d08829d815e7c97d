package indicators

import "fmt"

// MACDValue holds the latest MACD line, signal line and histogram.
type MACDValue struct {
	MACD      float64
	Signal    float64
	Histogram float64
}

// MACD computes the fast/slow EMA convergence and its signal EMA.
func MACD(prices []float64, fast, slow, signal int) (MACDValue, error) {
	if fast <= 0 || slow <= 0 || signal <= 0 || fast >= slow {
		return MACDValue{}, fmt.Errorf("invalid MACD periods fast=%d slow=%d signal=%d", fast, slow, signal)
	}
	if len(prices) < slow+signal-1 {
		return MACDValue{}, insufficient("MACD", len(prices), slow+signal-1)
	}

	fastSeries, err := EMASeries(prices, fast)
	if err != nil {
		return MACDValue{}, err
	}
	slowSeries, err := EMASeries(prices, slow)
	if err != nil {
		return MACDValue{}, err
	}

	// Align both series on the price index of the slow EMA's first value.
	offset := slow - fast
	line := make([]float64, len(slowSeries))
	for i := range slowSeries {
		line[i] = fastSeries[i+offset] - slowSeries[i]
	}

	signalSeries, err := EMASeries(line, signal)
	if err != nil {
		return MACDValue{}, err
	}
	last := line[len(line)-1]
	sig := signalSeries[len(signalSeries)-1]
	return MACDValue{MACD: last, Signal: sig, Histogram: last - sig}, nil
}
