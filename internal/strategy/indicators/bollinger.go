package indicators

import "math"

// Bands is a Bollinger envelope around a simple moving average.
type Bands struct {
	Upper  float64
	Middle float64
	Lower  float64
}

// Width returns the band width relative to the middle line.
func (b Bands) Width() float64 {
	if b.Middle == 0 {
		return 0
	}
	return (b.Upper - b.Lower) / b.Middle
}

// BollingerBands computes the SMA of the last period prices plus and minus k population standard deviations.
func BollingerBands(prices []float64, period int, k float64) (Bands, error) {
	mid, err := SMA(prices, period)
	if err != nil {
		return Bands{}, insufficient("Bollinger Bands", len(prices), period)
	}
	window := prices[len(prices)-period:]

	variance := 0.0
	for _, p := range window {
		d := p - mid
		variance += d * d
	}
	sd := math.Sqrt(variance / float64(period))

	return Bands{Upper: mid + k*sd, Middle: mid, Lower: mid - k*sd}, nil
}
