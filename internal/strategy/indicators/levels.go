package indicators

// Levels are the support and resistance extremes of a lookback window.
type Levels struct {
	Support    float64
	Resistance float64
}

// SupportResistance returns the min and max of the lookback prices preceding the last one,
// so the current price can be compared against them.
func SupportResistance(prices []float64, lookback int) (Levels, error) {
	if lookback <= 0 || len(prices) < lookback+1 {
		return Levels{}, insufficient("Support/Resistance", len(prices), lookback+1)
	}
	window := prices[len(prices)-1-lookback : len(prices)-1]
	lv := Levels{Support: window[0], Resistance: window[0]}
	for _, p := range window[1:] {
		if p < lv.Support {
			lv.Support = p
		}
		if p > lv.Resistance {
			lv.Resistance = p
		}
	}
	return lv, nil
}

// AverageVolume returns the mean of the lookback volumes preceding the last one.
func AverageVolume(volumes []float64, lookback int) (float64, error) {
	if lookback <= 0 || len(volumes) < lookback+1 {
		return 0, insufficient("Average Volume", len(volumes), lookback+1)
	}
	return mean(volumes[len(volumes)-1-lookback : len(volumes)-1]), nil
}
