package strategies

import (
	"fmt"

	"binaryOptionsBot/internal/domain"
)

type breakoutConfig struct {
	VolumeMultiplier float64
	MinATRPct        float64 // minimum ATR relative to price, 0 disables the volatility filter
}

func breakoutConfigFrom(p domain.Params) breakoutConfig {
	return breakoutConfig{
		VolumeMultiplier: p.Float("volumeMultiplier", 1.5),
		MinATRPct:        p.Float("minAtrPct", 0),
	}
}

// evaluateBreakout follows price through a recent extreme when volume is elevated.
func evaluateBreakout(cfg breakoutConfig, base float64, in Inputs) (Candidate, bool) {
	if !in.HasLevels || !in.HasVolume || in.AverageVolume <= 0 {
		return Candidate{}, false
	}
	ratio := in.Volume / in.AverageVolume
	if ratio < cfg.VolumeMultiplier {
		return Candidate{}, false
	}
	if cfg.MinATRPct > 0 && (!in.HasATR || in.Price <= 0 || in.ATR/in.Price < cfg.MinATRPct) {
		return Candidate{}, false
	}
	// Strength grows as volume reaches twice the required multiple.
	strength := (ratio - cfg.VolumeMultiplier) / cfg.VolumeMultiplier

	switch {
	case in.Price > in.Levels.Resistance:
		return Candidate{
			Family:     domain.StrategyBreakout,
			Direction:  domain.DirectionUp,
			Confidence: scaleConfidence(base, strength),
			Reason:     fmt.Sprintf("price %.4f cleared resistance %.4f on %.1fx volume", in.Price, in.Levels.Resistance, ratio),
		}, true
	case in.Price < in.Levels.Support:
		return Candidate{
			Family:     domain.StrategyBreakout,
			Direction:  domain.DirectionDown,
			Confidence: scaleConfidence(base, strength),
			Reason:     fmt.Sprintf("price %.4f broke support %.4f on %.1fx volume", in.Price, in.Levels.Support, ratio),
		}, true
	}
	return Candidate{}, false
}
