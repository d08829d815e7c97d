package strategies

import (
	"fmt"
	"math"

	"binaryOptionsBot/internal/domain"
)

type compositeConfig struct {
	ProximityThreshold float64 // fraction of the level price
	NeutralLow         float64
	NeutralHigh        float64
}

func compositeConfigFrom(p domain.Params) compositeConfig {
	return compositeConfig{
		ProximityThreshold: p.Float("proximityThreshold", 0.002),
		NeutralLow:         p.Float("neutralLow", 40),
		NeutralHigh:        p.Float("neutralHigh", 60),
	}
}

// evaluateComposite enters when price approaches an extreme while RSI is neutral and momentum
// points at the extreme.
func evaluateComposite(cfg compositeConfig, base float64, in Inputs) (Candidate, bool) {
	if !in.HasRSI || !in.HasLevels || !in.HasMomentum || cfg.ProximityThreshold <= 0 {
		return Candidate{}, false
	}
	if in.RSI < cfg.NeutralLow || in.RSI > cfg.NeutralHigh {
		return Candidate{}, false
	}

	if in.Levels.Resistance > 0 && in.Momentum > 0 {
		dist := math.Abs(in.Levels.Resistance-in.Price) / in.Levels.Resistance
		if dist <= cfg.ProximityThreshold {
			return Candidate{
				Family:     domain.StrategyComposite,
				Direction:  domain.DirectionUp,
				Confidence: scaleConfidence(base, 1-dist/cfg.ProximityThreshold),
				Reason:     fmt.Sprintf("price %.4f near resistance %.4f, rsi %.1f neutral", in.Price, in.Levels.Resistance, in.RSI),
			}, true
		}
	}
	if in.Levels.Support > 0 && in.Momentum < 0 {
		dist := math.Abs(in.Price-in.Levels.Support) / in.Levels.Support
		if dist <= cfg.ProximityThreshold {
			return Candidate{
				Family:     domain.StrategyComposite,
				Direction:  domain.DirectionDown,
				Confidence: scaleConfidence(base, 1-dist/cfg.ProximityThreshold),
				Reason:     fmt.Sprintf("price %.4f near support %.4f, rsi %.1f neutral", in.Price, in.Levels.Support, in.RSI),
			}, true
		}
	}
	return Candidate{}, false
}
