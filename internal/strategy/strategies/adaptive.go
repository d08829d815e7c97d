package strategies

import (
	"fmt"

	"binaryOptionsBot/internal/domain"
)

type adaptiveConfig struct {
	PredictionThreshold float64
	PatternThreshold    float64
}

func adaptiveConfigFrom(p domain.Params) adaptiveConfig {
	return adaptiveConfig{
		PredictionThreshold: p.Float("predictionThreshold", 0.7),
		PatternThreshold:    p.Float("patternThreshold", 0.6),
	}
}

// evaluateAdaptive follows the oracle when both its prediction and pattern scores clear their thresholds.
func evaluateAdaptive(cfg adaptiveConfig, base float64, in Inputs) (Candidate, bool) {
	if !in.HasPrediction || !in.HasPattern || !in.Prediction.Direction.Valid() {
		return Candidate{}, false
	}
	if in.Prediction.Confidence < cfg.PredictionThreshold || in.PatternScore < cfg.PatternThreshold {
		return Candidate{}, false
	}
	return Candidate{
		Family:     domain.StrategyAdaptive,
		Direction:  in.Prediction.Direction,
		Confidence: scaleConfidence(base, (in.Prediction.Confidence+in.PatternScore)/2),
		Reason:     fmt.Sprintf("prediction %.2f, pattern %.2f", in.Prediction.Confidence, in.PatternScore),
	}, true
}
