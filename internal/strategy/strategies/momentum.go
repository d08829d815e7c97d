package strategies

import (
	"fmt"

	"binaryOptionsBot/internal/domain"
)

type momentumConfig struct {
	Overbought float64
	Oversold   float64
	MinMove    float64 // minimum absolute momentum
	UseMACD    bool
}

func momentumConfigFrom(s domain.Strategy) momentumConfig {
	return momentumConfig{
		Overbought: s.Params.Float("overbought", 70),
		Oversold:   s.Params.Float("oversold", 30),
		MinMove:    s.Params.Float("momentumThreshold", 0),
		UseMACD:    s.Uses(domain.IndicatorMACD) || s.Params.Flag("useMacd", false),
	}
}

// evaluateMomentum enters in the direction of an RSI extreme when momentum has the same sign.
func evaluateMomentum(cfg momentumConfig, base float64, in Inputs) (Candidate, bool) {
	if !in.HasRSI || !in.HasMomentum {
		return Candidate{}, false
	}

	var dir domain.Direction
	var extremity float64
	switch {
	case in.RSI >= cfg.Overbought && in.Momentum > cfg.MinMove:
		dir = domain.DirectionUp
		extremity = (in.RSI - cfg.Overbought) / (100 - cfg.Overbought + 1e-9)
	case in.RSI <= cfg.Oversold && in.Momentum < -cfg.MinMove:
		dir = domain.DirectionDown
		extremity = (cfg.Oversold - in.RSI) / (cfg.Oversold + 1e-9)
	default:
		return Candidate{}, false
	}

	// Trade with the moving average when one was computed.
	if in.HasTrend && ((dir == domain.DirectionUp && in.Price <= in.Trend) || (dir == domain.DirectionDown && in.Price >= in.Trend)) {
		return Candidate{}, false
	}

	if cfg.UseMACD {
		if !in.HasMACD {
			return Candidate{}, false
		}
		if (dir == domain.DirectionUp && in.MACD.Histogram <= 0) || (dir == domain.DirectionDown && in.MACD.Histogram >= 0) {
			return Candidate{}, false
		}
	}

	return Candidate{
		Family:     domain.StrategyMomentum,
		Direction:  dir,
		Confidence: scaleConfidence(base, extremity),
		Reason:     fmt.Sprintf("rsi %.1f with momentum %.4f", in.RSI, in.Momentum),
	}, true
}
