package strategies

import (
	"fmt"

	"binaryOptionsBot/internal/domain"
)

type reversalConfig struct {
	Overbought   float64
	Oversold     float64
	MinBandWidth float64
}

func reversalConfigFrom(p domain.Params) reversalConfig {
	return reversalConfig{
		Overbought:   p.Float("overbought", 70),
		Oversold:     p.Float("oversold", 30),
		MinBandWidth: p.Float("minBandWidth", 0),
	}
}

// evaluateReversal bets on mean reversion when price pierces a Bollinger band and RSI confirms exhaustion.
func evaluateReversal(cfg reversalConfig, base float64, in Inputs) (Candidate, bool) {
	if !in.HasBands || !in.HasRSI {
		return Candidate{}, false
	}
	halfWidth := in.Bands.Upper - in.Bands.Middle
	if halfWidth <= 0 || in.Bands.Width() < cfg.MinBandWidth {
		return Candidate{}, false
	}

	switch {
	case in.Price >= in.Bands.Upper && in.RSI >= cfg.Overbought:
		return Candidate{
			Family:     domain.StrategyReversal,
			Direction:  domain.DirectionDown,
			Confidence: scaleConfidence(base, (in.Price-in.Bands.Upper)/halfWidth),
			Reason:     fmt.Sprintf("price %.4f above upper band %.4f, rsi %.1f", in.Price, in.Bands.Upper, in.RSI),
		}, true
	case in.Price <= in.Bands.Lower && in.RSI <= cfg.Oversold:
		return Candidate{
			Family:     domain.StrategyReversal,
			Direction:  domain.DirectionUp,
			Confidence: scaleConfidence(base, (in.Bands.Lower-in.Price)/halfWidth),
			Reason:     fmt.Sprintf("price %.4f below lower band %.4f, rsi %.1f", in.Price, in.Bands.Lower, in.RSI),
		}, true
	}
	return Candidate{}, false
}
