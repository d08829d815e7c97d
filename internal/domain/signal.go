package domain

import (
	"fmt"
	"math"
	"time"
)

// TradeSignal is a request to open one binary contract. It is treated as an immutable value.
type TradeSignal struct {
	Asset      string
	Direction  Direction
	Stake      float64
	Duration   int // seconds
	Confidence float64
	StrategyID string
	CreatedAt  time.Time
	QueuedAt   time.Time
}

// Validate checks the signal shape against the stake bounds.
func (s TradeSignal) Validate(minStake, maxStake float64) error {
	if s.Asset == "" {
		return fmt.Errorf("asset is empty")
	}
	if !s.Direction.Valid() {
		return fmt.Errorf("unsupported direction %q", s.Direction)
	}
	if !finite(s.Stake) || s.Stake < minStake || s.Stake > maxStake {
		return fmt.Errorf("stake %.2f outside [%.2f, %.2f]", s.Stake, minStake, maxStake)
	}
	if s.Duration <= 0 {
		return fmt.Errorf("duration must be positive, got %d", s.Duration)
	}
	if !finite(s.Confidence) || s.Confidence < 0 || s.Confidence > 1 {
		return fmt.Errorf("confidence %.3f outside [0, 1]", s.Confidence)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
