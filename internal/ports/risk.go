package ports

import (
	"context"

	"binaryOptionsBot/internal/domain"
)

// RiskAssessment is the verdict of a risk gate on a single signal.
type RiskAssessment struct {
	Approved bool
	Reason   string
}

// RiskGate validates signals against the account risk policy.
type RiskGate interface {
	Assess(ctx context.Context, signal domain.TradeSignal) (RiskAssessment, error)
}
