package ports

import (
	"context"

	"binaryOptionsBot/internal/domain"
)

// Prediction is a model's directional call.
type Prediction struct {
	Direction  domain.Direction
	Confidence float64
}

// PredictionOracle scores market snapshots for the adaptive strategy family.
type PredictionOracle interface {
	Predict(ctx context.Context, snapshot *MarketSnapshot) (Prediction, error)
	// PatternScore returns a value in [0,1].
	PatternScore(ctx context.Context, snapshot *MarketSnapshot) (float64, error)
}
