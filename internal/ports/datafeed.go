package ports

import (
	"context"
	"time"
)

// MarketSnapshot is the market state of one asset at a point in time.
type MarketSnapshot struct {
	Asset         string
	Price         float64
	PriceHistory  []float64 // oldest first, last element is the most recent close
	HighHistory   []float64 // aligned with PriceHistory, may be empty
	LowHistory    []float64
	Volume        float64
	VolumeHistory []float64
	Spread        float64
	Time          time.Time
}

// DataFeed provides market snapshots.
type DataFeed interface {
	Snapshot(ctx context.Context, asset string) (*MarketSnapshot, error)
}

// PriceSource provides the latest traded price of an asset.
type PriceSource interface {
	GetTickerPrice(ctx context.Context, symbol string) (float64, error)
}
