package ports

import (
	"context"

	"binaryOptionsBot/internal/domain"
)

// TradeRepository defines the interface for storing and retrieving trades.
type TradeRepository interface {
	// SaveTrade inserts or updates a trade by ID.
	SaveTrade(ctx context.Context, trade *domain.Trade) error
	// FindTradesByStrategy retrieves the most recent trades of a strategy, up to a limit.
	FindTradesByStrategy(ctx context.Context, strategyID string, limit int) ([]*domain.Trade, error)
	// FindRecentTrades retrieves the most recent terminal trades, up to a limit.
	FindRecentTrades(ctx context.Context, limit int) ([]*domain.Trade, error)
}

// StrategyRepository defines the interface for storing and retrieving strategies.
type StrategyRepository interface {
	// SaveStrategy inserts or updates a strategy by ID.
	SaveStrategy(ctx context.Context, strategy *domain.Strategy) error
	// FindStrategyByID returns nil, nil if not found.
	FindStrategyByID(ctx context.Context, id string) (*domain.Strategy, error)
	// FindStrategiesByStatus retrieves strategies with the given status ordered by creation time.
	FindStrategiesByStatus(ctx context.Context, status domain.StrategyStatus) ([]*domain.Strategy, error)
}

// Persistence is the fire-and-forget storage contract used by the engine and the manager.
// Failures are logged by the implementation and never reported to the caller.
type Persistence interface {
	SaveTrade(trade domain.Trade)
	SaveStrategy(strategy domain.Strategy)
}
