package backtesting

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"binaryOptionsBot/internal/domain"
	"binaryOptionsBot/internal/ports"
	"binaryOptionsBot/internal/strategy/analytics"
	"binaryOptionsBot/internal/strategy/strategies"
)

// ReplayConfig holds configuration for replaying strategies over historical klines
type ReplayConfig struct {
	Window        int     // Klines visible to each evaluation
	ExpiryBars    int     // Bars between entry and settlement
	Stake         float64 // Used when a strategy has no baseStake param
	PayoutRate    float64
	MinConfidence float64
	InitialFunds  float64
	OutcomeWindow int // Size of the recent-outcome window in strategy performance
	Oracle        ports.PredictionOracle
}

// ReplayResult holds the results of one strategy replay
type ReplayResult struct {
	Strategy *domain.Strategy // Copy with performance recorded from the replayed trades
	Trades   []*domain.Trade
	Metrics  *analytics.PerformanceMetrics
	Skipped  int // Bars where indicators could not be computed
}

func (c ReplayConfig) withDefaults() ReplayConfig {
	if c.Window <= 0 {
		c.Window = 100
	}
	if c.ExpiryBars <= 0 {
		c.ExpiryBars = 1
	}
	if c.Stake <= 0 {
		c.Stake = 10
	}
	if c.PayoutRate <= 0 {
		c.PayoutRate = 0.85
	}
	if c.InitialFunds <= 0 {
		c.InitialFunds = 1000
	}
	if c.OutcomeWindow <= 0 {
		c.OutcomeWindow = 50
	}
	return c
}

// Replay walks klines in order and evaluates the strategy on every closed bar. A candidate opens
// one contract at that bar's close which settles at the close ExpiryBars later; the next entry is
// considered after settlement. Klines must be sorted by open time.
func Replay(ctx context.Context, strategy domain.Strategy, klines []*domain.Kline, config ReplayConfig) (*ReplayResult, error) {
	config = config.withDefaults()
	if len(klines) <= config.ExpiryBars {
		return nil, fmt.Errorf("not enough data points for strategy %s", strategy.ID)
	}

	cloned := strategy.Clone()
	s := &cloned
	s.Performance = domain.StrategyPerformance{}
	result := &ReplayResult{Strategy: s}
	stake := s.Params.Float("baseStake", config.Stake)
	window := max(config.Window, strategies.MinHistory(*s))

	for i := 0; i+config.ExpiryBars < len(klines); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		entry := klines[i]
		snap := snapshot(s.Asset, klines[max(0, i-window+1):i+1])
		in, err := strategies.BuildInputs(ctx, *s, snap, config.Oracle)
		if err != nil {
			if errors.Is(err, strategies.ErrInsufficientHistory) || errors.Is(err, ports.ErrNoMarketData) {
				result.Skipped++
				continue
			}
			return nil, fmt.Errorf("failed to evaluate strategy %s at %s: %w", s.ID, entry.CloseTime, err)
		}
		c, ok := strategies.Evaluate(*s, in)
		if !ok || c.Confidence < config.MinConfidence {
			continue
		}

		exit := klines[i+config.ExpiryBars]
		trade := &domain.Trade{
			ID:         fmt.Sprintf("%s-%d", s.ID, len(result.Trades)+1),
			StrategyID: s.ID,
			Asset:      s.Asset,
			Direction:  c.Direction,
			Stake:      stake,
			Duration:   int(exit.CloseTime.Sub(entry.CloseTime).Seconds()),
			Confidence: c.Confidence,
			EntryPrice: entry.Close,
			EntryTime:  entry.CloseTime,
			Status:     domain.TradeActive,
		}
		profit := domain.BinaryProfit(c.Direction, stake, entry.Close, exit.Close, config.PayoutRate)
		if err := trade.Close(domain.TradeClosed, exit.Close, profit, exit.CloseTime); err != nil {
			return nil, err
		}
		analytics.RecordOutcome(&s.Performance, profit, exit.CloseTime, config.OutcomeWindow)
		result.Trades = append(result.Trades, trade)

		// Skip the bars the contract was open for
		i += config.ExpiryBars - 1
	}

	result.Metrics = analytics.AnalyzePerformance(result.Trades, config.InitialFunds)
	return result, nil
}

// ReplayAll replays every strategy over the same klines concurrently. Results keep the order of
// the input strategies.
func ReplayAll(ctx context.Context, strats []*domain.Strategy, klines []*domain.Kline, config ReplayConfig) ([]*ReplayResult, error) {
	results := make([]*ReplayResult, len(strats))
	g, gctx := errgroup.WithContext(ctx)
	for i, s := range strats {
		i, s := i, s
		g.Go(func() error {
			r, err := Replay(gctx, *s, klines, config)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func snapshot(asset string, window []*domain.Kline) *ports.MarketSnapshot {
	last := window[len(window)-1]
	return &ports.MarketSnapshot{
		Asset:         asset,
		Price:         last.Close,
		PriceHistory:  domain.Closes(window),
		HighHistory:   domain.Highs(window),
		LowHistory:    domain.Lows(window),
		Volume:        last.Volume,
		VolumeHistory: domain.Volumes(window),
		Time:          last.CloseTime,
	}
}
