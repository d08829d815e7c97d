package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"binaryOptionsBot/internal/events"
	"binaryOptionsBot/internal/ports"
)

// StrategyLoop is the signal-producing side driven by the Runner.
type StrategyLoop interface {
	Run(ctx context.Context) error
}

// Runner wires the engine, the strategy loop and the event stream into one process lifetime.
type Runner struct {
	engine     *Engine
	strategies StrategyLoop
	stream     *events.Stream
	logger     ports.Logger
	statsEvery time.Duration

	mu     sync.Mutex
	counts map[events.Kind]int
}

// NewRunner creates a Runner. statsEvery <= 0 disables the periodic stats log.
func NewRunner(engine *Engine, strategies StrategyLoop, stream *events.Stream, logger ports.Logger, statsEvery time.Duration) (*Runner, error) {
	if engine == nil || strategies == nil || stream == nil || logger == nil {
		return nil, fmt.Errorf("missing required dependencies for runner")
	}
	return &Runner{
		engine:     engine,
		strategies: strategies,
		stream:     stream,
		logger:     logger,
		statsEvery: statsEvery,
		counts:     make(map[events.Kind]int),
	}, nil
}

// Run starts trading and blocks until ctx is cancelled or SIGINT/SIGTERM is received.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info(ctx, "Starting trading runner...")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			r.logger.Info(ctx, "Received shutdown signal", map[string]interface{}{"signal": sig.String()})
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := r.engine.StartExecution(ctx); err != nil {
		return fmt.Errorf("failed to start trading engine: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.strategies.Run(gctx)
	})
	g.Go(func() error {
		r.consume(gctx)
		return nil
	})
	if r.statsEvery > 0 {
		g.Go(func() error {
			r.report(gctx)
			return nil
		})
	}

	err := g.Wait()
	r.engine.StopExecution()
	r.logStats(context.Background())
	r.logger.Info(context.Background(), "Trading runner stopped")
	return err
}

// EventCounts returns how many events of each kind were consumed.
func (r *Runner) EventCounts() map[events.Kind]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[events.Kind]int, len(r.counts))
	for k, v := range r.counts {
		out[k] = v
	}
	return out
}

func (r *Runner) consume(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-r.stream.C():
			if !ok {
				return
			}
			r.handle(ctx, ev)
		}
	}
}

func (r *Runner) handle(ctx context.Context, ev events.Event) {
	r.mu.Lock()
	r.counts[ev.Kind()]++
	r.mu.Unlock()

	switch e := ev.(type) {
	case events.EmergencyStop:
		r.logger.Error(ctx, ports.ErrEmergencyStopped, "Trading halted, manual restart required", map[string]interface{}{
			"tradesClosed": e.Count,
			"reason":       e.Reason,
		})
	case events.TradeClosed:
		r.logger.Debug(ctx, "Event: trade closed", map[string]interface{}{
			"tradeID": e.Trade.ID,
			"status":  e.Trade.Status,
			"profit":  e.Trade.Profit,
		})
	case events.StrategyRetired:
		r.logger.Info(ctx, "Event: strategy retired", map[string]interface{}{
			"strategyID": e.StrategyID,
			"winRate":    e.WinRate,
			"trades":     e.Trades,
		})
	case events.StrategyCreated:
		r.logger.Info(ctx, "Event: strategy created", map[string]interface{}{
			"strategyID": e.Strategy.ID,
			"name":       e.Strategy.Name,
			"origin":     e.Origin,
		})
	default:
		r.logger.Debug(ctx, "Event: "+string(ev.Kind()))
	}
}

func (r *Runner) report(ctx context.Context) {
	ticker := time.NewTicker(r.statsEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.logStats(ctx)
		}
	}
}

func (r *Runner) logStats(ctx context.Context) {
	s := r.engine.Stats()
	fields := map[string]interface{}{
		"health":         s.Health,
		"activeTrades":   s.ActiveTrades,
		"queuedSignals":  s.QueuedSignals,
		"executed":       s.Executed,
		"failed":         s.Failed,
		"closed":         s.Closed,
		"timedOut":       s.TimedOut,
		"signalsDropped": s.SignalsDropped,
		"eventsDropped":  s.EventsDropped,
	}
	if s.Performance != nil && s.Performance.TotalTrades > 0 {
		fields["winRate"] = fmt.Sprintf("%.2f%%", s.Performance.WinRate*100)
		fields["totalProfit"] = fmt.Sprintf("%.2f", s.Performance.TotalProfit)
	}
	r.logger.Info(ctx, "Engine stats", fields)
}
