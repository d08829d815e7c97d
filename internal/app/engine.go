package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jpillora/backoff"

	"binaryOptionsBot/internal/domain"
	"binaryOptionsBot/internal/events"
	"binaryOptionsBot/internal/ports"
	"binaryOptionsBot/internal/strategy/analytics"
)

const maxClosedHistory = 500 // Closed trades kept for the stats report

// HealthStatus is the engine's self-reported condition.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthHalted   HealthStatus = "halted"
)

// EngineConfig holds the Trading Engine settings.
type EngineConfig struct {
	MaxConcurrentTrades    int
	QueueCapacity          int
	TickInterval           time.Duration
	TradeTimeout           time.Duration
	ExecuteTimeout         time.Duration
	StatusTimeout          time.Duration
	MaxBackoff             time.Duration
	EmergencyStopThreshold float64
	MinStake               float64
	MaxStake               float64
	PayoutRate             float64 // Used when the venue reports no profit
	DegradedAfterFailures  int
}

// TradeObserver is notified about trade lifecycle changes.
type TradeObserver interface {
	TradeOpened(ctx context.Context, trade domain.Trade)
	TradeClosed(ctx context.Context, trade domain.Trade)
}

// EngineStats is a point-in-time view of the engine.
type EngineStats struct {
	Running             bool
	EmergencyStopped    bool
	StopReason          string
	Health              HealthStatus
	ActiveTrades        int
	QueuedSignals       int
	SignalsDropped      uint64
	EventsDropped       uint64
	Executed            int
	Failed              int
	Closed              int
	Cancelled           int
	TimedOut            int
	ConsecutiveFailures int
	UnrealizedProfit    float64
	Performance         *analytics.PerformanceMetrics
}

// eventCounter is implemented by publishers that can lose events.
type eventCounter interface {
	Dropped() uint64
}

// Engine admits queued signals, executes them as binary contracts, tracks their lifecycle and
// halts trading when the aggregate unrealized loss crosses the emergency threshold.
type Engine struct {
	cfg       EngineConfig
	logger    ports.Logger
	executor  ports.PlatformExecutor
	riskGate  ports.RiskGate
	store     ports.Persistence
	publisher events.Publisher
	observers []TradeObserver

	queue  *SignalQueue
	trades *TradeTable
	now    func() time.Time

	mu         sync.Mutex // Protects the run state below
	running    bool
	cancel     context.CancelFunc
	done       chan struct{}
	stopReason string

	halted   atomic.Bool
	failures atomic.Int32 // Consecutive collaborator failures

	statsMu   sync.Mutex
	executed  int
	failed    int
	closed    int
	cancelled int
	timedOut  int
	history   []*domain.Trade
}

// NewEngine creates a Trading Engine. store and publisher may be nil.
func NewEngine(
	cfg EngineConfig,
	logger ports.Logger,
	executor ports.PlatformExecutor,
	riskGate ports.RiskGate,
	store ports.Persistence,
	publisher events.Publisher,
	observers ...TradeObserver,
) (*Engine, error) {
	if logger == nil || executor == nil || riskGate == nil {
		return nil, fmt.Errorf("missing required dependencies for trading engine")
	}
	if cfg.MaxConcurrentTrades <= 0 {
		return nil, fmt.Errorf("MaxConcurrentTrades must be positive")
	}
	if cfg.MinStake <= 0 || cfg.MinStake > cfg.MaxStake {
		return nil, fmt.Errorf("invalid stake bounds [%.2f, %.2f]", cfg.MinStake, cfg.MaxStake)
	}
	if cfg.EmergencyStopThreshold <= 0 {
		return nil, fmt.Errorf("EmergencyStopThreshold must be positive")
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.TradeTimeout <= 0 {
		cfg.TradeTimeout = 5 * time.Minute
	}
	if cfg.ExecuteTimeout <= 0 {
		cfg.ExecuteTimeout = 30 * time.Second
	}
	if cfg.StatusTimeout <= 0 {
		cfg.StatusTimeout = 10 * time.Second
	}
	if cfg.MaxBackoff < cfg.TickInterval {
		cfg.MaxBackoff = 30 * cfg.TickInterval
	}
	if cfg.PayoutRate <= 0 {
		cfg.PayoutRate = 0.85
	}
	if cfg.DegradedAfterFailures <= 0 {
		cfg.DegradedAfterFailures = 5
	}
	if store == nil {
		store = noopStore{}
	}
	if publisher == nil {
		publisher = events.Discard{}
	}

	return &Engine{
		cfg:       cfg,
		logger:    logger,
		executor:  executor,
		riskGate:  riskGate,
		store:     store,
		publisher: publisher,
		observers: observers,
		queue:     NewSignalQueue(cfg.QueueCapacity),
		trades:    NewTradeTable(cfg.MaxConcurrentTrades),
		now:       time.Now,
	}, nil
}

type noopStore struct{}

func (noopStore) SaveTrade(domain.Trade)       {}
func (noopStore) SaveStrategy(domain.Strategy) {}

// QueueSignal enqueues a signal for execution. It returns false once trading is halted.
func (e *Engine) QueueSignal(signal domain.TradeSignal) bool {
	if e.halted.Load() {
		return false
	}
	signal.QueuedAt = e.now()
	old, evicted, accepted := e.queue.Push(signal)
	if !accepted {
		return false
	}
	if evicted {
		e.logger.Debug(context.Background(), "Engine.QueueSignal: queue full, oldest signal dropped", map[string]interface{}{
			"strategyID": old.StrategyID,
			"asset":      old.Asset,
			"queuedAt":   old.QueuedAt,
		})
		e.publisher.Publish(events.SignalDropped{Signal: old, At: e.now()})
	}
	return true
}

// AddObserver registers a trade observer. It must be called before StartExecution.
func (e *Engine) AddObserver(o TradeObserver) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return ports.ErrAlreadyRunning
	}
	e.observers = append(e.observers, o)
	return nil
}

// StartExecution starts the admission and monitoring loop.
func (e *Engine) StartExecution(ctx context.Context) error {
	if e.halted.Load() {
		return ports.ErrEmergencyStopped
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return ports.ErrAlreadyRunning
	}
	loopCtx, cancel := context.WithCancel(ctx)
	e.running = true
	e.cancel = cancel
	e.done = make(chan struct{})
	go e.run(loopCtx, e.done)

	e.logger.Info(ctx, "Trading engine started", map[string]interface{}{
		"tickInterval":        e.cfg.TickInterval.String(),
		"maxConcurrentTrades": e.cfg.MaxConcurrentTrades,
		"queueCapacity":       e.queue.capacity,
	})
	return nil
}

// StopExecution stops the loop and waits for it to exit. Safe to call more than once.
func (e *Engine) StopExecution() {
	e.mu.Lock()
	cancel, done := e.cancel, e.done
	e.running = false
	e.cancel = nil
	e.done = nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
		e.logger.Info(context.Background(), "Trading engine stopped")
	}
}

// EmergencyStop latches the engine into the halted state, cancels every active trade and clears
// the queue. Only the first call has an effect; it returns the number of trades closed.
func (e *Engine) EmergencyStop(ctx context.Context, reason string) int {
	if !e.halted.CompareAndSwap(false, true) {
		return 0
	}

	e.mu.Lock()
	e.stopReason = reason
	e.running = false
	if e.cancel != nil {
		e.cancel() // The loop may be the caller, so it is not waited for here.
	}
	e.mu.Unlock()

	open := e.trades.Seal()
	discarded := e.queue.Seal()
	now := e.now()

	for _, t := range open {
		ref := t.ContractRef
		go func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), e.cfg.ExecuteTimeout)
			defer cancel()
			e.executor.EmergencyClose(closeCtx, ref)
		}()

		if err := t.Close(domain.TradeCancelled, 0, 0, now); err != nil {
			e.logger.Error(ctx, err, "Engine.EmergencyStop: failed to cancel trade", map[string]interface{}{"tradeID": t.ID})
			continue
		}
		e.recordClosed(&t)
		e.store.SaveTrade(t)
		e.publisher.Publish(events.TradeClosed{Trade: t, At: now})
		e.notifyClosed(ctx, t)
	}

	e.logger.Error(ctx, ports.ErrEmergencyStopped, "Emergency stop triggered", map[string]interface{}{
		"reason":           reason,
		"tradesClosed":     len(open),
		"signalsDiscarded": discarded,
	})
	e.publisher.Publish(events.EmergencyStop{Count: len(open), Reason: reason, At: now})
	return len(open)
}

// ActiveTrades returns copies of the active trades ordered by entry time.
func (e *Engine) ActiveTrades() []domain.Trade {
	return e.trades.List()
}

// Health reports the engine condition.
func (e *Engine) Health() HealthStatus {
	if e.halted.Load() {
		return HealthHalted
	}
	if int(e.failures.Load()) >= e.cfg.DegradedAfterFailures {
		return HealthDegraded
	}
	return HealthHealthy
}

// Stats returns counters and the performance report of recently settled trades.
func (e *Engine) Stats() EngineStats {
	e.mu.Lock()
	running, reason := e.running, e.stopReason
	e.mu.Unlock()

	active := e.trades.List()
	unrealized := 0.0
	for _, t := range active {
		unrealized += t.UnrealizedProfit
	}

	e.statsMu.Lock()
	stats := EngineStats{
		Executed:    e.executed,
		Failed:      e.failed,
		Closed:      e.closed,
		Cancelled:   e.cancelled,
		TimedOut:    e.timedOut,
		Performance: analytics.AnalyzePerformance(e.history, 0),
	}
	e.statsMu.Unlock()

	stats.Running = running
	stats.EmergencyStopped = e.halted.Load()
	stats.StopReason = reason
	stats.Health = e.Health()
	stats.ActiveTrades = len(active)
	stats.QueuedSignals = e.queue.Len()
	stats.SignalsDropped = e.queue.Dropped()
	stats.ConsecutiveFailures = int(e.failures.Load())
	stats.UnrealizedProfit = unrealized
	if c, ok := e.publisher.(eventCounter); ok {
		stats.EventsDropped = c.Dropped()
	}
	return stats
}

func (e *Engine) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	b := &backoff.Backoff{
		Min:    e.cfg.TickInterval,
		Max:    e.cfg.MaxBackoff,
		Factor: 2,
	}
	delay := e.cfg.TickInterval
	timer := time.NewTimer(delay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		err := e.safeTick(ctx)
		if e.halted.Load() || ctx.Err() != nil {
			return
		}
		if err != nil {
			delay = b.Duration()
			e.logger.Warn(ctx, "Engine tick failed, backing off", map[string]interface{}{
				"error": err.Error(),
				"delay": delay.String(),
			})
		} else {
			b.Reset()
			delay = e.cfg.TickInterval
		}
		timer.Reset(delay)
	}
}

func (e *Engine) safeTick(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("engine tick panicked: %v", r)
			e.logger.Error(ctx, err, "Recovered from panic in engine tick")
		}
	}()
	return e.tick(ctx)
}

// tick runs one admission, monitoring and health-check pass. The returned error aggregates the
// collaborator failures of the pass.
func (e *Engine) tick(ctx context.Context) error {
	var errs []error
	if err := e.admit(ctx); err != nil {
		errs = append(errs, err)
	}
	if e.halted.Load() {
		return errors.Join(errs...)
	}
	if err := e.monitor(ctx); err != nil {
		errs = append(errs, err)
	}
	e.checkHealth(ctx)
	return errors.Join(errs...)
}

func (e *Engine) admit(ctx context.Context) error {
	var errs []error
	for !e.halted.Load() && ctx.Err() == nil {
		if !e.trades.Reserve() {
			return errors.Join(errs...)
		}
		signal, ok := e.queue.Pop()
		if !ok {
			e.trades.Release()
			return errors.Join(errs...)
		}
		if err := e.execute(ctx, signal); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// execute turns a signal into an active trade. The caller holds a reserved table slot, which is
// either committed or released here. Only collaborator failures are returned.
func (e *Engine) execute(ctx context.Context, signal domain.TradeSignal) error {
	op := "Engine.execute"
	committed := false
	defer func() {
		if !committed {
			e.trades.Release()
		}
	}()

	if err := signal.Validate(e.cfg.MinStake, e.cfg.MaxStake); err != nil {
		e.fail(ctx, signal, "validation", fmt.Errorf("%w: %v", ports.ErrInvalidSignal, err))
		return nil
	}

	riskCtx, cancelRisk := context.WithTimeout(ctx, e.cfg.StatusTimeout)
	assessment, err := e.riskGate.Assess(riskCtx, signal)
	cancelRisk()
	if err != nil {
		e.recordFailure()
		err = fmt.Errorf("risk assessment: %w", err)
		e.fail(ctx, signal, "risk", err)
		return err
	}
	if !assessment.Approved {
		e.fail(ctx, signal, "risk", fmt.Errorf("%w: %s", ports.ErrRiskRejected, assessment.Reason))
		return nil
	}

	execCtx, cancelExec := context.WithTimeout(ctx, e.cfg.ExecuteTimeout)
	res, err := e.executor.Execute(execCtx, ports.ExecutionRequest{
		Asset:     signal.Asset,
		Direction: signal.Direction,
		Stake:     signal.Stake,
		Duration:  signal.Duration,
	})
	cancelExec()
	if err != nil {
		e.recordFailure()
		err = fmt.Errorf("execute: %w", err)
		e.fail(ctx, signal, "execution", err)
		return err
	}
	e.recordSuccess()

	entryTime := res.EntryTime
	if entryTime.IsZero() {
		entryTime = e.now()
	}
	trade := domain.Trade{
		ID:          uuid.NewString(),
		PlatformID:  res.PlatformID,
		StrategyID:  signal.StrategyID,
		Asset:       signal.Asset,
		Direction:   signal.Direction,
		Stake:       signal.Stake,
		Duration:    signal.Duration,
		Confidence:  signal.Confidence,
		EntryPrice:  res.EntryPrice,
		EntryTime:   entryTime,
		ContractRef: res.ContractRef,
		Status:      domain.TradeActive,
	}

	if err := e.trades.Commit(trade); err != nil {
		// Halted while the contract was being opened.
		e.logger.Warn(ctx, op+": contract opened after halt, closing it", map[string]interface{}{
			"contractRef": res.ContractRef,
			"error":       err.Error(),
		})
		e.executor.EmergencyClose(ctx, res.ContractRef)
		return nil
	}
	committed = true

	e.statsMu.Lock()
	e.executed++
	e.statsMu.Unlock()

	e.logger.Info(ctx, op+": trade opened", map[string]interface{}{
		"tradeID":     trade.ID,
		"strategyID":  trade.StrategyID,
		"asset":       trade.Asset,
		"direction":   trade.Direction,
		"stake":       trade.Stake,
		"entryPrice":  trade.EntryPrice,
		"contractRef": trade.ContractRef,
	})
	e.store.SaveTrade(trade)
	e.publisher.Publish(events.TradeExecuted{Trade: trade, At: e.now()})
	for _, o := range e.observers {
		o.TradeOpened(ctx, trade)
	}
	return nil
}

func (e *Engine) fail(ctx context.Context, signal domain.TradeSignal, stage string, err error) {
	e.statsMu.Lock()
	e.failed++
	e.statsMu.Unlock()

	e.logger.Warn(ctx, "Engine.execute: signal dropped", map[string]interface{}{
		"stage":      stage,
		"strategyID": signal.StrategyID,
		"asset":      signal.Asset,
		"stake":      signal.Stake,
		"error":      err.Error(),
	})
	e.publisher.Publish(events.TradeFailed{Signal: signal, Reason: stage, Err: err, At: e.now()})
}

// monitor polls every active trade and settles the resolved ones.
func (e *Engine) monitor(ctx context.Context) error {
	var errs []error
	for _, t := range e.trades.List() {
		if ctx.Err() != nil || e.halted.Load() {
			break
		}
		if err := e.monitorTrade(ctx, t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) monitorTrade(ctx context.Context, t domain.Trade) error {
	op := "Engine.monitorTrade"
	statusCtx, cancel := context.WithTimeout(ctx, e.cfg.StatusTimeout)
	st, err := e.executor.QueryStatus(statusCtx, t.ContractRef)
	cancel()

	if err != nil {
		e.recordFailure()
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %v", ports.ErrTimeout, err)
		}
		e.logger.Warn(ctx, op+": status poll failed", map[string]interface{}{
			"tradeID":     t.ID,
			"contractRef": t.ContractRef,
			"error":       err.Error(),
		})
		if t.Age(e.now()) > e.cfg.TradeTimeout {
			e.timeout(ctx, t)
		}
		return fmt.Errorf("query status of %s: %w", t.ContractRef, err)
	}
	e.recordSuccess()

	switch st.State {
	case ports.ContractClosed, ports.ContractExpired:
		exit := t.EntryPrice
		if st.ExitPrice != nil {
			exit = *st.ExitPrice
		}
		e.settle(ctx, t.ID, domain.TradeClosed, exit, e.realizedProfit(t, st))
	case ports.ContractCancelled:
		exit := 0.0
		if st.ExitPrice != nil {
			exit = *st.ExitPrice
		}
		e.settle(ctx, t.ID, domain.TradeCancelled, exit, 0)
	default:
		if st.Profit != nil {
			unrealized := *st.Profit
			e.trades.Update(t.ID, func(tr *domain.Trade) { tr.UnrealizedProfit = unrealized })
		}
		if t.Age(e.now()) > e.cfg.TradeTimeout {
			e.timeout(ctx, t)
		}
	}
	return nil
}

// realizedProfit prefers the venue's figure, then the exit price, then the reported result.
func (e *Engine) realizedProfit(t domain.Trade, st *ports.ContractStatus) float64 {
	switch {
	case st.Profit != nil:
		return *st.Profit
	case st.ExitPrice != nil:
		return domain.BinaryProfit(t.Direction, t.Stake, t.EntryPrice, *st.ExitPrice, e.cfg.PayoutRate)
	case st.Result == domain.ResultWin:
		return domain.BinaryProfit(domain.DirectionUp, t.Stake, 0, 1, e.cfg.PayoutRate)
	default:
		return -t.Stake
	}
}

// timeout force-closes an overdue trade. A failed close is logged and the trade is still retired
// locally as timed out.
func (e *Engine) timeout(ctx context.Context, t domain.Trade) {
	closeCtx, cancel := context.WithTimeout(ctx, e.cfg.StatusTimeout)
	err := e.executor.ForceClose(closeCtx, t.ContractRef)
	cancel()
	if err != nil {
		e.logger.Error(ctx, err, "Engine.timeout: force close failed", map[string]interface{}{
			"tradeID":     t.ID,
			"contractRef": t.ContractRef,
		})
	}
	e.settle(ctx, t.ID, domain.TradeTimedOut, 0, -t.Stake)
}

// settle removes the trade from the table, closes it and fans the result out.
func (e *Engine) settle(ctx context.Context, id string, status domain.TradeStatus, exit, profit float64) {
	t, ok := e.trades.Remove(id)
	if !ok {
		return
	}
	now := e.now()
	if err := t.Close(status, exit, profit, now); err != nil {
		e.logger.Error(ctx, err, "Engine.settle: invalid transition", map[string]interface{}{"tradeID": id})
		return
	}
	e.recordClosed(&t)

	e.logger.Info(ctx, "Engine.settle: trade finished", map[string]interface{}{
		"tradeID":    t.ID,
		"strategyID": t.StrategyID,
		"status":     t.Status,
		"result":     t.Result,
		"profit":     t.Profit,
		"exitPrice":  t.ExitPrice,
	})
	e.store.SaveTrade(t)
	e.publisher.Publish(events.TradeClosed{Trade: t, At: now})
	e.notifyClosed(ctx, t)
}

func (e *Engine) notifyClosed(ctx context.Context, t domain.Trade) {
	for _, o := range e.observers {
		o.TradeClosed(ctx, t)
	}
}

func (e *Engine) recordClosed(t *domain.Trade) {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	switch t.Status {
	case domain.TradeClosed:
		e.closed++
	case domain.TradeCancelled:
		e.cancelled++
	case domain.TradeTimedOut:
		e.timedOut++
	}
	cp := *t
	e.history = append(e.history, &cp)
	if len(e.history) > maxClosedHistory {
		e.history = e.history[len(e.history)-maxClosedHistory:]
	}
}

// checkHealth triggers the emergency stop when unrealized losses exceed the threshold.
func (e *Engine) checkHealth(ctx context.Context) {
	loss := 0.0
	for _, t := range e.trades.List() {
		if t.UnrealizedProfit < 0 {
			loss -= t.UnrealizedProfit
		}
	}
	if loss > e.cfg.EmergencyStopThreshold {
		e.EmergencyStop(ctx, fmt.Sprintf("unrealized loss %.2f exceeds threshold %.2f", loss, e.cfg.EmergencyStopThreshold))
	}
}

func (e *Engine) recordFailure() {
	e.failures.Add(1)
}

func (e *Engine) recordSuccess() {
	e.failures.Store(0)
}
