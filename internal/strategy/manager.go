package strategy

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"binaryOptionsBot/internal/domain"
	"binaryOptionsBot/internal/events"
	"binaryOptionsBot/internal/ports"
	"binaryOptionsBot/internal/strategy/analytics"
	"binaryOptionsBot/internal/strategy/evolution"
	"binaryOptionsBot/internal/strategy/strategies"
)

// Config holds the Strategy Manager settings.
type Config struct {
	SignalInterval    time.Duration // default 5s
	EvolutionInterval time.Duration // default 1h
	SnapshotTimeout   time.Duration
	RiskTimeout       time.Duration

	MinSignalConfidence float64
	DefaultDuration     int // seconds, used when a strategy has no "duration" param

	// Stake sizing
	BaseStake           float64
	MinStake            float64
	MaxStake            float64
	HighWinRate         float64
	StakeMultiplier     float64
	MinTradesForScaling int

	// Performance and retirement
	PerformanceWindow   int
	RetirementThreshold float64
	RecentOutcomes      int

	// Evolution
	MutationSampleSize int
	Evolution          evolution.Config
	Seed               int64 // 0 seeds from the clock
}

// SignalSink receives the signals that passed every gate.
type SignalSink interface {
	QueueSignal(signal domain.TradeSignal) bool
}

// Manager generates signals from the active strategies, tracks their performance, retires
// underperformers and breeds new strategies.
type Manager struct {
	cfg       Config
	logger    ports.Logger
	registry  *Registry
	feed      ports.DataFeed
	oracle    ports.PredictionOracle
	riskGate  ports.RiskGate
	sink      SignalSink
	store     ports.Persistence
	publisher events.Publisher

	rngMu sync.Mutex
	rng   *rand.Rand
	now   func() time.Time

	statsMu         sync.Mutex
	cycles          int
	signalsQueued   int
	signalsRejected int
}

// NewManager creates a Strategy Manager. oracle may be nil when no adaptive strategy is loaded;
// store and publisher may be nil.
func NewManager(
	cfg Config,
	logger ports.Logger,
	registry *Registry,
	feed ports.DataFeed,
	oracle ports.PredictionOracle,
	riskGate ports.RiskGate,
	sink SignalSink,
	store ports.Persistence,
	publisher events.Publisher,
) (*Manager, error) {
	if logger == nil || registry == nil || feed == nil || riskGate == nil || sink == nil {
		return nil, fmt.Errorf("missing required dependencies for strategy manager")
	}
	if cfg.MinStake <= 0 || cfg.MinStake > cfg.MaxStake {
		return nil, fmt.Errorf("invalid stake bounds [%.2f, %.2f]", cfg.MinStake, cfg.MaxStake)
	}
	if cfg.SignalInterval <= 0 {
		cfg.SignalInterval = 5 * time.Second
	}
	if cfg.EvolutionInterval <= 0 {
		cfg.EvolutionInterval = time.Hour
	}
	if cfg.SnapshotTimeout <= 0 {
		cfg.SnapshotTimeout = 10 * time.Second
	}
	if cfg.RiskTimeout <= 0 {
		cfg.RiskTimeout = 10 * time.Second
	}
	if cfg.DefaultDuration <= 0 {
		cfg.DefaultDuration = 60
	}
	if cfg.RecentOutcomes <= 0 {
		cfg.RecentOutcomes = 100
	}
	if cfg.Evolution == (evolution.Config{}) {
		cfg.Evolution = evolution.DefaultConfig()
	}
	if store == nil {
		store = noopStore{}
	}
	if publisher == nil {
		publisher = events.Discard{}
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &Manager{
		cfg:       cfg,
		logger:    logger,
		registry:  registry,
		feed:      feed,
		oracle:    oracle,
		riskGate:  riskGate,
		sink:      sink,
		store:     store,
		publisher: publisher,
		rng:       rand.New(rand.NewSource(seed)),
		now:       time.Now,
	}, nil
}

type noopStore struct{}

func (noopStore) SaveTrade(domain.Trade)       {}
func (noopStore) SaveStrategy(domain.Strategy) {}

// Load registers strategies at startup. Strategies beyond the active ceiling are skipped.
func (m *Manager) Load(ctx context.Context, list []*domain.Strategy) int {
	op := "Manager.Load"
	loaded := 0
	for _, s := range list {
		if err := m.registry.Add(*s); err != nil {
			m.logger.Warn(ctx, op+": strategy not loaded", map[string]interface{}{"strategyID": s.ID, "error": err.Error()})
			continue
		}
		loaded++
	}
	m.logger.Info(ctx, op+": strategies registered", map[string]interface{}{"loaded": loaded, "active": m.registry.ActiveCount()})
	return loaded
}

// Run drives the signal-generation and evolution loops until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	m.logger.Info(ctx, "Strategy manager started", map[string]interface{}{
		"signalInterval":    m.cfg.SignalInterval.String(),
		"evolutionInterval": m.cfg.EvolutionInterval.String(),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		m.loop(gctx, m.cfg.SignalInterval, func(c context.Context) { m.GenerateSignals(c) })
		return nil
	})
	g.Go(func() error {
		m.loop(gctx, m.cfg.EvolutionInterval, func(c context.Context) { m.RunEvolutionCycle(c) })
		return nil
	})
	err := g.Wait()
	m.logger.Info(ctx, "Strategy manager stopped")
	return err
}

func (m *Manager) loop(ctx context.Context, every time.Duration, body func(context.Context)) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.safely(ctx, body)
		}
	}
}

// safely keeps a panicking cycle from taking the loop down.
func (m *Manager) safely(ctx context.Context, body func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error(ctx, fmt.Errorf("panic: %v", r), "Strategy manager cycle panicked")
		}
	}()
	body(ctx)
}

// GenerateSignals runs one signal-generation cycle over the active strategies and returns the
// number of signals handed to the sink.
func (m *Manager) GenerateSignals(ctx context.Context) int {
	op := "Manager.GenerateSignals"
	active := m.registry.Active()
	snapshots := make(map[string]*ports.MarketSnapshot)
	failedAssets := make(map[string]bool)
	queued, rejected := 0, 0

	for _, s := range active {
		if ctx.Err() != nil {
			break
		}
		if failedAssets[s.Asset] {
			continue
		}
		snap, ok := snapshots[s.Asset]
		if !ok {
			sctx, cancel := context.WithTimeout(ctx, m.cfg.SnapshotTimeout)
			var err error
			snap, err = m.feed.Snapshot(sctx, s.Asset)
			cancel()
			if err != nil {
				m.logger.Warn(ctx, op+": snapshot failed", map[string]interface{}{"asset": s.Asset, "error": err.Error()})
				failedAssets[s.Asset] = true
				continue
			}
			snapshots[s.Asset] = snap
		}

		signal, ok := m.evaluate(ctx, s, snap)
		if !ok {
			continue
		}
		if !m.approve(ctx, signal) {
			rejected++
			continue
		}
		if !m.sink.QueueSignal(signal) {
			m.logger.Warn(ctx, op+": engine refused signal", map[string]interface{}{"strategyID": s.ID})
			rejected++
			continue
		}
		queued++
		m.logger.Info(ctx, op+": signal queued", map[string]interface{}{
			"strategyID": s.ID,
			"asset":      signal.Asset,
			"direction":  string(signal.Direction),
			"stake":      signal.Stake,
			"confidence": signal.Confidence,
		})
	}

	m.statsMu.Lock()
	m.cycles++
	m.signalsQueued += queued
	m.signalsRejected += rejected
	m.statsMu.Unlock()
	return queued
}

// evaluate turns one strategy and snapshot into a signal that cleared the confidence floor.
func (m *Manager) evaluate(ctx context.Context, s domain.Strategy, snap *ports.MarketSnapshot) (domain.TradeSignal, bool) {
	op := "Manager.evaluate"
	in, err := strategies.BuildInputs(ctx, s, snap, m.oracle)
	if err != nil {
		m.logger.Debug(ctx, op+": indicators unavailable", map[string]interface{}{"strategyID": s.ID, "error": err.Error()})
		return domain.TradeSignal{}, false
	}
	c, ok := strategies.Evaluate(s, in)
	if !ok {
		return domain.TradeSignal{}, false
	}
	if c.Confidence < m.cfg.MinSignalConfidence {
		m.logger.Debug(ctx, op+": candidate below confidence floor", map[string]interface{}{
			"strategyID": s.ID, "confidence": c.Confidence, "floor": m.cfg.MinSignalConfidence,
		})
		return domain.TradeSignal{}, false
	}
	return domain.TradeSignal{
		Asset:      s.Asset,
		Direction:  c.Direction,
		Stake:      m.ComputeStake(s),
		Duration:   s.Params.Int("duration", m.cfg.DefaultDuration),
		Confidence: c.Confidence,
		StrategyID: s.ID,
		CreatedAt:  m.now(),
	}, true
}

func (m *Manager) approve(ctx context.Context, signal domain.TradeSignal) bool {
	op := "Manager.approve"
	rctx, cancel := context.WithTimeout(ctx, m.cfg.RiskTimeout)
	defer cancel()

	verdict, err := m.riskGate.Assess(rctx, signal)
	if err != nil {
		m.logger.Warn(ctx, op+": risk gate failed", map[string]interface{}{"strategyID": signal.StrategyID, "error": err.Error()})
		return false
	}
	if !verdict.Approved {
		m.logger.Debug(ctx, op+": signal rejected by risk gate", map[string]interface{}{"strategyID": signal.StrategyID, "reason": verdict.Reason})
		return false
	}
	return true
}

// ComputeStake sizes a trade from the strategy's base stake, scaled up for strong recent win
// rates and clamped to the stake bounds, rounded to cents.
func (m *Manager) ComputeStake(s domain.Strategy) float64 {
	stake := s.Params.Float("baseStake", m.cfg.BaseStake)
	perf := s.Performance
	if perf.TotalTrades >= m.cfg.MinTradesForScaling && perf.WinRate > m.cfg.HighWinRate && m.cfg.StakeMultiplier > 0 {
		stake *= m.cfg.StakeMultiplier
	}
	stake = lo.Clamp(stake, m.cfg.MinStake, m.cfg.MaxStake)
	return decimal.NewFromFloat(stake).Round(2).InexactFloat64()
}

// TradeOpened is part of the engine observer contract; performance only changes on closure.
func (m *Manager) TradeOpened(ctx context.Context, trade domain.Trade) {}

// TradeClosed forwards engine closures to RecordTradeOutcome.
func (m *Manager) TradeClosed(ctx context.Context, trade domain.Trade) {
	m.RecordTradeOutcome(ctx, trade)
}

// RecordTradeOutcome folds a settled trade into its strategy's performance and retires the
// strategy when it has at least PerformanceWindow trades and a win rate under RetirementThreshold.
// Cancelled trades carry no outcome and are ignored.
func (m *Manager) RecordTradeOutcome(ctx context.Context, trade domain.Trade) {
	op := "Manager.RecordTradeOutcome"
	if trade.StrategyID == "" {
		return
	}
	if trade.Status != domain.TradeClosed && trade.Status != domain.TradeTimedOut {
		return
	}

	retired := false
	at := trade.ExitTime
	if at.IsZero() {
		at = m.now()
	}
	updated, err := m.registry.Update(trade.StrategyID, func(s *domain.Strategy) error {
		analytics.RecordOutcome(&s.Performance, trade.Profit, at, m.cfg.RecentOutcomes)
		s.UpdatedAt = at
		if s.IsActive() && m.eligibleForRetirement(s.Performance) {
			s.Status = domain.StrategyRetired
			retired = true
		}
		return nil
	})
	if err != nil {
		m.logger.Warn(ctx, op+": outcome for unknown strategy", map[string]interface{}{"strategyID": trade.StrategyID, "tradeID": trade.ID})
		return
	}
	m.store.SaveStrategy(updated)

	if retired {
		m.onRetired(ctx, updated)
	}
}

func (m *Manager) eligibleForRetirement(p domain.StrategyPerformance) bool {
	return p.TotalTrades >= m.cfg.PerformanceWindow && p.WinRate < m.cfg.RetirementThreshold
}

// onRetired announces a retirement and spawns a mutant of the best remaining performer when
// there is room under the ceiling.
func (m *Manager) onRetired(ctx context.Context, s domain.Strategy) {
	op := "Manager.onRetired"
	m.logger.Info(ctx, op+": strategy retired", map[string]interface{}{
		"strategyID": s.ID,
		"trades":     s.Performance.TotalTrades,
		"winRate":    s.Performance.WinRate,
	})
	m.publisher.Publish(events.StrategyRetired{
		StrategyID: s.ID,
		WinRate:    s.Performance.WinRate,
		Trades:     s.Performance.TotalTrades,
		At:         m.now(),
	})

	if m.registry.ActiveCount() >= m.registry.MaxActive() {
		return
	}
	best, ok := m.BestPerformingStrategy()
	if !ok {
		m.logger.Warn(ctx, op+": no active strategy left to replace the retired one", map[string]interface{}{"strategyID": s.ID})
		return
	}
	m.addDerived(ctx, m.mutate(best), "replacement")
}

// RunEvolutionCycle retires any strategy that became eligible, hybridizes the two best performers
// and mutates a random sample of active strategies. It returns the strategies added.
func (m *Manager) RunEvolutionCycle(ctx context.Context) []domain.Strategy {
	op := "Manager.RunEvolutionCycle"
	var created []domain.Strategy

	for _, s := range m.registry.Active() {
		retired := false
		updated, err := m.registry.Update(s.ID, func(cur *domain.Strategy) error {
			if cur.IsActive() && m.eligibleForRetirement(cur.Performance) {
				cur.Status = domain.StrategyRetired
				cur.UpdatedAt = m.now()
				retired = true
			}
			return nil
		})
		if err == nil && retired {
			m.store.SaveStrategy(updated)
			m.logger.Info(ctx, op+": strategy retired", map[string]interface{}{"strategyID": updated.ID})
			m.publisher.Publish(events.StrategyRetired{
				StrategyID: updated.ID,
				WinRate:    updated.Performance.WinRate,
				Trades:     updated.Performance.TotalTrades,
				At:         m.now(),
			})
		}
	}

	active := m.registry.Active()
	top := evolution.TopPerformers(active, m.cfg.Evolution.HybridMinTrades, 2)
	if len(top) == 2 {
		hybrid := evolution.Hybridize(top[0], top[1], m.now())
		if m.addDerived(ctx, hybrid, "hybrid") {
			created = append(created, hybrid)
		}
	}

	m.rngMu.Lock()
	sample := evolution.Sample(active, m.cfg.MutationSampleSize, m.rng)
	m.rngMu.Unlock()
	for _, parent := range sample {
		child := m.mutate(parent)
		if m.addDerived(ctx, child, "mutation") {
			created = append(created, child)
		}
	}

	m.logger.Info(ctx, op+": evolution cycle complete", map[string]interface{}{
		"created": len(created),
		"active":  m.registry.ActiveCount(),
	})
	return created
}

func (m *Manager) mutate(parent domain.Strategy) domain.Strategy {
	m.rngMu.Lock()
	defer m.rngMu.Unlock()
	return evolution.Mutate(parent, m.rng, m.cfg.Evolution, m.now())
}

// addDerived registers a derived strategy if the ceiling allows it.
func (m *Manager) addDerived(ctx context.Context, s domain.Strategy, origin string) bool {
	op := "Manager.addDerived"
	if err := m.registry.Add(s); err != nil {
		if errors.Is(err, ports.ErrCeilingReached) {
			m.logger.Debug(ctx, op+": ceiling reached, derived strategy discarded", map[string]interface{}{"origin": origin})
		} else {
			m.logger.Error(ctx, err, op+": failed to register derived strategy", map[string]interface{}{"origin": origin})
		}
		return false
	}
	m.store.SaveStrategy(s)
	m.publisher.Publish(events.StrategyCreated{Strategy: s, Origin: origin, At: m.now()})
	m.logger.Info(ctx, op+": strategy created", map[string]interface{}{
		"strategyID": s.ID,
		"origin":     origin,
		"parents":    s.Evolution.ParentIDs,
		"generation": s.Evolution.Generation,
	})
	return true
}

// StrategyPerformance returns the live statistics of a strategy.
func (m *Manager) StrategyPerformance(id string) (domain.StrategyPerformance, error) {
	s, ok := m.registry.Get(id)
	if !ok {
		return domain.StrategyPerformance{}, fmt.Errorf("%w: %s", ports.ErrStrategyNotFound, id)
	}
	return s.Performance, nil
}

// BestPerformingStrategy returns the active strategy with the highest composite score.
func (m *Manager) BestPerformingStrategy() (domain.Strategy, bool) {
	top := evolution.TopPerformers(m.registry.Active(), 0, 1)
	if len(top) == 0 {
		return domain.Strategy{}, false
	}
	return top[0], true
}

// ActiveStrategies returns copies of the active strategies.
func (m *Manager) ActiveStrategies() []domain.Strategy {
	return m.registry.Active()
}

// Strategies returns copies of every registered strategy, retired included.
func (m *Manager) Strategies() []domain.Strategy {
	return m.registry.All()
}

// ManagerStats is a summary of the manager's activity.
type ManagerStats struct {
	Strategies      int
	Active          int
	Cycles          int
	SignalsQueued   int
	SignalsRejected int
}

// Stats returns the current activity counters.
func (m *Manager) Stats() ManagerStats {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	return ManagerStats{
		Strategies:      m.registry.Len(),
		Active:          m.registry.ActiveCount(),
		Cycles:          m.cycles,
		SignalsQueued:   m.signalsQueued,
		SignalsRejected: m.signalsRejected,
	}
}
