package strategy

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"binaryOptionsBot/internal/domain"
	"binaryOptionsBot/internal/events"
	"binaryOptionsBot/internal/ports"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct {
	mu        sync.Mutex
	infoMsgs  []string
	errorMsgs []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}

func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infoMsgs = append(m.infoMsgs, msg)
}

func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {}

func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorMsgs = append(m.errorMsgs, msg)
}

type fakeFeed struct {
	mu    sync.Mutex
	snap  *ports.MarketSnapshot
	err   error
	calls int
}

func (f *fakeFeed) Snapshot(ctx context.Context, asset string) (*ports.MarketSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.snap, nil
}

type MockRiskGate struct {
	mock.Mock
}

func (m *MockRiskGate) Assess(ctx context.Context, signal domain.TradeSignal) (ports.RiskAssessment, error) {
	args := m.Called(ctx, signal)
	return args.Get(0).(ports.RiskAssessment), args.Error(1)
}

type captureSink struct {
	mu      sync.Mutex
	signals []domain.TradeSignal
	refuse  bool
}

func (c *captureSink) QueueSignal(s domain.TradeSignal) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.refuse {
		return false
	}
	c.signals = append(c.signals, s)
	return true
}

type captureStore struct {
	mu         sync.Mutex
	strategies []domain.Strategy
}

func (c *captureStore) SaveTrade(domain.Trade) {}

func (c *captureStore) SaveStrategy(s domain.Strategy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.strategies = append(c.strategies, s)
}

func testConfig() Config {
	return Config{
		SignalInterval:      10 * time.Millisecond,
		EvolutionInterval:   time.Hour,
		MinSignalConfidence: 0.65,
		DefaultDuration:     60,
		BaseStake:           10,
		MinStake:            1,
		MaxStake:            100,
		HighWinRate:         0.7,
		StakeMultiplier:     1.5,
		MinTradesForScaling: 10,
		PerformanceWindow:   100,
		RetirementThreshold: 0.3,
		RecentOutcomes:      100,
		MutationSampleSize:  2,
		Seed:                99,
	}
}

type harness struct {
	mgr      *Manager
	registry *Registry
	feed     *fakeFeed
	risk     *MockRiskGate
	sink     *captureSink
	store    *captureStore
	stream   *events.Stream
}

func newHarness(t *testing.T, cfg Config, maxActive int) *harness {
	t.Helper()
	h := &harness{
		registry: NewRegistry(maxActive),
		feed:     &fakeFeed{snap: risingSnapshot(60)},
		risk:     new(MockRiskGate),
		sink:     &captureSink{},
		store:    &captureStore{},
		stream:   events.NewStream(64),
	}
	mgr, err := NewManager(cfg, &mockLogger{}, h.registry, h.feed, nil, h.risk, h.sink, h.store, h.stream)
	require.NoError(t, err)
	h.mgr = mgr
	return h
}

func risingSnapshot(n int) *ports.MarketSnapshot {
	prices := make([]float64, n)
	volumes := make([]float64, n)
	for i := range prices {
		prices[i] = 100 + float64(i)*0.5
		volumes[i] = 5
	}
	return &ports.MarketSnapshot{Asset: "BTCUSDT", Price: prices[n-1], PriceHistory: prices, Volume: 5, VolumeHistory: volumes}
}

func momentumStrategy(id string) domain.Strategy {
	return domain.Strategy{
		ID:         id,
		Name:       id,
		Type:       domain.StrategyMomentum,
		Asset:      "BTCUSDT",
		Confidence: 0.8,
		Status:     domain.StrategyActive,
		Indicators: []string{domain.IndicatorRSI, domain.IndicatorMomentum},
		Params:     domain.Params{Numeric: map[string]float64{"rsiPeriod": 14, "momentumPeriod": 10}},
	}
}

func closedTrade(strategyID string, profit float64) domain.Trade {
	return domain.Trade{
		ID:         fmt.Sprintf("t-%s-%f", strategyID, profit),
		StrategyID: strategyID,
		Status:     domain.TradeClosed,
		Stake:      10,
		Profit:     profit,
		Result:     domain.ResultForProfit(profit),
		ExitTime:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func drain(s *events.Stream) []events.Event {
	var out []events.Event
	for {
		select {
		case e := <-s.C():
			out = append(out, e)
		default:
			return out
		}
	}
}

func TestNewManager_RequiresDependencies(t *testing.T) {
	_, err := NewManager(testConfig(), nil, NewRegistry(1), &fakeFeed{}, nil, new(MockRiskGate), &captureSink{}, nil, nil)
	assert.Error(t, err)

	cfg := testConfig()
	cfg.MinStake = 0
	_, err = NewManager(cfg, &mockLogger{}, NewRegistry(1), &fakeFeed{}, nil, new(MockRiskGate), &captureSink{}, nil, nil)
	assert.Error(t, err)
}

func TestGenerateSignals_QueuesApprovedSignals(t *testing.T) {
	h := newHarness(t, testConfig(), 10)
	require.NoError(t, h.registry.Add(momentumStrategy("a")))
	require.NoError(t, h.registry.Add(momentumStrategy("b")))
	h.risk.On("Assess", mock.Anything, mock.Anything).Return(ports.RiskAssessment{Approved: true}, nil)

	queued := h.mgr.GenerateSignals(context.Background())

	assert.Equal(t, 2, queued)
	assert.Equal(t, 1, h.feed.calls, "snapshot is cached per asset per cycle")
	require.Len(t, h.sink.signals, 2)
	sig := h.sink.signals[0]
	assert.Equal(t, "a", sig.StrategyID)
	assert.Equal(t, domain.DirectionUp, sig.Direction)
	assert.Equal(t, 10.0, sig.Stake)
	assert.Equal(t, 60, sig.Duration)
	assert.GreaterOrEqual(t, sig.Confidence, 0.65)
	assert.False(t, sig.CreatedAt.IsZero())
	assert.Equal(t, 2, h.mgr.Stats().SignalsQueued)
}

func TestGenerateSignals_Gates(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(h *harness)
		wantQueued int
	}{
		{
			name: "risk gate rejects",
			setup: func(h *harness) {
				h.risk.On("Assess", mock.Anything, mock.Anything).Return(ports.RiskAssessment{Approved: false, Reason: "daily loss"}, nil)
			},
		},
		{
			name: "risk gate errors",
			setup: func(h *harness) {
				h.risk.On("Assess", mock.Anything, mock.Anything).Return(ports.RiskAssessment{}, errors.New("timeout"))
			},
		},
		{
			name: "engine refuses",
			setup: func(h *harness) {
				h.risk.On("Assess", mock.Anything, mock.Anything).Return(ports.RiskAssessment{Approved: true}, nil)
				h.sink.refuse = true
			},
		},
		{
			name: "confidence below floor",
			setup: func(h *harness) {
				h.mgr.cfg.MinSignalConfidence = 0.95
			},
		},
		{
			name: "feed down",
			setup: func(h *harness) {
				h.feed.err = ports.ErrExchangeUnavailable
			},
		},
		{
			name: "history too short",
			setup: func(h *harness) {
				h.feed.snap = risingSnapshot(5)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, testConfig(), 10)
			require.NoError(t, h.registry.Add(momentumStrategy("a")))
			tt.setup(h)

			assert.Equal(t, tt.wantQueued, h.mgr.GenerateSignals(context.Background()))
		})
	}
}

func TestComputeStake(t *testing.T) {
	h := newHarness(t, testConfig(), 10)

	tests := []struct {
		name   string
		params map[string]float64
		perf   domain.StrategyPerformance
		want   float64
	}{
		{name: "config base stake", want: 10},
		{name: "strategy base stake", params: map[string]float64{"baseStake": 12.345}, want: 12.35},
		{name: "scaled for high win rate", perf: domain.StrategyPerformance{TotalTrades: 20, WinRate: 0.75}, want: 15},
		{name: "too few trades to scale", perf: domain.StrategyPerformance{TotalTrades: 5, WinRate: 0.9}, want: 10},
		{name: "win rate at threshold is not scaled", perf: domain.StrategyPerformance{TotalTrades: 50, WinRate: 0.7}, want: 10},
		{name: "clamped to max", params: map[string]float64{"baseStake": 90}, perf: domain.StrategyPerformance{TotalTrades: 50, WinRate: 0.8}, want: 100},
		{name: "clamped to min", params: map[string]float64{"baseStake": 0.2}, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := momentumStrategy("x")
			s.Params.Numeric = tt.params
			s.Performance = tt.perf
			assert.Equal(t, tt.want, h.mgr.ComputeStake(s))
		})
	}
}

// A strategy reaching 100 trades with a 0.25 win rate under a 0.3 threshold is retired.
func TestRecordTradeOutcome_RetiresUnderperformer(t *testing.T) {
	h := newHarness(t, testConfig(), 10)
	require.NoError(t, h.registry.Add(momentumStrategy("loser")))
	best := momentumStrategy("best")
	best.Performance = domain.StrategyPerformance{TotalTrades: 30, WinRate: 0.8, ProfitFactor: 2}
	require.NoError(t, h.registry.Add(best))
	ctx := context.Background()

	for i := 0; i < 99; i++ {
		profit := -10.0
		if i%4 == 0 {
			profit = 8.5
		}
		h.mgr.RecordTradeOutcome(ctx, closedTrade("loser", profit))
	}
	s, _ := h.registry.Get("loser")
	require.Equal(t, domain.StrategyActive, s.Status, "not eligible before the window is full")
	require.Equal(t, 25, s.Performance.WinningTrades)

	h.mgr.RecordTradeOutcome(ctx, closedTrade("loser", -10))

	s, _ = h.registry.Get("loser")
	assert.Equal(t, domain.StrategyRetired, s.Status)
	assert.Equal(t, 100, s.Performance.TotalTrades)
	assert.InDelta(t, 0.25, s.Performance.WinRate, 1e-9)

	activeIDs := make([]string, 0)
	for _, a := range h.mgr.ActiveStrategies() {
		activeIDs = append(activeIDs, a.ID)
	}
	assert.NotContains(t, activeIDs, "loser")

	// Replacement is a mutant of the best remaining performer.
	require.Len(t, activeIDs, 2)
	replacement, ok := h.registry.Get(activeIDs[1])
	require.True(t, ok)
	assert.Equal(t, []string{"best"}, replacement.Evolution.ParentIDs)
	assert.Equal(t, 1, replacement.Evolution.Generation)

	var kinds []events.Kind
	for _, e := range drain(h.stream) {
		kinds = append(kinds, e.Kind())
	}
	assert.Equal(t, []events.Kind{events.KindStrategyRetired, events.KindStrategyCreated}, kinds)

	// Further signal cycles never evaluate the retired strategy.
	h.risk.On("Assess", mock.Anything, mock.Anything).Return(ports.RiskAssessment{Approved: true}, nil)
	h.mgr.GenerateSignals(ctx)
	for _, sig := range h.sink.signals {
		assert.NotEqual(t, "loser", sig.StrategyID)
	}
}

func TestRecordTradeOutcome_ReplacementFillsFreedSlot(t *testing.T) {
	h := newHarness(t, testConfig(), 2)
	h.mgr.cfg.PerformanceWindow = 2
	require.NoError(t, h.registry.Add(momentumStrategy("a")))
	require.NoError(t, h.registry.Add(momentumStrategy("b")))

	// Retiring "a" frees a slot, so one replacement is allowed.
	h.mgr.RecordTradeOutcome(context.Background(), closedTrade("a", -10))
	h.mgr.RecordTradeOutcome(context.Background(), closedTrade("a", -10))
	assert.Equal(t, 2, h.registry.ActiveCount())
	assert.Equal(t, 3, h.registry.Len())
}

func TestRecordTradeOutcome_IgnoresNonSettledTrades(t *testing.T) {
	h := newHarness(t, testConfig(), 10)
	require.NoError(t, h.registry.Add(momentumStrategy("a")))

	cancelled := closedTrade("a", 0)
	cancelled.Status = domain.TradeCancelled
	h.mgr.RecordTradeOutcome(context.Background(), cancelled)
	h.mgr.RecordTradeOutcome(context.Background(), domain.Trade{StrategyID: "a", Status: domain.TradeActive})
	h.mgr.RecordTradeOutcome(context.Background(), closedTrade("", 5))
	h.mgr.RecordTradeOutcome(context.Background(), closedTrade("unknown", 5))

	perf, err := h.mgr.StrategyPerformance("a")
	require.NoError(t, err)
	assert.Zero(t, perf.TotalTrades)

	timedOut := closedTrade("a", -10)
	timedOut.Status = domain.TradeTimedOut
	h.mgr.TradeClosed(context.Background(), timedOut)
	perf, _ = h.mgr.StrategyPerformance("a")
	assert.Equal(t, 1, perf.LosingTrades)
	assert.NotEmpty(t, h.store.strategies)
}

func TestStrategyPerformance_NotFound(t *testing.T) {
	h := newHarness(t, testConfig(), 10)
	_, err := h.mgr.StrategyPerformance("missing")
	assert.ErrorIs(t, err, ports.ErrStrategyNotFound)

	_, ok := h.mgr.BestPerformingStrategy()
	assert.False(t, ok)
}

func TestRunEvolutionCycle_HybridAndMutants(t *testing.T) {
	h := newHarness(t, testConfig(), 10)

	a := momentumStrategy("a")
	a.Params.Numeric = map[string]float64{"rsiPeriod": 14, "overbought": 70}
	a.Performance = domain.StrategyPerformance{TotalTrades: 25, WinRate: 0.8, ProfitFactor: 2}
	a.Evolution.Generation = 1
	b := momentumStrategy("b")
	b.Type = domain.StrategyReversal
	b.Params.Numeric = map[string]float64{"rsiPeriod": 20, "overbought": 80}
	b.Performance = domain.StrategyPerformance{TotalTrades: 20, WinRate: 0.75, ProfitFactor: 2}
	c := momentumStrategy("c")
	c.Performance = domain.StrategyPerformance{TotalTrades: 5, WinRate: 1, ProfitFactor: 10}
	for _, s := range []domain.Strategy{a, b, c} {
		require.NoError(t, h.registry.Add(s))
	}

	created := h.mgr.RunEvolutionCycle(context.Background())

	require.Len(t, created, 3, "one hybrid and two mutants")
	hybrid := created[0]
	assert.Equal(t, domain.StrategyHybrid, hybrid.Type)
	assert.Equal(t, []string{"a", "b"}, hybrid.Evolution.ParentIDs)
	assert.Equal(t, 17.0, hybrid.Params.Numeric["rsiPeriod"])
	assert.Equal(t, 75.0, hybrid.Params.Numeric["overbought"])
	assert.Equal(t, 2, hybrid.Evolution.Generation)

	for _, mutant := range created[1:] {
		require.Len(t, mutant.Evolution.ParentIDs, 1)
		parent, ok := h.registry.Get(mutant.Evolution.ParentIDs[0])
		require.True(t, ok)
		assert.Greater(t, mutant.Evolution.Generation, parent.Evolution.Generation)
	}
	assert.Equal(t, 6, h.registry.ActiveCount())
}

func TestRunEvolutionCycle_RespectsCeiling(t *testing.T) {
	h := newHarness(t, testConfig(), 2)
	a := momentumStrategy("a")
	a.Performance = domain.StrategyPerformance{TotalTrades: 25, WinRate: 0.8, ProfitFactor: 2}
	b := momentumStrategy("b")
	b.Performance = domain.StrategyPerformance{TotalTrades: 25, WinRate: 0.8, ProfitFactor: 2}
	require.NoError(t, h.registry.Add(a))
	require.NoError(t, h.registry.Add(b))

	created := h.mgr.RunEvolutionCycle(context.Background())
	assert.Empty(t, created)
	assert.Equal(t, 2, h.registry.ActiveCount())
}

func TestRunEvolutionCycle_SweepsEligibleStrategies(t *testing.T) {
	h := newHarness(t, testConfig(), 10)
	stale := momentumStrategy("stale")
	stale.Performance = domain.StrategyPerformance{TotalTrades: 150, WinRate: 0.1}
	require.NoError(t, h.registry.Add(stale))
	h.mgr.cfg.MutationSampleSize = 0

	h.mgr.RunEvolutionCycle(context.Background())

	s, _ := h.registry.Get("stale")
	assert.Equal(t, domain.StrategyRetired, s.Status)
	assert.Zero(t, h.registry.ActiveCount())
}

func TestRun_StopsOnCancel(t *testing.T) {
	h := newHarness(t, testConfig(), 10)
	require.NoError(t, h.registry.Add(momentumStrategy("a")))
	h.risk.On("Assess", mock.Anything, mock.Anything).Return(ports.RiskAssessment{Approved: true}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.mgr.Run(ctx) }()

	assert.Eventually(t, func() bool { return h.mgr.Stats().Cycles >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("manager did not stop")
	}
}

func TestLoad_SkipsBeyondCeiling(t *testing.T) {
	h := newHarness(t, testConfig(), 2)
	list := []*domain.Strategy{}
	for _, id := range []string{"a", "b", "c"} {
		s := momentumStrategy(id)
		list = append(list, &s)
	}
	assert.Equal(t, 2, h.mgr.Load(context.Background(), list))
}
