package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"binaryOptionsBot/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// setupTestDB creates a temporary database for testing
func setupTestDB(t *testing.T) *Repository {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "data", "test.db")
	repo, err := NewRepository(Config{
		DBPath: dbPath,
		Logger: &mockLogger{},
	})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func newTrade(id, strategyID string, entry time.Time) *domain.Trade {
	return &domain.Trade{
		ID:          id,
		PlatformID:  "paper",
		StrategyID:  strategyID,
		Asset:       "BTCUSDT",
		Direction:   domain.DirectionUp,
		Stake:       10,
		Duration:    60,
		Confidence:  0.8,
		EntryPrice:  50000,
		EntryTime:   entry,
		ContractRef: "ref-" + id,
		Status:      domain.TradeActive,
	}
}

func TestNewRepository_RequiresLogger(t *testing.T) {
	_, err := NewRepository(Config{DBPath: filepath.Join(t.TempDir(), "x.db")})
	assert.Error(t, err)
}

func TestRepository_SaveTradeUpserts(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	entry := time.Now().UTC().Truncate(time.Second)

	trade := newTrade("t1", "s1", entry)
	require.NoError(t, repo.SaveTrade(ctx, trade))

	active, err := repo.FindActiveTrades(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, domain.TradeActive, active[0].Status)
	assert.True(t, active[0].ExitTime.IsZero())

	require.NoError(t, trade.Close(domain.TradeClosed, 50100, 8.5, entry.Add(time.Minute)))
	require.NoError(t, repo.SaveTrade(ctx, trade))

	active, err = repo.FindActiveTrades(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	got, err := repo.FindTradesByStrategy(ctx, "s1", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.TradeClosed, got[0].Status)
	assert.Equal(t, domain.ResultWin, got[0].Result)
	assert.Equal(t, 8.5, got[0].Profit)
	assert.Equal(t, domain.DirectionUp, got[0].Direction)
	assert.Equal(t, "ref-t1", got[0].ContractRef)
	assert.WithinDuration(t, entry, got[0].EntryTime, time.Second)
	assert.WithinDuration(t, entry.Add(time.Minute), got[0].ExitTime, time.Second)
}

func TestRepository_SaveTradeRequiresID(t *testing.T) {
	repo := setupTestDB(t)
	err := repo.SaveTrade(context.Background(), &domain.Trade{})
	assert.Error(t, err)
}

func TestRepository_TradeFinders(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)

	profits := []float64{8.5, -10, 8.5, -10}
	for i, p := range profits {
		tr := newTrade(string(rune('a'+i)), "s1", base.Add(time.Duration(i)*time.Minute))
		status := domain.TradeClosed
		if i == 3 {
			status = domain.TradeTimedOut
		}
		require.NoError(t, tr.Close(status, 0, p, base.Add(time.Duration(i)*time.Minute+30*time.Second)))
		require.NoError(t, repo.SaveTrade(ctx, tr))
	}
	require.NoError(t, repo.SaveTrade(ctx, newTrade("other", "s2", base)))

	byStrategy, err := repo.FindTradesByStrategy(ctx, "s1", 2)
	require.NoError(t, err)
	require.Len(t, byStrategy, 2)
	assert.Equal(t, "d", byStrategy[0].ID, "newest first")
	assert.Equal(t, "c", byStrategy[1].ID)

	recent, err := repo.FindRecentTrades(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, recent, 4, "active trades are excluded")

	total, err := repo.GetTotalProfit(ctx)
	require.NoError(t, err)
	assert.InDelta(t, -3.0, total, 1e-9)
}

func TestRepository_StrategyRoundTrip(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	created := time.Now().UTC().Truncate(time.Second)

	s := &domain.Strategy{
		ID:         "h1",
		Name:       "momentum+reversal",
		Type:       domain.StrategyHybrid,
		Asset:      "BTCUSDT",
		Params:     domain.Params{Numeric: map[string]float64{"rsiPeriod": 14}, Flags: map[string]bool{"useMacd": true}},
		Indicators: []string{domain.IndicatorRSI, domain.IndicatorMomentum},
		Components: []domain.StrategyType{domain.StrategyMomentum, domain.StrategyReversal},
		Rules:      domain.Rules{Entry: "(a) OR (b)", Exit: "expiry"},
		Confidence: 0.8,
		Status:     domain.StrategyActive,
		Performance: domain.StrategyPerformance{
			TotalTrades: 3, WinningTrades: 2, WinRate: 2.0 / 3, RecentOutcomes: []float64{8.5, -10, 8.5},
		},
		Evolution: domain.EvolutionLineage{Generation: 2, ParentIDs: []string{"p1", "p2"}},
		CreatedAt: created,
		UpdatedAt: created,
	}
	require.NoError(t, repo.SaveStrategy(ctx, s))

	got, err := repo.FindStrategyByID(ctx, "h1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, s.Params, got.Params)
	assert.Equal(t, s.Indicators, got.Indicators)
	assert.Equal(t, s.Components, got.Components)
	assert.Equal(t, s.Rules, got.Rules)
	assert.Equal(t, s.Performance.RecentOutcomes, got.Performance.RecentOutcomes)
	assert.Equal(t, s.Evolution, got.Evolution)
	assert.WithinDuration(t, created, got.CreatedAt, time.Second)

	s.Status = domain.StrategyRetired
	s.UpdatedAt = created.Add(time.Hour)
	require.NoError(t, repo.SaveStrategy(ctx, s))

	active, err := repo.FindStrategiesByStatus(ctx, domain.StrategyActive)
	require.NoError(t, err)
	assert.Empty(t, active)
	retired, err := repo.FindStrategiesByStatus(ctx, domain.StrategyRetired)
	require.NoError(t, err)
	require.Len(t, retired, 1)
	assert.Equal(t, "h1", retired[0].ID)
}

func TestRepository_FindStrategyByIDMissing(t *testing.T) {
	repo := setupTestDB(t)
	got, err := repo.FindStrategyByID(context.Background(), "missing")
	assert.NoError(t, err)
	assert.Nil(t, got)
}
