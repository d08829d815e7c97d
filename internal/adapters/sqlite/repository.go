package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"binaryOptionsBot/internal/domain"
	"binaryOptionsBot/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements the ports.TradeRepository and ports.StrategyRepository interfaces using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/binary_options_bot.db" // Default path
	}

	// Create data directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// Open database connection
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w: %v", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w: %v", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// A single connection serializes writers
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cfg.Logger.Info(context.Background(), "SQLite database connection established", map[string]interface{}{"path": dbPath})

	repo := &Repository{db: db, logger: cfg.Logger}
	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "Database schema initialized/verified")

	return repo, nil
}

// initializeSchema creates tables if they don't exist.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS trades (
		id TEXT PRIMARY KEY,
		platform_id TEXT NOT NULL DEFAULT '',
		strategy_id TEXT NOT NULL,
		asset TEXT NOT NULL,
		direction TEXT NOT NULL,
		stake REAL NOT NULL,
		duration INTEGER NOT NULL,
		confidence REAL NOT NULL DEFAULT 0,
		entry_price REAL NOT NULL,
		entry_time TIMESTAMP NOT NULL,
		contract_ref TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		exit_price REAL NOT NULL DEFAULT 0,
		exit_time TIMESTAMP DEFAULT NULL,
		profit REAL NOT NULL DEFAULT 0,
		result TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS strategies (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		asset TEXT NOT NULL,
		params TEXT NOT NULL,      -- JSON
		indicators TEXT NOT NULL,  -- JSON
		components TEXT NOT NULL,  -- JSON
		rules TEXT NOT NULL,       -- JSON
		confidence REAL NOT NULL,
		status TEXT NOT NULL,
		performance TEXT NOT NULL, -- JSON
		evolution TEXT NOT NULL,   -- JSON
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);
	-- Add indexes for common lookups
	CREATE INDEX IF NOT EXISTS idx_trades_strategy_entry_time ON trades (strategy_id, entry_time);
	CREATE INDEX IF NOT EXISTS idx_trades_status_exit_time ON trades (status, exit_time);
	CREATE INDEX IF NOT EXISTS idx_strategies_status ON strategies (status, created_at);
	`
	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// --- TradeRepository Implementation ---

// SaveTrade inserts the trade or updates the stored row with the same ID.
func (r *Repository) SaveTrade(ctx context.Context, trade *domain.Trade) error {
	const query = `
	INSERT INTO trades (id, platform_id, strategy_id, asset, direction, stake, duration, confidence,
	                    entry_price, entry_time, contract_ref, status, exit_price, exit_time, profit, result)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		status = excluded.status,
		exit_price = excluded.exit_price,
		exit_time = excluded.exit_time,
		profit = excluded.profit,
		result = excluded.result`

	if trade.ID == "" {
		return fmt.Errorf("trade without ID: %w", ports.ErrInvalidRequest)
	}
	var exitTime sql.NullTime
	if !trade.ExitTime.IsZero() {
		exitTime = sql.NullTime{Time: trade.ExitTime, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query,
		trade.ID, trade.PlatformID, trade.StrategyID, trade.Asset, trade.Direction, trade.Stake, trade.Duration,
		trade.Confidence, trade.EntryPrice, trade.EntryTime, trade.ContractRef, trade.Status,
		trade.ExitPrice, exitTime, trade.Profit, trade.Result)
	if err != nil {
		return fmt.Errorf("failed to save trade %s: %w: %v", trade.ID, ports.ErrUpdateFailed, err)
	}
	r.logger.Debug(ctx, "Trade saved", map[string]interface{}{"tradeID": trade.ID, "status": trade.Status, "profit": trade.Profit})
	return nil
}

// FindTradesByStrategy retrieves the most recent trades of a strategy, up to a limit.
func (r *Repository) FindTradesByStrategy(ctx context.Context, strategyID string, limit int) ([]*domain.Trade, error) {
	const query = `
	SELECT ` + tradeColumns + `
	FROM trades
	WHERE strategy_id = ? ORDER BY entry_time DESC LIMIT ?`

	return r.queryTrades(ctx, query, strategyID, limit)
}

// FindRecentTrades retrieves the most recently finished trades, up to a limit.
func (r *Repository) FindRecentTrades(ctx context.Context, limit int) ([]*domain.Trade, error) {
	const query = `
	SELECT ` + tradeColumns + `
	FROM trades
	WHERE status != ? ORDER BY exit_time DESC LIMIT ?`

	return r.queryTrades(ctx, query, domain.TradeActive, limit)
}

// FindActiveTrades retrieves trades that were still open when last saved.
func (r *Repository) FindActiveTrades(ctx context.Context) ([]*domain.Trade, error) {
	const query = `
	SELECT ` + tradeColumns + `
	FROM trades
	WHERE status = ? ORDER BY entry_time ASC`

	return r.queryTrades(ctx, query, domain.TradeActive)
}

// GetTotalProfit calculates the sum of profit over settled trades.
func (r *Repository) GetTotalProfit(ctx context.Context) (float64, error) {
	const query = `SELECT COALESCE(SUM(profit), 0) FROM trades WHERE status IN (?, ?)`
	var totalProfit float64
	err := r.db.QueryRowContext(ctx, query, domain.TradeClosed, domain.TradeTimedOut).Scan(&totalProfit)
	if err != nil {
		return 0, fmt.Errorf("failed to calculate total profit: %w: %v", ports.ErrQueryFailed, err)
	}
	return totalProfit, nil
}

const tradeColumns = `id, platform_id, strategy_id, asset, direction, stake, duration, confidence,
	       entry_price, entry_time, contract_ref, status, exit_price, exit_time, profit, result`

func (r *Repository) queryTrades(ctx context.Context, query string, args ...interface{}) ([]*domain.Trade, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w: %v", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	trades := make([]*domain.Trade, 0)
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		trades = append(trades, trade)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade rows: %w", err)
	}
	return trades, nil
}

// --- StrategyRepository Implementation ---

// SaveStrategy inserts the strategy or replaces the stored row with the same ID.
func (r *Repository) SaveStrategy(ctx context.Context, s *domain.Strategy) error {
	const query = `
	INSERT INTO strategies (id, name, type, asset, params, indicators, components, rules, confidence,
	                        status, performance, evolution, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name,
		params = excluded.params,
		indicators = excluded.indicators,
		components = excluded.components,
		rules = excluded.rules,
		confidence = excluded.confidence,
		status = excluded.status,
		performance = excluded.performance,
		evolution = excluded.evolution,
		updated_at = excluded.updated_at`

	if s.ID == "" {
		return fmt.Errorf("strategy without ID: %w", ports.ErrInvalidRequest)
	}
	cols, err := encodeStrategyColumns(s)
	if err != nil {
		return fmt.Errorf("failed to encode strategy %s: %w", s.ID, err)
	}
	updatedAt := s.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	createdAt := s.CreatedAt
	if createdAt.IsZero() {
		createdAt = updatedAt
	}

	_, err = r.db.ExecContext(ctx, query,
		s.ID, s.Name, s.Type, s.Asset, cols.params, cols.indicators, cols.components, cols.rules, s.Confidence,
		s.Status, cols.performance, cols.evolution, createdAt, updatedAt)
	if err != nil {
		return fmt.Errorf("failed to save strategy %s: %w: %v", s.ID, ports.ErrUpdateFailed, err)
	}
	r.logger.Debug(ctx, "Strategy saved", map[string]interface{}{"strategyID": s.ID, "status": s.Status})
	return nil
}

// FindStrategyByID returns nil, nil if the strategy is not stored.
func (r *Repository) FindStrategyByID(ctx context.Context, id string) (*domain.Strategy, error) {
	const query = `SELECT ` + strategyColumns + ` FROM strategies WHERE id = ?`

	s, err := scanStrategy(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.logger.Debug(ctx, "Strategy not found by ID", map[string]interface{}{"strategyID": id})
			return nil, nil // Not an error, just not found
		}
		return nil, fmt.Errorf("failed to query strategy by ID %s: %w", id, err)
	}
	return s, nil
}

// FindStrategiesByStatus retrieves strategies with the given status ordered by creation time.
func (r *Repository) FindStrategiesByStatus(ctx context.Context, status domain.StrategyStatus) ([]*domain.Strategy, error) {
	const query = `SELECT ` + strategyColumns + ` FROM strategies WHERE status = ? ORDER BY created_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("failed to query strategies with status %s: %w: %v", status, ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	list := make([]*domain.Strategy, 0)
	for rows.Next() {
		s, err := scanStrategy(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan strategy: %w", err)
		}
		list = append(list, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating strategy rows: %w", err)
	}
	return list, nil
}

const strategyColumns = `id, name, type, asset, params, indicators, components, rules, confidence,
	status, performance, evolution, created_at, updated_at`

type strategyJSON struct {
	params, indicators, components, rules, performance, evolution string
}

func encodeStrategyColumns(s *domain.Strategy) (strategyJSON, error) {
	var out strategyJSON
	fields := []struct {
		dst *string
		v   interface{}
	}{
		{&out.params, s.Params},
		{&out.indicators, nonNil(s.Indicators)},
		{&out.components, nonNilTypes(s.Components)},
		{&out.rules, s.Rules},
		{&out.performance, s.Performance},
		{&out.evolution, s.Evolution},
	}
	for _, f := range fields {
		b, err := json.Marshal(f.v)
		if err != nil {
			return out, err
		}
		*f.dst = string(b)
	}
	return out, nil
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func nonNilTypes(v []domain.StrategyType) []domain.StrategyType {
	if v == nil {
		return []domain.StrategyType{}
	}
	return v
}

// --- Helper Scan Functions ---

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanTrade scans a row into a domain.Trade struct.
func scanTrade(s scanner) (*domain.Trade, error) {
	t := &domain.Trade{}
	var exitTime sql.NullTime
	var direction, status, result string
	err := s.Scan(
		&t.ID, &t.PlatformID, &t.StrategyID, &t.Asset, &direction, &t.Stake, &t.Duration, &t.Confidence,
		&t.EntryPrice, &t.EntryTime, &t.ContractRef, &status, &t.ExitPrice, &exitTime, &t.Profit, &result)
	if err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	if exitTime.Valid {
		t.ExitTime = exitTime.Time
	}
	t.Direction = domain.Direction(direction)
	t.Status = domain.TradeStatus(status)
	t.Result = domain.TradeResult(result)
	return t, nil
}

// scanStrategy scans a row into a domain.Strategy struct.
func scanStrategy(s scanner) (*domain.Strategy, error) {
	st := &domain.Strategy{}
	var typ, status string
	var params, indicators, components, rules, performance, evolution string
	err := s.Scan(
		&st.ID, &st.Name, &typ, &st.Asset, &params, &indicators, &components, &rules, &st.Confidence,
		&status, &performance, &evolution, &st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	st.Type = domain.StrategyType(typ)
	st.Status = domain.StrategyStatus(status)

	decode := []struct {
		name string
		src  string
		dst  interface{}
	}{
		{"params", params, &st.Params},
		{"indicators", indicators, &st.Indicators},
		{"components", components, &st.Components},
		{"rules", rules, &st.Rules},
		{"performance", performance, &st.Performance},
		{"evolution", evolution, &st.Evolution},
	}
	for _, d := range decode {
		if err := json.Unmarshal([]byte(d.src), d.dst); err != nil {
			return nil, fmt.Errorf("strategy %s: invalid %s column: %w", st.ID, d.name, err)
		}
	}
	if st.Params.Numeric == nil {
		st.Params.Numeric = make(map[string]float64)
	}
	return st, nil
}
