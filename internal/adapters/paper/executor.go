package paper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"binaryOptionsBot/internal/domain"
	"binaryOptionsBot/internal/ports"
)

// Config holds the paper venue settings.
type Config struct {
	PlatformID string        // Reported as the trade's platform id
	PayoutRate float64       // Profit per unit stake on a winning contract
	Retention  time.Duration // How long settled contracts stay queryable
}

type contract struct {
	ref       string
	req       ports.ExecutionRequest
	entry     float64
	entryTime time.Time
	expiry    time.Time
	state     ports.ContractState
	exit      float64
	profit    float64
	settledAt time.Time
}

// Executor implements ports.PlatformExecutor with simulated binary contracts priced from a live
// PriceSource. A contract settles at the first status poll after its expiry.
type Executor struct {
	prices ports.PriceSource
	cfg    Config
	logger ports.Logger
	now    func() time.Time

	mu        sync.Mutex
	contracts map[string]*contract
}

// NewExecutor creates a paper executor.
func NewExecutor(prices ports.PriceSource, cfg Config, logger ports.Logger) (*Executor, error) {
	if prices == nil || logger == nil {
		return nil, fmt.Errorf("missing required dependencies for paper executor")
	}
	if cfg.PlatformID == "" {
		cfg.PlatformID = "paper"
	}
	if cfg.PayoutRate <= 0 {
		cfg.PayoutRate = 0.85
	}
	if cfg.Retention <= 0 {
		cfg.Retention = time.Hour
	}
	return &Executor{
		prices:    prices,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		contracts: make(map[string]*contract),
	}, nil
}

// Execute opens a contract at the current price.
func (e *Executor) Execute(ctx context.Context, req ports.ExecutionRequest) (*ports.ExecutionResult, error) {
	op := "PaperExecutor.Execute"
	if !req.Direction.Valid() || req.Stake <= 0 || req.Duration <= 0 {
		return nil, fmt.Errorf("%s: %w: %+v", op, ports.ErrInvalidRequest, req)
	}
	price, err := e.prices.GetTickerPrice(ctx, req.Asset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ports.ErrExecutionFailed, err)
	}

	now := e.now()
	c := &contract{
		ref:       uuid.NewString(),
		req:       req,
		entry:     price,
		entryTime: now,
		expiry:    now.Add(time.Duration(req.Duration) * time.Second),
		state:     ports.ContractOpen,
	}

	e.mu.Lock()
	e.prune(now)
	e.contracts[c.ref] = c
	e.mu.Unlock()

	e.logger.Debug(ctx, op+": contract opened", map[string]interface{}{
		"contractRef": c.ref,
		"asset":       req.Asset,
		"direction":   req.Direction,
		"stake":       req.Stake,
		"entryPrice":  price,
		"expiry":      c.expiry,
	})
	return &ports.ExecutionResult{
		PlatformID:  e.cfg.PlatformID,
		ContractRef: c.ref,
		EntryPrice:  price,
		EntryTime:   now,
	}, nil
}

// QueryStatus reports the contract state, settling it when it has expired.
// Open contracts carry their mark-to-market profit.
func (e *Executor) QueryStatus(ctx context.Context, ref string) (*ports.ContractStatus, error) {
	c, err := e.lookup(ref)
	if err != nil {
		return nil, err
	}
	if st, done := e.terminalStatus(c); done {
		return st, nil
	}

	price, err := e.prices.GetTickerPrice(ctx, c.req.Asset)
	if err != nil {
		return nil, fmt.Errorf("price for %s: %w", ref, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if c.state != ports.ContractOpen {
		return e.statusLocked(c), nil
	}
	if !e.now().Before(c.expiry) {
		e.settleLocked(c, ports.ContractExpired, price)
		return e.statusLocked(c), nil
	}
	mark := domain.BinaryProfit(c.req.Direction, c.req.Stake, c.entry, price, e.cfg.PayoutRate)
	return &ports.ContractStatus{State: ports.ContractOpen, Profit: &mark}, nil
}

// ForceClose settles an open contract at the current price.
func (e *Executor) ForceClose(ctx context.Context, ref string) error {
	c, err := e.lookup(ref)
	if err != nil {
		return err
	}
	price, err := e.prices.GetTickerPrice(ctx, c.req.Asset)
	if err != nil {
		return fmt.Errorf("force close %s: %w", ref, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if c.state == ports.ContractOpen {
		e.settleLocked(c, ports.ContractClosed, price)
	}
	return nil
}

// EmergencyClose cancels an open contract without pricing it.
func (e *Executor) EmergencyClose(ctx context.Context, ref string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.contracts[ref]
	if !ok || c.state != ports.ContractOpen {
		return
	}
	c.state = ports.ContractCancelled
	c.settledAt = e.now()
	e.logger.Warn(ctx, "PaperExecutor.EmergencyClose: contract cancelled", map[string]interface{}{"contractRef": ref})
}

// OpenContracts returns the number of unsettled contracts.
func (e *Executor) OpenContracts() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, c := range e.contracts {
		if c.state == ports.ContractOpen {
			n++
		}
	}
	return n
}

func (e *Executor) lookup(ref string) (*contract, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.contracts[ref]
	if !ok {
		return nil, fmt.Errorf("contract %s: %w", ref, ports.ErrContractNotFound)
	}
	return c, nil
}

func (e *Executor) terminalStatus(c *contract) (*ports.ContractStatus, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if c.state == ports.ContractOpen {
		return nil, false
	}
	return e.statusLocked(c), true
}

func (e *Executor) settleLocked(c *contract, state ports.ContractState, price float64) {
	c.state = state
	c.exit = price
	c.profit = domain.BinaryProfit(c.req.Direction, c.req.Stake, c.entry, price, e.cfg.PayoutRate)
	c.settledAt = e.now()
}

func (e *Executor) statusLocked(c *contract) *ports.ContractStatus {
	st := &ports.ContractStatus{State: c.state}
	if c.state == ports.ContractCancelled {
		return st
	}
	exit, profit := c.exit, c.profit
	st.ExitPrice = &exit
	st.Profit = &profit
	st.Result = domain.ResultForProfit(profit)
	return st
}

// prune drops settled contracts past the retention window. Caller holds mu.
func (e *Executor) prune(now time.Time) {
	for ref, c := range e.contracts {
		if c.state != ports.ContractOpen && now.Sub(c.settledAt) > e.cfg.Retention {
			delete(e.contracts, ref)
		}
	}
}
