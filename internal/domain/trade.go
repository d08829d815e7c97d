package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidTransition is returned when a trade is moved out of a terminal state.
var ErrInvalidTransition = errors.New("invalid trade status transition")

// Trade represents an executed binary contract tracked by the engine.
type Trade struct {
	ID          string // Local identifier
	PlatformID  string // Identifier of the venue that holds the contract
	StrategyID  string
	Asset       string
	Direction   Direction
	Stake       float64
	Duration    int // seconds
	Confidence  float64
	EntryPrice  float64
	EntryTime   time.Time
	ContractRef string // Venue contract reference

	Status           TradeStatus
	UnrealizedProfit float64 // Last mark-to-market reported while active
	ExitPrice        float64
	ExitTime         time.Time
	Profit           float64
	Result           TradeResult
}

// IsActive checks if the trade is still open.
func (t *Trade) IsActive() bool {
	return t.Status == TradeActive
}

// Age returns how long the trade has been open at now.
func (t *Trade) Age(now time.Time) time.Duration {
	return now.Sub(t.EntryTime)
}

// Close moves an active trade into a terminal state.
// Closed and timed-out trades get a win/loss result from profit; cancelled trades are marked cancelled.
func (t *Trade) Close(status TradeStatus, exitPrice, profit float64, at time.Time) error {
	if !status.Terminal() {
		return fmt.Errorf("%w: %s is not terminal", ErrInvalidTransition, status)
	}
	if t.Status != TradeActive {
		return fmt.Errorf("%w: trade %s is already %s", ErrInvalidTransition, t.ID, t.Status)
	}
	t.Status = status
	t.ExitPrice = exitPrice
	t.ExitTime = at
	t.Profit = profit
	t.UnrealizedProfit = 0
	if status == TradeCancelled {
		t.Result = ResultCancelled
	} else {
		t.Result = ResultForProfit(profit)
	}
	return nil
}
