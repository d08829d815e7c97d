package events

import (
	"time"

	"binaryOptionsBot/internal/domain"
)

// Kind enumerates the messages flowing from the engine and the manager to the orchestrator.
type Kind string

const (
	KindTradeExecuted   Kind = "trade.executed"
	KindTradeFailed     Kind = "trade.failed"
	KindTradeClosed     Kind = "trade.closed"
	KindEmergencyStop   Kind = "engine.emergency_stop"
	KindSignalDropped   Kind = "signal.dropped"
	KindStrategyRetired Kind = "strategy.retired"
	KindStrategyCreated Kind = "strategy.created"
)

// Event is implemented by every typed message.
type Event interface {
	Kind() Kind
	OccurredAt() time.Time
}

// TradeExecuted is published when a signal became an active trade.
type TradeExecuted struct {
	Trade domain.Trade
	At    time.Time
}

// TradeFailed is published when a signal was dropped during validation, risk check or execution.
type TradeFailed struct {
	Signal domain.TradeSignal
	Reason string
	Err    error
	At     time.Time
}

// TradeClosed is published when a trade reached a terminal status.
type TradeClosed struct {
	Trade domain.Trade
	At    time.Time
}

// EmergencyStop is published once per latch with the number of trades force-closed.
type EmergencyStop struct {
	Count  int
	Reason string
	At     time.Time
}

// SignalDropped is published when a queued signal was evicted by a newer one.
type SignalDropped struct {
	Signal domain.TradeSignal
	At     time.Time
}

// StrategyRetired is published when a strategy leaves the active set.
type StrategyRetired struct {
	StrategyID string
	WinRate    float64
	Trades     int
	At         time.Time
}

// StrategyCreated is published for every hybrid or mutant added to the registry.
type StrategyCreated struct {
	Strategy domain.Strategy
	Origin   string // "hybrid", "mutation" or "replacement"
	At       time.Time
}

func (TradeExecuted) Kind() Kind   { return KindTradeExecuted }
func (TradeFailed) Kind() Kind     { return KindTradeFailed }
func (TradeClosed) Kind() Kind     { return KindTradeClosed }
func (EmergencyStop) Kind() Kind   { return KindEmergencyStop }
func (SignalDropped) Kind() Kind   { return KindSignalDropped }
func (StrategyRetired) Kind() Kind { return KindStrategyRetired }
func (StrategyCreated) Kind() Kind { return KindStrategyCreated }

func (e TradeExecuted) OccurredAt() time.Time   { return e.At }
func (e TradeFailed) OccurredAt() time.Time     { return e.At }
func (e TradeClosed) OccurredAt() time.Time     { return e.At }
func (e EmergencyStop) OccurredAt() time.Time   { return e.At }
func (e SignalDropped) OccurredAt() time.Time   { return e.At }
func (e StrategyRetired) OccurredAt() time.Time { return e.At }
func (e StrategyCreated) OccurredAt() time.Time { return e.At }
