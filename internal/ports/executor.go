package ports

import (
	"context"
	"time"

	"binaryOptionsBot/internal/domain"
)

// ContractState is the venue-side state of a binary contract.
type ContractState string

const (
	ContractOpen      ContractState = "open"
	ContractClosed    ContractState = "closed"
	ContractExpired   ContractState = "expired"
	ContractCancelled ContractState = "cancelled"
)

// ExecutionRequest describes the contract to open.
type ExecutionRequest struct {
	Asset     string
	Direction domain.Direction
	Stake     float64
	Duration  int // seconds
}

// ExecutionResult is returned by the venue after a contract is opened.
type ExecutionResult struct {
	PlatformID  string
	ContractRef string
	EntryPrice  float64
	EntryTime   time.Time
}

// ContractStatus is a status poll answer. Optional values are nil when the venue did not report them.
// For open contracts Profit carries the mark-to-market value.
type ContractStatus struct {
	State     ContractState
	ExitPrice *float64
	Profit    *float64
	Result    domain.TradeResult
}

// PlatformExecutor opens and manages binary contracts on a trading venue.
type PlatformExecutor interface {
	// Execute opens a contract.
	Execute(ctx context.Context, req ExecutionRequest) (*ExecutionResult, error)
	// QueryStatus polls the venue for the contract state.
	QueryStatus(ctx context.Context, contractRef string) (*ContractStatus, error)
	// ForceClose closes a contract before expiry.
	ForceClose(ctx context.Context, contractRef string) error
	// EmergencyClose is a best-effort close with no result.
	EmergencyClose(ctx context.Context, contractRef string)
}
