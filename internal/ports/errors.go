package ports

import (
	"errors"

	"binaryOptionsBot/internal/domain"
)

// Standard application-level errors.
// Adapters should wrap underlying infrastructure errors with these standard errors.
var (
	// General Errors
	ErrUnknown            = errors.New("unknown error occurred")
	ErrInvalidRequest     = errors.New("invalid request parameters or format")
	ErrNotFound           = errors.New("resource not found")
	ErrTimeout            = errors.New("operation timed out")
	ErrContextCanceled    = errors.New("operation canceled via context")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Engine and Manager Errors
	ErrInvalidSignal     = errors.New("invalid trade signal")
	ErrRiskRejected      = errors.New("signal rejected by risk gate")
	ErrEmergencyStopped  = errors.New("trading halted by emergency stop")
	ErrAlreadyRunning    = errors.New("execution loop already running")
	ErrStrategyNotFound  = errors.New("strategy not found")
	ErrCeilingReached    = errors.New("active strategy ceiling reached")
	ErrInvalidTransition = domain.ErrInvalidTransition

	// Venue Specific Errors
	ErrExchangeUnavailable  = errors.New("venue API is unavailable")
	ErrConnectionFailed     = errors.New("failed to connect to the venue")
	ErrRateLimited          = errors.New("API rate limit exceeded")
	ErrAuthenticationFailed = errors.New("venue authentication failed (check API keys)")
	ErrContractNotFound     = errors.New("contract not found on the venue")
	ErrExecutionFailed      = errors.New("failed to open contract")
	ErrNoMarketData         = errors.New("no market data available")

	// Database Specific Errors
	ErrDBConnection = errors.New("database connection error")
	ErrQueryFailed  = errors.New("database query failed")
	ErrUpdateFailed = errors.New("database update failed")
)
