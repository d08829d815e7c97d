package risk

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"binaryOptionsBot/internal/domain"
	"binaryOptionsBot/internal/ports"
)

// RiskConfig holds configuration for risk management
type RiskConfig struct {
	MinStake             float64
	MaxStake             float64
	MinConfidence        float64
	MaxDailyLoss         float64 // absolute, in account currency
	MaxDailyTrades       int
	MaxExposure          float64 // sum of stakes of open contracts
	MaxConsecutiveLosses int
	Cooldown             time.Duration // pause after MaxConsecutiveLosses
}

// RiskManager implements ports.RiskGate and tracks the account state from trade notifications.
type RiskManager struct {
	config RiskConfig
	logger ports.Logger
	now    func() time.Time

	mu    sync.Mutex
	stats RiskStats
}

// RiskStats holds risk management statistics
type RiskStats struct {
	DailyPnL          float64
	PeakDailyPnL      float64
	CurrentDrawdown   float64
	OpenTrades        int
	TotalExposure     float64
	DailyTrades       int
	ConsecutiveLosses int
	CooldownUntil     time.Time
	Rejections        int
	LastResetTime     int64
}

// NewRiskManager creates a new risk manager instance
func NewRiskManager(config RiskConfig, logger ports.Logger) *RiskManager {
	if config.MaxDailyTrades <= 0 {
		config.MaxDailyTrades = 100
	}
	r := &RiskManager{
		config: config,
		logger: logger,
		now:    time.Now,
	}
	r.stats.LastResetTime = r.now().Unix()
	return r
}

// Assess validates a signal against the stake bounds and the account limits.
func (r *RiskManager) Assess(ctx context.Context, signal domain.TradeSignal) (ports.RiskAssessment, error) {
	if err := ctx.Err(); err != nil {
		return ports.RiskAssessment{}, fmt.Errorf("%w: %v", ports.ErrContextCanceled, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.rollDay()

	reason := r.rejectReason(signal)
	if reason == "" {
		return ports.RiskAssessment{Approved: true}, nil
	}
	r.stats.Rejections++
	if r.logger != nil {
		r.logger.Debug(ctx, "RiskManager.Assess: signal rejected", map[string]interface{}{
			"strategyID": signal.StrategyID,
			"stake":      signal.Stake,
			"reason":     reason,
		})
	}
	return ports.RiskAssessment{Approved: false, Reason: reason}, nil
}

func (r *RiskManager) rejectReason(signal domain.TradeSignal) string {
	if math.IsNaN(signal.Stake) || math.IsInf(signal.Stake, 0) || signal.Stake <= 0 {
		return fmt.Sprintf("invalid stake %v", signal.Stake)
	}
	if math.IsNaN(signal.Confidence) || math.IsInf(signal.Confidence, 0) {
		return fmt.Sprintf("invalid confidence %v", signal.Confidence)
	}

	// Check stake bounds
	if r.config.MaxStake > 0 && (signal.Stake < r.config.MinStake || signal.Stake > r.config.MaxStake) {
		return fmt.Sprintf("stake %.2f outside [%.2f, %.2f]", signal.Stake, r.config.MinStake, r.config.MaxStake)
	}

	// Check confidence
	if signal.Confidence < r.config.MinConfidence {
		return fmt.Sprintf("confidence %.3f below %.3f", signal.Confidence, r.config.MinConfidence)
	}

	// Check cooldown after a losing streak
	if now := r.now(); now.Before(r.stats.CooldownUntil) {
		return fmt.Sprintf("cooling down after losing streak until %s", r.stats.CooldownUntil.Format(time.RFC3339))
	}

	if err := r.checkLimits(); err != nil {
		return err.Error()
	}

	// Check total exposure
	if r.config.MaxExposure > 0 && r.stats.TotalExposure+signal.Stake > r.config.MaxExposure {
		return fmt.Sprintf("exposure %.2f would exceed maximum allowed %.2f", r.stats.TotalExposure+signal.Stake, r.config.MaxExposure)
	}
	return ""
}

// TradeOpened accounts for a new open contract.
func (r *RiskManager) TradeOpened(ctx context.Context, trade domain.Trade) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rollDay()
	r.stats.OpenTrades++
	r.stats.TotalExposure += trade.Stake
	r.stats.DailyTrades++
}

// TradeClosed releases the exposure and books the realized result.
func (r *RiskManager) TradeClosed(ctx context.Context, trade domain.Trade) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rollDay()

	if r.stats.OpenTrades > 0 {
		r.stats.OpenTrades--
	}
	r.stats.TotalExposure -= trade.Stake
	if r.stats.TotalExposure < 0 {
		r.stats.TotalExposure = 0
	}
	if trade.Status == domain.TradeCancelled {
		return
	}

	// Update daily PnL and drawdown
	r.stats.DailyPnL += trade.Profit
	if r.stats.DailyPnL > r.stats.PeakDailyPnL {
		r.stats.PeakDailyPnL = r.stats.DailyPnL
	}
	r.stats.CurrentDrawdown = r.stats.PeakDailyPnL - r.stats.DailyPnL

	if trade.Profit > 0 {
		r.stats.ConsecutiveLosses = 0
		return
	}
	r.stats.ConsecutiveLosses++
	if r.config.MaxConsecutiveLosses > 0 && r.stats.ConsecutiveLosses >= r.config.MaxConsecutiveLosses {
		r.stats.CooldownUntil = r.now().Add(r.config.Cooldown)
		r.stats.ConsecutiveLosses = 0
		if r.logger != nil {
			r.logger.Warn(ctx, "RiskManager: losing streak, trading paused", map[string]interface{}{
				"until": r.stats.CooldownUntil.Format(time.RFC3339),
			})
		}
	}
}

// ResetDailyStats resets daily statistics
func (r *RiskManager) ResetDailyStats(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resetDaily()
}

// CheckRiskLimits checks if any risk limits have been exceeded
func (r *RiskManager) CheckRiskLimits(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rollDay()
	return r.checkLimits()
}

// GetStats returns a copy of the current risk management statistics
func (r *RiskManager) GetStats() RiskStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

func (r *RiskManager) checkLimits() error {
	// Check daily loss limit
	if r.config.MaxDailyLoss > 0 && r.stats.DailyPnL <= -r.config.MaxDailyLoss {
		return fmt.Errorf("daily loss %.2f exceeds maximum allowed %.2f", -r.stats.DailyPnL, r.config.MaxDailyLoss)
	}

	// Check daily trades limit
	if r.stats.DailyTrades >= r.config.MaxDailyTrades {
		return fmt.Errorf("daily trades %d exceeds maximum allowed %d", r.stats.DailyTrades, r.config.MaxDailyTrades)
	}
	return nil
}

// rollDay resets the daily counters when the UTC date changed. Caller holds mu.
func (r *RiskManager) rollDay() {
	last := time.Unix(r.stats.LastResetTime, 0).UTC()
	now := r.now().UTC()
	if now.YearDay() != last.YearDay() || now.Year() != last.Year() {
		r.resetDaily()
	}
}

func (r *RiskManager) resetDaily() {
	r.stats.DailyPnL = 0
	r.stats.PeakDailyPnL = 0
	r.stats.CurrentDrawdown = 0
	r.stats.DailyTrades = 0
	r.stats.LastResetTime = r.now().Unix()
}
