package analytics

import (
	"time"

	"binaryOptionsBot/internal/domain"
)

// RecordOutcome folds one settled trade profit into perf. The recent-outcome window keeps at most
// window entries, and drawdown and profit factor are recomputed over that window only.
func RecordOutcome(perf *domain.StrategyPerformance, profit float64, at time.Time, window int) {
	perf.TotalTrades++
	if domain.ResultForProfit(profit) == domain.ResultWin {
		perf.WinningTrades++
	} else {
		perf.LosingTrades++
	}
	perf.WinRate = float64(perf.WinningTrades) / float64(perf.TotalTrades)
	perf.TotalProfit += profit
	perf.AverageProfit = perf.TotalProfit / float64(perf.TotalTrades)
	perf.LastTradeAt = at

	perf.RecentOutcomes = append(perf.RecentOutcomes, profit)
	if window > 0 && len(perf.RecentOutcomes) > window {
		trimmed := make([]float64, window)
		copy(trimmed, perf.RecentOutcomes[len(perf.RecentOutcomes)-window:])
		perf.RecentOutcomes = trimmed
	}

	perf.MaxDrawdown = MaxDrawdown(perf.RecentOutcomes)
	perf.ProfitFactor = ProfitFactor(perf.RecentOutcomes)
}

// MaxDrawdown returns the largest peak-to-trough decline of the running cumulative profit,
// starting from zero, in the same units as the outcomes.
func MaxDrawdown(outcomes []float64) float64 {
	var cum, peak, maxDD float64
	for _, p := range outcomes {
		cum += p
		if cum > peak {
			peak = cum
		}
		if dd := peak - cum; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// ProfitFactor returns gross wins divided by gross losses, or 0 when there are no losses.
func ProfitFactor(outcomes []float64) float64 {
	var wins, losses float64
	for _, p := range outcomes {
		if p > 0 {
			wins += p
		} else {
			losses -= p
		}
	}
	if losses == 0 {
		return 0
	}
	return wins / losses
}
