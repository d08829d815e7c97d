package evolution

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"binaryOptionsBot/internal/domain"
)

// Config holds the tunables of hybridization and mutation
type Config struct {
	HybridMinTrades  int     // minimum trades for a strategy to be a hybrid parent
	MutationRate     float64 // probability that a numeric parameter is perturbed
	MutationScale    float64 // maximum relative perturbation of a numeric parameter
	ConfidenceJitter float64 // maximum absolute perturbation of confidence
	MinConfidence    float64
	MaxConfidence    float64
}

// DefaultConfig returns the standard evolution settings
func DefaultConfig() Config {
	return Config{
		HybridMinTrades:  20,
		MutationRate:     0.3,
		MutationScale:    0.1,
		ConfidenceJitter: 0.05,
		MinConfidence:    0.5,
		MaxConfidence:    1.0,
	}
}

// Score is the composite ranking used for selection: win rate times profit factor.
func Score(s domain.Strategy) float64 {
	return s.Performance.WinRate * s.Performance.ProfitFactor
}

// TopPerformers returns up to n strategies with at least minTrades trades, best score first.
// Ties are broken by total profit, then by id for a stable order.
func TopPerformers(candidates []domain.Strategy, minTrades, n int) []domain.Strategy {
	eligible := lo.Filter(candidates, func(s domain.Strategy, _ int) bool {
		return s.Performance.TotalTrades >= minTrades
	})
	sort.SliceStable(eligible, func(i, j int) bool {
		si, sj := Score(eligible[i]), Score(eligible[j])
		if si != sj {
			return si > sj
		}
		if eligible[i].Performance.TotalProfit != eligible[j].Performance.TotalProfit {
			return eligible[i].Performance.TotalProfit > eligible[j].Performance.TotalProfit
		}
		return eligible[i].ID < eligible[j].ID
	})
	if n >= 0 && len(eligible) > n {
		eligible = eligible[:n]
	}
	return eligible
}

// families returns the rule families a strategy evaluates.
func families(s domain.Strategy) []domain.StrategyType {
	if s.Type == domain.StrategyHybrid {
		return s.Components
	}
	return []domain.StrategyType{s.Type}
}

// Hybridize combines two parents into a new hybrid strategy. Numeric parameters present in both
// parents are averaged, parameters present in one keep that value, flags come from either parent
// (a first), indicators are the union and entry rules are OR-combined.
func Hybridize(a, b domain.Strategy, now time.Time) domain.Strategy {
	numeric := make(map[string]float64, len(a.Params.Numeric)+len(b.Params.Numeric))
	for k, v := range a.Params.Numeric {
		if bv, ok := b.Params.Numeric[k]; ok {
			numeric[k] = (v + bv) / 2
		} else {
			numeric[k] = v
		}
	}
	for k, v := range b.Params.Numeric {
		if _, ok := a.Params.Numeric[k]; !ok {
			numeric[k] = v
		}
	}

	var flags map[string]bool
	if len(a.Params.Flags) > 0 || len(b.Params.Flags) > 0 {
		flags = make(map[string]bool, len(a.Params.Flags)+len(b.Params.Flags))
		for k, v := range b.Params.Flags {
			flags[k] = v
		}
		for k, v := range a.Params.Flags {
			flags[k] = v
		}
	}

	return domain.Strategy{
		ID:         uuid.NewString(),
		Name:       fmt.Sprintf("hybrid(%s|%s)", a.Name, b.Name),
		Type:       domain.StrategyHybrid,
		Asset:      a.Asset,
		Params:     domain.Params{Numeric: numeric, Flags: flags},
		Indicators: lo.Union(a.Indicators, b.Indicators),
		Components: lo.Uniq(append(families(a), families(b)...)),
		Rules: domain.Rules{
			Entry: fmt.Sprintf("(%s) OR (%s)", a.Rules.Entry, b.Rules.Entry),
			Exit:  fmt.Sprintf("(%s) OR (%s)", a.Rules.Exit, b.Rules.Exit),
		},
		Confidence: (a.Confidence + b.Confidence) / 2,
		Status:     domain.StrategyActive,
		Evolution: domain.EvolutionLineage{
			Generation: max(a.Evolution.Generation, b.Evolution.Generation) + 1,
			ParentIDs:  []string{a.ID, b.ID},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Mutate clones parent under a new identity and randomly perturbs its parameters and confidence.
func Mutate(parent domain.Strategy, rng *rand.Rand, cfg Config, now time.Time) domain.Strategy {
	child := parent.Clone()
	child.ID = uuid.NewString()
	child.Status = domain.StrategyActive
	child.Performance = domain.StrategyPerformance{}
	child.Evolution = domain.EvolutionLineage{
		Generation:    parent.Evolution.Generation + 1,
		MutationCount: parent.Evolution.MutationCount + 1,
		ParentIDs:     []string{parent.ID},
	}
	child.Name = fmt.Sprintf("%s-m%d", baseName(parent.Name), child.Evolution.MutationCount)
	child.CreatedAt = now
	child.UpdatedAt = now

	// Sorted keys keep a seeded rng reproducible.
	keys := lo.Keys(child.Params.Numeric)
	sort.Strings(keys)
	for _, k := range keys {
		if rng.Float64() < cfg.MutationRate {
			factor := 1 + (rng.Float64()*2-1)*cfg.MutationScale
			child.Params.Numeric[k] *= factor
		}
	}

	conf := child.Confidence + (rng.Float64()*2-1)*cfg.ConfidenceJitter
	child.Confidence = lo.Clamp(conf, cfg.MinConfidence, cfg.MaxConfidence)
	return child
}

// Sample picks up to n distinct strategies at random.
func Sample(strategies []domain.Strategy, n int, rng *rand.Rand) []domain.Strategy {
	if n <= 0 {
		return nil
	}
	if n >= len(strategies) {
		return append([]domain.Strategy(nil), strategies...)
	}
	out := make([]domain.Strategy, 0, n)
	for _, i := range rng.Perm(len(strategies))[:n] {
		out = append(out, strategies[i])
	}
	return out
}

// baseName strips a previous "-mN" suffix so names do not grow on every generation.
func baseName(name string) string {
	for i := len(name) - 1; i > 0; i-- {
		c := name[i]
		if c >= '0' && c <= '9' {
			continue
		}
		if c == 'm' && i > 0 && name[i-1] == '-' && i < len(name)-1 {
			return name[:i-1]
		}
		break
	}
	return name
}
