package domain

import "time"

// StrategyType identifies the rule family a strategy evaluates.
type StrategyType string

const (
	StrategyMomentum  StrategyType = "momentum"
	StrategyReversal  StrategyType = "reversal"
	StrategyBreakout  StrategyType = "breakout"
	StrategyComposite StrategyType = "composite"
	StrategyAdaptive  StrategyType = "adaptive"
	StrategyHybrid    StrategyType = "hybrid" // disjunction of Components
)

// StrategyStatus represents whether a strategy still takes part in signal generation.
type StrategyStatus string

const (
	StrategyActive  StrategyStatus = "active"
	StrategyRetired StrategyStatus = "retired"
)

// Params holds the tunable values of a strategy.
type Params struct {
	Numeric map[string]float64 `json:"numeric" yaml:"numeric"`
	Flags   map[string]bool    `json:"flags,omitempty" yaml:"flags,omitempty"`
}

// Float returns the numeric parameter key, or def when it is not set.
func (p Params) Float(key string, def float64) float64 {
	if v, ok := p.Numeric[key]; ok {
		return v
	}
	return def
}

// Int returns the numeric parameter key rounded to the nearest integer, or def when it is not set.
func (p Params) Int(key string, def int) int {
	if v, ok := p.Numeric[key]; ok {
		if v < 0 {
			return int(v - 0.5)
		}
		return int(v + 0.5)
	}
	return def
}

// Flag returns the boolean parameter key, or def when it is not set.
func (p Params) Flag(key string, def bool) bool {
	if v, ok := p.Flags[key]; ok {
		return v
	}
	return def
}

// Clone deep-copies the parameter maps.
func (p Params) Clone() Params {
	out := Params{Numeric: make(map[string]float64, len(p.Numeric))}
	for k, v := range p.Numeric {
		out.Numeric[k] = v
	}
	if p.Flags != nil {
		out.Flags = make(map[string]bool, len(p.Flags))
		for k, v := range p.Flags {
			out.Flags[k] = v
		}
	}
	return out
}

// Rules is the human-readable description of a strategy's entry and exit conditions.
type Rules struct {
	Entry string `json:"entry" yaml:"entry"`
	Exit  string `json:"exit" yaml:"exit"`
}

// StrategyPerformance holds live statistics for a strategy.
type StrategyPerformance struct {
	TotalTrades    int
	WinningTrades  int
	LosingTrades   int
	WinRate        float64
	TotalProfit    float64
	AverageProfit  float64
	RecentOutcomes []float64 // profits of the most recent trades, oldest first
	MaxDrawdown    float64   // computed over RecentOutcomes
	ProfitFactor   float64   // computed over RecentOutcomes
	LastTradeAt    time.Time
}

// EvolutionLineage records how a strategy was derived.
type EvolutionLineage struct {
	Generation    int
	MutationCount int
	ParentIDs     []string
}

// Strategy is a rule family instance with its parameters, statistics and lineage.
type Strategy struct {
	ID          string
	Name        string
	Type        StrategyType
	Asset       string
	Params      Params
	Indicators  []string
	Components  []StrategyType // rule families OR-combined by a hybrid
	Rules       Rules
	Confidence  float64
	Status      StrategyStatus
	Performance StrategyPerformance
	Evolution   EvolutionLineage
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsActive checks if the strategy still generates signals.
func (s *Strategy) IsActive() bool {
	return s.Status == StrategyActive
}

// Uses reports whether the strategy declares the named indicator.
func (s *Strategy) Uses(indicator string) bool {
	for _, name := range s.Indicators {
		if name == indicator {
			return true
		}
	}
	return false
}

// Clone returns a deep copy safe to hand out of the registry.
func (s *Strategy) Clone() Strategy {
	out := *s
	out.Params = s.Params.Clone()
	out.Indicators = append([]string(nil), s.Indicators...)
	out.Components = append([]StrategyType(nil), s.Components...)
	out.Performance.RecentOutcomes = append([]float64(nil), s.Performance.RecentOutcomes...)
	out.Evolution.ParentIDs = append([]string(nil), s.Evolution.ParentIDs...)
	return out
}

// Indicator names a strategy can declare.
const (
	IndicatorRSI        = "rsi"
	IndicatorBollinger  = "bollinger"
	IndicatorMomentum   = "momentum"
	IndicatorMACD       = "macd"
	IndicatorLevels     = "support_resistance"
	IndicatorVolume     = "volume"
	IndicatorPrediction = "prediction"
	IndicatorPattern    = "pattern"
	IndicatorATR        = "atr"
	IndicatorTrend      = "trend"
)
