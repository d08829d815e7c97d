package strategies

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"

	"binaryOptionsBot/internal/domain"
	"binaryOptionsBot/internal/ports"
	"binaryOptionsBot/internal/strategy/indicators"
)

// Candidate is a directional entry proposed by a rule family.
type Candidate struct {
	Family     domain.StrategyType
	Direction  domain.Direction
	Confidence float64
	Reason     string
}

// Inputs holds the indicator values computed from one snapshot for one strategy.
// A Has* flag is false when the value was not required or could not be computed.
type Inputs struct {
	Price float64

	RSI         float64
	HasRSI      bool
	Momentum    float64
	HasMomentum bool
	Bands       indicators.Bands
	HasBands    bool
	MACD        indicators.MACDValue
	HasMACD     bool
	Levels      indicators.Levels
	HasLevels   bool
	ATR         float64
	HasATR      bool
	Trend       float64 // moving average of closes
	HasTrend    bool

	Volume        float64
	AverageVolume float64
	HasVolume     bool

	Prediction    ports.Prediction
	HasPrediction bool
	PatternScore  float64
	HasPattern    bool
}

// ErrInsufficientHistory is returned when a snapshot is too short for a required indicator.
var ErrInsufficientHistory = errors.New("insufficient price history")

// Families returns the rule families a strategy evaluates.
func Families(s domain.Strategy) []domain.StrategyType {
	if s.Type == domain.StrategyHybrid {
		return s.Components
	}
	return []domain.StrategyType{s.Type}
}

var familyIndicators = map[domain.StrategyType][]string{
	domain.StrategyMomentum:  {domain.IndicatorRSI, domain.IndicatorMomentum},
	domain.StrategyReversal:  {domain.IndicatorRSI, domain.IndicatorBollinger},
	domain.StrategyBreakout:  {domain.IndicatorLevels, domain.IndicatorVolume},
	domain.StrategyComposite: {domain.IndicatorRSI, domain.IndicatorLevels, domain.IndicatorMomentum},
	domain.StrategyAdaptive:  {domain.IndicatorPrediction, domain.IndicatorPattern},
}

// familyRequirements returns the indicators one family of s cannot evaluate without.
func familyRequirements(s domain.Strategy, f domain.StrategyType) []string {
	required := append([]string(nil), familyIndicators[f]...)
	switch f {
	case domain.StrategyMomentum:
		if s.Uses(domain.IndicatorMACD) || s.Params.Flag("useMacd", false) {
			required = append(required, domain.IndicatorMACD)
		}
		if s.Params.Int("trendPeriod", 0) > 0 {
			required = append(required, domain.IndicatorTrend)
		}
	case domain.StrategyBreakout:
		if s.Params.Float("minAtrPct", 0) > 0 {
			required = append(required, domain.IndicatorATR)
		}
	}
	return required
}

// RequiredIndicators returns the declared indicators plus those its families cannot work without.
func RequiredIndicators(s domain.Strategy) []string {
	required := append([]string(nil), s.Indicators...)
	for _, f := range Families(s) {
		required = append(required, familyRequirements(s, f)...)
	}
	if s.Params.Flag("useMacd", false) {
		required = append(required, domain.IndicatorMACD)
	}
	return lo.Uniq(required)
}

// priceIndicator resolves the indicators computed from closing prices alone.
func priceIndicator(name string, p domain.Params) (indicators.Indicator, bool) {
	switch name {
	case domain.IndicatorRSI:
		return indicators.NewRSI(indicators.RSIConfig{IndicatorConfig: indicators.IndicatorConfig{Period: p.Int("rsiPeriod", 14)}}), true
	case domain.IndicatorMomentum:
		return indicators.NewMomentum(p.Int("momentumPeriod", 10)), true
	case domain.IndicatorTrend:
		typ := indicators.SimpleMovingAverage
		if p.Flag("trendEma", false) {
			typ = indicators.ExponentialMovingAverage
		}
		return indicators.NewMovingAverage(indicators.MovingAverageConfig{
			IndicatorConfig: indicators.IndicatorConfig{Period: p.Int("trendPeriod", 20)},
			Type:            typ,
		}), true
	}
	return nil, false
}

// MinHistory returns the longest price history any price indicator of s needs.
func MinHistory(s domain.Strategy) int {
	need := 0
	for _, name := range RequiredIndicators(s) {
		if ind, ok := priceIndicator(name, s.Params); ok {
			need = max(need, ind.RequiredDataPoints())
		}
	}
	return need
}

// inputBuilder computes each indicator at most once per snapshot.
type inputBuilder struct {
	ctx    context.Context
	s      domain.Strategy
	snap   *ports.MarketSnapshot
	oracle ports.PredictionOracle
	in     Inputs
	done   map[string]error
}

// BuildInputs computes the indicators each rule family of the strategy needs. A family whose
// indicators cannot be computed is left out, so the other families of a hybrid still evaluate.
// An error is returned only when no family has its inputs. The oracle may be nil when no
// strategy needs prediction or pattern scores.
func BuildInputs(ctx context.Context, s domain.Strategy, snap *ports.MarketSnapshot, oracle ports.PredictionOracle) (Inputs, error) {
	b := &inputBuilder{
		ctx:    ctx,
		s:      s,
		snap:   snap,
		oracle: oracle,
		in:     Inputs{Price: snap.Price},
		done:   make(map[string]error),
	}

	var errs []error
	ready := 0
	for _, f := range Families(s) {
		if err := b.computeAll(familyRequirements(s, f)); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", f, err))
			continue
		}
		ready++
	}
	if ready == 0 {
		if len(errs) == 0 {
			return b.in, fmt.Errorf("strategy %s has no rule family", s.ID)
		}
		return b.in, errors.Join(errs...)
	}

	// Declared extras are informational; a failure does not block the families.
	for _, name := range s.Indicators {
		_ = b.compute(name)
	}
	return b.in, nil
}

func (b *inputBuilder) computeAll(names []string) error {
	for _, name := range names {
		if err := b.compute(name); err != nil {
			return err
		}
	}
	return nil
}

func (b *inputBuilder) compute(name string) error {
	if err, ok := b.done[name]; ok {
		return err
	}
	err := b.calculate(name)
	b.done[name] = err
	return err
}

func (b *inputBuilder) calculate(name string) error {
	prices := b.snap.PriceHistory
	p := b.s.Params
	in := &b.in
	var err error

	if ind, ok := priceIndicator(name, p); ok {
		if len(prices) < ind.RequiredDataPoints() {
			return fmt.Errorf("%w: %s needs %d prices, have %d", ErrInsufficientHistory, ind.Name(), ind.RequiredDataPoints(), len(prices))
		}
		v, err := ind.Calculate(b.ctx, prices)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInsufficientHistory, err)
		}
		switch name {
		case domain.IndicatorRSI:
			in.RSI, in.HasRSI = v, true
		case domain.IndicatorMomentum:
			in.Momentum, in.HasMomentum = v, true
		case domain.IndicatorTrend:
			in.Trend, in.HasTrend = v, true
		}
		return nil
	}

	switch name {
	case domain.IndicatorBollinger:
		if in.Bands, err = indicators.BollingerBands(prices, p.Int("bbPeriod", 20), p.Float("bbStdDev", 2)); err != nil {
			return fmt.Errorf("%w: %v", ErrInsufficientHistory, err)
		}
		in.HasBands = true
	case domain.IndicatorMACD:
		if in.MACD, err = indicators.MACD(prices, p.Int("macdFast", 12), p.Int("macdSlow", 26), p.Int("macdSignal", 9)); err != nil {
			return fmt.Errorf("%w: %v", ErrInsufficientHistory, err)
		}
		in.HasMACD = true
	case domain.IndicatorLevels:
		if in.Levels, err = indicators.SupportResistance(prices, p.Int("lookback", 20)); err != nil {
			return fmt.Errorf("%w: %v", ErrInsufficientHistory, err)
		}
		in.HasLevels = true
	case domain.IndicatorATR:
		atr := indicators.NewATR(indicators.ATRConfig{IndicatorConfig: indicators.IndicatorConfig{Period: p.Int("atrPeriod", 14)}})
		if in.ATR, err = atr.Calculate(b.ctx, b.snap.HighHistory, b.snap.LowHistory, prices); err != nil {
			return fmt.Errorf("%w: %v", ErrInsufficientHistory, err)
		}
		in.HasATR = true
	case domain.IndicatorVolume:
		if in.AverageVolume, err = indicators.AverageVolume(b.snap.VolumeHistory, p.Int("lookback", 20)); err != nil {
			return fmt.Errorf("%w: %v", ErrInsufficientHistory, err)
		}
		in.Volume = b.snap.Volume
		in.HasVolume = true
	case domain.IndicatorPrediction:
		if b.oracle == nil {
			return fmt.Errorf("strategy %s needs a prediction oracle", b.s.ID)
		}
		if in.Prediction, err = b.oracle.Predict(b.ctx, b.snap); err != nil {
			return fmt.Errorf("oracle prediction failed: %w", err)
		}
		in.HasPrediction = true
	case domain.IndicatorPattern:
		if b.oracle == nil {
			return fmt.Errorf("strategy %s needs a prediction oracle", b.s.ID)
		}
		if in.PatternScore, err = b.oracle.PatternScore(b.ctx, b.snap); err != nil {
			return fmt.Errorf("oracle pattern score failed: %w", err)
		}
		in.HasPattern = true
	}
	return nil
}

// Evaluate runs the entry rule of every family the strategy evaluates and returns the candidate
// with the highest confidence.
func Evaluate(s domain.Strategy, in Inputs) (Candidate, bool) {
	var best Candidate
	found := false
	for _, f := range Families(s) {
		c, ok := evaluateFamily(f, s, in)
		if !ok {
			continue
		}
		if !found || c.Confidence > best.Confidence {
			best = c
			found = true
		}
	}
	return best, found
}

func evaluateFamily(f domain.StrategyType, s domain.Strategy, in Inputs) (Candidate, bool) {
	switch f {
	case domain.StrategyMomentum:
		return evaluateMomentum(momentumConfigFrom(s), s.Confidence, in)
	case domain.StrategyReversal:
		return evaluateReversal(reversalConfigFrom(s.Params), s.Confidence, in)
	case domain.StrategyBreakout:
		return evaluateBreakout(breakoutConfigFrom(s.Params), s.Confidence, in)
	case domain.StrategyComposite:
		return evaluateComposite(compositeConfigFrom(s.Params), s.Confidence, in)
	case domain.StrategyAdaptive:
		return evaluateAdaptive(adaptiveConfigFrom(s.Params), s.Confidence, in)
	default:
		return Candidate{}, false
	}
}

// scaleConfidence maps a signal strength in [0,1] onto [0.9, 1.1] times the strategy's confidence.
func scaleConfidence(base, strength float64) float64 {
	strength = lo.Clamp(strength, 0, 1)
	return lo.Clamp(base*(0.9+0.2*strength), 0, 1)
}
