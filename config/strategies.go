package config

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"binaryOptionsBot/internal/domain"
)

// StrategySeed is one strategy definition in the seed file.
type StrategySeed struct {
	ID         string             `yaml:"id"`
	Name       string             `yaml:"name"`
	Type       string             `yaml:"type"`
	Asset      string             `yaml:"asset"`
	Confidence float64            `yaml:"confidence"`
	Indicators []string           `yaml:"indicators"`
	Components []string           `yaml:"components"`
	Params     map[string]float64 `yaml:"params"`
	Flags      map[string]bool    `yaml:"flags"`
	Entry      string             `yaml:"entry"`
	Exit       string             `yaml:"exit"`
}

type strategyFile struct {
	Strategies []StrategySeed `yaml:"strategies"`
}

var knownTypes = map[domain.StrategyType]bool{
	domain.StrategyMomentum:  true,
	domain.StrategyReversal:  true,
	domain.StrategyBreakout:  true,
	domain.StrategyComposite: true,
	domain.StrategyAdaptive:  true,
	domain.StrategyHybrid:    true,
}

// LoadStrategySeeds reads the YAML seed file and returns generation-zero strategies.
// Seeds without an asset use defaultAsset.
func LoadStrategySeeds(path, defaultAsset string) ([]*domain.Strategy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read strategy seeds '%s': %w", path, err)
	}
	return ParseStrategySeeds(data, defaultAsset)
}

// ParseStrategySeeds decodes seed YAML.
func ParseStrategySeeds(data []byte, defaultAsset string) ([]*domain.Strategy, error) {
	var file strategyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to decode strategy seeds: %w", err)
	}

	now := time.Now().UTC()
	out := make([]*domain.Strategy, 0, len(file.Strategies))
	for i, seed := range file.Strategies {
		typ := domain.StrategyType(seed.Type)
		if !knownTypes[typ] {
			return nil, fmt.Errorf("seed %d (%s): unknown strategy type %q", i, seed.Name, seed.Type)
		}
		if seed.Confidence <= 0 || seed.Confidence > 1 {
			return nil, fmt.Errorf("seed %d (%s): confidence must be in (0, 1]", i, seed.Name)
		}
		components := make([]domain.StrategyType, 0, len(seed.Components))
		for _, c := range seed.Components {
			ct := domain.StrategyType(c)
			if !knownTypes[ct] || ct == domain.StrategyHybrid {
				return nil, fmt.Errorf("seed %d (%s): invalid component %q", i, seed.Name, c)
			}
			components = append(components, ct)
		}
		if typ == domain.StrategyHybrid && len(components) == 0 {
			return nil, fmt.Errorf("seed %d (%s): hybrid strategy needs components", i, seed.Name)
		}

		id := seed.ID
		if id == "" {
			id = uuid.NewString()
		}
		asset := seed.Asset
		if asset == "" {
			asset = defaultAsset
		}
		numeric := seed.Params
		if numeric == nil {
			numeric = map[string]float64{}
		}
		out = append(out, &domain.Strategy{
			ID:         id,
			Name:       seed.Name,
			Type:       typ,
			Asset:      asset,
			Params:     domain.Params{Numeric: numeric, Flags: seed.Flags},
			Indicators: seed.Indicators,
			Components: components,
			Rules:      domain.Rules{Entry: seed.Entry, Exit: seed.Exit},
			Confidence: seed.Confidence,
			Status:     domain.StrategyActive,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}
	return out, nil
}
