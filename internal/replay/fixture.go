package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/danielpatrickdp/bandroute/internal/eval"
	"github.com/danielpatrickdp/bandroute/internal/gate"
	"github.com/danielpatrickdp/bandroute/internal/metrics"
	"github.com/danielpatrickdp/bandroute/internal/selector"
	"github.com/danielpatrickdp/bandroute/internal/strategy"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description     string                  `json:"description"`
	Config          FixtureConfig           `json:"config"`
	Events          []Event                 `json:"events"`
	ExpectedResults []FixtureExpectedResult `json:"expected_results"`
}

// FixtureExpectedResult captures the expected action per event.
type FixtureExpectedResult struct {
	ID     string `json:"id"`
	Action string `json:"action"`
	Band   string `json:"band,omitempty"`
}

// FixtureConfig holds the knobs a fixture may override. Zero values keep
// the defaults.
type FixtureConfig struct {
	Algorithms   []string          `json:"algorithms"`
	LearningRate float64           `json:"learning_rate"`
	GateConfig   FixtureGateConfig `json:"gate_config"`
	EvalConfig   FixtureEvalConfig `json:"eval_config"`
	Window       int               `json:"metrics_window"`
}

// FixtureGateConfig mirrors gate.GateConfig with JSON tags.
type FixtureGateConfig struct {
	MaxErrorRate    float64 `json:"max_error_rate"`
	MinImprovement  float64 `json:"min_improvement"`
	CooldownSeconds float64 `json:"cooldown_seconds"`
	RequireLineage  *bool   `json:"require_lineage"`
}

// FixtureEvalConfig mirrors eval.EvalConfig with JSON tags.
type FixtureEvalConfig struct {
	WeightTolerance float64 `json:"weight_tolerance"`
	MaxSpread       float64 `json:"max_spread"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// ToReplayConfig converts a FixtureConfig to a ReplayConfig, starting from
// DefaultReplayConfig.
func (fc *FixtureConfig) ToReplayConfig() ReplayConfig {
	cfg := DefaultReplayConfig()
	if len(fc.Algorithms) > 0 {
		cfg.Algorithms = append([]string(nil), fc.Algorithms...)
	}
	if fc.LearningRate > 0 {
		cfg.Router.LearningRate = fc.LearningRate
	}
	if fc.Window > 0 {
		cfg.Metrics.Window = fc.Window
	}

	g := fc.GateConfig
	if g.MaxErrorRate > 0 {
		cfg.Gate.MaxErrorRate = g.MaxErrorRate
	}
	if g.MinImprovement > 0 {
		cfg.Gate.MinImprovement = g.MinImprovement
	}
	if g.CooldownSeconds > 0 {
		cfg.Gate.Cooldown = time.Duration(g.CooldownSeconds * float64(time.Second))
	}
	if g.RequireLineage != nil {
		cfg.Gate.RequireLineage = *g.RequireLineage
	}

	e := fc.EvalConfig
	if e.WeightTolerance != 0 {
		cfg.Eval.WeightTolerance = e.WeightTolerance
	}
	if e.MaxSpread > 0 {
		cfg.Eval.MaxSpread = e.MaxSpread
	}
	return cfg
}

// #endregion fixture-loader

// #region defaults

// DefaultReplayConfig returns the stock configuration of every stage.
func DefaultReplayConfig() ReplayConfig {
	return ReplayConfig{
		Selector: selector.DefaultConfig(),
		Router:   strategy.DefaultConfig(),
		Gate:     gate.DefaultGateConfig(),
		Eval:     eval.DefaultEvalConfig(),
		Metrics:  metrics.DefaultProducerConfig(),
		Algorithms: []string{
			strategy.AlgoTrialDivision,
			strategy.AlgoPollardRho,
			strategy.AlgoPollardPMinus1,
			strategy.AlgoFermat,
		},
	}
}

// #endregion defaults
