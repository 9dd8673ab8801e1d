// Package config loads and saves the bandroute TOML configuration.
//
// Every section falls back to the stock defaults of the package it
// configures; a file only needs the keys it changes. BANDROUTE_DB and
// BANDROUTE_ADDR override the store path and server address.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/danielpatrickdp/bandroute/internal/compute"
	berrors "github.com/danielpatrickdp/bandroute/internal/errors"
	"github.com/danielpatrickdp/bandroute/internal/eval"
	"github.com/danielpatrickdp/bandroute/internal/gate"
	"github.com/danielpatrickdp/bandroute/internal/logging"
	"github.com/danielpatrickdp/bandroute/internal/metrics"
	"github.com/danielpatrickdp/bandroute/internal/selector"
	"github.com/danielpatrickdp/bandroute/internal/strategy"
)

// Environment overrides.
const (
	EnvDB   = "BANDROUTE_DB"
	EnvAddr = "BANDROUTE_ADDR"
)

// #region types

// Config is the complete bandroute configuration.
type Config struct {
	Selector selector.Config        `toml:"selector"`
	Policy   PolicyConfig           `toml:"policy"`
	Router   strategy.Config        `toml:"router"`
	Compute  compute.Config         `toml:"compute"`
	Gate     GateConfig             `toml:"gate"`
	Eval     EvalConfig             `toml:"eval"`
	Metrics  metrics.ProducerConfig `toml:"metrics"`
	Store    StoreConfig            `toml:"store"`
	Log      LogConfig              `toml:"log"`
	Server   ServerConfig           `toml:"server"`
}

// PolicyConfig picks the selector's threshold policy. With Decay set,
// thresholds of bands used less than Floor relax toward their initial
// range by Rate per adaptation instead of narrowing.
type PolicyConfig struct {
	Decay bool    `toml:"decay"`
	Floor float64 `toml:"floor"`
	Rate  float64 `toml:"rate"`
}

// GateConfig is the file form of gate.GateConfig.
type GateConfig struct {
	MaxErrorRate    float64 `toml:"max_error_rate"`
	MinImprovement  float64 `toml:"min_improvement"`
	CooldownSeconds int     `toml:"cooldown_seconds"`
	RequireLineage  bool    `toml:"require_lineage"`
}

// EvalConfig is the file form of eval.EvalConfig.
type EvalConfig struct {
	WeightTolerance float64 `toml:"weight_tolerance"`
	MaxSpread       float64 `toml:"max_spread"`
}

// StoreConfig controls optional SQLite persistence. An empty Path keeps
// everything in memory.
type StoreConfig struct {
	Path string `toml:"path"`
}

// LogConfig controls the JSON logger. An empty File logs to stderr.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// ServerConfig controls the gRPC listener.
type ServerConfig struct {
	Addr           string `toml:"addr"`
	TimeoutSeconds int    `toml:"timeout_seconds"` // per-request deadline for Factorize
}

// #endregion types

// #region defaults

// Default returns the stock configuration.
func Default() *Config {
	g := gate.DefaultGateConfig()
	e := eval.DefaultEvalConfig()
	return &Config{
		Selector: selector.DefaultConfig(),
		Router:   strategy.DefaultConfig(),
		Policy:   PolicyConfig{Floor: 0.2, Rate: 0.5},
		Compute:  compute.DefaultConfig(),
		Gate: GateConfig{
			MaxErrorRate:    g.MaxErrorRate,
			MinImprovement:  g.MinImprovement,
			CooldownSeconds: int(g.Cooldown / time.Second),
			RequireLineage:  g.RequireLineage,
		},
		Eval:    EvalConfig{WeightTolerance: e.WeightTolerance, MaxSpread: e.MaxSpread},
		Metrics: metrics.DefaultProducerConfig(),
		Log:     LogConfig{Level: logging.LevelInfo},
		Server:  ServerConfig{Addr: "localhost:50061", TimeoutSeconds: 30},
	}
}

// ThresholdPolicy builds the policy named by the [policy] section.
func (c *Config) ThresholdPolicy() selector.ThresholdPolicy {
	if c.Policy.Decay {
		return selector.DecayPolicy{Inner: selector.MultiplicativePolicy{}, Floor: c.Policy.Floor, Rate: c.Policy.Rate}
	}
	return selector.MultiplicativePolicy{}
}

// GateConfig converts the [gate] section.
func (c *Config) GateConfig() gate.GateConfig {
	return gate.GateConfig{
		MaxErrorRate:   c.Gate.MaxErrorRate,
		MinImprovement: c.Gate.MinImprovement,
		Cooldown:       time.Duration(c.Gate.CooldownSeconds) * time.Second,
		RequireLineage: c.Gate.RequireLineage,
	}
}

// EvalConfig converts the [eval] section.
func (c *Config) EvalConfig() eval.EvalConfig {
	return eval.EvalConfig{WeightTolerance: c.Eval.WeightTolerance, MaxSpread: c.Eval.MaxSpread}
}

// #endregion defaults

// #region load-save

// Load reads path over the defaults, applies environment overrides and
// validates the result. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		md, err := toml.DecodeFile(path, cfg)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		default:
			if undec := md.Undecoded(); len(undec) > 0 {
				return nil, berrors.NewConfigurationError(undec[0].String(), "unknown key", nil)
			}
		}
	}
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path as TOML, creating parent directories.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return f.Close()
}

// ApplyEnvOverrides replaces the store path and server address from the
// environment when set.
func (c *Config) ApplyEnvOverrides() {
	c.Store.Path = envOr(EnvDB, c.Store.Path)
	c.Server.Addr = envOr(EnvAddr, c.Server.Addr)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion load-save

// #region validate

// Validate checks every section. Failures are *errors.ConfigurationError.
func (c *Config) Validate() error {
	if err := selector.ValidateConfig(c.Selector); err != nil {
		return berrors.NewConfigurationError("selector", "invalid section", err)
	}
	if err := strategy.ValidateConfig(c.Router); err != nil {
		return berrors.NewConfigurationError("router", "invalid section", err)
	}
	switch {
	case c.Policy.Floor < 0 || c.Policy.Floor > 1:
		return berrors.NewConfigurationError("policy.floor", "must be in [0, 1]", nil)
	case c.Policy.Rate < 0 || c.Policy.Rate > 1:
		return berrors.NewConfigurationError("policy.rate", "must be in [0, 1]", nil)
	case c.Compute.TrialLimit < 2:
		return berrors.NewConfigurationError("compute.trial_limit", "must be at least 2", nil)
	case c.Compute.RhoIterations < 1 || c.Compute.RhoConstants < 1:
		return berrors.NewConfigurationError("compute.rho", "iterations and constants must be positive", nil)
	case c.Compute.PMinus1Bound < 2:
		return berrors.NewConfigurationError("compute.p_minus_1_bound", "must be at least 2", nil)
	case c.Compute.FermatIterations < 1:
		return berrors.NewConfigurationError("compute.fermat_iterations", "must be positive", nil)
	case c.Gate.MaxErrorRate < 0 || c.Gate.MaxErrorRate > 1:
		return berrors.NewConfigurationError("gate.max_error_rate", "must be in [0, 1]", nil)
	case c.Gate.MinImprovement < 0:
		return berrors.NewConfigurationError("gate.min_improvement", "must not be negative", nil)
	case c.Gate.CooldownSeconds < 0:
		return berrors.NewConfigurationError("gate.cooldown_seconds", "must not be negative", nil)
	case c.Eval.WeightTolerance < 0:
		return berrors.NewConfigurationError("eval.weight_tolerance", "must not be negative", nil)
	case c.Eval.MaxSpread < 1:
		return berrors.NewConfigurationError("eval.max_spread", "must be at least 1", nil)
	case c.Metrics.Window < 1:
		return berrors.NewConfigurationError("metrics.window", "must be positive", nil)
	case c.Server.TimeoutSeconds < 0:
		return berrors.NewConfigurationError("server.timeout_seconds", "must not be negative", nil)
	}
	switch strings.ToUpper(c.Log.Level) {
	case "", logging.LevelDebug, logging.LevelInfo, logging.LevelWarn, logging.LevelError:
	default:
		return berrors.NewConfigurationError("log.level", fmt.Sprintf("unknown level %q", c.Log.Level), nil)
	}
	return nil
}

// #endregion validate
