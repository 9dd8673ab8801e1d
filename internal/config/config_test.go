package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/bandroute/internal/band"
	berrors "github.com/danielpatrickdp/bandroute/internal/errors"
	"github.com/danielpatrickdp/bandroute/internal/selector"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bandroute.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestDefault_Validates(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv(EnvDB, "")
	t.Setenv(EnvAddr, "")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoad_PartialOverride(t *testing.T) {
	t.Setenv(EnvDB, "")
	t.Setenv(EnvAddr, "")
	path := writeFile(t, `
[selector]
default_band = "treble"
hysteresis_margin = 0.2

[router]
max_attempts = 9

[gate]
cooldown_seconds = 60

[log]
level = "debug"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, band.Treble, cfg.Selector.DefaultBand)
	require.Equal(t, 0.2, cfg.Selector.HysteresisMargin)
	require.Equal(t, 9, cfg.Router.MaxAttempts)
	require.Equal(t, time.Minute, cfg.GateConfig().Cooldown)

	// untouched keys keep their defaults
	require.Equal(t, Default().Router.LearningRate, cfg.Router.LearningRate)
	require.Len(t, cfg.Router.SubRanges, 3)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(EnvDB, "/tmp/bandroute.db")
	t.Setenv(EnvAddr, "0.0.0.0:9000")
	path := writeFile(t, "[store]\npath = \"ignored.db\"\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/tmp/bandroute.db", cfg.Store.Path)
	require.Equal(t, "0.0.0.0:9000", cfg.Server.Addr)
}

func TestLoad_Rejects(t *testing.T) {
	t.Setenv(EnvDB, "")
	t.Setenv(EnvAddr, "")

	tests := []struct {
		name string
		body string
	}{
		{"unknown key", "[router]\nmax_attempt = 3\n"},
		{"bad band", "[selector]\ndefault_band = \"SUBWOOFER\"\n"},
		{"bad learning rate", "[router]\nlearning_rate = 2.0\n"},
		{"bad margin", "[selector]\nhysteresis_margin = -0.5\n"},
		{"bad level", "[log]\nlevel = \"chatty\"\n"},
		{"bad window", "[metrics]\nwindow = 0\n"},
		{"bad decay rate", "[policy]\ndecay = true\nrate = 1.5\n"},
		{"syntax", "[router\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.body))
			require.Error(t, err)
		})
	}
}

func TestValidate_ConfigurationError(t *testing.T) {
	cfg := Default()
	cfg.Gate.MaxErrorRate = 1.5

	err := cfg.Validate()
	require.ErrorIs(t, err, berrors.ErrInvalidConfig)

	var ce *berrors.ConfigurationError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, "gate.max_error_rate", ce.Field)
}

func TestSave_RoundTrip(t *testing.T) {
	t.Setenv(EnvDB, "")
	t.Setenv(EnvAddr, "")

	cfg := Default()
	cfg.Selector.DefaultBand = band.SuperTreble
	cfg.Store.Path = "state.db"
	cfg.Gate.CooldownSeconds = 5

	path := filepath.Join(t.TempDir(), "nested", "bandroute.toml")
	require.NoError(t, Save(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, loaded)
}

func TestThresholdPolicy(t *testing.T) {
	cfg := Default()
	require.IsType(t, selector.MultiplicativePolicy{}, cfg.ThresholdPolicy())

	cfg.Policy.Decay = true
	p, ok := cfg.ThresholdPolicy().(selector.DecayPolicy)
	require.True(t, ok)
	require.Equal(t, 0.2, p.Floor)
	require.Equal(t, 0.5, p.Rate)
}
