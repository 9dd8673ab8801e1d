package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/bandroute/internal/band"
	"github.com/danielpatrickdp/bandroute/internal/config"
	"github.com/danielpatrickdp/bandroute/internal/state"
)

// run executes the root command with args and returns stdout. Package-level
// flag variables are reset first since cobra keeps them between runs.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cfgFile, jsonOut = "", false
	selectBits = 0
	factorTimeout, factorRecord = 0, ""
	adaptMetrics, adaptObservations, adaptDryRun = "", "", false
	inspectLast, inspectVersion, inspectDecisions = 20, "", 0
	exportLast, exportOut = 20, ""

	resetFlags(rootCmd)

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) { f.Changed = false }
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func withStore(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bandroute.db")
	t.Setenv(config.EnvDB, path)
	t.Setenv(config.EnvAddr, "")
	return path
}

func TestClassifyCommand(t *testing.T) {
	t.Setenv(config.EnvDB, "")

	out, err := run(t, "classify", "1099511627776") // 2^40
	require.NoError(t, err)
	require.Contains(t, out, "band=BASS bits=41")

	_, err = run(t, "classify", "7")
	require.Error(t, err)
}

func TestSelectCommand(t *testing.T) {
	t.Setenv(config.EnvDB, "")

	out, err := run(t, "select", "--bits", "300")
	require.NoError(t, err)
	require.Equal(t, "TREBLE\n", out)
}

func TestFactorPersistsWeights(t *testing.T) {
	path := withStore(t)

	record := filepath.Join(t.TempDir(), "obs.json")

	out, err := run(t, "factor", "--record", record, "97000291")
	require.NoError(t, err)
	require.Contains(t, out, "[97 1000003]")
	require.Contains(t, out, "band=ULTRABASS primary=ULTRABASS")

	store, err := state.NewStore(path)
	require.NoError(t, err)
	defer store.Close()

	rec, ok, err := store.LoadWeights(weightsKey)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, rec.Weights, 4)

	rows, err := store.RecentDecisions(5)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "factorize", rows[0].Kind)
	require.Contains(t, rows[0].DetailJSON, `"metrics"`)

	// A second run appends; the file feeds adapt --observations.
	_, err = run(t, "factor", "--record", record, "1000036000099", "1000076001443")
	require.NoError(t, err)
	data, err := os.ReadFile(record)
	require.NoError(t, err)
	var obs []observationJSON
	require.NoError(t, json.Unmarshal(data, &obs))
	require.Len(t, obs, 3)
	require.Equal(t, band.Ultrabass, obs[0].Primary)
	require.Equal(t, band.Ultrabass, obs[0].Selected)
	require.True(t, obs[0].Optimal)
	require.False(t, obs[0].Failed)

	out, err = run(t, "--json", "adapt", "--dry-run", "--observations", record)
	require.NoError(t, err)
	var res adaptOutcome
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.NotEmpty(t, res.Action)
}

func TestAdaptCommitAndInspect(t *testing.T) {
	withStore(t)
	metrics := filepath.Join(t.TempDir(), "metrics.json")
	require.NoError(t, os.WriteFile(metrics, []byte(`{
		"band_utilization": {"TREBLE": 0.9},
		"error_rate": 0.01,
		"transition_overhead": 0.02,
		"optimal_selection_rate": 0.95
	}`), 0644))

	out, err := run(t, "--json", "adapt", "--metrics", metrics)
	require.NoError(t, err)
	var res adaptOutcome
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Equal(t, "commit", res.Action)
	require.Equal(t, "TREBLE", res.Band)

	out, err = run(t, "inspect")
	require.NoError(t, err)
	require.Contains(t, out, "* "+res.Version)

	out, err = run(t, "inspect", "--decisions", "5")
	require.NoError(t, err)
	require.Contains(t, out, "adapt")

	// roll back to the baseline committed before the adaptation
	out, err = run(t, "rollback", res.Parent)
	require.NoError(t, err)
	require.Contains(t, out, res.Parent)
}

func TestAdaptRejectsUnhealthyObservations(t *testing.T) {
	withStore(t)
	obs := filepath.Join(t.TempDir(), "obs.json")
	var b strings.Builder
	b.WriteString("[")
	for i := 0; i < 10; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(`{"primary": "MIDRANGE", "selected": "MIDRANGE", "failed": true}`)
	}
	b.WriteString("]")
	require.NoError(t, os.WriteFile(obs, []byte(b.String()), 0644))

	out, err := run(t, "adapt", "--observations", obs)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "gate_reject"), out)
	require.Contains(t, out, "veto error_rate")
}

func TestReplayCommand(t *testing.T) {
	t.Setenv(config.EnvDB, "")

	out, err := run(t, "replay", filepath.Join("..", "..", "internal", "replay", "testdata", "session.json"))
	require.NoError(t, err)
	require.Contains(t, out, "0 diverge")
}

func TestConfigInit(t *testing.T) {
	t.Setenv(config.EnvDB, "")
	t.Setenv(config.EnvAddr, "")
	path := filepath.Join(t.TempDir(), "bandroute.toml")

	_, err := run(t, "config", "init", path)
	require.NoError(t, err)

	loaded, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, config.Default(), loaded)
}

func TestInspectRequiresStore(t *testing.T) {
	t.Setenv(config.EnvDB, "")

	_, err := run(t, "inspect")
	require.ErrorContains(t, err, "no store configured")
}

func TestExportReplaysLoggedDecisions(t *testing.T) {
	withStore(t)
	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(good, []byte(`{"band_utilization": {"UPPER_MID": 0.95}, "optimal_selection_rate": 0.95}`), 0644))
	require.NoError(t, os.WriteFile(bad, []byte(`{"band_utilization": {"UPPER_MID": 0.95}, "error_rate": 0.7}`), 0644))

	_, err := run(t, "adapt", "--metrics", good)
	require.NoError(t, err)
	_, err = run(t, "adapt", "--metrics", bad)
	require.NoError(t, err)

	fixture := filepath.Join(dir, "fixture.json")
	out, err := run(t, "export", "--out", fixture)
	require.NoError(t, err)
	require.Contains(t, out, "exported 2 adaptations")

	out, err = run(t, "replay", fixture)
	require.NoError(t, err, out)
	require.Contains(t, out, "2 match, 0 diverge")
}
