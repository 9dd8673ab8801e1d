package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/bandroute/internal/band"
	"github.com/danielpatrickdp/bandroute/internal/eval"
	"github.com/danielpatrickdp/bandroute/internal/gate"
	"github.com/danielpatrickdp/bandroute/internal/logging"
	"github.com/danielpatrickdp/bandroute/internal/metrics"
	"github.com/danielpatrickdp/bandroute/internal/selector"
	"github.com/danielpatrickdp/bandroute/internal/state"
)

// #region adapt

var (
	adaptMetrics      string
	adaptObservations string
	adaptDryRun       bool
)

var adaptCmd = &cobra.Command{
	Use:   "adapt",
	Short: "Adapt band thresholds from performance metrics",
	Long: `adapt feeds aggregated metrics (--metrics) or raw routing observations
(--observations) into the selector, gates the resulting snapshot, checks
its thresholds and, with a store configured, commits it as the new
active version. Every decision is written to the decision log.`,
	Args: cobra.NoArgs,
	RunE: runAdapt,
}

func init() {
	adaptCmd.Flags().StringVar(&adaptMetrics, "metrics", "", "JSON file holding PerformanceMetrics")
	adaptCmd.Flags().StringVar(&adaptObservations, "observations", "", "JSON file holding an array of observations")
	adaptCmd.Flags().BoolVar(&adaptDryRun, "dry-run", false, "evaluate without committing")
	adaptCmd.MarkFlagsMutuallyExclusive("metrics", "observations")
	adaptCmd.MarkFlagsOneRequired("metrics", "observations")
	rootCmd.AddCommand(adaptCmd)
}

// observationJSON is the file form of metrics.Observation.
type observationJSON struct {
	Primary  band.Type `json:"primary"`
	Selected band.Type `json:"selected"`
	Failed   bool      `json:"failed"`
	Optimal  bool      `json:"optimal"`
}

type adaptOutcome struct {
	Action   string            `json:"action"`
	Reason   string            `json:"reason"`
	Version  string            `json:"version"`
	Parent   string            `json:"parent"`
	Band     string            `json:"band"`
	Gate     gate.GateDecision `json:"gate"`
	Eval     *eval.EvalResult  `json:"eval,omitempty"`
	Snapshot selector.Snapshot `json:"snapshot"`
}

func runAdapt(cmd *cobra.Command, _ []string) error {
	m, err := loadMetrics()
	if err != nil {
		return err
	}
	store, err := openStore()
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}
	sel, err := newSelector(store)
	if err != nil {
		return err
	}

	current := sel.Current()
	var lastCommit time.Time
	if store != nil {
		lastCommit, err = ensureBaseline(store, current)
		if err != nil {
			return err
		}
	}

	proposed, err := sel.AdaptBandSelection(m)
	if err != nil {
		return err
	}
	res := adaptOutcome{
		Version:  proposed.Version,
		Parent:   proposed.ParentVersion,
		Band:     proposed.Band.String(),
		Snapshot: proposed,
	}

	res.Gate = gate.NewGate(cfg.GateConfig()).Evaluate(current, proposed, m)
	if res.Gate.Action == "commit" && cfg.Gate.CooldownSeconds > 0 && !lastCommit.IsZero() {
		cooldown := cfg.GateConfig().Cooldown
		if since := time.Since(lastCommit); since < cooldown {
			res.Gate.Action = "reject"
			res.Gate.Vetoed = true
			res.Gate.Reason = fmt.Sprintf("last commit %s ago, cooldown %s", since.Round(time.Second), cooldown)
			res.Gate.VetoSignals = append(res.Gate.VetoSignals, gate.VetoSignal{Type: gate.VetoCooldown, Reason: res.Gate.Reason})
		}
	}

	res.Action, res.Reason = "gate_reject", res.Gate.Reason
	if res.Gate.Action == "commit" {
		check := eval.NewEvalHarness(cfg.EvalConfig()).Run(nil, proposed.Parameters.Thresholds)
		res.Eval = &check
		res.Action, res.Reason = "commit", res.Gate.Reason
		if !check.Passed {
			res.Action, res.Reason = "eval_rollback", check.Reason
		}
	}

	if res.Action == "commit" && !adaptDryRun && store != nil {
		if err := store.CommitSnapshot(proposed); err != nil {
			return fmt.Errorf("commit snapshot: %w", err)
		}
	}
	if store != nil && !adaptDryRun {
		if err := logging.LogAdapt(store.DB(), proposed.Version, adaptRecord(m, proposed, res)); err != nil {
			logger.Warn("decision log write failed", "error", err)
		}
	}
	logger.Info("adaptation evaluated",
		"version", proposed.Version,
		"action", res.Action,
		"band", res.Band,
		"soft_score", res.Gate.SoftScore)

	out := cmd.OutOrStdout()
	if jsonOut {
		return printJSON(out, res)
	}
	fmt.Fprintf(out, "%s %s band=%s improvement=%.3f score=%.3f\n",
		res.Action, res.Version, res.Band, proposed.ExpectedImprovement, res.Gate.SoftScore)
	if res.Reason != "" {
		fmt.Fprintf(out, "  %s\n", res.Reason)
	}
	for _, v := range res.Gate.VetoSignals {
		fmt.Fprintf(out, "  veto %s: %s\n", v.Type, v.Reason)
	}
	if store == nil && res.Action == "commit" {
		fmt.Fprintln(out, "  (no store configured, nothing persisted)")
	}
	return nil
}

// ensureBaseline commits the selector's starting configuration when the
// store has no active snapshot, and returns the time of the last commit.
func ensureBaseline(store *state.Store, current selector.Snapshot) (time.Time, error) {
	rec, err := store.GetCurrent()
	switch {
	case err == nil:
		return rec.CommittedAt, nil
	case !errors.Is(err, state.ErrNoActive):
		return time.Time{}, err
	}
	if err := store.CommitSnapshot(current); err != nil {
		return time.Time{}, fmt.Errorf("commit baseline: %w", err)
	}
	return time.Time{}, nil
}

func adaptRecord(m selector.PerformanceMetrics, proposed selector.Snapshot, res adaptOutcome) logging.AdaptRecord {
	rec := logging.AdaptRecord{
		Metrics:             m,
		ProposedBand:        proposed.Band.String(),
		ExpectedImprovement: proposed.ExpectedImprovement,
		ParentVersion:       proposed.ParentVersion,
		GateAction:          res.Gate.Action,
		GateSoftScore:       res.Gate.SoftScore,
		GateVetoed:          res.Gate.Vetoed,
		GateReason:          res.Reason,
	}
	if res.Action == "eval_rollback" {
		rec.GateAction = "reject"
	}
	for _, v := range res.Gate.VetoSignals {
		rec.Vetoes = append(rec.Vetoes, string(v.Type))
	}
	return rec
}

// loadMetrics reads --metrics directly or aggregates --observations.
func loadMetrics() (selector.PerformanceMetrics, error) {
	var m selector.PerformanceMetrics
	if adaptMetrics != "" {
		data, err := os.ReadFile(adaptMetrics)
		if err != nil {
			return m, fmt.Errorf("read metrics: %w", err)
		}
		if err := json.Unmarshal(data, &m); err != nil {
			return m, fmt.Errorf("parse metrics: %w", err)
		}
		return m, nil
	}

	data, err := os.ReadFile(adaptObservations)
	if err != nil {
		return m, fmt.Errorf("read observations: %w", err)
	}
	var obs []observationJSON
	if err := json.Unmarshal(data, &obs); err != nil {
		return m, fmt.Errorf("parse observations: %w", err)
	}
	p := metrics.NewProducer(cfg.Metrics)
	for _, o := range obs {
		var oerr error
		if o.Failed {
			oerr = errors.New("failed")
		}
		p.Observe(metrics.Observation{Primary: o.Primary, Selected: o.Selected, Err: oerr, Optimal: o.Optimal})
	}
	return p.Produce(), nil
}

// #endregion adapt
