package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/bandroute/internal/logging"
	"github.com/danielpatrickdp/bandroute/internal/replay"
	"github.com/danielpatrickdp/bandroute/internal/state"
)

// #region export

var (
	exportLast int
	exportOut  string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export logged adaptations as a replay fixture",
	Long: `export turns the most recent adapt rows of the decision log into a
replay fixture whose expected results are the logged decisions, so that a
later "bandroute replay" shows whether the current code still decides the
same way.`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().IntVar(&exportLast, "last", 20, "number of most recent adaptations to export")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output fixture path")
	_ = exportCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, _ []string) error {
	store, err := requireStore()
	if err != nil {
		return err
	}
	defer store.Close()

	rows, err := adaptRows(store, exportLast)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("no adapt decisions found")
	}

	f := buildFixture(rows)
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(exportOut, data, 0644); err != nil {
		return fmt.Errorf("write fixture: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "exported %d adaptations to %s\n", len(rows), exportOut)
	return nil
}

type adaptRow struct {
	state.DecisionRow
	Record logging.AdaptRecord
}

// adaptRows returns up to last adapt rows in chronological order. Rows
// whose detail does not parse are skipped.
func adaptRows(store *state.Store, last int) ([]adaptRow, error) {
	// other kinds share the log, so read generously and filter
	all, err := store.RecentDecisions(last * 10)
	if err != nil {
		return nil, err
	}
	var out []adaptRow
	for _, r := range all {
		if r.Kind != logging.KindAdapt || r.DetailJSON == "" {
			continue
		}
		var rec logging.AdaptRecord
		if err := json.Unmarshal([]byte(r.DetailJSON), &rec); err != nil {
			continue
		}
		out = append(out, adaptRow{DecisionRow: r, Record: rec})
		if len(out) == last {
			break
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func buildFixture(rows []adaptRow) replay.Fixture {
	lineage := cfg.Gate.RequireLineage
	f := replay.Fixture{
		Description: fmt.Sprintf("exported from %s", cfg.Store.Path),
		Config: replay.FixtureConfig{
			LearningRate: cfg.Router.LearningRate,
			GateConfig: replay.FixtureGateConfig{
				MaxErrorRate:    cfg.Gate.MaxErrorRate,
				MinImprovement:  cfg.Gate.MinImprovement,
				CooldownSeconds: float64(cfg.Gate.CooldownSeconds),
				RequireLineage:  &lineage,
			},
			EvalConfig: replay.FixtureEvalConfig{
				WeightTolerance: cfg.Eval.WeightTolerance,
				MaxSpread:       cfg.Eval.MaxSpread,
			},
			Window: cfg.Metrics.Window,
		},
	}
	for i, r := range rows {
		id := fmt.Sprintf("a%d", i+1)
		m := r.Record.Metrics
		f.Events = append(f.Events, replay.Event{
			ID:      id,
			Kind:    replay.KindAdapt,
			At:      r.CreatedAt,
			Metrics: &m,
		})
		f.ExpectedResults = append(f.ExpectedResults, replay.FixtureExpectedResult{
			ID:     id,
			Action: loggedAction(r.Record),
			Band:   r.Record.ProposedBand,
		})
	}
	return f
}

// loggedAction maps a logged adaptation back onto a replay action.
func loggedAction(rec logging.AdaptRecord) string {
	switch {
	case rec.GateAction == "commit":
		return replay.ActionCommit
	case rec.GateVetoed:
		return replay.ActionGateReject
	default:
		return replay.ActionEvalRollback
	}
}

// #endregion export
