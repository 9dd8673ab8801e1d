package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/bandroute/internal/replay"
)

// #region replay

var replayCmd = &cobra.Command{
	Use:   "replay <fixture.json>",
	Short: "Replay a recorded event fixture and compare against its expected results",
	Long: `replay runs the fixture's events through a fresh in-memory selector,
router, gate and eval harness. It exits non-zero when any replayed action
or band diverges from the fixture's expected results.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	f, err := replay.LoadFixture(args[0])
	if err != nil {
		return err
	}
	results, summary, err := replay.Replay(f.Events, f.Config.ToReplayConfig())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOut {
		if err := printJSON(out, map[string]any{"results": results, "summary": summary}); err != nil {
			return err
		}
	}
	if diverge := compare(out, results, f.ExpectedResults, !jsonOut); diverge > 0 {
		return fmt.Errorf("%d events diverge from the fixture", diverge)
	}
	return nil
}

// compare prints an expected/replayed table and returns the number of
// diverging events.
func compare(w io.Writer, results []replay.ReplayResult, expected []replay.FixtureExpectedResult, verbose bool) int {
	if verbose {
		fmt.Fprintf(w, "%-10s| %-15s| %-15s| %-13s| %s\n", "Event", "Expected", "Replayed", "Band", "Match")
		fmt.Fprintf(w, "%-10s+%-16s+%-16s+%-14s+%s\n", "----------", "----------------", "----------------", "--------------", "------")
	}

	total := len(results)
	if len(expected) < total {
		total = len(expected)
	}
	matches := 0
	for i := 0; i < total; i++ {
		exp, got := expected[i], results[i]
		match := "DIFF"
		if exp.Action == got.Action && (exp.Band == "" || exp.Band == got.Band) {
			match = "OK"
			matches++
		}
		if verbose {
			fmt.Fprintf(w, "%-10s| %-15s| %-15s| %-13s| %s\n", got.EventID, exp.Action, got.Action, got.Band, match)
		}
	}

	diverge := total - matches
	if verbose {
		fmt.Fprintf(w, "\nSummary: %d total, %d match, %d diverge\n", total, matches, diverge)
	}
	return diverge
}

// #endregion replay
