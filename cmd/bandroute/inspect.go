package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/bandroute/internal/band"
	"github.com/danielpatrickdp/bandroute/internal/logging"
	"github.com/danielpatrickdp/bandroute/internal/state"
)

// #region inspect

var (
	inspectLast      int
	inspectVersion   string
	inspectDecisions int
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show stored snapshot versions, weights and decisions",
	Args:  cobra.NoArgs,
	RunE:  runInspect,
}

func init() {
	inspectCmd.Flags().IntVar(&inspectLast, "last", 20, "show N most recent versions")
	inspectCmd.Flags().StringVar(&inspectVersion, "version", "", "show one version in detail")
	inspectCmd.Flags().IntVar(&inspectDecisions, "decisions", 0, "show N most recent decision log rows")
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, _ []string) error {
	store, err := requireStore()
	if err != nil {
		return err
	}
	defer store.Close()
	out := cmd.OutOrStdout()

	switch {
	case inspectVersion != "":
		rec, err := store.GetVersion(inspectVersion)
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(out, rec)
		}
		printDetail(out, rec)
		return nil
	case inspectDecisions > 0:
		rows, err := store.RecentDecisions(inspectDecisions)
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(out, rows)
		}
		printDecisions(out, rows)
		return nil
	}

	versions, err := store.ListVersions(inspectLast)
	if err != nil {
		return err
	}
	weights, hasWeights, err := store.LoadWeights(weightsKey)
	if err != nil {
		return err
	}
	active := ""
	if cur, err := store.GetCurrent(); err == nil {
		active = cur.Version
	}

	if jsonOut {
		return printJSON(out, map[string]any{"active": active, "versions": versions, "weights": weights.Weights})
	}
	if len(versions) == 0 {
		fmt.Fprintln(out, "no versions found")
	}
	printVersions(out, versions, active)
	if hasWeights {
		fmt.Fprintf(out, "\nweights (updated %s):\n", weights.UpdatedAt.Format("2006-01-02T15:04:05Z"))
		names := make([]string, 0, len(weights.Weights))
		for n := range weights.Weights {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			fmt.Fprintf(out, "  %-18s %.4f\n", n, weights.Weights[n])
		}
	}
	return nil
}

func printVersions(w io.Writer, versions []state.SnapshotRecord, active string) {
	fmt.Fprintf(w, "  %-36s  %-13s  %-11s  %-36s  %s\n", "Version", "Band", "Improvement", "Parent", "Committed")
	for _, v := range versions {
		mark := " "
		if v.Version == active {
			mark = "*"
		}
		fmt.Fprintf(w, "%s %-36s  %-13s  %11.3f  %-36s  %s\n",
			mark, v.Version, v.Band, v.ExpectedImprovement, v.ParentVersion,
			v.CommittedAt.Format("2006-01-02T15:04:05Z"))
	}
}

func printDetail(w io.Writer, rec state.SnapshotRecord) {
	fmt.Fprintf(w, "Version:      %s\n", rec.Version)
	fmt.Fprintf(w, "Parent:       %s\n", rec.ParentVersion)
	fmt.Fprintf(w, "Band:         %s\n", rec.Band)
	fmt.Fprintf(w, "Improvement:  %.4f\n", rec.ExpectedImprovement)
	fmt.Fprintf(w, "Acceleration: %.2f\n", rec.Parameters.Acceleration)
	fmt.Fprintf(w, "Adaptive:     %v (margin %.2f)\n", rec.Parameters.AdaptiveThresholds, rec.Parameters.HysteresisMargin)
	fmt.Fprintf(w, "Committed:    %s\n\n", rec.CommittedAt.Format("2006-01-02T15:04:05Z"))

	fmt.Fprintf(w, "%-13s  %10s  %10s  %10s  %s\n", "Band", "Min", "Max", "Static", "Utilization")
	for _, b := range band.All() {
		th, ok := rec.Parameters.Thresholds[b]
		if !ok {
			continue
		}
		r := b.Range()
		util := "-"
		if u, ok := rec.Parameters.Utilization[b]; ok {
			util = fmt.Sprintf("%.3f", u)
		}
		fmt.Fprintf(w, "%-13s  %10.2f  %10.2f  %4d-%-5d  %s\n", b, th.Min, th.Max, r.Min, r.Max, util)
	}
}

func printDecisions(w io.Writer, rows []state.DecisionRow) {
	fmt.Fprintf(w, "%-6s  %-10s  %-14s  %-36s  %s\n", "ID", "Kind", "Decision", "Version", "Reason")
	for _, r := range rows {
		fmt.Fprintf(w, "%-6d  %-10s  %-14s  %-36s  %s\n", r.ID, r.Kind, r.Decision, r.VersionID, r.Reason)
	}
}

// #endregion inspect

// #region rollback

var rollbackCmd = &cobra.Command{
	Use:   "rollback <version>",
	Short: "Make a stored version the active snapshot again",
	Args:  cobra.ExactArgs(1),
	RunE:  runRollback,
}

func init() {
	rootCmd.AddCommand(rollbackCmd)
}

func runRollback(cmd *cobra.Command, args []string) error {
	store, err := requireStore()
	if err != nil {
		return err
	}
	defer store.Close()

	from := ""
	if cur, err := store.GetCurrent(); err == nil {
		from = cur.Version
	}
	if err := store.Rollback(args[0]); err != nil {
		return err
	}
	err = logging.LogDecision(store.DB(), logging.DecisionEntry{
		VersionID: args[0],
		Kind:      logging.KindRollback,
		Decision:  "commit",
		Reason:    "manual rollback from " + from,
	})
	if err != nil {
		logger.Warn("decision log write failed", "error", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "active version is now %s\n", args[0])
	return nil
}

// #endregion rollback
