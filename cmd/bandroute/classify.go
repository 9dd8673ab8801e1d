package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/bandroute/internal/band"
	"github.com/danielpatrickdp/bandroute/internal/selector"
)

// #region classify

var classifyCmd = &cobra.Command{
	Use:   "classify <n>...",
	Short: "Classify integers into magnitude bands",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runClassify,
}

func init() {
	rootCmd.AddCommand(classifyCmd)
}

func runClassify(cmd *cobra.Command, args []string) error {
	ns, err := parseInts(args)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if len(ns) > 1 {
		bc, err := band.ClassifyBatch(ns)
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(out, bc)
		}
		for i, c := range bc.Items {
			fmt.Fprintf(out, "%-24s %-13s bits=%-5d confidence=%.3f\n", args[i], c.Band, c.BitSize, c.Confidence)
		}
		fmt.Fprintf(out, "\noptimal=%s confidence=%.3f avg_bits=%.1f\n", bc.Optimal, bc.Confidence, bc.AvgBitSize)
		return nil
	}

	c, err := band.Classify(ns[0])
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(out, c)
	}
	fmt.Fprintf(out, "band=%s bits=%d confidence=%.3f alternatives=%v\n", c.Band, c.BitSize, c.Confidence, c.Alternatives)
	ch := c.Characteristics
	fmt.Fprintf(out, "digits=%d prime_density=%.5f difficulty=%.3f locality=%.3f parallel=%.3f\n",
		ch.Magnitude, ch.PrimeDensity, ch.FactorizationDifficulty, ch.CacheLocality, ch.ParallelPotential)
	return nil
}

// #endregion classify

// #region select

var selectBits int

var selectCmd = &cobra.Command{
	Use:   "select [<n>...]",
	Short: "Select the processing band for each integer",
	RunE:  runSelect,
}

func init() {
	selectCmd.Flags().IntVar(&selectBits, "bits", 0, "select for a bit length instead of values")
	rootCmd.AddCommand(selectCmd)
}

func runSelect(cmd *cobra.Command, args []string) error {
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
	out := cmd.OutOrStdout()

	if selectBits > 0 {
		b, err := sel.SelectBandForBitSize(selectBits)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, b)
		return nil
	}
	if len(args) == 0 {
		return fmt.Errorf("give values or --bits")
	}

	ns, err := parseInts(args)
	if err != nil {
		return err
	}
	for i, n := range ns {
		b, err := sel.SelectBand(n)
		if err != nil {
			fmt.Fprintf(out, "%-24s error: %v\n", args[i], err)
			continue
		}
		fmt.Fprintf(out, "%-24s %s\n", args[i], b)
	}
	return nil
}

// #endregion select

// #region analyze

var analyzeCmd = &cobra.Command{
	Use:   "analyze [<n>...]",
	Short: "Select one band for a batch and explain the choice",
	RunE:  runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ns, err := parseInts(args)
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

	a, err := sel.SelectOptimalBandWithAnalysis(ns)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if jsonOut {
		return printJSON(out, a)
	}
	printAnalysis(cmd, a)
	return nil
}

func printAnalysis(cmd *cobra.Command, a selector.Analysis) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "band=%s confidence=%.3f avg_bits=%.1f\n", a.Band, a.Confidence, a.AvgBitSize)
	for _, b := range band.All() {
		if c := a.Distribution[b]; c > 0 {
			fmt.Fprintf(out, "  %-13s %d\n", b, c)
		}
	}
	if len(a.Alternatives) > 0 {
		fmt.Fprintln(out, "alternatives:")
		for _, alt := range a.Alternatives {
			fmt.Fprintf(out, "  %-13s score=%.3f memory=%s scalability=%s latency=%s\n",
				alt.Band, alt.Score, alt.Tradeoffs.Memory, alt.Tradeoffs.Scalability, alt.Tradeoffs.Latency)
		}
	}
	for _, r := range a.Recommendations {
		fmt.Fprintf(out, "- %s\n", r)
	}
}

// #endregion analyze
