package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/bandroute/internal/band"
	"github.com/danielpatrickdp/bandroute/internal/logging"
	"github.com/danielpatrickdp/bandroute/internal/metrics"
	"github.com/danielpatrickdp/bandroute/internal/routing"
	"github.com/danielpatrickdp/bandroute/internal/state"
	"github.com/danielpatrickdp/bandroute/internal/strategy"
)

// #region factor

var (
	factorTimeout time.Duration
	factorRecord  string
)

var factorCmd = &cobra.Command{
	Use:   "factor <n>...",
	Short: "Factorize integers through band selection and the adaptive strategy router",
	Long: `factor selects a band for each value, factors it with the strategy
router and feeds the outcome back into the band ledger. Several values run as
one batch routed to a single band. With a store configured the learned
weights are saved and each run is written to the decision log. --record
appends the run's observations to a file that adapt --observations reads.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFactor,
}

func init() {
	factorCmd.Flags().DurationVar(&factorTimeout, "timeout", 0, "overall deadline (0 = none)")
	factorCmd.Flags().StringVar(&factorRecord, "record", "", "append observations to this JSON file")
	rootCmd.AddCommand(factorCmd)
}

func runFactor(cmd *cobra.Command, args []string) error {
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
	pipe, err := newPipeline(store)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if factorTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, factorTimeout)
		defer cancel()
	}

	out := cmd.OutOrStdout()
	var (
		runErr error
		obs    []metrics.Observation
	)
	if len(ns) == 1 {
		routed, err := pipe.Factorize(ctx, ns[0])
		switch {
		case err != nil:
			runErr = err
		case jsonOut:
			runErr = printJSON(out, routedView(routed))
		default:
			printFactorization(out, args[0], routed.Result)
			if routed.Banded {
				fmt.Fprintf(out, "  band=%s primary=%s\n", routed.Selected, routed.Primary)
			}
		}
		if err == nil && routed.Banded {
			obs = append(obs, routed.Observation)
		}
	} else {
		res := pipe.FactorizeBatch(ctx, ns)
		obs = res.Observations
		if jsonOut {
			runErr = printJSON(out, batchView(res))
		} else {
			for i, item := range res.Items {
				if item.Err != nil {
					fmt.Fprintf(out, "%s: error: %v\n", args[i], item.Err)
					continue
				}
				printFactorization(out, args[i], *item.Result)
			}
			fmt.Fprintf(out, "\nbatch: band=%s mean_bits=%.1f stddev=%.1f chunk=%d override=%q failed=%d\n",
				batchBand(res), res.MeanBits, res.StdDevBits, res.Chunk, res.Override, res.Failed)
		}
	}

	if factorRecord != "" && len(obs) > 0 {
		if err := appendObservations(factorRecord, obs); err != nil {
			return err
		}
	}
	if store != nil {
		if err := persistRouter(store, pipe, len(ns), runErr); err != nil {
			logger.Warn("persist router state failed", "error", err)
		}
	}
	return runErr
}

// newPipeline wires the selector and router behind band routing.
func newPipeline(store *state.Store) (*routing.Pipeline, error) {
	sel, err := newSelector(store)
	if err != nil {
		return nil, err
	}
	router, err := newRouter(store)
	if err != nil {
		return nil, err
	}
	return routing.New(sel, router,
		routing.WithProducer(metrics.NewProducer(cfg.Metrics)),
		routing.WithLogger(logger))
}

// persistRouter saves the learned weights and logs the run with the
// metrics observed so far.
func persistRouter(store *state.Store, pipe *routing.Pipeline, values int, runErr error) error {
	weights := pipe.Default().Weights()
	if err := store.SaveWeights(weightsKey, weights); err != nil {
		return err
	}
	detail := map[string]any{"values": values, "weights": weights}
	if pipe.Producer().Len() > 0 {
		detail["metrics"] = pipe.Metrics()
	}
	data, err := json.Marshal(detail)
	if err != nil {
		return err
	}
	entry := logging.DecisionEntry{
		Kind:       logging.KindFactorize,
		Decision:   "done",
		DetailJSON: string(data),
	}
	if runErr != nil {
		entry.Decision = "aborted"
		entry.Reason = runErr.Error()
	}
	return logging.LogDecision(store.DB(), entry)
}

// appendObservations adds obs to the JSON array in path, creating it when missing.
func appendObservations(path string, obs []metrics.Observation) error {
	var all []observationJSON
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &all); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	case !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("read %s: %w", path, err)
	}
	for _, o := range obs {
		all = append(all, observationJSON{
			Primary:  o.Primary,
			Selected: o.Selected,
			Failed:   o.Err != nil,
			Optimal:  o.Optimal,
		})
	}
	data, err = json.MarshalIndent(all, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func batchBand(res routing.BatchResult) string {
	if !res.Banded {
		return "none"
	}
	return res.Selected.String()
}

// #endregion factor

// #region output

type factorJSON struct {
	Input     string   `json:"input"`
	Negative  bool     `json:"negative,omitempty"`
	Factors   []string `json:"factors"`
	Terminal  []string `json:"terminal,omitempty"`
	Attempts  []string `json:"attempts"`
	Fallback  bool     `json:"fallback_used,omitempty"`
	Exhausted string   `json:"exhausted,omitempty"`
	Primary   string   `json:"primary,omitempty"`
	Band      string   `json:"band,omitempty"`
	Error     string   `json:"error,omitempty"`
}

func factorView(f strategy.Factorization) factorJSON {
	v := factorJSON{Input: f.Input.String(), Negative: f.Negative, Fallback: f.FallbackUsed, Factors: []string{}}
	for _, fc := range f.Factors {
		if fc.Kind == strategy.KindTerminal {
			v.Terminal = append(v.Terminal, fc.Value.String())
			continue
		}
		v.Factors = append(v.Factors, fc.Value.String())
	}
	for _, a := range f.Attempts {
		v.Attempts = append(v.Attempts, attemptLine(a))
	}
	if f.Exhaustion != nil {
		v.Exhausted = f.Exhaustion.Remainder.String()
	}
	return v
}

func routedView(r routing.Routed) factorJSON {
	v := factorView(r.Result)
	if r.Banded {
		v.Primary, v.Band = r.Primary.String(), r.Selected.String()
	}
	return v
}

func batchView(res routing.BatchResult) []factorJSON {
	out := make([]factorJSON, len(res.Items))
	for i, item := range res.Items {
		if item.Err != nil {
			out[i] = factorJSON{Input: item.Input.String(), Error: item.Err.Error()}
			continue
		}
		out[i] = factorView(*item.Result)
		if res.Banded {
			out[i].Band = res.Selected.String()
			if c, err := band.Classify(item.Input); err == nil {
				out[i].Primary = c.Band.String()
			}
		}
	}
	return out
}

func attemptLine(a strategy.AttemptRecord) string {
	status := "ok"
	if !a.Outcome.Success {
		status = "fail"
	}
	line := fmt.Sprintf("%s bits=%d %.2fms %s", a.Outcome.Algorithm, a.Outcome.BitSize, a.Outcome.Millis(), status)
	if a.Fallback {
		line += " fallback"
	}
	if a.Err != "" {
		line += " (" + a.Err + ")"
	}
	return line
}

func printFactorization(w io.Writer, input string, f strategy.Factorization) {
	v := factorView(f)
	sign := ""
	if v.Negative {
		sign = "-1 * "
	}
	fmt.Fprintf(w, "%s = %s%v", input, sign, v.Factors)
	if len(v.Terminal) > 0 {
		fmt.Fprintf(w, " unresolved=%v", v.Terminal)
	}
	fmt.Fprintln(w)
	for _, a := range v.Attempts {
		fmt.Fprintf(w, "  %s\n", a)
	}
}

// #endregion output
