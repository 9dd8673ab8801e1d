// Command bandroute classifies integers into magnitude bands, routes them to
// factorization strategies and manages the adaptive state behind both.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/bandroute/internal/compute"
	"github.com/danielpatrickdp/bandroute/internal/config"
	"github.com/danielpatrickdp/bandroute/internal/logging"
	"github.com/danielpatrickdp/bandroute/internal/selector"
	"github.com/danielpatrickdp/bandroute/internal/state"
	"github.com/danielpatrickdp/bandroute/internal/strategy"
)

// weightsKey names the router whose weights are persisted in the store.
const weightsKey = "default"

// #region root

var (
	cfgFile string
	jsonOut bool

	cfg     *config.Config
	logger  *slog.Logger
	logFile io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "bandroute",
	Short: "Band classification and adaptive factorization routing",
	Long: `bandroute classifies arbitrary-precision integers into eight magnitude
bands, selects the processing band with adaptive thresholds, and routes
factorization work across strategies whose weights learn from outcomes.

State is in memory unless [store] path (or BANDROUTE_DB) names a SQLite file.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(*cobra.Command, []string) {
		if logFile != nil {
			logFile.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "TOML config file")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "print JSON instead of text")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command, _ []string) error {
	var err error
	if cfg, err = config.Load(cfgFile); err != nil {
		return err
	}
	if cfg.Log.File != "" {
		logger, logFile, err = logging.OpenFile(cfg.Log.File, cfg.Log.Level)
		return err
	}
	logger = logging.NewLogger(cmd.ErrOrStderr(), cfg.Log.Level)
	return nil
}

// #endregion root

// #region wiring

// openStore opens the configured store, or returns nil when persistence is off.
func openStore() (*state.Store, error) {
	if cfg.Store.Path == "" {
		return nil, nil
	}
	store, err := state.NewStore(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return store, nil
}

// requireStore is openStore for commands that make no sense in memory.
func requireStore() (*state.Store, error) {
	if cfg.Store.Path == "" {
		return nil, fmt.Errorf("no store configured: set [store] path or %s", config.EnvDB)
	}
	return openStore()
}

// newSelector builds a selector and applies the store's active snapshot.
func newSelector(store *state.Store) (*selector.Selector, error) {
	sel, err := selector.New(
		selector.WithConfig(cfg.Selector),
		selector.WithThresholdPolicy(cfg.ThresholdPolicy()),
		selector.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	if store == nil {
		return sel, nil
	}
	cur, err := store.GetCurrent()
	switch {
	case errors.Is(err, state.ErrNoActive):
		return sel, nil
	case err != nil:
		return nil, err
	}
	if err := sel.ApplySnapshot(cur.Snapshot); err != nil {
		return nil, fmt.Errorf("apply stored snapshot %s: %w", cur.Version, err)
	}
	return sel, nil
}

// newRouter builds the strategy router over the compute strategies and
// restores the stored weights.
func newRouter(store *state.Store) (*strategy.Router, error) {
	router, err := strategy.New(compute.Registrations(cfg.Compute),
		strategy.WithConfig(cfg.Router),
		strategy.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	if store == nil {
		return router, nil
	}
	rec, ok, err := store.LoadWeights(weightsKey)
	if err != nil {
		return nil, err
	}
	if ok {
		router.RestoreWeights(rec.Weights)
	}
	return router, nil
}

// #endregion wiring

// #region helpers

func parseInts(args []string) ([]*big.Int, error) {
	out := make([]*big.Int, len(args))
	for i, a := range args {
		n, ok := new(big.Int).SetString(a, 0)
		if !ok {
			return nil, fmt.Errorf("not an integer: %q", a)
		}
		out[i] = n
	}
	return out, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// #endregion helpers
