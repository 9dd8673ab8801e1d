// Package compute provides reference factorization strategies on math/big
// for the strategy router. Each one is bounded by an iteration budget and
// yields at the router's checkpoints.
package compute

import (
	"math/big"

	"github.com/danielpatrickdp/bandroute/internal/strategy"
)

// #region config

// Config bounds the work each strategy does per attempt.
type Config struct {
	TrialLimit       int64 `toml:"trial_limit" json:"trial_limit"`             // largest trial divisor
	RhoIterations    int   `toml:"rho_iterations" json:"rho_iterations"`       // per polynomial constant
	RhoConstants     int   `toml:"rho_constants" json:"rho_constants"`         // c values tried before giving up
	PMinus1Bound     int   `toml:"p_minus_1_bound" json:"p_minus_1_bound"`     // smoothness bound B1
	FermatIterations int   `toml:"fermat_iterations" json:"fermat_iterations"` // a values stepped
}

// DefaultConfig returns the stock work bounds.
func DefaultConfig() Config {
	return Config{
		TrialLimit:       1 << 20,
		RhoIterations:    1 << 18,
		RhoConstants:     4,
		PMinus1Bound:     100000,
		FermatIterations: 1 << 18,
	}
}

// #endregion config

// #region registrations

// Defaults returns the four reference strategies with equal priors.
func Defaults() []strategy.Registration {
	return Registrations(DefaultConfig())
}

// Registrations returns the four reference strategies configured by cfg.
func Registrations(cfg Config) []strategy.Registration {
	return []strategy.Registration{
		{Strategy: TrialDivision{Limit: cfg.TrialLimit}, Prior: 0.25},
		{Strategy: PollardRho{Iterations: cfg.RhoIterations, Constants: cfg.RhoConstants}, Prior: 0.25},
		{Strategy: PollardPMinus1{Bound: cfg.PMinus1Bound}, Prior: 0.25},
		{Strategy: Fermat{Iterations: cfg.FermatIterations}, Prior: 0.25},
	}
}

// #endregion registrations

var (
	one = big.NewInt(1)
	two = big.NewInt(2)
)

// found builds a successful result splitting n at d.
func found(n, d *big.Int) strategy.Result {
	q := new(big.Int).Quo(n, d)
	return strategy.Result{Factors: []*big.Int{new(big.Int).Set(d), q}, Succeeded: true}
}

// nontrivial reports whether 1 < d < n.
func nontrivial(d, n *big.Int) bool {
	return d.Cmp(one) > 0 && d.Cmp(n) < 0
}
