package compute

import (
	"context"
	"math/big"

	"github.com/danielpatrickdp/bandroute/internal/strategy"
)

// gcdEvery is how many exponent steps pass between gcd checks.
const gcdEvery = 64

// PollardPMinus1 is stage one of Pollard's p-1 method: it computes
// 2^(Bound!) mod n and looks for a factor p where p-1 is Bound-smooth.
type PollardPMinus1 struct {
	Bound int
}

// Name implements strategy.Strategy.
func (PollardPMinus1) Name() string { return strategy.AlgoPollardPMinus1 }

// Attempt implements strategy.Strategy.
func (p PollardPMinus1) Attempt(ctx context.Context, n *big.Int, ac strategy.AttemptContext) (strategy.Result, error) {
	if n.Cmp(big.NewInt(4)) < 0 {
		return strategy.Result{}, nil
	}
	if n.Bit(0) == 0 {
		return found(n, two), nil
	}

	bound := p.Bound
	if bound < 2 {
		bound = 2
	}

	a := big.NewInt(2)
	e := new(big.Int)
	g := new(big.Int)
	am1 := new(big.Int)
	for j := 2; j <= bound; j++ {
		if err := ac.Checkpoint.Tick(ctx); err != nil {
			return strategy.Result{}, err
		}
		a.Exp(a, e.SetInt64(int64(j)), n)
		if j%gcdEvery != 0 && j != bound {
			continue
		}
		am1.Sub(a, one)
		g.GCD(nil, nil, am1, n)
		switch {
		case nontrivial(g, n):
			return found(n, g), nil
		case g.Cmp(n) == 0:
			// Every prime factor became smooth at once.
			return strategy.Result{}, nil
		}
	}
	return strategy.Result{}, nil
}
