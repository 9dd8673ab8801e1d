package compute

import (
	"context"
	"math/big"

	"github.com/danielpatrickdp/bandroute/internal/strategy"
)

// brentBatch is the number of |x-y| products accumulated per gcd.
const brentBatch = 128

// PollardRho is Brent's variant of Pollard's rho with f(x) = x^2 + c.
// Each of Constants polynomial constants gets Iterations steps.
type PollardRho struct {
	Iterations int
	Constants  int
}

// Name implements strategy.Strategy.
func (PollardRho) Name() string { return strategy.AlgoPollardRho }

// Attempt implements strategy.Strategy.
func (p PollardRho) Attempt(ctx context.Context, n *big.Int, ac strategy.AttemptContext) (strategy.Result, error) {
	if n.Cmp(big.NewInt(4)) < 0 {
		return strategy.Result{}, nil
	}
	if n.Bit(0) == 0 {
		return found(n, two), nil
	}

	constants := max(p.Constants, 1)
	for c := int64(1); c <= int64(constants); c++ {
		d, err := p.brent(ctx, n, big.NewInt(c), ac.Checkpoint)
		if err != nil {
			return strategy.Result{}, err
		}
		if d != nil {
			return found(n, d), nil
		}
	}
	return strategy.Result{}, nil
}

func (p PollardRho) brent(ctx context.Context, n, c *big.Int, cp *strategy.Checkpoint) (*big.Int, error) {
	f := func(x *big.Int) {
		x.Mul(x, x)
		x.Add(x, c)
		x.Mod(x, n)
	}

	y := big.NewInt(2)
	x := new(big.Int)
	ys := new(big.Int)
	q := big.NewInt(1)
	g := big.NewInt(1)
	diff := new(big.Int)

	steps := 0
	for r := 1; g.Cmp(one) == 0; r *= 2 {
		x.Set(y)
		for i := 0; i < r; i++ {
			f(y)
		}
		for k := 0; k < r && g.Cmp(one) == 0; k += brentBatch {
			ys.Set(y)
			for i := 0; i < min(brentBatch, r-k); i++ {
				if err := cp.Tick(ctx); err != nil {
					return nil, err
				}
				f(y)
				diff.Sub(x, y)
				diff.Abs(diff)
				q.Mul(q, diff)
				q.Mod(q, n)
				steps++
			}
			g.GCD(nil, nil, q, n)
		}
		if p.Iterations > 0 && steps >= p.Iterations && g.Cmp(one) == 0 {
			return nil, nil
		}
	}

	if g.Cmp(n) == 0 {
		// The batch overshot; step back one product at a time.
		for {
			if err := cp.Tick(ctx); err != nil {
				return nil, err
			}
			f(ys)
			diff.Sub(x, ys)
			diff.Abs(diff)
			g.GCD(nil, nil, diff, n)
			if g.Cmp(one) > 0 {
				break
			}
		}
	}
	if !nontrivial(g, n) {
		return nil, nil
	}
	return g, nil
}
