package compute

import (
	"context"
	"math/big"

	"github.com/danielpatrickdp/bandroute/internal/strategy"
)

// Fermat writes n as a^2 - b^2 starting from a = ceil(sqrt(n)). It is fast
// when n has two factors close to sqrt(n).
type Fermat struct {
	Iterations int
}

// Name implements strategy.Strategy.
func (Fermat) Name() string { return strategy.AlgoFermat }

// Attempt implements strategy.Strategy.
func (f Fermat) Attempt(ctx context.Context, n *big.Int, ac strategy.AttemptContext) (strategy.Result, error) {
	if n.Cmp(big.NewInt(4)) < 0 {
		return strategy.Result{}, nil
	}
	if n.Bit(0) == 0 {
		return found(n, two), nil
	}

	a := new(big.Int).Sqrt(n)
	sq := new(big.Int).Mul(a, a)
	if sq.Cmp(n) < 0 {
		a.Add(a, one)
		sq.Mul(a, a)
	}

	b2 := new(big.Int).Sub(sq, n)
	b := new(big.Int)
	d := new(big.Int)
	for i := 0; f.Iterations <= 0 || i < f.Iterations; i++ {
		if err := ac.Checkpoint.Tick(ctx); err != nil {
			return strategy.Result{}, err
		}
		b.Sqrt(b2)
		if d.Mul(b, b).Cmp(b2) == 0 {
			d.Sub(a, b)
			if nontrivial(d, n) {
				return found(n, d), nil
			}
			return strategy.Result{}, nil
		}
		// (a+1)^2 - n = a^2 - n + 2a + 1
		b2.Add(b2, d.Lsh(a, 1))
		b2.Add(b2, one)
		a.Add(a, one)
	}
	return strategy.Result{}, nil
}
