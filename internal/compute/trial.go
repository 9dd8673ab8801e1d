package compute

import (
	"context"
	"math/big"

	"github.com/danielpatrickdp/bandroute/internal/strategy"
)

// TrialDivision divides out 2, 3 and then numbers of the form 6k±1 up to
// min(Limit, sqrt(remaining)). One attempt strips every small factor it
// finds and reports the cofactor alongside them.
type TrialDivision struct {
	Limit int64
}

// Name implements strategy.Strategy.
func (TrialDivision) Name() string { return strategy.AlgoTrialDivision }

// Attempt implements strategy.Strategy.
func (t TrialDivision) Attempt(ctx context.Context, n *big.Int, ac strategy.AttemptContext) (strategy.Result, error) {
	if n.Cmp(big.NewInt(4)) < 0 {
		return strategy.Result{}, nil
	}

	rem := new(big.Int).Set(n)
	root := new(big.Int).Sqrt(rem)
	limit := big.NewInt(t.Limit)

	var factors []*big.Int
	d := new(big.Int)
	q := new(big.Int)
	m := new(big.Int)
	strip := func(v int64) {
		d.SetInt64(v)
		for {
			q.QuoRem(rem, d, m)
			if m.Sign() != 0 {
				return
			}
			factors = append(factors, big.NewInt(v))
			rem.Set(q)
			root.Sqrt(rem)
		}
	}

	strip(2)
	strip(3)
	for k := int64(5); ; k += 6 {
		if err := ac.Checkpoint.Tick(ctx); err != nil {
			return strategy.Result{}, err
		}
		d.SetInt64(k)
		if d.Cmp(root) > 0 || (t.Limit > 0 && d.Cmp(limit) > 0) {
			break
		}
		strip(k)
		strip(k + 2)
	}

	if len(factors) == 0 {
		return strategy.Result{}, nil
	}
	if rem.Cmp(one) > 0 {
		factors = append(factors, rem)
	}
	return strategy.Result{Factors: factors, Succeeded: true}, nil
}
