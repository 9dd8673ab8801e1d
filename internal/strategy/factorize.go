package strategy

import (
	"context"
	"fmt"
	"math/big"
	"slices"
	"time"

	"github.com/danielpatrickdp/bandroute/internal/band"
	berrors "github.com/danielpatrickdp/bandroute/internal/errors"
)

// primalityRounds is the Miller-Rabin round count used to tag prime factors.
const primalityRounds = 20

var bigOne = big.NewInt(1)

// #region factorize

// Factorize reduces n with the registered strategies. Prime factors are
// tagged KindPrime; a remainder nothing could split is tagged KindTerminal
// and Exhaustion is set on the result. Values below 2 have no factors.
//
// The only error returned is the context's, when ctx is done before the
// call finishes.
func (r *Router) Factorize(ctx context.Context, n *big.Int) (Factorization, error) {
	return r.factorize(ctx, n, "")
}

// factorize runs the attempt loop. pinned, when non-empty and registered, is
// the first algorithm tried on every value.
func (r *Router) factorize(ctx context.Context, n *big.Int, pinned string) (Factorization, error) {
	res := Factorization{Input: new(big.Int)}
	if n == nil {
		return res, nil
	}
	res.Input.Set(n)
	abs := new(big.Int).Abs(n)
	res.Negative = n.Sign() < 0
	if abs.Cmp(bigOne) <= 0 {
		return res, nil
	}

	r.mu.Lock()
	maxAttempts := r.cfg.MaxAttempts
	checkpointEvery := r.cfg.CheckpointEvery
	fallback := r.cfg.Fallback
	perCall := r.cfg.TriedPerCall
	r.mu.Unlock()

	// tried is keyed by value, or by "" when one set spans the call.
	triedKey := func(v *big.Int) string {
		if perCall {
			return ""
		}
		return v.String()
	}

	pending := []*big.Int{abs}
	tried := make(map[string]map[string]bool)
	var unresolved []*big.Int
	attempts := 0

	for len(pending) > 0 {
		target := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		if target.Cmp(bigOne) == 0 {
			continue
		}
		if target.ProbablyPrime(primalityRounds) {
			res.Factors = append(res.Factors, Factor{Value: target, Kind: KindPrime})
			continue
		}
		if attempts >= maxAttempts {
			unresolved = append(unresolved, target)
			continue
		}

		key := triedKey(target)
		if tried[key] == nil {
			tried[key] = make(map[string]bool)
		}

		bits := band.BitSize(target)
		r.mu.Lock()
		algo := r.selectLocked(bits, tried[key], pinned)
		r.mu.Unlock()
		if algo == "" {
			unresolved = append(unresolved, target)
			continue
		}

		if err := ctx.Err(); err != nil {
			return res, err
		}
		attempts++
		tried[key][algo] = true

		parts, rec, err := r.dispatch(ctx, algo, target, bits, attempts, checkpointEvery)
		if err != nil {
			return res, err
		}
		res.Attempts = append(res.Attempts, rec)
		if parts == nil {
			pending = append(pending, target)
			continue
		}
		pending = append(pending, parts...)
	}

	for _, target := range unresolved {
		names := sortedKeys(tried[triedKey(target)])

		if _, ok := r.strategies[fallback]; ok {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			attempts++
			res.FallbackUsed = true
			parts, rec, err := r.dispatch(ctx, fallback, target, band.BitSize(target), attempts, checkpointEvery)
			if err != nil {
				return res, err
			}
			rec.Fallback = true
			res.Attempts = append(res.Attempts, rec)
			if !slices.Contains(names, fallback) {
				names = append(names, fallback)
			}
			if parts != nil {
				// No further attempts after the fallback: composite pieces stay terminal.
				for _, p := range parts {
					kind := KindTerminal
					if p.ProbablyPrime(primalityRounds) {
						kind = KindPrime
					}
					res.Factors = append(res.Factors, Factor{Value: p, Kind: kind})
					if kind == KindTerminal && res.Exhaustion == nil {
						res.Exhaustion = berrors.NewStrategyExhaustionError(p, names)
					}
				}
				continue
			}
		}

		res.Factors = append(res.Factors, Factor{Value: target, Kind: KindTerminal})
		if res.Exhaustion == nil {
			res.Exhaustion = berrors.NewStrategyExhaustionError(target, names)
		}
		r.logger.Warn("strategies exhausted",
			"bits", band.BitSize(target),
			"tried", names,
		)
	}

	slices.SortStableFunc(res.Factors, func(a, b Factor) int { return a.Value.Cmp(b.Value) })
	return res, nil
}

// dispatch runs one attempt and feeds its outcome back. parts is nil when the
// attempt did not produce a verified split. A non-nil error means ctx ended
// during the attempt; no outcome is recorded in that case.
func (r *Router) dispatch(ctx context.Context, algo string, target *big.Int, bits, attempt, every int) ([]*big.Int, AttemptRecord, error) {
	s := r.strategies[algo]
	ac := AttemptContext{
		BitSize:    bits,
		Attempt:    attempt,
		Checkpoint: NewCheckpoint(every),
	}

	start := time.Now()
	result, err := safeAttempt(ctx, s, new(big.Int).Set(target), ac)
	took := result.Took
	if took <= 0 {
		took = time.Since(start)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, AttemptRecord{}, ctxErr
	}

	var parts []*big.Int
	if err == nil && result.Succeeded {
		parts = verifySplit(target, result.Factors)
		if parts == nil {
			err = fmt.Errorf("%s: factors do not split %d-bit value", algo, bits)
		}
	}

	o := Outcome{
		Algorithm:      algo,
		BitSize:        bits,
		ProcessingTime: took,
		Success:        parts != nil,
		At:             r.now(),
	}
	rec := AttemptRecord{Outcome: o, Update: r.observe(o)}
	if err != nil {
		rec.Err = err.Error()
	}

	r.logger.Debug("strategy attempt",
		"algorithm", algo,
		"bits", bits,
		"attempt", attempt,
		"success", o.Success,
		"took_ms", o.Millis(),
		"weight", rec.Update.After,
	)
	return parts, rec, nil
}

// safeAttempt converts a strategy panic into an error.
func safeAttempt(ctx context.Context, s Strategy, v *big.Int, ac AttemptContext) (res Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			res = Result{}
			err = fmt.Errorf("%s panicked: %v", s.Name(), p)
		}
	}()
	return s.Attempt(ctx, v, ac)
}

// verifySplit accepts either a full set of non-trivial factors whose product
// is target, or any single non-trivial divisor.
func verifySplit(target *big.Int, factors []*big.Int) []*big.Int {
	nontrivial := func(f *big.Int) bool {
		return f != nil && f.Cmp(bigOne) > 0 && f.Cmp(target) < 0
	}

	if len(factors) >= 2 {
		prod := big.NewInt(1)
		ok := true
		for _, f := range factors {
			if !nontrivial(f) {
				ok = false
				break
			}
			prod.Mul(prod, f)
		}
		if ok && prod.Cmp(target) == 0 {
			out := make([]*big.Int, len(factors))
			for i, f := range factors {
				out[i] = new(big.Int).Set(f)
			}
			return out
		}
	}

	for _, f := range factors {
		if !nontrivial(f) {
			continue
		}
		q, m := new(big.Int).QuoRem(target, f, new(big.Int))
		if m.Sign() == 0 {
			return []*big.Int{new(big.Int).Set(f), q}
		}
	}
	return nil
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// #endregion factorize
