package strategy

import (
	"context"
	"fmt"
	"math"
	"math/big"

	"golang.org/x/sync/errgroup"

	"github.com/danielpatrickdp/bandroute/internal/band"
)

// #region batch

// FactorizeBatch factorizes every value independently. A wide spread of bit
// sizes halves the concurrency chunk; a high mean pins the recommended
// algorithm as first choice for every item. Per-item failures are recorded
// on the item and never abort the batch.
func (r *Router) FactorizeBatch(ctx context.Context, ns []*big.Int) BatchResult {
	r.mu.Lock()
	cfg := r.cfg
	r.mu.Unlock()

	out := BatchResult{Chunk: cfg.BatchChunk, Items: make([]BatchItem, len(ns))}
	if len(ns) == 0 {
		return out
	}

	out.MeanBits, out.StdDevBits = bitStats(ns)
	if out.StdDevBits > cfg.BatchSpread {
		out.Chunk = max(1, cfg.BatchChunk/2)
	}
	if out.MeanBits > cfg.HighEndBits {
		out.Override = r.GetRecommendation(int(math.Round(out.MeanBits)))
	}

	r.logger.Info("batch dispatch",
		"items", len(ns),
		"mean_bits", out.MeanBits,
		"stddev_bits", out.StdDevBits,
		"chunk", out.Chunk,
		"override", out.Override,
	)

	var g errgroup.Group
	g.SetLimit(out.Chunk)
	for i, n := range ns {
		g.Go(func() error {
			item := BatchItem{Index: i, Input: n}
			if n == nil {
				item.Err = fmt.Errorf("batch item %d: nil value", i)
				out.Items[i] = item
				return nil
			}
			res, err := r.factorize(ctx, n, out.Override)
			if err != nil {
				item.Err = fmt.Errorf("batch item %d: %w", i, err)
			} else {
				item.Result = &res
			}
			out.Items[i] = item
			return nil
		})
	}
	_ = g.Wait()

	for _, it := range out.Items {
		if it.Err != nil {
			out.Failed++
		}
	}
	return out
}

// bitStats returns the mean and population standard deviation of bit sizes.
func bitStats(ns []*big.Int) (mean, std float64) {
	for _, n := range ns {
		mean += float64(band.BitSize(n))
	}
	mean /= float64(len(ns))
	for _, n := range ns {
		d := float64(band.BitSize(n)) - mean
		std += d * d
	}
	return mean, math.Sqrt(std / float64(len(ns)))
}

// #endregion batch
