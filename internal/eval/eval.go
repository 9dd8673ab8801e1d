// Package eval validates router weights and selector thresholds after every
// update.
package eval

import (
	"fmt"
	"math"
	"slices"

	"github.com/danielpatrickdp/bandroute/internal/band"
	"github.com/danielpatrickdp/bandroute/internal/selector"
)

// #region eval-harness
// EvalHarness runs lightweight post-update validation.
type EvalHarness struct {
	config EvalConfig
}

// NewEvalHarness creates an eval harness with the given configuration.
func NewEvalHarness(config EvalConfig) *EvalHarness {
	return &EvalHarness{config: config}
}

// Run validates a weight vector and a threshold table. Either may be nil
// to skip its checks.
func (h *EvalHarness) Run(weights map[string]float64, thresholds map[band.Type]selector.AdaptiveThreshold) EvalResult {
	var metrics []EvalMetric
	passed := true
	var failReasons []string

	fail := func(reason string) {
		passed = false
		failReasons = append(failReasons, reason)
	}

	// 1. Weights: non-negative, finite, summing to 1
	if weights != nil {
		names := make([]string, 0, len(weights))
		for name := range weights {
			names = append(names, name)
		}
		slices.Sort(names)

		sum := 0.0
		minWeight := math.Inf(1)
		for _, name := range names {
			w := weights[name]
			sum += w
			if w < minWeight || math.IsNaN(w) {
				minWeight = w
			}
			if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
				fail(fmt.Sprintf("weight %s = %v", name, w))
			}
		}
		if len(names) == 0 {
			minWeight = 0
		}
		metrics = append(metrics, EvalMetric{Name: "weight_min", Value: minWeight, Pass: minWeight >= 0})

		drift := math.Abs(sum - 1)
		sumPass := len(names) > 0 && drift <= h.config.WeightTolerance
		metrics = append(metrics, EvalMetric{Name: "weight_sum", Value: sum, Pass: sumPass})
		if !sumPass {
			fail(fmt.Sprintf("weights sum to %.12f", sum))
		}
	}

	// 2. Thresholds: well formed; spread is informational only
	for _, b := range band.All() {
		th, ok := thresholds[b]
		if !ok {
			continue
		}
		wellFormed := !math.IsNaN(th.Min) && !math.IsNaN(th.Max) &&
			!math.IsInf(th.Min, 0) && !math.IsInf(th.Max, 0) &&
			th.Min >= 0 && th.Min <= th.Max
		metrics = append(metrics, EvalMetric{
			Name:  fmt.Sprintf("threshold_%s_width", b),
			Value: th.Max - th.Min,
			Pass:  wellFormed,
		})
		if !wellFormed {
			fail(fmt.Sprintf("%s threshold [%v, %v] malformed", b, th.Min, th.Max))
			continue
		}

		r := b.Range()
		spread := (th.Max - th.Min) / float64(r.Max-r.Min)
		metrics = append(metrics, EvalMetric{
			Name:  fmt.Sprintf("threshold_%s_spread", b),
			Value: spread,
			Pass:  spread <= h.config.MaxSpread,
		})
	}

	reason := "all checks passed"
	if !passed {
		reason = fmt.Sprintf("eval failed: %s", failReasons[0])
		if len(failReasons) > 1 {
			reason = fmt.Sprintf("eval failed: %d checks: %s", len(failReasons), failReasons[0])
		}
	}

	return EvalResult{
		Passed:  passed,
		Metrics: metrics,
		Reason:  reason,
	}
}

// #endregion eval-harness
