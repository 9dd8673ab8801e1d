// Package gate decides whether a proposed band adaptation snapshot may be
// committed.
package gate

import (
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/danielpatrickdp/bandroute/internal/band"
	"github.com/danielpatrickdp/bandroute/internal/selector"
)

// #region gate
// Gate evaluates whether a proposed snapshot should be committed or rejected.
type Gate struct {
	config  GateConfig
	limiter *rate.Limiter
	now     func() time.Time
}

// NewGate creates a gate with the given configuration.
func NewGate(config GateConfig) *Gate {
	g := &Gate{config: config, now: time.Now}
	if config.Cooldown > 0 {
		g.limiter = rate.NewLimiter(rate.Every(config.Cooldown), 1)
	}
	return g
}

// WithClock overrides the time source used for the cooldown.
func (g *Gate) WithClock(now func() time.Time) *Gate {
	g.now = now
	return g
}

// Evaluate checks hard vetoes first, then scores soft signals.
// current is the active snapshot (zero value when none), proposed the
// candidate, and metrics the snapshot the proposal was computed from.
func (g *Gate) Evaluate(
	current selector.Snapshot,
	proposed selector.Snapshot,
	metrics selector.PerformanceMetrics,
) GateDecision {
	var vetoes []VetoSignal

	// --- Hard veto pass ---

	// 1. Malformed thresholds or band
	if err := selector.ValidateSnapshot(proposed); err != nil {
		vetoes = append(vetoes, VetoSignal{
			Type:   VetoMalformed,
			Reason: err.Error(),
		})
	}

	// 2. Every threshold must still cover its static band range
	for _, b := range band.All() {
		th, ok := proposed.Parameters.Thresholds[b]
		if !ok {
			continue
		}
		r := b.Range()
		if th.Min > float64(r.Min) || th.Max < float64(r.Max) {
			vetoes = append(vetoes, VetoSignal{
				Type:   VetoCoverage,
				Reason: fmt.Sprintf("%s threshold [%.2f, %.2f] no longer covers [%d, %d]", b, th.Min, th.Max, r.Min, r.Max),
			})
		}
	}

	// 3. Metrics too unhealthy to adapt from
	if metrics.ErrorRate > g.config.MaxErrorRate {
		vetoes = append(vetoes, VetoSignal{
			Type:   VetoErrorRate,
			Reason: fmt.Sprintf("error rate %.4f exceeds cap %.4f", metrics.ErrorRate, g.config.MaxErrorRate),
		})
	}

	// 4. Proposal built on a stale version
	if g.config.RequireLineage && current.Version != "" && proposed.ParentVersion != current.Version {
		vetoes = append(vetoes, VetoSignal{
			Type:   VetoLineage,
			Reason: fmt.Sprintf("parent %q is not the active version %q", proposed.ParentVersion, current.Version),
		})
	}

	// 5. Expected improvement too small
	if proposed.ExpectedImprovement < g.config.MinImprovement {
		vetoes = append(vetoes, VetoSignal{
			Type:   VetoImprovement,
			Reason: fmt.Sprintf("expected improvement %.4f below %.4f", proposed.ExpectedImprovement, g.config.MinImprovement),
		})
	}

	// 6. Cooldown; a token is only spent by an otherwise acceptable proposal
	if len(vetoes) == 0 && g.limiter != nil && !g.limiter.AllowN(g.now(), 1) {
		vetoes = append(vetoes, VetoSignal{
			Type:   VetoCooldown,
			Reason: fmt.Sprintf("last commit less than %s ago", g.config.Cooldown),
		})
	}

	// If any hard vetoes, reject immediately
	if len(vetoes) > 0 {
		return GateDecision{
			Action:      "reject",
			Reason:      fmt.Sprintf("hard veto: %s", vetoes[0].Reason),
			Vetoed:      true,
			VetoSignals: vetoes,
			SoftScore:   0,
		}
	}

	// --- Soft scoring ---
	softScore := computeSoftScore(proposed, metrics)

	return GateDecision{
		Action:      "commit",
		Reason:      fmt.Sprintf("passed gate: soft_score=%.4f", softScore),
		Vetoed:      false,
		VetoSignals: nil,
		SoftScore:   softScore,
	}
}

// #endregion gate

// #region helpers

// computeSoftScore produces a 0-1 composite from selection quality, band
// stability and expected improvement. Logged but does not block.
func computeSoftScore(proposed selector.Snapshot, metrics selector.PerformanceMetrics) float64 {
	var score float64

	// Optimal selections (weight 0.4)
	score += 0.4 * clamp(metrics.OptimalSelectionRate)

	// Fewer band transitions are more stable (weight 0.3)
	score += 0.3 * (1 - clamp(metrics.TransitionOverhead))

	// Improvement relative to the best stock multiplier 1.1 (weight 0.3)
	score += 0.3 * clamp(proposed.ExpectedImprovement/1.1)

	return score
}

// clamp restricts v to [0, 1].
func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// #endregion helpers
