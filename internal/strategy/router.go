// Package strategy dispatches integer factorization work to competing
// compute algorithms and learns which ones pay off.
//
// A Router keeps a normalized weight vector over its registered strategies
// and a bounded outcome history. Each attempt's outcome updates the weights
// (reward fast successes, decay failures) before the vector is renormalized.
// The attempt loop never repeats an algorithm on the same value, is bounded
// by MaxAttempts, and ends with one fallback attempt; anything still
// unreduced is returned as a terminal factor rather than an error.
//
// # Thread Safety
//
// Router methods are safe for concurrent use. Weight and history updates are
// serialized under one mutex; strategy attempts run outside it.
package strategy

import (
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/danielpatrickdp/bandroute/internal/adaptive"
	"github.com/danielpatrickdp/bandroute/internal/band"
	berrors "github.com/danielpatrickdp/bandroute/internal/errors"
	"github.com/danielpatrickdp/bandroute/internal/ledger"
)

// #region options

// Option configures a Router.
type Option func(*Router)

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(r *Router) { r.cfg = cfg }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock overrides the time source used to stamp outcomes.
func WithClock(now func() time.Time) Option {
	return func(r *Router) {
		if now != nil {
			r.now = now
		}
	}
}

// #endregion options

// #region router

// Router is the adaptive strategy router.
type Router struct {
	mu         sync.Mutex
	cfg        Config
	order      []string
	strategies map[string]Strategy
	weights    *adaptive.WeightVector[string]
	history    *ledger.Ring[Outcome]
	timing     *ledger.Ledger[string]
	logger     *slog.Logger
	now        func() time.Time
}

// New creates a Router over regs. Priors are normalized to sum to 1.
func New(regs []Registration, opts ...Option) (*Router, error) {
	r := &Router{
		cfg:        DefaultConfig(),
		strategies: make(map[string]Strategy, len(regs)),
		logger:     slog.New(slog.DiscardHandler),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if err := validateConfig(r.cfg); err != nil {
		return nil, err
	}
	if len(regs) == 0 {
		return nil, fmt.Errorf("strategy router: no strategies registered")
	}

	priors := make(map[string]float64, len(regs))
	for _, reg := range regs {
		if reg.Strategy == nil {
			return nil, fmt.Errorf("strategy router: nil strategy")
		}
		name := reg.Strategy.Name()
		if _, dup := r.strategies[name]; dup {
			return nil, fmt.Errorf("strategy router: duplicate strategy %q", name)
		}
		r.strategies[name] = reg.Strategy
		r.order = append(r.order, name)
		priors[name] = reg.Prior
	}

	w, err := adaptive.NewWeightVector(r.order, priors)
	if err != nil {
		return nil, fmt.Errorf("strategy router: %w", err)
	}
	r.weights = w
	r.history = ledger.NewRing[Outcome](r.cfg.HistorySize)
	r.timing = ledger.New[string](r.cfg.HistorySize)
	return r, nil
}

func validateConfig(c Config) error {
	switch {
	case c.MaxAttempts < 1:
		return berrors.NewConfigurationError("max_attempts", "must be positive", nil)
	case c.HistorySize < 1:
		return berrors.NewConfigurationError("history_size", "must be positive", nil)
	case c.LearningRate <= 0 || c.LearningRate >= 1:
		return berrors.NewConfigurationError("learning_rate", fmt.Sprintf("%v not in (0,1)", c.LearningRate), nil)
	case c.RecommendationWindow < 0:
		return berrors.NewConfigurationError("recommendation_window", "must not be negative", nil)
	case len(c.SubRanges) == 0:
		return berrors.NewConfigurationError("sub_ranges", "at least one sub-range is required", nil)
	case c.BatchChunk < 1:
		return berrors.NewConfigurationError("batch_chunk", "must be positive", nil)
	}
	for i, sr := range c.SubRanges {
		if sr.Activation < 0 || sr.Activation > 1 {
			return berrors.NewConfigurationError(fmt.Sprintf("sub_ranges[%d].activation", i), fmt.Sprintf("%v not in [0,1]", sr.Activation), nil)
		}
	}
	return nil
}

// ValidateConfig reports whether c is usable by New.
func ValidateConfig(c Config) error {
	return validateConfig(c)
}

// Configuration returns a copy of the configuration.
func (r *Router) Configuration() Config {
	cfg := r.cfg
	cfg.SubRanges = append([]SubRange(nil), r.cfg.SubRanges...)
	return cfg
}

// Names returns the registered strategy names in registration order.
func (r *Router) Names() []string {
	return append([]string(nil), r.order...)
}

// #endregion router

// #region select-algorithm

// SelectAlgorithm returns the algorithm the router would try first for a
// value of bitSizeHint bits (or remaining's own size when the hint is not positive).
func (r *Router) SelectAlgorithm(remaining *big.Int, bitSizeHint int) string {
	bits := bitSizeHint
	if bits <= 0 {
		bits = band.BitSize(remaining)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selectLocked(bits, nil, "")
}

// selectLocked picks an untried algorithm: the pinned override first, then
// the sub-range preference, then the highest-weight untried strategy.
func (r *Router) selectLocked(bits int, tried map[string]bool, pinned string) string {
	usable := func(name string) bool {
		_, ok := r.strategies[name]
		return ok && !tried[name]
	}

	if pinned != "" && usable(pinned) {
		return pinned
	}

	rule := r.subRange(bits)
	choice := rule.Default
	if rule.Preferred != "" && r.weights.Has(rule.Preferred) && r.weights.Get(rule.Preferred) > rule.Activation {
		choice = rule.Preferred
	}
	if usable(choice) {
		return choice
	}
	if usable(rule.Default) {
		return rule.Default
	}

	best := ""
	bestWeight := -1.0
	for _, name := range r.order {
		if !usable(name) {
			continue
		}
		if w := r.weights.Get(name); w > bestWeight {
			best, bestWeight = name, w
		}
	}
	return best
}

func (r *Router) subRange(bits int) SubRange {
	for _, sr := range r.cfg.SubRanges {
		if sr.MaxBits <= 0 || bits <= sr.MaxBits {
			return sr
		}
	}
	return r.cfg.SubRanges[len(r.cfg.SubRanges)-1]
}

// #endregion select-algorithm

// #region feedback

// RecordOutcome feeds an externally observed outcome into the router.
func (r *Router) RecordOutcome(o Outcome) (adaptive.UpdateResult[string], error) {
	if _, ok := r.strategies[o.Algorithm]; !ok {
		return adaptive.UpdateResult[string]{}, fmt.Errorf("record outcome: unknown algorithm %q", o.Algorithm)
	}
	if o.At.IsZero() {
		o.At = r.now()
	}
	return r.observe(o), nil
}

// observe records o and applies the learning rule in one critical section.
func (r *Router) observe(o Outcome) adaptive.UpdateResult[string] {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.history.Push(o)
	r.timing.RecordAt(o.Algorithm, o.Millis(), o.At)
	return adaptive.ApplyOutcome(r.weights, adaptive.Outcome[string]{
		Candidate: o.Algorithm,
		Success:   o.Success,
		CostMs:    o.Millis(),
	}, adaptive.UpdateConfig{LearningRate: r.cfg.LearningRate})
}

// Weights returns a copy of the current weight vector.
func (r *Router) Weights() map[string]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.weights.Snapshot()
}

// RestoreWeights replaces the weights of known strategies and renormalizes.
func (r *Router) RestoreWeights(w map[string]float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.weights.Restore(w)
}

// History returns the retained outcomes, oldest first.
func (r *Router) History() []Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.history.Items()
}

// AverageMillis returns the mean processing time recorded for algo.
func (r *Router) AverageMillis(algo string) (float64, bool) {
	return r.timing.Mean(algo)
}

// #endregion feedback

// #region recommendation

// GetRecommendation scores each algorithm by Σ 1/(ms+1) over successful
// outcomes within RecommendationWindow bits of bitSize and returns the best.
// Without matching history it returns the static default for the sub-range.
func (r *Router) GetRecommendation(bitSize int) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	scores := make(map[string]float64)
	for _, o := range r.history.Items() {
		if !o.Success {
			continue
		}
		d := o.BitSize - bitSize
		if d < -r.cfg.RecommendationWindow || d > r.cfg.RecommendationWindow {
			continue
		}
		scores[o.Algorithm] += 1 / (o.Millis() + 1)
	}

	best := ""
	bestScore := 0.0
	for _, name := range r.order {
		if s, ok := scores[name]; ok && s > bestScore {
			best, bestScore = name, s
		}
	}
	if best != "" {
		return best
	}
	return r.staticDefault(bitSize)
}

func (r *Router) staticDefault(bits int) string {
	rule := r.subRange(bits)
	if _, ok := r.strategies[rule.Default]; ok {
		return rule.Default
	}
	return r.selectLocked(bits, nil, "")
}

// #endregion recommendation
