// Package selector routes values to magnitude bands with hysteresis.
//
// A Selector wraps the static classifier with per-band elastic thresholds
// and a bounded performance ledger. A value is scored against its primary
// band and the two ordinal neighbours; a neighbour must score strictly
// higher to take the value. AdaptBandSelection reshapes the thresholds from
// aggregate metrics and recommends a new default band.
//
// # Thread Safety
//
// All Selector methods are safe for concurrent use. Threshold reads during
// scoring take a read lock and see the last completed adaptation.
package selector

import (
	"fmt"
	"log/slog"
	"math"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/danielpatrickdp/bandroute/internal/adaptive"
	"github.com/danielpatrickdp/bandroute/internal/band"
	berrors "github.com/danielpatrickdp/bandroute/internal/errors"
	"github.com/danielpatrickdp/bandroute/internal/ledger"
)

// #region options

// Option configures a Selector.
type Option func(*Selector)

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(s *Selector) { s.cfg = cfg }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Selector) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithThresholdPolicy replaces the threshold adjustment policy.
func WithThresholdPolicy(p ThresholdPolicy) Option {
	return func(s *Selector) {
		if p != nil {
			s.policy = p
		}
	}
}

// WithClock overrides the time source used for snapshots.
func WithClock(now func() time.Time) Option {
	return func(s *Selector) {
		if now != nil {
			s.now = now
		}
	}
}

// #endregion options

// #region selector

// Selector picks bands for values and adapts its thresholds from feedback.
type Selector struct {
	mu         sync.RWMutex
	cfg        Config
	thresholds map[band.Type]AdaptiveThreshold
	perf       *ledger.Ledger[band.Type]
	policy     ThresholdPolicy
	logger     *slog.Logger
	now        func() time.Time
	version    string
}

// New creates a Selector. An invalid configuration fails with a SelectionError.
func New(opts ...Option) (*Selector, error) {
	s := &Selector{
		cfg:    DefaultConfig(),
		policy: MultiplicativePolicy{},
		logger: slog.New(slog.DiscardHandler),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := validateConfig(s.cfg); err != nil {
		return nil, err
	}
	s.perf = ledger.New[band.Type](s.cfg.HistorySize)
	s.resetThresholds()
	return s, nil
}

// resetThresholds rebuilds every threshold from the static ranges. Callers hold mu.
func (s *Selector) resetThresholds() {
	margin := 0.0
	if s.cfg.AdaptiveThresholds {
		margin = s.cfg.HysteresisMargin
	}
	s.thresholds = make(map[band.Type]AdaptiveThreshold, band.Count)
	for _, b := range band.All() {
		s.thresholds[b] = InitialThreshold(b, margin)
	}
}

// #endregion selector

// #region select-band

// SelectBand classifies n and returns the band it should be routed to.
func (s *Selector) SelectBand(n *big.Int) (band.Type, error) {
	return s.SelectBandForBitSize(band.BitSize(n))
}

// SelectBandForBitSize is SelectBand for a precomputed bit length.
func (s *Selector) SelectBandForBitSize(bits int) (band.Type, error) {
	c, err := band.ClassifyBitSize(bits)
	if err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.cfg.AdaptiveThresholds {
		return c.Band, nil
	}

	selected, _ := adaptive.Argmax(c.Band, c.Band.Neighbors(), func(b band.Type) float64 {
		return s.scoreLocked(b, float64(bits))
	})
	if selected != c.Band {
		s.logger.Debug("band re-routed",
			"bit_size", bits,
			"primary", c.Band.String(),
			"selected", selected.String())
	}
	return selected, nil
}

// #endregion select-band

// #region score

// Score rates how well b suits a value of the given bit size: InRangeScore
// inside the static range, ElasticScore inside the adaptive threshold,
// OutOfRangeScore otherwise, scaled by the band's ledger mean when one exists.
func (s *Selector) Score(b band.Type, bits float64) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scoreLocked(b, bits)
}

func (s *Selector) scoreLocked(b band.Type, bits float64) float64 {
	r := b.Range()
	var score float64
	switch {
	case bits >= float64(r.Min) && bits <= float64(r.Max):
		score = s.cfg.InRangeScore
	case s.thresholds[b].Contains(bits):
		score = s.cfg.ElasticScore
	default:
		score = s.cfg.OutOfRangeScore
	}
	if mean, ok := s.perf.Mean(b); ok {
		score *= mean
	}
	return score
}

// RecordPerformance feeds an observed performance value for b into the ledger.
func (s *Selector) RecordPerformance(b band.Type, value float64) {
	if !b.Valid() || math.IsNaN(value) || math.IsInf(value, 0) {
		return
	}
	s.perf.Record(b, value)
}

// PerformanceMean returns the ledger mean for b.
func (s *Selector) PerformanceMean(b band.Type) (float64, bool) {
	return s.perf.Mean(b)
}

// #endregion score

// #region optimal-band

// SelectOptimalBand picks one band for a batch. An empty batch always returns
// MIDRANGE, independent of the adapted default band; a single value delegates
// to SelectBand.
func (s *Selector) SelectOptimalBand(ns []*big.Int) (band.Type, error) {
	switch len(ns) {
	case 0:
		return band.Midrange, nil
	case 1:
		return s.SelectBand(ns[0])
	}
	bc, err := band.ClassifyBatch(ns)
	if err != nil {
		return 0, err
	}
	return s.OptimizeBatchSelection(bc), nil
}

// OptimizeBatchSelection keeps the batch optimum when its confidence is high
// enough; otherwise each neighbour carrying enough of the distribution is
// compared at the batch's average bit size and replaces the current choice
// only on a strictly higher score.
func (s *Selector) OptimizeBatchSelection(bc band.BatchClassification) band.Type {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if bc.Confidence > s.cfg.BatchKeepConfidence {
		return bc.Optimal
	}

	best := bc.Optimal
	optimalWeight := float64(bc.Weight(bc.Optimal))
	for _, nb := range bc.Optimal.Neighbors() {
		if float64(bc.Weight(nb)) < s.cfg.NeighborWeightRatio*optimalWeight {
			continue
		}
		if s.scoreLocked(nb, bc.AvgBitSize) > s.scoreLocked(best, bc.AvgBitSize) {
			best = nb
		}
	}
	return best
}

// #endregion optimal-band

// #region analysis

// SelectOptimalBandWithAnalysis selects a band for the batch and explains the
// choice with ranked alternatives and recommendations. Empty input reports
// MIDRANGE at confidence 0.5.
func (s *Selector) SelectOptimalBandWithAnalysis(ns []*big.Int) (Analysis, error) {
	cfg := s.Configuration()
	if len(ns) == 0 {
		return Analysis{
			Band:            band.Midrange,
			Confidence:      0.5,
			Alternatives:    []Alternative{},
			Recommendations: []string{RecNoInput},
		}, nil
	}

	bc, err := band.ClassifyBatch(ns)
	if err != nil {
		return Analysis{}, err
	}
	selected, err := s.SelectOptimalBand(ns)
	if err != nil {
		return Analysis{}, err
	}

	return Analysis{
		Band:            selected,
		Confidence:      bc.Confidence,
		Distribution:    bc.Distribution,
		AvgBitSize:      bc.AvgBitSize,
		Alternatives:    s.alternatives(selected, bc.AvgBitSize),
		Recommendations: recommendations(cfg, selected, bc),
	}, nil
}

// alternatives ranks the bands within two ordinals of selected and keeps the top three.
func (s *Selector) alternatives(selected band.Type, avg float64) []Alternative {
	var candidates []band.Type
	for _, b := range band.All() {
		d := int(b) - int(selected)
		if d != 0 && d >= -2 && d <= 2 {
			candidates = append(candidates, b)
		}
	}

	ranked := adaptive.Rank(candidates, func(b band.Type) float64 { return s.Score(b, avg) })
	if len(ranked) > 3 {
		ranked = ranked[:3]
	}

	out := make([]Alternative, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, Alternative{
			Band:      r.Candidate,
			Score:     r.Score,
			Tradeoffs: tradeoffs(selected, r.Candidate),
		})
	}
	return out
}

func tradeoffs(from, to band.Type) Tradeoffs {
	if to > from {
		return Tradeoffs{Memory: "higher", Scalability: "better", Latency: "higher"}
	}
	return Tradeoffs{Memory: "lower", Scalability: "reduced", Latency: "lower"}
}

func recommendations(cfg Config, selected band.Type, bc band.BatchClassification) []string {
	recs := []string{}
	if bc.Confidence < cfg.LowConfidence {
		recs = append(recs, RecLowConfidence)
	}
	if len(bc.Distribution) > cfg.DiversityLimit {
		recs = append(recs, RecHighDiversity)
	}
	r := selected.Range()
	if bc.AvgBitSize <= float64(r.Min)*(1+cfg.BoundaryProximity) ||
		bc.AvgBitSize >= float64(r.Max)*(1-cfg.BoundaryProximity) {
		recs = append(recs, RecNearBoundary)
	}
	return recs
}

// #endregion analysis

// #region configure

// Configure merges the non-nil fields of p into the configuration. Changing
// AdaptiveThresholds or HysteresisMargin rebuilds every threshold from the
// static ranges. An invalid result fails with a SelectionError and leaves the
// selector unchanged.
func (s *Selector) Configure(p Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cfg
	setBool(&next.AdaptiveThresholds, p.AdaptiveThresholds)
	setFloat(&next.HysteresisMargin, p.HysteresisMargin)
	setFloat(&next.InRangeScore, p.InRangeScore)
	setFloat(&next.ElasticScore, p.ElasticScore)
	setFloat(&next.OutOfRangeScore, p.OutOfRangeScore)
	setFloat(&next.WidenFactor, p.WidenFactor)
	setFloat(&next.NarrowFactor, p.NarrowFactor)
	setFloat(&next.HighUtilization, p.HighUtilization)
	setFloat(&next.BatchKeepConfidence, p.BatchKeepConfidence)
	setFloat(&next.NeighborWeightRatio, p.NeighborWeightRatio)
	if p.DefaultBand != nil {
		next.DefaultBand = *p.DefaultBand
	}

	if err := validateConfig(next); err != nil {
		return err
	}

	reset := next.AdaptiveThresholds != s.cfg.AdaptiveThresholds ||
		next.HysteresisMargin != s.cfg.HysteresisMargin
	s.cfg = next
	if reset {
		s.resetThresholds()
		s.logger.Info("thresholds reinitialized",
			"adaptive", next.AdaptiveThresholds,
			"margin", next.HysteresisMargin)
	}
	return nil
}

// Configuration returns a copy of the current configuration.
func (s *Selector) Configuration() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Thresholds returns a copy of the current adaptive thresholds.
func (s *Selector) Thresholds() map[band.Type]AdaptiveThreshold {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyThresholds(s.thresholds)
}

// Version returns the version tag of the last produced or applied snapshot.
func (s *Selector) Version() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Current returns the active configuration as a snapshot, suitable for
// ApplySnapshot after a rejected adaptation. A selector that has not produced
// or applied a snapshot yet is tagged with a fresh baseline version.
func (s *Selector) Current() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.version == "" {
		s.version = newVersionID()
	}
	return Snapshot{
		Version:             s.version,
		Band:                s.cfg.DefaultBand,
		ExpectedImprovement: 1,
		Parameters: SnapshotParams{
			AdaptiveThresholds: s.cfg.AdaptiveThresholds,
			HysteresisMargin:   s.cfg.HysteresisMargin,
			Thresholds:         copyThresholds(s.thresholds),
			Acceleration:       Acceleration(s.cfg.DefaultBand),
		},
		CreatedAt: s.now().UTC(),
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func setFloat(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}

func copyThresholds(m map[band.Type]AdaptiveThreshold) map[band.Type]AdaptiveThreshold {
	out := make(map[band.Type]AdaptiveThreshold, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// #endregion configure

// #region validate

func validateConfig(c Config) error {
	switch {
	case !finite(c.HysteresisMargin) || c.HysteresisMargin < 0 || c.HysteresisMargin >= 1:
		return berrors.NewSelectionError("hysteresis_margin", fmt.Sprintf("%v not in [0,1)", c.HysteresisMargin))
	case c.HistorySize <= 0:
		return berrors.NewSelectionError("history_size", "must be positive")
	case !finite(c.OutOfRangeScore) || c.OutOfRangeScore < 0:
		return berrors.NewSelectionError("out_of_range_score", "must be non-negative")
	case !finite(c.ElasticScore) || c.ElasticScore < c.OutOfRangeScore:
		return berrors.NewSelectionError("elastic_score", "must not be below out_of_range_score")
	case !finite(c.InRangeScore) || c.InRangeScore < c.ElasticScore:
		return berrors.NewSelectionError("in_range_score", "must not be below elastic_score")
	case !finite(c.WidenFactor) || c.WidenFactor < 1:
		return berrors.NewSelectionError("widen_factor", "must be >= 1")
	case !finite(c.NarrowFactor) || c.NarrowFactor <= 0 || c.NarrowFactor > 1:
		return berrors.NewSelectionError("narrow_factor", "must be in (0,1]")
	case !unit(c.HighUtilization):
		return berrors.NewSelectionError("high_utilization", "must be in [0,1]")
	case !unit(c.BatchKeepConfidence):
		return berrors.NewSelectionError("batch_keep_confidence", "must be in [0,1]")
	case !unit(c.NeighborWeightRatio):
		return berrors.NewSelectionError("neighbor_weight_ratio", "must be in [0,1]")
	case !unit(c.BoundaryProximity):
		return berrors.NewSelectionError("boundary_proximity", "must be in [0,1]")
	case !unit(c.LowConfidence):
		return berrors.NewSelectionError("low_confidence", "must be in [0,1]")
	case c.DiversityLimit < 1:
		return berrors.NewSelectionError("diversity_limit", "must be positive")
	case !c.DefaultBand.Valid():
		return berrors.NewSelectionError("default_band", fmt.Sprintf("unknown band %d", int(c.DefaultBand)))
	}
	return nil
}

// ValidateConfig checks c and returns a SelectionError when it is malformed.
func ValidateConfig(c Config) error {
	return validateConfig(c)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func unit(v float64) bool {
	return finite(v) && v >= 0 && v <= 1
}

// #endregion validate

// #region id

func newVersionID() string {
	return uuid.New().String()
}

// #endregion id
