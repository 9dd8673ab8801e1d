package selector

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/bandroute/internal/band"
	berrors "github.com/danielpatrickdp/bandroute/internal/errors"
)

// #region improvement

// ExpectedImprovement derives the improvement multiplier for a metrics snapshot.
func ExpectedImprovement(m PerformanceMetrics) float64 {
	improvement := 1.0
	if m.ErrorRate > 0.05 {
		improvement *= 0.9
	}
	if m.TransitionOverhead > 0.1 {
		improvement *= 0.95
	}
	if m.OptimalSelectionRate > 0.9 {
		improvement *= 1.1
	}
	return improvement
}

// #endregion improvement

// #region adapt

// AdaptBandSelection reshapes every utilized band's threshold through the
// threshold policy, picks the band maximizing utilization times acceleration,
// and returns the resulting configuration snapshot. The thresholds take
// effect immediately; the recommended band becomes the default only once the
// snapshot is applied.
func (s *Selector) AdaptBandSelection(m PerformanceMetrics) (Snapshot, error) {
	if err := validateMetrics(m); err != nil {
		return Snapshot{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	improvement := ExpectedImprovement(m)
	margin := 0.0
	if s.cfg.AdaptiveThresholds {
		margin = s.cfg.HysteresisMargin
	}

	for _, b := range band.All() {
		u, ok := m.BandUtilization[b]
		if !ok {
			continue
		}
		before := s.thresholds[b]
		after := s.policy.Adjust(b, before, InitialThreshold(b, margin), u, s.cfg)
		s.thresholds[b] = after
		s.logger.Debug("threshold adjusted",
			"band", b.String(),
			"utilization", u,
			"min", after.Min,
			"max", after.Max)
	}

	recommended := s.cfg.DefaultBand
	bestValue := -1.0
	for _, b := range band.All() {
		u, ok := m.BandUtilization[b]
		if !ok {
			continue
		}
		if v := u * Acceleration(b); v > bestValue {
			bestValue = v
			recommended = b
		}
	}

	snap := Snapshot{
		Version:             newVersionID(),
		ParentVersion:       s.version,
		Band:                recommended,
		ExpectedImprovement: improvement,
		Parameters: SnapshotParams{
			AdaptiveThresholds: s.cfg.AdaptiveThresholds,
			HysteresisMargin:   s.cfg.HysteresisMargin,
			Thresholds:         copyThresholds(s.thresholds),
			Acceleration:       Acceleration(recommended),
			Utilization:        copyUtilization(m.BandUtilization),
		},
		CreatedAt: s.now().UTC(),
	}
	s.version = snap.Version

	s.logger.Info("band selection adapted",
		"version", snap.Version,
		"band", recommended.String(),
		"expected_improvement", improvement)
	return snap, nil
}

func validateMetrics(m PerformanceMetrics) error {
	for b, u := range m.BandUtilization {
		if !b.Valid() {
			return berrors.NewConfigurationError("band_utilization", fmt.Sprintf("unknown band %d", int(b)), nil)
		}
		if !finite(u) || u < 0 {
			return berrors.NewConfigurationError("band_utilization", fmt.Sprintf("%s utilization %v", b, u), nil)
		}
	}
	for name, v := range map[string]float64{
		"error_rate":             m.ErrorRate,
		"transition_overhead":    m.TransitionOverhead,
		"optimal_selection_rate": m.OptimalSelectionRate,
	} {
		if !finite(v) || v < 0 {
			return berrors.NewConfigurationError(name, fmt.Sprintf("invalid value %v", v), nil)
		}
	}
	return nil
}

func copyUtilization(m map[band.Type]float64) map[band.Type]float64 {
	if m == nil {
		return nil
	}
	out := make(map[band.Type]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// #endregion adapt

// #region apply

// ApplySnapshot installs the thresholds, default band and threshold mode
// carried by snap. A malformed snapshot fails with a ConfigurationError and
// leaves the selector unchanged.
func (s *Selector) ApplySnapshot(snap Snapshot) error {
	if err := ValidateSnapshot(snap); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cfg
	next.DefaultBand = snap.Band
	next.AdaptiveThresholds = snap.Parameters.AdaptiveThresholds
	next.HysteresisMargin = snap.Parameters.HysteresisMargin
	if err := validateConfig(next); err != nil {
		return berrors.NewConfigurationError("snapshot", "produces invalid selector config", err)
	}

	s.cfg = next
	for b, th := range snap.Parameters.Thresholds {
		s.thresholds[b] = th
	}
	s.version = snap.Version

	s.logger.Info("snapshot applied", "version", snap.Version, "band", snap.Band.String())
	return nil
}

// ValidateSnapshot checks that snap is well formed.
func ValidateSnapshot(snap Snapshot) error {
	if snap.Version == "" {
		return berrors.NewConfigurationError("version", "missing", nil)
	}
	if !snap.Band.Valid() {
		return berrors.NewConfigurationError("band", fmt.Sprintf("unknown band %d", int(snap.Band)), nil)
	}
	for b, th := range snap.Parameters.Thresholds {
		if !b.Valid() {
			return berrors.NewConfigurationError("thresholds", fmt.Sprintf("unknown band %d", int(b)), nil)
		}
		if err := validateThreshold(th); err != nil {
			return berrors.NewConfigurationError("thresholds."+b.String(), err.Error(), nil)
		}
	}
	return nil
}

func validateThreshold(th AdaptiveThreshold) error {
	switch {
	case math.IsNaN(th.Min) || math.IsNaN(th.Max):
		return fmt.Errorf("NaN bound")
	case th.Min < 0:
		return fmt.Errorf("negative min %v", th.Min)
	case th.Min > th.Max:
		return fmt.Errorf("min %v above max %v", th.Min, th.Max)
	}
	return nil
}

// #endregion apply
