package selector

import (
	"github.com/danielpatrickdp/bandroute/internal/band"
)

// #region policy

// ThresholdPolicy reshapes a band's elastic threshold from its observed utilization.
type ThresholdPolicy interface {
	Adjust(b band.Type, current, initial AdaptiveThreshold, utilization float64, cfg Config) AdaptiveThreshold
}

// MultiplicativePolicy widens both bounds by WidenFactor above HighUtilization
// and narrows them by NarrowFactor otherwise.
type MultiplicativePolicy struct{}

// Adjust implements ThresholdPolicy.
func (MultiplicativePolicy) Adjust(_ band.Type, current, _ AdaptiveThreshold, utilization float64, cfg Config) AdaptiveThreshold {
	f := cfg.NarrowFactor
	if utilization > cfg.HighUtilization {
		f = cfg.WidenFactor
	}
	return AdaptiveThreshold{Min: current.Min * f, Max: current.Max * f}
}

// #endregion policy

// #region decay-policy

// DecayPolicy wraps another policy and, when utilization falls below Floor,
// moves the threshold a Rate fraction back toward its initial elastic range
// instead of applying the inner policy.
type DecayPolicy struct {
	Inner ThresholdPolicy
	Floor float64
	Rate  float64
}

// Adjust implements ThresholdPolicy.
func (d DecayPolicy) Adjust(b band.Type, current, initial AdaptiveThreshold, utilization float64, cfg Config) AdaptiveThreshold {
	if utilization >= d.Floor {
		inner := d.Inner
		if inner == nil {
			inner = MultiplicativePolicy{}
		}
		return inner.Adjust(b, current, initial, utilization, cfg)
	}
	r := d.Rate
	if r < 0 {
		r = 0
	}
	if r > 1 {
		r = 1
	}
	return AdaptiveThreshold{
		Min: current.Min + (initial.Min-current.Min)*r,
		Max: current.Max + (initial.Max-current.Max)*r,
	}
}

// #endregion decay-policy

// #region initial-threshold

// InitialThreshold derives the elastic range of b from its static range and margin.
func InitialThreshold(b band.Type, margin float64) AdaptiveThreshold {
	r := b.Range()
	return AdaptiveThreshold{
		Min: float64(r.Min) * (1 - margin),
		Max: float64(r.Max) * (1 + margin),
	}
}

// #endregion initial-threshold
