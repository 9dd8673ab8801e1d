package gate

import "time"

// #region veto-type
// VetoType enumerates hard veto categories.
type VetoType string

const (
	VetoMalformed   VetoType = "malformed_snapshot"
	VetoCoverage    VetoType = "coverage"
	VetoErrorRate   VetoType = "error_rate"
	VetoLineage     VetoType = "lineage"
	VetoImprovement VetoType = "improvement"
	VetoCooldown    VetoType = "cooldown"
)

// #endregion veto-type

// #region veto-signal
// VetoSignal represents a detected hard veto condition.
type VetoSignal struct {
	Type   VetoType
	Reason string
}

// #endregion veto-signal

// #region gate-config
// GateConfig holds thresholds for gate decisions.
type GateConfig struct {
	MaxErrorRate   float64       // reject adaptations computed from metrics this unhealthy
	MinImprovement float64       // reject snapshots expected to improve less than this
	Cooldown       time.Duration // minimum spacing between commits; 0 disables
	RequireLineage bool          // proposed.ParentVersion must equal the current version
}

// DefaultGateConfig returns sensible defaults. The cooldown is off.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		MaxErrorRate:   0.5,
		MinImprovement: 0.85,
		Cooldown:       0,
		RequireLineage: true,
	}
}

// #endregion gate-config

// #region gate-decision
// GateDecision is the output of the gate evaluation.
type GateDecision struct {
	Action      string // "commit" | "reject"
	Reason      string
	Vetoed      bool
	VetoSignals []VetoSignal // non-empty if vetoed
	SoftScore   float64      // 0-1 composite of soft signals (for logging)
}

// #endregion gate-decision
