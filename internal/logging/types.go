package logging

import (
	"time"

	"github.com/danielpatrickdp/bandroute/internal/selector"
)

// #region decision-kind
// Decision kinds written to decision_log.kind.
const (
	KindAdapt     = "adapt"
	KindRollback  = "rollback"
	KindFactorize = "factorize"
)

// #endregion decision-kind

// #region decision-entry
// DecisionEntry is a single row in the decision_log table.
type DecisionEntry struct {
	VersionID  string
	Kind       string
	Decision   string // "commit" | "reject" | "done" | ...
	Reason     string
	DetailJSON string
	CreatedAt  time.Time
}

// #endregion decision-entry

// #region adapt-record
// AdaptRecord captures the complete gate evaluation inputs for one
// adaptation. Serialized as JSON into decision_log.detail_json so the
// decision can be replayed.
type AdaptRecord struct {
	Metrics selector.PerformanceMetrics `json:"metrics"`

	ProposedBand        string  `json:"proposed_band"`
	ExpectedImprovement float64 `json:"expected_improvement"`
	ParentVersion       string  `json:"parent_version,omitempty"`

	// Gate output
	GateAction    string   `json:"gate_action"`
	GateSoftScore float64  `json:"gate_soft_score"`
	GateVetoed    bool     `json:"gate_vetoed"`
	GateReason    string   `json:"gate_reason"`
	Vetoes        []string `json:"vetoes,omitempty"`
}

// #endregion adapt-record
